// Command airplay-receive runs a standalone AirPlay accessory: it serves
// controller connections concurrently, each in its own goroutine
// (receiver.Server.Serve), and writes the decoded PCM stream
// either to a WAV file or to a live PortAudio output device.
package main

import (
	"fmt"
	"math/big"
	"net"
	"os"

	"github.com/spf13/pflag"

	"github.com/openairplay/airplay/pkg/airlog"
	"github.com/openairplay/airplay/pkg/audiosink"
	"github.com/openairplay/airplay/pkg/crypto"
	"github.com/openairplay/airplay/pkg/crypto/srp"
	"github.com/openairplay/airplay/pkg/pairing"
	"github.com/openairplay/airplay/pkg/receiver"
	"github.com/openairplay/airplay/pkg/session"
)

func main() {
	var (
		listenAddr = pflag.StringP("listen", "l", ":7000", "address to accept controller connections on")
		serverID   = pflag.StringP("server-id", "s", "AA:BB:CC:DD:EE:FF", "accessory identifier presented during pair-verify")
		pin        = pflag.StringP("pin", "p", "3939", "PIN required for first-time pair-setup")
		pairingDir = pflag.String("pairing-dir", "", "directory to persist paired controller identities; empty disables persistence")
		output     = pflag.StringP("output", "o", "portaudio", "where to write decoded audio: \"portaudio\" or a .wav file path")
		logLevel   = pflag.String("log-level", "info", "log level: debug, info, warn, error")
	)
	pflag.Usage = func() {
		fmt.Fprintf(os.Stderr, "Usage: %s [--listen :7000] [--output out.wav]\n\n", os.Args[0])
		pflag.PrintDefaults()
	}
	pflag.Parse()

	log := airlog.New(os.Stderr, "airplay-receive", *logLevel)

	longTerm, err := crypto.GenerateEd25519KeyPair()
	if err != nil {
		log.Error().Err(err).Msg("generate accessory identity")
		os.Exit(1)
	}

	var store pairing.Store
	if *pairingDir != "" {
		store, err = pairing.NewFileStore(*pairingDir)
		if err != nil {
			log.Error().Err(err).Msg("open pairing store")
			os.Exit(1)
		}
	}

	verifier, err := newPINVerifier(pairing.DefaultSRPIdentity, []byte(*pin))
	if err != nil {
		log.Error().Err(err).Msg("derive SRP verifier from PIN")
		os.Exit(1)
	}

	identity := &receiver.Identity{
		LongTerm:    longTerm,
		ServerID:    []byte(*serverID),
		SRPVerifier: verifier,
		Store:       store,
	}

	cfg := receiver.SessionConfig{
		Identity: identity,
		NewAudioOutput: func(sampleRate, channels int) (receiver.AudioOutput, error) {
			return newAudioOutput(*output, sampleRate, channels)
		},
		OnVolume: func(db float64) {
			log.Info().Float64("db", db).Msg("volume changed")
		},
		OnMetadata: func(m session.Metadata) {
			log.Info().Str("title", m.Title).Str("artist", m.Artist).Msg("now playing")
		},
	}

	listener, err := net.Listen("tcp", *listenAddr)
	if err != nil {
		log.Error().Err(err).Str("addr", *listenAddr).Msg("listen")
		os.Exit(1)
	}

	log.Info().Str("addr", listener.Addr().String()).Str("pin", *pin).Msg("accessory listening")

	srv := receiver.NewServer(listener, cfg, log)
	if err := srv.Serve(); err != nil {
		log.Error().Err(err).Msg("serve")
		os.Exit(1)
	}
}

func newAudioOutput(output string, sampleRate, channels int) (receiver.AudioOutput, error) {
	if output == "portaudio" {
		const framesPerBuffer = 352 // matches the AirPlay audio RTP frame size
		return audiosink.NewPortAudioSink(sampleRate, channels, framesPerBuffer)
	}
	return audiosink.NewFileSink(output, sampleRate, channels)
}

// pinVerifier answers pair-setup's SRP account lookup with a single
// account derived from a fixed PIN, salted fresh at process start.
type pinVerifier struct {
	identity []byte
	salt     []byte
	verifier *big.Int
}

func newPINVerifier(identity, pin []byte) (*pinVerifier, error) {
	salt, err := crypto.RandomBytes(16)
	if err != nil {
		return nil, fmt.Errorf("generate SRP salt: %w", err)
	}
	x := srp.ComputeX(identity, pin, salt)
	v := srp.ComputeVerifier(srp.Group2048, x)
	return &pinVerifier{identity: identity, salt: salt, verifier: v}, nil
}

func (p *pinVerifier) Lookup(identity []byte) ([]byte, *big.Int, error) {
	if string(identity) != string(p.identity) {
		return nil, nil, fmt.Errorf("no account for identity %q", identity)
	}
	return p.salt, p.verifier, nil
}
