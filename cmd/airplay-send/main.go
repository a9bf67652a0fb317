// Command airplay-send streams a WAV file to one AirPlay receiver,
// driving pkg/connection.Manager through its full connect/record/stream
// lifecycle. It is the thinnest possible library consumer: flag parsing
// and WAV decoding here, protocol work in pkg/connection.
package main

import (
	"context"
	"encoding/binary"
	"fmt"
	"io"
	"net"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/spf13/pflag"

	"github.com/openairplay/airplay/pkg/airlog"
	"github.com/openairplay/airplay/pkg/config"
	"github.com/openairplay/airplay/pkg/connection"
	"github.com/openairplay/airplay/pkg/discovery"
	"github.com/openairplay/airplay/pkg/pairing"
	"github.com/openairplay/airplay/pkg/session"
)

func main() {
	var (
		addr           = pflag.StringP("addr", "a", "", "receiver control address, host:port (or use --name to browse)")
		name           = pflag.StringP("name", "n", "", "receiver name to browse for via mDNS when --addr is not given")
		pin            = pflag.String("pin", "", "PIN for first-time transient pair-setup")
		deviceID       = pflag.StringP("device-id", "d", "", "receiver device id, for looking up a stored pairing")
		pairingDir     = pflag.String("pairing-dir", "", "directory holding persisted pairing identities; empty disables persistence")
		protocol       = pflag.StringP("protocol", "p", "AP2", "protocol dialect to speak: AP1 or AP2")
		wavPath        = pflag.StringP("file", "f", "", "WAV file to stream (required)")
		logLevel       = pflag.String("log-level", "info", "log level: debug, info, warn, error")
		connectTimeout = pflag.Duration("connect-timeout", 10*time.Second, "connection handshake timeout")
	)
	pflag.Usage = func() {
		fmt.Fprintf(os.Stderr, "Usage: %s --addr host:port --file track.wav\n\n", os.Args[0])
		pflag.PrintDefaults()
	}
	pflag.Parse()

	log := airlog.New(os.Stderr, "airplay-send", *logLevel)

	if (*addr == "" && *name == "") || *wavPath == "" {
		pflag.Usage()
		os.Exit(2)
	}

	cfg := config.Default()
	if *protocol == "AP1" {
		cfg.PreferredProtocol = config.ProtocolAP1
	}

	wav, err := os.Open(*wavPath)
	if err != nil {
		log.Error().Err(err).Str("path", *wavPath).Msg("open WAV file")
		os.Exit(1)
	}
	defer wav.Close()

	sampleRate, channels, pcm, err := readWave(wav)
	if err != nil {
		log.Error().Err(err).Msg("parse WAV file")
		os.Exit(1)
	}

	dialect := session.DialectAP2
	if cfg.PreferredProtocol == config.ProtocolAP1 {
		dialect = session.DialectAP1
	}

	var store pairing.Store
	if *pairingDir != "" {
		store, err = pairing.NewFileStore(*pairingDir)
		if err != nil {
			log.Error().Err(err).Msg("open pairing store")
			os.Exit(1)
		}
	}

	targetAddr, targetID := *addr, *deviceID
	if targetAddr == "" {
		dev, err := browseFor(log, *name, dialect)
		if err != nil {
			log.Error().Err(err).Str("name", *name).Msg("browse for receiver")
			os.Exit(1)
		}
		targetAddr = net.JoinHostPort(dev.Address, fmt.Sprint(dev.ControlPort))
		if targetID == "" {
			targetID = dev.ID
		}
		log.Info().Str("name", dev.Name).Str("addr", targetAddr).Msg("resolved receiver")
	}

	host, _, err := net.SplitHostPort(targetAddr)
	if err != nil {
		log.Error().Err(err).Str("addr", targetAddr).Msg("parse receiver address")
		os.Exit(1)
	}

	mgr := connection.NewManager(connection.Config{
		Dialect:        dialect,
		Addr:           targetAddr,
		Host:           host,
		URI:            fmt.Sprintf("rtsp://%s/airplay-send", targetAddr),
		DeviceID:       targetID,
		PairingStore:   store,
		ConnectTimeout: *connectTimeout,

		PIN:                   *pin,
		AllowTransientPairing: cfg.AllowTransientPairing,
		Streams: []session.StreamDescriptor{{
			Type:       session.StreamTypeAudio,
			Codec:      session.CodecPCM,
			SampleRate: sampleRate,
			Channels:   channels,
			SampleSize: 16,
		}},
	})

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	go logEvents(log, mgr.Subscribe())

	// Connect already drives OPTIONS through RECORD; the connection is
	// playing as soon as it returns.
	if err := mgr.Connect(ctx); err != nil {
		log.Error().Err(err).Msg("connect")
		os.Exit(1)
	}
	defer mgr.Disconnect()

	if err := stream(ctx, mgr, sampleRate, channels, pcm); err != nil {
		log.Error().Err(err).Msg("stream")
		os.Exit(1)
	}

	log.Info().Msg("stream complete")
}

// browseTimeout bounds how long a --name lookup waits for the receiver to
// appear on the local network.
const browseTimeout = 5 * time.Second

// browseFor resolves a receiver by its advertised name, browsing the
// dialect-appropriate mDNS service type.
func browseFor(log zerolog.Logger, name string, dialect session.Dialect) (discovery.Device, error) {
	service := discovery.ServiceAirPlay2
	if dialect == session.DialectAP1 {
		service = discovery.ServiceRAOP
	}

	ctx, cancel := context.WithTimeout(context.Background(), browseTimeout)
	defer cancel()

	found := make(chan discovery.Device, 1)
	added := func(d discovery.Device) {
		log.Debug().Str("name", d.Name).Str("addr", d.Address).Msg("discovered receiver")
		// RAOP instance names are "<deviceid>@<name>"; match the suffix too.
		if d.Name == name || strings.HasSuffix(d.Name, "@"+name) {
			select {
			case found <- d:
			default:
			}
		}
	}
	browser := discovery.DNSSDBrowser{}
	go browser.Browse(ctx, service, added, func(discovery.Device) {})

	select {
	case d := <-found:
		return d, nil
	case <-ctx.Done():
		return discovery.Device{}, fmt.Errorf("no receiver named %q found within %s", name, browseTimeout)
	}
}

// frameSamplesPerChannel is the RTP audio packet size AirPlay expects for
// PCM streams.
const frameSamplesPerChannel = 352

func stream(ctx context.Context, mgr *connection.Manager, sampleRate, channels int, pcm []int16) error {
	frameLen := frameSamplesPerChannel * channels
	frameDur := time.Duration(frameSamplesPerChannel) * time.Second / time.Duration(sampleRate)

	ticker := time.NewTicker(frameDur)
	defer ticker.Stop()

	var timestamp uint32
	for off := 0; off < len(pcm); off += frameLen {
		end := off + frameLen
		if end > len(pcm) {
			end = len(pcm)
		}
		payload := samplesToBytes(pcm[off:end])

		if err := mgr.SendAudioFrame(timestamp, payload); err != nil {
			return err
		}
		timestamp += frameSamplesPerChannel

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
	}
	return nil
}

func samplesToBytes(samples []int16) []byte {
	out := make([]byte, len(samples)*2)
	for i, s := range samples {
		binary.LittleEndian.PutUint16(out[i*2:], uint16(s))
	}
	return out
}

func logEvents(log zerolog.Logger, ch <-chan connection.Event) {
	for ev := range ch {
		switch ev.Kind {
		case connection.EventStateChanged:
			log.Debug().Str("from", ev.From.String()).Str("to", ev.To.String()).Msg("state changed")
		case connection.EventDisconnected:
			log.Info().Str("reason", ev.Reason.String()).Msg("disconnected")
		case connection.EventError:
			log.Warn().Err(ev.Err).Msg("connection error")
		case connection.EventPairingRequired:
			log.Warn().Msg("pairing required; re-run pair-setup before connecting")
		}
	}
}

// readWave parses a canonical 44-byte-header PCM WAV file into its sample
// rate, channel count, and interleaved int16 samples.
func readWave(r io.Reader) (sampleRate, channels int, samples []int16, err error) {
	header := make([]byte, 44)
	if _, err := io.ReadFull(r, header); err != nil {
		return 0, 0, nil, fmt.Errorf("read WAV header: %w", err)
	}
	if string(header[0:4]) != "RIFF" || string(header[8:12]) != "WAVE" {
		return 0, 0, nil, fmt.Errorf("not a RIFF/WAVE file")
	}
	channels = int(binary.LittleEndian.Uint16(header[22:24]))
	sampleRate = int(binary.LittleEndian.Uint32(header[24:28]))
	bitsPerSample := binary.LittleEndian.Uint16(header[34:36])
	if bitsPerSample != 16 {
		return 0, 0, nil, fmt.Errorf("unsupported bits per sample %d, want 16", bitsPerSample)
	}

	raw, err := io.ReadAll(r)
	if err != nil {
		return 0, 0, nil, fmt.Errorf("read WAV data: %w", err)
	}
	samples = make([]int16, len(raw)/2)
	for i := range samples {
		samples[i] = int16(binary.LittleEndian.Uint16(raw[i*2:]))
	}
	return sampleRate, channels, samples, nil
}
