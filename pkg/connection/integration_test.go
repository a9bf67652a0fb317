package connection

import (
	"context"
	"math/big"
	"net"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"github.com/openairplay/airplay/internal/liberrors"
	"github.com/openairplay/airplay/pkg/crypto"
	"github.com/openairplay/airplay/pkg/crypto/srp"
	"github.com/openairplay/airplay/pkg/pairing"
	"github.com/openairplay/airplay/pkg/receiver"
	"github.com/openairplay/airplay/pkg/session"
)

type fixedPINVerifier struct {
	salt     []byte
	verifier *big.Int
}

func newFixedPINVerifier(t *testing.T, pin string) *fixedPINVerifier {
	t.Helper()
	salt, err := crypto.RandomBytes(16)
	require.NoError(t, err)
	x := srp.ComputeX(pairing.DefaultSRPIdentity, []byte(pin), salt)
	return &fixedPINVerifier{salt: salt, verifier: srp.ComputeVerifier(srp.Group2048, x)}
}

func (p *fixedPINVerifier) Lookup(_ []byte) ([]byte, *big.Int, error) {
	return p.salt, p.verifier, nil
}

type discardOutput struct{}

func (discardOutput) Write([]int16) error { return nil }
func (discardOutput) Close() error        { return nil }

// startAccessory runs a receiver.Server on a loopback listener and returns
// its address. The listener is closed via t.Cleanup.
func startAccessory(t *testing.T, identity *receiver.Identity, opts ...func(*receiver.SessionConfig)) string {
	t.Helper()
	listener, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	t.Cleanup(func() { listener.Close() })

	cfg := receiver.SessionConfig{
		Identity: identity,
		NewAudioOutput: func(sampleRate, channels int) (receiver.AudioOutput, error) {
			return discardOutput{}, nil
		},
	}
	for _, opt := range opts {
		opt(&cfg)
	}
	srv := receiver.NewServer(listener, cfg, zerolog.Nop())
	go srv.Serve()
	return listener.Addr().String()
}

func managerFor(addr string) Config {
	var shk [32]byte
	copy(shk[:], []byte("0123456789abcdef0123456789abcdef"))
	host, _, _ := net.SplitHostPort(addr)
	return Config{
		Dialect:               session.DialectAP2,
		Addr:                  addr,
		Host:                  host,
		URI:                   "rtsp://" + addr + "/test",
		ConnectTimeout:        5 * time.Second,
		AllowTransientPairing: true,
		Streams: []session.StreamDescriptor{{
			Type:       session.StreamTypeAudio,
			Codec:      session.CodecPCM,
			SampleRate: 44100,
			Channels:   2,
			SampleSize: 16,
			SharedKey:  shk,
		}},
	}
}

func TestConnectWithTransientPairSetup(t *testing.T) {
	volumes := make(chan float64, 1)
	addr := startAccessory(t,
		&receiver.Identity{SRPVerifier: newFixedPINVerifier(t, "3939")},
		func(cfg *receiver.SessionConfig) {
			cfg.OnVolume = func(db float64) {
				select {
				case volumes <- db:
				default:
				}
			}
		})

	cfg := managerFor(addr)
	cfg.PIN = "3939"
	m := NewManager(cfg)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	require.NoError(t, m.Connect(ctx))
	require.Equal(t, StateConnected, m.State())

	// The control channel switched to AEAD framing once pair-setup
	// completed; a post-connect request must still round-trip, and its
	// payload must surface through the accessory's callback.
	require.NoError(t, m.SetVolume(ctx, -20.0))
	select {
	case db := <-volumes:
		require.InDelta(t, -20.0, db, 0.001)
	case <-time.After(2 * time.Second):
		t.Fatal("volume update never reached the accessory callback")
	}
	require.NoError(t, m.SendAudioFrame(0, make([]byte, 352*2*2)))

	require.NoError(t, m.Close())
	require.Equal(t, StateDisconnected, m.State())
}

func TestConnectWithWrongPINFails(t *testing.T) {
	addr := startAccessory(t, &receiver.Identity{SRPVerifier: newFixedPINVerifier(t, "3939")})

	cfg := managerFor(addr)
	cfg.PIN = "0000"
	m := NewManager(cfg)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	err := m.Connect(ctx)
	require.Error(t, err)
	require.Equal(t, StateFailed, m.State())

	var lerr *liberrors.Error
	require.True(t, asLibError(err, &lerr))
	require.False(t, lerr.Recoverable())
}

func TestStoredKeysReconnectSkipsPairSetup(t *testing.T) {
	serverLT, err := crypto.GenerateEd25519KeyPair()
	require.NoError(t, err)
	serverStore, err := pairing.NewFileStore(t.TempDir())
	require.NoError(t, err)
	addr := startAccessory(t, &receiver.Identity{
		LongTerm:    serverLT,
		ServerID:    []byte("AA:BB:CC:DD:EE:FF"),
		SRPVerifier: newFixedPINVerifier(t, "3939"),
		Store:       serverStore,
	})

	clientDir := t.TempDir()
	clientStore, err := pairing.NewFileStore(clientDir)
	require.NoError(t, err)

	cfg := managerFor(addr)
	cfg.PIN = "3939"
	cfg.DeviceID = "AA:BB:CC:DD:EE:FF"
	cfg.PairingStore = clientStore

	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	m := NewManager(cfg)
	require.NoError(t, m.Connect(ctx))
	require.NoError(t, m.Close())

	// Persistent pair-setup saved a long-term identity for the device.
	stored, err := clientStore.Load(cfg.DeviceID)
	require.NoError(t, err)
	require.NotNil(t, stored)
	before := readStoreDir(t, clientDir)

	// The second connect runs pair-verify against the stored identity;
	// the key store must come through byte-identical.
	m2 := NewManager(cfg)
	require.NoError(t, m2.Connect(ctx))
	require.NoError(t, m2.Close())

	require.Equal(t, before, readStoreDir(t, clientDir))
}

// readStoreDir snapshots every file in a pairing store directory.
func readStoreDir(t *testing.T, dir string) map[string][]byte {
	t.Helper()
	out := map[string][]byte{}
	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	for _, e := range entries {
		b, err := os.ReadFile(filepath.Join(dir, e.Name()))
		require.NoError(t, err)
		out[e.Name()] = b
	}
	return out
}
