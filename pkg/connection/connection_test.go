package connection

import (
	"context"
	"net"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/openairplay/airplay/pkg/rtp"
	"github.com/openairplay/airplay/pkg/session"
)

func TestStateTransitionsForward(t *testing.T) {
	require.NoError(t, checkTransition(StateDisconnected, StateConnecting))
	require.NoError(t, checkTransition(StateConnecting, StateAuthenticating))
	require.NoError(t, checkTransition(StateAuthenticating, StateSettingUp))
	require.NoError(t, checkTransition(StateSettingUp, StateConnected))
	require.NoError(t, checkTransition(StateConnected, StateReconnecting))
	require.Error(t, checkTransition(StateDisconnected, StateConnected))
	require.Error(t, checkTransition(StateConnected, StateSettingUp))
}

func TestManagerSetStatePublishesEvent(t *testing.T) {
	m := NewManager(Config{Addr: "127.0.0.1:0", URI: "rtsp://127.0.0.1/"})
	events := m.Subscribe()

	m.setState(StateConnecting)

	ev := <-events
	require.Equal(t, EventStateChanged, ev.Kind)
	require.Equal(t, StateDisconnected, ev.From)
	require.Equal(t, StateConnecting, ev.To)
	require.Equal(t, StateConnecting, m.State())
}

func TestBusDropsEventsForSlowSubscriber(t *testing.T) {
	var b bus
	slow := b.subscribe()

	for i := 0; i < subscriberQueueDepth+5; i++ {
		b.publish(Event{Kind: EventError})
	}

	// The channel never blocked despite nobody reading; it should have
	// exactly subscriberQueueDepth buffered events, the rest dropped.
	require.Len(t, slow, subscriberQueueDepth)
}

func TestStatsSnapshotReflectsCounters(t *testing.T) {
	m := NewManager(Config{Addr: "127.0.0.1:0", URI: "rtsp://127.0.0.1/"})
	m.cnt.addSent(100)
	m.cnt.addReceived(42)

	s := m.Stats()
	require.Equal(t, uint64(100), s.BytesSent)
	require.Equal(t, uint64(42), s.BytesReceived)
}

func TestReconnectGivesUpAfterMaxAttempts(t *testing.T) {
	// An unreachable loopback port fails to dial, which is a Transport
	// error and therefore recoverable; with maxAttempts capped at 1 the
	// loop must still terminate and surface the last error.
	m := NewManager(Config{Addr: "127.0.0.1:1", URI: "rtsp://x/", ConnectTimeout: 200}) // effectively instant timeout unit below
	ctx := context.Background()
	err := m.Reconnect(ctx, 0, 1)
	require.Error(t, err)
}

func TestSendAudioFrameSealsAndTransmitsAP2(t *testing.T) {
	server, err := net.ListenUDP("udp", &net.UDPAddr{IP: net.ParseIP("127.0.0.1")})
	require.NoError(t, err)
	defer server.Close()

	client, err := net.DialUDP("udp", nil, server.LocalAddr().(*net.UDPAddr))
	require.NoError(t, err)

	var shk [32]byte
	copy(shk[:], []byte("0123456789abcdef0123456789abcdef"))

	m := NewManager(Config{
		Dialect: session.DialectAP2,
		Addr:    "127.0.0.1:0",
		URI:     "rtsp://127.0.0.1/",
		Streams: []session.StreamDescriptor{{SharedKey: shk}},
	})
	m.sockets = &rtp.StreamSockets{Data: client}

	require.NoError(t, m.SendAudioFrame(352, []byte("hello audio")))

	buf := make([]byte, 2048)
	n, err := server.Read(buf)
	require.NoError(t, err)

	pkt, err := rtp.Parse(buf[:n])
	require.NoError(t, err)
	require.Equal(t, uint32(352), pkt.Timestamp)
	require.Equal(t, uint16(0), pkt.SequenceNumber)

	plain, err := rtp.OpenAP2(shk, pkt.SequenceNumber, pkt.Timestamp, pkt.Payload)
	require.NoError(t, err)
	require.Equal(t, []byte("hello audio"), plain)

	require.Equal(t, uint64(n), m.Stats().BytesSent)
}
