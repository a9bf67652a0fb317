package rtp

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestPacketMarshalParseRoundTrip(t *testing.T) {
	p := NewAudioPacket(1000, 44100, 0xdeadbeef, []byte{1, 2, 3, 4})
	wire, err := p.Marshal()
	require.NoError(t, err)

	got, err := Parse(wire)
	require.NoError(t, err)
	require.Equal(t, p.SequenceNumber, got.SequenceNumber)
	require.Equal(t, p.Timestamp, got.Timestamp)
	require.Equal(t, p.SSRC, got.SSRC)
	require.Equal(t, p.Payload, got.Payload)
}

func TestSeqBeforeWrapSafe(t *testing.T) {
	require.True(t, SeqBefore(65530, 2))
	require.False(t, SeqBefore(2, 65530))
	require.True(t, SeqBefore(10, 20))
	require.False(t, SeqBefore(20, 10))
}

func TestSeqBeforeTransitiveNearWrap(t *testing.T) {
	a, b, c := uint16(60000), uint16(65000), uint16(1000)
	require.True(t, SeqBefore(a, b))
	require.True(t, SeqBefore(b, c))
	require.True(t, SeqBefore(a, c))
}
