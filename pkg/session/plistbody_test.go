package session

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/openairplay/airplay/pkg/plist"
)

func mustEncodeSetupPhase1Response(t *testing.T, eventPort, timingPort int) []byte {
	t.Helper()
	v := plist.Dict(
		plist.Entry("eventPort", plist.Int(int64(eventPort))),
		plist.Entry("timingPort", plist.Int(int64(timingPort))),
	)
	b, err := plist.Encode(v)
	require.NoError(t, err)
	return b
}

func TestBuildAndParseSetupPhase2(t *testing.T) {
	streams := []StreamDescriptor{
		{Codec: CodecPCM, SampleRate: 44100, Channels: 2, SampleSize: 16},
	}
	body, err := BuildSetupPhase2(streams)
	require.NoError(t, err)

	v, err := plist.Decode(body)
	require.NoError(t, err)
	got := v.Get("streams")
	require.NotNil(t, got)
	require.Len(t, got.Array, 1)
	require.Equal(t, int64(100), got.Array[0].Get("ct").Int)
}

func TestBuildPlayBodyWithMetadata(t *testing.T) {
	body, err := BuildPlayBody("http://h/x.mp3", 0.0, &Metadata{Title: "T", Artist: "A", Album: "B"})
	require.NoError(t, err)
	require.GreaterOrEqual(t, len(body), 8)

	v, err := plist.Decode(body)
	require.NoError(t, err)
	require.Equal(t, "http://h/x.mp3", v.Get("Content-Location").String)
	require.Equal(t, "T", v.Get("trackInfo").Get("title").String)
}
