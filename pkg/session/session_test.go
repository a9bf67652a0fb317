package session

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/openairplay/airplay/pkg/rtsp/base"
)

func TestControllerOptionsHandshake(t *testing.T) {
	c := NewController(DialectAP1, "rtsp://10.0.0.5/")
	req, err := c.BuildOptions()
	require.NoError(t, err)
	require.Equal(t, base.Options, req.Method)
	require.Equal(t, 1, req.CSeq)

	resp := &base.Response{StatusCode: 200, CSeq: 1, Header: base.Header{}}
	resp.Header.Set("Public", "OPTIONS, ANNOUNCE, SETUP, RECORD, SET_PARAMETER, FLUSH, TEARDOWN")
	require.NoError(t, c.HandleOptionsResponse(resp))
	require.Equal(t, StateOptionsExchanged, c.State)
	require.Contains(t, c.PublicMethods, "RECORD")
}

func TestControllerRejectsOutOfOrderSetup(t *testing.T) {
	c := NewController(DialectAP2, "rtsp://10.0.0.5/")
	_, err := c.BuildSetupPhase2(nil)
	require.Error(t, err)
}

func TestControllerAP2Phase1Phase2Flow(t *testing.T) {
	c := NewController(DialectAP2, "rtsp://10.0.0.5/")
	_, err := c.BuildOptions()
	require.NoError(t, err)
	require.NoError(t, c.HandleOptionsResponse(&base.Response{StatusCode: 200, CSeq: 1, Header: base.Header{}}))

	req1, err := c.BuildSetupPhase1()
	require.NoError(t, err)
	require.Equal(t, base.Setup, req1.Method)

	phase1Body, err := BuildSetupPhase1()
	require.NoError(t, err)
	_ = phase1Body

	eventPort, timingPort, err := c.HandleSetupPhase1Response(&base.Response{
		StatusCode: 200, CSeq: req1.CSeq, Header: base.Header{},
		Content: mustEncodeSetupPhase1Response(t, 6000, 6001),
	})
	require.NoError(t, err)
	require.Equal(t, 6000, eventPort)
	require.Equal(t, 6001, timingPort)
	require.Equal(t, StateTimingEstablished, c.State)

	streams := []StreamDescriptor{{Codec: CodecPCM, SampleRate: 44100, Channels: 2, SampleSize: 16}}
	req2, err := c.BuildSetupPhase2(streams)
	require.NoError(t, err)
	require.Equal(t, StateTimingEstablished, c.State)
	_ = req2
}

func TestFlushBeforeSyncRejected(t *testing.T) {
	c := NewController(DialectAP1, "rtsp://10.0.0.5/")
	c.State = StateRecording
	_, err := c.BuildFlush(1000, false)
	require.ErrorIs(t, err, ErrFlushBeforeSync)
}

func TestVolumeCurve(t *testing.T) {
	db, err := VolumeToDB(0)
	require.NoError(t, err)
	require.Equal(t, MinVolumeDB, db)

	db, err = VolumeToDB(100)
	require.NoError(t, err)
	require.Equal(t, MaxVolumeDB, db)

	pct, err := DBToVolume(-72.0)
	require.NoError(t, err)
	require.InDelta(t, 50.0, pct, 0.01)
}

func TestParameterBodiesRoundTrip(t *testing.T) {
	db, err := ParseVolumeParameter([]byte(FormatVolumeParameter(-30.5)))
	require.NoError(t, err)
	require.InDelta(t, -30.5, db, 0.001)

	_, err = ParseVolumeParameter([]byte("volume: 10.0\r\n"))
	require.Error(t, err) // above MaxVolumeDB

	p := Progress{Start: 1000, Current: 45000, End: 9000000}
	got, err := ParseProgressParameter([]byte(FormatProgressParameter(p)))
	require.NoError(t, err)
	require.Equal(t, p, got)

	meta := Metadata{Title: "T", Artist: "A", Album: "B"}
	body, err := BuildPlayBody("", 0, &meta)
	require.NoError(t, err)
	gotMeta, err := ParseMetadataBody(body)
	require.NoError(t, err)
	require.Equal(t, meta, gotMeta)
}
