package headers

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestTransportParseAP1Setup(t *testing.T) {
	tr, err := Parse("RTP/AVP/UDP;unicast;mode=record;control_port=6001;timing_port=6002")
	require.NoError(t, err)
	require.Equal(t, "RTP/AVP/UDP", tr.Protocol)
	require.True(t, tr.Unicast)
	require.NotNil(t, tr.Mode)
	require.Equal(t, ModeRecord, *tr.Mode)
	require.Equal(t, 6001, tr.ControlPort[0])
	require.Equal(t, 6002, tr.TimingPort[0])
}

func TestTransportParseServerPorts(t *testing.T) {
	tr, err := Parse("RTP/AVP/UDP;unicast;server_port=7000-7001;control_port=7002")
	require.NoError(t, err)
	require.Equal(t, [2]int{7000, 7001}, *tr.ServerPort)
	require.Equal(t, 7002, tr.ControlPort[0])
}

func TestTransportRoundTrip(t *testing.T) {
	mode := ModeRecord
	tr := &Transport{
		Protocol:    "RTP/AVP/UDP",
		Unicast:     true,
		Mode:        &mode,
		ControlPort: &[2]int{6001, 6001},
		TimingPort:  &[2]int{6002, 6002},
	}
	parsed, err := Parse(tr.String())
	require.NoError(t, err)
	require.Equal(t, tr.Protocol, parsed.Protocol)
	require.Equal(t, *tr.ControlPort, *parsed.ControlPort)
}

func TestParseRange(t *testing.T) {
	r, err := ParseRange("npt=0-;rtptime=123456")
	require.NoError(t, err)
	require.True(t, r.Present)
	require.Equal(t, uint32(123456), r.RTPTimestamp)
}
