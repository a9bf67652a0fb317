package conn

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/openairplay/airplay/pkg/crypto"
	"github.com/openairplay/airplay/pkg/rtsp/base"
)

func TestCodecPlaintextRoundTrip(t *testing.T) {
	c := New()
	req := &base.Request{Method: base.Options, URI: "rtsp://10.0.0.5/", CSeq: 1, Header: base.Header{}}
	wire, err := c.Encode(req)
	require.NoError(t, err)

	server := New()
	require.NoError(t, server.Feed(wire))
	got, ok, err := server.DecodeRequest()
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, base.Options, got.Method)
}

func TestCodecEncryptedRoundTrip(t *testing.T) {
	var k crypto.SessionKeys
	for i := range k.SendKey {
		k.SendKey[i] = byte(i)
		k.RecvKey[i] = byte(i)
	}

	sender := New()
	sender.Encrypt(&k)
	req := &base.Request{Method: base.GetParameter, URI: "rtsp://10.0.0.5/info", CSeq: 7, Header: base.Header{}}
	wire, err := sender.Encode(req)
	require.NoError(t, err)
	require.True(t, sender.Encrypted())

	var k2 crypto.SessionKeys
	k2.SendKey = k.SendKey
	k2.RecvKey = k.RecvKey
	receiver := New()
	receiver.Encrypt(&k2)
	require.NoError(t, receiver.Feed(wire))
	got, ok, err := receiver.DecodeRequest()
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, base.GetParameter, got.Method)
	require.Equal(t, 7, got.CSeq)
}

func TestSessionRejectsPipelining(t *testing.T) {
	s := NewSession()
	req1 := &base.Request{Method: base.Options, Header: base.Header{}}
	require.NoError(t, s.PrepareRequest(req1))

	req2 := &base.Request{Method: base.Options, Header: base.Header{}}
	require.Error(t, s.PrepareRequest(req2))

	resp := &base.Response{StatusCode: 200, CSeq: req1.CSeq, Header: base.Header{}}
	resp.Header.Set("Session", "ABC123")
	require.NoError(t, s.CompleteRequest(resp))
	require.Equal(t, "ABC123", s.SessionID())
}
