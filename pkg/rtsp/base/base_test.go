package base

import (
	"bufio"
	"bytes"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestRequestWriteRead(t *testing.T) {
	req := &Request{
		Method: Options,
		URI:    "rtsp://10.0.0.5/",
		CSeq:   1,
		Header: Header{},
	}
	var buf bytes.Buffer
	bw := bufio.NewWriter(&buf)
	require.NoError(t, req.Write(bw))

	got, err := ReadRequest(bufio.NewReader(&buf))
	require.NoError(t, err)
	require.Equal(t, Options, got.Method)
	require.Equal(t, 1, got.CSeq)
}

func TestRequestWithContent(t *testing.T) {
	req := &Request{
		Method:  Announce,
		URI:     "rtsp://10.0.0.5/stream",
		CSeq:    2,
		Header:  Header{},
		Content: []byte("v=0\r\n"),
	}
	var buf bytes.Buffer
	bw := bufio.NewWriter(&buf)
	require.NoError(t, req.Write(bw))

	got, err := ReadRequest(bufio.NewReader(&buf))
	require.NoError(t, err)
	require.Equal(t, req.Content, got.Content)
}

func TestResponseWriteRead(t *testing.T) {
	resp := &Response{
		StatusCode: 200,
		CSeq:       3,
		Header:     Header{},
	}
	resp.Header.Set("Public", "OPTIONS, ANNOUNCE, SETUP")
	var buf bytes.Buffer
	bw := bufio.NewWriter(&buf)
	require.NoError(t, resp.Write(bw))

	got, err := ReadResponse(bufio.NewReader(&buf))
	require.NoError(t, err)
	require.Equal(t, 200, got.StatusCode)
	require.Equal(t, 3, got.CSeq)
	v, ok := got.Header.Get("Public")
	require.True(t, ok)
	require.Equal(t, "OPTIONS, ANNOUNCE, SETUP", v)
}

func TestReadRequestRejectsBadProtocol(t *testing.T) {
	raw := "OPTIONS rtsp://x/ RTSP/2.0\r\nCSeq: 1\r\n\r\n"
	_, err := ReadRequest(bufio.NewReader(bytes.NewReader([]byte(raw))))
	require.Error(t, err)
}
