package framing

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/openairplay/airplay/pkg/crypto"
)

func TestEncryptSegmentShape(t *testing.T) {
	var key [crypto.KeySize]byte
	for i := range key {
		key[i] = byte(i)
	}
	plaintext := []byte("GET /info RTSP/1.0\r\n\r\n")

	frame, err := EncryptSegment(key, 0, plaintext)
	require.NoError(t, err)
	require.Equal(t, 2+len(plaintext)+TagSize, len(frame))

	plain, consumed, err := DecryptSegment(key, 0, frame)
	require.NoError(t, err)
	require.Equal(t, len(frame), consumed)
	require.Equal(t, plaintext, plain)
}

func TestDecryptSegmentRejectsTamperedBytes(t *testing.T) {
	var key [crypto.KeySize]byte
	frame, err := EncryptSegment(key, 0, []byte("hello"))
	require.NoError(t, err)

	tampered := append([]byte(nil), frame...)
	tampered[len(tampered)-1] ^= 0x01
	_, _, err = DecryptSegment(key, 0, tampered)
	require.Error(t, err)

	tamperedCiphertext := append([]byte(nil), frame...)
	tamperedCiphertext[3] ^= 0x01
	_, _, err = DecryptSegment(key, 0, tamperedCiphertext)
	require.Error(t, err)
}

func TestReaderReassemblesAcrossFeeds(t *testing.T) {
	var key [crypto.KeySize]byte
	keys := &crypto.SessionKeys{SendKey: key, RecvKey: key}

	msg := make([]byte, MaxSegmentSize*2+10)
	for i := range msg {
		msg[i] = byte(i)
	}
	encoded, err := EncryptMessage(keys, msg)
	require.NoError(t, err)

	// reset recv nonce to mirror the sender's starting counter
	recvKeys := &crypto.SessionKeys{SendKey: key, RecvKey: key}
	r := NewReader(recvKeys)

	var out []byte
	for _, chunk := range splitRandomly(encoded) {
		r.Feed(chunk)
		for {
			plain, ok, err := r.Next()
			require.NoError(t, err)
			if !ok {
				break
			}
			out = append(out, plain...)
		}
	}
	require.Equal(t, msg, out)
}

func splitRandomly(b []byte) [][]byte {
	var out [][]byte
	step := 7
	for i := 0; i < len(b); i += step {
		end := i + step
		if end > len(b) {
			end = len(b)
		}
		out = append(out, b[i:end])
	}
	return out
}
