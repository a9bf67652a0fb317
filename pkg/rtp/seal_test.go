package rtp

import (
	"bytes"
	"crypto/rand"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestSealAP2RoundTrip(t *testing.T) {
	var shk [32]byte
	_, err := rand.Read(shk[:])
	require.NoError(t, err)

	plain := []byte("airplay audio payload")
	ct, err := SealAP2(shk, 42, 10000, plain)
	require.NoError(t, err)
	require.NotEqual(t, plain, ct)

	got, err := OpenAP2(shk, 42, 10000, ct)
	require.NoError(t, err)
	require.Equal(t, plain, got)
}

func TestSealAP2WrongSequenceFails(t *testing.T) {
	var shk [32]byte
	_, err := rand.Read(shk[:])
	require.NoError(t, err)

	ct, err := SealAP2(shk, 42, 10000, []byte("payload"))
	require.NoError(t, err)

	_, err = OpenAP2(shk, 43, 10000, ct)
	require.Error(t, err)
}

func TestAP1CipherRoundTrip(t *testing.T) {
	key := bytes.Repeat([]byte{0x11}, 16)
	iv := bytes.Repeat([]byte{0x00}, 16)

	enc, err := NewAP1Cipher(key, iv)
	require.NoError(t, err)
	dec, err := NewAP1Cipher(key, iv)
	require.NoError(t, err)

	plain1 := bytes.Repeat([]byte{0xAB}, 32)
	ct1 := enc.Process(plain1)
	got1 := dec.Process(ct1)
	require.Equal(t, plain1, got1)

	// second packet must use an advanced IV, not reuse the first block.
	plain2 := bytes.Repeat([]byte{0xCD}, 16)
	ct2 := enc.Process(plain2)
	got2 := dec.Process(ct2)
	require.Equal(t, plain2, got2)
}
