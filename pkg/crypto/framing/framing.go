// Package framing implements the ChaCha20-Poly1305 encrypted segment framing
// used for the AirPlay 2 control channel and event channel once pair-verify
// completes.
package framing

import (
	"encoding/binary"
	"fmt"

	"golang.org/x/crypto/chacha20poly1305"

	"github.com/openairplay/airplay/pkg/crypto"
)

// MaxSegmentSize is the maximum plaintext size of one encrypted segment.
const MaxSegmentSize = 1024

// TagSize is the size of the Poly1305 authentication tag.
const TagSize = chacha20poly1305.Overhead

// EncryptSegment seals one plaintext segment (at most MaxSegmentSize bytes)
// under key with the given little-endian nonce counter. The wire frame is
// exactly len(plaintext)_be16 || ciphertext || tag16, with the length
// prefix used as AEAD associated data.
func EncryptSegment(key [crypto.KeySize]byte, counter uint64, plaintext []byte) ([]byte, error) {
	if len(plaintext) > MaxSegmentSize {
		return nil, fmt.Errorf("framing: segment of %d bytes exceeds max %d", len(plaintext), MaxSegmentSize)
	}
	aead, err := chacha20poly1305.New(key[:])
	if err != nil {
		return nil, fmt.Errorf("framing: new aead: %w", err)
	}

	var lenPrefix [2]byte
	binary.BigEndian.PutUint16(lenPrefix[:], uint16(len(plaintext)))

	nonce := nonceFor(counter)
	sealed := aead.Seal(nil, nonce[:], plaintext, lenPrefix[:])

	out := make([]byte, 0, 2+len(sealed))
	out = append(out, lenPrefix[:]...)
	out = append(out, sealed...)
	return out, nil
}

// DecryptSegment opens one encoded segment (len_be16 || ciphertext || tag16)
// and returns the plaintext plus the number of frame bytes consumed. It
// returns an error if fewer than a full frame is present in buf, or if
// authentication fails.
func DecryptSegment(key [crypto.KeySize]byte, counter uint64, buf []byte) (plaintext []byte, consumed int, err error) {
	if len(buf) < 2 {
		return nil, 0, errShortFrame
	}
	plainLen := int(binary.BigEndian.Uint16(buf[:2]))
	frameLen := 2 + plainLen + TagSize
	if len(buf) < frameLen {
		return nil, 0, errShortFrame
	}

	aead, err := chacha20poly1305.New(key[:])
	if err != nil {
		return nil, 0, fmt.Errorf("framing: new aead: %w", err)
	}

	nonce := nonceFor(counter)
	plain, err := aead.Open(nil, nonce[:], buf[2:frameLen], buf[:2])
	if err != nil {
		return nil, 0, fmt.Errorf("framing: decrypt: %w", errAuthFailed)
	}
	return plain, frameLen, nil
}

func nonceFor(counter uint64) [chacha20poly1305.NonceSize]byte {
	var nonce [chacha20poly1305.NonceSize]byte
	binary.LittleEndian.PutUint64(nonce[4:], counter)
	return nonce
}

var errShortFrame = fmt.Errorf("framing: incomplete frame")
var errAuthFailed = fmt.Errorf("aead authentication failed")
