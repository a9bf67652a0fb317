package rtp

import (
	"crypto/aes"
	"crypto/cipher"
	"encoding/binary"
	"fmt"

	"golang.org/x/crypto/chacha20poly1305"
)

// SealAP2 encrypts an AP2 audio payload under the stream's shk
// (negotiated in SETUP phase 2), using a nonce built from the packet's
// sequence number and timestamp.
//
// Open question: two candidate nonce encodings exist in
// public sources. This module implements the big-endian
// seq(2 bytes)||timestamp(4 bytes) packed into the last 6 bytes of the
// 12-byte ChaCha20-Poly1305 nonce (first 6 bytes zero), documented as the
// chosen candidate pending validation against a reference receiver; see
// DESIGN.md.
func SealAP2(shk [32]byte, seq uint16, timestamp uint32, plaintext []byte) ([]byte, error) {
	aead, err := chacha20poly1305.New(shk[:])
	if err != nil {
		return nil, fmt.Errorf("rtp: new aead: %w", err)
	}
	nonce := ap2Nonce(seq, timestamp)
	return aead.Seal(nil, nonce[:], plaintext, nil), nil
}

// OpenAP2 decrypts an AP2 audio payload sealed by SealAP2.
func OpenAP2(shk [32]byte, seq uint16, timestamp uint32, ciphertext []byte) ([]byte, error) {
	aead, err := chacha20poly1305.New(shk[:])
	if err != nil {
		return nil, fmt.Errorf("rtp: new aead: %w", err)
	}
	nonce := ap2Nonce(seq, timestamp)
	plain, err := aead.Open(nil, nonce[:], ciphertext, nil)
	if err != nil {
		return nil, fmt.Errorf("rtp: aead authentication failed")
	}
	return plain, nil
}

func ap2Nonce(seq uint16, timestamp uint32) [chacha20poly1305.NonceSize]byte {
	var nonce [chacha20poly1305.NonceSize]byte
	binary.BigEndian.PutUint16(nonce[6:8], seq)
	binary.BigEndian.PutUint32(nonce[8:12], timestamp)
	return nonce
}

// AP1Cipher seals/opens RAOP (AirPlay 1) audio payloads with
// AES-128-CTR. The key and initial IV are carried in the ANNOUNCE SDP
// body (rsaaeskey/aesiv); the IV advances per packet by the number of
// 16-byte blocks already consumed, since RAOP uses one continuous
// keystream across the whole stream rather than resetting per packet.
type AP1Cipher struct {
	block     cipher.Block
	baseIV    [aes.BlockSize]byte
	blocksUsed uint64
}

// NewAP1Cipher builds an AP1Cipher from the 128-bit key/IV pair carried
// in the ANNOUNCE body.
func NewAP1Cipher(key, iv []byte) (*AP1Cipher, error) {
	if len(key) != 16 {
		return nil, fmt.Errorf("rtp: AES-128 key must be 16 bytes, got %d", len(key))
	}
	if len(iv) != aes.BlockSize {
		return nil, fmt.Errorf("rtp: AES IV must be %d bytes, got %d", aes.BlockSize, len(iv))
	}
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, fmt.Errorf("rtp: new AES cipher: %w", err)
	}
	c := &AP1Cipher{block: block}
	copy(c.baseIV[:], iv)
	return c, nil
}

// Process encrypts (or decrypts; CTR mode is symmetric) one packet's
// payload and advances the running block counter by the number of
// 16-byte blocks it consumed.
func (c *AP1Cipher) Process(payload []byte) []byte {
	iv := advanceCTR(c.baseIV, c.blocksUsed)
	stream := cipher.NewCTR(c.block, iv[:])
	out := make([]byte, len(payload))
	stream.XORKeyStream(out, payload)
	blocks := (len(payload) + aes.BlockSize - 1) / aes.BlockSize
	c.blocksUsed += uint64(blocks)
	return out
}

// advanceCTR returns the IV counter value after skipping the given number
// of AES blocks, treating the 16-byte IV as a big-endian integer counter
// as AES-CTR does.
func advanceCTR(base [aes.BlockSize]byte, blocks uint64) [aes.BlockSize]byte {
	var out [aes.BlockSize]byte
	copy(out[:], base[:])
	carry := blocks
	for i := len(out) - 1; i >= 0 && carry > 0; i-- {
		sum := uint64(out[i]) + carry
		out[i] = byte(sum)
		carry = sum >> 8
	}
	return out
}
