package crypto

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"fmt"
)

// AESCTRKeyIV is the 128-bit key and IV carried in a RAOP ANNOUNCE body
// (rsaaeskey/aesiv), used to seal AP1 audio payloads.
type AESCTRKeyIV struct {
	Key [16]byte
	IV  [16]byte
}

// GenerateAESCTRKeyIV creates a fresh random AES-128 key and IV for a new
// RAOP stream.
func GenerateAESCTRKeyIV() (*AESCTRKeyIV, error) {
	kv := &AESCTRKeyIV{}
	if _, err := rand.Read(kv.Key[:]); err != nil {
		return nil, fmt.Errorf("crypto: aes key: %w", err)
	}
	if _, err := rand.Read(kv.IV[:]); err != nil {
		return nil, fmt.Errorf("crypto: aes iv: %w", err)
	}
	return kv, nil
}

// AESCTRStream seals/opens a RAOP audio payload stream. RAOP advances the
// IV by the number of complete 16-byte blocks already processed rather than
// keeping a running cipher.Stream across packet boundaries, so AESCTRStream
// is called per packet with the block offset.
func AESCTRStream(key, iv [16]byte, blockOffset uint64) (cipher.Stream, error) {
	block, err := aes.NewCipher(key[:])
	if err != nil {
		return nil, fmt.Errorf("crypto: aes cipher: %w", err)
	}
	ctrIV := advanceCTRIV(iv, blockOffset)
	return cipher.NewCTR(block, ctrIV[:]), nil
}

// advanceCTRIV returns the IV advanced by blockOffset 16-byte blocks,
// treating the 16-byte IV as a big-endian counter as RAOP does.
func advanceCTRIV(iv [16]byte, blockOffset uint64) [16]byte {
	out := iv
	carry := blockOffset
	for i := 15; i >= 0 && carry > 0; i-- {
		sum := uint64(out[i]) + carry
		out[i] = byte(sum)
		carry = sum >> 8
	}
	return out
}

// AESGCMSeal seals plaintext with AES-128-GCM, used for some AP2
// event-channel messages. The nonce must be 12 bytes.
func AESGCMSeal(key [16]byte, nonce, plaintext, aad []byte) ([]byte, error) {
	block, err := aes.NewCipher(key[:])
	if err != nil {
		return nil, fmt.Errorf("crypto: aes-gcm cipher: %w", err)
	}
	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return nil, fmt.Errorf("crypto: aes-gcm: %w", err)
	}
	return gcm.Seal(nil, nonce, plaintext, aad), nil
}

// AESGCMOpen opens an AES-128-GCM sealed message.
func AESGCMOpen(key [16]byte, nonce, ciphertext, aad []byte) ([]byte, error) {
	block, err := aes.NewCipher(key[:])
	if err != nil {
		return nil, fmt.Errorf("crypto: aes-gcm cipher: %w", err)
	}
	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return nil, fmt.Errorf("crypto: aes-gcm: %w", err)
	}
	out, err := gcm.Open(nil, nonce, ciphertext, aad)
	if err != nil {
		return nil, fmt.Errorf("crypto: aes-gcm open: %w", err)
	}
	return out, nil
}
