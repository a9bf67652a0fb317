package crypto

import (
	"fmt"

	"golang.org/x/crypto/chacha20poly1305"
)

// SealWithLabel encrypts one pairing sub-TLV payload (the M5/M6 "encrypted
// data" blob and the pair-verify M3 blob) under key, using the fixed
// 8-character ASCII nonce label conventional for these one-shot messages
// (e.g. "PS-Msg05"), zero-padded to the AEAD's 96-bit nonce size. Each label
// is used at most once per derived key, so reuse is safe only because the
// pairing state machine never calls this twice with the same (key, label)
// pair.
func SealWithLabel(key [KeySize]byte, label string, plaintext []byte) ([]byte, error) {
	aead, err := chacha20poly1305.New(key[:])
	if err != nil {
		return nil, fmt.Errorf("crypto: new aead: %w", err)
	}
	nonce := labelNonce(label)
	return aead.Seal(nil, nonce[:], plaintext, nil), nil
}

// OpenWithLabel decrypts a blob sealed by SealWithLabel.
func OpenWithLabel(key [KeySize]byte, label string, ciphertext []byte) ([]byte, error) {
	aead, err := chacha20poly1305.New(key[:])
	if err != nil {
		return nil, fmt.Errorf("crypto: new aead: %w", err)
	}
	nonce := labelNonce(label)
	plain, err := aead.Open(nil, nonce[:], ciphertext, nil)
	if err != nil {
		return nil, fmt.Errorf("crypto: open sealed pairing blob %q: %w", label, err)
	}
	return plain, nil
}

func labelNonce(label string) [chacha20poly1305.NonceSize]byte {
	var nonce [chacha20poly1305.NonceSize]byte
	copy(nonce[:], label)
	return nonce
}
