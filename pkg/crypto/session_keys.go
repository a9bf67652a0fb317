// Package crypto implements the cryptographic primitives used by the
// pairing and RTSP/RTP security layers: SRP-6a, Ed25519, X25519,
// HKDF-SHA-512, ChaCha20-Poly1305, AES-128-CTR/GCM, and RSA-OAEP.
package crypto

import (
	"crypto/rand"
	"fmt"

	"golang.org/x/crypto/chacha20poly1305"
)

// KeySize is the size in bytes of a ChaCha20-Poly1305 session key.
const KeySize = chacha20poly1305.KeySize

// SessionKeys is the ephemeral bidirectional key pair produced by a
// completed pairing exchange.
type SessionKeys struct {
	SendKey [KeySize]byte
	RecvKey [KeySize]byte

	sendNonce uint64
	recvNonce uint64
}

// NextSendNonce returns the next outbound nonce counter and advances it.
// The nonce counter monotonically increments per frame and must never be
// reused under a given key.
func (k *SessionKeys) NextSendNonce() (uint64, error) {
	if k.sendNonce == ^uint64(0) {
		return 0, fmt.Errorf("crypto: send nonce counter exhausted, re-pair required")
	}
	n := k.sendNonce
	k.sendNonce++
	return n, nil
}

// NextRecvNonce returns the next expected inbound nonce counter and
// advances it.
func (k *SessionKeys) NextRecvNonce() (uint64, error) {
	if k.recvNonce == ^uint64(0) {
		return 0, fmt.Errorf("crypto: recv nonce counter exhausted, re-pair required")
	}
	n := k.recvNonce
	k.recvNonce++
	return n, nil
}

// RandomBytes returns n cryptographically random bytes.
func RandomBytes(n int) ([]byte, error) {
	b := make([]byte, n)
	if _, err := rand.Read(b); err != nil {
		return nil, fmt.Errorf("crypto: rand: %w", err)
	}
	return b, nil
}
