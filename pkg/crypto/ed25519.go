package crypto

import (
	"crypto/ed25519"
	"crypto/rand"
	"fmt"
)

// Ed25519KeyPair is a persistent long-term identity key pair.
type Ed25519KeyPair struct {
	Public  ed25519.PublicKey
	Private ed25519.PrivateKey
}

// GenerateEd25519KeyPair creates a fresh long-term identity key pair.
func GenerateEd25519KeyPair() (*Ed25519KeyPair, error) {
	pub, priv, err := ed25519.GenerateKey(rand.Reader)
	if err != nil {
		return nil, fmt.Errorf("crypto: ed25519 generate: %w", err)
	}
	return &Ed25519KeyPair{Public: pub, Private: priv}, nil
}

// Sign signs message with the long-term private key.
func (kp *Ed25519KeyPair) Sign(message []byte) []byte {
	return ed25519.Sign(kp.Private, message)
}

// Ed25519Verify verifies a signature against a public key.
func Ed25519Verify(publicKey ed25519.PublicKey, message, signature []byte) bool {
	return ed25519.Verify(publicKey, message, signature)
}
