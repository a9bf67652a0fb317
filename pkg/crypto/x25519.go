package crypto

import (
	"fmt"

	"golang.org/x/crypto/curve25519"
)

// X25519KeyPair is an ephemeral Curve25519 key pair used during pair-verify.
type X25519KeyPair struct {
	Public  [32]byte
	Private [32]byte
}

// GenerateX25519KeyPair creates a fresh ephemeral key pair.
func GenerateX25519KeyPair() (*X25519KeyPair, error) {
	var priv [32]byte
	b, err := RandomBytes(32)
	if err != nil {
		return nil, err
	}
	copy(priv[:], b)

	pub, err := curve25519.X25519(priv[:], curve25519.Basepoint)
	if err != nil {
		return nil, fmt.Errorf("crypto: x25519 generate: %w", err)
	}

	kp := &X25519KeyPair{Private: priv}
	copy(kp.Public[:], pub)
	return kp, nil
}

// X25519SharedSecret computes the ECDH shared secret between a local
// private key and a peer's public key.
func X25519SharedSecret(privateKey, peerPublicKey [32]byte) ([32]byte, error) {
	shared, err := curve25519.X25519(privateKey[:], peerPublicKey[:])
	if err != nil {
		return [32]byte{}, fmt.Errorf("crypto: x25519 shared secret: %w", err)
	}
	var out [32]byte
	copy(out[:], shared)
	return out, nil
}
