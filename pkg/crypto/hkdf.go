package crypto

import (
	"crypto/sha512"
	"fmt"
	"io"

	"golang.org/x/crypto/hkdf"
)

// DeriveKey runs HKDF-SHA-512 over secret with the given salt/info labels
// and returns size derived bytes.
func DeriveKey(secret, salt, info []byte, size int) ([]byte, error) {
	reader := hkdf.New(sha512.New, secret, salt, info)
	out := make([]byte, size)
	if _, err := io.ReadFull(reader, out); err != nil {
		return nil, fmt.Errorf("crypto: hkdf derive: %w", err)
	}
	return out, nil
}

// DeriveSessionKeys derives the send/recv ChaCha20-Poly1305 keys for the
// control channel from a shared secret, using distinct HKDF info labels
// for each direction so that both ends agree which key is "send" and which
// is "recv" (the controller's write key is the accessory's read key, and
// vice versa).
func DeriveSessionKeys(sharedSecret []byte, salt string, isController bool) (*SessionKeys, error) {
	writeInfo, readInfo := ControlWriteInfo, ControlReadInfo

	writeKey, err := DeriveKey(sharedSecret, []byte(salt), []byte(writeInfo), KeySize)
	if err != nil {
		return nil, err
	}
	readKey, err := DeriveKey(sharedSecret, []byte(salt), []byte(readInfo), KeySize)
	if err != nil {
		return nil, err
	}

	keys := &SessionKeys{}
	if isController {
		copy(keys.SendKey[:], writeKey)
		copy(keys.RecvKey[:], readKey)
	} else {
		copy(keys.SendKey[:], readKey)
		copy(keys.RecvKey[:], writeKey)
	}
	return keys, nil
}
