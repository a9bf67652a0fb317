package crypto

import (
	"crypto/rand"
	"crypto/rsa"
	"crypto/sha1" //nolint:gosec // RSA-OAEP/SHA-1 is what RAOP receivers require
	"fmt"
)

// RSAOAEPEncrypt encrypts the AES key/IV pair carried in a RAOP ANNOUNCE
// body to the receiver's RSA public key. RAOP receivers use a SHA-1 OAEP
// hash and an empty label.
func RSAOAEPEncrypt(pub *rsa.PublicKey, plaintext []byte) ([]byte, error) {
	out, err := rsa.EncryptOAEP(sha1.New(), rand.Reader, pub, plaintext, nil)
	if err != nil {
		return nil, fmt.Errorf("crypto: rsa-oaep encrypt: %w", err)
	}
	return out, nil
}

// RSAOAEPDecrypt decrypts a RAOP rsaaeskey blob with the receiver's private
// key.
func RSAOAEPDecrypt(priv *rsa.PrivateKey, ciphertext []byte) ([]byte, error) {
	out, err := rsa.DecryptOAEP(sha1.New(), rand.Reader, priv, ciphertext, nil)
	if err != nil {
		return nil, fmt.Errorf("crypto: rsa-oaep decrypt: %w", err)
	}
	return out, nil
}
