package crypto

import (
	"crypto/rand"
	"crypto/rsa"
	"testing"
)

func generateTestRSAKey(t *testing.T) (*rsa.PrivateKey, error) {
	t.Helper()
	return rsa.GenerateKey(rand.Reader, 2048)
}
