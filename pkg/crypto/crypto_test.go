package crypto

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestX25519SharedSecretAgrees(t *testing.T) {
	a, err := GenerateX25519KeyPair()
	require.NoError(t, err)
	b, err := GenerateX25519KeyPair()
	require.NoError(t, err)

	sharedA, err := X25519SharedSecret(a.Private, b.Public)
	require.NoError(t, err)
	sharedB, err := X25519SharedSecret(b.Private, a.Public)
	require.NoError(t, err)

	require.Equal(t, sharedA, sharedB)
}

func TestEd25519SignVerify(t *testing.T) {
	kp, err := GenerateEd25519KeyPair()
	require.NoError(t, err)

	msg := []byte("pair-verify M2 payload")
	sig := kp.Sign(msg)
	require.True(t, Ed25519Verify(kp.Public, msg, sig))
	require.False(t, Ed25519Verify(kp.Public, []byte("tampered"), sig))
}

func TestDeriveSessionKeysAreMirrored(t *testing.T) {
	shared := []byte("shared-secret-from-x25519-exchange-32bytes!!")

	controllerKeys, err := DeriveSessionKeys(shared, PairVerifyEncryptSalt, true)
	require.NoError(t, err)
	accessoryKeys, err := DeriveSessionKeys(shared, PairVerifyEncryptSalt, false)
	require.NoError(t, err)

	// One side's send key must equal the other side's recv key.
	require.Equal(t, controllerKeys.SendKey, accessoryKeys.RecvKey)
	require.Equal(t, controllerKeys.RecvKey, accessoryKeys.SendKey)
}

func TestNonceCounterExhaustionIsRejected(t *testing.T) {
	keys := &SessionKeys{}
	keys.sendNonce = ^uint64(0)
	_, err := keys.NextSendNonce()
	require.Error(t, err)
}

func TestAESCTRRoundTrip(t *testing.T) {
	kv, err := GenerateAESCTRKeyIV()
	require.NoError(t, err)

	plaintext := make([]byte, 352*2*2) // one RAOP frame of 16-bit stereo PCM
	for i := range plaintext {
		plaintext[i] = byte(i)
	}

	encStream, err := AESCTRStream(kv.Key, kv.IV, 0)
	require.NoError(t, err)
	ciphertext := make([]byte, len(plaintext))
	encStream.XORKeyStream(ciphertext, plaintext)

	decStream, err := AESCTRStream(kv.Key, kv.IV, 0)
	require.NoError(t, err)
	decoded := make([]byte, len(plaintext))
	decStream.XORKeyStream(decoded, ciphertext)

	require.Equal(t, plaintext, decoded)
}

func TestRSAOAEPRoundTrip(t *testing.T) {
	priv, err := generateTestRSAKey(t)
	require.NoError(t, err)

	plaintext := []byte("0123456789abcdef0123456789abcdef") // AES-128 key + IV
	ciphertext, err := RSAOAEPEncrypt(&priv.PublicKey, plaintext)
	require.NoError(t, err)

	decrypted, err := RSAOAEPDecrypt(priv, ciphertext)
	require.NoError(t, err)
	require.Equal(t, plaintext, decrypted)
}
