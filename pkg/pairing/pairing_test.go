package pairing

import (
	"math/big"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/openairplay/airplay/pkg/crypto"
	"github.com/openairplay/airplay/pkg/crypto/srp"
)

// pinVerifier is a test Verifier backed by a single fixed PIN, mirroring how
// an accessory derives its SRP verifier from a short numeric setup code.
type pinVerifier struct {
	salt     []byte
	verifier *big.Int
}

func newPINVerifier(t *testing.T, pin string) *pinVerifier {
	t.Helper()
	salt, err := crypto.RandomBytes(16)
	require.NoError(t, err)
	x := srp.ComputeX(DefaultSRPIdentity, []byte(pin), salt)
	v := srp.ComputeVerifier(srp.Group2048, x)
	return &pinVerifier{salt: salt, verifier: v}
}

func (p *pinVerifier) Lookup(_ []byte) ([]byte, *big.Int, error) {
	return p.salt, p.verifier, nil
}

// runTransientExchange drives a client/server pair-setup exchange to
// completion (or failure), feeding each side's output directly into the
// other with no network in between.
func runTransientExchange(t *testing.T, client *SetupClient, server *SetupServer) (*StepResult, *StepResult) {
	t.Helper()

	clientStep, err := client.Start()
	require.NoError(t, err)

	var lastClient, lastServer *StepResult
	request := clientStep.Data
	for {
		serverStep, err := server.Step(request)
		require.NoError(t, err)
		lastServer = serverStep
		if serverStep.Kind != StepSendData && serverStep.Data == nil {
			return lastClient, lastServer
		}

		// A terminal server step may still carry a final body (M4, M6 or
		// an error TLV) that the client has to process.
		clientStep, err := client.Step(serverStep.Data)
		require.NoError(t, err)
		lastClient = clientStep
		if clientStep.Kind != StepSendData || serverStep.Kind != StepSendData {
			return lastClient, lastServer
		}
		request = clientStep.Data
	}
}

func TestTransientPairSetupCorrectPIN(t *testing.T) {
	verifier := newPINVerifier(t, "3939")
	client := NewSetupClient(DefaultSRPIdentity, []byte("3939"))
	server := NewSetupServer(verifier)

	clientResult, serverResult := runTransientExchange(t, client, server)

	require.Equal(t, StepComplete, clientResult.Kind)
	require.Equal(t, StepComplete, serverResult.Kind)
	require.NotNil(t, clientResult.SessionKeys)
	require.NotNil(t, serverResult.SessionKeys)

	// The controller's send key must equal the accessory's recv key and
	// vice versa, since DeriveSessionKeys mirrors the two directions.
	require.Equal(t, clientResult.SessionKeys.SendKey, serverResult.SessionKeys.RecvKey)
	require.Equal(t, clientResult.SessionKeys.RecvKey, serverResult.SessionKeys.SendKey)
}

func TestTransientPairSetupWrongPINFails(t *testing.T) {
	verifier := newPINVerifier(t, "3939")
	client := NewSetupClient(DefaultSRPIdentity, []byte("0000"))
	server := NewSetupServer(verifier)

	clientResult, serverResult := runTransientExchange(t, client, server)

	require.Equal(t, StepFailed, clientResult.Kind)
	require.ErrorIs(t, clientResult.Err, ErrProofMismatch)
	require.Equal(t, StepFailed, serverResult.Kind)
}

func TestPersistentPairSetupThenVerify(t *testing.T) {
	verifier := newPINVerifier(t, "3939")

	controllerLongTerm, err := crypto.GenerateEd25519KeyPair()
	require.NoError(t, err)
	accessoryLongTerm, err := crypto.GenerateEd25519KeyPair()
	require.NoError(t, err)

	store, err := NewFileStore(t.TempDir())
	require.NoError(t, err)

	client := NewSetupClient(DefaultSRPIdentity, []byte("3939")).WithLongTermIdentity(controllerLongTerm)
	server := NewSetupServer(verifier).WithLongTermIdentity(accessoryLongTerm, store, []byte("accessory-1"))

	clientResult, serverResult := runTransientExchange(t, client, server)
	require.Equal(t, StepComplete, clientResult.Kind)
	require.Equal(t, StepComplete, serverResult.Kind)
	require.NotNil(t, clientResult.Persistent)
	require.NotNil(t, serverResult.Persistent)

	stored, err := store.Load(string(DefaultSRPIdentity))
	require.NoError(t, err)
	require.Equal(t, controllerLongTerm.Public, stored.PeerPublic)

	// Reconnect via pair-verify only, skipping pair-setup entirely.
	verifyClient := NewVerifyClient(clientResult.Persistent)
	verifyServer := NewVerifyServer(serverResult.Persistent, func(identifier string) (*PersistentKeys, error) {
		require.Equal(t, string(DefaultSRPIdentity), identifier)
		return store.Load(identifier)
	})

	startResult, err := verifyClient.Start()
	require.NoError(t, err)
	require.Equal(t, StepSendData, startResult.Kind)

	m2, err := verifyServer.Step(startResult.Data)
	require.NoError(t, err)
	require.Equal(t, StepSendData, m2.Kind)

	m3, err := verifyClient.Step(m2.Data)
	require.NoError(t, err)
	require.Equal(t, StepSendData, m3.Kind)

	m4, err := verifyServer.Step(m3.Data)
	require.NoError(t, err)
	require.Equal(t, StepComplete, m4.Kind)
	require.NotNil(t, m4.SessionKeys)

	done, err := verifyClient.Step(m4.Data)
	require.NoError(t, err)
	require.Equal(t, StepComplete, done.Kind)
	require.NotNil(t, done.SessionKeys)

	require.Equal(t, done.SessionKeys.SendKey, m4.SessionKeys.RecvKey)
	require.Equal(t, done.SessionKeys.RecvKey, m4.SessionKeys.SendKey)
}
