package receiver

import (
	"math/big"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/openairplay/airplay/pkg/crypto"
	"github.com/openairplay/airplay/pkg/crypto/srp"
	"github.com/openairplay/airplay/pkg/pairing"
)

type pinVerifier struct {
	salt     []byte
	verifier *big.Int
}

func newPINVerifier(t *testing.T, pin string) *pinVerifier {
	t.Helper()
	salt, err := crypto.RandomBytes(16)
	require.NoError(t, err)
	x := srp.ComputeX(pairing.DefaultSRPIdentity, []byte(pin), salt)
	v := srp.ComputeVerifier(srp.Group2048, x)
	return &pinVerifier{salt: salt, verifier: v}
}

func (p *pinVerifier) Lookup(_ []byte) ([]byte, *big.Int, error) {
	return p.salt, p.verifier, nil
}

func TestStateMachineRejectsOutOfOrderAnnounce(t *testing.T) {
	require.NoError(t, checkState(StateOptionsHandled, StateOptionsHandled))
	require.Error(t, checkState(StateIdle, StateOptionsHandled))
}

func TestPairingRouterTransientSetup(t *testing.T) {
	verifier := newPINVerifier(t, "3939")
	identity := &Identity{SRPVerifier: verifier}
	router := newPairingRouter(identity)

	client := pairing.NewSetupClient(pairing.DefaultSRPIdentity, []byte("3939"))
	clientStep, err := client.Start()
	require.NoError(t, err)

	request := clientStep.Data
	var serverKeys *crypto.SessionKeys
	for {
		respBody, keys, err := router.Handle("/pair-setup", request)
		require.NoError(t, err)
		if keys != nil {
			serverKeys = keys
		}

		clientStep, err = client.Step(respBody)
		require.NoError(t, err)
		if clientStep.Kind != pairing.StepSendData {
			require.Equal(t, pairing.StepComplete, clientStep.Kind)
			require.NotNil(t, serverKeys)
			require.Equal(t, clientStep.SessionKeys.SendKey, serverKeys.RecvKey)
			return
		}
		request = clientStep.Data
	}
}

func TestPairingRouterUnknownPath(t *testing.T) {
	router := newPairingRouter(&Identity{})
	_, _, err := router.Handle("/pair-nonsense", nil)
	require.Error(t, err)
}
