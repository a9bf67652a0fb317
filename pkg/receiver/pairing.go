package receiver

import (
	"github.com/openairplay/airplay/internal/liberrors"
	"github.com/openairplay/airplay/pkg/crypto"
	"github.com/openairplay/airplay/pkg/pairing"
)

const (
	pathPairSetup  = "/pair-setup"
	pathPairVerify = "/pair-verify"
)

// Identity is an accessory's long-term pairing material: its own Ed25519
// keypair plus the SRP account used for first-time pair-setup.
type Identity struct {
	LongTerm    *crypto.Ed25519KeyPair
	ServerID    []byte
	SRPVerifier pairing.Verifier
	Store       pairing.Store
}

// ours adapts LongTerm to the PersistentKeys shape pair-verify expects for
// the accessory's own side of the exchange.
func (id *Identity) ours() *pairing.PersistentKeys {
	if id.LongTerm == nil {
		return nil
	}
	return &pairing.PersistentKeys{
		OurPublic:     id.LongTerm.Public,
		OurPrivate:    id.LongTerm.Private,
		OurIdentifier: string(id.ServerID),
	}
}

// pairingRouter drives both pair-setup and pair-verify for one connection,
// dispatching a POST by URL path.
type pairingRouter struct {
	identity *Identity

	setup  *pairing.SetupServer
	verify *pairing.VerifyServer
}

func newPairingRouter(identity *Identity) *pairingRouter {
	return &pairingRouter{identity: identity}
}

// Handle processes one POST body for path, returning the response body to
// send back and, once pair-verify completes, the negotiated SessionKeys.
func (r *pairingRouter) Handle(path string, body []byte) (respBody []byte, keys *crypto.SessionKeys, err error) {
	switch path {
	case pathPairSetup:
		if r.setup == nil {
			r.setup = pairing.NewSetupServer(r.identity.SRPVerifier)
			if r.identity.LongTerm != nil {
				r.setup = r.setup.WithLongTermIdentity(r.identity.LongTerm, r.identity.Store, r.identity.ServerID)
			}
		}
		step, err := r.setup.Step(body)
		if err != nil {
			return nil, nil, liberrors.Security("PAIR_SETUP_FAILED", "advance pair-setup", err)
		}
		return stepResponse(step)
	case pathPairVerify:
		if r.verify == nil {
			r.verify = pairing.NewVerifyServer(r.identity.ours(), r.lookupPeer)
		}
		step, err := r.verify.Step(body)
		if err != nil {
			return nil, nil, liberrors.Security("PAIR_VERIFY_FAILED", "advance pair-verify", err)
		}
		return stepResponse(step)
	default:
		return nil, nil, liberrors.Protocol("UNKNOWN_PAIRING_PATH", "unrecognized pairing endpoint "+path, nil)
	}
}

func (r *pairingRouter) lookupPeer(identifier string) (*pairing.PersistentKeys, error) {
	if r.identity.Store == nil {
		return nil, pairing.ErrNotFound
	}
	return r.identity.Store.Load(identifier)
}

func stepResponse(step *pairing.StepResult) ([]byte, *crypto.SessionKeys, error) {
	switch step.Kind {
	case pairing.StepSendData:
		return step.Data, nil, nil
	case pairing.StepComplete:
		// step.Data still carries the final response body (e.g. pair-setup's
		// M4 proof) even though the exchange is complete on this side.
		return step.Data, step.SessionKeys, nil
	default:
		// step.Data may carry an error TLV body the peer expects even on
		// failure (e.g. pair-setup's M4 authentication-failure reply).
		return step.Data, nil, step.Err
	}
}
