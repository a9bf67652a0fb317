package pairing

import (
	"crypto/ed25519"
	"fmt"
	"math/big"

	"github.com/openairplay/airplay/pkg/crypto"
	"github.com/openairplay/airplay/pkg/crypto/srp"
	"github.com/openairplay/airplay/pkg/tlv8"
)

// DefaultSRPIdentity is the fixed SRP identity string used by pair-setup;
// unlike a username/password system, AirPlay pairing authenticates a shared
// setup PIN rather than a per-account identity, so every exchange uses this
// constant and the distinguishing "identity" is exchanged later, inside the
// M5/M6 encrypted payload.
var DefaultSRPIdentity = []byte("Pair-Setup")

// SetupServer drives the accessory side of pair-setup.
type SetupServer struct {
	state      State
	awaitingM5 bool

	verifier Verifier
	longTerm *crypto.Ed25519KeyPair
	store    Store
	serverID []byte

	salt       []byte
	group      *srp.Group
	ephemeral  *srp.ServerEphemeral
	A          *big.Int
	B          *big.Int
	premaster  *big.Int
	clientM1   *big.Int
	serverM2   *big.Int
	encryptKey [crypto.KeySize]byte
}

// NewSetupServer creates a transient-only pair-setup responder backed by
// verifier for SRP salt/verifier lookup.
func NewSetupServer(verifier Verifier) *SetupServer {
	return &SetupServer{
		state:    StateIdle,
		verifier: verifier,
		group:    srp.Group2048,
	}
}

// WithLongTermIdentity enables persistent pair-setup (M5/M6), storing the
// resulting peer identity under serverID's own long-term key pair.
func (s *SetupServer) WithLongTermIdentity(longTerm *crypto.Ed25519KeyPair, store Store, serverID []byte) *SetupServer {
	s.longTerm = longTerm
	s.store = store
	s.serverID = serverID
	return s
}

// Step processes one incoming TLV8 request body and returns the response to
// send back (Kind == StepSendData, or StepComplete/StepFailed with a final
// Data payload still populated when one must be sent to the peer).
func (s *SetupServer) Step(request []byte) (*StepResult, error) {
	items, err := tlv8.Decode(request)
	if err != nil {
		s.state = StateFailed
		return failed(err), nil
	}
	stateByte, ok := tlv8.Get(items, tlvState)
	if !ok || len(stateByte) != 1 {
		s.state = StateFailed
		return failed(fmt.Errorf("pairing: request missing state")), nil
	}

	switch {
	case s.awaitingM5 && stateByte[0] == 5:
		return s.handleM5(items)
	case s.state == StateIdle && stateByte[0] == 1:
		return s.handleM1(items)
	case s.state == StateM2Received && stateByte[0] == 3:
		return s.handleM3(items)
	default:
		s.state = StateFailed
		return failed(ErrStateViolation), nil
	}
}

func (s *SetupServer) handleM1(_ []tlv8.Item) (*StepResult, error) {
	salt, verifier, err := s.verifier.Lookup(DefaultSRPIdentity)
	if err != nil {
		s.state = StateFailed
		return failed(err), nil
	}
	s.salt = salt

	ephemeral, err := srp.NewServerEphemeral(s.group, verifier)
	if err != nil {
		s.state = StateFailed
		return failed(err), nil
	}
	s.ephemeral = ephemeral
	s.B = ephemeral.Public()

	body := tlv8.Encode(
		tlv8.Item{Type: tlvPublicKey, Value: s.B.Bytes()},
		tlv8.Item{Type: tlvSalt, Value: s.salt},
		tlv8.Item{Type: tlvState, Value: []byte{2}},
	)
	s.state = StateM2Received
	return sendData(body, ""), nil
}

func (s *SetupServer) handleM3(items []tlv8.Item) (*StepResult, error) {
	pubBytes, ok := tlv8.Get(items, tlvPublicKey)
	if !ok {
		s.state = StateFailed
		return failed(fmt.Errorf("pairing: M3 missing public key")), nil
	}
	clientProof, ok := tlv8.Get(items, tlvProof)
	if !ok {
		s.state = StateFailed
		return failed(fmt.Errorf("pairing: M3 missing proof")), nil
	}
	s.A = new(big.Int).SetBytes(pubBytes)
	s.clientM1 = new(big.Int).SetBytes(clientProof)

	premaster, err := srp.ServerPremaster(s.ephemeral, s.A)
	if err != nil {
		s.state = StateFailed
		return failed(err), nil
	}
	s.premaster = premaster

	m2, ok := srp.VerifyClientProof(s.group, s.A, s.B, s.premaster, s.clientM1)
	if !ok {
		errBody := tlv8.Encode(
			tlv8.Item{Type: tlvState, Value: []byte{4}},
			tlv8.Item{Type: tlvError, Value: []byte{byte(ErrorAuthentication)}},
		)
		s.state = StateFailed
		return &StepResult{Kind: StepFailed, Err: ErrProofMismatch, Data: errBody}, nil
	}
	s.serverM2 = m2

	if s.longTerm == nil {
		keys, err := crypto.DeriveSessionKeys(s.premaster.Bytes(), crypto.PairSetupEncryptSalt, false)
		if err != nil {
			s.state = StateFailed
			return failed(err), nil
		}
		body := tlv8.Encode(
			tlv8.Item{Type: tlvProof, Value: s.serverM2.Bytes()},
			tlv8.Item{Type: tlvState, Value: []byte{4}},
		)
		s.state = StateComplete
		return &StepResult{Kind: StepComplete, Data: body, SessionKeys: keys}, nil
	}

	premasterKey, err := crypto.DeriveKey(s.premaster.Bytes(), []byte(crypto.PairSetupEncryptSalt), []byte(crypto.PairSetupEncryptInfo), crypto.KeySize)
	if err != nil {
		s.state = StateFailed
		return failed(err), nil
	}
	copy(s.encryptKey[:], premasterKey)

	body := tlv8.Encode(
		tlv8.Item{Type: tlvProof, Value: s.serverM2.Bytes()},
		tlv8.Item{Type: tlvState, Value: []byte{4}},
	)
	s.awaitingM5 = true
	return sendData(body, ""), nil
}

func (s *SetupServer) handleM5(items []tlv8.Item) (*StepResult, error) {
	encrypted, ok := tlv8.Get(items, tlvEncryptedData)
	if !ok {
		s.state = StateFailed
		return failed(fmt.Errorf("pairing: M5 missing encrypted data")), nil
	}
	inner, err := crypto.OpenWithLabel(s.encryptKey, "PS-Msg05", encrypted)
	if err != nil {
		s.state = StateFailed
		return failed(err), nil
	}
	innerItems, err := tlv8.Decode(inner)
	if err != nil {
		s.state = StateFailed
		return failed(err), nil
	}
	peerID, ok := tlv8.Get(innerItems, tlvIdentifier)
	if !ok {
		s.state = StateFailed
		return failed(fmt.Errorf("pairing: M5 missing identifier")), nil
	}
	peerPub, ok := tlv8.Get(innerItems, tlvPublicKey)
	if !ok {
		s.state = StateFailed
		return failed(fmt.Errorf("pairing: M5 missing public key")), nil
	}
	sig, ok := tlv8.Get(innerItems, tlvSignature)
	if !ok {
		s.state = StateFailed
		return failed(fmt.Errorf("pairing: M5 missing signature")), nil
	}

	signInfo, err := crypto.DeriveKey(s.premaster.Bytes(), []byte(crypto.PairSetupControllerSignSalt), []byte(crypto.PairSetupControllerSignInfo), 32)
	if err != nil {
		s.state = StateFailed
		return failed(err), nil
	}
	signMsg := concatBytes(signInfo, peerID, peerPub)
	if !crypto.Ed25519Verify(ed25519.PublicKey(peerPub), signMsg, sig) {
		s.state = StateFailed
		return failed(ErrSignatureInvalid), nil
	}

	persistent := &PersistentKeys{
		OurPublic:      s.longTerm.Public,
		OurPrivate:     s.longTerm.Private,
		OurIdentifier:  string(s.serverID),
		PeerPublic:     ed25519.PublicKey(peerPub),
		PeerIdentifier: string(peerID),
	}
	if s.store != nil {
		if err := s.store.Save(string(peerID), persistent); err != nil {
			s.state = StateFailed
			return failed(err), nil
		}
	}

	signInfo2, err := crypto.DeriveKey(s.premaster.Bytes(), []byte(crypto.PairSetupAccessorySignSalt), []byte(crypto.PairSetupAccessorySignInfo), 32)
	if err != nil {
		s.state = StateFailed
		return failed(err), nil
	}
	signMsg2 := concatBytes(signInfo2, s.serverID, s.longTerm.Public)
	signature2 := s.longTerm.Sign(signMsg2)
	inner6 := tlv8.Encode(
		tlv8.Item{Type: tlvIdentifier, Value: s.serverID},
		tlv8.Item{Type: tlvPublicKey, Value: s.longTerm.Public},
		tlv8.Item{Type: tlvSignature, Value: signature2},
	)
	sealed6, err := crypto.SealWithLabel(s.encryptKey, "PS-Msg06", inner6)
	if err != nil {
		s.state = StateFailed
		return failed(err), nil
	}
	body := tlv8.Encode(
		tlv8.Item{Type: tlvEncryptedData, Value: sealed6},
		tlv8.Item{Type: tlvState, Value: []byte{6}},
	)

	keys, err := crypto.DeriveSessionKeys(s.premaster.Bytes(), crypto.PairSetupEncryptSalt, false)
	if err != nil {
		s.state = StateFailed
		return failed(err), nil
	}
	s.state = StateComplete
	s.awaitingM5 = false
	return &StepResult{Kind: StepComplete, Data: body, SessionKeys: keys, Persistent: persistent}, nil
}
