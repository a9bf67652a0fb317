package pairing

import (
	"crypto/ed25519"
	"fmt"

	"github.com/openairplay/airplay/pkg/crypto"
	"github.com/openairplay/airplay/pkg/tlv8"
)

// pairVerifyURLPath is the RTSP path pair-verify messages are POSTed to.
const pairVerifyURLPath = "/pair-verify"

// VerifyClient drives the controller side of pair-verify, re-establishing
// an encrypted session with a peer whose long-term identity was stored by
// a prior persistent pair-setup.
type VerifyClient struct {
	state State

	longTerm *PersistentKeys
	ephemeral *crypto.X25519KeyPair

	peerEphemeralPublic [32]byte
	shared              [32]byte
	innerKey            [crypto.KeySize]byte
}

// NewVerifyClient creates a pair-verify exchange bound to a previously
// stored identity record.
func NewVerifyClient(longTerm *PersistentKeys) *VerifyClient {
	return &VerifyClient{state: StateIdle, longTerm: longTerm}
}

// Start builds the M1 request body containing a fresh ephemeral public key.
func (v *VerifyClient) Start() (*StepResult, error) {
	if v.state != StateIdle {
		return nil, ErrStateViolation
	}
	ephemeral, err := crypto.GenerateX25519KeyPair()
	if err != nil {
		v.state = StateFailed
		return failed(err), nil
	}
	v.ephemeral = ephemeral

	body := tlv8.Encode(
		tlv8.Item{Type: tlvPublicKey, Value: ephemeral.Public[:]},
		tlv8.Item{Type: tlvState, Value: []byte{1}},
	)
	v.state = StateM1Sent
	return sendData(body, pairVerifyURLPath), nil
}

// Step feeds the accessory's reply into the state machine.
func (v *VerifyClient) Step(reply []byte) (*StepResult, error) {
	items, err := tlv8.Decode(reply)
	if err != nil {
		v.state = StateFailed
		return failed(err), nil
	}
	if errCode, ok := tlv8.Get(items, tlvError); ok {
		v.state = StateFailed
		return failed(fmt.Errorf("pairing: accessory rejected verify: code %d", errCode[0])), nil
	}

	switch v.state {
	case StateM1Sent:
		return v.handleM2(items)
	case StateM3Sent:
		return v.handleM4(items)
	default:
		v.state = StateFailed
		return failed(ErrStateViolation), nil
	}
}

func (v *VerifyClient) handleM2(items []tlv8.Item) (*StepResult, error) {
	peerPub, ok := tlv8.Get(items, tlvPublicKey)
	if !ok || len(peerPub) != 32 {
		v.state = StateFailed
		return failed(fmt.Errorf("pairing: M2 missing/invalid public key")), nil
	}
	encrypted, ok := tlv8.Get(items, tlvEncryptedData)
	if !ok {
		v.state = StateFailed
		return failed(fmt.Errorf("pairing: M2 missing encrypted data")), nil
	}
	copy(v.peerEphemeralPublic[:], peerPub)

	shared, err := crypto.X25519SharedSecret(v.ephemeral.Private, v.peerEphemeralPublic)
	if err != nil {
		v.state = StateFailed
		return failed(err), nil
	}
	v.shared = shared

	innerKeyBytes, err := crypto.DeriveKey(v.shared[:], []byte(crypto.PairVerifyEncryptSalt), []byte(crypto.PairVerifyEncryptInfo), crypto.KeySize)
	if err != nil {
		v.state = StateFailed
		return failed(err), nil
	}
	copy(v.innerKey[:], innerKeyBytes)

	inner, err := crypto.OpenWithLabel(v.innerKey, "PV-Msg02", encrypted)
	if err != nil {
		v.state = StateFailed
		return failed(err), nil
	}
	innerItems, err := tlv8.Decode(inner)
	if err != nil {
		v.state = StateFailed
		return failed(err), nil
	}
	peerID, ok := tlv8.Get(innerItems, tlvIdentifier)
	if !ok {
		v.state = StateFailed
		return failed(fmt.Errorf("pairing: M2 inner missing identifier")), nil
	}
	sig, ok := tlv8.Get(innerItems, tlvSignature)
	if !ok {
		v.state = StateFailed
		return failed(fmt.Errorf("pairing: M2 inner missing signature")), nil
	}
	if string(peerID) != v.longTerm.PeerIdentifier {
		v.state = StateFailed
		return failed(fmt.Errorf("pairing: M2 identifier does not match stored peer")), nil
	}
	info := concatBytes(v.peerEphemeralPublic[:], peerID, v.ephemeral.Public[:])
	if !crypto.Ed25519Verify(v.longTerm.PeerPublic, info, sig) {
		v.state = StateFailed
		return failed(ErrSignatureInvalid), nil
	}

	ourSignMsg := concatBytes(v.ephemeral.Public[:], ourIdentifierBytes(v.longTerm), v.peerEphemeralPublic[:])
	signature := ed25519.Sign(v.longTerm.OurPrivate, ourSignMsg)
	inner3 := tlv8.Encode(
		tlv8.Item{Type: tlvIdentifier, Value: ourIdentifierBytes(v.longTerm)},
		tlv8.Item{Type: tlvSignature, Value: signature},
	)
	sealed3, err := crypto.SealWithLabel(v.innerKey, "PV-Msg03", inner3)
	if err != nil {
		v.state = StateFailed
		return failed(err), nil
	}
	body := tlv8.Encode(
		tlv8.Item{Type: tlvEncryptedData, Value: sealed3},
		tlv8.Item{Type: tlvState, Value: []byte{3}},
	)
	v.state = StateM3Sent
	return sendData(body, pairVerifyURLPath), nil
}

func (v *VerifyClient) handleM4(_ []tlv8.Item) (*StepResult, error) {
	keys, err := crypto.DeriveSessionKeys(v.shared[:], crypto.PairVerifyEncryptSalt, true)
	if err != nil {
		v.state = StateFailed
		return failed(err), nil
	}
	v.state = StateComplete
	return complete(keys, v.longTerm), nil
}

// ourIdentifierBytes returns the identifier the local end signs with during
// pair-verify, matching the identifier it registered during pair-setup.
func ourIdentifierBytes(keys *PersistentKeys) []byte {
	return []byte(keys.OurIdentifier)
}

// VerifyServer drives the accessory side of pair-verify.
type VerifyServer struct {
	state State

	lookup   func(identifier string) (*PersistentKeys, error)
	longTerm *PersistentKeys

	ephemeral *crypto.X25519KeyPair
	peerEphemeralPublic [32]byte
	shared              [32]byte
	innerKey            [crypto.KeySize]byte
}

// NewVerifyServer creates a pair-verify responder. lookup resolves a
// controller's claimed identifier to its stored PersistentKeys (the
// signature check fails if none matches or the signature is wrong), and
// ours is the accessory's own persistent identity.
func NewVerifyServer(ours *PersistentKeys, lookup func(identifier string) (*PersistentKeys, error)) *VerifyServer {
	return &VerifyServer{state: StateIdle, longTerm: ours, lookup: lookup}
}

// Step processes one incoming TLV8 request body.
func (v *VerifyServer) Step(request []byte) (*StepResult, error) {
	items, err := tlv8.Decode(request)
	if err != nil {
		v.state = StateFailed
		return failed(err), nil
	}
	stateByte, ok := tlv8.Get(items, tlvState)
	if !ok || len(stateByte) != 1 {
		v.state = StateFailed
		return failed(fmt.Errorf("pairing: request missing state")), nil
	}

	switch {
	case v.state == StateIdle && stateByte[0] == 1:
		return v.handleM1(items)
	case v.state == StateM2Received && stateByte[0] == 3:
		return v.handleM3(items)
	default:
		v.state = StateFailed
		return failed(ErrStateViolation), nil
	}
}

func (v *VerifyServer) handleM1(items []tlv8.Item) (*StepResult, error) {
	peerPub, ok := tlv8.Get(items, tlvPublicKey)
	if !ok || len(peerPub) != 32 {
		v.state = StateFailed
		return failed(fmt.Errorf("pairing: M1 missing/invalid public key")), nil
	}
	copy(v.peerEphemeralPublic[:], peerPub)

	ephemeral, err := crypto.GenerateX25519KeyPair()
	if err != nil {
		v.state = StateFailed
		return failed(err), nil
	}
	v.ephemeral = ephemeral

	shared, err := crypto.X25519SharedSecret(ephemeral.Private, v.peerEphemeralPublic)
	if err != nil {
		v.state = StateFailed
		return failed(err), nil
	}
	v.shared = shared

	innerKeyBytes, err := crypto.DeriveKey(v.shared[:], []byte(crypto.PairVerifyEncryptSalt), []byte(crypto.PairVerifyEncryptInfo), crypto.KeySize)
	if err != nil {
		v.state = StateFailed
		return failed(err), nil
	}
	copy(v.innerKey[:], innerKeyBytes)

	ourID := ourIdentifierBytes(v.longTerm)
	signMsg := concatBytes(ephemeral.Public[:], ourID, v.peerEphemeralPublic[:])
	signature := ed25519.Sign(v.longTerm.OurPrivate, signMsg)
	inner2 := tlv8.Encode(
		tlv8.Item{Type: tlvIdentifier, Value: ourID},
		tlv8.Item{Type: tlvSignature, Value: signature},
	)
	sealed2, err := crypto.SealWithLabel(v.innerKey, "PV-Msg02", inner2)
	if err != nil {
		v.state = StateFailed
		return failed(err), nil
	}
	body := tlv8.Encode(
		tlv8.Item{Type: tlvPublicKey, Value: ephemeral.Public[:]},
		tlv8.Item{Type: tlvEncryptedData, Value: sealed2},
		tlv8.Item{Type: tlvState, Value: []byte{2}},
	)
	v.state = StateM2Received
	return sendData(body, ""), nil
}

func (v *VerifyServer) handleM3(items []tlv8.Item) (*StepResult, error) {
	encrypted, ok := tlv8.Get(items, tlvEncryptedData)
	if !ok {
		v.state = StateFailed
		return failed(fmt.Errorf("pairing: M3 missing encrypted data")), nil
	}
	inner, err := crypto.OpenWithLabel(v.innerKey, "PV-Msg03", encrypted)
	if err != nil {
		v.state = StateFailed
		return failed(err), nil
	}
	innerItems, err := tlv8.Decode(inner)
	if err != nil {
		v.state = StateFailed
		return failed(err), nil
	}
	peerID, ok := tlv8.Get(innerItems, tlvIdentifier)
	if !ok {
		v.state = StateFailed
		return failed(fmt.Errorf("pairing: M3 inner missing identifier")), nil
	}
	sig, ok := tlv8.Get(innerItems, tlvSignature)
	if !ok {
		v.state = StateFailed
		return failed(fmt.Errorf("pairing: M3 inner missing signature")), nil
	}

	peer, err := v.lookup(string(peerID))
	if err != nil {
		v.state = StateFailed
		return failed(err), nil
	}
	info := concatBytes(v.peerEphemeralPublic[:], peerID, v.ephemeral.Public[:])
	if !crypto.Ed25519Verify(peer.PeerPublic, info, sig) {
		v.state = StateFailed
		return failed(ErrSignatureInvalid), nil
	}

	keys, err := crypto.DeriveSessionKeys(v.shared[:], crypto.PairVerifyEncryptSalt, false)
	if err != nil {
		v.state = StateFailed
		return failed(err), nil
	}
	body := tlv8.Encode(tlv8.Item{Type: tlvState, Value: []byte{4}})
	v.state = StateComplete
	return &StepResult{Kind: StepComplete, Data: body, SessionKeys: keys, Persistent: peer}, nil
}
