package pairing

import (
	"crypto/ed25519"
	"fmt"
	"math/big"

	"github.com/openairplay/airplay/pkg/crypto"
	"github.com/openairplay/airplay/pkg/crypto/srp"
	"github.com/openairplay/airplay/pkg/tlv8"
)

// pairSetupURLPath is the RTSP path pair-setup messages are POSTed to.
const pairSetupURLPath = "/pair-setup"

// Verifier looks up the SRP verifier and salt registered for an identity,
// so SetupServer does not need to know how accounts/PINs are stored.
type Verifier interface {
	// Lookup returns the SRP salt and verifier for identity, or an error if
	// no such account exists.
	Lookup(identity []byte) (salt []byte, verifier *big.Int, err error)
}

// SetupClient drives the controller side of pair-setup (transient M1-M4,
// optionally continuing into persistent M5-M6)
type SetupClient struct {
	state       State
	awaitingM6  bool

	identity []byte
	password []byte

	longTerm *crypto.Ed25519KeyPair
	peerID   string

	group     *srp.Group
	client    *srp.ClientEphemeral
	x         *big.Int
	salt      []byte
	A         *big.Int
	B         *big.Int
	premaster *big.Int
	clientM1  *big.Int
	encryptKey [crypto.KeySize]byte
}

// NewSetupClient starts a transient pair-setup exchange for the given
// identity/password (PIN). Call WithLongTermIdentity to continue into
// persistent pair-setup (M5/M6) instead of stopping at M4.
func NewSetupClient(identity, password []byte) *SetupClient {
	return &SetupClient{
		state:    StateIdle,
		identity: identity,
		password: password,
		group:    srp.Group2048,
	}
}

// WithLongTermIdentity switches the exchange to persistent pair-setup.
func (c *SetupClient) WithLongTermIdentity(longTerm *crypto.Ed25519KeyPair) *SetupClient {
	c.longTerm = longTerm
	return c
}

// Start builds the M1 request body.
func (c *SetupClient) Start() (*StepResult, error) {
	if c.state != StateIdle {
		return nil, ErrStateViolation
	}
	method := MethodPairSetup
	if c.longTerm != nil {
		method = MethodPairSetupWithAuth
	}
	body := tlv8.Encode(
		tlv8.Item{Type: tlvMethod, Value: []byte{byte(method)}},
		tlv8.Item{Type: tlvState, Value: []byte{1}},
	)
	c.state = StateM1Sent
	return sendData(body, pairSetupURLPath), nil
}

// Step feeds the accessory's reply into the state machine and returns the
// next action.
func (c *SetupClient) Step(reply []byte) (*StepResult, error) {
	items, err := tlv8.Decode(reply)
	if err != nil {
		c.state = StateFailed
		return failed(err), nil
	}
	if errCode, ok := tlv8.Get(items, tlvError); ok {
		c.state = StateFailed
		if len(errCode) == 1 && ErrorCode(errCode[0]) == ErrorAuthentication {
			return failed(ErrProofMismatch), nil
		}
		return failed(fmt.Errorf("pairing: accessory rejected: code %d", errCode[0])), nil
	}

	switch {
	case c.awaitingM6:
		return c.handleM6(items)
	case c.state == StateM1Sent:
		return c.handleM2(items)
	case c.state == StateM3Sent:
		return c.handleM4(items)
	default:
		c.state = StateFailed
		return failed(ErrStateViolation), nil
	}
}

// handleM2 processes the server's salt+public key and sends M3.
func (c *SetupClient) handleM2(items []tlv8.Item) (*StepResult, error) {
	salt, ok := tlv8.Get(items, tlvSalt)
	if !ok {
		c.state = StateFailed
		return failed(fmt.Errorf("pairing: M2 missing salt")), nil
	}
	pubBytes, ok := tlv8.Get(items, tlvPublicKey)
	if !ok {
		c.state = StateFailed
		return failed(fmt.Errorf("pairing: M2 missing public key")), nil
	}
	c.salt = salt
	c.B = new(big.Int).SetBytes(pubBytes)

	client, err := srp.NewClientEphemeral(c.group)
	if err != nil {
		c.state = StateFailed
		return failed(err), nil
	}
	c.client = client
	c.A = client.Public()
	c.x = srp.ComputeX(c.identity, c.password, c.salt)

	premaster, m1, err := srp.ClientPremaster(c.client, c.x, c.B)
	if err != nil {
		c.state = StateFailed
		return failed(ErrProofMismatch), nil
	}
	c.premaster = premaster
	c.clientM1 = m1

	body := tlv8.Encode(
		tlv8.Item{Type: tlvPublicKey, Value: c.A.Bytes()},
		tlv8.Item{Type: tlvProof, Value: m1.Bytes()},
		tlv8.Item{Type: tlvState, Value: []byte{3}},
	)
	c.state = StateM3Sent
	return sendData(body, pairSetupURLPath), nil
}

// handleM4 verifies the server's proof and, for persistent pairing,
// continues into M5.
func (c *SetupClient) handleM4(items []tlv8.Item) (*StepResult, error) {
	serverProof, ok := tlv8.Get(items, tlvProof)
	if !ok {
		c.state = StateFailed
		return failed(fmt.Errorf("pairing: M4 missing proof")), nil
	}
	if !srp.VerifyServerProof(c.group, c.A, c.clientM1, c.premaster, new(big.Int).SetBytes(serverProof)) {
		c.state = StateFailed
		return failed(ErrProofMismatch), nil
	}

	if c.longTerm == nil {
		keys, err := crypto.DeriveSessionKeys(c.premaster.Bytes(), crypto.PairSetupEncryptSalt, true)
		if err != nil {
			c.state = StateFailed
			return failed(err), nil
		}
		c.state = StateComplete
		return complete(keys, nil), nil
	}

	premasterKey, err := crypto.DeriveKey(c.premaster.Bytes(), []byte(crypto.PairSetupEncryptSalt), []byte(crypto.PairSetupEncryptInfo), crypto.KeySize)
	if err != nil {
		c.state = StateFailed
		return failed(err), nil
	}
	copy(c.encryptKey[:], premasterKey)

	signInfo, err := crypto.DeriveKey(c.premaster.Bytes(), []byte(crypto.PairSetupControllerSignSalt), []byte(crypto.PairSetupControllerSignInfo), 32)
	if err != nil {
		c.state = StateFailed
		return failed(err), nil
	}
	signMsg := concatBytes(signInfo, c.identity, c.longTerm.Public)
	signature := c.longTerm.Sign(signMsg)

	inner := tlv8.Encode(
		tlv8.Item{Type: tlvIdentifier, Value: c.identity},
		tlv8.Item{Type: tlvPublicKey, Value: c.longTerm.Public},
		tlv8.Item{Type: tlvSignature, Value: signature},
	)
	sealed, err := crypto.SealWithLabel(c.encryptKey, "PS-Msg05", inner)
	if err != nil {
		c.state = StateFailed
		return failed(err), nil
	}

	body := tlv8.Encode(
		tlv8.Item{Type: tlvEncryptedData, Value: sealed},
		tlv8.Item{Type: tlvState, Value: []byte{5}},
	)
	c.awaitingM6 = true
	return sendData(body, pairSetupURLPath), nil
}

// handleM6 decrypts the accessory's identity record and returns it as the
// Persistent keys of the StepComplete result; storing it is up to the caller.
func (c *SetupClient) handleM6(items []tlv8.Item) (*StepResult, error) {
	encrypted, ok := tlv8.Get(items, tlvEncryptedData)
	if !ok {
		c.state = StateFailed
		return failed(fmt.Errorf("pairing: M6 missing encrypted data")), nil
	}
	inner, err := crypto.OpenWithLabel(c.encryptKey, "PS-Msg06", encrypted)
	if err != nil {
		c.state = StateFailed
		return failed(err), nil
	}
	innerItems, err := tlv8.Decode(inner)
	if err != nil {
		c.state = StateFailed
		return failed(err), nil
	}
	peerID, ok := tlv8.Get(innerItems, tlvIdentifier)
	if !ok {
		c.state = StateFailed
		return failed(fmt.Errorf("pairing: M6 missing identifier")), nil
	}
	peerPub, ok := tlv8.Get(innerItems, tlvPublicKey)
	if !ok {
		c.state = StateFailed
		return failed(fmt.Errorf("pairing: M6 missing public key")), nil
	}
	sig, ok := tlv8.Get(innerItems, tlvSignature)
	if !ok {
		c.state = StateFailed
		return failed(fmt.Errorf("pairing: M6 missing signature")), nil
	}

	signInfo, err := crypto.DeriveKey(c.premaster.Bytes(), []byte(crypto.PairSetupAccessorySignSalt), []byte(crypto.PairSetupAccessorySignInfo), 32)
	if err != nil {
		c.state = StateFailed
		return failed(err), nil
	}
	signMsg := concatBytes(signInfo, peerID, peerPub)
	if !crypto.Ed25519Verify(ed25519.PublicKey(peerPub), signMsg, sig) {
		c.state = StateFailed
		return failed(ErrSignatureInvalid), nil
	}

	c.peerID = string(peerID)
	keys, err := crypto.DeriveSessionKeys(c.premaster.Bytes(), crypto.PairSetupEncryptSalt, true)
	if err != nil {
		c.state = StateFailed
		return failed(err), nil
	}
	persistent := &PersistentKeys{
		OurPublic:      c.longTerm.Public,
		OurPrivate:     c.longTerm.Private,
		OurIdentifier:  string(c.identity),
		PeerPublic:     ed25519.PublicKey(peerPub),
		PeerIdentifier: c.peerID,
	}
	c.state = StateComplete
	c.awaitingM6 = false
	return complete(keys, persistent), nil
}

func concatBytes(parts ...[]byte) []byte {
	var total int
	for _, p := range parts {
		total += len(p)
	}
	out := make([]byte, 0, total)
	for _, p := range parts {
		out = append(out, p...)
	}
	return out
}
