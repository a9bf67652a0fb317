package pairing

import "crypto/ed25519"

// PersistentKeys is the long-term identity record produced once a
// persistent pair-setup completes. It is stored keyed by
// device id; once stored, subsequent connects attempt pair-verify before
// falling back to transient pair-setup.
type PersistentKeys struct {
	OurPublic      ed25519.PublicKey
	OurPrivate     ed25519.PrivateKey
	OurIdentifier  string
	PeerPublic     ed25519.PublicKey
	PeerIdentifier string
}
