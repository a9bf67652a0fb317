package pairing

// TLV8 item types used by pair-setup and pair-verify message bodies,
// following the HomeKit/AirPlay pairing TLV type numbering.
const (
	tlvMethod        byte = 0x00
	tlvIdentifier     byte = 0x01
	tlvSalt           byte = 0x02
	tlvPublicKey      byte = 0x03
	tlvProof          byte = 0x04
	tlvEncryptedData  byte = 0x05
	tlvState          byte = 0x06
	tlvError          byte = 0x07
	tlvSignature      byte = 0x0A
	tlvFlags          byte = 0x13
)

// Method identifies the pairing flavor requested in M1.
type Method byte

const (
	MethodPairSetup          Method = 0x00
	MethodPairSetupWithAuth  Method = 0x01
)

// ErrorCode is the TLV8 error value carried in a failed response.
type ErrorCode byte

const (
	ErrorUnknown         ErrorCode = 0x01
	ErrorAuthentication  ErrorCode = 0x02
	ErrorBackoff         ErrorCode = 0x03
	ErrorMaxPeers        ErrorCode = 0x04
	ErrorMaxTries        ErrorCode = 0x05
	ErrorUnavailable     ErrorCode = 0x06
	ErrorBusy            ErrorCode = 0x07
)

// pairing flags, carried in M1 to request transient (no persisted
// identity) pairing.
const (
	FlagTransient uint32 = 0x10
	FlagSplit     uint32 = 0x01000000
)
