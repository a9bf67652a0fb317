package crypto

// HKDF salt/info labels used to derive session keys for each pairing flavor.
//
// Open question: the exact salt/info strings differ subtly
// between pair-setup and pair-verify and must ultimately be validated
// against a packet capture of a conforming peer; the values below are the
// commonly documented constants for the AirPlay 2 / HomeKit pairing
// protocols and are used as the module's working decision (see DESIGN.md).
const (
	PairSetupEncryptSalt = "Pair-Setup-Encrypt-Salt"
	PairSetupEncryptInfo = "Pair-Setup-Encrypt-Info"

	PairSetupControllerSignSalt = "Pair-Setup-Controller-Sign-Salt"
	PairSetupControllerSignInfo = "Pair-Setup-Controller-Sign-Info"

	PairSetupAccessorySignSalt = "Pair-Setup-Accessory-Sign-Salt"
	PairSetupAccessorySignInfo = "Pair-Setup-Accessory-Sign-Info"

	PairVerifyEncryptSalt = "Pair-Verify-Encrypt-Salt"
	PairVerifyEncryptInfo = "Pair-Verify-Encrypt-Info"

	ControlWriteInfo = "Control-Write-Encryption-Key"
	ControlReadInfo  = "Control-Read-Encryption-Key"
)
