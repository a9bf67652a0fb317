// Package discovery maps mDNS service records to the typed Device model,
// without owning mDNS record production or parsing beyond that mapping.
package discovery

// Capabilities is the AirPlay "features" TXT bitfield
// Only the bits this module's own subsystems care about are named; the
// rest pass through in RawFeatures for a caller that needs them.
type Capabilities uint64

const (
	CapAudio               Capabilities = 1 << 9
	CapAudioRedundant      Capabilities = 1 << 11
	CapMetadataArtwork     Capabilities = 1 << 17
	CapAudioFormat1        Capabilities = 1 << 18
	CapAudioFormat2        Capabilities = 1 << 19
	CapAudioFormat3        Capabilities = 1 << 20
	CapAudioFormat4        Capabilities = 1 << 21
	CapRAOP                Capabilities = 1 << 28
	CapUnifiedMediaControl Capabilities = 1 << 32
	CapBufferedAudio       Capabilities = 1 << 38
	CapPTPClock            Capabilities = 1 << 40
	CapAirPlay2            Capabilities = 1 << 48
	CapCoreUtilsPairing    Capabilities = 1 << 51
	CapTransientPairing    Capabilities = 1 << 52
)

// Has reports whether all bits of want are set.
func (c Capabilities) Has(want Capabilities) bool {
	return c&want == want
}

// Device is one discovered AirPlay-capable endpoint.
type Device struct {
	ID           string // stable fingerprint, typically the `deviceid` TXT value
	Name         string
	Address      string // resolved IP/hostname
	ControlPort  int
	Capabilities Capabilities
	RawFeatures  uint64

	Model      string
	ProtoVers  string
	SourceVers string

	TXT map[string]string
}
