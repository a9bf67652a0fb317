package session

// StreamType distinguishes the timing, event, audio data, and audio
// control stream roles.
type StreamType int

const (
	StreamTypeTiming StreamType = 150
	StreamTypeAudio  StreamType = 96
)

// Codec identifies the audio codec carried by a stream.
type Codec int

const (
	CodecPCM  Codec = 100
	CodecALAC Codec = 96
)

// TimingProtocol selects which timing dialect a SETUP phase 1 negotiates.
type TimingProtocol int

const (
	TimingNTP TimingProtocol = iota // AP1
	TimingPTP                      // AP2
)

// StreamDescriptor is the per-stream negotiated parameter set: type,
// codec, sample rate, channels, sample depth, AES/shk key material, and
// the server/client port pairs SETUP exchanges.
type StreamDescriptor struct {
	Type       StreamType
	Codec      Codec
	SampleRate int
	Channels   int
	SampleSize int // bits per sample

	// SharedKey is the AP2 per-stream `shk` used to AEAD-seal RTP
	// payloads.
	SharedKey [32]byte

	DataPort    int
	ControlPort int
	ServerPort  int
}

// AnnounceParams carries the AP1 ANNOUNCE body's codec/key parameters.
type AnnounceParams struct {
	SampleRate int
	Channels   int
	SampleSize int
	AESKey     []byte // plaintext AES-128 key, before RSA-OAEP encapsulation
	AESIV      []byte
}

// Progress is an RTP sample triple carried by SET_PARAMETER.
type Progress struct {
	Start, Current, End uint32
}

// Metadata is the text/artwork track metadata carried by SET_PARAMETER.
type Metadata struct {
	Title  string
	Artist string
	Album  string
}
