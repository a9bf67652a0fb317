// Package audiosink implements the platform audio sink boundary: a
// narrow `write/flush/close` interface for decoded PCM frames, with a
// file sink for tests and a PortAudio sink
// for real playback.
package audiosink

// AudioOutput is the sink boundary: the core moves
// opaque, already-decoded 16-bit PCM frames and never assumes a speaker
// backend. File sinks (tests) and pipe/device sinks (real playback) both
// satisfy this interface.
type AudioOutput interface {
	// Write emits one block of interleaved 16-bit PCM samples.
	Write(samples []int16) error
	// Flush requests any internally buffered samples be emitted now.
	Flush() error
	// Close releases the sink's resources. Write/Flush are not valid
	// after Close.
	Close() error
}
