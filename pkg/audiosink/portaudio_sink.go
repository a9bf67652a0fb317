package audiosink

import (
	"fmt"

	"github.com/gordonklaus/portaudio"
)

// PortAudioSink drives a live speaker output via github.com/gordonklaus/
// portaudio, converting the 16-bit PCM the core moves to the float32
// samples PortAudio streams expect.
type PortAudioSink struct {
	stream   *portaudio.Stream
	buf      []float32
	channels int
	fill     int // samples already placed in buf, awaiting a full Write
}

// NewPortAudioSink opens the default output device at sampleRate/channels
// with framesPerBuffer samples per channel per hardware callback.
func NewPortAudioSink(sampleRate, channels, framesPerBuffer int) (*PortAudioSink, error) {
	if err := portaudio.Initialize(); err != nil {
		return nil, fmt.Errorf("audiosink: portaudio init: %w", err)
	}
	buf := make([]float32, framesPerBuffer*channels)
	params := portaudio.StreamParameters{
		Output: portaudio.StreamDeviceParameters{
			Channels: channels,
		},
		SampleRate:      float64(sampleRate),
		FramesPerBuffer: framesPerBuffer,
	}
	stream, err := portaudio.OpenStream(params, buf)
	if err != nil {
		portaudio.Terminate()
		return nil, fmt.Errorf("audiosink: open stream: %w", err)
	}
	if err := stream.Start(); err != nil {
		stream.Close()
		portaudio.Terminate()
		return nil, fmt.Errorf("audiosink: start stream: %w", err)
	}
	return &PortAudioSink{stream: stream, buf: buf, channels: channels}, nil
}

// Write converts samples to float32 and writes full hardware buffers as
// they fill, holding any remainder until the next Write or Flush.
func (s *PortAudioSink) Write(samples []int16) error {
	for _, v := range samples {
		s.buf[s.fill] = float32(v) / 32768.0
		s.fill++
		if s.fill == len(s.buf) {
			if err := s.stream.Write(); err != nil {
				return fmt.Errorf("audiosink: stream write: %w", err)
			}
			s.fill = 0
		}
	}
	return nil
}

// Flush zero-pads and emits any partially filled hardware buffer.
func (s *PortAudioSink) Flush() error {
	if s.fill == 0 {
		return nil
	}
	for i := s.fill; i < len(s.buf); i++ {
		s.buf[i] = 0
	}
	if err := s.stream.Write(); err != nil {
		return fmt.Errorf("audiosink: stream write: %w", err)
	}
	s.fill = 0
	return nil
}

// Close stops and releases the PortAudio stream and terminates the
// library binding for this sink.
func (s *PortAudioSink) Close() error {
	if err := s.stream.Stop(); err != nil {
		s.stream.Close()
		portaudio.Terminate()
		return fmt.Errorf("audiosink: stop stream: %w", err)
	}
	if err := s.stream.Close(); err != nil {
		portaudio.Terminate()
		return fmt.Errorf("audiosink: close stream: %w", err)
	}
	return portaudio.Terminate()
}
