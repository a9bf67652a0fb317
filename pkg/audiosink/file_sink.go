package audiosink

import (
	"encoding/binary"
	"fmt"
	"io"
	"os"
)

// waveHeaderSize is the size, in bytes, of a canonical 44-byte PCM WAV
// header (RIFF/WAVE, one "fmt " chunk, one "data" chunk).
const waveHeaderSize = 44

// FileSink writes interleaved 16-bit PCM samples to a WAV file, rewriting
// the RIFF/data chunk sizes on Close once the total length is known. It
// is the test-harness sink.
type FileSink struct {
	f          *os.File
	sampleRate int
	channels   int
	written    int64 // PCM bytes written so far
}

// NewFileSink creates (or truncates) path and reserves space for the WAV
// header, to be backfilled on Close.
func NewFileSink(path string, sampleRate, channels int) (*FileSink, error) {
	f, err := os.Create(path)
	if err != nil {
		return nil, fmt.Errorf("audiosink: create %s: %w", path, err)
	}
	if _, err := f.Write(make([]byte, waveHeaderSize)); err != nil {
		f.Close()
		return nil, fmt.Errorf("audiosink: reserve header: %w", err)
	}
	return &FileSink{f: f, sampleRate: sampleRate, channels: channels}, nil
}

// Write appends samples (interleaved 16-bit PCM, little-endian on disk as
// WAV requires) to the file.
func (s *FileSink) Write(samples []int16) error {
	buf := make([]byte, len(samples)*2)
	for i, v := range samples {
		binary.LittleEndian.PutUint16(buf[i*2:], uint16(v))
	}
	n, err := s.f.Write(buf)
	s.written += int64(n)
	if err != nil {
		return fmt.Errorf("audiosink: write samples: %w", err)
	}
	return nil
}

// Flush is a no-op: FileSink has no internal buffering beyond the OS
// file's own write buffering.
func (s *FileSink) Flush() error { return nil }

// Close backfills the WAV header with the final byte counts and closes
// the file.
func (s *FileSink) Close() error {
	defer s.f.Close()
	header := buildWaveHeader(s.sampleRate, s.channels, s.written)
	if _, err := s.f.Seek(0, io.SeekStart); err != nil {
		return fmt.Errorf("audiosink: seek to header: %w", err)
	}
	if _, err := s.f.Write(header); err != nil {
		return fmt.Errorf("audiosink: write header: %w", err)
	}
	return nil
}

func buildWaveHeader(sampleRate, channels int, dataBytes int64) []byte {
	const bitsPerSample = 16
	blockAlign := channels * bitsPerSample / 8
	byteRate := sampleRate * blockAlign

	h := make([]byte, waveHeaderSize)
	copy(h[0:4], "RIFF")
	binary.LittleEndian.PutUint32(h[4:8], uint32(36+dataBytes))
	copy(h[8:12], "WAVE")
	copy(h[12:16], "fmt ")
	binary.LittleEndian.PutUint32(h[16:20], 16) // fmt chunk size
	binary.LittleEndian.PutUint16(h[20:22], 1)  // PCM
	binary.LittleEndian.PutUint16(h[22:24], uint16(channels))
	binary.LittleEndian.PutUint32(h[24:28], uint32(sampleRate))
	binary.LittleEndian.PutUint32(h[28:32], uint32(byteRate))
	binary.LittleEndian.PutUint16(h[32:34], uint16(blockAlign))
	binary.LittleEndian.PutUint16(h[34:36], bitsPerSample)
	copy(h[36:40], "data")
	binary.LittleEndian.PutUint32(h[40:44], uint32(dataBytes))
	return h
}
