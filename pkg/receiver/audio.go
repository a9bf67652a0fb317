package receiver

import (
	"context"
	"encoding/binary"
	"net"
	"time"

	"github.com/openairplay/airplay/pkg/rtp"
)

// AudioOutput is the narrow playback port an accessory writes decoded PCM
// to; pkg/audiosink provides file and PortAudio implementations. Decoding
// ALAC/AAC payloads is out of scope here — PCM streams pass
// through as-is, and non-PCM streams are only sequenced, not decoded.
type AudioOutput interface {
	Write(samples []int16) error
	Close() error
}

// StreamReceiver reads RTP audio packets off one UDP socket, reorders
// them through a jitter buffer, and periodically drains decoded frames
// to an AudioOutput.
type StreamReceiver struct {
	conn     *net.UDPConn
	buf      *rtp.JitterBuffer
	out      AudioOutput
	sharedKey *[32]byte // non-nil for AP2 ChaCha20-Poly1305 sealed payloads

	channels     int
	frameSamples int
	sampleRate   int
}

// NewStreamReceiver creates a receiver for one negotiated audio stream.
func NewStreamReceiver(conn *net.UDPConn, out AudioOutput, channels, sampleRate int, sharedKey *[32]byte) *StreamReceiver {
	cfg := rtp.DefaultConfig(sampleRate)
	return &StreamReceiver{
		conn:         conn,
		buf:          rtp.NewJitterBuffer(cfg),
		out:          out,
		sharedKey:    sharedKey,
		channels:     channels,
		frameSamples: cfg.FrameSamples,
		sampleRate:   sampleRate,
	}
}

// Run pumps incoming packets into the jitter buffer until ctx is done or
// a read error occurs. It does not itself drive playback timing; call
// Drain from a separate ticker to pull decoded audio out.
func (r *StreamReceiver) Run(ctx context.Context) error {
	readBuf := make([]byte, 2048)
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}
		r.conn.SetReadDeadline(time.Now().Add(500 * time.Millisecond))
		n, err := r.conn.Read(readBuf)
		if err != nil {
			if ne, ok := err.(net.Error); ok && ne.Timeout() {
				continue
			}
			return err
		}
		pkt, err := rtp.Parse(readBuf[:n])
		if err != nil {
			continue
		}
		payload := pkt.Payload
		if r.sharedKey != nil {
			opened, err := rtp.OpenAP2(*r.sharedKey, pkt.SequenceNumber, pkt.Timestamp, payload)
			if err != nil {
				continue
			}
			payload = opened
		}
		frame := &rtp.AudioFrame{
			Sequence:   pkt.SequenceNumber,
			Timestamp:  pkt.Timestamp,
			Samples:    bytesToSamples(payload),
			Channels:   r.channels,
			ReceivedAt: time.Now(),
		}
		r.buf.Push(frame)
	}
}

// Drain pops one frame's worth of decoded audio (or silence) and writes
// it to the configured AudioOutput.
func (r *StreamReceiver) Drain() error {
	res := r.buf.Pop(r.frameSamples)
	switch res.Kind {
	case rtp.PopFrame:
		return r.out.Write(res.Frame.Samples)
	default:
		return r.out.Write(make([]int16, r.frameSamples*r.channels))
	}
}

func bytesToSamples(b []byte) []int16 {
	out := make([]int16, len(b)/2)
	for i := range out {
		out[i] = int16(binary.LittleEndian.Uint16(b[i*2 : i*2+2]))
	}
	return out
}
