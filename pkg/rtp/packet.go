package rtp

import (
	"fmt"

	pionrtp "github.com/pion/rtp"
)

// Payload type tags used on the wire.
const (
	PayloadTypeAudio uint8 = 96

	// RAOP control-channel payload subtypes, carried in the low 7 bits of
	// the second header byte with the marker bit set.
	ControlSync              uint8 = 0x54
	ControlRetransmitRequest uint8 = 0x55
	ControlRetransmitReply   uint8 = 0x56
	ControlTimingRequest     uint8 = 0x52
	ControlTimingReply       uint8 = 0x53
)

// Packet is one parsed RTP packet (12-byte header, plus
// payload), thin sugar over pion/rtp.Packet that exposes the fields this
// module's sequencing/jitter logic needs directly.
type Packet struct {
	Version        uint8
	Padding        bool
	Extension      bool
	Marker         bool
	PayloadType    uint8
	SequenceNumber uint16
	Timestamp      uint32
	SSRC           uint32
	Payload        []byte
}

// Parse decodes a 12-byte-header RTP packet from buf.
func Parse(buf []byte) (*Packet, error) {
	var p pionrtp.Packet
	if err := p.Unmarshal(buf); err != nil {
		return nil, fmt.Errorf("rtp: parse packet: %w", err)
	}
	return &Packet{
		Version:        p.Version,
		Padding:        p.Padding,
		Extension:      p.Extension,
		Marker:         p.Marker,
		PayloadType:    p.PayloadType,
		SequenceNumber: p.SequenceNumber,
		Timestamp:      p.Timestamp,
		SSRC:           p.SSRC,
		Payload:        p.Payload,
	}, nil
}

// Marshal encodes the packet back to wire bytes.
func (p *Packet) Marshal() ([]byte, error) {
	pk := pionrtp.Packet{
		Header: pionrtp.Header{
			Version:        2,
			Padding:        p.Padding,
			Extension:      p.Extension,
			Marker:         p.Marker,
			PayloadType:    p.PayloadType,
			SequenceNumber: p.SequenceNumber,
			Timestamp:      p.Timestamp,
			SSRC:           p.SSRC,
		},
		Payload: p.Payload,
	}
	return pk.Marshal()
}

// NewAudioPacket builds an outbound audio data packet with the given
// sequence/timestamp/payload.
func NewAudioPacket(seq uint16, ts uint32, ssrc uint32, payload []byte) *Packet {
	return &Packet{
		Version:        2,
		PayloadType:    PayloadTypeAudio,
		SequenceNumber: seq,
		Timestamp:      ts,
		SSRC:           ssrc,
		Payload:        payload,
	}
}
