package rtp

import (
	"encoding/binary"
	"fmt"
)

// controlHeaderSize is the size of the 4-byte RTP-like header each RAOP
// control-channel message (sync/retransmit/timing) carries in front of
// its payload: a marker+payload-type byte pair plus a 16-bit sequence
// field.
const controlHeaderSize = 4

// SyncPacket is the RAOP control-channel sync message mapping an RTP
// timestamp to a wall-clock instant. FirstAfterFlush is carried as the
// RTP header's extension bit.
type SyncPacket struct {
	FirstAfterFlush  bool
	RTPTimestamp     uint32
	NTPTimestamp     uint64 // 64-bit NTP fixed-point seconds
	NextRTPTimestamp uint32
}

// MarshalSync encodes a SyncPacket to its wire form: a 4-byte control
// header (marker/payload-type 0x54, sequence 7 reserved), followed by the
// current RTP timestamp, the 8-byte NTP timestamp, and the RTP timestamp
// of the next packet after this sync instant.
func MarshalSync(p SyncPacket) []byte {
	buf := make([]byte, controlHeaderSize+4+8+4)
	marker := byte(0x80)
	if p.FirstAfterFlush {
		marker |= 0x10
	}
	buf[0] = marker
	buf[1] = ControlSync
	binary.BigEndian.PutUint16(buf[2:4], 7)
	binary.BigEndian.PutUint32(buf[4:8], p.RTPTimestamp)
	binary.BigEndian.PutUint64(buf[8:16], p.NTPTimestamp)
	binary.BigEndian.PutUint32(buf[16:20], p.NextRTPTimestamp)
	return buf
}

// ParseSync decodes a SyncPacket from its wire form.
func ParseSync(buf []byte) (*SyncPacket, error) {
	if len(buf) < controlHeaderSize+16 {
		return nil, fmt.Errorf("rtp: sync packet too short (%d bytes)", len(buf))
	}
	if buf[1]&0x7f != ControlSync {
		return nil, fmt.Errorf("rtp: not a sync packet (type 0x%02x)", buf[1]&0x7f)
	}
	return &SyncPacket{
		FirstAfterFlush:  buf[0]&0x10 != 0,
		RTPTimestamp:     binary.BigEndian.Uint32(buf[4:8]),
		NTPTimestamp:     binary.BigEndian.Uint64(buf[8:16]),
		NextRTPTimestamp: binary.BigEndian.Uint32(buf[16:20]),
	}, nil
}

// RetransmitRequest asks the sender to resend a run of lost packets
// (control type 0x55).
type RetransmitRequest struct {
	SequenceStart uint16
	Count         uint16
}

// MarshalRetransmitRequest encodes a RetransmitRequest.
func MarshalRetransmitRequest(r RetransmitRequest) []byte {
	buf := make([]byte, controlHeaderSize+4)
	buf[0] = 0x80
	buf[1] = ControlRetransmitRequest
	binary.BigEndian.PutUint16(buf[2:4], 1)
	binary.BigEndian.PutUint16(buf[4:6], r.SequenceStart)
	binary.BigEndian.PutUint16(buf[6:8], r.Count)
	return buf
}

// ParseRetransmitRequest decodes a RetransmitRequest.
func ParseRetransmitRequest(buf []byte) (*RetransmitRequest, error) {
	if len(buf) < controlHeaderSize+4 {
		return nil, fmt.Errorf("rtp: retransmit request too short")
	}
	return &RetransmitRequest{
		SequenceStart: binary.BigEndian.Uint16(buf[4:6]),
		Count:         binary.BigEndian.Uint16(buf[6:8]),
	}, nil
}

// TimingRequest/TimingReply implement the AP1 NTP-style four-timestamp
// exchange on the timing port (control types 0x52/0x53).
type TimingRequest struct {
	OriginateTimestamp uint64 // t1, sender's send time
}

type TimingReply struct {
	OriginateTimestamp uint64 // t1, echoed back
	ReceiveTimestamp   uint64 // t2, receiver's arrival time
	TransmitTimestamp  uint64 // t3, receiver's reply send time
}

// MarshalTimingRequest encodes a TimingRequest.
func MarshalTimingRequest(r TimingRequest) []byte {
	buf := make([]byte, controlHeaderSize+8+16)
	buf[0] = 0x80
	buf[1] = ControlTimingRequest
	binary.BigEndian.PutUint64(buf[12:20], r.OriginateTimestamp)
	return buf
}

// ParseTimingRequest decodes a TimingRequest.
func ParseTimingRequest(buf []byte) (*TimingRequest, error) {
	if len(buf) < controlHeaderSize+24 {
		return nil, fmt.Errorf("rtp: timing request too short")
	}
	return &TimingRequest{OriginateTimestamp: binary.BigEndian.Uint64(buf[12:20])}, nil
}

// MarshalTimingReply encodes a TimingReply.
func MarshalTimingReply(r TimingReply) []byte {
	buf := make([]byte, controlHeaderSize+8+16)
	buf[0] = 0x80
	buf[1] = ControlTimingReply
	binary.BigEndian.PutUint64(buf[4:12], r.OriginateTimestamp)
	binary.BigEndian.PutUint64(buf[12:20], r.ReceiveTimestamp)
	binary.BigEndian.PutUint64(buf[20:28], r.TransmitTimestamp)
	return buf
}

// ParseTimingReply decodes a TimingReply.
func ParseTimingReply(buf []byte) (*TimingReply, error) {
	if len(buf) < controlHeaderSize+24 {
		return nil, fmt.Errorf("rtp: timing reply too short")
	}
	return &TimingReply{
		OriginateTimestamp: binary.BigEndian.Uint64(buf[4:12]),
		ReceiveTimestamp:   binary.BigEndian.Uint64(buf[12:20]),
		TransmitTimestamp:  binary.BigEndian.Uint64(buf[20:28]),
	}, nil
}
