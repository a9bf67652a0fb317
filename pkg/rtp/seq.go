// Package rtp implements the RTP packet model, AP1/AP2 payload sealing,
// RAOP control-channel sync packets, and the jitter buffer/scheduler
// input. Packet parsing itself is delegated to
// github.com/pion/rtp; this package adds the AirPlay-specific sequencing,
// loss, and encryption rules layered on top.
package rtp

// SeqBefore reports whether a comes strictly before b in RTP sequence-
// number order, using modular (wrap-safe) comparison: a "before" b iff
// (b-a) mod 2^16 lies in the first half of the space.
func SeqBefore(a, b uint16) bool {
	return int16(b-a) > 0
}

// SeqDistance returns the signed modular distance from a to b in 16-bit
// sequence-number space: positive when b is ahead of a.
func SeqDistance(a, b uint16) int16 {
	return int16(b - a)
}

// TimestampBefore reports whether a comes strictly before b in 32-bit RTP
// timestamp space, using the same wrap-safe half-space rule.
func TimestampBefore(a, b uint32) bool {
	return int32(b-a) > 0
}

// TimestampDistance returns the signed modular distance from a to b in
// 32-bit timestamp space.
func TimestampDistance(a, b uint32) int32 {
	return int32(b - a)
}
