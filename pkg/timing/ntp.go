// Package timing implements the two clock-synchronization dialects:
// AP1's four-timestamp NTP-style exchange and AP2's
// two-step PTP (IEEE 1588) exchange, plus the shared ClockSync
// offset/drift estimator and the RTP-to-wall-clock playback scheduler.
// The 64-bit NTP fixed-point encoding follows RFC 3550 §4.
package timing

import (
	"math"
	"time"
)

// EncodeNTP converts a wall-clock time to 64-bit NTP fixed-point seconds
// (32.32), used by the AP1 timing exchange.
func EncodeNTP(t time.Time) uint64 {
	ntp := uint64(t.UnixNano()) + ntpEpochOffsetNanos
	secs := ntp / 1e9
	frac := uint64(math.Round(float64((ntp%1e9)*(1<<32)) / 1e9))
	return secs<<32 | frac
}

// DecodeNTP converts a 64-bit NTP fixed-point value back to a wall-clock
// time.
func DecodeNTP(v uint64) time.Time {
	secs := int64(v>>32) - ntpEpochOffsetSecs
	nanos := int64(math.Round(float64((v & 0xFFFFFFFF) * 1e9) / (1 << 32)))
	return time.Unix(secs, nanos)
}

const (
	ntpEpochOffsetSecs  = 2208988800
	ntpEpochOffsetNanos = ntpEpochOffsetSecs * 1e9
)

// NTPExchange holds the four timestamps of one AP1 timing round trip:
// t1 (sender send), t2 (receiver arrival), t3 (receiver reply send),
// t4 (sender arrival of reply).
type NTPExchange struct {
	T1, T2, T3, T4 uint64
}

// Offset estimates the remote-minus-local clock offset in nanoseconds
// using the classic `((t2-t1)+(t3-t4))/2` formula.
func (e NTPExchange) Offset() int64 {
	d1 := DecodeNTP(e.T2).Sub(DecodeNTP(e.T1))
	d2 := DecodeNTP(e.T3).Sub(DecodeNTP(e.T4))
	return int64((d1 + d2) / 2)
}

// RTT estimates the round-trip time of the exchange: (t4-t1)-(t3-t2).
func (e NTPExchange) RTT() time.Duration {
	total := DecodeNTP(e.T4).Sub(DecodeNTP(e.T1))
	serverTime := DecodeNTP(e.T3).Sub(DecodeNTP(e.T2))
	return total - serverTime
}
