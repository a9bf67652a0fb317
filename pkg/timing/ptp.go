package timing

import "time"

// PTP message types (IEEE 1588 message-type nibble).
type PTPMessageType byte

const (
	PTPSync      PTPMessageType = 0x0
	PTPDelayReq  PTPMessageType = 0x1
	PTPFollowUp  PTPMessageType = 0x8
	PTPDelayResp PTPMessageType = 0x9
	PTPAnnounce  PTPMessageType = 0xB
)

// ptpFixedPointScale is the fractional scale of the 48.16 fixed-point
// seconds encoding PTP messages carry.
const ptpFixedPointScale = 1 << 16

// EncodePTP converts a wall-clock time to a 48.16 fixed-point seconds
// value.
func EncodePTP(t time.Time) uint64 {
	secs := uint64(t.Unix())
	frac := uint64(t.Nanosecond()) * ptpFixedPointScale / 1e9
	return secs<<16 | (frac & 0xFFFF)
}

// DecodePTP converts a 48.16 fixed-point seconds value back to a
// wall-clock time (UTC, second precision parsed from the 48-bit whole
// part, nanosecond precision reconstructed from the 16-bit fraction).
func DecodePTP(v uint64) time.Time {
	secs := int64(v >> 16)
	frac := v & 0xFFFF
	nanos := int64(frac * 1e9 / ptpFixedPointScale)
	return time.Unix(secs, nanos).UTC()
}

// PTPExchange holds one two-step PTP round: Sync+FollowUp give the
// master's precise send time; DelayReq+DelayResp give the slave's
// precise send/receive times.
type PTPExchange struct {
	SyncReceiptLocal time.Time // local time the Sync arrived
	FollowUpMaster   uint64    // precise master send time, from FollowUp

	DelayReqSentLocal uint64 // local send time of our DelayReq, PTP encoded
	DelayRespMaster   uint64 // master's receipt time of our DelayReq, from DelayResp
}

// Offset estimates the master-minus-local clock offset in nanoseconds
// from one two-step exchange: half the difference between the reverse
// path delay (local send to master receipt) and the forward path delay
// (master send to local receipt), which cancels a symmetric path delay.
func (e PTPExchange) Offset() int64 {
	forward := EncodePTP(e.SyncReceiptLocal) - e.FollowUpMaster
	reverse := e.DelayRespMaster - e.DelayReqSentLocal
	meanFixed := (int64(reverse) - int64(forward)) / 2
	return ptpFixedToNanos(meanFixed)
}

func ptpFixedToNanos(v int64) int64 {
	return v * 1e9 / ptpFixedPointScale
}
