package timing

import (
	"time"

	"github.com/openairplay/airplay/pkg/rtp"
)

// DefaultTargetLatency is the default delay between capture and scheduled
// playback.
const DefaultTargetLatency = 2 * time.Second

// Reference anchors the RTP-to-wall-clock mapping to the most recent sync
// packet.
type Reference struct {
	RTPTimestamp uint32
	LocalTime    time.Time
	SampleRate   int
}

// Scheduler computes playback instants for RTP timestamps. It does not
// wait for those instants or hand frames to an audio sink: it holds no
// goroutines and no timers, and callers drive it from their own playback
// loop.
type Scheduler struct {
	ref           Reference
	haveRef       bool
	targetLatency time.Duration
}

// NewScheduler creates a Scheduler with the given target latency.
func NewScheduler(targetLatency time.Duration) *Scheduler {
	if targetLatency <= 0 {
		targetLatency = DefaultTargetLatency
	}
	return &Scheduler{targetLatency: targetLatency}
}

// SetReference installs the anchor point from the most recent sync
// packet.
func (s *Scheduler) SetReference(ref Reference) {
	s.ref = ref
	s.haveRef = true
}

// HasReference reports whether a reference point has been established.
func (s *Scheduler) HasReference() bool {
	return s.haveRef
}

// PlaybackInstant computes `local_ref + (rtp_ts - rtp_ref)/sample_rate +
// target_latency` using wrap-safe 32-bit timestamp arithmetic.
func (s *Scheduler) PlaybackInstant(rtpTimestamp uint32) (time.Time, bool) {
	if !s.haveRef || s.ref.SampleRate == 0 {
		return time.Time{}, false
	}
	delta := rtp.TimestampDistance(s.ref.RTPTimestamp, rtpTimestamp)
	offset := time.Duration(int64(delta) * int64(time.Second) / int64(s.ref.SampleRate))
	return s.ref.LocalTime.Add(offset).Add(s.targetLatency), true
}

// ApplyOffsetIdempotent returns base shifted by offsetNanos. It is a plain
// addition and keeps no record of earlier calls: applying the same nonzero
// offset to its own result shifts the instant a second time, and only a
// zero offset leaves an already mapped instant unchanged.
func ApplyOffsetIdempotent(base time.Time, offsetNanos int64) time.Time {
	return base.Add(time.Duration(offsetNanos))
}
