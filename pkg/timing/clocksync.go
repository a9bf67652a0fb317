package timing

import (
	"sort"
	"time"
)

// measurement is one observed offset sample with the local time it was
// taken at, used by both the AP1 moving-average and AP2 median/drift
// estimators.
type measurement struct {
	at     time.Time
	offset int64 // nanoseconds, remote - local
}

// ClockSync maintains the estimated offset (remote_clock - local_clock)
// and drift used by the playback scheduler.
type ClockSync struct {
	mode Mode

	// AP1 moving-average state.
	emaOffset    float64
	haveEMA      bool
	sampleCount  int

	// AP2 median+drift state.
	samples []measurement
	maxSamples int

	offsetNanos int64
	driftPPM    float64
	haveOffset  bool
}

// Mode selects which dialect's estimator a ClockSync runs.
type Mode int

const (
	ModeNTP Mode = iota // AP1
	ModePTP             // AP2
)

// NewClockSync creates a ClockSync for the given dialect. AP2 mode keeps
// up to N=8 recent measurements.
func NewClockSync(mode Mode) *ClockSync {
	return &ClockSync{mode: mode, maxSamples: 8}
}

// UpdateNTP folds in one AP1 timing exchange using a moving average: alpha
// 0.5 for the first 10 samples, 0.1 thereafter.
func (c *ClockSync) UpdateNTP(ex NTPExchange) {
	offset := float64(ex.Offset())
	c.sampleCount++
	if !c.haveEMA {
		c.emaOffset = offset
		c.haveEMA = true
	} else {
		alpha := 0.1
		if c.sampleCount <= 10 {
			alpha = 0.5
		}
		c.emaOffset = alpha*offset + (1-alpha)*c.emaOffset
	}
	c.offsetNanos = int64(c.emaOffset)
	c.haveOffset = true
}

// UpdatePTP folds in one AP2 PTP exchange. The current offset is the
// median of up to the last 8 measurements; drift (ppm) is estimated by
// linear regression of offset against elapsed local time.
func (c *ClockSync) UpdatePTP(at time.Time, offsetNanos int64) {
	c.samples = append(c.samples, measurement{at: at, offset: offsetNanos})
	if len(c.samples) > c.maxSamples {
		c.samples = c.samples[len(c.samples)-c.maxSamples:]
	}
	c.offsetNanos = medianOffset(c.samples)
	c.driftPPM = regressionDriftPPM(c.samples)
	c.haveOffset = true
}

func medianOffset(samples []measurement) int64 {
	offsets := make([]int64, len(samples))
	for i, s := range samples {
		offsets[i] = s.offset
	}
	sort.Slice(offsets, func(i, j int) bool { return offsets[i] < offsets[j] })
	n := len(offsets)
	if n == 0 {
		return 0
	}
	if n%2 == 1 {
		return offsets[n/2]
	}
	return (offsets[n/2-1] + offsets[n/2]) / 2
}

// regressionDriftPPM fits offset (ns) = a + b*elapsed(ns) via ordinary
// least squares and returns b expressed in parts-per-million.
func regressionDriftPPM(samples []measurement) float64 {
	if len(samples) < 2 {
		return 0
	}
	t0 := samples[0].at
	var sumX, sumY, sumXY, sumXX float64
	n := float64(len(samples))
	for _, s := range samples {
		x := float64(s.at.Sub(t0))
		y := float64(s.offset)
		sumX += x
		sumY += y
		sumXY += x * y
		sumXX += x * x
	}
	denom := n*sumXX - sumX*sumX
	if denom == 0 {
		return 0
	}
	slope := (n*sumXY - sumX*sumY) / denom
	return slope * 1e6
}

// Offset returns the current estimated offset in nanoseconds.
func (c *ClockSync) Offset() (int64, bool) {
	return c.offsetNanos, c.haveOffset
}

// DriftPPM returns the current estimated drift in parts-per-million
// (always 0 in NTP mode, which has no drift model).
func (c *ClockSync) DriftPPM() float64 {
	return c.driftPPM
}

// ToRemote converts a local instant to the corresponding remote-clock
// instant by applying `(elapsed * drift_ppm/1e6) + offset`. elapsedSince
// anchors the drift correction at the time of the most recent
// measurement.
func (c *ClockSync) ToRemote(local time.Time, elapsedSince time.Duration) time.Time {
	correction := int64(float64(elapsedSince) * c.driftPPM / 1e6)
	return local.Add(time.Duration(c.offsetNanos + correction))
}

// ToLocal converts a remote instant to the corresponding local-clock
// instant, the inverse of ToRemote.
func (c *ClockSync) ToLocal(remote time.Time, elapsedSince time.Duration) time.Time {
	correction := int64(float64(elapsedSince) * c.driftPPM / 1e6)
	return remote.Add(-time.Duration(c.offsetNanos + correction))
}
