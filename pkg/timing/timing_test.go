package timing

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestNTPEncodeDecodeRoundTrip(t *testing.T) {
	now := time.Date(2026, 7, 29, 12, 0, 0, 500000000, time.UTC)
	v := EncodeNTP(now)
	got := DecodeNTP(v)
	require.WithinDuration(t, now, got, time.Millisecond)
}

func TestPTPEncodeDecodeRoundTrip(t *testing.T) {
	now := time.Date(2026, 7, 29, 12, 0, 0, 250000000, time.UTC)
	v := EncodePTP(now)
	got := DecodePTP(v)
	require.WithinDuration(t, now, got, time.Millisecond)
}

func TestClockSyncNTPMovingAverage(t *testing.T) {
	c := NewClockSync(ModeNTP)
	base := time.Now()
	for i := 0; i < 12; i++ {
		// Remote clock 10ms ahead of local, 5ms one-way delay each way.
		t1 := EncodeNTP(base)
		t2 := EncodeNTP(base.Add(15 * time.Millisecond))
		t3 := EncodeNTP(base.Add(16 * time.Millisecond))
		t4 := EncodeNTP(base.Add(11 * time.Millisecond))
		c.UpdateNTP(NTPExchange{T1: t1, T2: t2, T3: t3, T4: t4})
	}
	offset, ok := c.Offset()
	require.True(t, ok)
	require.InDelta(t, 10*time.Millisecond, offset, float64(2*time.Millisecond))
}

func TestClockSyncPTPMedian(t *testing.T) {
	c := NewClockSync(ModePTP)
	base := time.Now()
	offsets := []int64{100, 105, 95, 1000000, 98} // one huge outlier
	for i, o := range offsets {
		c.UpdatePTP(base.Add(time.Duration(i)*time.Second), o)
	}
	offset, ok := c.Offset()
	require.True(t, ok)
	require.Less(t, offset, int64(1000))
}

func TestClockIdempotence(t *testing.T) {
	base := time.Now()
	once := ApplyOffsetIdempotent(base, 5000)
	twice := ApplyOffsetIdempotent(once, 0)
	require.Equal(t, once, twice)
}

func TestSchedulerPlaybackInstant(t *testing.T) {
	s := NewScheduler(2 * time.Second)
	ref := time.Now()
	s.SetReference(Reference{RTPTimestamp: 1000, LocalTime: ref, SampleRate: 44100})

	instant, ok := s.PlaybackInstant(1000 + 44100)
	require.True(t, ok)
	require.WithinDuration(t, ref.Add(3*time.Second), instant, time.Millisecond)
}

func TestSchedulerWrapSafe(t *testing.T) {
	s := NewScheduler(2 * time.Second)
	ref := time.Now()
	s.SetReference(Reference{RTPTimestamp: 0xFFFFFFF0, LocalTime: ref, SampleRate: 44100})

	instant, ok := s.PlaybackInstant(0x10) // wraps past 2^32
	require.True(t, ok)
	require.True(t, instant.After(ref))
}
