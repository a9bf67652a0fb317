package rtp

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func frameAt(seq uint16, ts uint32) *AudioFrame {
	return &AudioFrame{
		Sequence:   seq,
		Timestamp:  ts,
		Samples:    make([]int16, 352*2),
		Channels:   2,
		ReceivedAt: time.Now(),
	}
}

func fillToTarget(t *testing.T, b *JitterBuffer, startSeq uint16, startTS uint32, frames int) (uint16, uint32) {
	t.Helper()
	seq, ts := startSeq, startTS
	for i := 0; i < frames; i++ {
		out := b.Push(frameAt(seq, ts))
		require.Equal(t, PushBuffered, out.Kind)
		seq++
		ts += 352
	}
	return seq, ts
}

func TestJitterBufferBuffersUntilTargetDepth(t *testing.T) {
	cfg := DefaultConfig(44100)
	b := NewJitterBuffer(cfg)

	// Depth is the timestamp span, so 200ms at 44100Hz (8820 samples)
	// needs the newest frame 26 frames (9152 samples) past the oldest:
	// 27 frames. 24 frames span 8096 samples, about 183ms.
	fillToTarget(t, b, 0, 0, 24)
	require.Equal(t, StateBuffering, b.State())
	res := b.Pop(352)
	require.Equal(t, PopSilence, res.Kind)

	fillToTarget(t, b, 24, 24*352, 3)
	res = b.Pop(352)
	require.Equal(t, PopFrame, res.Kind)
	require.Equal(t, StatePlaying, b.State())
}

func TestJitterBufferOrderingAfterReorder(t *testing.T) {
	cfg := DefaultConfig(44100)
	b := NewJitterBuffer(cfg)
	fillToTarget(t, b, 0, 0, 30)

	var lastTS uint32
	have := false
	played := 0
	for played < 10 {
		res := b.Pop(352)
		if res.Kind != PopFrame {
			break
		}
		if have {
			require.True(t, TimestampBefore(lastTS, res.Frame.Timestamp))
		}
		lastTS = res.Frame.Timestamp
		have = true
		played++
	}
	require.Equal(t, 10, played)
}

func TestJitterBufferDuplicateAndOverflow(t *testing.T) {
	cfg := DefaultConfig(44100)
	cfg.MaxDepthMs = 50
	b := NewJitterBuffer(cfg)

	f := frameAt(0, 0)
	out := b.Push(f)
	require.Equal(t, PushBuffered, out.Kind)
	out = b.Push(f)
	require.Equal(t, PushDuplicate, out.Kind)

	// push enough frames to exceed the 50ms max depth.
	ts := uint32(352)
	var overflowed bool
	for i := 1; i < 20; i++ {
		out = b.Push(frameAt(uint16(i), ts))
		if out.Kind == PushOverflow {
			overflowed = true
		}
		ts += 352
	}
	require.True(t, overflowed)
}

func TestJitterBufferFlushTo(t *testing.T) {
	cfg := DefaultConfig(44100)
	b := NewJitterBuffer(cfg)
	fillToTarget(t, b, 0, 0, 10)

	b.FlushTo(5 * 352)
	for _, ts := range b.order {
		require.False(t, TimestampBefore(ts, 5*352))
	}
}

func TestJitterBufferLossCounting(t *testing.T) {
	cfg := DefaultConfig(44100)
	cfg.TargetDepthMs = 20
	b := NewJitterBuffer(cfg)

	// Sequences 0,2,1,3,5 arrive out of order and 4 never does. Each
	// frame's timestamp follows its sequence number, not arrival order.
	for _, s := range []uint16{0, 2, 1, 3, 5} {
		b.Push(frameAt(s, uint32(s)*352))
	}
	require.Equal(t, 1, b.LostCount())

	// Pops yield 0,1,2,3 in order, a silence substitution in place of
	// 4, then 5; the loss counter still reports exactly one loss.
	for want := uint16(0); want <= 3; want++ {
		res := b.Pop(352)
		require.Equal(t, PopFrame, res.Kind)
		require.Equal(t, want, res.Frame.Sequence)
	}
	res := b.Pop(352)
	require.Equal(t, PopSilence, res.Kind)
	res = b.Pop(352)
	require.Equal(t, PopFrame, res.Kind)
	require.Equal(t, uint16(5), res.Frame.Sequence)

	require.Equal(t, 1, b.LostCount())
}
