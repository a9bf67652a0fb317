package rtp

import (
	"sort"
	"time"
)

// JitterEntry is one buffered frame keyed by RTP timestamp. Entries are
// unique by timestamp; ordered traversal yields increasing timestamps.
type JitterEntry struct {
	Frame     *AudioFrame
	ArrivedAt time.Time
}

// BufferState is a state of the jitter buffer's state machine:
// {Buffering, Playing, Underrun, Overflow}.
type BufferState int

const (
	StateBuffering BufferState = iota
	StatePlaying
	StateUnderrun
	StateOverflow
)

func (s BufferState) String() string {
	switch s {
	case StateBuffering:
		return "Buffering"
	case StatePlaying:
		return "Playing"
	case StateUnderrun:
		return "Underrun"
	case StateOverflow:
		return "Overflow"
	default:
		return "Unknown"
	}
}

// PushOutcomeKind tags the variant of a PushOutcome.
type PushOutcomeKind int

const (
	PushBuffered PushOutcomeKind = iota
	PushDuplicate
	PushTooLate
	PushOverflow
)

// PushOutcome is the result of JitterBuffer.Push.
type PushOutcome struct {
	Kind    PushOutcomeKind
	Evicted []uint32 // valid when Kind == PushOverflow
}

// PopResultKind tags the variant of a PopResult.
type PopResultKind int

const (
	PopSilence PopResultKind = iota
	PopFrame
)

// PopResult is the result of JitterBuffer.Pop.
type PopResult struct {
	Kind  PopResultKind
	Frame *AudioFrame // valid when Kind == PopFrame
}

// Config bounds a JitterBuffer's operating depth, matching the
// jitter_buffer_min/target/max_ms configuration keys.
type Config struct {
	SampleRate     int
	FrameSamples   int // samples per channel in one steady-state frame, e.g. 352 for RAOP
	TargetDepthMs  int // default 200
	MaxDepthMs     int // default 2000 in AP2 buffered-audio mode
}

// DefaultConfig returns the default jitter buffer sizing.
func DefaultConfig(sampleRate int) Config {
	return Config{
		SampleRate:    sampleRate,
		FrameSamples:  352,
		TargetDepthMs: 200,
		MaxDepthMs:    2000,
	}
}

// JitterBuffer absorbs out-of-order/lost packets by sequence number and
// reassembles them into playback order. Pushes are single-producer and
// pops single-consumer; no internal locking is required as long as
// callers honor that discipline.
type JitterBuffer struct {
	cfg Config

	entries map[uint32]*JitterEntry
	order   []uint32 // kept sorted ascending by wrap-safe timestamp order

	state            BufferState
	playbackPosition uint32
	havePosition     bool
	lastPopTimestamp uint32
	haveLastPop      bool

	expectedSeq  uint16
	haveExpected bool
	missing      map[uint16]struct{} // sequence numbers skipped by a gap, not yet seen
	popMisses    int                 // playback-time misses: no entry at playbackPosition

	lastPopSeq     uint16 // sequence of the most recent popped (or silence-substituted) frame
	haveLastPopSeq bool
}

// NewJitterBuffer creates an empty buffer in the Buffering state.
func NewJitterBuffer(cfg Config) *JitterBuffer {
	return &JitterBuffer{
		cfg:     cfg,
		entries: make(map[uint32]*JitterEntry),
		state:   StateBuffering,
	}
}

// State returns the buffer's current state.
func (b *JitterBuffer) State() BufferState { return b.state }

// LostCount returns the count of sequence numbers skipped by a push-time
// gap that have not since arrived out of order, plus the count of
// playback-time misses (Pop finding no entry at the current position). A
// push-time gap is only provisional until a later push either fills it
// (reconciled, not lost) or the buffer is asked for the count with it
// still unfilled.
func (b *JitterBuffer) LostCount() int { return len(b.missing) + b.popMisses }

// Depth returns the buffered span in milliseconds: (max_ts - min_ts) *
// 1000 / sample_rate.
func (b *JitterBuffer) Depth() int {
	if len(b.order) < 2 {
		return 0
	}
	span := TimestampDistance(b.order[0], b.order[len(b.order)-1])
	if span < 0 {
		return 0
	}
	return int(int64(span) * 1000 / int64(b.cfg.SampleRate))
}

// Push inserts frame, detecting duplicates, late arrivals, sequence
// gaps, and overflow.
func (b *JitterBuffer) Push(frame *AudioFrame) PushOutcome {
	b.trackLoss(frame.Sequence)

	if _, exists := b.entries[frame.Timestamp]; exists {
		return PushOutcome{Kind: PushDuplicate}
	}
	if b.state != StateBuffering && TimestampBefore(frame.Timestamp, b.playbackPosition) {
		return PushOutcome{Kind: PushTooLate}
	}

	b.insertSorted(frame.Timestamp)
	b.entries[frame.Timestamp] = &JitterEntry{Frame: frame, ArrivedAt: frame.ReceivedAt}

	if b.Depth() > b.cfg.MaxDepthMs {
		evicted := b.evictOldestUntilWithin(b.cfg.MaxDepthMs)
		b.state = StateOverflow
		return PushOutcome{Kind: PushOverflow, Evicted: evicted}
	}
	return PushOutcome{Kind: PushBuffered}
}

// trackLoss maintains expectedSeq/missing against the raw sequence number
// of each arriving packet. A gap between expectedSeq and seq marks every
// skipped sequence number as provisionally missing rather than counting it
// lost outright; an out-of-order arrival that fills one of those gaps is
// reconciled here, not left to inflate LostCount for a packet that only
// arrived late.
func (b *JitterBuffer) trackLoss(seq uint16) {
	if b.missing == nil {
		b.missing = make(map[uint16]struct{})
	}
	if !b.haveExpected {
		b.expectedSeq = seq + 1
		b.haveExpected = true
		return
	}
	if SeqBefore(seq, b.expectedSeq) {
		// a reordered (or duplicate) packet behind the current expectation;
		// if it fills a provisional gap, it was never actually lost.
		delete(b.missing, seq)
		return
	}
	gap := SeqDistance(b.expectedSeq, seq)
	for i := int16(0); i < gap; i++ {
		b.missing[b.expectedSeq+uint16(i)] = struct{}{}
	}
	b.expectedSeq = seq + 1
}

func (b *JitterBuffer) insertSorted(ts uint32) {
	i := sort.Search(len(b.order), func(i int) bool {
		return !TimestampBefore(b.order[i], ts)
	})
	b.order = append(b.order, 0)
	copy(b.order[i+1:], b.order[i:])
	b.order[i] = ts
}

func (b *JitterBuffer) evictOldestUntilWithin(maxDepthMs int) []uint32 {
	var evicted []uint32
	for b.Depth() > maxDepthMs && len(b.order) > 1 {
		ts := b.order[0]
		b.order = b.order[1:]
		delete(b.entries, ts)
		evicted = append(evicted, ts)
	}
	return evicted
}

// Pop emits the next unit of audio for nSamples worth of playback time.
// During Buffering it returns silence until the target depth is reached;
// once playing it emits the buffered frame in timestamp order, advancing
// playback_position by the frame's sample count, or emits silence (and
// counts a loss) on a miss.
func (b *JitterBuffer) Pop(nSamples int) PopResult {
	if b.state == StateBuffering || b.state == StateOverflow {
		if b.Depth() < b.cfg.TargetDepthMs {
			return PopResult{Kind: PopSilence}
		}
		b.state = StatePlaying
		if len(b.order) > 0 {
			b.playbackPosition = b.order[0]
			b.havePosition = true
		}
	}

	if !b.havePosition {
		b.state = StateUnderrun
		return PopResult{Kind: PopSilence}
	}

	entry, ok := b.entries[b.playbackPosition]
	if !ok {
		// miss: interpolated silence, counts as loss, advance by the
		// configured steady-state frame size. The skipped sequence
		// number moves from the provisional push-gap set to the
		// definite popMisses count, so one lost packet is never
		// counted twice.
		b.popMisses++
		if b.haveLastPopSeq {
			b.lastPopSeq++
			delete(b.missing, b.lastPopSeq)
		}
		b.playbackPosition += uint32(b.cfg.FrameSamples)
		if len(b.order) == 0 {
			b.state = StateUnderrun
		}
		return PopResult{Kind: PopSilence}
	}

	delete(b.entries, b.playbackPosition)
	b.order = removeFirst(b.order, b.playbackPosition)
	b.haveLastPop = true
	b.lastPopTimestamp = b.playbackPosition
	b.lastPopSeq = entry.Frame.Sequence
	b.haveLastPopSeq = true

	count := entry.Frame.SampleCount()
	if count == 0 {
		count = b.cfg.FrameSamples
	}
	b.playbackPosition += uint32(count)

	if len(b.order) == 0 {
		b.state = StateUnderrun
	}
	return PopResult{Kind: PopFrame, Frame: entry.Frame}
}

func removeFirst(order []uint32, ts uint32) []uint32 {
	for i, v := range order {
		if v == ts {
			return append(order[:i], order[i+1:]...)
		}
	}
	return order
}

// Flush discards every buffered entry and resets playback position.
func (b *JitterBuffer) Flush() {
	b.entries = make(map[uint32]*JitterEntry)
	b.order = nil
	b.havePosition = false
	b.haveLastPop = false
	b.haveLastPopSeq = false
	b.state = StateBuffering
}

// FlushTo drops entries strictly before ts and resets playback position
// to ts; no entry with timestamp < ts survives.
func (b *JitterBuffer) FlushTo(ts uint32) {
	kept := b.order[:0:0]
	for _, k := range b.order {
		if TimestampBefore(k, ts) {
			delete(b.entries, k)
			continue
		}
		kept = append(kept, k)
	}
	b.order = kept
	b.playbackPosition = ts
	b.havePosition = true
	b.haveLastPop = false
	b.haveLastPopSeq = false
	if b.state != StateBuffering {
		b.state = StatePlaying
	}
}
