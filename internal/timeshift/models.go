package timeshift

import (
	"errors"
	"time"
)

// Segment is one fixed-duration unit of encoded media delivered by the
// capture pipeline. Start is its position on the virtual buffer timeline
// (seconds since the first segment ever produced).
type Segment struct {
	Sequence int64
	Start    time.Duration
	Duration time.Duration
	Payload  []byte
}

// WindowSnapshot is an immutable, playable view of one window: a contiguous
// run of segments anchored at a fixed ring slot. Snapshots are never mutated
// after publication; each append to the underlying window produces a fresh
// snapshot, and evicting a window simply drops the last snapshot reference.
type WindowSnapshot struct {
	// Anchor is the ring slot index where this window begins.
	Anchor int

	// Generation distinguishes successive windows accumulated at the same
	// anchor. It increases every time the ring wraps back to the anchor.
	Generation uint64

	// StartSeq is the sequence number of the window's first segment.
	StartSeq int64

	// Start is the buffer time of the window's first segment.
	Start time.Duration

	// Duration is the accumulated duration of all segments appended so far.
	Duration time.Duration

	// Segments is the number of segments in the snapshot.
	Segments int

	// Payload is the concatenated encoded payload of all segments.
	Payload []byte
}

// End returns the buffer time one past the last appended segment.
func (w *WindowSnapshot) End() time.Duration {
	return w.Start + w.Duration
}

// Covers reports whether bufferTime falls inside [Start, End).
func (w *WindowSnapshot) Covers(bufferTime time.Duration) bool {
	return bufferTime >= w.Start && bufferTime < w.End()
}

// State is a consistent snapshot of the engine's shared timing state, taken
// under a single lock acquisition so callers never observe torn values
// (e.g. an updated segment count with a stale oldest time).
type State struct {
	LiveEdge     time.Duration `json:"live_edge"`
	Oldest       time.Duration `json:"oldest"`
	SegmentCount int64         `json:"segment_count"`
	WindowCount  int           `json:"window_count"`
}

// BufferedSpan returns the currently retained span of buffer time.
func (s State) BufferedSpan() time.Duration {
	if s.LiveEdge < s.Oldest {
		return 0
	}
	return s.LiveEdge - s.Oldest
}

var (
	// ErrCapacityMisconfigured is returned at construction time when the
	// ring capacity or window stride is invalid. It is never a runtime error.
	ErrCapacityMisconfigured = errors.New("ring capacity misconfigured")

	// ErrOutOfRange is returned when a seek target lies outside the retained
	// buffer. Callers recover by clamping to [oldest, liveEdge] and retrying.
	ErrOutOfRange = errors.New("target outside retained buffer")

	// ErrNotYetPlayable is returned when no window has been published yet,
	// so there is nothing a seek could land on.
	ErrNotYetPlayable = errors.New("no playable window yet")

	// ErrJumpInProgress is returned when a cross-window jump is requested
	// while another is still in flight. The in-flight jump completes; the
	// caller may retry.
	ErrJumpInProgress = errors.New("cross-window jump already in progress")
)
