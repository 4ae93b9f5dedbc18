package timeshift

import (
	"fmt"
	"sync"
	"time"
)

const (
	// DefaultCapacity is the default number of ring slots (one per segment).
	DefaultCapacity = 45

	// DefaultStride is the default number of slots per window anchor.
	DefaultStride = 10

	// DefaultSegmentDuration is the nominal duration of one segment.
	DefaultSegmentDuration = time.Second
)

// window is the mutable accumulation state for one anchor. Its payload buffer
// is appended to while the window fills; published snapshots copy out of it.
type window struct {
	anchor     int
	generation uint64
	startSeq   int64
	start      time.Duration
	duration   time.Duration
	segments   int
	buf        []byte
}

// AppendResult reports what a single Append did.
type AppendResult struct {
	// Snapshot is the republished immutable snapshot of the window that
	// received the segment. Nil only if the window was superseded while the
	// snapshot copy was being built, which can happen under a concurrent
	// wrap to the same anchor.
	Snapshot *WindowSnapshot

	// Replaced is true when this append wrapped onto an anchor and abandoned
	// the previous window accumulated there.
	Replaced bool

	// CorrectionSuppressed is true when the per-segment timeline correction
	// exceeded the jitter threshold and was discarded.
	CorrectionSuppressed bool
}

// Ring stores segment metadata and payload grouped into fixed-stride windows
// over a fixed number of slots. Eviction is wholesale: when the segment index
// wraps back onto an anchor slot, a fresh window begins accumulating there
// and the previous window's snapshot simply loses its table reference. The
// snapshot itself stays valid for anyone still holding it, so playback never
// observes in-place truncation.
//
// Ring owns the TimelineClock; every mutation of windows, the segment
// counter, and the clock happens under one mutex, and Reset shares that same
// mutex with Append.
type Ring struct {
	mu sync.Mutex

	capacity int
	stride   int
	segDur   time.Duration
	clock    *TimelineClock

	windows    map[int]*window
	published  map[int]*WindowSnapshot
	segIndex   int64
	end        time.Duration
	generation uint64
}

// NewRing validates the geometry and returns a ring. Anchors sit every
// stride slots; when the stride does not divide the capacity, the last
// window of a revolution simply spans fewer slots. Windows always cover
// disjoint, unbroken slot spans.
func NewRing(capacity, stride int, segDur time.Duration, clock *TimelineClock) (*Ring, error) {
	if capacity <= 0 || stride <= 0 || stride > capacity {
		return nil, fmt.Errorf("%w: capacity=%d stride=%d", ErrCapacityMisconfigured, capacity, stride)
	}
	if segDur <= 0 {
		segDur = DefaultSegmentDuration
	}
	if clock == nil {
		clock = NewTimelineClock(0)
	}
	return &Ring{
		capacity:  capacity,
		stride:    stride,
		segDur:    segDur,
		clock:     clock,
		windows:   make(map[int]*window),
		published: make(map[int]*WindowSnapshot),
	}, nil
}

// Append inserts one segment payload at slot segIndex mod capacity, updates
// the timeline clock, and republishes the receiving window's snapshot.
//
// The snapshot's payload copy is built outside the critical section and
// installed only if the window has not been superseded in the meantime, so
// the producer is never blocked on an O(window) copy.
func (r *Ring) Append(payload []byte, producedAt time.Time) AppendResult {
	var res AppendResult

	r.mu.Lock()
	slot := int(r.segIndex % int64(r.capacity))
	anchor := slot - slot%r.stride

	w := r.windows[anchor]
	if slot%r.stride == 0 {
		// Landing on an anchor always begins a fresh window; the previous
		// one at this anchor (a full ring revolution old) is abandoned.
		res.Replaced = w != nil
		r.generation++
		w = &window{
			anchor:     anchor,
			generation: r.generation,
			startSeq:   r.segIndex,
			start:      r.end,
		}
		r.windows[anchor] = w
		delete(r.published, anchor)
	}

	w.buf = append(w.buf, payload...)
	w.duration += r.segDur
	w.segments++
	r.end += r.segDur
	r.segIndex++

	if r.clock.AwaitingFirstSegment() {
		// The pipeline's startup latency after a resume is absorbed here:
		// the clock is re-anchored to the value it was pinned at.
		r.clock.FirstSegmentAfterResume(producedAt, r.clock.Now(producedAt))
	} else {
		res.CorrectionSuppressed = !r.clock.SegmentProduced(r.end, producedAt)
	}

	gen := w.generation
	meta := WindowSnapshot{
		Anchor:     w.anchor,
		Generation: gen,
		StartSeq:   w.startSeq,
		Start:      w.start,
		Duration:   w.duration,
		Segments:   w.segments,
	}
	buf := w.buf
	n := len(buf)
	r.mu.Unlock()

	// Bytes below n were fully written before the lock was released and are
	// never rewritten; later appends either extend in place past n or move
	// to a new array. Copying them unlocked is therefore race-free.
	snap := &meta
	snap.Payload = make([]byte, n)
	copy(snap.Payload, buf[:n])

	r.mu.Lock()
	if cur, ok := r.windows[anchor]; ok && cur.generation == gen {
		r.published[anchor] = snap
		res.Snapshot = snap
	}
	r.mu.Unlock()

	return res
}

// Reset clears all windows, the segment counter, and the timeline clock
// atomically with respect to Append. It is for cold start or explicit full
// reinitialization only, never for a transient pipeline pause.
func (r *Ring) Reset() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.windows = make(map[int]*window)
	r.published = make(map[int]*WindowSnapshot)
	r.segIndex = 0
	r.end = 0
	r.generation = 0
	r.clock.Reset()
}

// WindowCovering returns the published snapshot whose [Start, End) range
// contains bufferTime, along with the local offset into it.
//
// Buffer time up at the live edge can run slightly past the newest snapshot's
// accumulated end, because the clock advances continuously between segment
// arrivals. Targets in that sliver resolve to the newest window, clamped to
// its duration, so any t in [oldest, liveEdge) always finds a window.
func (r *Ring) WindowCovering(bufferTime time.Duration, wallNow time.Time) (*WindowSnapshot, time.Duration, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if len(r.published) == 0 {
		return nil, 0, ErrNotYetPlayable
	}

	var newest *WindowSnapshot
	for _, snap := range r.published {
		if snap.Covers(bufferTime) {
			return snap, bufferTime - snap.Start, nil
		}
		if newest == nil || snap.Start > newest.Start {
			newest = snap
		}
	}

	if bufferTime >= newest.Start && bufferTime < r.clock.Now(wallNow) {
		local := bufferTime - newest.Start
		if local > newest.Duration {
			local = newest.Duration
		}
		return newest, local, nil
	}

	return nil, 0, fmt.Errorf("%w: t=%s", ErrOutOfRange, bufferTime)
}

// LiveEdge returns the current buffer time.
func (r *Ring) LiveEdge(wallNow time.Time) time.Duration {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.clock.Now(wallNow)
}

// OldestAvailable returns the buffer-time start of the oldest surviving
// window, or zero when the ring is empty.
func (r *Ring) OldestAvailable() time.Duration {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.oldestLocked()
}

func (r *Ring) oldestLocked() time.Duration {
	var oldest time.Duration
	first := true
	for _, w := range r.windows {
		if first || w.start < oldest {
			oldest = w.start
			first = false
		}
	}
	return oldest
}

// SegmentCount returns the total number of segments ever appended.
func (r *Ring) SegmentCount() int64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.segIndex
}

// State takes one consistent snapshot of the shared timing state.
func (r *Ring) State(wallNow time.Time) State {
	r.mu.Lock()
	defer r.mu.Unlock()
	return State{
		LiveEdge:     r.clock.Now(wallNow),
		Oldest:       r.oldestLocked(),
		SegmentCount: r.segIndex,
		WindowCount:  len(r.windows),
	}
}

// Pause freezes the timeline; called when the capture pipeline is about to
// stop producing segments.
func (r *Ring) Pause(wallNow time.Time) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.clock.Pause(wallNow)
}

// Resume reconciles the timeline across the pause gap. Buffer time is
// unchanged immediately after resume and stays pinned until the first
// post-resume segment arrives.
func (r *Ring) Resume(wallNow time.Time) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.clock.Resume(wallNow)
}
