package timeshift

import (
	"sync"
	"testing"
	"time"
)

// wallClock is a manually advanced wall clock for deterministic tests.
type wallClock struct {
	mu sync.Mutex
	t  time.Time
}

func newWallClock() *wallClock {
	return &wallClock{t: time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)}
}

func (w *wallClock) now() time.Time {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.t
}

func (w *wallClock) advance(d time.Duration) time.Time {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.t = w.t.Add(d)
	return w.t
}

// fakeSurface records the order of playback-surface calls.
type fakeSurface struct {
	mu      sync.Mutex
	calls   []string
	local   time.Duration
	playing bool

	// onInsert, when set, runs during InsertAfterCurrent. Used to exercise
	// concurrent seek requests arriving mid-jump.
	onInsert func()
}

func (f *fakeSurface) CurrentLocalTime() time.Duration {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.local
}

func (f *fakeSurface) SeekWithinCurrent(local time.Duration) {
	f.record("seek")
	f.mu.Lock()
	f.local = local
	f.mu.Unlock()
}

func (f *fakeSurface) InsertAfterCurrent(_ *WindowSnapshot) {
	f.record("insert")
	if f.onInsert != nil {
		f.onInsert()
	}
}

func (f *fakeSurface) AdvanceToNext() { f.record("advance") }

func (f *fakeSurface) RemoveAllExcept(_ *WindowSnapshot) { f.record("prune") }

func (f *fakeSurface) Play() {
	f.record("play")
	f.mu.Lock()
	f.playing = true
	f.mu.Unlock()
}

func (f *fakeSurface) Pause() {
	f.record("pause")
	f.mu.Lock()
	f.playing = false
	f.mu.Unlock()
}

func (f *fakeSurface) record(call string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, call)
}

func (f *fakeSurface) callLog() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]string, len(f.calls))
	copy(out, f.calls)
	return out
}

// newTestRing builds a ring and appends n one-second segments, advancing the
// wall clock in lockstep so the timeline clock tracks without jitter.
func newTestRing(t *testing.T, capacity, stride, n int, wall *wallClock) *Ring {
	t.Helper()
	ring, err := NewRing(capacity, stride, time.Second, NewTimelineClock(0))
	if err != nil {
		t.Fatalf("NewRing: %v", err)
	}
	appendSegments(ring, n, wall)
	return ring
}

func appendSegments(ring *Ring, n int, wall *wallClock) {
	for i := 0; i < n; i++ {
		ring.Append([]byte{byte(i)}, wall.advance(time.Second))
	}
}
