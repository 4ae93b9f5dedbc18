package timeshift

import (
	"sync"
	"time"
)

// Surface is the playback surface consuming queue operations: it renders
// window units in order and reports the local playback position within the
// current unit. The engine calls the surface, never the other way around.
type Surface interface {
	CurrentLocalTime() time.Duration
	SeekWithinCurrent(local time.Duration)
	InsertAfterCurrent(unit *WindowSnapshot)
	AdvanceToNext()
	RemoveAllExcept(unit *WindowSnapshot)
	Play()
	Pause()
}

// PlaybackQueue owns the ordered queue of playable window units handed to the
// surface and converts absolute buffer-time targets into either an in-place
// seek within the front unit or a cross-window queue rebuild.
//
// Cross-window jumps are serialized: a second jump requested while one is in
// flight is rejected with ErrJumpInProgress. An in-place seek is allowed to
// supersede an in-flight jump; every accepted seek bumps a monotonic token,
// and a jump completion whose token is stale discards its result instead of
// applying it to superseded state.
type PlaybackQueue struct {
	mu sync.Mutex

	ring    *Ring
	surface Surface

	units        []*WindowSnapshot
	currentStart time.Duration
	hasCurrent   bool

	jumping bool
	token   uint64
}

// NewPlaybackQueue returns a queue feeding the given surface from the ring.
func NewPlaybackQueue(ring *Ring, surface Surface) *PlaybackQueue {
	return &PlaybackQueue{ring: ring, surface: surface}
}

// OnPublish accepts a new or republished window snapshot from the ring.
// A snapshot for a queued unit's window replaces that unit's handle in place
// (the front unit keeps growing this way until its window is sealed); a
// snapshot for a newer window is appended. Queued units whose window was
// evicted and re-anchored are dropped, so the queue never holds a handle the
// ring can no longer resolve.
func (q *PlaybackQueue) OnPublish(snap *WindowSnapshot) {
	if snap == nil {
		return
	}
	q.mu.Lock()
	defer q.mu.Unlock()

	for i, u := range q.units {
		if u.Anchor != snap.Anchor {
			continue
		}
		if u.StartSeq == snap.StartSeq {
			q.units[i] = snap
			return
		}
		if i > 0 {
			// A not-yet-played unit was evicted by a wrap; forget it.
			q.units = append(q.units[:i], q.units[i+1:]...)
		}
		break
	}

	if n := len(q.units); n == 0 || snap.StartSeq > q.units[n-1].StartSeq {
		q.units = append(q.units, snap)
	}
}

// Seek moves playback to target. When allowInPlace is set and target falls
// inside the front unit's covering range, the fast path seeks within the
// current unit without touching queue order. Otherwise a cross-window jump
// runs: resolve the covering window, insert it after the current front,
// advance the surface to it, seek, then prune the rest. That ordering never
// leaves the surface with an empty queue.
//
// It reports whether the fast path was taken. Errors: ErrOutOfRange when the
// target is outside the retained buffer (callers clamp and retry),
// ErrNotYetPlayable when nothing has been published, ErrJumpInProgress when
// a cross-window jump is already in flight.
func (q *PlaybackQueue) Seek(target time.Duration, allowInPlace bool, wallNow time.Time) (bool, error) {
	q.mu.Lock()

	if allowInPlace && q.hasCurrent && len(q.units) > 0 {
		front := q.units[0]
		if target >= q.currentStart && target < q.currentStart+front.Duration {
			local := target - q.currentStart
			q.token++
			q.mu.Unlock()
			// Seeking to the exact current position is a no-op.
			if q.surface.CurrentLocalTime() != local {
				q.surface.SeekWithinCurrent(local)
			}
			return true, nil
		}
	}

	if q.jumping {
		q.mu.Unlock()
		return false, ErrJumpInProgress
	}
	q.jumping = true
	q.token++
	myToken := q.token
	q.mu.Unlock()

	snap, local, err := q.ring.WindowCovering(target, wallNow)
	if err != nil {
		q.mu.Lock()
		q.jumping = false
		q.mu.Unlock()
		return false, err
	}

	// Every surface mutation is guarded by a token check: the moment a newer
	// seek supersedes this jump, the remaining steps are skipped and the
	// surface never finishes rendering the stale target.
	steps := []func(){
		func() { q.surface.InsertAfterCurrent(snap) },
		func() { q.surface.AdvanceToNext() },
		func() { q.surface.SeekWithinCurrent(local) },
		func() { q.surface.RemoveAllExcept(snap) },
	}
	for _, step := range steps {
		if !q.tokenIs(myToken) {
			return q.abandonJump()
		}
		step()
	}

	q.mu.Lock()
	if q.token != myToken {
		q.mu.Unlock()
		return q.abandonJump()
	}
	defer q.mu.Unlock()
	q.jumping = false
	q.units = q.units[:0]
	q.units = append(q.units, snap)
	q.currentStart = snap.Start
	q.hasCurrent = true
	return false, nil
}

func (q *PlaybackQueue) tokenIs(token uint64) bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.token == token
}

// abandonJump ends a superseded jump. The surface is pruned back to the unit
// the queue still describes, so any step the jump already applied (such as an
// inserted unit for the stale target) is undone; the queue state belongs to
// the newer request and is left untouched.
func (q *PlaybackQueue) abandonJump() (bool, error) {
	q.mu.Lock()
	q.jumping = false
	var front *WindowSnapshot
	if q.hasCurrent && len(q.units) > 0 {
		front = q.units[0]
	}
	q.mu.Unlock()
	if front != nil {
		q.surface.RemoveAllExcept(front)
	}
	return false, nil
}

// Position returns the global buffer time currently rendered: the front
// unit's global start plus the local offset reported by the surface, clamped
// to the front unit's duration. ok is false before the first seek.
func (q *PlaybackQueue) Position() (pos time.Duration, ok bool) {
	q.mu.Lock()
	if !q.hasCurrent || len(q.units) == 0 {
		q.mu.Unlock()
		return 0, false
	}
	start := q.currentStart
	limit := q.units[0].Duration
	q.mu.Unlock()

	local := q.surface.CurrentLocalTime()
	if local > limit {
		local = limit
	}
	return start + local, true
}

// CurrentWindow returns the handle of the unit at the front of the queue,
// or nil before the first seek.
func (q *PlaybackQueue) CurrentWindow() *WindowSnapshot {
	q.mu.Lock()
	defer q.mu.Unlock()
	if !q.hasCurrent || len(q.units) == 0 {
		return nil
	}
	return q.units[0]
}

// Clear forgets all queued units. Part of a full engine reset.
func (q *PlaybackQueue) Clear() {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.units = nil
	q.hasCurrent = false
	q.currentStart = 0
	q.jumping = false
	q.token++
}
