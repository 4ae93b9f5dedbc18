package timeshift

import (
	"errors"
	"reflect"
	"testing"
	"time"
)

func TestPlaybackQueue_cross_window_jump_ordering(t *testing.T) {
	wall := newWallClock()
	ring := newTestRing(t, 45, 10, 25, wall)
	surf := &fakeSurface{}
	q := NewPlaybackQueue(ring, surf)

	inPlace, err := q.Seek(5*time.Second, true, wall.now())
	if err != nil {
		t.Fatalf("Seek: %v", err)
	}
	if inPlace {
		t.Error("first seek has no current window and must jump")
	}

	// Insert before advance before prune: the surface queue is never empty.
	want := []string{"insert", "advance", "seek", "prune"}
	if got := surf.callLog(); !reflect.DeepEqual(got, want) {
		t.Errorf("surface call order: got %v, want %v", got, want)
	}

	cur := q.CurrentWindow()
	if cur == nil || cur.Start != 0 {
		t.Fatalf("current window after jump: %+v", cur)
	}
	if surf.CurrentLocalTime() != 5*time.Second {
		t.Errorf("local offset after jump: got %v, want 5s", surf.CurrentLocalTime())
	}
}

func TestPlaybackQueue_in_place_seek(t *testing.T) {
	wall := newWallClock()
	ring := newTestRing(t, 45, 10, 25, wall)
	surf := &fakeSurface{}
	q := NewPlaybackQueue(ring, surf)

	if _, err := q.Seek(3*time.Second, true, wall.now()); err != nil {
		t.Fatalf("setup seek: %v", err)
	}
	before := len(surf.callLog())

	inPlace, err := q.Seek(7*time.Second, true, wall.now())
	if err != nil {
		t.Fatalf("Seek: %v", err)
	}
	if !inPlace {
		t.Error("target inside the front window must use the fast path")
	}
	calls := surf.callLog()[before:]
	if !reflect.DeepEqual(calls, []string{"seek"}) {
		t.Errorf("fast path surface calls: got %v, want [seek]", calls)
	}

	pos, ok := q.Position()
	if !ok || pos != 7*time.Second {
		t.Errorf("Position: got %v ok=%v, want 7s", pos, ok)
	}
}

func TestPlaybackQueue_seek_to_current_position_is_noop(t *testing.T) {
	wall := newWallClock()
	ring := newTestRing(t, 45, 10, 25, wall)
	surf := &fakeSurface{}
	q := NewPlaybackQueue(ring, surf)

	if _, err := q.Seek(4*time.Second, true, wall.now()); err != nil {
		t.Fatalf("setup seek: %v", err)
	}
	before := len(surf.callLog())

	inPlace, err := q.Seek(4*time.Second, true, wall.now())
	if err != nil || !inPlace {
		t.Fatalf("Seek: inPlace=%v err=%v", inPlace, err)
	}
	if got := surf.callLog(); len(got) != before {
		t.Errorf("seeking to the current position must not touch the surface, extra calls: %v", got[before:])
	}
}

func TestPlaybackQueue_seek_out_of_range(t *testing.T) {
	wall := newWallClock()

	t.Run("not_yet_playable", func(t *testing.T) {
		ring := newTestRing(t, 45, 10, 0, wall)
		q := NewPlaybackQueue(ring, &fakeSurface{})
		_, err := q.Seek(time.Second, true, wall.now())
		if !errors.Is(err, ErrNotYetPlayable) {
			t.Errorf("got %v, want ErrNotYetPlayable", err)
		}
	})

	t.Run("evicted_target", func(t *testing.T) {
		ring := newTestRing(t, 45, 10, 46, wall)
		q := NewPlaybackQueue(ring, &fakeSurface{})
		_, err := q.Seek(time.Second, true, wall.now()) // oldest is 10s
		if !errors.Is(err, ErrOutOfRange) {
			t.Errorf("got %v, want ErrOutOfRange", err)
		}
	})
}

func TestPlaybackQueue_reentrant_jump_rejected(t *testing.T) {
	wall := newWallClock()
	ring := newTestRing(t, 45, 10, 25, wall)
	surf := &fakeSurface{}
	q := NewPlaybackQueue(ring, surf)

	var reentrantErr error
	surf.onInsert = func() {
		// A second cross-window request while this one is mid-flight.
		_, reentrantErr = q.Seek(15*time.Second, false, wall.now())
	}
	if _, err := q.Seek(5*time.Second, true, wall.now()); err != nil {
		t.Fatalf("Seek: %v", err)
	}
	if !errors.Is(reentrantErr, ErrJumpInProgress) {
		t.Errorf("concurrent jump: got %v, want ErrJumpInProgress", reentrantErr)
	}
}

func TestPlaybackQueue_superseded_jump_discarded(t *testing.T) {
	wall := newWallClock()
	ring := newTestRing(t, 45, 10, 25, wall)
	surf := &fakeSurface{}
	q := NewPlaybackQueue(ring, surf)

	if _, err := q.Seek(3*time.Second, true, wall.now()); err != nil {
		t.Fatalf("setup seek: %v", err)
	}

	// While a jump to 15s is in flight, an in-place seek inside the current
	// window supersedes it; the jump must stop applying its remaining steps
	// to the surface and must not overwrite the newer request's state.
	before := len(surf.callLog())
	surf.onInsert = func() {
		surf.onInsert = nil
		if inPlace, err := q.Seek(8*time.Second, true, wall.now()); err != nil || !inPlace {
			t.Errorf("superseding in-place seek: inPlace=%v err=%v", inPlace, err)
		}
	}
	if _, err := q.Seek(15*time.Second, true, wall.now()); err != nil {
		t.Fatalf("jump: %v", err)
	}

	cur := q.CurrentWindow()
	if cur == nil || cur.Start != 0 {
		t.Errorf("superseded jump applied its state: current window %+v, want start 0", cur)
	}

	// The jump got as far as its insert; after the superseding seek it must
	// only prune back to the front unit, never advance onto the stale target.
	calls := surf.callLog()[before:]
	if !reflect.DeepEqual(calls, []string{"insert", "seek", "prune"}) {
		t.Errorf("surface calls during superseded jump: got %v, want [insert seek prune]", calls)
	}
	if got := surf.CurrentLocalTime(); got != 8*time.Second {
		t.Errorf("surface local time: got %v, want the superseding seek's 8s", got)
	}
	if pos, ok := q.Position(); !ok || pos != 8*time.Second {
		t.Errorf("Position: got %v ok=%v, want 8s", pos, ok)
	}
}

func TestPlaybackQueue_on_publish(t *testing.T) {
	wall := newWallClock()
	ring, err := NewRing(45, 10, time.Second, NewTimelineClock(0))
	if err != nil {
		t.Fatal(err)
	}
	surf := &fakeSurface{}
	q := NewPlaybackQueue(ring, surf)

	first := ring.Append([]byte{1}, wall.advance(time.Second)).Snapshot
	q.OnPublish(first)
	if _, err := q.Seek(0, true, wall.now()); err != nil {
		t.Fatalf("seek: %v", err)
	}

	t.Run("republish_grows_front_window", func(t *testing.T) {
		grown := ring.Append([]byte{2}, wall.advance(time.Second)).Snapshot
		q.OnPublish(grown)
		if cur := q.CurrentWindow(); cur == nil || cur.Duration != 2*time.Second {
			t.Errorf("front window: got %+v, want 2s duration", cur)
		}
	})

	t.Run("new_window_appended", func(t *testing.T) {
		appendSegments(ring, 9, wall) // fills window 0, starts window at anchor 10
		next := ring.Append([]byte{3}, wall.advance(time.Second)).Snapshot
		q.OnPublish(next)
		if cur := q.CurrentWindow(); cur == nil || cur.Start != 0 {
			t.Errorf("front window must stay put, got %+v", cur)
		}
	})

	t.Run("nil_snapshot_ignored", func(t *testing.T) {
		q.OnPublish(nil)
	})
}

func TestPlaybackQueue_position_before_first_seek(t *testing.T) {
	wall := newWallClock()
	ring := newTestRing(t, 45, 10, 5, wall)
	q := NewPlaybackQueue(ring, &fakeSurface{})

	if _, ok := q.Position(); ok {
		t.Error("Position must report ok=false before the first seek")
	}
	if q.CurrentWindow() != nil {
		t.Error("CurrentWindow must be nil before the first seek")
	}
}
