package timeshift

import (
	"errors"
	"testing"
	"time"
)

func TestNewRing_misconfigured(t *testing.T) {
	cases := []struct {
		name             string
		capacity, stride int
	}{
		{"zero_capacity", 0, 10},
		{"negative_capacity", -1, 10},
		{"zero_stride", 45, 0},
		{"stride_larger_than_capacity", 10, 45},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := NewRing(tc.capacity, tc.stride, time.Second, nil)
			if !errors.Is(err, ErrCapacityMisconfigured) {
				t.Errorf("NewRing(%d, %d): got %v, want ErrCapacityMisconfigured", tc.capacity, tc.stride, err)
			}
		})
	}
}

func TestRing_window_replacement_on_wrap(t *testing.T) {
	wall := newWallClock()
	ring, err := NewRing(45, 10, time.Second, NewTimelineClock(0))
	if err != nil {
		t.Fatal(err)
	}

	replaced := 0
	for i := 0; i < 45; i++ {
		res := ring.Append([]byte{byte(i)}, wall.advance(time.Second))
		if res.Replaced {
			replaced++
		}
		if res.Snapshot == nil {
			t.Fatalf("append %d: no snapshot published", i)
		}
	}
	if replaced != 0 {
		t.Fatalf("no window should be replaced before the first wrap, got %d", replaced)
	}

	st := ring.State(wall.now())
	if st.WindowCount != 5 {
		t.Errorf("window count after 45 segments: got %d, want 5", st.WindowCount)
	}
	if st.Oldest != 0 {
		t.Errorf("oldest before wrap: got %v, want 0", st.Oldest)
	}
	if st.SegmentCount != 45 {
		t.Errorf("segment count: got %d, want 45", st.SegmentCount)
	}

	// Segment 46 wraps onto slot 0: the window anchored there is replaced
	// exactly once, wholesale, and the oldest retained time jumps to the
	// start of the next surviving window.
	res := ring.Append([]byte{46}, wall.advance(time.Second))
	if !res.Replaced {
		t.Error("append 46 should replace the anchor-0 window")
	}
	st = ring.State(wall.now())
	if st.Oldest != 10*time.Second {
		t.Errorf("oldest after wrap: got %v, want 10s", st.Oldest)
	}
	if st.WindowCount != 5 {
		t.Errorf("window count after wrap: got %d, want 5", st.WindowCount)
	}
}

func TestRing_oldest_monotone_once_full(t *testing.T) {
	wall := newWallClock()
	ring := newTestRing(t, 20, 10, 20, wall)

	prev := ring.OldestAvailable()
	for i := 0; i < 40; i++ {
		ring.Append([]byte{byte(i)}, wall.advance(time.Second))
		cur := ring.OldestAvailable()
		if cur < prev {
			t.Fatalf("oldest went backwards at append %d: %v -> %v", i, prev, cur)
		}
		prev = cur
	}
}

func TestRing_window_covering_total(t *testing.T) {
	wall := newWallClock()
	ring := newTestRing(t, 45, 10, 46, wall)
	wallNow := wall.now()

	st := ring.State(wallNow)
	for tt := st.Oldest; tt < st.LiveEdge; tt += 500 * time.Millisecond {
		snap, local, err := ring.WindowCovering(tt, wallNow)
		if err != nil {
			t.Fatalf("WindowCovering(%v): %v", tt, err)
		}
		if local < 0 || local > snap.Duration {
			t.Fatalf("WindowCovering(%v): local %v outside window of %v", tt, local, snap.Duration)
		}
	}
}

func TestRing_window_covering_out_of_range(t *testing.T) {
	wall := newWallClock()

	t.Run("empty_ring", func(t *testing.T) {
		ring := newTestRing(t, 45, 10, 0, wall)
		_, _, err := ring.WindowCovering(0, wall.now())
		if !errors.Is(err, ErrNotYetPlayable) {
			t.Errorf("got %v, want ErrNotYetPlayable", err)
		}
	})

	t.Run("below_oldest_and_past_live", func(t *testing.T) {
		ring := newTestRing(t, 45, 10, 46, wall)
		wallNow := wall.now()
		st := ring.State(wallNow)

		_, _, err := ring.WindowCovering(st.Oldest-time.Second, wallNow)
		if !errors.Is(err, ErrOutOfRange) {
			t.Errorf("below oldest: got %v, want ErrOutOfRange", err)
		}
		_, _, err = ring.WindowCovering(st.LiveEdge+time.Minute, wallNow)
		if !errors.Is(err, ErrOutOfRange) {
			t.Errorf("past live edge: got %v, want ErrOutOfRange", err)
		}
	})
}

func TestRing_window_covering_near_live_edge(t *testing.T) {
	wall := newWallClock()
	ring := newTestRing(t, 45, 10, 12, wall)

	// The clock keeps advancing between segment arrivals; a target in the
	// sliver between the newest window's accumulated end and the live edge
	// must still resolve (clamped into the newest window).
	wallNow := wall.advance(600 * time.Millisecond)
	live := ring.LiveEdge(wallNow)
	snap, local, err := ring.WindowCovering(live-100*time.Millisecond, wallNow)
	if err != nil {
		t.Fatalf("WindowCovering near live edge: %v", err)
	}
	if snap.Start != 10*time.Second {
		t.Errorf("expected newest window (start 10s), got start %v", snap.Start)
	}
	if local > snap.Duration {
		t.Errorf("local %v exceeds window duration %v", local, snap.Duration)
	}
}

func TestRing_snapshots_are_immutable(t *testing.T) {
	wall := newWallClock()
	ring, err := NewRing(45, 10, time.Second, NewTimelineClock(0))
	if err != nil {
		t.Fatal(err)
	}

	first := ring.Append([]byte{1, 2, 3}, wall.advance(time.Second)).Snapshot
	if first == nil {
		t.Fatal("no snapshot from first append")
	}
	if first.Duration != time.Second || len(first.Payload) != 3 {
		t.Fatalf("first snapshot: duration=%v payload=%d", first.Duration, len(first.Payload))
	}

	// Growing the same window republishes a new snapshot; the old one must
	// not change underneath anyone still holding it.
	second := ring.Append([]byte{4, 5}, wall.advance(time.Second)).Snapshot
	if first.Duration != time.Second || len(first.Payload) != 3 {
		t.Error("earlier snapshot mutated by a later append")
	}
	if second.Duration != 2*time.Second || len(second.Payload) != 5 {
		t.Errorf("second snapshot: duration=%v payload=%d", second.Duration, len(second.Payload))
	}
	if second.Generation != first.Generation || second.StartSeq != first.StartSeq {
		t.Error("snapshots of the same window must share generation and start")
	}
}

func TestRing_reset(t *testing.T) {
	wall := newWallClock()
	ring := newTestRing(t, 45, 10, 20, wall)

	ring.Reset()
	st := ring.State(wall.now())
	if st.SegmentCount != 0 || st.WindowCount != 0 || st.LiveEdge != 0 || st.Oldest != 0 {
		t.Errorf("state after reset: %+v", st)
	}

	// The ring is usable again from scratch.
	res := ring.Append([]byte{9}, wall.advance(time.Second))
	if res.Snapshot == nil || res.Snapshot.Start != 0 {
		t.Errorf("first append after reset should start a window at 0, got %+v", res.Snapshot)
	}
}
