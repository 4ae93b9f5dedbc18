package feed

import (
	"testing"
	"time"

	"timeshift-engine/internal/timeshift"
)

type noopSurface struct{}

func (noopSurface) CurrentLocalTime() time.Duration              { return 0 }
func (noopSurface) SeekWithinCurrent(time.Duration)              {}
func (noopSurface) InsertAfterCurrent(*timeshift.WindowSnapshot) {}
func (noopSurface) AdvanceToNext()                               {}
func (noopSurface) RemoveAllExcept(*timeshift.WindowSnapshot)    {}
func (noopSurface) Play()                                        {}
func (noopSurface) Pause()                                       {}

func newTestEngine(t *testing.T, now func() time.Time) *timeshift.Engine {
	t.Helper()
	cfg := timeshift.DefaultConfig()
	cfg.Now = now
	e, err := timeshift.NewEngine(cfg, noopSurface{}, nil, nil)
	if err != nil {
		t.Fatalf("NewEngine: %v", err)
	}
	return e
}

func TestSimulator_emit_delivers_segments(t *testing.T) {
	at := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	e := newTestEngine(t, func() time.Time { return at })
	sim := NewSimulator(e, time.Second, 64, nil)

	for i := 0; i < 5; i++ {
		at = at.Add(time.Second)
		sim.Emit(at)
	}

	st := e.Status()
	if st.SegmentCount != 5 {
		t.Errorf("segment count: got %d, want 5", st.SegmentCount)
	}
	if st.LiveEdgeSeconds != 5 {
		t.Errorf("live edge: got %v, want 5", st.LiveEdgeSeconds)
	}
}

func TestSimulator_payload_is_sequence_stamped(t *testing.T) {
	e := newTestEngine(t, time.Now)
	sim := NewSimulator(e, time.Second, 32, nil)

	p0 := sim.makePayload()
	sim.seq = 3
	p3 := sim.makePayload()

	if len(p0) != 32 || len(p3) != 32 {
		t.Fatalf("payload sizes: %d, %d, want 32", len(p0), len(p3))
	}
	if p0[7] != 0 || p3[7] != 3 {
		t.Errorf("sequence stamp: got %d and %d, want 0 and 3", p0[7], p3[7])
	}
	if p0[20] != 0 || p3[20] != 3 {
		t.Errorf("fill byte: got %d and %d, want 0 and 3", p0[20], p3[20])
	}
}

func TestSimulator_defaults(t *testing.T) {
	e := newTestEngine(t, time.Now)
	sim := NewSimulator(e, 0, 0, nil)
	if sim.interval != timeshift.DefaultSegmentDuration {
		t.Errorf("interval: got %v, want %v", sim.interval, timeshift.DefaultSegmentDuration)
	}
	if sim.payloadSize != DefaultPayloadSize {
		t.Errorf("payload size: got %d, want %d", sim.payloadSize, DefaultPayloadSize)
	}
}
