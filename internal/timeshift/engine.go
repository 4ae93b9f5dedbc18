package timeshift

import (
	"io"
	"log/slog"
	"sync/atomic"
	"time"

	"timeshift-engine/internal/platform/metrics"
)

// Config carries the engine's tunables.
type Config struct {
	// Capacity is the number of ring slots.
	Capacity int
	// Stride is the number of slots per window anchor.
	Stride int
	// SegmentDuration is the nominal duration of one delivered segment.
	SegmentDuration time.Duration
	// JitterThreshold bounds normal per-segment timeline corrections.
	JitterThreshold time.Duration
	// Delay configures the user-facing delay window.
	Delay DelayConfig
	// Now overrides the wall clock, for tests. Nil means time.Now.
	Now func() time.Time
}

// DefaultConfig returns the stock 45-slot, 10-stride geometry.
func DefaultConfig() Config {
	return Config{
		Capacity:        DefaultCapacity,
		Stride:          DefaultStride,
		SegmentDuration: DefaultSegmentDuration,
		JitterThreshold: DefaultJitterThreshold,
		Delay:           DefaultDelayConfig(),
	}
}

// Engine is the live ring-buffer and timeline-synchronization engine: it
// accepts segments from the capture pipeline, retains a bounded sliding
// window of them, and lets the viewer scrub anywhere inside the delay window
// without stalling capture.
type Engine struct {
	log   *slog.Logger
	met   *metrics.Metrics
	ring  *Ring
	queue *PlaybackQueue
	delay *DelayController

	now    func() time.Time
	paused atomic.Bool
}

// NewEngine wires the engine for the given surface. log and met may be nil
// (logging and metric recording are then disabled).
func NewEngine(cfg Config, surface Surface, log *slog.Logger, met *metrics.Metrics) (*Engine, error) {
	if cfg.Capacity == 0 && cfg.Stride == 0 {
		def := DefaultConfig()
		cfg.Capacity = def.Capacity
		cfg.Stride = def.Stride
	}
	ring, err := NewRing(cfg.Capacity, cfg.Stride, cfg.SegmentDuration, NewTimelineClock(cfg.JitterThreshold))
	if err != nil {
		return nil, err
	}
	if log == nil {
		log = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	now := cfg.Now
	if now == nil {
		now = time.Now
	}
	queue := NewPlaybackQueue(ring, surface)
	delay := NewDelayController(ring, queue, surface, cfg.Delay, met)
	return &Engine{
		log:   log,
		met:   met,
		ring:  ring,
		queue: queue,
		delay: delay,
		now:   now,
	}, nil
}

// Deliver accepts one segment payload from the segment source, tagged with
// its production instant. Calls must arrive in production order.
func (e *Engine) Deliver(payload []byte, producedAt time.Time) {
	res := e.ring.Append(payload, producedAt)
	if e.met != nil {
		e.met.IncSegmentsAppended()
		if res.Replaced {
			e.met.IncWindowsReplaced()
		}
		if res.CorrectionSuppressed {
			e.met.IncCorrectionsSuppressed()
		}
	}
	if res.Replaced {
		e.log.Debug("window replaced", slog.Duration("oldest", e.ring.OldestAvailable()))
	}
	if res.CorrectionSuppressed {
		e.log.Debug("timeline correction suppressed")
	}
	e.queue.OnPublish(res.Snapshot)
}

// Rewind moves the viewer further behind the live edge.
func (e *Engine) Rewind(by time.Duration) (time.Duration, error) {
	return e.delay.Rewind(by, e.now())
}

// Forward moves the viewer closer to the live edge.
func (e *Engine) Forward(by time.Duration) (time.Duration, error) {
	return e.delay.Forward(by, e.now())
}

// PinDelay pins an explicit delay behind the live edge.
func (e *Engine) PinDelay(delay time.Duration) (time.Duration, error) {
	return e.delay.PinDelay(delay, e.now())
}

// GoLive returns the viewer to the minimum delay.
func (e *Engine) GoLive() (time.Duration, error) {
	return e.delay.GoLive(e.now())
}

// ScrubTo seeks to a normalized fraction of the scrubbable span.
func (e *Engine) ScrubTo(fraction float64) (time.Duration, error) {
	return e.delay.ScrubTo(fraction, e.now())
}

// TogglePlayPause flips between playing and paused.
func (e *Engine) TogglePlayPause() PlayState {
	return e.delay.TogglePlayPause(e.now())
}

// Tick drives the periodic delay policy; call at UI rate (~20 Hz).
func (e *Engine) Tick() {
	e.delay.Tick(e.now())
}

// PipelineWillPause freezes the timeline ahead of a capture pause.
func (e *Engine) PipelineWillPause() {
	e.ring.Pause(e.now())
	e.paused.Store(true)
	e.log.Info("pipeline paused", slog.Duration("live_edge", e.ring.LiveEdge(e.now())))
}

// PipelineDidResume reconciles the timeline after a capture pause. Buffer
// time is unchanged until the first post-resume segment arrives.
func (e *Engine) PipelineDidResume() {
	e.ring.Resume(e.now())
	e.paused.Store(false)
	e.log.Info("pipeline resumed", slog.Duration("live_edge", e.ring.LiveEdge(e.now())))
}

// PipelinePaused reports whether the capture pipeline is paused.
func (e *Engine) PipelinePaused() bool {
	return e.paused.Load()
}

// Reset fully reinitializes the engine: ring, counters, clock, and queue.
// Never used for a transient pipeline pause.
func (e *Engine) Reset() {
	e.ring.Reset()
	e.queue.Clear()
	e.paused.Store(false)
	e.log.Info("engine reset")
}

// Status is the JSON view of the engine for the control surface.
type Status struct {
	LiveEdgeSeconds     float64  `json:"live_edge_seconds"`
	OldestSeconds       float64  `json:"oldest_seconds"`
	BufferedSpanSeconds float64  `json:"buffered_span_seconds"`
	SegmentCount        int64    `json:"segment_count"`
	WindowCount         int      `json:"window_count"`
	PositionSeconds     *float64 `json:"position_seconds"`
	DisplayDelaySeconds *float64 `json:"display_delay_seconds"`
	PinnedDelaySeconds  float64  `json:"pinned_delay_seconds"`
	PlayState           string   `json:"play_state"`
	LeftBound           float64  `json:"left_bound"`
	RightBound          float64  `json:"right_bound"`
	PipelinePaused      bool     `json:"pipeline_paused"`
}

// Status reports the engine state for the UI. Every timing-derived field is
// computed from one ring state snapshot, so live edge, span, bounds, and the
// measured delay never disagree within a response; a nil display delay means
// "live/undefined".
func (e *Engine) Status() Status {
	wallNow := e.now()
	st := e.ring.State(wallNow)
	left, right := e.delay.Bounds(st)

	out := Status{
		LiveEdgeSeconds:     st.LiveEdge.Seconds(),
		OldestSeconds:       st.Oldest.Seconds(),
		BufferedSpanSeconds: st.BufferedSpan().Seconds(),
		SegmentCount:        st.SegmentCount,
		WindowCount:         st.WindowCount,
		PinnedDelaySeconds:  e.delay.PinnedDelay().Seconds(),
		PlayState:           e.delay.State().String(),
		LeftBound:           left,
		RightBound:          right,
		PipelinePaused:      e.paused.Load(),
	}
	if pos, ok := e.queue.Position(); ok {
		v := pos.Seconds()
		out.PositionSeconds = &v
	}
	if d, ok := e.delay.DisplayDelay(st); ok {
		v := d.Seconds()
		out.DisplayDelaySeconds = &v
	}
	return out
}
