package timeshift

import (
	"errors"
	"sync"
	"time"

	"timeshift-engine/internal/platform/metrics"
)

// PlayState is the auto-start state machine of the delay controller.
type PlayState int

const (
	// StateUnknown means playback has never started; the controller waits
	// until enough content is buffered to honor the desired starting delay.
	StateUnknown PlayState = iota
	// StatePaused means the viewer paused; the controller watches the
	// measured delay so the buffer never outruns the scrub window.
	StatePaused
	// StatePlaying means playback is running at the pinned delay.
	StatePlaying
)

func (s PlayState) String() string {
	switch s {
	case StatePaused:
		return "paused"
	case StatePlaying:
		return "playing"
	default:
		return "unknown"
	}
}

// DelayConfig bounds user-driven navigation behind the live edge.
type DelayConfig struct {
	// Min is the closest a viewer may get to the live edge.
	Min time.Duration
	// Max is the deepest pinnable delay, capped further by retained content.
	Max time.Duration
	// DesiredStart is the delay to start playback at once buffered.
	DesiredStart time.Duration
	// AutoResumeEpsilon is how close the measured delay may get to Max while
	// paused before playback auto-resumes.
	AutoResumeEpsilon time.Duration
	// ResyncThreshold is how far the measured delay may drift from the
	// pinned delay during playback before the controller re-seeks.
	ResyncThreshold time.Duration
}

// DefaultDelayConfig returns the stock 2s..30s delay window.
func DefaultDelayConfig() DelayConfig {
	return DelayConfig{
		Min:               2 * time.Second,
		Max:               30 * time.Second,
		DesiredStart:      5 * time.Second,
		AutoResumeEpsilon: time.Second,
		ResyncThreshold:   1500 * time.Millisecond,
	}
}

// DelayController translates user intents (go live, rewind, pin to a delay,
// scrub) into absolute buffer-time seek targets, honoring the configured
// delay window, and owns the auto-start and auto-resume policy.
//
// The pinned delay is the viewer's chosen target and is what the UI shows
// while playing; the measured delay (live edge minus playback position)
// drifts with clock jitter and is shown only while paused or scrubbing.
type DelayController struct {
	mu sync.Mutex

	ring    *Ring
	queue   *PlaybackQueue
	surface Surface
	cfg     DelayConfig
	met     *metrics.Metrics

	pinned time.Duration
	state  PlayState
}

// NewDelayController wires the controller. met may be nil to disable metric
// recording (e.g. in tests).
func NewDelayController(ring *Ring, queue *PlaybackQueue, surface Surface, cfg DelayConfig, met *metrics.Metrics) *DelayController {
	if cfg.Min <= 0 {
		cfg.Min = DefaultDelayConfig().Min
	}
	if cfg.Max <= cfg.Min {
		cfg.Max = DefaultDelayConfig().Max
	}
	if cfg.DesiredStart < cfg.Min {
		cfg.DesiredStart = cfg.Min
	}
	if cfg.AutoResumeEpsilon <= 0 {
		cfg.AutoResumeEpsilon = DefaultDelayConfig().AutoResumeEpsilon
	}
	if cfg.ResyncThreshold <= 0 {
		cfg.ResyncThreshold = DefaultDelayConfig().ResyncThreshold
	}
	return &DelayController{
		ring:    ring,
		queue:   queue,
		surface: surface,
		cfg:     cfg,
		met:     met,
		pinned:  cfg.DesiredStart,
		state:   StateUnknown,
	}
}

// Rewind moves the pinned delay further behind the live edge by the given
// amount and seeks there. The new pinned delay is returned.
func (d *DelayController) Rewind(by time.Duration, wallNow time.Time) (time.Duration, error) {
	return d.shift(by, wallNow)
}

// Forward moves the pinned delay closer to the live edge.
func (d *DelayController) Forward(by time.Duration, wallNow time.Time) (time.Duration, error) {
	return d.shift(-by, wallNow)
}

func (d *DelayController) shift(by time.Duration, wallNow time.Time) (time.Duration, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	st := d.ring.State(wallNow)
	d.pinned = d.clampDelay(d.pinned+by, st)
	return d.pinned, d.seekPinnedLocked(st, wallNow)
}

// PinDelay sets an explicit pinned delay and seeks there.
func (d *DelayController) PinDelay(delay time.Duration, wallNow time.Time) (time.Duration, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	st := d.ring.State(wallNow)
	d.pinned = d.clampDelay(delay, st)
	return d.pinned, d.seekPinnedLocked(st, wallNow)
}

// GoLive pins the minimum delay, putting the viewer as close to the live
// edge as allowed.
func (d *DelayController) GoLive(wallNow time.Time) (time.Duration, error) {
	return d.PinDelay(d.cfg.Min, wallNow)
}

// ScrubTo maps a normalized position on the scrub bar onto a pinned delay:
// the bar spans the maximum delay window, 0 being Max behind live and 1 being
// live. The result is clamped the same way Bounds reports the draggable
// range, so a fraction inside [left, right] always lands where the bar shows.
func (d *DelayController) ScrubTo(fraction float64, wallNow time.Time) (time.Duration, error) {
	if fraction < 0 {
		fraction = 0
	} else if fraction > 1 {
		fraction = 1
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	st := d.ring.State(wallNow)
	d.pinned = d.clampDelay(time.Duration((1-fraction)*float64(d.cfg.Max)), st)
	return d.pinned, d.seekPinnedLocked(st, wallNow)
}

// TogglePlayPause flips between playing and paused. Toggling out of the
// initial unknown state starts playback at the pinned delay if anything is
// buffered yet.
func (d *DelayController) TogglePlayPause(wallNow time.Time) PlayState {
	d.mu.Lock()
	defer d.mu.Unlock()
	switch d.state {
	case StatePlaying:
		d.state = StatePaused
		d.surface.Pause()
	default:
		st := d.ring.State(wallNow)
		if st.BufferedSpan() > 0 {
			d.pinned = d.clampDelay(d.pinned, st)
			_ = d.seekPinnedLocked(st, wallNow)
		}
		d.state = StatePlaying
		d.surface.Play()
	}
	return d.state
}

// Tick drives the periodic policy (called at UI rate, ~20 Hz):
//
//   - unknown: stay paused until the buffered span reaches the desired
//     starting delay, then seek there and start playing.
//   - paused: when the measured delay approaches the maximum (the buffer is
//     about to outrun the scrub window), pin the current measured value and
//     resume automatically so the viewer is never stranded past retention.
//   - playing: re-seek when measured delay drifts too far from the pinned
//     delay, which also carries playback across sealed window boundaries.
func (d *DelayController) Tick(wallNow time.Time) {
	d.mu.Lock()
	defer d.mu.Unlock()
	st := d.ring.State(wallNow)

	switch d.state {
	case StateUnknown:
		if st.BufferedSpan() >= d.cfg.DesiredStart {
			d.pinned = d.clampDelay(d.cfg.DesiredStart, st)
			if err := d.seekPinnedLocked(st, wallNow); err == nil {
				d.state = StatePlaying
				d.surface.Play()
			}
		}
	case StatePaused:
		pos, ok := d.queue.Position()
		if !ok {
			return
		}
		measured := st.LiveEdge - pos
		if measured >= d.cfg.Max-d.cfg.AutoResumeEpsilon {
			d.pinned = d.clampDelay(measured, st)
			if err := d.seekPinnedLocked(st, wallNow); err == nil {
				d.state = StatePlaying
				d.surface.Play()
			}
		}
	case StatePlaying:
		pos, ok := d.queue.Position()
		if !ok {
			return
		}
		measured := st.LiveEdge - pos
		drift := measured - d.pinned
		if drift < 0 {
			drift = -drift
		}
		if drift > d.cfg.ResyncThreshold {
			_ = d.seekPinnedLocked(st, wallNow)
		}
	}
}

// State returns the controller's play state.
func (d *DelayController) State() PlayState {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.state
}

// PinnedDelay returns the current pinned delay.
func (d *DelayController) PinnedDelay() time.Duration {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.pinned
}

// DisplayDelay returns the delay the UI should show: the stable pinned value
// while playing, the accurate measured value while paused. ok is false when
// no delay is displayable yet (nothing playing, nothing measured). st is the
// caller's timing snapshot, so one snapshot can feed every field of a status
// report.
func (d *DelayController) DisplayDelay(st State) (time.Duration, bool) {
	d.mu.Lock()
	defer d.mu.Unlock()
	switch d.state {
	case StatePlaying:
		return d.pinned, true
	case StatePaused:
		pos, ok := d.queue.Position()
		if !ok {
			return 0, false
		}
		return st.LiveEdge - pos, true
	default:
		return 0, false
	}
}

// Bounds returns the normalized draggable range of the scrub control within
// the maximum delay window [liveEdge−Max, liveEdge]: left is where retained
// content begins, right is the closest allowed approach to live. st is the
// caller's timing snapshot.
func (d *DelayController) Bounds(st State) (left, right float64) {
	d.mu.Lock()
	defer d.mu.Unlock()
	span := st.BufferedSpan()
	if span >= d.cfg.Max {
		left = 0
	} else {
		left = 1 - float64(span)/float64(d.cfg.Max)
	}
	right = 1 - float64(d.cfg.Min)/float64(d.cfg.Max)
	if right < left {
		right = left
	}
	return left, right
}

// clampDelay bounds a requested delay to [Min, maxUsable], where maxUsable
// is the configured maximum further capped by how much content is retained.
func (d *DelayController) clampDelay(delay time.Duration, st State) time.Duration {
	maxUsable := d.cfg.Max
	if span := st.BufferedSpan(); span < maxUsable {
		maxUsable = span
	}
	if maxUsable < d.cfg.Min {
		maxUsable = d.cfg.Min
	}
	if delay > maxUsable {
		delay = maxUsable
	}
	if delay < d.cfg.Min {
		delay = d.cfg.Min
	}
	return delay
}

// seekPinnedLocked seeks to liveEdge minus the pinned delay. A target the
// ring has already evicted is clamped to the oldest retained time and
// retried once; the viewer lands on the nearest playable position rather
// than seeing an error.
func (d *DelayController) seekPinnedLocked(st State, wallNow time.Time) error {
	target := st.LiveEdge - d.pinned
	inPlace, err := d.queue.Seek(target, true, wallNow)
	if errors.Is(err, ErrOutOfRange) {
		// The buffer moved underneath us: a wrap evicted the target's window
		// after st was captured. Clamping against the stale st could land
		// below the new oldest again, so re-read before clamping.
		st = d.ring.State(wallNow)
		clamped := target
		if clamped < st.Oldest {
			clamped = st.Oldest
		}
		if edge := st.LiveEdge - d.cfg.Min; clamped > edge && edge >= st.Oldest {
			clamped = edge
		}
		d.pinned = d.clampDelay(st.LiveEdge-clamped, st)
		if d.met != nil {
			d.met.IncSeeksClamped()
		}
		inPlace, err = d.queue.Seek(st.LiveEdge-d.pinned, true, wallNow)
	}
	if err == nil && d.met != nil {
		if inPlace {
			d.met.IncSeeksInPlace()
		} else {
			d.met.IncSeeksCrossWindow()
		}
	}
	return err
}
