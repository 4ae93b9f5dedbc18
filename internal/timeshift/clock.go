package timeshift

import "time"

// DefaultJitterThreshold bounds how far a per-segment timeline correction may
// move the clock during normal operation. Larger candidate corrections are
// treated as post-pause artifacts and suppressed.
const DefaultJitterThreshold = 100 * time.Millisecond

// TimelineClock maps wall-clock time onto the virtual buffer timeline, which
// starts at zero with the first segment ever produced and advances only while
// segments are being produced.
//
// The mapping is stored as the wall instant of buffer time zero ("base"), so
// bufferTimeNow = wallNow − base. While the capture pipeline is paused, and
// again between resume and the first post-resume segment, Now is pinned to a
// stored value instead of the free-running mapping, so the viewer's position
// and the live edge never jump.
//
// TimelineClock is not safe for concurrent use on its own; the Ring owns one
// and serializes all access under its mutex.
type TimelineClock struct {
	jitter time.Duration

	started bool
	base    time.Time

	paused        bool
	pausedAt      time.Time
	pinned        bool
	pinnedNow     time.Duration
	awaitingFirst bool
}

// NewTimelineClock returns a clock using the given jitter threshold.
// A non-positive threshold falls back to DefaultJitterThreshold.
func NewTimelineClock(jitterThreshold time.Duration) *TimelineClock {
	if jitterThreshold <= 0 {
		jitterThreshold = DefaultJitterThreshold
	}
	return &TimelineClock{jitter: jitterThreshold}
}

// Now returns the current buffer time for the given wall instant.
// Before the first segment ever, buffer time is zero. While pinned (paused,
// or resumed but awaiting the first segment), the pre-pause value is returned.
func (c *TimelineClock) Now(wallNow time.Time) time.Duration {
	if !c.started {
		return 0
	}
	if c.pinned {
		return c.pinnedNow
	}
	return wallNow.Sub(c.base)
}

// SegmentProduced records that the timeline now extends to end (the buffer
// time just past the newest segment) as of wallNow. The implied correction is
// applied unconditionally for the first segment ever, and otherwise only when
// it moves the clock by less than the jitter threshold. It reports whether
// the correction was applied.
//
// Suppressing large corrections is what keeps the clock steady across the
// absorbed startup gap after a pipeline resume: the first normal correction
// after FirstSegmentAfterResume sees a large delta and is discarded.
func (c *TimelineClock) SegmentProduced(end time.Duration, wallNow time.Time) bool {
	candidate := wallNow.Add(-end)
	if !c.started {
		c.base = candidate
		c.started = true
		return true
	}
	if c.pinned {
		return false
	}
	delta := candidate.Sub(c.base)
	if delta < 0 {
		delta = -delta
	}
	if delta >= c.jitter {
		return false
	}
	c.base = candidate
	return true
}

// Pause freezes the clock at its current value. The capture pipeline stops
// producing segments; Now keeps reporting the frozen value.
func (c *TimelineClock) Pause(wallNow time.Time) {
	if c.paused {
		return
	}
	c.pinnedNow = c.Now(wallNow)
	c.pinned = true
	c.paused = true
	c.pausedAt = wallNow
}

// Resume shifts the base forward by the pause gap so that the mapping lands
// exactly on the pre-pause value at the resume instant. The clock stays
// pinned until the first post-resume segment arrives, since the pipeline
// restarts asynchronously and its startup latency must not leak into the
// displayed timeline.
func (c *TimelineClock) Resume(wallNow time.Time) {
	if !c.paused {
		return
	}
	gap := wallNow.Sub(c.pausedAt)
	c.base = c.base.Add(gap)
	c.paused = false
	c.awaitingFirst = true
}

// AwaitingFirstSegment reports whether the clock has been resumed but has not
// yet seen the first post-resume segment.
func (c *TimelineClock) AwaitingFirstSegment() bool {
	return c.awaitingFirst
}

// FirstSegmentAfterResume re-derives the mapping so that buffer time equals
// target exactly at wallNow, absorbing the pipeline's startup latency, and
// unpins the clock.
func (c *TimelineClock) FirstSegmentAfterResume(wallNow time.Time, target time.Duration) {
	c.base = wallNow.Add(-target)
	c.pinned = false
	c.awaitingFirst = false
	c.started = true
}

// Reset returns the clock to its cold-start state. Used only on explicit
// full reinitialization, never on a transient pipeline pause.
func (c *TimelineClock) Reset() {
	c.started = false
	c.base = time.Time{}
	c.paused = false
	c.pinned = false
	c.pinnedNow = 0
	c.awaitingFirst = false
}
