// Package surface provides a headless playback surface: it keeps the queue
// and position bookkeeping a real renderer would, without drawing frames.
// cmd/server uses it to run the engine end to end.
package surface

import (
	"sync"
	"time"

	"timeshift-engine/internal/timeshift"
)

// Headless implements timeshift.Surface. While playing, the local position
// advances with wall time and clamps at the current unit's end; the engine's
// delay controller carries playback across unit boundaries by re-seeking.
type Headless struct {
	mu      sync.Mutex
	now     func() time.Time
	units   []*timeshift.WindowSnapshot
	current int
	playing bool
	local   time.Duration
	updated time.Time
}

// NewHeadless returns a surface using the given wall clock (nil means
// time.Now).
func NewHeadless(now func() time.Time) *Headless {
	if now == nil {
		now = time.Now
	}
	return &Headless{now: now}
}

// CurrentLocalTime reports the playback position within the current unit.
func (s *Headless) CurrentLocalTime() time.Duration {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.advanceLocked()
	return s.local
}

func (s *Headless) advanceLocked() {
	wallNow := s.now()
	if s.playing {
		s.local += wallNow.Sub(s.updated)
		if s.current < len(s.units) {
			if max := s.units[s.current].Duration; s.local > max {
				s.local = max
			}
		}
	}
	s.updated = wallNow
}

// SeekWithinCurrent moves the position within the current unit.
func (s *Headless) SeekWithinCurrent(local time.Duration) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.local = local
	s.updated = s.now()
}

// InsertAfterCurrent places unit immediately after the one playing.
func (s *Headless) InsertAfterCurrent(unit *timeshift.WindowSnapshot) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.units) == 0 {
		s.units = []*timeshift.WindowSnapshot{unit}
		s.current = 0
		return
	}
	at := s.current + 1
	s.units = append(s.units[:at], append([]*timeshift.WindowSnapshot{unit}, s.units[at:]...)...)
}

// AdvanceToNext moves playback to the unit after the current one.
func (s *Headless) AdvanceToNext() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.current+1 < len(s.units) {
		s.current++
		s.local = 0
		s.updated = s.now()
	}
}

// RemoveAllExcept prunes every queued unit but the given one.
func (s *Headless) RemoveAllExcept(unit *timeshift.WindowSnapshot) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.units = []*timeshift.WindowSnapshot{unit}
	s.current = 0
}

// Play starts advancing the local position.
func (s *Headless) Play() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.advanceLocked()
	s.playing = true
}

// Pause stops advancing the local position.
func (s *Headless) Pause() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.advanceLocked()
	s.playing = false
}
