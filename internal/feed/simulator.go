// Package feed provides a synthetic segment source that stands in for the
// capture/encoding pipeline, producing fixed-duration payloads on a ticker.
package feed

import (
	"context"
	"encoding/binary"
	"io"
	"log/slog"
	"time"

	"timeshift-engine/internal/timeshift"
)

// DefaultPayloadSize is the synthetic payload size per segment, large enough
// to make window eviction observable in memory terms.
const DefaultPayloadSize = 2048

// Simulator delivers sequence-stamped segments to the engine at the segment
// cadence, in strictly increasing production order. While the pipeline is
// paused it skips ticks, mirroring a capture pipeline that stops producing.
type Simulator struct {
	engine      *timeshift.Engine
	interval    time.Duration
	payloadSize int
	log         *slog.Logger
	seq         int64
}

// NewSimulator returns a simulator producing one segment per interval.
func NewSimulator(engine *timeshift.Engine, interval time.Duration, payloadSize int, log *slog.Logger) *Simulator {
	if interval <= 0 {
		interval = timeshift.DefaultSegmentDuration
	}
	if payloadSize <= 0 {
		payloadSize = DefaultPayloadSize
	}
	if log == nil {
		log = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &Simulator{
		engine:      engine,
		interval:    interval,
		payloadSize: payloadSize,
		log:         log,
	}
}

// Run produces segments until ctx is cancelled. Not safe to call twice.
func (s *Simulator) Run(ctx context.Context) {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	s.log.Info("feed simulator started",
		slog.Duration("interval", s.interval),
		slog.Int("payload_bytes", s.payloadSize),
	)

	for {
		select {
		case <-ctx.Done():
			s.log.Info("feed simulator stopped", slog.Int64("segments", s.seq))
			return
		case t := <-ticker.C:
			if s.engine.PipelinePaused() {
				continue
			}
			s.Emit(t)
		}
	}
}

// Emit delivers one segment with the given production instant.
func (s *Simulator) Emit(at time.Time) {
	s.engine.Deliver(s.makePayload(), at)
	s.seq++
}

// makePayload builds a deterministic payload: the sequence number followed by
// a sequence-derived fill byte.
func (s *Simulator) makePayload() []byte {
	buf := make([]byte, s.payloadSize)
	binary.BigEndian.PutUint64(buf, uint64(s.seq))
	for i := 8; i < len(buf); i++ {
		buf[i] = byte(s.seq)
	}
	return buf
}
