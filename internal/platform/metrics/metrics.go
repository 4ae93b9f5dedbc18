package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds Prometheus counters and gauges for the timeshift engine.
type Metrics struct {
	registry *prometheus.Registry

	requestsTotal              prometheus.Counter
	requestErrorsTotal         prometheus.Counter
	seekRejectionsTotal        prometheus.Counter
	segmentsAppendedTotal      prometheus.Counter
	windowsReplacedTotal       prometheus.Counter
	correctionsSuppressedTotal prometheus.Counter
	seeksInPlaceTotal          prometheus.Counter
	seeksCrossWindowTotal      prometheus.Counter
	seeksClampedTotal          prometheus.Counter

	liveDelaySeconds    prometheus.Gauge
	bufferedSpanSeconds prometheus.Gauge
	retainedWindows     prometheus.Gauge
}

// New creates and registers Prometheus metrics for the engine.
func New() *Metrics {
	registry := prometheus.NewRegistry()

	m := &Metrics{
		registry: registry,
		requestsTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "timeshift_http_requests_total",
			Help: "Total number of HTTP requests received on the control surface",
		}),
		requestErrorsTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "timeshift_http_errors_total",
			Help: "Total number of HTTP responses with error status (4xx or 5xx), excluding seek rejections",
		}),
		seekRejectionsTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "timeshift_http_seek_rejections_total",
			Help: "Total number of seek requests answered 409 (target not applicable right now)",
		}),
		segmentsAppendedTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "timeshift_segments_appended_total",
			Help: "Total number of segments appended to the ring buffer",
		}),
		windowsReplacedTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "timeshift_windows_replaced_total",
			Help: "Total number of windows abandoned when the ring wrapped onto their anchor",
		}),
		correctionsSuppressedTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "timeshift_timeline_corrections_suppressed_total",
			Help: "Total number of per-segment timeline corrections above the jitter threshold that were discarded",
		}),
		seeksInPlaceTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "timeshift_seeks_in_place_total",
			Help: "Total number of seeks resolved within the current window",
		}),
		seeksCrossWindowTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "timeshift_seeks_cross_window_total",
			Help: "Total number of seeks that rebuilt the playback queue",
		}),
		seeksClampedTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "timeshift_seeks_clamped_total",
			Help: "Total number of seek targets clamped back inside the retained buffer",
		}),
		liveDelaySeconds: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "timeshift_live_delay_seconds",
			Help: "Current delay between the live edge and the playback position",
		}),
		bufferedSpanSeconds: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "timeshift_buffered_span_seconds",
			Help: "Span of buffer time currently retained in the ring",
		}),
		retainedWindows: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "timeshift_retained_windows",
			Help: "Number of windows currently retained",
		}),
	}

	registry.MustRegister(
		m.requestsTotal,
		m.requestErrorsTotal,
		m.seekRejectionsTotal,
		m.segmentsAppendedTotal,
		m.windowsReplacedTotal,
		m.correctionsSuppressedTotal,
		m.seeksInPlaceTotal,
		m.seeksCrossWindowTotal,
		m.seeksClampedTotal,
		m.liveDelaySeconds,
		m.bufferedSpanSeconds,
		m.retainedWindows,
	)

	return m
}

// IncRequests increments the total request counter.
func (m *Metrics) IncRequests() {
	m.requestsTotal.Inc()
}

// IncRequestErrors increments the request error counter.
func (m *Metrics) IncRequestErrors() {
	m.requestErrorsTotal.Inc()
}

// IncSeekRejections increments the rejected-seek counter.
func (m *Metrics) IncSeekRejections() {
	m.seekRejectionsTotal.Inc()
}

// IncSegmentsAppended increments the appended-segments counter.
func (m *Metrics) IncSegmentsAppended() {
	m.segmentsAppendedTotal.Inc()
}

// IncWindowsReplaced increments the replaced-windows counter.
func (m *Metrics) IncWindowsReplaced() {
	m.windowsReplacedTotal.Inc()
}

// IncCorrectionsSuppressed increments the suppressed-corrections counter.
func (m *Metrics) IncCorrectionsSuppressed() {
	m.correctionsSuppressedTotal.Inc()
}

// IncSeeksInPlace increments the in-place seek counter.
func (m *Metrics) IncSeeksInPlace() {
	m.seeksInPlaceTotal.Inc()
}

// IncSeeksCrossWindow increments the cross-window seek counter.
func (m *Metrics) IncSeeksCrossWindow() {
	m.seeksCrossWindowTotal.Inc()
}

// IncSeeksClamped increments the clamped-seek counter.
func (m *Metrics) IncSeeksClamped() {
	m.seeksClampedTotal.Inc()
}

// SetLiveDelaySeconds sets the live delay gauge.
func (m *Metrics) SetLiveDelaySeconds(v float64) {
	m.liveDelaySeconds.Set(v)
}

// SetBufferedSpanSeconds sets the buffered span gauge.
func (m *Metrics) SetBufferedSpanSeconds(v float64) {
	m.bufferedSpanSeconds.Set(v)
}

// SetRetainedWindows sets the retained windows gauge.
func (m *Metrics) SetRetainedWindows(n int) {
	m.retainedWindows.Set(float64(n))
}

// Handler returns an http.Handler that serves Prometheus metrics.
// updateGauges is called before each scrape to refresh gauge values.
func (m *Metrics) Handler(updateGauges func()) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if updateGauges != nil {
			updateGauges()
		}
		promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{}).ServeHTTP(w, r)
	})
}
