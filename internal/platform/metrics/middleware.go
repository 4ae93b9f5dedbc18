package metrics

import (
	"net/http"
)

// responseWriter captures the status code for metrics.
type responseWriter struct {
	http.ResponseWriter
	status int
}

func (w *responseWriter) WriteHeader(code int) {
	w.status = code
	w.ResponseWriter.WriteHeader(code)
}

// RequestMiddleware returns chi-compatible middleware that records request and
// error counts in the given Metrics. A 409 is counted as a seek rejection
// rather than an error: the control surface answers 409 whenever a seek
// target is not applicable right now (nothing buffered, target evicted, jump
// in flight), which is normal operation, not a fault.
func RequestMiddleware(m *Metrics) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			wrap := &responseWriter{ResponseWriter: w, status: http.StatusOK}
			next.ServeHTTP(wrap, r)
			m.IncRequests()
			switch {
			case wrap.status == http.StatusConflict:
				m.IncSeekRejections()
			case wrap.status >= 400:
				m.IncRequestErrors()
			}
		})
	}
}
