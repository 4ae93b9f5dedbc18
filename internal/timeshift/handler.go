package timeshift

import (
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"time"
)

// Handler exposes the engine's control and status endpoints.
type Handler struct {
	engine *Engine
	log    *slog.Logger
}

// NewHandler returns a Handler for the given engine.
func NewHandler(engine *Engine, log *slog.Logger) *Handler {
	if log == nil {
		log = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &Handler{engine: engine, log: log}
}

type shiftRequest struct {
	Seconds float64 `json:"seconds"`
}

type scrubRequest struct {
	Fraction float64 `json:"fraction"`
}

type delayResponse struct {
	PinnedDelaySeconds float64 `json:"pinned_delay_seconds"`
}

type stateResponse struct {
	PlayState string `json:"play_state"`
}

type errorResponse struct {
	Error string `json:"error"`
}

// Status handles GET /status.
func (h *Handler) Status(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.engine.Status())
}

// Rewind handles POST /control/rewind. Body: { "seconds": 10 }.
func (h *Handler) Rewind(w http.ResponseWriter, r *http.Request) {
	h.shift(w, r, "rewind", h.engine.Rewind)
}

// Forward handles POST /control/forward. Body: { "seconds": 10 }.
func (h *Handler) Forward(w http.ResponseWriter, r *http.Request) {
	h.shift(w, r, "forward", h.engine.Forward)
}

func (h *Handler) shift(w http.ResponseWriter, r *http.Request, op string, fn func(time.Duration) (time.Duration, error)) {
	var req shiftRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Seconds <= 0 {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "seconds must be a positive number"})
		return
	}
	pinned, err := fn(time.Duration(req.Seconds * float64(time.Second)))
	if err != nil {
		h.writeSeekError(w, op, err)
		return
	}
	h.log.Debug("shifted delay", slog.String("op", op), slog.Duration("pinned", pinned))
	writeJSON(w, http.StatusOK, delayResponse{PinnedDelaySeconds: pinned.Seconds()})
}

// PinDelay handles POST /control/pin. Body: { "seconds": 5 }.
func (h *Handler) PinDelay(w http.ResponseWriter, r *http.Request) {
	var req shiftRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Seconds < 0 {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "seconds must be a non-negative number"})
		return
	}
	pinned, err := h.engine.PinDelay(time.Duration(req.Seconds * float64(time.Second)))
	if err != nil {
		h.writeSeekError(w, "pin", err)
		return
	}
	writeJSON(w, http.StatusOK, delayResponse{PinnedDelaySeconds: pinned.Seconds()})
}

// GoLive handles POST /control/live.
func (h *Handler) GoLive(w http.ResponseWriter, r *http.Request) {
	pinned, err := h.engine.GoLive()
	if err != nil {
		h.writeSeekError(w, "live", err)
		return
	}
	writeJSON(w, http.StatusOK, delayResponse{PinnedDelaySeconds: pinned.Seconds()})
}

// Scrub handles POST /control/scrub. Body: { "fraction": 0.5 }.
func (h *Handler) Scrub(w http.ResponseWriter, r *http.Request) {
	var req scrubRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "fraction must be a number in [0, 1]"})
		return
	}
	pinned, err := h.engine.ScrubTo(req.Fraction)
	if err != nil {
		h.writeSeekError(w, "scrub", err)
		return
	}
	writeJSON(w, http.StatusOK, delayResponse{PinnedDelaySeconds: pinned.Seconds()})
}

// TogglePlayPause handles POST /control/toggle.
func (h *Handler) TogglePlayPause(w http.ResponseWriter, r *http.Request) {
	state := h.engine.TogglePlayPause()
	h.log.Info("play state toggled", slog.String("state", state.String()))
	writeJSON(w, http.StatusOK, stateResponse{PlayState: state.String()})
}

// PipelinePause handles POST /lifecycle/pause.
func (h *Handler) PipelinePause(w http.ResponseWriter, r *http.Request) {
	h.engine.PipelineWillPause()
	w.WriteHeader(http.StatusNoContent)
}

// PipelineResume handles POST /lifecycle/resume.
func (h *Handler) PipelineResume(w http.ResponseWriter, r *http.Request) {
	h.engine.PipelineDidResume()
	w.WriteHeader(http.StatusNoContent)
}

// Reset handles POST /reset: full reinitialization of the engine.
func (h *Handler) Reset(w http.ResponseWriter, r *http.Request) {
	h.engine.Reset()
	w.WriteHeader(http.StatusNoContent)
}

// writeSeekError maps engine errors onto status codes. Recoverable seek
// conditions surface as 409 so the UI stays at its current position.
func (h *Handler) writeSeekError(w http.ResponseWriter, op string, err error) {
	switch {
	case errors.Is(err, ErrNotYetPlayable), errors.Is(err, ErrJumpInProgress), errors.Is(err, ErrOutOfRange):
		h.log.Info("seek request not applied", slog.String("op", op), slog.String("error", err.Error()))
		writeJSON(w, http.StatusConflict, errorResponse{Error: err.Error()})
	default:
		h.log.Error("seek request failed", slog.String("op", op), slog.String("error", err.Error()))
		writeJSON(w, http.StatusInternalServerError, errorResponse{Error: err.Error()})
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
