// Package httpapi serves the push webhook and the session control API.
package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log"
	"net/http"
	"time"

	"github.com/DuckBuck-Studios/DuckBuck-AI-Walkie-Talkie-sub006/internal/services/callsession/domain"
	"github.com/DuckBuck-Studios/DuckBuck-AI-Walkie-Talkie-sub006/internal/services/callsession/orchestrator"
)

const maxBodyBytes = 64 << 10

// Sessions is the orchestrator surface the API drives.
type Sessions interface {
	HandleTrigger(ctx context.Context, trigger domain.Trigger) (domain.Session, error)
	End(ctx context.Context, reason orchestrator.EndReason) error
	SetMuted(ctx context.Context, muted bool) error
	Current() (domain.Session, bool)
}

// TriggerRecorder counts triggers dropped before reaching the orchestrator.
type TriggerRecorder interface {
	TriggerHandled(outcome string)
}

// Options configures the handler's optional routes and hooks.
type Options struct {
	// Metrics serves GET /metrics when set.
	Metrics http.Handler
	// UI serves GET /v1/ui when set.
	UI       http.Handler
	Recorder TriggerRecorder
	Logf     func(string, ...any)
}

// Handler routes HTTP requests to the orchestrator.
type Handler struct {
	sessions Sessions
	metrics  http.Handler
	ui       http.Handler
	recorder TriggerRecorder
	logf     func(string, ...any)
}

// NewHandler builds the API handler.
func NewHandler(sessions Sessions, opts Options) *Handler {
	logf := opts.Logf
	if logf == nil {
		logf = log.Printf
	}
	return &Handler{
		sessions: sessions,
		metrics:  opts.Metrics,
		ui:       opts.UI,
		recorder: opts.Recorder,
		logf:     logf,
	}
}

// RegisterRoutes registers every route on mux.
func (h *Handler) RegisterRoutes(mux *http.ServeMux) {
	if h == nil || mux == nil {
		return
	}
	mux.HandleFunc("/v1/triggers", h.handleTrigger)
	mux.HandleFunc("/v1/session", h.handleSession)
	mux.HandleFunc("/v1/session/end", h.handleEnd)
	mux.HandleFunc("/v1/session/mute", h.handleMute)
	if h.metrics != nil {
		mux.Handle("/metrics", h.metrics)
	}
	if h.ui != nil {
		mux.Handle("/v1/ui", h.ui)
	}
}

type outcomeResponse struct {
	Outcome   string `json:"outcome"`
	SessionID string `json:"sessionId,omitempty"`
	Error     string `json:"error,omitempty"`
}

type muteRequest struct {
	Muted *bool `json:"muted"`
}

type sessionResponse struct {
	SessionID           string     `json:"sessionId"`
	ChannelName         string     `json:"channelName"`
	CallerID            string     `json:"callerId"`
	CallerName          string     `json:"callerName"`
	State               string     `json:"state"`
	Muted               bool       `json:"muted"`
	TriggerTimestamp    int64      `json:"triggerTimestamp"`
	JoinedAt            *time.Time `json:"joinedAt,omitempty"`
	OccupancyResolvedAt *time.Time `json:"occupancyResolvedAt,omitempty"`
}

func (h *Handler) handleTrigger(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w, http.MethodPost)
		return
	}
	payload, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, outcomeResponse{Outcome: domain.OutcomeValidation, Error: "unreadable body"})
		return
	}
	if !json.Valid(payload) {
		writeJSON(w, http.StatusBadRequest, outcomeResponse{Outcome: domain.OutcomeValidation, Error: "invalid json"})
		return
	}
	// Well-formed JSON with a bad field, such as a non-numeric timestamp, is a
	// dropped trigger rather than a transport error.
	trigger, err := domain.DecodeTriggerMessage(payload)
	if err != nil {
		h.logf("callsession: trigger dropped outcome=%s: %v", domain.Classify(err), err)
		if h.recorder != nil {
			h.recorder.TriggerHandled(domain.Classify(err))
		}
		writeJSON(w, http.StatusAccepted, outcomeResponse{Outcome: domain.Classify(err)})
		return
	}

	// A disconnecting pusher must not abort a join that is already underway.
	session, err := h.sessions.HandleTrigger(context.WithoutCancel(r.Context()), trigger)
	writeJSON(w, http.StatusAccepted, outcomeResponse{
		Outcome:   domain.Classify(err),
		SessionID: session.ID,
	})
}

func (h *Handler) handleSession(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		methodNotAllowed(w, http.MethodGet)
		return
	}
	session, ok := h.sessions.Current()
	if !ok {
		writeJSON(w, http.StatusNotFound, outcomeResponse{Outcome: domain.OutcomeNoActiveSession})
		return
	}
	writeJSON(w, http.StatusOK, sessionResponse{
		SessionID:           session.ID,
		ChannelName:         session.ChannelName,
		CallerID:            session.CallerID,
		CallerName:          session.CallerName,
		State:               session.State.String(),
		Muted:               session.Muted,
		TriggerTimestamp:    session.TriggerTimestamp.Unix(),
		JoinedAt:            session.JoinedAt,
		OccupancyResolvedAt: session.OccupancyResolvedAt,
	})
}

func (h *Handler) handleEnd(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w, http.MethodPost)
		return
	}
	err := h.sessions.End(context.WithoutCancel(r.Context()), orchestrator.ReasonUser)
	writeControlResult(w, err)
}

func (h *Handler) handleMute(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w, http.MethodPost)
		return
	}
	var req muteRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes)).Decode(&req); err != nil || req.Muted == nil {
		writeJSON(w, http.StatusBadRequest, outcomeResponse{Outcome: domain.OutcomeValidation, Error: "muted is required"})
		return
	}
	err := h.sessions.SetMuted(r.Context(), *req.Muted)
	writeControlResult(w, err)
}

func writeControlResult(w http.ResponseWriter, err error) {
	outcome := domain.Classify(err)
	switch {
	case err == nil:
		writeJSON(w, http.StatusOK, outcomeResponse{Outcome: outcome})
	case errors.Is(err, domain.ErrNoActiveSession):
		writeJSON(w, http.StatusConflict, outcomeResponse{Outcome: outcome})
	default:
		writeJSON(w, http.StatusInternalServerError, outcomeResponse{Outcome: outcome, Error: err.Error()})
	}
}

func methodNotAllowed(w http.ResponseWriter, allow string) {
	w.Header().Set("Allow", allow)
	writeJSON(w, http.StatusMethodNotAllowed, outcomeResponse{Outcome: "method_not_allowed"})
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}
