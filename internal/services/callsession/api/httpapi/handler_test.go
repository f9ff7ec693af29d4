package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/DuckBuck-Studios/DuckBuck-AI-Walkie-Talkie-sub006/internal/services/callsession/domain"
	"github.com/DuckBuck-Studios/DuckBuck-AI-Walkie-Talkie-sub006/internal/services/callsession/orchestrator"
)

type fakeSessions struct {
	triggers  []domain.Trigger
	triggerFn func(domain.Trigger) (domain.Session, error)
	ended     []orchestrator.EndReason
	endErr    error
	muted     []bool
	muteErr   error
	current   *domain.Session
	canceled  bool
}

func (f *fakeSessions) HandleTrigger(ctx context.Context, trigger domain.Trigger) (domain.Session, error) {
	f.triggers = append(f.triggers, trigger)
	f.canceled = ctx.Err() != nil
	if f.triggerFn != nil {
		return f.triggerFn(trigger)
	}
	return domain.Session{}, nil
}

func (f *fakeSessions) End(_ context.Context, reason orchestrator.EndReason) error {
	f.ended = append(f.ended, reason)
	return f.endErr
}

func (f *fakeSessions) SetMuted(_ context.Context, muted bool) error {
	f.muted = append(f.muted, muted)
	return f.muteErr
}

func (f *fakeSessions) Current() (domain.Session, bool) {
	if f.current == nil {
		return domain.Session{}, false
	}
	return *f.current, true
}

type countingRecorder struct {
	outcomes []string
}

func (c *countingRecorder) TriggerHandled(outcome string) { c.outcomes = append(c.outcomes, outcome) }

func newMux(sessions Sessions, opts Options) *http.ServeMux {
	if opts.Logf == nil {
		opts.Logf = func(string, ...any) {}
	}
	mux := http.NewServeMux()
	NewHandler(sessions, opts).RegisterRoutes(mux)
	return mux
}

func serve(mux http.Handler, method, path, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, req)
	return rec
}

func decodeOutcome(t *testing.T, rec *httptest.ResponseRecorder) outcomeResponse {
	t.Helper()
	var resp outcomeResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode response %q: %v", rec.Body.String(), err)
	}
	return resp
}

const validTrigger = `{"channelName":"channel-1","callerId":"user-1","callerName":"Ana","messageType":"walkie_talkie","timestamp":1700000000}`

func TestTriggerAccepted(t *testing.T) {
	sessions := &fakeSessions{triggerFn: func(trigger domain.Trigger) (domain.Session, error) {
		return domain.Session{ID: "session-1", ChannelName: trigger.ChannelName}, nil
	}}
	rec := serve(newMux(sessions, Options{}), http.MethodPost, "/v1/triggers", validTrigger)

	if rec.Code != http.StatusAccepted {
		t.Fatalf("status = %d, want %d", rec.Code, http.StatusAccepted)
	}
	resp := decodeOutcome(t, rec)
	if resp.Outcome != domain.OutcomeAccepted || resp.SessionID != "session-1" {
		t.Fatalf("response = %+v, want accepted session-1", resp)
	}
	if len(sessions.triggers) != 1 {
		t.Fatalf("triggers = %d, want 1", len(sessions.triggers))
	}
	want := domain.Trigger{ChannelName: "channel-1", CallerID: "user-1", CallerName: "Ana", Timestamp: time.Unix(1700000000, 0).UTC()}
	if sessions.triggers[0] != want {
		t.Fatalf("trigger = %+v, want %+v", sessions.triggers[0], want)
	}
}

func TestTriggerDetachedFromRequestCancellation(t *testing.T) {
	sessions := &fakeSessions{}
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	req := httptest.NewRequest(http.MethodPost, "/v1/triggers", strings.NewReader(validTrigger)).WithContext(ctx)
	rec := httptest.NewRecorder()
	newMux(sessions, Options{}).ServeHTTP(rec, req)

	if sessions.canceled {
		t.Fatal("expected trigger context to outlive the request")
	}
}

func TestTriggerDroppedOutcomes(t *testing.T) {
	tests := []struct {
		name    string
		body    string
		err     error
		want    string
		reached bool
	}{
		{name: "wrong message type", body: `{"channelName":"c","callerId":"u","callerName":"n","messageType":"text","timestamp":1}`, want: domain.OutcomeValidation},
		{name: "missing caller", body: `{"channelName":"c","callerName":"n","messageType":"walkie_talkie","timestamp":1}`, want: domain.OutcomeValidation},
		{name: "non numeric timestamp", body: `{"channelName":"c","callerId":"u","callerName":"n","messageType":"walkie_talkie","timestamp":"soon"}`, want: domain.OutcomeValidation},
		{name: "wrong field type", body: `{"channelName":7,"callerId":"u","callerName":"n","messageType":"walkie_talkie","timestamp":1}`, want: domain.OutcomeValidation},
		{name: "stale", body: validTrigger, err: domain.ErrStaleTrigger, want: domain.OutcomeStale, reached: true},
		{name: "duplicate", body: validTrigger, err: domain.ErrDuplicateTrigger, want: domain.OutcomeDuplicate, reached: true},
		{name: "join failure", body: validTrigger, err: domain.ErrJoinFailure, want: domain.OutcomeJoinFailure, reached: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			sessions := &fakeSessions{triggerFn: func(domain.Trigger) (domain.Session, error) {
				return domain.Session{}, tt.err
			}}
			recorder := &countingRecorder{}
			rec := serve(newMux(sessions, Options{Recorder: recorder}), http.MethodPost, "/v1/triggers", tt.body)

			if rec.Code != http.StatusAccepted {
				t.Fatalf("status = %d, want %d", rec.Code, http.StatusAccepted)
			}
			if got := decodeOutcome(t, rec).Outcome; got != tt.want {
				t.Fatalf("outcome = %q, want %q", got, tt.want)
			}
			if reached := len(sessions.triggers) == 1; reached != tt.reached {
				t.Fatalf("reached orchestrator = %v, want %v", reached, tt.reached)
			}
			if !tt.reached && len(recorder.outcomes) != 1 {
				t.Fatalf("recorded outcomes = %v, want one", recorder.outcomes)
			}
		})
	}
}

func TestTriggerRejectsUndecodableJSON(t *testing.T) {
	sessions := &fakeSessions{}
	rec := serve(newMux(sessions, Options{}), http.MethodPost, "/v1/triggers", `{"channelName":`)

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want %d", rec.Code, http.StatusBadRequest)
	}
	if len(sessions.triggers) != 0 {
		t.Fatalf("triggers = %d, want 0", len(sessions.triggers))
	}
}

func TestTriggerRequiresPost(t *testing.T) {
	rec := serve(newMux(&fakeSessions{}, Options{}), http.MethodGet, "/v1/triggers", "")
	if rec.Code != http.StatusMethodNotAllowed {
		t.Fatalf("status = %d, want %d", rec.Code, http.StatusMethodNotAllowed)
	}
	if got := rec.Header().Get("Allow"); got != http.MethodPost {
		t.Fatalf("Allow = %q, want %q", got, http.MethodPost)
	}
}

func TestSessionSnapshot(t *testing.T) {
	joined := time.Date(2026, 10, 16, 12, 0, 1, 0, time.UTC)
	sessions := &fakeSessions{current: &domain.Session{
		ID:               "session-1",
		ChannelName:      "channel-1",
		CallerID:         "user-1",
		CallerName:       "Ana",
		State:            domain.StateActive,
		TriggerTimestamp: time.Unix(1700000000, 0).UTC(),
		JoinedAt:         &joined,
		Muted:            true,
	}}
	rec := serve(newMux(sessions, Options{}), http.MethodGet, "/v1/session", "")

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d", rec.Code, http.StatusOK)
	}
	var resp sessionResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode session: %v", err)
	}
	if resp.State != "active" || !resp.Muted || resp.TriggerTimestamp != 1700000000 {
		t.Fatalf("session = %+v, want active muted record", resp)
	}
	if resp.JoinedAt == nil || !resp.JoinedAt.Equal(joined) {
		t.Fatalf("joinedAt = %v, want %v", resp.JoinedAt, joined)
	}
}

func TestSessionSnapshotNotFound(t *testing.T) {
	rec := serve(newMux(&fakeSessions{}, Options{}), http.MethodGet, "/v1/session", "")
	if rec.Code != http.StatusNotFound {
		t.Fatalf("status = %d, want %d", rec.Code, http.StatusNotFound)
	}
}

func TestEnd(t *testing.T) {
	tests := []struct {
		name   string
		err    error
		status int
	}{
		{name: "ended", status: http.StatusOK},
		{name: "nothing in flight", err: domain.ErrNoActiveSession, status: http.StatusConflict},
		{name: "failure", err: errors.New("boom"), status: http.StatusInternalServerError},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			sessions := &fakeSessions{endErr: tt.err}
			rec := serve(newMux(sessions, Options{}), http.MethodPost, "/v1/session/end", "")
			if rec.Code != tt.status {
				t.Fatalf("status = %d, want %d", rec.Code, tt.status)
			}
			if len(sessions.ended) != 1 || sessions.ended[0] != orchestrator.ReasonUser {
				t.Fatalf("ended = %v, want [%s]", sessions.ended, orchestrator.ReasonUser)
			}
		})
	}
}

func TestMute(t *testing.T) {
	sessions := &fakeSessions{}
	mux := newMux(sessions, Options{})

	if rec := serve(mux, http.MethodPost, "/v1/session/mute", `{"muted":true}`); rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d", rec.Code, http.StatusOK)
	}
	if rec := serve(mux, http.MethodPost, "/v1/session/mute", `{}`); rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want %d", rec.Code, http.StatusBadRequest)
	}
	if len(sessions.muted) != 1 || !sessions.muted[0] {
		t.Fatalf("muted = %v, want [true]", sessions.muted)
	}

	sessions.muteErr = domain.ErrNoActiveSession
	if rec := serve(mux, http.MethodPost, "/v1/session/mute", `{"muted":false}`); rec.Code != http.StatusConflict {
		t.Fatalf("status = %d, want %d", rec.Code, http.StatusConflict)
	}
}

func TestOptionalRoutes(t *testing.T) {
	metrics := http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) { _, _ = w.Write([]byte("metrics")) })
	ui := http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) { _, _ = w.Write([]byte("ui")) })
	mux := newMux(&fakeSessions{}, Options{Metrics: metrics, UI: ui})

	if rec := serve(mux, http.MethodGet, "/metrics", ""); rec.Body.String() != "metrics" {
		t.Fatalf("metrics body = %q, want metrics", rec.Body.String())
	}
	if rec := serve(mux, http.MethodGet, "/v1/ui", ""); rec.Body.String() != "ui" {
		t.Fatalf("ui body = %q, want ui", rec.Body.String())
	}

	bare := newMux(&fakeSessions{}, Options{})
	if rec := serve(bare, http.MethodGet, "/metrics", ""); rec.Code != http.StatusNotFound {
		t.Fatalf("status = %d, want %d", rec.Code, http.StatusNotFound)
	}
}
