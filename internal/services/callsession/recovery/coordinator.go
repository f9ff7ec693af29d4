// Package recovery reconciles the persisted call session with the running
// orchestrator when a presentation surface resumes.
package recovery

import (
	"context"
	"errors"
	"fmt"
	"log"

	"github.com/DuckBuck-Studios/DuckBuck-AI-Walkie-Talkie-sub006/internal/services/callsession/domain"
	"github.com/DuckBuck-Studios/DuckBuck-AI-Walkie-Talkie-sub006/internal/services/callsession/storage"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

// Outcome describes what a recovery pass did.
type Outcome string

const (
	// OutcomeNone means no session was persisted.
	OutcomeNone Outcome = "none"
	// OutcomeRestored means the call UI was re-issued for a live session.
	OutcomeRestored Outcome = "restored"
	// OutcomePending means a live owner is still mid-transition.
	OutcomePending Outcome = "pending"
	// OutcomeCleared means the record had no live owner and was removed.
	OutcomeCleared Outcome = "cleared"
)

// Restorer re-issues the in-call UI for a session its owner still holds.
// It reports false when the session is no longer the Active one in flight.
type Restorer interface {
	RestoreCallUI(session domain.Session) bool
}

// Recorder receives recovery outcomes.
type Recorder interface {
	RecoveryCompleted(outcome string)
}

// Coordinator runs on every presentation-surface resume.
type Coordinator struct {
	store    storage.SessionStore
	liveness Liveness
	ui       Restorer
	recorder Recorder
	logf     func(string, ...any)
	tracer   trace.Tracer
}

// Option customizes a Coordinator.
type Option func(*Coordinator)

// WithRecorder reports outcomes to recorder.
func WithRecorder(recorder Recorder) Option {
	return func(c *Coordinator) { c.recorder = recorder }
}

// WithLogger replaces log.Printf.
func WithLogger(logf func(string, ...any)) Option {
	return func(c *Coordinator) {
		if logf != nil {
			c.logf = logf
		}
	}
}

// NewCoordinator builds a Coordinator.
func NewCoordinator(store storage.SessionStore, liveness Liveness, ui Restorer, opts ...Option) *Coordinator {
	c := &Coordinator{
		store:    store,
		liveness: liveness,
		ui:       ui,
		logf:     log.Printf,
		tracer:   otel.Tracer("callsession/recovery"),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Recover loads the persisted session and reconciles it.
//
// A live Active session gets its call UI re-issued. A session whose owner is
// gone is cleared without any UI signal. Running Recover twice with no
// trigger in between yields the same outcome.
func (c *Coordinator) Recover(ctx context.Context) (outcome Outcome, err error) {
	if c == nil || c.store == nil {
		return OutcomeNone, fmt.Errorf("storage is not configured")
	}
	ctx, span := c.tracer.Start(ctx, "callsession.Recover")
	defer func() {
		span.SetAttributes(attribute.String("callsession.recovery_outcome", string(outcome)))
		if err == nil && c.recorder != nil {
			c.recorder.RecoveryCompleted(string(outcome))
		}
		span.End()
	}()

	session, err := c.store.Load(ctx)
	if errors.Is(err, storage.ErrNotFound) {
		return OutcomeNone, nil
	}
	if err != nil {
		return OutcomeNone, fmt.Errorf("load session: %w", err)
	}
	if session.State == domain.StateEnded {
		if err := c.store.Clear(ctx); err != nil {
			return OutcomeNone, fmt.Errorf("clear ended session: %w", err)
		}
		return OutcomeNone, nil
	}

	if c.liveness == nil || !c.liveness.Alive(ctx, session) {
		if err := c.store.Clear(ctx); err != nil {
			return OutcomeNone, fmt.Errorf("clear orphaned session: %w", err)
		}
		c.logf("callsession: %v: cleared %s session for channel %q owned by %q",
			domain.ErrRecoveryMismatch, session.State, session.ChannelName, session.OwnerID)
		return OutcomeCleared, nil
	}

	if session.State != domain.StateActive {
		return OutcomePending, nil
	}
	if c.ui == nil || !c.ui.RestoreCallUI(session) {
		// Ended between the load and the restore; the end path owns the
		// record now.
		return OutcomeNone, nil
	}
	return OutcomeRestored, nil
}
