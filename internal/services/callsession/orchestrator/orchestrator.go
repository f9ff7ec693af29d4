// Package orchestrator owns the call session state machine for one device.
//
// A trigger is validated, checked for freshness, persisted as a Joining
// record, and then joined. A single occupancy check after the join decides
// whether the session goes Active (volume, notification, in-call UI) or is
// left silently. At most one session is in flight at any time.
package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"
	"sync"
	"time"

	"github.com/DuckBuck-Studios/DuckBuck-AI-Walkie-Talkie-sub006/internal/platform/timeouts"
	"github.com/DuckBuck-Studios/DuckBuck-AI-Walkie-Talkie-sub006/internal/services/callsession/channel"
	"github.com/DuckBuck-Studios/DuckBuck-AI-Walkie-Talkie-sub006/internal/services/callsession/domain"
	"github.com/DuckBuck-Studios/DuckBuck-AI-Walkie-Talkie-sub006/internal/services/callsession/storage"
	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

const (
	// DefaultHeartbeatInterval is how often a running orchestrator beats.
	DefaultHeartbeatInterval = 5 * time.Second

	tracerName = "callsession/orchestrator"
)

// EndReason labels why a session ended.
type EndReason string

const (
	ReasonUser        EndReason = "user"
	ReasonTeardown    EndReason = "teardown"
	ReasonShutdown    EndReason = "shutdown"
	ReasonEmpty       EndReason = "empty_channel"
	ReasonJoinFailure EndReason = "join_failure"
)

// errSessionReplaced marks work for a session that has since ended.
var errSessionReplaced = errors.New("session no longer current")

// Notifier shows and dismisses the "caller is speaking" notification.
type Notifier interface {
	ShowNotification(ctx context.Context, notification domain.Notification) error
	DismissNotification(ctx context.Context, channelName string) error
}

// Recorder receives lifecycle measurements.
type Recorder interface {
	TriggerHandled(outcome string)
	SessionFinished(reason string)
	StateChanged(state domain.State)
}

// ProcessClassifier reports the process state at a point in time.
type ProcessClassifier interface {
	Classify(now time.Time) ProcessState
}

// RenderFunc produces the notification for an Active session.
type RenderFunc func(session domain.Session) domain.Notification

// Deps are the collaborators the orchestrator drives.
type Deps struct {
	Store      storage.SessionStore
	Heartbeats storage.HeartbeatStore
	Channel    channel.Client
	Volume     *VolumeController
	Notifier   Notifier
	UI         Presenter
	Process    ProcessClassifier
	Render     RenderFunc
	Recorder   Recorder
	Clock      func() time.Time
	Logf       func(string, ...any)
}

// Config controls orchestrator timing.
type Config struct {
	OwnerID           string
	OccupancyDelay    time.Duration
	MaxTriggerAge     time.Duration
	HeartbeatInterval time.Duration
	StoreTimeout      time.Duration
	JoinTimeout       time.Duration
	OccupancyTimeout  time.Duration
	LeaveTimeout      time.Duration
}

func (c Config) normalized() Config {
	if strings.TrimSpace(c.OwnerID) == "" {
		c.OwnerID = uuid.NewString()
	}
	if c.OccupancyDelay <= 0 {
		c.OccupancyDelay = DefaultOccupancyDelay
	}
	if c.MaxTriggerAge <= 0 {
		c.MaxTriggerAge = domain.DefaultMaxTriggerAge
	}
	if c.HeartbeatInterval <= 0 {
		c.HeartbeatInterval = DefaultHeartbeatInterval
	}
	if c.StoreTimeout <= 0 {
		c.StoreTimeout = timeouts.StoreIO
	}
	if c.JoinTimeout <= 0 {
		c.JoinTimeout = timeouts.ChannelJoin
	}
	if c.OccupancyTimeout <= 0 {
		c.OccupancyTimeout = timeouts.ChannelOccupancy
	}
	if c.LeaveTimeout <= 0 {
		c.LeaveTimeout = timeouts.ChannelLeave
	}
	return c
}

type inflight struct {
	session    domain.Session
	generation uint64
	joinedAt   time.Time
	closing    bool

	// joining is set while HandleTrigger still owns the session. An End in
	// that window only records endReason; HandleTrigger finishes the session
	// once its join call has returned and then closes settled.
	joining   bool
	endReason EndReason
	settled   chan struct{}
}

// Orchestrator is the session state machine.
type Orchestrator struct {
	deps      Deps
	cfg       Config
	occupancy *OccupancyDetector
	tracer    trace.Tracer

	// writeMu orders store writes so the last write reflects the latest state.
	writeMu sync.Mutex

	mu         sync.Mutex
	active     *inflight
	generation uint64
	running    bool
}

// New builds an orchestrator.
func New(deps Deps, cfg Config) (*Orchestrator, error) {
	if deps.Store == nil {
		return nil, fmt.Errorf("session store is required")
	}
	if deps.Channel == nil {
		return nil, fmt.Errorf("channel client is required")
	}
	if deps.Clock == nil {
		deps.Clock = time.Now
	}
	if deps.Logf == nil {
		deps.Logf = log.Printf
	}
	if deps.Recorder == nil {
		deps.Recorder = nopRecorder{}
	}
	if deps.Volume == nil {
		deps.Volume = NewVolumeController(nil, deps.Logf)
	}
	o := &Orchestrator{
		deps:      deps,
		cfg:       cfg.normalized(),
		occupancy: NewOccupancyDetector(),
		tracer:    otel.Tracer(tracerName),
	}
	if notifier, ok := deps.Channel.(channel.TeardownNotifier); ok {
		notifier.OnTeardown(o.HandleChannelTeardown)
	}
	return o, nil
}

// OwnerID identifies this orchestrator instance in persisted records.
func (o *Orchestrator) OwnerID() string {
	return o.cfg.OwnerID
}

// HandleTrigger starts a session for a fresh trigger.
//
// Every dropped trigger returns an error from the domain taxonomy; the
// returned session is the Joining snapshot when the trigger was accepted.
func (o *Orchestrator) HandleTrigger(ctx context.Context, trigger domain.Trigger) (session domain.Session, err error) {
	ctx, span := o.tracer.Start(ctx, "callsession.HandleTrigger", trace.WithAttributes(
		attribute.String("callsession.channel", trigger.ChannelName),
	))
	defer func() {
		outcome := domain.Classify(err)
		span.SetAttributes(attribute.String("callsession.outcome", outcome))
		if err != nil {
			span.SetStatus(codes.Error, err.Error())
			o.deps.Logf("callsession: trigger dropped channel=%q outcome=%s: %v", trigger.ChannelName, outcome, err)
		}
		o.deps.Recorder.TriggerHandled(outcome)
		span.End()
	}()

	trigger.ChannelName = strings.TrimSpace(trigger.ChannelName)
	if trigger.ChannelName == "" {
		return domain.Session{}, fmt.Errorf("%w: channel name is required", domain.ErrValidation)
	}
	now := o.deps.Clock()
	if err := domain.CheckFreshness(trigger.Timestamp, now, o.cfg.MaxTriggerAge); err != nil {
		return domain.Session{}, err
	}
	processState := o.classify(now)

	o.mu.Lock()
	if o.active != nil {
		current := o.active.session
		o.mu.Unlock()
		return domain.Session{}, fmt.Errorf("%w: %s is %s", domain.ErrDuplicateTrigger, current.ChannelName, current.State)
	}
	o.generation++
	gen := o.generation
	session = domain.NewSession(trigger, o.cfg.OwnerID, now)
	settled := make(chan struct{})
	o.active = &inflight{session: session, generation: gen, joining: true, settled: settled}
	o.mu.Unlock()
	defer close(settled)
	o.deps.Recorder.StateChanged(domain.StateJoining)

	saveErr := o.save(ctx, gen, false)
	o.mu.Lock()
	if o.active.closing {
		reason := o.active.endReason
		o.mu.Unlock()
		o.release(gen, trigger.ChannelName, domain.StateJoining, reason)
		return domain.Session{}, fmt.Errorf("%w: ended before join", domain.ErrNoActiveSession)
	}
	if saveErr != nil {
		o.active.closing = true
		o.mu.Unlock()
		o.drop(gen)
		return domain.Session{}, fmt.Errorf("%w: %v", domain.ErrPersistenceFailure, saveErr)
	}
	o.mu.Unlock()

	joinCtx, cancel := context.WithTimeout(ctx, o.cfg.JoinTimeout)
	joinErr := o.deps.Channel.Join(joinCtx, trigger.ChannelName)
	cancel()
	joinedAt := o.deps.Clock()

	o.mu.Lock()
	current := o.active
	if current.closing {
		// Ended while the join was in flight; leave now that it has landed.
		reason := current.endReason
		o.mu.Unlock()
		o.finish(gen, trigger.ChannelName, domain.StateJoining, reason)
		return domain.Session{}, fmt.Errorf("%w: ended during join", domain.ErrNoActiveSession)
	}
	if joinErr != nil {
		current.closing = true
		o.mu.Unlock()
		o.release(gen, trigger.ChannelName, domain.StateJoining, ReasonJoinFailure)
		return domain.Session{}, fmt.Errorf("%w: %v", domain.ErrJoinFailure, joinErr)
	}
	current.joining = false
	current.joinedAt = joinedAt
	o.occupancy.Schedule(trigger.ChannelName, o.cfg.OccupancyDelay, func(channelName string) {
		o.resolveOccupancy(gen, channelName)
	})
	o.mu.Unlock()

	o.deps.Logf("callsession: joined channel=%q process=%s", trigger.ChannelName, processState)
	return session, nil
}

// resolveOccupancy runs once per session after the occupancy delay.
func (o *Orchestrator) resolveOccupancy(gen uint64, channelName string) {
	ctx, span := o.tracer.Start(context.Background(), "callsession.ResolveOccupancy", trace.WithAttributes(
		attribute.String("callsession.channel", channelName),
	))
	defer span.End()

	if !o.isCurrent(gen, domain.StateJoining) {
		return
	}

	queryCtx, cancel := context.WithTimeout(ctx, o.cfg.OccupancyTimeout)
	count, err := o.deps.Channel.Occupancy(queryCtx, channelName)
	cancel()
	span.SetAttributes(attribute.Int("callsession.occupancy", count))

	now := o.deps.Clock()
	o.mu.Lock()
	if o.active == nil || o.active.generation != gen || o.active.closing || o.active.session.State != domain.StateJoining {
		o.mu.Unlock()
		return
	}
	if err != nil || count <= 0 {
		o.active.closing = true
		o.mu.Unlock()
		if err != nil {
			o.deps.Logf("callsession: occupancy query channel=%q: %v", channelName, err)
		}
		o.deps.Logf("callsession: channel %q empty, leaving", channelName)
		o.finish(gen, channelName, domain.StateJoining, ReasonEmpty)
		return
	}

	active, transitionErr := o.active.session.Transition(domain.StateActive, now)
	if transitionErr != nil {
		o.mu.Unlock()
		o.deps.Logf("callsession: %v", transitionErr)
		return
	}
	joinedAt := o.active.joinedAt
	if joinedAt.IsZero() {
		joinedAt = now
	}
	active = active.MarkResolved(joinedAt, now)
	o.active.session = active
	o.mu.Unlock()
	o.deps.Recorder.StateChanged(domain.StateActive)

	if err := o.save(ctx, gen, false); err != nil && !errors.Is(err, errSessionReplaced) {
		o.deps.Logf("callsession: persist active session channel=%q: %v", channelName, err)
	}

	o.deps.Volume.EnsureMaxOutputVolume(ctx)
	if o.deps.Notifier != nil && o.deps.Render != nil {
		if err := o.deps.Notifier.ShowNotification(ctx, o.deps.Render(active)); err != nil {
			o.deps.Logf("callsession: show notification channel=%q: %v", channelName, err)
		}
	}
	if processState := o.classify(o.deps.Clock()); processState == ProcessForeground {
		o.showUI(active)
	} else {
		o.deps.Logf("callsession: call UI deferred until resume channel=%q process=%s", channelName, processState)
	}
}

// End ends the in-flight session.
//
// An Active session moves through Ending; a Joining session ends directly.
// The occupancy timer is cancelled first and the channel is left before the
// record is cleared. While the join call is still outstanding, End waits for
// it to return so the leave cannot race the join.
func (o *Orchestrator) End(ctx context.Context, reason EndReason) error {
	ctx, span := o.tracer.Start(ctx, "callsession.End", trace.WithAttributes(
		attribute.String("callsession.reason", string(reason)),
	))
	defer span.End()

	o.mu.Lock()
	if o.active == nil || o.active.closing {
		o.mu.Unlock()
		return domain.ErrNoActiveSession
	}
	o.occupancy.Cancel()
	current := o.active
	current.closing = true
	if current.joining {
		current.endReason = reason
		settled := current.settled
		o.mu.Unlock()
		select {
		case <-settled:
			return nil
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	gen := current.generation
	previous := current.session.State
	if previous == domain.StateActive {
		ending, err := current.session.Transition(domain.StateEnding, o.deps.Clock())
		if err != nil {
			current.closing = false
			o.mu.Unlock()
			return err
		}
		current.session = ending
	}
	channelName := current.session.ChannelName
	o.mu.Unlock()

	if previous == domain.StateActive {
		o.deps.Recorder.StateChanged(domain.StateEnding)
		if err := o.save(ctx, gen, true); err != nil && !errors.Is(err, errSessionReplaced) {
			o.deps.Logf("callsession: persist ending session channel=%q: %v", channelName, err)
		}
	}
	o.finish(gen, channelName, previous, reason)
	return nil
}

// HandleChannelTeardown ends the session when the remote side closes its
// channel.
func (o *Orchestrator) HandleChannelTeardown(channelName string) {
	o.mu.Lock()
	matches := o.active != nil && o.active.session.ChannelName == channelName
	o.mu.Unlock()
	if !matches {
		return
	}
	if err := o.End(context.Background(), ReasonTeardown); err != nil && !errors.Is(err, domain.ErrNoActiveSession) {
		o.deps.Logf("callsession: end after teardown channel=%q: %v", channelName, err)
	}
}

// SetMuted changes the local mute state of the in-flight session.
func (o *Orchestrator) SetMuted(ctx context.Context, muted bool) error {
	o.mu.Lock()
	if o.active == nil || o.active.closing {
		o.mu.Unlock()
		return domain.ErrNoActiveSession
	}
	gen := o.active.generation
	channelName := o.active.session.ChannelName
	o.mu.Unlock()

	if muter, ok := o.deps.Channel.(channel.Muter); ok {
		if err := muter.SetMuted(ctx, channelName, muted); err != nil {
			return fmt.Errorf("set muted: %w", err)
		}
	}

	o.mu.Lock()
	if o.active == nil || o.active.generation != gen || o.active.closing {
		o.mu.Unlock()
		return domain.ErrNoActiveSession
	}
	o.active.session.Muted = muted
	o.active.session.UpdatedAt = o.deps.Clock().UTC()
	updated := o.active.session
	o.mu.Unlock()

	if err := o.save(ctx, gen, false); err != nil && !errors.Is(err, errSessionReplaced) {
		return fmt.Errorf("%w: %v", domain.ErrPersistenceFailure, err)
	}
	if updated.State == domain.StateActive && o.classify(o.deps.Clock()) == ProcessForeground {
		o.showUI(updated)
	}
	return nil
}

// Current returns the in-flight session, if any.
func (o *Orchestrator) Current() (domain.Session, bool) {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.active == nil {
		return domain.Session{}, false
	}
	return o.active.session, true
}

// Alive reports whether this running orchestrator still holds session.
// A record left behind by a session that has already ended reads as dead.
func (o *Orchestrator) Alive(_ context.Context, session domain.Session) bool {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.running && o.holdsLocked(session)
}

// RestoreCallUI re-issues the in-call UI for session if it is still the
// Active session in flight. The check and the show happen under the same
// lock End takes to start closing, so a restore never lands after a hide.
func (o *Orchestrator) RestoreCallUI(session domain.Session) bool {
	o.mu.Lock()
	defer o.mu.Unlock()
	if !o.holdsLocked(session) || o.active.session.State != domain.StateActive {
		return false
	}
	o.showUI(o.active.session)
	return true
}

func (o *Orchestrator) holdsLocked(session domain.Session) bool {
	return session.OwnerID == o.cfg.OwnerID &&
		o.active != nil &&
		!o.active.closing &&
		o.active.session.ID == session.ID
}

// Run marks the orchestrator alive and writes heartbeats until ctx is done.
// Any in-flight session is ended on shutdown.
func (o *Orchestrator) Run(ctx context.Context) error {
	if ctx == nil {
		ctx = context.Background()
	}
	o.mu.Lock()
	if o.running {
		o.mu.Unlock()
		return fmt.Errorf("orchestrator is already running")
	}
	o.running = true
	o.mu.Unlock()

	o.deps.Logf("callsession: orchestrator %s running", o.cfg.OwnerID)
	o.beat(ctx)

	ticker := time.NewTicker(o.cfg.HeartbeatInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			o.mu.Lock()
			o.running = false
			o.mu.Unlock()
			shutdownCtx, cancel := context.WithTimeout(context.Background(), timeouts.Shutdown)
			if err := o.End(shutdownCtx, ReasonShutdown); err != nil && !errors.Is(err, domain.ErrNoActiveSession) {
				o.deps.Logf("callsession: end session on shutdown: %v", err)
			}
			cancel()
			return nil
		case <-ticker.C:
			o.beat(ctx)
		}
	}
}

// beat writes the heartbeat and refreshes the in-flight record.
func (o *Orchestrator) beat(ctx context.Context) {
	now := o.deps.Clock()
	if o.deps.Heartbeats != nil {
		beatCtx, cancel := context.WithTimeout(ctx, o.cfg.StoreTimeout)
		err := o.deps.Heartbeats.PutHeartbeat(beatCtx, storage.Heartbeat{OwnerID: o.cfg.OwnerID, BeatAt: now})
		cancel()
		if err != nil {
			o.deps.Logf("callsession: write heartbeat: %v", err)
		}
	}

	o.mu.Lock()
	if o.active == nil || o.active.closing {
		o.mu.Unlock()
		return
	}
	o.active.session.UpdatedAt = now.UTC()
	gen := o.active.generation
	o.mu.Unlock()
	if err := o.save(ctx, gen, false); err != nil && !errors.Is(err, errSessionReplaced) {
		o.deps.Logf("callsession: refresh session record: %v", err)
	}
}

// finish leaves the channel, clears the record, and releases the session.
func (o *Orchestrator) finish(gen uint64, channelName string, previous domain.State, reason EndReason) {
	o.leave(channelName)
	o.release(gen, channelName, previous, reason)
}

// release dismisses any presentation, clears the record, and frees the slot.
// Callers that joined the channel must leave it first.
func (o *Orchestrator) release(gen uint64, channelName string, previous domain.State, reason EndReason) {
	if previous == domain.StateActive {
		if o.deps.Notifier != nil {
			dismissCtx, cancel := context.WithTimeout(context.Background(), o.cfg.StoreTimeout)
			if err := o.deps.Notifier.DismissNotification(dismissCtx, channelName); err != nil {
				o.deps.Logf("callsession: dismiss notification channel=%q: %v", channelName, err)
			}
			cancel()
		}
		if o.deps.UI != nil {
			o.deps.UI.HideCallUI(channelName)
		}
	}
	o.clearStore(gen)
	if o.drop(gen) {
		o.deps.Recorder.SessionFinished(string(reason))
		o.deps.Logf("callsession: session ended channel=%q reason=%s", channelName, reason)
	}
}

func (o *Orchestrator) leave(channelName string) {
	ctx, cancel := context.WithTimeout(context.Background(), o.cfg.LeaveTimeout)
	defer cancel()
	if err := o.deps.Channel.Leave(ctx, channelName); err != nil {
		o.deps.Logf("callsession: leave channel=%q: %v", channelName, err)
	}
}

// save writes the latest snapshot of session gen.
func (o *Orchestrator) save(ctx context.Context, gen uint64, allowClosing bool) error {
	o.writeMu.Lock()
	defer o.writeMu.Unlock()

	o.mu.Lock()
	if o.active == nil || o.active.generation != gen || (o.active.closing && !allowClosing) {
		o.mu.Unlock()
		return errSessionReplaced
	}
	snapshot := o.active.session
	o.mu.Unlock()

	saveCtx, cancel := context.WithTimeout(ctx, o.cfg.StoreTimeout)
	defer cancel()
	return o.deps.Store.Save(saveCtx, snapshot)
}

func (o *Orchestrator) clearStore(gen uint64) {
	o.writeMu.Lock()
	defer o.writeMu.Unlock()
	ctx, cancel := context.WithTimeout(context.Background(), o.cfg.StoreTimeout)
	defer cancel()
	if err := o.deps.Store.Clear(ctx); err != nil {
		o.deps.Logf("callsession: clear session record (generation %d): %v", gen, err)
	}
}

// drop releases session gen and reports whether it was still held.
func (o *Orchestrator) drop(gen uint64) bool {
	o.mu.Lock()
	if o.active == nil || o.active.generation != gen {
		o.mu.Unlock()
		return false
	}
	o.active = nil
	o.mu.Unlock()
	o.deps.Recorder.StateChanged(domain.StateEnded)
	return true
}

func (o *Orchestrator) isCurrent(gen uint64, state domain.State) bool {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.active != nil && o.active.generation == gen && !o.active.closing && o.active.session.State == state
}

func (o *Orchestrator) classify(now time.Time) ProcessState {
	if o.deps.Process == nil {
		return ProcessBackground
	}
	return o.deps.Process.Classify(now)
}

func (o *Orchestrator) showUI(session domain.Session) {
	if o.deps.UI == nil {
		return
	}
	o.deps.UI.ShowCallUI(session.CallUI())
}

type nopRecorder struct{}

func (nopRecorder) TriggerHandled(string)     {}
func (nopRecorder) SessionFinished(string)    {}
func (nopRecorder) StateChanged(domain.State) {}
