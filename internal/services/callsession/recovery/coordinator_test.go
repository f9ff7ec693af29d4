package recovery

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/DuckBuck-Studios/DuckBuck-AI-Walkie-Talkie-sub006/internal/services/callsession/domain"
	"github.com/DuckBuck-Studios/DuckBuck-AI-Walkie-Talkie-sub006/internal/services/callsession/storage"
	"github.com/DuckBuck-Studios/DuckBuck-AI-Walkie-Talkie-sub006/internal/testkit/callsessionfakes"
)

var recoveryNow = time.Date(2026, 10, 16, 12, 0, 0, 0, time.UTC)

type livenessFunc func(domain.Session) bool

func (f livenessFunc) Alive(_ context.Context, session domain.Session) bool { return f(session) }

func sessionInState(t *testing.T, state domain.State, ownerID string) domain.Session {
	t.Helper()
	session := domain.NewSession(domain.Trigger{
		ChannelName: "channel-1",
		CallerID:    "user-7",
		CallerName:  "Ana",
		Timestamp:   recoveryNow,
	}, ownerID, recoveryNow)
	session.State = state
	return session
}

func TestRecoverWithoutRecord(t *testing.T) {
	log := &callsessionfakes.EventLog{}
	store := callsessionfakes.NewStore(log)
	presenter := &callsessionfakes.Presenter{Log: log}
	coordinator := NewCoordinator(store, livenessFunc(func(domain.Session) bool { return true }), presenter, WithLogger(t.Logf))

	outcome, err := coordinator.Recover(context.Background())
	if err != nil {
		t.Fatalf("recover: %v", err)
	}
	if outcome != OutcomeNone {
		t.Fatalf("outcome = %s, want %s", outcome, OutcomeNone)
	}
	if events := log.Events(); len(events) != 0 {
		t.Fatalf("events = %v, want none", events)
	}
}

func TestRecoverClearsOrphanedRecord(t *testing.T) {
	for _, state := range []domain.State{domain.StateJoining, domain.StateActive, domain.StateEnding} {
		t.Run(state.String(), func(t *testing.T) {
			log := &callsessionfakes.EventLog{}
			store := callsessionfakes.NewStore(log)
			store.Put(sessionInState(t, state, "previous-process"))
			presenter := &callsessionfakes.Presenter{Log: log}
			recorder := &outcomeRecorder{}
			coordinator := NewCoordinator(store, livenessFunc(func(domain.Session) bool { return false }), presenter,
				WithLogger(t.Logf), WithRecorder(recorder))

			outcome, err := coordinator.Recover(context.Background())
			if err != nil {
				t.Fatalf("recover: %v", err)
			}
			if outcome != OutcomeCleared {
				t.Fatalf("outcome = %s, want %s", outcome, OutcomeCleared)
			}
			if _, ok := store.Current(); ok {
				t.Fatal("expected orphaned record to be cleared")
			}
			if log.Count("ui.show") != 0 {
				t.Fatalf("events = %v, want no UI signal", log.Events())
			}
			if len(recorder.outcomes) != 1 || recorder.outcomes[0] != string(OutcomeCleared) {
				t.Fatalf("recorded = %v, want [cleared]", recorder.outcomes)
			}
		})
	}
}

func TestRecoverRestoresLiveActiveSession(t *testing.T) {
	log := &callsessionfakes.EventLog{}
	store := callsessionfakes.NewStore(log)
	session := sessionInState(t, domain.StateActive, "owner-1")
	session.Muted = true
	store.Put(session)
	presenter := &callsessionfakes.Presenter{Log: log}
	coordinator := NewCoordinator(store, livenessFunc(func(s domain.Session) bool {
		return s.OwnerID == "owner-1"
	}), presenter)

	outcome, err := coordinator.Recover(context.Background())
	if err != nil {
		t.Fatalf("recover: %v", err)
	}
	if outcome != OutcomeRestored {
		t.Fatalf("outcome = %s, want %s", outcome, OutcomeRestored)
	}
	shown := presenter.ShownCalls()
	want := domain.CallUI{ChannelName: "channel-1", CallerName: "Ana", CallerID: "user-7", Muted: true}
	if len(shown) != 1 || shown[0] != want {
		t.Fatalf("shown = %+v, want [%+v]", shown, want)
	}
	if _, ok := store.Current(); !ok {
		t.Fatal("expected live record to be kept")
	}
}

func TestRecoverSkipsRestoreForEndedSession(t *testing.T) {
	log := &callsessionfakes.EventLog{}
	store := callsessionfakes.NewStore(log)
	store.Put(sessionInState(t, domain.StateActive, "owner-1"))
	presenter := &callsessionfakes.Presenter{Log: log, RefuseRestore: true}
	coordinator := NewCoordinator(store, livenessFunc(func(domain.Session) bool { return true }), presenter)

	outcome, err := coordinator.Recover(context.Background())
	if err != nil {
		t.Fatalf("recover: %v", err)
	}
	if outcome != OutcomeNone {
		t.Fatalf("outcome = %s, want %s", outcome, OutcomeNone)
	}
	if log.Count("ui.show") != 0 {
		t.Fatalf("events = %v, want no UI signal", log.Events())
	}
}

func TestRecoverLeavesInFlightTransitionsToOwner(t *testing.T) {
	for _, state := range []domain.State{domain.StateJoining, domain.StateEnding} {
		log := &callsessionfakes.EventLog{}
		store := callsessionfakes.NewStore(log)
		store.Put(sessionInState(t, state, "owner-1"))
		presenter := &callsessionfakes.Presenter{Log: log}
		coordinator := NewCoordinator(store, livenessFunc(func(domain.Session) bool { return true }), presenter)

		outcome, err := coordinator.Recover(context.Background())
		if err != nil {
			t.Fatalf("%s: recover: %v", state, err)
		}
		if outcome != OutcomePending {
			t.Fatalf("%s: outcome = %s, want %s", state, outcome, OutcomePending)
		}
		if log.Count("ui.show") != 0 || log.Count("store.clear") != 0 {
			t.Fatalf("%s: events = %v, want no UI and no clear", state, log.Events())
		}
	}
}

func TestRecoverIsIdempotent(t *testing.T) {
	tests := []struct {
		name  string
		alive bool
	}{
		{name: "live owner", alive: true},
		{name: "dead owner", alive: false},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			store := callsessionfakes.NewStore(nil)
			store.Put(sessionInState(t, domain.StateActive, "owner-1"))
			presenter := &callsessionfakes.Presenter{}
			coordinator := NewCoordinator(store, livenessFunc(func(domain.Session) bool { return tc.alive }), presenter, WithLogger(t.Logf))

			first, err := coordinator.Recover(context.Background())
			if err != nil {
				t.Fatalf("first recover: %v", err)
			}
			_, storedAfterFirst := store.Current()
			shownAfterFirst := len(presenter.ShownCalls())

			second, err := coordinator.Recover(context.Background())
			if err != nil {
				t.Fatalf("second recover: %v", err)
			}
			_, storedAfterSecond := store.Current()
			shownBySecond := len(presenter.ShownCalls()) - shownAfterFirst

			if storedAfterFirst != storedAfterSecond {
				t.Fatalf("record kept = %v then %v", storedAfterFirst, storedAfterSecond)
			}
			if shownAfterFirst != shownBySecond {
				t.Fatalf("UI signals = %d then %d", shownAfterFirst, shownBySecond)
			}
			if tc.alive && first != second {
				t.Fatalf("outcomes = %s then %s", first, second)
			}
		})
	}
}

func TestRecoverDropsEndedRecord(t *testing.T) {
	store := callsessionfakes.NewStore(nil)
	store.Put(sessionInState(t, domain.StateEnded, "owner-1"))
	coordinator := NewCoordinator(store, livenessFunc(func(domain.Session) bool { return true }), &callsessionfakes.Presenter{})

	outcome, err := coordinator.Recover(context.Background())
	if err != nil {
		t.Fatalf("recover: %v", err)
	}
	if outcome != OutcomeNone {
		t.Fatalf("outcome = %s, want %s", outcome, OutcomeNone)
	}
	if _, ok := store.Current(); ok {
		t.Fatal("expected ended record to be cleared")
	}
}

func TestRecoverReportsLoadFailure(t *testing.T) {
	store := callsessionfakes.NewStore(nil)
	store.LoadErr = errors.New("disk unreadable")
	coordinator := NewCoordinator(store, OwnerLiveness{}, nil)

	if _, err := coordinator.Recover(context.Background()); err == nil {
		t.Fatal("expected load failure")
	}
}

func TestHeartbeatLiveness(t *testing.T) {
	session := sessionInState(t, domain.StateActive, "owner-1")
	tests := []struct {
		name string
		beat *storage.Heartbeat
		want bool
	}{
		{name: "no heartbeat"},
		{name: "recent beat", beat: &storage.Heartbeat{OwnerID: "owner-1", BeatAt: recoveryNow.Add(-5 * time.Second)}, want: true},
		{name: "beat at ttl", beat: &storage.Heartbeat{OwnerID: "owner-1", BeatAt: recoveryNow.Add(-15 * time.Second)}, want: true},
		{name: "expired beat", beat: &storage.Heartbeat{OwnerID: "owner-1", BeatAt: recoveryNow.Add(-16 * time.Second)}},
		{name: "other owner", beat: &storage.Heartbeat{OwnerID: "owner-2", BeatAt: recoveryNow}},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			store := callsessionfakes.NewStore(nil)
			if tc.beat != nil {
				if err := store.PutHeartbeat(context.Background(), *tc.beat); err != nil {
					t.Fatalf("put heartbeat: %v", err)
				}
			}
			liveness := HeartbeatLiveness{Heartbeats: store, Clock: func() time.Time { return recoveryNow }}
			if got := liveness.Alive(context.Background(), session); got != tc.want {
				t.Fatalf("alive = %v, want %v", got, tc.want)
			}
		})
	}
}

type localOwner struct {
	id    string
	holds bool
}

func (o localOwner) OwnerID() string { return o.id }

func (o localOwner) Alive(context.Context, domain.Session) bool { return o.holds }

func TestOwnerLiveness(t *testing.T) {
	local := sessionInState(t, domain.StateEnding, "owner-1")
	remote := sessionInState(t, domain.StateActive, "owner-2")
	alwaysAlive := livenessFunc(func(domain.Session) bool { return true })

	tests := []struct {
		name     string
		liveness OwnerLiveness
		session  domain.Session
		want     bool
	}{
		{name: "local owner holds session", liveness: OwnerLiveness{Local: localOwner{id: "owner-1", holds: true}}, session: local, want: true},
		{name: "local owner released session", liveness: OwnerLiveness{Local: localOwner{id: "owner-1"}, Remote: alwaysAlive}, session: local},
		{name: "remote owner", liveness: OwnerLiveness{Local: localOwner{id: "owner-1"}, Remote: alwaysAlive}, session: remote, want: true},
		{name: "remote owner without remote check", liveness: OwnerLiveness{Local: localOwner{id: "owner-1", holds: true}}, session: remote},
		{name: "empty", session: local},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			if got := tc.liveness.Alive(context.Background(), tc.session); got != tc.want {
				t.Fatalf("alive = %v, want %v", got, tc.want)
			}
		})
	}
}

type outcomeRecorder struct {
	outcomes []string
}

func (r *outcomeRecorder) RecoveryCompleted(outcome string) {
	r.outcomes = append(r.outcomes, outcome)
}
