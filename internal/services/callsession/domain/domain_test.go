package domain

import (
	"errors"
	"fmt"
	"testing"
	"time"
)

func TestDecodeTriggerMessage(t *testing.T) {
	t.Parallel()

	cases := []struct {
		name    string
		payload string
		wantErr error
	}{
		{
			name:    "valid numeric timestamp",
			payload: `{"channelName":"channel-1","callerId":"u-1","callerName":"Ana","messageType":"walkie_talkie","timestamp":1760000000}`,
		},
		{
			name:    "valid string timestamp",
			payload: `{"channelName":"channel-1","callerId":"u-1","callerName":"Ana","messageType":"walkie_talkie","timestamp":"1760000000"}`,
		},
		{
			name:    "missing channel",
			payload: `{"callerId":"u-1","callerName":"Ana","messageType":"walkie_talkie","timestamp":1760000000}`,
			wantErr: ErrValidation,
		},
		{
			name:    "blank caller id",
			payload: `{"channelName":"channel-1","callerId":"  ","callerName":"Ana","messageType":"walkie_talkie","timestamp":1760000000}`,
			wantErr: ErrValidation,
		},
		{
			name:    "missing caller name",
			payload: `{"channelName":"channel-1","callerId":"u-1","messageType":"walkie_talkie","timestamp":1760000000}`,
			wantErr: ErrValidation,
		},
		{
			name:    "other message type",
			payload: `{"channelName":"channel-1","callerId":"u-1","callerName":"Ana","messageType":"chat_message","timestamp":1760000000}`,
			wantErr: ErrValidation,
		},
		{
			name:    "missing timestamp",
			payload: `{"channelName":"channel-1","callerId":"u-1","callerName":"Ana","messageType":"walkie_talkie"}`,
			wantErr: ErrValidation,
		},
		{
			name:    "non numeric timestamp",
			payload: `{"channelName":"channel-1","callerId":"u-1","callerName":"Ana","messageType":"walkie_talkie","timestamp":"soon"}`,
			wantErr: ErrValidation,
		},
		{
			name:    "not json",
			payload: `channel-1`,
			wantErr: ErrValidation,
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			trigger, err := DecodeTriggerMessage([]byte(tc.payload))
			if tc.wantErr != nil {
				if !errors.Is(err, tc.wantErr) {
					t.Fatalf("error = %v, want %v", err, tc.wantErr)
				}
				return
			}
			if err != nil {
				t.Fatalf("decode trigger: %v", err)
			}
			if trigger.ChannelName != "channel-1" {
				t.Fatalf("channel = %q, want %q", trigger.ChannelName, "channel-1")
			}
			if got := trigger.Timestamp.Unix(); got != 1760000000 {
				t.Fatalf("timestamp = %d, want %d", got, 1760000000)
			}
		})
	}
}

func TestCheckFreshness(t *testing.T) {
	t.Parallel()

	now := time.Date(2026, 10, 16, 12, 0, 0, 0, time.UTC)
	cases := []struct {
		name  string
		at    time.Time
		stale bool
	}{
		{name: "five seconds old", at: now.Add(-5 * time.Second)},
		{name: "exactly at bound", at: now.Add(-15 * time.Second)},
		{name: "just past bound", at: now.Add(-16 * time.Second), stale: true},
		{name: "thirty seconds old", at: now.Add(-30 * time.Second), stale: true},
		{name: "slightly in future", at: now.Add(2 * time.Second)},
		{name: "twenty seconds in future", at: now.Add(20 * time.Second)},
		{name: "far in future", at: now.Add(time.Hour)},
	}
	for _, tc := range cases {
		err := CheckFreshness(tc.at, now, DefaultMaxTriggerAge)
		if tc.stale && !errors.Is(err, ErrStaleTrigger) {
			t.Fatalf("%s: error = %v, want stale", tc.name, err)
		}
		if !tc.stale && err != nil {
			t.Fatalf("%s: unexpected error %v", tc.name, err)
		}
	}
}

func TestStateTransitions(t *testing.T) {
	t.Parallel()

	legal := map[State][]State{
		StateJoining: {StateActive, StateEnded},
		StateActive:  {StateEnding},
		StateEnding:  {StateEnded},
	}
	all := []State{StateJoining, StateActive, StateEnding, StateEnded}
	for _, from := range all {
		for _, to := range all {
			want := false
			for _, allowed := range legal[from] {
				if allowed == to {
					want = true
				}
			}
			if got := from.CanTransition(to); got != want {
				t.Fatalf("%s -> %s = %v, want %v", from, to, got, want)
			}
		}
	}
	if StateEnded.InFlight() {
		t.Fatal("ended must not count as in flight")
	}
}

func TestSessionTransitionRejectsBackwardMove(t *testing.T) {
	t.Parallel()

	now := time.Date(2026, 10, 16, 12, 0, 0, 0, time.UTC)
	session := NewSession(Trigger{ChannelName: "channel-1", CallerID: "u-1", CallerName: "Ana", Timestamp: now}, "owner-1", now)
	active, err := session.Transition(StateActive, now)
	if err != nil {
		t.Fatalf("transition to active: %v", err)
	}
	if _, err := active.Transition(StateJoining, now); !errors.Is(err, ErrInvalidTransition) {
		t.Fatalf("error = %v, want invalid transition", err)
	}
}

func TestSessionIDForChannelIsStable(t *testing.T) {
	t.Parallel()

	first := SessionIDForChannel("channel-1")
	if second := SessionIDForChannel(" channel-1 "); second != first {
		t.Fatalf("session id = %q, want %q", second, first)
	}
	if other := SessionIDForChannel("channel-2"); other == first {
		t.Fatal("expected distinct session ids per channel")
	}
}

func TestParseState(t *testing.T) {
	t.Parallel()

	for _, state := range []State{StateJoining, StateActive, StateEnding, StateEnded} {
		got, err := ParseState(string(state))
		if err != nil || got != state {
			t.Fatalf("parse %q = %q, %v", state, got, err)
		}
	}
	if _, err := ParseState("Incoming"); err == nil {
		t.Fatal("expected error for unknown state")
	}
}

func TestClassify(t *testing.T) {
	t.Parallel()

	cases := map[error]string{
		nil: OutcomeAccepted,
		fmt.Errorf("wrap: %w", ErrStaleTrigger):       OutcomeStale,
		fmt.Errorf("wrap: %w", ErrDuplicateTrigger):   OutcomeDuplicate,
		fmt.Errorf("wrap: %w", ErrPersistenceFailure): OutcomePersistence,
		errors.New("boom"):                            OutcomeInternal,
	}
	for err, want := range cases {
		if got := Classify(err); got != want {
			t.Fatalf("classify(%v) = %q, want %q", err, got, want)
		}
	}
}
