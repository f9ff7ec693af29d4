package domain

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

// State describes the lifecycle state of a call session.
type State string

const (
	// StateJoining indicates the channel join is in flight.
	StateJoining State = "Joining"
	// StateActive indicates the channel is joined and occupied.
	StateActive State = "Active"
	// StateEnding indicates the channel leave is in flight.
	StateEnding State = "Ending"
	// StateEnded is terminal and equivalent to no session.
	StateEnded State = "Ended"
)

// sessionNamespace scopes session IDs derived from channel names.
var sessionNamespace = uuid.MustParse("0b6f5d0e-3c57-4d8e-9a44-5f2f3f0c7a61")

// ParseState converts a persisted state value into a State.
func ParseState(raw string) (State, error) {
	switch State(strings.TrimSpace(raw)) {
	case StateJoining:
		return StateJoining, nil
	case StateActive:
		return StateActive, nil
	case StateEnding:
		return StateEnding, nil
	case StateEnded:
		return StateEnded, nil
	default:
		return "", fmt.Errorf("unknown session state %q", raw)
	}
}

// InFlight reports whether the state counts toward the single-flight limit.
func (s State) InFlight() bool {
	switch s {
	case StateJoining, StateActive, StateEnding:
		return true
	default:
		return false
	}
}

// CanTransition reports whether moving from s to next is a legal step.
//
// States only move forward, with one short-circuit from Joining to Ended.
func (s State) CanTransition(next State) bool {
	switch s {
	case StateJoining:
		return next == StateActive || next == StateEnded
	case StateActive:
		return next == StateEnding
	case StateEnding:
		return next == StateEnded
	default:
		return false
	}
}

func (s State) String() string {
	return string(s)
}

// Session is the single unit of call state for one device.
type Session struct {
	ID                  string
	ChannelName         string
	CallerID            string
	CallerName          string
	TriggerTimestamp    time.Time
	State               State
	JoinedAt            *time.Time
	OccupancyResolvedAt *time.Time
	OwnerID             string
	Muted               bool
	UpdatedAt           time.Time
}

// SessionIDForChannel derives the stable session ID for a channel name.
func SessionIDForChannel(channelName string) string {
	return uuid.NewSHA1(sessionNamespace, []byte(strings.TrimSpace(channelName))).String()
}

// NewSession creates a Joining session for an accepted trigger.
func NewSession(trigger Trigger, ownerID string, now time.Time) Session {
	return Session{
		ID:               SessionIDForChannel(trigger.ChannelName),
		ChannelName:      trigger.ChannelName,
		CallerID:         trigger.CallerID,
		CallerName:       trigger.CallerName,
		TriggerTimestamp: trigger.Timestamp.UTC(),
		State:            StateJoining,
		OwnerID:          ownerID,
		UpdatedAt:        now.UTC(),
	}
}

// Transition returns a copy of the session moved to next.
func (s Session) Transition(next State, now time.Time) (Session, error) {
	if !s.State.CanTransition(next) {
		return s, fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, s.State, next)
	}
	s.State = next
	s.UpdatedAt = now.UTC()
	return s, nil
}

// MarkResolved records the occupancy resolution and join completion times.
func (s Session) MarkResolved(joinedAt, resolvedAt time.Time) Session {
	joined := joinedAt.UTC()
	resolved := resolvedAt.UTC()
	s.JoinedAt = &joined
	s.OccupancyResolvedAt = &resolved
	return s
}
