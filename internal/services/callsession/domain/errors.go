package domain

import "errors"

var (
	// ErrStaleTrigger indicates a trigger was older than the freshness bound.
	ErrStaleTrigger = errors.New("stale trigger")
	// ErrValidation indicates a malformed or out-of-scope trigger.
	ErrValidation = errors.New("invalid trigger")
	// ErrDuplicateTrigger indicates a session was already in flight.
	ErrDuplicateTrigger = errors.New("session already in flight")
	// ErrJoinFailure indicates the channel client could not join.
	ErrJoinFailure = errors.New("channel join failed")
	// ErrPersistenceFailure indicates the provisional record could not be saved.
	ErrPersistenceFailure = errors.New("session persistence failed")
	// ErrRecoveryMismatch indicates persisted data without a live owner.
	ErrRecoveryMismatch = errors.New("session record has no live owner")
	// ErrNoActiveSession indicates a control call arrived with no session in flight.
	ErrNoActiveSession = errors.New("no active session")
	// ErrInvalidTransition indicates a state change the lifecycle does not allow.
	ErrInvalidTransition = errors.New("invalid session state transition")
)

// Outcome labels used in logs and metrics.
const (
	OutcomeAccepted          = "accepted"
	OutcomeStale             = "stale"
	OutcomeValidation        = "validation_error"
	OutcomeDuplicate         = "duplicate"
	OutcomeJoinFailure       = "join_failure"
	OutcomePersistence       = "persistence_failure"
	OutcomeRecoveryMismatch  = "recovery_mismatch"
	OutcomeNoActiveSession   = "no_active_session"
	OutcomeInvalidTransition = "invalid_transition"
	OutcomeInternal          = "internal"
)

// Classify maps an error to a low-cardinality outcome label.
func Classify(err error) string {
	switch {
	case err == nil:
		return OutcomeAccepted
	case errors.Is(err, ErrStaleTrigger):
		return OutcomeStale
	case errors.Is(err, ErrValidation):
		return OutcomeValidation
	case errors.Is(err, ErrDuplicateTrigger):
		return OutcomeDuplicate
	case errors.Is(err, ErrJoinFailure):
		return OutcomeJoinFailure
	case errors.Is(err, ErrPersistenceFailure):
		return OutcomePersistence
	case errors.Is(err, ErrRecoveryMismatch):
		return OutcomeRecoveryMismatch
	case errors.Is(err, ErrNoActiveSession):
		return OutcomeNoActiveSession
	case errors.Is(err, ErrInvalidTransition):
		return OutcomeInvalidTransition
	default:
		return OutcomeInternal
	}
}
