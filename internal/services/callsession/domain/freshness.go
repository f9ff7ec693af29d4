package domain

import (
	"fmt"
	"time"
)

// DefaultMaxTriggerAge is the oldest trigger that still causes a join.
const DefaultMaxTriggerAge = 15 * time.Second

// CheckFreshness rejects triggers older than maxAge relative to now. A
// timestamp ahead of the local clock has a negative age and is accepted.
func CheckFreshness(triggerAt, now time.Time, maxAge time.Duration) error {
	if maxAge <= 0 {
		maxAge = DefaultMaxTriggerAge
	}
	age := now.Sub(triggerAt)
	if age > maxAge {
		return fmt.Errorf("%w: age %s exceeds %s", ErrStaleTrigger, age.Truncate(time.Millisecond), maxAge)
	}
	return nil
}
