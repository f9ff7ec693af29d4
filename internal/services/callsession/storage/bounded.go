package storage

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/DuckBuck-Studios/DuckBuck-AI-Walkie-Talkie-sub006/internal/services/callsession/domain"
)

// DefaultStaleAfter bounds how old a persisted record may be before it is
// treated as absent.
const DefaultStaleAfter = 5 * time.Minute

// Bounded applies the record lifetime rules on top of a backend:
// Ended records are never retained, and records not refreshed within
// staleAfter read as absent.
type Bounded struct {
	inner      Store
	staleAfter time.Duration
	clock      func() time.Time
}

// NewBounded wraps a backend store.
func NewBounded(inner Store, staleAfter time.Duration, clock func() time.Time) *Bounded {
	if staleAfter <= 0 {
		staleAfter = DefaultStaleAfter
	}
	if clock == nil {
		clock = time.Now
	}
	return &Bounded{inner: inner, staleAfter: staleAfter, clock: clock}
}

// Save upserts the record; saving an Ended record deletes it instead.
func (b *Bounded) Save(ctx context.Context, session domain.Session) error {
	if b == nil || b.inner == nil {
		return fmt.Errorf("storage is not configured")
	}
	if session.State == domain.StateEnded {
		return b.inner.Clear(ctx)
	}
	return b.inner.Save(ctx, session)
}

// Load returns the live record, clearing Ended or stale leftovers.
func (b *Bounded) Load(ctx context.Context) (domain.Session, error) {
	if b == nil || b.inner == nil {
		return domain.Session{}, fmt.Errorf("storage is not configured")
	}
	session, err := b.inner.Load(ctx)
	if err != nil {
		return domain.Session{}, err
	}
	if session.State == domain.StateEnded || b.clock().Sub(session.UpdatedAt) > b.staleAfter {
		if clearErr := b.inner.Clear(ctx); clearErr != nil {
			return domain.Session{}, fmt.Errorf("clear expired session record: %w", clearErr)
		}
		return domain.Session{}, ErrNotFound
	}
	return session, nil
}

// Clear deletes the record; it is a no-op when nothing is stored.
func (b *Bounded) Clear(ctx context.Context) error {
	if b == nil || b.inner == nil {
		return fmt.Errorf("storage is not configured")
	}
	return b.inner.Clear(ctx)
}

// PutHeartbeat forwards to the backend.
func (b *Bounded) PutHeartbeat(ctx context.Context, heartbeat Heartbeat) error {
	if b == nil || b.inner == nil {
		return fmt.Errorf("storage is not configured")
	}
	return b.inner.PutHeartbeat(ctx, heartbeat)
}

// GetHeartbeat forwards to the backend.
func (b *Bounded) GetHeartbeat(ctx context.Context) (Heartbeat, error) {
	if b == nil || b.inner == nil {
		return Heartbeat{}, fmt.Errorf("storage is not configured")
	}
	return b.inner.GetHeartbeat(ctx)
}

// Close closes the backend.
func (b *Bounded) Close() error {
	if b == nil || b.inner == nil {
		return nil
	}
	return b.inner.Close()
}

// IsNotFound reports whether err means no record is stored.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound)
}

var _ Store = (*Bounded)(nil)
