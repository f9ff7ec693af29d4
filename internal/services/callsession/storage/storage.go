// Package storage defines the durable persistence boundary for the single
// call session record and the orchestrator heartbeat.
//
// Backends live in subpackages (bbolt, sqlite, redis). Every backend must make
// Save atomic: a reader never observes a half-written record.
package storage

import (
	"context"
	"errors"
	"time"

	"github.com/DuckBuck-Studios/DuckBuck-AI-Walkie-Talkie-sub006/internal/services/callsession/domain"
)

// ErrNotFound indicates no session or heartbeat record is stored.
var ErrNotFound = errors.New("record not found")

// Heartbeat is the latest liveness beat written by a running orchestrator.
type Heartbeat struct {
	OwnerID string
	BeatAt  time.Time
}

// SessionStore persists the one session record for this device.
type SessionStore interface {
	Save(ctx context.Context, session domain.Session) error
	Load(ctx context.Context) (domain.Session, error)
	Clear(ctx context.Context) error
}

// HeartbeatStore persists orchestrator liveness beats.
type HeartbeatStore interface {
	PutHeartbeat(ctx context.Context, heartbeat Heartbeat) error
	GetHeartbeat(ctx context.Context) (Heartbeat, error)
}

// Store is the full persistence surface a backend provides.
type Store interface {
	SessionStore
	HeartbeatStore
	Close() error
}
