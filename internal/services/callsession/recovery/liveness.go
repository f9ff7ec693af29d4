package recovery

import (
	"context"
	"log"
	"time"

	"github.com/DuckBuck-Studios/DuckBuck-AI-Walkie-Talkie-sub006/internal/services/callsession/domain"
	"github.com/DuckBuck-Studios/DuckBuck-AI-Walkie-Talkie-sub006/internal/services/callsession/storage"
)

// DefaultHeartbeatTTL is how old the last heartbeat may be while its owner
// still counts as alive.
const DefaultHeartbeatTTL = 15 * time.Second

// Liveness reports whether the owner of a persisted session is still running.
type Liveness interface {
	Alive(ctx context.Context, session domain.Session) bool
}

// Owner is the in-process orchestrator.
type Owner interface {
	OwnerID() string
	Alive(ctx context.Context, session domain.Session) bool
}

// OwnerLiveness answers for records written by the local orchestrator from
// its in-memory state and asks Remote about records from any other owner.
// The local answer is final: a fresh local heartbeat does not keep alive a
// record the orchestrator no longer holds.
type OwnerLiveness struct {
	Local  Owner
	Remote Liveness
}

// Alive reports whether the owner of session still holds it.
func (l OwnerLiveness) Alive(ctx context.Context, session domain.Session) bool {
	if l.Local != nil && session.OwnerID == l.Local.OwnerID() {
		return l.Local.Alive(ctx, session)
	}
	if l.Remote == nil {
		return false
	}
	return l.Remote.Alive(ctx, session)
}

// HeartbeatLiveness reads the persisted heartbeat, so it also covers an
// owner running in another process.
type HeartbeatLiveness struct {
	Heartbeats storage.HeartbeatStore
	TTL        time.Duration
	Clock      func() time.Time
	Logf       func(string, ...any)
}

// Alive reports whether the heartbeat belongs to the session owner and is
// recent enough.
func (l HeartbeatLiveness) Alive(ctx context.Context, session domain.Session) bool {
	if l.Heartbeats == nil || session.OwnerID == "" {
		return false
	}
	ttl := l.TTL
	if ttl <= 0 {
		ttl = DefaultHeartbeatTTL
	}
	clock := l.Clock
	if clock == nil {
		clock = time.Now
	}
	beat, err := l.Heartbeats.GetHeartbeat(ctx)
	if err != nil {
		if !storage.IsNotFound(err) {
			logf := l.Logf
			if logf == nil {
				logf = log.Printf
			}
			logf("callsession: read heartbeat: %v", err)
		}
		return false
	}
	if beat.OwnerID != session.OwnerID {
		return false
	}
	return clock().Sub(beat.BeatAt) <= ttl
}
