// Package storagetest provides a behavior suite every call session storage
// backend must pass.
package storagetest

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/DuckBuck-Studios/DuckBuck-AI-Walkie-Talkie-sub006/internal/services/callsession/domain"
	"github.com/DuckBuck-Studios/DuckBuck-AI-Walkie-Talkie-sub006/internal/services/callsession/storage"
)

// Opener opens a fresh, empty store for one subtest.
type Opener func(t *testing.T) storage.Store

// Run exercises the storage contract against a backend.
func Run(t *testing.T, open Opener) {
	t.Helper()

	t.Run("load empty", func(t *testing.T) {
		store := open(t)
		if _, err := store.Load(context.Background()); !errors.Is(err, storage.ErrNotFound) {
			t.Fatalf("load error = %v, want not found", err)
		}
	})

	t.Run("save then load", func(t *testing.T) {
		store := open(t)
		session := sampleSession()
		if err := store.Save(context.Background(), session); err != nil {
			t.Fatalf("save session: %v", err)
		}
		loaded, err := store.Load(context.Background())
		if err != nil {
			t.Fatalf("load session: %v", err)
		}
		assertSessionEqual(t, loaded, session)
	})

	t.Run("save upserts", func(t *testing.T) {
		store := open(t)
		session := sampleSession()
		if err := store.Save(context.Background(), session); err != nil {
			t.Fatalf("save joining: %v", err)
		}
		resolvedAt := session.UpdatedAt.Add(800 * time.Millisecond)
		active, err := session.Transition(domain.StateActive, resolvedAt)
		if err != nil {
			t.Fatalf("transition: %v", err)
		}
		active = active.MarkResolved(resolvedAt, resolvedAt)
		active.Muted = true
		if err := store.Save(context.Background(), active); err != nil {
			t.Fatalf("save active: %v", err)
		}
		loaded, err := store.Load(context.Background())
		if err != nil {
			t.Fatalf("load session: %v", err)
		}
		assertSessionEqual(t, loaded, active)
	})

	t.Run("clear is idempotent", func(t *testing.T) {
		store := open(t)
		if err := store.Clear(context.Background()); err != nil {
			t.Fatalf("clear empty store: %v", err)
		}
		if err := store.Save(context.Background(), sampleSession()); err != nil {
			t.Fatalf("save session: %v", err)
		}
		if err := store.Clear(context.Background()); err != nil {
			t.Fatalf("clear session: %v", err)
		}
		if err := store.Clear(context.Background()); err != nil {
			t.Fatalf("clear twice: %v", err)
		}
		if _, err := store.Load(context.Background()); !errors.Is(err, storage.ErrNotFound) {
			t.Fatalf("load error = %v, want not found", err)
		}
	})

	t.Run("save rejects invalid record", func(t *testing.T) {
		store := open(t)
		if err := store.Save(context.Background(), domain.Session{}); err == nil {
			t.Fatal("expected validation error for empty session")
		}
	})

	t.Run("heartbeat round trip", func(t *testing.T) {
		store := open(t)
		if _, err := store.GetHeartbeat(context.Background()); !errors.Is(err, storage.ErrNotFound) {
			t.Fatalf("heartbeat error = %v, want not found", err)
		}
		beat := storage.Heartbeat{OwnerID: "owner-1", BeatAt: time.Date(2026, 10, 16, 12, 0, 5, 0, time.UTC)}
		if err := store.PutHeartbeat(context.Background(), beat); err != nil {
			t.Fatalf("put heartbeat: %v", err)
		}
		loaded, err := store.GetHeartbeat(context.Background())
		if err != nil {
			t.Fatalf("get heartbeat: %v", err)
		}
		if loaded.OwnerID != beat.OwnerID || !loaded.BeatAt.Equal(beat.BeatAt) {
			t.Fatalf("heartbeat = %+v, want %+v", loaded, beat)
		}
	})

	t.Run("canceled context", func(t *testing.T) {
		store := open(t)
		ctx, cancel := context.WithCancel(context.Background())
		cancel()
		if err := store.Save(ctx, sampleSession()); err == nil {
			t.Fatal("expected error for canceled context")
		}
	})
}

func sampleSession() domain.Session {
	now := time.Date(2026, 10, 16, 12, 0, 0, 0, time.UTC)
	return domain.NewSession(domain.Trigger{
		ChannelName: "channel-1",
		CallerID:    "user-7",
		CallerName:  "Ana",
		Timestamp:   now.Add(-5 * time.Second),
	}, "owner-1", now)
}

func assertSessionEqual(t *testing.T, got, want domain.Session) {
	t.Helper()
	if got.ID != want.ID {
		t.Fatalf("id = %q, want %q", got.ID, want.ID)
	}
	if got.ChannelName != want.ChannelName {
		t.Fatalf("channel = %q, want %q", got.ChannelName, want.ChannelName)
	}
	if got.CallerID != want.CallerID || got.CallerName != want.CallerName {
		t.Fatalf("caller = %q/%q, want %q/%q", got.CallerID, got.CallerName, want.CallerID, want.CallerName)
	}
	if got.State != want.State {
		t.Fatalf("state = %s, want %s", got.State, want.State)
	}
	if !got.TriggerTimestamp.Equal(want.TriggerTimestamp) {
		t.Fatalf("trigger timestamp = %v, want %v", got.TriggerTimestamp, want.TriggerTimestamp)
	}
	if !got.UpdatedAt.Equal(want.UpdatedAt) {
		t.Fatalf("updated at = %v, want %v", got.UpdatedAt, want.UpdatedAt)
	}
	if got.OwnerID != want.OwnerID || got.Muted != want.Muted {
		t.Fatalf("owner/muted = %q/%v, want %q/%v", got.OwnerID, got.Muted, want.OwnerID, want.Muted)
	}
	assertOptionalTime(t, "joined at", got.JoinedAt, want.JoinedAt)
	assertOptionalTime(t, "occupancy resolved at", got.OccupancyResolvedAt, want.OccupancyResolvedAt)
}

func assertOptionalTime(t *testing.T, name string, got, want *time.Time) {
	t.Helper()
	switch {
	case got == nil && want == nil:
	case got == nil || want == nil:
		t.Fatalf("%s = %v, want %v", name, got, want)
	case !got.Equal(*want):
		t.Fatalf("%s = %v, want %v", name, *got, *want)
	}
}
