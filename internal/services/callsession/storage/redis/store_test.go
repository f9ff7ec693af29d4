package redis

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/DuckBuck-Studios/DuckBuck-AI-Walkie-Talkie-sub006/internal/services/callsession/domain"
	"github.com/DuckBuck-Studios/DuckBuck-AI-Walkie-Talkie-sub006/internal/services/callsession/storage"
	"github.com/DuckBuck-Studios/DuckBuck-AI-Walkie-Talkie-sub006/internal/services/callsession/storage/storagetest"
	"github.com/alicebob/miniredis/v2"
)

func TestStoreContract(t *testing.T) {
	storagetest.Run(t, func(t *testing.T) storage.Store {
		store, _ := openTestStore(t, time.Minute)
		return store
	})
}

func TestRecordExpiresAfterTTL(t *testing.T) {
	store, server := openTestStore(t, 30*time.Second)
	now := time.Date(2026, 10, 16, 12, 0, 0, 0, time.UTC)
	session := domain.NewSession(domain.Trigger{ChannelName: "channel-3", Timestamp: now}, "owner-3", now)
	if err := store.Save(context.Background(), session); err != nil {
		t.Fatalf("save session: %v", err)
	}

	server.FastForward(31 * time.Second)

	if _, err := store.Load(context.Background()); !errors.Is(err, storage.ErrNotFound) {
		t.Fatalf("load error = %v, want not found", err)
	}
}

func TestKeysUsePrefix(t *testing.T) {
	server := miniredis.RunT(t)
	store, err := Open(context.Background(), Options{Addr: server.Addr(), KeyPrefix: "device-1"})
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() { _ = store.Close() })

	if err := store.PutHeartbeat(context.Background(), storage.Heartbeat{OwnerID: "owner-1", BeatAt: time.Now()}); err != nil {
		t.Fatalf("put heartbeat: %v", err)
	}
	if !server.Exists("device-1:heartbeat") {
		t.Fatalf("keys = %v, want device-1:heartbeat", server.Keys())
	}
}

func TestOpenRequiresAddress(t *testing.T) {
	if _, err := Open(context.Background(), Options{}); err == nil {
		t.Fatal("expected error for empty address")
	}
}

func openTestStore(t *testing.T, ttl time.Duration) (*Store, *miniredis.Miniredis) {
	t.Helper()
	server := miniredis.RunT(t)
	store, err := Open(context.Background(), Options{Addr: server.Addr(), TTL: ttl})
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() {
		if err := store.Close(); err != nil {
			t.Fatalf("close store: %v", err)
		}
	})
	return store, server
}
