package sqlite

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/DuckBuck-Studios/DuckBuck-AI-Walkie-Talkie-sub006/internal/services/callsession/domain"
	"github.com/DuckBuck-Studios/DuckBuck-AI-Walkie-Talkie-sub006/internal/services/callsession/storage"
	"github.com/DuckBuck-Studios/DuckBuck-AI-Walkie-Talkie-sub006/internal/services/callsession/storage/storagetest"
)

func TestStoreContract(t *testing.T) {
	storagetest.Run(t, func(t *testing.T) storage.Store {
		return openTempStore(t, filepath.Join(t.TempDir(), "callsession.sqlite"))
	})
}

func TestReopenKeepsRecordAndSkipsMigrations(t *testing.T) {
	path := filepath.Join(t.TempDir(), "callsession.sqlite")
	now := time.Date(2026, 10, 16, 12, 0, 0, 0, time.UTC)
	session := domain.NewSession(domain.Trigger{
		ChannelName: "channel-9",
		CallerID:    "user-2",
		CallerName:  "Bruno",
		Timestamp:   now,
	}, "owner-9", now)

	first, err := Open(path)
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	if err := first.Save(context.Background(), session); err != nil {
		t.Fatalf("save session: %v", err)
	}
	if err := first.Close(); err != nil {
		t.Fatalf("close store: %v", err)
	}

	second := openTempStore(t, path)
	loaded, err := second.Load(context.Background())
	if err != nil {
		t.Fatalf("load after reopen: %v", err)
	}
	if loaded.ID != session.ID || loaded.OwnerID != "owner-9" {
		t.Fatalf("loaded = %+v, want record for owner-9", loaded)
	}
}

func TestOpenRequiresPath(t *testing.T) {
	if _, err := Open(""); err == nil {
		t.Fatal("expected error for empty path")
	}
}

func openTempStore(t *testing.T, path string) *Store {
	t.Helper()
	store, err := Open(path)
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() {
		if err := store.Close(); err != nil {
			t.Fatalf("close store: %v", err)
		}
	})
	return store
}
