package storage_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/DuckBuck-Studios/DuckBuck-AI-Walkie-Talkie-sub006/internal/services/callsession/domain"
	"github.com/DuckBuck-Studios/DuckBuck-AI-Walkie-Talkie-sub006/internal/services/callsession/storage"
	"github.com/DuckBuck-Studios/DuckBuck-AI-Walkie-Talkie-sub006/internal/testkit/callsessionfakes"
)

func TestBoundedSaveEndedClears(t *testing.T) {
	now := time.Date(2026, 10, 16, 12, 0, 0, 0, time.UTC)
	inner := callsessionfakes.NewStore(nil)
	store := storage.NewBounded(inner, time.Minute, func() time.Time { return now })

	session := domain.NewSession(domain.Trigger{ChannelName: "channel-1", Timestamp: now}, "owner-1", now)
	if err := store.Save(context.Background(), session); err != nil {
		t.Fatalf("save joining: %v", err)
	}
	ended, err := session.Transition(domain.StateEnded, now)
	if err != nil {
		t.Fatalf("transition: %v", err)
	}
	if err := store.Save(context.Background(), ended); err != nil {
		t.Fatalf("save ended: %v", err)
	}
	if _, ok := inner.Current(); ok {
		t.Fatal("expected ended record to be deleted")
	}
}

func TestBoundedLoadDropsEndedRecord(t *testing.T) {
	now := time.Date(2026, 10, 16, 12, 0, 0, 0, time.UTC)
	inner := callsessionfakes.NewStore(nil)
	session := domain.NewSession(domain.Trigger{ChannelName: "channel-1", Timestamp: now}, "owner-1", now)
	session.State = domain.StateEnded
	inner.Put(session)

	store := storage.NewBounded(inner, time.Minute, func() time.Time { return now })
	if _, err := store.Load(context.Background()); !errors.Is(err, storage.ErrNotFound) {
		t.Fatalf("load error = %v, want not found", err)
	}
	if _, ok := inner.Current(); ok {
		t.Fatal("expected ended record to be cleared on load")
	}
}

func TestBoundedLoadStaleness(t *testing.T) {
	written := time.Date(2026, 10, 16, 12, 0, 0, 0, time.UTC)
	tests := []struct {
		name    string
		elapsed time.Duration
		want    error
	}{
		{name: "fresh", elapsed: 30 * time.Second},
		{name: "at bound", elapsed: time.Minute},
		{name: "past bound", elapsed: time.Minute + time.Second, want: storage.ErrNotFound},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			inner := callsessionfakes.NewStore(nil)
			inner.Put(domain.NewSession(domain.Trigger{ChannelName: "channel-1", Timestamp: written}, "owner-1", written))
			now := written.Add(tc.elapsed)
			store := storage.NewBounded(inner, time.Minute, func() time.Time { return now })

			_, err := store.Load(context.Background())
			if !errors.Is(err, tc.want) {
				t.Fatalf("load error = %v, want %v", err, tc.want)
			}
			_, stillStored := inner.Current()
			if stillStored != (tc.want == nil) {
				t.Fatalf("record stored = %v, want %v", stillStored, tc.want == nil)
			}
		})
	}
}

func TestBoundedRequiresInner(t *testing.T) {
	var store *storage.Bounded
	if err := store.Save(context.Background(), domain.Session{}); err == nil {
		t.Fatal("expected error for nil store")
	}
	if err := store.Close(); err != nil {
		t.Fatalf("close nil store: %v", err)
	}
}
