// Package bbolt provides a single-file BoltDB backend for the call session
// record. It is the default on-device store.
package bbolt

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/DuckBuck-Studios/DuckBuck-AI-Walkie-Talkie-sub006/internal/services/callsession/domain"
	"github.com/DuckBuck-Studios/DuckBuck-AI-Walkie-Talkie-sub006/internal/services/callsession/storage"
	"go.etcd.io/bbolt"
)

const (
	callSessionBucket = "call_session"
	sessionKey        = "current"
	heartbeatKey      = "heartbeat"
)

// Store provides a BoltDB-backed call session store.
type Store struct {
	db *bbolt.DB
}

// Open opens a BoltDB-backed store at the provided path.
func Open(path string) (*Store, error) {
	if strings.TrimSpace(path) == "" {
		return nil, fmt.Errorf("storage path is required")
	}

	cleanPath := filepath.Clean(path)
	if dir := filepath.Dir(cleanPath); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create storage dir: %w", err)
		}
	}
	db, err := bbolt.Open(cleanPath, 0o600, &bbolt.Options{Timeout: time.Second})
	if err != nil {
		return nil, fmt.Errorf("open storage db: %w", err)
	}

	store := &Store{db: db}
	if err := store.ensureBuckets(); err != nil {
		_ = db.Close()
		return nil, err
	}
	return store, nil
}

// Close closes the underlying BoltDB database.
func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

// Save persists the session record in one write transaction.
func (s *Store) Save(ctx context.Context, session domain.Session) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if s == nil || s.db == nil {
		return fmt.Errorf("storage is not configured")
	}
	payload, err := storage.MarshalSession(session)
	if err != nil {
		return err
	}
	return s.put(sessionKey, payload)
}

// Load fetches the session record.
func (s *Store) Load(ctx context.Context) (domain.Session, error) {
	if err := ctx.Err(); err != nil {
		return domain.Session{}, err
	}
	if s == nil || s.db == nil {
		return domain.Session{}, fmt.Errorf("storage is not configured")
	}
	payload, err := s.get(sessionKey)
	if err != nil {
		return domain.Session{}, err
	}
	return storage.UnmarshalSession(payload)
}

// Clear deletes the session record.
func (s *Store) Clear(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if s == nil || s.db == nil {
		return fmt.Errorf("storage is not configured")
	}
	return s.db.Update(func(tx *bbolt.Tx) error {
		bucket := tx.Bucket([]byte(callSessionBucket))
		if bucket == nil {
			return fmt.Errorf("call session bucket is missing")
		}
		return bucket.Delete([]byte(sessionKey))
	})
}

// PutHeartbeat persists the orchestrator heartbeat.
func (s *Store) PutHeartbeat(ctx context.Context, heartbeat storage.Heartbeat) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if s == nil || s.db == nil {
		return fmt.Errorf("storage is not configured")
	}
	payload, err := storage.MarshalHeartbeat(heartbeat)
	if err != nil {
		return err
	}
	return s.put(heartbeatKey, payload)
}

// GetHeartbeat fetches the orchestrator heartbeat.
func (s *Store) GetHeartbeat(ctx context.Context) (storage.Heartbeat, error) {
	if err := ctx.Err(); err != nil {
		return storage.Heartbeat{}, err
	}
	if s == nil || s.db == nil {
		return storage.Heartbeat{}, fmt.Errorf("storage is not configured")
	}
	payload, err := s.get(heartbeatKey)
	if err != nil {
		return storage.Heartbeat{}, err
	}
	return storage.UnmarshalHeartbeat(payload)
}

func (s *Store) put(key string, payload []byte) error {
	return s.db.Update(func(tx *bbolt.Tx) error {
		bucket := tx.Bucket([]byte(callSessionBucket))
		if bucket == nil {
			return fmt.Errorf("call session bucket is missing")
		}
		return bucket.Put([]byte(key), payload)
	})
}

func (s *Store) get(key string) ([]byte, error) {
	var payload []byte
	err := s.db.View(func(tx *bbolt.Tx) error {
		bucket := tx.Bucket([]byte(callSessionBucket))
		if bucket == nil {
			return fmt.Errorf("call session bucket is missing")
		}
		value := bucket.Get([]byte(key))
		if value == nil {
			return storage.ErrNotFound
		}
		// Values are only valid for the life of the transaction.
		payload = append([]byte(nil), value...)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return payload, nil
}

func (s *Store) ensureBuckets() error {
	return s.db.Update(func(tx *bbolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists([]byte(callSessionBucket))
		if err != nil {
			return fmt.Errorf("create call session bucket: %w", err)
		}
		return nil
	})
}

var _ storage.Store = (*Store)(nil)
