// Package redis stores the call session record in a local Redis instance.
package redis

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/DuckBuck-Studios/DuckBuck-AI-Walkie-Talkie-sub006/internal/services/callsession/domain"
	"github.com/DuckBuck-Studios/DuckBuck-AI-Walkie-Talkie-sub006/internal/services/callsession/storage"
	goredis "github.com/redis/go-redis/v9"
)

const defaultKeyPrefix = "callsession"

// Options configures the Redis store.
type Options struct {
	Addr      string
	Password  string
	DB        int
	KeyPrefix string
	// TTL expires both keys when the owner stops refreshing them.
	TTL time.Duration
}

// Store provides Redis-backed call session persistence.
type Store struct {
	client *goredis.Client
	prefix string
	ttl    time.Duration
}

// Open connects to Redis and verifies the connection.
func Open(ctx context.Context, opts Options) (*Store, error) {
	addr := strings.TrimSpace(opts.Addr)
	if addr == "" {
		return nil, fmt.Errorf("redis address is required")
	}
	client := goredis.NewClient(&goredis.Options{
		Addr:     addr,
		Password: opts.Password,
		DB:       opts.DB,
	})
	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("redis connection failed: %w", err)
	}
	return NewStore(client, opts.KeyPrefix, opts.TTL), nil
}

// NewStore wraps an existing client.
func NewStore(client *goredis.Client, keyPrefix string, ttl time.Duration) *Store {
	prefix := strings.TrimSpace(keyPrefix)
	if prefix == "" {
		prefix = defaultKeyPrefix
	}
	if ttl <= 0 {
		ttl = storage.DefaultStaleAfter
	}
	return &Store{client: client, prefix: prefix, ttl: ttl}
}

// Close releases the Redis client.
func (s *Store) Close() error {
	if s == nil || s.client == nil {
		return nil
	}
	return s.client.Close()
}

// Save writes the record with the configured TTL.
func (s *Store) Save(ctx context.Context, session domain.Session) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if s == nil || s.client == nil {
		return fmt.Errorf("storage is not configured")
	}
	payload, err := storage.MarshalSession(session)
	if err != nil {
		return err
	}
	if err := s.client.Set(ctx, s.sessionKey(), payload, s.ttl).Err(); err != nil {
		return fmt.Errorf("save session: %w", err)
	}
	return nil
}

// Load fetches the record.
func (s *Store) Load(ctx context.Context) (domain.Session, error) {
	if err := ctx.Err(); err != nil {
		return domain.Session{}, err
	}
	if s == nil || s.client == nil {
		return domain.Session{}, fmt.Errorf("storage is not configured")
	}
	payload, err := s.client.Get(ctx, s.sessionKey()).Bytes()
	if errors.Is(err, goredis.Nil) {
		return domain.Session{}, storage.ErrNotFound
	}
	if err != nil {
		return domain.Session{}, fmt.Errorf("load session: %w", err)
	}
	return storage.UnmarshalSession(payload)
}

// Clear deletes the record.
func (s *Store) Clear(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if s == nil || s.client == nil {
		return fmt.Errorf("storage is not configured")
	}
	if err := s.client.Del(ctx, s.sessionKey()).Err(); err != nil {
		return fmt.Errorf("clear session: %w", err)
	}
	return nil
}

// PutHeartbeat writes the heartbeat with the configured TTL.
func (s *Store) PutHeartbeat(ctx context.Context, heartbeat storage.Heartbeat) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if s == nil || s.client == nil {
		return fmt.Errorf("storage is not configured")
	}
	payload, err := storage.MarshalHeartbeat(heartbeat)
	if err != nil {
		return err
	}
	if err := s.client.Set(ctx, s.heartbeatKey(), payload, s.ttl).Err(); err != nil {
		return fmt.Errorf("put heartbeat: %w", err)
	}
	return nil
}

// GetHeartbeat fetches the heartbeat.
func (s *Store) GetHeartbeat(ctx context.Context) (storage.Heartbeat, error) {
	if err := ctx.Err(); err != nil {
		return storage.Heartbeat{}, err
	}
	if s == nil || s.client == nil {
		return storage.Heartbeat{}, fmt.Errorf("storage is not configured")
	}
	payload, err := s.client.Get(ctx, s.heartbeatKey()).Bytes()
	if errors.Is(err, goredis.Nil) {
		return storage.Heartbeat{}, storage.ErrNotFound
	}
	if err != nil {
		return storage.Heartbeat{}, fmt.Errorf("get heartbeat: %w", err)
	}
	return storage.UnmarshalHeartbeat(payload)
}

func (s *Store) sessionKey() string {
	return s.prefix + ":session"
}

func (s *Store) heartbeatKey() string {
	return s.prefix + ":heartbeat"
}

var _ storage.Store = (*Store)(nil)
