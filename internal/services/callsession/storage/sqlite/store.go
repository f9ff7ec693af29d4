// Package sqlite provides a SQLite backend for the call session record.
package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	sqlitemigrate "github.com/DuckBuck-Studios/DuckBuck-AI-Walkie-Talkie-sub006/internal/platform/storage/sqlitemigrate"
	"github.com/DuckBuck-Studios/DuckBuck-AI-Walkie-Talkie-sub006/internal/services/callsession/domain"
	"github.com/DuckBuck-Studios/DuckBuck-AI-Walkie-Talkie-sub006/internal/services/callsession/storage"
	"github.com/DuckBuck-Studios/DuckBuck-AI-Walkie-Talkie-sub006/internal/services/callsession/storage/sqlite/migrations"
	_ "modernc.org/sqlite"
)

// Store provides SQLite-backed call session persistence.
type Store struct {
	sqlDB *sql.DB
}

// Open opens a call session SQLite store and applies migrations.
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
	dsn := cleanPath + "?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)&_pragma=synchronous(FULL)"
	sqlDB, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite db: %w", err)
	}
	if err := sqlDB.Ping(); err != nil {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("ping sqlite db: %w", err)
	}

	store := &Store{sqlDB: sqlDB}
	if _, err := sqlitemigrate.ApplyMigrations(context.Background(), sqlDB, migrations.FS, ""); err != nil {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}
	return store, nil
}

// Close releases the SQLite connection.
func (s *Store) Close() error {
	if s == nil || s.sqlDB == nil {
		return nil
	}
	return s.sqlDB.Close()
}

// Save upserts the single session row.
func (s *Store) Save(ctx context.Context, session domain.Session) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if s == nil || s.sqlDB == nil {
		return fmt.Errorf("storage is not configured")
	}
	if err := storage.ValidateSession(session); err != nil {
		return err
	}

	_, err := s.sqlDB.ExecContext(ctx, `
INSERT INTO call_session (
	slot,
	session_id,
	channel_name,
	caller_id,
	caller_name,
	state,
	trigger_timestamp,
	joined_at,
	occupancy_resolved_at,
	owner_id,
	muted,
	updated_at
) VALUES (1, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
ON CONFLICT(slot) DO UPDATE SET
	session_id = excluded.session_id,
	channel_name = excluded.channel_name,
	caller_id = excluded.caller_id,
	caller_name = excluded.caller_name,
	state = excluded.state,
	trigger_timestamp = excluded.trigger_timestamp,
	joined_at = excluded.joined_at,
	occupancy_resolved_at = excluded.occupancy_resolved_at,
	owner_id = excluded.owner_id,
	muted = excluded.muted,
	updated_at = excluded.updated_at
`,
		session.ID,
		session.ChannelName,
		session.CallerID,
		session.CallerName,
		string(session.State),
		session.TriggerTimestamp.Unix(),
		nullMillis(session.JoinedAt),
		nullMillis(session.OccupancyResolvedAt),
		session.OwnerID,
		boolToInt(session.Muted),
		storage.ToMillis(session.UpdatedAt),
	)
	if err != nil {
		return fmt.Errorf("save session: %w", err)
	}
	return nil
}

// Load fetches the single session row.
func (s *Store) Load(ctx context.Context) (domain.Session, error) {
	if err := ctx.Err(); err != nil {
		return domain.Session{}, err
	}
	if s == nil || s.sqlDB == nil {
		return domain.Session{}, fmt.Errorf("storage is not configured")
	}

	var (
		session          domain.Session
		state            string
		triggerTimestamp int64
		joinedAt         sql.NullInt64
		resolvedAt       sql.NullInt64
		muted            int
		updatedAt        int64
	)
	err := s.sqlDB.QueryRowContext(ctx, `
SELECT
	session_id,
	channel_name,
	caller_id,
	caller_name,
	state,
	trigger_timestamp,
	joined_at,
	occupancy_resolved_at,
	owner_id,
	muted,
	updated_at
FROM call_session
WHERE slot = 1
`).Scan(
		&session.ID,
		&session.ChannelName,
		&session.CallerID,
		&session.CallerName,
		&state,
		&triggerTimestamp,
		&joinedAt,
		&resolvedAt,
		&session.OwnerID,
		&muted,
		&updatedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return domain.Session{}, storage.ErrNotFound
	}
	if err != nil {
		return domain.Session{}, fmt.Errorf("load session: %w", err)
	}

	session.State, err = domain.ParseState(state)
	if err != nil {
		return domain.Session{}, err
	}
	session.TriggerTimestamp = time.Unix(triggerTimestamp, 0).UTC()
	session.JoinedAt = timeFromNull(joinedAt)
	session.OccupancyResolvedAt = timeFromNull(resolvedAt)
	session.Muted = muted != 0
	session.UpdatedAt = storage.FromMillis(updatedAt)
	return session, nil
}

// Clear deletes the session row.
func (s *Store) Clear(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if s == nil || s.sqlDB == nil {
		return fmt.Errorf("storage is not configured")
	}
	if _, err := s.sqlDB.ExecContext(ctx, `DELETE FROM call_session WHERE slot = 1`); err != nil {
		return fmt.Errorf("clear session: %w", err)
	}
	return nil
}

// PutHeartbeat upserts the orchestrator heartbeat row.
func (s *Store) PutHeartbeat(ctx context.Context, heartbeat storage.Heartbeat) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if s == nil || s.sqlDB == nil {
		return fmt.Errorf("storage is not configured")
	}
	ownerID := strings.TrimSpace(heartbeat.OwnerID)
	if ownerID == "" {
		return fmt.Errorf("heartbeat owner id is required")
	}
	_, err := s.sqlDB.ExecContext(ctx, `
INSERT INTO orchestrator_heartbeat (slot, owner_id, beat_at) VALUES (1, ?, ?)
ON CONFLICT(slot) DO UPDATE SET owner_id = excluded.owner_id, beat_at = excluded.beat_at
`, ownerID, storage.ToMillis(heartbeat.BeatAt))
	if err != nil {
		return fmt.Errorf("put heartbeat: %w", err)
	}
	return nil
}

// GetHeartbeat fetches the orchestrator heartbeat row.
func (s *Store) GetHeartbeat(ctx context.Context) (storage.Heartbeat, error) {
	if err := ctx.Err(); err != nil {
		return storage.Heartbeat{}, err
	}
	if s == nil || s.sqlDB == nil {
		return storage.Heartbeat{}, fmt.Errorf("storage is not configured")
	}
	var (
		heartbeat storage.Heartbeat
		beatAt    int64
	)
	err := s.sqlDB.QueryRowContext(ctx, `SELECT owner_id, beat_at FROM orchestrator_heartbeat WHERE slot = 1`).Scan(&heartbeat.OwnerID, &beatAt)
	if errors.Is(err, sql.ErrNoRows) {
		return storage.Heartbeat{}, storage.ErrNotFound
	}
	if err != nil {
		return storage.Heartbeat{}, fmt.Errorf("get heartbeat: %w", err)
	}
	heartbeat.BeatAt = storage.FromMillis(beatAt)
	return heartbeat, nil
}

func nullMillis(value *time.Time) sql.NullInt64 {
	if value == nil {
		return sql.NullInt64{}
	}
	return sql.NullInt64{Int64: storage.ToMillis(*value), Valid: true}
}

func timeFromNull(value sql.NullInt64) *time.Time {
	if !value.Valid {
		return nil
	}
	t := storage.FromMillis(value.Int64)
	return &t
}

func boolToInt(value bool) int {
	if value {
		return 1
	}
	return 0
}

var _ storage.Store = (*Store)(nil)
