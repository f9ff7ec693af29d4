package storage

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/DuckBuck-Studios/DuckBuck-AI-Walkie-Talkie-sub006/internal/services/callsession/domain"
)

// recordJSON is the persisted session schema for key-value backends.
type recordJSON struct {
	SessionID           string `json:"sessionId"`
	ChannelName         string `json:"channelName"`
	CallerID            string `json:"callerId"`
	CallerName          string `json:"callerName"`
	State               string `json:"state"`
	TriggerTimestamp    int64  `json:"triggerTimestamp"`
	JoinedAt            *int64 `json:"joinedAt,omitempty"`
	OccupancyResolvedAt *int64 `json:"occupancyResolvedAt,omitempty"`
	OwnerID             string `json:"ownerId"`
	Muted               bool   `json:"muted"`
	UpdatedAt           int64  `json:"updatedAt"`
}

type heartbeatJSON struct {
	OwnerID string `json:"ownerId"`
	BeatAt  int64  `json:"beatAt"`
}

// ValidateSession checks the fields every backend requires before a write.
func ValidateSession(session domain.Session) error {
	if strings.TrimSpace(session.ID) == "" {
		return fmt.Errorf("session id is required")
	}
	if strings.TrimSpace(session.ChannelName) == "" {
		return fmt.Errorf("channel name is required")
	}
	if _, err := domain.ParseState(string(session.State)); err != nil {
		return err
	}
	return nil
}

// MarshalSession encodes a session into the persisted record schema.
func MarshalSession(session domain.Session) ([]byte, error) {
	if err := ValidateSession(session); err != nil {
		return nil, err
	}
	record := recordJSON{
		SessionID:           session.ID,
		ChannelName:         session.ChannelName,
		CallerID:            session.CallerID,
		CallerName:          session.CallerName,
		State:               string(session.State),
		TriggerTimestamp:    session.TriggerTimestamp.Unix(),
		JoinedAt:            optionalMillis(session.JoinedAt),
		OccupancyResolvedAt: optionalMillis(session.OccupancyResolvedAt),
		OwnerID:             session.OwnerID,
		Muted:               session.Muted,
		UpdatedAt:           ToMillis(session.UpdatedAt),
	}
	payload, err := json.Marshal(record)
	if err != nil {
		return nil, fmt.Errorf("marshal session record: %w", err)
	}
	return payload, nil
}

// UnmarshalSession decodes a persisted record.
func UnmarshalSession(payload []byte) (domain.Session, error) {
	var record recordJSON
	if err := json.Unmarshal(payload, &record); err != nil {
		return domain.Session{}, fmt.Errorf("unmarshal session record: %w", err)
	}
	state, err := domain.ParseState(record.State)
	if err != nil {
		return domain.Session{}, err
	}
	return domain.Session{
		ID:                  record.SessionID,
		ChannelName:         record.ChannelName,
		CallerID:            record.CallerID,
		CallerName:          record.CallerName,
		State:               state,
		TriggerTimestamp:    time.Unix(record.TriggerTimestamp, 0).UTC(),
		JoinedAt:            optionalTime(record.JoinedAt),
		OccupancyResolvedAt: optionalTime(record.OccupancyResolvedAt),
		OwnerID:             record.OwnerID,
		Muted:               record.Muted,
		UpdatedAt:           FromMillis(record.UpdatedAt),
	}, nil
}

// MarshalHeartbeat encodes a heartbeat.
func MarshalHeartbeat(heartbeat Heartbeat) ([]byte, error) {
	if strings.TrimSpace(heartbeat.OwnerID) == "" {
		return nil, fmt.Errorf("heartbeat owner id is required")
	}
	return json.Marshal(heartbeatJSON{OwnerID: heartbeat.OwnerID, BeatAt: ToMillis(heartbeat.BeatAt)})
}

// UnmarshalHeartbeat decodes a heartbeat.
func UnmarshalHeartbeat(payload []byte) (Heartbeat, error) {
	var record heartbeatJSON
	if err := json.Unmarshal(payload, &record); err != nil {
		return Heartbeat{}, fmt.Errorf("unmarshal heartbeat: %w", err)
	}
	return Heartbeat{OwnerID: record.OwnerID, BeatAt: FromMillis(record.BeatAt)}, nil
}

// ToMillis converts a time to UTC unix milliseconds.
func ToMillis(value time.Time) int64 {
	return value.UTC().UnixMilli()
}

// FromMillis converts UTC unix milliseconds to a time.
func FromMillis(value int64) time.Time {
	return time.UnixMilli(value).UTC()
}

func optionalMillis(value *time.Time) *int64 {
	if value == nil {
		return nil
	}
	millis := ToMillis(*value)
	return &millis
}

func optionalTime(value *int64) *time.Time {
	if value == nil {
		return nil
	}
	t := FromMillis(*value)
	return &t
}
