package domain

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"
)

// WalkieTalkieMessageType is the only trigger message type handled here.
const WalkieTalkieMessageType = "walkie_talkie"

// Trigger is a validated inbound "someone started speaking" event.
type Trigger struct {
	ChannelName string
	CallerID    string
	CallerName  string
	Timestamp   time.Time
}

// TriggerMessage is the inbound wire shape delivered by push transport.
//
// Timestamp accepts either a JSON number or a numeric string, since push data
// payloads carry every value as a string.
type TriggerMessage struct {
	ChannelName string        `json:"channelName"`
	CallerID    string        `json:"callerId"`
	CallerName  string        `json:"callerName"`
	MessageType string        `json:"messageType"`
	Timestamp   UnixTimestamp `json:"timestamp"`
}

// UnixTimestamp is a unix-seconds value that tracks whether it was present.
type UnixTimestamp struct {
	Seconds int64
	Set     bool
}

// UnmarshalJSON decodes a number or numeric string.
func (u *UnixTimestamp) UnmarshalJSON(data []byte) error {
	raw := strings.TrimSpace(string(data))
	if raw == "null" || raw == "" {
		*u = UnixTimestamp{}
		return nil
	}
	if unquoted, err := strconv.Unquote(raw); err == nil {
		raw = strings.TrimSpace(unquoted)
		if raw == "" {
			*u = UnixTimestamp{}
			return nil
		}
	}
	seconds, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return fmt.Errorf("timestamp must be unix seconds: %w", err)
	}
	*u = UnixTimestamp{Seconds: seconds, Set: true}
	return nil
}

// MarshalJSON encodes the value as a JSON number.
func (u UnixTimestamp) MarshalJSON() ([]byte, error) {
	if !u.Set {
		return []byte("null"), nil
	}
	return []byte(strconv.FormatInt(u.Seconds, 10)), nil
}

// DecodeTriggerMessage parses and validates a raw trigger payload.
func DecodeTriggerMessage(payload []byte) (Trigger, error) {
	var msg TriggerMessage
	if err := json.Unmarshal(payload, &msg); err != nil {
		return Trigger{}, fmt.Errorf("%w: decode: %v", ErrValidation, err)
	}
	return msg.Validate()
}

// Validate checks required fields and the message type.
func (m TriggerMessage) Validate() (Trigger, error) {
	channelName := strings.TrimSpace(m.ChannelName)
	if channelName == "" {
		return Trigger{}, fmt.Errorf("%w: channelName is required", ErrValidation)
	}
	callerID := strings.TrimSpace(m.CallerID)
	if callerID == "" {
		return Trigger{}, fmt.Errorf("%w: callerId is required", ErrValidation)
	}
	callerName := strings.TrimSpace(m.CallerName)
	if callerName == "" {
		return Trigger{}, fmt.Errorf("%w: callerName is required", ErrValidation)
	}
	messageType := strings.TrimSpace(m.MessageType)
	if messageType == "" {
		return Trigger{}, fmt.Errorf("%w: messageType is required", ErrValidation)
	}
	if messageType != WalkieTalkieMessageType {
		return Trigger{}, fmt.Errorf("%w: unsupported messageType %q", ErrValidation, messageType)
	}
	if !m.Timestamp.Set {
		return Trigger{}, fmt.Errorf("%w: timestamp is required", ErrValidation)
	}
	return Trigger{
		ChannelName: channelName,
		CallerID:    callerID,
		CallerName:  callerName,
		Timestamp:   time.Unix(m.Timestamp.Seconds, 0).UTC(),
	}, nil
}
