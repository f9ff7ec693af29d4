// Package callsessionfakes provides in-memory fakes for call session tests.
//
// Every fake can share one EventLog so tests can assert the relative order of
// store writes, channel calls, and presentation signals.
package callsessionfakes

import (
	"context"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/DuckBuck-Studios/DuckBuck-AI-Walkie-Talkie-sub006/internal/services/callsession/channel"
	"github.com/DuckBuck-Studios/DuckBuck-AI-Walkie-Talkie-sub006/internal/services/callsession/domain"
	"github.com/DuckBuck-Studios/DuckBuck-AI-Walkie-Talkie-sub006/internal/services/callsession/storage"
)

// EventLog is an ordered, concurrency-safe list of event names.
type EventLog struct {
	mu     sync.Mutex
	events []string
}

// Add appends an event.
func (l *EventLog) Add(event string) {
	if l == nil {
		return
	}
	l.mu.Lock()
	l.events = append(l.events, event)
	l.mu.Unlock()
}

// Events returns a copy of the recorded events.
func (l *EventLog) Events() []string {
	if l == nil {
		return nil
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	return slices.Clone(l.events)
}

// Index returns the position of the first event with the prefix, or -1.
func (l *EventLog) Index(prefix string) int {
	for i, event := range l.Events() {
		if strings.HasPrefix(event, prefix) {
			return i
		}
	}
	return -1
}

// Count returns how many events start with prefix.
func (l *EventLog) Count(prefix string) int {
	count := 0
	for _, event := range l.Events() {
		if strings.HasPrefix(event, prefix) {
			count++
		}
	}
	return count
}

// WaitFor polls until an event with prefix appears or timeout elapses.
func (l *EventLog) WaitFor(prefix string, timeout time.Duration) bool {
	deadline := time.Now().Add(timeout)
	for {
		if l.Index(prefix) >= 0 {
			return true
		}
		if time.Now().After(deadline) {
			return false
		}
		time.Sleep(2 * time.Millisecond)
	}
}

// Store is an in-memory storage.Store.
type Store struct {
	Log *EventLog

	mu        sync.Mutex
	session   *domain.Session
	heartbeat *storage.Heartbeat
	SaveErr   error
	LoadErr   error
	ClearErr  error
	Saves     []domain.Session
}

// NewStore constructs an empty Store fake.
func NewStore(log *EventLog) *Store {
	return &Store{Log: log}
}

func (s *Store) Save(ctx context.Context, session domain.Session) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.Log.Add("store.save:" + session.State.String())
	if s.SaveErr != nil {
		return s.SaveErr
	}
	if err := storage.ValidateSession(session); err != nil {
		return err
	}
	stored := session
	s.session = &stored
	s.Saves = append(s.Saves, session)
	return nil
}

func (s *Store) Load(ctx context.Context) (domain.Session, error) {
	if err := ctx.Err(); err != nil {
		return domain.Session{}, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.LoadErr != nil {
		return domain.Session{}, s.LoadErr
	}
	if s.session == nil {
		return domain.Session{}, storage.ErrNotFound
	}
	return *s.session, nil
}

func (s *Store) Clear(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.Log.Add("store.clear")
	if s.ClearErr != nil {
		return s.ClearErr
	}
	s.session = nil
	return nil
}

func (s *Store) PutHeartbeat(ctx context.Context, heartbeat storage.Heartbeat) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	beat := heartbeat
	s.heartbeat = &beat
	return nil
}

func (s *Store) GetHeartbeat(ctx context.Context) (storage.Heartbeat, error) {
	if err := ctx.Err(); err != nil {
		return storage.Heartbeat{}, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.heartbeat == nil {
		return storage.Heartbeat{}, storage.ErrNotFound
	}
	return *s.heartbeat, nil
}

func (s *Store) Close() error { return nil }

// Put seeds the stored record directly.
func (s *Store) Put(session domain.Session) {
	s.mu.Lock()
	defer s.mu.Unlock()
	stored := session
	s.session = &stored
}

// Current returns the stored record, if any.
func (s *Store) Current() (domain.Session, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.session == nil {
		return domain.Session{}, false
	}
	return *s.session, true
}

// Channel is a scripted channel.Client.
type Channel struct {
	Log *EventLog

	mu           sync.Mutex
	JoinErr      error
	LeaveErr     error
	MuteErr      error
	Count        int
	OccupancyErr error
	Muted        map[string]bool
	// JoinGate, when set, holds every Join until it is closed.
	JoinGate        chan struct{}
	occupancyBudget time.Duration
	teardown        channel.TeardownHandler
}

// NewChannel constructs a Channel fake reporting count remote participants.
func NewChannel(log *EventLog, count int) *Channel {
	return &Channel{Log: log, Count: count, Muted: make(map[string]bool)}
}

func (c *Channel) Join(ctx context.Context, channelName string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	c.Log.Add("channel.join:" + channelName)
	c.mu.Lock()
	gate := c.JoinGate
	err := c.JoinErr
	c.mu.Unlock()
	if gate != nil {
		select {
		case <-gate:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	return err
}

func (c *Channel) Leave(ctx context.Context, channelName string) error {
	c.Log.Add("channel.leave:" + channelName)
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.LeaveErr
}

func (c *Channel) Occupancy(ctx context.Context, channelName string) (int, error) {
	c.Log.Add("channel.occupancy:" + channelName)
	c.mu.Lock()
	defer c.mu.Unlock()
	if deadline, ok := ctx.Deadline(); ok {
		c.occupancyBudget = time.Until(deadline)
	}
	if c.OccupancyErr != nil {
		return 0, c.OccupancyErr
	}
	return c.Count, nil
}

func (c *Channel) SetMuted(_ context.Context, channelName string, muted bool) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.MuteErr != nil {
		return c.MuteErr
	}
	c.Muted[channelName] = muted
	return nil
}

func (c *Channel) OnTeardown(handler channel.TeardownHandler) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.teardown = handler
}

// OccupancyBudget returns the time left on the last occupancy query's
// context when it arrived.
func (c *Channel) OccupancyBudget() time.Duration {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.occupancyBudget
}

// CloseRemote simulates the remote side tearing the channel down.
func (c *Channel) CloseRemote(channelName string) {
	c.mu.Lock()
	handler := c.teardown
	c.mu.Unlock()
	if handler != nil {
		handler(channelName)
	}
}

// Presenter records UI bridge signals.
type Presenter struct {
	Log *EventLog

	mu            sync.Mutex
	Shown         []domain.CallUI
	RefuseRestore bool
}

// RestoreCallUI shows the session's call UI unless RefuseRestore is set.
func (p *Presenter) RestoreCallUI(session domain.Session) bool {
	p.mu.Lock()
	refuse := p.RefuseRestore
	p.mu.Unlock()
	if refuse {
		return false
	}
	p.ShowCallUI(session.CallUI())
	return true
}

func (p *Presenter) ShowCallUI(ui domain.CallUI) {
	p.mu.Lock()
	p.Shown = append(p.Shown, ui)
	p.mu.Unlock()
	p.Log.Add("ui.show:" + ui.ChannelName)
}

func (p *Presenter) HideCallUI(channelName string) {
	p.Log.Add("ui.hide:" + channelName)
}

// ShownCalls returns a copy of the shown call payloads.
func (p *Presenter) ShownCalls() []domain.CallUI {
	p.mu.Lock()
	defer p.mu.Unlock()
	return slices.Clone(p.Shown)
}

// Notifier records notification calls.
type Notifier struct {
	Log *EventLog

	mu            sync.Mutex
	Notifications []domain.Notification
	Err           error
}

func (n *Notifier) ShowNotification(_ context.Context, notification domain.Notification) error {
	n.mu.Lock()
	n.Notifications = append(n.Notifications, notification)
	err := n.Err
	n.mu.Unlock()
	n.Log.Add("notify.show:" + notification.ChannelName)
	return err
}

func (n *Notifier) DismissNotification(_ context.Context, channelName string) error {
	n.Log.Add("notify.dismiss:" + channelName)
	return nil
}

// OutputDevice records volume changes.
type OutputDevice struct {
	Log *EventLog
	Err error
}

func (d *OutputDevice) SetMaxVolume(context.Context) error {
	d.Log.Add("volume.max")
	return d.Err
}
