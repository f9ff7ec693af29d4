// Package ws implements the channel client over a websocket connection to a
// signalling server.
//
// Every request carries a request_id and is answered by exactly one ack,
// error, or occupancy frame with the same id. The server may also push
// channel_closed frames at any time.
package ws

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/DuckBuck-Studios/DuckBuck-AI-Walkie-Talkie-sub006/internal/platform/timeouts"
	"github.com/DuckBuck-Studios/DuckBuck-AI-Walkie-Talkie-sub006/internal/services/callsession/channel"
	"github.com/cenkalti/backoff/v5"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
)

const (
	defaultRequestTimeout = 5 * time.Second
	defaultMaxDialTries   = 5
	defaultInitialBackoff = 250 * time.Millisecond
	defaultMaxBackoff     = 5 * time.Second
	writeWait             = 2 * time.Second
)

// ErrConnectionLost indicates the connection dropped before a response.
var ErrConnectionLost = errors.New("signalling connection lost")

// Frame types on the wire.
const (
	TypeJoin          = "join"
	TypeLeave         = "leave"
	TypeOccupancy     = "occupancy"
	TypeMute          = "mute"
	TypeAck           = "ack"
	TypeError         = "error"
	TypeChannelClosed = "channel_closed"
)

// Request is a client to server frame.
type Request struct {
	Type      string `json:"type"`
	RequestID string `json:"request_id"`
	Channel   string `json:"channel"`
	Muted     *bool  `json:"muted,omitempty"`
}

// Response is a server to client frame.
type Response struct {
	Type      string `json:"type"`
	RequestID string `json:"request_id,omitempty"`
	Channel   string `json:"channel,omitempty"`
	Count     int    `json:"count,omitempty"`
	Error     string `json:"error,omitempty"`
}

// Config configures the websocket channel client.
type Config struct {
	URL            string
	Header         http.Header
	DialTimeout    time.Duration
	RequestTimeout time.Duration
	MaxDialTries   uint
	InitialBackoff time.Duration
	MaxBackoff     time.Duration
	Logf           func(string, ...any)
}

type connection struct {
	conn *websocket.Conn
	done chan struct{}
}

// Client is a channel.Client backed by one websocket connection that is
// dialed on first use and redialed after it drops.
type Client struct {
	cfg    Config
	dialer *websocket.Dialer

	dialMu  sync.Mutex
	writeMu sync.Mutex

	mu       sync.Mutex
	current  *connection
	pending  map[string]chan Response
	teardown channel.TeardownHandler
	closed   bool
}

// New creates a client. No connection is made until the first request.
func New(cfg Config) (*Client, error) {
	if strings.TrimSpace(cfg.URL) == "" {
		return nil, fmt.Errorf("channel url is required")
	}
	if cfg.DialTimeout <= 0 {
		cfg.DialTimeout = timeouts.ChannelDial
	}
	if cfg.RequestTimeout <= 0 {
		cfg.RequestTimeout = defaultRequestTimeout
	}
	if cfg.MaxDialTries == 0 {
		cfg.MaxDialTries = defaultMaxDialTries
	}
	if cfg.InitialBackoff <= 0 {
		cfg.InitialBackoff = defaultInitialBackoff
	}
	if cfg.MaxBackoff <= 0 {
		cfg.MaxBackoff = defaultMaxBackoff
	}
	if cfg.Logf == nil {
		cfg.Logf = log.Printf
	}
	dialer := *websocket.DefaultDialer
	dialer.HandshakeTimeout = cfg.DialTimeout
	return &Client{
		cfg:     cfg,
		dialer:  &dialer,
		pending: make(map[string]chan Response),
	}, nil
}

// Join joins channelName.
func (c *Client) Join(ctx context.Context, channelName string) error {
	_, err := c.request(ctx, Request{Type: TypeJoin, Channel: channelName})
	return err
}

// Leave leaves channelName.
func (c *Client) Leave(ctx context.Context, channelName string) error {
	_, err := c.request(ctx, Request{Type: TypeLeave, Channel: channelName})
	return err
}

// Occupancy returns the remote participant count for channelName.
func (c *Client) Occupancy(ctx context.Context, channelName string) (int, error) {
	resp, err := c.request(ctx, Request{Type: TypeOccupancy, Channel: channelName})
	if err != nil {
		return 0, err
	}
	if resp.Type != TypeOccupancy {
		return 0, fmt.Errorf("occupancy: unexpected response type %q", resp.Type)
	}
	return resp.Count, nil
}

// SetMuted mutes or unmutes the local microphone in channelName.
func (c *Client) SetMuted(ctx context.Context, channelName string, muted bool) error {
	_, err := c.request(ctx, Request{Type: TypeMute, Channel: channelName, Muted: &muted})
	return err
}

// OnTeardown registers the handler for channel_closed pushes.
func (c *Client) OnTeardown(handler channel.TeardownHandler) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.teardown = handler
}

// Close closes the connection. Later requests fail with channel.ErrClosed.
func (c *Client) Close() error {
	c.mu.Lock()
	c.closed = true
	current := c.current
	c.current = nil
	c.mu.Unlock()
	if current == nil {
		return nil
	}
	c.writeMu.Lock()
	_ = current.conn.WriteControl(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""), time.Now().Add(writeWait))
	c.writeMu.Unlock()
	err := current.conn.Close()
	<-current.done
	if errors.Is(err, net.ErrClosed) {
		return nil
	}
	return err
}

func (c *Client) request(ctx context.Context, req Request) (Response, error) {
	if strings.TrimSpace(req.Channel) == "" {
		return Response{}, fmt.Errorf("%s: channel name is required", req.Type)
	}
	if _, hasDeadline := ctx.Deadline(); !hasDeadline {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.cfg.RequestTimeout)
		defer cancel()
	}

	current, err := c.connect(ctx)
	if err != nil {
		return Response{}, fmt.Errorf("%s: %w", req.Type, err)
	}

	req.RequestID = uuid.NewString()
	replies := make(chan Response, 1)
	c.mu.Lock()
	c.pending[req.RequestID] = replies
	c.mu.Unlock()
	defer func() {
		c.mu.Lock()
		delete(c.pending, req.RequestID)
		c.mu.Unlock()
	}()

	c.writeMu.Lock()
	_ = current.conn.SetWriteDeadline(time.Now().Add(writeWait))
	err = current.conn.WriteJSON(req)
	c.writeMu.Unlock()
	if err != nil {
		c.drop(current)
		return Response{}, fmt.Errorf("%s: write: %w", req.Type, err)
	}

	select {
	case resp := <-replies:
		if resp.Type == TypeError {
			return resp, fmt.Errorf("%s %s: %s", req.Type, req.Channel, strings.TrimSpace(resp.Error))
		}
		return resp, nil
	case <-current.done:
		return Response{}, fmt.Errorf("%s: %w", req.Type, ErrConnectionLost)
	case <-ctx.Done():
		return Response{}, fmt.Errorf("%s: %w", req.Type, ctx.Err())
	}
}

// connect returns the live connection, dialing with backoff when needed.
func (c *Client) connect(ctx context.Context) (*connection, error) {
	c.dialMu.Lock()
	defer c.dialMu.Unlock()

	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return nil, channel.ErrClosed
	}
	if c.current != nil {
		current := c.current
		c.mu.Unlock()
		return current, nil
	}
	c.mu.Unlock()

	policy := backoff.NewExponentialBackOff()
	policy.InitialInterval = c.cfg.InitialBackoff
	policy.MaxInterval = c.cfg.MaxBackoff

	attempt := 0
	conn, err := backoff.Retry(ctx, func() (*websocket.Conn, error) {
		attempt++
		conn, resp, err := c.dialer.DialContext(ctx, c.cfg.URL, c.cfg.Header)
		if err == nil {
			return conn, nil
		}
		if resp != nil {
			err = fmt.Errorf("dial status %d: %w", resp.StatusCode, err)
			if resp.StatusCode >= 400 && resp.StatusCode < 500 {
				return nil, backoff.Permanent(err)
			}
		}
		c.cfg.Logf("callsession: signalling dial attempt %d failed: %v", attempt, err)
		return nil, err
	}, backoff.WithBackOff(policy), backoff.WithMaxTries(c.cfg.MaxDialTries))
	if err != nil {
		return nil, fmt.Errorf("dial signalling server: %w", err)
	}

	current := &connection{conn: conn, done: make(chan struct{})}
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		_ = conn.Close()
		return nil, channel.ErrClosed
	}
	c.current = current
	c.mu.Unlock()
	go c.readLoop(current)
	return current, nil
}

func (c *Client) readLoop(current *connection) {
	defer close(current.done)
	defer c.drop(current)

	for {
		var resp Response
		if err := current.conn.ReadJSON(&resp); err != nil {
			if !websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) && !isClosedConnError(err) {
				c.cfg.Logf("callsession: signalling read: %v", err)
			}
			return
		}
		if resp.Type == TypeChannelClosed {
			c.mu.Lock()
			handler := c.teardown
			c.mu.Unlock()
			if handler != nil && resp.Channel != "" {
				// The handler usually sends a leave, which needs this loop to
				// keep reading.
				go handler(resp.Channel)
			}
			continue
		}
		c.mu.Lock()
		replies, ok := c.pending[resp.RequestID]
		c.mu.Unlock()
		if !ok {
			continue
		}
		select {
		case replies <- resp:
		default:
		}
	}
}

// drop forgets current so the next request redials.
func (c *Client) drop(current *connection) {
	c.mu.Lock()
	if c.current == current {
		c.current = nil
	}
	c.mu.Unlock()
	_ = current.conn.Close()
}

func isClosedConnError(err error) bool {
	return errors.Is(err, net.ErrClosed)
}

var (
	_ channel.Client           = (*Client)(nil)
	_ channel.Muter            = (*Client)(nil)
	_ channel.TeardownNotifier = (*Client)(nil)
)
