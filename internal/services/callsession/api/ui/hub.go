// Package ui serves presentation surfaces over websocket.
//
// Each connected surface receives the in-call UI and notification signals as
// JSON frames. Connecting counts as the UI resuming: the surface is attached
// to the process state detector and a recovery pass runs.
package ui

import (
	"context"
	"log"
	"net/http"
	"sync"
	"time"

	"github.com/DuckBuck-Studios/DuckBuck-AI-Walkie-Talkie-sub006/internal/platform/timeouts"
	"github.com/DuckBuck-Studios/DuckBuck-AI-Walkie-Talkie-sub006/internal/services/callsession/domain"
	"github.com/DuckBuck-Studios/DuckBuck-AI-Walkie-Talkie-sub006/internal/services/callsession/recovery"
	"github.com/gorilla/websocket"
)

const writeWait = 2 * time.Second

// Frame types sent to surfaces.
const (
	FrameShowCallUI          = "show_call_ui"
	FrameHideCallUI          = "hide_call_ui"
	FrameNotification        = "notification"
	FrameDismissNotification = "dismiss_notification"
)

// Frame is one server to surface message.
type Frame struct {
	Type        string `json:"type"`
	ChannelName string `json:"channelName"`
	CallerName  string `json:"callerName,omitempty"`
	CallerID    string `json:"callerId,omitempty"`
	Muted       bool   `json:"muted,omitempty"`
	Title       string `json:"title,omitempty"`
	Body        string `json:"body,omitempty"`
}

// SurfaceTracker counts attached surfaces.
type SurfaceTracker interface {
	Attach()
	Detach()
}

// Recoverer reconciles the persisted session on resume.
type Recoverer interface {
	Recover(ctx context.Context) (recovery.Outcome, error)
}

// SurfaceRecorder receives surface gauge updates.
type SurfaceRecorder interface {
	SurfaceAttached()
	SurfaceDetached()
}

// Options configures a Hub.
type Options struct {
	Surfaces SurfaceTracker
	Recorder SurfaceRecorder
	Logf     func(string, ...any)
}

type surface struct {
	conn    *websocket.Conn
	writeMu sync.Mutex
}

func (s *surface) write(frame Frame) error {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()
	_ = s.conn.SetWriteDeadline(time.Now().Add(writeWait))
	return s.conn.WriteJSON(frame)
}

// Hub fans UI signals out to every connected surface.
type Hub struct {
	upgrader  websocket.Upgrader
	surfaces  SurfaceTracker
	recorder  SurfaceRecorder
	logf      func(string, ...any)
	recoverMu sync.RWMutex
	recoverer Recoverer

	mu           sync.Mutex
	clients      map[*surface]struct{}
	notification *Frame
	closed       bool
}

// NewHub builds a hub.
func NewHub(opts Options) *Hub {
	logf := opts.Logf
	if logf == nil {
		logf = log.Printf
	}
	return &Hub{
		upgrader: websocket.Upgrader{
			// Surfaces run on the same device and connect over loopback.
			CheckOrigin: func(*http.Request) bool { return true },
		},
		surfaces: opts.Surfaces,
		recorder: opts.Recorder,
		logf:     logf,
		clients:  make(map[*surface]struct{}),
	}
}

// SetRecoverer sets the recovery pass run for each new surface. The
// coordinator presents through this hub, so it is wired after construction.
func (h *Hub) SetRecoverer(recoverer Recoverer) {
	h.recoverMu.Lock()
	defer h.recoverMu.Unlock()
	h.recoverer = recoverer
}

// ServeHTTP upgrades the request and serves one surface until it disconnects.
func (h *Hub) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logf("callsession: ui upgrade: %v", err)
		return
	}
	client := &surface{conn: conn}
	retained, ok := h.add(client)
	if !ok {
		_ = conn.WriteControl(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseGoingAway, "shutting down"), time.Now().Add(writeWait))
		_ = conn.Close()
		return
	}
	defer h.remove(client)

	if retained != nil {
		if err := client.write(*retained); err != nil {
			h.logf("callsession: ui write retained notification: %v", err)
			return
		}
	}
	h.recover(r.Context())

	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			if !websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				h.logf("callsession: ui surface read: %v", err)
			}
			return
		}
	}
}

// ShowCallUI sends the in-call UI to every surface.
func (h *Hub) ShowCallUI(ui domain.CallUI) {
	h.broadcast(Frame{
		Type:        FrameShowCallUI,
		ChannelName: ui.ChannelName,
		CallerName:  ui.CallerName,
		CallerID:    ui.CallerID,
		Muted:       ui.Muted,
	})
}

// HideCallUI hides the in-call UI on every surface.
func (h *Hub) HideCallUI(channelName string) {
	h.broadcast(Frame{Type: FrameHideCallUI, ChannelName: channelName})
}

// ShowNotification broadcasts the notification and keeps it for surfaces
// that connect later.
func (h *Hub) ShowNotification(ctx context.Context, notification domain.Notification) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	frame := Frame{
		Type:        FrameNotification,
		ChannelName: notification.ChannelName,
		CallerName:  notification.CallerName,
		CallerID:    notification.CallerID,
		Title:       notification.Title,
		Body:        notification.Body,
	}
	h.mu.Lock()
	h.notification = &frame
	h.mu.Unlock()
	h.broadcast(frame)
	return nil
}

// DismissNotification drops the retained notification for channelName and
// tells every surface to dismiss it.
func (h *Hub) DismissNotification(ctx context.Context, channelName string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	h.mu.Lock()
	if h.notification != nil && h.notification.ChannelName == channelName {
		h.notification = nil
	}
	h.mu.Unlock()
	h.broadcast(Frame{Type: FrameDismissNotification, ChannelName: channelName})
	return nil
}

// Surfaces returns the number of connected surfaces.
func (h *Hub) Surfaces() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.clients)
}

// Close disconnects every surface and refuses new ones.
func (h *Hub) Close() {
	h.mu.Lock()
	h.closed = true
	clients := make([]*surface, 0, len(h.clients))
	for client := range h.clients {
		clients = append(clients, client)
	}
	h.mu.Unlock()

	for _, client := range clients {
		client.writeMu.Lock()
		_ = client.conn.WriteControl(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseGoingAway, "shutting down"), time.Now().Add(writeWait))
		client.writeMu.Unlock()
		_ = client.conn.Close()
	}
}

func (h *Hub) add(client *surface) (*Frame, bool) {
	h.mu.Lock()
	if h.closed {
		h.mu.Unlock()
		return nil, false
	}
	h.clients[client] = struct{}{}
	var retained *Frame
	if h.notification != nil {
		copied := *h.notification
		retained = &copied
	}
	h.mu.Unlock()

	if h.surfaces != nil {
		h.surfaces.Attach()
	}
	if h.recorder != nil {
		h.recorder.SurfaceAttached()
	}
	return retained, true
}

func (h *Hub) remove(client *surface) {
	h.mu.Lock()
	_, ok := h.clients[client]
	delete(h.clients, client)
	h.mu.Unlock()
	_ = client.conn.Close()
	if !ok {
		return
	}
	if h.surfaces != nil {
		h.surfaces.Detach()
	}
	if h.recorder != nil {
		h.recorder.SurfaceDetached()
	}
}

func (h *Hub) recover(ctx context.Context) {
	h.recoverMu.RLock()
	recoverer := h.recoverer
	h.recoverMu.RUnlock()
	if recoverer == nil {
		return
	}
	ctx, cancel := context.WithTimeout(ctx, timeouts.StoreIO)
	defer cancel()
	outcome, err := recoverer.Recover(ctx)
	if err != nil {
		h.logf("callsession: recovery on resume: %v", err)
		return
	}
	h.logf("callsession: recovery on resume: %s", outcome)
}

func (h *Hub) broadcast(frame Frame) {
	h.mu.Lock()
	clients := make([]*surface, 0, len(h.clients))
	for client := range h.clients {
		clients = append(clients, client)
	}
	h.mu.Unlock()

	for _, client := range clients {
		if err := client.write(frame); err != nil {
			h.logf("callsession: ui write %s: %v", frame.Type, err)
			_ = client.conn.Close()
		}
	}
}
