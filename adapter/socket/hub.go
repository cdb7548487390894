// Package socket implements the WebSocket surfaces of a relay.
//
// Hub is a transcript publisher that fans updates out to live viewers.
// Receiver is a relay source that accepts chunk frames from producers.
package socket

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/pithecene-io/runnel/adapter"
	"github.com/pithecene-io/runnel/log"
)

// SessionParam is the query parameter a viewer uses to subscribe to a
// single session.
const SessionParam = "session"

// DefaultSendBuffer is the default per-viewer queue length.
const DefaultSendBuffer = 16

// DefaultWriteTimeout is the default per-message write deadline.
const DefaultWriteTimeout = 5 * time.Second

// ErrHubClosed is returned by Publish after Close.
var ErrHubClosed = errors.New("socket hub closed")

// HubConfig configures a Hub.
type HubConfig struct {
	// SendBuffer is the number of updates queued per viewer (default 16).
	// A viewer whose queue is full is disconnected.
	SendBuffer int
	// WriteTimeout bounds each write to a viewer (default 5s).
	WriteTimeout time.Duration
	// CheckOrigin overrides the upgrader origin check. Nil accepts any origin.
	CheckOrigin func(r *http.Request) bool
	// Logger is an optional logger. If nil, no logging is emitted.
	Logger *log.Logger
}

// Hub broadcasts transcript updates to connected WebSocket viewers.
//
// Each viewer receives every update as a JSON text message, optionally
// filtered to one session. A viewer that connects mid-relay first receives
// the latest update so it starts from the current transcript.
type Hub struct {
	config   HubConfig
	upgrader websocket.Upgrader

	mu      sync.Mutex
	viewers map[*viewer]struct{}
	latest  *adapter.TranscriptUpdate
	closed  bool
	wg      sync.WaitGroup
}

type viewer struct {
	conn    *websocket.Conn
	session string
	send    chan []byte
}

// NewHub creates a hub with no viewers.
func NewHub(cfg HubConfig) *Hub {
	if cfg.SendBuffer <= 0 {
		cfg.SendBuffer = DefaultSendBuffer
	}
	if cfg.WriteTimeout <= 0 {
		cfg.WriteTimeout = DefaultWriteTimeout
	}
	checkOrigin := cfg.CheckOrigin
	if checkOrigin == nil {
		checkOrigin = func(*http.Request) bool { return true }
	}
	return &Hub{
		config:   cfg,
		upgrader: websocket.Upgrader{CheckOrigin: checkOrigin},
		viewers:  make(map[*viewer]struct{}),
	}
}

// ServeHTTP upgrades the request and registers the connection as a viewer.
// The optional ?session= query parameter filters updates to that session.
func (h *Hub) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	h.mu.Lock()
	closed := h.closed
	h.mu.Unlock()
	if closed {
		http.Error(w, ErrHubClosed.Error(), http.StatusServiceUnavailable)
		return
	}

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		// Upgrade has already written an HTTP error response.
		h.logWarn("viewer upgrade failed", map[string]any{"error": err.Error()})
		return
	}

	v := &viewer{
		conn:    conn,
		session: r.URL.Query().Get(SessionParam),
		send:    make(chan []byte, h.config.SendBuffer),
	}

	h.mu.Lock()
	if h.closed {
		h.mu.Unlock()
		_ = conn.Close()
		return
	}
	h.viewers[v] = struct{}{}
	if h.latest != nil {
		if payload, err := encodeFor(h.latest, v.session); err == nil {
			v.send <- payload
		}
	}
	h.wg.Add(1)
	h.mu.Unlock()

	h.logDebug("viewer connected", map[string]any{
		"remote":  r.RemoteAddr,
		"session": v.session,
	})

	go h.writeLoop(v)
	h.readLoop(v)
}

// Publish queues the update for every viewer. Viewers that cannot keep up
// are disconnected; Publish itself never blocks on the network.
func (h *Hub) Publish(_ context.Context, update *adapter.TranscriptUpdate) error {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.closed {
		return ErrHubClosed
	}
	h.latest = update

	// Encode once per distinct filter.
	payloads := make(map[string][]byte)
	for v := range h.viewers {
		payload, ok := payloads[v.session]
		if !ok {
			var err error
			payload, err = encodeFor(update, v.session)
			if err != nil {
				return fmt.Errorf("socket: marshal update: %w", err)
			}
			payloads[v.session] = payload
		}

		select {
		case v.send <- payload:
		default:
			h.logWarn("dropping slow viewer", map[string]any{
				"session": v.session,
				"update":  update.Sequence,
			})
			h.removeLocked(v)
		}
	}
	return nil
}

// Viewers returns the number of connected viewers.
func (h *Hub) Viewers() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.viewers)
}

// Close disconnects every viewer and rejects further publishes.
// Queued updates are written before each connection is closed.
func (h *Hub) Close() error {
	h.mu.Lock()
	if h.closed {
		h.mu.Unlock()
		return nil
	}
	h.closed = true
	for v := range h.viewers {
		h.removeLocked(v)
	}
	h.mu.Unlock()

	h.wg.Wait()
	return nil
}

// readLoop consumes client messages until the connection fails.
// Viewers are not expected to send anything.
func (h *Hub) readLoop(v *viewer) {
	for {
		if _, _, err := v.conn.ReadMessage(); err != nil {
			h.remove(v)
			return
		}
	}
}

// writeLoop drains the viewer queue onto the connection, then closes it.
func (h *Hub) writeLoop(v *viewer) {
	defer h.wg.Done()
	defer v.conn.Close()

	for payload := range v.send {
		_ = v.conn.SetWriteDeadline(time.Now().Add(h.config.WriteTimeout))
		if err := v.conn.WriteMessage(websocket.TextMessage, payload); err != nil {
			h.remove(v)
			// Drain so remove's close does not strand the queue.
			for range v.send {
			}
			return
		}
	}

	_ = v.conn.SetWriteDeadline(time.Now().Add(h.config.WriteTimeout))
	_ = v.conn.WriteMessage(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, "relay finished"))
}

func (h *Hub) remove(v *viewer) {
	h.mu.Lock()
	h.removeLocked(v)
	h.mu.Unlock()
}

// removeLocked unregisters v and closes its queue. Caller must hold mu.
func (h *Hub) removeLocked(v *viewer) {
	if _, ok := h.viewers[v]; !ok {
		return
	}
	delete(h.viewers, v)
	close(v.send)
}

// encodeFor marshals the update, filtered to session when set.
func encodeFor(update *adapter.TranscriptUpdate, session string) ([]byte, error) {
	if session != "" {
		update = update.ForSession(session)
	}
	return json.Marshal(update)
}

func (h *Hub) logDebug(msg string, fields map[string]any) {
	if h.config.Logger == nil {
		return
	}
	h.config.Logger.Debug(msg, fields)
}

func (h *Hub) logWarn(msg string, fields map[string]any) {
	if h.config.Logger == nil {
		return
	}
	h.config.Logger.Warn(msg, fields)
}

// Verify Hub implements the adapter interface.
var _ adapter.Publisher = (*Hub)(nil)
