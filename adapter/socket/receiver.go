package socket

import (
	"io"
	"net/http"
	"sync"

	"github.com/gorilla/websocket"

	"github.com/pithecene-io/runnel/ipc"
	"github.com/pithecene-io/runnel/log"
	"github.com/pithecene-io/runnel/relay"
)

// DefaultReceiveBuffer is the default number of decoded frames held for the
// relay before producers are back-pressured.
const DefaultReceiveBuffer = 256

// ReceiverConfig configures a Receiver.
type ReceiverConfig struct {
	// Buffer is the decoded frame queue length (default 256).
	Buffer int
	// CloseOnDisconnect ends the stream when the first producer disconnects.
	CloseOnDisconnect bool
	// CheckOrigin overrides the upgrader origin check. Nil accepts any origin.
	CheckOrigin func(r *http.Request) bool
	// Logger is an optional logger. If nil, no logging is emitted.
	Logger *log.Logger
}

// Receiver accepts chunk and flush frames over WebSocket and yields them
// as a relay source.
//
// Text messages carry one JSON frame; binary messages carry one msgpack
// frame without a length prefix, since WebSocket already frames messages.
// Frames from concurrent producers are interleaved in arrival order.
type Receiver struct {
	config   ReceiverConfig
	upgrader websocket.Upgrader

	frames    chan received
	done      chan struct{}
	closeOnce sync.Once

	mu    sync.Mutex
	conns map[*websocket.Conn]struct{}
}

type received struct {
	frame any
	err   error
}

// NewReceiver creates a receiver with no producers.
func NewReceiver(cfg ReceiverConfig) *Receiver {
	if cfg.Buffer <= 0 {
		cfg.Buffer = DefaultReceiveBuffer
	}
	checkOrigin := cfg.CheckOrigin
	if checkOrigin == nil {
		checkOrigin = func(*http.Request) bool { return true }
	}
	return &Receiver{
		config:   cfg,
		upgrader: websocket.Upgrader{CheckOrigin: checkOrigin},
		frames:   make(chan received, cfg.Buffer),
		done:     make(chan struct{}),
		conns:    make(map[*websocket.Conn]struct{}),
	}
}

// ServeHTTP upgrades the request and reads frames until the producer
// disconnects or the receiver is closed.
func (r *Receiver) ServeHTTP(w http.ResponseWriter, req *http.Request) {
	select {
	case <-r.done:
		http.Error(w, "receiver closed", http.StatusServiceUnavailable)
		return
	default:
	}

	conn, err := r.upgrader.Upgrade(w, req, nil)
	if err != nil {
		r.logWarn("producer upgrade failed", map[string]any{"error": err.Error()})
		return
	}
	r.track(conn)
	defer r.untrack(conn)

	r.logDebug("producer connected", map[string]any{"remote": req.RemoteAddr})

	for {
		kind, data, err := conn.ReadMessage()
		if err != nil {
			if !websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				r.logWarn("producer read failed", map[string]any{
					"remote": req.RemoteAddr,
					"error":  err.Error(),
				})
			}
			break
		}

		var item received
		switch kind {
		case websocket.TextMessage:
			item.frame, item.err = ipc.DecodeJSONFrame(data)
		case websocket.BinaryMessage:
			item.frame, item.err = ipc.DecodeFrame(data)
		default:
			continue
		}

		select {
		case r.frames <- item:
		case <-r.done:
			return
		}
	}

	if r.config.CloseOnDisconnect {
		_ = r.Close()
	}
}

// Next returns the next decoded frame. Decode failures are returned as
// non-fatal *ipc.FrameError values. After Close, frames already queued are
// still returned, then io.EOF.
func (r *Receiver) Next() (any, error) {
	select {
	case item := <-r.frames:
		return item.frame, item.err
	case <-r.done:
	}

	select {
	case item := <-r.frames:
		return item.frame, item.err
	default:
		return nil, io.EOF
	}
}

// Close ends the stream and disconnects every producer.
func (r *Receiver) Close() error {
	r.closeOnce.Do(func() {
		close(r.done)

		r.mu.Lock()
		defer r.mu.Unlock()
		for conn := range r.conns {
			_ = conn.Close()
		}
	})
	return nil
}

func (r *Receiver) track(conn *websocket.Conn) {
	r.mu.Lock()
	r.conns[conn] = struct{}{}
	r.mu.Unlock()
}

func (r *Receiver) untrack(conn *websocket.Conn) {
	r.mu.Lock()
	delete(r.conns, conn)
	r.mu.Unlock()
	_ = conn.Close()
}

func (r *Receiver) logDebug(msg string, fields map[string]any) {
	if r.config.Logger == nil {
		return
	}
	r.config.Logger.Debug(msg, fields)
}

func (r *Receiver) logWarn(msg string, fields map[string]any) {
	if r.config.Logger == nil {
		return
	}
	r.config.Logger.Warn(msg, fields)
}

// Verify Receiver implements the relay source.
var _ relay.Source = (*Receiver)(nil)
