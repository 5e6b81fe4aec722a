// Package embed is the channel between the chat client and a host that
// embeds it. Hosts connect over a websocket, may ask the client to close the
// chat, and are told when history loading starts and ends.
package embed

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/gorilla/websocket"
)

// Message types exchanged with the host.
const (
	TypeClose        = "CCI_CHAT_CLOSE"
	TypeLoadingStart = "LOADING_START"
	TypeLoadingEnd   = "LOADING_END"
)

// ErrOriginNotAllowed is returned when a connection or payload comes from an
// origin outside the allow-list.
var ErrOriginNotAllowed = errors.New("origin not allowed")

const (
	writeWait   = 5 * time.Second
	pongWait    = 60 * time.Second
	pingPeriod  = pongWait * 9 / 10
	sendBuffer  = 16
	eventBuffer = 8
)

// Envelope is the JSON payload on the wire. Origin is optional; when present
// it must also be allow-listed.
type Envelope struct {
	Type   string `json:"type"`
	Origin string `json:"origin,omitempty"`
}

// Event is an accepted inbound message.
type Event struct {
	Type   string
	Origin string
}

type hostConn struct {
	ws     *websocket.Conn
	origin string
	send   chan Envelope
}

// Bridge accepts host connections on /bridge.
type Bridge struct {
	allowed  map[string]struct{}
	upgrader websocket.Upgrader
	events   chan Event

	mu     sync.Mutex
	conns  map[*hostConn]struct{}
	closed bool
	done   chan struct{}
	wg     sync.WaitGroup

	server *http.Server
}

// New creates a bridge accepting the given origins. An empty list accepts
// nobody.
func New(allowedOrigins []string) *Bridge {
	b := &Bridge{
		allowed: make(map[string]struct{}, len(allowedOrigins)),
		events:  make(chan Event, eventBuffer),
		conns:   make(map[*hostConn]struct{}),
		done:    make(chan struct{}),
	}
	for _, origin := range allowedOrigins {
		if o := normalizeOrigin(origin); o != "" {
			b.allowed[o] = struct{}{}
		}
	}
	b.upgrader = websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin: func(r *http.Request) bool {
			return b.CheckOrigin(r.Header.Get("Origin")) == nil
		},
	}
	return b
}

func normalizeOrigin(origin string) string {
	return strings.TrimRight(strings.ToLower(strings.TrimSpace(origin)), "/")
}

// CheckOrigin returns ErrOriginNotAllowed unless origin is allow-listed.
func (b *Bridge) CheckOrigin(origin string) error {
	o := normalizeOrigin(origin)
	if o == "" {
		return fmt.Errorf("%w: missing origin", ErrOriginNotAllowed)
	}
	if _, ok := b.allowed[o]; !ok {
		return fmt.Errorf("%w: %s", ErrOriginNotAllowed, origin)
	}
	return nil
}

// Events delivers accepted inbound messages. It is closed by Close.
func (b *Bridge) Events() <-chan Event {
	return b.events
}

// Handler returns the bridge routes.
func (b *Bridge) Handler() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Get("/bridge", b.handleBridge)
	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	})
	return r
}

// Start listens on addr and serves the bridge in the background.
func (b *Bridge) Start(addr string) (net.Addr, error) {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, fmt.Errorf("failed to listen on %s: %w", addr, err)
	}
	b.mu.Lock()
	b.server = &http.Server{
		Handler:           b.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
	}
	srv := b.server
	b.mu.Unlock()

	b.wg.Add(1)
	go func() {
		defer b.wg.Done()
		if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("embed_bridge_serve_failed", "error", err)
		}
	}()
	slog.Info("embed_bridge_listening", "addr", ln.Addr().String())
	return ln.Addr(), nil
}

// Post broadcasts a message to every connected host. Hosts that cannot keep
// up miss the message.
func (b *Bridge) Post(msgType string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return
	}
	for c := range b.conns {
		select {
		case c.send <- Envelope{Type: msgType}:
		default:
			slog.Warn("embed_bridge_send_dropped", "type", msgType, "origin", c.origin)
		}
	}
}

// Connections returns the number of connected hosts.
func (b *Bridge) Connections() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.conns)
}

// Close disconnects every host, stops the listener started by Start and
// closes the Events channel.
func (b *Bridge) Close() error {
	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		return nil
	}
	b.closed = true
	close(b.done)
	for c := range b.conns {
		_ = c.ws.Close()
	}
	srv := b.server
	b.mu.Unlock()

	var err error
	if srv != nil {
		ctx, cancel := context.WithTimeout(context.Background(), writeWait)
		defer cancel()
		err = srv.Shutdown(ctx)
	}
	b.wg.Wait()
	close(b.events)
	return err
}

func (b *Bridge) handleBridge(w http.ResponseWriter, r *http.Request) {
	origin := r.Header.Get("Origin")
	if err := b.CheckOrigin(origin); err != nil {
		slog.Warn("embed_bridge_origin_rejected", "origin", origin)
		http.Error(w, err.Error(), http.StatusForbidden)
		return
	}

	ws, err := b.upgrader.Upgrade(w, r, nil)
	if err != nil {
		slog.Warn("embed_bridge_upgrade_failed", "error", err)
		return
	}

	c := &hostConn{ws: ws, origin: origin, send: make(chan Envelope, sendBuffer)}
	if !b.register(c) {
		_ = ws.Close()
		return
	}
	slog.Info("embed_bridge_connected", "origin", origin)

	b.wg.Add(1)
	go func() {
		defer b.wg.Done()
		b.writeLoop(c)
	}()
	b.readLoop(c)
}

func (b *Bridge) register(c *hostConn) bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return false
	}
	b.conns[c] = struct{}{}
	b.wg.Add(1)
	return true
}

func (b *Bridge) unregister(c *hostConn) {
	b.mu.Lock()
	if _, ok := b.conns[c]; ok {
		delete(b.conns, c)
		close(c.send)
	}
	b.mu.Unlock()
}

func (b *Bridge) readLoop(c *hostConn) {
	defer b.wg.Done()
	defer func() {
		b.unregister(c)
		_ = c.ws.Close()
		slog.Info("embed_bridge_disconnected", "origin", c.origin)
	}()

	_ = c.ws.SetReadDeadline(time.Now().Add(pongWait))
	c.ws.SetPongHandler(func(string) error {
		return c.ws.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		var env Envelope
		if err := c.ws.ReadJSON(&env); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure, websocket.CloseAbnormalClosure) {
				slog.Debug("embed_bridge_read_failed", "error", err)
			}
			return
		}
		_ = c.ws.SetReadDeadline(time.Now().Add(pongWait))

		origin := c.origin
		if env.Origin != "" {
			origin = env.Origin
		}
		if err := b.CheckOrigin(origin); err != nil {
			slog.Warn("embed_bridge_payload_rejected", "origin", origin, "type", env.Type)
			continue
		}

		switch env.Type {
		case TypeClose:
			slog.Info("embed_bridge_close_requested", "origin", origin)
			select {
			case b.events <- Event{Type: env.Type, Origin: origin}:
			case <-b.done:
				return
			}
		default:
			slog.Debug("embed_bridge_message_ignored", "type", env.Type)
		}
	}
}

func (b *Bridge) writeLoop(c *hostConn) {
	ticker := time.NewTicker(pingPeriod)
	defer ticker.Stop()

	for {
		select {
		case env, ok := <-c.send:
			_ = c.ws.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				_ = c.ws.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
				return
			}
			if err := c.ws.WriteJSON(env); err != nil {
				slog.Debug("embed_bridge_write_failed", "error", err)
				_ = c.ws.Close()
				return
			}
		case <-ticker.C:
			_ = c.ws.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.ws.WriteMessage(websocket.PingMessage, nil); err != nil {
				_ = c.ws.Close()
				return
			}
		}
	}
}
