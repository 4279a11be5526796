// Package ingress accepts input snapshots from external producers over WebSocket.
package ingress

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"

	"github.com/sanjay900/joybridge/state"
)

const writeWait = time.Second

// Config represents the ingress listener configuration.
type Config struct {
	Addr      string   `help:"WebSocket listen address for input producers" default:"127.0.0.1:26214" env:"JOYBRIDGE_INGRESS_ADDR"`
	Path      string   `help:"HTTP path accepting WebSocket upgrades" default:"/" env:"JOYBRIDGE_INGRESS_PATH"`
	ReadLimit int64    `help:"Maximum size of a single producer message in bytes" default:"4096" env:"JOYBRIDGE_INGRESS_READ_LIMIT"`
	Origins   []string `help:"Allowed Origin headers; empty allows any origin" env:"JOYBRIDGE_INGRESS_ORIGINS"`
}

// Listener publishes every decoded producer message into the shared state.
type Listener struct {
	cfg      Config
	st       *state.State
	logger   *slog.Logger
	upgrader websocket.Upgrader

	mu      sync.Mutex
	clients map[*client]struct{}
	srv     *http.Server
	ln      net.Listener

	nextID   atomic.Uint64
	received atomic.Uint64
	dropped  atomic.Uint64
}

type client struct {
	id   uint64
	conn *websocket.Conn
	mu   sync.Mutex
}

func (c *client) write(messageType int, data []byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.conn.SetWriteDeadline(time.Now().Add(writeWait)); err != nil {
		return err
	}
	return c.conn.WriteMessage(messageType, data)
}

// New creates a Listener writing into st.
func New(cfg Config, st *state.State, logger *slog.Logger) *Listener {
	if cfg.Path == "" {
		cfg.Path = "/"
	}
	l := &Listener{
		cfg:     cfg,
		st:      st,
		logger:  logger,
		clients: map[*client]struct{}{},
	}
	l.upgrader = websocket.Upgrader{CheckOrigin: l.checkOrigin}
	return l
}

func (l *Listener) checkOrigin(r *http.Request) bool {
	if len(l.cfg.Origins) == 0 {
		return true
	}
	origin := r.Header.Get("Origin")
	for _, o := range l.cfg.Origins {
		if o == origin {
			return true
		}
	}
	return false
}

// Start listens on the configured address and serves until ctx is done or Close is called.
func (l *Listener) Start(ctx context.Context) error {
	ln, err := net.Listen("tcp", l.cfg.Addr)
	if err != nil {
		return fmt.Errorf("ingress listen: %w", err)
	}
	l.Serve(ctx, ln)
	return nil
}

// Serve serves producers on an existing listener.
func (l *Listener) Serve(ctx context.Context, ln net.Listener) {
	mux := http.NewServeMux()
	mux.Handle(l.cfg.Path, l)
	srv := &http.Server{Handler: mux, ReadHeaderTimeout: 5 * time.Second}

	l.mu.Lock()
	l.ln = ln
	l.srv = srv
	l.mu.Unlock()

	l.logger.Info("Ingress listening", "addr", ln.Addr().String(), "path", l.cfg.Path)
	go func() {
		if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			l.logger.Error("Ingress server stopped", "error", err)
		}
	}()
	go func() {
		<-ctx.Done()
		_ = l.Close()
	}()
}

// Addr returns the bound address, or nil before Serve.
func (l *Listener) Addr() net.Addr {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.ln == nil {
		return nil
	}
	return l.ln.Addr()
}

// Close stops accepting producers and disconnects the connected ones.
func (l *Listener) Close() error {
	l.mu.Lock()
	srv := l.srv
	l.srv = nil
	clients := make([]*client, 0, len(l.clients))
	for c := range l.clients {
		clients = append(clients, c)
	}
	l.mu.Unlock()

	var err error
	if srv != nil {
		err = srv.Close()
	}
	for _, c := range clients {
		_ = c.conn.Close()
	}
	return err
}

// Clients returns the number of connected producers.
func (l *Listener) Clients() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.clients)
}

// Counters returns how many messages were accepted and dropped so far.
func (l *Listener) Counters() (received, dropped uint64) {
	return l.received.Load(), l.dropped.Load()
}

// Broadcast sends v as a JSON text frame to every connected producer.
// Producers whose write fails are disconnected.
func (l *Listener) Broadcast(v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("marshal broadcast: %w", err)
	}
	l.mu.Lock()
	clients := make([]*client, 0, len(l.clients))
	for c := range l.clients {
		clients = append(clients, c)
	}
	l.mu.Unlock()

	for _, c := range clients {
		if err := c.write(websocket.TextMessage, data); err != nil {
			l.logger.Debug("Ingress broadcast failed", "client", c.id, "error", err)
			_ = c.conn.Close()
		}
	}
	return nil
}

// ServeHTTP upgrades the request and reads producer messages until the peer goes away.
func (l *Listener) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := l.upgrader.Upgrade(w, r, nil)
	if err != nil {
		l.logger.Warn("Ingress upgrade failed", "remote", r.RemoteAddr, "error", err)
		return
	}
	c := &client{id: l.nextID.Add(1), conn: conn}
	log := l.logger.With("client", c.id, "remote", r.RemoteAddr)

	l.mu.Lock()
	l.clients[c] = struct{}{}
	l.mu.Unlock()
	log.Info("Producer connected")

	defer func() {
		l.mu.Lock()
		delete(l.clients, c)
		l.mu.Unlock()
		_ = conn.Close()
		log.Info("Producer disconnected")
	}()

	if l.cfg.ReadLimit > 0 {
		conn.SetReadLimit(l.cfg.ReadLimit)
	}
	for {
		msgType, payload, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway, websocket.CloseNoStatusReceived) {
				log.Warn("Producer read failed", "error", err)
			}
			return
		}
		snap, err := Decode(msgType, payload)
		if err != nil {
			l.dropped.Add(1)
			log.Debug("Dropping producer message", "size", len(payload), "error", err)
			continue
		}
		l.received.Add(1)
		l.st.Write(snap)
	}
}
