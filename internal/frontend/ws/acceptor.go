// Package ws is the websocket transport adapter: it upgrades HTTP requests,
// feeds inbound frames to the realm core one at a time, and drains each
// session's outbox to the socket. The core never sees the transport; it only
// sees outboxes.
package ws

import (
	"fmt"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/openrealm/realmd/internal/config"
	"github.com/openrealm/realmd/internal/game/session"
	"github.com/openrealm/realmd/internal/realmserver"
)

// Acceptor listens for websocket connections and runs one read pump and one
// write pump per connection.
type Acceptor struct {
	cfg      config.ServerConfig
	core     *realmserver.Core
	logger   *zap.Logger
	upgrader websocket.Upgrader

	listener net.Listener
	server   *http.Server
	wg       sync.WaitGroup

	mu      sync.Mutex
	running bool
	conns   map[string]*websocket.Conn
}

// NewAcceptor creates a websocket acceptor for the realm core.
//
// Precondition: core and logger must be non-nil.
// Postcondition: Returns an Acceptor ready to be started with ListenAndServe.
func NewAcceptor(cfg config.ServerConfig, core *realmserver.Core, logger *zap.Logger) *Acceptor {
	return &Acceptor{
		cfg:    cfg,
		core:   core,
		logger: logger,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     func(*http.Request) bool { return true },
		},
		conns: make(map[string]*websocket.Conn),
	}
}

// Handler returns the HTTP handler serving the websocket endpoint.
func (a *Acceptor) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/ws", a.handleUpgrade)
	return mux
}

// ListenAndServe starts the HTTP listener and serves websocket upgrades
// until Stop is called. Blocks until the acceptor is stopped.
//
// Precondition: The acceptor must not already be running.
// Postcondition: The listener is closed when this method returns.
func (a *Acceptor) ListenAndServe() error {
	start := time.Now()

	listener, err := net.Listen("tcp", a.cfg.Addr())
	if err != nil {
		return fmt.Errorf("listening on %s: %w", a.cfg.Addr(), err)
	}

	server := &http.Server{Handler: a.Handler()}

	a.mu.Lock()
	a.listener = listener
	a.server = server
	a.running = true
	a.mu.Unlock()

	a.logger.Info("websocket acceptor listening",
		zap.String("addr", listener.Addr().String()),
		zap.Duration("startup", time.Since(start)),
	)

	if err := server.Serve(listener); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("serving websocket connections: %w", err)
	}
	return nil
}

// handleUpgrade upgrades one HTTP request and runs the connection to
// completion.
func (a *Acceptor) handleUpgrade(w http.ResponseWriter, r *http.Request) {
	conn, err := a.upgrader.Upgrade(w, r, nil)
	if err != nil {
		a.logger.Warn("websocket upgrade failed",
			zap.String("remote_addr", r.RemoteAddr),
			zap.Error(err),
		)
		return
	}

	id := uuid.NewString()
	a.mu.Lock()
	if !a.trackLocked(id, conn) {
		a.mu.Unlock()
		conn.Close()
		return
	}
	a.mu.Unlock()

	a.wg.Add(1)
	go a.runConn(id, conn, r.RemoteAddr)
}

// trackLocked records a live connection. Returns false if the acceptor is
// shutting down. Must be called with a.mu held.
func (a *Acceptor) trackLocked(id string, conn *websocket.Conn) bool {
	if a.server != nil && !a.running {
		return false
	}
	a.conns[id] = conn
	return true
}

// runConn owns one connection for its lifetime: a write pump goroutine
// drains the outbox while this goroutine reads frames and feeds the client
// state machine. Either pump failing tears the connection down through the
// normal disconnect path.
func (a *Acceptor) runConn(id string, conn *websocket.Conn, remoteAddr string) {
	defer a.wg.Done()
	start := time.Now()

	a.logger.Info("client connected",
		zap.String("conn", id),
		zap.String("remote_addr", remoteAddr),
	)

	outbox := session.NewOutbox(id, a.cfg.OutboxSize)
	var closeOnce sync.Once
	closeConn := func() {
		closeOnce.Do(func() { conn.Close() })
	}
	client := realmserver.NewClient(id, a.core, outbox, closeConn)

	var writers sync.WaitGroup
	writers.Add(1)
	go func() {
		defer writers.Done()
		a.writePump(id, conn, outbox)
		closeConn()
	}()

	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			break
		}
		client.HandleMessage(data)
	}

	client.HandleDisconnect()
	closeConn()
	writers.Wait()

	a.mu.Lock()
	delete(a.conns, id)
	a.mu.Unlock()

	a.logger.Info("client disconnected",
		zap.String("conn", id),
		zap.Duration("duration", time.Since(start)),
	)
}

// writePump drains the outbox to the socket until the outbox closes or a
// write fails.
func (a *Acceptor) writePump(id string, conn *websocket.Conn, outbox *session.Outbox) {
	for data := range outbox.Events() {
		if a.cfg.WriteTimeout > 0 {
			_ = conn.SetWriteDeadline(time.Now().Add(a.cfg.WriteTimeout))
		}
		if err := conn.WriteMessage(websocket.TextMessage, data); err != nil {
			a.logger.Debug("write to client failed",
				zap.String("conn", id),
				zap.Error(err),
			)
			return
		}
	}
}

// Stop gracefully stops the acceptor: the listener stops accepting, every
// live connection is closed (running each session's normal disconnect
// cleanup), and all per-connection goroutines are waited out.
//
// Postcondition: All connections are closed and goroutines have exited.
func (a *Acceptor) Stop() {
	a.mu.Lock()
	if !a.running {
		a.mu.Unlock()
		return
	}
	a.running = false

	server := a.server
	for _, conn := range a.conns {
		conn.Close()
	}
	a.mu.Unlock()

	if server != nil {
		server.Close()
	}
	a.wg.Wait()

	a.logger.Info("websocket acceptor stopped")
}

// Addr returns the actual listening address, or an empty string if not yet
// listening.
func (a *Acceptor) Addr() string {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.listener == nil {
		return ""
	}
	return a.listener.Addr().String()
}
