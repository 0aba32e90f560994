package realmserver

import (
	"encoding/json"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/openrealm/realmd/internal/game/session"
	"github.com/openrealm/realmd/internal/protocol"
)

// Client is the per-connection protocol state machine. It has two states,
// unauthenticated and authenticated, and transitions exactly once, on the
// first successful login or account creation. The transport feeds it one
// inbound frame at a time via HandleMessage and calls HandleDisconnect when
// the connection ends for any reason.
type Client struct {
	id     string
	core   *Core
	outbox *session.Outbox
	close  func()
	logger *zap.Logger

	mu            sync.Mutex
	authenticated bool
	disconnected  bool
	timedOut      bool
	authInFlight  bool
	username      string
	authTimer     *time.Timer
	authDeadline  time.Time
}

// NewClient creates a Client for one connection and arms the authentication
// timer: a connection that does not authenticate within the configured
// timeout is forcibly closed.
//
// Precondition: core and outbox must be non-nil; closeConn must close the
// underlying transport connection and be safe to call more than once.
func NewClient(id string, core *Core, outbox *session.Outbox, closeConn func()) *Client {
	c := &Client{
		id:     id,
		core:   core,
		outbox: outbox,
		close:  closeConn,
		logger: core.logger.With(zap.String("conn", id)),
	}
	timeout := core.cfg.AuthTimeout
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	c.authDeadline = time.Now().Add(timeout)
	c.authTimer = time.AfterFunc(timeout, c.authExpired)
	return c
}

// authExpired closes the connection if it is still unauthenticated when the
// timer fires. An authentication attempt in flight has already claimed the
// window under mu, so a fire during a slow credential check is a no-op: the
// attempt's own outcome decides whether the connection lives.
func (c *Client) authExpired() {
	c.mu.Lock()
	if c.authenticated || c.disconnected || c.authInFlight || c.timedOut {
		c.mu.Unlock()
		return
	}
	c.timedOut = true
	c.mu.Unlock()

	c.logger.Info("authentication timeout, closing connection")
	c.close()
}

// beginAuth claims the authentication window for one login or account
// creation attempt, disarming the timer for its duration. Returns false when
// the window already expired: the connection is closing and the attempt must
// be dropped.
func (c *Client) beginAuth() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.timedOut || c.disconnected || c.authenticated {
		return false
	}
	c.authInFlight = true
	c.authTimer.Stop()
	return true
}

// failAuth releases the window claim after a failed attempt and resumes the
// countdown with whatever remains of the original window. A window that
// lapsed during the attempt closes the connection just as a timer fire would.
func (c *Client) failAuth() {
	c.mu.Lock()
	c.authInFlight = false
	if c.timedOut || c.disconnected || c.authenticated {
		c.mu.Unlock()
		return
	}
	remaining := time.Until(c.authDeadline)
	if remaining > 0 {
		c.authTimer.Reset(remaining)
		c.mu.Unlock()
		return
	}
	c.timedOut = true
	c.mu.Unlock()

	c.logger.Info("authentication window lapsed, closing connection")
	c.close()
}

// finishAuth transitions the client to the authenticated state and cancels
// the authentication timer. The transition happens exactly once; the
// authenticated flag makes any late timer fire a no-op.
func (c *Client) finishAuth(username string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.authenticated = true
	c.authInFlight = false
	c.username = username
	c.authTimer.Stop()
}

// currentUsername returns the authenticated username, or false before the
// auth transition.
func (c *Client) currentUsername() (string, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.username, c.authenticated
}

// respond pushes a reply to this connection's outbox.
func (c *Client) respond(data []byte) {
	if err := c.outbox.Push(data); err != nil {
		c.logger.Warn("pushing response failed", zap.Error(err))
	}
}

// respondError sends the typed failure response for a verb.
func (c *Client) respondError(verb string, err error) {
	code := protocol.CodeForError(err)
	if code == "" {
		// Infrastructure failure, not a wire error. Log and stay silent.
		c.logger.Error("handler failed", zap.String("verb", verb), zap.Error(err))
		return
	}
	data, merr := protocol.ErrorResponse(verb, code)
	if merr != nil {
		c.logger.Error("marshaling error response", zap.Error(merr))
		return
	}
	c.respond(data)
}

// rejectAuth reports a failed authentication attempt and resumes the
// remaining authentication window.
func (c *Client) rejectAuth(verb string, err error) {
	c.respondError(verb, err)
	c.failAuth()
}

// respondSuccess sends the typed success response for a verb.
func (c *Client) respondSuccess(verb string, payload any) {
	data, err := protocol.Response(verb, payload)
	if err != nil {
		c.logger.Error("marshaling response", zap.Error(err))
		return
	}
	c.respond(data)
}

// HandleMessage decodes and dispatches one inbound frame. Garbage and
// unknown verbs are dropped without a reply; the protocol has no negative
// acknowledgement for unparseable input.
func (c *Client) HandleMessage(raw []byte) {
	msg := protocol.Decode(raw)
	if msg == nil {
		c.logger.Debug("dropping malformed message")
		return
	}

	switch m := msg.(type) {
	case *protocol.Ping:
		c.handlePing(m)
	case *protocol.CreateAccount:
		c.handleCreateAccount(m)
	case *protocol.Login:
		c.handleLogin(m)
	case *protocol.SaveData:
		c.handleSaveData(m)
	case *protocol.LoadData:
		c.handleLoadData(m)
	case *protocol.Move:
		c.handleMove(m)
	case *protocol.Chat:
		c.handleChat(m)
	case *protocol.PartyInvite:
		c.handlePartyInvite(m)
	case *protocol.PartyAccept:
		c.handlePartyAccept(m)
	case *protocol.PartyLeave:
		c.handlePartyLeave(m)
	case *protocol.GuildCreate:
		c.handleGuildCreate(m)
	case *protocol.GuildInvite:
		c.handleGuildInvite(m)
	case *protocol.GuildAccept:
		c.handleGuildAccept(m)
	case *protocol.GuildLeave:
		c.handleGuildLeave(m)
	default:
		c.logger.Debug("dropping unhandled message type")
	}
}

// HandleDisconnect tears down whatever state the connection holds. Safe to
// call more than once; only the first call acts.
func (c *Client) HandleDisconnect() {
	c.mu.Lock()
	if c.disconnected {
		c.mu.Unlock()
		return
	}
	c.disconnected = true
	c.authTimer.Stop()
	authenticated := c.authenticated
	username := c.username
	c.mu.Unlock()

	if !authenticated {
		_ = c.outbox.Close()
		return
	}
	c.core.cleanupSession(username)
}

// requireAuth returns the caller's username, sending an unauthenticated
// failure response for the verb if the client has not logged in.
func (c *Client) requireAuth(verb string) (string, bool) {
	username, ok := c.currentUsername()
	if !ok {
		c.respondError(verb, protocol.ErrUnauthenticated)
		return "", false
	}
	return username, true
}

// handlePing echoes the caller-supplied timestamp unchanged. Any state, no
// side effects, always succeeds.
func (c *Client) handlePing(m *protocol.Ping) {
	var payload any
	if len(m.Timestamp) > 0 {
		payload = struct {
			Timestamp json.RawMessage `json:"timestamp"`
		}{Timestamp: m.Timestamp}
	}
	c.respondSuccess(protocol.Verb(m), payload)
}
