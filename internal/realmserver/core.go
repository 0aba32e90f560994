// Package realmserver implements the realm core: the per-connection protocol
// state machine, the live session and group tables, and scoped event
// broadcast. All mutation of shared state is serialized through one
// coarse-grained mutex; message volume per connection is low and broadcast
// sets are small, so contention is not a concern.
package realmserver

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/openrealm/realmd/internal/config"
	"github.com/openrealm/realmd/internal/game/group"
	"github.com/openrealm/realmd/internal/game/session"
	"github.com/openrealm/realmd/internal/game/world"
	"github.com/openrealm/realmd/internal/protocol"
	"github.com/openrealm/realmd/internal/storage"
)

// persistTimeout bounds each synchronous persistence call issued while the
// core mutex is held.
const persistTimeout = 5 * time.Second

// Core owns the process-scoped mutable tables: the session registry, the
// party directory, and the guild directory. It is initialized at startup and
// torn down at process shutdown; every handler mutates it only through Core
// methods while holding mu.
type Core struct {
	mu       sync.Mutex
	cfg      config.ServerConfig
	sessions *session.Registry
	parties  *group.PartyDirectory
	guilds   *group.GuildDirectory
	store    storage.Gateway
	catalog  *world.Catalog
	logger   *zap.Logger
}

// NewCore creates a Core, seeding the guild directory from the persisted
// guild table.
//
// Precondition: store, catalog, and logger must be non-nil.
// Postcondition: Returns a Core ready to accept clients, or an error if the
// guild table cannot be loaded.
func NewCore(ctx context.Context, store storage.Gateway, catalog *world.Catalog, cfg config.ServerConfig, logger *zap.Logger) (*Core, error) {
	table, err := store.LoadGuildTable(ctx)
	if err != nil {
		return nil, fmt.Errorf("loading guild table: %w", err)
	}

	logger.Info("realm core initialized",
		zap.Int("guilds", len(table)),
		zap.Int("maps", catalog.Count()),
	)

	return &Core{
		cfg:      cfg,
		sessions: session.NewRegistry(),
		parties:  group.NewPartyDirectory(),
		guilds:   group.NewGuildDirectory(table),
		store:    store,
		catalog:  catalog,
		logger:   logger,
	}, nil
}

// SessionCount returns the number of live sessions.
func (c *Core) SessionCount() int {
	return c.sessions.Count()
}

// persistCtx returns a bounded context for a synchronous persistence call.
func persistCtx() (context.Context, context.CancelFunc) {
	return context.WithTimeout(context.Background(), persistTimeout)
}

// persistGuilds flushes the guild table synchronously. Must be called with
// c.mu held.
func (c *Core) persistGuilds() error {
	ctx, cancel := persistCtx()
	defer cancel()
	if err := c.store.SaveGuildTable(ctx, c.guilds.Table()); err != nil {
		return fmt.Errorf("saving guild table: %w", err)
	}
	return nil
}

// mapStates returns the positions of every occupant of mapID except the
// excluded username. Must be called with c.mu held.
func (c *Core) mapStates(mapID int, exclude string) []protocol.PlayerState {
	occupants := c.sessions.UsernamesOnMap(mapID)
	states := make([]protocol.PlayerState, 0, len(occupants))
	for _, username := range occupants {
		if username == exclude {
			continue
		}
		sess, ok := c.sessions.Get(username)
		if !ok {
			continue
		}
		states = append(states, protocol.PlayerState{
			Username:  sess.Username,
			X:         sess.X,
			Y:         sess.Y,
			Direction: sess.Direction,
		})
	}
	return states
}

// announceJoin broadcasts a new session's arrival to its map and sends the
// map occupant snapshot back to the session. Must be called with c.mu held.
func (c *Core) announceJoin(sess *session.Session) {
	joinEvt, err := protocol.PlayerJoinEvent(protocol.PlayerState{
		Username:  sess.Username,
		X:         sess.X,
		Y:         sess.Y,
		Direction: sess.Direction,
	})
	if err != nil {
		c.logger.Error("marshaling join event", zap.Error(err))
		return
	}
	c.broadcastMap(sess.MapID, sess.Username, joinEvt)

	snapshot, err := protocol.MapSnapshotEvent(sess.MapID, c.mapStates(sess.MapID, sess.Username))
	if err != nil {
		c.logger.Error("marshaling map snapshot", zap.Error(err))
		return
	}
	c.deliver(sess.Username, snapshot)
}

// cleanupSession tears down a session after its connection closes: the
// session leaves its party (guild membership is durable and survives
// disconnection), its transient position is merged into the durable record,
// and its map is notified of the departure.
//
// Precondition: username must be non-empty.
// Postcondition: No session exists for username; idempotent for an unknown
// username.
func (c *Core) cleanupSession(username string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	sess, ok := c.sessions.Get(username)
	if !ok {
		return
	}
	mapID := sess.MapID

	if sess.PartyID != nil {
		partyID := *sess.PartyID
		sess.PartyID = nil
		if p, dissolved := c.parties.Leave(partyID, username); !dissolved && p != nil {
			c.broadcastPartyUpdate(p)
		}
	}

	// Persist the last known position so the next login resumes there.
	ctx, cancel := persistCtx()
	defer cancel()
	rec, err := c.store.LoadAccount(ctx, username)
	if err != nil {
		c.logger.Warn("loading record on disconnect", zap.String("username", username), zap.Error(err))
	} else {
		rec.MapID = sess.MapID
		rec.X = sess.X
		rec.Y = sess.Y
		rec.Direction = sess.Direction
		if err := c.store.SaveAccount(ctx, username, rec); err != nil {
			c.logger.Warn("saving record on disconnect", zap.String("username", username), zap.Error(err))
		}
	}

	if err := c.sessions.Remove(username); err != nil {
		c.logger.Warn("removing session on cleanup", zap.String("username", username), zap.Error(err))
	}

	leaveEvt, err := protocol.PlayerLeaveEvent(username)
	if err != nil {
		c.logger.Error("marshaling leave event", zap.Error(err))
		return
	}
	c.broadcastMap(mapID, username, leaveEvt)

	c.store.AppendAuditLog("session", fmt.Sprintf("%s disconnected", username))
	c.logger.Info("session closed", zap.String("username", username))
}

// broadcastPartyUpdate sends the party roster to every member. Must be
// called with c.mu held.
func (c *Core) broadcastPartyUpdate(p *group.Party) {
	evt, err := protocol.PartyUpdateEvent(p.ID, p.Leader, p.Members)
	if err != nil {
		c.logger.Error("marshaling party update", zap.Error(err))
		return
	}
	c.broadcastParty(p, "", evt)
}

// broadcastGuildUpdate sends the guild roster to every member. Must be
// called with c.mu held.
func (c *Core) broadcastGuildUpdate(g *group.Guild) {
	evt, err := protocol.GuildUpdateEvent(g.ID, g.Name, g.Leader, g.Members)
	if err != nil {
		c.logger.Error("marshaling guild update", zap.Error(err))
		return
	}
	c.broadcastGuild(g, "", evt)
}
