package realmserver

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/openrealm/realmd/internal/protocol"
)

// Guild roster changes are flushed synchronously with the in-memory change:
// the member's own record first, then the guild table. The two writes are
// not transactional; a crash between them leaves a record pointing at a
// roster that does not list it, which is a recognized inconsistency window.

// guildRoster is the data payload of a successful guild mutation response.
type guildRoster struct {
	GuildID int64    `json:"guildId"`
	Name    string   `json:"name"`
	Leader  string   `json:"leader"`
	Members []string `json:"members"`
}

// handleGuildCreate founds a guild with the caller as sole member and
// leader. A caller already in a guild is a silent no-op.
func (c *Client) handleGuildCreate(m *protocol.GuildCreate) {
	verb := protocol.Verb(m)
	username, ok := c.requireAuth(verb)
	if !ok {
		return
	}

	c.core.mu.Lock()
	defer c.core.mu.Unlock()

	sess, ok := c.core.sessions.Get(username)
	if !ok {
		return
	}
	if sess.GuildID != nil {
		c.logger.Debug("dropping guild create while already in a guild")
		return
	}

	g := c.core.guilds.Create(m.Name, username)
	guildID := g.ID

	ctx, cancel := persistCtx()
	defer cancel()
	if err := c.core.setRecordGuild(ctx, username, &guildID); err != nil {
		c.core.guilds.Leave(guildID, username)
		c.respondError(verb, err)
		return
	}
	if err := c.core.persistGuilds(); err != nil {
		c.core.guilds.Leave(guildID, username)
		c.respondError(verb, err)
		return
	}

	sess.GuildID = &guildID

	c.respondSuccess(verb, guildRoster{
		GuildID: g.ID,
		Name:    g.Name,
		Leader:  g.Leader,
		Members: g.Members,
	})
	c.core.broadcastGuildUpdate(g)

	c.core.store.AppendAuditLog("guild", fmt.Sprintf("guild %q created by %s", m.Name, username))
	c.logger.Info("guild created",
		zap.Int64("guild_id", g.ID),
		zap.String("name", m.Name),
		zap.String("leader", username),
	)
}

// handleGuildInvite notifies a named online session of a guild invitation.
// Only the guild's current leader may invite; the check reads the guild
// table, not the session's possibly-stale guildId, so a record left behind
// by a crash mid-write cannot invite on behalf of a roster it is not in.
func (c *Client) handleGuildInvite(m *protocol.GuildInvite) {
	verb := protocol.Verb(m)
	username, ok := c.requireAuth(verb)
	if !ok {
		return
	}

	c.core.mu.Lock()
	defer c.core.mu.Unlock()

	sess, ok := c.core.sessions.Get(username)
	if !ok || sess.GuildID == nil {
		c.respondError(verb, protocol.ErrPermissionDenied)
		return
	}
	g, ok := c.core.guilds.Get(*sess.GuildID)
	if !ok || g.Leader != username {
		c.respondError(verb, protocol.ErrPermissionDenied)
		return
	}

	if _, online := c.core.sessions.Get(m.Target); !online {
		c.logger.Debug("dropping guild invite to offline target", zap.String("target", m.Target))
		return
	}

	evt, err := protocol.GuildInviteEvent(g.ID, g.Name, username)
	if err != nil {
		c.logger.Error("marshaling guild invite", zap.Error(err))
		return
	}
	c.core.deliver(m.Target, evt)
}

// handleGuildAccept joins the caller to the guild named by id. A caller
// already in a guild, or an id that no longer resolves, is a silent no-op.
func (c *Client) handleGuildAccept(m *protocol.GuildAccept) {
	verb := protocol.Verb(m)
	username, ok := c.requireAuth(verb)
	if !ok {
		return
	}

	c.core.mu.Lock()
	defer c.core.mu.Unlock()

	sess, ok := c.core.sessions.Get(username)
	if !ok {
		return
	}
	if sess.GuildID != nil {
		c.logger.Debug("dropping guild accept while already in a guild")
		return
	}

	g, joined := c.core.guilds.Join(m.GuildID, username)
	if !joined {
		c.logger.Debug("dropping guild accept for unknown guild", zap.Int64("guild_id", m.GuildID))
		return
	}

	ctx, cancel := persistCtx()
	defer cancel()
	guildID := g.ID
	if err := c.core.setRecordGuild(ctx, username, &guildID); err != nil {
		c.core.guilds.Leave(guildID, username)
		c.respondError(verb, err)
		return
	}
	if err := c.core.persistGuilds(); err != nil {
		c.core.guilds.Leave(guildID, username)
		c.respondError(verb, err)
		return
	}

	sess.GuildID = &guildID

	c.respondSuccess(verb, guildRoster{
		GuildID: g.ID,
		Name:    g.Name,
		Leader:  g.Leader,
		Members: g.Members,
	})
	c.core.broadcastGuildUpdate(g)

	c.core.store.AppendAuditLog("guild", fmt.Sprintf("%s joined guild %d", username, g.ID))
}

// handleGuildLeave removes the caller from its guild. Leaving with no guild
// is a silent no-op. An emptied guild dissolves; otherwise leadership passes
// to the first remaining member and the survivors get the new roster.
func (c *Client) handleGuildLeave(m *protocol.GuildLeave) {
	verb := protocol.Verb(m)
	username, ok := c.requireAuth(verb)
	if !ok {
		return
	}

	c.core.mu.Lock()
	defer c.core.mu.Unlock()

	sess, ok := c.core.sessions.Get(username)
	if !ok || sess.GuildID == nil {
		return
	}
	guildID := *sess.GuildID

	ctx, cancel := persistCtx()
	defer cancel()

	snapshot, ok := c.core.guilds.Snapshot(guildID)
	if !ok || !snapshot.HasMember(username) {
		// The session points at a roster that no longer lists it. Heal the
		// session and the durable record so the stale id does not reseed on
		// the next login.
		sess.GuildID = nil
		if err := c.core.setRecordGuild(ctx, username, nil); err != nil {
			c.logger.Warn("clearing stale guild reference",
				zap.String("username", username),
				zap.Error(err),
			)
		}
		return
	}

	g, dissolved := c.core.guilds.Leave(guildID, username)

	if err := c.core.setRecordGuild(ctx, username, nil); err != nil {
		c.core.guilds.Restore(snapshot)
		c.respondError(verb, err)
		return
	}
	if err := c.core.persistGuilds(); err != nil {
		c.core.guilds.Restore(snapshot)
		// The record was already cleared; put the reference back so the two
		// sides stay consistent.
		if rerr := c.core.setRecordGuild(ctx, username, &guildID); rerr != nil {
			c.logger.Warn("restoring guild reference after failed table write",
				zap.String("username", username),
				zap.Error(rerr),
			)
		}
		c.respondError(verb, err)
		return
	}

	sess.GuildID = nil

	c.respondSuccess(verb, nil)
	if !dissolved && g != nil {
		c.core.broadcastGuildUpdate(g)
	}

	c.core.store.AppendAuditLog("guild", fmt.Sprintf("%s left guild %d", username, guildID))
}

// setRecordGuild rewrites the guildId field of a durable record. Must be
// called with c.mu held.
func (c *Core) setRecordGuild(ctx context.Context, username string, guildID *int64) error {
	rec, err := c.store.LoadAccount(ctx, username)
	if err != nil {
		return fmt.Errorf("loading record for guild change: %w", err)
	}
	rec.GuildID = guildID
	if err := c.store.SaveAccount(ctx, username, rec); err != nil {
		return fmt.Errorf("saving record for guild change: %w", err)
	}
	return nil
}
