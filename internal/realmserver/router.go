package realmserver

import (
	"go.uber.org/zap"

	"github.com/openrealm/realmd/internal/game/group"
)

// Broadcast scope resolution. Each rule resolves a recipient set from the
// live tables and delivers best-effort, independently per recipient: a full
// or closed outbox drops the event for that recipient only and is never
// reported back to the sender. All methods must be called with c.mu held so
// resolution sees a consistent view of the tables.

// deliver pushes data to one session's outbox.
func (c *Core) deliver(username string, data []byte) {
	sess, ok := c.sessions.Get(username)
	if !ok {
		return
	}
	if err := sess.Outbox.Push(data); err != nil {
		c.logger.Warn("push to outbox failed",
			zap.String("username", username),
			zap.String("conn", sess.Outbox.Name()),
			zap.Error(err),
		)
	}
}

// broadcastAll delivers data to every live session except the excluded
// username.
func (c *Core) broadcastAll(exclude string, data []byte) {
	for _, username := range c.sessions.Usernames() {
		if username == exclude {
			continue
		}
		c.deliver(username, data)
	}
}

// broadcastMap delivers data to every session on mapID except the excluded
// username.
func (c *Core) broadcastMap(mapID int, exclude string, data []byte) {
	for _, username := range c.sessions.UsernamesOnMap(mapID) {
		if username == exclude {
			continue
		}
		c.deliver(username, data)
	}
}

// broadcastParty delivers data to every online member of the party except
// the excluded username.
func (c *Core) broadcastParty(p *group.Party, exclude string, data []byte) {
	for _, username := range p.Members {
		if username == exclude {
			continue
		}
		c.deliver(username, data)
	}
}

// broadcastGuild delivers data to every online member of the guild except
// the excluded username. Offline members are skipped by deliver.
func (c *Core) broadcastGuild(g *group.Guild, exclude string, data []byte) {
	for _, username := range g.Members {
		if username == exclude {
			continue
		}
		c.deliver(username, data)
	}
}
