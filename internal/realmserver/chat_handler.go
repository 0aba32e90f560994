package realmserver

import (
	"go.uber.org/zap"

	"github.com/openrealm/realmd/internal/protocol"
)

// handleChat delivers a chat line to its scope. Global reaches every live
// session, sender included. Party and guild scopes resolve the targetId
// against the live group tables; an id that resolves to no group drops the
// message without a reply. Chat has no response message of its own.
func (c *Client) handleChat(m *protocol.Chat) {
	username, ok := c.requireAuth(protocol.Verb(m))
	if !ok {
		return
	}

	c.core.mu.Lock()
	defer c.core.mu.Unlock()

	evt, err := protocol.ChatMessageEvent(m.Scope, username, m.Message)
	if err != nil {
		c.logger.Error("marshaling chat event", zap.Error(err))
		return
	}

	switch m.Scope {
	case protocol.ScopeGlobal:
		c.core.broadcastAll("", evt)
	case protocol.ScopeParty:
		p, ok := c.core.parties.Get(*m.TargetID)
		if !ok {
			c.logger.Debug("dropping chat to unknown party", zap.Int64("party_id", *m.TargetID))
			return
		}
		c.core.broadcastParty(p, "", evt)
	case protocol.ScopeGuild:
		g, ok := c.core.guilds.Get(*m.TargetID)
		if !ok {
			c.logger.Debug("dropping chat to unknown guild", zap.Int64("guild_id", *m.TargetID))
			return
		}
		c.core.broadcastGuild(g, "", evt)
	}
}
