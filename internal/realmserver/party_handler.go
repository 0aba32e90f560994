package realmserver

import (
	"go.uber.org/zap"

	"github.com/openrealm/realmd/internal/protocol"
)

// handlePartyInvite notifies a named online session of a party invitation.
// No state changes until the target accepts. An offline target drops the
// invite without a reply. Any session may invite; parties are only gated at
// accept time.
func (c *Client) handlePartyInvite(m *protocol.PartyInvite) {
	username, ok := c.requireAuth(protocol.Verb(m))
	if !ok {
		return
	}

	c.core.mu.Lock()
	defer c.core.mu.Unlock()

	if _, online := c.core.sessions.Get(m.Target); !online {
		c.logger.Debug("dropping party invite to offline target", zap.String("target", m.Target))
		return
	}

	evt, err := protocol.PartyInviteEvent(username)
	if err != nil {
		c.logger.Error("marshaling party invite", zap.Error(err))
		return
	}
	c.core.deliver(m.Target, evt)
}

// handlePartyAccept joins the caller to the party rooted at the named
// inviter, creating the party with the inviter as sole member and leader if
// they have none yet. A caller already in a party is a silent no-op: a
// session belongs to at most one party at a time.
func (c *Client) handlePartyAccept(m *protocol.PartyAccept) {
	username, ok := c.requireAuth(protocol.Verb(m))
	if !ok {
		return
	}
	if m.Inviter == username {
		return
	}

	c.core.mu.Lock()
	defer c.core.mu.Unlock()

	sess, ok := c.core.sessions.Get(username)
	if !ok {
		return
	}
	if sess.PartyID != nil {
		c.logger.Debug("dropping party accept while already in a party")
		return
	}
	inviterSess, online := c.core.sessions.Get(m.Inviter)
	if !online {
		c.logger.Debug("dropping party accept naming offline inviter", zap.String("inviter", m.Inviter))
		return
	}

	var partyID int64
	if inviterSess.PartyID == nil {
		p := c.core.parties.Create(m.Inviter)
		partyID = p.ID
		inviterSess.PartyID = &partyID
	} else {
		partyID = *inviterSess.PartyID
	}

	p, joined := c.core.parties.Join(partyID, username)
	if !joined {
		return
	}
	memberID := partyID
	sess.PartyID = &memberID

	c.core.broadcastPartyUpdate(p)
	c.logger.Info("party joined",
		zap.String("username", username),
		zap.Int64("party_id", partyID),
	)
}

// handlePartyLeave removes the caller from its party. Leaving with no party
// is a silent no-op. The leader role passes to the first remaining member;
// an emptied party dissolves with no further broadcast.
func (c *Client) handlePartyLeave(m *protocol.PartyLeave) {
	username, ok := c.requireAuth(protocol.Verb(m))
	if !ok {
		return
	}

	c.core.mu.Lock()
	defer c.core.mu.Unlock()

	sess, ok := c.core.sessions.Get(username)
	if !ok || sess.PartyID == nil {
		return
	}
	partyID := *sess.PartyID
	sess.PartyID = nil

	p, dissolved := c.core.parties.Leave(partyID, username)
	if dissolved || p == nil {
		return
	}
	c.core.broadcastPartyUpdate(p)
}
