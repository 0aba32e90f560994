package realmserver

import (
	"encoding/json"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/openrealm/realmd/internal/game/account"
	"github.com/openrealm/realmd/internal/protocol"
	"github.com/openrealm/realmd/internal/storage"
)

// handleSaveData merges the payload into the caller's durable record and
// persists it. The operation only ever touches the caller's own record: a
// payload naming another username is dropped without a reply. That is a
// security boundary, not an error.
func (c *Client) handleSaveData(m *protocol.SaveData) {
	verb := protocol.Verb(m)
	username, ok := c.requireAuth(verb)
	if !ok {
		return
	}

	var patch account.Patch
	if err := json.Unmarshal(m.Data, &patch); err != nil {
		c.logger.Debug("dropping unparseable saveData payload", zap.Error(err))
		return
	}
	if patch.Username != "" && patch.Username != username {
		c.logger.Debug("dropping saveData naming another username",
			zap.String("caller", username),
			zap.String("named", patch.Username),
		)
		return
	}

	c.core.mu.Lock()
	defer c.core.mu.Unlock()

	ctx, cancel := persistCtx()
	defer cancel()

	rec, err := c.core.store.LoadAccount(ctx, username)
	if err != nil {
		if errors.Is(err, storage.ErrAccountNotFound) {
			c.respondError(verb, protocol.ErrNotFound)
		} else {
			c.respondError(verb, fmt.Errorf("loading record: %w", err))
		}
		return
	}
	rec.Apply(patch)
	if err := c.core.store.SaveAccount(ctx, username, rec); err != nil {
		c.respondError(verb, fmt.Errorf("saving record: %w", err))
		return
	}

	c.respondSuccess(verb, nil)

	// A position-bearing payload also moves the live session. The merge is
	// against the session's transient position, which is authoritative for
	// presence.
	if patch.HasPosition() {
		sess, ok := c.core.sessions.Get(username)
		if !ok {
			return
		}
		mapID, x, y, direction := sess.MapID, sess.X, sess.Y, sess.Direction
		if patch.MapID != nil {
			mapID = *patch.MapID
		}
		if patch.X != nil {
			x = *patch.X
		}
		if patch.Y != nil {
			y = *patch.Y
		}
		if patch.Direction != nil {
			direction = *patch.Direction
		}
		if _, err := c.core.sessions.SetPosition(username, mapID, x, y, direction); err != nil {
			c.logger.Warn("updating session position", zap.Error(err))
			return
		}
		evt, err := protocol.PlayerMoveEvent(protocol.PlayerState{
			Username:  username,
			X:         x,
			Y:         y,
			Direction: direction,
		})
		if err != nil {
			c.logger.Error("marshaling move event", zap.Error(err))
			return
		}
		c.core.broadcastMap(mapID, username, evt)
	}
}

// handleLoadData returns the caller's durable record, minus credentials.
func (c *Client) handleLoadData(m *protocol.LoadData) {
	verb := protocol.Verb(m)
	username, ok := c.requireAuth(verb)
	if !ok {
		return
	}

	c.core.mu.Lock()
	defer c.core.mu.Unlock()

	ctx, cancel := persistCtx()
	defer cancel()

	rec, err := c.core.store.LoadAccount(ctx, username)
	if err != nil {
		if errors.Is(err, storage.ErrAccountNotFound) {
			c.respondError(verb, protocol.ErrNotFound)
		} else {
			c.respondError(verb, fmt.Errorf("loading record: %w", err))
		}
		return
	}
	c.respondSuccess(verb, rec.Sanitized())
}

// handleMove updates the caller's transient position and announces it to the
// current map, excluding the caller. A move whose mapId does not match the
// session's current map is stale and is dropped without a reply or a
// position change; the client reloads data on map change.
func (c *Client) handleMove(m *protocol.Move) {
	username, ok := c.requireAuth(protocol.Verb(m))
	if !ok {
		return
	}

	c.core.mu.Lock()
	defer c.core.mu.Unlock()

	sess, ok := c.core.sessions.Get(username)
	if !ok {
		return
	}
	if m.MapID != sess.MapID {
		c.logger.Debug("dropping move with stale mapId",
			zap.Int("session_map", sess.MapID),
			zap.Int("move_map", m.MapID),
		)
		return
	}

	if _, err := c.core.sessions.SetPosition(username, m.MapID, m.X, m.Y, m.Direction); err != nil {
		c.logger.Warn("updating session position", zap.Error(err))
		return
	}

	evt, err := protocol.PlayerMoveEvent(protocol.PlayerState{
		Username:  username,
		X:         m.X,
		Y:         m.Y,
		Direction: m.Direction,
	})
	if err != nil {
		c.logger.Error("marshaling move event", zap.Error(err))
		return
	}
	c.core.broadcastMap(m.MapID, username, evt)
}
