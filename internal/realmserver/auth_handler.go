package realmserver

import (
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/openrealm/realmd/internal/game/account"
	"github.com/openrealm/realmd/internal/protocol"
	"github.com/openrealm/realmd/internal/storage"
)

// handleCreateAccount registers a new durable record and authenticates the
// connection as its owner. A repeated creation for the same username fails
// with duplicateUsername; there is no idempotent retry.
func (c *Client) handleCreateAccount(m *protocol.CreateAccount) {
	if _, ok := c.currentUsername(); ok {
		c.logger.Debug("dropping createAccount on authenticated connection")
		return
	}
	verb := protocol.Verb(m)
	if !c.beginAuth() {
		return
	}

	c.core.mu.Lock()
	defer c.core.mu.Unlock()

	ctx, cancel := persistCtx()
	defer cancel()

	exists, err := c.core.store.AccountExists(ctx, m.Username)
	if err != nil {
		c.rejectAuth(verb, fmt.Errorf("checking account: %w", err))
		return
	}
	if exists {
		c.rejectAuth(verb, protocol.ErrDuplicateUsername)
		return
	}

	hash, err := account.HashPassword(m.Password)
	if err != nil {
		c.rejectAuth(verb, fmt.Errorf("hashing password: %w", err))
		return
	}

	spawn := c.core.catalog.DefaultMap()
	rec := account.NewRecord(m.Username, hash, spawn.ID, spawn.SpawnX, spawn.SpawnY)
	if err := c.core.store.SaveAccount(ctx, m.Username, rec); err != nil {
		c.rejectAuth(verb, fmt.Errorf("saving new account: %w", err))
		return
	}

	sess, err := c.core.sessions.Add(m.Username, rec.MapID, rec.X, rec.Y, rec.Direction, rec.GuildID, c.outbox)
	if err != nil {
		c.rejectAuth(verb, protocol.ErrAlreadyOnline)
		return
	}
	c.finishAuth(m.Username)

	c.respondSuccess(verb, rec.Sanitized())
	c.core.announceJoin(sess)

	c.core.store.AppendAuditLog("auth", fmt.Sprintf("account created: %s", m.Username))
	c.logger.Info("account created", zap.String("username", m.Username))
}

// handleLogin authenticates against an existing durable record. A session
// already live for the username always fails with alreadyOnline and never
// evicts the prior session: the first writer wins.
func (c *Client) handleLogin(m *protocol.Login) {
	if _, ok := c.currentUsername(); ok {
		c.logger.Debug("dropping login on authenticated connection")
		return
	}
	verb := protocol.Verb(m)
	if !c.beginAuth() {
		return
	}

	c.core.mu.Lock()
	defer c.core.mu.Unlock()

	ctx, cancel := persistCtx()
	defer cancel()

	rec, err := c.core.store.LoadAccount(ctx, m.Username)
	if err != nil {
		if errors.Is(err, storage.ErrAccountNotFound) {
			c.rejectAuth(verb, protocol.ErrInvalidCredentials)
		} else {
			c.rejectAuth(verb, fmt.Errorf("loading account: %w", err))
		}
		return
	}
	if !account.CheckPassword(m.Password, rec.PasswordHash) {
		c.rejectAuth(verb, protocol.ErrInvalidCredentials)
		return
	}
	if _, online := c.core.sessions.Get(m.Username); online {
		c.rejectAuth(verb, protocol.ErrAlreadyOnline)
		return
	}

	sess, err := c.core.sessions.Add(m.Username, rec.MapID, rec.X, rec.Y, rec.Direction, rec.GuildID, c.outbox)
	if err != nil {
		c.rejectAuth(verb, protocol.ErrAlreadyOnline)
		return
	}
	c.finishAuth(m.Username)

	c.respondSuccess(verb, rec.Sanitized())
	c.core.announceJoin(sess)

	c.core.store.AppendAuditLog("auth", fmt.Sprintf("%s logged in", m.Username))
	c.logger.Info("login succeeded", zap.String("username", m.Username))
}
