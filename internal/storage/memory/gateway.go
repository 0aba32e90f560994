// Package memory provides an in-memory persistence gateway for development
// and tests.
package memory

import (
	"context"
	"sync"
	"time"

	"github.com/openrealm/realmd/internal/game/account"
	"github.com/openrealm/realmd/internal/game/group"
	"github.com/openrealm/realmd/internal/storage"
)

// AuditEntry is one recorded audit line.
type AuditEntry struct {
	At      time.Time
	Scope   string
	Message string
}

// Gateway is a map-backed storage.Gateway. Safe for concurrent use.
type Gateway struct {
	mu       sync.Mutex
	accounts map[string]*account.Record
	guilds   map[int64]*group.Guild
	audit    []AuditEntry
}

// New creates an empty in-memory gateway.
func New() *Gateway {
	return &Gateway{
		accounts: make(map[string]*account.Record),
		guilds:   make(map[int64]*group.Guild),
	}
}

var _ storage.Gateway = (*Gateway)(nil)

// LoadAccount returns a copy of the stored record for username.
//
// Postcondition: Returns storage.ErrAccountNotFound if no record exists.
func (g *Gateway) LoadAccount(_ context.Context, username string) (*account.Record, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	rec, ok := g.accounts[username]
	if !ok {
		return nil, storage.ErrAccountNotFound
	}
	return rec.Clone(), nil
}

// SaveAccount stores a copy of rec under username, overwriting any prior record.
func (g *Gateway) SaveAccount(_ context.Context, username string, rec *account.Record) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.accounts[username] = rec.Clone()
	return nil
}

// AccountExists reports whether a record is stored for username.
func (g *Gateway) AccountExists(_ context.Context, username string) (bool, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	_, ok := g.accounts[username]
	return ok, nil
}

// LoadGuildTable returns a copy of the stored guild table.
func (g *Gateway) LoadGuildTable(_ context.Context) (map[int64]*group.Guild, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	table := make(map[int64]*group.Guild, len(g.guilds))
	for id, gl := range g.guilds {
		members := make([]string, len(gl.Members))
		copy(members, gl.Members)
		table[id] = &group.Guild{ID: gl.ID, Name: gl.Name, Leader: gl.Leader, Members: members}
	}
	return table, nil
}

// SaveGuildTable replaces the stored guild table with a copy of table.
func (g *Gateway) SaveGuildTable(_ context.Context, table map[int64]*group.Guild) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.guilds = make(map[int64]*group.Guild, len(table))
	for id, gl := range table {
		members := make([]string, len(gl.Members))
		copy(members, gl.Members)
		g.guilds[id] = &group.Guild{ID: gl.ID, Name: gl.Name, Leader: gl.Leader, Members: members}
	}
	return nil
}

// AppendAuditLog records the entry in memory.
func (g *Gateway) AppendAuditLog(scope, message string) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.audit = append(g.audit, AuditEntry{At: time.Now(), Scope: scope, Message: message})
}

// AuditEntries returns a copy of the recorded audit log, oldest first.
func (g *Gateway) AuditEntries() []AuditEntry {
	g.mu.Lock()
	defer g.mu.Unlock()
	out := make([]AuditEntry, len(g.audit))
	copy(out, g.audit)
	return out
}

// Close is a no-op for the in-memory gateway.
func (g *Gateway) Close() error {
	return nil
}
