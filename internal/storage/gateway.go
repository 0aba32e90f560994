// Package storage defines the persistence gateway contract the realm core
// depends on. Implementations live in the postgres, redis, and memory
// subpackages.
package storage

import (
	"context"
	"errors"

	"github.com/openrealm/realmd/internal/game/account"
	"github.com/openrealm/realmd/internal/game/group"
)

// ErrAccountNotFound is returned when an account lookup yields no record.
var ErrAccountNotFound = errors.New("account not found")

// Gateway is the durable-storage collaborator. The core only ever calls it;
// it never implements storage itself.
type Gateway interface {
	// LoadAccount returns the durable record for username, or ErrAccountNotFound.
	LoadAccount(ctx context.Context, username string) (*account.Record, error)
	// SaveAccount fully overwrites the stored record for username.
	SaveAccount(ctx context.Context, username string, rec *account.Record) error
	// AccountExists reports whether a durable record exists for username.
	AccountExists(ctx context.Context, username string) (bool, error)

	// LoadGuildTable returns every persisted guild, keyed by id.
	LoadGuildTable(ctx context.Context) (map[int64]*group.Guild, error)
	// SaveGuildTable fully overwrites the persisted guild table.
	SaveGuildTable(ctx context.Context, table map[int64]*group.Guild) error

	// AppendAuditLog records a gameplay audit entry. Fire-and-forget: it
	// never blocks gameplay and never surfaces an error to the caller.
	AppendAuditLog(scope, message string)

	// Close releases the gateway's resources.
	Close() error
}
