package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"

	"github.com/openrealm/realmd/internal/game/account"
	"github.com/openrealm/realmd/internal/game/group"
	"github.com/openrealm/realmd/internal/storage"
)

// auditTimeout bounds the background audit insert.
const auditTimeout = 5 * time.Second

// Gateway is the PostgreSQL-backed storage.Gateway. Account records are
// stored as JSONB blobs keyed by username; guilds get their own table.
type Gateway struct {
	db     *pgxpool.Pool
	logger *zap.Logger
}

// NewGateway creates a Gateway backed by the given pool.
//
// Precondition: pool must be a valid, open connection pool; logger must be non-nil.
func NewGateway(pool *Pool, logger *zap.Logger) *Gateway {
	return &Gateway{db: pool.DB(), logger: logger}
}

var _ storage.Gateway = (*Gateway)(nil)

// LoadAccount returns the durable record for username.
//
// Postcondition: Returns storage.ErrAccountNotFound if no row exists.
func (g *Gateway) LoadAccount(ctx context.Context, username string) (*account.Record, error) {
	var blob []byte
	err := g.db.QueryRow(ctx,
		`SELECT record FROM accounts WHERE username = $1`,
		username,
	).Scan(&blob)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, storage.ErrAccountNotFound
		}
		return nil, fmt.Errorf("querying account: %w", err)
	}

	var rec account.Record
	if err := json.Unmarshal(blob, &rec); err != nil {
		return nil, fmt.Errorf("decoding account record: %w", err)
	}
	return &rec, nil
}

// SaveAccount upserts the full record blob for username.
func (g *Gateway) SaveAccount(ctx context.Context, username string, rec *account.Record) error {
	blob, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("encoding account record: %w", err)
	}

	_, err = g.db.Exec(ctx,
		`INSERT INTO accounts (username, record, updated_at)
		 VALUES ($1, $2, now())
		 ON CONFLICT (username) DO UPDATE SET record = $2, updated_at = now()`,
		username, blob,
	)
	if err != nil {
		return fmt.Errorf("upserting account: %w", err)
	}
	return nil
}

// AccountExists reports whether a row exists for username.
func (g *Gateway) AccountExists(ctx context.Context, username string) (bool, error) {
	var exists bool
	err := g.db.QueryRow(ctx,
		`SELECT EXISTS (SELECT 1 FROM accounts WHERE username = $1)`,
		username,
	).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("checking account existence: %w", err)
	}
	return exists, nil
}

// LoadGuildTable returns every persisted guild, keyed by id.
func (g *Gateway) LoadGuildTable(ctx context.Context) (map[int64]*group.Guild, error) {
	rows, err := g.db.Query(ctx,
		`SELECT id, name, leader, members FROM guilds`,
	)
	if err != nil {
		return nil, fmt.Errorf("querying guilds: %w", err)
	}
	defer rows.Close()

	table := make(map[int64]*group.Guild)
	for rows.Next() {
		var gl group.Guild
		var members []byte
		if err := rows.Scan(&gl.ID, &gl.Name, &gl.Leader, &members); err != nil {
			return nil, fmt.Errorf("scanning guild row: %w", err)
		}
		if err := json.Unmarshal(members, &gl.Members); err != nil {
			return nil, fmt.Errorf("decoding guild %d members: %w", gl.ID, err)
		}
		table[gl.ID] = &gl
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating guild rows: %w", err)
	}
	return table, nil
}

// SaveGuildTable replaces the persisted guild table with the given one,
// atomically in a single transaction.
func (g *Gateway) SaveGuildTable(ctx context.Context, table map[int64]*group.Guild) error {
	tx, err := g.db.Begin(ctx)
	if err != nil {
		return fmt.Errorf("beginning guild table transaction: %w", err)
	}
	defer tx.Rollback(ctx) //nolint:errcheck

	if _, err := tx.Exec(ctx, `DELETE FROM guilds`); err != nil {
		return fmt.Errorf("clearing guild table: %w", err)
	}

	for _, gl := range table {
		members, err := json.Marshal(gl.Members)
		if err != nil {
			return fmt.Errorf("encoding guild %d members: %w", gl.ID, err)
		}
		if _, err := tx.Exec(ctx,
			`INSERT INTO guilds (id, name, leader, members) VALUES ($1, $2, $3, $4)`,
			gl.ID, gl.Name, gl.Leader, members,
		); err != nil {
			return fmt.Errorf("inserting guild %d: %w", gl.ID, err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("committing guild table: %w", err)
	}
	return nil
}

// AppendAuditLog inserts the entry in the background. Failures are logged
// and never surfaced; gameplay must not block on audit writes.
func (g *Gateway) AppendAuditLog(scope, message string) {
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), auditTimeout)
		defer cancel()
		if _, err := g.db.Exec(ctx,
			`INSERT INTO audit_log (scope, message) VALUES ($1, $2)`,
			scope, message,
		); err != nil {
			g.logger.Warn("audit log insert failed",
				zap.String("scope", scope),
				zap.Error(err),
			)
		}
	}()
}

// Close releases the underlying pool.
func (g *Gateway) Close() error {
	g.db.Close()
	return nil
}
