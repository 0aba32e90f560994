// Package redis provides a Redis-backed persistence gateway.
package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/openrealm/realmd/internal/config"
	"github.com/openrealm/realmd/internal/game/account"
	"github.com/openrealm/realmd/internal/game/group"
	"github.com/openrealm/realmd/internal/storage"
)

// auditTimeout bounds the background audit push.
const auditTimeout = 5 * time.Second

// Gateway is the Redis-backed storage.Gateway. Account records are JSON
// values keyed by username; the guild table is a hash of id → guild JSON.
type Gateway struct {
	client *redis.Client
	logger *zap.Logger
}

// New creates a Gateway from the given configuration.
//
// Postcondition: Returns a connected Gateway or a non-nil error.
func New(cfg config.RedisConfig, logger *zap.Logger) (*Gateway, error) {
	opts, err := redis.ParseURL(cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("parsing redis url: %w", err)
	}

	opts.PoolSize = cfg.PoolSize
	opts.MinIdleConns = cfg.MinIdleConns

	client := redis.NewClient(opts)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("pinging redis: %w", err)
	}

	return &Gateway{client: client, logger: logger}, nil
}

// NewWithClient creates a Gateway with an existing client (for testing).
func NewWithClient(client *redis.Client, logger *zap.Logger) *Gateway {
	return &Gateway{client: client, logger: logger}
}

var _ storage.Gateway = (*Gateway)(nil)

// LoadAccount returns the durable record for username.
//
// Postcondition: Returns storage.ErrAccountNotFound if no key exists.
func (g *Gateway) LoadAccount(ctx context.Context, username string) (*account.Record, error) {
	data, err := g.client.Get(ctx, accountKey(username)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, storage.ErrAccountNotFound
		}
		return nil, fmt.Errorf("getting account: %w", err)
	}

	var rec account.Record
	if err := json.Unmarshal(data, &rec); err != nil {
		return nil, fmt.Errorf("decoding account record: %w", err)
	}
	return &rec, nil
}

// SaveAccount overwrites the stored record for username.
func (g *Gateway) SaveAccount(ctx context.Context, username string, rec *account.Record) error {
	data, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("encoding account record: %w", err)
	}
	if err := g.client.Set(ctx, accountKey(username), data, 0).Err(); err != nil {
		return fmt.Errorf("setting account: %w", err)
	}
	return nil
}

// AccountExists reports whether a record is stored for username.
func (g *Gateway) AccountExists(ctx context.Context, username string) (bool, error) {
	n, err := g.client.Exists(ctx, accountKey(username)).Result()
	if err != nil {
		return false, fmt.Errorf("checking account existence: %w", err)
	}
	return n > 0, nil
}

// LoadGuildTable returns every persisted guild, keyed by id.
func (g *Gateway) LoadGuildTable(ctx context.Context) (map[int64]*group.Guild, error) {
	fields, err := g.client.HGetAll(ctx, guildTableKey()).Result()
	if err != nil {
		return nil, fmt.Errorf("getting guild table: %w", err)
	}

	table := make(map[int64]*group.Guild, len(fields))
	for field, blob := range fields {
		id, err := strconv.ParseInt(field, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("parsing guild id %q: %w", field, err)
		}
		var gl group.Guild
		if err := json.Unmarshal([]byte(blob), &gl); err != nil {
			return nil, fmt.Errorf("decoding guild %d: %w", id, err)
		}
		table[id] = &gl
	}
	return table, nil
}

// SaveGuildTable replaces the persisted guild table with the given one.
func (g *Gateway) SaveGuildTable(ctx context.Context, table map[int64]*group.Guild) error {
	pipe := g.client.TxPipeline()
	pipe.Del(ctx, guildTableKey())
	for id, gl := range table {
		blob, err := json.Marshal(gl)
		if err != nil {
			return fmt.Errorf("encoding guild %d: %w", id, err)
		}
		pipe.HSet(ctx, guildTableKey(), strconv.FormatInt(id, 10), blob)
	}
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("writing guild table: %w", err)
	}
	return nil
}

// AppendAuditLog pushes the entry in the background. Failures are logged
// and never surfaced; gameplay must not block on audit writes.
func (g *Gateway) AppendAuditLog(scope, message string) {
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), auditTimeout)
		defer cancel()
		entry := fmt.Sprintf("%s %s", time.Now().UTC().Format(time.RFC3339), message)
		if err := g.client.RPush(ctx, auditKey(scope), entry).Err(); err != nil {
			g.logger.Warn("audit log push failed",
				zap.String("scope", scope),
				zap.Error(err),
			)
		}
	}()
}

// Close closes the Redis connection.
func (g *Gateway) Close() error {
	return g.client.Close()
}
