package postgres_test

import (
	"context"
	"encoding/json"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/openrealm/realmd/internal/game/account"
	"github.com/openrealm/realmd/internal/game/group"
	"github.com/openrealm/realmd/internal/storage"
	"github.com/openrealm/realmd/internal/storage/postgres"
	"github.com/openrealm/realmd/internal/testutil"
)

func uniqueName(prefix string) string {
	return fmt.Sprintf("%s_%d", prefix, time.Now().UnixNano())
}

func setupGateway(t *testing.T) *postgres.Gateway {
	t.Helper()
	pc := testutil.NewPostgresContainer(t)
	pc.ApplyMigrations(t)
	return postgres.NewGateway(pc.Pool, zap.NewNop())
}

func TestGateway_AccountRoundTrip(t *testing.T) {
	g := setupGateway(t)
	ctx := context.Background()
	username := uniqueName("alice")

	_, err := g.LoadAccount(ctx, username)
	assert.ErrorIs(t, err, storage.ErrAccountNotFound)

	rec := account.NewRecord(username, "hash", 1, 5, 9)
	rec.Gold = 42
	rec.Inventory = json.RawMessage(`[{"item":"pickaxe"}]`)
	require.NoError(t, g.SaveAccount(ctx, username, rec))

	got, err := g.LoadAccount(ctx, username)
	require.NoError(t, err)
	assert.Equal(t, username, got.Username)
	assert.Equal(t, 42, got.Gold)
	assert.Equal(t, 1, got.MapID)
	assert.Equal(t, 5, got.X)
	assert.Equal(t, 9, got.Y)
	assert.JSONEq(t, `[{"item":"pickaxe"}]`, string(got.Inventory))

	exists, err := g.AccountExists(ctx, username)
	require.NoError(t, err)
	assert.True(t, exists)
}

func TestGateway_SaveAccountOverwrites(t *testing.T) {
	g := setupGateway(t)
	ctx := context.Background()
	username := uniqueName("bob")

	rec := account.NewRecord(username, "hash", 1, 0, 0)
	require.NoError(t, g.SaveAccount(ctx, username, rec))

	rec.Gold = 100
	gid := int64(7)
	rec.GuildID = &gid
	require.NoError(t, g.SaveAccount(ctx, username, rec))

	got, err := g.LoadAccount(ctx, username)
	require.NoError(t, err)
	assert.Equal(t, 100, got.Gold)
	require.NotNil(t, got.GuildID)
	assert.Equal(t, int64(7), *got.GuildID)
}

func TestGateway_GuildTableRoundTrip(t *testing.T) {
	g := setupGateway(t)
	ctx := context.Background()

	table, err := g.LoadGuildTable(ctx)
	require.NoError(t, err)
	assert.Empty(t, table)

	saved := map[int64]*group.Guild{
		1: {ID: 1, Name: "Iron Pact", Leader: "alice", Members: []string{"alice", "bob"}},
		2: {ID: 2, Name: "Night Watch", Leader: "carol", Members: []string{"carol"}},
	}
	require.NoError(t, g.SaveGuildTable(ctx, saved))

	got, err := g.LoadGuildTable(ctx)
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, "Iron Pact", got[1].Name)
	assert.Equal(t, []string{"alice", "bob"}, got[1].Members)
	assert.Equal(t, "carol", got[2].Leader)

	// Full-overwrite semantics: a save with one guild drops the other.
	require.NoError(t, g.SaveGuildTable(ctx, map[int64]*group.Guild{
		2: saved[2],
	}))
	got, err = g.LoadGuildTable(ctx)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Contains(t, got, int64(2))
}

func TestGateway_AppendAuditLog(t *testing.T) {
	pc := testutil.NewPostgresContainer(t)
	pc.ApplyMigrations(t)
	g := postgres.NewGateway(pc.Pool, zap.NewNop())
	ctx := context.Background()

	g.AppendAuditLog("auth", "alice logged in")

	// The insert is asynchronous; poll briefly.
	var count int
	require.Eventually(t, func() bool {
		err := pc.RawPool.QueryRow(ctx,
			`SELECT COUNT(*) FROM audit_log WHERE scope = 'auth'`,
		).Scan(&count)
		return err == nil && count == 1
	}, 5*time.Second, 50*time.Millisecond)
}
