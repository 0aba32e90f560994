package realmserver

import (
	"context"
	"encoding/json"
	"fmt"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/openrealm/realmd/internal/config"
	"github.com/openrealm/realmd/internal/game/session"
	"github.com/openrealm/realmd/internal/game/world"
	"github.com/openrealm/realmd/internal/storage"
	"github.com/openrealm/realmd/internal/storage/memory"
)

// harness wires a Core against the in-memory gateway and a two-map catalog.
type harness struct {
	core  *Core
	store *memory.Gateway
	conns int
}

func newHarness(t *testing.T) *harness {
	return newHarnessWithTimeout(t, 5*time.Second)
}

func newHarnessWithTimeout(t *testing.T, authTimeout time.Duration) *harness {
	t.Helper()
	store := memory.New()
	h := newHarnessWithGateway(t, store, authTimeout)
	h.store = store
	return h
}

// newHarnessWithGateway wires the core against a caller-supplied gateway, for
// failure-injection tests.
func newHarnessWithGateway(t *testing.T, gw storage.Gateway, authTimeout time.Duration) *harness {
	t.Helper()

	catalog, err := world.NewCatalog([]*world.Map{
		{ID: 1, Name: "Overworld", SpawnX: 10, SpawnY: 10, Default: true},
		{ID: 2, Name: "Cavern", SpawnX: 3, SpawnY: 3},
	})
	require.NoError(t, err)

	cfg := config.ServerConfig{
		AuthTimeout: authTimeout,
		OutboxSize:  64,
	}
	core, err := NewCore(context.Background(), gw, catalog, cfg, zap.NewNop())
	require.NoError(t, err)

	return &harness{core: core}
}

// testClient pairs a Client with its outbox so tests can read what the core
// pushed to the connection.
type testClient struct {
	client *Client
	outbox *session.Outbox
	closed atomic.Bool
}

// connect creates a new client as the transport would.
func (h *harness) connect(t *testing.T) *testClient {
	t.Helper()
	h.conns++
	id := fmt.Sprintf("conn-%d", h.conns)
	tc := &testClient{outbox: session.NewOutbox(id, 64)}
	tc.client = NewClient(id, h.core, tc.outbox, func() { tc.closed.Store(true) })
	return tc
}

// createAccount connects and authenticates via account creation, consuming
// the response and the initial map snapshot.
func (h *harness) createAccount(t *testing.T, username, password string) *testClient {
	t.Helper()
	tc := h.connect(t)
	tc.send(t, fmt.Sprintf(`{"type":"createAccount","username":%q,"password":%q}`, username, password))

	resp := tc.recv(t)
	require.Equal(t, "createAccountResponse", resp["type"])
	require.Equal(t, true, resp["success"])

	snapshot := tc.recv(t)
	require.Equal(t, "mapSnapshot", snapshot["type"])
	return tc
}

// login connects and authenticates an existing account, consuming the
// response and the initial map snapshot.
func (h *harness) login(t *testing.T, username, password string) *testClient {
	t.Helper()
	tc := h.connect(t)
	tc.send(t, fmt.Sprintf(`{"type":"login","username":%q,"password":%q}`, username, password))

	resp := tc.recv(t)
	require.Equal(t, "loginResponse", resp["type"])
	require.Equal(t, true, resp["success"])

	snapshot := tc.recv(t)
	require.Equal(t, "mapSnapshot", snapshot["type"])
	return tc
}

func (tc *testClient) send(t *testing.T, raw string) {
	t.Helper()
	tc.client.HandleMessage([]byte(raw))
}

// recv pops the next queued outbound message. HandleMessage is synchronous,
// so everything a handler emitted is already buffered when it returns.
func (tc *testClient) recv(t *testing.T) map[string]any {
	t.Helper()
	select {
	case data, ok := <-tc.outbox.Events():
		require.True(t, ok, "outbox closed while expecting a message")
		var decoded map[string]any
		require.NoError(t, json.Unmarshal(data, &decoded))
		return decoded
	default:
		t.Fatal("expected a queued message, outbox is empty")
		return nil
	}
}

// expectSilence asserts no message is queued for the connection.
func (tc *testClient) expectSilence(t *testing.T) {
	t.Helper()
	select {
	case data := <-tc.outbox.Events():
		t.Fatalf("expected no message, got %s", data)
	default:
	}
}

// drain discards everything currently queued.
func (tc *testClient) drain() {
	for {
		select {
		case <-tc.outbox.Events():
		default:
			return
		}
	}
}

// data extracts the "data" object of a response envelope.
func data(t *testing.T, msg map[string]any) map[string]any {
	t.Helper()
	payload, ok := msg["data"].(map[string]any)
	require.True(t, ok, "response has no data object: %v", msg)
	return payload
}
