package realmserver

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDisconnect_FullCleanup(t *testing.T) {
	h := newHarness(t)
	alice, bob := twoOnMap(t, h)

	bob.send(t, `{"type":"partyAccept","inviter":"alice"}`)
	alice.drain()
	bob.drain()

	alice.send(t, `{"type":"move","mapId":1,"x":33,"y":44,"direction":"up"}`)
	bob.drain()

	alice.client.HandleDisconnect()

	// Bob sees the party shrink and the presence departure.
	update := bob.recv(t)
	assert.Equal(t, "partyUpdate", update["type"])
	assert.Equal(t, "bob", update["leader"])
	assert.Equal(t, []any{"bob"}, update["members"])

	leave := bob.recv(t)
	assert.Equal(t, "playerLeave", leave["type"])
	assert.Equal(t, "alice", leave["username"])

	// The session is gone, the outbox is closed, and the position was
	// persisted.
	_, online := h.core.sessions.Get("alice")
	assert.False(t, online)
	assert.Equal(t, 1, h.core.SessionCount())
	assert.True(t, alice.outbox.IsClosed())

	rec, err := h.store.LoadAccount(context.Background(), "alice")
	require.NoError(t, err)
	assert.Equal(t, 33, rec.X)
	assert.Equal(t, 44, rec.Y)
	assert.Equal(t, "up", rec.Direction)
}

func TestDisconnect_SoleMemberDissolvesParty(t *testing.T) {
	h := newHarness(t)
	alice, bob := twoOnMap(t, h)

	bob.send(t, `{"type":"partyAccept","inviter":"alice"}`)
	alice.drain()
	bob.drain()
	bob.send(t, `{"type":"partyLeave"}`)
	alice.drain()

	alice.client.HandleDisconnect()
	assert.Equal(t, 0, h.core.parties.Count())
}

func TestDisconnect_Idempotent(t *testing.T) {
	h := newHarness(t)
	alice := h.createAccount(t, "alice", "pw1")

	alice.client.HandleDisconnect()
	alice.client.HandleDisconnect()
	assert.Equal(t, 0, h.core.SessionCount())
}

func TestDisconnect_UnauthenticatedLeavesNoTrace(t *testing.T) {
	h := newHarness(t)
	tc := h.connect(t)

	tc.client.HandleDisconnect()
	assert.Equal(t, 0, h.core.SessionCount())
	assert.True(t, tc.outbox.IsClosed())
	assert.False(t, tc.closed.Load(), "the auth timer must not fire after disconnect")
}

func TestDisconnect_OnlyAffectsOwnSession(t *testing.T) {
	h := newHarness(t)
	alice, bob := twoOnMap(t, h)
	_ = alice

	alice.client.HandleDisconnect()
	bob.drain()

	// Bob's session keeps working after alice's teardown.
	bob.send(t, `{"type":"loadData"}`)
	resp := bob.recv(t)
	assert.Equal(t, true, resp["success"])
}

func TestDisconnect_WritesAudit(t *testing.T) {
	h := newHarness(t)
	alice := h.createAccount(t, "alice", "pw1")
	alice.client.HandleDisconnect()

	var found bool
	for _, entry := range h.store.AuditEntries() {
		if entry.Scope == "session" {
			found = true
		}
	}
	assert.True(t, found, "disconnect must append a session audit entry")
}
