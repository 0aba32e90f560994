package session

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"pgregory.net/rapid"
)

func TestOutbox_Push(t *testing.T) {
	o := NewOutbox("alice", 4)
	require.NoError(t, o.Push([]byte("hello")))

	data := <-o.Events()
	assert.Equal(t, []byte("hello"), data)
}

func TestOutbox_PushClosed(t *testing.T) {
	o := NewOutbox("alice", 4)
	require.NoError(t, o.Close())
	assert.True(t, o.IsClosed())
	assert.Error(t, o.Push([]byte("fail")))
}

func TestOutbox_PushFull(t *testing.T) {
	o := NewOutbox("alice", 1)
	require.NoError(t, o.Push([]byte("first")))
	err := o.Push([]byte("overflow"))
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "buffer full")
}

func TestOutbox_CloseIdempotent(t *testing.T) {
	o := NewOutbox("alice", 4)
	require.NoError(t, o.Close())
	require.NoError(t, o.Close())
	assert.True(t, o.IsClosed())
}

func TestRegistry_Add(t *testing.T) {
	r := NewRegistry()
	sess, err := r.Add("alice", 1, 4, 7, "down", nil, NewOutbox("c1", 8))
	require.NoError(t, err)
	assert.Equal(t, "alice", sess.Username)
	assert.Equal(t, 1, sess.MapID)
	assert.Equal(t, 1, r.Count())
	assert.ElementsMatch(t, []string{"alice"}, r.UsernamesOnMap(1))
}

func TestRegistry_AddDuplicateNeverEvicts(t *testing.T) {
	r := NewRegistry()
	first, err := r.Add("alice", 1, 0, 0, "down", nil, NewOutbox("c1", 8))
	require.NoError(t, err)

	_, err = r.Add("alice", 2, 5, 5, "up", nil, NewOutbox("c2", 8))
	assert.Error(t, err)

	got, ok := r.Get("alice")
	require.True(t, ok)
	assert.Same(t, first, got, "existing session must survive a duplicate add")
	assert.Equal(t, 1, got.MapID)
}

func TestRegistry_Remove(t *testing.T) {
	r := NewRegistry()
	sess, err := r.Add("alice", 1, 0, 0, "down", nil, NewOutbox("c1", 8))
	require.NoError(t, err)

	require.NoError(t, r.Remove("alice"))
	assert.Equal(t, 0, r.Count())
	assert.Empty(t, r.UsernamesOnMap(1))
	assert.True(t, sess.Outbox.IsClosed())

	assert.Error(t, r.Remove("alice"))
}

func TestRegistry_SetPositionSameMap(t *testing.T) {
	r := NewRegistry()
	_, err := r.Add("alice", 1, 0, 0, "down", nil, NewOutbox("c1", 8))
	require.NoError(t, err)

	oldMap, err := r.SetPosition("alice", 1, 5, 5, "left")
	require.NoError(t, err)
	assert.Equal(t, 1, oldMap)

	sess, _ := r.Get("alice")
	assert.Equal(t, 5, sess.X)
	assert.Equal(t, 5, sess.Y)
	assert.Equal(t, "left", sess.Direction)
}

func TestRegistry_SetPositionMigratesMaps(t *testing.T) {
	r := NewRegistry()
	_, err := r.Add("alice", 1, 0, 0, "down", nil, NewOutbox("c1", 8))
	require.NoError(t, err)

	oldMap, err := r.SetPosition("alice", 2, 3, 3, "up")
	require.NoError(t, err)
	assert.Equal(t, 1, oldMap)
	assert.Empty(t, r.UsernamesOnMap(1))
	assert.ElementsMatch(t, []string{"alice"}, r.UsernamesOnMap(2))
}

func TestRegistry_SetPositionUnknown(t *testing.T) {
	r := NewRegistry()
	_, err := r.SetPosition("ghost", 1, 0, 0, "down")
	assert.Error(t, err)
}

// Property: map occupancy always partitions the registered sessions. Every
// session is in exactly the occupancy set of its current map, and the sets
// sum to the session count.
func TestPropertyRegistryOccupancy(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		r := NewRegistry()
		maps := []int{1, 2, 3}
		numSessions := rapid.IntRange(1, 20).Draw(t, "num_sessions")

		for i := 0; i < numSessions; i++ {
			mapID := rapid.SampledFrom(maps).Draw(t, "map_id")
			_, _ = r.Add(fmt.Sprintf("u%d", i), mapID, 0, 0, "down", nil, NewOutbox(fmt.Sprintf("c%d", i), 8))
		}

		numMoves := rapid.IntRange(0, numSessions*2).Draw(t, "num_moves")
		for i := 0; i < numMoves; i++ {
			idx := rapid.IntRange(0, numSessions-1).Draw(t, "move_session")
			mapID := rapid.SampledFrom(maps).Draw(t, "move_map")
			_, _ = r.SetPosition(fmt.Sprintf("u%d", idx), mapID, i, i, "up")
		}

		numRemoves := rapid.IntRange(0, numSessions/2).Draw(t, "num_removes")
		for i := 0; i < numRemoves; i++ {
			idx := rapid.IntRange(0, numSessions-1).Draw(t, "remove_session")
			_ = r.Remove(fmt.Sprintf("u%d", idx))
		}

		total := 0
		for _, mapID := range maps {
			for _, username := range r.UsernamesOnMap(mapID) {
				sess, ok := r.Get(username)
				if !ok {
					t.Fatalf("occupant %q of map %d has no session", username, mapID)
				}
				if sess.MapID != mapID {
					t.Fatalf("session %q on map %d listed under map %d", username, sess.MapID, mapID)
				}
				total++
			}
		}
		if total != r.Count() {
			t.Fatalf("map occupancy sum %d != session count %d", total, r.Count())
		}
	})
}
