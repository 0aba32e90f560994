package account

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"pgregory.net/rapid"
)

func TestNewRecord_Defaults(t *testing.T) {
	r := NewRecord("alice", "hash", 1, 4, 7)
	assert.Equal(t, "alice", r.Username)
	assert.Equal(t, 0, r.Gold)
	assert.Equal(t, json.RawMessage("[]"), r.Inventory)
	assert.Equal(t, 1, r.MapID)
	assert.Equal(t, 4, r.X)
	assert.Equal(t, 7, r.Y)
	assert.Equal(t, DirectionDown, r.Direction)
	assert.Nil(t, r.GuildID)
	assert.NotNil(t, r.Variables)
}

func TestSanitized_StripsHash(t *testing.T) {
	r := NewRecord("alice", "hash", 1, 0, 0)
	clean := r.Sanitized()
	assert.Empty(t, clean.PasswordHash)
	assert.Equal(t, "hash", r.PasswordHash, "original must be untouched")
	assert.Equal(t, "alice", clean.Username)
}

func TestApply_PartialOverwrite(t *testing.T) {
	r := NewRecord("alice", "hash", 1, 0, 0)
	r.Gold = 250

	gold := 300
	x := 5
	r.Apply(Patch{Gold: &gold, X: &x})

	assert.Equal(t, 300, r.Gold)
	assert.Equal(t, 5, r.X)
	// Untouched fields survive the merge.
	assert.Equal(t, 1, r.MapID)
	assert.Equal(t, 0, r.Y)
	assert.Equal(t, DirectionDown, r.Direction)
	assert.Equal(t, "hash", r.PasswordHash)
}

func TestApply_EmptyPatchIsNoop(t *testing.T) {
	r := NewRecord("alice", "hash", 2, 3, 4)
	before := *r
	r.Apply(Patch{})
	assert.Equal(t, before, *r)
}

func TestApply_OpaqueFields(t *testing.T) {
	r := NewRecord("alice", "hash", 1, 0, 0)
	r.Apply(Patch{
		Inventory: json.RawMessage(`[{"item":"sword","qty":1}]`),
		Variables: map[string]json.RawMessage{"questStage": json.RawMessage(`3`)},
	})
	assert.JSONEq(t, `[{"item":"sword","qty":1}]`, string(r.Inventory))
	assert.JSONEq(t, `3`, string(r.Variables["questStage"]))
}

func TestPatch_HasPosition(t *testing.T) {
	assert.False(t, Patch{}.HasPosition())
	gold := 1
	assert.False(t, Patch{Gold: &gold}.HasPosition())

	x := 1
	assert.True(t, Patch{X: &x}.HasPosition())
	mapID := 2
	assert.True(t, Patch{MapID: &mapID}.HasPosition())
	dir := DirectionLeft
	assert.True(t, Patch{Direction: &dir}.HasPosition())
}

func TestPatch_DecodeAbsentVsZero(t *testing.T) {
	var p Patch
	require.NoError(t, json.Unmarshal([]byte(`{"x":0}`), &p))
	require.NotNil(t, p.X)
	assert.Equal(t, 0, *p.X)
	assert.Nil(t, p.Y, "absent field must stay nil")
}

func TestCheckPassword(t *testing.T) {
	hash, err := HashPassword("secret123")
	require.NoError(t, err)
	assert.NotEqual(t, "secret123", hash)
	assert.True(t, CheckPassword("secret123", hash))
	assert.False(t, CheckPassword("wrong", hash))
}

// Property: applying a patch then re-reading yields exactly the patched
// fields, with every untouched field preserved.
func TestPropertyApplyPreservesUntouched(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		r := NewRecord("alice", "hash", 1, 2, 3)
		r.Gold = rapid.IntRange(0, 10000).Draw(t, "initial_gold")

		var p Patch
		if rapid.Bool().Draw(t, "set_gold") {
			g := rapid.IntRange(0, 10000).Draw(t, "gold")
			p.Gold = &g
		}
		if rapid.Bool().Draw(t, "set_x") {
			x := rapid.IntRange(-100, 100).Draw(t, "x")
			p.X = &x
		}
		if rapid.Bool().Draw(t, "set_dir") {
			d := rapid.SampledFrom([]string{
				DirectionUp, DirectionDown, DirectionLeft, DirectionRight,
			}).Draw(t, "dir")
			p.Direction = &d
		}

		before := *r
		r.Apply(p)

		if p.Gold != nil {
			assert.Equal(t, *p.Gold, r.Gold)
		} else {
			assert.Equal(t, before.Gold, r.Gold)
		}
		if p.X != nil {
			assert.Equal(t, *p.X, r.X)
		} else {
			assert.Equal(t, before.X, r.X)
		}
		if p.Direction != nil {
			assert.Equal(t, *p.Direction, r.Direction)
		} else {
			assert.Equal(t, before.Direction, r.Direction)
		}
		assert.Equal(t, before.MapID, r.MapID)
		assert.Equal(t, before.Y, r.Y)
		assert.Equal(t, before.Username, r.Username)
		assert.Equal(t, before.PasswordHash, r.PasswordHash)
	})
}
