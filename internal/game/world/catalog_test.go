package world

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewCatalog_Empty(t *testing.T) {
	_, err := NewCatalog(nil)
	assert.Error(t, err)
}

func TestNewCatalog_DuplicateID(t *testing.T) {
	_, err := NewCatalog([]*Map{
		{ID: 1, Name: "A"},
		{ID: 1, Name: "B"},
	})
	assert.Error(t, err)
}

func TestNewCatalog_DefaultFlag(t *testing.T) {
	c, err := NewCatalog([]*Map{
		{ID: 1, Name: "Fields"},
		{ID: 2, Name: "Caves", Default: true},
	})
	require.NoError(t, err)
	assert.Equal(t, 2, c.DefaultMap().ID)
	assert.Equal(t, 2, c.Count())
}

func TestNewCatalog_FallbackDefault(t *testing.T) {
	c, err := NewCatalog([]*Map{
		{ID: 5, Name: "Caves"},
		{ID: 1, Name: "Fields"},
	})
	require.NoError(t, err)
	assert.Equal(t, 1, c.DefaultMap().ID, "lowest id wins when no default is flagged")
}

func TestNewCatalog_TwoDefaults(t *testing.T) {
	_, err := NewCatalog([]*Map{
		{ID: 1, Name: "A", Default: true},
		{ID: 2, Name: "B", Default: true},
	})
	assert.Error(t, err)
}

func TestLoadMapFromBytes(t *testing.T) {
	m, err := LoadMapFromBytes([]byte(`
map:
  id: 3
  name: Verdant Fields
  spawn_x: 10
  spawn_y: 12
  default: true
`))
	require.NoError(t, err)
	assert.Equal(t, 3, m.ID)
	assert.Equal(t, "Verdant Fields", m.Name)
	assert.Equal(t, 10, m.SpawnX)
	assert.Equal(t, 12, m.SpawnY)
	assert.True(t, m.Default)
}

func TestLoadMapFromBytes_Invalid(t *testing.T) {
	_, err := LoadMapFromBytes([]byte(`map: {id: 1}`))
	assert.Error(t, err, "missing name must fail validation")

	_, err = LoadMapFromBytes([]byte(`{{not yaml`))
	assert.Error(t, err)
}

func TestLoadCatalogFromDir(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "fields.yaml"), []byte(`
map:
  id: 1
  name: Verdant Fields
  spawn_x: 4
  spawn_y: 4
  default: true
`), 0644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "caves.yml"), []byte(`
map:
  id: 2
  name: Echo Caves
  spawn_x: 0
  spawn_y: 0
`), 0644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "notes.txt"), []byte("ignored"), 0644))

	c, err := LoadCatalogFromDir(dir)
	require.NoError(t, err)
	assert.Equal(t, 2, c.Count())
	assert.Equal(t, 1, c.DefaultMap().ID)

	caves, ok := c.Get(2)
	require.True(t, ok)
	assert.Equal(t, "Echo Caves", caves.Name)

	_, ok = c.Get(99)
	assert.False(t, ok)
}

func TestLoadCatalogFromDir_MissingDir(t *testing.T) {
	_, err := LoadCatalogFromDir("/nonexistent/maps")
	assert.Error(t, err)
}
