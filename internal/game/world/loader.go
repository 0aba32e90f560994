package world

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

// yamlMapFile is the top-level YAML structure for map files.
type yamlMapFile struct {
	Map yamlMap `yaml:"map"`
}

// yamlMap is the YAML representation of a map.
type yamlMap struct {
	ID      int    `yaml:"id"`
	Name    string `yaml:"name"`
	SpawnX  int    `yaml:"spawn_x"`
	SpawnY  int    `yaml:"spawn_y"`
	Default bool   `yaml:"default"`
}

// LoadMapFromBytes parses and validates a map from YAML bytes.
//
// Precondition: data must be valid YAML conforming to the map schema.
// Postcondition: Returns a validated Map or a non-nil error.
func LoadMapFromBytes(data []byte) (*Map, error) {
	var file yamlMapFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("parsing map YAML: %w", err)
	}

	m := &Map{
		ID:      file.Map.ID,
		Name:    file.Map.Name,
		SpawnX:  file.Map.SpawnX,
		SpawnY:  file.Map.SpawnY,
		Default: file.Map.Default,
	}
	if err := m.Validate(); err != nil {
		return nil, fmt.Errorf("validating map: %w", err)
	}
	return m, nil
}

// LoadMapFromFile reads and validates a single map YAML file.
//
// Precondition: path must point to a valid YAML map file.
// Postcondition: Returns a validated Map or a non-nil error.
func LoadMapFromFile(path string) (*Map, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading map file %s: %w", path, err)
	}
	return LoadMapFromBytes(data)
}

// LoadCatalogFromDir loads all YAML files in a directory as maps and builds
// the catalog.
//
// Precondition: dir must be a valid directory path.
// Postcondition: Returns a catalog of all validated maps or the first error encountered.
func LoadCatalogFromDir(dir string) (*Catalog, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("reading maps directory %s: %w", dir, err)
	}

	var maps []*Map
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		name := entry.Name()
		if !strings.HasSuffix(name, ".yaml") && !strings.HasSuffix(name, ".yml") {
			continue
		}
		m, err := LoadMapFromFile(filepath.Join(dir, name))
		if err != nil {
			return nil, fmt.Errorf("loading map %s: %w", name, err)
		}
		maps = append(maps, m)
	}

	return NewCatalog(maps)
}
