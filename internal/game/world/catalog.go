// Package world provides the map catalog: the set of known maps and their
// spawn points. The catalog informs defaults for fresh accounts; it does not
// gate gameplay (clients may reference maps the catalog has never heard of).
package world

import "fmt"

// Map describes one world map.
type Map struct {
	// ID is the map's unique numeric identifier.
	ID int
	// Name is the human-readable map name.
	Name string
	// SpawnX and SpawnY are the default spawn coordinates.
	SpawnX int
	SpawnY int
	// Default marks the map new accounts spawn into.
	Default bool
}

// Validate checks the map's invariants.
//
// Postcondition: Returns nil if the map is well-formed.
func (m *Map) Validate() error {
	if m.ID < 0 {
		return fmt.Errorf("map id must be >= 0, got %d", m.ID)
	}
	if m.Name == "" {
		return fmt.Errorf("map %d has no name", m.ID)
	}
	return nil
}

// Catalog holds all known maps, keyed by id. Immutable after construction.
type Catalog struct {
	maps       map[int]*Map
	defaultMap *Map
}

// NewCatalog builds a Catalog from the given maps.
//
// Precondition: maps must be non-empty with unique ids.
// Postcondition: Returns a Catalog whose default map is the one flagged
// default, or the lowest-id map when none is flagged.
func NewCatalog(maps []*Map) (*Catalog, error) {
	if len(maps) == 0 {
		return nil, fmt.Errorf("catalog requires at least one map")
	}

	c := &Catalog{maps: make(map[int]*Map, len(maps))}
	for _, m := range maps {
		if _, dup := c.maps[m.ID]; dup {
			return nil, fmt.Errorf("duplicate map id %d", m.ID)
		}
		c.maps[m.ID] = m
		if m.Default {
			if c.defaultMap != nil {
				return nil, fmt.Errorf("maps %d and %d both flagged default", c.defaultMap.ID, m.ID)
			}
			c.defaultMap = m
		}
	}

	if c.defaultMap == nil {
		for _, m := range maps {
			if c.defaultMap == nil || m.ID < c.defaultMap.ID {
				c.defaultMap = m
			}
		}
	}

	return c, nil
}

// Get returns the map with the given id.
//
// Postcondition: Returns (map, true) if known, or (nil, false) otherwise.
func (c *Catalog) Get(id int) (*Map, bool) {
	m, ok := c.maps[id]
	return m, ok
}

// DefaultMap returns the map new accounts spawn into.
func (c *Catalog) DefaultMap() *Map {
	return c.defaultMap
}

// Count returns the number of known maps.
func (c *Catalog) Count() int {
	return len(c.maps)
}
