package group

// Guild is a durable named group. Unlike parties, the guild table and each
// member's record are persisted whenever the roster changes; the directory
// itself only holds the in-memory view.
type Guild struct {
	ID      int64    `json:"id"`
	Name    string   `json:"name"`
	Leader  string   `json:"leader"`
	Members []string `json:"members"`
}

// HasMember reports whether username is in the guild's member set.
func (g *Guild) HasMember(username string) bool {
	for _, m := range g.Members {
		if m == username {
			return true
		}
	}
	return false
}

// clone returns a deep copy of the guild.
func (g *Guild) clone() *Guild {
	members := make([]string, len(g.Members))
	copy(members, g.Members)
	return &Guild{ID: g.ID, Name: g.Name, Leader: g.Leader, Members: members}
}

// GuildDirectory owns all guilds, keyed by a monotonic id. The table is
// seeded from durable storage at startup; ids never repeat across restarts
// because the counter resumes past the highest seen id.
type GuildDirectory struct {
	nextID int64
	guilds map[int64]*Guild
}

// NewGuildDirectory creates a GuildDirectory seeded with the given table.
//
// Postcondition: Returns a directory whose next id is greater than any seeded id.
func NewGuildDirectory(table map[int64]*Guild) *GuildDirectory {
	d := &GuildDirectory{
		nextID: 1,
		guilds: make(map[int64]*Guild, len(table)),
	}
	for id, g := range table {
		d.guilds[id] = g.clone()
		if id >= d.nextID {
			d.nextID = id + 1
		}
	}
	return d
}

// Get returns the guild with the given id.
//
// Postcondition: Returns (guild, true) if it exists, or (nil, false) otherwise.
func (d *GuildDirectory) Get(id int64) (*Guild, bool) {
	g, ok := d.guilds[id]
	return g, ok
}

// Create makes a new guild with leader as its sole member.
//
// Precondition: name and leader must be non-empty.
// Postcondition: Returns a guild with a unique id and a one-element member set.
func (d *GuildDirectory) Create(name, leader string) *Guild {
	g := &Guild{
		ID:      d.nextID,
		Name:    name,
		Leader:  leader,
		Members: []string{leader},
	}
	d.nextID++
	d.guilds[g.ID] = g
	return g
}

// Join appends username to the guild's member set.
//
// Postcondition: Returns (guild, true) on success, or (nil, false) if the
// guild does not exist or username is already a member.
func (d *GuildDirectory) Join(id int64, username string) (*Guild, bool) {
	g, ok := d.guilds[id]
	if !ok || g.HasMember(username) {
		return nil, false
	}
	g.Members = append(g.Members, username)
	return g, true
}

// Leave removes username from the guild. If the leaver was leader, leadership
// passes to the first remaining member. An emptied guild is deleted.
//
// Postcondition: Returns (guild, false) if members remain, (nil, true) if the
// guild dissolved, or (nil, false) if it did not exist or username was not a member.
func (d *GuildDirectory) Leave(id int64, username string) (*Guild, bool) {
	g, ok := d.guilds[id]
	if !ok {
		return nil, false
	}
	if !removeMember(&g.Members, username) {
		return nil, false
	}
	if len(g.Members) == 0 {
		delete(d.guilds, id)
		return nil, true
	}
	if g.Leader == username {
		g.Leader = g.Members[0]
	}
	return g, false
}

// Snapshot returns a deep copy of the guild, taken before a roster change so
// the change can be undone if its persistence fails.
//
// Postcondition: Returns (copy, true) if the guild exists, or (nil, false) otherwise.
func (d *GuildDirectory) Snapshot(id int64) (*Guild, bool) {
	g, ok := d.guilds[id]
	if !ok {
		return nil, false
	}
	return g.clone(), true
}

// Restore reinstates a guild snapshot, overwriting any live entry with the
// same id and resurrecting a dissolved guild.
func (d *GuildDirectory) Restore(g *Guild) {
	d.guilds[g.ID] = g.clone()
}

// Count returns the number of live guilds.
func (d *GuildDirectory) Count() int {
	return len(d.guilds)
}

// Table returns a deep copy of the guild table, keyed by id, for persistence.
func (d *GuildDirectory) Table() map[int64]*Guild {
	table := make(map[int64]*Guild, len(d.guilds))
	for id, g := range d.guilds {
		table[id] = g.clone()
	}
	return table
}
