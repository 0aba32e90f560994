// Package group provides the party and guild membership state machines.
//
// Both group kinds share the same lifecycle: a group exists only while it has
// members, leadership falls to the first remaining member when the leader
// leaves, and draining the member set to zero deletes the group. Directories
// are not internally synchronized; callers serialize access (the realm core
// holds its world lock across every mutation).
package group

// Party is an ephemeral, in-memory group of online players.
type Party struct {
	ID      int64
	Leader  string
	Members []string
}

// HasMember reports whether username is in the party's member set.
func (p *Party) HasMember(username string) bool {
	for _, m := range p.Members {
		if m == username {
			return true
		}
	}
	return false
}

// PartyDirectory owns all live parties, keyed by a monotonic id.
type PartyDirectory struct {
	nextID  int64
	parties map[int64]*Party
}

// NewPartyDirectory creates an empty PartyDirectory.
func NewPartyDirectory() *PartyDirectory {
	return &PartyDirectory{
		nextID:  1,
		parties: make(map[int64]*Party),
	}
}

// Get returns the party with the given id.
//
// Postcondition: Returns (party, true) if it exists, or (nil, false) otherwise.
func (d *PartyDirectory) Get(id int64) (*Party, bool) {
	p, ok := d.parties[id]
	return p, ok
}

// Create makes a new party with leader as its sole member.
//
// Precondition: leader must be non-empty.
// Postcondition: Returns a party with a unique id and a one-element member set.
func (d *PartyDirectory) Create(leader string) *Party {
	p := &Party{
		ID:      d.nextID,
		Leader:  leader,
		Members: []string{leader},
	}
	d.nextID++
	d.parties[p.ID] = p
	return p
}

// Join appends username to the party's member set.
//
// Postcondition: Returns (party, true) on success, or (nil, false) if the
// party does not exist or username is already a member.
func (d *PartyDirectory) Join(id int64, username string) (*Party, bool) {
	p, ok := d.parties[id]
	if !ok || p.HasMember(username) {
		return nil, false
	}
	p.Members = append(p.Members, username)
	return p, true
}

// Leave removes username from the party. If the leaver was leader, leadership
// passes to the first remaining member. An emptied party is deleted.
//
// Postcondition: Returns (party, false) if members remain, (nil, true) if the
// party dissolved, or (nil, false) if it did not exist or username was not a member.
func (d *PartyDirectory) Leave(id int64, username string) (*Party, bool) {
	p, ok := d.parties[id]
	if !ok {
		return nil, false
	}
	if !removeMember(&p.Members, username) {
		return nil, false
	}
	if len(p.Members) == 0 {
		delete(d.parties, id)
		return nil, true
	}
	if p.Leader == username {
		p.Leader = p.Members[0]
	}
	return p, false
}

// Count returns the number of live parties.
func (d *PartyDirectory) Count() int {
	return len(d.parties)
}

// removeMember deletes username from members, preserving order.
// Returns false if username was not present.
func removeMember(members *[]string, username string) bool {
	for i, m := range *members {
		if m == username {
			*members = append((*members)[:i], (*members)[i+1:]...)
			return true
		}
	}
	return false
}
