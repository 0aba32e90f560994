package session

import (
	"fmt"
	"sync"
)

// Session tracks one authenticated connection's live actor state.
// At most one Session exists per username.
type Session struct {
	// Username is the account username, immutable for the session's lifetime.
	Username string
	// MapID is the map the actor currently occupies.
	MapID int
	// X and Y are the actor's transient coordinates.
	X int
	Y int
	// Direction is the actor's facing direction.
	Direction string
	// PartyID references the actor's party, if any.
	PartyID *int64
	// GuildID references the actor's guild, if any.
	GuildID *int64
	// Outbox carries outbound events to the actor's connection.
	Outbox *Outbox
}

// Registry tracks all live sessions and map occupancy.
// All methods are safe for concurrent use.
type Registry struct {
	mu       sync.RWMutex
	sessions map[string]*Session     // username to session
	mapSets  map[int]map[string]bool // mapID to occupant set
}

// NewRegistry creates an empty session Registry.
func NewRegistry() *Registry {
	return &Registry{
		sessions: make(map[string]*Session),
		mapSets:  make(map[int]map[string]bool),
	}
}

// Add registers a new session at the given position, adopting the
// connection's outbox.
//
// Precondition: username must be non-empty; outbox must be non-nil and open.
// Postcondition: Returns the created Session, or an error if the username is
// already online (the existing session is never evicted).
func (r *Registry) Add(username string, mapID, x, y int, direction string, guildID *int64, outbox *Outbox) (*Session, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.sessions[username]; exists {
		return nil, fmt.Errorf("session %q already online", username)
	}

	sess := &Session{
		Username:  username,
		MapID:     mapID,
		X:         x,
		Y:         y,
		Direction: direction,
		GuildID:   guildID,
		Outbox:    outbox,
	}

	r.sessions[username] = sess
	if r.mapSets[mapID] == nil {
		r.mapSets[mapID] = make(map[string]bool)
	}
	r.mapSets[mapID][username] = true

	return sess, nil
}

// Remove deregisters a session and cleans up map occupancy.
//
// Postcondition: The session is removed and its outbox closed. Returns an
// error if not found.
func (r *Registry) Remove(username string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	sess, exists := r.sessions[username]
	if !exists {
		return fmt.Errorf("session %q not found", username)
	}

	if ms, ok := r.mapSets[sess.MapID]; ok {
		delete(ms, username)
		if len(ms) == 0 {
			delete(r.mapSets, sess.MapID)
		}
	}

	_ = sess.Outbox.Close()

	delete(r.sessions, username)
	return nil
}

// SetPosition updates a session's transient position, migrating map
// occupancy when the map changes.
//
// Postcondition: Returns the previous mapID, or an error if the session is not found.
func (r *Registry) SetPosition(username string, mapID, x, y int, direction string) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	sess, exists := r.sessions[username]
	if !exists {
		return 0, fmt.Errorf("session %q not found", username)
	}

	oldMapID := sess.MapID
	if mapID != oldMapID {
		if ms, ok := r.mapSets[oldMapID]; ok {
			delete(ms, username)
			if len(ms) == 0 {
				delete(r.mapSets, oldMapID)
			}
		}
		if r.mapSets[mapID] == nil {
			r.mapSets[mapID] = make(map[string]bool)
		}
		r.mapSets[mapID][username] = true
	}

	sess.MapID = mapID
	sess.X = x
	sess.Y = y
	sess.Direction = direction

	return oldMapID, nil
}

// Get returns the session for the given username.
//
// Postcondition: Returns (session, true) if found, or (nil, false) otherwise.
func (r *Registry) Get(username string) (*Session, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	sess, ok := r.sessions[username]
	return sess, ok
}

// Usernames returns every registered username.
func (r *Registry) Usernames() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	all := make([]string, 0, len(r.sessions))
	for username := range r.sessions {
		all = append(all, username)
	}
	return all
}

// UsernamesOnMap returns the usernames of all sessions on the given map.
//
// Postcondition: Returns a slice of usernames (may be empty).
func (r *Registry) UsernamesOnMap(mapID int) []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	set, ok := r.mapSets[mapID]
	if !ok {
		return nil
	}

	names := make([]string, 0, len(set))
	for username := range set {
		names = append(names, username)
	}
	return names
}

// Count returns the total number of live sessions.
func (r *Registry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.sessions)
}
