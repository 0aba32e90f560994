// Package account defines the durable account record and its merge semantics.
package account

import (
	"encoding/json"

	"golang.org/x/crypto/bcrypt"
)

// Facing direction constants for the direction field.
const (
	DirectionUp    = "up"
	DirectionDown  = "down"
	DirectionLeft  = "left"
	DirectionRight = "right"
)

// Record is the durable account record: credentials plus gameplay state.
// The server reads and writes only the fields it needs (credentials for
// authentication, position for session bootstrap, guildId for membership);
// inventory and variables pass through opaquely.
type Record struct {
	Username     string                     `json:"username"`
	PasswordHash string                     `json:"passwordHash,omitempty"`
	Gold         int                        `json:"gold"`
	Inventory    json.RawMessage            `json:"inventory"`
	MapID        int                        `json:"mapId"`
	X            int                        `json:"x"`
	Y            int                        `json:"y"`
	Direction    string                     `json:"direction"`
	Variables    map[string]json.RawMessage `json:"variables"`
	GuildID      *int64                     `json:"guildId,omitempty"`
}

// NewRecord creates a fresh record with default gameplay state: zero gold,
// empty inventory, the given spawn position, and no guild.
//
// Precondition: username and passwordHash must be non-empty.
func NewRecord(username, passwordHash string, mapID, x, y int) *Record {
	return &Record{
		Username:     username,
		PasswordHash: passwordHash,
		Gold:         0,
		Inventory:    json.RawMessage("[]"),
		MapID:        mapID,
		X:            x,
		Y:            y,
		Direction:    DirectionDown,
		Variables:    map[string]json.RawMessage{},
	}
}

// Clone returns a deep copy of the record.
func (r *Record) Clone() *Record {
	clone := *r
	if r.Inventory != nil {
		clone.Inventory = append(json.RawMessage(nil), r.Inventory...)
	}
	if r.Variables != nil {
		clone.Variables = make(map[string]json.RawMessage, len(r.Variables))
		for k, v := range r.Variables {
			clone.Variables[k] = append(json.RawMessage(nil), v...)
		}
	}
	if r.GuildID != nil {
		id := *r.GuildID
		clone.GuildID = &id
	}
	return &clone
}

// Sanitized returns a copy of the record with credentials stripped,
// suitable for sending to a client.
func (r *Record) Sanitized() *Record {
	clean := *r
	clean.PasswordHash = ""
	return &clean
}

// Patch is a partial update to a record. Absent fields (nil pointers) leave
// the stored value untouched; present fields overwrite it wholesale.
type Patch struct {
	// Username optionally names the record to update. The server ignores
	// patches naming anyone other than the caller.
	Username  string                     `json:"username,omitempty"`
	Gold      *int                       `json:"gold,omitempty"`
	Inventory json.RawMessage            `json:"inventory,omitempty"`
	MapID     *int                       `json:"mapId,omitempty"`
	X         *int                       `json:"x,omitempty"`
	Y         *int                       `json:"y,omitempty"`
	Direction *string                    `json:"direction,omitempty"`
	Variables map[string]json.RawMessage `json:"variables,omitempty"`
}

// HasPosition reports whether the patch touches any position field.
func (p Patch) HasPosition() bool {
	return p.MapID != nil || p.X != nil || p.Y != nil || p.Direction != nil
}

// Apply merges the patch into the record field by field. Fields absent from
// the patch are preserved.
//
// Postcondition: r reflects every field the patch named; all others are unchanged.
func (r *Record) Apply(p Patch) {
	if p.Gold != nil {
		r.Gold = *p.Gold
	}
	if p.Inventory != nil {
		r.Inventory = p.Inventory
	}
	if p.MapID != nil {
		r.MapID = *p.MapID
	}
	if p.X != nil {
		r.X = *p.X
	}
	if p.Y != nil {
		r.Y = *p.Y
	}
	if p.Direction != nil {
		r.Direction = *p.Direction
	}
	if p.Variables != nil {
		r.Variables = p.Variables
	}
}

// HashPassword creates a bcrypt hash of the given password.
//
// Precondition: password must be non-empty.
// Postcondition: Returns a bcrypt hash string.
func HashPassword(password string) (string, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return "", err
	}
	return string(hash), nil
}

// CheckPassword compares a plaintext password against a bcrypt hash.
//
// Postcondition: Returns true if password matches the hash.
func CheckPassword(password, hash string) bool {
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(password)) == nil
}
