// Package protocol defines the JSON message contract between clients and the
// realm server: the closed set of inbound client messages, the outbound
// response envelope, and the server-initiated events.
//
// Every unit on the wire is a typed record with a "type" discriminator.
// Decoding is permissive by contract: garbage, unknown verbs, and messages
// missing required fields for their asserted type decode to nil and are
// dropped without any reply.
package protocol

import "encoding/json"

// ClientMessage is the closed sum of inbound verbs. Dispatch switches on the
// concrete type; a new verb that is not handled everywhere shows up as a
// missing case during review rather than a silently ignored string.
type ClientMessage interface {
	clientMessage()
}

// Chat scopes.
const (
	ScopeGlobal = "global"
	ScopeParty  = "party"
	ScopeGuild  = "guild"
)

// Ping is a liveness check. The timestamp is opaque to the server and is
// echoed back unchanged.
type Ping struct {
	Timestamp json.RawMessage `json:"timestamp,omitempty"`
}

// CreateAccount registers a new durable record and authenticates the
// connection as its owner.
type CreateAccount struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

// Login authenticates the connection against an existing durable record.
type Login struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

// SaveData merges the carried fields into the caller's durable record. The
// payload is decoded by the account package; fields absent from it are
// preserved.
type SaveData struct {
	Data json.RawMessage `json:"data"`
}

// LoadData requests the caller's durable record.
type LoadData struct{}

// Move reports a position change on the caller's current map.
type Move struct {
	MapID     int    `json:"mapId"`
	X         int    `json:"x"`
	Y         int    `json:"y"`
	Direction string `json:"direction"`
}

// Chat carries a text message for a scope. TargetID names the party or guild
// for those scopes and is ignored for global.
type Chat struct {
	Scope    string `json:"scope"`
	Message  string `json:"message"`
	TargetID *int64 `json:"targetId,omitempty"`
}

// PartyInvite notifies a named online session of a party invitation.
type PartyInvite struct {
	Target string `json:"target"`
}

// PartyAccept joins the party rooted at the named inviter, creating it if
// the inviter has none yet.
type PartyAccept struct {
	Inviter string `json:"inviter"`
}

// PartyLeave removes the caller from its party.
type PartyLeave struct{}

// GuildCreate founds a new guild with the caller as sole member and leader.
type GuildCreate struct {
	Name string `json:"name"`
}

// GuildInvite notifies a named online session of a guild invitation.
// Leader-only.
type GuildInvite struct {
	Target string `json:"target"`
}

// GuildAccept joins the guild named by id. Guild invites carry the id.
type GuildAccept struct {
	GuildID int64 `json:"guildId"`
}

// GuildLeave removes the caller from its guild.
type GuildLeave struct{}

func (Ping) clientMessage()          {}
func (CreateAccount) clientMessage() {}
func (Login) clientMessage()         {}
func (SaveData) clientMessage()      {}
func (LoadData) clientMessage()      {}
func (Move) clientMessage()          {}
func (Chat) clientMessage()          {}
func (PartyInvite) clientMessage()   {}
func (PartyAccept) clientMessage()   {}
func (PartyLeave) clientMessage()    {}
func (GuildCreate) clientMessage()   {}
func (GuildInvite) clientMessage()   {}
func (GuildAccept) clientMessage()   {}
func (GuildLeave) clientMessage()    {}

// Verb returns the wire discriminator for a decoded message, used to build
// the "<verb>Response" type of its reply.
func Verb(msg ClientMessage) string {
	switch msg.(type) {
	case *Ping:
		return "ping"
	case *CreateAccount:
		return "createAccount"
	case *Login:
		return "login"
	case *SaveData:
		return "saveData"
	case *LoadData:
		return "loadData"
	case *Move:
		return "move"
	case *Chat:
		return "chat"
	case *PartyInvite:
		return "partyInvite"
	case *PartyAccept:
		return "partyAccept"
	case *PartyLeave:
		return "partyLeave"
	case *GuildCreate:
		return "guildCreate"
	case *GuildInvite:
		return "guildInvite"
	case *GuildAccept:
		return "guildAccept"
	case *GuildLeave:
		return "guildLeave"
	default:
		return ""
	}
}

// Decode parses one inbound frame. Returns nil for anything that does not
// form a complete, well-typed message: unparseable JSON, an unknown or
// missing type, or required fields absent for the asserted type. Nil means
// drop, never reply.
func Decode(data []byte) ClientMessage {
	var envelope struct {
		Type string `json:"type"`
	}
	if err := json.Unmarshal(data, &envelope); err != nil {
		return nil
	}

	switch envelope.Type {
	case "ping":
		msg := &Ping{}
		if json.Unmarshal(data, msg) != nil {
			return nil
		}
		return msg
	case "createAccount":
		msg := &CreateAccount{}
		if json.Unmarshal(data, msg) != nil || msg.Username == "" || msg.Password == "" {
			return nil
		}
		return msg
	case "login":
		msg := &Login{}
		if json.Unmarshal(data, msg) != nil || msg.Username == "" || msg.Password == "" {
			return nil
		}
		return msg
	case "saveData":
		msg := &SaveData{}
		if json.Unmarshal(data, msg) != nil || len(msg.Data) == 0 {
			return nil
		}
		return msg
	case "loadData":
		return &LoadData{}
	case "move":
		msg := &Move{}
		if json.Unmarshal(data, msg) != nil || msg.Direction == "" {
			return nil
		}
		return msg
	case "chat":
		msg := &Chat{}
		if json.Unmarshal(data, msg) != nil || msg.Message == "" {
			return nil
		}
		switch msg.Scope {
		case ScopeGlobal:
		case ScopeParty, ScopeGuild:
			if msg.TargetID == nil {
				return nil
			}
		default:
			return nil
		}
		return msg
	case "partyInvite":
		msg := &PartyInvite{}
		if json.Unmarshal(data, msg) != nil || msg.Target == "" {
			return nil
		}
		return msg
	case "partyAccept":
		msg := &PartyAccept{}
		if json.Unmarshal(data, msg) != nil || msg.Inviter == "" {
			return nil
		}
		return msg
	case "partyLeave":
		return &PartyLeave{}
	case "guildCreate":
		msg := &GuildCreate{}
		if json.Unmarshal(data, msg) != nil || msg.Name == "" {
			return nil
		}
		return msg
	case "guildInvite":
		msg := &GuildInvite{}
		if json.Unmarshal(data, msg) != nil || msg.Target == "" {
			return nil
		}
		return msg
	case "guildAccept":
		msg := &GuildAccept{}
		if json.Unmarshal(data, msg) != nil || msg.GuildID == 0 {
			return nil
		}
		return msg
	case "guildLeave":
		return &GuildLeave{}
	default:
		return nil
	}
}
