package protocol

import "encoding/json"

// Response envelope. Every reply to a client verb is
// {"type":"<verb>Response","success":bool} plus either a data payload or an
// error code. This shape is the compatibility surface existing clients
// depend on and must not change.
type responseEnvelope struct {
	Type    string `json:"type"`
	Success bool   `json:"success"`
	Data    any    `json:"data,omitempty"`
	Error   string `json:"error,omitempty"`
}

// Response builds a success reply for the given verb. Data may be nil, in
// which case the envelope carries only type and success.
func Response(verb string, data any) ([]byte, error) {
	return json.Marshal(responseEnvelope{
		Type:    verb + "Response",
		Success: true,
		Data:    data,
	})
}

// ErrorResponse builds a failure reply carrying a wire error code.
func ErrorResponse(verb string, code string) ([]byte, error) {
	return json.Marshal(responseEnvelope{
		Type:    verb + "Response",
		Success: false,
		Error:   code,
	})
}

// PlayerState is one occupant's position as carried in presence events.
type PlayerState struct {
	Username  string `json:"username"`
	X         int    `json:"x"`
	Y         int    `json:"y"`
	Direction string `json:"direction"`
}

type playerJoinEvent struct {
	Type string `json:"type"`
	PlayerState
}

type playerLeaveEvent struct {
	Type     string `json:"type"`
	Username string `json:"username"`
}

type playerMoveEvent struct {
	Type string `json:"type"`
	PlayerState
}

type mapSnapshotEvent struct {
	Type    string        `json:"type"`
	MapID   int           `json:"mapId"`
	Players []PlayerState `json:"players"`
}

type chatMessageEvent struct {
	Type    string `json:"type"`
	Scope   string `json:"scope"`
	From    string `json:"from"`
	Message string `json:"message"`
}

type partyInviteEvent struct {
	Type string `json:"type"`
	From string `json:"from"`
}

type partyUpdateEvent struct {
	Type    string   `json:"type"`
	PartyID int64    `json:"partyId"`
	Leader  string   `json:"leader"`
	Members []string `json:"members"`
}

type guildInviteEvent struct {
	Type    string `json:"type"`
	GuildID int64  `json:"guildId"`
	Name    string `json:"name"`
	From    string `json:"from"`
}

type guildUpdateEvent struct {
	Type    string   `json:"type"`
	GuildID int64    `json:"guildId"`
	Name    string   `json:"name"`
	Leader  string   `json:"leader"`
	Members []string `json:"members"`
}

// PlayerJoinEvent announces a new occupant to its map.
func PlayerJoinEvent(state PlayerState) ([]byte, error) {
	return json.Marshal(playerJoinEvent{Type: "playerJoin", PlayerState: state})
}

// PlayerLeaveEvent announces a departing occupant to its map.
func PlayerLeaveEvent(username string) ([]byte, error) {
	return json.Marshal(playerLeaveEvent{Type: "playerLeave", Username: username})
}

// PlayerMoveEvent announces a position change to the occupant's map.
func PlayerMoveEvent(state PlayerState) ([]byte, error) {
	return json.Marshal(playerMoveEvent{Type: "playerMove", PlayerState: state})
}

// MapSnapshotEvent carries the current occupants of a map to a newly joined
// session. Players never includes the recipient.
func MapSnapshotEvent(mapID int, players []PlayerState) ([]byte, error) {
	if players == nil {
		players = []PlayerState{}
	}
	return json.Marshal(mapSnapshotEvent{Type: "mapSnapshot", MapID: mapID, Players: players})
}

// ChatMessageEvent carries a chat line to every session in its scope.
func ChatMessageEvent(scope, from, message string) ([]byte, error) {
	return json.Marshal(chatMessageEvent{Type: "chatMessage", Scope: scope, From: from, Message: message})
}

// PartyInviteEvent notifies the target of a party invitation.
func PartyInviteEvent(from string) ([]byte, error) {
	return json.Marshal(partyInviteEvent{Type: "partyInvite", From: from})
}

// PartyUpdateEvent carries the party roster after a membership change.
func PartyUpdateEvent(partyID int64, leader string, members []string) ([]byte, error) {
	return json.Marshal(partyUpdateEvent{Type: "partyUpdate", PartyID: partyID, Leader: leader, Members: members})
}

// GuildInviteEvent notifies the target of a guild invitation. It carries the
// guild id the target will name in its guildAccept.
func GuildInviteEvent(guildID int64, name, from string) ([]byte, error) {
	return json.Marshal(guildInviteEvent{Type: "guildInvite", GuildID: guildID, Name: name, From: from})
}

// GuildUpdateEvent carries the guild roster after a membership change.
func GuildUpdateEvent(guildID int64, name, leader string, members []string) ([]byte, error) {
	return json.Marshal(guildUpdateEvent{Type: "guildUpdate", GuildID: guildID, Name: name, Leader: leader, Members: members})
}
