package types

import (
	"encoding/json"
	"errors"
	"fmt"
)

// Client -> server
const (
	TypeCreateRoom      = "createRoom"
	TypeJoinRoom        = "joinRoom"
	TypeLeaveRoom       = "leaveRoom"
	TypeGameState       = "gameState"
	TypeCharacterSelect = "characterSelect"
	TypeSelectCharacter = "selectCharacter" // match dialect spelling
	TypeFindMatch       = "findMatch"
	TypeSpecialAttack   = "specialAttack"
	TypeChatMessage     = "chatMessage"
	TypeGameReady       = "gameReady"
	TypeGetState        = "getState"
)

// Server -> client
const (
	TypeRoomCreated        = "roomCreated"
	TypePlayerJoined       = "playerJoined"
	TypeGameStart          = "gameStart"
	TypePlayerLeft         = "playerLeft"
	TypeCharacterSelected  = "characterSelected"
	TypeMatchFound         = "matchFound"
	TypeWaitingForMatch    = "waitingForMatch"
	TypePlayerDisconnected = "playerDisconnected"
	TypeRoomState          = "roomState"
	TypeError              = "error"
)

// Error strings as clients see them.
const (
	MsgInvalidFormat = "Invalid message format"
	MsgRoomNotFound  = "Room not found"
	MsgRoomFull      = "Room is full"
	MsgAlreadyInRoom = "Already in a room"
	MsgNotInRoom     = "Not in a room"
	MsgInternal      = "Internal server error"
)

var ErrParse = errors.New("malformed envelope")

// ClientMessage is an inbound envelope. Fields keeps every top-level member so
// relayed payloads go out exactly as they came in.
type ClientMessage struct {
	Type      string
	RoomID    string
	Character json.RawMessage
	Fields    map[string]json.RawMessage
}

// Parse decodes an inbound frame. Anything that is not a JSON object with a
// string "type" is ErrParse. A missing type yields an empty Type, which the
// dispatcher ignores like any other unknown type.
func Parse(data []byte) (ClientMessage, error) {
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(data, &fields); err != nil {
		return ClientMessage{}, fmt.Errorf("%w: %v", ErrParse, err)
	}
	if fields == nil {
		return ClientMessage{}, fmt.Errorf("%w: not an object", ErrParse)
	}

	var cm ClientMessage
	cm.Fields = fields
	if raw, ok := fields["type"]; ok {
		if err := json.Unmarshal(raw, &cm.Type); err != nil {
			return ClientMessage{}, fmt.Errorf("%w: type: %v", ErrParse, err)
		}
	}
	// roomId only matters to joinRoom; relayed payloads may carry anything
	// under that key. A non-string leaves RoomID empty, which no room matches.
	if raw, ok := fields["roomId"]; ok {
		_ = json.Unmarshal(raw, &cm.RoomID)
	}
	if raw, ok := fields["character"]; ok && !isNull(raw) {
		cm.Character = raw
	}
	return cm, nil
}

func isNull(raw json.RawMessage) bool {
	return string(raw) == "null"
}

// Tagged re-encodes the envelope with playerId set to the sender.
func (cm ClientMessage) Tagged(playerID string) ([]byte, error) {
	out := make(map[string]json.RawMessage, len(cm.Fields)+1)
	for k, v := range cm.Fields {
		out[k] = v
	}
	id, err := json.Marshal(playerID)
	if err != nil {
		return nil, err
	}
	out["playerId"] = id
	return json.Marshal(out)
}

// Payload returns the members a sender attached besides the envelope keys,
// used as the mirrored room state.
func (cm ClientMessage) Payload() (json.RawMessage, error) {
	if raw, ok := cm.Fields["state"]; ok {
		return raw, nil
	}
	rest := make(map[string]json.RawMessage, len(cm.Fields))
	for k, v := range cm.Fields {
		if k == "type" || k == "playerId" {
			continue
		}
		rest[k] = v
	}
	return json.Marshal(rest)
}

type ServerMessage struct {
	Type      string          `json:"type"`
	RoomID    string          `json:"roomId,omitempty"`
	PlayerID  string          `json:"playerId,omitempty"`
	Character json.RawMessage `json:"character,omitempty"`
	IsPlayer1 *bool           `json:"isPlayer1,omitempty"`
	Players   any             `json:"players,omitempty"`
	State     json.RawMessage `json:"state,omitempty"`
	Message   string          `json:"message,omitempty"`
}

func (m ServerMessage) Encode() []byte {
	// Every field is a plain value or already-valid JSON.
	b, _ := json.Marshal(m)
	return b
}

func ErrorReply(message string) []byte {
	return ServerMessage{Type: TypeError, Message: message}.Encode()
}
