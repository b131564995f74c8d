// Package relay fans messages out to the members of a room.
package relay

import (
	"encoding/json"
	"fmt"

	"github.com/DoyleJ11/brawl-relay/internal/registry"
	"github.com/DoyleJ11/brawl-relay/internal/room"
	"github.com/DoyleJ11/brawl-relay/internal/types"
)

type Engine struct {
	store    *room.Store
	registry *registry.Registry
}

func New(store *room.Store, reg *registry.Registry) *Engine {
	return &Engine{store: store, registry: reg}
}

// Broadcast sends payload to every member of roomID except exclude (pass ""
// to reach everyone). Members whose connection is gone are skipped. It returns
// how many members the payload was queued for.
func (e *Engine) Broadcast(roomID string, payload []byte, exclude string) int {
	r, ok := e.store.GetRoom(roomID)
	if !ok {
		return 0
	}
	delivered := 0
	for _, p := range r.Participants() {
		if p.ID == exclude {
			continue
		}
		if e.registry.Send(p.ConnID, payload) {
			delivered++
		}
	}
	return delivered
}

// SendTo queues payload for a single connection.
func (e *Engine) SendTo(connID string, payload []byte) bool {
	return e.registry.Send(connID, payload)
}

// Relay forwards an inbound envelope to the sender's peers with playerId set
// to the sender. gameState payloads are also mirrored onto the room.
func (e *Engine) Relay(from registry.Binding, msg types.ClientMessage) (int, error) {
	r, ok := e.store.GetRoom(from.RoomID)
	if !ok {
		return 0, room.ErrRoomNotFound
	}
	if msg.Type == types.TypeGameState {
		state, err := msg.Payload()
		if err != nil {
			return 0, fmt.Errorf("mirror state: %w", err)
		}
		r.State = state
	}
	payload, err := msg.Tagged(from.ParticipantID)
	if err != nil {
		return 0, fmt.Errorf("tag %s: %w", msg.Type, err)
	}
	return e.Broadcast(from.RoomID, payload, from.ParticipantID), nil
}

// SelectCharacter records the choice on the participant before telling the
// whole room, so later state queries see it.
func (e *Engine) SelectCharacter(from registry.Binding, character json.RawMessage) (int, error) {
	r, ok := e.store.GetRoom(from.RoomID)
	if !ok {
		return 0, room.ErrRoomNotFound
	}
	p, ok := r.Participant(from.ParticipantID)
	if !ok {
		return 0, fmt.Errorf("participant %s not in room %s", from.ParticipantID, from.RoomID)
	}
	p.Character = character

	payload := types.ServerMessage{
		Type:      types.TypeCharacterSelected,
		PlayerID:  p.ID,
		Character: character,
	}.Encode()
	return e.Broadcast(from.RoomID, payload, ""), nil
}
