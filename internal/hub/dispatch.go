package hub

import (
	"errors"

	"go.uber.org/zap"

	"github.com/DoyleJ11/brawl-relay/internal/matchmaker"
	"github.com/DoyleJ11/brawl-relay/internal/room"
	"github.com/DoyleJ11/brawl-relay/internal/types"
)

type handlerFunc func(h *Hub, connID string, msg types.ClientMessage)

// Both protocol dialects are served from one table: createRoom/joinRoom for
// rooms shared by code, findMatch for anonymous pairing. A connection can be
// in only one room or the pool at a time, whichever dialect put it there.
var dispatch = map[string]handlerFunc{
	types.TypeCreateRoom:      (*Hub).createRoom,
	types.TypeJoinRoom:        (*Hub).joinRoom,
	types.TypeFindMatch:       (*Hub).findMatch,
	types.TypeLeaveRoom:       (*Hub).leaveRoom,
	types.TypeGameState:       (*Hub).relayToPeers,
	types.TypeSpecialAttack:   (*Hub).relayToPeers,
	types.TypeChatMessage:     (*Hub).relayToPeers,
	types.TypeGameReady:       (*Hub).relayToPeers,
	types.TypeCharacterSelect: (*Hub).selectCharacter,
	types.TypeSelectCharacter: (*Hub).selectCharacter,
	types.TypeGetState:        (*Hub).roomState,
}

func (h *Hub) handleInbound(connID string, data []byte) {
	if !h.reg.Known(connID) {
		// frame raced with its own disconnect
		return
	}

	msg, err := types.Parse(data)
	if err != nil {
		h.metrics.ParseErrors.Inc()
		h.log.Debug("bad envelope", zap.String("conn_id", connID), zap.Error(err))
		h.relay.SendTo(connID, types.ErrorReply(types.MsgInvalidFormat))
		return
	}

	handle, ok := dispatch[msg.Type]
	if !ok {
		return
	}
	h.metrics.Messages.WithLabelValues(msg.Type).Inc()
	handle(h, connID, msg)
}

func (h *Hub) createRoom(connID string, _ types.ClientMessage) {
	pl, err := h.mm.CreateRoom(connID)
	if err != nil {
		h.rejectJoin(connID, err)
		return
	}
	h.relay.SendTo(connID, types.ServerMessage{
		Type:     types.TypeRoomCreated,
		RoomID:   pl.Room.ID,
		PlayerID: pl.Participant.ID,
	}.Encode())
	h.sup.Observe()
	h.log.Info("room created", zap.String("room_id", pl.Room.ID), zap.String("player_id", pl.Participant.ID))
}

func (h *Hub) joinRoom(connID string, msg types.ClientMessage) {
	pl, err := h.mm.JoinByCode(connID, msg.RoomID, msg.Character)
	if err != nil {
		h.rejectJoin(connID, err)
		return
	}

	h.relay.Broadcast(pl.Room.ID, types.ServerMessage{
		Type:      types.TypePlayerJoined,
		PlayerID:  pl.Participant.ID,
		Character: pl.Participant.Character,
	}.Encode(), "")

	if pl.Started {
		h.startRoom(pl.Room)
	}
	h.sup.Observe()
	h.log.Info("player joined", zap.String("room_id", pl.Room.ID), zap.String("player_id", pl.Participant.ID))
}

func (h *Hub) startRoom(r *room.Room) {
	snap := r.Snapshot()
	h.relay.Broadcast(r.ID, types.ServerMessage{
		Type:    types.TypeGameStart,
		RoomID:  r.ID,
		Players: snap.Players,
	}.Encode(), "")
	h.metrics.RoomsStarted.WithLabelValues(string(r.Mode)).Inc()
}

func (h *Hub) findMatch(connID string, _ types.ClientMessage) {
	pl, err := h.mm.FindMatch(connID)
	if err != nil {
		h.rejectJoin(connID, err)
		return
	}
	h.sup.Observe()

	if pl.Waiting {
		h.relay.SendTo(connID, types.ServerMessage{Type: types.TypeWaitingForMatch}.Encode())
		return
	}

	first, second := true, false
	h.relay.SendTo(pl.Opponent.ConnID, types.ServerMessage{
		Type:      types.TypeMatchFound,
		RoomID:    pl.Room.ID,
		PlayerID:  pl.Opponent.ID,
		IsPlayer1: &first,
	}.Encode())
	h.relay.SendTo(connID, types.ServerMessage{
		Type:      types.TypeMatchFound,
		RoomID:    pl.Room.ID,
		PlayerID:  pl.Participant.ID,
		IsPlayer1: &second,
	}.Encode())
	h.metrics.RoomsStarted.WithLabelValues(string(pl.Room.Mode)).Inc()
	h.log.Info("match found",
		zap.String("room_id", pl.Room.ID),
		zap.String("player1", pl.Opponent.ID),
		zap.String("player2", pl.Participant.ID),
	)
}

func (h *Hub) leaveRoom(connID string, _ types.ClientMessage) {
	if h.sup.Leave(connID) {
		h.sup.Observe()
	}
}

func (h *Hub) relayToPeers(connID string, msg types.ClientMessage) {
	b, ok := h.reg.Resolve(connID)
	if !ok {
		return
	}
	if _, err := h.relay.Relay(b, msg); err != nil {
		h.log.Debug("relay failed", zap.String("type", msg.Type), zap.String("room_id", b.RoomID), zap.Error(err))
	}
}

func (h *Hub) selectCharacter(connID string, msg types.ClientMessage) {
	b, ok := h.reg.Resolve(connID)
	if !ok {
		return
	}
	if _, err := h.relay.SelectCharacter(b, msg.Character); err != nil {
		h.log.Debug("character select failed", zap.String("room_id", b.RoomID), zap.Error(err))
	}
}

func (h *Hub) roomState(connID string, _ types.ClientMessage) {
	b, ok := h.reg.Resolve(connID)
	if !ok {
		h.relay.SendTo(connID, types.ErrorReply(types.MsgNotInRoom))
		return
	}
	r, ok := h.store.GetRoom(b.RoomID)
	if !ok {
		h.relay.SendTo(connID, types.ErrorReply(types.MsgNotInRoom))
		return
	}
	snap := r.Snapshot()
	h.relay.SendTo(connID, types.ServerMessage{
		Type:     types.TypeRoomState,
		RoomID:   snap.ID,
		PlayerID: b.ParticipantID,
		Players:  snap.Players,
		State:    snap.State,
	}.Encode())
}

// rejectJoin reports a failed join intent to the caller only.
func (h *Hub) rejectJoin(connID string, err error) {
	message, reason := joinFailure(err)
	if reason == "internal" {
		h.log.Error("join failed", zap.String("conn_id", connID), zap.Error(err))
	}
	h.metrics.JoinFailures.WithLabelValues(reason).Inc()
	h.relay.SendTo(connID, types.ErrorReply(message))
}

func joinFailure(err error) (message, reason string) {
	switch {
	case errors.Is(err, room.ErrRoomNotFound):
		return types.MsgRoomNotFound, "not_found"
	case errors.Is(err, room.ErrRoomFull):
		return types.MsgRoomFull, "full"
	case errors.Is(err, matchmaker.ErrAlreadyInRoom):
		return types.MsgAlreadyInRoom, "already_in_room"
	default:
		return types.MsgInternal, "internal"
	}
}
