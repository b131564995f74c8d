// Package supervisor reacts to connections going away: it pulls the
// participant out of its room, tells whoever is left, tears down rooms that
// end up empty, and periodically sweeps rooms that escaped teardown.
package supervisor

import (
	"go.uber.org/zap"

	"github.com/DoyleJ11/brawl-relay/internal/matchmaker"
	"github.com/DoyleJ11/brawl-relay/internal/metrics"
	"github.com/DoyleJ11/brawl-relay/internal/registry"
	"github.com/DoyleJ11/brawl-relay/internal/relay"
	"github.com/DoyleJ11/brawl-relay/internal/room"
	"github.com/DoyleJ11/brawl-relay/internal/types"
)

type Counts struct {
	Connections  int `json:"connections"`
	Rooms        int `json:"rooms"`
	Participants int `json:"participants"`
	Waiting      int `json:"waiting"`
}

type Supervisor struct {
	store   *room.Store
	reg     *registry.Registry
	mm      *matchmaker.Matchmaker
	relay   *relay.Engine
	log     *zap.Logger
	metrics *metrics.Metrics
}

func New(store *room.Store, reg *registry.Registry, mm *matchmaker.Matchmaker, rl *relay.Engine, log *zap.Logger, m *metrics.Metrics) *Supervisor {
	return &Supervisor{store: store, reg: reg, mm: mm, relay: rl, log: log, metrics: m}
}

// Disconnect cleans up after a connection exactly once. Later calls for the
// same connection, or calls for a connection that was never registered,
// return false and change nothing.
func (s *Supervisor) Disconnect(connID string, cause error) bool {
	if !s.reg.Known(connID) {
		return false
	}

	s.Leave(connID)
	s.reg.Unregister(connID)
	s.metrics.Disconnects.Inc()

	if cause != nil {
		s.log.Warn("connection dropped", zap.String("conn_id", connID), zap.Error(cause))
	} else {
		s.log.Debug("connection closed", zap.String("conn_id", connID))
	}
	return true
}

// Leave takes the connection out of whatever it is in (a room or the waiting
// pool) while keeping it registered.
func (s *Supervisor) Leave(connID string) bool {
	b, ok := s.reg.Resolve(connID)
	if !ok {
		return s.mm.Withdraw(connID)
	}
	s.reg.Unbind(connID)

	r, removed := s.store.RemoveParticipant(b.RoomID, b.ParticipantID)
	if r == nil {
		return removed
	}
	log := s.log.With(zap.String("room_id", r.ID), zap.String("player_id", b.ParticipantID))

	switch r.Mode {
	case room.ModeMatch:
		// A match room never goes back to waiting for a second player: the
		// survivor is told and released so it can look for a new match.
		s.relay.Broadcast(r.ID, types.ServerMessage{
			Type:     types.TypePlayerDisconnected,
			PlayerID: b.ParticipantID,
		}.Encode(), "")
		for _, p := range r.Participants() {
			s.store.RemoveParticipant(r.ID, p.ID)
			s.reg.Unbind(p.ConnID)
		}
		log.Info("match dissolved")
	default:
		s.relay.Broadcast(r.ID, types.ServerMessage{
			Type:     types.TypePlayerLeft,
			PlayerID: b.ParticipantID,
		}.Encode(), "")
		log.Info("player left room", zap.Int("remaining", r.Len()))
	}

	if r.Empty() {
		if err := s.store.DeleteRoom(r.ID); err == nil {
			s.metrics.RoomsTornDown.Inc()
			log.Info("room torn down")
		}
	}
	return removed
}

// Sweep removes empty rooms that slipped past Leave and reports aggregate
// counts.
func (s *Supervisor) Sweep() int {
	n := s.store.SweepEmptyRooms()
	s.metrics.RoomsSwept.Add(float64(n))
	c := s.Observe()
	s.log.Info("sweep",
		zap.Int("removed", n),
		zap.Int("rooms", c.Rooms),
		zap.Int("connections", c.Connections),
		zap.Int("participants", c.Participants),
		zap.Int("waiting", c.Waiting),
	)
	return n
}

// Observe refreshes the gauges and returns the current counts.
func (s *Supervisor) Observe() Counts {
	c := Counts{
		Connections:  s.reg.Len(),
		Rooms:        s.store.Len(),
		Participants: s.store.ParticipantCount(),
		Waiting:      s.mm.WaitingCount(),
	}
	s.metrics.Observe(c.Connections, c.Rooms, c.Participants, c.Waiting)
	return c
}
