// Package matchmaker turns join intents into room placements: creating a room,
// joining one by code, or pairing anonymous connections first come first
// served.
package matchmaker

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/DoyleJ11/brawl-relay/internal/registry"
	"github.com/DoyleJ11/brawl-relay/internal/room"
)

var ErrAlreadyInRoom = errors.New("connection already placed in a room")

// Placement is the outcome of a join intent.
type Placement struct {
	Room        *room.Room
	Participant *room.Participant // the caller
	Opponent    *room.Participant // set for anonymous matches: the popped waiter
	Waiting     bool              // caller is (still) in the pool
	Started     bool              // this placement filled the room
}

type Matchmaker struct {
	store    *room.Store
	registry *registry.Registry
	pool     Pool
	newID    func() string
	now      func() time.Time
}

func New(store *room.Store, reg *registry.Registry) *Matchmaker {
	return &Matchmaker{
		store:    store,
		registry: reg,
		newID:    NewParticipantID,
		now:      time.Now,
	}
}

func NewParticipantID() string {
	return "player_" + uuid.NewString()
}

// CreateRoom opens a code room with the caller as host.
func (m *Matchmaker) CreateRoom(connID string) (Placement, error) {
	if _, bound := m.registry.Resolve(connID); bound {
		return Placement{}, ErrAlreadyInRoom
	}

	pid := m.newID()
	roomID, err := m.store.CreateRoom(pid, room.ModeCode)
	if err != nil {
		return Placement{}, fmt.Errorf("create room: %w", err)
	}
	host := room.NewParticipant(pid, connID, nil, m.now())
	if err := m.store.AddParticipant(roomID, host); err != nil {
		_ = m.store.DeleteRoom(roomID)
		return Placement{}, fmt.Errorf("seat host: %w", err)
	}

	m.pool.Remove(connID)
	m.registry.Bind(connID, pid, roomID)
	r, _ := m.store.GetRoom(roomID)
	return Placement{Room: r, Participant: host}, nil
}

// JoinByCode places the caller into an existing room. Failures leave every
// structure untouched.
func (m *Matchmaker) JoinByCode(connID, roomID string, character json.RawMessage) (Placement, error) {
	if _, bound := m.registry.Resolve(connID); bound {
		return Placement{}, ErrAlreadyInRoom
	}

	p := room.NewParticipant(m.newID(), connID, character, m.now())
	if err := m.store.AddParticipant(roomID, p); err != nil {
		return Placement{}, err
	}

	m.pool.Remove(connID)
	m.registry.Bind(connID, p.ID, roomID)
	r, _ := m.store.GetRoom(roomID)
	return Placement{Room: r, Participant: p, Started: r.Full()}, nil
}

// FindMatch pairs the caller with the longest-waiting connection, or queues
// the caller when nobody is waiting.
func (m *Matchmaker) FindMatch(connID string) (Placement, error) {
	if _, bound := m.registry.Resolve(connID); bound {
		return Placement{}, ErrAlreadyInRoom
	}
	if m.pool.Contains(connID) {
		return Placement{Waiting: true}, nil
	}

	waiter, ok := m.popLive()
	if !ok {
		m.pool.Push(connID)
		return Placement{Waiting: true}, nil
	}

	hostID := m.newID()
	roomID, err := m.store.CreateRoom(hostID, room.ModeMatch)
	if err != nil {
		// put the waiter back at the head so it keeps its turn
		m.pool.queue = append([]string{waiter}, m.pool.queue...)
		return Placement{}, fmt.Errorf("create match room: %w", err)
	}

	host := room.NewParticipant(hostID, waiter, nil, m.now())
	guest := room.NewParticipant(m.newID(), connID, nil, m.now())
	for _, p := range []*room.Participant{host, guest} {
		if err := m.store.AddParticipant(roomID, p); err != nil {
			return Placement{}, fmt.Errorf("seat match player: %w", err)
		}
		m.registry.Bind(p.ConnID, p.ID, roomID)
	}

	r, _ := m.store.GetRoom(roomID)
	return Placement{Room: r, Participant: guest, Opponent: host, Started: true}, nil
}

// popLive skips entries whose connection can no longer receive messages.
// Those connections are already on their way through the disconnect path.
func (m *Matchmaker) popLive() (string, bool) {
	for {
		head, ok := m.pool.Pop()
		if !ok {
			return "", false
		}
		if m.registry.Open(head) {
			return head, true
		}
	}
}

// Withdraw removes connID from the waiting pool by identity.
func (m *Matchmaker) Withdraw(connID string) bool { return m.pool.Remove(connID) }

func (m *Matchmaker) Waiting(connID string) bool { return m.pool.Contains(connID) }

func (m *Matchmaker) WaitingCount() int { return m.pool.Len() }
