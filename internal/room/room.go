package room

import (
	"encoding/json"
	"slices"
	"time"
)

const (
	Capacity  = 2
	MaxHealth = 100
)

// Mode records which join policy created a room.
type Mode string

const (
	ModeCode  Mode = "code"  // created by createRoom, joined by code
	ModeMatch Mode = "match" // created by the anonymous matchmaker
)

type Status string

const (
	StatusEmpty   Status = "empty"
	StatusFilling Status = "filling"
	StatusFull    Status = "full"
)

type Participant struct {
	ID        string
	ConnID    string
	Character json.RawMessage
	Health    int
	MaxHealth int
	JoinedAt  time.Time
}

func NewParticipant(id, connID string, character json.RawMessage, now time.Time) *Participant {
	return &Participant{
		ID:        id,
		ConnID:    connID,
		Character: character,
		Health:    MaxHealth,
		MaxHealth: MaxHealth,
		JoinedAt:  now,
	}
}

type Room struct {
	ID        string
	Mode      Mode
	HostID    string
	Capacity  int
	State     json.RawMessage // opaque, mirrored from gameState
	CreatedAt time.Time

	participants []*Participant // join order
}

func (r *Room) Len() int    { return len(r.participants) }
func (r *Room) Full() bool  { return len(r.participants) >= r.Capacity }
func (r *Room) Empty() bool { return len(r.participants) == 0 }

func (r *Room) Status() Status {
	switch {
	case r.Empty():
		return StatusEmpty
	case r.Full():
		return StatusFull
	default:
		return StatusFilling
	}
}

func (r *Room) Participant(id string) (*Participant, bool) {
	i := r.index(id)
	if i < 0 {
		return nil, false
	}
	return r.participants[i], true
}

// Participants returns a copy of the member list in join order.
func (r *Room) Participants() []*Participant {
	return slices.Clone(r.participants)
}

func (r *Room) index(id string) int {
	return slices.IndexFunc(r.participants, func(p *Participant) bool { return p.ID == id })
}

func (r *Room) remove(id string) bool {
	i := r.index(id)
	if i < 0 {
		return false
	}
	r.participants = slices.Delete(r.participants, i, i+1)

	// Host passes to whoever has been in the room longest.
	if r.HostID == id {
		r.HostID = ""
		if len(r.participants) > 0 {
			r.HostID = r.participants[0].ID
		}
	}
	return true
}

// Snapshot is a read-only copy that is safe to hand outside the owning goroutine.
type Snapshot struct {
	ID        string                `json:"roomId"`
	Mode      Mode                  `json:"mode"`
	Status    Status                `json:"status"`
	HostID    string                `json:"hostId,omitempty"`
	Capacity  int                   `json:"capacity"`
	Players   []ParticipantSnapshot `json:"players"`
	State     json.RawMessage       `json:"state,omitempty"`
	CreatedAt time.Time             `json:"createdAt"`
}

type ParticipantSnapshot struct {
	ID        string          `json:"id"`
	Character json.RawMessage `json:"character,omitempty"`
	Health    int             `json:"health"`
	MaxHealth int             `json:"maxHealth"`
}

func (r *Room) Snapshot() Snapshot {
	players := make([]ParticipantSnapshot, 0, len(r.participants))
	for _, p := range r.participants {
		players = append(players, ParticipantSnapshot{
			ID:        p.ID,
			Character: slices.Clone(p.Character),
			Health:    p.Health,
			MaxHealth: p.MaxHealth,
		})
	}
	return Snapshot{
		ID:        r.ID,
		Mode:      r.Mode,
		Status:    r.Status(),
		HostID:    r.HostID,
		Capacity:  r.Capacity,
		Players:   players,
		State:     slices.Clone(r.State),
		CreatedAt: r.CreatedAt,
	}
}
