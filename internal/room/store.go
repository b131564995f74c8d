package room

import (
	"errors"
	"fmt"
	"time"
)

var ErrRoomNotFound = errors.New("room not found")
var ErrRoomFull = errors.New("room is full")
var ErrRoomNotEmpty = errors.New("room still has participants")
var ErrDuplicateParticipant = errors.New("participant already in room")
var ErrCodeSpaceExhausted = errors.New("could not generate an unused room code")

const maxCodeAttempts = 32

// Store owns every live room. It is not safe for concurrent use; the hub
// goroutine is its only caller.
type Store struct {
	rooms    map[string]*Room
	generate func() (string, error)
	now      func() time.Time
}

type Option func(*Store)

// WithCodeGenerator replaces the random room-code source.
func WithCodeGenerator(gen func() (string, error)) Option {
	return func(s *Store) { s.generate = gen }
}

func WithClock(now func() time.Time) Option {
	return func(s *Store) { s.now = now }
}

func NewStore(opts ...Option) *Store {
	s := &Store{
		rooms:    make(map[string]*Room),
		generate: GenerateCode,
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// CreateRoom registers an empty room with a fresh code. The caller adds the
// host with AddParticipant.
func (s *Store) CreateRoom(hostID string, mode Mode) (string, error) {
	code, err := s.unusedCode()
	if err != nil {
		return "", err
	}
	s.rooms[code] = &Room{
		ID:        code,
		Mode:      mode,
		HostID:    hostID,
		Capacity:  Capacity,
		CreatedAt: s.now(),
	}
	return code, nil
}

func (s *Store) unusedCode() (string, error) {
	for range maxCodeAttempts {
		code, err := s.generate()
		if err != nil {
			return "", fmt.Errorf("generate room code: %w", err)
		}
		if _, taken := s.rooms[code]; !taken {
			return code, nil
		}
	}
	return "", ErrCodeSpaceExhausted
}

func (s *Store) AddParticipant(roomID string, p *Participant) error {
	r, ok := s.rooms[roomID]
	if !ok {
		return ErrRoomNotFound
	}
	if r.Full() {
		return ErrRoomFull
	}
	if r.index(p.ID) >= 0 {
		return ErrDuplicateParticipant
	}
	r.participants = append(r.participants, p)
	if r.HostID == "" {
		r.HostID = p.ID
	}
	return nil
}

// RemoveParticipant is idempotent. It reports the room (nil if unknown) and
// whether the participant was actually removed.
func (s *Store) RemoveParticipant(roomID, participantID string) (*Room, bool) {
	r, ok := s.rooms[roomID]
	if !ok {
		return nil, false
	}
	return r, r.remove(participantID)
}

func (s *Store) GetRoom(roomID string) (*Room, bool) {
	r, ok := s.rooms[roomID]
	return r, ok
}

// DeleteRoom tears a room down. Only empty rooms may be deleted.
func (s *Store) DeleteRoom(roomID string) error {
	r, ok := s.rooms[roomID]
	if !ok {
		return ErrRoomNotFound
	}
	if !r.Empty() {
		return ErrRoomNotEmpty
	}
	delete(s.rooms, roomID)
	return nil
}

// SweepEmptyRooms removes every room with no participants and returns how
// many were removed.
func (s *Store) SweepEmptyRooms() int {
	n := 0
	for id, r := range s.rooms {
		if r.Empty() {
			delete(s.rooms, id)
			n++
		}
	}
	return n
}

func (s *Store) Len() int { return len(s.rooms) }

func (s *Store) ParticipantCount() int {
	n := 0
	for _, r := range s.rooms {
		n += r.Len()
	}
	return n
}
