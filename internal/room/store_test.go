package room

import (
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func participant(id string) *Participant {
	return NewParticipant(id, "conn-"+id, nil, time.Now())
}

// scripted returns codes in order, used to force collisions.
func scripted(codes ...string) func() (string, error) {
	i := 0
	return func() (string, error) {
		c := codes[i%len(codes)]
		i++
		return c, nil
	}
}

func TestStore_CreateRoom_StartsEmptyWithCapacityTwo(t *testing.T) {
	s := NewStore()

	id, err := s.CreateRoom("p1", ModeCode)
	require.NoError(t, err)
	require.Len(t, id, codeLength)

	r, ok := s.GetRoom(id)
	require.True(t, ok)
	assert.Equal(t, Capacity, r.Capacity)
	assert.Equal(t, "p1", r.HostID)
	assert.Equal(t, StatusEmpty, r.Status())
	assert.False(t, r.CreatedAt.IsZero())
}

func TestStore_CreateRoom_RegeneratesOnCollision(t *testing.T) {
	s := NewStore(WithCodeGenerator(scripted("AAAAAA", "AAAAAA", "BBBBBB")))

	first, err := s.CreateRoom("p1", ModeCode)
	require.NoError(t, err)
	require.NoError(t, s.AddParticipant(first, participant("p1")))

	second, err := s.CreateRoom("p2", ModeCode)
	require.NoError(t, err)
	assert.Equal(t, "AAAAAA", first)
	assert.Equal(t, "BBBBBB", second)

	// first room untouched
	r, _ := s.GetRoom(first)
	assert.Equal(t, 1, r.Len())
	assert.Equal(t, "p1", r.HostID)
}

func TestStore_CreateRoom_GivesUpWhenEveryCodeIsTaken(t *testing.T) {
	s := NewStore(WithCodeGenerator(scripted("AAAAAA")))
	_, err := s.CreateRoom("p1", ModeCode)
	require.NoError(t, err)

	_, err = s.CreateRoom("p2", ModeCode)
	assert.ErrorIs(t, err, ErrCodeSpaceExhausted)
	assert.Equal(t, 1, s.Len())
}

func TestStore_CreateRoom_GeneratorFailure(t *testing.T) {
	boom := errors.New("entropy")
	s := NewStore(WithCodeGenerator(func() (string, error) { return "", boom }))

	_, err := s.CreateRoom("p1", ModeCode)
	assert.ErrorIs(t, err, boom)
}

func TestStore_AddParticipant(t *testing.T) {
	cases := []struct {
		name    string
		seed    int
		roomID  string
		wantErr error
	}{
		{name: "first player", seed: 0},
		{name: "second player fills room", seed: 1},
		{name: "third player rejected", seed: 2, wantErr: ErrRoomFull},
		{name: "unknown room", seed: 0, roomID: "NOPE", wantErr: ErrRoomNotFound},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			s := NewStore()
			id, err := s.CreateRoom("seed0", ModeCode)
			require.NoError(t, err)
			for i := range tc.seed {
				require.NoError(t, s.AddParticipant(id, participant("seed"+string(rune('0'+i)))))
			}

			target := id
			if tc.roomID != "" {
				target = tc.roomID
			}
			err = s.AddParticipant(target, participant("new"))
			if tc.wantErr != nil {
				require.ErrorIs(t, err, tc.wantErr)
			} else {
				require.NoError(t, err)
			}

			r, _ := s.GetRoom(id)
			assert.LessOrEqual(t, r.Len(), Capacity)
		})
	}
}

func TestStore_AddParticipant_RejectsDuplicate(t *testing.T) {
	s := NewStore()
	id, _ := s.CreateRoom("p1", ModeCode)
	require.NoError(t, s.AddParticipant(id, participant("p1")))

	assert.ErrorIs(t, s.AddParticipant(id, participant("p1")), ErrDuplicateParticipant)
}

func TestStore_CapacityNeverExceeded(t *testing.T) {
	s := NewStore()
	id, _ := s.CreateRoom("h", ModeCode)

	ids := []string{"a", "b", "c", "d", "e"}
	for i := range 50 {
		p := ids[i%len(ids)]
		if i%3 == 0 {
			s.RemoveParticipant(id, p)
		} else {
			_ = s.AddParticipant(id, participant(p))
		}
		r, _ := s.GetRoom(id)
		require.LessOrEqual(t, r.Len(), Capacity)
	}
}

func TestStore_RemoveParticipant_IsIdempotent(t *testing.T) {
	s := NewStore()
	id, _ := s.CreateRoom("p1", ModeCode)
	require.NoError(t, s.AddParticipant(id, participant("p1")))
	require.NoError(t, s.AddParticipant(id, participant("p2")))

	r, removed := s.RemoveParticipant(id, "p2")
	require.True(t, removed)
	assert.Equal(t, StatusFilling, r.Status())

	_, removed = s.RemoveParticipant(id, "p2")
	assert.False(t, removed)

	r, removed = s.RemoveParticipant("NOPE", "p1")
	assert.Nil(t, r)
	assert.False(t, removed)
}

func TestStore_RemoveParticipant_PassesHost(t *testing.T) {
	s := NewStore()
	id, _ := s.CreateRoom("p1", ModeCode)
	require.NoError(t, s.AddParticipant(id, participant("p1")))
	require.NoError(t, s.AddParticipant(id, participant("p2")))

	r, _ := s.RemoveParticipant(id, "p1")
	assert.Equal(t, "p2", r.HostID)

	r, _ = s.RemoveParticipant(id, "p2")
	assert.Empty(t, r.HostID)
}

func TestStore_DeleteRoom_RefusesWhileOccupied(t *testing.T) {
	s := NewStore()
	id, _ := s.CreateRoom("p1", ModeCode)
	require.NoError(t, s.AddParticipant(id, participant("p1")))

	assert.ErrorIs(t, s.DeleteRoom(id), ErrRoomNotEmpty)

	s.RemoveParticipant(id, "p1")
	require.NoError(t, s.DeleteRoom(id))

	_, ok := s.GetRoom(id)
	assert.False(t, ok)
	assert.ErrorIs(t, s.DeleteRoom(id), ErrRoomNotFound)
}

func TestStore_SweepEmptyRooms(t *testing.T) {
	s := NewStore()
	occupied, _ := s.CreateRoom("p1", ModeCode)
	require.NoError(t, s.AddParticipant(occupied, participant("p1")))
	_, _ = s.CreateRoom("ghost1", ModeCode)
	_, _ = s.CreateRoom("ghost2", ModeMatch)

	assert.Equal(t, 2, s.SweepEmptyRooms())
	assert.Equal(t, 1, s.Len())
	assert.Equal(t, 1, s.ParticipantCount())
	assert.Equal(t, 0, s.SweepEmptyRooms())
}

func TestRoom_Snapshot_IsDetached(t *testing.T) {
	s := NewStore()
	id, _ := s.CreateRoom("p1", ModeCode)
	p := NewParticipant("p1", "c1", json.RawMessage(`"ryu"`), time.Now())
	require.NoError(t, s.AddParticipant(id, p))
	r, _ := s.GetRoom(id)
	r.State = json.RawMessage(`{"x":1}`)

	snap := r.Snapshot()
	p.Character[1] = 'k'
	r.State[2] = 'y'

	require.Len(t, snap.Players, 1)
	assert.JSONEq(t, `"ryu"`, string(snap.Players[0].Character))
	assert.JSONEq(t, `{"x":1}`, string(snap.State))
	assert.Equal(t, MaxHealth, snap.Players[0].Health)
}

func TestStore_CreateRoom_StampsClock(t *testing.T) {
	at := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	s := NewStore(WithClock(func() time.Time { return at }))

	id, err := s.CreateRoom("p1", ModeMatch)
	require.NoError(t, err)
	r, _ := s.GetRoom(id)
	assert.Equal(t, at, r.CreatedAt)
	assert.Equal(t, at, r.Snapshot().CreatedAt)
}

func TestGenerateCode_Charset(t *testing.T) {
	code, err := GenerateCode()
	require.NoError(t, err)
	require.Len(t, code, codeLength)
	for _, c := range code {
		assert.Contains(t, codeCharset, string(c))
	}
}

func TestCodeFrom_RedrawsBiasedBytes(t *testing.T) {
	// 252 and above fall outside the unbiased range and must be skipped
	batches := [][]byte{
		{255, 252, 0, 1, 2, 3, 4, 253, 254, 255, 255, 255},
		{35, 36, 71, 9, 9, 9, 9, 9, 9, 9, 9, 9},
	}
	read := func(p []byte) (int, error) {
		n := copy(p, batches[0])
		batches = batches[1:]
		return n, nil
	}

	code, err := codeFrom(read)
	require.NoError(t, err)
	assert.Equal(t, "ABCDE9", code)
}

func TestCodeFrom_PropagatesReadError(t *testing.T) {
	boom := errors.New("entropy exhausted")
	_, err := codeFrom(func([]byte) (int, error) { return 0, boom })
	assert.ErrorIs(t, err, boom)
}
