package service

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dkeye/studyroom/internal/domain"
	"github.com/dkeye/studyroom/internal/repo"
)

type seqGen struct{ ids []domain.RoomID }

func (g *seqGen) New() (domain.RoomID, error) {
	if len(g.ids) == 0 {
		return "", errors.New("out of ids")
	}
	id := g.ids[0]
	g.ids = g.ids[1:]
	return id, nil
}

func newService(t *testing.T, ids ...domain.RoomID) (*RoomService, *repo.MemoryRoomRepo) {
	t.Helper()
	r := repo.NewMemoryRoomRepo()
	var idg IDGenerator
	if len(ids) > 0 {
		idg = &seqGen{ids: ids}
	}
	s := NewRoomService(r, idg)
	tick := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
	s.now = func() time.Time {
		tick = tick.Add(time.Second)
		return tick
	}
	return s, r
}

func TestCreate_DefaultsAndValidation(t *testing.T) {
	s, _ := newService(t)
	ctx := context.Background()

	room, err := s.Create(ctx, "host-1", CreateRoomInput{Name: "  Algebra  "})
	require.NoError(t, err)
	assert.NotEmpty(t, room.ID)
	assert.Equal(t, "Algebra", room.Name)
	assert.Equal(t, domain.DefaultCapacity, room.Capacity)
	assert.Equal(t, "host-1", room.HostID)

	got, err := s.Get(ctx, room.ID)
	require.NoError(t, err)
	assert.Equal(t, room.Name, got.Name)

	for _, in := range []CreateRoomInput{
		{Name: ""},
		{Name: "x", Capacity: 1},
		{Name: "x", Capacity: 51},
	} {
		_, err := s.Create(ctx, "host-1", in)
		assert.ErrorIs(t, err, ErrInvalidRoom, fmt.Sprintf("%+v", in))
	}
}

func TestCreate_RetriesOnCollision(t *testing.T) {
	s, r := newService(t, "taken", "fresh")
	ctx := context.Background()
	require.NoError(t, r.CreateRoom(ctx, domain.Room{ID: "taken", Name: "old", Capacity: 10}))

	room, err := s.Create(ctx, "h", CreateRoomInput{Name: "new"})
	require.NoError(t, err)
	assert.Equal(t, domain.RoomID("fresh"), room.ID)
}

func TestCreate_GivesUpAfterRetries(t *testing.T) {
	s, r := newService(t, "a", "a", "a", "a", "a")
	ctx := context.Background()
	require.NoError(t, r.CreateRoom(ctx, domain.Room{ID: "a", Name: "old", Capacity: 10}))

	_, err := s.Create(ctx, "h", CreateRoomInput{Name: "new"})
	assert.ErrorIs(t, err, ErrRoomIDGenerationFailed)
}

func TestList_HidesOthersPrivateRooms(t *testing.T) {
	s, _ := newService(t, "pub", "mine", "theirs")
	ctx := context.Background()
	_, err := s.Create(ctx, "me", CreateRoomInput{Name: "public"})
	require.NoError(t, err)
	_, err = s.Create(ctx, "me", CreateRoomInput{Name: "mine", IsPrivate: true})
	require.NoError(t, err)
	_, err = s.Create(ctx, "other", CreateRoomInput{Name: "theirs", IsPrivate: true})
	require.NoError(t, err)

	rooms, err := s.List(ctx, "me", 0)
	require.NoError(t, err)
	ids := make([]domain.RoomID, len(rooms))
	for i, r := range rooms {
		ids[i] = r.ID
	}
	assert.Equal(t, []domain.RoomID{"mine", "pub"}, ids)
}

func TestUpdateDelete_HostOnly(t *testing.T) {
	s, _ := newService(t, "r1")
	ctx := context.Background()
	_, err := s.Create(ctx, "host", CreateRoomInput{Name: "Physics"})
	require.NoError(t, err)

	topic := "Kinematics"
	_, err = s.Update(ctx, "intruder", "r1", domain.RoomPatch{Topic: &topic})
	assert.ErrorIs(t, err, ErrNotRoomHost)

	updated, err := s.Update(ctx, "host", "r1", domain.RoomPatch{Topic: &topic})
	require.NoError(t, err)
	assert.Equal(t, "Kinematics", updated.Topic)
	assert.Equal(t, "Physics", updated.Name)

	bad := 99
	_, err = s.Update(ctx, "host", "r1", domain.RoomPatch{Capacity: &bad})
	assert.ErrorIs(t, err, ErrInvalidRoom)

	assert.ErrorIs(t, s.Delete(ctx, "intruder", "r1"), ErrNotRoomHost)
	require.NoError(t, s.Delete(ctx, "host", "r1"))
	_, err = s.Get(ctx, "r1")
	assert.ErrorIs(t, err, ErrRoomNotFound)
	assert.ErrorIs(t, s.Delete(ctx, "host", "r1"), ErrRoomNotFound)
}
