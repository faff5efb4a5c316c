package repo

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dkeye/studyroom/internal/domain"
)

func testRoom(id string, created time.Time) domain.Room {
	return domain.Room{
		ID:        domain.RoomID(id),
		Name:      "Calculus " + id,
		Topic:     "limits",
		Capacity:  8,
		HostID:    "host-1",
		CreatedAt: created,
	}
}

func TestMemoryRoomRepo_CRUD(t *testing.T) {
	ctx := context.Background()
	r := NewMemoryRoomRepo()
	now := time.Now().UTC()

	require.NoError(t, r.CreateRoom(ctx, testRoom("a", now.Add(-time.Minute))))
	require.NoError(t, r.CreateRoom(ctx, testRoom("b", now)))
	assert.ErrorIs(t, r.CreateRoom(ctx, testRoom("a", now)), ErrRoomExists)

	got, err := r.GetRoom(ctx, "a")
	require.NoError(t, err)
	assert.Equal(t, "Calculus a", got.Name)

	list, err := r.ListRooms(ctx, 0)
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, domain.RoomID("b"), list[0].ID)

	list, err = r.ListRooms(ctx, 1)
	require.NoError(t, err)
	assert.Len(t, list, 1)

	got.Name = "Renamed"
	require.NoError(t, r.UpdateRoom(ctx, got))
	got, err = r.GetRoom(ctx, "a")
	require.NoError(t, err)
	assert.Equal(t, "Renamed", got.Name)

	require.NoError(t, r.DeleteRoom(ctx, "a"))
	_, err = r.GetRoom(ctx, "a")
	assert.ErrorIs(t, err, ErrRoomNotFound)
	assert.ErrorIs(t, r.DeleteRoom(ctx, "a"), ErrRoomNotFound)
	assert.ErrorIs(t, r.UpdateRoom(ctx, testRoom("a", now)), ErrRoomNotFound)
}

func TestMemoryRoomRepo_SetParticipantCount_LastWriteWins(t *testing.T) {
	ctx := context.Background()
	r := NewMemoryRoomRepo()
	require.NoError(t, r.CreateRoom(ctx, testRoom("a", time.Now())))

	applied, err := r.SetParticipantCount(ctx, "a", 3, 5)
	require.NoError(t, err)
	assert.True(t, applied)

	applied, err = r.SetParticipantCount(ctx, "a", 1, 4)
	require.NoError(t, err)
	assert.False(t, applied, "older sequence must not overwrite")

	got, err := r.GetRoom(ctx, "a")
	require.NoError(t, err)
	assert.Equal(t, 3, got.ParticipantCount)

	// editing the record keeps the synced count
	got.ParticipantCount = 0
	require.NoError(t, r.UpdateRoom(ctx, got))
	got, err = r.GetRoom(ctx, "a")
	require.NoError(t, err)
	assert.Equal(t, 3, got.ParticipantCount)

	_, err = r.SetParticipantCount(ctx, "missing", 1, 9)
	assert.ErrorIs(t, err, ErrRoomNotFound)
}
