// Package repo persists room records.
package repo

import (
	"context"
	"errors"

	"github.com/dkeye/studyroom/internal/domain"
)

var (
	ErrRoomNotFound = errors.New("room not found")
	ErrRoomExists   = errors.New("room already exists")
)

type RoomRepo interface {
	CreateRoom(ctx context.Context, room domain.Room) error
	GetRoom(ctx context.Context, id domain.RoomID) (domain.Room, error)
	// ListRooms returns rooms newest first.
	ListRooms(ctx context.Context, limit int) ([]domain.Room, error)
	UpdateRoom(ctx context.Context, room domain.Room) error
	DeleteRoom(ctx context.Context, id domain.RoomID) error

	// SetParticipantCount stores count if seq is newer than the last applied
	// sequence for the room. It reports false for a stale write and
	// ErrRoomNotFound when no record exists.
	SetParticipantCount(ctx context.Context, id domain.RoomID, count int, seq uint64) (bool, error)
}
