// Package service holds the room record use cases behind the REST API.
package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/dkeye/studyroom/internal/domain"
	"github.com/dkeye/studyroom/internal/repo"
)

type IDGenerator interface {
	New() (domain.RoomID, error)
}

type uuidGen struct{}

func (uuidGen) New() (domain.RoomID, error) { return domain.RoomID(uuid.NewString()), nil }

func NewRoomIDGenerator() IDGenerator { return uuidGen{} }

// CreateRoomInput is what a host may set when creating a room.
type CreateRoomInput struct {
	Name      string `json:"name"`
	Topic     string `json:"topic"`
	Capacity  int    `json:"capacity"`
	IsPrivate bool   `json:"isPrivate"`
}

type RoomService struct {
	repo repo.RoomRepo
	idg  IDGenerator
	now  func() time.Time
}

func NewRoomService(r repo.RoomRepo, idg IDGenerator) *RoomService {
	if idg == nil {
		idg = NewRoomIDGenerator()
	}
	return &RoomService{repo: r, idg: idg, now: time.Now}
}

// Create stores a new room owned by host. Ids that collide with an existing
// record are regenerated a few times before giving up.
func (s *RoomService) Create(ctx context.Context, host string, in CreateRoomInput) (domain.Room, error) {
	const maxRetries = 5

	room := domain.Room{
		Name:      in.Name,
		Topic:     in.Topic,
		Capacity:  in.Capacity,
		IsPrivate: in.IsPrivate,
		HostID:    host,
		CreatedAt: s.now().UTC(),
	}
	if err := room.Validate(); err != nil {
		return domain.Room{}, fmt.Errorf("%w: %w", ErrInvalidRoom, err)
	}

	for i := 0; i < maxRetries; i++ {
		id, err := s.idg.New()
		if err != nil {
			return domain.Room{}, err
		}
		room.ID = id
		err = s.repo.CreateRoom(ctx, room)
		if err == nil {
			log.Info().Str("module", "service").Str("room", string(id)).Str("host", host).Msg("room created")
			return room, nil
		}
		if !errors.Is(err, repo.ErrRoomExists) {
			return domain.Room{}, err
		}
	}
	return domain.Room{}, ErrRoomIDGenerationFailed
}

func (s *RoomService) Get(ctx context.Context, id domain.RoomID) (domain.Room, error) {
	r, err := s.repo.GetRoom(ctx, id)
	if errors.Is(err, repo.ErrRoomNotFound) {
		return domain.Room{}, ErrRoomNotFound
	}
	return r, err
}

// List returns public rooms plus the private rooms hosted by viewer, newest first.
func (s *RoomService) List(ctx context.Context, viewer string, limit int) ([]domain.Room, error) {
	all, err := s.repo.ListRooms(ctx, limit)
	if err != nil {
		return nil, err
	}
	out := make([]domain.Room, 0, len(all))
	for _, r := range all {
		if r.IsPrivate && r.HostID != viewer {
			continue
		}
		out = append(out, r)
	}
	return out, nil
}

// Update applies patch to a room hosted by host.
func (s *RoomService) Update(ctx context.Context, host string, id domain.RoomID, patch domain.RoomPatch) (domain.Room, error) {
	r, err := s.owned(ctx, host, id)
	if err != nil {
		return domain.Room{}, err
	}
	if err := patch.Apply(&r); err != nil {
		return domain.Room{}, fmt.Errorf("%w: %w", ErrInvalidRoom, err)
	}
	if err := s.repo.UpdateRoom(ctx, r); err != nil {
		if errors.Is(err, repo.ErrRoomNotFound) {
			return domain.Room{}, ErrRoomNotFound
		}
		return domain.Room{}, err
	}
	return r, nil
}

// Delete removes a room hosted by host. Live members are not disconnected.
func (s *RoomService) Delete(ctx context.Context, host string, id domain.RoomID) error {
	if _, err := s.owned(ctx, host, id); err != nil {
		return err
	}
	if err := s.repo.DeleteRoom(ctx, id); err != nil {
		if errors.Is(err, repo.ErrRoomNotFound) {
			return ErrRoomNotFound
		}
		return err
	}
	log.Info().Str("module", "service").Str("room", string(id)).Msg("room deleted")
	return nil
}

func (s *RoomService) owned(ctx context.Context, host string, id domain.RoomID) (domain.Room, error) {
	r, err := s.Get(ctx, id)
	if err != nil {
		return domain.Room{}, err
	}
	if r.HostID != host {
		return domain.Room{}, ErrNotRoomHost
	}
	return r, nil
}
