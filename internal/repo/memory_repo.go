package repo

import (
	"context"
	"sort"
	"sync"

	"github.com/dkeye/studyroom/internal/domain"
)

type memoryRoom struct {
	room domain.Room
	seq  uint64
}

// MemoryRoomRepo keeps rooms in process memory. Contents are lost on restart.
type MemoryRoomRepo struct {
	mu    sync.RWMutex
	rooms map[domain.RoomID]*memoryRoom
}

func NewMemoryRoomRepo() *MemoryRoomRepo {
	return &MemoryRoomRepo{rooms: make(map[domain.RoomID]*memoryRoom)}
}

func (m *MemoryRoomRepo) CreateRoom(_ context.Context, room domain.Room) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.rooms[room.ID]; ok {
		return ErrRoomExists
	}
	m.rooms[room.ID] = &memoryRoom{room: room}
	return nil
}

func (m *MemoryRoomRepo) GetRoom(_ context.Context, id domain.RoomID) (domain.Room, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	r, ok := m.rooms[id]
	if !ok {
		return domain.Room{}, ErrRoomNotFound
	}
	return r.room, nil
}

func (m *MemoryRoomRepo) ListRooms(_ context.Context, limit int) ([]domain.Room, error) {
	m.mu.RLock()
	out := make([]domain.Room, 0, len(m.rooms))
	for _, r := range m.rooms {
		out = append(out, r.room)
	}
	m.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

// UpdateRoom replaces the editable fields; the participant count is kept.
func (m *MemoryRoomRepo) UpdateRoom(_ context.Context, room domain.Room) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	r, ok := m.rooms[room.ID]
	if !ok {
		return ErrRoomNotFound
	}
	room.ParticipantCount = r.room.ParticipantCount
	r.room = room
	return nil
}

func (m *MemoryRoomRepo) DeleteRoom(_ context.Context, id domain.RoomID) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.rooms[id]; !ok {
		return ErrRoomNotFound
	}
	delete(m.rooms, id)
	return nil
}

func (m *MemoryRoomRepo) SetParticipantCount(_ context.Context, id domain.RoomID, count int, seq uint64) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	r, ok := m.rooms[id]
	if !ok {
		return false, ErrRoomNotFound
	}
	if seq <= r.seq {
		return false, nil
	}
	r.seq = seq
	r.room.ParticipantCount = count
	return true, nil
}
