package app

import (
	"github.com/dkeye/studyroom/internal/core"
	"github.com/dkeye/studyroom/internal/domain"
)

// RoomManager owns the membership sets keyed by room id.
// Not safe for concurrent use; the orchestrator serializes access.
type RoomManager struct {
	rooms map[domain.RoomID]core.Room
}

func NewRoomManager() *RoomManager {
	return &RoomManager{rooms: make(map[domain.RoomID]core.Room)}
}

func (m *RoomManager) Get(id domain.RoomID) (core.Room, bool) {
	r, ok := m.rooms[id]
	return r, ok
}

func (m *RoomManager) GetOrCreate(id domain.RoomID) core.Room {
	if r, ok := m.rooms[id]; ok {
		return r
	}
	r := core.NewRoom(id)
	m.rooms[id] = r
	return r
}

func (m *RoomManager) Delete(id domain.RoomID) {
	delete(m.rooms, id)
}

func (m *RoomManager) Len() int { return len(m.rooms) }

// RoomsOf lists every room whose membership set contains conn.
func (m *RoomManager) RoomsOf(conn domain.ConnID) []core.Room {
	var out []core.Room
	for _, r := range m.rooms {
		if r.Has(conn) {
			out = append(out, r)
		}
	}
	return out
}

func (m *RoomManager) List() []core.RoomInfo {
	out := make([]core.RoomInfo, 0, len(m.rooms))
	for id, r := range m.rooms {
		out = append(out, core.RoomInfo{ID: id, MemberCount: r.Len()})
	}
	return out
}
