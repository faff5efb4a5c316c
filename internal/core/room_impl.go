package core

import (
	"cmp"
	"slices"

	"github.com/dkeye/studyroom/internal/domain"
)

// roomImpl is an in-memory membership set. Not safe for concurrent use;
// callers serialize access.
type roomImpl struct {
	id      domain.RoomID
	members map[domain.ConnID]uint64
	next    uint64
}

func NewRoom(id domain.RoomID) Room {
	return &roomImpl{id: id, members: make(map[domain.ConnID]uint64)}
}

func (r *roomImpl) ID() domain.RoomID { return r.id }

func (r *roomImpl) Len() int { return len(r.members) }

func (r *roomImpl) Has(id domain.ConnID) bool {
	_, ok := r.members[id]
	return ok
}

func (r *roomImpl) Add(id domain.ConnID) bool {
	if _, ok := r.members[id]; ok {
		return false
	}
	r.next++
	r.members[id] = r.next
	return true
}

func (r *roomImpl) Remove(id domain.ConnID) bool {
	if _, ok := r.members[id]; !ok {
		return false
	}
	delete(r.members, id)
	return true
}

func (r *roomImpl) Members() []domain.ConnID {
	out := make([]domain.ConnID, 0, len(r.members))
	for id := range r.members {
		out = append(out, id)
	}
	slices.SortFunc(out, func(a, b domain.ConnID) int {
		return cmp.Compare(r.members[a], r.members[b])
	})
	return out
}
