package core

import "github.com/dkeye/studyroom/internal/domain"

// Room is the live membership set of one room id.
// It owns the set but never touches transport resources.
type Room interface {
	ID() domain.RoomID
	Len() int
	Has(id domain.ConnID) bool
	// Members returns connection ids in join order.
	Members() []domain.ConnID

	Add(id domain.ConnID) bool
	Remove(id domain.ConnID) bool
}

type RoomInfo struct {
	ID          domain.RoomID `json:"id"`
	MemberCount int           `json:"memberCount"`
}
