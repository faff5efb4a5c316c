package domain

import (
	"errors"
	"strings"
	"time"
)

type RoomID string

const (
	MaxRoomNameLen  = 80
	MaxRoomTopicLen = 200
	MinCapacity     = 2
	MaxCapacity     = 50
	DefaultCapacity = 10
)

var (
	ErrRoomNameEmpty    = errors.New("room name empty")
	ErrRoomNameTooLong  = errors.New("room name too long")
	ErrRoomTopicTooLong = errors.New("room topic too long")
	ErrRoomCapacity     = errors.New("room capacity out of range")
)

// Room is the persisted room record. ParticipantCount is denormalized from
// live membership and only approximately correct.
type Room struct {
	ID               RoomID    `json:"id"`
	Name             string    `json:"name"`
	Topic            string    `json:"topic,omitempty"`
	Capacity         int       `json:"capacity"`
	IsPrivate        bool      `json:"isPrivate"`
	HostID           string    `json:"hostId"`
	ParticipantCount int       `json:"participantCount"`
	CreatedAt        time.Time `json:"createdAt"`
}

// Validate normalizes and checks the user-editable fields.
func (r *Room) Validate() error {
	r.Name = strings.TrimSpace(r.Name)
	r.Topic = strings.TrimSpace(r.Topic)
	if r.Capacity == 0 {
		r.Capacity = DefaultCapacity
	}
	switch {
	case r.Name == "":
		return ErrRoomNameEmpty
	case len(r.Name) > MaxRoomNameLen:
		return ErrRoomNameTooLong
	case len(r.Topic) > MaxRoomTopicLen:
		return ErrRoomTopicTooLong
	case r.Capacity < MinCapacity || r.Capacity > MaxCapacity:
		return ErrRoomCapacity
	}
	return nil
}

// RoomPatch is a partial update of a Room; nil fields are left untouched.
type RoomPatch struct {
	Name      *string `json:"name,omitempty"`
	Topic     *string `json:"topic,omitempty"`
	Capacity  *int    `json:"capacity,omitempty"`
	IsPrivate *bool   `json:"isPrivate,omitempty"`
}

// Apply merges the patch into r and re-validates the result.
func (p RoomPatch) Apply(r *Room) error {
	if p.Name != nil {
		r.Name = *p.Name
	}
	if p.Topic != nil {
		r.Topic = *p.Topic
	}
	if p.Capacity != nil {
		if *p.Capacity == 0 {
			return ErrRoomCapacity
		}
		r.Capacity = *p.Capacity
	}
	if p.IsPrivate != nil {
		r.IsPrivate = *p.IsPrivate
	}
	return r.Validate()
}
