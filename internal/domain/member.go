package domain

import "time"

// Participant is the per-connection record kept while a connection is in a room.
// No transport or lifecycle logic here.
type Participant struct {
	ID ConnID `json:"id"`
	UserData
	RoomID   RoomID    `json:"roomId"`
	JoinedAt time.Time `json:"joinedAt"`
}

// NewParticipant keeps construction out of adapters.
func NewParticipant(id ConnID, room RoomID, data UserData, now time.Time) *Participant {
	return &Participant{ID: id, UserData: data, RoomID: room, JoinedAt: now}
}

// ParticipantUpdate is a partial UserData; nil fields are left untouched.
type ParticipantUpdate struct {
	Name            *string `json:"name,omitempty"`
	Avatar          *string `json:"avatar,omitempty"`
	IsMuted         *bool   `json:"isMuted,omitempty"`
	IsVideoOff      *bool   `json:"isVideoOff,omitempty"`
	IsScreenSharing *bool   `json:"isScreenSharing,omitempty"`
}

func (u ParticipantUpdate) Empty() bool {
	return u.Name == nil && u.Avatar == nil && u.IsMuted == nil &&
		u.IsVideoOff == nil && u.IsScreenSharing == nil
}

// Validate checks the same limits as UserData.Validate for the fields present.
func (u ParticipantUpdate) Validate() error {
	if u.Name != nil && len(*u.Name) > MaxUsernameLen {
		return ErrUsernameTooLong
	}
	if u.Avatar != nil && len(*u.Avatar) > MaxAvatarLen {
		return ErrAvatarTooLong
	}
	return nil
}

// Apply merges the non-nil fields into p.
func (u ParticipantUpdate) Apply(p *Participant) {
	if u.Name != nil {
		p.Name = *u.Name
	}
	if u.Avatar != nil {
		p.Avatar = *u.Avatar
	}
	if u.IsMuted != nil {
		p.IsMuted = *u.IsMuted
	}
	if u.IsVideoOff != nil {
		p.IsVideoOff = *u.IsVideoOff
	}
	if u.IsScreenSharing != nil {
		p.IsScreenSharing = *u.IsScreenSharing
	}
}
