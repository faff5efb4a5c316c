// Package domain contains entity without logic, just meta-data
package domain

import (
	"errors"
	"strings"
)

const (
	MaxUsernameLen = 64
	MaxAvatarLen   = 2048
)

var (
	ErrUsernameTooLong = errors.New("username too long")
	ErrAvatarTooLong   = errors.New("avatar too long")
)

// ConnID identifies a single signaling connection. A reconnect gets a new one.
type ConnID string

// UserData is the caller-supplied display data of a participant.
type UserData struct {
	Name            string `json:"name"`
	Avatar          string `json:"avatar,omitempty"`
	IsMuted         bool   `json:"isMuted"`
	IsVideoOff      bool   `json:"isVideoOff"`
	IsScreenSharing bool   `json:"isScreenSharing"`
}

// Validate trims the name and checks length limits.
func (u *UserData) Validate() error {
	u.Name = strings.TrimSpace(u.Name)
	if len(u.Name) > MaxUsernameLen {
		return ErrUsernameTooLong
	}
	if len(u.Avatar) > MaxAvatarLen {
		return ErrAvatarTooLong
	}
	if u.Name == "" {
		u.Name = "guest"
	}
	return nil
}
