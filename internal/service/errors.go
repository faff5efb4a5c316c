package service

import "errors"

var (
	ErrRoomNotFound           = errors.New("room not found")
	ErrNotRoomHost            = errors.New("forbidden: not room host")
	ErrInvalidRoom            = errors.New("invalid room")
	ErrRoomIDGenerationFailed = errors.New("failed to generate unique room ID")
)
