// Package protocol defines the JSON messages exchanged on the signaling socket.
//
// Every frame is a JSON object with a "type" field. Inbound frames decode into
// one concrete struct per type and are validated before they reach the relay;
// payloads that pass validation are forwarded byte for byte.
package protocol

import (
	"encoding/json"

	"github.com/dkeye/studyroom/internal/core"
	"github.com/dkeye/studyroom/internal/domain"
)

// Client to server.
const (
	TypeJoinRoom          = "join-room"
	TypeOffer             = "offer"
	TypeAnswer            = "answer"
	TypeICECandidate      = "ice-candidate"
	TypeSendMessage       = "send-message"
	TypeSendReaction      = "send-reaction"
	TypeUpdateParticipant = "update-participant"
	TypeLeaveRoom         = "leave-room"
	TypePing              = "ping"
)

// Server to client. Relayed offer/answer/ice-candidate keep their inbound type.
const (
	TypeConnected          = "connected"
	TypeUserJoined         = "user-joined"
	TypeUserLeft           = "user-left"
	TypeRoomParticipants   = "room-participants"
	TypeNewMessage         = "new-message"
	TypeNewReaction        = "new-reaction"
	TypeParticipantUpdated = "participant-updated"
	TypePong               = "pong"
)

type Connected struct {
	Type string        `json:"type"`
	ID   domain.ConnID `json:"id"`
}

type UserJoined struct {
	Type        string             `json:"type"`
	RoomID      domain.RoomID      `json:"roomId"`
	UserID      domain.ConnID      `json:"userId"`
	Participant domain.Participant `json:"participant"`
}

type UserLeft struct {
	Type   string        `json:"type"`
	RoomID domain.RoomID `json:"roomId"`
	UserID domain.ConnID `json:"userId"`
}

type RoomParticipants struct {
	Type         string               `json:"type"`
	RoomID       domain.RoomID        `json:"roomId"`
	Participants []domain.Participant `json:"participants"`
}

type NewMessage struct {
	Type    string          `json:"type"`
	RoomID  domain.RoomID   `json:"roomId"`
	From    domain.ConnID   `json:"from"`
	Message json.RawMessage `json:"message"`
}

type NewReaction struct {
	Type     string          `json:"type"`
	RoomID   domain.RoomID   `json:"roomId"`
	From     domain.ConnID   `json:"from"`
	Reaction json.RawMessage `json:"reaction"`
}

type ParticipantUpdated struct {
	Type        string                   `json:"type"`
	RoomID      domain.RoomID            `json:"roomId"`
	UserID      domain.ConnID            `json:"userId"`
	Updates     domain.ParticipantUpdate `json:"updates"`
	Participant domain.Participant       `json:"participant"`
}

// Relayed is an offer, answer or ICE candidate delivered to its target,
// tagged with the sender's connection id.
type Relayed struct {
	Type      string          `json:"type"`
	From      domain.ConnID   `json:"from"`
	Offer     json.RawMessage `json:"offer,omitempty"`
	Answer    json.RawMessage `json:"answer,omitempty"`
	Candidate json.RawMessage `json:"candidate,omitempty"`
}

type Pong struct {
	Type string `json:"type"`
}

// NewRelayed builds the outbound frame for a relayed signal of kind.
func NewRelayed(kind string, from domain.ConnID, payload json.RawMessage) Relayed {
	r := Relayed{Type: kind, From: from}
	switch kind {
	case TypeOffer:
		r.Offer = payload
	case TypeAnswer:
		r.Answer = payload
	case TypeICECandidate:
		r.Candidate = payload
	}
	return r
}

// Encode marshals an outbound message into a frame.
func Encode(v any) (core.Frame, error) {
	b, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	return core.Frame(b), nil
}
