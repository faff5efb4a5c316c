package protocol

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/pion/webrtc/v4"

	"github.com/dkeye/studyroom/internal/domain"
)

var (
	ErrBadJSON       = errors.New("bad json")
	ErrUnknownType   = errors.New("unknown message type")
	ErrMissingRoom   = errors.New("roomId required")
	ErrMissingTarget = errors.New("target required")
	ErrBadSDP        = errors.New("invalid session description")
	ErrBadCandidate  = errors.New("invalid ice candidate")
	ErrEmptyPayload  = errors.New("empty payload")
	ErrEmptyUpdate   = errors.New("empty update")
)

// Inbound is one decoded, validated client message.
type Inbound interface {
	MessageType() string
}

type JoinRoom struct {
	RoomID   domain.RoomID   `json:"roomId"`
	UserData domain.UserData `json:"userData"`
}

// Signal is an offer, answer or ICE candidate addressed to one connection.
type Signal struct {
	Kind    string
	To      domain.ConnID
	Payload json.RawMessage
}

type SendMessage struct {
	RoomID  domain.RoomID   `json:"roomId"`
	Message json.RawMessage `json:"message"`
}

type SendReaction struct {
	RoomID   domain.RoomID   `json:"roomId"`
	Reaction json.RawMessage `json:"reaction"`
}

type UpdateParticipant struct {
	RoomID  domain.RoomID            `json:"roomId"`
	Updates domain.ParticipantUpdate `json:"updates"`
}

type LeaveRoom struct {
	RoomID domain.RoomID `json:"roomId"`
}

type Ping struct{}

func (JoinRoom) MessageType() string          { return TypeJoinRoom }
func (s Signal) MessageType() string          { return s.Kind }
func (SendMessage) MessageType() string       { return TypeSendMessage }
func (SendReaction) MessageType() string      { return TypeSendReaction }
func (UpdateParticipant) MessageType() string { return TypeUpdateParticipant }
func (LeaveRoom) MessageType() string         { return TypeLeaveRoom }
func (Ping) MessageType() string              { return TypePing }

// Decode parses and validates one inbound frame. The returned type string is
// set whenever the envelope parsed, even if validation failed.
func Decode(data []byte) (string, Inbound, error) {
	var env struct {
		Type string `json:"type"`
	}
	if err := json.Unmarshal(data, &env); err != nil {
		return "", nil, fmt.Errorf("%w: %v", ErrBadJSON, err)
	}

	var (
		msg Inbound
		err error
	)
	switch env.Type {
	case TypeJoinRoom:
		msg, err = decodeJoin(data)
	case TypeOffer, TypeAnswer, TypeICECandidate:
		msg, err = decodeSignal(env.Type, data)
	case TypeSendMessage:
		var m SendMessage
		if err = unmarshal(data, &m); err == nil {
			err = validateBroadcast(&m.RoomID, m.Message)
		}
		msg = m
	case TypeSendReaction:
		var m SendReaction
		if err = unmarshal(data, &m); err == nil {
			err = validateBroadcast(&m.RoomID, m.Reaction)
		}
		msg = m
	case TypeUpdateParticipant:
		msg, err = decodeUpdate(data)
	case TypeLeaveRoom:
		var m LeaveRoom
		if err = unmarshal(data, &m); err == nil {
			err = validateRoom(&m.RoomID)
		}
		msg = m
	case TypePing:
		msg = Ping{}
	default:
		return env.Type, nil, ErrUnknownType
	}
	if err != nil {
		return env.Type, nil, err
	}
	return env.Type, msg, nil
}

func unmarshal(data []byte, v any) error {
	if err := json.Unmarshal(data, v); err != nil {
		return fmt.Errorf("%w: %v", ErrBadJSON, err)
	}
	return nil
}

func validateRoom(id *domain.RoomID) error {
	*id = domain.RoomID(strings.TrimSpace(string(*id)))
	if *id == "" {
		return ErrMissingRoom
	}
	return nil
}

func isEmpty(raw json.RawMessage) bool {
	t := bytes.TrimSpace(raw)
	return len(t) == 0 || bytes.Equal(t, []byte("null")) || bytes.Equal(t, []byte(`""`))
}

func validateBroadcast(room *domain.RoomID, payload json.RawMessage) error {
	if err := validateRoom(room); err != nil {
		return err
	}
	if isEmpty(payload) {
		return ErrEmptyPayload
	}
	return nil
}

func decodeJoin(data []byte) (JoinRoom, error) {
	var m JoinRoom
	if err := unmarshal(data, &m); err != nil {
		return m, err
	}
	if err := validateRoom(&m.RoomID); err != nil {
		return m, err
	}
	if err := m.UserData.Validate(); err != nil {
		return m, err
	}
	return m, nil
}

func decodeUpdate(data []byte) (UpdateParticipant, error) {
	var m UpdateParticipant
	if err := unmarshal(data, &m); err != nil {
		return m, err
	}
	if err := validateRoom(&m.RoomID); err != nil {
		return m, err
	}
	if m.Updates.Empty() {
		return m, ErrEmptyUpdate
	}
	if m.Updates.Name != nil {
		name := strings.TrimSpace(*m.Updates.Name)
		m.Updates.Name = &name
	}
	return m, m.Updates.Validate()
}

// payloadField maps a signal kind to the JSON field carrying its payload.
var payloadField = map[string]string{
	TypeOffer:        "offer",
	TypeAnswer:       "answer",
	TypeICECandidate: "candidate",
}

func decodeSignal(kind string, data []byte) (Signal, error) {
	var fields map[string]json.RawMessage
	if err := unmarshal(data, &fields); err != nil {
		return Signal{}, err
	}
	var to string
	if raw, ok := fields["to"]; ok {
		if err := json.Unmarshal(raw, &to); err != nil {
			return Signal{}, fmt.Errorf("%w: to: %v", ErrBadJSON, err)
		}
	}
	to = strings.TrimSpace(to)
	if to == "" {
		return Signal{}, ErrMissingTarget
	}
	payload := fields[payloadField[kind]]
	if isEmpty(payload) {
		return Signal{}, ErrEmptyPayload
	}

	var err error
	switch kind {
	case TypeOffer:
		err = validateSDP(payload, webrtc.SDPTypeOffer)
	case TypeAnswer:
		err = validateSDP(payload, webrtc.SDPTypeAnswer, webrtc.SDPTypePranswer)
	case TypeICECandidate:
		err = validateCandidate(payload)
	}
	if err != nil {
		return Signal{}, err
	}
	return Signal{Kind: kind, To: domain.ConnID(to), Payload: payload}, nil
}

func validateSDP(raw json.RawMessage, allowed ...webrtc.SDPType) error {
	var desc webrtc.SessionDescription
	if err := json.Unmarshal(raw, &desc); err != nil {
		return fmt.Errorf("%w: %v", ErrBadSDP, err)
	}
	typeOK := false
	for _, t := range allowed {
		if desc.Type == t {
			typeOK = true
			break
		}
	}
	if !typeOK {
		return fmt.Errorf("%w: unexpected type %q", ErrBadSDP, desc.Type.String())
	}
	if strings.TrimSpace(desc.SDP) == "" {
		return fmt.Errorf("%w: empty sdp", ErrBadSDP)
	}
	if _, err := desc.Unmarshal(); err != nil {
		return fmt.Errorf("%w: %v", ErrBadSDP, err)
	}
	return nil
}

func validateCandidate(raw json.RawMessage) error {
	var c webrtc.ICECandidateInit
	if err := json.Unmarshal(raw, &c); err != nil {
		return fmt.Errorf("%w: %v", ErrBadCandidate, err)
	}
	// an empty candidate string marks end of candidates
	if c.Candidate == "" {
		return nil
	}
	if !strings.HasPrefix(strings.TrimPrefix(c.Candidate, "a="), "candidate:") {
		return fmt.Errorf("%w: missing candidate prefix", ErrBadCandidate)
	}
	if c.SDPMid == nil && c.SDPMLineIndex == nil {
		return fmt.Errorf("%w: sdpMid or sdpMLineIndex required", ErrBadCandidate)
	}
	return nil
}
