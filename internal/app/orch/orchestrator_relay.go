package orch

import (
	"encoding/json"

	"github.com/rs/zerolog/log"

	"github.com/dkeye/studyroom/internal/domain"
	"github.com/dkeye/studyroom/internal/metrics"
	"github.com/dkeye/studyroom/internal/protocol"
)

// Relay forwards an offer, answer or ICE candidate to exactly one connection.
// Sender and target need not share a room. A missing target is dropped
// silently; the result only feeds logs and metrics.
func (o *Orchestrator) Relay(kind string, from, to domain.ConnID, payload json.RawMessage) bool {
	o.mu.Lock()
	defer o.mu.Unlock()

	conn, ok := o.Registry.Signal(to)
	if !ok {
		o.Metrics.Drop(metrics.DropNoTarget)
		log.Debug().Str("module", "app.orch").Str("kind", kind).Str("from", string(from)).
			Str("to", string(to)).Msg("relay target not connected")
		return false
	}
	room := domain.RoomID("")
	if p, ok := o.Registry.Participant(to); ok {
		room = p.RoomID
	}
	frame, err := protocol.Encode(protocol.NewRelayed(kind, from, payload))
	if err != nil {
		log.Error().Err(err).Str("module", "app.orch").Msg("encode relay")
		return false
	}
	return o.deliver(room, to, conn, frame)
}

// BroadcastMessage delivers a chat message to every member of room, the
// sender included. It returns the number of members reached.
func (o *Orchestrator) BroadcastMessage(from domain.ConnID, roomID domain.RoomID, msg json.RawMessage) int {
	o.mu.Lock()
	defer o.mu.Unlock()

	room, ok := o.Rooms.Get(roomID)
	if !ok {
		return 0
	}
	return o.fanOut(room, "", protocol.NewMessage{
		Type:    protocol.TypeNewMessage,
		RoomID:  roomID,
		From:    from,
		Message: msg,
	})
}

// BroadcastReaction delivers a reaction to every member of room except the sender.
func (o *Orchestrator) BroadcastReaction(from domain.ConnID, roomID domain.RoomID, reaction json.RawMessage) int {
	o.mu.Lock()
	defer o.mu.Unlock()

	room, ok := o.Rooms.Get(roomID)
	if !ok {
		return 0
	}
	return o.fanOut(room, from, protocol.NewReaction{
		Type:     protocol.TypeNewReaction,
		RoomID:   roomID,
		From:     from,
		Reaction: reaction,
	})
}
