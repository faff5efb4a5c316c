package orch

import (
	"github.com/rs/zerolog/log"

	"github.com/dkeye/studyroom/internal/core"
	"github.com/dkeye/studyroom/internal/domain"
	"github.com/dkeye/studyroom/internal/protocol"
)

// Join adds id to room, stores its participant record, tells the other
// members, and replies to id with the records of everyone already there.
// The returned snapshot excludes the joiner.
//
// A second join to a different room overwrites the participant record but
// leaves the connection in the first room's membership set until it leaves
// that room or disconnects.
func (o *Orchestrator) Join(id domain.ConnID, roomID domain.RoomID, data domain.UserData) []domain.Participant {
	o.mu.Lock()
	defer o.mu.Unlock()

	room := o.Rooms.GetOrCreate(roomID)
	room.Add(id)
	p := domain.NewParticipant(id, roomID, data, o.Now())
	o.Registry.SetParticipant(p)

	others := make([]domain.ConnID, 0, room.Len())
	for _, m := range room.Members() {
		if m != id {
			others = append(others, m)
		}
	}
	snapshot := o.Registry.Participants(others)

	o.fanOut(room, id, protocol.UserJoined{
		Type:        protocol.TypeUserJoined,
		RoomID:      roomID,
		UserID:      id,
		Participant: *p,
	})
	if conn, ok := o.Registry.Signal(id); ok {
		o.sendTo(roomID, id, conn, protocol.RoomParticipants{
			Type:         protocol.TypeRoomParticipants,
			RoomID:       roomID,
			Participants: snapshot,
		})
	}
	o.syncCount(roomID, room.Len())

	log.Info().Str("module", "app.orch").Str("conn", string(id)).Str("room", string(roomID)).
		Int("members", room.Len()).Msg("join")
	return snapshot
}

// UpdateParticipant merges upd into id's participant record and notifies the
// other members of roomID. It reports false when id has no record.
func (o *Orchestrator) UpdateParticipant(id domain.ConnID, roomID domain.RoomID, upd domain.ParticipantUpdate) bool {
	o.mu.Lock()
	defer o.mu.Unlock()

	p, ok := o.Registry.Participant(id)
	if !ok {
		log.Debug().Str("module", "app.orch").Str("conn", string(id)).Msg("update without participant record")
		return false
	}
	upd.Apply(p)

	if room, ok := o.Rooms.Get(roomID); ok {
		o.fanOut(room, id, protocol.ParticipantUpdated{
			Type:        protocol.TypeParticipantUpdated,
			RoomID:      roomID,
			UserID:      id,
			Updates:     upd,
			Participant: *p,
		})
	}
	return true
}

// Leave removes id from roomID. It reports whether id was a member.
func (o *Orchestrator) Leave(id domain.ConnID, roomID domain.RoomID) bool {
	o.mu.Lock()
	defer o.mu.Unlock()

	left := false
	if room, ok := o.Rooms.Get(roomID); ok {
		left = o.removeMember(room, id)
	}
	if p, ok := o.Registry.Participant(id); ok && p.RoomID == roomID {
		o.Registry.DeleteParticipant(id)
	}
	log.Info().Str("module", "app.orch").Str("conn", string(id)).Str("room", string(roomID)).
		Bool("was_member", left).Msg("leave")
	return left
}

// Disconnect drops id from every room it is in and forgets the connection.
func (o *Orchestrator) Disconnect(id domain.ConnID) {
	o.mu.Lock()
	defer o.mu.Unlock()

	rooms := o.Rooms.RoomsOf(id)
	for _, room := range rooms {
		o.removeMember(room, id)
	}
	o.Registry.DeleteParticipant(id)
	o.Registry.Unbind(id)
	o.Metrics.SetConnections(o.Registry.ConnCount())

	log.Info().Str("module", "app.orch").Str("conn", string(id)).Int("rooms", len(rooms)).Msg("disconnect")
}

// removeMember removes id, notifies the rest, syncs the count and drops the
// room when it is empty. Must be called with o.mu held.
func (o *Orchestrator) removeMember(room core.Room, id domain.ConnID) bool {
	if !room.Remove(id) {
		return false
	}
	o.fanOut(room, id, protocol.UserLeft{
		Type:   protocol.TypeUserLeft,
		RoomID: room.ID(),
		UserID: id,
	})
	if room.Len() == 0 {
		o.Rooms.Delete(room.ID())
		log.Info().Str("module", "app.orch").Str("room", string(room.ID())).Msg("room emptied")
	}
	o.syncCount(room.ID(), room.Len())
	return true
}
