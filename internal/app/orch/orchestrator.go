package orch

import (
	"errors"
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/dkeye/studyroom/internal/app"
	"github.com/dkeye/studyroom/internal/core"
	"github.com/dkeye/studyroom/internal/domain"
	"github.com/dkeye/studyroom/internal/metrics"
	"github.com/dkeye/studyroom/internal/protocol"
)

// CountScheduler receives the new size of a room after every membership change.
type CountScheduler interface {
	Schedule(id domain.RoomID, count int) uint64
}

// Orchestrator owns the presence state of one relay instance and runs every
// signaling operation against it. A single mutex serializes all operations,
// so membership changes and the notifications they produce are observed in
// the same order by every member.
type Orchestrator struct {
	mu sync.Mutex

	Registry *app.Registry
	Rooms    *app.RoomManager
	Policy   app.Policy
	Counts   CountScheduler
	Metrics  *metrics.Metrics
	Now      func() time.Time
}

// New builds an orchestrator with empty state. counts and m may be nil.
func New(policy app.Policy, counts CountScheduler, m *metrics.Metrics) *Orchestrator {
	if policy == nil {
		policy = app.DropPolicy{}
	}
	return &Orchestrator{
		Registry: app.NewRegistry(),
		Rooms:    app.NewRoomManager(),
		Policy:   policy,
		Counts:   counts,
		Metrics:  m,
		Now:      time.Now,
	}
}

// Connect registers a new signaling connection and tells it its id.
func (o *Orchestrator) Connect(id domain.ConnID, conn core.SignalConnection) {
	o.mu.Lock()
	defer o.mu.Unlock()

	o.Registry.BindSignal(id, conn)
	o.Metrics.SetConnections(o.Registry.ConnCount())
	o.sendTo("", id, conn, protocol.Connected{Type: protocol.TypeConnected, ID: id})
}

// Pong answers a ping on the caller's own connection.
func (o *Orchestrator) Pong(id domain.ConnID) {
	o.mu.Lock()
	defer o.mu.Unlock()
	if conn, ok := o.Registry.Signal(id); ok {
		o.sendTo("", id, conn, protocol.Pong{Type: protocol.TypePong})
	}
}

// Members returns the participant records of a room in join order.
func (o *Orchestrator) Members(room domain.RoomID) []domain.Participant {
	o.mu.Lock()
	defer o.mu.Unlock()
	r, ok := o.Rooms.Get(room)
	if !ok {
		return []domain.Participant{}
	}
	return o.Registry.Participants(r.Members())
}

func (o *Orchestrator) HasRoom(room domain.RoomID) bool {
	o.mu.Lock()
	defer o.mu.Unlock()
	_, ok := o.Rooms.Get(room)
	return ok
}

// LiveRooms lists rooms that currently have members.
func (o *Orchestrator) LiveRooms() []core.RoomInfo {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.Rooms.List()
}

// sendTo encodes v and enqueues it on conn. Must be called with o.mu held.
func (o *Orchestrator) sendTo(room domain.RoomID, id domain.ConnID, conn core.SignalConnection, v any) {
	frame, err := protocol.Encode(v)
	if err != nil {
		log.Error().Err(err).Str("module", "app.orch").Msg("encode frame")
		return
	}
	o.deliver(room, id, conn, frame)
}

// fanOut sends v to every member of room except skip. Must be called with o.mu held.
func (o *Orchestrator) fanOut(room core.Room, skip domain.ConnID, v any) int {
	frame, err := protocol.Encode(v)
	if err != nil {
		log.Error().Err(err).Str("module", "app.orch").Msg("encode frame")
		return 0
	}
	sent := 0
	for _, id := range room.Members() {
		if id == skip {
			continue
		}
		conn, ok := o.Registry.Signal(id)
		if !ok {
			o.Metrics.Drop(metrics.DropNoTarget)
			continue
		}
		if o.deliver(room.ID(), id, conn, frame) {
			sent++
		}
	}
	log.Debug().Str("module", "app.orch").Str("room", string(room.ID())).Int("sent_to", sent).Msg("fan out")
	return sent
}

func (o *Orchestrator) deliver(room domain.RoomID, id domain.ConnID, conn core.SignalConnection, frame core.Frame) bool {
	err := conn.TrySend(frame)
	switch {
	case err == nil:
		return true
	case errors.Is(err, core.ErrBackpressure):
		o.Metrics.Drop(metrics.DropBackpressure)
		if o.Policy.OnBackPressure(room, id) == app.KickMember {
			log.Warn().Str("module", "app.orch").Str("conn", string(id)).Msg("kicking slow member")
			conn.Close()
		}
	default:
		o.Metrics.Drop(metrics.DropNoTarget)
	}
	return false
}

// syncCount schedules a persisted count update for room. Must be called with o.mu held.
func (o *Orchestrator) syncCount(room domain.RoomID, count int) {
	o.Metrics.SetRooms(o.Rooms.Len())
	if o.Counts == nil {
		return
	}
	o.Counts.Schedule(room, count)
}
