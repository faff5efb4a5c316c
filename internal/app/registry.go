package app

import (
	"github.com/dkeye/studyroom/internal/core"
	"github.com/dkeye/studyroom/internal/domain"
	"github.com/rs/zerolog/log"
)

// Registry tracks live connections and their participant records.
// Not safe for concurrent use; the orchestrator serializes access.
type Registry struct {
	conns        map[domain.ConnID]core.SignalConnection
	participants map[domain.ConnID]*domain.Participant
}

func NewRegistry() *Registry {
	return &Registry{
		conns:        make(map[domain.ConnID]core.SignalConnection),
		participants: make(map[domain.ConnID]*domain.Participant),
	}
}

func (r *Registry) BindSignal(id domain.ConnID, conn core.SignalConnection) {
	r.conns[id] = conn
	log.Info().Str("module", "app.registry").Str("conn", string(id)).Msg("bound signal")
}

func (r *Registry) Signal(id domain.ConnID) (core.SignalConnection, bool) {
	c, ok := r.conns[id]
	return c, ok
}

func (r *Registry) Unbind(id domain.ConnID) {
	delete(r.conns, id)
	log.Info().Str("module", "app.registry").Str("conn", string(id)).Msg("unbind signal")
}

func (r *Registry) ConnCount() int { return len(r.conns) }

func (r *Registry) Participant(id domain.ConnID) (*domain.Participant, bool) {
	p, ok := r.participants[id]
	return p, ok
}

// SetParticipant stores p, overwriting any previous record for the same connection.
func (r *Registry) SetParticipant(p *domain.Participant) {
	if prev, ok := r.participants[p.ID]; ok && prev.RoomID != p.RoomID {
		log.Warn().Str("module", "app.registry").Str("conn", string(p.ID)).
			Str("from_room", string(prev.RoomID)).Str("room", string(p.RoomID)).
			Msg("participant record overwritten by join to another room")
	}
	r.participants[p.ID] = p
}

func (r *Registry) DeleteParticipant(id domain.ConnID) {
	delete(r.participants, id)
}

// Participants returns copies of the records for ids, skipping ids without one.
func (r *Registry) Participants(ids []domain.ConnID) []domain.Participant {
	out := make([]domain.Participant, 0, len(ids))
	for _, id := range ids {
		if p, ok := r.participants[id]; ok {
			out = append(out, *p)
		}
	}
	return out
}
