package signal

import (
	"github.com/rs/zerolog/log"

	"github.com/dkeye/studyroom/internal/domain"
	"github.com/dkeye/studyroom/internal/protocol"
)

func (ctl *SignalWSController) handlePing(id domain.ConnID) {
	ctl.Orch.Pong(id)
}

func (ctl *SignalWSController) handleMessage(id domain.ConnID, m protocol.SendMessage) {
	n := ctl.Orch.BroadcastMessage(id, m.RoomID, m.Message)
	log.Debug().Str("module", "signal").Str("conn", string(id)).Str("room", string(m.RoomID)).
		Int("delivered", n).Msg("message")
}

func (ctl *SignalWSController) handleReaction(id domain.ConnID, m protocol.SendReaction) {
	ctl.Orch.BroadcastReaction(id, m.RoomID, m.Reaction)
}
