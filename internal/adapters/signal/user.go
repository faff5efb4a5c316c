package signal

import (
	"github.com/rs/zerolog/log"

	"github.com/dkeye/studyroom/internal/domain"
	"github.com/dkeye/studyroom/internal/protocol"
)

func (ctl *SignalWSController) handleUpdate(id domain.ConnID, m protocol.UpdateParticipant) {
	if !ctl.Orch.UpdateParticipant(id, m.RoomID, m.Updates) {
		log.Debug().Str("module", "signal").Str("conn", string(id)).Msg("update ignored: not joined")
	}
}
