package signal

import (
	"github.com/rs/zerolog/log"

	"github.com/dkeye/studyroom/internal/domain"
	"github.com/dkeye/studyroom/internal/protocol"
)

func (ctl *SignalWSController) handleJoin(id domain.ConnID, m protocol.JoinRoom) {
	snapshot := ctl.Orch.Join(id, m.RoomID, m.UserData)
	log.Debug().Str("module", "signal").Str("conn", string(id)).Str("room", string(m.RoomID)).
		Str("name", m.UserData.Name).Int("already_there", len(snapshot)).Msg("join")
}

// handleLeave leaves one room; the connection itself stays open.
func (ctl *SignalWSController) handleLeave(id domain.ConnID, m protocol.LeaveRoom) {
	if !ctl.Orch.Leave(id, m.RoomID) {
		log.Debug().Str("module", "signal").Str("conn", string(id)).Str("room", string(m.RoomID)).
			Msg("leave from a room the connection is not in")
	}
}
