package signal

import (
	"github.com/rs/zerolog/log"

	"github.com/dkeye/studyroom/internal/domain"
	"github.com/dkeye/studyroom/internal/metrics"
	"github.com/dkeye/studyroom/internal/protocol"
)

// handleRelay forwards an already validated offer, answer or candidate. The
// payload bytes are passed through untouched.
func (ctl *SignalWSController) handleRelay(id domain.ConnID, m protocol.Signal) {
	if ctl.limiter != nil && !ctl.limiter.Allow(id) {
		ctl.Metrics.Drop(metrics.DropRateLimited)
		log.Warn().Str("module", "signal").Str("conn", string(id)).Str("kind", m.Kind).Msg("relay rate limited")
		return
	}
	ctl.Orch.Relay(m.Kind, id, m.To, m.Payload)
}
