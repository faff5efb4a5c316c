package signal

import (
	"context"
	"errors"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"

	"github.com/dkeye/studyroom/internal/domain"
	"github.com/dkeye/studyroom/internal/metrics"
	"github.com/dkeye/studyroom/internal/protocol"
)

func (ctl *SignalWSController) writePump(ctx context.Context, c *WsSignalConn) {
	ticker := time.NewTicker(ctl.opts.PingPeriod)
	defer func() {
		ticker.Stop()
		_ = c.conn.Close()
	}()

	for {
		select {
		case <-ctx.Done():
			return
		case data, ok := <-c.send:
			if err := c.conn.SetWriteDeadline(time.Now().Add(ctl.opts.WriteWait)); err != nil {
				log.Error().Err(err).Str("module", "signal").Msg("writePump set deadline")
				return
			}
			if !ok {
				_ = c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, data); err != nil {
				log.Debug().Err(err).Str("module", "signal").Msg("writePump write error")
				return
			}
		case <-ticker.C:
			if err := c.conn.SetWriteDeadline(time.Now().Add(ctl.opts.WriteWait)); err != nil {
				return
			}
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				log.Debug().Err(err).Str("module", "signal").Msg("writePump ping error")
				return
			}
		}
	}
}

// readPump owns the connection lifecycle: when it returns, the connection is
// disconnected from every room it was in.
func (ctl *SignalWSController) readPump(ctx context.Context, cancel context.CancelFunc, id domain.ConnID, c *WsSignalConn) {
	defer func() {
		defer ctl.live.Done()
		ctl.Orch.Disconnect(id)
		if ctl.limiter != nil {
			ctl.limiter.Forget(id)
		}
		c.Close()
		cancel()
		log.Info().Str("module", "signal").Str("conn", string(id)).Msg("readPump closed")
	}()

	c.conn.SetReadLimit(ctl.opts.ReadLimit)
	_ = c.conn.SetReadDeadline(time.Now().Add(ctl.opts.PongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(ctl.opts.PongWait))
	})

	for {
		if ctx.Err() != nil {
			return
		}
		_, data, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				log.Warn().Err(err).Str("module", "signal").Str("conn", string(id)).Msg("readPump read error")
			}
			return
		}
		ctl.handleSignal(id, data)
	}
}

// handleSignal decodes one frame and dispatches it. Invalid frames are
// logged and dropped; the client is never sent an error.
func (ctl *SignalWSController) handleSignal(id domain.ConnID, data []byte) {
	kind, msg, err := protocol.Decode(data)
	if err != nil {
		ctl.Metrics.Drop(metrics.DropInvalid)
		ev := log.Warn()
		if errors.Is(err, protocol.ErrUnknownType) {
			ev = log.Debug()
		}
		ev.Err(err).Str("module", "signal").Str("conn", string(id)).Str("type", kind).Msg("ignored message")
		return
	}
	ctl.Metrics.Event(kind)

	switch m := msg.(type) {
	case protocol.JoinRoom:
		ctl.handleJoin(id, m)
	case protocol.LeaveRoom:
		ctl.handleLeave(id, m)
	case protocol.Signal:
		ctl.handleRelay(id, m)
	case protocol.SendMessage:
		ctl.handleMessage(id, m)
	case protocol.SendReaction:
		ctl.handleReaction(id, m)
	case protocol.UpdateParticipant:
		ctl.handleUpdate(id, m)
	case protocol.Ping:
		ctl.handlePing(id)
	}
}
