package signal

import (
	"context"
	"net/http"
	"slices"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"

	"github.com/dkeye/studyroom/internal/app/orch"
	"github.com/dkeye/studyroom/internal/core"
	"github.com/dkeye/studyroom/internal/domain"
	"github.com/dkeye/studyroom/internal/metrics"
)

type Options struct {
	ReadLimit  int64
	PingPeriod time.Duration
	PongWait   time.Duration
	WriteWait  time.Duration
	SendBuffer int

	// RelayLimit caps offer/answer/candidate frames per connection within
	// RelayInterval. Zero disables the limit.
	RelayLimit    int
	RelayInterval time.Duration

	// AllowedOrigins empty means any origin.
	AllowedOrigins []string
}

func (o Options) withDefaults() Options {
	if o.ReadLimit <= 0 {
		o.ReadLimit = 64 << 10
	}
	if o.PongWait <= 0 {
		o.PongWait = 60 * time.Second
	}
	if o.PingPeriod <= 0 || o.PingPeriod >= o.PongWait {
		o.PingPeriod = o.PongWait * 9 / 10
	}
	if o.WriteWait <= 0 {
		o.WriteWait = 10 * time.Second
	}
	if o.SendBuffer <= 0 {
		o.SendBuffer = 64
	}
	if o.RelayInterval <= 0 {
		o.RelayInterval = time.Second
	}
	return o
}

type SignalWSController struct {
	Orch    *orch.Orchestrator
	Metrics *metrics.Metrics

	opts     Options
	limiter  *RelayRateLimiter
	upgrader websocket.Upgrader

	// live counts connections whose readPump has not finished.
	live sync.WaitGroup
}

func NewSignalWSController(o *orch.Orchestrator, opts Options, m *metrics.Metrics) *SignalWSController {
	opts = opts.withDefaults()
	ctl := &SignalWSController{
		Orch:    o,
		Metrics: m,
		opts:    opts,
	}
	if opts.RelayLimit > 0 {
		ctl.limiter = NewRelayRateLimiter(opts.RelayLimit, opts.RelayInterval)
	}
	ctl.upgrader = websocket.Upgrader{CheckOrigin: ctl.checkOrigin}
	return ctl
}

func (ctl *SignalWSController) checkOrigin(r *http.Request) bool {
	if len(ctl.opts.AllowedOrigins) == 0 {
		return true
	}
	origin := r.Header.Get("Origin")
	return origin == "" || slices.Contains(ctl.opts.AllowedOrigins, origin)
}

// WsSignalConn is the adapter side of core.SignalConnection: frames are
// queued on send and written by writePump.
type WsSignalConn struct {
	conn *websocket.Conn
	send chan core.Frame

	mu     sync.RWMutex
	closed bool
}

func newWsSignalConn(ws *websocket.Conn, buffer int) *WsSignalConn {
	return &WsSignalConn{conn: ws, send: make(chan core.Frame, buffer)}
}

func (c *WsSignalConn) TrySend(f core.Frame) error {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.closed {
		return core.ErrConnClosed
	}
	select {
	case c.send <- f:
	default:
		return core.ErrBackpressure
	}
	return nil
}

// Close stops writePump and tears down the socket, which in turn ends
// readPump. Safe to call more than once.
func (c *WsSignalConn) Close() {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return
	}
	c.closed = true
	close(c.send)
	_ = c.conn.Close()
	c.mu.Unlock()
}

// HandleSignal upgrades the request and runs the connection until either
// side goes away or ctx is cancelled.
func (ctl *SignalWSController) HandleSignal(ctx context.Context, c *gin.Context) {
	ws, err := ctl.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		log.Error().Err(err).Str("module", "signal").Msg("ws upgrade")
		return
	}

	id := domain.ConnID(uuid.NewString())
	conn := newWsSignalConn(ws, ctl.opts.SendBuffer)
	log.Info().Str("module", "signal").Str("conn", string(id)).
		Str("client", c.GetString(ClientTokenKey)).Msg("new WS connection")

	ctx, cancel := context.WithCancel(ctx)
	go func() {
		<-ctx.Done()
		conn.Close()
	}()

	ctl.live.Add(1)
	ctl.Orch.Connect(id, conn)

	go ctl.writePump(ctx, conn)
	go ctl.readPump(ctx, cancel, id, conn)
}

// Wait blocks until every connection has been disconnected from the
// orchestrator, or ctx is done. Connections close when the ctx passed to
// HandleSignal is cancelled.
func (ctl *SignalWSController) Wait(ctx context.Context) error {
	done := make(chan struct{})
	go func() {
		ctl.live.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// ClientTokenKey is the gin context key holding the caller's client token.
const ClientTokenKey = "client_token"
