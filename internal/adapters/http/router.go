package http

import (
	"context"
	"net/http"

	"github.com/gin-contrib/sessions"
	"github.com/gin-contrib/sessions/cookie"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/dkeye/studyroom/internal/adapters/signal"
	"github.com/dkeye/studyroom/internal/app/orch"
	"github.com/dkeye/studyroom/internal/config"
	"github.com/dkeye/studyroom/internal/metrics"
	"github.com/dkeye/studyroom/internal/service"
)

const sessionName = "StudyRoomSessions"

// Deps are the collaborators the HTTP surface needs.
type Deps struct {
	Orch    *orch.Orchestrator
	Rooms   *service.RoomService
	Signal  *signal.SignalWSController
	Metrics *metrics.Metrics
}

func genClientToken() string {
	return uuid.NewString()
}

// ClientTokenMiddleware gives every browser a stable token kept in the
// session cookie. Rooms record the token of the host that created them.
func ClientTokenMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		sess := sessions.Default(c)
		token, _ := sess.Get(signal.ClientTokenKey).(string)
		if token == "" {
			token = genClientToken()
			sess.Set(signal.ClientTokenKey, token)
			if err := sess.Save(); err != nil {
				log.Error().Err(err).Str("module", "adapters.http").Msg("save session")
			}
		}
		c.Set(signal.ClientTokenKey, token)
		c.Next()
	}
}

func SetupRouter(ctx context.Context, cfg *config.Config, d Deps) *gin.Engine {
	if cfg.Mode == "release" {
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.New()
	if cfg.Mode == "debug" {
		r.Use(gin.Logger())
	}
	r.Use(gin.Recovery())

	store := cookie.NewStore([]byte(cfg.Secret))
	store.Options(sessions.Options{
		Path:     "/",
		MaxAge:   3600 * 24 * 7,
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	})
	r.Use(sessions.Sessions(sessionName, store))
	r.Use(ClientTokenMiddleware())

	r.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	if d.Metrics != nil {
		r.GET("/metrics", gin.WrapH(d.Metrics.Handler()))
	}

	h := &handlers{rooms: d.Rooms, orch: d.Orch, iceServers: iceServers(cfg.ICEServers)}

	api := r.Group("/api")
	api.GET("/ice-servers", h.listICEServers)
	api.GET("/live-rooms", h.liveRooms)

	rooms := api.Group("/rooms")
	rooms.POST("", h.createRoom)
	rooms.GET("", h.listRooms)
	rooms.GET("/:id", h.getRoom)
	rooms.PATCH("/:id", h.updateRoom)
	rooms.DELETE("/:id", h.deleteRoom)
	rooms.GET("/:id/participants", h.participants)

	api.GET("/ws/signal", func(c *gin.Context) {
		log.Debug().Str("module", "adapters.http").Str("client", c.GetString(signal.ClientTokenKey)).Msg("ws signal endpoint hit")
		d.Signal.HandleSignal(ctx, c)
	})

	log.Info().Str("module", "adapters.http").Msg("router setup")
	return r
}
