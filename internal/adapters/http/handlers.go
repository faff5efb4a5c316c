package http

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/pion/webrtc/v4"
	"github.com/rs/zerolog/log"

	"github.com/dkeye/studyroom/internal/adapters/signal"
	"github.com/dkeye/studyroom/internal/app/orch"
	"github.com/dkeye/studyroom/internal/config"
	"github.com/dkeye/studyroom/internal/domain"
	"github.com/dkeye/studyroom/internal/service"
)

type handlers struct {
	rooms      *service.RoomService
	orch       *orch.Orchestrator
	iceServers []webrtc.ICEServer
}

func iceServers(in []config.ICEServer) []webrtc.ICEServer {
	out := make([]webrtc.ICEServer, 0, len(in))
	for _, s := range in {
		srv := webrtc.ICEServer{URLs: s.URLs, Username: s.Username}
		if s.Credential != "" {
			srv.Credential = s.Credential
		}
		out = append(out, srv)
	}
	return out
}

func writeError(c *gin.Context, err error) {
	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, service.ErrRoomNotFound):
		status = http.StatusNotFound
	case errors.Is(err, service.ErrNotRoomHost):
		status = http.StatusForbidden
	case errors.Is(err, service.ErrInvalidRoom):
		status = http.StatusBadRequest
	}
	if status == http.StatusInternalServerError {
		log.Error().Err(err).Str("module", "adapters.http").Str("path", c.FullPath()).Msg("request failed")
		c.JSON(status, gin.H{"error": "internal error"})
		return
	}
	c.JSON(status, gin.H{"error": err.Error()})
}

func (h *handlers) listICEServers(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"iceServers": h.iceServers})
}

func (h *handlers) createRoom(c *gin.Context) {
	var in service.CreateRoomInput
	if err := c.ShouldBindJSON(&in); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid body"})
		return
	}
	room, err := h.rooms.Create(c.Request.Context(), c.GetString(signal.ClientTokenKey), in)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusCreated, room)
}

func (h *handlers) listRooms(c *gin.Context) {
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "0"))
	rooms, err := h.rooms.List(c.Request.Context(), c.GetString(signal.ClientTokenKey), limit)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"rooms": rooms})
}

func (h *handlers) getRoom(c *gin.Context) {
	room, err := h.rooms.Get(c.Request.Context(), domain.RoomID(c.Param("id")))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, room)
}

func (h *handlers) updateRoom(c *gin.Context) {
	var patch domain.RoomPatch
	if err := c.ShouldBindJSON(&patch); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid body"})
		return
	}
	room, err := h.rooms.Update(c.Request.Context(), c.GetString(signal.ClientTokenKey), domain.RoomID(c.Param("id")), patch)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, room)
}

func (h *handlers) deleteRoom(c *gin.Context) {
	if err := h.rooms.Delete(c.Request.Context(), c.GetString(signal.ClientTokenKey), domain.RoomID(c.Param("id"))); err != nil {
		writeError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

// participants is the live view; it does not consult the room record.
func (h *handlers) participants(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"participants": h.orch.Members(domain.RoomID(c.Param("id")))})
}

func (h *handlers) liveRooms(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"rooms": h.orch.LiveRooms()})
}
