package http

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"github.com/vovakirdan/wirebot/internal/core"
	"github.com/vovakirdan/wirebot/internal/proto"
	"github.com/vovakirdan/wirebot/internal/utils"
)

const sessionTimeout = 5 * time.Second

// RoomHandlers serves the status and room endpoints.
type RoomHandlers struct {
	sess Session
	log  *zerolog.Logger
}

// NewRoomHandlers creates a new room handlers instance.
func NewRoomHandlers(sess Session, logger *zerolog.Logger) *RoomHandlers {
	return &RoomHandlers{sess: sess, log: logger}
}

// SayRequest is the body of a say request.
type SayRequest struct {
	Text string `json:"text" binding:"required"`
}

// BlacklistRequest is the body of a blacklist request.
type BlacklistRequest struct {
	Entry string `json:"entry" binding:"required"`
}

// do runs fn on the session loop bounded by the request context.
func do(c *gin.Context, sess Session, fn func()) error {
	ctx, cancel := context.WithTimeout(c.Request.Context(), sessionTimeout)
	defer cancel()
	return sess.Do(ctx, fn)
}

func respondError(c *gin.Context, err error) {
	status, body := errorStatus(err)
	c.JSON(status, body)
}

// Status reports the session summary.
// GET /api/status
func (h *RoomHandlers) Status(c *gin.Context) {
	var dto StatusDTO
	if err := do(c, h.sess, func() { dto = toStatusDTO(h.sess.Status()) }); err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, dto)
}

// ListRooms lists joined rooms without their user lists.
// GET /api/rooms
func (h *RoomHandlers) ListRooms(c *gin.Context) {
	var rooms []RoomDTO
	err := do(c, h.sess, func() {
		infos := h.sess.RoomInfos()
		rooms = make([]RoomDTO, 0, len(infos))
		for _, info := range infos {
			rooms = append(rooms, toRoomDTO(info, false))
		}
	})
	if err != nil {
		respondError(c, err)
		return
	}
	sortRooms(rooms)
	c.JSON(http.StatusOK, rooms)
}

// GetRoom returns one room with its users.
// GET /api/rooms/:id
func (h *RoomHandlers) GetRoom(c *gin.Context) {
	var (
		dto    RoomDTO
		getErr error
	)
	err := do(c, h.sess, func() {
		info, err := h.sess.RoomInfo(c.Param("id"))
		if err != nil {
			getErr = err
			return
		}
		dto = toRoomDTO(info, true)
	})
	if err == nil {
		err = getErr
	}
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, dto)
}

// Say sends text to a room through the outbound queue.
// POST /api/rooms/:id/say
func (h *RoomHandlers) Say(c *gin.Context) {
	var req SayRequest
	if err := c.ShouldBindJSON(&req); err != nil || strings.TrimSpace(req.Text) == "" {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid request body", Code: core.ErrCodeBadRequest})
		return
	}
	room := utils.ToID(c.Param("id"))

	var sayErr error
	err := do(c, h.sess, func() {
		if _, err := h.sess.RoomInfo(room); err != nil {
			sayErr = err
			return
		}
		if !h.sess.Say(proto.RoomTarget(room), req.Text) {
			sayErr = core.NewError(core.ErrCodeNotConnected, "not connected")
		}
	})
	if err == nil {
		err = sayErr
	}
	if err != nil {
		respondError(c, err)
		return
	}

	h.log.Info().Str("room", room).Str("admin", c.GetString(ContextKeyUsername)).Msg("admin message queued")
	c.Status(http.StatusAccepted)
}

// ListBlacklist returns the blacklist entries of a room.
// GET /api/rooms/:id/blacklist
func (h *RoomHandlers) ListBlacklist(c *gin.Context) {
	room := utils.ToID(c.Param("id"))
	var entries []string
	if err := do(c, h.sess, func() { entries = h.sess.Settings().BlacklistEntries(room) }); err != nil {
		respondError(c, err)
		return
	}
	if entries == nil {
		entries = []string{}
	}
	c.JSON(http.StatusOK, BlacklistDTO{Room: room, Entries: entries})
}

// AddBlacklist adds a name or /pattern/ to a room blacklist.
// POST /api/rooms/:id/blacklist
func (h *RoomHandlers) AddBlacklist(c *gin.Context) {
	var req BlacklistRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid request body", Code: core.ErrCodeBadRequest})
		return
	}
	h.changeBlacklist(c, req.Entry, true)
}

// RemoveBlacklist removes the entry given by the entry query parameter.
// DELETE /api/rooms/:id/blacklist?entry=
func (h *RoomHandlers) RemoveBlacklist(c *gin.Context) {
	entry := c.Query("entry")
	if entry == "" {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "entry is required", Code: core.ErrCodeBadRequest})
		return
	}
	h.changeBlacklist(c, entry, false)
}

func (h *RoomHandlers) changeBlacklist(c *gin.Context, entry string, add bool) {
	room := utils.ToID(c.Param("id"))
	var (
		changed bool
		opErr   error
		entries []string
	)
	err := do(c, h.sess, func() {
		if add {
			changed, opErr = h.sess.Blacklist(room, entry)
		} else {
			changed, opErr = h.sess.Unblacklist(room, entry)
		}
		if changed {
			h.sess.SaveSettings()
		}
		entries = h.sess.Settings().BlacklistEntries(room)
	})
	if err == nil {
		err = opErr
	}
	if err != nil {
		respondError(c, err)
		return
	}
	if !changed {
		if add {
			c.JSON(http.StatusConflict, ErrorResponse{Error: "entry already blacklisted"})
		} else {
			c.JSON(http.StatusNotFound, ErrorResponse{Error: "entry not blacklisted"})
		}
		return
	}

	h.log.Info().
		Str("room", room).
		Str("entry", entry).
		Bool("add", add).
		Str("admin", c.GetString(ContextKeyUsername)).
		Msg("blacklist changed")
	if entries == nil {
		entries = []string{}
	}
	c.JSON(http.StatusOK, BlacklistDTO{Room: room, Entries: entries})
}
