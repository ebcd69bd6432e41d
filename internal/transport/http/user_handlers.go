package http

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"github.com/vovakirdan/wirebot/internal/store"
	"github.com/vovakirdan/wirebot/internal/utils"
)

const (
	defaultActionLimit = 20
	maxActionLimit     = 200
)

// UserHandlers serves the user endpoints.
type UserHandlers struct {
	sess    Session
	actions store.ActionStore
	log     *zerolog.Logger
}

// NewUserHandlers creates a new user handlers instance.
func NewUserHandlers(sess Session, actions store.ActionStore, logger *zerolog.Logger) *UserHandlers {
	return &UserHandlers{sess: sess, actions: actions, log: logger}
}

// GetUser describes a tracked user.
// GET /api/users/:name
func (h *UserHandlers) GetUser(c *gin.Context) {
	var (
		dto    UserDTO
		getErr error
	)
	err := do(c, h.sess, func() {
		info, err := h.sess.UserInfo(c.Param("name"))
		if err != nil {
			getErr = err
			return
		}
		dto = toUserDTO(info, h.sess.Now())
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

// ListActions returns the journaled actions against a user, newest first.
// GET /api/users/:name/actions?limit=
func (h *UserHandlers) ListActions(c *gin.Context) {
	if h.actions == nil {
		c.JSON(http.StatusNotFound, ErrorResponse{Error: "action journal disabled"})
		return
	}

	limit := defaultActionLimit
	if raw := c.Query("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 {
			c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid limit"})
			return
		}
		limit = min(n, maxActionLimit)
	}

	userID := utils.ToID(c.Param("name"))
	actions, err := h.actions.ListActions(c.Request.Context(), userID, limit)
	if err != nil {
		h.log.Error().Err(err).Str("user", userID).Msg("failed to list actions")
		c.JSON(http.StatusInternalServerError, ErrorResponse{Error: "internal server error"})
		return
	}
	c.JSON(http.StatusOK, toActionDTOs(actions))
}
