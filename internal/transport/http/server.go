// Package http serves the optional admin API over gin.
package http

import (
	"context"
	stdhttp "net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"github.com/vovakirdan/wirebot/internal/auth"
	"github.com/vovakirdan/wirebot/internal/config"
	"github.com/vovakirdan/wirebot/internal/proto"
	"github.com/vovakirdan/wirebot/internal/session"
	"github.com/vovakirdan/wirebot/internal/settings"
	"github.com/vovakirdan/wirebot/internal/store"
)

// Session is the part of the live session the API drives. Every method
// except Do must run inside a Do callback.
type Session interface {
	Do(ctx context.Context, fn func()) error
	Now() time.Time
	Status() session.Status
	RoomInfos() []session.RoomInfo
	RoomInfo(id string) (session.RoomInfo, error)
	UserInfo(name string) (session.UserInfo, error)
	Say(target proto.Target, text string) bool
	Settings() *settings.Snapshot
	SaveSettings()
	Blacklist(room, entry string) (bool, error)
	Unblacklist(room, entry string) (bool, error)
}

// NewServer builds the admin HTTP server. actions may be nil when the
// journal is disabled.
func NewServer(sess Session, authService *auth.Service, actions store.ActionStore, cfg config.AdminConfig, logger *zerolog.Logger) *stdhttp.Server {
	return &stdhttp.Server{
		Addr:              cfg.Addr,
		Handler:           NewRouter(sess, authService, actions, logger),
		ReadHeaderTimeout: cfg.ReadHeaderTimeout,
	}
}

// NewRouter registers every route.
func NewRouter(sess Session, authService *auth.Service, actions store.ActionStore, logger *zerolog.Logger) *gin.Engine {
	gin.SetMode(gin.ReleaseMode)
	router := gin.New()
	router.Use(gin.Recovery(), LoggerMiddleware(logger))

	api := NewAPIHandlers(authService, logger)
	rooms := NewRoomHandlers(sess, logger)
	users := NewUserHandlers(sess, actions, logger)

	router.GET("/health", healthHandler)
	router.POST("/api/login", RateLimitMiddleware(newRateLimiter(loginAttemptsPerMinute, nil)), api.Login)

	protected := router.Group("/api", AuthMiddleware(authService, logger))
	protected.GET("/status", rooms.Status)
	protected.GET("/rooms", rooms.ListRooms)
	protected.GET("/rooms/:id", rooms.GetRoom)
	protected.POST("/rooms/:id/say", rooms.Say)
	protected.GET("/rooms/:id/blacklist", rooms.ListBlacklist)
	protected.POST("/rooms/:id/blacklist", rooms.AddBlacklist)
	protected.DELETE("/rooms/:id/blacklist", rooms.RemoveBlacklist)
	protected.GET("/users/:name", users.GetUser)
	protected.GET("/users/:name/actions", users.ListActions)

	return router
}

func healthHandler(c *gin.Context) {
	c.String(stdhttp.StatusOK, "ok")
}
