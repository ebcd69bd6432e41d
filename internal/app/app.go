// Package app wires configuration, persistence, the session and its
// transports into one runnable process.
package app

import (
	"context"
	"errors"
	"fmt"
	stdhttp "net/http"
	"time"

	"github.com/rs/zerolog"

	"github.com/vovakirdan/wirebot/internal/auth"
	"github.com/vovakirdan/wirebot/internal/config"
	logpkg "github.com/vovakirdan/wirebot/internal/log"
	"github.com/vovakirdan/wirebot/internal/login"
	"github.com/vovakirdan/wirebot/internal/session"
	"github.com/vovakirdan/wirebot/internal/settings"
	"github.com/vovakirdan/wirebot/internal/store"
	"github.com/vovakirdan/wirebot/internal/store/sqlite"
	transporthttp "github.com/vovakirdan/wirebot/internal/transport/http"
	"github.com/vovakirdan/wirebot/internal/transport/ws"
)

// App wires together the session and transport layers.
type App struct {
	session         *session.Session
	client          *ws.Client
	server          *stdhttp.Server
	shutdownTimeout time.Duration
	store           store.Store
	log             *zerolog.Logger
}

// New constructs the application with provided configuration.
func New(cfg config.Config, logger *zerolog.Logger) (*App, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	snap := settings.NewSnapshot()
	if cfg.SettingsPath != "" {
		loaded, err := settings.Load(cfg.SettingsPath)
		if err != nil {
			return nil, err
		}
		snap = loaded
	}

	a := &App{
		shutdownTimeout: cfg.Admin.ShutdownTimeout,
		log:             logger,
	}

	var st store.Store
	if cfg.DatabasePath != "" {
		db, err := sqlite.New(cfg.DatabasePath)
		if err != nil {
			return nil, fmt.Errorf("init store: %w", err)
		}
		logger.Info().Str("db_path", cfg.DatabasePath).Msg("database initialized")
		st = db
		a.store = db
	}

	a.session = session.New(session.Options{
		Config:   cfg,
		Settings: snap,
		Login: login.New(login.Options{
			ActionURL: cfg.Server.ActionURL,
			Nick:      cfg.Account.Nick,
			Pass:      cfg.Account.Pass,
			Timeout:   cfg.Login.Timeout,
		}),
		Store:  st,
		Logger: logpkg.Component(logger, "session"),
	})

	a.client = ws.New(ws.Options{
		URL:               cfg.Server.URL,
		Subprotocols:      cfg.Server.Subprotocols,
		SockJS:            cfg.Server.SockJS,
		ReadLimit:         cfg.Server.ReadLimit,
		ReconnectDelay:    cfg.Server.ReconnectDelay,
		ReconnectMaxDelay: cfg.Server.ReconnectMaxDelay,
		Logger:            logpkg.Component(logger, "ws"),
	}, a.session)

	if cfg.Admin.Addr != "" {
		authService := auth.NewService(cfg.Admin.Username, cfg.Admin.PasswordHash, &auth.JWTConfig{
			Secret:   []byte(cfg.Admin.JWTSecret),
			Issuer:   cfg.Admin.JWTIssuer,
			Audience: cfg.Admin.JWTAudience,
			TTL:      cfg.Admin.TokenTTL,
		}, nil)
		var actions store.ActionStore
		if st != nil {
			actions = st
		}
		a.server = transporthttp.NewServer(a.session, authService, actions, cfg.Admin, logpkg.Component(logger, "admin"))
	}

	return a, nil
}

// Run blocks until ctx is cancelled or the session stops on a fatal error,
// which is returned.
func (a *App) Run(ctx context.Context) error {
	defer a.cleanup()

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	sessionErr := make(chan error, 1)
	go func() { sessionErr <- a.session.Run(ctx) }()

	clientDone := make(chan struct{})
	go func() {
		defer close(clientDone)
		_ = a.client.Run(ctx)
	}()

	serverErr := make(chan error, 1)
	if a.server != nil {
		go func() {
			a.log.Info().Str("addr", a.server.Addr).Msg("admin api listening")
			if err := a.server.ListenAndServe(); err != nil && !errors.Is(err, stdhttp.ErrServerClosed) {
				serverErr <- err
			}
		}()
	}

	var err error
	select {
	case err = <-sessionErr:
	case err = <-serverErr:
		err = fmt.Errorf("admin api: %w", err)
		cancel()
		<-sessionErr
	case <-ctx.Done():
		err = <-sessionErr
	}
	cancel()

	a.shutdownServer()
	<-clientDone
	return err
}

func (a *App) shutdownServer() {
	if a.server == nil {
		return
	}
	shutdownCtx, cancel := context.WithTimeout(context.Background(), a.shutdownTimeout)
	defer cancel()

	a.log.Info().Msg("shutting down admin api")
	if err := a.server.Shutdown(shutdownCtx); err != nil {
		a.log.Warn().Err(err).Msg("admin api shutdown")
	}
}

// cleanup closes database and other resources.
func (a *App) cleanup() {
	if a.store != nil {
		if err := a.store.Close(); err != nil {
			a.log.Warn().Err(err).Msg("failed to close store")
		} else {
			a.log.Info().Msg("store closed")
		}
	}
}
