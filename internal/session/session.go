// Package session owns the live connection state: the registry, chat
// activity, settings, blacklist and outbound queue. Everything runs on one
// event loop; other goroutines post closures onto it.
package session

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/rs/zerolog"

	"github.com/vovakirdan/wirebot/internal/blacklist"
	"github.com/vovakirdan/wirebot/internal/commands"
	"github.com/vovakirdan/wirebot/internal/config"
	"github.com/vovakirdan/wirebot/internal/core"
	"github.com/vovakirdan/wirebot/internal/moderation"
	"github.com/vovakirdan/wirebot/internal/outbound"
	"github.com/vovakirdan/wirebot/internal/settings"
	"github.com/vovakirdan/wirebot/internal/store"
	"github.com/vovakirdan/wirebot/internal/utils"
)

const eventBuffer = 256

// ErrStopped is returned by Do once the loop has exited.
var ErrStopped = errors.New("session stopped")

// State is the login state.
type State int

const (
	StateUnauthenticated State = iota
	StateAuthenticated
)

func (s State) String() string {
	if s == StateAuthenticated {
		return "authenticated"
	}
	return "unauthenticated"
}

// Authenticator exchanges a login challenge for an assertion.
type Authenticator interface {
	Assert(ctx context.Context, keyID, challenge string) (string, error)
}

// Options configures a Session.
type Options struct {
	Config   config.Config
	Settings *settings.Snapshot
	Login    Authenticator
	// Store is optional; without it seen lookups use memory only and
	// punishments are not journaled.
	Store    store.Store
	Commands *commands.Registry
	Clock    clock.Clock
	Logger   *zerolog.Logger
}

// Session is the bot's state for one process lifetime. Connections come and
// go; the session is reset on each.
type Session struct {
	cfg   config.Config
	clock clock.Clock
	log   *zerolog.Logger

	registry   *core.Registry
	moderation *moderation.Engine
	blacklist  *blacklist.Index
	settings   *settings.Store
	queue      *outbound.Queue
	commands   *commands.Registry
	login      Authenticator
	store      store.Store

	rooms        []string
	privateRooms []string
	whitelist    map[string]struct{}
	regexUsers   map[string]struct{}
	defaultRank  core.Rank

	state     State
	connected bool
	startedAt time.Time

	// gen invalidates timer callbacks armed before the last reset.
	gen        uint64
	sweep      *clock.Timer
	loginRetry *clock.Timer

	events chan func()
	done   chan struct{}
	ctx    context.Context
	fatal  error

	// background tracks store writes that must finish before the store closes.
	background sync.WaitGroup
}

// New builds a session. It does nothing until Run is called.
func New(opts Options) *Session {
	clk := opts.Clock
	if clk == nil {
		clk = clock.New()
	}
	logger := opts.Logger
	if logger == nil {
		nop := zerolog.Nop()
		logger = &nop
	}
	cfg := opts.Config
	defaultRank, ok := core.ParseRank(cfg.DefaultRank)
	if !ok {
		defaultRank = core.RankDriver
	}

	s := &Session{
		cfg:          cfg,
		clock:        clk,
		log:          logger,
		login:        opts.Login,
		store:        opts.Store,
		commands:     opts.Commands,
		rooms:        normalizeRooms(cfg.Rooms),
		privateRooms: normalizeRooms(cfg.PrivateRooms),
		whitelist:    idSet(cfg.Whitelist),
		regexUsers:   idSet(cfg.RegexAutobanWhitelist),
		defaultRank:  defaultRank,
		startedAt:    clk.Now(),
		events:       make(chan func(), eventBuffer),
		done:         make(chan struct{}),
		ctx:          context.Background(),
	}

	s.registry = core.NewRegistry(core.Options{
		Self:    cfg.Account.Nick,
		Ranks:   cfg.RankTable(),
		Excepts: cfg.Excepts,
	})
	s.moderation = moderation.New(cfg.Moderation, clk)
	s.blacklist = blacklist.New()
	s.settings = settings.NewStore(cfg.SettingsPath, opts.Settings, s.Post, logger)
	s.queue = outbound.New(outbound.Options{
		Interval: cfg.Throttle.Interval,
		Slack:    cfg.Throttle.Slack,
		Clock:    clk,
		Exec:     s.Post,
		Logger:   logger,
	})
	if s.commands == nil {
		s.commands = commands.NewRegistry(cfg.CommandCharacter, logger)
		commands.RegisterBuiltins(s.commands, commands.Info{
			Name:     cfg.Account.Nick,
			Fork:     cfg.Fork,
			BotGuide: cfg.BotGuide,
		})
	}
	return s
}

// Run processes events until ctx is cancelled or a fatal error occurs.
func (s *Session) Run(ctx context.Context) error {
	s.ctx = ctx
	defer s.background.Wait()
	defer close(s.done)
	defer s.shutdown()

	s.log.Info().Str("nick", s.cfg.Account.Nick).Msg("session started")
	for {
		select {
		case fn := <-s.events:
			fn()
			if s.fatal != nil {
				s.log.Error().Err(s.fatal).Msg("session stopped")
				return s.fatal
			}
		case <-ctx.Done():
			s.log.Info().Msg("session stopped")
			return nil
		}
	}
}

// Post schedules fn on the loop. It is dropped once the loop has exited.
func (s *Session) Post(fn func()) {
	select {
	case s.events <- fn:
	case <-s.done:
	}
}

// Do runs fn on the loop and waits for it to finish.
func (s *Session) Do(ctx context.Context, fn func()) error {
	finished := make(chan struct{})
	select {
	case s.events <- func() { fn(); close(finished) }:
	case <-s.done:
		return ErrStopped
	case <-ctx.Done():
		return ctx.Err()
	}
	select {
	case <-finished:
		return nil
	case <-s.done:
		return ErrStopped
	case <-ctx.Done():
		return ctx.Err()
	}
}

// OnConnect attaches a fresh connection.
func (s *Session) OnConnect(tx outbound.Transmitter) {
	s.Post(func() {
		s.reset()
		s.connected = true
		s.queue.Attach(tx)
		s.log.Info().Msg("connected")
	})
}

// OnFrame handles one inbound frame.
func (s *Session) OnFrame(frame string) {
	s.Post(func() { s.HandleFrame(frame) })
}

// OnDisconnect clears connection state. Pending outbound lines are dropped.
func (s *Session) OnDisconnect(err error) {
	s.Post(func() {
		s.reset()
		s.connected = false
		s.queue.Detach()
		ev := s.log.Warn()
		if err == nil {
			ev = s.log.Info()
		}
		ev.Err(err).Msg("disconnected")
	})
}

func (s *Session) reset() {
	s.registry.Reset()
	s.blacklist.Reset()
	s.state = StateUnauthenticated
	s.stopTimers()
}

func (s *Session) stopTimers() {
	s.gen++
	if s.sweep != nil {
		s.sweep.Stop()
		s.sweep = nil
	}
	if s.loginRetry != nil {
		s.loginRetry.Stop()
		s.loginRetry = nil
	}
}

// shutdown stops timers and writes out settings whose save was still in
// flight; their completions can no longer reach the loop.
func (s *Session) shutdown() {
	s.stopTimers()
	if err := s.settings.Flush(); err != nil {
		s.log.Error().Err(err).Msg("flush settings")
	}
}

// goBackground runs fn on its own goroutine; Run waits for it before
// returning.
func (s *Session) goBackground(fn func()) {
	s.background.Add(1)
	go func() {
		defer s.background.Done()
		fn()
	}()
}

func (s *Session) fail(err error) {
	if s.fatal == nil {
		s.fatal = err
	}
}

// startSweep (re)arms the periodic activity sweep.
func (s *Session) startSweep() {
	s.gen++
	if s.sweep != nil {
		s.sweep.Stop()
	}
	s.scheduleSweep(s.gen)
}

func (s *Session) scheduleSweep(gen uint64) {
	s.sweep = s.clock.AfterFunc(s.moderation.Options().SweepInterval, func() {
		s.Post(func() {
			if gen != s.gen {
				return
			}
			s.moderation.Sweep()
			s.scheduleSweep(gen)
		})
	})
}

// State returns the login state.
func (s *Session) State() State {
	return s.state
}

// Queue exposes the outbound queue.
func (s *Session) Queue() *outbound.Queue {
	return s.queue
}

func (s *Session) isPublicRoom(id string) bool {
	for _, room := range s.rooms {
		if room == id {
			return true
		}
	}
	return false
}

func (s *Session) isWhitelisted(u *core.User) bool {
	if u == nil {
		return false
	}
	_, ok := s.whitelist[u.ID]
	return ok
}

func normalizeRooms(rooms []string) []string {
	out := make([]string, 0, len(rooms))
	for _, room := range rooms {
		if id := utils.ToID(room); id != "" {
			out = append(out, id)
		}
	}
	return out
}

func idSet(names []string) map[string]struct{} {
	set := make(map[string]struct{}, len(names))
	for _, name := range names {
		set[utils.ToID(name)] = struct{}{}
	}
	return set
}
