package session

import (
	"errors"
	"fmt"

	"github.com/vovakirdan/wirebot/internal/login"
	"github.com/vovakirdan/wirebot/internal/proto"
	"github.com/vovakirdan/wirebot/internal/utils"
)

// ErrGuest is returned when the server accepted the nick without
// registering it.
var ErrGuest = errors.New("logged in as a guest")

func (s *Session) onChallenge(_ string, line proto.Line) {
	if s.state == StateAuthenticated {
		return
	}
	if s.login == nil {
		s.fail(errors.New("no login client configured"))
		return
	}

	keyID, challenge := line.Field(2), line.Field(3)
	ctx, auth := s.ctx, s.login
	go func() {
		assertion, err := auth.Assert(ctx, keyID, challenge)
		s.Post(func() { s.onAssertion(line.Raw, assertion, err) })
	}()
}

func (s *Session) onAssertion(raw, assertion string, err error) {
	if s.state == StateAuthenticated {
		return
	}
	switch {
	case errors.Is(err, login.ErrTerminal):
		s.fail(fmt.Errorf("login: %w", err))
		return
	case err != nil:
		delay := s.cfg.Login.RetryDelay
		s.log.Warn().Err(err).Dur("retry_in", delay).Msg("login failed")
		if s.loginRetry != nil {
			s.loginRetry.Stop()
		}
		gen := s.gen
		s.loginRetry = s.clock.AfterFunc(delay, func() {
			s.Post(func() {
				if gen != s.gen {
					return
				}
				s.loginRetry = nil
				s.dispatch("", raw)
			})
		})
		return
	}

	s.sendGlobal("trn " + s.cfg.Account.Nick + ",0," + assertion)
}

func (s *Session) onUpdateUser(_ string, line proto.Line) {
	if utils.ToID(line.Field(2)) != utils.ToID(s.cfg.Account.Nick) {
		return
	}
	if line.Field(3) != "1" {
		s.fail(fmt.Errorf("%w: %w", login.ErrTerminal, ErrGuest))
		return
	}
	if s.state == StateAuthenticated {
		return
	}

	s.state = StateAuthenticated
	s.log.Info().Str("nick", s.cfg.Account.Nick).Msg("logged in")

	s.sendGlobal("blockchallenges")
	if len(s.rooms)+len(s.privateRooms) > 0 {
		s.joinRooms()
	} else {
		s.sendGlobal("userauth")
	}
	s.rebuildBlacklists()
	s.startSweep()
}

func (s *Session) rebuildBlacklists() {
	snap := s.settings.Snapshot()
	for _, room := range snap.BlacklistRooms() {
		if err := s.blacklist.Rebuild(room, snap.BlacklistEntries(room)); err != nil {
			s.log.Error().Err(err).Str("room", room).Msg("rebuild blacklist")
		}
	}
}
