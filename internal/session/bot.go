package session

import (
	"context"
	"errors"
	"time"

	"github.com/vovakirdan/wirebot/internal/commands"
	"github.com/vovakirdan/wirebot/internal/core"
	"github.com/vovakirdan/wirebot/internal/proto"
	"github.com/vovakirdan/wirebot/internal/settings"
	"github.com/vovakirdan/wirebot/internal/store"
)

var _ commands.Bot = (*Session)(nil)

// Say enqueues text for target.
func (s *Session) Say(target proto.Target, text string) bool {
	return s.queue.Enqueue(target, text)
}

func (s *Session) Self() *core.User {
	return s.registry.Self()
}

func (s *Session) User(name string) *core.User {
	return s.registry.User(name)
}

func (s *Session) Room(id string) *core.Room {
	return s.registry.Room(id)
}

func (s *Session) Ranks() core.Ranks {
	return s.registry.Ranks()
}

func (s *Session) HasRank(u *core.User, room string, rank core.Rank) bool {
	return s.registry.HasRank(u, room, rank)
}

func (s *Session) IsExcepted(u *core.User) bool {
	return s.registry.IsExcepted(u)
}

// IsRegexWhitelisted reports whether u may add regular expression blacklist
// entries.
func (s *Session) IsRegexWhitelisted(u *core.User) bool {
	if u == nil {
		return false
	}
	if s.registry.IsExcepted(u) {
		return true
	}
	_, ok := s.regexUsers[u.ID]
	return ok
}

// CanUse resolves the per-room level of command for u. An explicit "on" or
// "off" wins over ranks; without a setting the command default applies.
func (s *Session) CanUse(u *core.User, command, room string) bool {
	if s.registry.IsExcepted(u) {
		return true
	}
	level, ok := s.settings.Snapshot().CommandLevel(command, room)
	switch {
	case !ok:
		return s.registry.HasRank(u, room, commands.DefaultLevel(command, s.defaultRank))
	case level == settings.LevelOn:
		return true
	case level == settings.LevelOff:
		return false
	}
	rank, ok := core.ParseRank(level)
	if !ok {
		return false
	}
	return s.registry.HasRank(u, room, rank)
}

func (s *Session) DefaultRank() core.Rank {
	return s.defaultRank
}

func (s *Session) Settings() *settings.Snapshot {
	return s.settings.Snapshot()
}

// SaveSettings persists the snapshot in the background.
func (s *Session) SaveSettings() {
	s.settings.Save()
}

// Blacklist adds entry for room and recompiles the room matcher. A pattern
// that fails to compile is rolled back.
func (s *Session) Blacklist(room, entry string) (bool, error) {
	snap := s.settings.Snapshot()
	if !snap.AddBlacklistEntry(room, entry) {
		return false, nil
	}
	if err := s.blacklist.Rebuild(room, snap.BlacklistEntries(room)); err != nil {
		snap.RemoveBlacklistEntry(room, entry)
		return false, core.NewError(core.ErrCodeInvalidPattern, err.Error())
	}
	return true, nil
}

// Unblacklist removes entry for room and recompiles the room matcher.
func (s *Session) Unblacklist(room, entry string) (bool, error) {
	snap := s.settings.Snapshot()
	if !snap.RemoveBlacklistEntry(room, entry) {
		return false, nil
	}
	if err := s.blacklist.Rebuild(room, snap.BlacklistEntries(room)); err != nil {
		return true, core.NewError(core.ErrCodeInvalidPattern, err.Error())
	}
	return true, nil
}

// Seen answers from memory and falls back to the activity store. reply
// always runs on the loop.
func (s *Session) Seen(userID string, reply func(desc string, at time.Time, ok bool)) {
	if desc, at, ok := s.moderation.Seen(userID); ok || s.store == nil {
		reply(desc, at, ok)
		return
	}

	ctx, st := s.ctx, s.store
	s.goBackground(func() {
		ctx, cancel := context.WithTimeout(ctx, storeTimeout)
		defer cancel()
		rec, err := st.GetSeen(ctx, userID)
		s.Post(func() {
			if err != nil {
				if !errors.Is(err, store.ErrNotFound) {
					s.log.Warn().Err(err).Str("user", userID).Msg("load seen")
				}
				reply("", time.Time{}, false)
				return
			}
			s.moderation.RestoreSeen(rec.UserID, rec.Description, rec.SeenAt)
			desc, at, _ := s.moderation.Seen(userID)
			reply(desc, at, true)
		})
	})
}

// RecordActivity updates seen data without running moderation and mirrors
// it to the activity store.
func (s *Session) RecordActivity(userID string, kind core.ActivityKind, detail string) {
	a := s.moderation.RecordActivity(userID, kind, detail)
	if s.store == nil {
		return
	}
	rec := &store.Seen{UserID: userID, Description: a.SeenDescription, SeenAt: a.SeenAt}
	st, log := s.store, s.log
	s.goBackground(func() {
		ctx, cancel := context.WithTimeout(context.Background(), storeTimeout)
		defer cancel()
		if err := st.SaveSeen(ctx, rec); err != nil {
			log.Warn().Err(err).Str("user", userID).Msg("save seen")
		}
	})
}

func (s *Session) Now() time.Time {
	return s.clock.Now()
}

func (s *Session) Uptime() time.Duration {
	return s.clock.Since(s.startedAt)
}
