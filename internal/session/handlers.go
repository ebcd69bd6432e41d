package session

import (
	"context"
	"strings"
	"time"

	"github.com/vovakirdan/wirebot/internal/core"
	"github.com/vovakirdan/wirebot/internal/moderation"
	"github.com/vovakirdan/wirebot/internal/proto"
	"github.com/vovakirdan/wirebot/internal/store"
	"github.com/vovakirdan/wirebot/internal/utils"
)

const (
	storeTimeout = 5 * time.Second

	blacklistReason = "Blacklisted user"
	authPopupSuffix = " user auth:"
	popupSeparator  = "||||"
	roomAuthPrefix  = "Room auth: "
	privAuthPrefix  = "Private room auth: "
	invitePrefix    = "/invite "
	officialServer  = "showdown"
)

type handler func(s *Session, room string, line proto.Line)

var handlers map[string]handler

func init() {
	handlers = map[string]handler{
		"challstr":   (*Session).onChallenge,
		"updateuser": (*Session).onUpdateUser,
		"c":          (*Session).onChat,
		"c:":         (*Session).onTimestampedChat,
		"pm":         (*Session).onPM,
		"N":          (*Session).onRename,
		"j":          (*Session).onJoin,
		"J":          (*Session).onJoin,
		"l":          (*Session).onLeave,
		"L":          (*Session).onLeave,
		"popup":      (*Session).onPopup,
		"deinit":     (*Session).onDeinit,
	}
}

// HandleFrame decodes one inbound frame and dispatches each line. It must run
// on the loop.
func (s *Session) HandleFrame(raw string) {
	s.log.Debug().Str("dir", "recv").Msg(raw)

	batch := proto.ParseFrame(raw)
	switch {
	case batch.IsTournament():
		return
	case batch.IsInit():
		s.onInit(batch)
		return
	}
	for _, line := range batch.Lines {
		if line == "" {
			continue
		}
		s.dispatch(batch.Room, line)
	}
}

func (s *Session) dispatch(room, raw string) {
	line := proto.ParseLine(raw)
	h, ok := handlers[line.Command()]
	if !ok {
		return
	}
	h(s, room, line)
}

// roomFor resolves the scope of a line to a registered room.
func (s *Session) roomFor(id string) *core.Room {
	if id == "" {
		id = proto.Lobby
	}
	return s.registry.Room(id)
}

func (s *Session) onInit(batch proto.Batch) {
	id := batch.Room
	if id == "" {
		id = proto.Lobby
	}
	room := s.registry.AddOrGetRoom(id, !s.isPublicRoom(id))

	list, _ := batch.Userlist()
	names := proto.ParseUserlist(list)
	members := make([]core.Member, 0, len(names))
	for _, n := range names {
		members = append(members, core.Member{Name: n.Name, Rank: core.Rank(n.Rank)})
	}
	s.registry.OnUserlist(room.ID, members)
	s.log.Info().Str("room", room.ID).Int("users", len(members)).Bool("private", room.Private).Msg("joined room")
}

func (s *Session) onDeinit(room string, _ proto.Line) {
	if s.registry.DestroyRoom(s.roomID(room)) {
		s.log.Info().Str("room", s.roomID(room)).Msg("left room")
	}
}

func (s *Session) roomID(id string) string {
	if id == "" {
		return proto.Lobby
	}
	return id
}

func (s *Session) onChat(room string, line proto.Line) {
	s.handleChat(room, line.Field(2), line.Rest(3))
}

func (s *Session) onTimestampedChat(room string, line proto.Line) {
	s.handleChat(room, line.Field(3), line.Rest(4))
}

func (s *Session) handleChat(roomID, name, text string) {
	room := s.roomFor(roomID)
	if room == nil {
		return
	}
	user := s.registry.User(proto.SplitName(name).Name)
	if user == nil || s.registry.IsSelf(user) {
		return
	}

	if s.blacklist.IsBlacklisted(user.ID, room.ID) {
		s.roomban(room.ID, user.ID)
	}
	if !s.registry.HasRank(user, room.ID, core.RankDriver) {
		s.moderate(room, user, text)
	}
	s.recordActivity(room, user.ID, core.ActivityChat, room.ID)
	s.commands.Dispatch(s, text, user, proto.RoomTarget(room.ID))
}

func (s *Session) moderate(room *core.Room, user *core.User, text string) {
	self := s.registry.Self()
	snap := s.settings.Snapshot()
	p := s.moderation.Process(moderation.Context{
		Message: core.Message{
			Room:   room.ID,
			UserID: user.ID,
			Text:   text,
			At:     s.clock.Now(),
		},
		Enforce:       s.cfg.AllowMute && s.registry.HasRank(self, room.ID, core.RankDriver) && !s.isWhitelisted(user),
		CanRoomBan:    s.registry.HasRank(self, room.ID, core.RankModerator),
		Enabled:       func(stage string) bool { return snap.ModerationEnabled(room.ID, stage) },
		BannedPhrases: snap.EnforcedPhrases(room.ID),
	})
	if p == nil {
		return
	}

	s.log.Info().
		Str("room", p.RoomID).
		Str("user", p.UserID).
		Str("command", p.Command).
		Int("points", p.Points).
		Msg(p.Reason)
	s.queue.Enqueue(proto.RoomTarget(room.ID), p.Line)
	s.journal(&store.Action{
		UserID:  p.UserID,
		RoomID:  p.RoomID,
		Command: p.Command,
		Reason:  p.Reason,
		Points:  p.Points,
	})
}

func (s *Session) onPM(_ string, line proto.Line) {
	sender := proto.SplitName(line.Field(2))
	text := line.Rest(4)

	user := s.registry.User(sender.Name)
	if user == nil {
		user = core.NewUser(sender.Name)
	}
	if user.ID == "" || s.registry.IsSelf(user) {
		return
	}

	if strings.HasPrefix(text, invitePrefix) {
		target := strings.TrimSpace(text[len(invitePrefix):])
		canInvite := s.registry.IsExcepted(user) || s.registry.Ranks().AtLeast(core.Rank(sender.Rank), core.RankDriver)
		if canInvite && !s.neverJoin(utils.ToID(target)) {
			s.sendGlobal("join " + target)
			return
		}
	}

	if s.commands.Dispatch(s, text, user, proto.UserTarget(user.ID)) {
		return
	}
	reply := "Hi, " + user.Name + "! I'm just a bot, for assistance, please ask another staff member."
	if s.cfg.BotGuide != "" {
		reply += " Command list: " + s.cfg.BotGuide
	}
	s.queue.Enqueue(proto.UserTarget(user.ID), reply)
}

func (s *Session) onRename(roomID string, line proto.Line) {
	room := s.roomFor(roomID)
	if room == nil {
		return
	}
	renamed := proto.SplitName(line.Field(2))
	oldID := utils.ToID(line.Field(3))

	user := s.registry.OnRename(room.ID, renamed.Name, core.Rank(renamed.Rank), oldID)
	if user == nil || s.registry.IsSelf(user) {
		return
	}
	if s.blacklist.IsBlacklisted(user.ID, room.ID) {
		s.roomban(room.ID, user.ID)
	}
	s.recordActivity(room, oldID, core.ActivityRename, user.ID)
}

func (s *Session) onJoin(roomID string, line proto.Line) {
	room := s.roomFor(roomID)
	if room == nil {
		return
	}
	joined := proto.SplitName(line.Field(2))

	user := s.registry.OnJoin(room.ID, joined.Name, core.Rank(joined.Rank))
	if user == nil || s.registry.IsSelf(user) {
		return
	}
	if s.blacklist.IsBlacklisted(user.ID, room.ID) {
		s.roomban(room.ID, user.ID)
	}
	s.recordActivity(room, user.ID, core.ActivityJoin, room.ID)
}

func (s *Session) onLeave(roomID string, line proto.Line) {
	room := s.roomFor(roomID)
	if room == nil {
		return
	}
	name := proto.SplitName(line.Field(2)).Name

	user := s.registry.OnLeave(room.ID, name)
	if s.registry.IsSelf(user) {
		return
	}
	id := utils.ToID(name)
	if user != nil {
		id = user.ID
	}
	if id == "" {
		return
	}
	s.recordActivity(room, id, core.ActivityLeave, room.ID)
}

func (s *Session) onPopup(_ string, line proto.Line) {
	parts := strings.Split(line.Rest(2), popupSeparator)
	if !strings.HasSuffix(parts[0], authPopupSuffix) {
		return
	}

	for _, part := range parts[1:] {
		switch {
		case strings.HasPrefix(part, roomAuthPrefix):
			s.rooms = normalizeRooms(strings.Split(part[len(roomAuthPrefix):], ","))
		case strings.HasPrefix(part, privAuthPrefix):
			s.privateRooms = normalizeRooms(strings.Split(part[len(privAuthPrefix):], ","))
		}
	}
	s.joinRooms()
}

func (s *Session) joinRooms() {
	all := make([]string, 0, len(s.rooms)+len(s.privateRooms))
	all = append(all, s.rooms...)
	all = append(all, s.privateRooms...)
	for _, room := range all {
		if s.neverJoin(room) {
			continue
		}
		s.sendGlobal("join " + room)
	}
}

// neverJoin reports rooms the client must not join on its own.
func (s *Session) neverJoin(room string) bool {
	return room == proto.Lobby && s.cfg.Server.ServerID == officialServer
}

func (s *Session) sendGlobal(command string) {
	s.queue.Enqueue(proto.RoomTarget(proto.Lobby), "/"+command)
}

func (s *Session) roomban(roomID, userID string) {
	s.queue.Enqueue(proto.RoomTarget(roomID), proto.Directive("roomban", userID, blacklistReason))
}

// recordActivity updates seen data for userID. Private rooms are never
// recorded.
func (s *Session) recordActivity(room *core.Room, userID string, kind core.ActivityKind, detail string) {
	if room.Private {
		return
	}
	s.RecordActivity(userID, kind, detail)
}

func (s *Session) journal(a *store.Action) {
	if s.store == nil {
		return
	}
	a.CreatedAt = s.clock.Now()
	st, log := s.store, s.log
	s.goBackground(func() {
		ctx, cancel := context.WithTimeout(context.Background(), storeTimeout)
		defer cancel()
		if err := st.RecordAction(ctx, a); err != nil {
			log.Warn().Err(err).Str("user", a.UserID).Msg("journal moderation action")
		}
	})
}
