package commands

import (
	"time"

	"github.com/vovakirdan/wirebot/internal/core"
	"github.com/vovakirdan/wirebot/internal/proto"
	"github.com/vovakirdan/wirebot/internal/settings"
)

// Bot is what commands may do to the session.
type Bot interface {
	// Say enqueues text for target.
	Say(target proto.Target, text string) bool
	Self() *core.User
	User(name string) *core.User
	Room(id string) *core.Room
	Ranks() core.Ranks
	HasRank(u *core.User, room string, rank core.Rank) bool
	IsExcepted(u *core.User) bool
	IsRegexWhitelisted(u *core.User) bool
	CanUse(u *core.User, command, room string) bool
	// DefaultRank is the level for commands with no per-room setting.
	DefaultRank() core.Rank

	Settings() *settings.Snapshot
	SaveSettings()
	// Blacklist adds entry to room and recompiles the room matcher. added is
	// false if the entry was already present.
	Blacklist(room, entry string) (added bool, err error)
	Unblacklist(room, entry string) (removed bool, err error)

	// Seen looks up what userID was last doing and calls reply on the session
	// goroutine, possibly after consulting the activity store.
	Seen(userID string, reply func(desc string, at time.Time, ok bool))
	RecordActivity(userID string, kind core.ActivityKind, detail string)

	Now() time.Time
	Uptime() time.Duration
}

// Context is a single command invocation.
type Context struct {
	Bot  Bot
	User *core.User
	// Room is where the command was issued; private for PMs.
	Room proto.Target
	// Command is the resolved name, Invoked the name the user typed.
	Command string
	Invoked string
	Arg     string
	Prefix  string
}

// InPM reports whether the command arrived as a private message.
func (c *Context) InPM() bool {
	return c.Room.Private
}

// Reply answers where the command was issued.
func (c *Context) Reply(text string) {
	c.Bot.Say(c.Room, text)
}

// ReplyPrivately answers the invoking user by PM.
func (c *Context) ReplyPrivately(text string) {
	c.Bot.Say(proto.UserTarget(c.User.ID), text)
}

// ReplyRoomIf answers in the room when public is true, otherwise by PM.
func (c *Context) ReplyRoomIf(public bool, text string) {
	if public && !c.InPM() {
		c.Reply(text)
		return
	}
	c.ReplyPrivately(text)
}

// HasRank checks the invoking user's rank in the current room.
func (c *Context) HasRank(rank core.Rank) bool {
	return c.Bot.HasRank(c.User, c.Room.ID, rank)
}

// CanUse checks a command permission in the current room.
func (c *Context) CanUse(command string) bool {
	return c.Bot.CanUse(c.User, command, c.Room.ID)
}

// SelfHasRank checks the client's own rank in the current room.
func (c *Context) SelfHasRank(rank core.Rank) bool {
	return c.Bot.HasRank(c.Bot.Self(), c.Room.ID, rank)
}
