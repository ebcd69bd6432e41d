// Package moderation scores chat messages against the automated rules and
// escalates repeat offenders through a punishment ladder.
package moderation

import (
	"time"

	"github.com/benbjohnson/clock"

	"github.com/vovakirdan/wirebot/internal/core"
	"github.com/vovakirdan/wirebot/internal/proto"
	"github.com/vovakirdan/wirebot/internal/settings"
)

const (
	maxPoints    = 4
	fallbackCmd  = "mute"
	capCmd       = "hourmute"
	zeroTolCmd   = "roomban"
	reasonPrefix = "Automated response: "
)

// Reasons attached to directives.
const (
	ReasonBannedPhrase  = "your message contained a banned phrase"
	ReasonFlooding      = "flooding"
	ReasonCaps          = "caps"
	ReasonStretching    = "stretching"
	ReasonGroupChat     = "groupchat links"
	ReasonZeroTolerance = "zero tolerance user"
)

// RoomActivity is one user's recent behavior in one room.
type RoomActivity struct {
	Times      []time.Time
	Points     int
	LastAction time.Time
}

// Activity is everything tracked about one user.
type Activity struct {
	ZeroTolerance   int
	SeenAt          time.Time
	SeenDescription string
	Rooms           map[string]*RoomActivity
}

// Context is one chat message with the facts needed to judge it.
type Context struct {
	Message core.Message
	// Enforce is false when the speaker is whitelisted, muting is disabled or
	// the client lacks the driver rank. The timestamp is still recorded.
	Enforce bool
	// CanRoomBan is true when the client holds the moderator rank.
	CanRoomBan    bool
	Enabled       func(stage string) bool
	BannedPhrases []string
}

func (c Context) enabled(stage string) bool {
	return c.Enabled == nil || c.Enabled(stage)
}

// Punishment is a directive the client should send to the room.
type Punishment struct {
	UserID   string
	RoomID   string
	Command  string
	Reason   string
	Severity int
	Points   int
	// Line is the directive text, e.g. "/mute user, Automated response: caps".
	Line string
}

// Engine owns all chat activity. It is not safe for concurrent use.
type Engine struct {
	opts     Options
	clock    clock.Clock
	activity map[string]*Activity
}

// New creates an engine. A nil clock uses wall time.
func New(opts Options, clk clock.Clock) *Engine {
	if clk == nil {
		clk = clock.New()
	}
	return &Engine{
		opts:     opts.withDefaults(),
		clock:    clk,
		activity: make(map[string]*Activity),
	}
}

// Options returns the effective thresholds.
func (e *Engine) Options() Options {
	return e.opts
}

// Reset forgets all activity.
func (e *Engine) Reset() {
	clear(e.activity)
}

// Activity returns the tracked record for userID, or nil.
func (e *Engine) Activity(userID string) *Activity {
	return e.activity[userID]
}

func (e *Engine) user(userID string) *Activity {
	a := e.activity[userID]
	if a == nil {
		a = &Activity{Rooms: make(map[string]*RoomActivity)}
		e.activity[userID] = a
	}
	return a
}

// Process records the message timestamp and, when enforced, returns the
// punishment it earns. At most one punishment is produced per message.
func (e *Engine) Process(c Context) *Punishment {
	msg := Normalize(c.Message.Text)
	now := c.Message.At
	if now.IsZero() {
		now = e.clock.Now()
	}

	userData := e.user(c.Message.UserID)
	roomData := userData.Rooms[c.Message.Room]
	if roomData == nil {
		roomData = &RoomActivity{}
		userData.Rooms[c.Message.Room] = roomData
	}
	roomData.Times = append(roomData.Times, now)

	if !c.Enforce {
		return nil
	}

	severity, reason := e.score(c, msg, roomData.Times, now)
	if severity == 0 {
		return nil
	}
	if !roomData.LastAction.IsZero() && now.Sub(roomData.LastAction) < e.opts.ActionCooldown {
		return nil
	}

	if roomData.Points >= severity && severity < maxPoints {
		roomData.Points++
	} else {
		roomData.Points = severity
	}
	if roomData.Points > maxPoints {
		roomData.Points = maxPoints
	}
	cmd := e.rung(roomData.Points)

	if roomData.Points >= maxPoints && !c.CanRoomBan {
		cmd = capCmd
	}
	if userData.ZeroTolerance > e.opts.ZeroToleranceThreshold {
		reason = ReasonZeroTolerance
		cmd = capCmd
		if c.CanRoomBan {
			cmd = zeroTolCmd
		}
	}
	if roomData.Points > 1 {
		userData.ZeroTolerance++
	}
	roomData.LastAction = now

	return &Punishment{
		UserID:   c.Message.UserID,
		RoomID:   c.Message.Room,
		Command:  cmd,
		Reason:   reason,
		Severity: severity,
		Points:   roomData.Points,
		Line:     proto.Directive(cmd, c.Message.UserID, reasonPrefix+reason),
	}
}

func (e *Engine) rung(points int) string {
	if points < 1 || points > len(e.opts.Punishments) {
		return fallbackCmd
	}
	if cmd := e.opts.Punishments[points-1]; cmd != "" {
		return cmd
	}
	return fallbackCmd
}

// score runs every enabled stage. The highest severity wins and the first
// stage to reach it names the reason.
func (e *Engine) score(c Context, msg string, times []time.Time, now time.Time) (int, string) {
	severity, reason := 0, ""
	raise := func(level int, why string) {
		if severity < level {
			severity, reason = level, why
		}
	}

	if c.enabled(settings.ModBannedWords) && containsBannedPhrase(msg, c.BannedPhrases) {
		raise(2, ReasonBannedPhrase)
	}
	if c.enabled(settings.ModFlooding) && e.isFlooding(times, now) {
		raise(2, ReasonFlooding)
	}
	if c.enabled(settings.ModCaps) && isCaps(msg, e.opts.CapsMinLength, e.opts.CapsProportion) {
		raise(1, ReasonCaps)
	}
	if c.enabled(settings.ModStretching) && isStretched(msg) {
		raise(1, ReasonStretching)
	}
	if c.enabled(settings.ModGroupChat) && hasGroupChatLink(msg) {
		raise(1, ReasonGroupChat)
	}
	return severity, reason
}

func (e *Engine) isFlooding(times []time.Time, now time.Time) bool {
	n := e.opts.FloodMessages
	if len(times) < n {
		return false
	}
	span := now.Sub(times[len(times)-n])
	return span < e.opts.FloodWindow && span > e.opts.FloodPerMessageMin*time.Duration(n)
}

// Sweep drops timestamps older than the retention window and decays points
// that have not reached the top of the ladder. Seen data is never dropped.
func (e *Engine) Sweep() {
	now := e.clock.Now()
	for _, userData := range e.activity {
		for roomID, roomData := range userData.Rooms {
			kept := roomData.Times[:0]
			for _, at := range roomData.Times {
				if now.Sub(at) < e.opts.RetentionWindow {
					kept = append(kept, at)
				}
			}
			roomData.Times = kept
			if roomData.Points > 0 && roomData.Points < maxPoints {
				roomData.Points--
			}
			if len(roomData.Times) == 0 && roomData.Points == 0 {
				delete(userData.Rooms, roomID)
			}
		}
	}
}

// RecordActivity updates what userID was last seen doing without scoring
// anything.
func (e *Engine) RecordActivity(userID string, kind core.ActivityKind, detail string) *Activity {
	a := e.user(userID)
	a.SeenAt = e.clock.Now()
	a.SeenDescription = kind.Describe(detail)
	return a
}

// RestoreSeen installs a persisted last-seen record if nothing newer is known.
func (e *Engine) RestoreSeen(userID, description string, at time.Time) {
	a := e.user(userID)
	if a.SeenAt.After(at) {
		return
	}
	a.SeenAt = at
	a.SeenDescription = description
}

// Seen returns what userID was last seen doing.
func (e *Engine) Seen(userID string) (string, time.Time, bool) {
	a := e.activity[userID]
	if a == nil || a.SeenDescription == "" {
		return "", time.Time{}, false
	}
	return a.SeenDescription, a.SeenAt, true
}
