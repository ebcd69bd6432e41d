package commands

import (
	"testing"
	"time"

	"github.com/vovakirdan/wirebot/internal/blacklist"
	"github.com/vovakirdan/wirebot/internal/core"
	"github.com/vovakirdan/wirebot/internal/proto"
	"github.com/vovakirdan/wirebot/internal/settings"
	"github.com/vovakirdan/wirebot/internal/utils"
)

type seenRecord struct {
	desc string
	at   time.Time
}

type fakeBot struct {
	registry   *core.Registry
	snap       *settings.Snapshot
	index      *blacklist.Index
	regexUsers map[string]bool
	seen       map[string]seenRecord
	now        time.Time
	started    time.Time
	saves      int
	said       []string
}

func newFakeBot(t *testing.T) *fakeBot {
	t.Helper()
	reg := core.NewRegistry(core.Options{
		Self:    "WireBot",
		Ranks:   core.NewRanks(core.DefaultTiers),
		Excepts: []string{"Owner Person"},
	})
	reg.AddOrGetRoom("lobby", false)
	reg.OnJoin("lobby", "WireBot", core.RankModerator)
	now := time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)
	return &fakeBot{
		registry:   reg,
		snap:       settings.NewSnapshot(),
		index:      blacklist.New(),
		regexUsers: map[string]bool{},
		seen:       map[string]seenRecord{},
		now:        now,
		started:    now.Add(-90 * time.Minute),
	}
}

func (f *fakeBot) Say(target proto.Target, text string) bool {
	f.said = append(f.said, target.Line(text))
	return true
}

func (f *fakeBot) Self() *core.User { return f.registry.Self() }

func (f *fakeBot) User(name string) *core.User { return f.registry.User(name) }

func (f *fakeBot) Room(id string) *core.Room { return f.registry.Room(id) }

func (f *fakeBot) Ranks() core.Ranks { return f.registry.Ranks() }

func (f *fakeBot) IsExcepted(u *core.User) bool { return f.registry.IsExcepted(u) }

func (f *fakeBot) DefaultRank() core.Rank { return core.RankDriver }

func (f *fakeBot) Settings() *settings.Snapshot { return f.snap }

func (f *fakeBot) SaveSettings() { f.saves++ }

func (f *fakeBot) Now() time.Time { return f.now }

func (f *fakeBot) Uptime() time.Duration { return f.now.Sub(f.started) }

func (f *fakeBot) IsRegexWhitelisted(u *core.User) bool {
	return u != nil && f.regexUsers[u.ID]
}

func (f *fakeBot) HasRank(u *core.User, room string, rank core.Rank) bool {
	return f.registry.HasRank(u, room, rank)
}

func (f *fakeBot) CanUse(u *core.User, command, room string) bool {
	if f.registry.IsExcepted(u) {
		return true
	}
	level, ok := f.snap.CommandLevel(command, room)
	switch {
	case !ok:
		return f.registry.HasRank(u, room, DefaultLevel(command, f.DefaultRank()))
	case level == settings.LevelOn:
		return true
	case level == settings.LevelOff:
		return false
	}
	rank, _ := core.ParseRank(level)
	return f.registry.HasRank(u, room, rank)
}

func (f *fakeBot) Blacklist(room, entry string) (bool, error) {
	if !f.snap.AddBlacklistEntry(room, entry) {
		return false, nil
	}
	if err := f.index.Rebuild(room, f.snap.BlacklistEntries(room)); err != nil {
		f.snap.RemoveBlacklistEntry(room, entry)
		return false, err
	}
	return true, nil
}

func (f *fakeBot) Unblacklist(room, entry string) (bool, error) {
	if !f.snap.RemoveBlacklistEntry(room, entry) {
		return false, nil
	}
	return true, f.index.Rebuild(room, f.snap.BlacklistEntries(room))
}

func (f *fakeBot) Seen(userID string, reply func(string, time.Time, bool)) {
	rec, ok := f.seen[userID]
	reply(rec.desc, rec.at, ok)
}

func (f *fakeBot) RecordActivity(userID string, kind core.ActivityKind, detail string) {
	f.seen[userID] = seenRecord{desc: kind.Describe(detail), at: f.now}
}

func (f *fakeBot) join(t *testing.T, name string, rank core.Rank) *core.User {
	t.Helper()
	u := f.registry.OnJoin("lobby", name, rank)
	if u == nil {
		t.Fatalf("join %s failed", name)
	}
	return u
}

func (f *fakeBot) reset() {
	f.said = nil
}

func (f *fakeBot) expectSaid(t *testing.T, lines ...string) {
	t.Helper()
	if len(f.said) != len(lines) {
		t.Fatalf("expected %d lines %q, got %d: %q", len(lines), lines, len(f.said), f.said)
	}
	for i, line := range lines {
		if f.said[i] != line {
			t.Fatalf("line %d: expected %q, got %q", i, line, f.said[i])
		}
	}
}

func newTestCommands(t *testing.T) *Registry {
	t.Helper()
	r := NewRegistry(".", nil)
	RegisterBuiltins(r, Info{Name: "WireBot", BotGuide: "https://example.com/guide"})
	return r
}

func inRoom() proto.Target { return proto.RoomTarget("lobby") }

func inPM(u *core.User) proto.Target { return proto.UserTarget(utils.ToID(u.Name)) }
