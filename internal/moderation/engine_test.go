package moderation

import (
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/dlclark/regexp2"

	"github.com/vovakirdan/wirebot/internal/core"
	"github.com/vovakirdan/wirebot/internal/settings"
)

func newTestEngine(t *testing.T) (*Engine, *clock.Mock) {
	t.Helper()
	mock := clock.NewMock()
	mock.Set(time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC))
	return New(DefaultOptions(), mock), mock
}

func chat(mock *clock.Mock, user, text string) Context {
	return Context{
		Message:    core.Message{Room: "lobby", UserID: user, Text: text, At: mock.Now()},
		Enforce:    true,
		CanRoomBan: true,
	}
}

func TestFloodingDetected(t *testing.T) {
	e, mock := newTestEngine(t)

	var p *Punishment
	for i := 0; i < 5; i++ {
		p = e.Process(chat(mock, "spammer", "hello there"))
		if i < 4 && p != nil {
			t.Fatalf("message %d punished early: %+v", i, p)
		}
		mock.Add(time.Second)
	}
	if p == nil {
		t.Fatalf("expected flooding punishment")
	}
	if p.Reason != ReasonFlooding || p.Command != "mute" {
		t.Fatalf("expected mute for flooding, got %s for %q", p.Command, p.Reason)
	}
	if p.Line != "/mute spammer, Automated response: flooding" {
		t.Fatalf("unexpected directive %q", p.Line)
	}
}

func TestFloodingIgnoresLagBursts(t *testing.T) {
	e, mock := newTestEngine(t)

	for i := 0; i < 5; i++ {
		if p := e.Process(chat(mock, "laggy", "hello there")); p != nil {
			t.Fatalf("burst within 500ms per message must not count as flooding: %+v", p)
		}
		mock.Add(100 * time.Millisecond)
	}
}

func TestCaps(t *testing.T) {
	tests := []struct {
		name string
		text string
		want bool
	}{
		{name: "all caps", text: "THIS IS REALLY LOUD", want: true},
		{name: "below proportion", text: "ABCDEFGHIjklm", want: false},
		{name: "too short", text: "ABCDEFGHIJKL", want: false},
		{name: "digits ignored", text: "1234567890 ABCDEFGHIJKLM", want: true},
		{name: "lowercase", text: "this is a perfectly normal message", want: false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e, mock := newTestEngine(t)
			p := e.Process(chat(mock, "shouter", tt.text))
			if got := p != nil && p.Reason == ReasonCaps; got != tt.want {
				t.Fatalf("caps(%q) = %v, want %v (punishment %+v)", tt.text, got, tt.want, p)
			}
		})
	}
}

func TestStretchingAndGroupChat(t *testing.T) {
	tests := []struct {
		text   string
		reason string
	}{
		{text: "hellooooooooo", reason: ReasonStretching},
		{text: "hahahahahaha", reason: ReasonStretching},
		{text: "come to <<groupchat-me-fun>>", reason: ReasonGroupChat},
		{text: "see psim.us/groupchat-me-fun", reason: ReasonGroupChat},
		{text: "hello", reason: ""},
	}
	for _, tt := range tests {
		e, mock := newTestEngine(t)
		p := e.Process(chat(mock, "someone", tt.text))
		got := ""
		if p != nil {
			got = p.Reason
		}
		if got != tt.reason {
			t.Errorf("%q: reason %q, want %q", tt.text, got, tt.reason)
		}
	}
}

func TestBannedPhraseWinsOverLowerSeverity(t *testing.T) {
	e, mock := newTestEngine(t)
	c := chat(mock, "rude", "THIS HAS A SPOILER IN IT")
	c.BannedPhrases = []string{"spoiler"}

	p := e.Process(c)
	if p == nil || p.Reason != ReasonBannedPhrase || p.Severity != 2 {
		t.Fatalf("expected banned phrase at severity 2, got %+v", p)
	}
}

func TestDisabledStage(t *testing.T) {
	e, mock := newTestEngine(t)
	c := chat(mock, "shouter", "THIS IS REALLY LOUD")
	c.Enabled = func(stage string) bool { return stage != settings.ModCaps }

	if p := e.Process(c); p != nil {
		t.Fatalf("caps disabled, got %+v", p)
	}
}

func TestNotEnforcedStillRecordsTimestamp(t *testing.T) {
	e, mock := newTestEngine(t)
	c := chat(mock, "whitelisted", "THIS IS REALLY LOUD")
	c.Enforce = false

	if p := e.Process(c); p != nil {
		t.Fatalf("unenforced message punished: %+v", p)
	}
	if got := len(e.Activity("whitelisted").Rooms["lobby"].Times); got != 1 {
		t.Fatalf("expected 1 timestamp, got %d", got)
	}
}

func TestLadderEscalation(t *testing.T) {
	e, mock := newTestEngine(t)

	want := []struct {
		cmd    string
		points int
		reason string
	}{
		{"warn", 1, ReasonCaps},
		{"mute", 2, ReasonCaps},
		{"hourmute", 3, ReasonCaps},
		{"roomban", 4, ReasonCaps},
		{"roomban", 4, ReasonCaps},
		{"roomban", 4, ReasonCaps},
		{"roomban", 4, ReasonZeroTolerance},
	}
	for i, w := range want {
		p := e.Process(chat(mock, "repeat", "THIS IS REALLY LOUD"))
		if p == nil {
			t.Fatalf("step %d: expected punishment", i)
		}
		if p.Command != w.cmd || p.Points != w.points || p.Reason != w.reason {
			t.Fatalf("step %d: got %s/%d/%q, want %s/%d/%q", i, p.Command, p.Points, p.Reason, w.cmd, w.points, w.reason)
		}
		mock.Add(4 * time.Second)
	}
}

func TestTopRungWithoutModeratorRank(t *testing.T) {
	e, mock := newTestEngine(t)

	var p *Punishment
	for i := 0; i < 4; i++ {
		c := chat(mock, "repeat", "THIS IS REALLY LOUD")
		c.CanRoomBan = false
		p = e.Process(c)
		mock.Add(4 * time.Second)
	}
	if p == nil || p.Command != "hourmute" || p.Points != 4 {
		t.Fatalf("expected hourmute at 4 points, got %+v", p)
	}
}

func TestCooldown(t *testing.T) {
	e, mock := newTestEngine(t)

	if p := e.Process(chat(mock, "repeat", "THIS IS REALLY LOUD")); p == nil {
		t.Fatalf("expected first punishment")
	}
	mock.Add(time.Second)
	if p := e.Process(chat(mock, "repeat", "THIS IS REALLY LOUD")); p != nil {
		t.Fatalf("punishment inside cooldown: %+v", p)
	}
	mock.Add(2 * time.Second)
	if p := e.Process(chat(mock, "repeat", "THIS IS REALLY LOUD")); p == nil || p.Command != "mute" {
		t.Fatalf("expected mute after cooldown, got %+v", p)
	}
}

func TestZeroToleranceSkipsLadder(t *testing.T) {
	e, mock := newTestEngine(t)
	e.RecordActivity("veteran", core.ActivityJoin, "lobby")
	e.Activity("veteran").ZeroTolerance = 5

	c := chat(mock, "veteran", "THIS IS REALLY LOUD")
	c.CanRoomBan = false
	p := e.Process(c)
	if p == nil || p.Command != "hourmute" || p.Reason != ReasonZeroTolerance {
		t.Fatalf("expected zero tolerance hourmute, got %+v", p)
	}
	if p.Points != 1 {
		t.Fatalf("ladder points should still be 1, got %d", p.Points)
	}
}

func TestSweep(t *testing.T) {
	e, mock := newTestEngine(t)

	e.Process(chat(mock, "repeat", "THIS IS REALLY LOUD"))
	mock.Add(4 * time.Second)
	e.Process(chat(mock, "repeat", "THIS IS REALLY LOUD"))
	e.RecordActivity("repeat", core.ActivityChat, "lobby")

	mock.Add(10 * time.Second)
	e.Sweep()
	room := e.Activity("repeat").Rooms["lobby"]
	if room == nil || len(room.Times) != 0 || room.Points != 1 {
		t.Fatalf("expected pruned times and 1 point, got %+v", room)
	}

	e.Sweep()
	if _, ok := e.Activity("repeat").Rooms["lobby"]; ok {
		t.Fatalf("empty room record should be removed")
	}
	if desc, _, ok := e.Seen("repeat"); !ok || desc != "chatting in lobby." {
		t.Fatalf("seen data must survive the sweep, got %q", desc)
	}
}

func TestSweepKeepsTopPoints(t *testing.T) {
	e, mock := newTestEngine(t)
	e.user("banned").Rooms["lobby"] = &RoomActivity{Points: 4}

	mock.Add(time.Hour)
	e.Sweep()
	if got := e.Activity("banned").Rooms["lobby"].Points; got != 4 {
		t.Fatalf("points at the top of the ladder never decay, got %d", got)
	}
}

func TestNormalize(t *testing.T) {
	got := Normalize("  a \u200b\u200b  b\x00c ")
	if got != "a b c" {
		t.Fatalf("Normalize = %q", got)
	}
}

func TestRestoreSeen(t *testing.T) {
	e, mock := newTestEngine(t)
	e.RecordActivity("alice", core.ActivityLeave, "lobby")
	e.RestoreSeen("alice", "joining help.", mock.Now().Add(-time.Hour))

	if desc, _, _ := e.Seen("alice"); desc != "leaving lobby." {
		t.Fatalf("older record must not replace newer one, got %q", desc)
	}

	e.RestoreSeen("bob", "joining help.", mock.Now().Add(-time.Hour))
	if desc, _, ok := e.Seen("bob"); !ok || desc != "joining help." {
		t.Fatalf("expected restored seen, got %q", desc)
	}
}

func TestDetectorsBoundMatchTime(t *testing.T) {
	for name, re := range map[string]*regexp2.Regexp{
		"repeatedChar":  repeatedChar,
		"repeatedGroup": repeatedGroup,
		"groupChatLink": groupChatLink,
		"spaceRuns":     spaceRuns,
	} {
		if re.MatchTimeout != matchTimeout {
			t.Fatalf("%s: match timeout %s, want %s", name, re.MatchTimeout, matchTimeout)
		}
	}

	var b strings.Builder
	for i := 0; b.Len() < 20000; i++ {
		b.WriteString(strconv.Itoa(i))
		b.WriteByte(' ')
	}
	start := time.Now()
	isStretched(b.String())
	if elapsed := time.Since(start); elapsed > 2*time.Second {
		t.Fatalf("stretching check took %s", elapsed)
	}
}
