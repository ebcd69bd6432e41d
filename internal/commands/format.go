package commands

import (
	"strconv"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/vovakirdan/wirebot/internal/core"
	"github.com/vovakirdan/wirebot/internal/settings"
)

// DefaultLevel is the rank a command requires when a room has no setting for it.
func DefaultLevel(command string, fallback core.Rank) core.Rank {
	switch command {
	case "autoban", "blacklist", "banword":
		return core.RankOwner
	}
	return fallback
}

// ParseLevel maps a "set" argument to a stored level: "on", "off" or a rank character.
func ParseLevel(s string, ranks core.Ranks) (string, bool) {
	switch strings.ToLower(s) {
	case "on", "enable", "true":
		return settings.LevelOn, true
	case "off", "disable", "false":
		return settings.LevelOff, true
	}
	if utf8.RuneCountInString(s) != 1 {
		return "", false
	}
	rank, ok := core.ParseRank(s)
	if !ok || rank == core.RankRegular || !ranks.Known(rank) {
		return "", false
	}
	return s, true
}

// StripCommands neutralizes text that the server would otherwise run as a command.
func StripCommands(text string) string {
	text = strings.TrimSpace(text)
	switch {
	case strings.HasPrefix(text, "/"):
		return "/" + text
	case strings.HasPrefix(text, "!"), strings.HasPrefix(text, ">> "), strings.HasPrefix(text, ">>> "):
		return " " + text
	}
	return text
}

var uptimeUnits = []struct {
	name string
	size int64
}{
	{"second", 60},
	{"minute", 60},
	{"hour", 24},
	{"day", 7},
	{"week", 52},
}

// FormatUptime renders d as "1 hour, 2 minutes, and 3 seconds".
func FormatUptime(d time.Duration) string {
	rest := int64(d / time.Second)
	var parts []string
	for _, u := range uptimeUnits {
		n := rest % u.size
		parts = append([]string{plural(n, u.name)}, parts...)
		rest /= u.size
		if rest == 0 {
			break
		}
	}

	switch len(parts) {
	case 1:
		return parts[0]
	case 2:
		return parts[0] + " and " + parts[1]
	default:
		return strings.Join(parts[:len(parts)-1], ", ") + ", and " + parts[len(parts)-1]
	}
}

func plural(n int64, unit string) string {
	s := strconv.FormatInt(n, 10) + " " + unit
	if n != 1 {
		s += "s"
	}
	return s
}

// listSentence renders `User "a" was` or `Users "a", "b" were`.
func listSentence(noun string, ids []string, one, many string) string {
	if len(ids) == 1 {
		return noun + ` "` + ids[0] + `" ` + one
	}
	return noun + `s "` + strings.Join(ids, `", "`) + `" ` + many
}

func joinSentences(a, b string) string {
	if a == "" {
		return b
	}
	return a + " " + b
}
