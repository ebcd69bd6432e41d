package moderation

import (
	"strings"
	"time"

	"github.com/dlclark/regexp2"
)

// matchTimeout bounds one match; chat text is untrusted input.
const matchTimeout = 100 * time.Millisecond

var (
	// Go's regexp has no backreferences; these need regexp2.
	repeatedChar  = mustCompile(`(.)\1{7,}`, regexp2.IgnoreCase)
	repeatedGroup = mustCompile(`(..+)\1{4,}`, regexp2.IgnoreCase)
	groupChatLink = mustCompile(`(?:\bplay\.pokemonshowdown\.com\/|\bpsim\.us\/|<<)groupchat-`, regexp2.IgnoreCase)
	spaceRuns     = mustCompile(`[ \u0000\u200B-\u200F]+`, regexp2.None)
)

func mustCompile(expr string, opts regexp2.RegexOptions) *regexp2.Regexp {
	re := regexp2.MustCompile(expr, opts)
	re.MatchTimeout = matchTimeout
	return re
}

// Normalize trims msg and collapses runs of spaces, NUL and zero-width
// characters into a single space.
func Normalize(msg string) string {
	msg = strings.TrimSpace(msg)
	out, err := spaceRuns.Replace(msg, " ", -1, -1)
	if err != nil {
		return msg
	}
	return out
}

func matches(re *regexp2.Regexp, s string) bool {
	ok, err := re.MatchString(s)
	return err == nil && ok
}

func containsBannedPhrase(msg string, phrases []string) bool {
	lower := strings.ToLower(msg)
	for _, phrase := range phrases {
		if phrase != "" && strings.Contains(lower, strings.ToLower(phrase)) {
			return true
		}
	}
	return false
}

func isCaps(msg string, minLength int, proportion float64) bool {
	var letters, upper int
	for i := 0; i < len(msg); i++ {
		c := msg[i]
		switch {
		case c >= 'A' && c <= 'Z':
			letters++
			upper++
		case c >= 'a' && c <= 'z':
			letters++
		}
	}
	if letters <= minLength {
		return false
	}
	return float64(upper)/float64(letters) >= proportion
}

func isStretched(msg string) bool {
	return matches(repeatedChar, msg) || matches(repeatedGroup, msg)
}

func hasGroupChatLink(msg string) bool {
	return matches(groupChatLink, msg)
}
