// Package blacklist compiles per-room blacklist entries into one matcher per
// room. An entry is either a literal user ID or a "/pattern/flags" regular
// expression written in JavaScript syntax.
package blacklist

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/dlclark/regexp2"
)

// GlobalScope is the pseudo-room whose entries apply everywhere.
const GlobalScope = "global"

// matchTimeout bounds a single match so a hostile pattern cannot stall the session loop.
const matchTimeout = 100 * time.Millisecond

const compileOptions = regexp2.IgnoreCase | regexp2.ECMAScript

// ParsePattern splits a "/pattern/flags" entry.
func ParsePattern(entry string) (source, flags string, ok bool) {
	if len(entry) < 2 || entry[0] != '/' {
		return "", "", false
	}
	end := strings.LastIndexByte(entry, '/')
	if end <= 0 {
		return "", "", false
	}
	flags = entry[end+1:]
	if strings.Trim(flags, "gimsuy") != "" {
		return "", "", false
	}
	return entry[1:end], flags, true
}

// FormatPattern renders a pattern source as a case-insensitive entry.
func FormatPattern(source string) string {
	return "/" + source + "/i"
}

// Compile validates a pattern source the way the index will compile it.
func Compile(source string) (*regexp2.Regexp, error) {
	re, err := regexp2.Compile(source, compileOptions)
	if err != nil {
		return nil, fmt.Errorf("invalid regular expression /%s/: %w", source, err)
	}
	re.MatchTimeout = matchTimeout
	return re, nil
}

// Match runs re against s, treating a timeout as no match.
func Match(re *regexp2.Regexp, s string) bool {
	ok, err := re.MatchString(s)
	return err == nil && ok
}

// Index holds one compiled alternation per room. It is not safe for
// concurrent use.
type Index struct {
	matchers map[string]*regexp2.Regexp
}

// New returns an empty index.
func New() *Index {
	return &Index{matchers: make(map[string]*regexp2.Regexp)}
}

// Rebuild recompiles the matcher for room from its full entry set. An empty
// set removes the matcher. On error the previous matcher is kept.
func (x *Index) Rebuild(room string, entries []string) error {
	if len(entries) == 0 {
		delete(x.matchers, room)
		return nil
	}

	sorted := append([]string(nil), entries...)
	sort.Strings(sorted)

	alternatives := make([]string, 0, len(sorted))
	for _, entry := range sorted {
		if source, _, ok := ParsePattern(entry); ok {
			alternatives = append(alternatives, "(?:"+source+")")
			continue
		}
		alternatives = append(alternatives, "^"+regexp2.Escape(entry)+"$")
	}

	re, err := Compile(strings.Join(alternatives, "|"))
	if err != nil {
		return fmt.Errorf("rebuild blacklist for %s: %w", room, err)
	}
	x.matchers[room] = re
	return nil
}

// Remove drops the matcher for room.
func (x *Index) Remove(room string) {
	delete(x.matchers, room)
}

// Reset drops every matcher.
func (x *Index) Reset() {
	clear(x.matchers)
}

// Rooms lists the rooms that currently have a matcher.
func (x *Index) Rooms() []string {
	rooms := make([]string, 0, len(x.matchers))
	for room := range x.matchers {
		rooms = append(rooms, room)
	}
	sort.Strings(rooms)
	return rooms
}

// IsBlacklisted reports whether userID matches the room's or the global matcher.
func (x *Index) IsBlacklisted(userID, room string) bool {
	if re := x.matchers[room]; re != nil && Match(re, userID) {
		return true
	}
	if room == GlobalScope {
		return false
	}
	if re := x.matchers[GlobalScope]; re != nil && Match(re, userID) {
		return true
	}
	return false
}
