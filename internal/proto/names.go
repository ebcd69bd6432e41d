package proto

import (
	"strings"
	"unicode/utf8"
)

// RankedName is a protocol user reference: a one-character rank followed by
// the display name.
type RankedName struct {
	Rank rune
	Name string
}

// SplitName separates the rank prefix from a protocol user reference.
// A trailing status marker ("Name@!") is dropped.
func SplitName(s string) RankedName {
	if s == "" {
		return RankedName{Rank: ' '}
	}
	r, size := utf8.DecodeRuneInString(s)
	name := s[size:]
	if idx := strings.IndexByte(name, '@'); idx > 0 {
		name = name[:idx]
	}
	return RankedName{Rank: r, Name: name}
}

// ParseUserlist decodes the user list of an init snapshot: a count followed by
// ranked names, all comma-joined. "0" means an empty room.
func ParseUserlist(list string) []RankedName {
	if list == "" || list == "0" {
		return nil
	}
	parts := strings.Split(list, ",")
	members := make([]RankedName, 0, len(parts)-1)
	for _, p := range parts[1:] {
		if p == "" {
			continue
		}
		members = append(members, SplitName(p))
	}
	return members
}
