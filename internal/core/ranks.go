package core

import "unicode/utf8"

// Rank is the single-character authority marker a user holds within a room.
type Rank rune

const (
	RankRegular   Rank = ' '
	RankVoice     Rank = '+'
	RankDriver    Rank = '%'
	RankModerator Rank = '@'
	RankOwner     Rank = '#'
)

// DefaultTiers orders rank characters from least to most authority.
// Characters sharing a tier are equal.
var DefaultTiers = []string{" ", "+", "%", "@*", "#", "&", "~"}

func (r Rank) String() string {
	return string(r)
}

// ParseRank returns the first rune of s as a rank.
func ParseRank(s string) (Rank, bool) {
	if s == "" {
		return 0, false
	}
	r, _ := utf8.DecodeRuneInString(s)
	if r == utf8.RuneError {
		return 0, false
	}
	return Rank(r), true
}

// Ranks maps rank characters to comparable levels.
type Ranks struct {
	levels map[Rank]int
}

// NewRanks builds a rank table from ordered tiers.
func NewRanks(tiers []string) Ranks {
	levels := make(map[Rank]int)
	for level, tier := range tiers {
		for _, r := range tier {
			levels[Rank(r)] = level
		}
	}
	return Ranks{levels: levels}
}

// Level returns the level of rank and whether the rank is known.
func (r Ranks) Level(rank Rank) (int, bool) {
	level, ok := r.levels[rank]
	return level, ok
}

// Known reports whether rank appears in the table.
func (r Ranks) Known(rank Rank) bool {
	_, ok := r.levels[rank]
	return ok
}

// AtLeast reports whether rank carries at least the authority of target.
// Unknown ranks never satisfy the check.
func (r Ranks) AtLeast(rank, target Rank) bool {
	have, ok := r.levels[rank]
	if !ok {
		return false
	}
	want, ok := r.levels[target]
	if !ok {
		return false
	}
	return have >= want
}

// Less reports whether rank is strictly below target. Unknown ranks sort lowest.
func (r Ranks) Less(rank, target Rank) bool {
	have, ok := r.levels[rank]
	if !ok {
		have = -1
	}
	want, ok := r.levels[target]
	if !ok {
		want = -1
	}
	return have < want
}
