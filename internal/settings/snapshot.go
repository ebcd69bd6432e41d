// Package settings holds the persisted per-room settings document and writes
// it back to disk atomically.
package settings

import (
	"sort"
	"strings"

	"github.com/vovakirdan/wirebot/internal/utils"
)

// GlobalScope keys banned phrases and blacklist entries that apply to every room.
const GlobalScope = "global"

// Command level values besides a rank character.
const (
	LevelOn  = "on"
	LevelOff = "off"
)

// Moderation stage toggles.
const (
	ModBannedWords = "bannedwords"
	ModFlooding    = "flooding"
	ModCaps        = "caps"
	ModStretching  = "stretching"
	ModGroupChat   = "groupchat"
)

// ModerationOptions lists every toggle accepted by SetModeration.
var ModerationOptions = []string{ModBannedWords, ModFlooding, ModCaps, ModStretching, ModGroupChat}

// Snapshot is the persisted settings document.
type Snapshot struct {
	Modding       map[string]map[string]bool   `json:"modding,omitempty"`
	Commands      map[string]map[string]string `json:"commands,omitempty"`
	BannedPhrases map[string]map[string]bool   `json:"bannedphrases,omitempty"`
	Blacklist     map[string]map[string]bool   `json:"blacklist,omitempty"`
}

// NewSnapshot returns an empty document.
func NewSnapshot() *Snapshot {
	s := &Snapshot{}
	s.ensure()
	return s
}

func (s *Snapshot) ensure() {
	if s.Modding == nil {
		s.Modding = make(map[string]map[string]bool)
	}
	if s.Commands == nil {
		s.Commands = make(map[string]map[string]string)
	}
	if s.BannedPhrases == nil {
		s.BannedPhrases = make(map[string]map[string]bool)
	}
	if s.Blacklist == nil {
		s.Blacklist = make(map[string]map[string]bool)
	}
}

// IsModerationOption reports whether name is a known moderation toggle.
func IsModerationOption(name string) bool {
	for _, opt := range ModerationOptions {
		if opt == name {
			return true
		}
	}
	return false
}

// ModerationEnabled reports whether a stage is on in room. Absent means enabled.
func (s *Snapshot) ModerationEnabled(room, option string) bool {
	enabled, ok := s.Modding[room][option]
	return !ok || enabled
}

// ModerationToggles returns the explicit toggles for room.
func (s *Snapshot) ModerationToggles(room string) map[string]bool {
	return s.Modding[room]
}

// SetModeration stores a toggle. Enabling removes the explicit entry.
func (s *Snapshot) SetModeration(room, option string, enabled bool) {
	if enabled {
		delete(s.Modding[room], option)
		if len(s.Modding[room]) == 0 {
			delete(s.Modding, room)
		}
		return
	}
	if s.Modding[room] == nil {
		s.Modding[room] = make(map[string]bool)
	}
	s.Modding[room][option] = false
}

// CommandLevel returns the stored level for a command in room.
func (s *Snapshot) CommandLevel(command, room string) (string, bool) {
	level, ok := s.Commands[command][room]
	return level, ok
}

// SetCommandLevel stores "on", "off" or a rank character for a command in room.
func (s *Snapshot) SetCommandLevel(command, room, level string) {
	if s.Commands[command] == nil {
		s.Commands[command] = make(map[string]string)
	}
	s.Commands[command][room] = level
}

// AddBannedPhrase adds a phrase to room (or GlobalScope). Reports false if it was present.
func (s *Snapshot) AddBannedPhrase(room, phrase string) bool {
	phrase = strings.ToLower(strings.TrimSpace(phrase))
	if phrase == "" {
		return false
	}
	if s.BannedPhrases[room] == nil {
		s.BannedPhrases[room] = make(map[string]bool)
	}
	if s.BannedPhrases[room][phrase] {
		return false
	}
	s.BannedPhrases[room][phrase] = true
	return true
}

// RemoveBannedPhrase removes a phrase. Reports false if it was absent.
func (s *Snapshot) RemoveBannedPhrase(room, phrase string) bool {
	phrase = strings.ToLower(strings.TrimSpace(phrase))
	if !s.BannedPhrases[room][phrase] {
		return false
	}
	delete(s.BannedPhrases[room], phrase)
	if len(s.BannedPhrases[room]) == 0 {
		delete(s.BannedPhrases, room)
	}
	return true
}

// RoomBannedPhrases lists the phrases stored for room only.
func (s *Snapshot) RoomBannedPhrases(room string) []string {
	return sortedKeys(s.BannedPhrases[room])
}

// EnforcedPhrases lists the phrases enforced in room, global ones included.
func (s *Snapshot) EnforcedPhrases(room string) []string {
	phrases := sortedKeys(s.BannedPhrases[room])
	if room != GlobalScope {
		phrases = append(phrases, sortedKeys(s.BannedPhrases[GlobalScope])...)
	}
	return phrases
}

// AddBlacklistEntry adds a user id or "/regex/i" entry. Literal entries are
// normalized. Reports false if it was present.
func (s *Snapshot) AddBlacklistEntry(room, entry string) bool {
	entry = normalizeEntry(entry)
	if entry == "" {
		return false
	}
	if s.Blacklist[room] == nil {
		s.Blacklist[room] = make(map[string]bool)
	}
	if s.Blacklist[room][entry] {
		return false
	}
	s.Blacklist[room][entry] = true
	return true
}

// RemoveBlacklistEntry removes an entry. Reports false if it was absent.
func (s *Snapshot) RemoveBlacklistEntry(room, entry string) bool {
	entry = normalizeEntry(entry)
	if !s.Blacklist[room][entry] {
		return false
	}
	delete(s.Blacklist[room], entry)
	if len(s.Blacklist[room]) == 0 {
		delete(s.Blacklist, room)
	}
	return true
}

// HasBlacklistEntry reports whether entry is stored for room.
func (s *Snapshot) HasBlacklistEntry(room, entry string) bool {
	return s.Blacklist[room][normalizeEntry(entry)]
}

// BlacklistEntries lists the entries for room in sorted order.
func (s *Snapshot) BlacklistEntries(room string) []string {
	return sortedKeys(s.Blacklist[room])
}

// BlacklistRooms lists every room that has blacklist entries.
func (s *Snapshot) BlacklistRooms() []string {
	rooms := make([]string, 0, len(s.Blacklist))
	for room, entries := range s.Blacklist {
		if len(entries) > 0 {
			rooms = append(rooms, room)
		}
	}
	sort.Strings(rooms)
	return rooms
}

func normalizeEntry(entry string) string {
	entry = strings.TrimSpace(entry)
	if strings.HasPrefix(entry, "/") {
		return entry
	}
	return utils.ToID(entry)
}

func sortedKeys(m map[string]bool) []string {
	keys := make([]string, 0, len(m))
	for k, v := range m {
		if v {
			keys = append(keys, k)
		}
	}
	sort.Strings(keys)
	return keys
}
