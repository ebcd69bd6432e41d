package core

import "strings"

// ActivityKind describes what a user was last seen doing.
type ActivityKind int

const (
	// ActivityJoin records a user joining a room.
	ActivityJoin ActivityKind = iota
	// ActivityLeave records a user leaving a room.
	ActivityLeave
	// ActivityChat records a user chatting in a room.
	ActivityChat
	// ActivityRename records a user changing nick.
	ActivityRename
)

// Describe renders the human-readable "last seen" sentence for an activity.
// detail is a room ID, or the new name for renames.
func (k ActivityKind) Describe(detail string) string {
	var b strings.Builder
	switch k {
	case ActivityJoin:
		b.WriteString("joining ")
	case ActivityLeave:
		b.WriteString("leaving ")
	case ActivityChat:
		b.WriteString("chatting in ")
	case ActivityRename:
		b.WriteString("changing nick to ")
	}
	b.WriteString(strings.TrimSpace(detail))
	b.WriteString(".")
	return b.String()
}

func (k ActivityKind) String() string {
	switch k {
	case ActivityJoin:
		return "join"
	case ActivityLeave:
		return "leave"
	case ActivityChat:
		return "chat"
	case ActivityRename:
		return "rename"
	default:
		return "unknown"
	}
}
