package proto

import "strings"

// Lobby is the default room; its broadcasts use an empty room segment.
const Lobby = "lobby"

// Target is the destination of an outbound line.
type Target struct {
	ID      string
	Private bool
}

// RoomTarget addresses a room broadcast.
func RoomTarget(id string) Target {
	return Target{ID: id}
}

// UserTarget addresses a private message.
func UserTarget(id string) Target {
	return Target{ID: id, Private: true}
}

// Line renders text for the target.
func (t Target) Line(text string) string {
	if t.Private {
		return PMLine(t.ID, text)
	}
	return RoomLine(t.ID, text)
}

func (t Target) String() string {
	if t.Private {
		return "pm:" + t.ID
	}
	return t.ID
}

// RoomLine renders a room broadcast.
func RoomLine(room, text string) string {
	if room == Lobby {
		room = ""
	}
	return room + "|" + text
}

// PMLine renders a private message.
func PMLine(user, text string) string {
	return "|/pm " + user + ", " + text
}

// Directive renders a moderation directive such as "/mute user, reason".
func Directive(command, target, reason string) string {
	var b strings.Builder
	b.WriteString("/")
	b.WriteString(command)
	b.WriteString(" ")
	b.WriteString(target)
	if reason != "" {
		b.WriteString(", ")
		b.WriteString(reason)
	}
	return b.String()
}
