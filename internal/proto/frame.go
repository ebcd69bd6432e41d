package proto

import "strings"

// Batch is one inbound frame split into lines, with its room scope.
type Batch struct {
	// Room is the ID from a leading ">room" header, empty when absent.
	Room  string
	Lines []string
}

// ParseFrame splits a raw frame. A frame without a newline is a single line
// with no room scope; otherwise an optional ">room" header scopes every line.
func ParseFrame(raw string) Batch {
	if !strings.Contains(raw, "\n") {
		return Batch{Lines: []string{raw}}
	}

	lines := strings.Split(raw, "\n")
	var room string
	if strings.HasPrefix(lines[0], ">") {
		room = strings.TrimSpace(lines[0][1:])
		lines = lines[1:]
	}
	return Batch{Room: room, Lines: lines}
}

// IsInit reports whether the batch is a full-room snapshot.
func (b Batch) IsInit() bool {
	return len(b.Lines) > 0 && strings.HasPrefix(b.Lines[0], "|init")
}

// IsTournament reports whether the batch carries tournament updates.
func (b Batch) IsTournament() bool {
	return len(b.Lines) > 0 && strings.HasPrefix(b.Lines[0], "|tournament")
}

// Userlist returns the comma-joined user list of an init snapshot.
func (b Batch) Userlist() (string, bool) {
	const prefix = "|users|"
	for _, line := range b.Lines {
		if strings.HasPrefix(line, prefix) {
			return line[len(prefix):], true
		}
	}
	return "", false
}

// Line is one protocol message split on the field delimiter.
type Line struct {
	Raw    string
	Fields []string
}

// ParseLine splits a protocol line into fields.
func ParseLine(raw string) Line {
	return Line{Raw: raw, Fields: strings.Split(raw, "|")}
}

// Command returns the command token (field 1), or "" when absent.
func (l Line) Command() string {
	return l.Field(1)
}

// Field returns field i, or "" when out of range.
func (l Line) Field(i int) string {
	if i < 0 || i >= len(l.Fields) {
		return ""
	}
	return l.Fields[i]
}

// Rest rejoins every field from i onwards. Chat text may itself contain "|".
func (l Line) Rest(i int) string {
	if i >= len(l.Fields) {
		return ""
	}
	return strings.Join(l.Fields[i:], "|")
}
