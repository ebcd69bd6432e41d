package core

// Room tracks the occupants of a joined room by user ID.
// It never holds User values; resolve them through the Registry.
type Room struct {
	ID      string
	Private bool
	Users   map[string]Rank
}

// NewRoom constructs a room with no occupants.
func NewRoom(id string, private bool) *Room {
	return &Room{
		ID:      id,
		Private: private,
		Users:   make(map[string]Rank),
	}
}

// Has reports whether the user ID occupies the room.
func (r *Room) Has(userID string) bool {
	_, ok := r.Users[userID]
	return ok
}

// Empty returns true if no users are in the room.
func (r *Room) Empty() bool {
	return len(r.Users) == 0
}
