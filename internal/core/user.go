package core

import "github.com/vovakirdan/wirebot/internal/utils"

// User is a chat participant observed in at least one room.
// Rooms maps room ID to the rank the user holds there.
type User struct {
	ID    string
	Name  string
	Rooms map[string]Rank
}

// NewUser constructs a user from its display name.
func NewUser(name string) *User {
	return &User{
		ID:    utils.ToID(name),
		Name:  name,
		Rooms: make(map[string]Rank),
	}
}

// Rank returns the user's rank in a room.
func (u *User) Rank(roomID string) (Rank, bool) {
	rank, ok := u.Rooms[roomID]
	return rank, ok
}
