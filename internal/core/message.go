package core

import "time"

// Message is a chat line observed in a room.
type Message struct {
	Room   string
	UserID string
	Text   string
	At     time.Time
}
