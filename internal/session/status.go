package session

import (
	"sort"
	"time"

	"github.com/vovakirdan/wirebot/internal/core"
	"github.com/vovakirdan/wirebot/internal/utils"
)

// Status is a point-in-time summary of the session.
type Status struct {
	Nick      string
	State     string
	Connected bool
	Rooms     int
	Users     int
	Queued    int
	Uptime    time.Duration
}

// RoomInfo describes one joined room.
type RoomInfo struct {
	ID      string
	Private bool
	Users   []Occupant
}

// Occupant is a user in a room with its rank there.
type Occupant struct {
	ID   string
	Rank core.Rank
}

// UserInfo describes a known user.
type UserInfo struct {
	ID       string
	Name     string
	Rooms    map[string]core.Rank
	Seen     string
	SeenAt   time.Time
	HasSeen  bool
	Excepted bool
}

// Status must be called on the loop.
func (s *Session) Status() Status {
	return Status{
		Nick:      s.cfg.Account.Nick,
		State:     s.state.String(),
		Connected: s.connected,
		Rooms:     len(s.registry.Rooms()),
		Users:     s.registry.UserCount(),
		Queued:    s.queue.Len(),
		Uptime:    s.Uptime(),
	}
}

// RoomInfos lists joined rooms. It must be called on the loop.
func (s *Session) RoomInfos() []RoomInfo {
	rooms := s.registry.Rooms()
	out := make([]RoomInfo, 0, len(rooms))
	for _, room := range rooms {
		out = append(out, roomInfo(room))
	}
	return out
}

// RoomInfo describes one room. It must be called on the loop.
func (s *Session) RoomInfo(id string) (RoomInfo, error) {
	room := s.registry.Room(utils.ToID(id))
	if room == nil {
		return RoomInfo{}, core.ErrRoomNotFound
	}
	return roomInfo(room), nil
}

// UserInfo describes a tracked user. Users without a room but with seen
// data are reported too. It must be called on the loop.
func (s *Session) UserInfo(name string) (UserInfo, error) {
	id := utils.ToID(name)
	desc, at, seen := s.moderation.Seen(id)
	u := s.registry.User(id)
	if u == nil && !seen {
		return UserInfo{}, core.ErrUserNotFound
	}

	info := UserInfo{ID: id, Name: id, Rooms: map[string]core.Rank{}, Seen: desc, SeenAt: at, HasSeen: seen}
	if u != nil {
		info.Name = u.Name
		info.Excepted = s.registry.IsExcepted(u)
		for room, rank := range u.Rooms {
			info.Rooms[room] = rank
		}
	}
	return info, nil
}

func roomInfo(room *core.Room) RoomInfo {
	users := make([]Occupant, 0, len(room.Users))
	for id, rank := range room.Users {
		users = append(users, Occupant{ID: id, Rank: rank})
	}
	sort.Slice(users, func(i, j int) bool { return users[i].ID < users[j].ID })
	return RoomInfo{ID: room.ID, Private: room.Private, Users: users}
}
