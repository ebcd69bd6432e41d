package core

import (
	"sort"

	"github.com/vovakirdan/wirebot/internal/utils"
)

// Member is one entry of a room user list.
type Member struct {
	Name string
	Rank Rank
}

// Options configures a Registry.
type Options struct {
	// Self is the client's own display name. The self user is never destroyed.
	Self    string
	Ranks   Ranks
	Excepts []string
}

// Registry owns every known User and Room. Both maps are keyed by ID and
// cross-reference each other only by ID, so destruction order never matters.
// It is not safe for concurrent use; the session loop owns it.
type Registry struct {
	selfName string
	selfID   string
	ranks    Ranks
	excepts  map[string]struct{}
	users    map[string]*User
	rooms    map[string]*Room
}

// NewRegistry creates a registry containing only the self user.
func NewRegistry(opts Options) *Registry {
	excepts := make(map[string]struct{}, len(opts.Excepts))
	for _, id := range opts.Excepts {
		excepts[utils.ToID(id)] = struct{}{}
	}
	r := &Registry{
		selfName: opts.Self,
		ranks:    opts.Ranks,
		excepts:  excepts,
	}
	r.Reset()
	return r
}

// Reset discards every room and user except a fresh self user.
func (r *Registry) Reset() {
	self := NewUser(r.selfName)
	r.selfID = self.ID
	r.users = map[string]*User{self.ID: self}
	r.rooms = make(map[string]*Room)
}

// Ranks returns the rank table used for comparisons.
func (r *Registry) Ranks() Ranks {
	return r.ranks
}

// Self returns the client's own user.
func (r *Registry) Self() *User {
	return r.users[r.selfID]
}

// IsSelf reports whether u is the client's own user.
func (r *Registry) IsSelf(u *User) bool {
	return u != nil && u.ID == r.selfID
}

// User resolves a name or ID to a known user.
func (r *Registry) User(name string) *User {
	return r.users[utils.ToID(name)]
}

// AddOrGetUser returns the user for name, creating it if needed.
func (r *Registry) AddOrGetUser(name string) *User {
	if u := r.User(name); u != nil {
		return u
	}
	u := NewUser(name)
	r.users[u.ID] = u
	return u
}

// UserCount returns the number of tracked users, self included.
func (r *Registry) UserCount() int {
	return len(r.users)
}

// Room returns a joined room by ID.
func (r *Registry) Room(id string) *Room {
	return r.rooms[id]
}

// Rooms returns every joined room ordered by ID.
func (r *Registry) Rooms() []*Room {
	rooms := make([]*Room, 0, len(r.rooms))
	for _, room := range r.rooms {
		rooms = append(rooms, room)
	}
	sort.Slice(rooms, func(i, j int) bool { return rooms[i].ID < rooms[j].ID })
	return rooms
}

// AddOrGetRoom returns the room for id, creating it with the given privacy if needed.
func (r *Registry) AddOrGetRoom(id string, private bool) *Room {
	if room, ok := r.rooms[id]; ok {
		return room
	}
	room := NewRoom(id, private)
	r.rooms[id] = room
	return room
}

// OnUserlist loads a room's initial occupants.
func (r *Registry) OnUserlist(roomID string, members []Member) {
	room := r.rooms[roomID]
	if room == nil {
		return
	}
	for _, m := range members {
		u := r.AddOrGetUser(m.Name)
		u.Rooms[roomID] = m.Rank
		room.Users[u.ID] = m.Rank
	}
}

// OnJoin records name joining a room with rank. Duplicate joins are harmless.
// Returns nil if the room is not registered.
func (r *Registry) OnJoin(roomID, name string, rank Rank) *User {
	room := r.rooms[roomID]
	if room == nil {
		return nil
	}
	u := r.AddOrGetUser(name)
	u.Rooms[roomID] = rank
	room.Users[u.ID] = rank
	return u
}

// OnRename applies a rename observed in roomID. The user keeps its rank in
// every room it occupies; the current room's rank changes only when the frame
// carries a different marker. The old ID is unresolvable afterwards.
// Returns nil if the room is not registered.
func (r *Registry) OnRename(roomID, name string, rank Rank, oldID string) *User {
	room := r.rooms[roomID]
	if room == nil {
		return nil
	}

	u := r.users[oldID]
	switch {
	case u == nil:
		// Another room's rename frame already moved the identity.
		u = r.AddOrGetUser(name)
	case u.Name != name:
		r.rename(u, name)
	}

	if oldID != u.ID {
		delete(room.Users, oldID)
	}
	if current, ok := u.Rooms[roomID]; !ok || current != rank {
		u.Rooms[roomID] = rank
	}
	room.Users[u.ID] = u.Rooms[roomID]
	return u
}

func (r *Registry) rename(u *User, name string) {
	newID := utils.ToID(name)
	u.Name = name
	if newID == u.ID {
		return
	}
	if stale := r.users[newID]; stale != nil && stale.ID != r.selfID {
		r.DestroyUser(newID)
	}

	oldID := u.ID
	delete(r.users, oldID)
	for roomID, rank := range u.Rooms {
		if room := r.rooms[roomID]; room != nil {
			delete(room.Users, oldID)
			room.Users[newID] = rank
		}
	}
	u.ID = newID
	r.users[newID] = u
	if oldID == r.selfID {
		r.selfID = newID
	}
}

// OnLeave records name leaving a room. A user left with no rooms is destroyed
// unless it is self. The resolved user is returned even when destroyed so the
// caller can still record the departure; nil means the user was unknown.
func (r *Registry) OnLeave(roomID, name string) *User {
	u := r.User(name)
	if u == nil {
		return nil
	}
	if room := r.rooms[roomID]; room != nil {
		delete(room.Users, u.ID)
	}
	delete(u.Rooms, roomID)
	if len(u.Rooms) == 0 && u.ID != r.selfID {
		delete(r.users, u.ID)
	}
	return u
}

// DestroyRoom removes a room and prunes it from every occupant, destroying
// occupants that are left with no rooms.
func (r *Registry) DestroyRoom(id string) bool {
	room := r.rooms[id]
	if room == nil {
		return false
	}
	for userID := range room.Users {
		u := r.users[userID]
		if u == nil {
			continue
		}
		delete(u.Rooms, id)
		if len(u.Rooms) == 0 && u.ID != r.selfID {
			delete(r.users, u.ID)
		}
	}
	if self := r.Self(); self != nil {
		delete(self.Rooms, id)
	}
	delete(r.rooms, id)
	return true
}

// DestroyUser removes a user from the registry and from every room.
// The self user cannot be destroyed.
func (r *Registry) DestroyUser(id string) bool {
	u := r.users[id]
	if u == nil || id == r.selfID {
		return false
	}
	for roomID := range u.Rooms {
		if room := r.rooms[roomID]; room != nil {
			delete(room.Users, id)
		}
	}
	clear(u.Rooms)
	delete(r.users, id)
	return true
}

// IsExcepted reports whether u bypasses every rank check.
func (r *Registry) IsExcepted(u *User) bool {
	if u == nil {
		return false
	}
	_, ok := r.excepts[u.ID]
	return ok
}

// HasRank reports whether u holds at least target in roomID.
func (r *Registry) HasRank(u *User, roomID string, target Rank) bool {
	if u == nil {
		return false
	}
	if r.IsExcepted(u) {
		return true
	}
	rank, ok := u.Rooms[roomID]
	if !ok {
		return false
	}
	return r.ranks.AtLeast(rank, target)
}
