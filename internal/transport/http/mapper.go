package http

import (
	"context"
	"errors"
	"net/http"
	"sort"
	"time"

	"github.com/dustin/go-humanize"

	"github.com/vovakirdan/wirebot/internal/core"
	"github.com/vovakirdan/wirebot/internal/session"
	"github.com/vovakirdan/wirebot/internal/store"
)

// StatusDTO is the JSON view of session.Status.
type StatusDTO struct {
	Nick      string `json:"nick"`
	State     string `json:"state"`
	Connected bool   `json:"connected"`
	Rooms     int    `json:"rooms"`
	Users     int    `json:"users"`
	Queued    int    `json:"queued"`
	Uptime    string `json:"uptime"`
	UptimeSec int64  `json:"uptime_seconds"`
}

// RoomDTO is the JSON view of a room.
type RoomDTO struct {
	ID      string        `json:"id"`
	Private bool          `json:"private"`
	Count   int           `json:"count"`
	Users   []OccupantDTO `json:"users,omitempty"`
}

// OccupantDTO is a user in a room.
type OccupantDTO struct {
	ID   string `json:"id"`
	Rank string `json:"rank"`
}

// UserDTO is the JSON view of a tracked user.
type UserDTO struct {
	ID       string            `json:"id"`
	Name     string            `json:"name"`
	Excepted bool              `json:"excepted"`
	Rooms    map[string]string `json:"rooms"`
	Seen     *SeenDTO          `json:"seen,omitempty"`
}

// SeenDTO is a last-seen record.
type SeenDTO struct {
	Description string    `json:"description"`
	At          time.Time `json:"at"`
	Ago         string    `json:"ago"`
}

// ActionDTO is a journaled moderation action.
type ActionDTO struct {
	ID        string    `json:"id"`
	UserID    string    `json:"user_id"`
	RoomID    string    `json:"room_id"`
	Command   string    `json:"command"`
	Reason    string    `json:"reason"`
	Points    int       `json:"points"`
	CreatedAt time.Time `json:"created_at"`
}

// BlacklistDTO lists the entries of one room.
type BlacklistDTO struct {
	Room    string   `json:"room"`
	Entries []string `json:"entries"`
}

func toStatusDTO(s session.Status) StatusDTO {
	return StatusDTO{
		Nick:      s.Nick,
		State:     s.State,
		Connected: s.Connected,
		Rooms:     s.Rooms,
		Users:     s.Users,
		Queued:    s.Queued,
		Uptime:    s.Uptime.Truncate(time.Second).String(),
		UptimeSec: int64(s.Uptime.Seconds()),
	}
}

func toRoomDTO(r session.RoomInfo, withUsers bool) RoomDTO {
	dto := RoomDTO{ID: r.ID, Private: r.Private, Count: len(r.Users)}
	if withUsers {
		dto.Users = make([]OccupantDTO, 0, len(r.Users))
		for _, u := range r.Users {
			dto.Users = append(dto.Users, OccupantDTO{ID: u.ID, Rank: u.Rank.String()})
		}
	}
	return dto
}

func toUserDTO(u session.UserInfo, now time.Time) UserDTO {
	dto := UserDTO{
		ID:       u.ID,
		Name:     u.Name,
		Excepted: u.Excepted,
		Rooms:    make(map[string]string, len(u.Rooms)),
	}
	for room, rank := range u.Rooms {
		dto.Rooms[room] = rank.String()
	}
	if u.HasSeen {
		dto.Seen = &SeenDTO{
			Description: u.Seen,
			At:          u.SeenAt,
			Ago:         humanize.RelTime(u.SeenAt, now, "ago", "from now"),
		}
	}
	return dto
}

func toActionDTOs(actions []*store.Action) []ActionDTO {
	out := make([]ActionDTO, 0, len(actions))
	for _, a := range actions {
		out = append(out, ActionDTO{
			ID:        a.ID,
			UserID:    a.UserID,
			RoomID:    a.RoomID,
			Command:   a.Command,
			Reason:    a.Reason,
			Points:    a.Points,
			CreatedAt: a.CreatedAt,
		})
	}
	return out
}

func sortRooms(rooms []RoomDTO) {
	sort.Slice(rooms, func(i, j int) bool { return rooms[i].ID < rooms[j].ID })
}

// errorStatus maps session and domain errors to an HTTP status and body.
func errorStatus(err error) (int, ErrorResponse) {
	var coreErr *core.CoreError
	switch {
	case errors.Is(err, session.ErrStopped):
		return http.StatusServiceUnavailable, ErrorResponse{Error: "session stopped", Code: core.ErrCodeNotConnected}
	case errors.Is(err, context.DeadlineExceeded), errors.Is(err, context.Canceled):
		return http.StatusServiceUnavailable, ErrorResponse{Error: "session busy"}
	case errors.Is(err, core.ErrRoomNotFound):
		return http.StatusNotFound, ErrorResponse{Error: err.Error(), Code: core.ErrCodeRoomNotFound}
	case errors.Is(err, core.ErrUserNotFound):
		return http.StatusNotFound, ErrorResponse{Error: err.Error(), Code: core.ErrCodeUserNotFound}
	case errors.As(err, &coreErr):
		if coreErr.Code == core.ErrCodeNotConnected {
			return http.StatusServiceUnavailable, ErrorResponse{Error: coreErr.Message, Code: coreErr.Code}
		}
		return http.StatusBadRequest, ErrorResponse{Error: coreErr.Message, Code: coreErr.Code}
	default:
		return http.StatusInternalServerError, ErrorResponse{Error: "internal server error"}
	}
}
