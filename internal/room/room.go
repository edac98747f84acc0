// Package room implements the room registry: join codes, player and
// spectator membership, staking metadata and the session to room index.
// It knows nothing about physics or transports.
package room

import (
	"errors"
	"time"
)

// Status is the lifecycle state of a room.
type Status string

const (
	StatusWaiting   Status = "waiting"
	StatusReady     Status = "ready"
	StatusPlaying   Status = "playing"
	StatusFinished  Status = "finished"
	StatusAbandoned Status = "abandoned"
)

// transitions lists every allowed status edge. Destruction is not a status:
// a destroyed room is simply removed from the registry.
var transitions = map[Status][]Status{
	StatusWaiting:  {StatusReady, StatusAbandoned},
	StatusReady:    {StatusPlaying, StatusWaiting},
	StatusPlaying:  {StatusFinished},
	StatusFinished: {StatusPlaying, StatusWaiting},
}

// CanTransition reports whether a room may move from one status to another.
func CanTransition(from, to Status) bool {
	for _, s := range transitions[from] {
		if s == to {
			return true
		}
	}
	return false
}

// Errors returned by the registry.
var (
	ErrRoomNotFound     = errors.New("room not found")
	ErrRoomExists       = errors.New("room code already in use")
	ErrRoomNotAvailable = errors.New("room is not accepting players")
	ErrRoomFull         = errors.New("room is full")
	ErrAlreadyInRoom    = errors.New("session is already in a room")
	ErrInvalidCode      = errors.New("invalid room code")
	ErrNameTaken        = errors.New("player name already taken in this room")
)

// Player is a seat in a room. Session is empty while the player is detached.
type Player struct {
	Name    string `json:"name"`
	Wallet  string `json:"wallet,omitempty"`
	Session string `json:"-"`
	Staked  bool   `json:"staked"`
}

// Spectator watches a room without a seat.
type Spectator struct {
	Name    string `json:"name"`
	Session string `json:"-"`
}

// Stake carries the escrow metadata of a staked room.
type Stake struct {
	Amount      int64  `json:"amount"`
	HostAddress string `json:"hostAddress,omitempty"`
}

// Room is a value snapshot of a registry entry.
type Room struct {
	Code        string      `json:"code"`
	Host        Player      `json:"host"`
	Guest       *Player     `json:"guest,omitempty"`
	Spectators  []Spectator `json:"spectators"`
	Status      Status      `json:"status"`
	IsStaked    bool        `json:"isStaked"`
	HostStaked  bool        `json:"hostStaked"`
	GuestStaked bool        `json:"guestStaked"`
	Stake       Stake       `json:"stake"`
	CreatedAt   time.Time   `json:"createdAt"`
	FinishedAt  time.Time   `json:"finishedAt,omitzero"`
}

// IsHost reports whether the session holds the host seat.
func (r Room) IsHost(session string) bool {
	return session != "" && r.Host.Session == session
}

// IsGuest reports whether the session holds the guest seat.
func (r Room) IsGuest(session string) bool {
	return session != "" && r.Guest != nil && r.Guest.Session == session
}

// IsSpectator reports whether the session is watching the room.
func (r Room) IsSpectator(session string) bool {
	for _, s := range r.Spectators {
		if s.Session == session {
			return true
		}
	}
	return false
}

// PlayerByName returns the seat held by the named player.
func (r Room) PlayerByName(name string) (Player, bool) {
	if r.Host.Name == name {
		return r.Host, true
	}
	if r.Guest != nil && r.Guest.Name == name {
		return *r.Guest, true
	}
	return Player{}, false
}

// Opponent returns the other seat of the named player, if any.
func (r Room) Opponent(name string) (Player, bool) {
	if r.Guest == nil {
		return Player{}, false
	}
	switch name {
	case r.Host.Name:
		return *r.Guest, true
	case r.Guest.Name:
		return r.Host, true
	}
	return Player{}, false
}

// Sessions returns every bound session in the room: players first, then spectators.
func (r Room) Sessions() []string {
	out := make([]string, 0, 2+len(r.Spectators))
	if r.Host.Session != "" {
		out = append(out, r.Host.Session)
	}
	if r.Guest != nil && r.Guest.Session != "" {
		out = append(out, r.Guest.Session)
	}
	for _, s := range r.Spectators {
		out = append(out, s.Session)
	}
	return out
}

// ActiveGame summarizes a room for lobby listings.
type ActiveGame struct {
	RoomCode   string `json:"roomCode"`
	Host       string `json:"host"`
	Guest      string `json:"guest,omitempty"`
	Status     Status `json:"status"`
	Spectators int    `json:"spectators"`
	IsStaked   bool   `json:"isStaked"`
}

func (r *Room) clone() Room {
	c := *r
	if r.Guest != nil {
		g := *r.Guest
		c.Guest = &g
	}
	c.Spectators = append([]Spectator(nil), r.Spectators...)
	return c
}

func (r *Room) setStatus(to Status) bool {
	if !CanTransition(r.Status, to) {
		return false
	}
	r.Status = to
	return true
}
