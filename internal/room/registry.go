package room

import (
	"sort"
	"sync"
	"time"
)

// Registry tracks rooms and which session sits in which room.
// All methods are safe for concurrent use; returned rooms are copies.
type Registry struct {
	mu        sync.RWMutex
	rooms     map[string]*Room
	bySession map[string]string // session -> room code
	now       func() time.Time
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{
		rooms:     make(map[string]*Room),
		bySession: make(map[string]string),
		now:       time.Now,
	}
}

// SetClock replaces the time source (used by tests).
func (r *Registry) SetClock(now func() time.Time) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.now = now
}

// CreateRoom registers a new waiting room under a freshly generated code.
func (r *Registry) CreateRoom(host Player, staked bool) (Room, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, bound := r.bySession[host.Session]; bound {
		return Room{}, ErrAlreadyInRoom
	}
	code := generateCode(CodeLength)
	for r.rooms[code] != nil {
		code = generateCode(CodeLength)
	}
	return r.insertLocked(code, host, staked), nil
}

// CreateRoomWithCode registers a waiting room under a caller supplied code,
// typically one that must match an escrow record.
func (r *Registry) CreateRoomWithCode(code string, host Player, staked bool) (Room, error) {
	code = NormalizeCode(code)
	if !IsValidCode(code) {
		return Room{}, ErrInvalidCode
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, bound := r.bySession[host.Session]; bound {
		return Room{}, ErrAlreadyInRoom
	}
	if r.rooms[code] != nil {
		return Room{}, ErrRoomExists
	}
	return r.insertLocked(code, host, staked), nil
}

func (r *Registry) insertLocked(code string, host Player, staked bool) Room {
	host.Staked = staked
	rm := &Room{
		Code:       code,
		Host:       host,
		Status:     StatusWaiting,
		IsStaked:   staked,
		HostStaked: staked,
		CreatedAt:  r.now(),
	}
	r.rooms[code] = rm
	if host.Session != "" {
		r.bySession[host.Session] = code
	}
	return rm.clone()
}

// SetStake records escrow metadata on a staked room.
func (r *Registry) SetStake(code string, stake Stake) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	rm := r.rooms[NormalizeCode(code)]
	if rm == nil || !rm.IsStaked {
		return false
	}
	rm.Stake = stake
	return true
}

// JoinRoom seats a guest in a waiting room and marks it ready. The guest
// must not share the host's name.
func (r *Registry) JoinRoom(code string, guest Player) (Room, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	rm := r.rooms[NormalizeCode(code)]
	if rm == nil {
		return Room{}, ErrRoomNotFound
	}
	if _, bound := r.bySession[guest.Session]; bound {
		return Room{}, ErrAlreadyInRoom
	}
	if rm.Guest != nil {
		return Room{}, ErrRoomFull
	}
	if rm.Status != StatusWaiting {
		return Room{}, ErrRoomNotAvailable
	}
	// Seats are looked up by name for reattach and rematch.
	if guest.Name == rm.Host.Name {
		return Room{}, ErrNameTaken
	}

	guest.Staked = false
	rm.Guest = &guest
	rm.GuestStaked = false
	rm.setStatus(StatusReady)
	if guest.Session != "" {
		r.bySession[guest.Session] = rm.Code
	}
	return rm.clone(), nil
}

// StartGame moves a ready room, or a finished room being rematched, to playing.
func (r *Registry) StartGame(code string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	rm := r.rooms[NormalizeCode(code)]
	if rm == nil || rm.Guest == nil {
		return false
	}
	if rm.Status != StatusReady && rm.Status != StatusFinished {
		return false
	}
	rm.FinishedAt = time.Time{}
	return rm.setStatus(StatusPlaying)
}

// FinishGame marks a playing room finished, opening the rematch window.
func (r *Registry) FinishGame(code string) (Room, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	rm := r.rooms[NormalizeCode(code)]
	if rm == nil || !rm.setStatus(StatusFinished) {
		return Room{}, false
	}
	rm.FinishedAt = r.now()
	return rm.clone(), true
}

// MarkAbandoned moves a staked waiting room with no guest to abandoned and
// releases the host binding. It returns false if the room does not qualify,
// which also makes repeated calls harmless.
func (r *Registry) MarkAbandoned(code string) (Room, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	rm := r.rooms[NormalizeCode(code)]
	if rm == nil || !rm.IsStaked || rm.Guest != nil {
		return Room{}, false
	}
	if !rm.setStatus(StatusAbandoned) {
		return Room{}, false
	}
	r.unbindLocked(rm.Host.Session)
	rm.Host.Session = ""
	return rm.clone(), true
}

// RemovePlayerFromRoom removes the session's seat. A host leaving destroys
// the room and releases every binding; a guest leaving frees the guest seat
// and reopens the room unless it is in its rematch window.
func (r *Registry) RemovePlayerFromRoom(session string) (Room, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	rm := r.roomOfLocked(session)
	if rm == nil {
		return Room{}, false
	}

	switch {
	case rm.IsHost(session):
		snapshot := rm.clone()
		r.destroyLocked(rm)
		return snapshot, true
	case rm.IsGuest(session):
		r.unbindLocked(session)
		rm.Guest = nil
		rm.GuestStaked = false
		if rm.Status != StatusFinished {
			rm.setStatus(StatusWaiting)
		}
		return rm.clone(), true
	}
	return Room{}, false
}

// DetachPlayerFromRoom drops only the session binding and keeps the seat, so
// the player can reattach later by name.
func (r *Registry) DetachPlayerFromRoom(session string) (Room, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	rm := r.roomOfLocked(session)
	if rm == nil {
		return Room{}, false
	}
	switch {
	case rm.IsHost(session):
		rm.Host.Session = ""
	case rm.IsGuest(session):
		rm.Guest.Session = ""
	default:
		return Room{}, false
	}
	r.unbindLocked(session)
	return rm.clone(), true
}

// AttachPlayerSocket binds a new session to the seat whose player name
// matches. It returns false when no seat matches.
func (r *Registry) AttachPlayerSocket(code, playerName, session string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	rm := r.rooms[NormalizeCode(code)]
	if rm == nil || session == "" {
		return false
	}
	if bound, ok := r.bySession[session]; ok && bound != rm.Code {
		return false
	}

	var seat *Player
	switch {
	case rm.Host.Name == playerName:
		seat = &rm.Host
	case rm.Guest != nil && rm.Guest.Name == playerName:
		seat = rm.Guest
	default:
		return false
	}
	if seat.Session != "" && seat.Session != session {
		r.unbindLocked(seat.Session)
	}
	seat.Session = session
	r.bySession[session] = rm.Code
	return true
}

// MarkGuestStaked records that the guest completed their stake.
func (r *Registry) MarkGuestStaked(code string) (Room, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	rm := r.rooms[NormalizeCode(code)]
	if rm == nil || !rm.IsStaked || rm.Guest == nil {
		return Room{}, false
	}
	rm.GuestStaked = true
	rm.Guest.Staked = true
	return rm.clone(), true
}

// AddSpectator lets a session watch a room.
func (r *Registry) AddSpectator(code string, spectator Spectator) (Room, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	rm := r.rooms[NormalizeCode(code)]
	if rm == nil {
		return Room{}, ErrRoomNotFound
	}
	if _, bound := r.bySession[spectator.Session]; bound {
		return Room{}, ErrAlreadyInRoom
	}
	rm.Spectators = append(rm.Spectators, spectator)
	r.bySession[spectator.Session] = rm.Code
	return rm.clone(), nil
}

// RemoveSpectator stops a session from watching its room.
func (r *Registry) RemoveSpectator(session string) (Room, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	rm := r.roomOfLocked(session)
	if rm == nil {
		return Room{}, false
	}
	for i, s := range rm.Spectators {
		if s.Session == session {
			rm.Spectators = append(rm.Spectators[:i], rm.Spectators[i+1:]...)
			r.unbindLocked(session)
			return rm.clone(), true
		}
	}
	return Room{}, false
}

// DestroyRoom removes a room and every binding that points at it.
func (r *Registry) DestroyRoom(code string) (Room, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	rm := r.rooms[NormalizeCode(code)]
	if rm == nil {
		return Room{}, false
	}
	snapshot := rm.clone()
	r.destroyLocked(rm)
	return snapshot, true
}

// Get returns a room by code.
func (r *Registry) Get(code string) (Room, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	rm := r.rooms[NormalizeCode(code)]
	if rm == nil {
		return Room{}, false
	}
	return rm.clone(), true
}

// RoomOf returns the room the session is bound to.
func (r *Registry) RoomOf(session string) (Room, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	rm := r.roomOfLocked(session)
	if rm == nil {
		return Room{}, false
	}
	return rm.clone(), true
}

// FindByPlayerName returns a room seating the named player. Rooms in their
// rematch window win over any other match.
func (r *Registry) FindByPlayerName(name string) (Room, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var found *Room
	for _, rm := range r.rooms {
		if _, ok := rm.PlayerByName(name); !ok {
			continue
		}
		if rm.Status == StatusFinished {
			return rm.clone(), true
		}
		if found == nil || rm.CreatedAt.After(found.CreatedAt) {
			found = rm
		}
	}
	if found == nil {
		return Room{}, false
	}
	return found.clone(), true
}

// FindOpenRoom returns the oldest unstaked waiting room with an attached host.
func (r *Registry) FindOpenRoom() (Room, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var oldest *Room
	for _, rm := range r.rooms {
		if rm.Status != StatusWaiting || rm.IsStaked || rm.Guest != nil || rm.Host.Session == "" {
			continue
		}
		if oldest == nil || rm.CreatedAt.Before(oldest.CreatedAt) {
			oldest = rm
		}
	}
	if oldest == nil {
		return Room{}, false
	}
	return oldest.clone(), true
}

// GetActiveGames lists rooms that are ready or playing.
func (r *Registry) GetActiveGames() []ActiveGame {
	r.mu.RLock()
	defer r.mu.RUnlock()

	games := make([]ActiveGame, 0, len(r.rooms))
	for _, rm := range r.rooms {
		if rm.Status != StatusPlaying && rm.Status != StatusReady {
			continue
		}
		g := ActiveGame{
			RoomCode:   rm.Code,
			Host:       rm.Host.Name,
			Status:     rm.Status,
			Spectators: len(rm.Spectators),
			IsStaked:   rm.IsStaked,
		}
		if rm.Guest != nil {
			g.Guest = rm.Guest.Name
		}
		games = append(games, g)
	}
	sort.Slice(games, func(i, j int) bool { return games[i].RoomCode < games[j].RoomCode })
	return games
}

// CleanupStaleRooms removes waiting and abandoned rooms older than maxAge and
// returns what was removed.
func (r *Registry) CleanupStaleRooms(maxAge time.Duration) []Room {
	r.mu.Lock()
	defer r.mu.Unlock()

	now := r.now()
	var removed []Room
	for _, rm := range r.rooms {
		if rm.Status != StatusWaiting && rm.Status != StatusAbandoned {
			continue
		}
		if now.Sub(rm.CreatedAt) > maxAge {
			removed = append(removed, rm.clone())
			r.destroyLocked(rm)
		}
	}
	return removed
}

// ExpireFinishedRooms removes rooms whose rematch window has been open
// longer than ttl.
func (r *Registry) ExpireFinishedRooms(ttl time.Duration) []Room {
	r.mu.Lock()
	defer r.mu.Unlock()

	now := r.now()
	var removed []Room
	for _, rm := range r.rooms {
		if rm.Status == StatusFinished && now.Sub(rm.FinishedAt) > ttl {
			removed = append(removed, rm.clone())
			r.destroyLocked(rm)
		}
	}
	return removed
}

// Count returns the number of rooms.
func (r *Registry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.rooms)
}

func (r *Registry) roomOfLocked(session string) *Room {
	if session == "" {
		return nil
	}
	code, ok := r.bySession[session]
	if !ok {
		return nil
	}
	return r.rooms[code]
}

func (r *Registry) unbindLocked(session string) {
	if session != "" {
		delete(r.bySession, session)
	}
}

func (r *Registry) destroyLocked(rm *Room) {
	r.unbindLocked(rm.Host.Session)
	if rm.Guest != nil {
		r.unbindLocked(rm.Guest.Session)
	}
	for _, s := range rm.Spectators {
		r.unbindLocked(s.Session)
	}
	delete(r.rooms, rm.Code)
}
