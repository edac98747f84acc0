package multiplayer

import "sync"

// SessionHandle is the transport-neutral interface for talking to a session.
// It lets the coordinator and room loops send events without depending on
// WebSocket or SSH.
type SessionHandle interface {
	// ID returns the unique session identifier.
	ID() SessionID

	// Send queues an event for the session. Must be non-blocking.
	Send(evt Event)

	// Done returns a channel that closes when the session ends.
	Done() <-chan struct{}
}

// ChannelSession is a SessionHandle backed by a buffered channel. Transports
// drain Events() into their connection.
type ChannelSession struct {
	id       SessionID
	events   chan Event
	done     chan struct{}
	doneOnce sync.Once
}

// NewChannelSession creates a new channel-based session handle.
// eventBufferSize controls how many events can be buffered before dropping.
func NewChannelSession(id SessionID, eventBufferSize int) *ChannelSession {
	if eventBufferSize < 1 {
		eventBufferSize = 64
	}
	return &ChannelSession{
		id:     id,
		events: make(chan Event, eventBufferSize),
		done:   make(chan struct{}),
	}
}

// ID returns the session identifier.
func (s *ChannelSession) ID() SessionID {
	return s.id
}

// Send queues an event. When the buffer is full the oldest event is dropped
// so a slow client always sees the newest state.
func (s *ChannelSession) Send(evt Event) {
	select {
	case <-s.done:
		return
	default:
	}

	select {
	case s.events <- evt:
	default:
		select {
		case <-s.events:
		default:
		}
		select {
		case s.events <- evt:
		default:
		}
	}
}

// Events returns the channel to receive events from.
func (s *ChannelSession) Events() <-chan Event {
	return s.events
}

// Done returns the done channel.
func (s *ChannelSession) Done() <-chan struct{} {
	return s.done
}

// Close marks the session as done. Safe to call multiple times.
func (s *ChannelSession) Close() {
	s.doneOnce.Do(func() {
		close(s.done)
	})
}

type sessionEntry struct {
	handle   SessionHandle
	identity Identity
}

// SessionRegistry maps session handles to player identities and back.
// Safe for concurrent access.
type SessionRegistry struct {
	mu       sync.RWMutex
	sessions map[SessionID]*sessionEntry
}

// NewSessionRegistry creates a new session registry.
func NewSessionRegistry() *SessionRegistry {
	return &SessionRegistry{
		sessions: make(map[SessionID]*sessionEntry),
	}
}

// Register adds a session with the identity it presented.
func (r *SessionRegistry) Register(session SessionHandle, id Identity) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.sessions[session.ID()] = &sessionEntry{handle: session, identity: id}
}

// Unregister removes a session.
func (r *SessionRegistry) Unregister(id SessionID) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.sessions, id)
}

// Get retrieves a session by ID.
func (r *SessionRegistry) Get(id SessionID) (SessionHandle, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	e, ok := r.sessions[id]
	if !ok {
		return nil, false
	}
	return e.handle, true
}

// Identity returns the identity bound to a session.
func (r *SessionRegistry) Identity(id SessionID) (Identity, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	e, ok := r.sessions[id]
	if !ok {
		return Identity{}, false
	}
	return e.identity, true
}

// UpdateIdentity merges update into the session's identity and returns the result.
func (r *SessionRegistry) UpdateIdentity(id SessionID, update Identity) (Identity, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	e, ok := r.sessions[id]
	if !ok {
		return Identity{}, false
	}
	e.identity = e.identity.Merge(update)
	return e.identity, true
}

// Send delivers evt to the session if it is still registered.
func (r *SessionRegistry) Send(id SessionID, evt Event) bool {
	h, ok := r.Get(id)
	if !ok {
		return false
	}
	h.Send(evt)
	return true
}

// Broadcast delivers evt to every listed session that is still registered.
func (r *SessionRegistry) Broadcast(ids []string, evt Event) {
	for _, id := range ids {
		r.Send(SessionID(id), evt)
	}
}

// Count returns the number of registered sessions.
func (r *SessionRegistry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.sessions)
}

// PresenceRegistry is the game-over presence index: player name to the
// session currently showing that player's game-over screen. It is separate
// from room seats because players reach that screen on a new connection.
type PresenceRegistry struct {
	mu     sync.RWMutex
	byName map[string]SessionID
}

// NewPresenceRegistry creates an empty presence index.
func NewPresenceRegistry() *PresenceRegistry {
	return &PresenceRegistry{byName: make(map[string]SessionID)}
}

// Set records that name is present on session id, replacing any older session.
func (p *PresenceRegistry) Set(name string, id SessionID) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.byName[name] = id
}

// Get returns the session a player is present on.
func (p *PresenceRegistry) Get(name string) (SessionID, bool) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	id, ok := p.byName[name]
	return id, ok
}

// Has reports whether the player is present.
func (p *PresenceRegistry) Has(name string) bool {
	_, ok := p.Get(name)
	return ok
}

// RemoveSession drops every name bound to the session and returns them.
func (p *PresenceRegistry) RemoveSession(id SessionID) []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	var names []string
	for name, sid := range p.byName {
		if sid == id {
			names = append(names, name)
			delete(p.byName, name)
		}
	}
	return names
}

// Count returns the number of present players.
func (p *PresenceRegistry) Count() int {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return len(p.byName)
}
