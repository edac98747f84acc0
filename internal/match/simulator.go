package match

import (
	"hash/fnv"
	"sync"
	"time"
)

// Simulator owns every live Game, keyed by room code. Lookups share one
// RWMutex; each game has its own lock so rooms never contend with each other.
type Simulator struct {
	mu    sync.RWMutex
	games map[string]*Game
	cfg   Config
	now   func() time.Time
}

// NewSimulator creates a simulator using cfg for every new game.
func NewSimulator(cfg Config) *Simulator {
	def := DefaultConfig()
	if cfg.WinScore <= 0 {
		cfg.WinScore = def.WinScore
	}
	if cfg.Step <= 0 {
		cfg.Step = def.Step
	}
	if cfg.InitialSpeed <= 0 {
		cfg.InitialSpeed = def.InitialSpeed
	}
	if cfg.MaxSpeed <= 0 {
		cfg.MaxSpeed = def.MaxSpeed
	}
	return &Simulator{
		games: make(map[string]*Game),
		cfg:   cfg,
		now:   time.Now,
	}
}

// SetClock replaces the time source used for effect expiry (tests).
func (s *Simulator) SetClock(now func() time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.now = now
}

// Config returns the simulator tunables.
func (s *Simulator) Config() Config {
	return s.cfg
}

// seedFor derives a per-room seed so a fixed configured seed still gives
// every room its own sequence.
func (s *Simulator) seedFor(code string) int64 {
	h := fnv.New64a()
	h.Write([]byte(code))
	base := s.cfg.Seed
	if base == 0 {
		base = time.Now().UnixNano()
	}
	return base ^ int64(h.Sum64())
}

// CreateGame starts a fresh match for the room, replacing any previous one.
func (s *Simulator) CreateGame(code string, p1, p2 Player) State {
	s.mu.Lock()
	defer s.mu.Unlock()

	g := newGame(code, p1, p2, s.cfg, s.seedFor(code), s.now)
	s.games[code] = g
	return g.snapshot()
}

func (s *Simulator) game(code string) *Game {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.games[code]
}

// with runs fn under the game's lock.
func (s *Simulator) with(code string, fn func(g *Game)) bool {
	g := s.game(code)
	if g == nil {
		return false
	}
	g.mu.Lock()
	defer g.mu.Unlock()
	fn(g)
	return true
}

// Update advances the room's match by one tick. It reports false when the
// match is missing, paused or finished.
func (s *Simulator) Update(code string) (Result, bool) {
	var (
		res Result
		ok  bool
	)
	s.with(code, func(g *Game) {
		if g.status != StatusActive {
			return
		}
		ok = true
		if scorer := g.step(); scorer >= 0 {
			res = g.processScore(scorer)
			return
		}
		g.expireMultiball()
		res = Result{State: g.snapshot(), Winner: -1, Scorer: -1}
	})
	return res, ok
}

// ProcessScore credits a point to scorer outside the physics step.
func (s *Simulator) ProcessScore(code string, scorer int) (Result, bool) {
	if !validIndex(scorer) {
		return Result{}, false
	}
	var (
		res Result
		ok  bool
	)
	s.with(code, func(g *Game) {
		if g.status == StatusFinished {
			return
		}
		ok = true
		res = g.processScore(scorer)
	})
	return res, ok
}

// UpdatePaddle eases the session's paddle towards target.
func (s *Simulator) UpdatePaddle(code, session string, target float64) (State, bool) {
	var (
		st State
		ok bool
	)
	s.with(code, func(g *Game) {
		p, found := g.playerBySession(session)
		if !found || g.status == StatusFinished {
			return
		}
		g.movePaddle(p.index, target)
		st, ok = g.snapshot(), true
	})
	return st, ok
}

// PauseGame spends the session's single pause and returns how many remain.
func (s *Simulator) PauseGame(code, session string) (int, error) {
	var (
		remaining int
		err       error
	)
	found := s.with(code, func(g *Game) {
		switch {
		case g.status == StatusPaused:
			err = ErrAlreadyPaused
			return
		case g.status != StatusActive:
			err = ErrGameNotActive
			return
		}
		p, ok := g.playerBySession(session)
		if !ok {
			err = ErrUnknownPlayer
			return
		}
		if p.pausesRemaining <= 0 {
			err = ErrNoPausesRemaining
			return
		}
		if g.pauseLedger[p.index] {
			err = ErrPauseAlreadyUsed
			return
		}
		p.pausesRemaining--
		g.pauseLedger[p.index] = true
		g.status = StatusPaused
		g.pausedBy = p.index
		remaining = p.pausesRemaining
	})
	if !found {
		return 0, ErrGameNotFound
	}
	return remaining, err
}

// ResumeGame clears a pause. It reports false when nothing was paused.
func (s *Simulator) ResumeGame(code string) bool {
	var resumed bool
	s.with(code, func(g *Game) {
		if g.status != StatusPaused {
			return
		}
		g.status = StatusActive
		g.pausedBy = -1
		resumed = true
	})
	return resumed
}

// ActivateSpeedBoost multiplies a player's paddle bounce and tracking speed
// for d.
func (s *Simulator) ActivateSpeedBoost(code string, idx int, multiplier float64, d time.Duration) error {
	if !validIndex(idx) {
		return ErrInvalidPlayerIndex
	}
	var err error
	found := s.with(code, func(g *Game) {
		if g.status == StatusFinished {
			err = ErrGameNotActive
			return
		}
		g.activateSpeedBoost(idx, multiplier, d)
	})
	if !found {
		return ErrGameNotFound
	}
	return err
}

// ActivateShield gives a player a one-shot goal shield.
func (s *Simulator) ActivateShield(code string, idx int) error {
	if !validIndex(idx) {
		return ErrInvalidPlayerIndex
	}
	var err error
	found := s.with(code, func(g *Game) {
		if g.status == StatusFinished {
			err = ErrGameNotActive
			return
		}
		err = g.activateShield(idx)
	})
	if !found {
		return ErrGameNotFound
	}
	return err
}

// ActivateMultiball spawns an auxiliary ball for d. Only one multiball may
// run per match at a time.
func (s *Simulator) ActivateMultiball(code string, idx int, d time.Duration) error {
	if !validIndex(idx) {
		return ErrInvalidPlayerIndex
	}
	var err error
	found := s.with(code, func(g *Game) {
		if g.status == StatusFinished {
			err = ErrGameNotActive
			return
		}
		err = g.activateMultiball(idx, d)
	})
	if !found {
		return ErrGameNotFound
	}
	return err
}

// EndGame finishes the match and drops it together with its event queue.
func (s *Simulator) EndGame(code string) (State, bool) {
	s.mu.Lock()
	g := s.games[code]
	delete(s.games, code)
	s.mu.Unlock()

	if g == nil {
		return State{}, false
	}
	g.mu.Lock()
	defer g.mu.Unlock()
	g.status = StatusFinished
	g.pausedBy = -1
	g.events = nil
	return g.snapshot(), true
}

// QueueEvent appends an event to the room's outbound queue.
func (s *Simulator) QueueEvent(code string, evt Event) {
	s.with(code, func(g *Game) { g.queue(evt) })
}

// ConsumeEvents drains the room's outbound queue.
func (s *Simulator) ConsumeEvents(code string) []Event {
	var out []Event
	s.with(code, func(g *Game) { out = g.drain() })
	return out
}

// Get returns a snapshot of the room's match.
func (s *Simulator) Get(code string) (State, bool) {
	var st State
	ok := s.with(code, func(g *Game) { st = g.snapshot() })
	return st, ok
}

// PlayerIndex resolves a session to its side of the match.
func (s *Simulator) PlayerIndex(code, session string) (int, bool) {
	idx := -1
	s.with(code, func(g *Game) {
		if p, ok := g.playerBySession(session); ok {
			idx = p.index
		}
	})
	return idx, idx >= 0
}

// Count returns the number of live games.
func (s *Simulator) Count() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.games)
}
