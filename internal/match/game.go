// Package match implements the authoritative paddle-and-ball simulation.
// A Game is advanced one fixed step at a time and has no knowledge of
// networking; the Simulator indexes games by room code.
package match

import (
	"errors"
	"math/rand"
	"sync"
	"time"

	"github.com/vovakirdan/paddle-arena/internal/core"
)

// Status is the simulation state of a match.
type Status string

const (
	StatusActive   Status = "active"
	StatusPaused   Status = "paused"
	StatusFinished Status = "finished"
)

// Errors returned by simulator operations.
var (
	ErrGameNotFound       = errors.New("game not found")
	ErrGameNotActive      = errors.New("game is not active")
	ErrUnknownPlayer      = errors.New("player is not part of this game")
	ErrAlreadyPaused      = errors.New("game is already paused")
	ErrNoPausesRemaining  = errors.New("no pauses remaining")
	ErrPauseAlreadyUsed   = errors.New("pause already used this match")
	ErrShieldActive       = errors.New("shield already active")
	ErrMultiballActive    = errors.New("multiball already active")
	ErrInvalidPlayerIndex = errors.New("invalid player index")
)

// Config holds the simulation tunables.
type Config struct {
	WinScore     int     // Points needed to win
	Step         float64 // Fraction of velocity applied per tick
	InitialSpeed float64 // Ball speed after a reset
	MaxSpeed     float64 // Cap on either velocity component
	Seed         int64   // 0 = seed from the clock
}

// DefaultConfig returns the production tunables.
func DefaultConfig() Config {
	return Config{
		WinScore:     1000,
		Step:         0.0055,
		InitialSpeed: 1.0,
		MaxSpeed:     3.0,
	}
}

// Player identifies one side of a match.
type Player struct {
	Name    string
	Wallet  string
	Session string
}

type seat struct {
	Player
	index           int
	pausesRemaining int
}

// Game is the full state of one match. All access goes through the
// Simulator, which holds mu around every operation.
type Game struct {
	mu sync.Mutex

	code    string
	players [2]seat
	score   [2]int
	ball    Ball
	extra   []Ball
	paddles [2]float64
	hits    int

	startedAt time.Time
	status    Status
	pausedBy  int
	winner    int

	// Pause ledger keyed by seat so a reconnect cannot earn a second pause.
	pauseLedger [2]bool

	effects powerUps
	events  []Event

	cfg Config
	rng *rand.Rand
	now func() time.Time
}

func newGame(code string, p1, p2 Player, cfg Config, seed int64, now func() time.Time) *Game {
	g := &Game{
		code:      code,
		startedAt: now(),
		status:    StatusActive,
		pausedBy:  -1,
		winner:    -1,
		cfg:       cfg,
		rng:       rand.New(rand.NewSource(seed)),
		now:       now,
	}
	for i, p := range [2]Player{p1, p2} {
		g.players[i] = seat{Player: p, index: i, pausesRemaining: 1}
	}
	g.resetBall()
	return g
}

func (g *Game) playerBySession(session string) (*seat, bool) {
	if session == "" {
		return nil, false
	}
	for i := range g.players {
		if g.players[i].Session == session {
			return &g.players[i], true
		}
	}
	return nil, false
}

func (g *Game) queue(evt Event) {
	if evt.At.IsZero() {
		evt.At = g.now()
	}
	g.events = append(g.events, evt)
}

func (g *Game) drain() []Event {
	out := g.events
	g.events = nil
	return out
}

func validIndex(i int) bool {
	return i == 0 || i == 1
}

func clampPaddle(y float64) float64 {
	return core.ClampF(y, -1, 1)
}
