package match

import "time"

// PlayerState is the broadcast view of one side.
type PlayerState struct {
	Name            string `json:"name"`
	Wallet          string `json:"wallet,omitempty"`
	Index           int    `json:"index"`
	PausesRemaining int    `json:"pausesRemaining"`
}

// State is an immutable copy of a match, safe to hand to other goroutines.
type State struct {
	RoomCode   string         `json:"roomCode"`
	Players    [2]PlayerState `json:"players"`
	Score      [2]int         `json:"score"`
	Ball       Ball           `json:"ball"`
	ExtraBalls []Ball         `json:"extraBalls,omitempty"`
	Paddles    [2]float64     `json:"paddles"`
	Hits       int            `json:"hits"`
	StartedAt  time.Time      `json:"startedAt"`
	Status     Status         `json:"status"`
	PausedBy   string         `json:"pausedBy,omitempty"`
	Winner     int            `json:"winner"`
	PowerUps   PowerUpState   `json:"powerUps"`
}

// Duration is how long the match has been running at time now.
func (s State) Duration(now time.Time) time.Duration {
	if s.StartedAt.IsZero() {
		return 0
	}
	return now.Sub(s.StartedAt)
}

// Result is the outcome of one simulation step or score.
type Result struct {
	State    State
	GameOver bool
	Winner   int // -1 unless GameOver
	Scorer   int // -1 when nobody scored
}

func (g *Game) snapshot() State {
	st := State{
		RoomCode:  g.code,
		Score:     g.score,
		Ball:      g.ball,
		Paddles:   g.paddles,
		Hits:      g.hits,
		StartedAt: g.startedAt,
		Status:    g.status,
		Winner:    g.winner,
		PowerUps:  g.powerUpState(),
	}
	for i, p := range g.players {
		st.Players[i] = PlayerState{
			Name:            p.Name,
			Wallet:          p.Wallet,
			Index:           p.index,
			PausesRemaining: p.pausesRemaining,
		}
	}
	if len(g.extra) > 0 {
		st.ExtraBalls = append([]Ball(nil), g.extra...)
	}
	if g.pausedBy >= 0 {
		st.PausedBy = g.players[g.pausedBy].Name
	}
	return st
}
