package match

import (
	"math"

	"github.com/vovakirdan/paddle-arena/internal/core"
)

// Court geometry in normalized coordinates, origin at the center.
const (
	WallY            = 0.95 // Top/bottom reflection line
	GoalX            = 1.0  // Crossing this scores
	PaddleX          = 0.92 // Paddle planes sit at -PaddleX and +PaddleX
	PaddleBand       = 0.04 // Half-width of the paddle hit zone along x
	HitboxHalfHeight = 0.18 // Independent of rendered paddle size

	PaddleBounce = 1.08
	ShieldBounce = 1.05

	MaxDeflection = math.Pi / 6 // 30 degrees
	ResetAngle    = math.Pi / 3 // Serves stay within 60 degrees of horizontal

	BaseDamping = 0.8
	MaxDamping  = 0.98
)

// Ball is a ball's position and velocity.
type Ball struct {
	Position core.Vec2 `json:"position"`
	Velocity core.Vec2 `json:"velocity"`
}

// step advances every ball once. It returns the scoring player's index, or
// -1 when no ball crossed a goal line.
func (g *Game) step() int {
	if scorer := g.advanceBall(&g.ball); scorer >= 0 {
		return scorer
	}
	for i := range g.extra {
		if scorer := g.advanceBall(&g.extra[i]); scorer >= 0 {
			return scorer
		}
	}
	return -1
}

func (g *Game) advanceBall(b *Ball) int {
	b.Position = b.Position.Add(b.Velocity.Scale(g.cfg.Step))

	if math.Abs(b.Position.Y) > WallY {
		b.Velocity.Y = -b.Velocity.Y
		b.Position.Y = core.ClampF(b.Position.Y, -WallY, WallY)
	}

	if math.Abs(b.Position.X) > GoalX {
		defender := 0
		if b.Position.X > 0 {
			defender = 1
		}
		if !g.effects.shield[defender] {
			return 1 - defender
		}
		g.effects.shield[defender] = false
		b.Velocity.X = -b.Velocity.X * ShieldBounce
		b.Velocity.Y *= ShieldBounce
		g.capSpeed(b)
		b.Position.X = core.Sign(b.Position.X) * GoalX
		g.queue(Event{Type: EventShieldBlock, Player: defender})
	}

	for idx := range g.paddles {
		if g.hitPaddle(b, idx) {
			break
		}
	}
	return -1
}

func (g *Game) hitPaddle(b *Ball, idx int) bool {
	px := PaddleX
	if idx == 0 {
		px = -PaddleX
	}
	approaching := (idx == 0 && b.Velocity.X < 0) || (idx == 1 && b.Velocity.X > 0)
	if !approaching || math.Abs(b.Position.X-px) > PaddleBand {
		return false
	}
	offset := b.Position.Y - g.paddles[idx]
	if math.Abs(offset) > HitboxHalfHeight {
		return false
	}

	vx := -b.Velocity.X * PaddleBounce * g.speedMultiplier(idx)
	speed := math.Min(math.Abs(vx), g.cfg.MaxSpeed)
	dir := core.Sign(vx)
	b.Velocity.X = dir * speed
	b.Velocity.Y = (offset / HitboxHalfHeight) * speed * math.Tan(MaxDeflection)
	g.hits++

	// Move the ball out of the band so the next tick cannot hit again.
	b.Position.X = px + dir*(PaddleBand+1e-6)
	return true
}

func (g *Game) capSpeed(b *Ball) {
	limit := g.cfg.MaxSpeed
	if limit <= 0 {
		return
	}
	b.Velocity.X = core.ClampF(b.Velocity.X, -limit, limit)
	b.Velocity.Y = core.ClampF(b.Velocity.Y, -limit, limit)
}

// resetBall serves a new ball from the center at a random angle within
// ResetAngle of horizontal, towards a random side.
func (g *Game) resetBall() {
	angle := (g.rng.Float64()*2 - 1) * ResetAngle
	v := core.FromAngle(angle, g.cfg.InitialSpeed)
	if g.rng.Intn(2) == 0 {
		v.X = -v.X
	}
	g.ball = Ball{Velocity: v}
}

// spawnBall builds an auxiliary ball heading towards the opponent of owner.
func (g *Game) spawnBall(owner int) Ball {
	angle := (g.rng.Float64()*2 - 1) * ResetAngle
	v := core.FromAngle(angle, g.cfg.InitialSpeed)
	if owner == 1 {
		v.X = -v.X
	}
	return Ball{Velocity: v}
}

// processScore credits a point. Reaching the win score finishes the match.
func (g *Game) processScore(scorer int) Result {
	g.score[scorer]++
	if g.score[scorer] >= g.cfg.WinScore {
		g.status = StatusFinished
		g.winner = scorer
		g.pausedBy = -1
		return Result{State: g.snapshot(), GameOver: true, Winner: scorer, Scorer: scorer}
	}
	g.endMultiball()
	g.resetBall()
	return Result{State: g.snapshot(), Winner: -1, Scorer: scorer}
}

// movePaddle eases the paddle towards target.
func (g *Game) movePaddle(idx int, target float64) {
	damping := math.Min(MaxDamping, BaseDamping*g.speedMultiplier(idx))
	cur := g.paddles[idx]
	g.paddles[idx] = clampPaddle(cur + (clampPaddle(target)-cur)*damping)
}
