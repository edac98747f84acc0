package match

import (
	"errors"
	"math"
	"testing"
	"time"

	"github.com/vovakirdan/paddle-arena/internal/core"
)

const testCode = "ROOM42"

func newTestSimulator(t *testing.T, cfg Config) (*Simulator, *time.Time) {
	t.Helper()
	now := time.Date(2025, 1, 1, 12, 0, 0, 0, time.UTC)
	cfg.Seed = 7
	s := NewSimulator(cfg)
	s.SetClock(func() time.Time { return now })
	s.CreateGame(testCode,
		Player{Name: "alice", Session: "s1"},
		Player{Name: "bob", Session: "s2"},
	)
	return s, &now
}

// setBall places the main ball directly.
func setBall(s *Simulator, pos, vel core.Vec2) {
	g := s.game(testCode)
	g.mu.Lock()
	defer g.mu.Unlock()
	g.ball = Ball{Position: pos, Velocity: vel}
}

func TestCreateGame(t *testing.T) {
	s, _ := newTestSimulator(t, DefaultConfig())

	st, ok := s.Get(testCode)
	if !ok {
		t.Fatal("game not created")
	}
	if st.Score != [2]int{0, 0} {
		t.Errorf("score = %v, expected [0 0]", st.Score)
	}
	if st.Ball.Position != (core.Vec2{}) {
		t.Errorf("ball should start centered, got %+v", st.Ball.Position)
	}
	if st.Paddles != [2]float64{0, 0} {
		t.Errorf("paddles = %v, expected centered", st.Paddles)
	}
	for i, p := range st.Players {
		if p.PausesRemaining != 1 || p.Index != i {
			t.Errorf("player %d = %+v", i, p)
		}
	}
	angle := math.Abs(math.Atan2(st.Ball.Velocity.Y, math.Abs(st.Ball.Velocity.X)))
	if angle > ResetAngle+1e-9 {
		t.Errorf("serve angle %v exceeds %v", angle, ResetAngle)
	}
}

func TestFirstTickNeverScores(t *testing.T) {
	for seed := int64(1); seed <= 50; seed++ {
		s := NewSimulator(Config{Seed: seed})
		s.CreateGame(testCode, Player{Name: "a", Session: "s1"}, Player{Name: "b", Session: "s2"})

		res, ok := s.Update(testCode)
		if !ok {
			t.Fatalf("seed %d: Update() returned no result", seed)
		}
		if res.Scorer != -1 || res.State.Score != [2]int{0, 0} {
			t.Fatalf("seed %d: first tick scored: %+v", seed, res.State.Score)
		}
	}
}

func TestUpdateMissingOrPaused(t *testing.T) {
	s, _ := newTestSimulator(t, DefaultConfig())

	if _, ok := s.Update("NOPE"); ok {
		t.Error("Update() on a missing game should be a no-op")
	}
	if _, err := s.PauseGame(testCode, "s1"); err != nil {
		t.Fatalf("PauseGame() failed: %v", err)
	}
	before, _ := s.Get(testCode)
	if _, ok := s.Update(testCode); ok {
		t.Error("Update() on a paused game should be a no-op")
	}
	after, _ := s.Get(testCode)
	if before.Ball != after.Ball {
		t.Error("paused game should not move")
	}
}

func TestWallReflection(t *testing.T) {
	s, _ := newTestSimulator(t, DefaultConfig())
	setBall(s, core.Vec2{X: 0, Y: 0.949}, core.Vec2{X: 0.1, Y: 1})

	res, _ := s.Update(testCode)
	if res.State.Ball.Velocity.Y >= 0 {
		t.Errorf("y velocity should flip, got %v", res.State.Ball.Velocity.Y)
	}
	if res.State.Ball.Position.Y > WallY {
		t.Errorf("ball should be clamped to the wall, got %v", res.State.Ball.Position.Y)
	}
}

func TestScoreOnGoal(t *testing.T) {
	s, _ := newTestSimulator(t, DefaultConfig())
	setBall(s, core.Vec2{X: 0.999, Y: 0.9}, core.Vec2{X: 1, Y: 0})

	res, ok := s.Update(testCode)
	if !ok {
		t.Fatal("Update() returned no result")
	}
	if res.Scorer != 0 || res.State.Score != [2]int{1, 0} {
		t.Errorf("expected left player to score, got scorer=%d score=%v", res.Scorer, res.State.Score)
	}
	if res.State.Ball.Position != (core.Vec2{}) {
		t.Errorf("ball should reset to center, got %+v", res.State.Ball.Position)
	}
}

func TestShieldBlocksGoal(t *testing.T) {
	s, _ := newTestSimulator(t, DefaultConfig())
	if err := s.ActivateShield(testCode, 1); err != nil {
		t.Fatalf("ActivateShield() failed: %v", err)
	}
	if err := s.ActivateShield(testCode, 1); !errors.Is(err, ErrShieldActive) {
		t.Errorf("second ActivateShield() err = %v", err)
	}
	s.ConsumeEvents(testCode)
	setBall(s, core.Vec2{X: 0.999, Y: 0.9}, core.Vec2{X: 1, Y: 0.2})

	res, _ := s.Update(testCode)
	if res.State.Score[0] != 0 {
		t.Errorf("shield should prevent the point, score = %v", res.State.Score)
	}
	if res.State.PowerUps.Shield[1] {
		t.Error("shield should be consumed")
	}
	if res.State.Ball.Velocity.X >= 0 {
		t.Errorf("x velocity should invert, got %v", res.State.Ball.Velocity.X)
	}
	if got := res.State.Ball.Velocity.X; math.Abs(got+ShieldBounce) > 1e-9 {
		t.Errorf("x velocity = %v, expected %v", got, -ShieldBounce)
	}

	events := s.ConsumeEvents(testCode)
	if len(events) != 1 || events[0].Type != EventShieldBlock || events[0].Player != 1 {
		t.Errorf("expected one shield-block event, got %+v", events)
	}
	if again := s.ConsumeEvents(testCode); len(again) != 0 {
		t.Errorf("events should drain once, got %+v", again)
	}
}

func TestPaddleHit(t *testing.T) {
	tests := []struct {
		name    string
		paddle  float64
		ballY   float64
		hit     bool
		upwards bool
	}{
		{"center hit", 0, 0, true, false},
		{"edge hit deflects up", 0, 0.17, true, true},
		{"miss above hitbox", 0, 0.3, false, false},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			s, _ := newTestSimulator(t, DefaultConfig())
			g := s.game(testCode)
			g.paddles[1] = tc.paddle
			setBall(s, core.Vec2{X: PaddleX - 0.01, Y: tc.ballY}, core.Vec2{X: 1, Y: 0})

			res, _ := s.Update(testCode)
			v := res.State.Ball.Velocity
			if tc.hit {
				if v.X >= 0 {
					t.Fatalf("ball should bounce back, velocity %+v", v)
				}
				if math.Abs(math.Abs(v.X)-PaddleBounce) > 1e-9 {
					t.Errorf("|vx| = %v, expected %v", math.Abs(v.X), PaddleBounce)
				}
				if res.State.Hits != 1 {
					t.Errorf("hits = %d, expected 1", res.State.Hits)
				}
				if math.Abs(v.Y)/math.Abs(v.X) > math.Tan(MaxDeflection)+1e-9 {
					t.Errorf("deflection exceeds 30 degrees: %+v", v)
				}
				if tc.upwards && v.Y <= 0 {
					t.Errorf("edge hit should deflect upwards, vy = %v", v.Y)
				}
				if res.State.Ball.Position.X > PaddleX-PaddleBand {
					t.Errorf("ball should be nudged out of the band, x = %v", res.State.Ball.Position.X)
				}
			} else if v.X <= 0 || res.State.Hits != 0 {
				t.Errorf("ball should pass the paddle, velocity %+v hits %d", v, res.State.Hits)
			}
		})
	}
}

func TestSpeedBoostCompounds(t *testing.T) {
	s, now := newTestSimulator(t, DefaultConfig())
	if err := s.ActivateSpeedBoost(testCode, 1, 1.5, 5*time.Second); err != nil {
		t.Fatalf("ActivateSpeedBoost() failed: %v", err)
	}
	setBall(s, core.Vec2{X: PaddleX - 0.01, Y: 0}, core.Vec2{X: 1, Y: 0})

	res, _ := s.Update(testCode)
	if got := math.Abs(res.State.Ball.Velocity.X); math.Abs(got-PaddleBounce*1.5) > 1e-9 {
		t.Errorf("|vx| = %v, expected %v", got, PaddleBounce*1.5)
	}

	*now = now.Add(6 * time.Second)
	st, _ := s.Get(testCode)
	if st.PowerUps.SpeedBoost[1] != nil {
		t.Error("speed boost should expire")
	}
}

func TestSpeedCap(t *testing.T) {
	s, _ := newTestSimulator(t, DefaultConfig())
	setBall(s, core.Vec2{X: PaddleX - 0.01, Y: 0}, core.Vec2{X: 2.9, Y: 0})

	res, _ := s.Update(testCode)
	if got := math.Abs(res.State.Ball.Velocity.X); got > DefaultConfig().MaxSpeed+1e-9 {
		t.Errorf("|vx| = %v exceeds the cap", got)
	}
}

func TestUpdatePaddleDamping(t *testing.T) {
	s, _ := newTestSimulator(t, DefaultConfig())

	st, ok := s.UpdatePaddle(testCode, "s1", 1)
	if !ok {
		t.Fatal("UpdatePaddle() failed")
	}
	if math.Abs(st.Paddles[0]-BaseDamping) > 1e-9 {
		t.Errorf("paddle = %v, expected %v", st.Paddles[0], BaseDamping)
	}

	s.ActivateSpeedBoost(testCode, 1, 2, time.Minute)
	st, _ = s.UpdatePaddle(testCode, "s2", -1)
	if math.Abs(st.Paddles[1]+MaxDamping) > 1e-9 {
		t.Errorf("boosted paddle = %v, expected %v", st.Paddles[1], -MaxDamping)
	}

	if _, ok := s.UpdatePaddle(testCode, "stranger", 0.5); ok {
		t.Error("unknown session should be ignored")
	}
}

func TestPauseOncePerMatch(t *testing.T) {
	s, _ := newTestSimulator(t, DefaultConfig())

	if _, err := s.PauseGame(testCode, "stranger"); !errors.Is(err, ErrUnknownPlayer) {
		t.Errorf("unknown player err = %v", err)
	}
	remaining, err := s.PauseGame(testCode, "s1")
	if err != nil || remaining != 0 {
		t.Fatalf("PauseGame() = %d, %v", remaining, err)
	}
	if _, err := s.PauseGame(testCode, "s2"); !errors.Is(err, ErrAlreadyPaused) {
		t.Errorf("pause while paused err = %v", err)
	}
	st, _ := s.Get(testCode)
	if st.Status != StatusPaused || st.PausedBy != "alice" {
		t.Errorf("unexpected pause state: %s by %q", st.Status, st.PausedBy)
	}

	if !s.ResumeGame(testCode) {
		t.Fatal("ResumeGame() should resume")
	}
	if s.ResumeGame(testCode) {
		t.Error("second ResumeGame() should be a no-op")
	}
	if _, err := s.PauseGame(testCode, "s1"); !errors.Is(err, ErrNoPausesRemaining) {
		t.Errorf("second pause err = %v", err)
	}

	// A reconnect under a new session with a restored credit still hits the ledger.
	g := s.game(testCode)
	g.players[0].Session = "s1-reconnected"
	g.players[0].pausesRemaining = 1
	if _, err := s.PauseGame(testCode, "s1-reconnected"); !errors.Is(err, ErrPauseAlreadyUsed) {
		t.Errorf("ledger err = %v, expected ErrPauseAlreadyUsed", err)
	}
}

func TestPauseLedgerPerSeat(t *testing.T) {
	s := NewSimulator(DefaultConfig())
	s.CreateGame(testCode,
		Player{Name: "sam", Session: "s1"},
		Player{Name: "sam", Session: "s2"},
	)

	if _, err := s.PauseGame(testCode, "s1"); err != nil {
		t.Fatalf("host pause failed: %v", err)
	}
	s.ResumeGame(testCode)
	if _, err := s.PauseGame(testCode, "s2"); err != nil {
		t.Errorf("guest first pause failed: %v", err)
	}
}

func TestMultiballExclusive(t *testing.T) {
	s, now := newTestSimulator(t, DefaultConfig())

	if err := s.ActivateMultiball(testCode, 0, 3*time.Second); err != nil {
		t.Fatalf("ActivateMultiball() failed: %v", err)
	}
	if err := s.ActivateMultiball(testCode, 1, 3*time.Second); !errors.Is(err, ErrMultiballActive) {
		t.Errorf("second multiball err = %v", err)
	}
	st, _ := s.Get(testCode)
	if len(st.ExtraBalls) != 1 {
		t.Fatalf("extra balls = %d, expected 1", len(st.ExtraBalls))
	}
	if st.ExtraBalls[0].Velocity.X <= 0 {
		t.Errorf("left player's multiball should head right, got %+v", st.ExtraBalls[0].Velocity)
	}

	*now = now.Add(4 * time.Second)
	setBall(s, core.Vec2{}, core.Vec2{X: 1, Y: 0})
	res, _ := s.Update(testCode)
	if len(res.State.ExtraBalls) != 0 || res.State.PowerUps.Multiball != nil {
		t.Error("multiball should expire")
	}
	var ended bool
	for _, e := range s.ConsumeEvents(testCode) {
		if e.Type == EventMultiballEnd {
			ended = true
		}
	}
	if !ended {
		t.Error("expected a multiball-end event")
	}
}

func TestExtraBallScores(t *testing.T) {
	s, _ := newTestSimulator(t, DefaultConfig())
	s.ActivateMultiball(testCode, 0, time.Minute)

	g := s.game(testCode)
	g.extra[0] = Ball{Position: core.Vec2{X: 0.999, Y: 0.5}, Velocity: core.Vec2{X: 1, Y: 0}}
	setBall(s, core.Vec2{}, core.Vec2{X: 0.1, Y: 0})

	res, _ := s.Update(testCode)
	if res.Scorer != 0 {
		t.Fatalf("extra ball should score for the left player, scorer = %d", res.Scorer)
	}
	if len(res.State.ExtraBalls) != 0 || res.State.PowerUps.Multiball != nil {
		t.Error("a point should clear the multiball")
	}
}

func TestWinCondition(t *testing.T) {
	s, _ := newTestSimulator(t, Config{WinScore: 5})

	var last Result
	for i := 0; i < 5; i++ {
		res, ok := s.ProcessScore(testCode, 0)
		if !ok {
			t.Fatalf("ProcessScore() #%d failed", i+1)
		}
		if i < 4 && res.GameOver {
			t.Fatalf("game over too early at %d", i+1)
		}
		last = res
	}
	if !last.GameOver || last.Winner != 0 || last.State.Players[last.Winner].Name != "alice" {
		t.Fatalf("expected alice to win, got %+v", last)
	}

	if _, ok := s.Update(testCode); ok {
		t.Error("finished match should not tick")
	}
	if _, ok := s.ProcessScore(testCode, 1); ok {
		t.Error("finished match should not score")
	}
	st, _ := s.Get(testCode)
	if st.Score != [2]int{5, 0} {
		t.Errorf("score changed after finish: %v", st.Score)
	}
}

func TestScoresMonotonic(t *testing.T) {
	s, _ := newTestSimulator(t, DefaultConfig())
	prev := [2]int{}
	for i := 0; i < 20000; i++ {
		res, ok := s.Update(testCode)
		if !ok {
			break
		}
		cur := res.State.Score
		diff := (cur[0] - prev[0]) + (cur[1] - prev[1])
		if cur[0] < prev[0] || cur[1] < prev[1] || diff > 1 {
			t.Fatalf("tick %d: score went from %v to %v", i, prev, cur)
		}
		prev = cur
	}
	if prev == [2]int{} {
		t.Error("expected at least one point in 20000 ticks with idle paddles")
	}
}

func TestEndGame(t *testing.T) {
	s, _ := newTestSimulator(t, DefaultConfig())
	s.QueueEvent(testCode, Event{Type: EventShieldUp})

	st, ok := s.EndGame(testCode)
	if !ok || st.Status != StatusFinished {
		t.Fatalf("EndGame() = %+v, %v", st, ok)
	}
	if _, ok := s.Get(testCode); ok {
		t.Error("game should be removed")
	}
	if events := s.ConsumeEvents(testCode); len(events) != 0 {
		t.Error("event queue should be removed with the game")
	}
	if s.Count() != 0 {
		t.Errorf("Count() = %d, expected 0", s.Count())
	}
}

func TestParseKind(t *testing.T) {
	if k, ok := ParseKind("shield"); !ok || k != KindShield {
		t.Errorf("ParseKind(shield) = %q, %v", k, ok)
	}
	if _, ok := ParseKind("laser"); ok {
		t.Error("ParseKind(laser) should fail")
	}
}
