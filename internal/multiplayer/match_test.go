package multiplayer

import (
	"errors"
	"testing"
	"time"

	"github.com/vovakirdan/paddle-arena/internal/match"
	"github.com/vovakirdan/paddle-arena/internal/room"
)

// newTestLoop seats alice and bob in a playing room and returns its loop.
func newTestLoop(t *testing.T, cfg CoordinatorConfig) (*OnlineMatch, *match.Simulator, *ChannelSession) {
	t.Helper()
	rooms := room.NewRegistry()
	rm, err := rooms.CreateRoom(room.Player{Name: "alice", Session: "s1"}, false)
	if err != nil {
		t.Fatalf("CreateRoom() failed: %v", err)
	}
	if _, err := rooms.JoinRoom(rm.Code, room.Player{Name: "bob", Session: "s2"}); err != nil {
		t.Fatalf("JoinRoom() failed: %v", err)
	}
	rooms.StartGame(rm.Code)

	sim := match.NewSimulator(match.Config{Seed: 3})
	sim.CreateGame(rm.Code,
		match.Player{Name: "alice", Session: "s1"},
		match.Player{Name: "bob", Session: "s2"},
	)
	sessions := NewSessionRegistry()
	alice := NewChannelSession("s1", 512)
	sessions.Register(alice, Identity{Name: "alice"})
	sessions.Register(NewChannelSession("s2", 512), Identity{Name: "bob"})

	return NewOnlineMatch(rm.Code, sim, rooms, sessions, cfg, nil), sim, alice
}

func testLoopConfig() CoordinatorConfig {
	cfg := DefaultCoordinatorConfig()
	cfg.PauseDuration = 50 * time.Millisecond
	return cfg
}

func TestOnlineMatchCancelStopsTicks(t *testing.T) {
	loop, sim, alice := newTestLoop(t, testLoopConfig())
	ended := make(chan struct{}, 1)
	loop.Start(func(*OnlineMatch, match.Result) { ended <- struct{}{} })

	expect[GameUpdateEvent](t, alice)
	loop.Cancel()
	loop.Cancel()

	before, _ := sim.Get(loop.Code())
	for len(alice.Events()) > 0 {
		<-alice.Events()
	}
	time.Sleep(50 * time.Millisecond)
	after, _ := sim.Get(loop.Code())
	if before.Ball != after.Ball {
		t.Error("ball moved after Cancel")
	}
	if len(alice.Events()) != 0 {
		t.Error("events broadcast after Cancel")
	}
	if loop.Submit(pauseIntent{session: "s1"}) {
		t.Error("Submit should fail once the loop is cancelled")
	}
	select {
	case <-ended:
		t.Error("onEnd must not run after Cancel")
	default:
	}
}

func TestOnlineMatchCancelDropsPendingResume(t *testing.T) {
	loop, sim, alice := newTestLoop(t, testLoopConfig())
	loop.Start(nil)

	if !loop.Submit(pauseIntent{session: "s1"}) {
		t.Fatal("Submit() rejected the pause")
	}
	paused := expect[GamePausedEvent](t, alice)
	if paused.PausedBy != "alice" {
		t.Errorf("pausedBy = %q", paused.PausedBy)
	}
	loop.Cancel()

	time.Sleep(100 * time.Millisecond)
	if st, _ := sim.Get(loop.Code()); st.Status != match.StatusPaused {
		t.Errorf("status = %s, a cancelled loop must not resume the match", st.Status)
	}
}

func TestOnlineMatchReportsFinish(t *testing.T) {
	loop, sim, _ := newTestLoop(t, testLoopConfig())
	ended := make(chan match.Result, 1)
	loop.Start(func(_ *OnlineMatch, res match.Result) { ended <- res })

	for i := 0; i < sim.Config().WinScore; i++ {
		if res, _ := sim.ProcessScore(loop.Code(), 1); res.GameOver {
			break
		}
	}
	select {
	case res := <-ended:
		if !res.GameOver || res.Winner != 1 {
			t.Errorf("unexpected result: %+v", res)
		}
	case <-time.After(waitTimeout):
		t.Fatal("loop did not report the finished match")
	}
	<-loop.Done()
}

func TestOnlineMatchCancelFailsQueuedPowerUps(t *testing.T) {
	loop, _, _ := newTestLoop(t, testLoopConfig())
	var got []error
	for i := 0; i < 2; i++ {
		in := powerUpIntent{index: i, player: "alice", kind: match.KindShield, done: func(err error) { got = append(got, err) }}
		if !loop.Submit(in) {
			t.Fatalf("Submit(%d) rejected", i)
		}
	}
	loop.Submit(pauseIntent{session: "s1"})

	// The loop has exited with intents still queued.
	close(loop.done)
	loop.Cancel()

	if len(got) != 2 {
		t.Fatalf("done called %d times, expected 2", len(got))
	}
	for _, err := range got {
		if !errors.Is(err, ErrNotInMatch) {
			t.Errorf("done(%v), expected ErrNotInMatch", err)
		}
	}
	if len(loop.intents) != 0 {
		t.Error("intent queue should be empty after Cancel")
	}
}
