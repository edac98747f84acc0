package room

import (
	"errors"
	"strings"
	"testing"
	"time"
)

func host(session string) Player { return Player{Name: "host-" + session, Session: session} }
func guest(session string) Player { return Player{Name: "guest-" + session, Session: session} }

func TestCreateRoomGeneratesCode(t *testing.T) {
	r := NewRegistry()

	rm, err := r.CreateRoom(host("h1"), false)
	if err != nil {
		t.Fatalf("CreateRoom() failed: %v", err)
	}
	if len(rm.Code) != CodeLength {
		t.Errorf("code length = %d, expected %d", len(rm.Code), CodeLength)
	}
	for _, c := range rm.Code {
		if !strings.ContainsRune(codeChars, c) {
			t.Errorf("code %q contains %q outside the alphabet", rm.Code, c)
		}
	}
	if rm.Status != StatusWaiting {
		t.Errorf("status = %s, expected waiting", rm.Status)
	}

	if _, err := r.CreateRoom(host("h1"), false); !errors.Is(err, ErrAlreadyInRoom) {
		t.Errorf("second CreateRoom() err = %v, expected ErrAlreadyInRoom", err)
	}
}

func TestCreateRoomWithCode(t *testing.T) {
	r := NewRegistry()

	rm, err := r.CreateRoomWithCode(" stake1 ", host("h1"), true)
	if err != nil {
		t.Fatalf("CreateRoomWithCode() failed: %v", err)
	}
	if rm.Code != "STAKE1" {
		t.Errorf("code = %q, expected STAKE1", rm.Code)
	}
	if !rm.IsStaked || !rm.HostStaked || rm.GuestStaked {
		t.Errorf("unexpected staking flags: %+v", rm)
	}

	if _, err := r.CreateRoomWithCode("STAKE1", host("h2"), true); !errors.Is(err, ErrRoomExists) {
		t.Errorf("duplicate code err = %v, expected ErrRoomExists", err)
	}
	if _, err := r.CreateRoomWithCode("bad code!", host("h3"), true); !errors.Is(err, ErrInvalidCode) {
		t.Errorf("invalid code err = %v, expected ErrInvalidCode", err)
	}
}

func TestJoinRoomErrors(t *testing.T) {
	r := NewRegistry()
	rm, _ := r.CreateRoom(host("h1"), false)

	if _, err := r.JoinRoom("NOPE42", guest("g1")); !errors.Is(err, ErrRoomNotFound) {
		t.Errorf("missing room err = %v", err)
	}

	joined, err := r.JoinRoom(strings.ToLower(rm.Code), guest("g1"))
	if err != nil {
		t.Fatalf("JoinRoom() failed: %v", err)
	}
	if joined.Status != StatusReady {
		t.Errorf("status = %s, expected ready", joined.Status)
	}

	if _, err := r.JoinRoom(rm.Code, guest("g2")); !errors.Is(err, ErrRoomFull) {
		t.Errorf("full room err = %v, expected ErrRoomFull", err)
	}

	other, _ := r.CreateRoom(host("h3"), false)
	r.JoinRoom(other.Code, guest("g3"))
	r.StartGame(other.Code)
	r.RemovePlayerFromRoom("g3")
	if _, err := r.JoinRoom(other.Code, guest("g4")); !errors.Is(err, ErrRoomNotAvailable) {
		t.Errorf("playing room err = %v, expected ErrRoomNotAvailable", err)
	}

	twin, _ := r.CreateRoom(Player{Name: "sam", Session: "s5"}, false)
	if _, err := r.JoinRoom(twin.Code, Player{Name: "sam", Session: "s6"}); !errors.Is(err, ErrNameTaken) {
		t.Errorf("duplicate name err = %v, expected ErrNameTaken", err)
	}
	if got, _ := r.Get(twin.Code); got.Guest != nil || got.Status != StatusWaiting {
		t.Errorf("rejected join must not seat the guest: %+v", got)
	}
	if _, ok := r.RoomOf("s6"); ok {
		t.Error("rejected guest should not be bound to the room")
	}
}

func TestStatusTransitions(t *testing.T) {
	r := NewRegistry()
	rm, _ := r.CreateRoom(host("h1"), false)

	if r.StartGame(rm.Code) {
		t.Fatal("StartGame() on a waiting room should fail")
	}
	r.JoinRoom(rm.Code, guest("g1"))
	if !r.StartGame(rm.Code) {
		t.Fatal("StartGame() on a ready room should succeed")
	}
	if r.StartGame(rm.Code) {
		t.Error("StartGame() on a playing room should fail")
	}
	if _, ok := r.FinishGame(rm.Code); !ok {
		t.Fatal("FinishGame() should succeed")
	}
	if !r.StartGame(rm.Code) {
		t.Error("StartGame() should rematch a finished room")
	}
}

func TestCanTransition(t *testing.T) {
	allowed := map[[2]Status]bool{
		{StatusWaiting, StatusReady}:     true,
		{StatusWaiting, StatusAbandoned}: true,
		{StatusReady, StatusPlaying}:     true,
		{StatusReady, StatusWaiting}:     true,
		{StatusPlaying, StatusFinished}:  true,
		{StatusFinished, StatusPlaying}:  true,
		{StatusFinished, StatusWaiting}:  true,
	}
	all := []Status{StatusWaiting, StatusReady, StatusPlaying, StatusFinished, StatusAbandoned}
	for _, from := range all {
		for _, to := range all {
			if got := CanTransition(from, to); got != allowed[[2]Status{from, to}] {
				t.Errorf("CanTransition(%s, %s) = %v", from, to, got)
			}
		}
	}
}

func TestRemovePlayer(t *testing.T) {
	t.Run("host leaving destroys the room", func(t *testing.T) {
		r := NewRegistry()
		rm, _ := r.CreateRoom(host("h1"), false)
		r.JoinRoom(rm.Code, guest("g1"))

		removed, ok := r.RemovePlayerFromRoom("h1")
		if !ok || removed.Code != rm.Code {
			t.Fatalf("RemovePlayerFromRoom() = %+v, %v", removed, ok)
		}
		if _, ok := r.Get(rm.Code); ok {
			t.Error("room should be destroyed")
		}
		if _, ok := r.RoomOf("g1"); ok {
			t.Error("guest binding should be released")
		}
	})

	t.Run("guest leaving reopens the room", func(t *testing.T) {
		r := NewRegistry()
		rm, _ := r.CreateRoom(host("h1"), false)
		r.JoinRoom(rm.Code, guest("g1"))

		after, ok := r.RemovePlayerFromRoom("g1")
		if !ok {
			t.Fatal("RemovePlayerFromRoom() failed")
		}
		if after.Guest != nil || after.Status != StatusWaiting {
			t.Errorf("unexpected room after guest left: %+v", after)
		}
	})

	t.Run("guest leaving keeps the rematch window", func(t *testing.T) {
		r := NewRegistry()
		rm, _ := r.CreateRoom(host("h1"), false)
		r.JoinRoom(rm.Code, guest("g1"))
		r.StartGame(rm.Code)
		r.FinishGame(rm.Code)

		after, _ := r.RemovePlayerFromRoom("g1")
		if after.Status != StatusFinished {
			t.Errorf("status = %s, expected finished", after.Status)
		}
	})
}

func TestDetachAndAttach(t *testing.T) {
	r := NewRegistry()
	rm, _ := r.CreateRoom(Player{Name: "alice", Session: "s1"}, false)
	r.JoinRoom(rm.Code, Player{Name: "bob", Session: "s2"})

	if _, ok := r.DetachPlayerFromRoom("s1"); !ok {
		t.Fatal("DetachPlayerFromRoom() failed")
	}
	if _, ok := r.RoomOf("s1"); ok {
		t.Error("detached session should not resolve to a room")
	}
	got, _ := r.Get(rm.Code)
	if got.Host.Name != "alice" || got.Host.Session != "" {
		t.Errorf("host seat should survive detach: %+v", got.Host)
	}

	if r.AttachPlayerSocket(rm.Code, "mallory", "s3") {
		t.Error("AttachPlayerSocket() should fail without a name match")
	}
	if !r.AttachPlayerSocket(rm.Code, "alice", "s3") {
		t.Fatal("AttachPlayerSocket() should succeed for alice")
	}
	bound, ok := r.RoomOf("s3")
	if !ok || bound.Host.Session != "s3" {
		t.Errorf("new session not bound: %+v", bound)
	}
}

func TestMarkAbandoned(t *testing.T) {
	r := NewRegistry()
	rm, _ := r.CreateRoomWithCode("ESCROW1", host("h1"), true)

	abandoned, ok := r.MarkAbandoned(rm.Code)
	if !ok || abandoned.Status != StatusAbandoned {
		t.Fatalf("MarkAbandoned() = %+v, %v", abandoned, ok)
	}
	if _, ok := r.MarkAbandoned(rm.Code); ok {
		t.Error("second MarkAbandoned() should be a no-op")
	}
	if _, ok := r.RoomOf("h1"); ok {
		t.Error("host binding should be released")
	}

	plain, _ := r.CreateRoom(host("h2"), false)
	if _, ok := r.MarkAbandoned(plain.Code); ok {
		t.Error("unstaked rooms cannot be abandoned")
	}
}

func TestSpectators(t *testing.T) {
	r := NewRegistry()
	rm, _ := r.CreateRoom(host("h1"), false)

	if _, err := r.AddSpectator("MISSING", Spectator{Name: "eve", Session: "v1"}); !errors.Is(err, ErrRoomNotFound) {
		t.Errorf("err = %v, expected ErrRoomNotFound", err)
	}
	withSpec, err := r.AddSpectator(rm.Code, Spectator{Name: "eve", Session: "v1"})
	if err != nil {
		t.Fatalf("AddSpectator() failed: %v", err)
	}
	if len(withSpec.Spectators) != 1 || !withSpec.IsSpectator("v1") {
		t.Errorf("spectator missing: %+v", withSpec.Spectators)
	}
	if got := withSpec.Sessions(); len(got) != 2 {
		t.Errorf("Sessions() = %v, expected host and spectator", got)
	}

	after, ok := r.RemoveSpectator("v1")
	if !ok || len(after.Spectators) != 0 {
		t.Errorf("RemoveSpectator() = %+v, %v", after, ok)
	}
}

func TestGetActiveGames(t *testing.T) {
	r := NewRegistry()
	waiting, _ := r.CreateRoom(host("h1"), false)
	ready, _ := r.CreateRoom(host("h2"), false)
	r.JoinRoom(ready.Code, guest("g2"))
	r.AddSpectator(ready.Code, Spectator{Name: "eve", Session: "v1"})

	games := r.GetActiveGames()
	if len(games) != 1 {
		t.Fatalf("GetActiveGames() returned %d games, expected 1", len(games))
	}
	if games[0].RoomCode != ready.Code || games[0].Spectators != 1 || games[0].Guest != "guest-g2" {
		t.Errorf("unexpected active game: %+v", games[0])
	}
	for _, g := range games {
		if g.RoomCode == waiting.Code {
			t.Error("waiting rooms should not be listed")
		}
	}
}

func TestCleanupStaleRooms(t *testing.T) {
	r := NewRegistry()
	now := time.Date(2025, 1, 1, 12, 0, 0, 0, time.UTC)
	r.SetClock(func() time.Time { return now })

	stale, _ := r.CreateRoom(host("h1"), false)
	busy, _ := r.CreateRoom(host("h2"), false)
	r.JoinRoom(busy.Code, guest("g2"))

	now = now.Add(10 * time.Minute)
	fresh, _ := r.CreateRoom(host("h3"), false)

	removed := r.CleanupStaleRooms(5 * time.Minute)
	if len(removed) != 1 || removed[0].Code != stale.Code {
		t.Fatalf("CleanupStaleRooms() removed %+v", removed)
	}
	if _, ok := r.Get(busy.Code); !ok {
		t.Error("ready room should survive the sweep")
	}
	if _, ok := r.Get(fresh.Code); !ok {
		t.Error("fresh room should survive the sweep")
	}
	if _, ok := r.RoomOf("h1"); ok {
		t.Error("stale host binding should be released")
	}
}

func TestExpireFinishedRooms(t *testing.T) {
	r := NewRegistry()
	now := time.Date(2025, 1, 1, 12, 0, 0, 0, time.UTC)
	r.SetClock(func() time.Time { return now })

	rm, _ := r.CreateRoom(host("h1"), false)
	r.JoinRoom(rm.Code, guest("g1"))
	r.StartGame(rm.Code)
	r.FinishGame(rm.Code)

	if got := r.ExpireFinishedRooms(time.Minute); len(got) != 0 {
		t.Errorf("room expired too early: %+v", got)
	}
	now = now.Add(2 * time.Minute)
	if got := r.ExpireFinishedRooms(time.Minute); len(got) != 1 {
		t.Errorf("ExpireFinishedRooms() removed %d rooms, expected 1", len(got))
	}
}

func TestFindRooms(t *testing.T) {
	r := NewRegistry()
	now := time.Date(2025, 1, 1, 12, 0, 0, 0, time.UTC)
	r.SetClock(func() time.Time { return now })

	first, _ := r.CreateRoom(Player{Name: "alice", Session: "s1"}, false)
	now = now.Add(time.Second)
	r.CreateRoom(Player{Name: "carol", Session: "s3"}, false)
	now = now.Add(time.Second)
	r.CreateRoomWithCode("STAKED", Player{Name: "dave", Session: "s4"}, true)

	open, ok := r.FindOpenRoom()
	if !ok || open.Code != first.Code {
		t.Errorf("FindOpenRoom() = %+v, expected oldest unstaked room", open)
	}

	r.JoinRoom(first.Code, Player{Name: "bob", Session: "s2"})
	r.StartGame(first.Code)
	r.FinishGame(first.Code)

	byName, ok := r.FindByPlayerName("bob")
	if !ok || byName.Code != first.Code {
		t.Errorf("FindByPlayerName(bob) = %+v, %v", byName, ok)
	}
	opp, ok := byName.Opponent("bob")
	if !ok || opp.Name != "alice" {
		t.Errorf("Opponent(bob) = %+v", opp)
	}
}
