package multiplayer

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/vovakirdan/paddle-arena/internal/match"
	"github.com/vovakirdan/paddle-arena/internal/room"
)

const waitTimeout = 2 * time.Second

type harness struct {
	t     *testing.T
	coord *Coordinator
	rooms *room.Registry
	sim   *match.Simulator
}

func newHarness(t *testing.T, collab Collaborators, simCfg match.Config) *harness {
	t.Helper()
	rooms := room.NewRegistry()
	sim := match.NewSimulator(simCfg)
	cfg := DefaultCoordinatorConfig()
	cfg.PauseDuration = 100 * time.Millisecond
	cfg.CallTimeout = time.Second

	c := NewCoordinator(cfg, rooms, sim, NewSessionRegistry(), nil)
	c.SetCollaborators(collab)
	if err := c.Start(); err != nil {
		t.Fatalf("Start() failed: %v", err)
	}
	t.Cleanup(c.Stop)
	return &harness{t: t, coord: c, rooms: rooms, sim: sim}
}

func (h *harness) connect(id, name string) *ChannelSession {
	s := NewChannelSession(SessionID(id), 512)
	h.coord.Sessions().Register(s, Identity{Name: name})
	return s
}

func (h *harness) send(msg CoordinatorMessage) {
	h.coord.Send(msg)
}

// startMatch creates a room for host, seats guest and waits for both to see gameStart.
func (h *harness) startMatch(host, guest *ChannelSession) string {
	h.t.Helper()
	h.send(CreateRoomMsg{SessionID: host.ID()})
	created := expect[RoomCreatedEvent](h.t, host)
	h.send(JoinRoomMsg{SessionID: guest.ID(), RoomCode: created.RoomCode})
	expect[GameStartEvent](h.t, host)
	expect[GameStartEvent](h.t, guest)
	return created.RoomCode
}

// expect reads events from s until one of type T arrives.
func expect[T Event](t *testing.T, s *ChannelSession) T {
	t.Helper()
	timeout := time.After(waitTimeout)
	for {
		select {
		case evt := <-s.Events():
			if e, ok := evt.(T); ok {
				return e
			}
		case <-timeout:
			var zero T
			t.Fatalf("session %s: timed out waiting for %q", s.ID(), zero.EventName())
			return zero
		}
	}
}

func expectError(t *testing.T, s *ChannelSession, reason string) {
	t.Helper()
	evt := expect[ErrorEvent](t, s)
	if evt.Reason != reason {
		t.Fatalf("error reason = %q (%s), expected %q", evt.Reason, evt.Message, reason)
	}
}

func eventually(t *testing.T, what string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(waitTimeout)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("timed out waiting for %s", what)
}

type fakeEscrow struct {
	mu     sync.Mutex
	stakes map[string]StakeInfo
}

func newFakeEscrow(stakes ...StakeInfo) *fakeEscrow {
	e := &fakeEscrow{stakes: make(map[string]StakeInfo)}
	for _, s := range stakes {
		e.stakes[s.RoomCode] = s
	}
	return e
}

func (e *fakeEscrow) LookupStake(_ context.Context, code string) (StakeInfo, bool, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	s, ok := e.stakes[code]
	return s, ok, nil
}

func (e *fakeEscrow) setGuestStaked(code string) {
	e.mu.Lock()
	defer e.mu.Unlock()
	s := e.stakes[code]
	s.GuestStaked = true
	e.stakes[code] = s
}

type fakeAbandon struct {
	calls atomic.Int32
}

func (a *fakeAbandon) MarkAbandoned(_ context.Context, code, host string) (RefundAuthorization, error) {
	a.calls.Add(1)
	return RefundAuthorization{RoomCode: code, HostAddress: host, Amount: 500, Signature: "sig"}, nil
}

type fakeRatings struct{}

func (fakeRatings) UpdateRatings(_ context.Context, _, _ string) (Ratings, error) {
	return Ratings{
		Winner: RatingChange{Before: 1200, After: 1216},
		Loser:  RatingChange{Before: 1200, After: 1184},
	}, nil
}

type fakeStore struct {
	mu      sync.Mutex
	records []MatchRecord
}

func (s *fakeStore) SaveMatchResult(_ context.Context, rec MatchRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.records = append(s.records, rec)
	return nil
}

func (s *fakeStore) all() []MatchRecord {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]MatchRecord(nil), s.records...)
}

type fakeSigner struct{}

func (fakeSigner) SignWin(_ context.Context, claim WinClaim) (string, error) {
	return "signed:" + claim.WinnerAddress, nil
}

type fakeInventory struct {
	mu     sync.Mutex
	counts map[string]int
}

func newFakeInventory() *fakeInventory {
	return &fakeInventory{counts: make(map[string]int)}
}

func (f *fakeInventory) key(player string, kind match.Kind) string {
	return player + "/" + string(kind)
}

func (f *fakeInventory) grant(player string, kind match.Kind, n int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.counts[f.key(player, kind)] += n
}

func (f *fakeInventory) count(player string, kind match.Kind) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.counts[f.key(player, kind)]
}

func (f *fakeInventory) Consume(_ context.Context, player string, kind match.Kind) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	k := f.key(player, kind)
	if f.counts[k] <= 0 {
		return &InventoryError{Kind: InventoryInsufficient, Player: player, PowerUp: kind}
	}
	f.counts[k]--
	return nil
}

func (f *fakeInventory) Refund(_ context.Context, player string, kind match.Kind) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.counts[f.key(player, kind)]++
	return nil
}
