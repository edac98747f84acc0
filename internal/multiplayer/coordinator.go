package multiplayer

import (
	"context"
	"io"
	"sync"
	"sync/atomic"
	"time"

	"github.com/charmbracelet/log"
	"github.com/go-co-op/gocron/v2"

	"github.com/vovakirdan/paddle-arena/internal/match"
	"github.com/vovakirdan/paddle-arena/internal/room"
)

// PowerUpConfig holds the power-up effect tunables.
type PowerUpConfig struct {
	SpeedBoostMultiplier float64
	SpeedBoostDuration   time.Duration
	MultiballDuration    time.Duration
}

// CoordinatorConfig holds configuration for the coordinator.
type CoordinatorConfig struct {
	TickRate      int           // Room loop rate (Hz)
	PauseDuration time.Duration // Auto-resume delay after a pause
	StaleRoomAge  time.Duration // Waiting/abandoned rooms older than this are swept
	RematchTTL    time.Duration // How long a finished room waits for a rematch
	SweepInterval time.Duration // How often the sweep runs
	CallTimeout   time.Duration // Deadline for external collaborator calls
	PowerUps      PowerUpConfig
}

// DefaultCoordinatorConfig returns sensible defaults.
func DefaultCoordinatorConfig() CoordinatorConfig {
	return CoordinatorConfig{
		TickRate:      60,
		PauseDuration: 10 * time.Second,
		StaleRoomAge:  30 * time.Minute,
		RematchTTL:    10 * time.Minute,
		SweepInterval: time.Minute,
		CallTimeout:   10 * time.Second,
		PowerUps: PowerUpConfig{
			SpeedBoostMultiplier: 1.5,
			SpeedBoostDuration:   5 * time.Second,
			MultiballDuration:    8 * time.Second,
		},
	}
}

// Coordinator turns session intents into room and match operations.
// All intents are handled on one goroutine; per-room work runs in that
// room's OnlineMatch loop and external calls run in their own goroutines
// that post their results back as messages.
type Coordinator struct {
	config   CoordinatorConfig
	rooms    *room.Registry
	sim      *match.Simulator
	sessions *SessionRegistry
	presence *PresenceRegistry
	collab   Collaborators
	logger   *log.Logger

	scheduler gocron.Scheduler

	mu       sync.RWMutex
	loops    map[string]*OnlineMatch    // room code -> running loop
	rematch  map[string]string          // room code -> requesting player
	gameOver map[string]map[string]bool // room code -> players that reached the game-over screen

	msgChan  chan CoordinatorMessage
	done     chan struct{}
	stopped  chan struct{}
	started  atomic.Bool
	stopOnce sync.Once
	wg       sync.WaitGroup
}

// NewCoordinator creates a new coordinator. A nil logger discards output.
func NewCoordinator(
	cfg CoordinatorConfig,
	rooms *room.Registry,
	sim *match.Simulator,
	sessions *SessionRegistry,
	logger *log.Logger,
) *Coordinator {
	if logger == nil {
		logger = log.New(io.Discard)
	}
	def := DefaultCoordinatorConfig()
	if cfg.TickRate <= 0 {
		cfg.TickRate = def.TickRate
	}
	if cfg.PauseDuration <= 0 {
		cfg.PauseDuration = def.PauseDuration
	}
	if cfg.CallTimeout <= 0 {
		cfg.CallTimeout = def.CallTimeout
	}
	if cfg.SweepInterval <= 0 {
		cfg.SweepInterval = def.SweepInterval
	}
	return &Coordinator{
		config:   cfg,
		rooms:    rooms,
		sim:      sim,
		sessions: sessions,
		presence: NewPresenceRegistry(),
		logger:   logger,
		loops:    make(map[string]*OnlineMatch),
		rematch:  make(map[string]string),
		gameOver: make(map[string]map[string]bool),
		msgChan:  make(chan CoordinatorMessage, 256),
		done:     make(chan struct{}),
		stopped:  make(chan struct{}),
	}
}

// SetCollaborators installs the external services. Call before Start.
func (c *Coordinator) SetCollaborators(collab Collaborators) {
	c.collab = collab
}

// Start begins message processing and the periodic room sweep.
func (c *Coordinator) Start() error {
	sched, err := gocron.NewScheduler()
	if err != nil {
		return err
	}
	_, err = sched.NewJob(
		gocron.DurationJob(c.config.SweepInterval),
		gocron.NewTask(func() { c.Send(sweepMsg{}) }),
		gocron.WithName("room-sweep"),
		gocron.WithSingletonMode(gocron.LimitModeReschedule),
	)
	if err != nil {
		_ = sched.Shutdown()
		return err
	}
	c.scheduler = sched
	c.started.Store(true)

	go c.processMessages()
	sched.Start()
	return nil
}

// Stop shuts down the coordinator: the sweep stops, every room loop is
// cancelled and in-flight collaborator calls are awaited.
func (c *Coordinator) Stop() {
	c.stopOnce.Do(func() {
		close(c.done)
		if c.started.Load() {
			<-c.stopped
		}
		if c.scheduler != nil {
			if err := c.scheduler.Shutdown(); err != nil {
				c.logger.Warn("scheduler shutdown", "error", err)
			}
		}

		c.mu.Lock()
		loops := c.loops
		c.loops = make(map[string]*OnlineMatch)
		c.mu.Unlock()
		for code, loop := range loops {
			loop.Cancel()
			c.sim.EndGame(code)
		}
		c.wg.Wait()
	})
}

// Send queues a message for the coordinator goroutine.
func (c *Coordinator) Send(msg CoordinatorMessage) {
	select {
	case c.msgChan <- msg:
	case <-c.done:
	}
}

// Sessions returns the session registry transports register with.
func (c *Coordinator) Sessions() *SessionRegistry {
	return c.sessions
}

// Presence returns the game-over presence registry.
func (c *Coordinator) Presence() *PresenceRegistry {
	return c.presence
}

func (c *Coordinator) processMessages() {
	defer close(c.stopped)
	for {
		select {
		case msg := <-c.msgChan:
			c.handleMessage(msg)
		case <-c.done:
			return
		}
	}
}

func (c *Coordinator) handleMessage(msg CoordinatorMessage) {
	switch m := msg.(type) {
	case CreateRoomMsg:
		c.handleCreateRoom(m)
	case JoinRoomMsg:
		c.handleJoinRoom(m)
	case FindRandomMatchMsg:
		c.handleFindRandomMatch(m)
	case Player2StakeCompletedMsg:
		c.handlePlayer2StakeCompleted(m)
	case PaddleMoveMsg:
		c.submit(m.SessionID, paddleIntent{session: m.SessionID, position: m.Position})
	case PauseGameMsg:
		c.submit(m.SessionID, pauseIntent{session: m.SessionID})
	case ActivatePowerUpMsg:
		c.handleActivatePowerUp(m)
	case ForfeitGameMsg:
		c.depart(m.SessionID, departForfeit)
	case LeaveRoomMsg:
		c.depart(m.SessionID, departLeave)
	case LeaveRoomBeforeStakingMsg:
		c.handleLeaveRoomBeforeStaking(m)
	case LeaveAbandonedRoomMsg:
		c.handleLeaveAbandonedRoom(m)
	case RequestRematchMsg:
		c.handleRequestRematch(m)
	case RematchResponseMsg:
		c.handleRematchResponse(m)
	case JoinGameOverRoomMsg:
		c.handleJoinGameOverRoom(m)
	case LeaveGameOverMsg:
		c.handleLeaveGameOver(m)
	case SpectateGameMsg:
		c.handleSpectateGame(m)
	case LeaveSpectateMsg:
		c.handleLeaveSpectate(m)
	case GetActiveGamesMsg:
		c.reply(m.SessionID, ActiveGamesListEvent{Games: c.rooms.GetActiveGames()})
	case SessionDisconnectedMsg:
		c.handleSessionDisconnected(m)

	case matchEndedMsg:
		c.handleMatchEnded(m)
	case createLookupMsg:
		c.handleCreateLookup(m)
	case joinLookupMsg:
		c.handleJoinLookup(m)
	case stakeConfirmMsg:
		c.handleStakeConfirm(m)
	case abandonDoneMsg:
		c.handleAbandonDone(m)
	case powerUpConsumedMsg:
		c.handlePowerUpConsumed(m)
	case sweepMsg:
		c.sweep()
	}
}

func (c *Coordinator) reply(id SessionID, evt Event) {
	c.sessions.Send(id, evt)
}

func (c *Coordinator) fail(id SessionID, err error) {
	c.sessions.Send(id, errorEvent(err))
}

func (c *Coordinator) broadcastRoom(rm room.Room, evt Event) {
	c.sessions.Broadcast(rm.Sessions(), evt)
}

// async runs fn off the coordinator goroutine with the collaborator
// deadline and posts whatever message it returns.
func (c *Coordinator) async(fn func(ctx context.Context) CoordinatorMessage) {
	c.wg.Add(1)
	go func() {
		defer c.wg.Done()
		ctx, cancel := context.WithTimeout(context.Background(), c.config.CallTimeout)
		defer cancel()
		if msg := fn(ctx); msg != nil {
			c.Send(msg)
		}
	}()
}

// identify merges the identity restated in a payload into the session and
// returns the result. Callers reject seated sessions first so a refused
// request cannot rename a player who holds a seat.
func (c *Coordinator) identify(id SessionID, update Identity) (Identity, bool) {
	ident, ok := c.sessions.UpdateIdentity(id, update)
	if !ok {
		return Identity{}, false
	}
	if ident.Name == "" {
		c.fail(id, ErrMissingName)
		return Identity{}, false
	}
	return ident, true
}

func seatFor(id SessionID, ident Identity) room.Player {
	return room.Player{Name: ident.Name, Wallet: ident.Wallet, Session: string(id)}
}

func (c *Coordinator) handleCreateRoom(m CreateRoomMsg) {
	if _, in := c.rooms.RoomOf(string(m.SessionID)); in {
		c.fail(m.SessionID, room.ErrAlreadyInRoom)
		return
	}
	ident, ok := c.identify(m.SessionID, m.Player)
	if !ok {
		return
	}

	code := room.NormalizeCode(m.RoomCode)
	if code != "" && c.collab.Escrow != nil {
		escrow := c.collab.Escrow
		c.async(func(ctx context.Context) CoordinatorMessage {
			info, found, err := escrow.LookupStake(ctx, code)
			return createLookupMsg{req: m, stake: info, found: found, err: err}
		})
		return
	}
	c.createRoom(m.SessionID, ident, code, nil)
}

func (c *Coordinator) handleCreateLookup(m createLookupMsg) {
	ident, ok := c.sessions.Identity(m.req.SessionID)
	if !ok {
		return
	}
	if m.err != nil {
		c.logger.Warn("escrow lookup failed", "code", m.req.RoomCode, "error", m.err)
		c.fail(m.req.SessionID, ErrEscrowUnavailable)
		return
	}
	if _, in := c.rooms.RoomOf(string(m.req.SessionID)); in {
		c.fail(m.req.SessionID, room.ErrAlreadyInRoom)
		return
	}
	var stake *StakeInfo
	if m.found {
		stake = &m.stake
	}
	c.createRoom(m.req.SessionID, ident, room.NormalizeCode(m.req.RoomCode), stake)
}

func (c *Coordinator) createRoom(id SessionID, ident Identity, code string, stake *StakeInfo) {
	host := seatFor(id, ident)
	var (
		rm  room.Room
		err error
	)
	if code == "" {
		rm, err = c.rooms.CreateRoom(host, stake != nil)
	} else {
		rm, err = c.rooms.CreateRoomWithCode(code, host, stake != nil)
	}
	if err != nil {
		c.fail(id, err)
		return
	}
	if stake != nil {
		addr := stake.HostAddress
		if addr == "" {
			addr = ident.Wallet
		}
		c.rooms.SetStake(rm.Code, room.Stake{Amount: stake.Amount, HostAddress: addr})
		rm, _ = c.rooms.Get(rm.Code)
	}

	c.logger.Info("room created", "code", rm.Code, "host", ident.Name, "staked", rm.IsStaked)
	c.reply(id, RoomCreatedEvent{RoomCode: rm.Code, Room: rm})
}

func (c *Coordinator) handleJoinRoom(m JoinRoomMsg) {
	sid := string(m.SessionID)
	code := room.NormalizeCode(m.RoomCode)
	if _, in := c.rooms.RoomOf(sid); in {
		err := room.ErrAlreadyInRoom
		if _, found := c.rooms.Get(code); !found {
			err = room.ErrRoomNotFound
		}
		c.fail(m.SessionID, err)
		return
	}
	ident, ok := c.identify(m.SessionID, m.Player)
	if !ok {
		return
	}

	// A guest that dropped before staking gets their seat back.
	if rm, found := c.rooms.Get(code); found && rm.IsStaked && rm.Status == room.StatusReady &&
		rm.Guest != nil && rm.Guest.Name == ident.Name && rm.Guest.Session == "" {
		if c.rooms.AttachPlayerSocket(code, ident.Name, sid) {
			rm, _ = c.rooms.Get(code)
			c.logger.Info("guest reattached", "code", code, "guest", ident.Name)
			c.afterJoin(m.SessionID, rm)
			return
		}
	}

	rm, err := c.rooms.JoinRoom(code, seatFor(m.SessionID, ident))
	if err != nil {
		c.fail(m.SessionID, err)
		return
	}
	c.logger.Info("player joined", "code", rm.Code, "guest", ident.Name)
	c.afterJoin(m.SessionID, rm)
}

// afterJoin either starts the match or, for a staked room whose guest has
// not staked yet, holds it until the stake is confirmed.
func (c *Coordinator) afterJoin(id SessionID, rm room.Room) {
	if !rm.IsStaked || rm.GuestStaked {
		c.roomReady(rm)
		return
	}
	if c.collab.Escrow == nil {
		c.awaitGuestStake(rm)
		return
	}
	escrow := c.collab.Escrow
	c.async(func(ctx context.Context) CoordinatorMessage {
		info, found, err := escrow.LookupStake(ctx, rm.Code)
		return joinLookupMsg{session: id, room: rm, stake: info, found: found, err: err}
	})
}

func (c *Coordinator) handleJoinLookup(m joinLookupMsg) {
	rm, ok := c.rooms.Get(m.room.Code)
	if !ok || !rm.IsGuest(string(m.session)) {
		return
	}
	if m.err != nil {
		c.logger.Warn("escrow lookup failed", "code", rm.Code, "error", m.err)
	}
	if m.err == nil && m.found && m.stake.GuestStaked {
		if marked, ok := c.rooms.MarkGuestStaked(rm.Code); ok {
			c.roomReady(marked)
			return
		}
	}
	c.awaitGuestStake(rm)
}

func (c *Coordinator) awaitGuestStake(rm room.Room) {
	if rm.Guest == nil {
		return
	}
	c.reply(SessionID(rm.Guest.Session), StakedMatchJoinedEvent{
		RoomCode:       rm.Code,
		StakeAmount:    rm.Stake.Amount,
		Player1Address: rm.Stake.HostAddress,
	})
	c.broadcastRoom(rm, WaitingForPlayer2StakeEvent{RoomCode: rm.Code})
}

func (c *Coordinator) handleFindRandomMatch(m FindRandomMatchMsg) {
	if _, in := c.rooms.RoomOf(string(m.SessionID)); in {
		c.fail(m.SessionID, room.ErrAlreadyInRoom)
		return
	}
	ident, ok := c.identify(m.SessionID, m.Player)
	if !ok {
		return
	}

	if open, found := c.rooms.FindOpenRoom(); found && open.Host.Name != ident.Name {
		rm, err := c.rooms.JoinRoom(open.Code, seatFor(m.SessionID, ident))
		if err == nil {
			c.logger.Info("random match found", "code", rm.Code, "guest", ident.Name)
			c.roomReady(rm)
			return
		}
	}

	rm, err := c.rooms.CreateRoom(seatFor(m.SessionID, ident), false)
	if err != nil {
		c.fail(m.SessionID, err)
		return
	}
	c.reply(m.SessionID, WaitingForOpponentEvent{RoomCode: rm.Code})
}

func (c *Coordinator) handlePlayer2StakeCompleted(m Player2StakeCompletedMsg) {
	code := room.NormalizeCode(m.RoomCode)
	rm, ok := c.rooms.Get(code)
	if !ok {
		c.fail(m.SessionID, room.ErrRoomNotFound)
		return
	}
	if !rm.IsGuest(string(m.SessionID)) {
		c.fail(m.SessionID, ErrNotInRoom)
		return
	}
	if !rm.IsStaked || rm.GuestStaked || c.collab.Escrow == nil {
		if rm.IsStaked && !rm.GuestStaked {
			rm, _ = c.rooms.MarkGuestStaked(code)
		}
		c.roomReady(rm)
		return
	}
	escrow := c.collab.Escrow
	c.async(func(ctx context.Context) CoordinatorMessage {
		info, found, err := escrow.LookupStake(ctx, code)
		return stakeConfirmMsg{session: m.SessionID, code: code, stake: info, found: found, err: err}
	})
}

func (c *Coordinator) handleStakeConfirm(m stakeConfirmMsg) {
	rm, ok := c.rooms.Get(m.code)
	if !ok || !rm.IsGuest(string(m.session)) {
		return
	}
	if m.err != nil {
		c.logger.Warn("escrow lookup failed", "code", m.code, "error", m.err)
		c.fail(m.session, ErrEscrowUnavailable)
		return
	}
	if !m.found || !m.stake.GuestStaked {
		c.fail(m.session, ErrStakeNotConfirmed)
		return
	}
	marked, ok := c.rooms.MarkGuestStaked(m.code)
	if !ok {
		return
	}
	c.logger.Info("guest stake confirmed", "code", m.code, "guest", marked.Guest.Name)
	c.roomReady(marked)
}

// roomReady announces a full room and starts its match.
func (c *Coordinator) roomReady(rm room.Room) {
	if rm.Status != room.StatusReady {
		return
	}
	c.broadcastRoom(rm, RoomReadyEvent{Room: rm})
	c.startMatch(rm.Code)
}

func (c *Coordinator) loop(code string) *OnlineMatch {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.loops[code]
}

// startMatch moves the room to playing, creates a fresh Match under the
// room code and starts its loop.
func (c *Coordinator) startMatch(code string) {
	if c.loop(code) != nil {
		return
	}
	if !c.rooms.StartGame(code) {
		c.logger.Warn("room cannot start", "code", code)
		return
	}
	rm, _ := c.rooms.Get(code)
	st := c.sim.CreateGame(code,
		match.Player{Name: rm.Host.Name, Wallet: rm.Host.Wallet, Session: rm.Host.Session},
		match.Player{Name: rm.Guest.Name, Wallet: rm.Guest.Wallet, Session: rm.Guest.Session},
	)
	loop := NewOnlineMatch(code, c.sim, c.rooms, c.sessions, c.config, c.logger.With("room", code))

	c.mu.Lock()
	c.loops[code] = loop
	delete(c.rematch, code)
	delete(c.gameOver, code)
	c.mu.Unlock()

	c.logger.Info("match started", "code", code, "host", rm.Host.Name, "guest", rm.Guest.Name)
	c.broadcastRoom(rm, GameStartEvent{State: st})
	loop.Start(c.onLoopEnd)
}

// onLoopEnd runs on the loop goroutine.
func (c *Coordinator) onLoopEnd(m *OnlineMatch, res match.Result) {
	select {
	case c.msgChan <- matchEndedMsg{loop: m, result: res}:
	case <-c.done:
	case <-m.Stopping():
	}
}

// stopLoop detaches and synchronously cancels the room's loop.
func (c *Coordinator) stopLoop(code string) *OnlineMatch {
	c.mu.Lock()
	loop := c.loops[code]
	delete(c.loops, code)
	c.mu.Unlock()
	if loop != nil {
		loop.Cancel()
	}
	return loop
}

func (c *Coordinator) handleMatchEnded(m matchEndedMsg) {
	code := m.loop.Code()
	c.mu.Lock()
	if c.loops[code] != m.loop {
		c.mu.Unlock()
		return
	}
	delete(c.loops, code)
	c.mu.Unlock()
	m.loop.Cancel()

	if !m.result.GameOver {
		c.sim.EndGame(code)
		return
	}
	c.concludeMatch(code, m.result.State, m.result.Winner, EndCompleted, true)
}

// submit forwards a per-room intent to the sender's room loop.
func (c *Coordinator) submit(id SessionID, in intent) {
	rm, ok := c.rooms.RoomOf(string(id))
	if !ok {
		c.fail(id, ErrNotInRoom)
		return
	}
	loop := c.loop(rm.Code)
	if loop == nil {
		c.fail(id, ErrNotInMatch)
		return
	}
	if !loop.Submit(in) {
		c.fail(id, ErrRoomBusy)
	}
}

func (c *Coordinator) handleSpectateGame(m SpectateGameMsg) {
	name := m.SpectatorName
	if name == "" {
		ident, _ := c.sessions.Identity(m.SessionID)
		name = ident.Name
	}
	rm, err := c.rooms.AddSpectator(m.RoomCode, room.Spectator{Name: name, Session: string(m.SessionID)})
	if err != nil {
		c.fail(m.SessionID, err)
		return
	}
	evt := SpectateStartEvent{RoomCode: rm.Code, Room: rm}
	if st, ok := c.sim.Get(rm.Code); ok {
		evt.Match = &st
	}
	c.reply(m.SessionID, evt)
	c.broadcastRoom(rm, SpectatorUpdateEvent{Count: len(rm.Spectators)})
}

func (c *Coordinator) handleLeaveSpectate(m LeaveSpectateMsg) {
	rm, ok := c.rooms.RemoveSpectator(string(m.SessionID))
	if !ok {
		c.fail(m.SessionID, ErrNotInRoom)
		return
	}
	c.reply(m.SessionID, RoomLeftEvent{RoomCode: rm.Code})
	c.broadcastRoom(rm, SpectatorUpdateEvent{Count: len(rm.Spectators)})
}

func (c *Coordinator) handleSessionDisconnected(m SessionDisconnectedMsg) {
	c.depart(m.SessionID, departDisconnect)
	for _, name := range c.presence.RemoveSession(m.SessionID) {
		c.leftGameOver(name, m.SessionID)
	}
	c.sessions.Unregister(m.SessionID)
}

// sweep drops stale waiting and abandoned rooms and expired rematch windows.
func (c *Coordinator) sweep() {
	for _, rm := range c.rooms.CleanupStaleRooms(c.config.StaleRoomAge) {
		c.logger.Info("stale room removed", "code", rm.Code, "status", rm.Status)
		c.broadcastRoom(rm, RoomLeftEvent{RoomCode: rm.Code})
	}
	for _, rm := range c.rooms.ExpireFinishedRooms(c.config.RematchTTL) {
		c.logger.Info("rematch window expired", "code", rm.Code)
		c.forgetRoom(rm.Code)
	}
}

func (c *Coordinator) forgetRoom(code string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.rematch, code)
	delete(c.gameOver, code)
}

// LoopCount returns the number of running room loops.
func (c *Coordinator) LoopCount() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.loops)
}

// HasLoop reports whether the room has a running loop.
func (c *Coordinator) HasLoop(code string) bool {
	return c.loop(room.NormalizeCode(code)) != nil
}

// PendingRematch returns the player waiting on a rematch answer in the room.
func (c *Coordinator) PendingRematch(code string) (string, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	name, ok := c.rematch[room.NormalizeCode(code)]
	return name, ok
}
