package multiplayer

import (
	"io"
	"sync"
	"time"

	"github.com/charmbracelet/log"

	"github.com/vovakirdan/paddle-arena/internal/match"
	"github.com/vovakirdan/paddle-arena/internal/room"
)

// intent is a per-room action applied by the room's loop between ticks.
type intent interface {
	apply(m *OnlineMatch)
}

type paddleIntent struct {
	session  SessionID
	position float64
}

type pauseIntent struct {
	session SessionID
}

type powerUpIntent struct {
	index  int
	player string
	kind   match.Kind
	done   func(err error)
}

// OnlineMatch is the tick handle of one active room. Its goroutine owns the
// fixed-rate ticker, the intent queue and the pause auto-resume timer, so
// intents never interleave with a tick.
type OnlineMatch struct {
	code     string
	sim      *match.Simulator
	rooms    *room.Registry
	sessions *SessionRegistry
	powerUps PowerUpConfig
	logger   *log.Logger

	tickRate   int
	pauseFor   time.Duration
	pauseTimer *time.Timer

	intents  chan intent
	stop     chan struct{}
	stopOnce sync.Once
	done     chan struct{}
}

// NewOnlineMatch creates the loop for a room whose Match already exists in sim.
// A nil logger discards output.
func NewOnlineMatch(
	code string,
	sim *match.Simulator,
	rooms *room.Registry,
	sessions *SessionRegistry,
	cfg CoordinatorConfig,
	logger *log.Logger,
) *OnlineMatch {
	if logger == nil {
		logger = log.New(io.Discard)
	}
	return &OnlineMatch{
		code:     code,
		sim:      sim,
		rooms:    rooms,
		sessions: sessions,
		powerUps: cfg.PowerUps,
		logger:   logger,
		tickRate: max(1, cfg.TickRate),
		pauseFor: cfg.PauseDuration,
		intents:  make(chan intent, 64),
		stop:     make(chan struct{}),
		done:     make(chan struct{}),
	}
}

// Code returns the room code the loop is bound to.
func (m *OnlineMatch) Code() string {
	return m.code
}

// Stopping returns a channel closed once Cancel has been called.
func (m *OnlineMatch) Stopping() <-chan struct{} {
	return m.stop
}

// Done returns a channel closed when the loop goroutine has exited.
func (m *OnlineMatch) Done() <-chan struct{} {
	return m.done
}

// Start runs the loop. onEnd is called from the loop goroutine when the
// match finishes on its own; it is not called after Cancel.
func (m *OnlineMatch) Start(onEnd func(*OnlineMatch, match.Result)) {
	go m.run(onEnd)
}

// Cancel stops the loop and waits for it to exit. No tick or pause resume
// fires after Cancel returns, and queued power-ups are failed so their
// spend is refunded. Safe to call multiple times.
func (m *OnlineMatch) Cancel() {
	m.stopOnce.Do(func() {
		close(m.stop)
	})
	<-m.done
	m.discardPending()
}

// Submit queues an intent for the next gap between ticks. It never blocks
// and reports false when the loop is gone or saturated.
func (m *OnlineMatch) Submit(in intent) bool {
	select {
	case <-m.stop:
		return false
	default:
	}
	select {
	case m.intents <- in:
		return true
	default:
		return false
	}
}

func (m *OnlineMatch) run(onEnd func(*OnlineMatch, match.Result)) {
	defer close(m.done)
	defer m.discardPending()

	ticker := time.NewTicker(time.Second / time.Duration(m.tickRate))
	defer ticker.Stop()
	defer m.stopPauseTimer()

	for {
		select {
		case <-m.stop:
			return

		case in := <-m.intents:
			in.apply(m)

		case <-m.pauseC():
			m.pauseTimer = nil
			if m.sim.ResumeGame(m.code) {
				m.broadcast(GameResumedEvent{RoomCode: m.code})
			}

		case <-ticker.C:
			res, over := m.tick()
			if over {
				if onEnd != nil {
					onEnd(m, res)
				}
				return
			}
		}
	}
}

// tick advances the match once. It reports true when the loop should end
// with res as the outcome.
func (m *OnlineMatch) tick() (match.Result, bool) {
	res, ok := m.sim.Update(m.code)
	if !ok {
		st, exists := m.sim.Get(m.code)
		switch {
		case !exists:
			// Discarded elsewhere; nothing to report.
			return match.Result{Winner: -1, Scorer: -1}, true
		case st.Status == match.StatusFinished:
			return match.Result{State: st, GameOver: true, Winner: st.Winner, Scorer: -1}, true
		}
		return match.Result{}, false
	}
	if res.GameOver {
		return res, true
	}

	m.broadcast(GameUpdateEvent{State: res.State})
	for _, evt := range m.sim.ConsumeEvents(m.code) {
		m.broadcast(PowerUpEvent{Event: evt})
	}
	return res, false
}

func (m *OnlineMatch) broadcast(evt Event) {
	rm, ok := m.rooms.Get(m.code)
	if !ok {
		return
	}
	m.sessions.Broadcast(rm.Sessions(), evt)
}

// discardPending empties the intent queue. Power-ups in it report
// ErrNotInMatch to their callback.
func (m *OnlineMatch) discardPending() {
	for {
		select {
		case in := <-m.intents:
			if p, ok := in.(powerUpIntent); ok && p.done != nil {
				p.done(ErrNotInMatch)
			}
		default:
			return
		}
	}
}

func (m *OnlineMatch) pauseC() <-chan time.Time {
	if m.pauseTimer == nil {
		return nil
	}
	return m.pauseTimer.C
}

func (m *OnlineMatch) stopPauseTimer() {
	if m.pauseTimer != nil {
		m.pauseTimer.Stop()
		m.pauseTimer = nil
	}
}

func (in paddleIntent) apply(m *OnlineMatch) {
	st, ok := m.sim.UpdatePaddle(m.code, string(in.session), in.position)
	if !ok {
		m.sessions.Send(in.session, errorEvent(match.ErrUnknownPlayer))
		return
	}
	m.broadcast(GameUpdateEvent{State: st})
}

func (in pauseIntent) apply(m *OnlineMatch) {
	remaining, err := m.sim.PauseGame(m.code, string(in.session))
	if err != nil {
		m.sessions.Send(in.session, errorEvent(err))
		return
	}
	st, _ := m.sim.Get(m.code)
	m.stopPauseTimer()
	m.pauseTimer = time.NewTimer(m.pauseFor)
	m.logger.Debug("match paused", "code", m.code, "by", st.PausedBy)
	m.broadcast(GamePausedEvent{
		PausedBy:        st.PausedBy,
		PausesRemaining: remaining,
		ResumeIn:        m.pauseFor.Seconds(),
	})
}

func (in powerUpIntent) apply(m *OnlineMatch) {
	var err error
	switch in.kind {
	case match.KindSpeedBoost:
		err = m.sim.ActivateSpeedBoost(m.code, in.index, m.powerUps.SpeedBoostMultiplier, m.powerUps.SpeedBoostDuration)
	case match.KindShield:
		err = m.sim.ActivateShield(m.code, in.index)
	case match.KindMultiball:
		err = m.sim.ActivateMultiball(m.code, in.index, m.powerUps.MultiballDuration)
	default:
		err = ErrUnknownPowerUp
	}
	if in.done != nil {
		in.done(err)
	}
	if err != nil {
		return
	}
	m.broadcast(PowerUpActivatedEvent{Player: in.player, Index: in.index, Kind: in.kind})
}
