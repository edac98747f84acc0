package match

import "time"

// Kind names a power-up.
type Kind string

const (
	KindSpeedBoost Kind = "speedBoost"
	KindShield     Kind = "shield"
	KindMultiball  Kind = "multiball"
)

// ParseKind validates a power-up name.
func ParseKind(s string) (Kind, bool) {
	switch k := Kind(s); k {
	case KindSpeedBoost, KindShield, KindMultiball:
		return k, true
	}
	return "", false
}

// EventType names a simulator occurrence that clients should hear about.
type EventType string

const (
	EventShieldUp       EventType = "shield-up"
	EventShieldBlock    EventType = "shield-block"
	EventSpeedBoost     EventType = "speed-boost"
	EventMultiballStart EventType = "multiball-start"
	EventMultiballEnd   EventType = "multiball-end"
)

// Event is queued by the simulator and drained once per tick.
type Event struct {
	Type   EventType `json:"type"`
	Player int       `json:"player"`
	At     time.Time `json:"at"`
}

// Effect is a timed modifier owned by one player.
type Effect struct {
	Multiplier float64   `json:"multiplier,omitempty"`
	Owner      int       `json:"owner"`
	Until      time.Time `json:"until"`
}

type powerUps struct {
	speedBoost [2]*Effect
	shield     [2]bool
	multiball  *Effect
}

// PowerUpState is the broadcast view of active effects.
type PowerUpState struct {
	SpeedBoost [2]*Effect `json:"speedBoost"`
	Shield     [2]bool    `json:"shield"`
	Multiball  *Effect    `json:"multiball,omitempty"`
}

func (g *Game) speedMultiplier(idx int) float64 {
	e := g.effects.speedBoost[idx]
	if e == nil {
		return 1
	}
	if !g.now().Before(e.Until) {
		g.effects.speedBoost[idx] = nil
		return 1
	}
	return e.Multiplier
}

func (g *Game) activateSpeedBoost(idx int, multiplier float64, d time.Duration) {
	g.effects.speedBoost[idx] = &Effect{
		Multiplier: multiplier,
		Owner:      idx,
		Until:      g.now().Add(d),
	}
	g.queue(Event{Type: EventSpeedBoost, Player: idx})
}

func (g *Game) activateShield(idx int) error {
	if g.effects.shield[idx] {
		return ErrShieldActive
	}
	g.effects.shield[idx] = true
	g.queue(Event{Type: EventShieldUp, Player: idx})
	return nil
}

func (g *Game) activateMultiball(idx int, d time.Duration) error {
	if g.effects.multiball != nil {
		return ErrMultiballActive
	}
	g.effects.multiball = &Effect{Owner: idx, Until: g.now().Add(d)}
	g.extra = append(g.extra, g.spawnBall(idx))
	g.queue(Event{Type: EventMultiballStart, Player: idx})
	return nil
}

// expireMultiball ends the shared multiball once its deadline passes.
func (g *Game) expireMultiball() {
	if g.effects.multiball != nil && !g.now().Before(g.effects.multiball.Until) {
		g.endMultiball()
	}
}

func (g *Game) endMultiball() {
	if g.effects.multiball == nil && len(g.extra) == 0 {
		return
	}
	owner := -1
	if g.effects.multiball != nil {
		owner = g.effects.multiball.Owner
	}
	g.effects.multiball = nil
	g.extra = nil
	g.queue(Event{Type: EventMultiballEnd, Player: owner})
}

func (g *Game) powerUpState() PowerUpState {
	var st PowerUpState
	for i := range g.effects.speedBoost {
		if g.speedMultiplier(i) != 1 {
			e := *g.effects.speedBoost[i]
			st.SpeedBoost[i] = &e
		}
	}
	st.Shield = g.effects.shield
	if g.effects.multiball != nil {
		e := *g.effects.multiball
		st.Multiball = &e
	}
	return st
}
