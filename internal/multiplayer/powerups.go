package multiplayer

import (
	"context"

	"github.com/vovakirdan/paddle-arena/internal/match"
)

func (c *Coordinator) handleActivatePowerUp(m ActivatePowerUpMsg) {
	kind, ok := match.ParseKind(m.Kind)
	if !ok {
		c.fail(m.SessionID, ErrUnknownPowerUp)
		return
	}
	rm, ok := c.rooms.RoomOf(string(m.SessionID))
	if !ok {
		c.fail(m.SessionID, ErrNotInRoom)
		return
	}
	if c.loop(rm.Code) == nil {
		c.fail(m.SessionID, ErrNotInMatch)
		return
	}
	idx, ok := c.sim.PlayerIndex(rm.Code, string(m.SessionID))
	if !ok {
		c.fail(m.SessionID, match.ErrUnknownPlayer)
		return
	}
	ident, _ := c.sessions.Identity(m.SessionID)

	if c.collab.Inventory == nil {
		c.applyPowerUp(m.SessionID, rm.Code, idx, ident, kind, false)
		return
	}
	inv := c.collab.Inventory
	key := ident.InventoryKey()
	code := rm.Code
	c.async(func(ctx context.Context) CoordinatorMessage {
		err := inv.Consume(ctx, key, kind)
		return powerUpConsumedMsg{session: m.SessionID, code: code, index: idx, player: ident, kind: kind, err: err}
	})
}

func (c *Coordinator) handlePowerUpConsumed(m powerUpConsumedMsg) {
	if m.err != nil {
		c.logger.Debug("power-up rejected", "player", m.player.Name, "kind", m.kind, "error", m.err)
		c.fail(m.session, m.err)
		return
	}
	c.applyPowerUp(m.session, m.code, m.index, m.player, m.kind, true)
}

// applyPowerUp hands the activation to the room loop. A consumed power-up
// that cannot be applied is refunded.
func (c *Coordinator) applyPowerUp(id SessionID, code string, idx int, player Identity, kind match.Kind, consumed bool) {
	done := func(err error) {
		if err == nil {
			return
		}
		c.sessions.Send(id, errorEvent(err))
		if consumed {
			c.refundPowerUp(player.InventoryKey(), kind)
		}
	}
	loop := c.loop(code)
	if loop == nil {
		done(ErrNotInMatch)
		return
	}
	in := powerUpIntent{index: idx, player: player.Name, kind: kind, done: done}
	if !loop.Submit(in) {
		done(ErrRoomBusy)
	}
}

func (c *Coordinator) refundPowerUp(key string, kind match.Kind) {
	inv := c.collab.Inventory
	if inv == nil {
		return
	}
	c.async(func(ctx context.Context) CoordinatorMessage {
		if err := inv.Refund(ctx, key, kind); err != nil {
			c.logger.Warn("power-up refund failed", "player", key, "kind", kind, "error", err)
		}
		return nil
	})
}
