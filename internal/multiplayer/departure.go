package multiplayer

import (
	"context"

	"github.com/vovakirdan/paddle-arena/internal/match"
	"github.com/vovakirdan/paddle-arena/internal/room"
)

type departure int

const (
	departDisconnect departure = iota
	departForfeit
	departLeave
)

// depart classifies a player leaving their room, in order:
//  1. staked room, host, no guest: abandonment
//  2. staked room, guest who never staked: guest leaves, room stays open
//  3. finished room: detach only, the room is kept for a rematch
//  4. anything else: the remaining player wins. An unstaked room survives an
//     explicit forfeit for a rematch; otherwise it is destroyed.
func (c *Coordinator) depart(id SessionID, cause departure) {
	sid := string(id)
	rm, ok := c.rooms.RoomOf(sid)
	if !ok {
		if cause != departDisconnect {
			c.fail(id, ErrNotInRoom)
		}
		return
	}
	if rm.IsSpectator(sid) {
		if updated, ok := c.rooms.RemoveSpectator(sid); ok {
			c.broadcastRoom(updated, SpectatorUpdateEvent{Count: len(updated.Spectators)})
		}
		if cause != departDisconnect {
			c.reply(id, RoomLeftEvent{RoomCode: rm.Code})
		}
		return
	}

	switch {
	case rm.IsStaked && rm.IsHost(sid) && rm.Guest == nil:
		c.abandon(id, rm)
	case rm.IsStaked && rm.IsGuest(sid) && !rm.GuestStaked:
		c.guestLeftBeforeStaking(id, rm, cause == departDisconnect)
	case rm.Status == room.StatusFinished:
		c.leaveFinished(id, rm, cause)
	default:
		c.leaveActive(id, rm, cause)
	}
}

func (c *Coordinator) abandon(id SessionID, rm room.Room) {
	if _, ok := c.rooms.MarkAbandoned(rm.Code); !ok {
		return
	}
	c.logger.Info("staked room abandoned", "code", rm.Code, "host", rm.Host.Name)

	hostAddr := rm.Stake.HostAddress
	if hostAddr == "" {
		hostAddr = rm.Host.Wallet
	}
	if c.collab.Abandon == nil {
		c.reply(id, AbandonmentProcessedEvent{RoomCode: rm.Code, Message: "Room abandoned"})
		return
	}
	marker := c.collab.Abandon
	code := rm.Code
	c.async(func(ctx context.Context) CoordinatorMessage {
		refund, err := marker.MarkAbandoned(ctx, code, hostAddr)
		return abandonDoneMsg{session: id, code: code, refund: refund, err: err}
	})
}

func (c *Coordinator) handleAbandonDone(m abandonDoneMsg) {
	if m.err != nil {
		c.logger.Warn("mark abandoned failed", "code", m.code, "error", m.err)
		c.reply(m.session, AbandonmentProcessedEvent{
			RoomCode: m.code,
			Message:  "Room abandoned; refund authorization is pending",
		})
		return
	}
	refund := m.refund
	c.reply(m.session, AbandonmentProcessedEvent{
		RoomCode: m.code,
		Message:  "Room abandoned; stake refund authorized",
		Refund:   &refund,
	})
}

// guestLeftBeforeStaking frees or detaches the guest seat of a staked room
// and tells the host.
func (c *Coordinator) guestLeftBeforeStaking(id SessionID, rm room.Room, detachOnly bool) {
	sid := string(id)
	var ok bool
	if detachOnly {
		_, ok = c.rooms.DetachPlayerFromRoom(sid)
	} else {
		_, ok = c.rooms.RemovePlayerFromRoom(sid)
	}
	if !ok {
		return
	}
	c.logger.Info("guest left before staking", "code", rm.Code, "guest", rm.Guest.Name, "detached", detachOnly)
	c.reply(SessionID(rm.Host.Session), GuestLeftBeforeStakingEvent{RoomCode: rm.Code, Guest: rm.Guest.Name})
	if !detachOnly {
		c.reply(id, RoomLeftEvent{RoomCode: rm.Code})
	}
}

// leaveFinished keeps the seat of a finished room so the player can come
// back from the game-over screen.
func (c *Coordinator) leaveFinished(id SessionID, rm room.Room, cause departure) {
	c.rooms.DetachPlayerFromRoom(string(id))
	if cause == departDisconnect {
		return
	}
	for _, name := range c.presence.RemoveSession(id) {
		c.leftGameOver(name, id)
	}
	c.reply(id, RoomLeftEvent{RoomCode: rm.Code})
}

// leaveActive ends a running match in favour of the remaining player, or
// simply vacates the seat when no match is running.
func (c *Coordinator) leaveActive(id SessionID, rm room.Room, cause departure) {
	sid := string(id)
	leaver := rm.Host
	winnerIdx := 1
	if rm.IsGuest(sid) {
		leaver = *rm.Guest
		winnerIdx = 0
	}

	if loop := c.stopLoop(rm.Code); loop != nil {
		st, _ := c.sim.Get(rm.Code)
		if st.Status == match.StatusFinished {
			// Decided on points before the departure was handled.
			c.logger.Info("departure after match end", "code", rm.Code, "leaver", leaver.Name)
			c.concludeMatch(rm.Code, st, st.Winner, EndCompleted, true)
			if after, ok := c.rooms.Get(rm.Code); ok {
				if cause == departForfeit {
					c.rooms.DetachPlayerFromRoom(sid)
				} else {
					c.leaveFinished(id, after, cause)
				}
			}
			return
		}

		winner, _ := rm.Opponent(leaver.Name)
		reason := EndForfeit
		if cause == departDisconnect {
			reason = EndDisconnect
			c.broadcastRoom(rm, OpponentLeftEvent{RoomCode: rm.Code, Player: leaver.Name})
		} else {
			c.broadcastRoom(rm, PlayerForfeitedEvent{ForfeitedPlayer: leaver.Name, Winner: winner.Name})
		}
		c.logger.Info("match ended early", "code", rm.Code, "leaver", leaver.Name, "reason", reason)
		keep := cause == departForfeit
		c.concludeMatch(rm.Code, st, winnerIdx, reason, keep)
		if keep {
			c.rooms.DetachPlayerFromRoom(sid)
		}
		return
	}

	if _, ok := c.rooms.RemovePlayerFromRoom(sid); !ok {
		return
	}
	for _, other := range rm.Sessions() {
		if other != sid {
			c.reply(SessionID(other), OpponentLeftEvent{RoomCode: rm.Code, Player: leaver.Name})
		}
	}
	if cause != departDisconnect {
		c.reply(id, RoomLeftEvent{RoomCode: rm.Code})
	}
}

func (c *Coordinator) handleLeaveRoomBeforeStaking(m LeaveRoomBeforeStakingMsg) {
	sid := string(m.SessionID)
	rm, ok := c.rooms.RoomOf(sid)
	if !ok || (m.RoomCode != "" && room.NormalizeCode(m.RoomCode) != rm.Code) {
		c.fail(m.SessionID, ErrNotInRoom)
		return
	}
	if !rm.IsGuest(sid) || !rm.IsStaked || rm.GuestStaked {
		c.depart(m.SessionID, departLeave)
		return
	}
	c.guestLeftBeforeStaking(m.SessionID, rm, false)
}

func (c *Coordinator) handleLeaveAbandonedRoom(m LeaveAbandonedRoomMsg) {
	rm, ok := c.rooms.Get(m.RoomCode)
	if !ok {
		c.fail(m.SessionID, room.ErrRoomNotFound)
		return
	}
	if rm.Status != room.StatusAbandoned {
		c.fail(m.SessionID, ErrNotAbandoned)
		return
	}
	ident, _ := c.sessions.Identity(m.SessionID)
	if ident.Name != rm.Host.Name {
		c.fail(m.SessionID, ErrNotInRoom)
		return
	}
	c.rooms.DestroyRoom(rm.Code)
	c.logger.Info("abandoned room closed", "code", rm.Code)
	c.reply(m.SessionID, RoomLeftEvent{RoomCode: rm.Code})
}
