package multiplayer

import (
	"github.com/vovakirdan/paddle-arena/internal/room"
)

// finishedRoomOf finds the rematch-window room of a player by name.
func (c *Coordinator) finishedRoomOf(name string) (room.Room, error) {
	rm, ok := c.rooms.FindByPlayerName(name)
	if !ok {
		return room.Room{}, ErrNotInRematchWindow
	}
	if rm.IsStaked {
		return room.Room{}, ErrStakedRematch
	}
	if rm.Status != room.StatusFinished {
		return room.Room{}, ErrNotInRematchWindow
	}
	return rm, nil
}

func (c *Coordinator) playerName(id SessionID) string {
	ident, _ := c.sessions.Identity(id)
	return ident.Name
}

func (c *Coordinator) handleJoinGameOverRoom(m JoinGameOverRoomMsg) {
	ident, ok := c.sessions.Identity(m.SessionID)
	if !ok {
		return
	}
	if ident.Name == "" {
		c.sessions.UpdateIdentity(m.SessionID, Identity{Name: m.Username})
	}

	rm, err := c.finishedRoomOf(m.Username)
	if err != nil {
		c.fail(m.SessionID, err)
		return
	}
	c.presence.Set(m.Username, m.SessionID)
	c.rooms.AttachPlayerSocket(rm.Code, m.Username, string(m.SessionID))

	c.mu.Lock()
	if c.gameOver[rm.Code] == nil {
		c.gameOver[rm.Code] = make(map[string]bool)
	}
	c.gameOver[rm.Code][m.Username] = true
	c.mu.Unlock()

	opp, _ := rm.Opponent(m.Username)
	c.reply(m.SessionID, GameOverJoinedEvent{
		RoomCode:        rm.Code,
		Opponent:        opp.Name,
		OpponentPresent: c.presence.Has(opp.Name),
	})
}

func (c *Coordinator) handleRequestRematch(m RequestRematchMsg) {
	name := c.playerName(m.SessionID)
	rm, err := c.finishedRoomOf(name)
	if err != nil {
		c.fail(m.SessionID, err)
		return
	}
	opp, _ := rm.Opponent(name)
	oppSession, present := c.presence.Get(opp.Name)
	if !present {
		c.fail(m.SessionID, ErrOpponentUnavailable)
		return
	}

	c.mu.Lock()
	c.rematch[rm.Code] = name
	c.mu.Unlock()

	c.logger.Info("rematch requested", "code", rm.Code, "from", name)
	c.reply(oppSession, RematchRequestedEvent{From: name})
	c.reply(m.SessionID, RematchSentEvent{To: opp.Name})
}

func (c *Coordinator) handleRematchResponse(m RematchResponseMsg) {
	name := c.playerName(m.SessionID)
	rm, err := c.finishedRoomOf(name)
	if err != nil {
		c.fail(m.SessionID, err)
		return
	}

	c.mu.Lock()
	requester, pending := c.rematch[rm.Code]
	if pending && requester != name {
		delete(c.rematch, rm.Code)
	}
	c.mu.Unlock()
	if !pending || requester == name {
		c.fail(m.SessionID, ErrNoPendingRematch)
		return
	}

	reqSession, present := c.presence.Get(requester)
	if !m.Accepted {
		c.logger.Info("rematch declined", "code", rm.Code, "by", name)
		if present {
			c.reply(reqSession, RematchDeclinedEvent{By: name})
		}
		return
	}
	if !present {
		c.fail(m.SessionID, ErrOpponentUnavailable)
		return
	}

	c.rooms.AttachPlayerSocket(rm.Code, requester, string(reqSession))
	c.rooms.AttachPlayerSocket(rm.Code, name, string(m.SessionID))
	c.presence.RemoveSession(reqSession)
	c.presence.RemoveSession(m.SessionID)

	c.logger.Info("rematch accepted", "code", rm.Code, "players", []string{requester, name})
	c.startMatch(rm.Code)
}

func (c *Coordinator) handleLeaveGameOver(m LeaveGameOverMsg) {
	names := c.presence.RemoveSession(m.SessionID)
	if len(names) == 0 {
		c.fail(m.SessionID, ErrNotInRematchWindow)
		return
	}
	for _, name := range names {
		c.leftGameOver(name, m.SessionID)
	}
}

// leftGameOver handles a player leaving the game-over screen. Pending
// rematches are dropped and the opponent is told. The room is torn down
// once both former participants have been and gone.
func (c *Coordinator) leftGameOver(name string, id SessionID) {
	rm, ok := c.rooms.FindByPlayerName(name)
	if !ok || rm.Status != room.StatusFinished {
		return
	}
	if p, _ := rm.PlayerByName(name); p.Session == string(id) {
		c.rooms.DetachPlayerFromRoom(string(id))
	}

	opp, _ := rm.Opponent(name)
	c.mu.Lock()
	delete(c.rematch, rm.Code)
	oppSeen := c.gameOver[rm.Code][opp.Name]
	c.mu.Unlock()

	if oppSession, present := c.presence.Get(opp.Name); present {
		c.reply(oppSession, OpponentLeftEvent{RoomCode: rm.Code, Player: name})
		return
	}
	if !oppSeen {
		return
	}
	if _, ok := c.rooms.DestroyRoom(rm.Code); ok {
		c.forgetRoom(rm.Code)
		c.logger.Info("finished room closed", "code", rm.Code)
	}
}
