package multiplayer

import (
	"context"
	"time"

	"github.com/vovakirdan/paddle-arena/internal/match"
	"github.com/vovakirdan/paddle-arena/internal/room"
)

// concludeMatch tears down the Match and settles the outcome. The room loop
// must already be stopped. With keep set an unstaked room is left finished
// for a rematch; a staked room, or any room without keep, is destroyed.
func (c *Coordinator) concludeMatch(code string, st match.State, winner int, reason EndReason, keep bool) {
	c.sim.EndGame(code)

	rm, ok := c.rooms.Get(code)
	if !ok {
		c.logger.Warn("match ended for a missing room", "code", code)
		return
	}
	sessions := rm.Sessions()
	if keep && !rm.IsStaked {
		c.rooms.FinishGame(code)
	} else {
		c.rooms.DestroyRoom(code)
		c.forgetRoom(code)
	}

	rec := newMatchRecord(rm, st, winner, reason, time.Now())
	c.settle(rec, winner, sessions)
}

func newMatchRecord(rm room.Room, st match.State, winner int, reason EndReason, now time.Time) MatchRecord {
	rec := MatchRecord{
		RoomCode:    rm.Code,
		Players:     [2]string{rm.Host.Name},
		Wallets:     [2]string{rm.Host.Wallet},
		Score:       st.Score,
		Reason:      reason,
		IsStaked:    rm.IsStaked,
		StakeAmount: rm.Stake.Amount,
		Duration:    st.Duration(now),
		Hits:        st.Hits,
		EndedAt:     now,
	}
	if rm.Guest != nil {
		rec.Players[1] = rm.Guest.Name
		rec.Wallets[1] = rm.Guest.Wallet
	}
	if winner == 0 || winner == 1 {
		rec.Winner = rec.Players[winner]
		rec.Loser = rec.Players[1-winner]
	}
	return rec
}

// settle runs ratings, signing and persistence off the coordinator
// goroutine, then sends gameOver to the room's sessions. A match without a
// resolvable winner and loser still announces gameOver but skips settlement.
func (c *Coordinator) settle(rec MatchRecord, winner int, sessions []string) {
	evt := GameOverEvent{
		RoomCode:    rec.RoomCode,
		Winner:      winner,
		WinnerName:  rec.Winner,
		LoserName:   rec.Loser,
		Reason:      rec.Reason,
		IsStaked:    rec.IsStaked,
		StakeAmount: rec.StakeAmount,
		Stats: MatchStats{
			Duration: rec.Duration.Seconds(),
			Hits:     rec.Hits,
		},
		FinalScore: rec.Score,
	}
	decided := rec.Winner != "" && rec.Loser != ""
	if !decided {
		c.logger.Warn("match ended without a resolvable loser", "code", rec.RoomCode, "reason", rec.Reason)
	}
	collab := c.collab

	c.wg.Add(1)
	go func() {
		defer c.wg.Done()
		ctx, cancel := context.WithTimeout(context.Background(), c.config.CallTimeout)
		defer cancel()

		if decided {
			if collab.Ratings != nil {
				ratings, err := collab.Ratings.UpdateRatings(ctx, rec.Winner, rec.Loser)
				if err != nil {
					c.logger.Warn("rating update failed", "code", rec.RoomCode, "error", err)
				} else {
					evt.Ratings = &ratings
				}
			}
			if rec.IsStaked && collab.Signer != nil {
				if addr := rec.Wallets[winner]; addr != "" {
					sig, err := collab.Signer.SignWin(ctx, WinClaim{
						RoomCode:      rec.RoomCode,
						Winner:        rec.Winner,
						WinnerAddress: addr,
						Amount:        rec.StakeAmount,
					})
					if err != nil {
						c.logger.Warn("win signature failed", "code", rec.RoomCode, "error", err)
					} else {
						rec.WinSignature = sig
						evt.WinSignature = sig
					}
				}
			}
			if collab.Results != nil {
				if err := collab.Results.SaveMatchResult(ctx, rec); err != nil {
					c.logger.Warn("saving match result failed", "code", rec.RoomCode, "error", err)
				}
			}
		}

		c.logger.Info("match over", "code", rec.RoomCode, "winner", rec.Winner, "score", rec.Score, "reason", rec.Reason)
		c.sessions.Broadcast(sessions, evt)
	}()
}
