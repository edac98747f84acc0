package multiplayer

import (
	"github.com/vovakirdan/paddle-arena/internal/match"
	"github.com/vovakirdan/paddle-arena/internal/room"
)

// CoordinatorMessage is a message processed by the coordinator goroutine.
type CoordinatorMessage interface {
	coordinatorMessage()
}

// CreateRoomMsg creates a room. A RoomCode that has an escrow record makes
// the room staked.
type CreateRoomMsg struct {
	SessionID SessionID
	Player    Identity
	RoomCode  string
}

func (CreateRoomMsg) coordinatorMessage() {}

type JoinRoomMsg struct {
	SessionID SessionID
	Player    Identity
	RoomCode  string
}

func (JoinRoomMsg) coordinatorMessage() {}

type FindRandomMatchMsg struct {
	SessionID SessionID
	Player    Identity
}

func (FindRandomMatchMsg) coordinatorMessage() {}

// Player2StakeCompletedMsg is sent by a guest after placing their stake.
type Player2StakeCompletedMsg struct {
	SessionID SessionID
	RoomCode  string
}

func (Player2StakeCompletedMsg) coordinatorMessage() {}

type PaddleMoveMsg struct {
	SessionID SessionID
	Position  float64
}

func (PaddleMoveMsg) coordinatorMessage() {}

type PauseGameMsg struct {
	SessionID SessionID
}

func (PauseGameMsg) coordinatorMessage() {}

type ActivatePowerUpMsg struct {
	SessionID SessionID
	Kind      string
}

func (ActivatePowerUpMsg) coordinatorMessage() {}

type ForfeitGameMsg struct {
	SessionID SessionID
}

func (ForfeitGameMsg) coordinatorMessage() {}

type RequestRematchMsg struct {
	SessionID SessionID
}

func (RequestRematchMsg) coordinatorMessage() {}

type RematchResponseMsg struct {
	SessionID SessionID
	Accepted  bool
}

func (RematchResponseMsg) coordinatorMessage() {}

type LeaveRoomMsg struct {
	SessionID SessionID
}

func (LeaveRoomMsg) coordinatorMessage() {}

type LeaveRoomBeforeStakingMsg struct {
	SessionID SessionID
	RoomCode  string
}

func (LeaveRoomBeforeStakingMsg) coordinatorMessage() {}

type LeaveAbandonedRoomMsg struct {
	SessionID SessionID
	RoomCode  string
}

func (LeaveAbandonedRoomMsg) coordinatorMessage() {}

// JoinGameOverRoomMsg registers game-over presence for a player name.
type JoinGameOverRoomMsg struct {
	SessionID SessionID
	Username  string
}

func (JoinGameOverRoomMsg) coordinatorMessage() {}

type LeaveGameOverMsg struct {
	SessionID SessionID
}

func (LeaveGameOverMsg) coordinatorMessage() {}

type SpectateGameMsg struct {
	SessionID     SessionID
	RoomCode      string
	SpectatorName string
}

func (SpectateGameMsg) coordinatorMessage() {}

type LeaveSpectateMsg struct {
	SessionID SessionID
}

func (LeaveSpectateMsg) coordinatorMessage() {}

type GetActiveGamesMsg struct {
	SessionID SessionID
}

func (GetActiveGamesMsg) coordinatorMessage() {}

// SessionDisconnectedMsg is sent by a transport when a session closes.
type SessionDisconnectedMsg struct {
	SessionID SessionID
}

func (SessionDisconnectedMsg) coordinatorMessage() {}

// Internal messages posted back by room loops and collaborator calls.

type matchEndedMsg struct {
	loop   *OnlineMatch
	result match.Result
}

func (matchEndedMsg) coordinatorMessage() {}

type createLookupMsg struct {
	req   CreateRoomMsg
	stake StakeInfo
	found bool
	err   error
}

func (createLookupMsg) coordinatorMessage() {}

type joinLookupMsg struct {
	session SessionID
	room    room.Room
	stake   StakeInfo
	found   bool
	err     error
}

func (joinLookupMsg) coordinatorMessage() {}

type stakeConfirmMsg struct {
	session SessionID
	code    string
	stake   StakeInfo
	found   bool
	err     error
}

func (stakeConfirmMsg) coordinatorMessage() {}

type abandonDoneMsg struct {
	session SessionID
	code    string
	refund  RefundAuthorization
	err     error
}

func (abandonDoneMsg) coordinatorMessage() {}

type powerUpConsumedMsg struct {
	session SessionID
	code    string
	index   int
	player  Identity
	kind    match.Kind
	err     error
}

func (powerUpConsumedMsg) coordinatorMessage() {}

type sweepMsg struct{}

func (sweepMsg) coordinatorMessage() {}
