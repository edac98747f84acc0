package multiplayer

import (
	"fmt"
	"math"

	"github.com/vovakirdan/paddle-arena/internal/protocol"
)

// Inbound wire intents.
const (
	IntentCreateRoom             = "createRoom"
	IntentJoinRoom               = "joinRoom"
	IntentFindRandomMatch        = "findRandomMatch"
	IntentPlayer2StakeCompleted  = "player2StakeCompleted"
	IntentPaddleMove             = "paddleMove"
	IntentPauseGame              = "pauseGame"
	IntentActivatePowerUp        = "activatePowerUp"
	IntentForfeitGame            = "forfeitGame"
	IntentRequestRematch         = "requestRematch"
	IntentRematchResponse        = "rematchResponse"
	IntentLeaveRoom              = "leaveRoom"
	IntentLeaveRoomBeforeStaking = "leaveRoomBeforeStaking"
	IntentLeaveAbandonedRoom     = "leaveAbandonedRoom"
	IntentJoinGameOverRoom       = "joinGameOverRoom"
	IntentLeaveGameOver          = "leaveGameOver"
	IntentSpectateGame           = "spectateGame"
	IntentLeaveSpectate          = "leaveSpectate"
	IntentGetActiveGames         = "getActiveGames"
)

type playerPayload struct {
	Player   *Identity `json:"player"`
	RoomCode string    `json:"roomCode"`
}

func (p playerPayload) identity() Identity {
	if p.Player == nil {
		return Identity{}
	}
	return *p.Player
}

type roomCodePayload struct {
	RoomCode string `json:"roomCode"`
}

type paddlePayload struct {
	Position *float64 `json:"position"`
}

type powerUpPayload struct {
	Kind string `json:"kind"`
}

type rematchPayload struct {
	Accepted bool `json:"accepted"`
}

type gameOverPayload struct {
	Username string `json:"username"`
}

type spectatePayload struct {
	RoomCode      string `json:"roomCode"`
	SpectatorName string `json:"spectatorName"`
}

// DecodeMessage turns a wire envelope from session id into a coordinator message.
func DecodeMessage(id SessionID, env protocol.Envelope) (CoordinatorMessage, error) {
	switch env.T {
	case IntentCreateRoom:
		p, err := protocol.DecodeOptional[playerPayload](env)
		if err != nil {
			return nil, badPayload(err)
		}
		return CreateRoomMsg{SessionID: id, Player: p.identity(), RoomCode: p.RoomCode}, nil

	case IntentJoinRoom:
		p, err := protocol.DecodePayload[playerPayload](env)
		if err != nil {
			return nil, badPayload(err)
		}
		if p.RoomCode == "" {
			return nil, fmt.Errorf("%w: roomCode required", ErrBadPayload)
		}
		return JoinRoomMsg{SessionID: id, Player: p.identity(), RoomCode: p.RoomCode}, nil

	case IntentFindRandomMatch:
		p, err := protocol.DecodeOptional[playerPayload](env)
		if err != nil {
			return nil, badPayload(err)
		}
		return FindRandomMatchMsg{SessionID: id, Player: p.identity()}, nil

	case IntentPlayer2StakeCompleted:
		p, err := protocol.DecodePayload[roomCodePayload](env)
		if err != nil {
			return nil, badPayload(err)
		}
		return Player2StakeCompletedMsg{SessionID: id, RoomCode: p.RoomCode}, nil

	case IntentPaddleMove:
		p, err := protocol.DecodePayload[paddlePayload](env)
		if err != nil {
			return nil, badPayload(err)
		}
		if p.Position == nil || math.IsNaN(*p.Position) || math.IsInf(*p.Position, 0) {
			return nil, fmt.Errorf("%w: position must be a number", ErrBadPayload)
		}
		return PaddleMoveMsg{SessionID: id, Position: *p.Position}, nil

	case IntentPauseGame:
		return PauseGameMsg{SessionID: id}, nil

	case IntentActivatePowerUp:
		p, err := protocol.DecodePayload[powerUpPayload](env)
		if err != nil {
			return nil, badPayload(err)
		}
		return ActivatePowerUpMsg{SessionID: id, Kind: p.Kind}, nil

	case IntentForfeitGame:
		return ForfeitGameMsg{SessionID: id}, nil

	case IntentRequestRematch:
		return RequestRematchMsg{SessionID: id}, nil

	case IntentRematchResponse:
		p, err := protocol.DecodePayload[rematchPayload](env)
		if err != nil {
			return nil, badPayload(err)
		}
		return RematchResponseMsg{SessionID: id, Accepted: p.Accepted}, nil

	case IntentLeaveRoom:
		return LeaveRoomMsg{SessionID: id}, nil

	case IntentLeaveRoomBeforeStaking:
		p, err := protocol.DecodeOptional[roomCodePayload](env)
		if err != nil {
			return nil, badPayload(err)
		}
		return LeaveRoomBeforeStakingMsg{SessionID: id, RoomCode: p.RoomCode}, nil

	case IntentLeaveAbandonedRoom:
		p, err := protocol.DecodePayload[roomCodePayload](env)
		if err != nil {
			return nil, badPayload(err)
		}
		return LeaveAbandonedRoomMsg{SessionID: id, RoomCode: p.RoomCode}, nil

	case IntentJoinGameOverRoom:
		p, err := protocol.DecodePayload[gameOverPayload](env)
		if err != nil {
			return nil, badPayload(err)
		}
		if p.Username == "" {
			return nil, ErrMissingName
		}
		return JoinGameOverRoomMsg{SessionID: id, Username: p.Username}, nil

	case IntentLeaveGameOver:
		return LeaveGameOverMsg{SessionID: id}, nil

	case IntentSpectateGame:
		p, err := protocol.DecodePayload[spectatePayload](env)
		if err != nil {
			return nil, badPayload(err)
		}
		return SpectateGameMsg{SessionID: id, RoomCode: p.RoomCode, SpectatorName: p.SpectatorName}, nil

	case IntentLeaveSpectate:
		return LeaveSpectateMsg{SessionID: id}, nil

	case IntentGetActiveGames:
		return GetActiveGamesMsg{SessionID: id}, nil
	}
	return nil, fmt.Errorf("%w: %q", ErrUnknownIntent, env.T)
}

func badPayload(err error) error {
	return fmt.Errorf("%w: %w", ErrBadPayload, err)
}

// Dispatch decodes one inbound frame from a transport and queues the
// resulting message. Malformed frames are answered with an error event and
// the decode error is returned.
func (c *Coordinator) Dispatch(id SessionID, frame []byte) error {
	env, err := protocol.DecodeEnvelope(frame)
	if err != nil {
		err = badPayload(err)
		c.fail(id, err)
		return err
	}
	msg, err := DecodeMessage(id, env)
	if err != nil {
		c.fail(id, err)
		return err
	}
	c.Send(msg)
	return nil
}
