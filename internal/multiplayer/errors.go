package multiplayer

import (
	"errors"
	"fmt"

	"github.com/vovakirdan/paddle-arena/internal/match"
	"github.com/vovakirdan/paddle-arena/internal/protocol"
	"github.com/vovakirdan/paddle-arena/internal/room"
)

// Errors reported to sessions by the coordinator.
var (
	ErrNotInRoom           = errors.New("not in a room")
	ErrNotInMatch          = errors.New("no active match")
	ErrMissingName         = errors.New("player name required")
	ErrStakedRematch       = errors.New("rematch is not available for staked matches")
	ErrNotInRematchWindow  = errors.New("no finished match to rematch")
	ErrNoPendingRematch    = errors.New("no pending rematch request")
	ErrOpponentUnavailable = errors.New("opponent is not on the game-over screen")
	ErrStakeNotConfirmed   = errors.New("guest stake is not confirmed")
	ErrNotAbandoned        = errors.New("room is not abandoned")
	ErrUnknownPowerUp      = errors.New("unknown power-up")
	ErrUnknownIntent       = errors.New("unknown intent")
	ErrBadPayload          = errors.New("malformed payload")
	ErrRoomBusy            = errors.New("room is busy, try again")
	ErrEscrowUnavailable   = errors.New("escrow lookup failed")
)

// InventoryErrorKind classifies a power-up inventory failure.
type InventoryErrorKind int

const (
	InventoryInsufficient InventoryErrorKind = iota + 1 // Nothing left to spend
	InventoryNoPending                                  // Nothing to refund
	InventoryUnavailable                                // Backend failure
)

func (k InventoryErrorKind) String() string {
	switch k {
	case InventoryInsufficient:
		return "insufficient"
	case InventoryNoPending:
		return "no pending"
	case InventoryUnavailable:
		return "unavailable"
	default:
		return "unknown"
	}
}

// InventoryError is the tagged error returned by a PowerUpInventory.
type InventoryError struct {
	Kind    InventoryErrorKind
	Player  string
	PowerUp match.Kind
	Err     error
}

func (e *InventoryError) Error() string {
	msg := fmt.Sprintf("inventory %s: %s for %s", e.Kind, e.PowerUp, e.Player)
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *InventoryError) Unwrap() error {
	return e.Err
}

var reasons = []struct {
	err    error
	reason string
}{
	{room.ErrRoomNotFound, "RoomNotFound"},
	{room.ErrRoomExists, "RoomExists"},
	{room.ErrRoomNotAvailable, "RoomNotAvailable"},
	{room.ErrRoomFull, "RoomFull"},
	{room.ErrAlreadyInRoom, "AlreadyInRoom"},
	{room.ErrInvalidCode, "InvalidRoomCode"},
	{room.ErrNameTaken, "NameTaken"},
	{match.ErrGameNotFound, "GameNotFound"},
	{match.ErrGameNotActive, "GameNotActive"},
	{match.ErrUnknownPlayer, "NotAPlayer"},
	{match.ErrAlreadyPaused, "AlreadyPaused"},
	{match.ErrNoPausesRemaining, "NoPausesRemaining"},
	{match.ErrPauseAlreadyUsed, "PauseAlreadyUsed"},
	{match.ErrShieldActive, "ShieldActive"},
	{match.ErrMultiballActive, "MultiballActive"},
	{match.ErrInvalidPlayerIndex, "NotAPlayer"},
	{ErrNotInRoom, "NotInRoom"},
	{ErrNotInMatch, "NotInMatch"},
	{ErrMissingName, "MissingName"},
	{ErrStakedRematch, "StakedRematchNotAllowed"},
	{ErrNotInRematchWindow, "NotInRematchWindow"},
	{ErrNoPendingRematch, "NoPendingRematch"},
	{ErrOpponentUnavailable, "OpponentUnavailable"},
	{ErrStakeNotConfirmed, "StakeNotConfirmed"},
	{ErrNotAbandoned, "NotAbandoned"},
	{ErrUnknownPowerUp, "UnknownPowerUp"},
	{ErrUnknownIntent, "UnknownIntent"},
	{ErrBadPayload, "BadPayload"},
	{protocol.ErrEmptyPayload, "BadPayload"},
	{ErrRoomBusy, "RoomBusy"},
	{ErrEscrowUnavailable, "EscrowUnavailable"},
}

// ReasonFor maps an error to the machine-readable reason sent to clients.
func ReasonFor(err error) string {
	var invErr *InventoryError
	if errors.As(err, &invErr) {
		switch invErr.Kind {
		case InventoryInsufficient:
			return "InsufficientPowerUps"
		case InventoryNoPending:
			return "NoPendingPowerUp"
		default:
			return "InventoryUnavailable"
		}
	}
	for _, r := range reasons {
		if errors.Is(err, r.err) {
			return r.reason
		}
	}
	return "Internal"
}

// errorEvent converts err into the event sent to the session.
func errorEvent(err error) ErrorEvent {
	return ErrorEvent{Message: err.Error(), Reason: ReasonFor(err)}
}
