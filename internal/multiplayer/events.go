package multiplayer

import (
	"github.com/vovakirdan/paddle-arena/internal/match"
	"github.com/vovakirdan/paddle-arena/internal/protocol"
	"github.com/vovakirdan/paddle-arena/internal/room"
)

// Event is anything the server sends to a session. EventName is the wire
// type; the value itself is the JSON payload.
type Event interface {
	EventName() string
}

// EventEnvelope frames evt for the wire.
func EventEnvelope(evt Event) (protocol.Envelope, error) {
	return protocol.NewEnvelope(evt.EventName(), evt)
}

// Lobby and room events.

type RoomCreatedEvent struct {
	RoomCode string    `json:"roomCode"`
	Room     room.Room `json:"room"`
}

func (RoomCreatedEvent) EventName() string { return "roomCreated" }

type RoomReadyEvent struct {
	Room room.Room `json:"room"`
}

func (RoomReadyEvent) EventName() string { return "roomReady" }

type WaitingForOpponentEvent struct {
	RoomCode string `json:"roomCode"`
}

func (WaitingForOpponentEvent) EventName() string { return "waitingForOpponent" }

// StakedMatchJoinedEvent tells a guest which stake to place before the match starts.
type StakedMatchJoinedEvent struct {
	RoomCode       string `json:"roomCode"`
	StakeAmount    int64  `json:"stakeAmount"`
	Player1Address string `json:"player1Address"`
}

func (StakedMatchJoinedEvent) EventName() string { return "stakedMatchJoined" }

type WaitingForPlayer2StakeEvent struct {
	RoomCode string `json:"roomCode"`
}

func (WaitingForPlayer2StakeEvent) EventName() string { return "waitingForPlayer2Stake" }

type GuestLeftBeforeStakingEvent struct {
	RoomCode string `json:"roomCode"`
	Guest    string `json:"guest"`
}

func (GuestLeftBeforeStakingEvent) EventName() string { return "guestLeftBeforeStaking" }

type OpponentLeftEvent struct {
	RoomCode string `json:"roomCode"`
	Player   string `json:"player"`
}

func (OpponentLeftEvent) EventName() string { return "opponentLeft" }

type RoomLeftEvent struct {
	RoomCode string `json:"roomCode"`
}

func (RoomLeftEvent) EventName() string { return "roomLeft" }

type AbandonmentProcessedEvent struct {
	RoomCode string               `json:"roomCode"`
	Message  string               `json:"message"`
	Refund   *RefundAuthorization `json:"refund,omitempty"`
}

func (AbandonmentProcessedEvent) EventName() string { return "abandonmentProcessed" }

// Match events.

type GameStartEvent struct {
	match.State
}

func (GameStartEvent) EventName() string { return "gameStart" }

type GameUpdateEvent struct {
	match.State
}

func (GameUpdateEvent) EventName() string { return "gameUpdate" }

type GamePausedEvent struct {
	PausedBy        string  `json:"pausedBy"`
	PausesRemaining int     `json:"pausesRemaining"`
	ResumeIn        float64 `json:"resumeIn"` // Seconds
}

func (GamePausedEvent) EventName() string { return "gamePaused" }

type GameResumedEvent struct {
	RoomCode string `json:"roomCode"`
}

func (GameResumedEvent) EventName() string { return "gameResumed" }

type PlayerForfeitedEvent struct {
	ForfeitedPlayer string `json:"forfeitedPlayer"`
	Winner          string `json:"winner"`
}

func (PlayerForfeitedEvent) EventName() string { return "playerForfeited" }

type PowerUpActivatedEvent struct {
	Player string     `json:"player"`
	Index  int        `json:"index"`
	Kind   match.Kind `json:"kind"`
}

func (PowerUpActivatedEvent) EventName() string { return "powerUpActivated" }

type PowerUpEvent struct {
	match.Event
}

func (PowerUpEvent) EventName() string { return "powerUpEvent" }

// MatchStats summarizes a finished match.
type MatchStats struct {
	Duration float64 `json:"duration"` // Seconds
	Hits     int     `json:"hits"`
}

// GameOverEvent is sent exactly once per finished match.
type GameOverEvent struct {
	RoomCode     string     `json:"roomCode"`
	Winner       int        `json:"winner"`
	WinnerName   string     `json:"winnerName"`
	LoserName    string     `json:"loserName,omitempty"`
	Reason       EndReason  `json:"reason"`
	IsStaked     bool       `json:"isStaked"`
	StakeAmount  int64      `json:"stakeAmount,omitempty"`
	Ratings      *Ratings   `json:"ratings,omitempty"`
	Stats        MatchStats `json:"stats"`
	FinalScore   [2]int     `json:"finalScore"`
	WinSignature string     `json:"winSignature,omitempty"`
}

func (GameOverEvent) EventName() string { return "gameOver" }

// Rematch events.

type GameOverJoinedEvent struct {
	RoomCode        string `json:"roomCode"`
	Opponent        string `json:"opponent"`
	OpponentPresent bool   `json:"opponentPresent"`
}

func (GameOverJoinedEvent) EventName() string { return "gameOverJoined" }

type RematchRequestedEvent struct {
	From string `json:"from"`
}

func (RematchRequestedEvent) EventName() string { return "rematchRequested" }

type RematchSentEvent struct {
	To string `json:"to"`
}

func (RematchSentEvent) EventName() string { return "rematchSent" }

type RematchDeclinedEvent struct {
	By string `json:"by"`
}

func (RematchDeclinedEvent) EventName() string { return "rematchDeclined" }

// Spectator events.

type SpectateStartEvent struct {
	RoomCode string       `json:"roomCode"`
	Room     room.Room    `json:"room"`
	Match    *match.State `json:"match,omitempty"`
}

func (SpectateStartEvent) EventName() string { return "spectateStart" }

type SpectatorUpdateEvent struct {
	Count int `json:"count"`
}

func (SpectatorUpdateEvent) EventName() string { return "spectatorUpdate" }

type ActiveGamesListEvent struct {
	Games []room.ActiveGame `json:"games"`
}

func (ActiveGamesListEvent) EventName() string { return "activeGamesList" }

// ErrorEvent reports a rejected intent.
type ErrorEvent struct {
	Message string `json:"message"`
	Reason  string `json:"reason"`
}

func (ErrorEvent) EventName() string { return "error" }
