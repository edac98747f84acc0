package multiplayer

import (
	"context"
	"time"

	"github.com/vovakirdan/paddle-arena/internal/match"
)

// External collaborators. Each is optional; a nil collaborator simply skips
// the side effect it would have produced.

// RatingChange is one player's rating before and after a match.
type RatingChange struct {
	Before int `json:"before"`
	After  int `json:"after"`
}

// Ratings is the rating outcome of a match.
type Ratings struct {
	Winner RatingChange `json:"winner"`
	Loser  RatingChange `json:"loser"`
}

// RatingService updates player ratings after a decided match.
type RatingService interface {
	UpdateRatings(ctx context.Context, winner, loser string) (Ratings, error)
}

// MatchRecord is the persisted outcome of a match.
type MatchRecord struct {
	RoomCode     string
	Players      [2]string
	Wallets      [2]string
	Score        [2]int
	Winner       string
	Loser        string
	Reason       EndReason
	IsStaked     bool
	StakeAmount  int64
	Duration     time.Duration
	Hits         int
	EndedAt      time.Time
	WinSignature string
}

// ResultStore persists finished matches.
type ResultStore interface {
	SaveMatchResult(ctx context.Context, rec MatchRecord) error
}

// WinClaim is what the winner of a staked match gets a signature over.
type WinClaim struct {
	RoomCode      string
	Winner        string
	WinnerAddress string
	Amount        int64
}

// WinSigner produces a hex signature for a win claim.
type WinSigner interface {
	SignWin(ctx context.Context, claim WinClaim) (string, error)
}

// StakeInfo is an escrow record for a staked room.
type StakeInfo struct {
	RoomCode     string `json:"roomCode"`
	HostAddress  string `json:"hostAddress"`
	GuestAddress string `json:"guestAddress,omitempty"`
	Amount       int64  `json:"amount"`
	GuestStaked  bool   `json:"guestStaked"`
}

// EscrowLookup resolves a room code to its escrow record. found is false
// when the code has no record.
type EscrowLookup interface {
	LookupStake(ctx context.Context, code string) (info StakeInfo, found bool, err error)
}

// RefundAuthorization lets an abandoning host reclaim their stake.
type RefundAuthorization struct {
	RoomCode    string    `json:"roomCode"`
	HostAddress string    `json:"hostAddress"`
	Amount      int64     `json:"amount"`
	Signature   string    `json:"signature"`
	IssuedAt    time.Time `json:"issuedAt"`
}

// AbandonMarker records an abandoned staked room and authorizes the refund.
type AbandonMarker interface {
	MarkAbandoned(ctx context.Context, code, hostAddress string) (RefundAuthorization, error)
}

// PowerUpInventory holds the power-ups a player may spend. Failures that
// depend on the player's balance are returned as *InventoryError.
type PowerUpInventory interface {
	Consume(ctx context.Context, player string, kind match.Kind) error
	Refund(ctx context.Context, player string, kind match.Kind) error
}

// Collaborators groups the optional external services.
type Collaborators struct {
	Ratings   RatingService
	Results   ResultStore
	Signer    WinSigner
	Escrow    EscrowLookup
	Abandon   AbandonMarker
	Inventory PowerUpInventory
}
