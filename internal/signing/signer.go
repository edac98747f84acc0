// Package signing produces Schnorr signatures over secp256k1 for win claims
// and stake refund authorizations. Messages are domain separated and hashed
// with BLAKE-256 before signing.
package signing

import (
	"context"
	"encoding/hex"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/decred/dcrd/crypto/blake256"
	"github.com/decred/dcrd/dcrec/secp256k1/v4"
	"github.com/decred/dcrd/dcrec/secp256k1/v4/schnorr"

	"github.com/vovakirdan/paddle-arena/internal/multiplayer"
)

const (
	winTag    = "paddle-arena/win/v1"
	refundTag = "paddle-arena/refund/v1"
)

var (
	ErrInvalidKey       = errors.New("signing: invalid private key")
	ErrInvalidSignature = errors.New("signing: invalid signature")
)

// Signer holds the server key.
type Signer struct {
	key *secp256k1.PrivateKey
}

var _ multiplayer.WinSigner = (*Signer)(nil)

// NewSigner wraps an existing private key.
func NewSigner(key *secp256k1.PrivateKey) *Signer {
	return &Signer{key: key}
}

// FromHex parses a 32-byte hex encoded private key.
func FromHex(s string) (*Signer, error) {
	b, err := hex.DecodeString(strings.TrimSpace(s))
	if err != nil || len(b) != secp256k1.PrivKeyBytesLen {
		return nil, ErrInvalidKey
	}
	var scalar secp256k1.ModNScalar
	if overflow := scalar.SetByteSlice(b); overflow || scalar.IsZero() {
		return nil, ErrInvalidKey
	}
	return &Signer{key: secp256k1.NewPrivateKey(&scalar)}, nil
}

// Generate creates a signer with a fresh random key.
func Generate() (*Signer, error) {
	key, err := secp256k1.GeneratePrivateKey()
	if err != nil {
		return nil, fmt.Errorf("signing: generate key: %w", err)
	}
	return &Signer{key: key}, nil
}

// PrivateKeyHex returns the hex encoded private key.
func (s *Signer) PrivateKeyHex() string {
	return hex.EncodeToString(s.key.Serialize())
}

// PublicKeyHex returns the compressed public key in hex.
func (s *Signer) PublicKeyHex() string {
	return hex.EncodeToString(s.key.PubKey().SerializeCompressed())
}

// SignWin signs a staked match win claim.
func (s *Signer) SignWin(_ context.Context, claim multiplayer.WinClaim) (string, error) {
	return s.sign(WinMessage(claim))
}

// SignRefund signs a refund authorization for an abandoned staked room.
func (s *Signer) SignRefund(code, hostAddress string, amount int64, issuedAt time.Time) (string, error) {
	return s.sign(RefundMessage(code, hostAddress, amount, issuedAt))
}

func (s *Signer) sign(msg []byte) (string, error) {
	hash := blake256.Sum256(msg)
	sig, err := schnorr.Sign(s.key, hash[:])
	if err != nil {
		return "", fmt.Errorf("signing: %w", err)
	}
	return hex.EncodeToString(sig.Serialize()), nil
}

// WinMessage is the canonical byte form of a win claim.
func WinMessage(claim multiplayer.WinClaim) []byte {
	return message(winTag, claim.RoomCode, claim.Winner, claim.WinnerAddress, strconv.FormatInt(claim.Amount, 10))
}

// RefundMessage is the canonical byte form of a refund authorization.
func RefundMessage(code, hostAddress string, amount int64, issuedAt time.Time) []byte {
	return message(refundTag, code, hostAddress, strconv.FormatInt(amount, 10),
		strconv.FormatInt(issuedAt.Unix(), 10))
}

func message(tag string, fields ...string) []byte {
	return []byte(tag + "|" + strings.Join(fields, "|"))
}

// Verify checks a hex signature over msg against a hex compressed public key.
func Verify(pubKeyHex string, msg []byte, sigHex string) error {
	pb, err := hex.DecodeString(pubKeyHex)
	if err != nil {
		return fmt.Errorf("signing: decode public key: %w", err)
	}
	pub, err := schnorr.ParsePubKey(pb)
	if err != nil {
		return fmt.Errorf("signing: parse public key: %w", err)
	}
	sb, err := hex.DecodeString(sigHex)
	if err != nil {
		return ErrInvalidSignature
	}
	sig, err := schnorr.ParseSignature(sb)
	if err != nil {
		return ErrInvalidSignature
	}
	hash := blake256.Sum256(msg)
	if !sig.Verify(hash[:], pub) {
		return ErrInvalidSignature
	}
	return nil
}
