// Package multiplayer binds network sessions to rooms and matches.
// The Coordinator is the only component that knows about sessions; every
// active room runs its own OnlineMatch loop that owns ticks, intents and the
// pause timer for that room.
package multiplayer

// SessionID uniquely identifies one transport connection.
type SessionID string

// Identity is what a session presents at connect time. The engine treats it
// as opaque and performs no authentication.
type Identity struct {
	Name   string `json:"name"`
	Wallet string `json:"wallet,omitempty"`
}

// Merge returns id with the non-empty fields of other applied.
func (id Identity) Merge(other Identity) Identity {
	if other.Name != "" {
		id.Name = other.Name
	}
	if other.Wallet != "" {
		id.Wallet = other.Wallet
	}
	return id
}

// InventoryKey is the key used for power-up inventory: the wallet when
// known, otherwise the display name.
func (id Identity) InventoryKey() string {
	if id.Wallet != "" {
		return id.Wallet
	}
	return id.Name
}

// EndReason describes why a match ended.
type EndReason string

const (
	EndCompleted  EndReason = "completed"  // Win score reached
	EndForfeit    EndReason = "forfeit"    // A player gave up
	EndDisconnect EndReason = "disconnect" // A player's session closed
)
