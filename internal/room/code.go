package room

import (
	"crypto/rand"
	"math/big"
	"strings"
)

// CodeLength is the length of generated join codes.
const CodeLength = 6

// codeChars omits I, O, 0 and 1.
const codeChars = "ABCDEFGHJKLMNPQRSTUVWXYZ23456789"

// maxCodeLength bounds caller supplied codes. Those name an escrow record
// created outside the registry, so they may be longer than CodeLength and
// may use '-' and '_'.
const maxCodeLength = 64

func generateCode(n int) string {
	b := make([]byte, n)
	limit := big.NewInt(int64(len(codeChars)))
	for i := range b {
		idx, err := rand.Int(rand.Reader, limit)
		if err != nil {
			panic("room: crypto/rand unavailable: " + err.Error())
		}
		b[i] = codeChars[idx.Int64()]
	}
	return string(b)
}

// NormalizeCode upper-cases and trims a caller supplied code.
func NormalizeCode(code string) string {
	return strings.ToUpper(strings.TrimSpace(code))
}

// IsValidCode reports whether a normalized code can name a room: 1 to 64
// characters from A-Z, 0-9, '-' and '_'. Generated codes are a subset.
func IsValidCode(code string) bool {
	if code == "" || len(code) > maxCodeLength {
		return false
	}
	for _, c := range code {
		if (c < 'A' || c > 'Z') && (c < '0' || c > '9') && c != '-' && c != '_' {
			return false
		}
	}
	return true
}
