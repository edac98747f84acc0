// Package rating implements Elo ratings for head-to-head matches.
package rating

import "math"

const (
	// Base is the rating of a player with no recorded matches.
	Base = 1200
	// K is the maximum rating change for a single match.
	K = 32
)

// Expected returns the probability that a player rated a beats one rated b.
func Expected(a, b int) float64 {
	return 1 / (1 + math.Pow(10, float64(b-a)/400))
}

// Update returns the new ratings after winner beat loser.
func Update(winner, loser int) (int, int) {
	delta := int(math.Round(K * (1 - Expected(winner, loser))))
	if delta < 1 {
		delta = 1
	}
	return winner + delta, loser - delta
}
