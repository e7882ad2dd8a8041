package agents

import (
	"fmt"

	"golang.org/x/exp/constraints"
)

// Inclination bounds. Lower is further left (blue), higher further right (red).
const (
	MinInclination     = 0
	NeutralInclination = 128
	MaxInclination     = 256
)

// Party is the three-way classification derived from an inclination.
type Party uint8

const (
	PartyBlue Party = iota + 1 // Democrat, inclination < 128
	PartyGray                  // No party, inclination == 128
	PartyRed                   // Republican, inclination > 128
)

// Parties lists every party in tally order. Plurality ties resolve to the
// earliest entry.
var Parties = [3]Party{PartyBlue, PartyGray, PartyRed}

// Classify returns the party for an inclination.
func Classify(inclination int) Party {
	switch {
	case inclination < NeutralInclination:
		return PartyBlue
	case inclination > NeutralInclination:
		return PartyRed
	default:
		return PartyGray
	}
}

// String returns the party color.
func (p Party) String() string {
	switch p {
	case PartyBlue:
		return "blue"
	case PartyGray:
		return "gray"
	case PartyRed:
		return "red"
	default:
		return "none"
	}
}

// MarshalText implements encoding.TextMarshaler.
func (p Party) MarshalText() ([]byte, error) {
	return []byte(p.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (p *Party) UnmarshalText(text []byte) error {
	for _, candidate := range Parties {
		if candidate.String() == string(text) {
			*p = candidate
			return nil
		}
	}
	return fmt.Errorf("unknown party %q", text)
}

// Tally counts parties in tally order.
type Tally [3]int

// Add counts one vote for p.
func (t *Tally) Add(p Party) {
	if p >= PartyBlue && p <= PartyRed {
		t[p-PartyBlue]++
	}
}

// Count returns the votes for p.
func (t Tally) Count(p Party) int {
	if p < PartyBlue || p > PartyRed {
		return 0
	}
	return t[p-PartyBlue]
}

// Mode returns the party with the most votes, first in tally order on ties.
// An empty tally yields PartyBlue.
func (t Tally) Mode() Party {
	best := 0
	for i := 1; i < len(t); i++ {
		if t[i] > t[best] {
			best = i
		}
	}
	return Parties[best]
}

// Clamp limits v to [lo, hi].
func Clamp[T constraints.Ordered](v, lo, hi T) T {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
