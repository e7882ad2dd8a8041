// Package agents provides the agent records, the party classification, and
// the opinion model that moves political inclination between agents.
package agents

import (
	"fmt"

	"github.com/talgya/polity/internal/world"
)

// AgentID is a unique identifier for an agent. IDs are never reused.
type AgentID uint64

// Kind tags the variant an agent record represents.
type Kind uint8

const (
	KindPerson     Kind = iota // Mobile citizen
	KindInfluencer             // Person variant with a wider contact radius
	KindTerritory              // Static patch of a territory
)

// String returns the kind name used in snapshots and logs.
func (k Kind) String() string {
	switch k {
	case KindPerson:
		return "person"
	case KindInfluencer:
		return "influencer"
	case KindTerritory:
		return "territory"
	default:
		return "unknown"
	}
}

// MarshalText implements encoding.TextMarshaler.
func (k Kind) MarshalText() ([]byte, error) {
	return []byte(k.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (k *Kind) UnmarshalText(text []byte) error {
	for _, candidate := range []Kind{KindPerson, KindInfluencer, KindTerritory} {
		if candidate.String() == string(text) {
			*k = candidate
			return nil
		}
	}
	return fmt.Errorf("unknown agent kind %q", text)
}

// Mobile reports whether the kind walks, talks, ages and dies.
func (k Kind) Mobile() bool {
	return k == KindPerson || k == KindInfluencer
}

// Default contact radii.
const (
	PersonRadius     = 1
	InfluencerRadius = 2
)

// Agent is the record for every simulated entity. Fields that do not apply
// to a kind stay at their zero value.
type Agent struct {
	ID       AgentID     `json:"id"`
	Kind     Kind        `json:"kind"`
	Position world.Coord `json:"position"`

	// Opinion
	Inclination int   `json:"inclination"` // 0 (blue) to 256 (red)
	Party       Party `json:"party"`

	// Persons and influencers
	Age        int  `json:"age,omitempty"`
	MaxAge     int  `json:"max_age,omitempty"`
	Radius     int  `json:"radius,omitempty"` // Contact radius for sharing ideas
	Influencer bool `json:"influencer,omitempty"`
	Followers  int  `json:"followers,omitempty"` // Influencers only; carried, not used by the dynamics

	// Territory patches
	TerritoryID int           `json:"territory_id"`
	IsCapital   bool          `json:"is_capital,omitempty"`
	Capital     world.Coord   `json:"capital"`           // Non-capitals: where their capital sits
	Members     []world.Coord `json:"members,omitempty"` // Capitals: claimed cells, formation order
}

// GetParty returns the agent's current party.
func (a *Agent) GetParty() Party {
	return a.Party
}

// GetPosition returns the agent's cell.
func (a *Agent) GetPosition() world.Coord {
	return a.Position
}

// UpdateParty reclassifies a person or influencer from its inclination.
// Territory patches hold an aggregate party and are left untouched.
func (a *Agent) UpdateParty() {
	if a.Kind == KindTerritory {
		return
	}
	a.Party = Classify(a.Inclination)
}

// AddMember appends a claimed cell to a capital's territory.
func (a *Agent) AddMember(c world.Coord) {
	a.Members = append(a.Members, c)
}
