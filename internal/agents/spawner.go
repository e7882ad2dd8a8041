// Agent spawning for the initial population, offspring, and
// territory patches.
package agents

import (
	"math/rand/v2"

	"github.com/talgya/polity/internal/world"
)

// SpawnConfig controls initial population generation.
type SpawnConfig struct {
	Width, Height   int
	MaxAge          int
	BaseInclination int     // Inclination of unskewed agents
	Skew            float64 // Fraction of each seeded group given the opposite extreme
	MaxFollowers    int     // Influencer follower counts are drawn from [0, MaxFollowers)

	// Clustering biases placement toward dense regions of Density:
	// 0 places uniformly, 1 places strictly by density.
	Clustering float64
	Density    *world.DensityField
}

// Spawner creates agents for the simulation. It shares the driver's random
// source so a run is reproducible from one seed.
type Spawner struct {
	cfg    SpawnConfig
	rng    *rand.Rand
	nextID AgentID
}

// NewSpawner creates an agent spawner drawing from rng.
func NewSpawner(cfg SpawnConfig, rng *rand.Rand) *Spawner {
	return &Spawner{cfg: cfg, rng: rng, nextID: 1}
}

// SetNextID sets the next agent ID to be issued.
func (s *Spawner) SetNextID(id AgentID) {
	s.nextID = id
}

// NextID issues a fresh agent ID.
func (s *Spawner) NextID() AgentID {
	id := s.nextID
	s.nextID++
	return id
}

// OppositeInclination returns the extreme on the other side of neutral.
func OppositeInclination(base int) int {
	if base < NeutralInclination {
		return MaxInclination
	}
	return MinInclination
}

// SpawnPopulation creates count agents of the given mobile kind at random
// cells. The first Skew fraction of them hold the opposite inclination.
func (s *Spawner) SpawnPopulation(kind Kind, count int) []*Agent {
	agents := make([]*Agent, 0, count)
	skewed := OppositeInclination(s.cfg.BaseInclination)
	cutoff := float64(count) * s.cfg.Skew

	for i := 0; i < count; i++ {
		pos := s.RandomCell()
		inclination := s.cfg.BaseInclination
		if float64(i) < cutoff {
			inclination = skewed
		}
		age := 0
		if s.cfg.MaxAge > 0 {
			age = s.rng.IntN(s.cfg.MaxAge)
		}
		agents = append(agents, s.spawnOne(kind, pos, inclination, age, s.cfg.MaxAge))
	}
	return agents
}

// SpawnPerson creates a single person or influencer.
func (s *Spawner) SpawnPerson(kind Kind, pos world.Coord, inclination, age, maxAge int) *Agent {
	return s.spawnOne(kind, pos, inclination, age, maxAge)
}

func (s *Spawner) spawnOne(kind Kind, pos world.Coord, inclination, age, maxAge int) *Agent {
	a := &Agent{
		ID:          s.NextID(),
		Kind:        kind,
		Position:    pos,
		Inclination: Clamp(inclination, MinInclination, MaxInclination),
		Age:         age,
		MaxAge:      maxAge,
		Radius:      PersonRadius,
	}
	if kind == KindInfluencer {
		a.Influencer = true
		a.Radius = InfluencerRadius
		if s.cfg.MaxFollowers > 0 {
			a.Followers = s.rng.IntN(s.cfg.MaxFollowers)
		}
	}
	a.UpdateParty()
	return a
}

// SpawnOffspring creates a newborn of the parent's kind on the parent's
// cell, inheriting its current inclination and lifespan.
func (s *Spawner) SpawnOffspring(parent *Agent) *Agent {
	child := s.spawnOne(parent.Kind, parent.Position, parent.Inclination, 0, parent.MaxAge)
	child.Radius = parent.Radius
	return child
}

// SpawnCapital creates the seed patch of a territory.
func (s *Spawner) SpawnCapital(territoryID int, pos world.Coord) *Agent {
	return &Agent{
		ID:          s.NextID(),
		Kind:        KindTerritory,
		Position:    pos,
		Inclination: NeutralInclination,
		Party:       PartyGray,
		TerritoryID: territoryID,
		IsCapital:   true,
	}
}

// SpawnPatch creates a non-capital patch claimed by the capital at capital.
func (s *Spawner) SpawnPatch(territoryID int, pos, capital world.Coord) *Agent {
	return &Agent{
		ID:          s.NextID(),
		Kind:        KindTerritory,
		Position:    pos,
		Inclination: NeutralInclination,
		Party:       PartyGray,
		TerritoryID: territoryID,
		Capital:     capital,
	}
}

// RandomCell picks a cell uniformly, or by density when clustering is set.
func (s *Spawner) RandomCell() world.Coord {
	c := world.Coord{X: s.rng.IntN(s.cfg.Width), Y: s.rng.IntN(s.cfg.Height)}
	if s.cfg.Clustering <= 0 || s.cfg.Density == nil {
		return c
	}

	// Rejection sampling; give up after a bounded number of draws so a flat
	// low-density field cannot stall setup.
	for try := 0; try < 64; try++ {
		accept := (1 - s.cfg.Clustering) + s.cfg.Clustering*s.cfg.Density.At(c)
		if s.rng.Float64() < accept {
			return c
		}
		c = world.Coord{X: s.rng.IntN(s.cfg.Width), Y: s.rng.IntN(s.cfg.Height)}
	}
	return c
}
