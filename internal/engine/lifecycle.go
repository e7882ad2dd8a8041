// Population dynamics: movement, idea sharing, aging, births and deaths.
package engine

import (
	"log/slog"

	"github.com/talgya/polity/internal/agents"
)

// stepPerson runs one activation of a person or influencer.
func (s *Simulation) stepPerson(a *agents.Agent) {
	a.Age++

	s.randomMove(a)

	for _, other := range s.peopleNear(a) {
		a.ShareIdeas(other, s.opinion)
	}
	a.UpdateParty()

	if !s.Config.Mortal {
		return
	}
	if a.Age > agents.YouthAge && s.rng.Float64() < s.reproduceRate(a.Kind) {
		s.reproduce(a)
	}
	if a.Age > a.MaxAge {
		s.die(a)
	}
}

// moore reports whether square-grid neighborhoods use 8 neighbors.
func (s *Simulation) moore() bool {
	return !s.Config.VonNeumann
}

// randomMove steps a to a uniformly chosen cell of its radius-1
// neighborhood, its own cell included.
func (s *Simulation) randomMove(a *agents.Agent) {
	moves := s.Grid.Neighborhood(a.Position, true, s.moore(), 1)
	next := moves[s.rng.IntN(len(moves))]
	s.Grid.Move(a.ID, next)
	a.Position = next
}

// peopleNear returns the persons and influencers within a's contact radius,
// excluding a itself.
func (s *Simulation) peopleNear(a *agents.Agent) []*agents.Agent {
	var people []*agents.Agent
	for _, cell := range s.Grid.Neighborhood(a.Position, true, s.moore(), a.Radius) {
		for _, id := range s.Grid.At(cell) {
			other := s.Agents[id]
			if other == nil || other == a || !other.Kind.Mobile() {
				continue
			}
			people = append(people, other)
		}
	}
	return people
}

func (s *Simulation) reproduceRate(kind agents.Kind) float64 {
	if kind == agents.KindInfluencer {
		return s.Config.InfluencerReproduce
	}
	return s.Config.PersonReproduce
}

// reproduce adds a newborn on the parent's cell. It joins the schedule now
// but is first activated next tick.
func (s *Simulation) reproduce(parent *agents.Agent) {
	child := s.Spawner.SpawnOffspring(parent)
	s.addAgent(child, s.Schedule)
	s.tickBirths++
	s.Stats.Births++
	slog.Debug("birth", "parent", parent.ID, "child", child.ID, "kind", child.Kind, "party", child.Party)
}

// die removes a from the grid, the schedule and the arena.
func (s *Simulation) die(a *agents.Agent) {
	s.removeAgent(a)
	s.tickDeaths++
	s.Stats.Deaths++
	slog.Debug("death", "agent", a.ID, "kind", a.Kind, "age", a.Age)
}
