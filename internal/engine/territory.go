// Territory formation and the per-tick territory phase.
package engine

import (
	"fmt"
	"log/slog"

	"github.com/talgya/polity/internal/agents"
	"github.com/talgya/polity/internal/world"
)

// formTerritories picks Territories capitals at distinct columns and rows
// and grows them until the grid is tiled.
func (s *Simulation) formTerritories() error {
	t := s.Config.Territories
	xs := s.rng.Perm(s.Config.Width)[:t]
	ys := s.rng.Perm(s.Config.Height)[:t]

	seeds := make([]world.Coord, t)
	for i := range seeds {
		seeds[i] = world.Coord{X: xs[i], Y: ys[i]}
	}
	return s.growTerritories(seeds)
}

// growTerritories places one capital per seed (territory IDs follow seed
// order) and expands them ring by ring. At each radius the capitals claim
// unclaimed cells in territory order; the first claim wins.
func (s *Simulation) growTerritories(seeds []world.Coord) error {
	for tid, pos := range seeds {
		if _, taken := s.PatchIndex[pos]; taken {
			return fmt.Errorf("%w: two capitals at %v", ErrInvariant, pos)
		}
		capital := s.Spawner.SpawnCapital(tid, pos)
		s.addAgent(capital, s.Patches)
		s.Capitals = append(s.Capitals, capital.ID)
	}

	unclaimed := s.Grid.CellCount() - len(seeds)
	limit := max(s.Config.Width, s.Config.Height)
	if s.Grid.Topology == world.TopologyHex {
		limit = s.Config.Width + s.Config.Height
	}

	for radius := 1; unclaimed > 0; radius++ {
		if radius > limit {
			return fmt.Errorf("%w: %d cells unclaimed at radius %d", ErrPartitionIncomplete, unclaimed, radius)
		}
		for tid, id := range s.Capitals {
			capital := s.Agents[id]
			for _, cell := range s.Grid.Neighborhood(capital.Position, false, true, radius) {
				if _, taken := s.PatchIndex[cell]; taken {
					continue
				}
				s.addAgent(s.Spawner.SpawnPatch(tid, cell, capital.Position), s.Patches)
				capital.AddMember(cell)
				unclaimed--
			}
		}
	}

	if err := s.verifyPartition(); err != nil {
		return err
	}
	slog.Debug("territories formed", "territories", len(s.Capitals), "patches", s.Patches.Len())
	return nil
}

// verifyPartition checks that every cell holds exactly one patch and that
// the capitals' member lists cover the non-capital cells exactly once.
func (s *Simulation) verifyPartition() error {
	if n := len(s.PatchIndex); n != s.Grid.CellCount() {
		return fmt.Errorf("%w: %d of %d cells hold a patch", ErrPartitionIncomplete, n, s.Grid.CellCount())
	}

	seen := make(map[world.Coord]bool, s.Grid.CellCount())
	for _, id := range s.Capitals {
		capital := s.Agents[id]
		seen[capital.Position] = true
	}
	for _, id := range s.Capitals {
		capital := s.Agents[id]
		for _, m := range capital.Members {
			if seen[m] {
				return fmt.Errorf("%w: cell %v claimed twice", ErrPartitionIncomplete, m)
			}
			seen[m] = true
		}
	}
	if len(seen) != s.Grid.CellCount() {
		return fmt.Errorf("%w: %d of %d cells claimed", ErrPartitionIncomplete, len(seen), s.Grid.CellCount())
	}
	return nil
}

// activatePatch updates one territory patch. Capitals tally their members'
// residents; other patches copy their capital's party.
func (s *Simulation) activatePatch(id agents.AgentID) error {
	p := s.Agents[id]
	if p == nil || p.Kind != agents.KindTerritory {
		return fmt.Errorf("%w: agent %d in the territory schedule is not a patch", ErrInvariant, id)
	}
	if p.IsCapital {
		p.Party = s.CountParty(p).Mode()
		return nil
	}
	capitalID, ok := s.PatchIndex[p.Capital]
	capital := s.Agents[capitalID]
	if !ok || capital == nil || !capital.IsCapital {
		return fmt.Errorf("%w: patch %d at %v has no capital at %v", ErrInvariant, id, p.Position, p.Capital)
	}
	p.Party = capital.Party
	return nil
}

// CountParty tallies the parties of the persons and influencers standing on
// a capital's member cells. The capital's own cell is not counted.
func (s *Simulation) CountParty(capital *agents.Agent) agents.Tally {
	var tally agents.Tally
	for _, cell := range capital.Members {
		for _, id := range s.Grid.At(cell) {
			if a := s.Agents[id]; a != nil && a.Kind.Mobile() {
				tally.Add(a.Party)
			}
		}
	}
	return tally
}

// TerritoryParty returns the current party of territory tid.
func (s *Simulation) TerritoryParty(tid int) (agents.Party, error) {
	if tid < 0 || tid >= len(s.Capitals) {
		return 0, fmt.Errorf("territory %d out of range [0,%d)", tid, len(s.Capitals))
	}
	return s.Agents[s.Capitals[tid]].Party, nil
}

// TerritoryOf returns the territory ID of the patch at c, or false when the
// grid has no territories.
func (s *Simulation) TerritoryOf(c world.Coord) (int, bool) {
	id, ok := s.PatchIndex[s.Grid.Wrap(c.X, c.Y)]
	if !ok {
		return 0, false
	}
	return s.Agents[id].TerritoryID, true
}
