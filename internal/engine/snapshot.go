package engine

import (
	"github.com/talgya/polity/internal/agents"
	"github.com/talgya/polity/internal/world"
)

// Snapshot is a read-only copy of the simulation state after a tick.
type Snapshot struct {
	RunID    string         `json:"run_id"`
	Tick     uint64         `json:"tick"`
	Width    int            `json:"width"`
	Height   int            `json:"height"`
	Topology world.Topology `json:"topology"`
	Cells    []Cell         `json:"cells"` // Non-empty cells only, row-major
	Metrics  Metrics        `json:"metrics"`
}

// Cell lists the occupants of one grid cell.
type Cell struct {
	X         int        `json:"x"`
	Y         int        `json:"y"`
	Occupants []Occupant `json:"occupants"`
}

// Occupant is the portrayal-facing view of an agent.
type Occupant struct {
	ID          agents.AgentID `json:"id"`
	Kind        agents.Kind    `json:"kind"`
	Party       agents.Party   `json:"party"`
	Inclination int            `json:"inclination"`
	TerritoryID *int           `json:"territory_id,omitempty"`
	Capital     bool           `json:"capital,omitempty"`
}

// Snapshot copies the current grid and metrics.
func (s *Simulation) Snapshot() *Snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.snapshot()
}

func (s *Simulation) snapshot() *Snapshot {
	snap := &Snapshot{
		RunID:    s.RunID,
		Tick:     s.CurrentTick(),
		Width:    s.Grid.Width,
		Height:   s.Grid.Height,
		Topology: s.Grid.Topology,
		Metrics:  s.Metrics,
	}
	s.Grid.Each(func(c world.Coord, ids []agents.AgentID) {
		if len(ids) == 0 {
			return
		}
		cell := Cell{X: c.X, Y: c.Y, Occupants: make([]Occupant, 0, len(ids))}
		for _, id := range ids {
			a := s.Agents[id]
			if a == nil {
				continue
			}
			occ := Occupant{ID: a.ID, Kind: a.Kind, Party: a.Party, Inclination: a.Inclination}
			if a.Kind == agents.KindTerritory {
				tid := a.TerritoryID
				occ.TerritoryID = &tid
				occ.Capital = a.IsCapital
			}
			cell.Occupants = append(cell.Occupants, occ)
		}
		snap.Cells = append(snap.Cells, cell)
	})
	return snap
}
