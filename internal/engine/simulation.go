// Simulation ties the grid, the agents and both schedulers together and
// advances them one tick at a time.
package engine

import (
	"fmt"
	"log/slog"
	"math/rand/v2"
	"sync"

	"github.com/google/uuid"

	"github.com/talgya/polity/internal/agents"
	"github.com/talgya/polity/internal/world"
)

// maxHistory bounds the in-memory metrics history.
const maxHistory = 10000

// Simulation holds the complete state of one run. Step and the exported
// read methods may be called from different goroutines.
type Simulation struct {
	mu sync.RWMutex

	Config Config
	RunID  string // Identifies the run in stored metrics

	Grid   *world.Grid[agents.AgentID]
	Agents map[agents.AgentID]*agents.Agent // Every live agent by ID

	// Schedule drives persons and influencers in random order; Patches
	// drives territory patches in formation order, capitals first.
	Schedule *Scheduler
	Patches  *Scheduler

	// Territory layer lookups.
	Capitals   []agents.AgentID                // Territory ID → capital
	PatchIndex map[world.Coord]agents.AgentID // Cell → its territory patch

	Spawner *agents.Spawner

	Metrics Metrics   // Collected after the most recent tick
	Initial Metrics   // Collected at construction, before any tick
	History []Metrics // Oldest first, capped at maxHistory
	Stats   SimStats

	// Feed receives a snapshot after every tick when set.
	Feed *Feed

	rng     *rand.Rand
	opinion agents.OpinionParams

	tickBirths int
	tickDeaths int
}

// SimStats tracks run-wide totals.
type SimStats struct {
	Births int `json:"births"`
	Deaths int `json:"deaths"`
}

// New validates cfg and builds a ready-to-step simulation: territories
// first (when enabled), then persons, then influencers.
func New(cfg Config) (*Simulation, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if cfg.Seed == 0 {
		cfg.Seed = rand.Int64()
	}

	rng := rand.New(rand.NewPCG(uint64(cfg.Seed), 0))
	s := &Simulation{
		Config:     cfg,
		RunID:      uuid.NewString(),
		Grid:       world.NewGrid[agents.AgentID](cfg.Width, cfg.Height, cfg.Topology()),
		Agents:     make(map[agents.AgentID]*agents.Agent),
		PatchIndex: make(map[world.Coord]agents.AgentID),
		rng:        rng,
		opinion:    cfg.Opinion(),
	}
	s.Schedule = NewRandomScheduler(rng, s.Agent)
	s.Patches = NewOrderedScheduler(s.Agent)

	spawnCfg := agents.SpawnConfig{
		Width:           cfg.Width,
		Height:          cfg.Height,
		MaxAge:          cfg.MaxAge,
		BaseInclination: cfg.BaseInclination,
		Skew:            cfg.InitialSkew,
		MaxFollowers:    cfg.MaxFollowers,
		Clustering:      cfg.Clustering,
	}
	if cfg.Clustering > 0 {
		spawnCfg.Density = world.NewDensityField(cfg.Seed+1, cfg.Width, cfg.Height)
	}
	s.Spawner = agents.NewSpawner(spawnCfg, rng)

	if cfg.EnableTerritories {
		if err := s.formTerritories(); err != nil {
			return nil, fmt.Errorf("form territories: %w", err)
		}
	}

	for _, a := range s.Spawner.SpawnPopulation(agents.KindPerson, cfg.InitialPersons) {
		s.addAgent(a, s.Schedule)
	}
	if cfg.EnableInfluencers {
		for _, a := range s.Spawner.SpawnPopulation(agents.KindInfluencer, cfg.InitialInfluencers) {
			s.addAgent(a, s.Schedule)
		}
	}

	// Patches stay gray until the first territory phase.
	s.collectMetrics()
	s.Initial = s.Metrics

	slog.Info("simulation ready",
		"run_id", s.RunID,
		"seed", cfg.Seed,
		"grid", s.Grid.String(),
		"persons", s.Metrics.Persons,
		"influencers", s.Metrics.Influencers,
		"territories", len(s.Capitals),
	)
	return s, nil
}

// CurrentTick returns the number of completed ticks.
func (s *Simulation) CurrentTick() uint64 {
	return s.Schedule.Time
}

// Tick is CurrentTick for callers outside the stepping goroutine.
func (s *Simulation) Tick() uint64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.Schedule.Time
}

// Agent returns the live agent with the given ID, or nil.
func (s *Simulation) Agent(id agents.AgentID) *agents.Agent {
	return s.Agents[id]
}

// Step advances the simulation by exactly one tick: the population phase,
// the territory phase, then metric collection.
func (s *Simulation) Step() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	tick := s.CurrentTick() + 1
	s.tickBirths, s.tickDeaths = 0, 0

	if err := s.Schedule.Step(s.activate); err != nil {
		return fmt.Errorf("tick %d population phase: %w", tick, err)
	}
	if err := s.Patches.Step(s.activatePatch); err != nil {
		return fmt.Errorf("tick %d territory phase: %w", tick, err)
	}

	s.collectMetrics()

	slog.Debug("tick",
		"tick", tick,
		"persons", s.Metrics.Persons,
		"influencers", s.Metrics.Influencers,
		"births", s.tickBirths,
		"deaths", s.tickDeaths,
	)

	if s.Feed != nil {
		s.Feed.Publish(s.snapshot())
	}
	return nil
}

// Run calls Step steps times, stopping at the first error.
func (s *Simulation) Run(steps int) error {
	for i := 0; i < steps; i++ {
		if err := s.Step(); err != nil {
			return err
		}
	}
	return nil
}

// activate dispatches a population-schedule activation on the agent kind.
func (s *Simulation) activate(id agents.AgentID) error {
	a := s.Agents[id]
	if a == nil {
		return fmt.Errorf("%w: scheduled agent %d has no record", ErrInvariant, id)
	}
	switch a.Kind {
	case agents.KindPerson, agents.KindInfluencer:
		s.stepPerson(a)
		return nil
	default:
		return fmt.Errorf("%w: %s %d in the population schedule", ErrInvariant, a.Kind, id)
	}
}

// addAgent registers a new agent in the arena, on the grid and with sched.
func (s *Simulation) addAgent(a *agents.Agent, sched *Scheduler) {
	s.Agents[a.ID] = a
	s.Grid.Place(a.ID, a.Position)
	sched.Add(a)
	if a.Kind == agents.KindTerritory {
		s.PatchIndex[a.Position] = a.ID
	}
}

// removeAgent takes a mobile agent out of the run. Safe to call twice.
func (s *Simulation) removeAgent(a *agents.Agent) {
	s.Grid.Remove(a.ID)
	s.Schedule.Remove(a.ID)
	delete(s.Agents, a.ID)
}
