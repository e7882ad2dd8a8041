package engine

import (
	"errors"
	"slices"
	"strings"
	"testing"

	"github.com/talgya/polity/internal/agents"
	"github.com/talgya/polity/internal/world"
)

func addPerson(s *Simulation, kind agents.Kind, x, y, inclination, age int) *agents.Agent {
	a := s.Spawner.SpawnPerson(kind, world.Coord{X: x, Y: y}, inclination, age, s.Config.MaxAge)
	s.addAgent(a, s.Schedule)
	return a
}

func TestPersonsDoNotAbsorbFromEachOther(t *testing.T) {
	for _, changes := range []bool{false, true} {
		cfg := emptyConfig(3, 3)
		cfg.InfluencerChanges = changes
		s := newSim(t, cfg)

		// Every cell of a 3x3 torus is within radius 1 of every other.
		a := addPerson(s, agents.KindPerson, 0, 0, 10, 30)
		b := addPerson(s, agents.KindPerson, 1, 0, 250, 30)
		if err := s.Step(); err != nil {
			t.Fatalf("Step: %v", err)
		}
		if a.Inclination != 10 || b.Inclination != 250 {
			t.Fatalf("changes=%v: inclinations %d/%d, want 10/250", changes, a.Inclination, b.Inclination)
		}
	}
}

func TestInfluencerAbsorbsDuringTick(t *testing.T) {
	cfg := emptyConfig(3, 3)
	cfg.InfluencerChanges = true
	s := newSim(t, cfg)

	inf := addPerson(s, agents.KindInfluencer, 0, 0, 200, 30)
	person := addPerson(s, agents.KindPerson, 2, 2, 0, 30)
	if err := s.Step(); err != nil {
		t.Fatalf("Step: %v", err)
	}
	if inf.Inclination != 140 || inf.Party != agents.PartyRed {
		t.Fatalf("influencer = %d/%v, want 140/red", inf.Inclination, inf.Party)
	}
	if person.Inclination != 0 {
		t.Fatalf("person moved to %d, want 0", person.Inclination)
	}
}

func TestAgingAndMovement(t *testing.T) {
	s := newSim(t, emptyConfig(5, 5))
	a := addPerson(s, agents.KindPerson, 2, 2, 0, 30)
	for range 10 {
		before := a.Position
		if err := s.Step(); err != nil {
			t.Fatalf("Step: %v", err)
		}
		dx := min(abs(a.Position.X-before.X), 5-abs(a.Position.X-before.X))
		dy := min(abs(a.Position.Y-before.Y), 5-abs(a.Position.Y-before.Y))
		if dx > 1 || dy > 1 {
			t.Fatalf("moved from %v to %v", before, a.Position)
		}
		if pos, ok := s.Grid.Position(a.ID); !ok || pos != a.Position {
			t.Fatalf("grid has %v, agent says %v", pos, a.Position)
		}
	}
	if a.Age != 40 {
		t.Fatalf("age = %d, want 40", a.Age)
	}
}

func abs(x int) int {
	if x < 0 {
		return -x
	}
	return x
}

func TestDeathAtMaxAge(t *testing.T) {
	cfg := emptyConfig(4, 4)
	cfg.Mortal = true
	cfg.PersonReproduce = 0
	cfg.MaxAge = 40
	s := newSim(t, cfg)

	old := addPerson(s, agents.KindPerson, 1, 1, 0, 40)
	young := addPerson(s, agents.KindPerson, 2, 2, 0, 10)
	if err := s.Step(); err != nil {
		t.Fatalf("Step: %v", err)
	}

	if s.Agent(old.ID) != nil || s.Schedule.Contains(old.ID) {
		t.Fatalf("agent past max age still alive")
	}
	if _, ok := s.Grid.Position(old.ID); ok {
		t.Fatalf("dead agent still on the grid")
	}
	if s.Agent(young.ID) == nil {
		t.Fatalf("young agent died")
	}
	if s.Metrics.Persons != 1 || s.Metrics.Deaths != 1 || s.Stats.Deaths != 1 {
		t.Fatalf("metrics = %+v stats = %+v", s.Metrics, s.Stats)
	}
}

func TestReproductionDefersNewborn(t *testing.T) {
	cfg := emptyConfig(4, 4)
	cfg.Mortal = true
	cfg.PersonReproduce = 1
	s := newSim(t, cfg)

	parent := addPerson(s, agents.KindPerson, 1, 1, 200, 30)
	child := addPerson(s, agents.KindPerson, 3, 3, 0, 5) // too young to reproduce
	if err := s.Step(); err != nil {
		t.Fatalf("Step: %v", err)
	}

	if s.Metrics.Persons != 3 || s.Metrics.Births != 1 {
		t.Fatalf("persons=%d births=%d, want 3 and 1", s.Metrics.Persons, s.Metrics.Births)
	}
	var newborn *agents.Agent
	for id, a := range s.Agents {
		if id != parent.ID && id != child.ID {
			newborn = a
		}
	}
	if newborn == nil {
		t.Fatalf("no newborn found")
	}
	if newborn.Age != 0 {
		t.Fatalf("newborn age = %d, activated in its birth tick", newborn.Age)
	}
	if newborn.Position != parent.Position || newborn.MaxAge != parent.MaxAge || newborn.Kind != agents.KindPerson {
		t.Fatalf("newborn %+v did not inherit from %+v", newborn, parent)
	}
}

func TestInfluencersBreedInfluencers(t *testing.T) {
	cfg := emptyConfig(4, 4)
	cfg.Mortal = true
	cfg.InfluencerReproduce = 1
	cfg.PersonReproduce = 0
	s := newSim(t, cfg)

	addPerson(s, agents.KindInfluencer, 0, 0, 256, 30)
	addPerson(s, agents.KindPerson, 2, 2, 0, 30)
	if err := s.Step(); err != nil {
		t.Fatalf("Step: %v", err)
	}
	if s.Metrics.Influencers != 2 || s.Metrics.Persons != 1 {
		t.Fatalf("influencers=%d persons=%d, want 2 and 1", s.Metrics.Influencers, s.Metrics.Persons)
	}
}

func TestRunKeepsInvariants(t *testing.T) {
	for _, hex := range []bool{false, true} {
		cfg := SmallTestConfig()
		cfg.Hex = hex
		cfg.EnableInfluencers = true
		cfg.EnableTerritories = true
		cfg.Territories = 3
		cfg.InitialSkew = 0.5
		cfg.MaxAge = 30
		s := newSim(t, cfg)

		for range 40 {
			if err := s.Step(); err != nil {
				t.Fatalf("Step: %v", err)
			}
			for id, a := range s.Agents {
				if !a.Kind.Mobile() {
					continue
				}
				if a.Age > a.MaxAge {
					t.Fatalf("agent %d aged %d past %d", id, a.Age, a.MaxAge)
				}
				if a.Inclination < agents.MinInclination || a.Inclination > agents.MaxInclination {
					t.Fatalf("agent %d inclination %d", id, a.Inclination)
				}
				if a.Party != agents.Classify(a.Inclination) {
					t.Fatalf("agent %d party %v for inclination %d", id, a.Party, a.Inclination)
				}
			}
			m := s.Metrics
			if m.Republican+m.Democrat+m.None != m.Persons+m.Influencers {
				t.Fatalf("party split %+v does not add up", m)
			}
			if m.RepublicanSpaces+m.DemocratSpaces > cfg.Width*cfg.Height {
				t.Fatalf("more spaces than cells: %+v", m)
			}
			if s.Grid.Occupants() != len(s.Agents) {
				t.Fatalf("grid holds %d ids, arena %d", s.Grid.Occupants(), len(s.Agents))
			}
		}
		if s.CurrentTick() != 40 || len(s.History) != 41 {
			t.Fatalf("tick=%d history=%d", s.CurrentTick(), len(s.History))
		}
	}
}

func TestSameSeedSameRun(t *testing.T) {
	cfg := SmallTestConfig()
	cfg.EnableInfluencers = true
	cfg.EnableTerritories = true
	cfg.Clustering = 0.5

	a, b := newSim(t, cfg), newSim(t, cfg)
	if err := a.Run(25); err != nil {
		t.Fatalf("Run: %v", err)
	}
	if err := b.Run(25); err != nil {
		t.Fatalf("Run: %v", err)
	}
	if !slices.Equal(a.History, b.History) {
		t.Fatalf("histories differ for the same seed")
	}
	if a.RunID == b.RunID {
		t.Fatalf("run ids should be unique")
	}
}

func TestImmortalPopulationIsStable(t *testing.T) {
	cfg := SmallTestConfig()
	cfg.Mortal = false
	s := newSim(t, cfg)
	if err := s.Run(30); err != nil {
		t.Fatalf("Run: %v", err)
	}
	if s.Metrics.Persons != cfg.InitialPersons || s.Stats.Births != 0 || s.Stats.Deaths != 0 {
		t.Fatalf("population changed without mortality: %+v", s.Metrics)
	}
}

func TestInitialSkewMetrics(t *testing.T) {
	cfg := emptyConfig(6, 6)
	cfg.InitialPersons = 40
	cfg.InitialSkew = 0.25
	s := newSim(t, cfg)
	if s.Metrics.Republican != 10 || s.Metrics.Democrat != 30 {
		t.Fatalf("republican=%d democrat=%d, want 10 and 30", s.Metrics.Republican, s.Metrics.Democrat)
	}
	if s.Metrics.Influencers != 0 {
		t.Fatalf("influencers seeded while disabled")
	}
}

func TestConfigValidation(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Width = 0
	cfg.InitialPersons = -1
	cfg.PersonReproduce = 1.5
	cfg.BaseInclination = 300

	_, err := New(cfg)
	if !errors.Is(err, ErrInvalidConfig) {
		t.Fatalf("err = %v, want ErrInvalidConfig", err)
	}
	for _, want := range []string{"grid", "initial persons", "person reproduction", "base inclination"} {
		if !strings.Contains(err.Error(), want) {
			t.Errorf("error %q does not mention %q", err, want)
		}
	}

	if err := DefaultConfig().Validate(); err != nil {
		t.Fatalf("default config invalid: %v", err)
	}
}

func TestZeroSeedIsReplaced(t *testing.T) {
	cfg := emptyConfig(3, 3)
	cfg.Seed = 0
	s := newSim(t, cfg)
	if s.Config.Seed == 0 {
		t.Fatalf("seed left at 0")
	}
}

func TestFeedAndSnapshot(t *testing.T) {
	cfg := emptyConfig(4, 3)
	cfg.InitialPersons = 5
	cfg.EnableTerritories = true
	cfg.Territories = 2
	s := newSim(t, cfg)
	s.Feed = NewFeed()
	ch := s.Feed.Subscribe(1)
	defer s.Feed.Unsubscribe(ch)

	if err := s.Step(); err != nil {
		t.Fatalf("Step: %v", err)
	}
	snap := <-ch
	if snap != s.Feed.Latest() || snap.Tick != 1 {
		t.Fatalf("snapshot tick %d", snap.Tick)
	}
	if len(snap.Cells) != 12 {
		t.Fatalf("cells = %d, want every cell (each holds a patch)", len(snap.Cells))
	}

	persons, patches, capitals := 0, 0, 0
	for _, c := range snap.Cells {
		for _, o := range c.Occupants {
			switch o.Kind {
			case agents.KindPerson:
				persons++
				if o.TerritoryID != nil {
					t.Fatalf("person carries a territory id")
				}
			case agents.KindTerritory:
				patches++
				if o.TerritoryID == nil {
					t.Fatalf("patch without territory id")
				}
				if o.Capital {
					capitals++
				}
			}
		}
	}
	if persons != 5 || patches != 12 || capitals != 2 {
		t.Fatalf("persons=%d patches=%d capitals=%d", persons, patches, capitals)
	}
}

func TestReport(t *testing.T) {
	cfg := SmallTestConfig()
	s := newSim(t, cfg)
	if err := s.Run(5); err != nil {
		t.Fatalf("Run: %v", err)
	}
	r := s.Report()
	if r.Ticks != 5 || r.Initial.Tick != 0 || r.Final.Tick != 5 || r.Seed != cfg.Seed {
		t.Fatalf("report = %+v", r)
	}
	if got := s.HistorySince(3); len(got) != 3 || got[0].Tick != 3 {
		t.Fatalf("HistorySince(3) = %+v", got)
	}
}

func TestReportKeepsInitialPastHistoryCap(t *testing.T) {
	cfg := emptyConfig(2, 2)
	cfg.InitialPersons = 3
	cfg.InitialSkew = 1
	s := newSim(t, cfg)
	if err := s.Run(maxHistory + 5); err != nil {
		t.Fatalf("Run: %v", err)
	}
	if s.History[0].Tick == 0 {
		t.Fatalf("history was not trimmed")
	}

	r := s.Report()
	if r.Initial.Tick != 0 || r.Ticks != maxHistory+5 {
		t.Fatalf("initial tick %d after %d ticks, want 0", r.Initial.Tick, r.Ticks)
	}
	if r.Initial.Republican != 3 || r.Initial.Democrat != 0 {
		t.Fatalf("initial split = %+v, want 3 republican", r.Initial)
	}
}

func TestHexNeedsEvenWidth(t *testing.T) {
	cfg := emptyConfig(7, 4)
	cfg.Hex = true
	if _, err := New(cfg); !errors.Is(err, ErrInvalidConfig) || !strings.Contains(err.Error(), "even width") {
		t.Fatalf("err = %v, want an even width rejection", err)
	}
	cfg.Width = 8
	if _, err := New(cfg); err != nil {
		t.Fatalf("even hex width rejected: %v", err)
	}
}
