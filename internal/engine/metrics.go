package engine

import (
	"log/slog"

	"github.com/dustin/go-humanize"

	"github.com/talgya/polity/internal/agents"
)

// Metrics is the set of aggregate counts collected once per tick.
// Republican, Democrat and None split persons and influencers by party;
// the Spaces fields count territory patches.
type Metrics struct {
	Tick             uint64 `json:"tick" db:"tick"`
	Persons          int    `json:"persons" db:"persons"`
	Influencers      int    `json:"influencers" db:"influencers"`
	Republican       int    `json:"republican" db:"republican"`
	Democrat         int    `json:"democrat" db:"democrat"`
	None             int    `json:"none" db:"none"`
	RepublicanSpaces int    `json:"republican_spaces" db:"republican_spaces"`
	DemocratSpaces   int    `json:"democrat_spaces" db:"democrat_spaces"`
	Births           int    `json:"births" db:"births"`
	Deaths           int    `json:"deaths" db:"deaths"`
}

func inParty(p agents.Party) func(*agents.Agent) bool {
	return func(a *agents.Agent) bool { return a.Party == p }
}

// collectMetrics counts the current state into s.Metrics and appends it to
// the history. Counting never mutates agents.
func (s *Simulation) collectMetrics() {
	m := Metrics{
		Tick:        s.CurrentTick(),
		Persons:     s.Schedule.Count(agents.KindPerson, nil),
		Influencers: s.Schedule.Count(agents.KindInfluencer, nil),
		Births:      s.tickBirths,
		Deaths:      s.tickDeaths,
	}
	for _, kind := range []agents.Kind{agents.KindPerson, agents.KindInfluencer} {
		m.Republican += s.Schedule.Count(kind, inParty(agents.PartyRed))
		m.Democrat += s.Schedule.Count(kind, inParty(agents.PartyBlue))
		m.None += s.Schedule.Count(kind, inParty(agents.PartyGray))
	}
	m.RepublicanSpaces = s.Patches.Count(agents.KindTerritory, inParty(agents.PartyRed))
	m.DemocratSpaces = s.Patches.Count(agents.KindTerritory, inParty(agents.PartyBlue))

	s.Metrics = m
	s.History = append(s.History, m)
	if len(s.History) > maxHistory {
		s.History = s.History[len(s.History)-maxHistory:]
	}
}

// HistorySince returns the collected metrics with Tick >= from, oldest first.
func (s *Simulation) HistorySince(from uint64) []Metrics {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for i, m := range s.History {
		if m.Tick >= from {
			return append([]Metrics(nil), s.History[i:]...)
		}
	}
	return nil
}

// RunReport summarizes a run from its first and latest metrics.
type RunReport struct {
	RunID string `json:"run_id"`
	Seed  int64  `json:"seed"`
	Ticks uint64 `json:"ticks"`

	Initial Metrics  `json:"initial"`
	Final   Metrics  `json:"final"`
	Totals  SimStats `json:"totals"`
}

// Report builds the run summary.
func (s *Simulation) Report() RunReport {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return RunReport{
		RunID:   s.RunID,
		Seed:    s.Config.Seed,
		Ticks:   s.CurrentTick(),
		Initial: s.Initial,
		Final:   s.Metrics,
		Totals:  s.Stats,
	}
}

// Log writes the report at info level.
func (r RunReport) Log(logger *slog.Logger) {
	logger.Info("run finished",
		"run_id", r.RunID,
		"seed", r.Seed,
		"ticks", humanize.Comma(int64(r.Ticks)),
		"persons", humanize.Comma(int64(r.Final.Persons)),
		"influencers", humanize.Comma(int64(r.Final.Influencers)),
		"births", humanize.Comma(int64(r.Totals.Births)),
		"deaths", humanize.Comma(int64(r.Totals.Deaths)),
	)
	logger.Info("party balance",
		"republican", humanize.Comma(int64(r.Initial.Republican))+" -> "+humanize.Comma(int64(r.Final.Republican)),
		"democrat", humanize.Comma(int64(r.Initial.Democrat))+" -> "+humanize.Comma(int64(r.Final.Democrat)),
		"none", humanize.Comma(int64(r.Final.None)),
	)
	if r.Final.RepublicanSpaces+r.Final.DemocratSpaces > 0 {
		logger.Info("territory balance",
			"republican_spaces", r.Final.RepublicanSpaces,
			"democrat_spaces", r.Final.DemocratSpaces,
		)
	}
}

// LatestMetrics returns the metrics of the most recent tick.
func (s *Simulation) LatestMetrics() Metrics {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.Metrics
}
