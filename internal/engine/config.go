package engine

import (
	"errors"
	"flag"
	"fmt"

	"github.com/talgya/polity/internal/agents"
	"github.com/talgya/polity/internal/world"
)

// Config holds every tunable of a simulation run.
type Config struct {
	Seed int64 `json:"seed"` // Random seed (0 = random)

	// Grid
	Width      int  `json:"width"`
	Height     int  `json:"height"`
	Hex        bool `json:"hex"`         // Offset-column hex topology instead of square
	VonNeumann bool `json:"von_neumann"` // Square grids only: 4-neighborhoods for moving and contact

	// Population
	InitialPersons      int     `json:"initial_persons"`
	InitialInfluencers  int     `json:"initial_influencers"`
	InitialSkew         float64 `json:"initial_skew"`     // Fraction seeded at the opposite extreme, 0.0-1.0
	BaseInclination     int     `json:"base_inclination"` // Inclination of unskewed agents, 0-256
	PersonReproduce     float64 `json:"person_reproduce"` // Per-tick birth chance of an adult person
	InfluencerReproduce float64 `json:"influencer_reproduce"`
	Mortal              bool    `json:"mortal"` // Enables births and deaths
	MaxAge              int     `json:"max_age"`
	MaxFollowers        int     `json:"max_followers"`
	Clustering          float64 `json:"clustering"` // 0 uniform placement, 1 density-driven

	// Opinion
	ProximityInfluence  float64 `json:"proximity_influence"`
	InfluencerInfluence float64 `json:"influencer_influence"`
	InfluencerChanges   bool    `json:"influencer_changes"` // Influencers absorb ideas from people

	// Feature switches
	EnableInfluencers bool `json:"enable_influencers"`
	EnableTerritories bool `json:"enable_territories"`
	Territories       int  `json:"territories"`
}

// DefaultConfig returns the reference parameter set.
func DefaultConfig() Config {
	return Config{
		Width:               20,
		Height:              20,
		InitialPersons:      100,
		InitialInfluencers:  50,
		InitialSkew:         0,
		BaseInclination:     agents.MinInclination,
		PersonReproduce:     0.04,
		InfluencerReproduce: 0.05,
		Mortal:              true,
		MaxAge:              80,
		MaxFollowers:        1000,
		ProximityInfluence:  0.3,
		InfluencerInfluence: 0.3,
		InfluencerChanges:   true,
		EnableInfluencers:   false,
		EnableTerritories:   false,
		Territories:         4,
	}
}

// SmallTestConfig returns a tiny, fast configuration for tests.
func SmallTestConfig() Config {
	cfg := DefaultConfig()
	cfg.Seed = 42
	cfg.Width = 8
	cfg.Height = 8
	cfg.InitialPersons = 20
	cfg.InitialInfluencers = 5
	return cfg
}

// Topology returns the grid topology selected by the config.
func (c Config) Topology() world.Topology {
	if c.Hex {
		return world.TopologyHex
	}
	return world.TopologySquare
}

// Opinion returns the opinion model parameters.
func (c Config) Opinion() agents.OpinionParams {
	return agents.OpinionParams{
		Proximity:         c.ProximityInfluence,
		InfluencerBoost:   c.InfluencerInfluence,
		InfluencerChanges: c.InfluencerChanges,
	}
}

// Validate reports every invalid setting at once, wrapped in ErrInvalidConfig.
func (c Config) Validate() error {
	var errs []error
	bad := func(format string, args ...any) {
		errs = append(errs, fmt.Errorf(format, args...))
	}

	if c.Width <= 0 || c.Height <= 0 {
		bad("grid must be at least 1x1, got %dx%d", c.Width, c.Height)
	}
	if c.InitialPersons < 0 {
		bad("initial persons must not be negative, got %d", c.InitialPersons)
	}
	if c.InitialInfluencers < 0 {
		bad("initial influencers must not be negative, got %d", c.InitialInfluencers)
	}
	if c.InitialSkew < 0 || c.InitialSkew > 1 {
		bad("initial skew must be in [0,1], got %g", c.InitialSkew)
	}
	if c.BaseInclination < agents.MinInclination || c.BaseInclination > agents.MaxInclination {
		bad("base inclination must be in [%d,%d], got %d", agents.MinInclination, agents.MaxInclination, c.BaseInclination)
	}
	if c.PersonReproduce < 0 || c.PersonReproduce > 1 {
		bad("person reproduction rate must be in [0,1], got %g", c.PersonReproduce)
	}
	if c.InfluencerReproduce < 0 || c.InfluencerReproduce > 1 {
		bad("influencer reproduction rate must be in [0,1], got %g", c.InfluencerReproduce)
	}
	if c.MaxAge < 1 {
		bad("max age must be at least 1, got %d", c.MaxAge)
	}
	if c.MaxFollowers < 0 {
		bad("max followers must not be negative, got %d", c.MaxFollowers)
	}
	if c.Clustering < 0 || c.Clustering > 1 {
		bad("clustering must be in [0,1], got %g", c.Clustering)
	}
	if c.ProximityInfluence < 0 {
		bad("proximity influence must not be negative, got %g", c.ProximityInfluence)
	}
	if c.InfluencerInfluence < 0 {
		bad("influencer influence must not be negative, got %g", c.InfluencerInfluence)
	}
	if c.Hex && c.Width%2 != 0 {
		// Offset columns alternate parity; an odd width puts two even
		// columns side by side across the seam.
		bad("hex grids need an even width, got %d", c.Width)
	}
	if c.EnableTerritories {
		// Capitals take distinct columns and distinct rows.
		limit := min(c.Width, c.Height)
		if c.Territories < 1 || c.Territories > limit {
			bad("territory count must be in [1,%d] for a %dx%d grid, got %d", limit, c.Width, c.Height, c.Territories)
		}
	}

	if len(errs) == 0 {
		return nil
	}
	return fmt.Errorf("%w: %w", ErrInvalidConfig, errors.Join(errs...))
}

// Bind attaches the configuration to the provided FlagSet.
func (c *Config) Bind(fs *flag.FlagSet) {
	fs.Int64Var(&c.Seed, "seed", c.Seed, "random seed (0 = random)")
	fs.IntVar(&c.Width, "width", c.Width, "grid width")
	fs.IntVar(&c.Height, "height", c.Height, "grid height")
	fs.BoolVar(&c.Hex, "hex", c.Hex, "use a hex grid")
	fs.BoolVar(&c.VonNeumann, "von-neumann", c.VonNeumann, "4-neighborhoods on square grids")

	fs.IntVar(&c.InitialPersons, "persons", c.InitialPersons, "initial person population")
	fs.IntVar(&c.InitialInfluencers, "influencers", c.InitialInfluencers, "initial influencer population")
	fs.Float64Var(&c.InitialSkew, "skew", c.InitialSkew, "fraction of the initial population at the opposite extreme")
	fs.IntVar(&c.BaseInclination, "base-inclination", c.BaseInclination, "inclination of unskewed agents (0-256)")
	fs.Float64Var(&c.PersonReproduce, "person-reproduce", c.PersonReproduce, "person reproduction rate")
	fs.Float64Var(&c.InfluencerReproduce, "influencer-reproduce", c.InfluencerReproduce, "influencer reproduction rate")
	fs.BoolVar(&c.Mortal, "mortal", c.Mortal, "enable births and deaths")
	fs.IntVar(&c.MaxAge, "max-age", c.MaxAge, "maximum age")
	fs.IntVar(&c.MaxFollowers, "max-followers", c.MaxFollowers, "upper bound of influencer follower counts")
	fs.Float64Var(&c.Clustering, "clustering", c.Clustering, "bias initial placement toward dense regions (0-1)")

	fs.Float64Var(&c.ProximityInfluence, "proximity-influence", c.ProximityInfluence, "fraction of the opinion gap absorbed per contact")
	fs.Float64Var(&c.InfluencerInfluence, "influencer-influence", c.InfluencerInfluence, "extra weight of influencer sources")
	fs.BoolVar(&c.InfluencerChanges, "influencer-changes", c.InfluencerChanges, "influencers absorb ideas from people")

	fs.BoolVar(&c.EnableInfluencers, "enable-influencers", c.EnableInfluencers, "seed influencers")
	fs.BoolVar(&c.EnableTerritories, "enable-territories", c.EnableTerritories, "partition the grid into territories")
	fs.IntVar(&c.Territories, "territories", c.Territories, "number of territories")
}
