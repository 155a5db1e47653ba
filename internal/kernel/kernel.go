// Package kernel wires the agent table, region geography, economy,
// demography, migration, belief, and clustering subsystems into the
// simulation's top-level tick loop: a tick counter plus per-cadence
// callbacks, generalized from wall-clock pacing to a fixed-interval
// EconomyTick/MigrationTick/CleanupTick schedule.
package kernel

import (
	"log/slog"
	"math/rand"

	"github.com/google/uuid"

	"github.com/talgya/civkernel/internal/agenttable"
	"github.com/talgya/civkernel/internal/belief"
	"github.com/talgya/civkernel/internal/cluster"
	"github.com/talgya/civkernel/internal/demography"
	"github.com/talgya/civkernel/internal/econgraph"
	"github.com/talgya/civkernel/internal/economy"
	"github.com/talgya/civkernel/internal/kerrors"
	"github.com/talgya/civkernel/internal/migration"
	"github.com/talgya/civkernel/internal/params"
	"github.com/talgya/civkernel/internal/region"
	"github.com/talgya/civkernel/internal/wsgraph"
)

// Config collects every knob the kernel's behavior depends on.
type Config struct {
	Population int
	Regions    int

	AvgConnections int
	RewireProb     float64

	StepSize float64
	SimFloor float64

	TicksPerYear   int
	MaxAgeYears    int
	RegionCapacity int

	DemographyEnabled bool
	UseMeanField      bool

	Seed          int64
	NumWorkers    int
	MaxPopulation int

	// StrictNumericChecks turns a NumericError (non-finite belief, negative
	// wealth, trade non-conservation beyond tolerance) into a fatal error
	// that aborts the tick, the debug-build behavior spec.md §7 requires.
	// Left false (the release default), the same violation is clamped and
	// counted in NumericWarnings instead of stopping the run.
	StrictNumericChecks bool
}

// DefaultConfig returns a single "sane defaults" constructor result,
// generalized to this domain's knobs.
func DefaultConfig() Config {
	return Config{
		Population:        1000,
		Regions:           5,
		AvgConnections:    params.DefaultAvgConnections,
		RewireProb:        params.DefaultRewireProb,
		StepSize:          params.DefaultStepSize,
		SimFloor:          params.DefaultSimFloor,
		TicksPerYear:      params.TicksPerYearDefault,
		MaxAgeYears:       params.MaxAgeYearsDefault,
		RegionCapacity:    params.RegionCapacityDefault,
		DemographyEnabled: true,
		UseMeanField:      false,
		Seed:              1,
		NumWorkers:        1,
		MaxPopulation:     5_000_000,
	}
}

// Validate rejects a Config that would leave the kernel in an unusable state.
func (c Config) Validate() error {
	if c.Population == 0 {
		return kerrors.Config("population must be > 0")
	}
	if c.Regions == 0 {
		return kerrors.Config("regions must be > 0")
	}
	if c.TicksPerYear <= 0 {
		return kerrors.Config("ticksPerYear must be > 0")
	}
	if c.MaxAgeYears <= 0 {
		return kerrors.Config("maxAgeYears must be > 0")
	}
	if c.RegionCapacity <= 0 {
		return kerrors.Config("regionCapacity must be > 0")
	}
	return nil
}

// Kernel is the simulation's top-level mutable state and driver.
type Kernel struct {
	Cfg     Config
	RunID   string
	Tick    uint64
	Table   *agenttable.Table
	Regions []*region.Region
	Trade   *econgraph.TradeGraph
	Cluster *cluster.State

	// Monitor tracks NumericError events (see Config.StrictNumericChecks);
	// NumericWarnings is its running count, exposed for the `metrics` verb.
	Monitor *kerrors.NumericMonitor

	rng *rand.Rand
}

// NumericWarnings reports how many numeric violations have been clamped
// and counted instead of aborting the run (always 0 when
// Cfg.StrictNumericChecks is set, since the first violation is fatal then).
func (k *Kernel) NumericWarnings() uint64 {
	if k.Monitor == nil {
		return 0
	}
	return k.Monitor.Warnings
}

// New builds a kernel from cfg: geography, agent population, the
// small-world social graph, and initial cluster seeding.
func New(cfg Config) (*Kernel, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	regions := region.Generate(region.GenConfig{NumRegions: cfg.Regions, Seed: cfg.Seed})
	rng := rand.New(rand.NewSource(cfg.Seed))

	tbl := agenttable.New(cfg.Population)
	for i := 0; i < cfg.Population; i++ {
		r := regions[i%len(regions)]
		tbl.AddAgent(randomAgentTemplate(r, rng))
	}

	wsgraph.Build(tbl, cfg.AvgConnections, cfg.RewireProb, rng)
	trade := econgraph.Build(regions)

	k := &Kernel{
		Cfg:     cfg,
		RunID:   uuid.NewString(),
		Table:   tbl,
		Regions: regions,
		Trade:   trade,
		Monitor: &kerrors.NumericMonitor{Strict: cfg.StrictNumericChecks},
		rng:     rng,
	}
	k.Cluster = cluster.New(params.DefaultClusterK, params.DefaultClusterAlpha, params.DefaultReassignInterval, tbl, rng)

	slog.Info("kernel initialized", "run_id", k.RunID, "population", cfg.Population, "regions", cfg.Regions, "seed", cfg.Seed)
	return k, nil
}

func randomAgentTemplate(r *region.Region, rng *rand.Rand) agenttable.Template {
	return agenttable.Template{
		Region:          r.ID,
		Female:          rng.Float64() < 0.5,
		Age:             rng.Float64() * 60,
		ParentA:         agenttable.NoParent,
		ParentB:         agenttable.NoParent,
		LineageID:       uint32(rng.Intn(1 << 20)),
		PrimaryLang:     uint8(rng.Intn(4)),
		Dialect:         uint8(rng.Intn(256)),
		Fluency:         float32(0.3 + rng.Float64()*0.7),
		Openness:        float32(rng.Float64()),
		Conformity:      float32(rng.Float64()),
		Assertiveness:   float32(rng.Float64()),
		Sociality:       float32(rng.Float64()),
		X:               [4]float64{rng.NormFloat64() * 0.3, rng.NormFloat64() * 0.3, rng.NormFloat64() * 0.3, rng.NormFloat64() * 0.3},
		MComm:           float32(0.5 + rng.Float64()*0.5),
		MSusceptibility: float32(0.3 + rng.Float64()*0.7),
		MMobility:       float32(rng.Float64()),
		Wealth:          rng.Float64() * 10,
		Sector:          uint8(rng.Intn(params.NumGoods)),
	}
}

// Step advances the simulation by one tick, running each sub-system at its
// configured cadence. A NumericError returned here means
// Cfg.StrictNumericChecks caught a non-finite belief, negative wealth, or
// trade non-conservation; per spec.md §7 it bubbles out and the caller
// stops the run rather than continuing from corrupted state.
func (k *Kernel) Step() error {
	k.Tick++
	k.Table.AgeLiveAgents(1.0 / float64(k.Cfg.TicksPerYear))

	if k.Tick%params.EconomyTickInterval == 0 {
		if err := economy.Run(k.Regions, k.Trade, k.Table, k.rng, k.Monitor); err != nil {
			return err
		}
	}

	if k.Cfg.DemographyEnabled {
		demography.RunMortality(k.Table, k.Regions, k.Cfg.TicksPerYear, k.rng)
		demography.RunFertility(k.Table, k.Regions, k.Cfg.TicksPerYear, k.Cfg.MaxPopulation, k.Cfg.RegionCapacity, k.rng)

		// Migration is part of spec.md §4.5, gated by DemographyEnabled the
		// same as mortality/fertility (§4.4), not run unconditionally.
		if k.Tick%params.MigrationTickInterval == 0 {
			migration.Run(k.Table, k.Regions, k.Cfg.RegionCapacity, k.rng)
		}
	}

	beliefCfg := belief.Config{
		UseMeanField: k.Cfg.UseMeanField,
		StepSize:     k.Cfg.StepSize,
		SimFloor:     k.Cfg.SimFloor,
		NumWorkers:   k.Cfg.NumWorkers,
		MasterSeed:   k.Cfg.Seed,
		Tick:         k.Tick,
	}
	if err := belief.Update(k.Table, k.Regions, beliefCfg, k.Monitor); err != nil {
		return err
	}

	k.Cluster.Step(k.Table, k.Tick, k.rng)

	if k.Tick%params.CleanupTickInterval == 0 {
		k.Table.Compact()
	}
	return nil
}

// StepN advances the simulation by n ticks, stopping early if Step returns
// an error.
func (k *Kernel) StepN(n int) error {
	for i := 0; i < n; i++ {
		if err := k.Step(); err != nil {
			return err
		}
	}
	return nil
}

// Reset rebuilds the kernel in place with a new population, region count,
// graph degree, and rewire probability, keeping the rest of cfg.
func (k *Kernel) Reset(population, regions, avgConnections int, rewireProb float64) error {
	cfg := k.Cfg
	cfg.Population = population
	cfg.Regions = regions
	cfg.AvgConnections = avgConnections
	cfg.RewireProb = rewireProb

	fresh, err := New(cfg)
	if err != nil {
		return err
	}
	*k = *fresh
	return nil
}
