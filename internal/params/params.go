// Package params centralizes the simulation's tunable constants so no magic
// number is scattered across a tick phase — every threshold used by more
// than one package lives here, named for what it does.
package params

// Belief engine.
const (
	DefaultStepSize   = 0.05  // base influence-update strength
	DefaultSimFloor   = 0.05  // lower bound on cosine similarity gate
	LangMismatchPenalty = 0.25 // language-quality multiplier when primary_lang differs
	InnovationNoiseStd  = 0.03 // stddev of per-tick N(0, ·) innovation noise on x[k]
	BeliefClampMin      = -1.0
	BeliefClampMax       = 1.0

	// Anchoring (resistance to influence) — base + age term + assertiveness term, capped.
	AnchoringBase           = 0.05
	AnchoringAgeWeight      = 0.15
	AnchoringAssertWeight   = 0.20
	AnchoringMax            = 0.75

	// Economic feedback nudge applied after the belief update.
	HardshipNudgeThreshold = 0.5
	HardshipNudgeRate      = 0.001
	WealthNudgeRatio        = 1.5 // regional-mean-wealth multiple that triggers the wealth nudge
)

// Economy & trade.
const (
	NumGoods = 5

	TransportLossPerHop = 0.02
	PriceUpRate         = 0.01 // epsilon in price update
	PriceDownFactor      = 0.5 // applied to epsilon on the down side
	PriceFloor           = 0.01
	PriceCeiling         = 100.0

	SpecializationUpStep   = 0.001
	SpecializationDownStep = 0.0005
	SpecializationMin       = -0.5
	SpecializationMax       = 0.3

	SystemTransitionMin = 0.002 // 0.2%/tick floor when conditions are met
	SystemTransitionMax = 0.05  // 5%/tick ceiling
)

// Demography.
const (
	TicksPerYearDefault = 10
	MaxAgeYearsDefault  = 100
	RegionCapacityDefault = 10000

	BirthBeliefMutationStd     = 0.2
	BirthPersonalityMutationStd = 0.05
	BirthFluency                = 0.5
	BirthNeighborsFromMother    = 3
)

// AgeBand is one row of MortalityTable, which gives the annual death
// probability for each age band's upper bound, in ascending order:
// [0-5), [5-15), [15-50), [50-70), [70-85), [85-90), [90+).
type AgeBand struct {
	UpperExclusive int // age strictly below this falls in the band (0 for "90+")
	AnnualRate     float64
}

var MortalityTable = []AgeBand{
	{UpperExclusive: 5, AnnualRate: 0.01},
	{UpperExclusive: 15, AnnualRate: 0.001},
	{UpperExclusive: 50, AnnualRate: 0.002},
	{UpperExclusive: 70, AnnualRate: 0.01},
	{UpperExclusive: 85, AnnualRate: 0.05},
	{UpperExclusive: 90, AnnualRate: 0.15},
	{UpperExclusive: 0, AnnualRate: 1.0}, // 90+, UpperExclusive 0 is the "no upper bound" sentinel
}

// Migration.
const (
	MigrationMobilityAgeCenter = 25.0
	MigrationMobilityAgeSpan   = 2500.0 // (age-25)^2 / 2500

	MigrationPushSampleProbScale = 0.01
	MigrationCandidateCount      = 5
	MigrationBaseThreshold       = 0.15
	MigrationOpennessThreshold   = 0.3
	MigrationNeighborRetainBase  = 0.2
	MigrationNeighborRetainSocialWeight = 0.4
)

// Clustering.
const (
	DefaultClusterK         = 4
	DefaultClusterAlpha     = 0.05
	DefaultReassignInterval = 1000
	CharismaThreshold        = 0.7
)

// Graph construction.
const (
	DefaultAvgConnections = 8
	DefaultRewireProb     = 0.05
)

// Tick cadence.
const (
	EconomyTickInterval   = 10
	MigrationTickInterval = 10
	CleanupTickInterval   = 5
)
