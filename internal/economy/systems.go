package economy

import "github.com/talgya/civkernel/internal/region"

// sysCoef is the per-variant coefficient row referenced by spec.md §9:
// economic-system variants are tagged enumerations with per-variant
// coefficient tables, not dynamic dispatch. Each row scales how a region
// under that system drifts in efficiency/welfare/development and how
// aggressively its prices and specialization respond to surplus.
type sysCoef struct {
	EfficiencyDrift    float64
	WelfareDrift       float64
	DevelopmentDrift   float64
	PriceElasticity    float64 // multiplies the price-update epsilon
	SpecializationRate float64 // multiplies the specialization drift step
}

// systemCoefficients is indexed by region.System; SystemMixed is the
// neutral baseline every other variant is scaled relative to.
var systemCoefficients = map[region.System]sysCoef{
	region.SystemMixed:       {EfficiencyDrift: 0, WelfareDrift: 0, DevelopmentDrift: 0.0010, PriceElasticity: 1.0, SpecializationRate: 1.0},
	region.SystemCooperative: {EfficiencyDrift: 0.0005, WelfareDrift: 0.0100, DevelopmentDrift: 0.0020, PriceElasticity: 0.8, SpecializationRate: 0.8},
	region.SystemMarket:      {EfficiencyDrift: 0.0020, WelfareDrift: -0.0020, DevelopmentDrift: 0.0030, PriceElasticity: 1.3, SpecializationRate: 1.3},
	region.SystemFeudal:      {EfficiencyDrift: -0.0020, WelfareDrift: -0.0100, DevelopmentDrift: -0.0010, PriceElasticity: 0.6, SpecializationRate: 0.6},
	region.SystemPlanned:     {EfficiencyDrift: -0.0005, WelfareDrift: 0.0050, DevelopmentDrift: 0.0015, PriceElasticity: 0.5, SpecializationRate: 1.0},
}

func coefficientsFor(s region.System) sysCoef {
	if c, ok := systemCoefficients[s]; ok {
		return c
	}
	return systemCoefficients[region.SystemMixed]
}

// systemDrift applies each region's current system's coefficient row to its
// slow-moving aggregates (efficiency, welfare, development), offset by
// hardship so a struggling region doesn't develop on autopilot. Bounded to
// spec.md §3's [0, ~2] range for these fields.
func systemDrift(regions []*region.Region) {
	for _, r := range regions {
		c := coefficientsFor(r.System)
		r.Efficiency = clamp(r.Efficiency+c.EfficiencyDrift-0.002*r.Hardship, 0, 2)
		r.Welfare = clamp(r.Welfare+c.WelfareDrift-0.01*r.Hardship+0.002*(1-r.Inequality), 0, 2)
		r.Development = clamp(r.Development+c.DevelopmentDrift*(1-0.5*r.Hardship), 0, 2)
	}
}
