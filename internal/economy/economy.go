// Package economy runs the five-good production/demand/trade model:
// per-region production and subsistence demand, Laplacian trade diffusion
// over the region graph, price and specialization drift, per-agent income
// and hardship, and probabilistic economic-system transitions. The
// supply/demand/price resolution generalizes a per-settlement barter model
// to region-scale Laplacian trade flow.
package economy

import (
	"math"
	"math/rand"
	"sort"

	"github.com/talgya/civkernel/internal/agenttable"
	"github.com/talgya/civkernel/internal/econgraph"
	"github.com/talgya/civkernel/internal/kerrors"
	"github.com/talgya/civkernel/internal/params"
	"github.com/talgya/civkernel/internal/region"
)

// Tech is the per-good baseline productivity multiplier; fixed for the
// simulation's duration, unlike endowment/specialization which drift.
var Tech = [params.NumGoods]float64{1.0, 1.0, 1.1, 1.0, 0.9}

// Run executes one economy tick (production through system transitions)
// across all regions, mutating region state and writing agent
// income/hardship/wealth. A non-nil error means monitor caught a
// NumericError (trade non-conservation or negative wealth) and
// Cfg.StrictNumericChecks made it fatal.
func Run(regions []*region.Region, tg *econgraph.TradeGraph, tbl *agenttable.Table, rng *rand.Rand, monitor *kerrors.NumericMonitor) error {
	popByRegion := make(map[int32]int64, len(regions))
	for row := 0; row < tbl.Len(); row++ {
		if tbl.Alive[row] {
			popByRegion[tbl.Region[row]]++
		}
	}
	for _, r := range regions {
		r.Population = popByRegion[r.ID]
	}

	production(regions)
	demand(regions)
	surplus, err := trade(regions, tg, monitor)
	if err != nil {
		return err
	}
	priceUpdate(regions, surplus)
	specializationDrift(regions, surplus)
	if err := agentIncomeAndHardship(regions, tbl, monitor); err != nil {
		return err
	}
	systemTransitions(regions, rng)
	inequality(regions, tbl)
	systemDrift(regions)
	return nil
}

func production(regions []*region.Region) {
	for _, r := range regions {
		for g := 0; g < params.NumGoods; g++ {
			r.Production[g] = r.Endowment[g] * float64(r.Population) *
				(1 + r.Specialization[g]) * Tech[g] * r.Efficiency *
				(1 + 0.2*r.Development)
		}
	}
}

// perCapitaSubsistence gives the baseline per-capita demand vector for a
// region's climate band, with tools/services/luxury demand growing with
// development.
func perCapitaSubsistence(r *region.Region) [params.NumGoods]float64 {
	var base [params.NumGoods]float64
	switch r.ClimateBand() {
	case region.ClimateCold:
		base[region.GoodFood] = 1.2
		base[region.GoodEnergy] = 1.3
	case region.ClimateTemperate:
		base[region.GoodFood] = 1.0
		base[region.GoodEnergy] = 1.0
	case region.ClimateHot:
		base[region.GoodFood] = 0.9
		base[region.GoodEnergy] = 0.7
	}
	base[region.GoodTools] = 0.2 + 0.3*r.Development
	base[region.GoodServices] = 0.1 + 0.5*r.Development
	base[region.GoodLuxury] = 0.05 * r.Development
	return base
}

func demand(regions []*region.Region) {
	for _, r := range regions {
		perCapita := perCapitaSubsistence(r)
		for g := 0; g < params.NumGoods; g++ {
			r.Demand[g] = perCapita[g] * float64(r.Population)
		}
	}
}

// trade runs Laplacian diffusion for each good independently and applies
// the per-hop transport loss, returning the post-trade surplus (production
// minus demand minus net outflow) per region per good. The sender gives up
// its full outflow and the receiver gets its inflow less the transport
// loss, so each good's total surplus shrinks by exactly the loss. The
// post-trade total is compared against the pre-trade total minus that loss,
// within monitor's tolerance (spec.md §7's "trade non-conservation beyond
// 1% of the larger side").
func trade(regions []*region.Region, tg *econgraph.TradeGraph, monitor *kerrors.NumericMonitor) ([][params.NumGoods]float64, error) {
	n := len(regions)
	surplus := make([][params.NumGoods]float64, n)
	if tg == nil || tg.NumNodes() == 0 {
		for i, r := range regions {
			for g := 0; g < params.NumGoods; g++ {
				surplus[i][g] = r.Production[g] - r.Demand[g]
			}
		}
		return surplus, nil
	}

	rawSurplus := make([]float64, tg.NumNodes())
	for g := 0; g < params.NumGoods; g++ {
		var rawTotal float64
		for row := 0; row < tg.NumNodes(); row++ {
			regionID := tg.RegionAt(row)
			r := regionByID(regions, regionID)
			rawSurplus[row] = r.Production[g] - r.Demand[g]
			rawTotal += rawSurplus[row]
		}

		flow := tg.Diffuse(rawSurplus, 0.1)
		var adjustedTotal, lossTotal float64
		for row := 0; row < tg.NumNodes(); row++ {
			regionID := tg.RegionAt(row)
			idx := indexByID(regions, regionID)
			adjusted := rawSurplus[row] + flow[row]
			if flow[row] > 0 {
				loss := flow[row] * params.TransportLossPerHop
				adjusted -= loss // inflow shrinks by the loss on arrival
				lossTotal += loss
			}
			surplus[idx][g] = adjusted
			adjustedTotal += adjusted
		}

		tolerance := 0.01 * math.Max(math.Abs(rawTotal), math.Abs(adjustedTotal))
		if math.Abs(adjustedTotal-(rawTotal-lossTotal)) > tolerance {
			if err := monitor.Check("trade non-conservation for good %d: raw=%.4f adjusted=%.4f", g, rawTotal, adjustedTotal); err != nil {
				return nil, err
			}
		}
	}
	return surplus, nil
}

func regionByID(regions []*region.Region, id int32) *region.Region {
	for _, r := range regions {
		if r.ID == id {
			return r
		}
	}
	return nil
}

func indexByID(regions []*region.Region, id int32) int {
	for i, r := range regions {
		if r.ID == id {
			return i
		}
	}
	return -1
}

func priceUpdate(regions []*region.Region, surplus [][params.NumGoods]float64) {
	for i, r := range regions {
		elasticity := coefficientsFor(r.System).PriceElasticity
		epsilon := params.PriceUpRate * elasticity
		for g := 0; g < params.NumGoods; g++ {
			if r.Demand[g] > r.Production[g]+surplus[i][g] {
				r.Prices[g] *= 1 + epsilon
			} else {
				r.Prices[g] *= 1 - params.PriceDownFactor*epsilon
			}
			r.Prices[g] = clamp(r.Prices[g], params.PriceFloor, params.PriceCeiling)
		}
	}
}

func specializationDrift(regions []*region.Region, surplus [][params.NumGoods]float64) {
	for i, r := range regions {
		rate := coefficientsFor(r.System).SpecializationRate
		for g := 0; g < params.NumGoods; g++ {
			if surplus[i][g] > 0 {
				r.Specialization[g] += params.SpecializationUpStep * rate
			} else {
				r.Specialization[g] -= params.SpecializationDownStep * rate
			}
			r.Specialization[g] = clamp(r.Specialization[g], params.SpecializationMin, params.SpecializationMax)
		}
	}
}

// agentIncomeAndHardship computes each live agent's income from its sector's
// share of regional production value, and a development-weighted hardship
// score from subsistence shortfall, then rolls hardship into the region.
// Negative wealth after income is applied is a NumericError (spec.md §7):
// monitor decides whether that's fatal or just clamped-and-counted.
func agentIncomeAndHardship(regions []*region.Region, tbl *agenttable.Table, monitor *kerrors.NumericMonitor) error {
	type sectorTotals struct {
		productivitySum [params.NumGoods]float64
	}
	totals := make(map[int32]*sectorTotals, len(regions))
	for _, r := range regions {
		totals[r.ID] = &sectorTotals{}
	}
	for row := 0; row < tbl.Len(); row++ {
		if !tbl.Alive[row] {
			continue
		}
		sector := tbl.Sector[row]
		if int(sector) >= params.NumGoods {
			continue
		}
		totals[tbl.Region[row]].productivitySum[sector] += tbl.Productivity[row]
	}

	byID := make(map[int32]*region.Region, len(regions))
	for _, r := range regions {
		byID[r.ID] = r
	}

	hardshipSum := make(map[int32]float64, len(regions))
	hardshipCount := make(map[int32]int, len(regions))

	for row := 0; row < tbl.Len(); row++ {
		if !tbl.Alive[row] {
			continue
		}
		r := byID[tbl.Region[row]]
		sector := tbl.Sector[row]
		if int(sector) < params.NumGoods {
			sum := totals[r.ID].productivitySum[sector]
			if sum > 0 {
				share := tbl.Productivity[row] / sum
				tbl.Income[row] = share * r.Production[sector] * r.Prices[sector]
				tbl.Wealth[row] += tbl.Income[row]
				if tbl.Wealth[row] < 0 {
					if err := monitor.Check("negative wealth for agent row %d", row); err != nil {
						return err
					}
					tbl.Wealth[row] = 0
				}
			}
		}

		h := agentHardship(r)
		tbl.Hardship[row] = h
		hardshipSum[r.ID] += h
		hardshipCount[r.ID]++
	}

	for _, r := range regions {
		if hardshipCount[r.ID] > 0 {
			r.Hardship = hardshipSum[r.ID] / float64(hardshipCount[r.ID])
		}
	}
	return nil
}

// agentHardship scores subsistence shortfall in food/energy/tools/services,
// weighted by the region's development (more developed regions feel
// shortages in services/tools more acutely).
func agentHardship(r *region.Region) float64 {
	var shortfall float64
	weights := [4]float64{1.0, 1.0, 0.5 + 0.5*r.Development, 0.3 + 0.7*r.Development}
	goods := [4]region.Good{region.GoodFood, region.GoodEnergy, region.GoodTools, region.GoodServices}
	for i, g := range goods {
		if r.Demand[g] <= 0 {
			continue
		}
		deficit := (r.Demand[g] - r.Production[g]) / r.Demand[g]
		if deficit > 0 {
			shortfall += weights[i] * deficit
		}
	}
	return clamp(shortfall/4, 0, 2)
}

// systemTransitions probabilistically moves a region's economic-system tag
// toward one implied by its belief centroid, hardship, and inequality, with
// institutional inertia keeping transitions rare — instability is modeled
// as a decaying accumulator gating rare regime-change events, the same
// shape used for political-revolution risk.
func systemTransitions(regions []*region.Region, rng *rand.Rand) {
	for _, r := range regions {
		target := impliedSystem(r)
		if target == r.System {
			r.SystemStability = math.Min(r.SystemStability+0.01, 2.0)
			continue
		}
		inertia := r.SystemStability / 2.0
		pressure := clamp(r.Hardship+r.Inequality, 0, 1)
		prob := params.SystemTransitionMin + pressure*(params.SystemTransitionMax-params.SystemTransitionMin)
		prob *= 1 - inertia*0.5
		if rng.Float64() < prob {
			r.System = target
			r.SystemStability = 0.2
		} else {
			r.SystemStability = math.Max(r.SystemStability-0.02, 0)
		}
	}
}

func impliedSystem(r *region.Region) region.System {
	switch {
	case r.Hardship > 1.0 && r.Inequality > 0.5:
		return region.SystemFeudal
	case r.Inequality < 0.2 && r.Development > 0.5:
		return region.SystemCooperative
	case r.Development > 1.0:
		return region.SystemMarket
	case r.Hardship > 0.6:
		return region.SystemPlanned
	default:
		return region.SystemMixed
	}
}

// inequality computes a true Gini coefficient over sorted regional wealth,
// O(n log n), never derived from the system tag.
func inequality(regions []*region.Region, tbl *agenttable.Table) {
	wealthByRegion := make(map[int32][]float64, len(regions))
	for row := 0; row < tbl.Len(); row++ {
		if !tbl.Alive[row] {
			continue
		}
		r := tbl.Region[row]
		wealthByRegion[r] = append(wealthByRegion[r], tbl.Wealth[row])
	}
	for _, r := range regions {
		r.Inequality = gini(wealthByRegion[r.ID])
	}
}

func gini(wealth []float64) float64 {
	n := len(wealth)
	if n == 0 {
		return 0
	}
	sorted := make([]float64, n)
	copy(sorted, wealth)
	sort.Float64s(sorted)

	var sum, weightedSum float64
	for i, w := range sorted {
		sum += w
		weightedSum += float64(i+1) * w
	}
	if sum == 0 {
		return 0
	}
	return (2*weightedSum)/(float64(n)*sum) - float64(n+1)/float64(n)
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
