// Package demography aggregates agents into (region, age-band, sex)
// cohorts and drives mortality, fertility, and individual birth
// materialization each tick, generalized from per-agent coin flips to
// exact per-cohort binomial counts so RNG draws are O(cohorts) rather
// than O(population).
package demography

import (
	"math"
	"math/rand"

	"github.com/talgya/civkernel/internal/agenttable"
	"github.com/talgya/civkernel/internal/params"
	"github.com/talgya/civkernel/internal/region"
)

// cohortKey identifies a (region, age-band, sex) cohort.
type cohortKey struct {
	region  int32
	band    int // index into params.MortalityTable
	female  bool
}

// cohort holds the live agent ids currently in a (region, band, sex) group.
type cohort struct {
	ids []uint32
}

// bandOf returns the mortality-table index for an age.
func bandOf(age float64) int {
	for i, b := range params.MortalityTable {
		if b.UpperExclusive == 0 {
			return i // 90+ catch-all, last entry
		}
		if age < float64(b.UpperExclusive) {
			return i
		}
	}
	return len(params.MortalityTable) - 1
}

// annualToTick converts an annual probability to the equivalent per-tick
// probability given ticksPerYear ticks in a simulated year.
func annualToTick(pYear float64, ticksPerYear int) float64 {
	if ticksPerYear <= 0 {
		ticksPerYear = params.TicksPerYearDefault
	}
	return 1 - math.Pow(1-pYear, 1.0/float64(ticksPerYear))
}

// buildCohorts groups live agent ids by (region, age-band, sex).
func buildCohorts(tbl *agenttable.Table) map[cohortKey]*cohort {
	cohorts := make(map[cohortKey]*cohort)
	for row := 0; row < tbl.Len(); row++ {
		if !tbl.Alive[row] {
			continue
		}
		key := cohortKey{region: tbl.Region[row], band: bandOf(tbl.Age[row]), female: tbl.Female[row]}
		c, ok := cohorts[key]
		if !ok {
			c = &cohort{}
			cohorts[key] = c
		}
		c.ids = append(c.ids, tbl.ID[row])
	}
	return cohorts
}

// binomial draws a count from Binomial(n, p) by summing n independent
// Bernoulli trials. No pack example or ecosystem-typical dependency
// provides a Binomial sampler; this is the justified stdlib fallback
// (kept fast for the small per-cohort n the demography phase deals with).
func binomial(n int, p float64, rng *rand.Rand) int {
	if n <= 0 || p <= 0 {
		return 0
	}
	if p >= 1 {
		return n
	}
	var count int
	for i := 0; i < n; i++ {
		if rng.Float64() < p {
			count++
		}
	}
	return count
}

// sampleWithoutReplacement picks k distinct indices from [0, n) uniformly.
func sampleWithoutReplacement(n, k int, rng *rand.Rand) []int {
	if k >= n {
		out := make([]int, n)
		for i := range out {
			out[i] = i
		}
		return out
	}
	perm := rng.Perm(n)
	return perm[:k]
}

// RunMortality samples cohort deaths and flags the chosen agents dead.
func RunMortality(tbl *agenttable.Table, regions []*region.Region, ticksPerYear int, rng *rand.Rand) {
	byID := make(map[int32]*region.Region, len(regions))
	for _, r := range regions {
		byID[r.ID] = r
	}
	cohorts := buildCohorts(tbl)
	for key, c := range cohorts {
		n := len(c.ids)
		if n == 0 {
			continue
		}
		pYear := params.MortalityTable[key.band].AnnualRate
		r := byID[key.region]
		if r != nil {
			// Development and welfare reduce effective mortality; hardship
			// increases it, all bounded so p stays in [0, 1].
			modifier := 1 - 0.3*r.Development - 0.2*r.Welfare + 0.2*r.Hardship
			modifier = clamp(modifier, 0.2, 2.0)
			pYear = clamp(pYear*modifier, 0, 1)
		}
		pTick := annualToTick(pYear, ticksPerYear)
		deaths := binomial(n, pTick, rng)
		if deaths == 0 {
			continue
		}
		for _, idx := range sampleWithoutReplacement(n, deaths, rng) {
			_ = tbl.MarkDead(c.ids[idx])
		}
	}
}

// RunFertility samples cohort births (female cohorts only) and materializes
// each as a new agent via tbl.AddAgent. maxPopulation is the hard cap from
// KernelConfig (spec.md §6); once live population reaches it, further
// births are dropped rather than sampled, so a single tick can't overshoot
// by an unbounded amount under a runaway fertility rate. regionCapacity is
// KernelConfig.RegionCapacity, used to apply the same crowding penalty
// migration scores against.
func RunFertility(tbl *agenttable.Table, regions []*region.Region, ticksPerYear int, maxPopulation int, regionCapacity int, rng *rand.Rand) {
	byID := make(map[int32]*region.Region, len(regions))
	for _, r := range regions {
		byID[r.ID] = r
	}
	cohorts := buildCohorts(tbl)
	for key, c := range cohorts {
		if !key.female {
			continue
		}
		// Fertility only applies to reproductive-age bands: 15-50 (index 2
		// in params.MortalityTable's band ordering).
		if key.band != 2 {
			continue
		}
		n := len(c.ids)
		if n == 0 {
			continue
		}
		r := byID[key.region]
		rate := fertilityRate(tbl, r, c.ids, regionCapacity)
		pTick := annualToTick(rate, ticksPerYear)
		births := binomial(n, pTick, rng)
		for i := 0; i < births; i++ {
			if maxPopulation > 0 && tbl.LivePopulation() >= maxPopulation {
				break
			}
			motherIdx := c.ids[rng.Intn(n)]
			materializeBirth(tbl, motherIdx, rng)
		}
	}
}

// fertilityRate derives the annual per-woman birth probability from the
// region's Tradition<->Progress belief centroid (approximated by the mean
// of belief axis 0 across the cohort), development, relative wealth, and
// crowding against regionCapacity (KernelConfig.RegionCapacity).
func fertilityRate(tbl *agenttable.Table, r *region.Region, motherIDs []uint32, regionCapacity int) float64 {
	base := 0.08
	if r == nil || len(motherIDs) == 0 {
		return base
	}
	var beliefSum, wealthSum float64
	for _, id := range motherIDs {
		row := tbl.RowOf(id)
		if row < 0 {
			continue
		}
		beliefSum += tbl.B0[row]
		wealthSum += tbl.Wealth[row]
	}
	n := float64(len(motherIDs))
	traditionBias := -beliefSum / n // negative B0 (tradition) raises fertility
	avgWealth := wealthSum / n

	rate := base + 0.05*traditionBias + 0.03*r.Development
	if avgWealth > 0 {
		rate *= 1 + 0.1*math.Tanh(avgWealth/100)
	}
	if regionCapacity <= 0 {
		regionCapacity = params.RegionCapacityDefault
	}
	crowding := float64(r.Population) / float64(regionCapacity)
	if crowding > 1 {
		rate *= math.Max(0.1, 2-crowding)
	}
	return clamp(rate, 0, 0.5)
}

// materializeBirth creates a new agent from a mother row, picking a father
// from the mother's live-male neighbors (falling back to asexual), blending
// beliefs and personality, inheriting language, and connecting the child to
// the mother and a subset of the mother's neighbors.
func materializeBirth(tbl *agenttable.Table, motherID uint32, rng *rand.Rand) uint32 {
	motherRow := tbl.RowOf(motherID)
	if motherRow < 0 {
		return 0
	}

	fatherRow := int32(-1)
	for _, nb := range tbl.Neighbors[motherRow] {
		row := tbl.RowOf(nb)
		if row >= 0 && tbl.Alive[row] && !tbl.Female[row] {
			fatherRow = row
			break
		}
	}

	blend := func(a, b float64) float64 { return (a + b) / 2 }
	var x [4]float64
	motherX := [4]float64{tbl.X0[motherRow], tbl.X1[motherRow], tbl.X2[motherRow], tbl.X3[motherRow]}
	if fatherRow >= 0 {
		fatherX := [4]float64{tbl.X0[fatherRow], tbl.X1[fatherRow], tbl.X2[fatherRow], tbl.X3[fatherRow]}
		for k := 0; k < 4; k++ {
			x[k] = blend(motherX[k], fatherX[k]) + rng.NormFloat64()*params.BirthBeliefMutationStd
		}
	} else {
		for k := 0; k < 4; k++ {
			x[k] = motherX[k] + rng.NormFloat64()*params.BirthBeliefMutationStd
		}
	}

	personalityBlend := func(a, b float32) float32 {
		return float32(blend(float64(a), float64(b))) + float32(rng.NormFloat64()*params.BirthPersonalityMutationStd)
	}
	openness := personalityBlend(tbl.Openness[motherRow], tbl.Openness[motherRow])
	conformity := personalityBlend(tbl.Conformity[motherRow], tbl.Conformity[motherRow])
	assertiveness := personalityBlend(tbl.Assertiveness[motherRow], tbl.Assertiveness[motherRow])
	sociality := personalityBlend(tbl.Sociality[motherRow], tbl.Sociality[motherRow])
	if fatherRow >= 0 {
		openness = personalityBlend(tbl.Openness[motherRow], tbl.Openness[fatherRow])
		conformity = personalityBlend(tbl.Conformity[motherRow], tbl.Conformity[fatherRow])
		assertiveness = personalityBlend(tbl.Assertiveness[motherRow], tbl.Assertiveness[fatherRow])
		sociality = personalityBlend(tbl.Sociality[motherRow], tbl.Sociality[fatherRow])
	}

	tmpl := agenttable.Template{
		Region:        tbl.Region[motherRow],
		Female:        rng.Float64() < 0.5,
		Age:           0,
		ParentA:       motherID,
		LineageID:     tbl.LineageID[motherRow],
		PrimaryLang:   tbl.PrimaryLang[motherRow],
		Dialect:       tbl.Dialect[motherRow],
		Fluency:       params.BirthFluency,
		Openness:      clampF32(openness, 0, 1),
		Conformity:    clampF32(conformity, 0, 1),
		Assertiveness: clampF32(assertiveness, 0, 1),
		Sociality:     clampF32(sociality, 0, 1),
		X:             x,
		MComm:         tbl.MComm[motherRow],
		MSusceptibility: tbl.MSusceptibility[motherRow],
		MMobility:     tbl.MMobility[motherRow],
		Sector:        tbl.Sector[motherRow],
	}
	if fatherRow >= 0 {
		tmpl.ParentB = tbl.ID[fatherRow]
	} else {
		tmpl.ParentB = agenttable.NoParent
	}

	childID := tbl.AddAgent(tmpl)
	childRow := tbl.RowOf(childID)

	neighbors := tbl.Neighbors[motherRow]
	keep := params.BirthNeighborsFromMother
	if keep > len(neighbors) {
		keep = len(neighbors)
	}
	chosen := sampleWithoutReplacement(len(neighbors), keep, rng)
	newNeighbors := make([]uint32, 0, keep+1)
	newNeighbors = append(newNeighbors, motherID)
	for _, idx := range chosen {
		nb := neighbors[idx]
		newNeighbors = append(newNeighbors, nb)
		nbRow := tbl.RowOf(nb)
		if nbRow >= 0 {
			tbl.Neighbors[nbRow] = append(tbl.Neighbors[nbRow], childID)
		}
	}
	tbl.Neighbors[childRow] = newNeighbors
	tbl.Neighbors[motherRow] = append(tbl.Neighbors[motherRow], childID)

	return childID
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

func clampF32(v, lo, hi float32) float32 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
