// Package migration relocates agents between regions based on age- and
// personality-weighted push/pull attractiveness, using a candidate-sampling
// plus scored-selection pattern generalized from settlement founding to
// ongoing relocation.
package migration

import (
	"math/rand"

	"github.com/talgya/civkernel/internal/agenttable"
	"github.com/talgya/civkernel/internal/params"
	"github.com/talgya/civkernel/internal/region"
)

// Run iterates live agents and relocates those whose sampled destination is
// sufficiently more attractive than their origin. regionCapacity is the
// configured carrying capacity (KernelConfig.RegionCapacity) used to score
// crowding at both the origin and every sampled destination.
func Run(tbl *agenttable.Table, regions []*region.Region, regionCapacity int, rng *rand.Rand) {
	byID := make(map[int32]*region.Region, len(regions))
	regionIDs := make([]int32, len(regions))
	for i, r := range regions {
		byID[r.ID] = r
		regionIDs[i] = r.ID
	}
	if len(regions) < 2 {
		return
	}

	for row := 0; row < tbl.Len(); row++ {
		if !tbl.Alive[row] {
			continue
		}
		ageFactor := ageMobilityFactor(tbl.Age[row])
		if ageFactor <= 0 {
			continue
		}
		origin := byID[tbl.Region[row]]
		if origin == nil {
			continue
		}
		push := origin.Hardship * float64(tbl.MMobility[row]) * ageFactor
		if rng.Float64() >= params.MigrationPushSampleProbScale*push {
			continue
		}

		best, bestScore := sampleBestDestination(origin, regions, regionIDs, regionCapacity, rng)
		if best == nil {
			continue
		}
		originScore := attractiveness(origin, float64(origin.Population), regionCapacity)
		openness := float64(tbl.Openness[row])
		threshold := params.MigrationBaseThreshold + params.MigrationOpennessThreshold*(1-openness)
		if bestScore-originScore <= threshold {
			continue
		}

		relocate(tbl, row, best.ID, float64(tbl.Sociality[row]), rng)
	}
}

func ageMobilityFactor(age float64) float64 {
	d := age - params.MigrationMobilityAgeCenter
	f := 1 - (d*d)/params.MigrationMobilityAgeSpan
	if f < 0 {
		return 0
	}
	return f
}

// sampleBestDestination draws MigrationCandidateCount random destinations
// (excluding origin) and returns the most attractive one and its score.
func sampleBestDestination(origin *region.Region, regions []*region.Region, regionIDs []int32, regionCapacity int, rng *rand.Rand) (*region.Region, float64) {
	var best *region.Region
	bestScore := -1e18
	tries := 0
	seen := make(map[int32]bool, params.MigrationCandidateCount)
	for len(seen) < params.MigrationCandidateCount && tries < params.MigrationCandidateCount*8 {
		tries++
		candID := regionIDs[rng.Intn(len(regionIDs))]
		if candID == origin.ID || seen[candID] {
			continue
		}
		seen[candID] = true
		r := regionByID(regions, candID)
		if r == nil {
			continue
		}
		score := attractiveness(r, float64(r.Population), regionCapacity)
		if score > bestScore {
			bestScore = score
			best = r
		}
	}
	return best, bestScore
}

func regionByID(regions []*region.Region, id int32) *region.Region {
	for _, r := range regions {
		if r.ID == id {
			return r
		}
	}
	return nil
}

// attractiveness scores a destination region, including a crowding penalty
// against regionCapacity (KernelConfig.RegionCapacity).
func attractiveness(r *region.Region, population float64, regionCapacity int) float64 {
	if regionCapacity <= 0 {
		regionCapacity = params.RegionCapacityDefault
	}
	crowding := population / float64(regionCapacity)
	crowdingPenalty := 0.0
	if crowding > 1 {
		crowdingPenalty = -0.5 * (crowding - 1)
	}
	return r.Welfare - 2*r.Hardship + 0.2*r.Development + crowdingPenalty
}

// relocate moves the agent at row into destRegion, retaining a
// sociality-weighted fraction of its old neighbor list and symmetrically
// severing the rest.
func relocate(tbl *agenttable.Table, row int, destRegion int32, sociality float64, rng *rand.Rand) {
	id := tbl.ID[row]
	retainFrac := params.MigrationNeighborRetainBase + params.MigrationNeighborRetainSocialWeight*sociality
	old := tbl.Neighbors[row]
	keep := int(float64(len(old)) * retainFrac)
	if keep > len(old) {
		keep = len(old)
	}

	perm := rng.Perm(len(old))
	keptSet := make(map[uint32]bool, keep)
	for i := 0; i < keep; i++ {
		keptSet[old[perm[i]]] = true
	}

	for _, nb := range old {
		if keptSet[nb] {
			continue
		}
		nbRow := tbl.RowOf(nb)
		if nbRow < 0 {
			continue
		}
		tbl.Neighbors[nbRow] = removeValue(tbl.Neighbors[nbRow], id)
	}

	newNeighbors := make([]uint32, 0, keep)
	for nb := range keptSet {
		newNeighbors = append(newNeighbors, nb)
	}
	tbl.Neighbors[row] = newNeighbors
	tbl.Region[row] = destRegion
}

func removeValue(s []uint32, v uint32) []uint32 {
	out := s[:0]
	for _, x := range s {
		if x != v {
			out = append(out, x)
		}
	}
	return out
}
