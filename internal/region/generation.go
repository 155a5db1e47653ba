// Geography generation: regions are placed on a unit grid and given
// layered-noise endowments, using the same layered-simplex-noise technique
// as terrain generation, adapted from a hex terrain grid to unit-grid
// region placement.
package region

import (
	"math"

	opensimplex "github.com/ojrac/opensimplex-go"
)

// GenConfig controls region geography generation.
type GenConfig struct {
	NumRegions int
	Seed       int64
}

// Generate lays out NumRegions regions at the cell centres of a roughly
// square lattice on the unit grid (positions carry no noise) and assigns
// each a latitude climate proxy and noise-derived good endowments.
func Generate(cfg GenConfig) []*Region {
	if cfg.NumRegions <= 0 {
		return nil
	}

	endowNoise := make([]opensimplex.Noise, 0, 5)
	for g := 0; g < 5; g++ {
		endowNoise = append(endowNoise, opensimplex.NewNormalized(cfg.Seed+int64(g)+1))
	}

	side := int(math.Ceil(math.Sqrt(float64(cfg.NumRegions))))
	regions := make([]*Region, 0, cfg.NumRegions)

	for i := 0; i < cfg.NumRegions; i++ {
		gx := i % side
		gy := i / side

		x := (float64(gx) + 0.5) / float64(side)
		y := (float64(gy) + 0.5) / float64(side)

		// Latitude proxy: distance from the vertical center of the grid,
		// in [-1, 1], matching the unit-grid (x, y) placement.
		latitude := (y - 0.5) * 2

		r := NewRegion(int32(i), x, y, latitude)

		for g := 0; g < 5; g++ {
			n := endowNoise[g].Eval2(x*4, y*4) // 0..1
			r.Endowment[g] = 0.2 + n*0.8
		}

		// Development starts low and noisy; economy.systemDrift grows or
		// erodes it each economy tick per the region's economic-system coefficients.
		devNoise := opensimplex.NewNormalized(cfg.Seed + 99)
		r.Development = 0.05 + devNoise.Eval2(x*3, y*3)*0.3

		regions = append(regions, r)
	}

	AssignTradePartners(regions, cfg.Seed)
	return regions
}
