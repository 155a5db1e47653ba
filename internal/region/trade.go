package region

import (
	"math"
	"math/rand"
	"sort"
)

// AssignTradePartners picks each region's trade partners by Euclidean
// proximity on the unit grid, the same nearest-neighbor selection shape
// used for settlement trade-range in a hex grid. Partner count is
// 2 + floor(development*10) + U{0,3}.
func AssignTradePartners(regions []*Region, seed int64) {
	n := len(regions)
	if n <= 1 {
		return
	}
	rng := rand.New(rand.NewSource(seed + 7))

	type dist struct {
		idx int
		d   float64
	}

	for i, r := range regions {
		candidates := make([]dist, 0, n-1)
		for j, other := range regions {
			if i == j {
				continue
			}
			dx := r.X - other.X
			dy := r.Y - other.Y
			candidates = append(candidates, dist{idx: j, d: math.Hypot(dx, dy)})
		}
		sort.Slice(candidates, func(a, b int) bool { return candidates[a].d < candidates[b].d })

		count := 2 + int(r.Development*10) + rng.Intn(4)
		if count > len(candidates) {
			count = len(candidates)
		}

		partners := make([]int32, 0, count)
		for k := 0; k < count; k++ {
			partners = append(partners, regions[candidates[k].idx].ID)
		}
		r.TradePartners = partners
	}
}
