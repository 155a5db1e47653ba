package econgraph

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/talgya/civkernel/internal/region"
)

func ring(n int) []*region.Region {
	regions := make([]*region.Region, n)
	for i := 0; i < n; i++ {
		regions[i] = region.NewRegion(int32(i), float64(i), 0, 0)
	}
	for i := 0; i < n; i++ {
		regions[i].TradePartners = []int32{int32((i + 1) % n), int32((i - 1 + n) % n)}
	}
	return regions
}

func TestBuildNodeCount(t *testing.T) {
	tg := Build(ring(6))
	require.Equal(t, 6, tg.NumNodes())
}

func TestDiffuseConservesMass(t *testing.T) {
	tg := Build(ring(5))
	n := tg.NumNodes()
	values := make([]float64, n)
	values[0] = 10
	delta := tg.Diffuse(values, 0.1)
	var sum float64
	for _, d := range delta {
		sum += d
	}
	assert.InDelta(t, 0.0, sum, 1e-9)
}

func TestRowOfUnknownRegion(t *testing.T) {
	tg := Build(ring(3))
	assert.Equal(t, -1, tg.RowOf(999))
}

func TestDiffuseIsolatedRegionUnaffected(t *testing.T) {
	regions := ring(4)
	isolated := region.NewRegion(99, 5, 5, 0)
	regions = append(regions, isolated)
	tg := Build(regions)
	values := make([]float64, tg.NumNodes())
	values[tg.RowOf(0)] = 10
	delta := tg.Diffuse(values, 0.1)
	assert.Equal(t, 0.0, delta[tg.RowOf(99)], "an isolated region has no trade edges, so diffusion must not move it")
}
