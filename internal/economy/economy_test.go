package economy

import (
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/talgya/civkernel/internal/agenttable"
	"github.com/talgya/civkernel/internal/econgraph"
	"github.com/talgya/civkernel/internal/region"
)

func setup(n int, numRegions int) ([]*region.Region, *econgraph.TradeGraph, *agenttable.Table) {
	regions := region.Generate(region.GenConfig{NumRegions: numRegions, Seed: 3})
	tg := econgraph.Build(regions)
	tbl := agenttable.New(n)
	for i := 0; i < n; i++ {
		tbl.AddAgent(agenttable.Template{
			Region:  regions[i%numRegions].ID,
			Sector:  uint8(i % 5),
			Wealth:  10,
		})
	}
	return regions, tg, tbl
}

func TestRunProducesFiniteState(t *testing.T) {
	regions, tg, tbl := setup(200, 8)
	rng := rand.New(rand.NewSource(1))
	require.NoError(t, Run(regions, tg, tbl, rng, nil))

	for _, r := range regions {
		for g := 0; g < 5; g++ {
			require.False(t, isNaNOrInf(r.Prices[g]))
			assert.GreaterOrEqual(t, r.Prices[g], 0.01)
			assert.LessOrEqual(t, r.Prices[g], 100.0)
			assert.GreaterOrEqual(t, r.Specialization[g], -0.5)
			assert.LessOrEqual(t, r.Specialization[g], 0.3)
		}
		assert.GreaterOrEqual(t, r.Inequality, 0.0)
		assert.LessOrEqual(t, r.Inequality, 1.0)
	}
}

func TestGiniBounds(t *testing.T) {
	assert.InDelta(t, 0.0, gini([]float64{5, 5, 5, 5}), 1e-9)
	assert.Greater(t, gini([]float64{0, 0, 0, 100}), 0.5)
	assert.Equal(t, 0.0, gini(nil))
}

func TestDiffuseTradePreservesFiniteSurplus(t *testing.T) {
	regions, tg, _ := setup(0, 6)
	surplus, err := trade(regions, tg, nil)
	require.NoError(t, err)
	for _, row := range surplus {
		for _, v := range row {
			assert.False(t, isNaNOrInf(v))
		}
	}
}

func isNaNOrInf(v float64) bool {
	return v != v || v > 1e300 || v < -1e300
}
