package demography

import (
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/talgya/civkernel/internal/agenttable"
	"github.com/talgya/civkernel/internal/region"
)

func buildPopulation(n int) (*agenttable.Table, []*region.Region) {
	tbl := agenttable.New(n)
	regions := []*region.Region{region.NewRegion(0, 0.5, 0.5, 0)}
	for i := 0; i < n; i++ {
		id := tbl.AddAgent(agenttable.Template{
			Region: 0,
			Female: i%2 == 0,
			Age:    30,
		})
		row := tbl.RowOf(id)
		_ = row
	}
	// Wire a small ring of neighbors so births have someone to inherit from.
	for i := 0; i < n; i++ {
		tbl.Neighbors[i] = []uint32{uint32((i + 1) % n), uint32((i - 1 + n) % n)}
	}
	return tbl, regions
}

func TestBandOfBoundaries(t *testing.T) {
	assert.Equal(t, 0, bandOf(2))
	assert.Equal(t, 1, bandOf(10))
	assert.Equal(t, 2, bandOf(30))
	assert.Equal(t, 3, bandOf(60))
	assert.Equal(t, 6, bandOf(95))
}

func TestAnnualToTickMonotonic(t *testing.T) {
	p := annualToTick(0.1, 10)
	assert.Greater(t, p, 0.0)
	assert.Less(t, p, 0.1)
}

func TestRunMortalityFlagsSomeDead(t *testing.T) {
	tbl, regions := buildPopulation(2000)
	regions[0].Hardship = 1.0
	rng := rand.New(rand.NewSource(5))
	for i := 0; i < 50; i++ {
		RunMortality(tbl, regions, 10, rng)
	}
	assert.Less(t, tbl.LivePopulation(), 2000)
}

func TestRunFertilityMaterializesBirths(t *testing.T) {
	tbl, regions := buildPopulation(400)
	before := tbl.Len()
	rng := rand.New(rand.NewSource(9))
	for i := 0; i < 20; i++ {
		RunFertility(tbl, regions, 10, 0, 10000, rng)
	}
	assert.GreaterOrEqual(t, tbl.Len(), before)
}

func TestRunFertilityRespectsMaxPopulation(t *testing.T) {
	tbl, regions := buildPopulation(400)
	cap := tbl.Len() + 5
	rng := rand.New(rand.NewSource(9))
	for i := 0; i < 50; i++ {
		RunFertility(tbl, regions, 10, cap, 10000, rng)
	}
	assert.LessOrEqual(t, tbl.LivePopulation(), cap)
}

func TestMaterializeBirthSymmetricNeighbors(t *testing.T) {
	tbl, _ := buildPopulation(20)
	rng := rand.New(rand.NewSource(2))
	childID := materializeBirth(tbl, tbl.ID[0], rng)
	require.NoError(t, tbl.CheckNeighborSymmetry())
	assert.GreaterOrEqual(t, tbl.RowOf(childID), int32(0))
}

func TestMaterializeBirthBeliefFinite(t *testing.T) {
	tbl, _ := buildPopulation(10)
	rng := rand.New(rand.NewSource(4))
	childID := materializeBirth(tbl, tbl.ID[0], rng)
	row := tbl.RowOf(childID)
	require.GreaterOrEqual(t, row, int32(0))
	assert.False(t, tbl.B0[row] != tbl.B0[row]) // not NaN
}
