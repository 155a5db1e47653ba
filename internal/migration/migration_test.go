package migration

import (
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/talgya/civkernel/internal/agenttable"
	"github.com/talgya/civkernel/internal/region"
)

func TestAgeMobilityFactorPeaksAt25(t *testing.T) {
	assert.InDelta(t, 1.0, ageMobilityFactor(25), 1e-9)
	assert.Less(t, ageMobilityFactor(80), ageMobilityFactor(30))
	assert.Equal(t, 0.0, ageMobilityFactor(1000))
}

func TestAttractivenessPenalizesCrowding(t *testing.T) {
	r := region.NewRegion(0, 0, 0, 0)
	r.Welfare = 1
	r.Development = 0.5
	uncrowded := attractiveness(r, 100, 10000)
	crowded := attractiveness(r, 1e6, 10000)
	assert.Greater(t, uncrowded, crowded)
}

func TestRunRelocatesUnderStrongPushPull(t *testing.T) {
	origin := region.NewRegion(0, 0, 0, 0)
	origin.Hardship = 2.0
	origin.Welfare = 0.0
	dest := region.NewRegion(1, 1, 1, 0)
	dest.Welfare = 2.0
	dest.Hardship = 0.0
	dest.Development = 1.0
	regions := []*region.Region{origin, dest}

	tbl := agenttable.New(1)
	id := tbl.AddAgent(agenttable.Template{
		Region:        0,
		Age:           25,
		MMobility:     1.0,
		Openness:      1.0,
		Sociality:     0.5,
		Neighbors:     []uint32{},
	})
	_ = id

	rng := rand.New(rand.NewSource(1))
	moved := false
	for i := 0; i < 200 && !moved; i++ {
		Run(tbl, regions, 10000, rng)
		if tbl.Region[0] == 1 {
			moved = true
		}
	}
	assert.True(t, moved, "expected agent to relocate under strong push/pull")
}

func TestRelocateRetainsFractionAndStaysSymmetric(t *testing.T) {
	tbl := agenttable.New(5)
	ids := make([]uint32, 5)
	for i := 0; i < 5; i++ {
		ids[i] = tbl.AddAgent(agenttable.Template{Region: 0})
	}
	tbl.Neighbors[0] = []uint32{ids[1], ids[2], ids[3], ids[4]}
	for i := 1; i < 5; i++ {
		tbl.Neighbors[i] = []uint32{ids[0]}
	}
	require.NoError(t, tbl.CheckNeighborSymmetry())

	rng := rand.New(rand.NewSource(3))
	relocate(tbl, 0, 7, 1.0, rng)
	// sociality 1.0 retains 0.2+0.4 = 60% of 4 neighbors, truncated to 2.
	assert.Len(t, tbl.Neighbors[0], 2)
	require.NoError(t, tbl.CheckNeighborSymmetry())
	assert.Equal(t, int32(7), tbl.Region[0])
}
