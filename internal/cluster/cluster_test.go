package cluster

import (
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/talgya/civkernel/internal/agenttable"
)

func buildAgents(n int) *agenttable.Table {
	tbl := agenttable.New(n)
	for i := 0; i < n; i++ {
		x := float64(i%2)*2 - 1 // clusters near -1 and +1
		tbl.AddAgent(agenttable.Template{X: [4]float64{x, x, x, x}, Assertiveness: float32(i%10) / 10})
	}
	return tbl
}

func TestNewSeedsAndAssignsEveryLiveAgent(t *testing.T) {
	tbl := buildAgents(50)
	rng := rand.New(rand.NewSource(1))
	s := New(3, 0.1, 10, tbl, rng)
	require.Len(t, s.Assignment, 50)
	for _, c := range s.Assignment {
		assert.GreaterOrEqual(t, c, 0)
		assert.Less(t, c, 3)
	}
}

func TestStepKeepsEveryAgentInReportSizes(t *testing.T) {
	tbl := buildAgents(100)
	rng := rand.New(rand.NewSource(2))
	s := New(2, 0.1, 5, tbl, rng)
	for tick := uint64(0); tick < 50; tick++ {
		s.Step(tbl, tick, rng)
	}
	report := s.Report(tbl)
	total := 0
	for _, sz := range report.Size {
		total += sz
	}
	assert.Equal(t, 100, total)
}

func TestReseedEmptyClusterGetsReassigned(t *testing.T) {
	tbl := buildAgents(10)
	rng := rand.New(rand.NewSource(3))
	s := New(5, 0.1, 1, tbl, rng)
	// Force one centroid far away so nothing gets assigned there, then
	// trigger reassignment + reseed.
	s.Centroids[0] = [4]float64{1000, 1000, 1000, 1000}
	s.Reassign(tbl)
	s.reseedEmpty(tbl, rng)
	sizes := make([]int, s.K)
	for _, c := range s.Assignment {
		if c >= 0 {
			sizes[c]++
		}
	}
	for _, sz := range sizes {
		assert.Greater(t, sz, 0)
	}
}

func TestMarkDeadAgentExcludedFromAssignment(t *testing.T) {
	tbl := buildAgents(10)
	rng := rand.New(rand.NewSource(4))
	s := New(2, 0.1, 10, tbl, rng)
	require.NoError(t, tbl.MarkDead(0))
	s.Step(tbl, 1, rng)
	assert.Equal(t, -1, s.Assignment[0])
}

func TestReportCoherenceBounded(t *testing.T) {
	tbl := buildAgents(20)
	rng := rand.New(rand.NewSource(5))
	s := New(2, 0.1, 10, tbl, rng)
	report := s.Report(tbl)
	for _, coh := range report.Coherence {
		assert.GreaterOrEqual(t, coh, -1.0)
		assert.LessOrEqual(t, coh, 1.0)
	}
}
