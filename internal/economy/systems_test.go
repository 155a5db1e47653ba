package economy

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/talgya/civkernel/internal/region"
)

func TestCoefficientsForFallsBackToMixed(t *testing.T) {
	got := coefficientsFor(region.System(255))
	assert.Equal(t, systemCoefficients[region.SystemMixed], got)
}

func TestSystemDriftStaysBounded(t *testing.T) {
	regions := region.Generate(region.GenConfig{NumRegions: 5, Seed: 7})
	for _, r := range regions {
		r.Hardship = 5.0 // pathological input, drift must still clamp output
		r.System = region.SystemFeudal
	}
	for i := 0; i < 2000; i++ {
		systemDrift(regions)
	}
	for _, r := range regions {
		assert.GreaterOrEqual(t, r.Efficiency, 0.0)
		assert.LessOrEqual(t, r.Efficiency, 2.0)
		assert.GreaterOrEqual(t, r.Welfare, 0.0)
		assert.LessOrEqual(t, r.Welfare, 2.0)
		assert.GreaterOrEqual(t, r.Development, 0.0)
		assert.LessOrEqual(t, r.Development, 2.0)
	}
}
