package kernel

import (
	"encoding/json"
	"regexp"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMetricsJSONUsesFixedFourDecimalFloats(t *testing.T) {
	m := Metrics{Generation: 3, PolarizationMean: 0.5, Welfare: 1.0, Population: 10}
	b, err := json.Marshal(m)
	require.NoError(t, err)

	assert.Regexp(t, regexp.MustCompile(`"polarization_mean":0\.5000\b`), string(b))
	assert.Regexp(t, regexp.MustCompile(`"welfare":1\.0000\b`), string(b))

	var round map[string]any
	require.NoError(t, json.Unmarshal(b, &round))
	assert.InDelta(t, 0.5, round["polarization_mean"], 1e-9)
}

func TestAgentSnapshotJSONOmitsNilTraitsAndFormatsBeliefs(t *testing.T) {
	snap := AgentSnapshot{ID: 1, Beliefs: [4]float64{0.5, -1, 0, 0.125}}
	b, err := json.Marshal(snap)
	require.NoError(t, err)

	assert.NotContains(t, string(b), "openness")
	assert.Regexp(t, regexp.MustCompile(`0\.5000`), string(b))
	assert.Regexp(t, regexp.MustCompile(`-1\.0000`), string(b))
}
