package cluster

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestDBSCANFindsTwoDenseClusters(t *testing.T) {
	points := [][4]float64{
		{0, 0, 0, 0}, {0.01, 0, 0, 0}, {0, 0.01, 0, 0},
		{5, 5, 5, 5}, {5.01, 5, 5, 5}, {5, 5.01, 5, 5},
		{100, 100, 100, 100}, // noise, far from everything
	}
	alive := []bool{true, true, true, true, true, true, true}
	result := DBSCAN(points, alive, 0.1, 2)

	assert.Equal(t, 2, result.NumClusters)
	assert.Equal(t, result.Labels[0], result.Labels[1])
	assert.Equal(t, result.Labels[1], result.Labels[2])
	assert.Equal(t, result.Labels[3], result.Labels[4])
	assert.NotEqual(t, result.Labels[0], result.Labels[3])
	assert.Equal(t, -1, result.Labels[6])
}

func TestDBSCANSkipsDeadRows(t *testing.T) {
	points := [][4]float64{{0, 0, 0, 0}, {0.01, 0, 0, 0}}
	alive := []bool{true, false}
	result := DBSCAN(points, alive, 0.1, 1)
	assert.Equal(t, -1, result.Labels[1])
}
