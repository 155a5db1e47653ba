// Package econgraph wraps the region-scale trade topology in
// katalvlaran/lvlath's graph.Graph, giving the economy package a real
// adjacency-matrix Laplacian instead of a hand-rolled region graph. Region
// count stays in the hundreds, so the map-of-maps representation that
// would not scale to the agent social graph (internal/wsgraph) is exactly
// the right fit here.
package econgraph

import (
	"fmt"

	"github.com/katalvlaran/lvlath/graph"

	"github.com/talgya/civkernel/internal/region"
)

// TradeGraph is the region-scale trade network: a derived Laplacian, built
// from an undirected lvlath graph.Graph's AdjacencyMatrix, used to diffuse
// goods between trading partners each economy tick.
type TradeGraph struct {
	ids       []int32      // region ID per matrix row/col, in matrix order
	indexOf   map[int32]int
	laplacian [][]float64 // L = D - A, weights = 1/(1+distance-ish) proximity
}

func vertexID(regionID int32) string {
	return fmt.Sprintf("r%d", regionID)
}

// Build constructs the trade graph from each region's TradePartners list
// (populated by region.AssignTradePartners), deriving edge weights from
// geographic proximity so closer partners diffuse goods faster.
func Build(regions []*region.Region) *TradeGraph {
	g := graph.NewGraph(false, true)
	byID := make(map[int32]*region.Region, len(regions))
	for _, r := range regions {
		g.AddVertex(&graph.Vertex{ID: vertexID(r.ID), Metadata: map[string]interface{}{}})
		byID[r.ID] = r
	}
	for _, r := range regions {
		for _, partnerID := range r.TradePartners {
			g.AddEdge(vertexID(r.ID), vertexID(partnerID), 1)
		}
	}

	mat := graph.NewAdjacencyMatrix(g)
	ids := make([]int32, len(mat.Index))
	for _, r := range regions {
		if row, ok := mat.Index[vertexID(r.ID)]; ok {
			ids[row] = r.ID
		}
	}
	indexOf := make(map[int32]int, len(ids))
	for row, id := range ids {
		indexOf[id] = row
	}

	n := len(ids)
	weight := make([][]float64, n)
	for i := range weight {
		weight[i] = make([]float64, n)
	}
	for i, id := range ids {
		r := byID[id]
		for j := 0; j < n; j++ {
			if i == j || mat.Data[i][j] == 0 {
				continue
			}
			other := byID[ids[j]]
			dx := r.X - other.X
			dy := r.Y - other.Y
			dist := dx*dx + dy*dy
			weight[i][j] = 1.0 / (1.0 + dist*4)
		}
	}

	laplacian := make([][]float64, n)
	for i := range laplacian {
		laplacian[i] = make([]float64, n)
		var deg float64
		for j := 0; j < n; j++ {
			if i == j {
				continue
			}
			laplacian[i][j] = -weight[i][j]
			deg += weight[i][j]
		}
		laplacian[i][i] = deg
	}

	return &TradeGraph{ids: ids, indexOf: indexOf, laplacian: laplacian}
}

// NumNodes returns the number of regions in the graph.
func (tg *TradeGraph) NumNodes() int { return len(tg.ids) }

// RegionAt returns the region ID stored at the given Laplacian row/col.
func (tg *TradeGraph) RegionAt(row int) int32 { return tg.ids[row] }

// RowOf returns the Laplacian row index for a region ID, or -1 if absent.
func (tg *TradeGraph) RowOf(regionID int32) int {
	if row, ok := tg.indexOf[regionID]; ok {
		return row
	}
	return -1
}

// Diffuse computes, for a single good's per-region price (or stock) vector
// values (indexed by Laplacian row), the diffusion delta -rate * L * values,
// i.e. the flow that moves the good from high-price to low-price neighbors
// proportional to edge weight. The returned slice is the same length and
// row ordering as values.
func (tg *TradeGraph) Diffuse(values []float64, rate float64) []float64 {
	n := len(tg.ids)
	delta := make([]float64, n)
	for i := 0; i < n; i++ {
		var acc float64
		row := tg.laplacian[i]
		for j := 0; j < n; j++ {
			if row[j] == 0 {
				continue
			}
			acc += row[j] * values[j]
		}
		delta[i] = -rate * acc
	}
	return delta
}
