// Package cluster runs online k-means in 4-D belief space to detect
// emergent cultures: an incremental per-agent centroid nudge every tick, a
// periodic full reassignment pass, and empty-cluster reseeding, generalized
// from discrete faction membership to continuous online clustering.
package cluster

import (
	"math"
	"math/rand"

	"github.com/talgya/civkernel/internal/agenttable"
	"github.com/talgya/civkernel/internal/params"
)

// State holds k centroids, per-agent assignments (indexed by row, NOT by
// stable id — callers must re-run Reassign after a Compact), and the tick
// counter used to trigger periodic full reassignment.
type State struct {
	K               int
	Alpha           float64
	ReassignInterval uint64

	Centroids  [][4]float64
	Assignment []int // per-row cluster id, -1 if unassigned (dead row)
}

// New seeds k centroids from k live agents drawn uniformly at random with
// replacement, so two centroids can start on the same agent.
func New(k int, alpha float64, reassignInterval uint64, tbl *agenttable.Table, rng *rand.Rand) *State {
	if k <= 0 {
		k = params.DefaultClusterK
	}
	if alpha <= 0 {
		alpha = params.DefaultClusterAlpha
	}
	if reassignInterval == 0 {
		reassignInterval = params.DefaultReassignInterval
	}
	s := &State{K: k, Alpha: alpha, ReassignInterval: reassignInterval}
	s.Centroids = make([][4]float64, k)
	s.seedFromLiveAgents(tbl, rng)
	s.Assignment = make([]int, tbl.Len())
	s.Reassign(tbl)
	return s
}

func (s *State) seedFromLiveAgents(tbl *agenttable.Table, rng *rand.Rand) {
	liveRows := make([]int, 0, tbl.Len())
	for row := 0; row < tbl.Len(); row++ {
		if tbl.Alive[row] {
			liveRows = append(liveRows, row)
		}
	}
	if len(liveRows) == 0 {
		return
	}
	for c := 0; c < s.K; c++ {
		row := liveRows[rng.Intn(len(liveRows))]
		s.Centroids[c] = beliefOf(tbl, row)
	}
}

func beliefOf(tbl *agenttable.Table, row int) [4]float64 {
	return [4]float64{tbl.B0[row], tbl.B1[row], tbl.B2[row], tbl.B3[row]}
}

func sqDist(a, b [4]float64) float64 {
	var sum float64
	for k := 0; k < 4; k++ {
		d := a[k] - b[k]
		sum += d * d
	}
	return sum
}

func nearest(centroids [][4]float64, b [4]float64) int {
	best := 0
	bestDist := math.Inf(1)
	for c, centroid := range centroids {
		d := sqDist(b, centroid)
		if d < bestDist {
			bestDist = d
			best = c
		}
	}
	return best
}

// Step performs the incremental per-agent centroid update and, every
// ReassignInterval ticks, a full reassignment pass with empty-cluster
// reseeding.
func (s *State) Step(tbl *agenttable.Table, tick uint64, rng *rand.Rand) {
	if len(s.Assignment) != tbl.Len() {
		grown := make([]int, tbl.Len())
		copy(grown, s.Assignment)
		for i := len(s.Assignment); i < len(grown); i++ {
			grown[i] = -1
		}
		s.Assignment = grown
	}

	for row := 0; row < tbl.Len(); row++ {
		if !tbl.Alive[row] {
			s.Assignment[row] = -1
			continue
		}
		b := beliefOf(tbl, row)
		c := s.Assignment[row]
		if c < 0 || c >= s.K {
			c = nearest(s.Centroids, b)
			s.Assignment[row] = c
		}
		for k := 0; k < 4; k++ {
			s.Centroids[c][k] += s.Alpha * (b[k] - s.Centroids[c][k])
		}
	}

	if s.ReassignInterval > 0 && tick%s.ReassignInterval == 0 {
		s.Reassign(tbl)
		s.reseedEmpty(tbl, rng)
	}
}

// Reassign performs a full nearest-centroid reassignment pass over all live
// agents.
func (s *State) Reassign(tbl *agenttable.Table) {
	if len(s.Assignment) != tbl.Len() {
		s.Assignment = make([]int, tbl.Len())
	}
	for row := 0; row < tbl.Len(); row++ {
		if !tbl.Alive[row] {
			s.Assignment[row] = -1
			continue
		}
		s.Assignment[row] = nearest(s.Centroids, beliefOf(tbl, row))
	}
}

func (s *State) reseedEmpty(tbl *agenttable.Table, rng *rand.Rand) {
	sizes := make([]int, s.K)
	liveRows := make([]int, 0, tbl.Len())
	for row, c := range s.Assignment {
		if c >= 0 {
			sizes[c]++
			liveRows = append(liveRows, row)
		}
	}
	if len(liveRows) == 0 {
		return
	}
	for c := 0; c < s.K; c++ {
		if sizes[c] != 0 {
			continue
		}
		for attempt := 0; attempt < 4*len(liveRows); attempt++ {
			row := liveRows[rng.Intn(len(liveRows))]
			donor := s.Assignment[row]
			if sizes[donor] <= 1 {
				continue // taking this row would leave its cluster empty
			}
			sizes[donor]--
			sizes[c]++
			s.Centroids[c] = beliefOf(tbl, row)
			s.Assignment[row] = c
			break
		}
	}
}

// Metrics holds the per-cluster published outputs.
type Metrics struct {
	Size             []int
	Centroid         [][4]float64
	Coherence        []float64 // mean pairwise cosine similarity within cluster
	CharismaDensity  []float64 // fraction with assertiveness > CharismaThreshold
}

// Report computes the published per-cluster metrics from the current
// assignment.
func (s *State) Report(tbl *agenttable.Table) Metrics {
	m := Metrics{
		Size:            make([]int, s.K),
		Centroid:        append([][4]float64(nil), s.Centroids...),
		Coherence:       make([]float64, s.K),
		CharismaDensity: make([]float64, s.K),
	}
	members := make([][]int, s.K)
	for row, c := range s.Assignment {
		if c < 0 || c >= s.K {
			continue
		}
		members[c] = append(members[c], row)
		m.Size[c]++
	}
	for c := 0; c < s.K; c++ {
		rows := members[c]
		if len(rows) == 0 {
			continue
		}
		var charismatic int
		var simSum float64
		var pairs int
		for i, row := range rows {
			if float64(tbl.Assertiveness[row]) > params.CharismaThreshold {
				charismatic++
			}
			for j := i + 1; j < len(rows); j++ {
				simSum += cosineSim(beliefOf(tbl, row), beliefOf(tbl, rows[j]))
				pairs++
			}
		}
		m.CharismaDensity[c] = float64(charismatic) / float64(len(rows))
		if pairs > 0 {
			m.Coherence[c] = simSum / float64(pairs)
		} else {
			m.Coherence[c] = 1.0
		}
	}
	return m
}

func cosineSim(a, b [4]float64) float64 {
	var dot, na, nb float64
	for k := 0; k < 4; k++ {
		dot += a[k] * b[k]
		na += a[k] * a[k]
		nb += b[k] * b[k]
	}
	if na == 0 || nb == 0 {
		return 0
	}
	return dot / (math.Sqrt(na) * math.Sqrt(nb))
}
