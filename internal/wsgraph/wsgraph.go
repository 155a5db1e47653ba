// Package wsgraph builds the initial small-world social graph over an
// agent table: a ring lattice with k nearest connections on both sides,
// then probabilistic edge rewiring (Watts–Strogatz).
package wsgraph

import (
	"math/rand"

	"github.com/talgya/civkernel/internal/agenttable"
)

// Build constructs a Watts–Strogatz graph over the agents currently in tbl
// (rows 0..n-1, assumed freshly populated and all alive), writing the
// result into tbl.Neighbors. avgConnections is k in the standard WS
// parameterization (total degree before rewiring is k, i.e. k/2 on each
// side); rewireProb is the per-edge rewire probability p.
func Build(tbl *agenttable.Table, avgConnections int, rewireProb float64, rng *rand.Rand) {
	n := tbl.Len()
	if n == 0 {
		return
	}
	k := avgConnections
	if k > n-1 {
		k = n - 1
	}
	if k < 0 {
		k = 0
	}
	half := k / 2

	neighborSets := make([]map[uint32]struct{}, n)
	for i := range neighborSets {
		neighborSets[i] = make(map[uint32]struct{}, k+2)
	}

	ids := make([]uint32, n)
	for i := 0; i < n; i++ {
		ids[i] = tbl.ID[i]
	}

	addEdge := func(i, j int) {
		if i == j {
			return
		}
		neighborSets[i][ids[j]] = struct{}{}
		neighborSets[j][ids[i]] = struct{}{}
	}

	// Ring lattice: connect each node to its `half` nearest neighbors on
	// each side.
	for i := 0; i < n; i++ {
		for step := 1; step <= half; step++ {
			j := (i + step) % n
			addEdge(i, j)
		}
	}

	// Rewiring: for each original "forward" lattice edge, independently
	// with probability p replace its far endpoint with a uniformly chosen
	// non-self, non-duplicate target.
	for i := 0; i < n; i++ {
		for step := 1; step <= half; step++ {
			j := (i + step) % n
			if rng.Float64() >= rewireProb {
				continue
			}
			// Remove the existing edge, then pick a fresh target.
			delete(neighborSets[i], ids[j])
			delete(neighborSets[j], ids[i])

			newTarget := pickRewireTarget(i, n, ids, neighborSets[i], rng)
			addEdge(i, newTarget)
		}
	}

	for i := 0; i < n; i++ {
		nbrs := make([]uint32, 0, len(neighborSets[i]))
		for id := range neighborSets[i] {
			nbrs = append(nbrs, id)
		}
		tbl.Neighbors[i] = nbrs
	}
}

// pickRewireTarget samples a uniformly random row index other than self
// and not already a neighbor, retrying until one is found (graphs built
// here are always sparse relative to n, so this terminates quickly).
func pickRewireTarget(self, n int, ids []uint32, existing map[uint32]struct{}, rng *rand.Rand) int {
	for attempt := 0; attempt < 64; attempt++ {
		cand := rng.Intn(n)
		if cand == self {
			continue
		}
		if _, dup := existing[ids[cand]]; dup {
			continue
		}
		return cand
	}
	// Fallback: linear scan for the first valid candidate.
	for cand := 0; cand < n; cand++ {
		if cand == self {
			continue
		}
		if _, dup := existing[ids[cand]]; dup {
			continue
		}
		return cand
	}
	return self
}
