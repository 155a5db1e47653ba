// Package belief runs the per-tick opinion update over the agent social
// graph: pairwise neighbor influence or a mean-field regional
// approximation, always computed as a two-phase read-then-apply pass so
// results are independent of worker count. Worker fan-in reuses
// channerics.Merge for result collection, adapted from episodic
// reinforcement-learning workers to fixed-shard belief-delta workers.
package belief

import (
	"math"

	channerics "github.com/niceyeti/channerics/channels"

	"github.com/talgya/civkernel/internal/agenttable"
	"github.com/talgya/civkernel/internal/entropy"
	"github.com/talgya/civkernel/internal/kerrors"
	"github.com/talgya/civkernel/internal/params"
	"github.com/talgya/civkernel/internal/region"
)

// Config selects the update mode and worker fan-out for a belief tick.
type Config struct {
	UseMeanField   bool
	StepSize       float64
	SimFloor       float64
	NumWorkers     int
	FastTanh       bool
	MasterSeed     int64
	Tick           uint64
}

// DefaultConfig returns the default tuning.
func DefaultConfig() Config {
	return Config{
		StepSize:   params.DefaultStepSize,
		SimFloor:   params.DefaultSimFloor,
		NumWorkers: 1,
	}
}

// fastTanh is a rational tanh approximation, clamped by
// the caller (applyDeltas clamps each result to [-1, 1]).
func fastTanh(v float64) float64 {
	v2 := v * v
	return v * (27 + v2) / (27 + 9*v2)
}

func tanhOf(v float64, fast bool) float64 {
	if fast {
		return fastTanh(v)
	}
	return math.Tanh(v)
}

// Update runs one belief tick: pairwise or mean-field delta computation
// (two-phase, parallel-safe), then a single-threaded apply pass that adds
// deltas, recomputes B, and applies innovation noise plus economic
// feedback. A non-nil error means monitor caught a non-finite belief and
// Cfg.StrictNumericChecks made it fatal; callers must stop the tick.
func Update(tbl *agenttable.Table, regions []*region.Region, cfg Config, monitor *kerrors.NumericMonitor) error {
	n := tbl.Len()
	if n == 0 {
		return nil
	}
	deltaX := make([][4]float64, n)

	if cfg.UseMeanField {
		computeMeanFieldDeltas(tbl, regions, cfg, deltaX)
	} else {
		computePairwiseDeltas(tbl, cfg, deltaX)
	}

	return applyDeltas(tbl, regions, cfg, deltaX, monitor)
}

// computePairwiseDeltas shards live agent rows across cfg.NumWorkers
// goroutines, each writing only into its own disjoint slice of deltaX, and
// fans in completion via channerics.Merge, the same fan-in primitive used
// for episodic streams here applied to a CPU-bound batch instead.
func computePairwiseDeltas(tbl *agenttable.Table, cfg Config, deltaX [][4]float64) {
	n := tbl.Len()
	workers := cfg.NumWorkers
	if workers < 1 {
		workers = 1
	}
	if workers > n {
		workers = n
	}
	if workers == 1 {
		pairwiseShard(tbl, cfg, deltaX, 0, n)
		return
	}

	done := make(chan struct{})
	defer close(done)

	chunks := make([]<-chan struct{}, 0, workers)
	shard := (n + workers - 1) / workers
	for w := 0; w < workers; w++ {
		lo := w * shard
		hi := lo + shard
		if hi > n {
			hi = n
		}
		if lo >= hi {
			continue
		}
		ch := make(chan struct{}, 1)
		go func(lo, hi int) {
			pairwiseShard(tbl, cfg, deltaX, lo, hi)
			ch <- struct{}{}
			close(ch)
		}(lo, hi)
		chunks = append(chunks, ch)
	}

	for range channerics.Merge(done, chunks...) {
		// drain completion signals; deltaX writes are disjoint per shard.
	}
}

func pairwiseShard(tbl *agenttable.Table, cfg Config, deltaX [][4]float64, lo, hi int) {
	simFloor := cfg.SimFloor
	step := cfg.StepSize
	for row := lo; row < hi; row++ {
		if !tbl.Alive[row] {
			continue
		}
		anchor := anchoring(tbl, row)
		influence := 1 - anchor

		bi := [4]float64{tbl.B0[row], tbl.B1[row], tbl.B2[row], tbl.B3[row]}
		for _, nb := range tbl.Neighbors[row] {
			nbRow := tbl.RowOf(nb)
			if nbRow < 0 || !tbl.Alive[nbRow] {
				continue
			}
			bj := [4]float64{tbl.B0[nbRow], tbl.B1[nbRow], tbl.B2[nbRow], tbl.B3[nbRow]}

			sim := 0.5 * (1 + cosineSim(bi, bj))
			if sim < simFloor {
				sim = simFloor
			}

			langQ := math.Min(float64(tbl.Fluency[row]), float64(tbl.Fluency[nbRow]))
			if tbl.PrimaryLang[row] != tbl.PrimaryLang[nbRow] {
				langQ *= params.LangMismatchPenalty
			}

			w := step * sim * langQ * 0.5 * float64(tbl.MComm[row]+tbl.MComm[nbRow]) * float64(tbl.MSusceptibility[row])
			w *= influence

			for k := 0; k < 4; k++ {
				deltaX[row][k] += w * math.Tanh(bj[k]-bi[k])
			}
		}
	}
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

// computeMeanFieldDeltas replaces the O(N·k) neighbor walk with a per-region
// centroid nudge (mean-field mode).
func computeMeanFieldDeltas(tbl *agenttable.Table, regions []*region.Region, cfg Config, deltaX [][4]float64) {
	centroids := make(map[int32][4]float64, len(regions))
	counts := make(map[int32]int, len(regions))
	for row := 0; row < tbl.Len(); row++ {
		if !tbl.Alive[row] {
			continue
		}
		r := tbl.Region[row]
		c := centroids[r]
		c[0] += tbl.B0[row]
		c[1] += tbl.B1[row]
		c[2] += tbl.B2[row]
		c[3] += tbl.B3[row]
		centroids[r] = c
		counts[r]++
	}
	for r, c := range centroids {
		n := float64(counts[r])
		if n == 0 {
			continue
		}
		centroids[r] = [4]float64{c[0] / n, c[1] / n, c[2] / n, c[3] / n}
	}

	fieldStrength := make(map[int32]float64, len(regions))
	for _, r := range regions {
		fieldStrength[r.ID] = 1 - r.Hardship*0.2
	}

	for row := 0; row < tbl.Len(); row++ {
		if !tbl.Alive[row] {
			continue
		}
		centroid, ok := centroids[tbl.Region[row]]
		if !ok {
			continue
		}
		anchor := anchoring(tbl, row)
		strength := fieldStrength[tbl.Region[row]]
		w := cfg.StepSize * float64(tbl.MSusceptibility[row]) * strength * (1 - anchor)
		bi := [4]float64{tbl.B0[row], tbl.B1[row], tbl.B2[row], tbl.B3[row]}
		for k := 0; k < 4; k++ {
			deltaX[row][k] += w * math.Tanh(centroid[k]-bi[k])
		}
	}
}

// anchoring computes per-agent resistance to influence.
func anchoring(tbl *agenttable.Table, row int) float64 {
	a := params.AnchoringBase +
		(tbl.Age[row]/params.MaxAgeYearsDefault)*params.AnchoringAgeWeight +
		float64(tbl.Assertiveness[row])*params.AnchoringAssertWeight
	if a > params.AnchoringMax {
		return params.AnchoringMax
	}
	if a < 0 {
		return 0
	}
	return a
}

// applyDeltas is the single-threaded write pass: adds deltaX to x, applies
// innovation noise, recomputes B, and applies the post-update economic
// feedback nudge. Non-finite X after the update is reported to monitor
// instead of being silently zeroed.
func applyDeltas(tbl *agenttable.Table, regions []*region.Region, cfg Config, deltaX [][4]float64, monitor *kerrors.NumericMonitor) error {
	// applyDeltas is the tick's single-threaded write pass (workerID 0 in the
	// kernel's shared-resource policy), so its innovation noise draws from
	// entropy.Substream instead of a locally-reinvented seed mix.
	rng := entropy.Substream(cfg.MasterSeed, 0, cfg.Tick)

	regionMeanWealth := make(map[int32]float64, len(regions))
	regionCount := make(map[int32]int, len(regions))
	for row := 0; row < tbl.Len(); row++ {
		if !tbl.Alive[row] {
			continue
		}
		regionMeanWealth[tbl.Region[row]] += tbl.Wealth[row]
		regionCount[tbl.Region[row]]++
	}
	for r, sum := range regionMeanWealth {
		if regionCount[r] > 0 {
			regionMeanWealth[r] = sum / float64(regionCount[r])
		}
	}

	for row := 0; row < tbl.Len(); row++ {
		if !tbl.Alive[row] {
			continue
		}
		tbl.X0[row] += deltaX[row][0] + rng.NormFloat64()*params.InnovationNoiseStd
		tbl.X1[row] += deltaX[row][1] + rng.NormFloat64()*params.InnovationNoiseStd
		tbl.X2[row] += deltaX[row][2] + rng.NormFloat64()*params.InnovationNoiseStd
		tbl.X3[row] += deltaX[row][3] + rng.NormFloat64()*params.InnovationNoiseStd

		if cfg.FastTanh {
			raw := [4]float64{fastTanh(tbl.X0[row]), fastTanh(tbl.X1[row]), fastTanh(tbl.X2[row]), fastTanh(tbl.X3[row])}
			for _, v := range raw {
				if math.IsNaN(v) || math.IsInf(v, 0) {
					if err := monitor.Check("non-finite belief component for agent row %d", row); err != nil {
						return err
					}
					break
				}
			}
			tbl.B0[row] = clamp(raw[0])
			tbl.B1[row] = clamp(raw[1])
			tbl.B2[row] = clamp(raw[2])
			tbl.B3[row] = clamp(raw[3])
			tbl.BNormSq[row] = tbl.B0[row]*tbl.B0[row] + tbl.B1[row]*tbl.B1[row] + tbl.B2[row]*tbl.B2[row] + tbl.B3[row]*tbl.B3[row]
		} else {
			if err := tbl.RecomputeBeliefChecked(int32(row), monitor); err != nil {
				return err
			}
		}

		economicFeedback(tbl, row, regionMeanWealth[tbl.Region[row]])
	}
	return nil
}

func economicFeedback(tbl *agenttable.Table, row int, regionMeanWealth float64) {
	h := tbl.Hardship[row]
	if h > params.HardshipNudgeThreshold {
		tbl.B0[row] = clamp(tbl.B0[row] - params.HardshipNudgeRate*h)
		tbl.B2[row] = clamp(tbl.B2[row] - params.HardshipNudgeRate*h)
	}
	if regionMeanWealth > 0 && tbl.Wealth[row] > params.WealthNudgeRatio*regionMeanWealth {
		relWealth := tbl.Wealth[row] / regionMeanWealth
		shift := (1 - float64(tbl.Openness[row])) * 0.5 * math.Log(1+relWealth) * 0.001
		tbl.B0[row] = clamp(tbl.B0[row] + shift)
		tbl.B2[row] = clamp(tbl.B2[row] + shift)
	}
}

func clamp(v float64) float64 {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return 0
	}
	if v < params.BeliefClampMin {
		return params.BeliefClampMin
	}
	if v > params.BeliefClampMax {
		return params.BeliefClampMax
	}
	return v
}
