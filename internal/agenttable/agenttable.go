// Package agenttable stores the simulation's population as a structure of
// parallel slices (structure of arrays, for vectorization-friendly hot
// loops), owning every agent uniquely; the social graph, regions, and
// cohorts reference agents only by stable ID — never by pointer or
// ownership.
package agenttable

import (
	"math"

	"github.com/talgya/civkernel/internal/kerrors"
)

// NoParent marks an agent with no recorded parent (spawned at init, not born).
const NoParent uint32 = ^uint32(0)

// Template supplies the fields needed to construct a new agent row, used
// both by initial population generation and by birth materialization.
type Template struct {
	Region                                       int32
	Female                                       bool
	Age                                          float64
	ParentA, ParentB                             uint32
	LineageID                                    uint32
	PrimaryLang                                  uint8
	Dialect                                      uint8
	Fluency                                      float32
	Openness, Conformity, Assertiveness, Sociality float32
	X                                             [4]float64
	MComm, MSusceptibility, MMobility             float32
	Wealth                                        float64
	Sector                                        uint8
	Neighbors                                     []uint32
}

// Table is the structure-of-arrays agent store.
type Table struct {
	// Identity & lifecycle.
	ID     []uint32
	Region []int32
	Alive  []bool
	Age    []float64
	Female []bool

	ParentA, ParentB []uint32
	LineageID        []uint32

	PrimaryLang []uint8
	Dialect     []uint8
	Fluency     []float32

	Openness, Conformity, Assertiveness, Sociality []float32

	// Belief vectors: X is unbounded internal state, B = tanh(X), BNormSq is cached.
	X0, X1, X2, X3 []float64
	B0, B1, B2, B3 []float64
	BNormSq        []float64

	MComm, MSusceptibility, MMobility []float32

	Wealth, Income, Productivity, Hardship []float64
	Sector                                  []uint8

	Neighbors [][]uint32

	nextID     uint32
	idToRow    map[uint32]int32
	regionIdx  map[int32][]uint32 // region -> live agent ids, rebuilt lazily
	regionIdxOK bool
}

// New creates an empty table with capacity hints.
func New(capacityHint int) *Table {
	t := &Table{idToRow: make(map[uint32]int32, capacityHint)}
	return t
}

// Len returns the number of rows currently stored (alive or not).
func (t *Table) Len() int { return len(t.ID) }

// RowOf returns the row index for an agent ID, or -1 if unknown.
func (t *Table) RowOf(id uint32) int32 {
	if r, ok := t.idToRow[id]; ok {
		return r
	}
	return -1
}

// AddAgent appends a new agent row built from tmpl, assigning it the next
// sequential ID, and returns that ID.
func (t *Table) AddAgent(tmpl Template) uint32 {
	id := t.nextID
	t.nextID++
	return t.appendRow(id, tmpl)
}

// AddAgentWithID appends a new agent row built from tmpl under an explicit,
// caller-supplied ID instead of the table's own sequential counter. Used by
// checkpoint restore, where agent IDs must survive the round trip exactly
// (parent and neighbor references elsewhere in the checkpoint are raw IDs,
// not row indices) even though original IDs have gaps from compacted-out
// dead agents. Advances nextID past id so subsequently-materialized births
// never collide with a restored ID.
func (t *Table) AddAgentWithID(id uint32, tmpl Template) uint32 {
	if id >= t.nextID {
		t.nextID = id + 1
	}
	return t.appendRow(id, tmpl)
}

func (t *Table) appendRow(id uint32, tmpl Template) uint32 {
	row := int32(len(t.ID))
	t.ID = append(t.ID, id)
	t.Region = append(t.Region, tmpl.Region)
	t.Alive = append(t.Alive, true)
	t.Age = append(t.Age, tmpl.Age)
	t.Female = append(t.Female, tmpl.Female)
	t.ParentA = append(t.ParentA, tmpl.ParentA)
	t.ParentB = append(t.ParentB, tmpl.ParentB)
	t.LineageID = append(t.LineageID, tmpl.LineageID)
	t.PrimaryLang = append(t.PrimaryLang, tmpl.PrimaryLang)
	t.Dialect = append(t.Dialect, tmpl.Dialect)
	t.Fluency = append(t.Fluency, tmpl.Fluency)
	t.Openness = append(t.Openness, tmpl.Openness)
	t.Conformity = append(t.Conformity, tmpl.Conformity)
	t.Assertiveness = append(t.Assertiveness, tmpl.Assertiveness)
	t.Sociality = append(t.Sociality, tmpl.Sociality)
	t.X0 = append(t.X0, tmpl.X[0])
	t.X1 = append(t.X1, tmpl.X[1])
	t.X2 = append(t.X2, tmpl.X[2])
	t.X3 = append(t.X3, tmpl.X[3])
	b0, b1, b2, b3, normSq := tanhBelief(tmpl.X)
	t.B0 = append(t.B0, b0)
	t.B1 = append(t.B1, b1)
	t.B2 = append(t.B2, b2)
	t.B3 = append(t.B3, b3)
	t.BNormSq = append(t.BNormSq, normSq)
	t.MComm = append(t.MComm, tmpl.MComm)
	t.MSusceptibility = append(t.MSusceptibility, tmpl.MSusceptibility)
	t.MMobility = append(t.MMobility, tmpl.MMobility)
	t.Wealth = append(t.Wealth, tmpl.Wealth)
	t.Income = append(t.Income, 0)
	t.Productivity = append(t.Productivity, 0.5)
	t.Hardship = append(t.Hardship, 0)
	t.Sector = append(t.Sector, tmpl.Sector)
	nbrs := append([]uint32(nil), tmpl.Neighbors...)
	t.Neighbors = append(t.Neighbors, nbrs)

	t.idToRow[id] = row
	t.regionIdxOK = false
	return id
}

func tanhBelief(x [4]float64) (b0, b1, b2, b3, normSq float64) {
	b0, b1, b2, b3 = math.Tanh(x[0]), math.Tanh(x[1]), math.Tanh(x[2]), math.Tanh(x[3])
	normSq = b0*b0 + b1*b1 + b2*b2 + b3*b3
	return
}

// RecomputeBelief updates B[k]/BNormSq for row from its current X, clamping
// every component to [-1, 1] and guarding against NaN/Inf.
func (t *Table) RecomputeBelief(row int32) {
	clamp := func(v float64) float64 {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return 0
		}
		if v < -1 {
			return -1
		}
		if v > 1 {
			return 1
		}
		return v
	}
	t.B0[row] = clamp(math.Tanh(t.X0[row]))
	t.B1[row] = clamp(math.Tanh(t.X1[row]))
	t.B2[row] = clamp(math.Tanh(t.X2[row]))
	t.B3[row] = clamp(math.Tanh(t.X3[row]))
	t.BNormSq[row] = t.B0[row]*t.B0[row] + t.B1[row]*t.B1[row] + t.B2[row]*t.B2[row] + t.B3[row]*t.B3[row]
}

// RecomputeBeliefChecked behaves like RecomputeBelief but reports a
// non-finite X component (or non-finite tanh(X)) to monitor (see
// kerrors.NumericMonitor) instead of silently zeroing it, the behavior
// spec.md §7 requires for NumericError.
func (t *Table) RecomputeBeliefChecked(row int32, monitor *kerrors.NumericMonitor) error {
	checked := func(x float64) (float64, error) {
		v := math.Tanh(x)
		if math.IsNaN(x) || math.IsInf(x, 0) || math.IsNaN(v) || math.IsInf(v, 0) {
			if err := monitor.Check("non-finite belief component at row %d", row); err != nil {
				return 0, err
			}
			return 0, nil
		}
		if v < -1 {
			v = -1
		}
		if v > 1 {
			v = 1
		}
		return v, nil
	}

	b0, err := checked(t.X0[row])
	if err != nil {
		return err
	}
	b1, err := checked(t.X1[row])
	if err != nil {
		return err
	}
	b2, err := checked(t.X2[row])
	if err != nil {
		return err
	}
	b3, err := checked(t.X3[row])
	if err != nil {
		return err
	}
	t.B0[row], t.B1[row], t.B2[row], t.B3[row] = b0, b1, b2, b3
	t.BNormSq[row] = b0*b0 + b1*b1 + b2*b2 + b3*b3
	return nil
}

// AgeLiveAgents advances every live agent's age by yearsPerTick. Dead rows
// are left untouched since they are excluded from every age-dependent
// computation (anchoring, migration mobility, cohort banding) by the Alive
// flag and are dropped entirely at the next Compact.
func (t *Table) AgeLiveAgents(yearsPerTick float64) {
	for row, alive := range t.Alive {
		if alive {
			t.Age[row] += yearsPerTick
		}
	}
}

// MarkDead flags an agent dead. It remains in the table until Compact.
func (t *Table) MarkDead(id uint32) error {
	row := t.RowOf(id)
	if row < 0 {
		return kerrors.Bounds("mark_dead: unknown agent id %d", id)
	}
	t.Alive[row] = false
	t.regionIdxOK = false
	return nil
}

// RegionIndex returns the live agent IDs in region r, building (and
// caching) the index on first use after invalidation.
func (t *Table) RegionIndex(r int32) []uint32 {
	t.ensureRegionIndex()
	return t.regionIdx[r]
}

func (t *Table) ensureRegionIndex() {
	if t.regionIdxOK {
		return
	}
	idx := make(map[int32][]uint32)
	for row, alive := range t.Alive {
		if !alive {
			continue
		}
		r := t.Region[row]
		idx[r] = append(idx[r], t.ID[row])
	}
	t.regionIdx = idx
	t.regionIdxOK = true
}

// LivePopulation returns the count of alive agents.
func (t *Table) LivePopulation() int {
	n := 0
	for _, alive := range t.Alive {
		if alive {
			n++
		}
	}
	return n
}

// Compact drops dead agents and prunes neighbor-list references to them,
// preserving symmetry. Must not run concurrently with belief/clustering
// reads.
func (t *Table) Compact() {
	n := len(t.ID)
	keep := make([]bool, n)
	deadSet := make(map[uint32]struct{})
	for row := 0; row < n; row++ {
		keep[row] = t.Alive[row]
		if !t.Alive[row] {
			deadSet[t.ID[row]] = struct{}{}
		}
	}
	if len(deadSet) == 0 {
		return
	}

	write := 0
	for row := 0; row < n; row++ {
		if !keep[row] {
			continue
		}
		if write != row {
			t.copyRow(row, write)
		}
		write++
	}
	t.truncate(write)

	// Prune dangling neighbor references and rebuild the id->row index.
	t.idToRow = make(map[uint32]int32, write)
	for row := 0; row < write; row++ {
		t.idToRow[t.ID[row]] = int32(row)
		nbrs := t.Neighbors[row]
		filtered := nbrs[:0]
		for _, nb := range nbrs {
			if _, dead := deadSet[nb]; dead {
				continue
			}
			filtered = append(filtered, nb)
		}
		t.Neighbors[row] = filtered
	}
	t.regionIdxOK = false
}

func (t *Table) copyRow(src, dst int) {
	t.ID[dst] = t.ID[src]
	t.Region[dst] = t.Region[src]
	t.Alive[dst] = t.Alive[src]
	t.Age[dst] = t.Age[src]
	t.Female[dst] = t.Female[src]
	t.ParentA[dst] = t.ParentA[src]
	t.ParentB[dst] = t.ParentB[src]
	t.LineageID[dst] = t.LineageID[src]
	t.PrimaryLang[dst] = t.PrimaryLang[src]
	t.Dialect[dst] = t.Dialect[src]
	t.Fluency[dst] = t.Fluency[src]
	t.Openness[dst] = t.Openness[src]
	t.Conformity[dst] = t.Conformity[src]
	t.Assertiveness[dst] = t.Assertiveness[src]
	t.Sociality[dst] = t.Sociality[src]
	t.X0[dst], t.X1[dst], t.X2[dst], t.X3[dst] = t.X0[src], t.X1[src], t.X2[src], t.X3[src]
	t.B0[dst], t.B1[dst], t.B2[dst], t.B3[dst] = t.B0[src], t.B1[src], t.B2[src], t.B3[src]
	t.BNormSq[dst] = t.BNormSq[src]
	t.MComm[dst] = t.MComm[src]
	t.MSusceptibility[dst] = t.MSusceptibility[src]
	t.MMobility[dst] = t.MMobility[src]
	t.Wealth[dst] = t.Wealth[src]
	t.Income[dst] = t.Income[src]
	t.Productivity[dst] = t.Productivity[src]
	t.Hardship[dst] = t.Hardship[src]
	t.Sector[dst] = t.Sector[src]
	t.Neighbors[dst] = t.Neighbors[src]
}

func (t *Table) truncate(n int) {
	t.ID = t.ID[:n]
	t.Region = t.Region[:n]
	t.Alive = t.Alive[:n]
	t.Age = t.Age[:n]
	t.Female = t.Female[:n]
	t.ParentA = t.ParentA[:n]
	t.ParentB = t.ParentB[:n]
	t.LineageID = t.LineageID[:n]
	t.PrimaryLang = t.PrimaryLang[:n]
	t.Dialect = t.Dialect[:n]
	t.Fluency = t.Fluency[:n]
	t.Openness = t.Openness[:n]
	t.Conformity = t.Conformity[:n]
	t.Assertiveness = t.Assertiveness[:n]
	t.Sociality = t.Sociality[:n]
	t.X0, t.X1, t.X2, t.X3 = t.X0[:n], t.X1[:n], t.X2[:n], t.X3[:n]
	t.B0, t.B1, t.B2, t.B3 = t.B0[:n], t.B1[:n], t.B2[:n], t.B3[:n]
	t.BNormSq = t.BNormSq[:n]
	t.MComm = t.MComm[:n]
	t.MSusceptibility = t.MSusceptibility[:n]
	t.MMobility = t.MMobility[:n]
	t.Wealth = t.Wealth[:n]
	t.Income = t.Income[:n]
	t.Productivity = t.Productivity[:n]
	t.Hardship = t.Hardship[:n]
	t.Sector = t.Sector[:n]
	t.Neighbors = t.Neighbors[:n]
}

// CheckNeighborSymmetry validates that for every edge (i, j), j's list
// contains i. Intended for tests and debug-mode validation, not the hot path.
func (t *Table) CheckNeighborSymmetry() error {
	for row, nbrs := range t.Neighbors {
		if !t.Alive[row] {
			continue
		}
		id := t.ID[row]
		for _, nb := range nbrs {
			nbRow := t.RowOf(nb)
			if nbRow < 0 {
				return kerrors.Bounds("neighbor %d of agent %d does not exist", nb, id)
			}
			if !contains(t.Neighbors[nbRow], id) {
				return kerrors.Bounds("asymmetric edge: %d lists %d but not vice versa", id, nb)
			}
		}
	}
	return nil
}

func contains(s []uint32, v uint32) bool {
	for _, x := range s {
		if x == v {
			return true
		}
	}
	return false
}
