// Package checkpoint implements the binary save/restore format: a fixed
// little-endian header, then every agent field in table-column order, then
// region state, with variable-length arrays u32-length-prefixed. Save/load
// stays behind a typed error boundary, same as the persistence layer's
// save/load path — kept here as kerrors.Io wrapping instead of a SQL
// driver error, since this format is a flat binary file, not a database.
package checkpoint

import (
	"bufio"
	"encoding/binary"
	"io"
	"time"

	"github.com/talgya/civkernel/internal/agenttable"
	"github.com/talgya/civkernel/internal/kerrors"
	"github.com/talgya/civkernel/internal/region"
)

const (
	magic         uint32 = 0x45435356
	formatVersion uint32 = 1
)

var order = binary.LittleEndian

// Header precedes the agent and region sections.
type Header struct {
	Magic      uint32
	Version    uint32
	Generation uint64
	NumAgents  uint32
	NumRegions uint32
	Seed       uint64
	Timestamp  uint64
}

// Save writes the full checkpoint: header, agents, regions.
func Save(w io.Writer, generation uint64, seed int64, tbl *agenttable.Table, regions []*region.Region) error {
	bw := bufio.NewWriter(w)

	h := Header{
		Magic:      magic,
		Version:    formatVersion,
		Generation: generation,
		NumAgents:  uint32(tbl.Len()),
		NumRegions: uint32(len(regions)),
		Seed:       uint64(seed),
		Timestamp:  uint64(time.Now().Unix()),
	}
	if err := writeHeader(bw, h); err != nil {
		return kerrors.Io("checkpoint: write header", err)
	}

	for row := 0; row < tbl.Len(); row++ {
		if err := writeAgent(bw, tbl, row); err != nil {
			return kerrors.Io("checkpoint: write agent", err)
		}
	}
	for _, r := range regions {
		if err := writeRegion(bw, r); err != nil {
			return kerrors.Io("checkpoint: write region", err)
		}
	}

	if err := bw.Flush(); err != nil {
		return kerrors.Io("checkpoint: flush", err)
	}
	return nil
}

// Loaded holds the result of a successful Load.
type Loaded struct {
	Header  Header
	Table   *agenttable.Table
	Regions []*region.Region
}

// Load reads a checkpoint written by Save. A magic or version mismatch is
// refused rather than partially loaded.
func Load(r io.Reader) (*Loaded, error) {
	br := bufio.NewReader(r)

	h, err := readHeader(br)
	if err != nil {
		return nil, kerrors.Io("checkpoint: read header", err)
	}
	if h.Magic != magic {
		return nil, kerrors.Io("checkpoint: bad magic", nil)
	}
	if h.Version != formatVersion {
		return nil, kerrors.Io("checkpoint: unsupported version", nil)
	}

	tbl := agenttable.New(int(h.NumAgents))
	for i := uint32(0); i < h.NumAgents; i++ {
		rec, err := readAgent(br)
		if err != nil {
			return nil, kerrors.Io("checkpoint: read agent", err)
		}
		tbl.AddAgentWithID(rec.id, rec.tmpl)
		row := tbl.RowOf(rec.id)
		// appendRow always marks a fresh row alive with zeroed economy
		// state; restore the serialized values so a checkpoint taken
		// mid-tick (before compaction) round-trips exactly, per spec.md
		// §9's full-restore requirement.
		tbl.Alive[row] = rec.alive
		tbl.Income[row] = rec.income
		tbl.Productivity[row] = rec.productivity
		tbl.Hardship[row] = rec.hardship
	}

	regions := make([]*region.Region, 0, h.NumRegions)
	for i := uint32(0); i < h.NumRegions; i++ {
		r, err := readRegion(br)
		if err != nil {
			return nil, kerrors.Io("checkpoint: read region", err)
		}
		regions = append(regions, r)
	}

	return &Loaded{Header: h, Table: tbl, Regions: regions}, nil
}

func writeHeader(w io.Writer, h Header) error {
	fields := []any{h.Magic, h.Version, h.Generation, h.NumAgents, h.NumRegions, h.Seed, h.Timestamp}
	for _, f := range fields {
		if err := binary.Write(w, order, f); err != nil {
			return err
		}
	}
	return nil
}

func readHeader(r io.Reader) (Header, error) {
	var h Header
	for _, f := range []any{&h.Magic, &h.Version, &h.Generation, &h.NumAgents, &h.NumRegions, &h.Seed, &h.Timestamp} {
		if err := binary.Read(r, order, f); err != nil {
			return h, err
		}
	}
	return h, nil
}

func writeAgent(w io.Writer, tbl *agenttable.Table, row int) error {
	scalars := []any{
		tbl.ID[row], tbl.Region[row], tbl.Alive[row], tbl.Age[row], tbl.Female[row],
		tbl.ParentA[row], tbl.ParentB[row], tbl.LineageID[row],
		tbl.PrimaryLang[row], tbl.Dialect[row], tbl.Fluency[row],
		tbl.Openness[row], tbl.Conformity[row], tbl.Assertiveness[row], tbl.Sociality[row],
		tbl.X0[row], tbl.X1[row], tbl.X2[row], tbl.X3[row],
		tbl.B0[row], tbl.B1[row], tbl.B2[row], tbl.B3[row], tbl.BNormSq[row],
		tbl.MComm[row], tbl.MSusceptibility[row], tbl.MMobility[row],
		tbl.Wealth[row], tbl.Income[row], tbl.Productivity[row], tbl.Hardship[row], tbl.Sector[row],
	}
	for _, f := range scalars {
		if err := binary.Write(w, order, f); err != nil {
			return err
		}
	}
	nbrs := tbl.Neighbors[row]
	if err := binary.Write(w, order, uint32(len(nbrs))); err != nil {
		return err
	}
	for _, nb := range nbrs {
		if err := binary.Write(w, order, nb); err != nil {
			return err
		}
	}
	return nil
}

// agentRecord holds everything readAgent decodes, including the economy
// fields Template has no slot for (Load applies them directly to the row
// after AddAgentWithID).
type agentRecord struct {
	id                           uint32
	tmpl                         agenttable.Template
	alive                        bool
	income, productivity, hardship float64
}

func readAgent(r io.Reader) (agentRecord, error) {
	var (
		id                                             uint32
		regionID                                       int32
		alive                                          bool
		age                                            float64
		female                                         bool
		parentA, parentB, lineageID                    uint32
		primaryLang, dialect                           uint8
		fluency                                        float32
		openness, conformity, assertiveness, sociality float32
		x0, x1, x2, x3                                 float64
		b0, b1, b2, b3, bNormSq                        float64
		mComm, mSusceptibility, mMobility               float32
		wealth, income, productivity, hardship          float64
		sector                                          uint8
	)
	fields := []any{
		&id, &regionID, &alive, &age, &female,
		&parentA, &parentB, &lineageID,
		&primaryLang, &dialect, &fluency,
		&openness, &conformity, &assertiveness, &sociality,
		&x0, &x1, &x2, &x3,
		&b0, &b1, &b2, &b3, &bNormSq,
		&mComm, &mSusceptibility, &mMobility,
		&wealth, &income, &productivity, &hardship, &sector,
	}
	for _, f := range fields {
		if err := binary.Read(r, order, f); err != nil {
			return agentRecord{}, err
		}
	}

	var numNeighbors uint32
	if err := binary.Read(r, order, &numNeighbors); err != nil {
		return agentRecord{}, err
	}
	neighbors := make([]uint32, numNeighbors)
	for i := range neighbors {
		if err := binary.Read(r, order, &neighbors[i]); err != nil {
			return agentRecord{}, err
		}
	}

	tmpl := agenttable.Template{
		Region:          regionID,
		Female:          female,
		Age:             age,
		ParentA:         parentA,
		ParentB:         parentB,
		LineageID:       lineageID,
		PrimaryLang:     primaryLang,
		Dialect:         dialect,
		Fluency:         fluency,
		Openness:        openness,
		Conformity:      conformity,
		Assertiveness:   assertiveness,
		Sociality:       sociality,
		X:               [4]float64{x0, x1, x2, x3},
		MComm:           mComm,
		MSusceptibility: mSusceptibility,
		MMobility:       mMobility,
		Wealth:          wealth,
		Sector:          sector,
		Neighbors:       neighbors,
	}
	_, _, _, _ = b0, b1, b2, b3 // B/BNormSq are recomputed from X on AddAgentWithID
	_ = bNormSq

	return agentRecord{id: id, tmpl: tmpl, alive: alive, income: income, productivity: productivity, hardship: hardship}, nil
}

func writeRegion(w io.Writer, r *region.Region) error {
	scalars := []any{
		r.ID, r.X, r.Y, r.Latitude, r.Population,
		r.Endowment, r.Production, r.Demand, r.Prices, r.Specialization,
		r.Development, r.Welfare, r.Hardship, r.Inequality, r.Efficiency, r.SystemStability,
		uint8(r.System),
	}
	for _, f := range scalars {
		if err := binary.Write(w, order, f); err != nil {
			return err
		}
	}
	if err := binary.Write(w, order, uint32(len(r.TradePartners))); err != nil {
		return err
	}
	for _, p := range r.TradePartners {
		if err := binary.Write(w, order, p); err != nil {
			return err
		}
	}
	return nil
}

func readRegion(r io.Reader) (*region.Region, error) {
	reg := &region.Region{}
	var system uint8
	fields := []any{
		&reg.ID, &reg.X, &reg.Y, &reg.Latitude, &reg.Population,
		&reg.Endowment, &reg.Production, &reg.Demand, &reg.Prices, &reg.Specialization,
		&reg.Development, &reg.Welfare, &reg.Hardship, &reg.Inequality, &reg.Efficiency, &reg.SystemStability,
		&system,
	}
	for _, f := range fields {
		if err := binary.Read(r, order, f); err != nil {
			return nil, err
		}
	}
	reg.System = region.System(system)

	var numPartners uint32
	if err := binary.Read(r, order, &numPartners); err != nil {
		return nil, err
	}
	partners := make([]int32, numPartners)
	for i := range partners {
		if err := binary.Read(r, order, &partners[i]); err != nil {
			return nil, err
		}
	}
	reg.TradePartners = partners
	return reg, nil
}
