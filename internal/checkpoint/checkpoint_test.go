package checkpoint

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/talgya/civkernel/internal/agenttable"
	"github.com/talgya/civkernel/internal/region"
)

func sampleTable() *agenttable.Table {
	tbl := agenttable.New(3)
	a := tbl.AddAgent(agenttable.Template{Region: 0, Age: 20, X: [4]float64{0.1, 0.2, -0.3, 0}, Wealth: 5})
	b := tbl.AddAgent(agenttable.Template{Region: 1, Age: 40, X: [4]float64{-0.1, 0.4, 0.2, 0.1}, Wealth: 7})
	tbl.Neighbors[0] = []uint32{b}
	tbl.Neighbors[1] = []uint32{a}
	return tbl
}

func TestSaveLoadRoundTrip(t *testing.T) {
	tbl := sampleTable()
	regions := []*region.Region{region.NewRegion(0, 0.1, 0.2, 0.3), region.NewRegion(1, 0.5, 0.6, -0.2)}
	regions[0].TradePartners = []int32{1}
	regions[1].TradePartners = []int32{0}

	var buf bytes.Buffer
	require.NoError(t, Save(&buf, 42, 99, tbl, regions))

	loaded, err := Load(&buf)
	require.NoError(t, err)

	assert.Equal(t, uint64(42), loaded.Header.Generation)
	assert.Equal(t, uint32(2), loaded.Header.NumAgents)
	assert.Equal(t, uint32(2), loaded.Header.NumRegions)
	require.Equal(t, tbl.Len(), loaded.Table.Len())

	for row := 0; row < tbl.Len(); row++ {
		assert.Equal(t, tbl.Region[row], loaded.Table.Region[row])
		assert.InDelta(t, tbl.Age[row], loaded.Table.Age[row], 1e-9)
		assert.InDelta(t, tbl.X0[row], loaded.Table.X0[row], 1e-9)
		assert.InDelta(t, tbl.Wealth[row], loaded.Table.Wealth[row], 1e-9)
	}
	require.Len(t, loaded.Regions, 2)
	assert.Equal(t, regions[0].TradePartners, loaded.Regions[0].TradePartners)
	assert.InDelta(t, regions[1].Latitude, loaded.Regions[1].Latitude, 1e-9)
}

// TestSaveLoadRoundTripPreservesIDsAfterDeaths builds a table where agent
// IDs have gaps (some agents died and were compacted out before the
// checkpoint), which is the realistic shape of any population after
// mortality/fertility/compaction has run a few ticks. It asserts that IDs,
// not just row order, survive the round trip, and that parent/neighbor
// references (stored as raw IDs) still point at the right agents.
func TestSaveLoadRoundTripPreservesIDsAfterDeaths(t *testing.T) {
	tbl := agenttable.New(5)
	ids := make([]uint32, 5)
	for i := range ids {
		ids[i] = tbl.AddAgent(agenttable.Template{Region: 0, Age: 20, X: [4]float64{0.1, 0, 0, 0}})
	}
	// Kill and compact out agents 1 and 3, leaving a gap in nextID: the
	// surviving agents keep IDs 0, 2, 4 but occupy rows 0, 1, 2.
	require.NoError(t, tbl.MarkDead(ids[1]))
	require.NoError(t, tbl.MarkDead(ids[3]))
	tbl.Compact()
	require.Equal(t, 3, tbl.Len())

	// A birth materialized after compaction gets a fresh ID beyond the
	// original population's range, exercising nextID continuity too.
	childID := tbl.AddAgent(agenttable.Template{
		Region:  0,
		Age:     0,
		ParentA: ids[0],
		X:       [4]float64{0, 0, 0, 0},
	})
	childRow := tbl.RowOf(childID)
	tbl.Neighbors[childRow] = []uint32{ids[0]}
	motherRow := tbl.RowOf(ids[0])
	tbl.Neighbors[motherRow] = append(tbl.Neighbors[motherRow], childID)

	regions := []*region.Region{region.NewRegion(0, 0.1, 0.2, 0.3)}

	var buf bytes.Buffer
	require.NoError(t, Save(&buf, 7, 1, tbl, regions))

	loaded, err := Load(&buf)
	require.NoError(t, err)
	require.Equal(t, tbl.Len(), loaded.Table.Len())

	// Every original ID must resolve to the same row's data after reload,
	// not the freshly-assigned sequential row numbering.
	for _, id := range []uint32{ids[0], ids[2], ids[4], childID} {
		origRow := tbl.RowOf(id)
		require.GreaterOrEqual(t, origRow, int32(0))
		loadedRow := loaded.Table.RowOf(id)
		require.GreaterOrEqual(t, loadedRow, int32(0), "id %d must survive the round trip", id)
		assert.Equal(t, tbl.Region[origRow], loaded.Table.Region[loadedRow])
	}

	loadedChildRow := loaded.Table.RowOf(childID)
	assert.Equal(t, ids[0], loaded.Table.ParentA[loadedChildRow])
	assert.Contains(t, loaded.Table.Neighbors[loadedChildRow], ids[0])
	loadedMotherRow := loaded.Table.RowOf(ids[0])
	assert.Contains(t, loaded.Table.Neighbors[loadedMotherRow], childID)
	require.NoError(t, loaded.Table.CheckNeighborSymmetry())

	// nextID must have advanced past every restored ID so a subsequent birth
	// doesn't collide with a restored agent's ID.
	grandchildID := loaded.Table.AddAgent(agenttable.Template{Region: 0})
	for _, id := range []uint32{ids[0], ids[2], ids[4], childID} {
		assert.NotEqual(t, id, grandchildID)
	}
}

// TestSaveLoadRoundTripPreservesEconomyAndAliveState guards against a
// checkpoint that restores geography but silently drops per-agent economy
// state or the alive flag of a not-yet-compacted dead agent — spec.md §9
// requires a full restore, never a partial one.
func TestSaveLoadRoundTripPreservesEconomyAndAliveState(t *testing.T) {
	tbl := agenttable.New(2)
	tbl.AddAgent(agenttable.Template{Region: 0, X: [4]float64{0, 0, 0, 0}})
	deadID := tbl.AddAgent(agenttable.Template{Region: 0, X: [4]float64{0, 0, 0, 0}})
	tbl.Income[0] = 12.5
	tbl.Productivity[0] = 0.87
	tbl.Hardship[0] = 0.42
	require.NoError(t, tbl.MarkDead(deadID)) // not compacted: checkpoint must still carry it as dead

	regions := []*region.Region{region.NewRegion(0, 0, 0, 0)}
	var buf bytes.Buffer
	require.NoError(t, Save(&buf, 3, 1, tbl, regions))

	loaded, err := Load(&buf)
	require.NoError(t, err)

	row0 := loaded.Table.RowOf(tbl.ID[0])
	assert.InDelta(t, 12.5, loaded.Table.Income[row0], 1e-9)
	assert.InDelta(t, 0.87, loaded.Table.Productivity[row0], 1e-9)
	assert.InDelta(t, 0.42, loaded.Table.Hardship[row0], 1e-9)

	deadRow := loaded.Table.RowOf(deadID)
	require.GreaterOrEqual(t, deadRow, int32(0))
	assert.False(t, loaded.Table.Alive[deadRow])
}

func TestLoadRejectsBadMagic(t *testing.T) {
	var buf bytes.Buffer
	buf.Write([]byte{0, 0, 0, 0, 0, 0, 0, 0})
	_, err := Load(&buf)
	require.Error(t, err)
}

func TestLoadRejectsVersionMismatch(t *testing.T) {
	tbl := sampleTable()
	regions := []*region.Region{region.NewRegion(0, 0, 0, 0)}
	var buf bytes.Buffer
	require.NoError(t, Save(&buf, 1, 1, tbl, regions))

	raw := buf.Bytes()
	// Version field follows the 4-byte magic, little-endian u32.
	raw[4] = 0xFF
	_, err := Load(bytes.NewReader(raw))
	require.Error(t, err)
}
