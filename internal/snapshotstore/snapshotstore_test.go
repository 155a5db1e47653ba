package snapshotstore

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/talgya/civkernel/internal/kernel"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	path := filepath.Join(t.TempDir(), "metrics.sqlite")
	s, err := Open(path)
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func TestRecordAndHistoryRoundTrip(t *testing.T) {
	s := openTestStore(t)

	for gen := uint64(1); gen <= 3; gen++ {
		m := kernel.Metrics{
			Generation:  gen,
			AvgOpenness: 0.5,
			Population:  100 - int(gen),
		}
		require.NoError(t, s.Record(m))
	}

	history, err := s.History()
	require.NoError(t, err)
	require.Len(t, history, 3)
	assert.Equal(t, uint64(1), history[0].Generation)
	assert.Equal(t, uint64(3), history[2].Generation)
	assert.Equal(t, 97, history[2].Population)
}

func TestRecordUpsertsOnDuplicateGeneration(t *testing.T) {
	s := openTestStore(t)

	require.NoError(t, s.Record(kernel.Metrics{Generation: 1, Population: 10}))
	require.NoError(t, s.Record(kernel.Metrics{Generation: 1, Population: 20}))

	history, err := s.History()
	require.NoError(t, err)
	require.Len(t, history, 1)
	assert.Equal(t, 20, history[0].Population)
}
