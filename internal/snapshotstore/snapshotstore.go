// Package snapshotstore is an OPTIONAL history of per-tick metrics, one row
// per generation, independent of the REQUIRED binary checkpoint in
// internal/checkpoint. Reuses a jmoiron/sqlx + modernc.org/sqlite stack
// and a stats-history table shape, adapted from settlement-economy
// columns to this kernel's region-economy metrics.
package snapshotstore

import (
	"fmt"

	"github.com/jmoiron/sqlx"
	_ "modernc.org/sqlite"

	"github.com/talgya/civkernel/internal/kerrors"
	"github.com/talgya/civkernel/internal/kernel"
)

// Store wraps a SQLite connection used only for metrics history; the
// simulation's authoritative state always lives in the binary checkpoint.
type Store struct {
	conn *sqlx.DB
}

// Open opens or creates a metrics-history database at path.
func Open(path string) (*Store, error) {
	conn, err := sqlx.Open("sqlite", path+"?_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, kerrors.Io("snapshotstore: open", err)
	}
	s := &Store{conn: conn}
	if err := s.migrate(); err != nil {
		conn.Close()
		return nil, kerrors.Io("snapshotstore: migrate", err)
	}
	return s, nil
}

// Close closes the underlying connection.
func (s *Store) Close() error {
	return s.conn.Close()
}

func (s *Store) migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS metrics_history (
		generation INTEGER PRIMARY KEY,
		polarization_mean REAL NOT NULL,
		polarization_std REAL NOT NULL,
		avg_openness REAL NOT NULL,
		avg_conformity REAL NOT NULL,
		welfare REAL NOT NULL,
		inequality REAL NOT NULL,
		hardship REAL NOT NULL,
		trade_volume REAL NOT NULL,
		population INTEGER NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_metrics_history_generation ON metrics_history(generation);
	`
	_, err := s.conn.Exec(schema)
	return err
}

// Record appends one tick's metrics snapshot. Duplicate generations
// (e.g. a re-run from a restored checkpoint) replace the prior row.
func (s *Store) Record(m kernel.Metrics) error {
	_, err := s.conn.Exec(`
		INSERT INTO metrics_history (
			generation, polarization_mean, polarization_std, avg_openness,
			avg_conformity, welfare, inequality, hardship, trade_volume, population
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(generation) DO UPDATE SET
			polarization_mean=excluded.polarization_mean,
			polarization_std=excluded.polarization_std,
			avg_openness=excluded.avg_openness,
			avg_conformity=excluded.avg_conformity,
			welfare=excluded.welfare,
			inequality=excluded.inequality,
			hardship=excluded.hardship,
			trade_volume=excluded.trade_volume,
			population=excluded.population
	`,
		m.Generation, m.PolarizationMean, m.PolarizationStd, m.AvgOpenness,
		m.AvgConformity, m.Welfare, m.Inequality, m.Hardship, m.TradeVolume, m.Population,
	)
	if err != nil {
		return kerrors.Io(fmt.Sprintf("snapshotstore: record generation %d", m.Generation), err)
	}
	return nil
}

// History returns every recorded metrics row in generation order.
func (s *Store) History() ([]kernel.Metrics, error) {
	rows, err := s.conn.Queryx(`SELECT * FROM metrics_history ORDER BY generation ASC`)
	if err != nil {
		return nil, kerrors.Io("snapshotstore: history query", err)
	}
	defer rows.Close()

	var out []kernel.Metrics
	for rows.Next() {
		var row struct {
			Generation       uint64  `db:"generation"`
			PolarizationMean float64 `db:"polarization_mean"`
			PolarizationStd  float64 `db:"polarization_std"`
			AvgOpenness      float64 `db:"avg_openness"`
			AvgConformity    float64 `db:"avg_conformity"`
			Welfare          float64 `db:"welfare"`
			Inequality       float64 `db:"inequality"`
			Hardship         float64 `db:"hardship"`
			TradeVolume      float64 `db:"trade_volume"`
			Population       int     `db:"population"`
		}
		if err := rows.StructScan(&row); err != nil {
			return nil, kerrors.Io("snapshotstore: scan row", err)
		}
		out = append(out, kernel.Metrics{
			Generation:       row.Generation,
			PolarizationMean: row.PolarizationMean,
			PolarizationStd:  row.PolarizationStd,
			AvgOpenness:      row.AvgOpenness,
			AvgConformity:    row.AvgConformity,
			Welfare:          row.Welfare,
			Inequality:       row.Inequality,
			Hardship:         row.Hardship,
			TradeVolume:      row.TradeVolume,
			Population:       row.Population,
		})
	}
	return out, rows.Err()
}
