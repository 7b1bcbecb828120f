package store

import (
	"fmt"
	"time"

	"github.com/watershedtools/mdc/internal/log"
)

// migration is a single schema change applied inside a transaction.
type migration struct {
	Version     int
	Description string
	SQL         string
}

var migrations = []migration{
	{
		Version:     1,
		Description: "runs and station results",
		SQL: `
CREATE TABLE runs (
    id               TEXT PRIMARY KEY,
    created_at       TEXT NOT NULL,
    dataset          TEXT NOT NULL,
    policy           TEXT NOT NULL,
    confidence_level REAL NOT NULL,
    resample_count   INTEGER NOT NULL,
    duration_scale   REAL NOT NULL,
    seed             INTEGER NOT NULL,
    stations         INTEGER NOT NULL,
    succeeded        INTEGER NOT NULL,
    failed           INTEGER NOT NULL
);

CREATE TABLE station_results (
    run_id              TEXT NOT NULL REFERENCES runs(id),
    station_id          TEXT NOT NULL,
    n                   INTEGER,
    degrees_freedom     INTEGER,
    slope               REAL,
    intercept           REAL,
    slope_std_error     REAL,
    bootstrap_std_dev   REAL,
    bootstrap_resamples INTEGER,
    bootstrap_slopes    BLOB,
    percent_difference  REAL,
    chosen_std          REAL,
    chosen_source       TEXT,
    t_critical          REAL,
    mdc_log10           REAL,
    mdc_percent         REAL,
    failure             TEXT,
    PRIMARY KEY (run_id, station_id)
);
`,
	},
	{
		Version:     2,
		Description: "station descriptive stats",
		SQL: `
CREATE TABLE station_stats (
    run_id      TEXT NOT NULL REFERENCES runs(id),
    station_id  TEXT NOT NULL,
    n           INTEGER NOT NULL,
    min         REAL,
    max         REAL,
    mean        REAL,
    std_dev     REAL,
    median      REAL,
    p25         REAL,
    p75         REAL,
    log_mean    REAL,
    log_std_dev REAL,
    PRIMARY KEY (run_id, station_id)
);
`,
	},
}

// migrate brings the schema up to the latest version.
func (s *Store) migrate() error {
	if _, err := s.db.Exec(`CREATE TABLE IF NOT EXISTS schema_migrations (
    version    INTEGER PRIMARY KEY,
    applied_at TEXT NOT NULL
)`); err != nil {
		return fmt.Errorf("failed to create migration table: %w", err)
	}

	var current int
	if err := s.db.QueryRow("SELECT COALESCE(MAX(version), 0) FROM schema_migrations").Scan(&current); err != nil {
		return fmt.Errorf("failed to get current version: %w", err)
	}

	for _, m := range migrations {
		if m.Version <= current {
			continue
		}
		if err := s.applyMigration(m); err != nil {
			return fmt.Errorf("failed to apply migration %d: %w", m.Version, err)
		}
	}

	return nil
}

// applyMigration runs one migration and records it, all in a single
// transaction.
func (s *Store) applyMigration(m migration) error {
	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.Exec(m.SQL); err != nil {
		return fmt.Errorf("failed to execute migration SQL: %w", err)
	}

	if _, err := tx.Exec("INSERT INTO schema_migrations (version, applied_at) VALUES (?, ?)",
		m.Version, time.Now().UTC().Format(time.RFC3339)); err != nil {
		return fmt.Errorf("failed to record migration version: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit migration transaction: %w", err)
	}

	log.GetSugaredLogger().Debugf("applied results store migration %d (%s)", m.Version, m.Description)

	return nil
}
