// Package store persists analysis runs to a local SQLite file so MDC
// tables and bootstrap slope distributions can be inspected after the
// run that produced them has exited.
package store

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/vmihailenco/msgpack/v5"
	_ "modernc.org/sqlite"

	"github.com/watershedtools/mdc/internal/trend"
)

// Store wraps a SQLite results database.
type Store struct {
	db *sql.DB
}

// Open opens (or creates) a results database at path and brings its
// schema up to date.
func Open(path string) (*Store, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open results database: %w", err)
	}

	// Test the connection
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping results database: %w", err)
	}

	if _, err := db.Exec("PRAGMA foreign_keys = ON"); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to enable foreign keys: %w", err)
	}

	return New(db)
}

// New wraps an existing database handle and runs pending migrations.
func New(db *sql.DB) (*Store, error) {
	s := &Store{db: db}
	if err := s.migrate(); err != nil {
		return nil, err
	}
	return s, nil
}

// Close closes the underlying database.
func (s *Store) Close() error {
	return s.db.Close()
}

// RunRecord describes one saved analysis run.
type RunRecord struct {
	ID              string
	CreatedAt       time.Time
	Dataset         string
	Policy          string
	ConfidenceLevel float64
	ResampleCount   int
	DurationScale   float64
	Seed            int64
	Stations        int
	Succeeded       int
	Failed          int
}

// StationResult is one station's saved row. Failed stations carry the
// failure reason and zero values for the numeric columns.
type StationResult struct {
	StationID          string
	N                  int
	DegreesFreedom     int
	Slope              float64
	Intercept          float64
	SlopeStdError      float64
	BootstrapStdDev    float64
	BootstrapResamples int
	PercentDifference  float64
	ChosenStd          float64
	ChosenSource       string
	TCritical          float64
	MDCLog10           float64
	MDCPercent         float64
	Failure            string
}

// SaveRun writes a completed run and all of its per-station artifacts,
// returning the generated run ID.
func (s *Store) SaveRun(dataset, policyName string, cfg trend.Config, result *trend.RunResult) (string, error) {
	id := uuid.NewString()
	summary := result.Summary()

	tx, err := s.db.Begin()
	if err != nil {
		return "", fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.Exec(`INSERT INTO runs
    (id, created_at, dataset, policy, confidence_level, resample_count, duration_scale, seed, stations, succeeded, failed)
    VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		id, time.Now().UTC().Format(time.RFC3339), dataset, policyName,
		cfg.ConfidenceLevel, cfg.ResampleCount, cfg.DurationScale, cfg.Seed,
		summary.Stations, summary.Succeeded, summary.Failed); err != nil {
		return "", fmt.Errorf("failed to insert run: %w", err)
	}

	for _, out := range result.Outcomes {
		var (
			n, df, bootN                sql.NullInt64
			slope, intercept, se        sql.NullFloat64
			bootSD, pd, chosen          sql.NullFloat64
			tCritical, mdcLog10, mdcPct sql.NullFloat64
			source, failure             sql.NullString
			slopesBlob                  []byte
		)

		if out.Regression != nil {
			n = sql.NullInt64{Int64: int64(out.Regression.N), Valid: true}
			df = sql.NullInt64{Int64: int64(out.Regression.DegreesFreedom), Valid: true}
			slope = sql.NullFloat64{Float64: out.Regression.Slope, Valid: true}
			intercept = sql.NullFloat64{Float64: out.Regression.Intercept, Valid: true}
			se = sql.NullFloat64{Float64: out.Regression.SlopeStdError, Valid: true}
		}
		if out.Bootstrap != nil {
			bootSD = sql.NullFloat64{Float64: out.Bootstrap.SlopeStdDev, Valid: true}
			bootN = sql.NullInt64{Int64: int64(out.Bootstrap.ResampleCount), Valid: true}
			slopesBlob, err = msgpack.Marshal(out.Bootstrap.Slopes)
			if err != nil {
				return "", fmt.Errorf("failed to encode bootstrap slopes for station %s: %w", out.StationID, err)
			}
		}
		if out.Reconciled != nil {
			pd = sql.NullFloat64{Float64: out.Reconciled.PercentDifference, Valid: true}
			chosen = sql.NullFloat64{Float64: out.Reconciled.ChosenStd, Valid: true}
			source = sql.NullString{String: string(out.Reconciled.Source), Valid: true}
		}
		if out.MDC != nil {
			tCritical = sql.NullFloat64{Float64: out.MDC.TCritical, Valid: true}
			mdcLog10 = sql.NullFloat64{Float64: out.MDC.MDCLog10, Valid: true}
			mdcPct = sql.NullFloat64{Float64: out.MDC.MDCPercent, Valid: true}
		}
		if out.Err != nil {
			failure = sql.NullString{String: out.Err.Error(), Valid: true}
		}

		if _, err := tx.Exec(`INSERT INTO station_results
    (run_id, station_id, n, degrees_freedom, slope, intercept, slope_std_error,
     bootstrap_std_dev, bootstrap_resamples, bootstrap_slopes,
     percent_difference, chosen_std, chosen_source, t_critical, mdc_log10, mdc_percent, failure)
    VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			id, out.StationID, n, df, slope, intercept, se,
			bootSD, bootN, slopesBlob,
			pd, chosen, source, tCritical, mdcLog10, mdcPct, failure); err != nil {
			return "", fmt.Errorf("failed to insert results for station %s: %w", out.StationID, err)
		}

		if out.Descriptive != nil {
			d := out.Descriptive
			if _, err := tx.Exec(`INSERT INTO station_stats
    (run_id, station_id, n, min, max, mean, std_dev, median, p25, p75, log_mean, log_std_dev)
    VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
				id, d.StationID, d.N, d.Min, d.Max, d.Mean, d.StdDev, d.Median, d.P25, d.P75, d.LogMean, d.LogStdDev); err != nil {
				return "", fmt.Errorf("failed to insert stats for station %s: %w", out.StationID, err)
			}
		}
	}

	if err := tx.Commit(); err != nil {
		return "", fmt.Errorf("failed to commit run: %w", err)
	}

	return id, nil
}

// ListRuns returns all saved runs, newest first.
func (s *Store) ListRuns() ([]RunRecord, error) {
	rows, err := s.db.Query(`SELECT id, created_at, dataset, policy, confidence_level,
    resample_count, duration_scale, seed, stations, succeeded, failed
    FROM runs ORDER BY created_at DESC, id`)
	if err != nil {
		return nil, fmt.Errorf("failed to query runs: %w", err)
	}
	defer rows.Close()

	var runs []RunRecord
	for rows.Next() {
		rec, err := scanRun(rows)
		if err != nil {
			return nil, err
		}
		runs = append(runs, rec)
	}
	return runs, rows.Err()
}

// GetRun returns a single saved run by ID.
func (s *Store) GetRun(id string) (RunRecord, error) {
	row := s.db.QueryRow(`SELECT id, created_at, dataset, policy, confidence_level,
    resample_count, duration_scale, seed, stations, succeeded, failed
    FROM runs WHERE id = ?`, id)
	rec, err := scanRun(row)
	if err != nil {
		return RunRecord{}, fmt.Errorf("run %s: %w", id, err)
	}
	return rec, nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanRun(row scanner) (RunRecord, error) {
	var rec RunRecord
	var createdAt string
	if err := row.Scan(&rec.ID, &createdAt, &rec.Dataset, &rec.Policy, &rec.ConfidenceLevel,
		&rec.ResampleCount, &rec.DurationScale, &rec.Seed, &rec.Stations, &rec.Succeeded, &rec.Failed); err != nil {
		return RunRecord{}, err
	}
	ts, err := time.Parse(time.RFC3339, createdAt)
	if err != nil {
		return RunRecord{}, fmt.Errorf("failed to parse run timestamp: %w", err)
	}
	rec.CreatedAt = ts
	return rec, nil
}

// Outcomes returns the saved per-station rows for a run, ordered by
// station ID.
func (s *Store) Outcomes(runID string) ([]StationResult, error) {
	rows, err := s.db.Query(`SELECT station_id, n, degrees_freedom, slope, intercept,
    slope_std_error, bootstrap_std_dev, bootstrap_resamples,
    percent_difference, chosen_std, chosen_source, t_critical, mdc_log10, mdc_percent, failure
    FROM station_results WHERE run_id = ? ORDER BY station_id`, runID)
	if err != nil {
		return nil, fmt.Errorf("failed to query station results: %w", err)
	}
	defer rows.Close()

	var results []StationResult
	for rows.Next() {
		var (
			r                           StationResult
			n, df, bootN                sql.NullInt64
			slope, intercept, se        sql.NullFloat64
			bootSD, pd, chosen          sql.NullFloat64
			tCritical, mdcLog10, mdcPct sql.NullFloat64
			source, failure             sql.NullString
		)
		if err := rows.Scan(&r.StationID, &n, &df, &slope, &intercept,
			&se, &bootSD, &bootN,
			&pd, &chosen, &source, &tCritical, &mdcLog10, &mdcPct, &failure); err != nil {
			return nil, fmt.Errorf("failed to scan station result: %w", err)
		}
		r.N = int(n.Int64)
		r.DegreesFreedom = int(df.Int64)
		r.Slope = slope.Float64
		r.Intercept = intercept.Float64
		r.SlopeStdError = se.Float64
		r.BootstrapStdDev = bootSD.Float64
		r.BootstrapResamples = int(bootN.Int64)
		r.PercentDifference = pd.Float64
		r.ChosenStd = chosen.Float64
		r.ChosenSource = source.String
		r.TCritical = tCritical.Float64
		r.MDCLog10 = mdcLog10.Float64
		r.MDCPercent = mdcPct.Float64
		r.Failure = failure.String
		results = append(results, r)
	}
	return results, rows.Err()
}

// BootstrapSlopes returns the full resampled slope distribution saved
// for one station in one run.
func (s *Store) BootstrapSlopes(runID, stationID string) ([]float64, error) {
	var blob []byte
	err := s.db.QueryRow("SELECT bootstrap_slopes FROM station_results WHERE run_id = ? AND station_id = ?",
		runID, stationID).Scan(&blob)
	if err != nil {
		return nil, fmt.Errorf("station %s in run %s: %w", stationID, runID, err)
	}
	if len(blob) == 0 {
		return nil, nil
	}

	var slopes []float64
	if err := msgpack.Unmarshal(blob, &slopes); err != nil {
		return nil, fmt.Errorf("failed to decode bootstrap slopes: %w", err)
	}
	return slopes, nil
}

// StationStats returns the saved descriptive statistics for a run,
// ordered by station ID.
func (s *Store) StationStats(runID string) ([]trend.DescriptiveStats, error) {
	rows, err := s.db.Query(`SELECT station_id, n, min, max, mean, std_dev, median, p25, p75, log_mean, log_std_dev
    FROM station_stats WHERE run_id = ? ORDER BY station_id`, runID)
	if err != nil {
		return nil, fmt.Errorf("failed to query station stats: %w", err)
	}
	defer rows.Close()

	var stats []trend.DescriptiveStats
	for rows.Next() {
		var d trend.DescriptiveStats
		if err := rows.Scan(&d.StationID, &d.N, &d.Min, &d.Max, &d.Mean, &d.StdDev,
			&d.Median, &d.P25, &d.P75, &d.LogMean, &d.LogStdDev); err != nil {
			return nil, fmt.Errorf("failed to scan station stats: %w", err)
		}
		stats = append(stats, d)
	}
	return stats, rows.Err()
}
