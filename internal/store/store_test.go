package store

import (
	"database/sql"
	"errors"
	"path/filepath"
	"strings"
	"testing"

	"github.com/watershedtools/mdc/internal/trend"
)

func setupTestStore(t *testing.T) *Store {
	t.Helper()

	path := filepath.Join(t.TempDir(), "results.db")
	s, err := Open(path)
	if err != nil {
		t.Fatalf("Failed to open store: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func testRunResult() *trend.RunResult {
	return &trend.RunResult{
		Outcomes: []trend.Outcome{
			{
				StationID: "A",
				Descriptive: &trend.DescriptiveStats{
					StationID: "A", N: 5, Min: 9, Max: 15, Mean: 11.4,
					StdDev: 2.3, Median: 11, P25: 10, P75: 12,
					LogMean: 1.05, LogStdDev: 0.08,
				},
				Regression: &trend.RegressionResult{
					StationID: "A", Slope: 0.0006, Intercept: 1.0,
					SlopeStdError: 0.00097, N: 5, DegreesFreedom: 3,
				},
				Bootstrap: &trend.BootstrapResult{
					StationID: "A", SlopeStdDev: 0.0011, ResampleCount: 1000,
					Slopes: []float64{0.0001, 0.0002, 0.0003},
				},
				Reconciled: &trend.ReconciledUncertainty{
					StationID: "A", ChosenStd: 0.00097,
					Source: trend.SourceStandardError, PercentDifference: -11.8,
				},
				MDC: &trend.MDCRecord{
					StationID: "A", N: 5, DegreesFreedom: 3, TCritical: 3.18,
					MDCLog10: 1.12, MDCPercent: 92.5, Source: trend.SourceStandardError,
				},
			},
			{
				StationID: "B",
				Err:       &trend.InsufficientDataError{StationID: "B", N: 2},
			},
		},
	}
}

func TestSaveRunRoundTrip(t *testing.T) {
	s := setupTestStore(t)

	cfg := trend.DefaultConfig()
	id, err := s.SaveRun("samples.csv", "prefer-se", cfg, testRunResult())
	if err != nil {
		t.Fatalf("Failed to save run: %v", err)
	}
	if id == "" {
		t.Fatal("Expected a run ID")
	}

	runs, err := s.ListRuns()
	if err != nil {
		t.Fatalf("Failed to list runs: %v", err)
	}
	if len(runs) != 1 {
		t.Fatalf("Expected 1 run, got %d", len(runs))
	}
	run := runs[0]
	if run.ID != id {
		t.Errorf("Expected run ID %s, got %s", id, run.ID)
	}
	if run.Dataset != "samples.csv" || run.Policy != "prefer-se" {
		t.Errorf("Unexpected run metadata: %+v", run)
	}
	if run.ConfidenceLevel != 0.95 || run.Seed != trend.DefaultSeed {
		t.Errorf("Unexpected run config: %+v", run)
	}
	if run.Stations != 2 || run.Succeeded != 1 || run.Failed != 1 {
		t.Errorf("Unexpected run summary: %+v", run)
	}
	if run.CreatedAt.IsZero() {
		t.Error("Expected a created timestamp")
	}

	got, err := s.GetRun(id)
	if err != nil {
		t.Fatalf("Failed to get run: %v", err)
	}
	if got != run {
		t.Errorf("GetRun mismatch: %+v vs %+v", got, run)
	}
}

func TestOutcomes(t *testing.T) {
	s := setupTestStore(t)

	id, err := s.SaveRun("samples.csv", "prefer-se", trend.DefaultConfig(), testRunResult())
	if err != nil {
		t.Fatalf("Failed to save run: %v", err)
	}

	outcomes, err := s.Outcomes(id)
	if err != nil {
		t.Fatalf("Failed to load outcomes: %v", err)
	}
	if len(outcomes) != 2 {
		t.Fatalf("Expected 2 outcomes, got %d", len(outcomes))
	}

	a := outcomes[0]
	if a.StationID != "A" {
		t.Fatalf("Expected station A first, got %s", a.StationID)
	}
	if a.N != 5 || a.DegreesFreedom != 3 {
		t.Errorf("Unexpected sample counts: %+v", a)
	}
	if a.Slope != 0.0006 || a.SlopeStdError != 0.00097 {
		t.Errorf("Unexpected regression columns: %+v", a)
	}
	if a.BootstrapStdDev != 0.0011 || a.BootstrapResamples != 1000 {
		t.Errorf("Unexpected bootstrap columns: %+v", a)
	}
	if a.ChosenSource != "standard_error" || a.MDCPercent != 92.5 {
		t.Errorf("Unexpected MDC columns: %+v", a)
	}
	if a.Failure != "" {
		t.Errorf("Expected no failure for station A, got %q", a.Failure)
	}

	b := outcomes[1]
	if b.StationID != "B" {
		t.Fatalf("Expected station B second, got %s", b.StationID)
	}
	if !strings.Contains(b.Failure, "need at least") {
		t.Errorf("Expected insufficient-data failure, got %q", b.Failure)
	}
	if b.N != 0 || b.MDCPercent != 0 {
		t.Errorf("Expected zero values for failed station, got %+v", b)
	}
}

func TestBootstrapSlopes(t *testing.T) {
	s := setupTestStore(t)

	id, err := s.SaveRun("samples.csv", "prefer-se", trend.DefaultConfig(), testRunResult())
	if err != nil {
		t.Fatalf("Failed to save run: %v", err)
	}

	slopes, err := s.BootstrapSlopes(id, "A")
	if err != nil {
		t.Fatalf("Failed to load slopes: %v", err)
	}
	want := []float64{0.0001, 0.0002, 0.0003}
	if len(slopes) != len(want) {
		t.Fatalf("Expected %d slopes, got %d", len(want), len(slopes))
	}
	for i, v := range want {
		if slopes[i] != v {
			t.Errorf("Slope %d: expected %g, got %g", i, v, slopes[i])
		}
	}

	// Station B failed before bootstrapping, so it has no distribution.
	slopes, err = s.BootstrapSlopes(id, "B")
	if err != nil {
		t.Fatalf("Unexpected error for station without slopes: %v", err)
	}
	if slopes != nil {
		t.Errorf("Expected nil slopes for station B, got %v", slopes)
	}
}

func TestStationStats(t *testing.T) {
	s := setupTestStore(t)

	id, err := s.SaveRun("samples.csv", "prefer-se", trend.DefaultConfig(), testRunResult())
	if err != nil {
		t.Fatalf("Failed to save run: %v", err)
	}

	stats, err := s.StationStats(id)
	if err != nil {
		t.Fatalf("Failed to load stats: %v", err)
	}
	if len(stats) != 1 {
		t.Fatalf("Expected stats for 1 station, got %d", len(stats))
	}
	if stats[0].StationID != "A" || stats[0].Mean != 11.4 || stats[0].N != 5 {
		t.Errorf("Unexpected stats: %+v", stats[0])
	}
}

func TestGetRunNotFound(t *testing.T) {
	s := setupTestStore(t)

	_, err := s.GetRun("no-such-run")
	if err == nil {
		t.Fatal("Expected an error for missing run")
	}
	if !errors.Is(err, sql.ErrNoRows) {
		t.Errorf("Expected sql.ErrNoRows, got %v", err)
	}
}

func TestReopenExistingStore(t *testing.T) {
	path := filepath.Join(t.TempDir(), "results.db")

	s, err := Open(path)
	if err != nil {
		t.Fatalf("Failed to open store: %v", err)
	}
	id, err := s.SaveRun("samples.csv", "prefer-se", trend.DefaultConfig(), testRunResult())
	if err != nil {
		t.Fatalf("Failed to save run: %v", err)
	}
	if err := s.Close(); err != nil {
		t.Fatalf("Failed to close store: %v", err)
	}

	// Reopening must not re-run migrations against existing tables.
	s, err = Open(path)
	if err != nil {
		t.Fatalf("Failed to reopen store: %v", err)
	}
	defer s.Close()

	runs, err := s.ListRuns()
	if err != nil {
		t.Fatalf("Failed to list runs after reopen: %v", err)
	}
	if len(runs) != 1 || runs[0].ID != id {
		t.Errorf("Expected saved run to survive reopen, got %+v", runs)
	}
}
