package trend

import (
	"context"
	"errors"
	"math"
	"math/rand"
	"strings"
	"testing"
	"time"
)

func makeObservations(stationID string, base time.Time, days []int, concentrations []float64) []Observation {
	var obs []Observation
	for i, d := range days {
		obs = append(obs, Observation{
			StationID:     stationID,
			Timestamp:     base.AddDate(0, 0, d),
			Concentration: concentrations[i],
		})
	}
	return obs
}

func TestPipelineEndToEnd(t *testing.T) {
	base := time.Date(2024, time.January, 1, 0, 0, 0, 0, time.UTC)
	obs := makeObservations("TC-07", base,
		[]int{0, 30, 60, 90, 120},
		[]float64{10, 12, 9, 15, 11})

	pipe, err := NewPipeline(DefaultConfig(), nil)
	if err != nil {
		t.Fatalf("NewPipeline returned error: %v", err)
	}
	result, err := pipe.Run(context.Background(), obs)
	if err != nil {
		t.Fatalf("Run returned error: %v", err)
	}

	if s := result.Summary(); s.Stations != 1 || s.Succeeded != 1 || s.Failed != 0 {
		t.Fatalf("summary = %+v, want 1 station succeeded", s)
	}
	table := result.MDCTable()
	if len(table) != 1 {
		t.Fatalf("expected 1 MDC row, got %d", len(table))
	}

	rec := table[0]
	if rec.StationID != "TC-07" {
		t.Errorf("station %s, want TC-07", rec.StationID)
	}
	if rec.N != 5 {
		t.Errorf("n = %d, want 5", rec.N)
	}
	if rec.DegreesFreedom != 3 {
		t.Errorf("degrees of freedom = %d, want 3", rec.DegreesFreedom)
	}
	if rec.Source != SourceStandardError {
		t.Errorf("source %s, want %s under the default policy", rec.Source, SourceStandardError)
	}
	if math.Abs(rec.TCritical-3.1824) > 0.001 {
		t.Errorf("t critical %.5f, want 3.1824", rec.TCritical)
	}
	// Closed form: slope 5.98985e-4, SE 9.67336e-4 per day, so the MDC is
	// 3.182446 * 365 * 9.67336e-4 = 1.12365 in log10, 92.48 percent.
	if math.Abs(rec.MDCLog10-1.12365) > 1e-3 {
		t.Errorf("mdc log10 %.6f, want 1.12365", rec.MDCLog10)
	}
	if math.Abs(rec.MDCPercent-92.478) > 0.05 {
		t.Errorf("mdc percent %.4f, want 92.478", rec.MDCPercent)
	}

	outcome := result.Outcomes[0]
	if outcome.Regression == nil || outcome.Bootstrap == nil || outcome.Reconciled == nil || outcome.Descriptive == nil {
		t.Fatal("outcome is missing intermediate artifacts")
	}
	if math.Abs(outcome.Regression.Slope-5.98984611081689e-4) > 1e-9 {
		t.Errorf("slope %.12e, want 5.98984611e-4", outcome.Regression.Slope)
	}
	if math.Abs(outcome.Regression.SlopeStdError-9.67336e-4) > 1e-7 {
		t.Errorf("slope std error %.12e, want 9.67336e-4", outcome.Regression.SlopeStdError)
	}
	if outcome.Bootstrap.ResampleCount != DefaultResampleCount {
		t.Errorf("resample count %d, want %d", outcome.Bootstrap.ResampleCount, DefaultResampleCount)
	}
	if outcome.Bootstrap.SlopeStdDev <= 0 {
		t.Errorf("bootstrap std dev %.6g, want positive", outcome.Bootstrap.SlopeStdDev)
	}
	if math.IsNaN(outcome.Reconciled.PercentDifference) {
		t.Error("percent difference is NaN")
	}
}

func TestPipelineCollectsFailures(t *testing.T) {
	base := time.Date(2024, time.January, 1, 0, 0, 0, 0, time.UTC)
	var obs []Observation
	obs = append(obs, makeObservations("GOOD", base, []int{0, 30, 60, 90, 120}, []float64{10, 12, 9, 15, 11})...)
	obs = append(obs, makeObservations("SHORT", base, []int{0, 30}, []float64{8, 9})...)
	obs = append(obs, makeObservations("BAD", base, []int{0, 30, 60}, []float64{5, 0, 7})...)

	cfg := DefaultConfig()
	cfg.ResampleCount = 200
	pipe, err := NewPipeline(cfg, nil)
	if err != nil {
		t.Fatalf("NewPipeline returned error: %v", err)
	}
	result, err := pipe.Run(context.Background(), obs)
	if err != nil {
		t.Fatalf("Run returned error: %v", err)
	}

	if s := result.Summary(); s.Stations != 3 || s.Succeeded != 1 || s.Failed != 2 {
		t.Fatalf("summary = %+v, want 3 stations with 1 succeeded and 2 failed", s)
	}

	// First-appearance order survives the worker pool.
	wantOrder := []string{"GOOD", "SHORT", "BAD"}
	for i, o := range result.Outcomes {
		if o.StationID != wantOrder[i] {
			t.Errorf("outcome %d: station %s, want %s", i, o.StationID, wantOrder[i])
		}
	}

	failures := result.Failures()
	if len(failures) != 2 {
		t.Fatalf("expected 2 failures, got %d", len(failures))
	}
	reasons := map[string]string{}
	for _, f := range failures {
		reasons[f.StationID] = f.Reason
	}
	if !strings.Contains(reasons["SHORT"], "need at least 3") {
		t.Errorf("SHORT reason = %q, want insufficient-data message", reasons["SHORT"])
	}
	if !strings.Contains(reasons["BAD"], "not positive") {
		t.Errorf("BAD reason = %q, want domain message", reasons["BAD"])
	}

	if len(result.MDCTable()) != 1 {
		t.Errorf("expected 1 MDC row, got %d", len(result.MDCTable()))
	}
	var ierr *InsufficientDataError
	if !errors.As(result.Outcomes[1].Err, &ierr) {
		t.Errorf("SHORT outcome error = %v, want InsufficientDataError", result.Outcomes[1].Err)
	}
	var derr *DomainError
	if !errors.As(result.Outcomes[2].Err, &derr) {
		t.Errorf("BAD outcome error = %v, want DomainError", result.Outcomes[2].Err)
	}
}

func TestPipelineDeterministicAcrossWorkers(t *testing.T) {
	base := time.Date(2022, time.May, 1, 0, 0, 0, 0, time.UTC)
	rng := rand.New(rand.NewSource(3))

	var obs []Observation
	for s := 0; s < 4; s++ {
		stationID := string(rune('A' + s))
		for i := 0; i < 8; i++ {
			obs = append(obs, Observation{
				StationID:     stationID,
				Timestamp:     base.AddDate(0, 0, i*14),
				Concentration: math.Pow(10, 1.0+rng.NormFloat64()*0.1),
			})
		}
	}

	run := func(workers int) map[string]Outcome {
		cfg := DefaultConfig()
		cfg.ResampleCount = 300
		cfg.Workers = workers
		pipe, err := NewPipeline(cfg, nil)
		if err != nil {
			t.Fatalf("NewPipeline(workers=%d) returned error: %v", workers, err)
		}
		result, err := pipe.Run(context.Background(), obs)
		if err != nil {
			t.Fatalf("Run(workers=%d) returned error: %v", workers, err)
		}
		byStation := map[string]Outcome{}
		for _, o := range result.Outcomes {
			byStation[o.StationID] = o
		}
		return byStation
	}

	serial := run(1)
	parallel := run(4)

	for id, want := range serial {
		got, ok := parallel[id]
		if !ok {
			t.Fatalf("station %s missing from parallel run", id)
		}
		if want.Bootstrap == nil || got.Bootstrap == nil {
			t.Fatalf("station %s missing bootstrap result", id)
		}
		if got.Bootstrap.SlopeStdDev != want.Bootstrap.SlopeStdDev {
			t.Errorf("station %s: std dev %.17g (parallel) vs %.17g (serial)", id, got.Bootstrap.SlopeStdDev, want.Bootstrap.SlopeStdDev)
		}
		if want.MDC == nil || got.MDC == nil {
			t.Fatalf("station %s missing MDC record", id)
		}
		if got.MDC.MDCPercent != want.MDC.MDCPercent {
			t.Errorf("station %s: mdc percent differs between worker counts", id)
		}
	}
}

func TestPipelineCancellation(t *testing.T) {
	base := time.Date(2024, time.January, 1, 0, 0, 0, 0, time.UTC)
	var obs []Observation
	for s := 0; s < 6; s++ {
		id := string(rune('A' + s))
		obs = append(obs, makeObservations(id, base, []int{0, 30, 60, 90}, []float64{10, 11, 9, 12})...)
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	pipe, err := NewPipeline(DefaultConfig(), nil)
	if err != nil {
		t.Fatalf("NewPipeline returned error: %v", err)
	}
	_, err = pipe.Run(ctx, obs)
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
}

func TestPipelineEmptyDataset(t *testing.T) {
	pipe, err := NewPipeline(DefaultConfig(), nil)
	if err != nil {
		t.Fatalf("NewPipeline returned error: %v", err)
	}
	result, err := pipe.Run(context.Background(), nil)
	if err != nil {
		t.Fatalf("Run returned error: %v", err)
	}
	if len(result.Outcomes) != 0 {
		t.Errorf("expected no outcomes, got %d", len(result.Outcomes))
	}
}

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()

	if cfg.ConfidenceLevel != 0.95 {
		t.Errorf("expected default ConfidenceLevel=0.95, got %g", cfg.ConfidenceLevel)
	}
	if cfg.ResampleCount != 1000 {
		t.Errorf("expected default ResampleCount=1000, got %d", cfg.ResampleCount)
	}
	if cfg.DurationScale != 365 {
		t.Errorf("expected default DurationScale=365, got %g", cfg.DurationScale)
	}
	if cfg.Seed != 42 {
		t.Errorf("expected default Seed=42, got %d", cfg.Seed)
	}
	if err := cfg.Validate(); err != nil {
		t.Errorf("default config failed validation: %v", err)
	}
}

func TestConfigValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{name: "confidence at zero", mutate: func(c *Config) { c.ConfidenceLevel = 0 }},
		{name: "confidence at one", mutate: func(c *Config) { c.ConfidenceLevel = 1 }},
		{name: "zero resamples", mutate: func(c *Config) { c.ResampleCount = 0 }},
		{name: "negative duration scale", mutate: func(c *Config) { c.DurationScale = -365 }},
		{name: "negative workers", mutate: func(c *Config) { c.Workers = -1 }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.mutate(&cfg)
			if err := cfg.Validate(); err == nil {
				t.Error("expected validation error, got nil")
			}
			if _, err := NewPipeline(cfg, nil); err == nil {
				t.Error("expected NewPipeline to reject config, got nil")
			}
		})
	}
}
