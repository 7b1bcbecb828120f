package trend

import (
	"context"
	"fmt"
	"runtime"
	"sync"

	"go.uber.org/zap"
)

// Defaults for the analysis configuration.
const (
	DefaultConfidenceLevel = 0.95
	DefaultResampleCount   = 1000
	DefaultDurationScale   = 365
	DefaultSeed            = 42
)

// Config carries every tunable of a pipeline run.
type Config struct {
	// ConfidenceLevel is the two-tailed confidence for the t critical value.
	ConfidenceLevel float64

	// ResampleCount is the number of bootstrap resamples per station.
	ResampleCount int

	// DurationScale multiplies the per-day slope uncertainty into the
	// reporting period; 365 annualizes daily slopes.
	DurationScale float64

	// Seed is the base seed for bootstrap resampling. Per-station sources
	// are derived from it, so a fixed seed reproduces a run exactly.
	Seed int64

	// Workers bounds station-level parallelism. Zero means one worker per
	// CPU; one disables parallelism.
	Workers int

	// Policy chooses between the analytic and bootstrap uncertainty
	// estimates. Nil means PreferStandardError.
	Policy Policy
}

// DefaultConfig returns the standard analysis configuration.
func DefaultConfig() Config {
	return Config{
		ConfidenceLevel: DefaultConfidenceLevel,
		ResampleCount:   DefaultResampleCount,
		DurationScale:   DefaultDurationScale,
		Seed:            DefaultSeed,
	}
}

// Validate checks the configuration for values the pipeline cannot run with.
func (c Config) Validate() error {
	if c.ConfidenceLevel <= 0 || c.ConfidenceLevel >= 1 {
		return fmt.Errorf("confidence level must be in (0, 1), got %g", c.ConfidenceLevel)
	}
	if c.ResampleCount < 1 {
		return fmt.Errorf("resample count must be positive, got %d", c.ResampleCount)
	}
	if c.DurationScale <= 0 {
		return fmt.Errorf("duration scale must be positive, got %g", c.DurationScale)
	}
	if c.Workers < 0 {
		return fmt.Errorf("workers must be non-negative, got %d", c.Workers)
	}
	return nil
}

// Outcome holds everything the pipeline produced for one station: the full
// artifact chain on success, or the artifacts up to the failing stage plus
// the stage error.
type Outcome struct {
	StationID   string
	Descriptive *DescriptiveStats
	Regression  *RegressionResult
	Bootstrap   *BootstrapResult
	Reconciled  *ReconciledUncertainty
	MDC         *MDCRecord
	Err         error
}

// Failed reports whether the station was excluded by a stage error.
func (o Outcome) Failed() bool {
	return o.Err != nil
}

// StationFailure pairs an excluded station with its reason, for reporting.
type StationFailure struct {
	StationID string
	Reason    string
}

// Summary counts per-station outcomes of a run.
type Summary struct {
	Stations  int
	Succeeded int
	Failed    int
}

// RunResult is the queryable product of one pipeline run. Outcomes keep the
// first-appearance order of stations in the input.
type RunResult struct {
	Outcomes []Outcome
}

// Summary tallies the run's outcomes.
func (r *RunResult) Summary() Summary {
	s := Summary{Stations: len(r.Outcomes)}
	for _, o := range r.Outcomes {
		if o.Failed() {
			s.Failed++
		} else {
			s.Succeeded++
		}
	}
	return s
}

// MDCTable returns the terminal MDC rows for every station that completed.
func (r *RunResult) MDCTable() []MDCRecord {
	var t []MDCRecord
	for _, o := range r.Outcomes {
		if o.MDC != nil {
			t = append(t, *o.MDC)
		}
	}
	return t
}

// ComparisonTable returns the SE-versus-bootstrap reconciliation rows.
func (r *RunResult) ComparisonTable() []ReconciledUncertainty {
	var t []ReconciledUncertainty
	for _, o := range r.Outcomes {
		if o.Reconciled != nil {
			t = append(t, *o.Reconciled)
		}
	}
	return t
}

// RegressionTable returns the per-station fit rows.
func (r *RunResult) RegressionTable() []RegressionResult {
	var t []RegressionResult
	for _, o := range r.Outcomes {
		if o.Regression != nil {
			t = append(t, *o.Regression)
		}
	}
	return t
}

// DescriptiveTable returns the per-station summary statistics rows.
func (r *RunResult) DescriptiveTable() []DescriptiveStats {
	var t []DescriptiveStats
	for _, o := range r.Outcomes {
		if o.Descriptive != nil {
			t = append(t, *o.Descriptive)
		}
	}
	return t
}

// Failures returns every excluded station with its reason.
func (r *RunResult) Failures() []StationFailure {
	var f []StationFailure
	for _, o := range r.Outcomes {
		if o.Err != nil {
			f = append(f, StationFailure{StationID: o.StationID, Reason: o.Err.Error()})
		}
	}
	return f
}

// Pipeline runs the full MDC chain over a dataset: log transform,
// per-station regression, bootstrap, reconciliation, and MDC computation.
// Station failures never abort the run; each station carries its own
// result-or-error outcome.
type Pipeline struct {
	cfg    Config
	logger *zap.SugaredLogger
}

// NewPipeline validates the configuration and builds a pipeline.
func NewPipeline(cfg Config, logger *zap.SugaredLogger) (*Pipeline, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if cfg.Policy == nil {
		cfg.Policy = PreferStandardError()
	}
	if logger == nil {
		logger = zap.NewNop().Sugar()
	}
	return &Pipeline{cfg: cfg, logger: logger}, nil
}

// stationObservations is one station's raw observations in input order.
type stationObservations struct {
	id  string
	obs []Observation
}

func groupByStation(obs []Observation) []stationObservations {
	index := make(map[string]int)
	var groups []stationObservations
	for _, o := range obs {
		i, ok := index[o.StationID]
		if !ok {
			i = len(groups)
			index[o.StationID] = i
			groups = append(groups, stationObservations{id: o.StationID})
		}
		groups[i].obs = append(groups[i].obs, o)
	}
	return groups
}

// Run analyzes the dataset and returns one outcome per station. When the
// context is cancelled mid-run, the outcomes gathered so far are returned
// together with the cancellation error.
func (p *Pipeline) Run(ctx context.Context, obs []Observation) (*RunResult, error) {
	groups := groupByStation(obs)
	if len(groups) == 0 {
		return &RunResult{}, nil
	}

	workers := p.cfg.Workers
	if workers == 0 {
		workers = runtime.GOMAXPROCS(0)
	}
	if workers > len(groups) {
		workers = len(groups)
	}
	p.logger.Debugf("analyzing %d stations with %d workers", len(groups), workers)

	outcomes := make([]Outcome, len(groups))
	jobs := make(chan int)
	var wg sync.WaitGroup
	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := range jobs {
				outcomes[i] = p.analyzeStation(ctx, groups[i])
			}
		}()
	}

feed:
	for i := range groups {
		select {
		case jobs <- i:
		case <-ctx.Done():
			break feed
		}
	}
	close(jobs)
	wg.Wait()

	if err := ctx.Err(); err != nil {
		var done []Outcome
		for _, o := range outcomes {
			if o.StationID != "" {
				done = append(done, o)
			}
		}
		return &RunResult{Outcomes: done}, fmt.Errorf("analysis interrupted: %w", err)
	}
	return &RunResult{Outcomes: outcomes}, nil
}

// analyzeStation runs every stage for one station, stopping at the first
// stage error. A panic inside a stage is converted into a station failure
// so one pathological partition cannot take down the run.
func (p *Pipeline) analyzeStation(ctx context.Context, g stationObservations) (out Outcome) {
	out.StationID = g.id
	defer func() {
		if r := recover(); r != nil {
			p.logger.Errorf("station %s: analysis panicked: %v", g.id, r)
			out.Err = fmt.Errorf("station %s: analysis panicked: %v", g.id, r)
		}
	}()

	transformed, err := Transform(g.obs)
	if err != nil {
		out.Err = err
		return
	}

	desc := Describe(g.id, g.obs)
	out.Descriptive = &desc

	part := StationPartition{StationID: g.id, Observations: transformed}
	reg, err := FitPartition(part)
	if err != nil {
		out.Err = err
		return
	}
	out.Regression = &reg

	boot, err := Bootstrap(ctx, part, p.cfg.ResampleCount, p.cfg.Seed)
	if err != nil {
		out.Err = err
		return
	}
	out.Bootstrap = &boot

	rec := Reconcile(reg, boot, p.cfg.Policy)
	out.Reconciled = &rec

	mdc, err := ComputeMDC(rec, reg, p.cfg.ConfidenceLevel, p.cfg.DurationScale)
	if err != nil {
		out.Err = err
		return
	}
	out.MDC = &mdc

	p.logger.Debugf("station %s: n=%d slope=%.6g se=%.6g boot_sd=%.6g mdc_pct=%.2f",
		g.id, reg.N, reg.Slope, reg.SlopeStdError, boot.SlopeStdDev, mdc.MDCPercent)
	return
}
