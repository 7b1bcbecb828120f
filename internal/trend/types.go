package trend

import "time"

// Observation is a single water-quality sample as supplied by a loader.
// Concentration must be positive; timestamps need not be evenly spaced.
type Observation struct {
	StationID     string
	Timestamp     time.Time
	Concentration float64
}

// TransformedObservation mirrors an Observation on the log10 scale.
type TransformedObservation struct {
	StationID        string
	Timestamp        time.Time
	LogConcentration float64
}

// StationPartition groups the transformed observations of one station.
// Partitions are read-only once built.
type StationPartition struct {
	StationID    string
	Observations []TransformedObservation
}

// RegressionResult holds the per-station OLS fit of log concentration
// against time. Slope units are log10 concentration per day.
type RegressionResult struct {
	StationID      string
	Slope          float64
	Intercept      float64
	SlopeStdError  float64
	N              int
	DegreesFreedom int
}

// BootstrapResult holds the resampling estimate of slope uncertainty for one
// station. Slopes retains the individual resampled slopes for diagnostics;
// SlopeStdDev is their sample standard deviation.
type BootstrapResult struct {
	StationID     string
	SlopeStdDev   float64
	ResampleCount int
	Slopes        []float64
}

// StdSource identifies which uncertainty estimate feeds the MDC formula.
type StdSource string

const (
	// SourceStandardError selects the analytic OLS slope standard error.
	SourceStandardError StdSource = "standard_error"

	// SourceBootstrapStdDev selects the bootstrap slope standard deviation.
	SourceBootstrapStdDev StdSource = "bootstrap_std_dev"
)

// ReconciledUncertainty records the comparison of the two uncertainty
// estimates and the policy's choice between them. PercentDifference is
// 100 * (SE - SD) / SD.
type ReconciledUncertainty struct {
	StationID         string
	ChosenStd         float64
	Source            StdSource
	PercentDifference float64
}

// MDCRecord is the terminal output row for one station.
type MDCRecord struct {
	StationID      string
	N              int
	DegreesFreedom int
	TCritical      float64
	MDCLog10       float64
	MDCPercent     float64
	Source         StdSource
}
