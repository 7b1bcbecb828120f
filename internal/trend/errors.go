package trend

import "fmt"

// DomainError reports a concentration outside the domain of the log
// transform. Row is the zero-based index into the offending input slice.
type DomainError struct {
	StationID string
	Row       int
	Value     float64
}

func (e *DomainError) Error() string {
	return fmt.Sprintf("station %s: concentration %g at row %d is not positive", e.StationID, e.Value, e.Row)
}

// InsufficientDataError reports a station partition too small to fit.
type InsufficientDataError struct {
	StationID string
	N         int
}

func (e *InsufficientDataError) Error() string {
	return fmt.Sprintf("station %s: %d observations, need at least %d", e.StationID, e.N, MinObservations)
}

// DegenerateInputError reports zero variance in observation times, which
// leaves the slope undefined.
type DegenerateInputError struct {
	StationID string
}

func (e *DegenerateInputError) Error() string {
	return fmt.Sprintf("station %s: all observation times are identical, slope is undefined", e.StationID)
}

// BootstrapConvergenceError reports that the resampler hit its redraw cap
// before collecting the requested number of valid slopes.
type BootstrapConvergenceError struct {
	StationID string
	Attempts  int
	Collected int
	Wanted    int
}

func (e *BootstrapConvergenceError) Error() string {
	return fmt.Sprintf("station %s: collected %d of %d bootstrap slopes after %d draws", e.StationID, e.Collected, e.Wanted, e.Attempts)
}

// DegreesOfFreedomError reports a degrees-of-freedom count too small for a
// t-based interval.
type DegreesOfFreedomError struct {
	StationID      string
	DegreesFreedom int
}

func (e *DegreesOfFreedomError) Error() string {
	return fmt.Sprintf("station %s: %d degrees of freedom, need at least 1", e.StationID, e.DegreesFreedom)
}
