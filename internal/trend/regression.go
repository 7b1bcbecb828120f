package trend

import (
	"math"
	"time"

	"gonum.org/v1/gonum/stat"
)

// MinObservations is the smallest partition that still leaves a positive
// number of degrees of freedom (n-2) for a t-based interval.
const MinObservations = 3

const secondsPerDay = 86400

// dayOrdinal expresses a timestamp as fractional days since the Unix epoch,
// so fitted slopes carry per-day units.
func dayOrdinal(t time.Time) float64 {
	return float64(t.Unix()) / secondsPerDay
}

// Partition groups transformed observations by station, preserving the
// first-appearance order of stations and the input order within each.
func Partition(obs []TransformedObservation) []StationPartition {
	index := make(map[string]int)
	var parts []StationPartition
	for _, o := range obs {
		i, ok := index[o.StationID]
		if !ok {
			i = len(parts)
			index[o.StationID] = i
			parts = append(parts, StationPartition{StationID: o.StationID})
		}
		parts[i].Observations = append(parts[i].Observations, o)
	}
	return parts
}

// FitPartition fits an OLS line of log concentration against time for one
// station. It fails with InsufficientDataError when the partition is too
// small and DegenerateInputError when all observation times coincide.
func FitPartition(p StationPartition) (RegressionResult, error) {
	n := len(p.Observations)
	if n < MinObservations {
		return RegressionResult{}, &InsufficientDataError{StationID: p.StationID, N: n}
	}

	xs := make([]float64, n)
	ys := make([]float64, n)
	for i, o := range p.Observations {
		xs[i] = dayOrdinal(o.Timestamp)
		ys[i] = o.LogConcentration
	}

	xbar := stat.Mean(xs, nil)
	var sxx float64
	for _, x := range xs {
		dx := x - xbar
		sxx += dx * dx
	}
	if sxx == 0 {
		return RegressionResult{}, &DegenerateInputError{StationID: p.StationID}
	}

	intercept, slope := stat.LinearRegression(xs, ys, nil, false)

	var ssr float64
	for i := range xs {
		r := ys[i] - (intercept + slope*xs[i])
		ssr += r * r
	}
	residualVariance := ssr / float64(n-2)

	return RegressionResult{
		StationID:      p.StationID,
		Slope:          slope,
		Intercept:      intercept,
		SlopeStdError:  math.Sqrt(residualVariance / sxx),
		N:              n,
		DegreesFreedom: n - 2,
	}, nil
}

// Fit partitions observations by station and fits one line per station.
// Stations that cannot be fitted are reported in the returned error slice
// rather than aborting the rest.
func Fit(obs []TransformedObservation) ([]RegressionResult, []error) {
	var results []RegressionResult
	var failures []error
	for _, p := range Partition(obs) {
		res, err := FitPartition(p)
		if err != nil {
			failures = append(failures, err)
			continue
		}
		results = append(results, res)
	}
	return results, failures
}

// slopeOnly computes the closed-form OLS slope. ok is false when the
// x-variance denominator is zero and the slope is undefined.
func slopeOnly(xs, ys []float64) (float64, bool) {
	xbar := stat.Mean(xs, nil)
	ybar := stat.Mean(ys, nil)
	var sxx, sxy float64
	for i := range xs {
		dx := xs[i] - xbar
		sxx += dx * dx
		sxy += dx * (ys[i] - ybar)
	}
	if sxx == 0 {
		return 0, false
	}
	return sxy / sxx, true
}
