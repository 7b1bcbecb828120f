package trend

import (
	"math"
	"sort"

	"gonum.org/v1/gonum/stat"
)

// DescriptiveStats summarizes one station's concentrations on the raw and
// log10 scales. It is a diagnostic artifact; nothing downstream consumes it.
type DescriptiveStats struct {
	StationID string
	N         int
	Min       float64
	Max       float64
	Mean      float64
	StdDev    float64
	Median    float64
	P25       float64
	P75       float64
	LogMean   float64
	LogStdDev float64
}

// Describe computes summary statistics for one station's observations.
// Log-scale fields are only meaningful when every concentration is positive.
func Describe(stationID string, obs []Observation) DescriptiveStats {
	n := len(obs)
	if n == 0 {
		return DescriptiveStats{StationID: stationID}
	}

	values := make([]float64, n)
	logs := make([]float64, n)
	for i, o := range obs {
		values[i] = o.Concentration
		logs[i] = math.Log10(o.Concentration)
	}

	sorted := make([]float64, n)
	copy(sorted, values)
	sort.Float64s(sorted)

	return DescriptiveStats{
		StationID: stationID,
		N:         n,
		Min:       sorted[0],
		Max:       sorted[n-1],
		Mean:      stat.Mean(values, nil),
		StdDev:    stat.StdDev(values, nil),
		Median:    stat.Quantile(0.5, stat.Empirical, sorted, nil),
		P25:       stat.Quantile(0.25, stat.Empirical, sorted, nil),
		P75:       stat.Quantile(0.75, stat.Empirical, sorted, nil),
		LogMean:   stat.Mean(logs, nil),
		LogStdDev: stat.StdDev(logs, nil),
	}
}
