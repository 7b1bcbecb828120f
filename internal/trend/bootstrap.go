package trend

import (
	"context"
	"fmt"
	"hash/fnv"
	"math/rand"

	"gonum.org/v1/gonum/stat"
)

// degenerateRedrawFactor caps total resample draws at this multiple of the
// requested count before the estimator gives up.
const degenerateRedrawFactor = 10

// Bootstrap estimates slope uncertainty for one station by drawing
// resampleCount size-n resamples with replacement, refitting the slope on
// each, and reporting the sample standard deviation of the collected slopes.
//
// The random source is derived from baseSeed and the station ID, so results
// are reproducible for a given seed no matter how stations are scheduled.
// Resamples whose sampled times all coincide are discarded and redrawn;
// when total draws exceed 10x the requested count the estimator fails with
// BootstrapConvergenceError. Cancellation is checked between resamples.
func Bootstrap(ctx context.Context, p StationPartition, resampleCount int, baseSeed int64) (BootstrapResult, error) {
	n := len(p.Observations)
	if n < MinObservations {
		return BootstrapResult{}, &InsufficientDataError{StationID: p.StationID, N: n}
	}
	if resampleCount < 1 {
		return BootstrapResult{}, fmt.Errorf("resample count must be positive, got %d", resampleCount)
	}

	xs := make([]float64, n)
	ys := make([]float64, n)
	for i, o := range p.Observations {
		xs[i] = dayOrdinal(o.Timestamp)
		ys[i] = o.LogConcentration
	}

	rng := rand.New(rand.NewSource(stationSeed(baseSeed, p.StationID)))
	slopes := make([]float64, 0, resampleCount)
	rx := make([]float64, n)
	ry := make([]float64, n)
	maxAttempts := resampleCount * degenerateRedrawFactor

	attempts := 0
	for len(slopes) < resampleCount {
		if err := ctx.Err(); err != nil {
			return BootstrapResult{}, fmt.Errorf("bootstrap for station %s interrupted: %w", p.StationID, err)
		}
		if attempts >= maxAttempts {
			return BootstrapResult{}, &BootstrapConvergenceError{
				StationID: p.StationID,
				Attempts:  attempts,
				Collected: len(slopes),
				Wanted:    resampleCount,
			}
		}
		attempts++

		for i := 0; i < n; i++ {
			j := rng.Intn(n)
			rx[i] = xs[j]
			ry[i] = ys[j]
		}
		slope, ok := slopeOnly(rx, ry)
		if !ok {
			continue
		}
		slopes = append(slopes, slope)
	}

	return BootstrapResult{
		StationID:     p.StationID,
		SlopeStdDev:   stat.StdDev(slopes, nil),
		ResampleCount: resampleCount,
		Slopes:        slopes,
	}, nil
}

// stationSeed derives a per-station seed so parallel workers each own a
// private source without coordinating.
func stationSeed(base int64, stationID string) int64 {
	h := fnv.New64a()
	h.Write([]byte(stationID))
	return base ^ int64(h.Sum64())
}
