package trend

import (
	"math"
	"testing"
	"time"
)

func TestDescribe(t *testing.T) {
	base := time.Date(2024, time.June, 1, 0, 0, 0, 0, time.UTC)
	var obs []Observation
	for i, c := range []float64{2, 4, 4, 4, 6} {
		obs = append(obs, Observation{StationID: "WQ-11", Timestamp: base.AddDate(0, 0, i*7), Concentration: c})
	}

	got := Describe("WQ-11", obs)

	if got.StationID != "WQ-11" || got.N != 5 {
		t.Fatalf("identity = %s/%d, want WQ-11/5", got.StationID, got.N)
	}
	checks := []struct {
		name     string
		got      float64
		expected float64
		epsilon  float64
	}{
		{name: "min", got: got.Min, expected: 2, epsilon: 0},
		{name: "max", got: got.Max, expected: 6, epsilon: 0},
		{name: "mean", got: got.Mean, expected: 4, epsilon: 1e-12},
		// sqrt((4+0+0+0+4)/4) = sqrt(2)
		{name: "stddev", got: got.StdDev, expected: math.Sqrt2, epsilon: 1e-12},
		{name: "median", got: got.Median, expected: 4, epsilon: 0},
		{name: "p25", got: got.P25, expected: 4, epsilon: 0},
		{name: "p75", got: got.P75, expected: 4, epsilon: 0},
		// (log10(2) + 3*log10(4) + log10(6)) / 5
		{name: "log mean", got: got.LogMean, expected: 0.5770722440064, epsilon: 1e-9},
	}
	for _, c := range checks {
		if math.Abs(c.got-c.expected) > c.epsilon {
			t.Errorf("%s = %.12f, want %.12f", c.name, c.got, c.expected)
		}
	}
}

func TestDescribeEmpty(t *testing.T) {
	got := Describe("NONE", nil)
	if got.StationID != "NONE" || got.N != 0 {
		t.Errorf("identity = %s/%d, want NONE/0", got.StationID, got.N)
	}
}
