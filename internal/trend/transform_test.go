package trend

import (
	"errors"
	"math"
	"testing"
	"time"
)

func TestTransform(t *testing.T) {
	base := time.Date(2023, time.March, 1, 0, 0, 0, 0, time.UTC)
	obs := []Observation{
		{StationID: "WQ-01", Timestamp: base, Concentration: 1.0},
		{StationID: "WQ-01", Timestamp: base.AddDate(0, 0, 30), Concentration: 10.0},
		{StationID: "WQ-02", Timestamp: base, Concentration: 0.5},
	}

	got, err := Transform(obs)
	if err != nil {
		t.Fatalf("Transform returned error: %v", err)
	}
	if len(got) != len(obs) {
		t.Fatalf("expected %d results, got %d", len(obs), len(got))
	}

	expected := []float64{0.0, 1.0, -0.30102999566398120}
	for i, tr := range got {
		if tr.StationID != obs[i].StationID {
			t.Errorf("row %d: station %s, want %s", i, tr.StationID, obs[i].StationID)
		}
		if !tr.Timestamp.Equal(obs[i].Timestamp) {
			t.Errorf("row %d: timestamp %v, want %v", i, tr.Timestamp, obs[i].Timestamp)
		}
		if math.Abs(tr.LogConcentration-expected[i]) > 1e-12 {
			t.Errorf("row %d: log concentration %.15f, want %.15f", i, tr.LogConcentration, expected[i])
		}
	}
}

func TestTransformDomainError(t *testing.T) {
	base := time.Date(2023, time.March, 1, 0, 0, 0, 0, time.UTC)
	tests := []struct {
		name  string
		value float64
	}{
		{name: "zero concentration", value: 0},
		{name: "negative concentration", value: -2.5},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			obs := []Observation{
				{StationID: "WQ-03", Timestamp: base, Concentration: 4.2},
				{StationID: "WQ-03", Timestamp: base.AddDate(0, 0, 7), Concentration: tt.value},
			}
			_, err := Transform(obs)
			var derr *DomainError
			if !errors.As(err, &derr) {
				t.Fatalf("expected DomainError, got %v", err)
			}
			if derr.StationID != "WQ-03" {
				t.Errorf("station %s, want WQ-03", derr.StationID)
			}
			if derr.Row != 1 {
				t.Errorf("row %d, want 1", derr.Row)
			}
			if derr.Value != tt.value {
				t.Errorf("value %g, want %g", derr.Value, tt.value)
			}
		})
	}
}

func TestPercentChangeRoundTrip(t *testing.T) {
	tests := []struct {
		name       string
		deltaLog10 float64
		expected   float64
		epsilon    float64
	}{
		// 1 - 10^-1 = 0.9
		{name: "one decade", deltaLog10: 1.0, expected: 90.0, epsilon: 1e-9},
		{name: "no change", deltaLog10: 0.0, expected: 0.0, epsilon: 1e-12},
		// 1 - 10^0.30103 = 1 - 2 = -1
		{name: "negative delta", deltaLog10: -0.30102999566398120, expected: -100.0, epsilon: 1e-9},
		{name: "small delta", deltaLog10: 0.01, expected: 2.276277904, epsilon: 1e-6},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := ToPercentChange(tt.deltaLog10)
			if math.Abs(got-tt.expected) > tt.epsilon {
				t.Errorf("ToPercentChange(%g) = %.9f, want %.9f ± %g", tt.deltaLog10, got, tt.expected, tt.epsilon)
			}
			back := FromPercentChange(got)
			if math.Abs(back-tt.deltaLog10) > 1e-12 {
				t.Errorf("FromPercentChange(ToPercentChange(%g)) = %.15f, want %.15f", tt.deltaLog10, back, tt.deltaLog10)
			}
		})
	}

	for _, pct := range []float64{-150, -50, 0, 25, 99} {
		back := ToPercentChange(FromPercentChange(pct))
		if math.Abs(back-pct) > 1e-9 {
			t.Errorf("ToPercentChange(FromPercentChange(%g)) = %.12f, want %.12f", pct, back, pct)
		}
	}
}

func TestLogTransformInvertsExactly(t *testing.T) {
	for _, c := range []float64{0.001, 0.5, 1, 42.5, 1200} {
		obs := []Observation{{StationID: "S", Timestamp: time.Unix(0, 0), Concentration: c}}
		tr, err := Transform(obs)
		if err != nil {
			t.Fatalf("Transform(%g) returned error: %v", c, err)
		}
		back := math.Pow(10, tr[0].LogConcentration)
		if math.Abs(back-c)/c > 1e-12 {
			t.Errorf("10^log10(%g) = %.15g, want %.15g", c, back, c)
		}
	}
}
