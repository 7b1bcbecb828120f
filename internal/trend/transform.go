package trend

import "math"

// Transform maps observations onto the log10 scale, preserving order.
// It fails with a DomainError on the first non-positive concentration.
func Transform(obs []Observation) ([]TransformedObservation, error) {
	out := make([]TransformedObservation, len(obs))
	for i, o := range obs {
		if o.Concentration <= 0 {
			return nil, &DomainError{StationID: o.StationID, Row: i, Value: o.Concentration}
		}
		out[i] = TransformedObservation{
			StationID:        o.StationID,
			Timestamp:        o.Timestamp,
			LogConcentration: math.Log10(o.Concentration),
		}
	}
	return out, nil
}

// ToPercentChange converts a change in log10 concentration into a percent
// change on the original concentration scale.
func ToPercentChange(deltaLog10 float64) float64 {
	return (1 - math.Pow(10, -deltaLog10)) * 100
}

// FromPercentChange is the inverse of ToPercentChange. It is undefined for
// pct >= 100.
func FromPercentChange(pct float64) float64 {
	return -math.Log10(1 - pct/100)
}
