package trend

import "gonum.org/v1/gonum/stat/distuv"

// TCritical returns the two-tailed Student's t critical value at the given
// confidence level with df degrees of freedom.
func TCritical(confidenceLevel float64, degreesFreedom int) float64 {
	dist := distuv.StudentsT{Mu: 0, Sigma: 1, Nu: float64(degreesFreedom)}
	alpha := 1 - confidenceLevel
	return dist.Quantile(1 - alpha/2)
}

// ComputeMDC combines the chosen uncertainty estimate with the t critical
// value and the duration scale to produce the minimum detectable change,
// on the log10 scale and back-transformed to percent change.
//
// MDCPercent is a directional percent-change estimate; it is not bounded to
// (-100, 100) by construction.
func ComputeMDC(rec ReconciledUncertainty, reg RegressionResult, confidenceLevel, durationScale float64) (MDCRecord, error) {
	if reg.DegreesFreedom < 1 {
		return MDCRecord{}, &DegreesOfFreedomError{StationID: reg.StationID, DegreesFreedom: reg.DegreesFreedom}
	}

	t := TCritical(confidenceLevel, reg.DegreesFreedom)
	mdcLog10 := t * durationScale * rec.ChosenStd

	return MDCRecord{
		StationID:      reg.StationID,
		N:              reg.N,
		DegreesFreedom: reg.DegreesFreedom,
		TCritical:      t,
		MDCLog10:       mdcLog10,
		MDCPercent:     ToPercentChange(mdcLog10),
		Source:         rec.Source,
	}, nil
}
