package trend

import "math"

// Policy selects which uncertainty estimate feeds the MDC formula for a
// station. Policies must be pure functions of their arguments; sampling
// design judgment (duration, frequency, seasonality) lives in the policy,
// never in the reconciler.
type Policy func(stationID string, percentDifference float64) StdSource

// PreferStandardError always chooses the analytic standard error. This is
// the default policy.
func PreferStandardError() Policy {
	return func(string, float64) StdSource {
		return SourceStandardError
	}
}

// PreferBootstrapFor chooses the bootstrap standard deviation for the listed
// stations and the standard error everywhere else.
func PreferBootstrapFor(stationIDs ...string) Policy {
	flagged := make(map[string]bool, len(stationIDs))
	for _, id := range stationIDs {
		flagged[id] = true
	}
	return func(stationID string, _ float64) StdSource {
		if flagged[stationID] {
			return SourceBootstrapStdDev
		}
		return SourceStandardError
	}
}

// BootstrapWithinTolerance chooses the bootstrap standard deviation only
// when the two estimates agree within maxAbsPercentDifference percent.
func BootstrapWithinTolerance(maxAbsPercentDifference float64) Policy {
	return func(_ string, percentDifference float64) StdSource {
		if math.Abs(percentDifference) < maxAbsPercentDifference {
			return SourceBootstrapStdDev
		}
		return SourceStandardError
	}
}

// Reconcile compares the analytic standard error against the bootstrap
// standard deviation and applies the policy. A zero bootstrap standard
// deviation yields an infinite percent difference, which policies see as-is.
func Reconcile(reg RegressionResult, boot BootstrapResult, policy Policy) ReconciledUncertainty {
	if policy == nil {
		policy = PreferStandardError()
	}
	pd := 100 * (reg.SlopeStdError - boot.SlopeStdDev) / boot.SlopeStdDev
	source := policy(reg.StationID, pd)
	chosen := reg.SlopeStdError
	if source == SourceBootstrapStdDev {
		chosen = boot.SlopeStdDev
	}
	return ReconciledUncertainty{
		StationID:         reg.StationID,
		ChosenStd:         chosen,
		Source:            source,
		PercentDifference: pd,
	}
}
