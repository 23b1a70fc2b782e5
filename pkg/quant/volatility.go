package quant

import (
	"math"

	"gonum.org/v1/gonum/stat"
)

// AnnualizedVolatility derives a volatility percentage from a series of
// periodic returns (already in percent) when a fund sheet publishes the
// series but no headline standard deviation. The sample standard deviation
// is annualized with the usual sqrt-of-periods scaling (12 for monthly
// data, 252 for daily).
//
// Returns nil for series shorter than two observations, too little data to
// estimate dispersion, which the pipeline then treats as incomplete-data.
func AnnualizedVolatility(periodicReturnsPercent []float64, periodsPerYear int) *float64 {
	if len(periodicReturnsPercent) < 2 || periodsPerYear <= 0 {
		return nil
	}

	sd := stat.StdDev(periodicReturnsPercent, nil)
	annualized := sd * math.Sqrt(float64(periodsPerYear))
	return &annualized
}
