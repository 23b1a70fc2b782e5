// Package quant implements the deterministic portfolio construction core:
// fee screening, risk-adjusted ranking and core/satellite allocation.
// It is pure data transformation with no I/O, no clock and no external
// calls, so the agentic layers around it stay mockable and the numbers
// reproducible.
package quant

import "errors"

// ExclusionReason explains why a fund was dropped from the pipeline.
type ExclusionReason string

const (
	// ReasonIncompleteData marks records missing one of the required metrics.
	ReasonIncompleteData ExclusionReason = "incomplete-data"
	// ReasonZeroVolatility marks records whose risk adjustment is undefined.
	ReasonZeroVolatility ExclusionReason = "zero-volatility"
	// ReasonOverFeeThreshold marks records rejected by the fee ceiling.
	ReasonOverFeeThreshold ExclusionReason = "over-fee-threshold"
)

// ErrNoEligibleFunds is returned when every input record was excluded and no
// allocation can be produced. It is the only terminal condition of the core;
// individual exclusions are reported as data, never as errors.
var ErrNoEligibleFunds = errors.New("no eligible funds after screening")

// MetricRecord holds one fund's identifier and its researched metrics.
// Metric fields are pointers: nil means the upstream research step could not
// find the figure, which is a data gap and must not be silently defaulted.
type MetricRecord struct {
	Identifier string `json:"identifier"`
	Name       string `json:"name,omitempty"`

	ExpenseRatioPercent  *float64 `json:"expense_ratio_percent,omitempty"`
	OneYearReturnPercent *float64 `json:"one_year_return_percent,omitempty"`
	VolatilityPercent    *float64 `json:"volatility_percent,omitempty"`

	// Score is populated by Rank; nil before ranking.
	Score *float64 `json:"score,omitempty"`
}

// NewMetricRecord builds a complete record from plain values.
func NewMetricRecord(identifier string, feePercent, returnPercent, volatilityPercent float64) MetricRecord {
	return MetricRecord{
		Identifier:           identifier,
		ExpenseRatioPercent:  &feePercent,
		OneYearReturnPercent: &returnPercent,
		VolatilityPercent:    &volatilityPercent,
	}
}

// Complete reports whether all metrics required by the pipeline are present.
func (r MetricRecord) Complete() bool {
	return r.Identifier != "" &&
		r.ExpenseRatioPercent != nil &&
		r.OneYearReturnPercent != nil &&
		r.VolatilityPercent != nil
}

// Exclusion records a dropped fund together with the reason, so the
// narrative layer can explain omissions to the end user.
type Exclusion struct {
	Identifier string          `json:"identifier"`
	Reason     ExclusionReason `json:"reason"`
}

// Config carries the per-run policy knobs of the pipeline. Tie-break and
// rounding rules are fixed; thresholds and the allocation split are not.
type Config struct {
	// MaxFeePercent is the TER ceiling; funds above it are rejected.
	MaxFeePercent float64 `json:"max_fee_percent"`
	// RiskFreeRatePercent is subtracted from returns before risk adjustment.
	RiskFreeRatePercent float64 `json:"risk_free_rate_percent"`
	// CorePercent is the weight assigned to the single top-ranked holding.
	CorePercent float64 `json:"core_percent"`
	// SatelliteCount caps how many runner-up holdings share the remainder.
	SatelliteCount int `json:"satellite_count"`
}

// DefaultConfig returns the stock policy: 2.5% fee ceiling, 0% risk-free
// rate, 70/30 core-satellite split across up to four satellites.
func DefaultConfig() Config {
	return Config{
		MaxFeePercent:       2.5,
		RiskFreeRatePercent: 0,
		CorePercent:         70,
		SatelliteCount:      4,
	}
}

// dedupe collapses duplicate identifiers, last write wins on metric fields.
// Input order of first appearance is preserved.
func dedupe(records []MetricRecord) []MetricRecord {
	index := make(map[string]int, len(records))
	out := make([]MetricRecord, 0, len(records))
	for _, r := range records {
		if i, ok := index[r.Identifier]; ok {
			out[i] = r
			continue
		}
		index[r.Identifier] = len(out)
		out = append(out, r)
	}
	return out
}
