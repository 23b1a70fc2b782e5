package quant

import "sort"

// Rank computes a Sharpe-style risk-adjusted score for each record,
//
//	score = (one-year return - risk-free rate) / volatility
//
// and returns the records sorted by score descending, annotated with the
// computed score. Records with zero volatility are excluded (the division is
// undefined; producing +Inf would dominate the ranking) and reported with
// reason zero-volatility. Ties are broken by lower expense ratio, then by
// identifier ascending, so the ordering is fully deterministic.
func Rank(records []MetricRecord, riskFreeRatePercent float64) ([]MetricRecord, []Exclusion) {
	ranked := make([]MetricRecord, 0, len(records))
	var excluded []Exclusion

	for _, r := range records {
		if !r.Complete() {
			excluded = append(excluded, Exclusion{Identifier: r.Identifier, Reason: ReasonIncompleteData})
			continue
		}
		if *r.VolatilityPercent == 0 {
			excluded = append(excluded, Exclusion{Identifier: r.Identifier, Reason: ReasonZeroVolatility})
			continue
		}
		score := (*r.OneYearReturnPercent - riskFreeRatePercent) / *r.VolatilityPercent
		r.Score = &score
		ranked = append(ranked, r)
	}

	sort.SliceStable(ranked, func(i, j int) bool {
		a, b := ranked[i], ranked[j]
		if *a.Score != *b.Score {
			return *a.Score > *b.Score
		}
		if *a.ExpenseRatioPercent != *b.ExpenseRatioPercent {
			return *a.ExpenseRatioPercent < *b.ExpenseRatioPercent
		}
		return a.Identifier < b.Identifier
	})

	return ranked, excluded
}
