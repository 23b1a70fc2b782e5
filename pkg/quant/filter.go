package quant

// FilterFees returns the subsequence of records whose expense ratio does not
// exceed maxFeePercent, preserving input order. Incomplete records are
// excluded as a data gap rather than defaulted. The function is pure and
// idempotent: filtering an already-filtered set returns the same set.
func FilterFees(records []MetricRecord, maxFeePercent float64) ([]MetricRecord, []Exclusion) {
	kept := make([]MetricRecord, 0, len(records))
	var excluded []Exclusion

	for _, r := range records {
		if !r.Complete() {
			excluded = append(excluded, Exclusion{Identifier: r.Identifier, Reason: ReasonIncompleteData})
			continue
		}
		if *r.ExpenseRatioPercent > maxFeePercent {
			excluded = append(excluded, Exclusion{Identifier: r.Identifier, Reason: ReasonOverFeeThreshold})
			continue
		}
		kept = append(kept, r)
	}

	return kept, excluded
}
