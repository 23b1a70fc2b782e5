package quant

// Report is the structured outcome of one pipeline run. Exclusions carry the
// reason each fund was dropped so the synthesis step can explain omissions
// instead of letting them vanish silently; Ranked carries the surviving
// records with their scores for the data appendix.
type Report struct {
	Holdings   []Holding      `json:"holdings"`
	Exclusions []Exclusion    `json:"exclusions,omitempty"`
	Ranked     []MetricRecord `json:"ranked,omitempty"`
	// Policy is the config the run was executed under, echoed back so the
	// rendering layer can flag shortfalls against the targeted split.
	Policy Config `json:"policy"`
}

// Run composes the full pipeline: dedupe -> fee filter -> risk-adjusted
// ranking -> core/satellite selection. Duplicated identifiers collapse to a
// single record (last write wins) before any screening.
//
// Run never fails on individual bad records; those are reported in the
// returned Report. The only error condition is an entirely empty eligible
// set, in which case the Report still carries the collected exclusions so
// the caller can tell the user why nothing survived.
func Run(records []MetricRecord, cfg Config) (*Report, error) {
	report := &Report{Policy: cfg}

	unique := dedupe(records)

	affordable, overFee := FilterFees(unique, cfg.MaxFeePercent)
	report.Exclusions = append(report.Exclusions, overFee...)

	ranked, unrankable := Rank(affordable, cfg.RiskFreeRatePercent)
	report.Exclusions = append(report.Exclusions, unrankable...)
	report.Ranked = ranked

	holdings, err := SelectPortfolio(ranked, cfg)
	if err != nil {
		return report, err
	}
	report.Holdings = holdings

	return report, nil
}
