// Package report renders quant pipeline results into the markdown blueprint
// that channels deliver to the user: strategy declaration, allocation table,
// gap analysis and a data appendix.
package report

import (
	"fmt"
	"strings"

	"policypilot/pkg/quant"
)

// reasonText maps machine exclusion reasons to user-facing explanations.
var reasonText = map[quant.ExclusionReason]string{
	quant.ReasonIncompleteData:   "missing fee, return or volatility data",
	quant.ReasonZeroVolatility:   "zero reported volatility, risk adjustment undefined",
	quant.ReasonOverFeeThreshold: "fees above the configured ceiling",
}

// RenderBlueprint formats a pipeline report as the portfolio blueprint.
// strategyName labels the declaration line (e.g. "Balanced Core-Satellite");
// an empty name falls back to "Core-Satellite".
func RenderBlueprint(r *quant.Report, strategyName string) string {
	if strategyName == "" {
		strategyName = "Core-Satellite"
	}

	var sb strings.Builder

	fmt.Fprintf(&sb, "**Recommended: the %s Portfolio**\n\n", strategyName)

	sb.WriteString("| Role | Allocation % | Fund | ISIN | Rationale |\n")
	sb.WriteString("| :--- | :--- | :--- | :--- | :--- |\n")
	for _, h := range r.Holdings {
		fmt.Fprintf(&sb, "| %s | %s%% | %s | %s | %s |\n",
			h.Role, trimWeight(h.WeightPercent), displayName(h.Name, h.Identifier), h.Identifier, h.Rationale)
	}

	gaps := renderGaps(r)
	if short := renderShortfall(r); short != "" {
		gaps += short
	}
	if gaps != "" {
		sb.WriteString("\n**Gap Analysis**\n")
		sb.WriteString(gaps)
	}

	if len(r.Ranked) > 0 {
		sb.WriteString("\n**Data Appendix**\n\n")
		sb.WriteString("| Fund | ISIN | 1y Perf | Volatility | Fees (TER) | Score |\n")
		sb.WriteString("| :--- | :--- | :--- | :--- | :--- | :--- |\n")
		for _, rec := range r.Ranked {
			fmt.Fprintf(&sb, "| %s | %s | %.2f%% | %.2f%% | %.2f%% | %.2f |\n",
				displayName(rec.Name, rec.Identifier), rec.Identifier,
				*rec.OneYearReturnPercent, *rec.VolatilityPercent, *rec.ExpenseRatioPercent, *rec.Score)
		}
	}

	return sb.String()
}

// RenderNoEligibleFunds explains a fully-empty run: every candidate was
// excluded, so no allocation exists to present.
func RenderNoEligibleFunds(r *quant.Report) string {
	var sb strings.Builder
	sb.WriteString("⚠️ No eligible funds survived screening, so no allocation can be built.\n")
	if gaps := renderGaps(r); gaps != "" {
		sb.WriteString("\n")
		sb.WriteString(gaps)
	}
	return sb.String()
}

func renderGaps(r *quant.Report) string {
	if len(r.Exclusions) == 0 {
		return ""
	}
	var sb strings.Builder
	for _, e := range r.Exclusions {
		text, ok := reasonText[e.Reason]
		if !ok {
			text = string(e.Reason)
		}
		fmt.Fprintf(&sb, "- %s excluded: %s\n", e.Identifier, text)
	}
	return sb.String()
}

// renderShortfall warns when fewer satellites survived than the policy
// targets, so thin diversification is called out explicitly.
func renderShortfall(r *quant.Report) string {
	if len(r.Holdings) == 0 || r.Policy.SatelliteCount <= 0 {
		return ""
	}
	satellites := len(r.Holdings) - 1
	if satellites >= r.Policy.SatelliteCount {
		return ""
	}
	if satellites == 0 {
		return "- Only one eligible fund: the entire allocation sits in the core with no satellite diversification.\n"
	}
	return fmt.Sprintf("- Only %d of the %d targeted satellites could be filled from the eligible funds.\n",
		satellites, r.Policy.SatelliteCount)
}

func displayName(name, identifier string) string {
	if name != "" {
		return name
	}
	return identifier
}

// trimWeight renders weights without trailing zero noise (70, 7.5, 12.33).
func trimWeight(w float64) string {
	s := fmt.Sprintf("%.2f", w)
	s = strings.TrimRight(s, "0")
	return strings.TrimRight(s, ".")
}
