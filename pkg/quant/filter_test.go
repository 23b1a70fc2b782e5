package quant

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFilterFeesDropsFundsAboveCeiling(t *testing.T) {
	records := []MetricRecord{
		NewMetricRecord("IE00B4L5Y983", 1.0, 8, 10),
		NewMetricRecord("LU0323577923", 3.0, 12, 8),
		NewMetricRecord("DE0008490962", 0.5, 5, 5),
	}

	kept, excluded := FilterFees(records, 2.5)

	require.Len(t, kept, 2)
	assert.Equal(t, "IE00B4L5Y983", kept[0].Identifier)
	assert.Equal(t, "DE0008490962", kept[1].Identifier)

	require.Len(t, excluded, 1)
	assert.Equal(t, "LU0323577923", excluded[0].Identifier)
	assert.Equal(t, ReasonOverFeeThreshold, excluded[0].Reason)
}

func TestFilterFeesOutputIsSubsetWithinThreshold(t *testing.T) {
	records := []MetricRecord{
		NewMetricRecord("A", 2.5, 1, 1), // boundary: kept
		NewMetricRecord("B", 2.51, 1, 1),
		NewMetricRecord("C", 0, 1, 1),
	}

	kept, _ := FilterFees(records, 2.5)

	for _, r := range kept {
		assert.LessOrEqual(t, *r.ExpenseRatioPercent, 2.5)
	}
	assert.Equal(t, []string{"A", "C"}, identifiers(kept))
}

func TestFilterFeesExcludesIncompleteRecords(t *testing.T) {
	fee := 1.0
	ret := 8.0
	records := []MetricRecord{
		{Identifier: "NOVOL", ExpenseRatioPercent: &fee, OneYearReturnPercent: &ret},
		{Identifier: "EMPTY"},
		NewMetricRecord("FULL", 1.0, 8, 10),
	}

	kept, excluded := FilterFees(records, 2.5)

	require.Len(t, kept, 1)
	assert.Equal(t, "FULL", kept[0].Identifier)

	require.Len(t, excluded, 2)
	for _, e := range excluded {
		assert.Equal(t, ReasonIncompleteData, e.Reason)
	}
}

func TestFilterFeesIsIdempotent(t *testing.T) {
	records := []MetricRecord{
		NewMetricRecord("A", 1.0, 8, 10),
		NewMetricRecord("B", 3.0, 12, 8),
		NewMetricRecord("C", 0.5, 5, 5),
	}

	once, _ := FilterFees(records, 2.5)
	twice, excluded := FilterFees(once, 2.5)

	assert.Equal(t, once, twice)
	assert.Empty(t, excluded)
}

func identifiers(records []MetricRecord) []string {
	ids := make([]string, 0, len(records))
	for _, r := range records {
		ids = append(ids, r.Identifier)
	}
	return ids
}
