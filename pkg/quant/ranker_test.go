package quant

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRankComputesSharpeStyleScores(t *testing.T) {
	records := []MetricRecord{
		NewMetricRecord("A", 1.0, 8, 10),
		NewMetricRecord("C", 0.5, 5, 5),
	}

	ranked, excluded := Rank(records, 0)

	require.Empty(t, excluded)
	require.Len(t, ranked, 2)

	// C scores 5/5 = 1.0, A scores 8/10 = 0.8, so C ranks first.
	assert.Equal(t, "C", ranked[0].Identifier)
	assert.InDelta(t, 1.0, *ranked[0].Score, 1e-9)
	assert.Equal(t, "A", ranked[1].Identifier)
	assert.InDelta(t, 0.8, *ranked[1].Score, 1e-9)
}

func TestRankSubtractsRiskFreeRate(t *testing.T) {
	ranked, _ := Rank([]MetricRecord{NewMetricRecord("A", 1.0, 8, 10)}, 2)

	require.Len(t, ranked, 1)
	assert.InDelta(t, 0.6, *ranked[0].Score, 1e-9)
}

func TestRankOutputIsNonIncreasing(t *testing.T) {
	records := []MetricRecord{
		NewMetricRecord("A", 1.0, 4, 8),
		NewMetricRecord("B", 0.2, 12, 6),
		NewMetricRecord("C", 0.9, -3, 14),
		NewMetricRecord("D", 1.4, 9, 9),
	}

	ranked, _ := Rank(records, 0.5)

	for i := 1; i < len(ranked); i++ {
		assert.GreaterOrEqual(t, *ranked[i-1].Score, *ranked[i].Score)
	}
}

func TestRankBreaksTiesByFeeThenIdentifier(t *testing.T) {
	records := []MetricRecord{
		NewMetricRecord("ZZ", 0.8, 10, 10), // score 1.0, cheapest
		NewMetricRecord("BB", 1.2, 10, 10), // score 1.0
		NewMetricRecord("AA", 1.2, 10, 10), // score 1.0, same fee as BB
	}

	ranked, _ := Rank(records, 0)

	assert.Equal(t, []string{"ZZ", "AA", "BB"}, identifiers(ranked))
}

func TestRankExcludesZeroVolatility(t *testing.T) {
	records := []MetricRecord{
		NewMetricRecord("FLAT", 0.3, 2, 0),
		NewMetricRecord("OK", 1.0, 8, 10),
	}

	ranked, excluded := Rank(records, 0)

	require.Len(t, ranked, 1)
	assert.Equal(t, "OK", ranked[0].Identifier)

	require.Len(t, excluded, 1)
	assert.Equal(t, "FLAT", excluded[0].Identifier)
	assert.Equal(t, ReasonZeroVolatility, excluded[0].Reason)
}

func TestRankDoesNotMutateInput(t *testing.T) {
	records := []MetricRecord{NewMetricRecord("A", 1.0, 8, 10)}

	_, _ = Rank(records, 0)

	assert.Nil(t, records[0].Score)
}
