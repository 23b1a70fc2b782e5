package quant

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRunFullPipeline(t *testing.T) {
	records := []MetricRecord{
		NewMetricRecord("A", 1.0, 8, 10),
		NewMetricRecord("B", 3.0, 12, 8),
		NewMetricRecord("C", 0.5, 5, 5),
	}

	cfg := DefaultConfig()
	cfg.SatelliteCount = 1

	report, err := Run(records, cfg)
	require.NoError(t, err)

	// B is rejected on fees; C outranks A on risk-adjusted score.
	require.Len(t, report.Holdings, 2)
	assert.Equal(t, "C", report.Holdings[0].Identifier)
	assert.InDelta(t, 70, report.Holdings[0].WeightPercent, 0.01)
	assert.Equal(t, "A", report.Holdings[1].Identifier)
	assert.InDelta(t, 30, report.Holdings[1].WeightPercent, 0.01)

	require.Len(t, report.Exclusions, 1)
	assert.Equal(t, Exclusion{Identifier: "B", Reason: ReasonOverFeeThreshold}, report.Exclusions[0])
}

func TestRunCollapsesDuplicatesLastWriteWins(t *testing.T) {
	records := []MetricRecord{
		NewMetricRecord("A", 5.0, 8, 10), // stale fee, would be rejected
		NewMetricRecord("B", 1.0, 6, 6),
		NewMetricRecord("A", 1.0, 8, 10), // corrected figures win
	}

	report, err := Run(records, DefaultConfig())
	require.NoError(t, err)

	assert.Empty(t, report.Exclusions)
	require.Len(t, report.Ranked, 2)
	assert.Equal(t, "B", report.Ranked[0].Identifier)
	assert.InDelta(t, 1.0, *report.Ranked[0].Score, 1e-9)
}

func TestRunZeroVolatilityDoesNotCrashPipeline(t *testing.T) {
	records := []MetricRecord{
		NewMetricRecord("FLAT", 0.3, 2, 0),
		NewMetricRecord("OK", 1.0, 8, 10),
	}

	report, err := Run(records, DefaultConfig())
	require.NoError(t, err)

	require.Len(t, report.Holdings, 1)
	assert.Equal(t, "OK", report.Holdings[0].Identifier)
	assert.Contains(t, report.Exclusions, Exclusion{Identifier: "FLAT", Reason: ReasonZeroVolatility})
}

func TestRunNoEligibleFunds(t *testing.T) {
	records := []MetricRecord{
		NewMetricRecord("A", 9.0, 8, 10),
		{Identifier: "B"},
	}

	report, err := Run(records, DefaultConfig())

	assert.ErrorIs(t, err, ErrNoEligibleFunds)
	require.NotNil(t, report)
	assert.Empty(t, report.Holdings)
	// Exclusion reasons survive the terminal error so the caller can explain.
	assert.Len(t, report.Exclusions, 2)
}

func TestRunEmptyInput(t *testing.T) {
	report, err := Run(nil, DefaultConfig())

	assert.ErrorIs(t, err, ErrNoEligibleFunds)
	assert.Empty(t, report.Holdings)
}

func TestAnnualizedVolatility(t *testing.T) {
	t.Run("too short", func(t *testing.T) {
		assert.Nil(t, AnnualizedVolatility(nil, 12))
		assert.Nil(t, AnnualizedVolatility([]float64{1.5}, 12))
	})

	t.Run("constant series has zero volatility", func(t *testing.T) {
		vol := AnnualizedVolatility([]float64{2, 2, 2, 2}, 12)
		require.NotNil(t, vol)
		assert.InDelta(t, 0, *vol, 1e-9)
	})

	t.Run("monthly annualization", func(t *testing.T) {
		// Sample stddev of {1,-1,1,-1,...} is ~1.033 for n=12; x sqrt(12).
		series := make([]float64, 12)
		for i := range series {
			if i%2 == 0 {
				series[i] = 1
			} else {
				series[i] = -1
			}
		}
		vol := AnnualizedVolatility(series, 12)
		require.NotNil(t, vol)
		assert.InDelta(t, 3.619, *vol, 0.01)
	})
}
