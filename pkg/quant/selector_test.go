package quant

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func rankedFixture(n int) []MetricRecord {
	ids := []string{"A", "B", "C", "D", "E", "F"}
	out := make([]MetricRecord, 0, n)
	for i := 0; i < n; i++ {
		r := NewMetricRecord(ids[i], 1.0, 10, 10)
		score := float64(n - i) // descending
		r.Score = &score
		out = append(out, r)
	}
	return out
}

func sumWeights(holdings []Holding) float64 {
	var sum float64
	for _, h := range holdings {
		sum += h.WeightPercent
	}
	return sum
}

func TestSelectPortfolioCoreSatelliteSplit(t *testing.T) {
	holdings, err := SelectPortfolio(rankedFixture(5), DefaultConfig())
	require.NoError(t, err)
	require.Len(t, holdings, 5)

	assert.Equal(t, RoleCore, holdings[0].Role)
	assert.InDelta(t, 70, holdings[0].WeightPercent, 0.01)
	for _, sat := range holdings[1:] {
		assert.Equal(t, RoleSatellite, sat.Role)
		assert.InDelta(t, 7.5, sat.WeightPercent, 0.01)
	}
	assert.InDelta(t, 100, sumWeights(holdings), 0.01)
}

func TestSelectPortfolioSingleSatellite(t *testing.T) {
	cfg := DefaultConfig()
	cfg.CorePercent = 70
	cfg.SatelliteCount = 1

	holdings, err := SelectPortfolio(rankedFixture(2), cfg)
	require.NoError(t, err)
	require.Len(t, holdings, 2)

	assert.InDelta(t, 70, holdings[0].WeightPercent, 0.01)
	assert.InDelta(t, 30, holdings[1].WeightPercent, 0.01)
}

func TestSelectPortfolioRedistributesWhenShort(t *testing.T) {
	// Default config wants 1 core + 4 satellites, only 3 funds available.
	holdings, err := SelectPortfolio(rankedFixture(3), DefaultConfig())
	require.NoError(t, err)
	require.Len(t, holdings, 3)

	assert.InDelta(t, 70, holdings[0].WeightPercent, 0.01)
	assert.InDelta(t, 15, holdings[1].WeightPercent, 0.01)
	assert.InDelta(t, 15, holdings[2].WeightPercent, 0.01)
	assert.InDelta(t, 100, sumWeights(holdings), 0.01)
}

func TestSelectPortfolioSingleFundCarriesEverything(t *testing.T) {
	holdings, err := SelectPortfolio(rankedFixture(1), DefaultConfig())
	require.NoError(t, err)
	require.Len(t, holdings, 1)

	assert.Equal(t, RoleCore, holdings[0].Role)
	assert.InDelta(t, 100, holdings[0].WeightPercent, 0.01)
}

func TestSelectPortfolioEmptyInput(t *testing.T) {
	holdings, err := SelectPortfolio(nil, DefaultConfig())

	assert.ErrorIs(t, err, ErrNoEligibleFunds)
	assert.Empty(t, holdings)
}

func TestSelectPortfolioWeightsAlwaysSumToHundred(t *testing.T) {
	cfg := DefaultConfig()
	cfg.CorePercent = 60
	cfg.SatelliteCount = 3

	for n := 1; n <= 6; n++ {
		holdings, err := SelectPortfolio(rankedFixture(n), cfg)
		require.NoError(t, err, "n=%d", n)
		assert.InDelta(t, 100, sumWeights(holdings), 0.01, "n=%d", n)
	}
}
