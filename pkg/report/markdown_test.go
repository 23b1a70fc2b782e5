package report

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"policypilot/pkg/quant"
)

func TestRenderBlueprint(t *testing.T) {
	records := []quant.MetricRecord{
		quant.NewMetricRecord("IE00B4L5Y983", 0.2, 12, 14),
		quant.NewMetricRecord("LU0323577923", 1.6, 6, 8),
		quant.NewMetricRecord("DE0008490962", 2.9, 9, 11),
	}
	cfg := quant.DefaultConfig()
	cfg.SatelliteCount = 1

	rep, err := quant.Run(records, cfg)
	require.NoError(t, err)

	out := RenderBlueprint(rep, "Balanced Core-Satellite")

	assert.Contains(t, out, "**Recommended: the Balanced Core-Satellite Portfolio**")
	assert.Contains(t, out, "| Core | 70% | IE00B4L5Y983 | IE00B4L5Y983 |")
	assert.Contains(t, out, "| Satellite | 30% | LU0323577923 |")
	assert.Contains(t, out, "**Gap Analysis**")
	assert.Contains(t, out, "DE0008490962 excluded: fees above the configured ceiling")
	assert.Contains(t, out, "**Data Appendix**")
	assert.Contains(t, out, "| IE00B4L5Y983 | IE00B4L5Y983 | 12.00% | 14.00% | 0.20% | 0.86 |")
	// The satellite target was met, so no shortfall warning
	assert.NotContains(t, out, "targeted satellites")
}

func TestRenderBlueprintFlagsSatelliteShortfall(t *testing.T) {
	records := []quant.MetricRecord{
		quant.NewMetricRecord("IE00B4L5Y983", 0.2, 12, 14),
		quant.NewMetricRecord("LU0323577923", 1.6, 6, 8),
	}

	rep, err := quant.Run(records, quant.DefaultConfig())
	require.NoError(t, err)

	out := RenderBlueprint(rep, "")
	assert.Contains(t, out, "Only 1 of the 4 targeted satellites could be filled")
}

func TestRenderBlueprintUsesFundNames(t *testing.T) {
	core := quant.NewMetricRecord("IE00B4L5Y983", 0.2, 12, 14)
	core.Name = "Global Equity"

	rep, err := quant.Run([]quant.MetricRecord{core}, quant.DefaultConfig())
	require.NoError(t, err)

	out := RenderBlueprint(rep, "")

	assert.Contains(t, out, "**Recommended: the Core-Satellite Portfolio**")
	assert.Contains(t, out, "| Core | 100% | Global Equity | IE00B4L5Y983 |")
	assert.Contains(t, out, "no satellite diversification")
}

func TestRenderNoEligibleFunds(t *testing.T) {
	rep, err := quant.Run([]quant.MetricRecord{
		quant.NewMetricRecord("DE0008490962", 9.9, 9, 11),
	}, quant.DefaultConfig())
	require.ErrorIs(t, err, quant.ErrNoEligibleFunds)

	out := RenderNoEligibleFunds(rep)

	assert.Contains(t, out, "No eligible funds")
	assert.Contains(t, out, "DE0008490962 excluded")
}
