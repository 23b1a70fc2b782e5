package funds

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"policypilot/pkg/config"
)

func TestExtractISINsTool(t *testing.T) {
	tool := NewExtractISINsTool()

	assert.Equal(t, "extract_isins", tool.Name())
	require.Contains(t, tool.Parameters()["properties"], "text")

	res, err := tool.Execute(context.Background(), map[string]any{
		"text": "Compare IE00B4L5Y983 and LU0323577923 please, not US0378331006.",
	})
	require.NoError(t, err)
	require.Len(t, res.Content, 1)

	var payload struct {
		Valid    []string `json:"valid"`
		Rejected []string `json:"rejected"`
	}
	require.NoError(t, json.Unmarshal([]byte(res.Content[0].Text), &payload))
	assert.Equal(t, []string{"IE00B4L5Y983", "LU0323577923"}, payload.Valid)
	assert.Equal(t, []string{"US0378331006"}, payload.Rejected)
	assert.Equal(t, 2, res.Details["valid_count"])
}

func TestExtractISINsToolMissingText(t *testing.T) {
	tool := NewExtractISINsTool()
	_, err := tool.Execute(context.Background(), map[string]any{})
	assert.Error(t, err)
}

func TestExtractISINsToolNoHits(t *testing.T) {
	tool := NewExtractISINsTool()
	res, err := tool.Execute(context.Background(), map[string]any{"text": "no codes here"})
	require.NoError(t, err)
	// Arrays must stay [] rather than null for the model
	assert.JSONEq(t, `{"valid":[],"rejected":[]}`, res.Content[0].Text)
}

func buildArgs(profile string) map[string]any {
	return map[string]any{
		"funds": []any{
			map[string]any{
				"isin":                    "IE00B4L5Y983",
				"name":                    "Global Equity Core",
				"expense_ratio_percent":   0.2,
				"one_year_return_percent": 12.0,
				"volatility_percent":      14.0,
			},
			map[string]any{
				"isin":                    "LU0323577923",
				"name":                    "Active World",
				"expense_ratio_percent":   3.0,
				"one_year_return_percent": 15.0,
				"volatility_percent":      16.0,
			},
			map[string]any{
				"isin":                    "DE0008490962",
				"name":                    "Euro Bond",
				"expense_ratio_percent":   0.5,
				"one_year_return_percent": 4.0,
				"volatility_percent":      5.0,
			},
			map[string]any{
				"isin": "US0378331005",
				"name": "Mystery Fund",
				// no metrics researched
			},
		},
		"risk_profile": profile,
	}
}

func TestBuildPortfolioTool(t *testing.T) {
	tool := NewBuildPortfolioTool(config.DefaultAdvisorConfig())

	res, err := tool.Execute(context.Background(), buildArgs("balanced"))
	require.NoError(t, err)
	require.Len(t, res.Content, 1)
	out := res.Content[0].Text

	assert.Contains(t, out, "**Recommended: the Balanced Growth Portfolio**")
	// IE00B4L5Y983 scores 12/14 ≈ 0.86 vs DE0008490962 at 4/5 = 0.80
	assert.Contains(t, out, "| Core | 70% | Global Equity Core | IE00B4L5Y983 |")
	assert.Contains(t, out, "| Satellite | 30% | Euro Bond | DE0008490962 |")
	// Over-fee and incomplete funds surface in the gap analysis
	assert.Contains(t, out, "LU0323577923 excluded: fees above the configured ceiling")
	assert.Contains(t, out, "US0378331005 excluded: missing fee, return or volatility data")

	assert.Equal(t, 2, res.Details["holdings"])
	assert.Equal(t, 2, res.Details["exclusions"])
}

func TestBuildPortfolioToolRiskProfile(t *testing.T) {
	tool := NewBuildPortfolioTool(config.DefaultAdvisorConfig())

	res, err := tool.Execute(context.Background(), buildArgs("conservative"))
	require.NoError(t, err)
	out := res.Content[0].Text

	assert.Contains(t, out, "**Recommended: the Conservative Growth Portfolio**")
	assert.Contains(t, out, "| Core | 50% |")
	assert.Contains(t, out, "| Satellite | 50% |")
}

func TestBuildPortfolioToolStrategyNameOverride(t *testing.T) {
	tool := NewBuildPortfolioTool(config.DefaultAdvisorConfig())

	args := buildArgs("balanced")
	args["strategy_name"] = "Steady Income"
	res, err := tool.Execute(context.Background(), args)
	require.NoError(t, err)
	assert.Contains(t, res.Content[0].Text, "**Recommended: the Steady Income Portfolio**")
}

func TestBuildPortfolioToolNoEligibleFunds(t *testing.T) {
	tool := NewBuildPortfolioTool(config.DefaultAdvisorConfig())

	res, err := tool.Execute(context.Background(), map[string]any{
		"funds": []any{
			map[string]any{"isin": "US0378331005"},
		},
	})
	// An empty eligible set is an answer, not a tool failure
	require.NoError(t, err)
	assert.Contains(t, res.Content[0].Text, "No eligible funds survived screening")
	assert.Contains(t, res.Content[0].Text, "US0378331005 excluded")
	assert.Equal(t, 0, res.Details["eligible"])
}

func TestBuildPortfolioToolDerivesVolatilityFromSeries(t *testing.T) {
	tool := NewBuildPortfolioTool(config.DefaultAdvisorConfig())

	res, err := tool.Execute(context.Background(), map[string]any{
		"funds": []any{
			map[string]any{
				"isin":                    "IE00B4L5Y983",
				"name":                    "Global Equity Core",
				"expense_ratio_percent":   0.2,
				"one_year_return_percent": 12.0,
				"return_series_percent":   []any{1.0, 2.0, 3.0, 1.5, 2.5, 0.5},
				"series_periods_per_year": 12,
			},
		},
	})
	require.NoError(t, err)
	// The series stands in for the missing headline volatility, so the fund
	// survives screening instead of being dropped as incomplete
	assert.Contains(t, res.Content[0].Text, "| Core | 100% | Global Equity Core | IE00B4L5Y983 |")
	assert.Equal(t, 1, res.Details["holdings"])
}

func TestBuildPortfolioToolMissingFunds(t *testing.T) {
	tool := NewBuildPortfolioTool(config.DefaultAdvisorConfig())
	_, err := tool.Execute(context.Background(), map[string]any{})
	assert.Error(t, err)
}

func TestBuildPortfolioToolSetPolicy(t *testing.T) {
	tool := NewBuildPortfolioTool(config.DefaultAdvisorConfig())

	tightened := config.DefaultAdvisorConfig()
	tightened.MaxFeePercent = 0.1
	tool.SetPolicy(tightened)

	res, err := tool.Execute(context.Background(), buildArgs("balanced"))
	require.NoError(t, err)
	assert.Contains(t, res.Content[0].Text, "No eligible funds survived screening")
}
