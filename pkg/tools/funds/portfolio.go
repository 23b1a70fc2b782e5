package funds

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"

	"policypilot/pkg/api"
	"policypilot/pkg/config"
	"policypilot/pkg/quant"
	"policypilot/pkg/report"
)

// BuildPortfolioTool runs the full screening, ranking and allocation
// pipeline over researched fund metrics and renders the final blueprint.
// The policy is swappable at runtime for config hot reload.
type BuildPortfolioTool struct {
	mu     sync.RWMutex
	policy config.AdvisorConfig
}

// NewBuildPortfolioTool creates the pipeline tool with the given policy.
func NewBuildPortfolioTool(policy config.AdvisorConfig) *BuildPortfolioTool {
	return &BuildPortfolioTool{policy: policy}
}

// SetPolicy replaces the advisor policy, used on config reload.
func (t *BuildPortfolioTool) SetPolicy(policy config.AdvisorConfig) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.policy = policy
}

func (t *BuildPortfolioTool) Name() string {
	return "build_portfolio"
}

func (t *BuildPortfolioTool) Description() string {
	return "Screens researched funds by fee, ranks survivors by risk-adjusted " +
		"return and allocates a core/satellite portfolio. Pass every fund you " +
		"researched, with null for any metric you could not find. Returns the " +
		"finished markdown blueprint; present it to the user without changing " +
		"the numbers."
}

func (t *BuildPortfolioTool) Parameters() map[string]any {
	return map[string]any{
		"type": "object",
		"properties": map[string]any{
			"funds": map[string]any{
				"type":        "array",
				"description": "The researched funds with their metrics.",
				"items": map[string]any{
					"type": "object",
					"properties": map[string]any{
						"isin": map[string]any{
							"type":        "string",
							"description": "The fund's ISIN.",
						},
						"name": map[string]any{
							"type":        "string",
							"description": "Human-readable fund name, if known.",
						},
						"expense_ratio_percent": map[string]any{
							"type":        "number",
							"description": "Total expense ratio (TER) in percent, null if unknown.",
						},
						"one_year_return_percent": map[string]any{
							"type":        "number",
							"description": "Trailing one-year performance in percent, null if unknown.",
						},
						"volatility_percent": map[string]any{
							"type":        "number",
							"description": "Annualized volatility in percent, null if unknown.",
						},
						"return_series_percent": map[string]any{
							"type":        "array",
							"items":       map[string]any{"type": "number"},
							"description": "Periodic returns in percent, for funds that publish a return series but no headline volatility.",
						},
						"series_periods_per_year": map[string]any{
							"type":        "number",
							"description": "Periods per year for the return series: 12 for monthly, 252 for daily. Defaults to 12.",
						},
					},
					"required": []string{"isin"},
				},
			},
			"risk_profile": map[string]any{
				"type":        "string",
				"description": "The user's stated risk profile: conservative, balanced, growth or aggressive.",
			},
			"strategy_name": map[string]any{
				"type":        "string",
				"description": "Optional display name for the strategy, e.g. 'Balanced Growth'.",
			},
		},
		"required": []string{"funds"},
	}
}

// pipelineArgs mirrors the tool's argument schema. Metric fields stay
// pointers so a null from the model is a data gap, not a zero.
type pipelineArgs struct {
	Funds []struct {
		ISIN                 string    `json:"isin"`
		Name                 string    `json:"name"`
		ExpenseRatioPercent  *float64  `json:"expense_ratio_percent"`
		OneYearReturnPercent *float64  `json:"one_year_return_percent"`
		VolatilityPercent    *float64  `json:"volatility_percent"`
		ReturnSeriesPercent  []float64 `json:"return_series_percent"`
		SeriesPeriodsPerYear int       `json:"series_periods_per_year"`
	} `json:"funds"`
	RiskProfile  string `json:"risk_profile"`
	StrategyName string `json:"strategy_name"`
}

// Execute implements api.Tool.
func (t *BuildPortfolioTool) Execute(ctx context.Context, args map[string]any) (*api.ToolResult, error) {
	// Round-trip through JSON so number/null handling matches the schema
	raw, err := json.Marshal(args)
	if err != nil {
		return nil, err
	}
	var in pipelineArgs
	if err := json.Unmarshal(raw, &in); err != nil {
		return nil, fmt.Errorf("invalid arguments: %w", err)
	}
	if len(in.Funds) == 0 {
		return nil, fmt.Errorf("missing required argument 'funds'")
	}

	records := make([]quant.MetricRecord, 0, len(in.Funds))
	for _, f := range in.Funds {
		vol := f.VolatilityPercent
		if vol == nil && len(f.ReturnSeriesPercent) > 0 {
			periods := f.SeriesPeriodsPerYear
			if periods <= 0 {
				periods = 12
			}
			vol = quant.AnnualizedVolatility(f.ReturnSeriesPercent, periods)
		}
		records = append(records, quant.MetricRecord{
			Identifier:           f.ISIN,
			Name:                 f.Name,
			ExpenseRatioPercent:  f.ExpenseRatioPercent,
			OneYearReturnPercent: f.OneYearReturnPercent,
			VolatilityPercent:    vol,
		})
	}

	t.mu.RLock()
	policy := t.policy
	t.mu.RUnlock()

	profile := strings.ToLower(strings.TrimSpace(in.RiskProfile))
	cfg := policy.Config
	cfg.CorePercent = policy.CoreFor(profile)

	slog.Info("📊 Running portfolio pipeline",
		"funds", len(records), "profile", profile, "core_percent", cfg.CorePercent)

	rep, err := quant.Run(records, cfg)
	if err != nil {
		if errors.Is(err, quant.ErrNoEligibleFunds) {
			// Not a tool failure: the model must relay why nothing survived
			result := api.NewTextResult(report.RenderNoEligibleFunds(rep))
			result.Details = map[string]any{"eligible": 0, "exclusions": len(rep.Exclusions)}
			return result, nil
		}
		return nil, err
	}

	result := api.NewTextResult(report.RenderBlueprint(rep, strategyName(in.StrategyName, profile)))
	result.Details = map[string]any{
		"holdings":   len(rep.Holdings),
		"exclusions": len(rep.Exclusions),
	}
	return result, nil
}

// strategyName picks the blueprint title: explicit name first, then one
// derived from the risk profile.
func strategyName(explicit, profile string) string {
	if explicit != "" {
		return explicit
	}
	if profile == "" {
		return "Balanced Growth"
	}
	return capitalize(profile) + " Growth"
}

func capitalize(s string) string {
	if s == "" {
		return s
	}
	return strings.ToUpper(s[:1]) + s[1:]
}
