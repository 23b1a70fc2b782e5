package prompt

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"

	"policypilot/pkg/quant"
)

func TestBuildInjectsPolicyThresholds(t *testing.T) {
	out := Build(quant.DefaultConfig())

	assert.Contains(t, out, "TER above 2.50%")
	assert.Contains(t, out, "0.00% risk-free rate")
	assert.Contains(t, out, "Core at 70%")
	assert.Contains(t, out, "up to 4 satellites")
}

func TestBuildRendersCustomPolicy(t *testing.T) {
	cfg := quant.Config{
		MaxFeePercent:       1.75,
		RiskFreeRatePercent: 2,
		CorePercent:         60,
		SatelliteCount:      3,
	}

	out := Build(cfg)

	assert.Contains(t, out, "TER above 1.75%")
	assert.Contains(t, out, "2.00% risk-free rate")
	assert.Contains(t, out, "Core at 60%")
	assert.Contains(t, out, "up to 3 satellites")
}

func TestBuildReferencesOnlySupportedToolParameters(t *testing.T) {
	out := Build(quant.DefaultConfig())

	// The instruction must steer the model to the risk_profile parameter;
	// the tool has no per-call core percent override.
	assert.Contains(t, out, "risk_profile")
	assert.NotContains(t, out, "core_percent")
	assert.False(t, strings.Contains(out, "%!"), "unconsumed format verbs in instruction")
}
