package config

import (
	"os"
	"path/filepath"
	"testing"

	jsoniter "github.com/json-iterator/go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAdvisorDefaultsFillPartialConfig(t *testing.T) {
	raw := []byte(`{"llm":[{"type":"gemini"}],"advisor":{"max_fee_percent":1.5}}`)

	var cfg Config
	require.NoError(t, jsoniter.ConfigCompatibleWithStandardLibrary.Unmarshal(raw, &cfg))
	require.NoError(t, cfg.Validate())
	cfg.Advisor.applyDefaults()

	assert.Equal(t, 1.5, cfg.Advisor.MaxFeePercent)
	assert.Equal(t, 70.0, cfg.Advisor.CorePercent)
	assert.Equal(t, 4, cfg.Advisor.SatelliteCount)
	assert.NotEmpty(t, cfg.Advisor.RiskProfiles)
}

func TestValidateRequiresLLM(t *testing.T) {
	var cfg Config
	assert.Error(t, cfg.Validate())
}

func TestCoreFor(t *testing.T) {
	adv := DefaultAdvisorConfig()

	assert.Equal(t, 50.0, adv.CoreFor("conservative"))
	assert.Equal(t, 90.0, adv.CoreFor("aggressive"))
	assert.Equal(t, adv.CorePercent, adv.CoreFor(""))
	assert.Equal(t, adv.CorePercent, adv.CoreFor("yolo"))
}

func TestLoadSystemConfig(t *testing.T) {
	t.Run("missing file falls back to defaults", func(t *testing.T) {
		cfg := LoadSystemConfig(filepath.Join(t.TempDir(), "nope.json"))
		assert.Equal(t, DefaultSystemConfig(), cfg)
	})

	t.Run("partial file overrides defaults", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "system.json")
		require.NoError(t, os.WriteFile(path, []byte(`{"max_retries": 7, "log_level": "debug"}`), 0644))

		cfg := LoadSystemConfig(path)
		assert.Equal(t, 7, cfg.MaxRetries)
		assert.Equal(t, "debug", cfg.LogLevel)
		// Untouched fields keep defaults.
		assert.Equal(t, DefaultSystemConfig().LLMTimeoutMs, cfg.LLMTimeoutMs)
	})

	t.Run("corrupt file falls back to defaults", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "system.json")
		require.NoError(t, os.WriteFile(path, []byte(`{not json`), 0644))

		assert.Equal(t, DefaultSystemConfig(), LoadSystemConfig(path))
	})
}
