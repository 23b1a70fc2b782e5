package config

import (
	"fmt"
	"os"

	jsoniter "github.com/json-iterator/go"

	"policypilot/pkg/quant"
)

// Config defines the global application configuration structure.
// It maps directly to config.json and holds business-level settings:
// channel credentials, LLM provider choices, the system instruction and
// the advisor policy thresholds.
type Config struct {
	// Channels maps channel identifiers (e.g. "telegram", "web") to their
	// specific configuration payloads in raw JSON form.
	Channels map[string]jsoniter.RawMessage `json:"channels"`
	// LLM holds the provider group configuration in raw JSON.
	LLM jsoniter.RawMessage `json:"llm"`
	// SystemPrompt overrides the built-in PolicyPilot instruction when set.
	SystemPrompt string `json:"system_prompt,omitempty"`
	// Advisor carries the portfolio policy (fee ceiling, split, profiles).
	Advisor AdvisorConfig `json:"advisor"`
}

// AdvisorConfig is the portfolio construction policy: the quant pipeline
// knobs plus named risk profiles that override the core weight.
type AdvisorConfig struct {
	quant.Config
	// RiskProfiles maps a profile name (lowercase) to its core percent,
	// e.g. {"conservative": 50, "aggressive": 90}.
	RiskProfiles map[string]float64 `json:"risk_profiles,omitempty"`
}

// DefaultAdvisorConfig returns the house policy: 2.5% TER ceiling, 70/30
// core-satellite split, and the four standard risk profiles.
func DefaultAdvisorConfig() AdvisorConfig {
	return AdvisorConfig{
		Config: quant.DefaultConfig(),
		RiskProfiles: map[string]float64{
			"conservative": 50,
			"balanced":     70,
			"growth":       80,
			"aggressive":   90,
		},
	}
}

// applyDefaults fills unset advisor fields so a partial advisor section in
// config.json cannot zero out the policy (a 0% fee ceiling would reject
// every fund on the planet).
func (a *AdvisorConfig) applyDefaults() {
	def := DefaultAdvisorConfig()
	if a.MaxFeePercent == 0 {
		a.MaxFeePercent = def.MaxFeePercent
	}
	if a.CorePercent == 0 {
		a.CorePercent = def.CorePercent
	}
	if a.SatelliteCount == 0 {
		a.SatelliteCount = def.SatelliteCount
	}
	if a.RiskProfiles == nil {
		a.RiskProfiles = def.RiskProfiles
	}
}

// CoreFor resolves the core weight for a named risk profile, falling back
// to the configured default split for unknown or empty profiles.
func (a AdvisorConfig) CoreFor(profile string) float64 {
	if pct, ok := a.RiskProfiles[profile]; ok && pct > 0 && pct <= 100 {
		return pct
	}
	return a.CorePercent
}

// Validate ensures the configuration contains all mandatory fields.
// It acts as a primary guard before the system proceeds to initialization.
func (c *Config) Validate() error {
	if len(c.LLM) == 0 {
		return fmt.Errorf("mandatory 'llm' configuration is missing or empty")
	}
	return nil
}

// SystemConfig defines engine-level technical parameters, stored in
// system.json. These control reliability and runtime behavior rather than
// advisory policy.
type SystemConfig struct {
	// MaxRetries is the number of recovery attempts after a transient LLM
	// or network error before giving up.
	MaxRetries int `json:"max_retries"`
	// MaxContinuations caps automatic continuation requests when a response
	// is truncated by the length limit.
	MaxContinuations int `json:"max_continuations"`
	// RetryDelayMs is the wait between consecutive retry attempts.
	RetryDelayMs int `json:"retry_delay_ms"`
	// LLMTimeoutMs is the hard cutoff for one LLM request; the context is
	// cancelled when exceeded.
	LLMTimeoutMs int `json:"llm_timeout_ms"`
	// OllamaDefaultURL is the fallback endpoint for a local Ollama instance.
	OllamaDefaultURL string `json:"ollama_default_url"`
	// InternalChannelBuffer sizes the Go channels buffering stream chunks.
	InternalChannelBuffer int `json:"internal_channel_buffer"`
	// ThinkingInitDelayMs is the wait before showing the "thinking" status.
	ThinkingInitDelayMs int `json:"thinking_init_delay_ms"`
	// ThinkingTokenDelayMs detects a streaming pause worth a thinking signal.
	ThinkingTokenDelayMs int `json:"thinking_token_delay_ms"`
	// TelegramMessageLimit is the character cap per Telegram bubble; longer
	// blueprints are split across messages.
	TelegramMessageLimit int `json:"telegram_message_limit"`
	// SessionDir is where conversation transcripts are persisted.
	SessionDir string `json:"session_dir"`
	// ShowThinking streams the model's reasoning blocks to the user.
	ShowThinking bool `json:"show_thinking"`
	// DebugChunks saves every raw LLM response chunk under debug/ for
	// troubleshooting.
	DebugChunks bool `json:"debug_chunks"`
	// LogLevel sets the minimum log severity: debug, info, warn, error.
	LogLevel string `json:"log_level"`
	// EnableTools toggles tool calling globally. With tools off the model
	// can still chat but cannot run the deterministic portfolio pipeline.
	EnableTools bool `json:"enable_tools"`
}

// DefaultSystemConfig returns hardcoded safe defaults, used whenever
// system.json is missing or corrupt so the engine can always start.
func DefaultSystemConfig() *SystemConfig {
	return &SystemConfig{
		MaxRetries:            3,
		MaxContinuations:      5,
		RetryDelayMs:          500,
		LLMTimeoutMs:          600000,
		OllamaDefaultURL:      "http://localhost:11434",
		InternalChannelBuffer: 100,
		ThinkingInitDelayMs:   500,
		ThinkingTokenDelayMs:  200,
		TelegramMessageLimit:  4000,
		SessionDir:            "data/sessions",
		ShowThinking:          true,
		LogLevel:              "info",
		EnableTools:           true,
	}
}

// Load reads config.json (mandatory) and system.json (optional, defaults
// applied) from the current working directory.
func Load() (*Config, *SystemConfig, error) {
	appPath := "config.json"
	appFile, err := os.ReadFile(appPath)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to read config file '%s': %w", appPath, err)
	}

	var cfg Config
	if err := jsoniter.ConfigCompatibleWithStandardLibrary.Unmarshal(appFile, &cfg); err != nil {
		return nil, nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, nil, err
	}

	cfg.Advisor.applyDefaults()

	sysCfg := LoadSystemConfig("system.json")
	return &cfg, sysCfg, nil
}

// LoadSystemConfig attempts to load system settings, returning defaults if
// the file is absent or unparsable.
func LoadSystemConfig(path string) *SystemConfig {
	cfg := DefaultSystemConfig()

	file, err := os.ReadFile(path)
	if err != nil {
		return cfg
	}

	if err := jsoniter.ConfigCompatibleWithStandardLibrary.Unmarshal(file, cfg); err != nil {
		return cfg
	}

	return cfg
}
