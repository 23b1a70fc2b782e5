package channels

import (
	"log/slog"

	jsoniter "github.com/json-iterator/go"

	"policypilot/pkg/config"
	"policypilot/pkg/gateway"
	"policypilot/pkg/llm"
)

// LoadFromConfig is the central orchestration point for dynamic channel
// initialization: it walks the configured channel map, resolves factories
// and registers the resulting channels with the GatewayManager.
func LoadFromConfig(gw *gateway.GatewayManager, configs map[string]jsoniter.RawMessage, sessions *llm.SessionManager, system *config.SystemConfig) {
	for name, rawConfig := range configs {
		factory, ok := GetChannelFactory(name)
		if !ok {
			slog.Warn("⚠️ Unknown channel type", "name", name)
			continue
		}

		channel, err := factory.Create(rawConfig, sessions, system)
		if err != nil {
			slog.Error("❌ Failed to create channel", "name", name, "error", err)
			continue
		}

		// A nil channel without error means the factory opted out
		if channel == nil {
			continue
		}

		gw.Register(channel)
		slog.Info("✅ Channel registered", "name", name)
	}
}
