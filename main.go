package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"policypilot/pkg/channels"
	"policypilot/pkg/config"
	"policypilot/pkg/gateway"
	"policypilot/pkg/handler"
	"policypilot/pkg/llm"
	"policypilot/pkg/monitor"
	"policypilot/pkg/prompt"
	"policypilot/pkg/tools"
	"policypilot/pkg/tools/funds"

	// Side-effect imports populate the provider and channel registries.
	_ "policypilot/pkg/channels/autoload"
	_ "policypilot/pkg/llm/autoload"
)

func main() {
	monitor.PrintBanner()

	cfg, sysCfg, err := config.Load()
	if err != nil {
		slog.Error("❌ Failed to load configuration", "error", err)
		os.Exit(1)
	}

	monitor.SetupSlog(sysCfg.LogLevel)

	client, err := llm.NewFromConfig(cfg.LLM, sysCfg)
	if err != nil {
		slog.Error("❌ Failed to initialize LLM client", "error", err)
		os.Exit(1)
	}
	slog.Info("✅ LLM client ready", "provider", client.Provider())

	sessions := llm.NewSessionManager(sysCfg.SessionDir)

	portfolioTool := funds.NewBuildPortfolioTool(cfg.Advisor)
	registry := tools.NewToolRegistry()
	registry.Register(funds.NewExtractISINsTool())
	registry.Register(portfolioTool)

	chatHandler := handler.NewChatHandler(client, sessions, sysCfg, registry, systemPrompt(cfg))

	gw, err := gateway.NewGatewayBuilder().
		WithSystemConfig(sysCfg).
		WithMonitor(monitor.NewCLIMonitor()).
		WithChannelLoader(func(g *gateway.GatewayManager) {
			channels.LoadFromConfig(g, cfg.Channels, sessions, sysCfg)
		}).
		WithHandler(chatHandler).
		Build()
	if err != nil {
		slog.Error("❌ Failed to start gateway", "error", err)
		os.Exit(1)
	}

	// Hot reload: edits to config.json re-seed the advisor policy and the
	// system instruction without dropping live sessions.
	watchCtx, cancelWatch := context.WithCancel(context.Background())
	defer cancelWatch()
	reloadCh := config.WatchConfig(watchCtx, "config.json")
	go func() {
		for range reloadCh {
			newCfg, _, err := config.Load()
			if err != nil {
				slog.Error("❌ Reload failed, keeping previous policy", "error", err)
				continue
			}
			portfolioTool.SetPolicy(newCfg.Advisor)
			chatHandler.UpdateSystemPrompt(systemPrompt(newCfg))
			slog.Info("🔄 Advisor policy reloaded",
				"max_fee", newCfg.Advisor.MaxFeePercent,
				"core_percent", newCfg.Advisor.CorePercent)
		}
	}()

	slog.Info("🚀 PolicyPilot is running. Press Ctrl+C to exit.")

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	<-sigChan

	slog.Info("🛑 Shutting down...")
	gw.StopAll()
	slog.Info("Bye!")
}

// systemPrompt resolves the active system instruction: an explicit override
// from config.json wins, otherwise the built-in instruction is rendered with
// the current policy thresholds.
func systemPrompt(cfg *config.Config) string {
	if cfg.SystemPrompt != "" {
		return cfg.SystemPrompt
	}
	return prompt.Build(cfg.Advisor.Config)
}
