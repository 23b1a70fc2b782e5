package gemini

import (
	"policypilot/pkg/config"
	"policypilot/pkg/llm"
)

// GeminiFactory handles creation of Gemini clients
type GeminiFactory struct{}

// Create implements ProviderFactory
func (f *GeminiFactory) Create(cfg llm.ProviderGroupConfig, sys *config.SystemConfig) ([]llm.LLMClient, error) {
	var clients []llm.LLMClient

	useThought := false
	if effort, ok := cfg.Options["thinking_effort"].(string); ok && effort != "" && effort != "off" {
		useThought = true
	}

	useSearch := false
	if v, ok := cfg.Options["google_search"].(bool); ok {
		useSearch = v
	}

	// Cartesian product: models x keys (models first, so fallback walks
	// all keys of the preferred model before degrading)
	for _, model := range cfg.Models {
		for _, key := range cfg.APIKeys {
			client, err := NewGeminiClient(key, model, useThought, useSearch)
			if err != nil {
				return nil, err
			}
			clients = append(clients, client)
		}
	}
	return clients, nil
}

func init() {
	llm.RegisterProvider("gemini", &GeminiFactory{})
}
