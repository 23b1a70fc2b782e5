package web

import (
	"fmt"

	jsoniter "github.com/json-iterator/go"

	"policypilot/pkg/channels"
	"policypilot/pkg/config"
	"policypilot/pkg/gateway"
	"policypilot/pkg/llm"
)

// WebFactory handles creation of Web channels
type WebFactory struct{}

// Create implements ChannelFactory
func (f *WebFactory) Create(rawConfig jsoniter.RawMessage, sessions *llm.SessionManager, system *config.SystemConfig) (gateway.Channel, error) {
	pCfg := WebConfig{Port: 8080}

	if err := json.Unmarshal(rawConfig, &pCfg); err != nil {
		return nil, fmt.Errorf("failed to parse web config: %w", err)
	}

	return NewWebChannel(pCfg, sessions), nil
}

func init() {
	channels.RegisterChannel("web", &WebFactory{})
}
