package channels

import (
	jsoniter "github.com/json-iterator/go"

	"policypilot/pkg/config"
	"policypilot/pkg/gateway"
	"policypilot/pkg/llm"
)

// ChannelFactory defines the abstract interface for platform-specific
// channel creators. New platforms (e.g. Discord, Line) plug in here
// without touching the core gateway logic.
type ChannelFactory interface {
	// Create instantiates a concrete Channel implementation using the
	// provided configuration and shared system resources.
	Create(rawConfig jsoniter.RawMessage, sessions *llm.SessionManager, system *config.SystemConfig) (gateway.Channel, error)
}

// channelRegistry maps platform names (e.g. "telegram") to their factories.
var channelRegistry = make(map[string]ChannelFactory)

// RegisterChannel adds a ChannelFactory to the global registry, typically
// from a package init().
func RegisterChannel(name string, factory ChannelFactory) {
	channelRegistry[name] = factory
}

// GetChannelFactory retrieves a registered ChannelFactory by platform name.
func GetChannelFactory(name string) (ChannelFactory, bool) {
	f, ok := channelRegistry[name]
	return f, ok
}
