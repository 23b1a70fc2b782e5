package gateway

import (
	"fmt"

	"policypilot/pkg/api"
	"policypilot/pkg/config"
	"policypilot/pkg/monitor"
)

// GatewayBuilder assembles a GatewayManager from pre-built components:
// channels, the message handler and the monitor are constructed elsewhere
// and injected here, then started together.
type GatewayBuilder struct {
	gw             *GatewayManager
	monitor        monitor.Monitor
	systemConfig   *config.SystemConfig
	handlerBuilder func(api.MessageResponder) api.MessageProcessor
	channels       []api.Channel
	channelLoader  func(*GatewayManager)
}

// NewGatewayBuilder creates a fresh builder with an empty manager.
func NewGatewayBuilder() *GatewayBuilder {
	return &GatewayBuilder{
		gw: NewGatewayManager(),
	}
}

// WithMonitor injects a monitoring implementation. It is started
// automatically during Build().
func (b *GatewayBuilder) WithMonitor(m monitor.Monitor) *GatewayBuilder {
	b.monitor = m
	return b
}

// WithSystemConfig provides engine-level technical parameters.
func (b *GatewayBuilder) WithSystemConfig(cfg *config.SystemConfig) *GatewayBuilder {
	b.systemConfig = cfg
	return b
}

// WithChannel adds pre-built channel instances to the gateway.
func (b *GatewayBuilder) WithChannel(channels ...api.Channel) *GatewayBuilder {
	b.channels = append(b.channels, channels...)
	return b
}

// WithChannelLoader defers channel construction until Build(), when the
// manager exists. The loader typically resolves channel factories from
// configuration and registers the resulting channels.
func (b *GatewayBuilder) WithChannelLoader(load func(*GatewayManager)) *GatewayBuilder {
	b.channelLoader = load
	return b
}

// WithHandler injects the message handler. A ResponderAware handler gets
// the gateway injected as its responder during Build().
func (b *GatewayBuilder) WithHandler(h api.MessageProcessor) *GatewayBuilder {
	b.handlerBuilder = func(responder api.MessageResponder) api.MessageProcessor {
		if setter, ok := h.(api.ResponderAware); ok {
			setter.SetResponder(responder)
		}
		return h
	}
	return b
}

// Build finalizes the configuration, registers all channels and starts
// everything. Returns the operational GatewayManager or the first error.
func (b *GatewayBuilder) Build() (*GatewayManager, error) {
	if b.systemConfig != nil {
		b.gw.WithSystemConfig(b.systemConfig)
	}

	if b.monitor != nil {
		b.gw.SetMonitor(b.monitor)
		if err := b.monitor.Start(); err != nil {
			return nil, fmt.Errorf("failed to start monitor: %w", err)
		}
	}

	for _, c := range b.channels {
		b.gw.Register(c)
	}

	if b.channelLoader != nil {
		b.channelLoader(b.gw)
	}

	if b.handlerBuilder != nil {
		handler := b.handlerBuilder(b.gw)
		if handler != nil {
			b.gw.SetMessageHandler(handler.OnMessage)
		}
	}

	if err := b.gw.StartAll(); err != nil {
		return nil, fmt.Errorf("failed to start channels: %w", err)
	}

	return b.gw, nil
}
