package gateway

import (
	"policypilot/pkg/api"
)

// Aliases so channel implementations and the manager share one vocabulary
// without importing api everywhere.
type Channel = api.Channel
type SignalingChannel = api.SignalingChannel
type MessageResponder = api.MessageResponder
type ChannelContext = api.ChannelContext
type UnifiedMessage = api.UnifiedMessage
type SessionContext = api.SessionContext
type MessageHandler = api.MessageHandler
