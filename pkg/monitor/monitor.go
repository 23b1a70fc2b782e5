package monitor

import "time"

// MonitorMessage is one observed exchange flowing through the gateway.
type MonitorMessage struct {
	Timestamp   time.Time
	MessageType string // "USER" or "ASSISTANT"
	ChannelID   string
	Username    string
	Content     string
}

// Monitor defines the behavior of a message monitoring sink.
type Monitor interface {
	Start() error
	Stop() error
	// OnMessage receives and displays a monitoring message.
	OnMessage(msg MonitorMessage)
}
