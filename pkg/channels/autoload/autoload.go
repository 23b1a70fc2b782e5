// Package autoload registers every built-in channel factory.
// Importing it for side effects wires the channel registry:
//
//	import _ "policypilot/pkg/channels/autoload"
package autoload

import (
	_ "policypilot/pkg/channels/telegram"
	_ "policypilot/pkg/channels/web"
)
