// Package autoload registers every built-in LLM provider factory.
// Importing it for side effects wires the provider registry:
//
//	import _ "policypilot/pkg/llm/autoload"
package autoload

import (
	_ "policypilot/pkg/llm/gemini"
	_ "policypilot/pkg/llm/ollama"
	_ "policypilot/pkg/llm/openailm"
)
