// Package funds exposes the deterministic advisory pipeline to the model as
// tools. Every number in a recommendation comes from these tools, never from
// the model's own arithmetic.
package funds

import (
	"context"
	"fmt"
	"log/slog"

	jsoniter "github.com/json-iterator/go"

	"policypilot/pkg/api"
	"policypilot/pkg/isin"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// ExtractISINsTool pulls checksum-valid ISINs out of pasted free text.
type ExtractISINsTool struct{}

// NewExtractISINsTool creates the extraction tool.
func NewExtractISINsTool() *ExtractISINsTool {
	return &ExtractISINsTool{}
}

func (t *ExtractISINsTool) Name() string {
	return "extract_isins"
}

func (t *ExtractISINsTool) Description() string {
	return "Extracts checksum-valid ISIN security identifiers from free text. " +
		"Returns the valid ISINs in order of appearance plus any look-alike " +
		"codes that failed the ISO 6166 checksum. Always use this instead of " +
		"picking codes out of the text yourself."
}

func (t *ExtractISINsTool) Parameters() map[string]any {
	return map[string]any{
		"type": "object",
		"properties": map[string]any{
			"text": map[string]any{
				"type":        "string",
				"description": "The raw user text to scan, e.g. a pasted fund list.",
			},
		},
		"required": []string{"text"},
	}
}

// Execute implements api.Tool.
func (t *ExtractISINsTool) Execute(ctx context.Context, args map[string]any) (*api.ToolResult, error) {
	text, _ := args["text"].(string)
	if text == "" {
		return nil, fmt.Errorf("missing required argument 'text'")
	}

	valid, rejected := isin.Extract(text)
	slog.Info("🔍 ISIN extraction", "valid", len(valid), "rejected", len(rejected))

	payload, err := json.Marshal(map[string]any{
		"valid":    emptyIfNil(valid),
		"rejected": emptyIfNil(rejected),
	})
	if err != nil {
		return nil, err
	}

	result := api.NewTextResult(string(payload))
	result.Details = map[string]any{
		"valid_count":    len(valid),
		"rejected_count": len(rejected),
	}
	return result, nil
}

// emptyIfNil keeps the JSON arrays as [] instead of null so the model never
// sees a missing field.
func emptyIfNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}
