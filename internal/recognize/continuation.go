package recognize

import (
	"context"
	_ "embed"
	"encoding/json"
	"fmt"

	"github.com/dwyoon/churchscan/internal/providers"
)

//go:embed prompts/continuation.tmpl
var continuationPrompt string

// ContinuationCheck is the verdict on whether a page's opening continues
// the previous page's final article.
type ContinuationCheck struct {
	Continues bool   `json:"continues"`
	Reason    string `json:"reason"`
}

// CheckContinuation presents the previous and current page images together
// and asks whether the current page opens mid-article. Any provider failure
// is returned to the caller, who falls back to text-level heuristics.
func (e *Engine) CheckContinuation(ctx context.Context, prevImage, currImage []byte) (*ContinuationCheck, error) {
	clients := e.registry.Ordered()
	if len(clients) == 0 {
		return nil, fmt.Errorf("no recognition providers configured")
	}

	req := &providers.Request{
		System:      continuationPrompt,
		Prompt:      "두 페이지를 비교해 판정하세요.",
		Images:      [][]byte{prevImage, currImage},
		Temperature: e.opts.Temperature,
		MaxTokens:   512,
		ResponseFormat: &providers.ResponseFormat{
			Type: "json_schema",
			JSONSchema: json.RawMessage(`{
				"name": "continuation_check",
				"schema": {
					"type": "object",
					"properties": {
						"continues": {"type": "boolean"},
						"reason": {"type": "string"}
					},
					"required": ["continues"]
				}
			}`),
		},
	}

	result, err := clients[0].Complete(ctx, req)
	if err != nil {
		return nil, err
	}

	raw := result.ParsedJSON
	if raw == nil {
		parsed, perr := providers.ParseStructuredJSON(result.Content)
		if perr != nil {
			return nil, fmt.Errorf("continuation verdict not parseable: %w", perr)
		}
		raw = parsed
	}

	var check ContinuationCheck
	if err := json.Unmarshal(raw, &check); err != nil {
		return nil, fmt.Errorf("failed to parse continuation verdict: %w", err)
	}
	return &check, nil
}
