// Package providers implements the interchangeable vision model clients
// used for page recognition. Each provider receives one or more page images
// plus an instruction and returns free text or structured JSON; the
// recognition engine iterates a fixed fallback order over them.
package providers

import (
	"context"
	"encoding/json"
	"time"
)

// Client is the capability every recognition provider implements: a single
// vision-capable completion round trip.
type Client interface {
	// Name returns the provider identifier (e.g. "openrouter", "upstage").
	Name() string

	// Complete sends one completion request, optionally with images.
	Complete(ctx context.Context, req *Request) (*Result, error)
}

// ResponseFormat requests structured output against a JSON schema.
type ResponseFormat struct {
	Type       string          `json:"type"` // "json_schema"
	JSONSchema json.RawMessage `json:"json_schema,omitempty"`
}

// Request is one completion request. Images are raw bytes; each client
// encodes them the way its API expects.
type Request struct {
	System      string
	Prompt      string
	Images      [][]byte
	Model       string // provider default when empty
	Temperature float64
	MaxTokens   int

	ResponseFormat *ResponseFormat

	RequestID string
}

// Result is the outcome of one completion round trip.
type Result struct {
	Content    string          `json:"content"`
	ParsedJSON json.RawMessage `json:"parsed_json,omitempty"`

	PromptTokens     int `json:"prompt_tokens"`
	CompletionTokens int `json:"completion_tokens"`

	Provider      string        `json:"provider"`
	ModelUsed     string        `json:"model_used"`
	ExecutionTime time.Duration `json:"execution_time"`

	RequestID string `json:"request_id"`
}
