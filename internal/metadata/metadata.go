// Package metadata derives retrieval metadata (title, type, speaker, event,
// scripture references, keywords) from one segment body via a single
// structured-output call. Extraction is enrichment only: any failure yields
// a safe default instead of an error, so chunking and embedding proceed.
package metadata

import (
	"context"
	_ "embed"
	"encoding/json"
	"log/slog"
	"strings"

	"github.com/santhosh-tekuri/jsonschema/v5"

	"github.com/dwyoon/churchscan/internal/providers"
)

//go:embed prompts/extract.tmpl
var extractPrompt string

// PlaceholderTitle marks segments whose metadata extraction failed.
const PlaceholderTitle = "제목 미상"

// Metadata is the extracted description of one segment.
type Metadata struct {
	Title         string   `json:"title"`
	Type          string   `json:"type"`
	Speaker       string   `json:"speaker"`
	EventName     string   `json:"event_name"`
	EventDate     string   `json:"event_date"`
	ScriptureRefs []string `json:"scripture_refs"`
	Keywords      []string `json:"keywords"`
}

// Default returns the metadata used when extraction fails.
func Default() *Metadata {
	return &Metadata{
		Title:         PlaceholderTitle,
		ScriptureRefs: []string{},
		Keywords:      []string{},
	}
}

const metadataSchemaJSON = `{
	"type": "object",
	"properties": {
		"title": {"type": "string"},
		"type": {"type": "string"},
		"speaker": {"type": "string"},
		"event_name": {"type": "string"},
		"event_date": {"type": "string"},
		"scripture_refs": {"type": "array", "items": {"type": "string"}},
		"keywords": {"type": "array", "items": {"type": "string"}}
	},
	"required": ["title", "type"]
}`

var metadataSchema = jsonschema.MustCompileString("metadata.json", metadataSchemaJSON)

// responseFormat is the wrapped schema sent to the provider.
var responseFormat = &providers.ResponseFormat{
	Type: "json_schema",
	JSONSchema: json.RawMessage(`{
		"name": "segment_metadata",
		"strict": true,
		"schema": ` + metadataSchemaJSON + `
	}`),
}

// Extractor runs metadata extraction calls against one provider client.
type Extractor struct {
	client providers.Client
	logger *slog.Logger
}

// NewExtractor creates an extractor using the given client.
func NewExtractor(client providers.Client, logger *slog.Logger) *Extractor {
	if logger == nil {
		logger = slog.Default()
	}
	return &Extractor{client: client, logger: logger}
}

// Extract derives metadata for one segment body. It never returns an
// error: on any failure (call, parse, schema) the safe default comes back.
func (e *Extractor) Extract(ctx context.Context, body string) *Metadata {
	if strings.TrimSpace(body) == "" {
		return Default()
	}

	result, err := e.client.Complete(ctx, &providers.Request{
		System:         extractPrompt,
		Prompt:         body,
		Temperature:    0.0,
		MaxTokens:      1024,
		ResponseFormat: responseFormat,
	})
	if err != nil {
		e.logger.Warn("metadata extraction call failed", "error", err)
		return Default()
	}

	raw := result.ParsedJSON
	if raw == nil {
		parsed, perr := providers.ParseStructuredJSON(result.Content)
		if perr != nil {
			e.logger.Warn("metadata output not parseable", "error", perr)
			return Default()
		}
		raw = parsed
	}

	md, err := parseMetadata(raw)
	if err != nil {
		e.logger.Warn("metadata output rejected", "error", err)
		return Default()
	}
	return md
}

// parseMetadata validates against the schema, then decodes.
func parseMetadata(raw json.RawMessage) (*Metadata, error) {
	var doc any
	if err := json.Unmarshal(raw, &doc); err != nil {
		return nil, err
	}
	if err := metadataSchema.Validate(doc); err != nil {
		return nil, err
	}

	var md Metadata
	if err := json.Unmarshal(raw, &md); err != nil {
		return nil, err
	}
	if strings.TrimSpace(md.Title) == "" {
		md.Title = PlaceholderTitle
	}
	if md.ScriptureRefs == nil {
		md.ScriptureRefs = []string{}
	}
	if md.Keywords == nil {
		md.Keywords = []string{}
	}
	return &md, nil
}
