package recognize

import (
	"encoding/json"
	"fmt"
	"strings"
)

// Document is the structured form a provider can return for one page:
// already segmented into sections, with advertisements and unreadable spots
// called out separately.
type Document struct {
	Name           string    `json:"name"`
	Sections       []Section `json:"sections"`
	Advertisements []string  `json:"advertisements,omitempty"`
	Uncertainties  []string  `json:"uncertainties,omitempty"`
}

// Section is one contiguous unit within a structured page.
type Section struct {
	Type     string `json:"type"`
	Title    string `json:"title"`
	Author   string `json:"author,omitempty"`
	Position string `json:"position,omitempty"`
	Content  string `json:"content"`
}

// documentSchema is the response_format schema sent to providers that
// support JSON schema output.
var documentSchema = json.RawMessage(`{
	"name": "page_document",
	"strict": true,
	"schema": {
		"type": "object",
		"properties": {
			"name": {"type": "string"},
			"sections": {
				"type": "array",
				"items": {
					"type": "object",
					"properties": {
						"type": {"type": "string"},
						"title": {"type": "string"},
						"author": {"type": "string"},
						"position": {"type": "string"},
						"content": {"type": "string"}
					},
					"required": ["type", "title", "content"]
				}
			},
			"advertisements": {"type": "array", "items": {"type": "string"}},
			"uncertainties": {"type": "array", "items": {"type": "string"}}
		},
		"required": ["name", "sections"]
	}
}`)

// ParseDocument decodes a structured page document. A document with no
// usable section content is rejected so the caller falls back to free text.
func ParseDocument(raw json.RawMessage) (*Document, error) {
	var doc Document
	if err := json.Unmarshal(raw, &doc); err != nil {
		return nil, fmt.Errorf("failed to parse document: %w", err)
	}
	hasContent := false
	for _, s := range doc.Sections {
		if strings.TrimSpace(s.Content) != "" {
			hasContent = true
			break
		}
	}
	if !hasContent {
		return nil, fmt.Errorf("document has no section content")
	}
	return &doc, nil
}

// PlainText flattens the document back to page order: each section's title
// line followed by its body, advertisements last.
func (d *Document) PlainText() string {
	var sb strings.Builder
	for i, s := range d.Sections {
		if i > 0 {
			sb.WriteString("\n\n")
		}
		if s.Title != "" {
			sb.WriteString(s.Title)
			sb.WriteString("\n")
		}
		sb.WriteString(s.Content)
	}
	for _, ad := range d.Advertisements {
		sb.WriteString("\n\n")
		sb.WriteString(ad)
	}
	return sb.String()
}
