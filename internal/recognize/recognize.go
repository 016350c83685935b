// Package recognize turns page images into text by calling vision providers
// in a fixed fallback order. Providers that support structured output return
// an already-segmented Document; the rest return free text for a later
// segmentation pass.
package recognize

import (
	"context"
	_ "embed"
	"errors"
	"fmt"
	"log/slog"

	"github.com/dwyoon/churchscan/internal/providers"
)

//go:embed prompts/transcribe.tmpl
var transcribePrompt string

//go:embed prompts/structured.tmpl
var structuredPrompt string

//go:embed prompts/verify.tmpl
var verifyPrompt string

// ResultKind tags which form a page recognition produced.
type ResultKind string

const (
	KindText       ResultKind = "text"
	KindStructured ResultKind = "structured"
)

// PageResult is the outcome of recognizing one page image. Exactly one of
// Text or Document is meaningful, selected by Kind.
type PageResult struct {
	Kind     ResultKind
	Text     string
	Document *Document

	Provider string
	Model    string
	Verified bool
}

// Body returns the recognized text regardless of form.
func (r *PageResult) Body() string {
	if r.Kind == KindStructured && r.Document != nil {
		return r.Document.PlainText()
	}
	return r.Text
}

// Options tunes recognition calls.
type Options struct {
	Temperature float64
	MaxTokens   int
	// Structured asks providers for a segmented JSON document first,
	// falling back to the raw content as free text when parsing fails.
	Structured bool
}

// DefaultOptions returns the recognition defaults.
func DefaultOptions() Options {
	return Options{
		Temperature: 0.0,
		MaxTokens:   8192,
		Structured:  true,
	}
}

// Engine recognizes pages via a registry of fallback providers.
type Engine struct {
	registry *providers.Registry
	opts     Options
	logger   *slog.Logger
}

// NewEngine creates a recognition engine over the given registry.
func NewEngine(registry *providers.Registry, opts Options, logger *slog.Logger) *Engine {
	if logger == nil {
		logger = slog.Default()
	}
	return &Engine{registry: registry, opts: opts, logger: logger}
}

// RecognizePage recognizes one page image. Providers are tried in registry
// order, each at most once; the first success wins. If every provider
// fails, the returned error wraps the last failure.
func (e *Engine) RecognizePage(ctx context.Context, image []byte) (*PageResult, error) {
	clients := e.registry.Ordered()
	if len(clients) == 0 {
		return nil, errors.New("no recognition providers configured")
	}

	var lastErr error
	for _, client := range clients {
		result, err := e.recognizeWith(ctx, client, image)
		if err != nil {
			e.logger.Warn("provider failed, trying next",
				"provider", client.Name(),
				"error", err)
			lastErr = err
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			continue
		}
		return result, nil
	}
	return nil, fmt.Errorf("all %d providers failed: %w", len(clients), lastErr)
}

func (e *Engine) recognizeWith(ctx context.Context, client providers.Client, image []byte) (*PageResult, error) {
	req := &providers.Request{
		Prompt:      "이 페이지를 전사하세요.",
		Images:      [][]byte{image},
		Temperature: e.opts.Temperature,
		MaxTokens:   e.opts.MaxTokens,
	}
	if e.opts.Structured {
		req.System = structuredPrompt
		req.ResponseFormat = &providers.ResponseFormat{
			Type:       "json_schema",
			JSONSchema: documentSchema,
		}
	} else {
		req.System = transcribePrompt
	}

	result, err := client.Complete(ctx, req)
	if err != nil {
		return nil, err
	}
	if result.Content == "" {
		return nil, fmt.Errorf("%s returned empty content", client.Name())
	}

	page := &PageResult{
		Kind:     KindText,
		Text:     result.Content,
		Provider: result.Provider,
		Model:    result.ModelUsed,
	}
	if e.opts.Structured && result.ParsedJSON != nil {
		if doc, derr := ParseDocument(result.ParsedJSON); derr == nil {
			page.Kind = KindStructured
			page.Document = doc
			page.Text = ""
		} else {
			e.logger.Debug("structured parse failed, keeping free text",
				"provider", client.Name(),
				"error", derr)
		}
	}
	return page, nil
}

// Verify re-presents the image plus the first pass's transcript to a
// different provider and returns a corrected transcript. With fewer than
// two providers configured the first pass is returned unchanged.
func (e *Engine) Verify(ctx context.Context, image []byte, first *PageResult) (*PageResult, error) {
	clients := e.registry.Ordered()
	if len(clients) < 2 {
		return first, nil
	}

	var reviewer providers.Client
	for _, client := range clients {
		if client.Name() != first.Provider {
			reviewer = client
			break
		}
	}
	if reviewer == nil {
		return first, nil
	}

	req := &providers.Request{
		System:      fmt.Sprintf(verifyPrompt, first.Body()),
		Prompt:      "이미지와 대조하여 수정된 전사문을 출력하세요.",
		Images:      [][]byte{image},
		Temperature: e.opts.Temperature,
		MaxTokens:   e.opts.MaxTokens,
	}
	result, err := reviewer.Complete(ctx, req)
	if err != nil {
		// Verification is best-effort; the first pass stands.
		e.logger.Warn("verification pass failed",
			"provider", reviewer.Name(),
			"error", err)
		return first, nil
	}
	if result.Content == "" {
		return first, nil
	}

	return &PageResult{
		Kind:     KindText,
		Text:     result.Content,
		Provider: result.Provider,
		Model:    result.ModelUsed,
		Verified: true,
	}, nil
}
