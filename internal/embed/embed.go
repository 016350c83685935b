// Package embed produces chunk embeddings. The corpus is bound to exactly
// one model and dimension for its lifetime: vectors from different models
// are not comparable, so a failure never substitutes another model.
package embed

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/openai/openai-go/v3"
	"github.com/openai/openai-go/v3/option"
)

const (
	// Model is the single embedding model the corpus is built with.
	Model = openai.EmbeddingModelTextEmbedding3Small

	// Dimension is the fixed vector dimension for every chunk.
	Dimension = 1536
)

// ErrQuotaExhausted signals that the embedding provider refused further
// calls for quota or rate-limit reasons. Callers must stop embedding for
// the remainder of the run; an immediate retry will fail the same way.
var ErrQuotaExhausted = errors.New("embedding quota exhausted")

// Embedder is the capability the pipeline consumes.
type Embedder interface {
	// EmbedBatch returns one vector per input text, in order.
	EmbedBatch(ctx context.Context, texts []string) ([][]float32, error)
}

// Config holds embedding client configuration.
type Config struct {
	APIKey     string
	BaseURL    string
	Timeout    time.Duration
	MaxRetries int
}

// OpenAIEmbedder implements Embedder over the OpenAI embeddings API.
type OpenAIEmbedder struct {
	client openai.Client
}

// NewOpenAIEmbedder creates an embedder from config.
func NewOpenAIEmbedder(cfg Config) *OpenAIEmbedder {
	if cfg.Timeout == 0 {
		cfg.Timeout = 30 * time.Second
	}
	if cfg.MaxRetries == 0 {
		cfg.MaxRetries = 2
	}

	opts := []option.RequestOption{
		option.WithAPIKey(cfg.APIKey),
		option.WithHTTPClient(&http.Client{Timeout: cfg.Timeout}),
		option.WithMaxRetries(cfg.MaxRetries),
	}
	if cfg.BaseURL != "" {
		opts = append(opts, option.WithBaseURL(cfg.BaseURL))
	}

	return &OpenAIEmbedder{client: openai.NewClient(opts...)}
}

// EmbedBatch embeds all texts in one call. Quota and rate-limit refusals
// are returned as ErrQuotaExhausted; everything else is an ordinary error
// scoped to this batch.
func (e *OpenAIEmbedder) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, nil
	}

	resp, err := e.client.Embeddings.New(ctx, openai.EmbeddingNewParams{
		Input: openai.EmbeddingNewParamsInputUnion{
			OfArrayOfStrings: texts,
		},
		Model:      Model,
		Dimensions: openai.Int(Dimension),
	})
	if err != nil {
		var apiErr *openai.Error
		if errors.As(err, &apiErr) && (apiErr.StatusCode == http.StatusTooManyRequests || apiErr.StatusCode == http.StatusPaymentRequired) {
			return nil, fmt.Errorf("%w: %v", ErrQuotaExhausted, err)
		}
		return nil, fmt.Errorf("embedding call failed: %w", err)
	}

	if len(resp.Data) != len(texts) {
		return nil, fmt.Errorf("embedding count mismatch: sent %d texts, got %d vectors", len(texts), len(resp.Data))
	}

	vectors := make([][]float32, len(resp.Data))
	for _, d := range resp.Data {
		if int(d.Index) >= len(vectors) {
			return nil, fmt.Errorf("embedding index %d out of range", d.Index)
		}
		vec := make([]float32, len(d.Embedding))
		for i, v := range d.Embedding {
			vec[i] = float32(v)
		}
		if len(vec) != Dimension {
			return nil, fmt.Errorf("embedding dimension mismatch: got %d, want %d", len(vec), Dimension)
		}
		vectors[d.Index] = vec
	}
	return vectors, nil
}

var _ Embedder = (*OpenAIEmbedder)(nil)
