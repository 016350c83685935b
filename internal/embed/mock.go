package embed

import (
	"context"
	"sync/atomic"
)

// MockEmbedder is an Embedder for testing. It returns deterministic
// vectors and can be told to fail with quota exhaustion after N calls.
type MockEmbedder struct {
	// QuotaAfter fails with ErrQuotaExhausted after N successful calls
	// (0 = never).
	QuotaAfter int
	// Err is returned on every call when set.
	Err error

	callCount atomic.Int64
}

// CallCount returns how many EmbedBatch calls this embedder has seen.
func (m *MockEmbedder) CallCount() int64 {
	return m.callCount.Load()
}

// EmbedBatch returns a fixed-dimension vector per input text.
func (m *MockEmbedder) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, nil
	}
	count := m.callCount.Add(1)
	if m.Err != nil {
		return nil, m.Err
	}
	if m.QuotaAfter > 0 && count > int64(m.QuotaAfter) {
		return nil, ErrQuotaExhausted
	}

	vectors := make([][]float32, len(texts))
	for i, text := range texts {
		vec := make([]float32, Dimension)
		// A cheap text fingerprint so tests can tell vectors apart.
		for j, r := range text {
			vec[j%Dimension] += float32(r)
		}
		vectors[i] = vec
	}
	return vectors, nil
}

var _ Embedder = (*MockEmbedder)(nil)
