package providers

import (
	"context"
	"encoding/json"
	"fmt"
	"sync/atomic"
	"time"
)

const MockClientName = "mock"

// MockClient is a Client for testing.
type MockClient struct {
	// Configurable behavior
	ClientName   string
	Latency      time.Duration
	ShouldFail   bool
	FailAfter    int // fail after N requests (0 = never)
	FailStatus   int // status code for failures (default 500)
	ResponseText string
	ResponseJSON json.RawMessage

	// State
	requestCount atomic.Int64
}

// NewMockClient creates a new mock client with sensible defaults.
func NewMockClient() *MockClient {
	return &MockClient{
		ClientName:   MockClientName,
		ResponseText: "mock response",
	}
}

// Name returns the client identifier.
func (c *MockClient) Name() string {
	if c.ClientName != "" {
		return c.ClientName
	}
	return MockClientName
}

// RequestCount returns how many requests this client has seen.
func (c *MockClient) RequestCount() int64 {
	return c.requestCount.Load()
}

// Complete returns the configured response or failure.
func (c *MockClient) Complete(ctx context.Context, req *Request) (*Result, error) {
	start := time.Now()
	count := c.requestCount.Add(1)

	if c.Latency > 0 {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(c.Latency):
		}
	}

	if c.ShouldFail || (c.FailAfter > 0 && count > int64(c.FailAfter)) {
		status := c.FailStatus
		if status == 0 {
			status = 500
		}
		return nil, &APIError{Provider: c.Name(), StatusCode: status, Message: "mock failure"}
	}

	requestID := req.RequestID
	if requestID == "" {
		requestID = fmt.Sprintf("mock-%d", count)
	}

	result := &Result{
		Content:          c.ResponseText,
		PromptTokens:     10,
		CompletionTokens: 20,
		Provider:         c.Name(),
		ModelUsed:        req.Model,
		ExecutionTime:    time.Since(start),
		RequestID:        requestID,
	}
	if c.ResponseJSON != nil {
		result.Content = string(c.ResponseJSON)
		result.ParsedJSON = c.ResponseJSON
	}
	return result, nil
}

// Verify interface
var _ Client = (*MockClient)(nil)
