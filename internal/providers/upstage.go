package providers

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/google/uuid"
)

const (
	UpstageName    = "upstage"
	UpstageBaseURL = "https://api.upstage.ai/v1"

	// Solar handles mixed Korean/English scans noticeably better than
	// western-trained models on the same page images.
	upstageDefaultModel = "solar-pro2"
)

// UpstageConfig holds configuration for the Upstage client.
type UpstageConfig struct {
	APIKey       string
	BaseURL      string
	DefaultModel string
	Timeout      time.Duration
	RateLimit    int // requests per minute
}

// UpstageClient implements Client over Upstage's OpenAI-compatible chat API.
type UpstageClient struct {
	apiKey       string
	baseURL      string
	defaultModel string
	client       *http.Client
	limiter      *RateLimiter
}

// NewUpstageClient creates a new Upstage client.
func NewUpstageClient(cfg UpstageConfig) *UpstageClient {
	if cfg.BaseURL == "" {
		cfg.BaseURL = UpstageBaseURL
	}
	if cfg.DefaultModel == "" {
		cfg.DefaultModel = upstageDefaultModel
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = 120 * time.Second
	}

	return &UpstageClient{
		apiKey:       cfg.APIKey,
		baseURL:      cfg.BaseURL,
		defaultModel: cfg.DefaultModel,
		client:       &http.Client{Timeout: cfg.Timeout},
		limiter:      NewRateLimiter(cfg.RateLimit),
	}
}

// Name returns the provider identifier.
func (c *UpstageClient) Name() string {
	return UpstageName
}

// Complete sends one completion request. The wire format is
// OpenAI-compatible, so the request/response types mirror the chat API.
func (c *UpstageClient) Complete(ctx context.Context, req *Request) (*Result, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, err
	}

	start := time.Now()
	requestID := req.RequestID
	if requestID == "" {
		requestID = uuid.New().String()
	}

	model := req.Model
	if model == "" {
		model = c.defaultModel
	}

	upReq := upstageRequest{
		Model:       model,
		Temperature: req.Temperature,
		MaxTokens:   req.MaxTokens,
	}
	if req.System != "" {
		upReq.Messages = append(upReq.Messages, upstageMessage{Role: "system", Content: req.System})
	}

	if len(req.Images) == 0 {
		upReq.Messages = append(upReq.Messages, upstageMessage{Role: "user", Content: req.Prompt})
	} else {
		content := []upstageContent{{Type: "text", Text: req.Prompt}}
		for _, img := range req.Images {
			content = append(content, upstageContent{
				Type: "image_url",
				ImageURL: &upstageImageURL{
					URL: "data:image/jpeg;base64," + base64.StdEncoding.EncodeToString(img),
				},
			})
		}
		upReq.Messages = append(upReq.Messages, upstageMessage{Role: "user", Content: content})
	}

	if req.ResponseFormat != nil {
		upReq.ResponseFormat = &upstageResponseFormat{
			Type:       req.ResponseFormat.Type,
			JSONSchema: req.ResponseFormat.JSONSchema,
		}
	}

	bodyBytes, err := json.Marshal(upReq)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/chat/completions", bytes.NewReader(bodyBytes))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Authorization", "Bearer "+c.apiKey)

	resp, err := c.client.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		if resp.StatusCode == http.StatusTooManyRequests {
			c.limiter.Record429()
		}
		msg := string(respBody)
		var errResp upstageErrorResponse
		if json.Unmarshal(respBody, &errResp) == nil && errResp.Error.Message != "" {
			msg = errResp.Error.Message
		}
		return nil, &APIError{Provider: UpstageName, StatusCode: resp.StatusCode, Message: msg}
	}

	var upResp upstageResponse
	if err := json.Unmarshal(respBody, &upResp); err != nil {
		return nil, fmt.Errorf("failed to unmarshal response: %w", err)
	}
	if len(upResp.Choices) == 0 {
		return nil, fmt.Errorf("upstage: empty choices in response")
	}

	result := &Result{
		Content:          upResp.Choices[0].Message.Content,
		PromptTokens:     upResp.Usage.PromptTokens,
		CompletionTokens: upResp.Usage.CompletionTokens,
		Provider:         UpstageName,
		ModelUsed:        upResp.Model,
		ExecutionTime:    time.Since(start),
		RequestID:        requestID,
	}
	if req.ResponseFormat != nil {
		if parsed, perr := ParseStructuredJSON(result.Content); perr == nil {
			result.ParsedJSON = parsed
		}
	}
	return result, nil
}

// Upstage API types (OpenAI-compatible)

type upstageRequest struct {
	Model          string                 `json:"model"`
	Messages       []upstageMessage       `json:"messages"`
	Temperature    float64                `json:"temperature,omitempty"`
	MaxTokens      int                    `json:"max_tokens,omitempty"`
	ResponseFormat *upstageResponseFormat `json:"response_format,omitempty"`
}

type upstageMessage struct {
	Role    string `json:"role"`
	Content any    `json:"content"`
}

type upstageContent struct {
	Type     string           `json:"type"`
	Text     string           `json:"text,omitempty"`
	ImageURL *upstageImageURL `json:"image_url,omitempty"`
}

type upstageImageURL struct {
	URL string `json:"url"`
}

type upstageResponseFormat struct {
	Type       string          `json:"type"`
	JSONSchema json.RawMessage `json:"json_schema,omitempty"`
}

type upstageResponse struct {
	Model   string `json:"model"`
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
	} `json:"choices"`
	Usage struct {
		PromptTokens     int `json:"prompt_tokens"`
		CompletionTokens int `json:"completion_tokens"`
	} `json:"usage"`
}

type upstageErrorResponse struct {
	Error struct {
		Message string `json:"message"`
	} `json:"error"`
}

// Verify interface
var _ Client = (*UpstageClient)(nil)
