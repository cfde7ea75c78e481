package oracle

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/rs/zerolog/log"
)

// OpenAIClient talks to an OpenAI-compatible chat-completions endpoint with
// function calling enabled.
type OpenAIClient struct {
	endpoint    string
	apiKey      string
	model       string
	temperature float64
	client      *http.Client
}

// OpenAIOption customizes an OpenAIClient.
type OpenAIOption func(*OpenAIClient)

// WithEndpoint overrides the API base URL (default https://api.openai.com/v1).
func WithEndpoint(endpoint string) OpenAIOption {
	return func(c *OpenAIClient) { c.endpoint = endpoint }
}

// WithModel overrides the model name (default gpt-4o-mini).
func WithModel(model string) OpenAIOption {
	return func(c *OpenAIClient) { c.model = model }
}

// WithHTTPClient overrides the underlying HTTP client.
func WithHTTPClient(hc *http.Client) OpenAIOption {
	return func(c *OpenAIClient) { c.client = hc }
}

// NewOpenAIClient creates a client authenticating with apiKey.
func NewOpenAIClient(apiKey string, opts ...OpenAIOption) *OpenAIClient {
	c := &OpenAIClient{
		endpoint:    "https://api.openai.com/v1",
		apiKey:      apiKey,
		model:       "gpt-4o-mini",
		temperature: 0.3,
		client: &http.Client{
			Timeout: 120 * time.Second,
		},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

type chatRequest struct {
	Model       string    `json:"model"`
	Messages    []Message `json:"messages"`
	Tools       []ToolDef `json:"tools,omitempty"`
	ToolChoice  string    `json:"tool_choice,omitempty"`
	Temperature float64   `json:"temperature"`
}

type chatResponse struct {
	ID      string `json:"id"`
	Choices []struct {
		Message struct {
			Content   string     `json:"content"`
			ToolCalls []ToolCall `json:"tool_calls"`
		} `json:"message"`
		FinishReason string `json:"finish_reason"`
	} `json:"choices"`
}

// Complete sends one chat-completion round-trip. Transient failures
// (network errors, 429, 5xx) are retried with capped exponential backoff;
// other HTTP errors fail immediately.
func (c *OpenAIClient) Complete(ctx context.Context, messages []Message, tools []ToolDef) (*Completion, error) {
	req := chatRequest{
		Model:       c.model,
		Messages:    messages,
		Tools:       tools,
		Temperature: c.temperature,
	}
	if len(tools) > 0 {
		req.ToolChoice = "auto"
	}

	body, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("oracle: marshal request: %w", err)
	}

	var completion *Completion
	operation := func() error {
		var opErr error
		completion, opErr = c.send(ctx, body)
		return opErr
	}

	bo := backoff.WithContext(backoff.WithMaxRetries(backoff.NewExponentialBackOff(), 2), ctx)
	if err := backoff.Retry(operation, bo); err != nil {
		return nil, err
	}
	return completion, nil
}

func (c *OpenAIClient) send(ctx context.Context, body []byte) (*Completion, error) {
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint+"/chat/completions", bytes.NewReader(body))
	if err != nil {
		return nil, backoff.Permanent(fmt.Errorf("oracle: create request: %w", err))
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Authorization", "Bearer "+c.apiKey)

	httpResp, err := c.client.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("oracle: request failed: %w", err)
	}
	defer httpResp.Body.Close()

	if httpResp.StatusCode != http.StatusOK {
		respBody, _ := io.ReadAll(httpResp.Body)
		err := fmt.Errorf("oracle: status %d: %s", httpResp.StatusCode, string(respBody))
		if httpResp.StatusCode == http.StatusTooManyRequests || httpResp.StatusCode >= 500 {
			log.Warn().Int("status", httpResp.StatusCode).Msg("Oracle call failed, retrying")
			return nil, err
		}
		return nil, backoff.Permanent(err)
	}

	var parsed chatResponse
	if err := json.NewDecoder(httpResp.Body).Decode(&parsed); err != nil {
		return nil, backoff.Permanent(fmt.Errorf("oracle: decode response: %w", err))
	}
	if len(parsed.Choices) == 0 {
		return nil, backoff.Permanent(fmt.Errorf("oracle: response has no choices"))
	}

	msg := parsed.Choices[0].Message
	return &Completion{
		Content:   msg.Content,
		ToolCalls: msg.ToolCalls,
	}, nil
}
