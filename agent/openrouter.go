package agent

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

// DefaultOpenRouterBaseURL is the OpenAI-compatible OpenRouter endpoint
const DefaultOpenRouterBaseURL = "https://openrouter.ai/api/v1"

// ErrMissingAPIKey is returned when a completion client is constructed
// without a credential
var ErrMissingAPIKey = errors.New("missing API key")

// OpenRouterClient calls OpenRouter's OpenAI-compatible chat completion
// API. One request per Complete call, no retry.
type OpenRouterClient struct {
	httpClient *http.Client
	baseURL    string
	apiKey     string
}

// NewOpenRouterClient creates a client. baseURL may be empty to use the
// default endpoint. Fails when apiKey is empty so the missing credential
// surfaces at construction time rather than on the first turn.
func NewOpenRouterClient(apiKey, baseURL string) (*OpenRouterClient, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("openrouter: %w", ErrMissingAPIKey)
	}
	if baseURL == "" {
		baseURL = DefaultOpenRouterBaseURL
	}
	baseURL = strings.TrimSuffix(baseURL, "/")

	return &OpenRouterClient{
		httpClient: &http.Client{Timeout: 60 * time.Second},
		baseURL:    baseURL,
		apiKey:     apiKey,
	}, nil
}

// Complete sends a single chat completion request and returns the
// assistant message text
func (c *OpenRouterClient) Complete(ctx context.Context, req CompletionRequest) (string, error) {
	reqBody := chatCompletionAPIRequest{
		Model:       req.Model,
		Messages:    make([]chatMessageAPI, len(req.Messages)),
		Temperature: req.Temperature,
		MaxTokens:   req.MaxTokens,
	}
	for i, msg := range req.Messages {
		reqBody.Messages[i] = chatMessageAPI{
			Role:    msg.Role,
			Content: msg.Content,
		}
	}

	bodyBytes, err := json.Marshal(reqBody)
	if err != nil {
		return "", fmt.Errorf("failed to marshal completion request: %w", err)
	}

	url := fmt.Sprintf("%s/chat/completions", c.baseURL)
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(bodyBytes))
	if err != nil {
		return "", fmt.Errorf("failed to create completion request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Authorization", "Bearer "+c.apiKey)
	httpReq.Header.Set("HTTP-Referer", "https://wa3i.app")
	httpReq.Header.Set("X-Title", "WA3i Voice Agent")

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return "", fmt.Errorf("completion request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return "", fmt.Errorf("completion request failed: status %d - %s", resp.StatusCode, string(body))
	}

	var apiResp chatCompletionAPIResponse
	if err := json.NewDecoder(resp.Body).Decode(&apiResp); err != nil {
		return "", fmt.Errorf("failed to parse completion response: %w", err)
	}
	if len(apiResp.Choices) == 0 {
		return "", fmt.Errorf("no choices in completion response")
	}

	return apiResp.Choices[0].Message.Content, nil
}

// API request/response structures for the OpenAI-compatible API

type chatMessageAPI struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatCompletionAPIRequest struct {
	Model       string           `json:"model"`
	Messages    []chatMessageAPI `json:"messages"`
	Temperature float64          `json:"temperature"`
	MaxTokens   int              `json:"max_tokens"`
}

type chatCompletionAPIResponse struct {
	ID      string `json:"id"`
	Model   string `json:"model"`
	Choices []struct {
		Index   int `json:"index"`
		Message struct {
			Role    string `json:"role"`
			Content string `json:"content"`
		} `json:"message"`
		FinishReason string `json:"finish_reason"`
	} `json:"choices"`
}
