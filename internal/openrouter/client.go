package openrouter

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"

	"backend/internal/models"
)

// Client represents an OpenRouter API client used as a fallback debate
// generator when Gemini is unavailable.
type Client struct {
	apiKey     string
	baseURL    string
	modelName  string
	httpClient *http.Client
	logger     *zap.Logger
	maxRetries int
	retryDelay time.Duration

	debateInstruction    string
	discoveryInstruction string
}

// Config holds configuration for OpenRouter client.
type Config struct {
	APIKey     string
	ModelName  string // e.g., "meta-llama/llama-3.3-70b-instruct:free"
	MaxRetries int
	RetryDelay time.Duration

	DebateInstruction    string
	DiscoveryInstruction string
}

type chatRequest struct {
	Model       string        `json:"model"`
	Messages    []chatMessage `json:"messages"`
	Temperature float64       `json:"temperature,omitempty"`
	MaxTokens   int           `json:"max_tokens,omitempty"`
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatResponse struct {
	ID      string `json:"id"`
	Choices []struct {
		Message struct {
			Role    string `json:"role"`
			Content string `json:"content"`
		} `json:"message"`
		FinishReason string `json:"finish_reason"`
	} `json:"choices"`
	Error *struct {
		Message string `json:"message"`
		Type    string `json:"type"`
		Code    string `json:"code"`
	} `json:"error,omitempty"`
}

// NewClient creates a new OpenRouter client.
func NewClient(cfg Config, logger *zap.Logger) (*Client, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("openrouter API key is required")
	}

	if cfg.ModelName == "" {
		cfg.ModelName = "meta-llama/llama-3.3-70b-instruct:free"
	}

	if cfg.MaxRetries == 0 {
		cfg.MaxRetries = 2
	}

	if cfg.RetryDelay == 0 {
		cfg.RetryDelay = 2 * time.Second
	}

	client := &Client{
		apiKey:               cfg.APIKey,
		baseURL:              "https://openrouter.ai/api/v1",
		modelName:            cfg.ModelName,
		httpClient:           &http.Client{Timeout: 120 * time.Second},
		logger:               logger,
		maxRetries:           cfg.MaxRetries,
		retryDelay:           cfg.RetryDelay,
		debateInstruction:    cfg.DebateInstruction,
		discoveryInstruction: cfg.DiscoveryInstruction,
	}

	logger.Info("OpenRouter client initialized",
		zap.String("model", cfg.ModelName),
		zap.Int("max_retries", cfg.MaxRetries))

	return client, nil
}

// GenerateDebate produces a full structured debate result for the prompt.
func (c *Client) GenerateDebate(ctx context.Context, prompt string) (*models.DebateResult, error) {
	raw, err := c.complete(ctx, c.debateInstruction, prompt, 8192)
	if err != nil {
		return nil, err
	}

	var result models.DebateResult
	if err := json.Unmarshal([]byte(raw), &result); err != nil {
		c.logger.Error("Failed to parse debate JSON response",
			zap.Error(err),
			zap.String("response", raw))
		return nil, fmt.Errorf("failed to parse openrouter debate response: %w", err)
	}
	if len(result.Replies) == 0 {
		return nil, fmt.Errorf("openrouter returned a debate with no replies")
	}
	return &result, nil
}

// GenerateDiscovery redacts raw findings into a report candidate.
func (c *Client) GenerateDiscovery(ctx context.Context, prompt string) (*models.TopicDiscovery, error) {
	raw, err := c.complete(ctx, c.discoveryInstruction, prompt, 1024)
	if err != nil {
		return nil, err
	}

	var result models.TopicDiscovery
	if err := json.Unmarshal([]byte(raw), &result); err != nil {
		c.logger.Error("Failed to parse discovery JSON response",
			zap.Error(err),
			zap.String("response", raw))
		return nil, fmt.Errorf("failed to parse openrouter discovery response: %w", err)
	}
	if result.Title == "" {
		return nil, fmt.Errorf("openrouter returned a discovery without a title")
	}
	return &result, nil
}

func (c *Client) complete(ctx context.Context, system, prompt string, maxTokens int) (string, error) {
	var lastErr error

	for attempt := 1; attempt <= c.maxRetries; attempt++ {
		result, err := c.completeOnce(ctx, system, prompt, maxTokens, attempt)
		if err == nil {
			return result, nil
		}

		lastErr = err
		c.logger.Warn("OpenRouter API attempt failed",
			zap.Int("attempt", attempt),
			zap.Int("max_retries", c.maxRetries),
			zap.Error(err))

		// Don't retry if context is cancelled
		if ctx.Err() != nil {
			return "", ctx.Err()
		}

		if attempt < c.maxRetries {
			select {
			case <-time.After(c.retryDelay):
			case <-ctx.Done():
				return "", ctx.Err()
			}
		}
	}

	return "", fmt.Errorf("failed after %d attempts: %w", c.maxRetries, lastErr)
}

func (c *Client) completeOnce(ctx context.Context, system, prompt string, maxTokens, attempt int) (string, error) {
	reqBody := chatRequest{
		Model: c.modelName,
		Messages: []chatMessage{
			{Role: "system", Content: system},
			{Role: "user", Content: prompt},
		},
		Temperature: 0.8,
		MaxTokens:   maxTokens,
	}

	jsonData, err := json.Marshal(reqBody)
	if err != nil {
		return "", fmt.Errorf("failed to marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, "POST", c.baseURL+"/chat/completions", bytes.NewBuffer(jsonData))
	if err != nil {
		return "", fmt.Errorf("failed to create request: %w", err)
	}

	req.Header.Set("Authorization", "Bearer "+c.apiKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		c.logger.Error("OpenRouter API error", zap.Error(err), zap.Int("attempt", attempt))
		return "", fmt.Errorf("openrouter API request failed: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("failed to read response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		c.logger.Error("OpenRouter API error",
			zap.Int("status", resp.StatusCode),
			zap.String("body", string(body)),
			zap.Int("attempt", attempt))
		return "", fmt.Errorf("openrouter API returned status %d: %s", resp.StatusCode, string(body))
	}

	var apiResp chatResponse
	if err := json.Unmarshal(body, &apiResp); err != nil {
		return "", fmt.Errorf("failed to unmarshal response: %w", err)
	}

	if apiResp.Error != nil {
		return "", fmt.Errorf("openrouter API error: %s", apiResp.Error.Message)
	}

	if len(apiResp.Choices) == 0 {
		return "", fmt.Errorf("no choices in openrouter response")
	}

	return cleanMarkdown(apiResp.Choices[0].Message.Content), nil
}

// Close closes the client and releases resources.
func (c *Client) Close() error {
	c.httpClient.CloseIdleConnections()
	return nil
}

// ModelInfo returns information about the model being used.
func (c *Client) ModelInfo() map[string]interface{} {
	return map[string]interface{}{
		"provider": "openrouter",
		"model":    c.modelName,
		"base_url": c.baseURL,
	}
}

// cleanMarkdown removes markdown code blocks if present.
func cleanMarkdown(text string) string {
	text = strings.TrimSpace(text)

	if strings.HasPrefix(text, "```json") {
		text = strings.TrimPrefix(text, "```json")
		text = strings.TrimSuffix(text, "```")
		text = strings.TrimSpace(text)
	} else if strings.HasPrefix(text, "```") {
		text = strings.TrimPrefix(text, "```")
		text = strings.TrimSuffix(text, "```")
		text = strings.TrimSpace(text)
	}

	return text
}
