package gemini

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/google/generative-ai-go/genai"
	"go.uber.org/zap"
	"google.golang.org/api/option"

	"backend/internal/models"
)

// Client wraps the Gemini API client. Two generative models are kept, one
// per structured task: full debate generation and discovery redaction.
type Client struct {
	client         *genai.Client
	debateModel    *genai.GenerativeModel
	discoveryModel *genai.GenerativeModel
	logger         *zap.Logger
	modelName      string
	maxRetries     int
	retryDelay     time.Duration
}

// Config for Gemini client.
type Config struct {
	APIKey     string
	ModelName  string // Default: "gemini-2.0-flash-exp"
	MaxRetries int
	RetryDelay time.Duration
	// System instructions for the two structured tasks.
	DebateInstruction    string
	DiscoveryInstruction string
}

// NewClient creates a new Gemini client.
func NewClient(cfg Config, logger *zap.Logger) (*Client, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("gemini API key is required")
	}

	if cfg.ModelName == "" {
		cfg.ModelName = "gemini-2.0-flash-exp"
	}

	if cfg.MaxRetries == 0 {
		cfg.MaxRetries = 3
	}

	if cfg.RetryDelay == 0 {
		cfg.RetryDelay = 2 * time.Second
	}

	ctx := context.Background()
	client, err := genai.NewClient(ctx, option.WithAPIKey(cfg.APIKey))
	if err != nil {
		return nil, fmt.Errorf("failed to create gemini client: %w", err)
	}

	newModel := func(instruction string, maxTokens int32) *genai.GenerativeModel {
		model := client.GenerativeModel(cfg.ModelName)
		model.SystemInstruction = &genai.Content{
			Parts: []genai.Part{genai.Text(instruction)},
		}
		model.GenerationConfig = genai.GenerationConfig{
			Temperature:      genai.Ptr[float32](0.8),
			TopP:             genai.Ptr[float32](0.9),
			TopK:             genai.Ptr[int32](40),
			MaxOutputTokens:  genai.Ptr[int32](maxTokens),
			ResponseMIMEType: "application/json",
		}
		return model
	}

	logger.Info("Gemini client initialized",
		zap.String("model", cfg.ModelName),
		zap.Int("max_retries", cfg.MaxRetries))

	return &Client{
		client:         client,
		debateModel:    newModel(cfg.DebateInstruction, 8192),
		discoveryModel: newModel(cfg.DiscoveryInstruction, 1024),
		logger:         logger,
		modelName:      cfg.ModelName,
		maxRetries:     cfg.MaxRetries,
		retryDelay:     cfg.RetryDelay,
	}, nil
}

// Close closes the Gemini client.
func (c *Client) Close() error {
	return c.client.Close()
}

// GenerateDebate produces a full structured debate result for the prompt.
func (c *Client) GenerateDebate(ctx context.Context, prompt string) (*models.DebateResult, error) {
	raw, err := c.generate(ctx, c.debateModel, prompt)
	if err != nil {
		return nil, err
	}

	var result models.DebateResult
	if err := json.Unmarshal([]byte(raw), &result); err != nil {
		c.logger.Error("Failed to parse debate JSON response",
			zap.Error(err),
			zap.String("response", raw))
		return nil, fmt.Errorf("failed to parse gemini debate response: %w", err)
	}
	if len(result.Replies) == 0 {
		return nil, fmt.Errorf("gemini returned a debate with no replies")
	}
	return &result, nil
}

// GenerateDiscovery redacts raw findings into a report candidate.
func (c *Client) GenerateDiscovery(ctx context.Context, prompt string) (*models.TopicDiscovery, error) {
	raw, err := c.generate(ctx, c.discoveryModel, prompt)
	if err != nil {
		return nil, err
	}

	var result models.TopicDiscovery
	if err := json.Unmarshal([]byte(raw), &result); err != nil {
		c.logger.Error("Failed to parse discovery JSON response",
			zap.Error(err),
			zap.String("response", raw))
		return nil, fmt.Errorf("failed to parse gemini discovery response: %w", err)
	}
	if result.Title == "" {
		return nil, fmt.Errorf("gemini returned a discovery without a title")
	}
	return &result, nil
}

func (c *Client) generate(ctx context.Context, model *genai.GenerativeModel, prompt string) (string, error) {
	var lastErr error
	for attempt := 0; attempt < c.maxRetries; attempt++ {
		if attempt > 0 {
			c.logger.Warn("Retrying Gemini request",
				zap.Int("attempt", attempt+1),
				zap.Int("max_retries", c.maxRetries))
			select {
			case <-time.After(c.retryDelay):
			case <-ctx.Done():
				return "", ctx.Err()
			}
		}

		resp, err := model.GenerateContent(ctx, genai.Text(prompt))
		if err != nil {
			lastErr = fmt.Errorf("gemini API error: %w", err)
			c.logger.Error("Gemini API error", zap.Error(err), zap.Int("attempt", attempt+1))
			continue
		}

		if len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil || len(resp.Candidates[0].Content.Parts) == 0 {
			lastErr = fmt.Errorf("empty response from gemini")
			c.logger.Error("Empty response from Gemini", zap.Int("attempt", attempt+1))
			continue
		}

		text, ok := resp.Candidates[0].Content.Parts[0].(genai.Text)
		if !ok {
			lastErr = fmt.Errorf("unexpected part type in gemini response")
			continue
		}

		return cleanMarkdown(string(text)), nil
	}

	return "", fmt.Errorf("failed after %d attempts: %w", c.maxRetries, lastErr)
}

// ModelInfo returns information about the model being used.
func (c *Client) ModelInfo() map[string]interface{} {
	return map[string]interface{}{
		"provider": "gemini",
		"model":    c.modelName,
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
