package llm

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"backend/internal/config"
	"backend/internal/gemini"
	"backend/internal/models"
	"backend/internal/openrouter"
)

// Provider types understood by the multi-provider client.
const (
	ProviderGemini     = "gemini"
	ProviderOpenRouter = "openrouter"
)

// Generator is the structured-output contract every LLM provider satisfies.
type Generator interface {
	GenerateDebate(ctx context.Context, prompt string) (*models.DebateResult, error)
	GenerateDiscovery(ctx context.Context, prompt string) (*models.TopicDiscovery, error)
	Close() error
	ModelInfo() map[string]interface{}
}

// RateLimiter implements token bucket rate limiting.
type RateLimiter struct {
	mu              sync.Mutex
	tokens          int
	maxTokens       int
	refillRate      time.Duration
	lastRefill      time.Time
	minuteResetTime time.Time
}

// NewRateLimiter creates a new rate limiter.
func NewRateLimiter(requestsPerMinute int) *RateLimiter {
	return &RateLimiter{
		tokens:          requestsPerMinute,
		maxTokens:       requestsPerMinute,
		refillRate:      time.Minute / time.Duration(requestsPerMinute),
		lastRefill:      time.Now(),
		minuteResetTime: time.Now().Add(time.Minute),
	}
}

// Wait blocks until a token is available.
func (rl *RateLimiter) Wait(ctx context.Context) error {
	rl.mu.Lock()

	now := time.Now()
	if now.After(rl.minuteResetTime) {
		rl.minuteResetTime = now.Add(time.Minute)
		rl.tokens = rl.maxTokens
		rl.lastRefill = now
	}

	elapsed := now.Sub(rl.lastRefill)
	tokensToAdd := int(elapsed / rl.refillRate)
	if tokensToAdd > 0 {
		rl.tokens += tokensToAdd
		if rl.tokens > rl.maxTokens {
			rl.tokens = rl.maxTokens
		}
		rl.lastRefill = now
	}

	if rl.tokens <= 0 {
		waitTime := rl.refillRate
		rl.mu.Unlock()

		select {
		case <-time.After(waitTime):
			rl.mu.Lock()
			rl.tokens = 1
			rl.lastRefill = time.Now()
		case <-ctx.Done():
			return ctx.Err()
		}
	}

	rl.tokens--
	rl.mu.Unlock()

	return nil
}

// rateLimitedGenerator wraps a provider with rate limiting.
type rateLimitedGenerator struct {
	provider Generator
	limiter  *RateLimiter
}

func (p *rateLimitedGenerator) GenerateDebate(ctx context.Context, prompt string) (*models.DebateResult, error) {
	if err := p.limiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("rate limit wait cancelled: %w", err)
	}
	return p.provider.GenerateDebate(ctx, prompt)
}

func (p *rateLimitedGenerator) GenerateDiscovery(ctx context.Context, prompt string) (*models.TopicDiscovery, error) {
	if err := p.limiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("rate limit wait cancelled: %w", err)
	}
	return p.provider.GenerateDiscovery(ctx, prompt)
}

func (p *rateLimitedGenerator) Close() error                       { return p.provider.Close() }
func (p *rateLimitedGenerator) ModelInfo() map[string]interface{} { return p.provider.ModelInfo() }

// MultiProviderClient manages multiple LLM providers with fallback.
type MultiProviderClient struct {
	providers    []*rateLimitedGenerator
	currentIndex int
	mu           sync.RWMutex
	logger       *zap.Logger
	failureCount map[int]int
	maxFailures  int
}

// NewMultiProviderClient builds the fallback chain from configuration. A
// provider that fails to initialize is skipped with a log entry; at least
// one working provider is required.
func NewMultiProviderClient(cfgs []config.ProviderConfig, personas []models.Persona, logger *zap.Logger) (*MultiProviderClient, error) {
	if len(cfgs) == 0 {
		return nil, fmt.Errorf("at least one provider is required")
	}

	debateInstruction := DebateInstruction(personas)

	providers := make([]*rateLimitedGenerator, 0, len(cfgs))

	for i, providerCfg := range cfgs {
		var provider Generator
		var err error

		switch providerCfg.Type {
		case ProviderGemini:
			provider, err = gemini.NewClient(gemini.Config{
				APIKey:               providerCfg.APIKey,
				ModelName:            providerCfg.ModelName,
				MaxRetries:           providerCfg.MaxRetries,
				RetryDelay:           providerCfg.RetryDelay(),
				DebateInstruction:    debateInstruction,
				DiscoveryInstruction: DiscoveryInstruction,
			}, logger)
		case ProviderOpenRouter:
			provider, err = openrouter.NewClient(openrouter.Config{
				APIKey:               providerCfg.APIKey,
				ModelName:            providerCfg.ModelName,
				MaxRetries:           providerCfg.MaxRetries,
				RetryDelay:           providerCfg.RetryDelay(),
				DebateInstruction:    debateInstruction,
				DiscoveryInstruction: DiscoveryInstruction,
			}, logger)
		default:
			logger.Warn("Unknown provider type, skipping",
				zap.String("type", providerCfg.Type),
				zap.Int("index", i))
			continue
		}

		if err != nil {
			logger.Error("Failed to create provider",
				zap.String("type", providerCfg.Type),
				zap.Int("index", i),
				zap.Error(err))
			continue
		}

		rateLimit := providerCfg.RequestsPerMinute
		if rateLimit == 0 {
			rateLimit = 8 // Conservative default for free tier
		}

		providers = append(providers, &rateLimitedGenerator{
			provider: provider,
			limiter:  NewRateLimiter(rateLimit),
		})

		logger.Info("Provider initialized",
			zap.String("type", providerCfg.Type),
			zap.String("model", providerCfg.ModelName),
			zap.Int("rate_limit", rateLimit),
			zap.Int("index", i))
	}

	if len(providers) == 0 {
		return nil, fmt.Errorf("no providers could be initialized")
	}

	return &MultiProviderClient{
		providers:    providers,
		currentIndex: 0,
		logger:       logger,
		failureCount: make(map[int]int),
		maxFailures:  3,
	}, nil
}

func (c *MultiProviderClient) getCurrentProvider() (*rateLimitedGenerator, int) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.providers[c.currentIndex], c.currentIndex
}

func (c *MultiProviderClient) switchToNextProvider() {
	c.mu.Lock()
	defer c.mu.Unlock()

	oldIndex := c.currentIndex
	c.currentIndex = (c.currentIndex + 1) % len(c.providers)

	c.logger.Info("Switching provider",
		zap.Int("from_index", oldIndex),
		zap.Int("to_index", c.currentIndex),
		zap.Int("total_providers", len(c.providers)))
}

func (c *MultiProviderClient) recordFailure(providerIndex int) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.failureCount[providerIndex]++

	if c.failureCount[providerIndex] >= c.maxFailures {
		c.logger.Warn("Provider reached max failures",
			zap.Int("provider_index", providerIndex),
			zap.Int("failures", c.failureCount[providerIndex]))
		return true // Should switch
	}

	return false
}

func (c *MultiProviderClient) resetFailureCount(providerIndex int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.failureCount[providerIndex] = 0
}

// GenerateDebate tries the current provider, falling back to the next on
// failure until every provider has been attempted once.
func (c *MultiProviderClient) GenerateDebate(ctx context.Context, prompt string) (*models.DebateResult, error) {
	var result *models.DebateResult
	err := c.withFallback(ctx, func(p Generator) error {
		var genErr error
		result, genErr = p.GenerateDebate(ctx, prompt)
		return genErr
	})
	return result, err
}

// GenerateDiscovery tries the current provider with the same fallback walk.
func (c *MultiProviderClient) GenerateDiscovery(ctx context.Context, prompt string) (*models.TopicDiscovery, error) {
	var result *models.TopicDiscovery
	err := c.withFallback(ctx, func(p Generator) error {
		var genErr error
		result, genErr = p.GenerateDiscovery(ctx, prompt)
		return genErr
	})
	return result, err
}

func (c *MultiProviderClient) withFallback(ctx context.Context, call func(Generator) error) error {
	for attempts := 0; attempts < len(c.providers); attempts++ {
		provider, providerIndex := c.getCurrentProvider()

		c.logger.Debug("Attempting generation",
			zap.Int("provider_index", providerIndex),
			zap.Int("attempt", attempts+1))

		err := call(provider)
		if err == nil {
			c.resetFailureCount(providerIndex)
			return nil
		}

		c.logger.Error("Provider failed",
			zap.Int("provider_index", providerIndex),
			zap.Error(err))

		if ctx.Err() != nil {
			return ctx.Err()
		}

		shouldSwitch := c.recordFailure(providerIndex)
		if shouldSwitch || isRateLimitError(err) {
			c.switchToNextProvider()
		}
	}

	return fmt.Errorf("all providers failed")
}

// isRateLimitError checks if error is a rate limit error.
func isRateLimitError(err error) bool {
	if err == nil {
		return false
	}
	errStr := err.Error()
	return strings.Contains(errStr, "429") ||
		strings.Contains(errStr, "quota") ||
		strings.Contains(errStr, "rate limit")
}

// Close closes all providers.
func (c *MultiProviderClient) Close() error {
	var lastErr error
	for i, provider := range c.providers {
		if err := provider.Close(); err != nil {
			c.logger.Error("Failed to close provider",
				zap.Int("index", i),
				zap.Error(err))
			lastErr = err
		}
	}
	return lastErr
}

// ModelInfo returns information about the current provider.
func (c *MultiProviderClient) ModelInfo() map[string]interface{} {
	provider, index := c.getCurrentProvider()
	info := provider.ModelInfo()
	info["provider_index"] = index
	info["total_providers"] = len(c.providers)
	return info
}
