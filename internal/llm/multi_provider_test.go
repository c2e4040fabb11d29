package llm

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"backend/internal/models"
)

type scriptedProvider struct {
	errs  []error // consumed per call; nil means success
	calls int
}

func (s *scriptedProvider) nextErr() error {
	if s.calls < len(s.errs) {
		err := s.errs[s.calls]
		s.calls++
		return err
	}
	s.calls++
	return nil
}

func (s *scriptedProvider) GenerateDebate(ctx context.Context, prompt string) (*models.DebateResult, error) {
	if err := s.nextErr(); err != nil {
		return nil, err
	}
	return &models.DebateResult{Summary: "ok"}, nil
}

func (s *scriptedProvider) GenerateDiscovery(ctx context.Context, prompt string) (*models.TopicDiscovery, error) {
	if err := s.nextErr(); err != nil {
		return nil, err
	}
	return &models.TopicDiscovery{Title: "ok"}, nil
}

func (s *scriptedProvider) Close() error                      { return nil }
func (s *scriptedProvider) ModelInfo() map[string]interface{} { return map[string]interface{}{} }

func newTestClient(providers ...Generator) *MultiProviderClient {
	wrapped := make([]*rateLimitedGenerator, 0, len(providers))
	for _, p := range providers {
		wrapped = append(wrapped, &rateLimitedGenerator{
			provider: p,
			limiter:  NewRateLimiter(1000),
		})
	}
	return &MultiProviderClient{
		providers:    wrapped,
		logger:       zap.NewNop(),
		failureCount: make(map[int]int),
		maxFailures:  3,
	}
}

func TestFallbackOnRateLimitError(t *testing.T) {
	first := &scriptedProvider{errs: []error{errors.New("429 too many requests")}}
	second := &scriptedProvider{}
	client := newTestClient(first, second)

	result, err := client.GenerateDebate(context.Background(), "prompt")
	require.NoError(t, err)
	assert.Equal(t, "ok", result.Summary)
	assert.Equal(t, 1, first.calls)
	assert.Equal(t, 1, second.calls)
}

func TestAllProvidersFailing(t *testing.T) {
	first := &scriptedProvider{errs: []error{errors.New("quota exceeded")}}
	second := &scriptedProvider{errs: []error{errors.New("quota exceeded")}}
	client := newTestClient(first, second)

	_, err := client.GenerateDebate(context.Background(), "prompt")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "all providers failed")
}

func TestNonRateLimitFailureRetriesSameProvider(t *testing.T) {
	// A transient failure below the failure ceiling retries on the same
	// provider instead of rotating.
	first := &scriptedProvider{errs: []error{errors.New("boom")}}
	second := &scriptedProvider{}
	client := newTestClient(first, second)

	result, err := client.GenerateDebate(context.Background(), "prompt")
	require.NoError(t, err)
	assert.Equal(t, "ok", result.Summary)
	assert.Equal(t, 2, first.calls)
	assert.Equal(t, 0, second.calls)

	_, idx := client.getCurrentProvider()
	assert.Equal(t, 0, idx, "index stays on the first provider")
}

func TestRepeatedFailuresRotateProvider(t *testing.T) {
	first := &scriptedProvider{errs: []error{
		errors.New("boom"), errors.New("boom"), errors.New("boom"),
	}}
	second := &scriptedProvider{}
	client := newTestClient(first, second)

	for i := 0; i < 3; i++ {
		client.GenerateDiscovery(context.Background(), "prompt")
	}

	_, idx := client.getCurrentProvider()
	assert.Equal(t, 1, idx, "three strikes move the chain to the next provider")
}

func TestRateLimiterBlocksWhenExhausted(t *testing.T) {
	rl := NewRateLimiter(1)

	require.NoError(t, rl.Wait(context.Background()))

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	err := rl.Wait(ctx)
	assert.ErrorIs(t, err, context.DeadlineExceeded, "second call inside the same minute must block")
}

func TestIsRateLimitError(t *testing.T) {
	assert.True(t, isRateLimitError(errors.New("HTTP 429")))
	assert.True(t, isRateLimitError(errors.New("daily quota exhausted")))
	assert.True(t, isRateLimitError(errors.New("rate limit hit")))
	assert.False(t, isRateLimitError(errors.New("connection refused")))
	assert.False(t, isRateLimitError(nil))
}
