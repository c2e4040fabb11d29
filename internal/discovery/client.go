package discovery

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

	"backend/internal/llm"
)

// Client is a Tavily web search client. It degrades to an empty result set
// instead of failing when the key is missing or nothing is found.
type Client struct {
	apiKey     string
	baseURL    string
	maxResults int
	httpClient *http.Client
	logger     *zap.Logger
}

// NewClient creates a new Tavily search client.
func NewClient(apiKey string, maxResults int, logger *zap.Logger) *Client {
	if maxResults <= 0 {
		maxResults = 5
	}
	return &Client{
		apiKey:     apiKey,
		baseURL:    "https://api.tavily.com",
		maxResults: maxResults,
		httpClient: &http.Client{Timeout: 30 * time.Second},
		logger:     logger,
	}
}

type searchRequest struct {
	APIKey      string `json:"api_key"`
	Query       string `json:"query"`
	SearchDepth string `json:"search_depth"`
	MaxResults  int    `json:"max_results"`
}

type searchResponse struct {
	Results []struct {
		Title   string  `json:"title"`
		URL     string  `json:"url"`
		Content string  `json:"content"`
		Score   float64 `json:"score"`
	} `json:"results"`
}

// Search runs one web search. An empty result list is a valid outcome, not
// an error.
func (c *Client) Search(ctx context.Context, query string) ([]llm.Finding, error) {
	if c.apiKey == "" {
		c.logger.Warn("Discovery API key not configured, returning no findings")
		return nil, nil
	}

	reqBody := searchRequest{
		APIKey:      c.apiKey,
		Query:       fmt.Sprintf("%s news %d", query, time.Now().Year()),
		SearchDepth: "advanced",
		MaxResults:  c.maxResults,
	}

	jsonData, err := json.Marshal(reqBody)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, "POST", c.baseURL+"/search", bytes.NewBuffer(jsonData))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("search request failed: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		c.logger.Error("Search API error",
			zap.Int("status", resp.StatusCode),
			zap.String("body", string(body)))
		return nil, fmt.Errorf("search API returned status %d", resp.StatusCode)
	}

	var apiResp searchResponse
	if err := json.Unmarshal(body, &apiResp); err != nil {
		return nil, fmt.Errorf("failed to unmarshal response: %w", err)
	}

	findings := make([]llm.Finding, 0, len(apiResp.Results))
	for _, r := range apiResp.Results {
		if r.URL == "" || strings.TrimSpace(r.Title) == "" {
			continue
		}
		content := truncateRunes(r.Content, 1000)
		findings = append(findings, llm.Finding{
			Title:     r.Title,
			URL:       r.URL,
			Content:   content,
			Relevance: r.Score,
		})
	}

	c.logger.Info("Search completed",
		zap.String("query", query),
		zap.Int("findings", len(findings)))

	return findings, nil
}

// truncateRunes caps s at max runes so a multi-byte character is never
// split mid-sequence.
func truncateRunes(s string, max int) string {
	r := []rune(s)
	if len(r) <= max {
		return s
	}
	return string(r[:max])
}
