package poller

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"soroban-watch/internal/domain"
	"soroban-watch/internal/stats"
)

// LocalSource computes statistics in-process through the aggregator.
type LocalSource struct {
	agg *stats.Aggregator
}

// NewLocalSource wraps an aggregator as a poller source.
func NewLocalSource(agg *stats.Aggregator) *LocalSource {
	return &LocalSource{agg: agg}
}

// FetchStats implements Source.
func (l *LocalSource) FetchStats(ctx context.Context, contractID string) (*domain.ContractStats, error) {
	return l.agg.Compute(ctx, contractID)
}

// HTTPSource fetches statistics from a remote API server. The response may
// carry either the canonical or the legacy field names depending on server
// version, so the payload goes through the normalization adapter.
type HTTPSource struct {
	baseURL    string
	httpClient *http.Client
}

// HTTPSourceOption configures an HTTPSource.
type HTTPSourceOption func(*HTTPSource)

// WithHTTPTimeout sets the request timeout.
func WithHTTPTimeout(d time.Duration) HTTPSourceOption {
	return func(s *HTTPSource) {
		s.httpClient.Timeout = d
	}
}

// WithHTTPClient sets a custom HTTP client.
func WithHTTPClient(c *http.Client) HTTPSourceOption {
	return func(s *HTTPSource) {
		s.httpClient = c
	}
}

// NewHTTPSource creates an HTTPSource against the given API base URL.
func NewHTTPSource(baseURL string, opts ...HTTPSourceOption) *HTTPSource {
	s := &HTTPSource{
		baseURL: baseURL,
		httpClient: &http.Client{
			Timeout: 8 * time.Second,
		},
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// statsEnvelope is the API response wrapper.
type statsEnvelope struct {
	Success bool            `json:"success"`
	Error   string          `json:"error,omitempty"`
	Stats   json.RawMessage `json:"stats,omitempty"`
}

// FetchStats implements Source.
func (s *HTTPSource) FetchStats(ctx context.Context, contractID string) (*domain.ContractStats, error) {
	endpoint := fmt.Sprintf("%s/stats/%s", s.baseURL, url.PathEscape(contractID))

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch stats: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}

	var env statsEnvelope
	if err := json.Unmarshal(body, &env); err != nil {
		return nil, fmt.Errorf("decode response: %w", err)
	}
	if !env.Success {
		if env.Error != "" {
			return nil, fmt.Errorf("stats request failed: %s", env.Error)
		}
		return nil, fmt.Errorf("stats request failed: HTTP %d", resp.StatusCode)
	}

	return stats.Normalize(env.Stats)
}
