package horizon

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"soroban-watch/internal/domain"
)

// Default configuration values.
const (
	DefaultTimeout    = 8 * time.Second
	DefaultMaxRetries = 2
	DefaultRetryDelay = 500 * time.Millisecond
	DefaultMaxDelay   = 5 * time.Second
)

// HTTPClient implements Client against a Horizon instance.
type HTTPClient struct {
	baseURL    string
	client     *http.Client
	maxRetries int
	retryDelay time.Duration
	maxDelay   time.Duration
}

// ClientOption configures HTTPClient.
type ClientOption func(*HTTPClient)

// WithTimeout sets the HTTP client timeout.
func WithTimeout(d time.Duration) ClientOption {
	return func(c *HTTPClient) {
		c.client.Timeout = d
	}
}

// WithMaxRetries sets maximum retry attempts.
func WithMaxRetries(n int) ClientOption {
	return func(c *HTTPClient) {
		c.maxRetries = n
	}
}

// WithRetryDelay sets the initial retry delay.
func WithRetryDelay(d time.Duration) ClientOption {
	return func(c *HTTPClient) {
		c.retryDelay = d
	}
}

// WithHTTPClient sets a custom http.Client.
func WithHTTPClient(client *http.Client) ClientOption {
	return func(c *HTTPClient) {
		c.client = client
	}
}

// NewHTTPClient creates a Horizon client for the given base URL.
func NewHTTPClient(baseURL string, opts ...ClientOption) *HTTPClient {
	c := &HTTPClient{
		baseURL:    baseURL,
		client:     &http.Client{Timeout: DefaultTimeout},
		maxRetries: DefaultMaxRetries,
		retryDelay: DefaultRetryDelay,
		maxDelay:   DefaultMaxDelay,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// embeddedRecords is the Horizon collection envelope.
type embeddedRecords struct {
	Embedded struct {
		Records []json.RawMessage `json:"records"`
	} `json:"_embedded"`
}

// Transactions fetches one page of recent ledger transactions.
func (c *HTTPClient) Transactions(ctx context.Context, req TransactionsRequest) ([]domain.Transaction, error) {
	q := url.Values{}
	order := req.Order
	if order == "" {
		order = "desc"
	}
	q.Set("order", order)
	if req.Limit > 0 {
		q.Set("limit", strconv.Itoa(req.Limit))
	}
	if req.Cursor != "" {
		q.Set("cursor", req.Cursor)
	}

	var env embeddedRecords
	if err := c.get(ctx, "/transactions?"+q.Encode(), &env); err != nil {
		return nil, err
	}

	txs := make([]domain.Transaction, 0, len(env.Embedded.Records))
	for _, raw := range env.Embedded.Records {
		var tx domain.Transaction
		if err := json.Unmarshal(raw, &tx); err != nil {
			return nil, fmt.Errorf("decode transaction record: %w", err)
		}
		txs = append(txs, tx)
	}
	return txs, nil
}

// Operations fetches the ordered operations of a transaction. Each returned
// operation keeps its raw source record for the involvement substring test.
func (c *HTTPClient) Operations(ctx context.Context, txHash string) ([]domain.Operation, error) {
	var env embeddedRecords
	if err := c.get(ctx, "/transactions/"+url.PathEscape(txHash)+"/operations", &env); err != nil {
		return nil, err
	}

	ops := make([]domain.Operation, 0, len(env.Embedded.Records))
	for _, raw := range env.Embedded.Records {
		var op domain.Operation
		if err := json.Unmarshal(raw, &op); err != nil {
			return nil, fmt.Errorf("decode operation record: %w", err)
		}
		op.Raw = raw
		ops = append(ops, op)
	}
	return ops, nil
}

// get performs a GET with retries and exponential backoff. Responses other
// than 200 are retried for 429 and 5xx; everything else fails immediately.
func (c *HTTPClient) get(ctx context.Context, path string, result interface{}) error {
	delay := c.retryDelay
	var lastErr error

	for attempt := 0; attempt <= c.maxRetries; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(delay):
			}
			delay *= 2
			if delay > c.maxDelay {
				delay = c.maxDelay
			}
		}

		req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path, nil)
		if err != nil {
			return fmt.Errorf("create request: %w", err)
		}
		req.Header.Set("Accept", "application/json")

		resp, err := c.client.Do(req)
		if err != nil {
			lastErr = fmt.Errorf("http request: %w", err)
			continue
		}

		body, err := io.ReadAll(resp.Body)
		resp.Body.Close()
		if err != nil {
			lastErr = fmt.Errorf("read response: %w", err)
			continue
		}

		switch {
		case resp.StatusCode == http.StatusOK:
			if err := json.Unmarshal(body, result); err != nil {
				return fmt.Errorf("unmarshal response: %w", err)
			}
			return nil
		case resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500:
			lastErr = fmt.Errorf("horizon status %d", resp.StatusCode)
			continue
		default:
			return fmt.Errorf("horizon status %d: %s", resp.StatusCode, string(body))
		}
	}

	return fmt.Errorf("max retries exceeded: %w", lastErr)
}

var _ Client = (*HTTPClient)(nil)
