package stub

import (
	"context"
	"errors"
	"sync"

	"soroban-watch/internal/domain"
	"soroban-watch/internal/horizon"
)

// ErrUnavailable simulates a Horizon outage.
var ErrUnavailable = errors.New("horizon unavailable")

// Client implements horizon.Client for testing. Pages are served in order;
// Operations are looked up by transaction hash. Safe for concurrent use,
// since the scanner fans out operation fetches.
type Client struct {
	mu        sync.Mutex
	Pages     [][]domain.Transaction
	Ops       map[string][]domain.Operation
	OpsErr    map[string]error // per-hash operation fetch failures
	FailAfter int              // page index at which Transactions starts failing; <0 disables
	PageCalls int
	OpsCalls  int
}

// NewClient creates an empty stub client.
func NewClient() *Client {
	return &Client{
		Ops:       make(map[string][]domain.Operation),
		OpsErr:    make(map[string]error),
		FailAfter: -1,
	}
}

// Transactions serves the next configured page. Requests past the configured
// pages return an empty slice, mirroring an exhausted feed.
func (c *Client) Transactions(_ context.Context, _ horizon.TransactionsRequest) ([]domain.Transaction, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	idx := c.PageCalls
	c.PageCalls++

	if c.FailAfter >= 0 && idx >= c.FailAfter {
		return nil, ErrUnavailable
	}
	if idx >= len(c.Pages) {
		return nil, nil
	}
	return c.Pages[idx], nil
}

// Operations returns the configured operations for a transaction hash.
func (c *Client) Operations(_ context.Context, txHash string) ([]domain.Operation, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.OpsCalls++

	if err, ok := c.OpsErr[txHash]; ok {
		return nil, err
	}
	return c.Ops[txHash], nil
}

// CallCounts returns the number of page and operation fetches served.
func (c *Client) CallCounts() (pages, ops int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.PageCalls, c.OpsCalls
}

var _ horizon.Client = (*Client)(nil)
