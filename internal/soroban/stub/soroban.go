package stub

import (
	"context"

	"soroban-watch/internal/soroban"
)

// Client implements soroban.Client for testing.
type Client struct {
	EventsByContract map[string][]soroban.RawEvent
	EventsErr        error
	Status           string
	Ledger           int64
	EventsCalls      int
}

// NewClient creates an empty stub client.
func NewClient() *Client {
	return &Client{
		EventsByContract: make(map[string][]soroban.RawEvent),
		Status:           "healthy",
	}
}

// Events returns the configured events for the requested contract.
func (c *Client) Events(_ context.Context, req soroban.EventsRequest) ([]soroban.RawEvent, error) {
	c.EventsCalls++

	if c.EventsErr != nil {
		return nil, c.EventsErr
	}

	events := c.EventsByContract[req.ContractID]
	if req.Limit > 0 && req.Limit < len(events) {
		return events[:req.Limit], nil
	}
	return events, nil
}

// Health returns the configured status.
func (c *Client) Health(_ context.Context) (string, error) {
	return c.Status, nil
}

// LatestLedger returns the configured ledger sequence.
func (c *Client) LatestLedger(_ context.Context) (int64, error) {
	return c.Ledger, nil
}

var _ soroban.Client = (*Client)(nil)
