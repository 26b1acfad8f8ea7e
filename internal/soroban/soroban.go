// Package soroban provides a JSON-RPC 2.0 client for Soroban RPC, covering
// the event query endpoint plus the health and latest-ledger probes.
package soroban

import (
	"context"
	"encoding/json"
)

// Client defines the Soroban RPC interface the engine depends on.
type Client interface {
	// Events issues one bulk getEvents query filtered by contract.
	Events(ctx context.Context, req EventsRequest) ([]RawEvent, error)

	// Health returns the node health status string.
	Health(ctx context.Context) (string, error)

	// LatestLedger returns the sequence number of the latest known ledger.
	LatestLedger(ctx context.Context) (int64, error)
}

// EventsRequest describes a getEvents query.
type EventsRequest struct {
	ContractID  string
	StartLedger int64
	Limit       int
}

// RawEvent is an event record in source-native shape. Field presence varies
// between node versions; normalization into domain.Event happens in the
// events package.
type RawEvent struct {
	ID                       string            `json:"id"`
	Type                     string            `json:"type"`
	Ledger                   int64             `json:"ledger"`
	LedgerClosedAt           string            `json:"ledgerClosedAt"`
	Timestamp                string            `json:"timestamp"`
	ContractID               string            `json:"contractId"`
	Topic                    []json.RawMessage `json:"topic"`
	Value                    json.RawMessage   `json:"value"`
	Data                     json.RawMessage   `json:"data"`
	TxHash                   string            `json:"txHash"`
	TransactionHash          string            `json:"transactionHash"`
	InSuccessfulContractCall *bool             `json:"inSuccessfulContractCall,omitempty"`
}
