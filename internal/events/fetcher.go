// Package events retrieves contract-emitted events from Soroban RPC and
// normalizes the heterogeneous record shapes into the canonical event type.
package events

import (
	"context"
	"encoding/json"
	"fmt"

	"go.uber.org/zap"

	"soroban-watch/internal/domain"
	"soroban-watch/internal/observability"
	"soroban-watch/internal/soroban"
)

// DefaultLimit is the single-query page-size ceiling. Contracts with more
// events than this only get the first page; no further pagination is
// attempted.
const DefaultLimit = 1000

// Fetcher issues the bulk event query and normalizes the results.
type Fetcher struct {
	rpc    soroban.Client
	logger *zap.Logger
	limit  int
}

// Option configures a Fetcher.
type Option func(*Fetcher)

// WithLimit sets the query result-count ceiling.
func WithLimit(n int) Option {
	return func(f *Fetcher) {
		f.limit = n
	}
}

// WithLogger sets the logger.
func WithLogger(l *zap.Logger) Option {
	return func(f *Fetcher) {
		f.logger = l
	}
}

// New creates a Fetcher over the given Soroban RPC client.
func New(rpc soroban.Client, opts ...Option) *Fetcher {
	f := &Fetcher{
		rpc:    rpc,
		logger: zap.NewNop(),
		limit:  DefaultLimit,
	}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

// Fetch returns the events emitted by the contract, normalized to the
// canonical shape. Any query failure degrades to an empty slice so a
// temporarily unavailable source never fails the whole statistics request.
func (f *Fetcher) Fetch(ctx context.Context, contractID string) []domain.Event {
	raws, err := f.rpc.Events(ctx, soroban.EventsRequest{
		ContractID:  contractID,
		StartLedger: 0,
		Limit:       f.limit,
	})
	if err != nil {
		observability.RecordSourceFailure("soroban")
		f.logger.Warn("event query failed, returning empty set",
			zap.String("contract_id", contractID),
			zap.Error(err))
		return []domain.Event{}
	}
	observability.RecordEventsFetched(len(raws))

	events := make([]domain.Event, 0, len(raws))
	for i, raw := range raws {
		ev, ok := f.normalize(raw, contractID, i)
		if !ok {
			continue
		}
		events = append(events, ev)
	}

	f.logger.Debug("events fetched",
		zap.String("contract_id", contractID),
		zap.Int("raw", len(raws)),
		zap.Int("normalized", len(events)))
	return events
}

// normalize converts one raw record to the canonical event shape. A record
// with neither a timestamp nor a ledger-closed-at field has no valid
// timestamp fallback and is dropped; the rest of the fetch proceeds.
func (f *Fetcher) normalize(raw soroban.RawEvent, contractID string, position int) (domain.Event, bool) {
	timestamp := raw.Timestamp
	if timestamp == "" {
		timestamp = raw.LedgerClosedAt
	}
	if timestamp == "" {
		observability.RecordEventDropped()
		f.logger.Warn("dropping event without timestamp",
			zap.String("contract_id", contractID),
			zap.String("event_id", raw.ID),
			zap.Int64("ledger", raw.Ledger))
		return domain.Event{}, false
	}

	eventType := raw.Type
	if eventType == "" && len(raw.Topic) > 0 {
		eventType = stringifyTopic(raw.Topic[0])
	}
	if eventType == "" {
		eventType = "contract"
	}

	topics := make([]string, len(raw.Topic))
	for i, t := range raw.Topic {
		topics[i] = stringifyTopic(t)
	}

	id := raw.ID
	if id == "" {
		id = fmt.Sprintf("%d-%d", raw.Ledger, position)
	}

	value := raw.Value
	if value == nil {
		value = raw.Data
	}

	txHash := raw.TxHash
	if txHash == "" {
		txHash = raw.TransactionHash
	}

	return domain.Event{
		ID:             id,
		Type:           eventType,
		Ledger:         raw.Ledger,
		LedgerClosedAt: timestamp,
		ContractID:     contractID,
		Topic:          topics,
		Value:          value,
		TxHash:         txHash,
		Timestamp:      timestamp,
	}, true
}

// stringifyTopic coerces a raw topic value to a display string: JSON strings
// are unquoted, everything else keeps its compact JSON text.
func stringifyTopic(raw json.RawMessage) string {
	if len(raw) == 0 {
		return ""
	}
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return s
	}
	return string(raw)
}
