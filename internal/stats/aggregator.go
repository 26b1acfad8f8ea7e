// Package stats computes the canonical contract statistics record from the
// transaction scan and the event fetch, and provides the legacy projection
// and the canonical/legacy field reconciliation used by clients.
package stats

import (
	"context"
	"errors"
	"sort"
	"sync"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"soroban-watch/internal/domain"
	"soroban-watch/internal/storage"
	"soroban-watch/internal/strkey"
)

// ErrInvalidContractID is returned for an empty or non-well-formed contract
// identifier. It is the only error the aggregator produces: source failures
// are absorbed by the scanner and fetcher and surface as degraded data.
var ErrInvalidContractID = errors.New("stats: invalid contract id")

// maxRecent is the safety clamp on the transaction and event lists included
// in the statistics record.
const maxRecent = 20

// Metadata defaults when the registry has no row for the contract.
const (
	DefaultContractName = "Unknown"
	DefaultNetwork      = "testnet"
)

// TransactionSource produces the involved transactions for a contract.
// Implemented by scanner.Scanner.
type TransactionSource interface {
	Scan(ctx context.Context, contractID string) []domain.Transaction
}

// EventSource produces the normalized events for a contract.
// Implemented by events.Fetcher.
type EventSource interface {
	Fetch(ctx context.Context, contractID string) []domain.Event
}

// Aggregator joins both sources into one statistics record per request.
type Aggregator struct {
	txSource  TransactionSource
	evSource  EventSource
	contracts storage.ContractStore
	logger    *zap.Logger
}

// Option configures an Aggregator.
type Option func(*Aggregator)

// WithContractStore sets the registry used for contract name and network
// metadata. Without one, metadata falls back to defaults.
func WithContractStore(store storage.ContractStore) Option {
	return func(a *Aggregator) {
		a.contracts = store
	}
}

// WithLogger sets the logger.
func WithLogger(l *zap.Logger) Option {
	return func(a *Aggregator) {
		a.logger = l
	}
}

// New creates an Aggregator over the given sources.
func New(txSource TransactionSource, evSource EventSource, opts ...Option) *Aggregator {
	a := &Aggregator{
		txSource: txSource,
		evSource: evSource,
		logger:   zap.NewNop(),
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// Compute builds a fresh statistics record for the contract. The two sources
// run concurrently and are individually fault-tolerant, so Compute fails
// only on invalid input, never on source unavailability.
func (a *Aggregator) Compute(ctx context.Context, contractID string) (*domain.ContractStats, error) {
	if contractID == "" || !strkey.IsContract(contractID) {
		return nil, ErrInvalidContractID
	}

	var (
		wg  sync.WaitGroup
		txs []domain.Transaction
		evs []domain.Event
	)
	wg.Add(2)
	go func() {
		defer wg.Done()
		txs = a.txSource.Scan(ctx, contractID)
	}()
	go func() {
		defer wg.Done()
		evs = a.evSource.Fetch(ctx, contractID)
	}()
	wg.Wait()

	name, network := a.metadata(ctx, contractID)

	return &domain.ContractStats{
		ContractID:   contractID,
		ContractName: name,
		Network:      network,
		TotalTx:      len(txs),
		TotalEvents:  len(evs),
		AvgFee:       averageFee(txs),
		LastActivity: latestActivity(txs, evs),
		Transactions: clampTransactions(txs),
		Events:       clampEvents(evs),
	}, nil
}

// metadata resolves the display name and network tag from the registry,
// defaulting when the registry is absent or has no row.
func (a *Aggregator) metadata(ctx context.Context, contractID string) (string, string) {
	name, network := DefaultContractName, DefaultNetwork
	if a.contracts == nil {
		return name, network
	}

	ref, err := a.contracts.GetByID(ctx, contractID)
	if err != nil {
		if !errors.Is(err, storage.ErrNotFound) {
			a.logger.Warn("registry lookup failed, using default metadata",
				zap.String("contract_id", contractID),
				zap.Error(err))
		}
		return name, network
	}

	if ref.Name != "" {
		name = ref.Name
	}
	if ref.Network != "" {
		network = ref.Network
	}
	return name, network
}

// averageFee sums the fee_charged values as decimals and divides by the
// transaction count, formatted with exactly 7 fractional digits. With zero
// transactions the result is the literal "0".
func averageFee(txs []domain.Transaction) string {
	if len(txs) == 0 {
		return "0"
	}

	sum := decimal.Zero
	for _, tx := range txs {
		fee, err := decimal.NewFromString(tx.FeeCharged)
		if err != nil {
			continue
		}
		sum = sum.Add(fee)
	}

	return sum.Div(decimal.NewFromInt(int64(len(txs)))).StringFixed(7)
}

// latestActivity returns the greatest instant across both sequences, or nil
// when both are empty. Each sequence is inspected in full rather than trusting
// its incoming sort order, since the scanner and fetcher do not guarantee
// identical sort stability.
func latestActivity(txs []domain.Transaction, evs []domain.Event) *string {
	best, ok := "", false
	for _, tx := range txs {
		if tx.CreatedAt != "" && (!ok || laterThan(tx.CreatedAt, best)) {
			best, ok = tx.CreatedAt, true
		}
	}
	for _, ev := range evs {
		if ev.Timestamp != "" && (!ok || laterThan(ev.Timestamp, best)) {
			best, ok = ev.Timestamp, true
		}
	}
	if !ok {
		return nil
	}
	return &best
}

// laterThan compares two timestamp strings as instants. Values that fail to
// parse as RFC 3339 fall back to lexicographic comparison, which matches
// chronological order for same-format timestamps.
func laterThan(a, b string) bool {
	ta, errA := time.Parse(time.RFC3339, a)
	tb, errB := time.Parse(time.RFC3339, b)
	if errA == nil && errB == nil {
		return ta.After(tb)
	}
	return a > b
}

// clampTransactions returns the first maxRecent transactions in
// ledger-descending order, copied so the record never aliases source slices.
func clampTransactions(txs []domain.Transaction) []domain.Transaction {
	out := make([]domain.Transaction, len(txs))
	copy(out, txs)
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].Ledger > out[j].Ledger
	})
	if len(out) > maxRecent {
		out = out[:maxRecent]
	}
	return out
}

// clampEvents returns the first maxRecent events in ledger-descending order.
// The event query returns oldest-first, so the re-sort is what makes these
// the most recent events rather than the earliest.
func clampEvents(evs []domain.Event) []domain.Event {
	out := make([]domain.Event, len(evs))
	copy(out, evs)
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].Ledger > out[j].Ledger
	})
	if len(out) > maxRecent {
		out = out[:maxRecent]
	}
	return out
}
