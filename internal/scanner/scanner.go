// Package scanner implements the depth-bounded transaction scan: it walks
// the Horizon feed backward in time and keeps the transactions whose
// operations involve a given contract.
package scanner

import (
	"context"
	"strings"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"soroban-watch/internal/domain"
	"soroban-watch/internal/horizon"
	"soroban-watch/internal/observability"
)

// Default scan budgets. The total number of external calls is bounded by
// maxPages page fetches plus pageLimit operation fetches per page.
const (
	DefaultPageLimit     = 200
	DefaultMaxPages      = 10
	DefaultMaxMatches    = 20
	DefaultOpConcurrency = 10
)

// Scanner walks the transaction feed newest-first and filters for contract
// involvement. The search is best-effort: failures are absorbed and the
// matches found so far are returned.
type Scanner struct {
	horizon       horizon.Client
	logger        *zap.Logger
	pageLimit     int
	maxPages      int
	maxMatches    int
	opConcurrency int
}

// Option configures a Scanner.
type Option func(*Scanner)

// WithPageLimit sets the page size requested from Horizon.
func WithPageLimit(n int) Option {
	return func(s *Scanner) {
		s.pageLimit = n
	}
}

// WithMaxPages caps the number of pages fetched per scan.
func WithMaxPages(n int) Option {
	return func(s *Scanner) {
		s.maxPages = n
	}
}

// WithMaxMatches sets the match count at which the scan stops early.
func WithMaxMatches(n int) Option {
	return func(s *Scanner) {
		s.maxMatches = n
	}
}

// WithOpConcurrency caps concurrent operation fetches within a page.
func WithOpConcurrency(n int) Option {
	return func(s *Scanner) {
		s.opConcurrency = n
	}
}

// WithLogger sets the logger.
func WithLogger(l *zap.Logger) Option {
	return func(s *Scanner) {
		s.logger = l
	}
}

// New creates a Scanner over the given Horizon client.
func New(client horizon.Client, opts ...Option) *Scanner {
	s := &Scanner{
		horizon:       client,
		logger:        zap.NewNop(),
		pageLimit:     DefaultPageLimit,
		maxPages:      DefaultMaxPages,
		maxMatches:    DefaultMaxMatches,
		opConcurrency: DefaultOpConcurrency,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Scan returns up to maxMatches transactions involving the contract, in the
// order scanned (ledger-descending, since pages are requested newest-first).
// Source failures degrade to the matches collected so far, never an error:
// the aggregator treats zero transactions as a valid, if degraded, result.
func (s *Scanner) Scan(ctx context.Context, contractID string) []domain.Transaction {
	matches := make([]domain.Transaction, 0, s.maxMatches)
	seen := make(map[string]struct{}, s.maxMatches)
	cursor := ""

	for page := 0; page < s.maxPages && len(matches) < s.maxMatches; page++ {
		records, err := s.horizon.Transactions(ctx, horizon.TransactionsRequest{
			Cursor: cursor,
			Limit:  s.pageLimit,
			Order:  "desc",
		})
		if err != nil {
			observability.RecordSourceFailure("horizon")
			s.logger.Warn("transaction page fetch failed, returning partial scan",
				zap.String("contract_id", contractID),
				zap.Int("page", page),
				zap.Int("matches", len(matches)),
				zap.Error(err))
			return matches
		}
		observability.RecordPageFetched()

		if len(records) == 0 {
			break
		}

		involved := s.checkPage(ctx, records, contractID)

		for i, tx := range records {
			if !involved[i] {
				cursor = tx.PagingToken
				continue
			}
			if _, dup := seen[tx.Hash]; !dup {
				seen[tx.Hash] = struct{}{}
				matches = append(matches, tx)
				observability.RecordMatch()
			}
			cursor = tx.PagingToken
			if len(matches) >= s.maxMatches {
				break
			}
		}

		// A short page means the feed is exhausted.
		if len(records) < s.pageLimit {
			break
		}
	}

	s.logger.Debug("scan complete",
		zap.String("contract_id", contractID),
		zap.Int("matches", len(matches)))
	return matches
}

// checkPage evaluates the involvement predicate for every transaction of a
// page. Operation fetches are independent read-only sub-queries, so they run
// concurrently with a bounded fan-out; a failed fetch counts as no match.
func (s *Scanner) checkPage(ctx context.Context, records []domain.Transaction, contractID string) []bool {
	involved := make([]bool, len(records))

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(s.opConcurrency)

	for i, tx := range records {
		g.Go(func() error {
			ops, err := s.horizon.Operations(ctx, tx.Hash)
			if err != nil {
				observability.RecordOperationFetchError()
				s.logger.Debug("operation fetch failed, skipping transaction",
					zap.String("tx_hash", tx.Hash),
					zap.Error(err))
				return nil
			}
			involved[i] = involvesContract(ops, contractID)
			return nil
		})
	}

	// Goroutines only return nil; Wait is for joining.
	_ = g.Wait()
	return involved
}

// involvesContract is the involvement predicate: a transaction involves the
// contract if any operation of a Soroban-capable type textually contains the
// contract identifier in its serialized payload, or carries the identifier
// in an explicit field. The substring test is a documented heuristic and can
// produce false positives on unrelated payload data.
func involvesContract(ops []domain.Operation, contractID string) bool {
	for _, op := range ops {
		switch domain.OperationType(op.Type) {
		case domain.OpInvokeHostFunction, domain.OpExtendTTL, domain.OpRestoreFootprint:
			if strings.Contains(string(op.Raw), contractID) {
				return true
			}
		}

		if op.ContractID == contractID ||
			op.SourceAccount == contractID ||
			(op.Function != "" && op.Contract == contractID) {
			return true
		}
	}
	return false
}
