// Package horizon provides a minimal client for the Horizon REST API:
// the paginated transaction feed and per-transaction operation listings.
package horizon

import (
	"context"

	"soroban-watch/internal/domain"
)

// Client defines the Horizon queries the scanner depends on.
type Client interface {
	// Transactions fetches one page of recent ledger transactions.
	Transactions(ctx context.Context, req TransactionsRequest) ([]domain.Transaction, error)

	// Operations fetches the ordered operations of a transaction.
	Operations(ctx context.Context, txHash string) ([]domain.Operation, error)
}

// TransactionsRequest describes one page request against /transactions.
type TransactionsRequest struct {
	// Cursor is the paging token to continue from; empty starts at the
	// newest record.
	Cursor string
	// Limit is the page size ceiling (Horizon caps at 200).
	Limit int
	// Order is "asc" or "desc"; empty defaults to "desc".
	Order string
}
