package storage

import (
	"context"
	"time"

	"soroban-watch/internal/domain"
)

// ContractStore provides access to the local contract registry.
//
// The aggregation engine reads metadata from it and writes back only the
// activity fields after a successful statistics fetch; creating and deleting
// rows belongs to the deployment tooling.
type ContractStore interface {
	// Insert adds a new contract. Returns ErrDuplicateKey if contract_id exists.
	Insert(ctx context.Context, c *domain.ContractRef) error

	// GetByID retrieves a contract by its ID. Returns ErrNotFound if not exists.
	GetByID(ctx context.Context, contractID string) (*domain.ContractRef, error)

	// List retrieves all contracts, ordered by deployed_at DESC.
	List(ctx context.Context) ([]*domain.ContractRef, error)

	// UpdateActivity writes back the observed transaction count and
	// last-updated instant. Returns ErrNotFound if contract_id not exists.
	UpdateActivity(ctx context.Context, contractID string, txCount int, updatedAt time.Time) error
}

// RefreshLogStore records completed refresh outcomes. It is append-only and
// purely an observability sink: statistics are recomputed on every request
// and never read back from here.
type RefreshLogStore interface {
	// Insert appends one refresh record.
	Insert(ctx context.Context, r *domain.RefreshRecord) error

	// ListRecent retrieves the most recent records for a contract,
	// newest first, up to limit.
	ListRecent(ctx context.Context, contractID string, limit int) ([]*domain.RefreshRecord, error)
}
