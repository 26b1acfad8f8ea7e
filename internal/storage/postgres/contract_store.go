package postgres

import (
	"context"
	"fmt"
	"time"

	"soroban-watch/internal/domain"
	"soroban-watch/internal/storage"
)

// ContractStore implements storage.ContractStore using PostgreSQL.
type ContractStore struct {
	pool *Pool
}

// NewContractStore creates a new ContractStore.
func NewContractStore(pool *Pool) *ContractStore {
	return &ContractStore{pool: pool}
}

// Compile-time interface check.
var _ storage.ContractStore = (*ContractStore)(nil)

// Insert adds a new contract. Returns ErrDuplicateKey if contract_id exists.
func (s *ContractStore) Insert(ctx context.Context, c *domain.ContractRef) error {
	query := `
		INSERT INTO contracts (
			contract_id, name, network, deployed_at, last_seen_tx_count, last_updated
		) VALUES ($1, $2, $3, $4, $5, $6)
	`

	_, err := s.pool.Exec(ctx, query,
		c.ContractID,
		c.Name,
		c.Network,
		c.DeployedAt,
		c.LastSeenTxCount,
		c.LastUpdated,
	)
	if err != nil {
		if isDuplicateKeyError(err) {
			return storage.ErrDuplicateKey
		}
		return fmt.Errorf("insert contract: %w", err)
	}
	return nil
}

// GetByID retrieves a contract by its ID. Returns ErrNotFound if not exists.
func (s *ContractStore) GetByID(ctx context.Context, contractID string) (*domain.ContractRef, error) {
	query := `
		SELECT contract_id, name, network, deployed_at, last_seen_tx_count, last_updated
		FROM contracts
		WHERE contract_id = $1
	`

	var c domain.ContractRef
	err := s.pool.QueryRow(ctx, query, contractID).Scan(
		&c.ContractID,
		&c.Name,
		&c.Network,
		&c.DeployedAt,
		&c.LastSeenTxCount,
		&c.LastUpdated,
	)
	if err != nil {
		if isNotFoundError(err) {
			return nil, storage.ErrNotFound
		}
		return nil, fmt.Errorf("get contract by id: %w", err)
	}
	return &c, nil
}

// List retrieves all contracts, ordered by deployed_at DESC.
func (s *ContractStore) List(ctx context.Context) ([]*domain.ContractRef, error) {
	query := `
		SELECT contract_id, name, network, deployed_at, last_seen_tx_count, last_updated
		FROM contracts
		ORDER BY deployed_at DESC, contract_id ASC
	`

	rows, err := s.pool.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("list contracts: %w", err)
	}
	defer rows.Close()

	var result []*domain.ContractRef
	for rows.Next() {
		var c domain.ContractRef
		if err := rows.Scan(
			&c.ContractID,
			&c.Name,
			&c.Network,
			&c.DeployedAt,
			&c.LastSeenTxCount,
			&c.LastUpdated,
		); err != nil {
			return nil, fmt.Errorf("scan contract: %w", err)
		}
		result = append(result, &c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate contracts: %w", err)
	}
	return result, nil
}

// UpdateActivity writes back the observed transaction count and last-updated
// instant. Returns ErrNotFound if contract_id not exists.
func (s *ContractStore) UpdateActivity(ctx context.Context, contractID string, txCount int, updatedAt time.Time) error {
	query := `
		UPDATE contracts
		SET last_seen_tx_count = $2, last_updated = $3
		WHERE contract_id = $1
	`

	tag, err := s.pool.Exec(ctx, query, contractID, txCount, updatedAt)
	if err != nil {
		return fmt.Errorf("update contract activity: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return storage.ErrNotFound
	}
	return nil
}
