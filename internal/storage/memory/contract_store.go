package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"soroban-watch/internal/domain"
	"soroban-watch/internal/storage"
)

// ContractStore is an in-memory implementation of storage.ContractStore.
type ContractStore struct {
	mu   sync.RWMutex
	data map[string]*domain.ContractRef // keyed by contract_id
}

// NewContractStore creates a new in-memory contract store.
func NewContractStore() *ContractStore {
	return &ContractStore{
		data: make(map[string]*domain.ContractRef),
	}
}

// Insert adds a new contract. Returns ErrDuplicateKey if contract_id exists.
func (s *ContractStore) Insert(_ context.Context, c *domain.ContractRef) error {
	if c == nil || c.ContractID == "" {
		return storage.ErrInvalidInput
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.data[c.ContractID]; exists {
		return storage.ErrDuplicateKey
	}

	// Store a copy to prevent external mutation
	refCopy := *c
	s.data[c.ContractID] = &refCopy
	return nil
}

// GetByID retrieves a contract by its ID. Returns ErrNotFound if not exists.
func (s *ContractStore) GetByID(_ context.Context, contractID string) (*domain.ContractRef, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	c, exists := s.data[contractID]
	if !exists {
		return nil, storage.ErrNotFound
	}

	refCopy := *c
	return &refCopy, nil
}

// List retrieves all contracts, ordered by deployed_at DESC.
func (s *ContractStore) List(_ context.Context) ([]*domain.ContractRef, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make([]*domain.ContractRef, 0, len(s.data))
	for _, c := range s.data {
		refCopy := *c
		result = append(result, &refCopy)
	}

	sort.Slice(result, func(i, j int) bool {
		return result[i].DeployedAt.After(result[j].DeployedAt)
	})

	return result, nil
}

// UpdateActivity writes back the observed transaction count and last-updated
// instant. Returns ErrNotFound if contract_id not exists.
func (s *ContractStore) UpdateActivity(_ context.Context, contractID string, txCount int, updatedAt time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	c, exists := s.data[contractID]
	if !exists {
		return storage.ErrNotFound
	}

	c.LastSeenTxCount = txCount
	c.LastUpdated = updatedAt
	return nil
}

// Verify interface compliance at compile time.
var _ storage.ContractStore = (*ContractStore)(nil)
