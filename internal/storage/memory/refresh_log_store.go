package memory

import (
	"context"
	"sort"
	"sync"

	"soroban-watch/internal/domain"
	"soroban-watch/internal/storage"
)

// RefreshLogStore is an in-memory implementation of storage.RefreshLogStore.
type RefreshLogStore struct {
	mu   sync.RWMutex
	data []*domain.RefreshRecord
}

// NewRefreshLogStore creates a new in-memory refresh log store.
func NewRefreshLogStore() *RefreshLogStore {
	return &RefreshLogStore{}
}

// Insert appends one refresh record.
func (s *RefreshLogStore) Insert(_ context.Context, r *domain.RefreshRecord) error {
	if r == nil || r.ContractID == "" {
		return storage.ErrInvalidInput
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	recCopy := *r
	s.data = append(s.data, &recCopy)
	return nil
}

// ListRecent retrieves the most recent records for a contract, newest first.
func (s *RefreshLogStore) ListRecent(_ context.Context, contractID string, limit int) ([]*domain.RefreshRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var result []*domain.RefreshRecord
	for _, r := range s.data {
		if r.ContractID == contractID {
			recCopy := *r
			result = append(result, &recCopy)
		}
	}

	sort.Slice(result, func(i, j int) bool {
		return result[i].RefreshedAt.After(result[j].RefreshedAt)
	})

	if limit > 0 && limit < len(result) {
		result = result[:limit]
	}
	return result, nil
}

// Verify interface compliance at compile time.
var _ storage.RefreshLogStore = (*RefreshLogStore)(nil)
