package clickhouse

import (
	"context"
	"fmt"
	"time"

	"soroban-watch/internal/domain"
	"soroban-watch/internal/storage"
)

// RefreshLogStore implements storage.RefreshLogStore using ClickHouse.
//
// Refresh outcomes are append-only observability data, a natural fit for a
// MergeTree table. Statistics themselves are never read back from here.
type RefreshLogStore struct {
	conn *Conn
}

// NewRefreshLogStore creates a new RefreshLogStore.
func NewRefreshLogStore(conn *Conn) *RefreshLogStore {
	return &RefreshLogStore{conn: conn}
}

// Compile-time interface check.
var _ storage.RefreshLogStore = (*RefreshLogStore)(nil)

// Insert appends one refresh record.
func (s *RefreshLogStore) Insert(ctx context.Context, r *domain.RefreshRecord) error {
	if r == nil || r.ContractID == "" {
		return storage.ErrInvalidInput
	}

	batch, err := s.conn.PrepareBatch(ctx, `
		INSERT INTO refresh_log (
			contract_id, kind, total_tx, total_events, avg_fee,
			last_activity, duration_ms, error, refreshed_at
		)
	`)
	if err != nil {
		return fmt.Errorf("prepare batch: %w", err)
	}

	err = batch.Append(
		r.ContractID, r.Kind, uint32(r.TotalTx), uint32(r.TotalEvents), r.AvgFee,
		r.LastActivity, uint64(r.DurationMs), r.Err, r.RefreshedAt,
	)
	if err != nil {
		return fmt.Errorf("append to batch: %w", err)
	}

	if err := batch.Send(); err != nil {
		return fmt.Errorf("send batch: %w", err)
	}

	return nil
}

// ListRecent retrieves the most recent records for a contract, newest first.
func (s *RefreshLogStore) ListRecent(ctx context.Context, contractID string, limit int) ([]*domain.RefreshRecord, error) {
	query := `
		SELECT contract_id, kind, total_tx, total_events, avg_fee,
		       last_activity, duration_ms, error, refreshed_at
		FROM refresh_log
		WHERE contract_id = ?
		ORDER BY refreshed_at DESC
		LIMIT ?
	`

	rows, err := s.conn.Query(ctx, query, contractID, uint64(limit))
	if err != nil {
		return nil, fmt.Errorf("query refresh log: %w", err)
	}
	defer rows.Close()

	var records []*domain.RefreshRecord
	for rows.Next() {
		var r domain.RefreshRecord
		var totalTx, totalEvents uint32
		var durationMs uint64
		var refreshedAt time.Time

		err := rows.Scan(
			&r.ContractID, &r.Kind, &totalTx, &totalEvents, &r.AvgFee,
			&r.LastActivity, &durationMs, &r.Err, &refreshedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("scan refresh log row: %w", err)
		}

		r.TotalTx = int(totalTx)
		r.TotalEvents = int(totalEvents)
		r.DurationMs = int64(durationMs)
		r.RefreshedAt = refreshedAt
		records = append(records, &r)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate refresh log rows: %w", err)
	}

	return records, nil
}
