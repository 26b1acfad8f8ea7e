package stats

import (
	"bytes"
	"context"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"soroban-watch/internal/domain"
	"soroban-watch/internal/storage/memory"
	"soroban-watch/internal/strkey"
)

type fakeTxSource struct {
	txs []domain.Transaction
}

func (f fakeTxSource) Scan(context.Context, string) []domain.Transaction {
	return f.txs
}

type fakeEvSource struct {
	evs []domain.Event
}

func (f fakeEvSource) Fetch(context.Context, string) []domain.Event {
	return f.evs
}

// validContractID builds a well-formed C... strkey for tests.
func validContractID(t *testing.T, fill byte) string {
	t.Helper()
	id, err := strkey.EncodeContract(bytes.Repeat([]byte{fill}, 32))
	require.NoError(t, err)
	return id
}

func tx(hash string, ledger int64, createdAt, fee string) domain.Transaction {
	return domain.Transaction{
		ID:         hash,
		Hash:       hash,
		Ledger:     ledger,
		CreatedAt:  createdAt,
		FeeCharged: fee,
		Successful: true,
	}
}

func ev(id string, ledger int64, timestamp string) domain.Event {
	return domain.Event{
		ID:        id,
		Type:      "transfer",
		Ledger:    ledger,
		Timestamp: timestamp,
	}
}

func TestCompute_AverageFee(t *testing.T) {
	agg := New(
		fakeTxSource{txs: []domain.Transaction{
			tx("a", 3, "2025-06-01T10:00:00Z", "0.0000100"),
			tx("b", 2, "2025-06-01T09:00:00Z", "0.0000200"),
			tx("c", 1, "2025-06-01T08:00:00Z", "0.0000300"),
		}},
		fakeEvSource{},
	)

	s, err := agg.Compute(context.Background(), validContractID(t, 1))
	require.NoError(t, err)

	assert.Equal(t, 3, s.TotalTx)
	assert.Equal(t, "0.0000200", s.AvgFee)
}

func TestCompute_ZeroTransactions_AvgFeeIsLiteralZero(t *testing.T) {
	agg := New(fakeTxSource{}, fakeEvSource{})

	s, err := agg.Compute(context.Background(), validContractID(t, 1))
	require.NoError(t, err)

	assert.Equal(t, "0", s.AvgFee)
	assert.Equal(t, 0, s.TotalTx)
	assert.Nil(t, s.LastActivity)
}

func TestCompute_LastActivity_FromEventsOnly(t *testing.T) {
	agg := New(
		fakeTxSource{},
		fakeEvSource{evs: []domain.Event{
			ev("e1", 10, "2025-06-01T10:00:00Z"),
			ev("e2", 11, "2025-06-01T11:00:00Z"),
		}},
	)

	s, err := agg.Compute(context.Background(), validContractID(t, 2))
	require.NoError(t, err)

	require.NotNil(t, s.LastActivity)
	assert.Equal(t, "2025-06-01T11:00:00Z", *s.LastActivity)
	assert.Equal(t, 2, s.TotalEvents)
}

func TestCompute_LastActivity_MaxAcrossSources(t *testing.T) {
	// Deliberately unsorted inputs: lastActivity must be the greatest
	// instant regardless of incoming order.
	agg := New(
		fakeTxSource{txs: []domain.Transaction{
			tx("a", 1, "2025-06-01T08:00:00Z", "100"),
			tx("b", 3, "2025-06-01T12:00:00Z", "100"),
			tx("c", 2, "2025-06-01T10:00:00Z", "100"),
		}},
		fakeEvSource{evs: []domain.Event{
			ev("e1", 2, "2025-06-01T09:00:00Z"),
			ev("e2", 4, "2025-06-01T11:00:00Z"),
		}},
	)

	s, err := agg.Compute(context.Background(), validContractID(t, 3))
	require.NoError(t, err)

	require.NotNil(t, s.LastActivity)
	assert.Equal(t, "2025-06-01T12:00:00Z", *s.LastActivity)
}

func TestCompute_ClampsTo20(t *testing.T) {
	var txs []domain.Transaction
	var evs []domain.Event
	for i := 0; i < 30; i++ {
		ts := fmt.Sprintf("2025-06-01T10:%02d:00Z", i)
		txs = append(txs, tx(fmt.Sprintf("tx%d", i), int64(100-i), ts, "100"))
		evs = append(evs, ev(fmt.Sprintf("ev%d", i), int64(i), ts))
	}

	agg := New(fakeTxSource{txs: txs}, fakeEvSource{evs: evs})

	s, err := agg.Compute(context.Background(), validContractID(t, 4))
	require.NoError(t, err)

	assert.Len(t, s.Transactions, 20)
	assert.Len(t, s.Events, 20)
	assert.Equal(t, 30, s.TotalTx)
	assert.Equal(t, 30, s.TotalEvents)
	assert.GreaterOrEqual(t, s.TotalTx, len(s.Transactions))

	// Events arrive oldest-first from the source; the record keeps the
	// most recent 20 in ledger-descending order.
	assert.Equal(t, int64(29), s.Events[0].Ledger)
	assert.Equal(t, int64(10), s.Events[19].Ledger)
	assert.Equal(t, int64(100), s.Transactions[0].Ledger)
}

func TestCompute_InvalidContractID(t *testing.T) {
	agg := New(fakeTxSource{}, fakeEvSource{})

	for _, id := range []string{
		"",
		"not-a-strkey",
		"GAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAWHF", // account prefix
	} {
		_, err := agg.Compute(context.Background(), id)
		assert.ErrorIs(t, err, ErrInvalidContractID, "id %q", id)
	}
}

func TestCompute_MetadataFromRegistry(t *testing.T) {
	id := validContractID(t, 5)

	store := memory.NewContractStore()
	require.NoError(t, store.Insert(context.Background(), &domain.ContractRef{
		ContractID: id,
		Name:       "Token Vault",
		Network:    "mainnet",
	}))

	agg := New(fakeTxSource{}, fakeEvSource{}, WithContractStore(store))

	s, err := agg.Compute(context.Background(), id)
	require.NoError(t, err)
	assert.Equal(t, "Token Vault", s.ContractName)
	assert.Equal(t, "mainnet", s.Network)
}

func TestCompute_MetadataDefaults(t *testing.T) {
	agg := New(fakeTxSource{}, fakeEvSource{}, WithContractStore(memory.NewContractStore()))

	s, err := agg.Compute(context.Background(), validContractID(t, 6))
	require.NoError(t, err)
	assert.Equal(t, DefaultContractName, s.ContractName)
	assert.Equal(t, DefaultNetwork, s.Network)
}

func TestToLegacy_FieldEquivalence(t *testing.T) {
	agg := New(
		fakeTxSource{txs: []domain.Transaction{
			tx("a", 2, "2025-06-01T10:00:00Z", "0.0000100"),
			tx("b", 1, "2025-06-01T09:00:00Z", "0.0000300"),
		}},
		fakeEvSource{evs: []domain.Event{
			ev("e1", 3, "2025-06-01T11:00:00Z"),
		}},
	)

	s, err := agg.Compute(context.Background(), validContractID(t, 7))
	require.NoError(t, err)

	legacy := ToLegacy(s)

	assert.Equal(t, s.ContractID, legacy.ContractID)
	assert.Equal(t, s.TotalTx, legacy.TotalTransactions)
	assert.Equal(t, s.TotalEvents, legacy.TotalEvents)
	assert.Equal(t, s.AvgFee, legacy.AverageFee)
	assert.Equal(t, s.LastActivity, legacy.LastInteraction)
	assert.Equal(t, s.Transactions, legacy.RecentTransactions)
}
