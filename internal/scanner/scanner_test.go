package scanner

import (
	"context"
	"encoding/json"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"soroban-watch/internal/domain"
	"soroban-watch/internal/horizon/stub"
)

const contractID = "CDLZFC3SYJYDZT7K67VZ75HPJVIEUVNIXF47ZG2FB2RMQQVU2HHGCYSC"

func invokeOp(payload string) domain.Operation {
	return domain.Operation{
		Type: string(domain.OpInvokeHostFunction),
		Raw:  json.RawMessage(payload),
	}
}

func paymentOp() domain.Operation {
	return domain.Operation{
		Type: "payment",
		Raw:  json.RawMessage(`{"type":"payment","amount":"10"}`),
	}
}

func page(ledgerStart int64, hashes ...string) []domain.Transaction {
	txs := make([]domain.Transaction, len(hashes))
	for i, h := range hashes {
		txs[i] = domain.Transaction{
			ID:          h,
			Hash:        h,
			Ledger:      ledgerStart - int64(i),
			CreatedAt:   "2025-06-01T10:00:00Z",
			FeeCharged:  "100",
			Successful:  true,
			PagingToken: fmt.Sprintf("pt-%s", h),
		}
	}
	return txs
}

func TestScan_MatchesAcrossPages(t *testing.T) {
	client := stub.NewClient()
	client.Pages = [][]domain.Transaction{
		page(100, "a", "b"),
		page(98, "c"),
	}
	client.Ops["a"] = []domain.Operation{paymentOp()}
	client.Ops["b"] = []domain.Operation{invokeOp(`{"type":"invoke_host_function","parameters":["` + contractID + `"]}`)}
	client.Ops["c"] = []domain.Operation{invokeOp(`{"type":"invoke_host_function","parameters":["` + contractID + `"]}`)}

	s := New(client, WithPageLimit(2))
	matches := s.Scan(context.Background(), contractID)

	require.Len(t, matches, 2)
	assert.Equal(t, "b", matches[0].Hash)
	assert.Equal(t, "c", matches[1].Hash)
}

func TestScan_ExplicitFieldMatch(t *testing.T) {
	client := stub.NewClient()
	client.Pages = [][]domain.Transaction{page(50, "a", "b", "c")}
	client.Ops["a"] = []domain.Operation{{Type: "payment", ContractID: contractID}}
	client.Ops["b"] = []domain.Operation{{Type: "payment", SourceAccount: contractID}}
	client.Ops["c"] = []domain.Operation{{Type: "payment", Function: "transfer", Contract: contractID}}

	s := New(client)
	matches := s.Scan(context.Background(), contractID)

	assert.Len(t, matches, 3)
}

func TestScan_NonSorobanTypeSubstringIgnored(t *testing.T) {
	client := stub.NewClient()
	client.Pages = [][]domain.Transaction{page(50, "a")}
	// The identifier appears in the payload but the operation type is not a
	// Soroban-capable one and no explicit field matches.
	client.Ops["a"] = []domain.Operation{{
		Type: "payment",
		Raw:  json.RawMessage(`{"memo":"` + contractID + `"}`),
	}}

	s := New(client)
	matches := s.Scan(context.Background(), contractID)

	assert.Empty(t, matches)
}

func TestScan_StopsAtMaxMatches(t *testing.T) {
	client := stub.NewClient()

	hashes := make([]string, 30)
	for i := range hashes {
		hashes[i] = fmt.Sprintf("tx%02d", i)
	}
	client.Pages = [][]domain.Transaction{page(200, hashes...)}
	for _, h := range hashes {
		client.Ops[h] = []domain.Operation{{Type: "payment", ContractID: contractID}}
	}

	s := New(client, WithPageLimit(30))
	matches := s.Scan(context.Background(), contractID)

	assert.Len(t, matches, DefaultMaxMatches)
}

func TestScan_PageBudget(t *testing.T) {
	client := stub.NewClient()
	// Every page is full so the feed never looks exhausted; nothing matches.
	for i := 0; i < 15; i++ {
		client.Pages = append(client.Pages, page(int64(1000-2*i), fmt.Sprintf("a%d", i), fmt.Sprintf("b%d", i)))
	}

	s := New(client, WithPageLimit(2), WithMaxPages(10))
	matches := s.Scan(context.Background(), contractID)

	assert.Empty(t, matches)
	pages, _ := client.CallCounts()
	assert.Equal(t, 10, pages, "scan must stop after the page cap")
}

func TestScan_ShortPageEndsScan(t *testing.T) {
	client := stub.NewClient()
	client.Pages = [][]domain.Transaction{
		page(100, "a"), // shorter than the page limit
		page(98, "b"),
	}
	client.Ops["a"] = []domain.Operation{paymentOp()}

	s := New(client, WithPageLimit(2))
	s.Scan(context.Background(), contractID)

	pages, _ := client.CallCounts()
	assert.Equal(t, 1, pages, "a short page means the feed is exhausted")
}

func TestScan_NoDuplicateHashes(t *testing.T) {
	client := stub.NewClient()
	client.Pages = [][]domain.Transaction{
		page(100, "a", "a"), // duplicate within the feed
	}
	client.Ops["a"] = []domain.Operation{{Type: "payment", ContractID: contractID}}

	s := New(client, WithPageLimit(2))
	matches := s.Scan(context.Background(), contractID)

	assert.Len(t, matches, 1)
}

func TestScan_OperationFailureSkipsTransaction(t *testing.T) {
	client := stub.NewClient()
	client.Pages = [][]domain.Transaction{page(100, "a", "b")}
	client.OpsErr["a"] = stub.ErrUnavailable
	client.Ops["b"] = []domain.Operation{{Type: "payment", ContractID: contractID}}

	s := New(client, WithPageLimit(2))
	matches := s.Scan(context.Background(), contractID)

	require.Len(t, matches, 1)
	assert.Equal(t, "b", matches[0].Hash)
}

func TestScan_TotalFailureReturnsEmpty(t *testing.T) {
	client := stub.NewClient()
	client.FailAfter = 0

	s := New(client)
	matches := s.Scan(context.Background(), contractID)

	assert.NotNil(t, matches)
	assert.Empty(t, matches)
}

func TestScan_MidScanFailureReturnsPartial(t *testing.T) {
	client := stub.NewClient()
	client.Pages = [][]domain.Transaction{
		page(100, "a", "b"),
		page(98, "c", "d"),
		page(96, "e", "f"),
	}
	client.FailAfter = 2 // third page fetch fails
	for _, h := range []string{"a", "b", "c", "d"} {
		client.Ops[h] = []domain.Operation{{Type: "payment", ContractID: contractID}}
	}

	s := New(client, WithPageLimit(2))
	matches := s.Scan(context.Background(), contractID)

	assert.Len(t, matches, 4, "matches found before the failure are returned")
}
