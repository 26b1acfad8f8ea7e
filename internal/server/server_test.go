package server

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"soroban-watch/internal/domain"
	sorobanstub "soroban-watch/internal/soroban/stub"
	"soroban-watch/internal/stats"
	"soroban-watch/internal/storage/memory"
	"soroban-watch/internal/strkey"
)

type fixedTxSource struct {
	txs []domain.Transaction
}

func (f fixedTxSource) Scan(context.Context, string) []domain.Transaction {
	return f.txs
}

type fixedEvSource struct {
	evs []domain.Event
}

func (f fixedEvSource) Fetch(context.Context, string) []domain.Event {
	return f.evs
}

func validContractID(t *testing.T) string {
	t.Helper()
	id, err := strkey.EncodeContract(bytes.Repeat([]byte{9}, 32))
	require.NoError(t, err)
	return id
}

func newTestServer(t *testing.T, txs []domain.Transaction, evs []domain.Event) (*httptest.Server, string) {
	t.Helper()

	agg := stats.New(fixedTxSource{txs: txs}, fixedEvSource{evs: evs})
	srv := New(Options{
		Aggregator: agg,
		Soroban:    sorobanstub.NewClient(),
		RefreshLog: memory.NewRefreshLogStore(),
		Contracts:  memory.NewContractStore(),
	})

	ts := httptest.NewServer(srv.Handler())
	t.Cleanup(ts.Close)
	return ts, validContractID(t)
}

func getJSON(t *testing.T, url string) (int, map[string]json.RawMessage) {
	t.Helper()

	resp, err := http.Get(url)
	require.NoError(t, err)
	defer resp.Body.Close()

	var body map[string]json.RawMessage
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	return resp.StatusCode, body
}

func sampleTxs(n int) []domain.Transaction {
	txs := make([]domain.Transaction, n)
	for i := range txs {
		txs[i] = domain.Transaction{
			Hash:       string(rune('a' + i)),
			Ledger:     int64(100 - i),
			CreatedAt:  "2025-06-01T10:00:00Z",
			FeeCharged: "0.0000100",
		}
	}
	return txs
}

func TestStatsRoute(t *testing.T) {
	ts, id := newTestServer(t, sampleTxs(3), []domain.Event{
		{ID: "e1", Ledger: 101, Timestamp: "2025-06-01T11:00:00Z"},
	})

	status, body := getJSON(t, ts.URL+"/stats/"+id)
	require.Equal(t, http.StatusOK, status)
	assert.JSONEq(t, `true`, string(body["success"]))

	var record domain.ContractStats
	require.NoError(t, json.Unmarshal(body["stats"], &record))
	assert.Equal(t, 3, record.TotalTx)
	assert.Equal(t, 1, record.TotalEvents)
	assert.Equal(t, "0.0000100", record.AvgFee)
	require.NotNil(t, record.LastActivity)
	assert.Equal(t, "2025-06-01T11:00:00Z", *record.LastActivity)
}

func TestStatsRoute_InvalidID(t *testing.T) {
	ts, _ := newTestServer(t, nil, nil)

	status, body := getJSON(t, ts.URL+"/stats/not-a-contract")
	assert.Equal(t, http.StatusBadRequest, status)
	assert.JSONEq(t, `false`, string(body["success"]))
}

func TestLegacyRoute_ValueEquivalence(t *testing.T) {
	ts, id := newTestServer(t, sampleTxs(3), nil)

	_, canonicalBody := getJSON(t, ts.URL+"/stats/"+id)
	_, legacyBody := getJSON(t, ts.URL+"/contracts/"+id+"/stats")

	var canonical domain.ContractStats
	require.NoError(t, json.Unmarshal(canonicalBody["stats"], &canonical))
	var legacy domain.LegacyContractStats
	require.NoError(t, json.Unmarshal(legacyBody["stats"], &legacy))

	assert.Equal(t, canonical.TotalTx, legacy.TotalTransactions)
	assert.Equal(t, canonical.TotalEvents, legacy.TotalEvents)
	assert.Equal(t, canonical.AvgFee, legacy.AverageFee)
	assert.Equal(t, canonical.LastActivity, legacy.LastInteraction)
}

func TestLegacyRoute_RecentSlicedTo10(t *testing.T) {
	ts, id := newTestServer(t, sampleTxs(15), nil)

	_, body := getJSON(t, ts.URL+"/contracts/"+id+"/stats")

	var legacy domain.LegacyContractStats
	require.NoError(t, json.Unmarshal(body["stats"], &legacy))
	assert.Len(t, legacy.RecentTransactions, 10)
	assert.Equal(t, 15, legacy.TotalTransactions)
}

func TestTransactionsRoute_Limit(t *testing.T) {
	ts, id := newTestServer(t, sampleTxs(8), nil)

	status, body := getJSON(t, ts.URL+"/contracts/"+id+"/transactions?limit=5")
	require.Equal(t, http.StatusOK, status)

	var txs []domain.Transaction
	require.NoError(t, json.Unmarshal(body["transactions"], &txs))
	assert.Len(t, txs, 5)
	assert.JSONEq(t, `8`, string(body["count"]))
}

func TestEventsRoute(t *testing.T) {
	evs := []domain.Event{
		{ID: "e1", Ledger: 5, Timestamp: "2025-06-01T10:00:00Z"},
		{ID: "e2", Ledger: 6, Timestamp: "2025-06-01T10:01:00Z"},
	}
	ts, id := newTestServer(t, nil, evs)

	status, body := getJSON(t, ts.URL+"/contracts/"+id+"/events")
	require.Equal(t, http.StatusOK, status)

	var got []domain.Event
	require.NoError(t, json.Unmarshal(body["events"], &got))
	assert.Len(t, got, 2)
	assert.Equal(t, "e2", got[0].ID, "events are served ledger-descending")
}

func TestContractsRoute(t *testing.T) {
	agg := stats.New(fixedTxSource{}, fixedEvSource{})
	contracts := memory.NewContractStore()
	require.NoError(t, contracts.Insert(context.Background(), &domain.ContractRef{
		ContractID: "CALPHA",
		Name:       "Alpha",
		Network:    "testnet",
		DeployedAt: time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC),
	}))

	srv := New(Options{Aggregator: agg, Contracts: contracts})
	ts := httptest.NewServer(srv.Handler())
	defer ts.Close()

	status, body := getJSON(t, ts.URL+"/contracts")
	require.Equal(t, http.StatusOK, status)

	var views []map[string]interface{}
	require.NoError(t, json.Unmarshal(body["contracts"], &views))
	require.Len(t, views, 1)
	assert.Equal(t, "Alpha", views[0]["name"])
}

func TestHealthRoute(t *testing.T) {
	ts, _ := newTestServer(t, nil, nil)

	resp, err := http.Get(ts.URL + "/health")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestStatusRoute(t *testing.T) {
	agg := stats.New(fixedTxSource{}, fixedEvSource{})
	rpc := sorobanstub.NewClient()
	rpc.Ledger = 777

	srv := New(Options{Aggregator: agg, Soroban: rpc})
	ts := httptest.NewServer(srv.Handler())
	defer ts.Close()

	status, body := getJSON(t, ts.URL+"/status")
	require.Equal(t, http.StatusOK, status)
	assert.JSONEq(t, `"healthy"`, string(body["rpcStatus"]))
	assert.JSONEq(t, `777`, string(body["latestLedger"]))
}

func TestRefreshesRoute(t *testing.T) {
	agg := stats.New(fixedTxSource{}, fixedEvSource{})
	refreshLog := memory.NewRefreshLogStore()
	require.NoError(t, refreshLog.Insert(context.Background(), &domain.RefreshRecord{
		ContractID:  "CALPHA",
		Kind:        domain.RefreshInitial,
		TotalTx:     4,
		RefreshedAt: time.Now().UTC(),
	}))

	srv := New(Options{Aggregator: agg, RefreshLog: refreshLog})
	ts := httptest.NewServer(srv.Handler())
	defer ts.Close()

	status, body := getJSON(t, ts.URL+"/contracts/CALPHA/refreshes")
	require.Equal(t, http.StatusOK, status)

	var records []map[string]interface{}
	require.NoError(t, json.Unmarshal(body["refreshes"], &records))
	assert.Len(t, records, 1)
}
