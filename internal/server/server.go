// Package server exposes the aggregation engine over HTTP: canonical and
// legacy statistics routes, list endpoints, node status, metrics and a
// WebSocket push channel.
package server

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"go.uber.org/zap"

	"soroban-watch/internal/domain"
	"soroban-watch/internal/observability"
	"soroban-watch/internal/soroban"
	"soroban-watch/internal/stats"
	"soroban-watch/internal/storage"
)

// legacyRecentLimit is how many recent transactions the legacy route carries.
const legacyRecentLimit = 10

// Options configures a Server. Aggregator is required; the rest are optional
// and disable their routes when absent.
type Options struct {
	Aggregator *stats.Aggregator
	Soroban    soroban.Client
	Contracts  storage.ContractStore
	RefreshLog storage.RefreshLogStore
	Hub        *Hub
	Logger     *zap.Logger
}

// Server handles the HTTP API.
type Server struct {
	agg        *stats.Aggregator
	rpc        soroban.Client
	contracts  storage.ContractStore
	refreshLog storage.RefreshLogStore
	hub        *Hub
	logger     *zap.Logger
	started    time.Time
}

// New creates a Server.
func New(opts Options) *Server {
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Server{
		agg:        opts.Aggregator,
		rpc:        opts.Soroban,
		contracts:  opts.Contracts,
		refreshLog: opts.RefreshLog,
		hub:        opts.Hub,
		logger:     logger,
		started:    time.Now(),
	}
}

// Handler builds the route table.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /stats/{contractId}", s.handleStats)
	mux.HandleFunc("GET /contracts/{contractId}/stats", s.handleLegacyStats)
	mux.HandleFunc("GET /contracts/{contractId}/transactions", s.handleTransactions)
	mux.HandleFunc("GET /contracts/{contractId}/events", s.handleEvents)
	mux.HandleFunc("GET /contracts/{contractId}/refreshes", s.handleRefreshes)
	mux.HandleFunc("GET /contracts", s.handleContracts)
	mux.HandleFunc("GET /health", s.handleHealth)
	mux.HandleFunc("GET /status", s.handleStatus)
	mux.Handle("GET /metrics", observability.Handler())

	if s.hub != nil {
		mux.HandleFunc("GET /ws/{contractId}", s.hub.HandleSubscribe)
	}

	return mux
}

func writeJSON(w http.ResponseWriter, status int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(payload)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]interface{}{
		"success": false,
		"error":   msg,
	})
}

// compute runs the aggregator and translates its only error into a 400.
// Returns nil after writing the response on failure.
func (s *Server) compute(w http.ResponseWriter, r *http.Request) *domain.ContractStats {
	contractID := r.PathValue("contractId")

	record, err := s.agg.Compute(r.Context(), contractID)
	if err != nil {
		if errors.Is(err, stats.ErrInvalidContractID) {
			writeError(w, http.StatusBadRequest, "invalid contract id")
			return nil
		}
		s.logger.Error("stats computation failed",
			zap.String("contract_id", contractID),
			zap.Error(err))
		writeError(w, http.StatusInternalServerError, "internal error")
		return nil
	}
	return record
}

func (s *Server) handleStats(w http.ResponseWriter, r *http.Request) {
	start := time.Now()

	record := s.compute(w, r)
	if record == nil {
		observability.RecordStatsRequest("error", time.Since(start).Seconds())
		return
	}
	observability.RecordStatsRequest("ok", time.Since(start).Seconds())

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"success": true,
		"stats":   record,
	})
}

// handleLegacyStats serves the legacy-shaped projection of the same
// computation. Values match the canonical route; only names differ, and the
// recent transaction list carries the legacy limit.
func (s *Server) handleLegacyStats(w http.ResponseWriter, r *http.Request) {
	start := time.Now()

	record := s.compute(w, r)
	if record == nil {
		observability.RecordStatsRequest("error", time.Since(start).Seconds())
		return
	}
	observability.RecordStatsRequest("ok", time.Since(start).Seconds())

	legacy := stats.ToLegacy(record)
	if len(legacy.RecentTransactions) > legacyRecentLimit {
		legacy.RecentTransactions = legacy.RecentTransactions[:legacyRecentLimit]
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"success": true,
		"stats":   legacy,
	})
}

func (s *Server) handleTransactions(w http.ResponseWriter, r *http.Request) {
	record := s.compute(w, r)
	if record == nil {
		return
	}

	txs := record.Transactions
	if limit := queryLimit(r, len(txs)); limit < len(txs) {
		txs = txs[:limit]
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"success":      true,
		"transactions": txs,
		"count":        record.TotalTx,
	})
}

func (s *Server) handleEvents(w http.ResponseWriter, r *http.Request) {
	record := s.compute(w, r)
	if record == nil {
		return
	}

	evs := record.Events
	if limit := queryLimit(r, len(evs)); limit < len(evs) {
		evs = evs[:limit]
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"success": true,
		"events":  evs,
		"count":   record.TotalEvents,
	})
}

// handleRefreshes serves the recorded refresh history, the side-channel that
// distinguishes degraded results from genuine inactivity.
func (s *Server) handleRefreshes(w http.ResponseWriter, r *http.Request) {
	if s.refreshLog == nil {
		writeError(w, http.StatusNotFound, "refresh history not configured")
		return
	}

	contractID := r.PathValue("contractId")
	limit := queryLimit(r, 20)

	records, err := s.refreshLog.ListRecent(r.Context(), contractID, limit)
	if err != nil {
		s.logger.Error("refresh history query failed",
			zap.String("contract_id", contractID),
			zap.Error(err))
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"success":   true,
		"refreshes": records,
	})
}

func (s *Server) handleContracts(w http.ResponseWriter, r *http.Request) {
	if s.contracts == nil {
		writeError(w, http.StatusNotFound, "contract registry not configured")
		return
	}

	refs, err := s.contracts.List(r.Context())
	if err != nil {
		s.logger.Error("contract list failed", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}

	type contractView struct {
		ContractID      string    `json:"contractId"`
		Name            string    `json:"name"`
		Network         string    `json:"network"`
		DeployedAt      time.Time `json:"deployedAt"`
		LastSeenTxCount int       `json:"lastSeenTxCount"`
		LastUpdated     time.Time `json:"lastUpdated"`
	}

	views := make([]contractView, 0, len(refs))
	for _, ref := range refs {
		views = append(views, contractView{
			ContractID:      ref.ContractID,
			Name:            ref.Name,
			Network:         ref.Network,
			DeployedAt:      ref.DeployedAt,
			LastSeenTxCount: ref.LastSeenTxCount,
			LastUpdated:     ref.LastUpdated,
		})
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"success":   true,
		"contracts": views,
	})
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	w.Write([]byte("ok"))
}

// statusResponse is the JSON response for /status.
type statusResponse struct {
	Status       string `json:"status"`
	Uptime       string `json:"uptime"`
	RPCStatus    string `json:"rpcStatus,omitempty"`
	LatestLedger int64  `json:"latestLedger,omitempty"`
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	resp := statusResponse{
		Status: "running",
		Uptime: time.Since(s.started).String(),
	}

	if s.rpc != nil {
		if status, err := s.rpc.Health(r.Context()); err == nil {
			resp.RPCStatus = status
		} else {
			resp.RPCStatus = "unreachable"
		}
		if seq, err := s.rpc.LatestLedger(r.Context()); err == nil {
			resp.LatestLedger = seq
		}
	}

	writeJSON(w, http.StatusOK, resp)
}

// queryLimit reads the limit query parameter, defaulting and capping at def.
func queryLimit(r *http.Request, def int) int {
	raw := r.URL.Query().Get("limit")
	if raw == "" {
		return def
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n < 0 {
		return def
	}
	return n
}
