package server

import (
	"context"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"soroban-watch/internal/domain"
	"soroban-watch/internal/observability"
	"soroban-watch/internal/poller"
	"soroban-watch/internal/storage"
	"soroban-watch/internal/strkey"
)

// Hub pushes freshly computed statistics to subscribed WebSocket clients.
// Each subscribed contract gets one poller; it starts with the first
// subscriber and stops when the last one disconnects.
type Hub struct {
	source     poller.Source
	contracts  storage.ContractStore
	refreshLog storage.RefreshLogStore
	interval   time.Duration
	logger     *zap.Logger
	upgrader   websocket.Upgrader

	mu     sync.Mutex
	topics map[string]*topic

	// writeMu serializes frame writes; gorilla allows one writer per conn.
	writeMu sync.Mutex
}

type topic struct {
	poller *poller.Poller
	conns  map[*websocket.Conn]struct{}
}

// HubOptions configures a Hub. Source is required.
type HubOptions struct {
	Source     poller.Source
	Contracts  storage.ContractStore
	RefreshLog storage.RefreshLogStore
	Interval   time.Duration
	Logger     *zap.Logger
}

// NewHub creates a Hub.
func NewHub(opts HubOptions) *Hub {
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	interval := opts.Interval
	if interval <= 0 {
		interval = poller.DefaultInterval
	}
	return &Hub{
		source:     opts.Source,
		contracts:  opts.Contracts,
		refreshLog: opts.RefreshLog,
		interval:   interval,
		logger:     logger,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 4096,
			CheckOrigin:     func(*http.Request) bool { return true },
		},
		topics: make(map[string]*topic),
	}
}

// statsMessage is the push payload.
type statsMessage struct {
	Type  string                `json:"type"`
	Stats *domain.ContractStats `json:"stats"`
}

// HandleSubscribe upgrades the connection and streams statistics updates for
// the contract until the client disconnects.
func (h *Hub) HandleSubscribe(w http.ResponseWriter, r *http.Request) {
	contractID := r.PathValue("contractId")
	if !strkey.IsContract(contractID) {
		writeError(w, http.StatusBadRequest, "invalid contract id")
		return
	}

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Debug("websocket upgrade failed", zap.Error(err))
		return
	}

	h.subscribe(contractID, conn)
	observability.DefaultMetrics.WSClients.Inc()

	// Reader loop: clients send nothing meaningful; reading detects close.
	go func() {
		defer func() {
			h.unsubscribe(contractID, conn)
			observability.DefaultMetrics.WSClients.Dec()
			conn.Close()
		}()
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()
}

func (h *Hub) subscribe(contractID string, conn *websocket.Conn) {
	h.mu.Lock()
	t, ok := h.topics[contractID]
	if !ok {
		p := poller.New(h.source, contractID,
			poller.WithContractStore(h.contracts),
			poller.WithRefreshLog(h.refreshLog),
			poller.WithLogger(h.logger),
			poller.WithOnUpdate(func(s *domain.ContractStats) {
				h.broadcast(contractID, s)
			}),
		)
		t = &topic{poller: p, conns: make(map[*websocket.Conn]struct{})}
		h.topics[contractID] = t

		go func() {
			ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
			defer cancel()
			if _, err := p.RefreshNow(ctx); err != nil {
				h.logger.Debug("initial refresh failed",
					zap.String("contract_id", contractID),
					zap.Error(err))
			}
		}()
		p.StartAutoRefresh(h.interval)
	}
	t.conns[conn] = struct{}{}
	h.mu.Unlock()

	// A late subscriber gets the current state immediately.
	if current, _ := t.poller.Current(); current != nil {
		h.send(conn, current)
	}
}

func (h *Hub) unsubscribe(contractID string, conn *websocket.Conn) {
	h.mu.Lock()
	defer h.mu.Unlock()

	t, ok := h.topics[contractID]
	if !ok {
		return
	}
	delete(t.conns, conn)
	if len(t.conns) == 0 {
		go t.poller.StopAutoRefresh()
		delete(h.topics, contractID)
	}
}

func (h *Hub) broadcast(contractID string, s *domain.ContractStats) {
	h.mu.Lock()
	t, ok := h.topics[contractID]
	if !ok {
		h.mu.Unlock()
		return
	}
	conns := make([]*websocket.Conn, 0, len(t.conns))
	for c := range t.conns {
		conns = append(conns, c)
	}
	h.mu.Unlock()

	for _, c := range conns {
		h.send(c, s)
	}
}

func (h *Hub) send(conn *websocket.Conn, s *domain.ContractStats) {
	h.writeMu.Lock()
	defer h.writeMu.Unlock()

	conn.SetWriteDeadline(time.Now().Add(10 * time.Second))
	if err := conn.WriteJSON(statsMessage{Type: "stats", Stats: s}); err != nil {
		h.logger.Debug("websocket write failed", zap.Error(err))
	}
}

// Close stops every topic poller. Used on server shutdown.
func (h *Hub) Close() {
	h.mu.Lock()
	topics := h.topics
	h.topics = make(map[string]*topic)
	h.mu.Unlock()

	for _, t := range topics {
		t.poller.StopAutoRefresh()
		for c := range t.conns {
			c.Close()
		}
	}
}
