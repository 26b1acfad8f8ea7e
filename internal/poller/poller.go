// Package poller keeps a displayed statistics view fresh: it owns the only
// long-lived mutable statistics state and writes it only at the end of a
// completed, non-superseded refresh.
package poller

import (
	"context"
	"errors"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"

	"soroban-watch/internal/domain"
	"soroban-watch/internal/observability"
	"soroban-watch/internal/storage"
)

// State is the poller lifecycle state.
type State int

const (
	StateIdle State = iota
	StateLoading
	StateDisplayed
	StateRefreshingForeground
	StateRefreshingBackground
)

// String implements fmt.Stringer.
func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateLoading:
		return "loading"
	case StateDisplayed:
		return "displayed"
	case StateRefreshingForeground:
		return "refreshing_foreground"
	case StateRefreshingBackground:
		return "refreshing_background"
	default:
		return "unknown"
	}
}

// DefaultInterval is the background refresh period.
const DefaultInterval = 10 * time.Second

// Source produces a fresh statistics record for a contract. Implemented by
// LocalSource (in-process aggregator) and HTTPSource (remote API).
type Source interface {
	FetchStats(ctx context.Context, contractID string) (*domain.ContractStats, error)
}

// Poller refreshes the statistics of one contract, in the foreground on
// demand and in the background on a timer.
type Poller struct {
	source     Source
	contractID string
	contracts  storage.ContractStore
	refreshLog storage.RefreshLogStore
	logger     *zap.Logger
	onUpdate   func(*domain.ContractStats)

	group singleflight.Group

	mu         sync.Mutex
	state      State
	current    *domain.ContractStats
	lastErr    error
	inFlight   int
	generation uint64

	stopOnce sync.Once
	stopCh   chan struct{}
	done     chan struct{}
}

// Option configures a Poller.
type Option func(*Poller)

// WithContractStore enables the registry write-back of last_seen_tx_count
// and last_updated after each successful refresh.
func WithContractStore(store storage.ContractStore) Option {
	return func(p *Poller) {
		p.contracts = store
	}
}

// WithRefreshLog records each completed refresh outcome to the sink.
func WithRefreshLog(log storage.RefreshLogStore) Option {
	return func(p *Poller) {
		p.refreshLog = log
	}
}

// WithOnUpdate registers a callback invoked with every freshly applied
// statistics record.
func WithOnUpdate(fn func(*domain.ContractStats)) Option {
	return func(p *Poller) {
		p.onUpdate = fn
	}
}

// WithLogger sets the logger.
func WithLogger(l *zap.Logger) Option {
	return func(p *Poller) {
		p.logger = l
	}
}

// New creates a Poller for one contract.
func New(source Source, contractID string, opts ...Option) *Poller {
	p := &Poller{
		source:     source,
		contractID: contractID,
		logger:     zap.NewNop(),
		state:      StateIdle,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Current returns the last applied statistics record and the poller state.
// The record is shared, not copied; callers must not mutate it.
func (p *Poller) Current() (*domain.ContractStats, State) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.current, p.state
}

// LastError returns the error of the most recent failed foreground refresh,
// cleared by the next successful one.
func (p *Poller) LastError() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.lastErr
}

// RefreshNow performs a user-initiated refresh. Concurrent callers join the
// in-flight request and share its result, producing exactly one round trip.
// On failure the previously displayed data stays in place and the error is
// returned for the caller to surface.
func (p *Poller) RefreshNow(ctx context.Context) (*domain.ContractStats, error) {
	v, err, _ := p.group.Do("refresh", func() (interface{}, error) {
		return p.refresh(ctx, p.foregroundKind())
	})
	if v == nil {
		return nil, err
	}
	return v.(*domain.ContractStats), err
}

// StartAutoRefresh begins silent background refreshes at the given interval
// (DefaultInterval when non-positive). A tick is skipped entirely while any
// refresh is already in flight. Calling it on a running poller is a no-op.
func (p *Poller) StartAutoRefresh(interval time.Duration) {
	if interval <= 0 {
		interval = DefaultInterval
	}

	p.mu.Lock()
	if p.stopCh != nil {
		p.mu.Unlock()
		return
	}
	p.stopCh = make(chan struct{})
	p.done = make(chan struct{})
	stopCh, done := p.stopCh, p.done
	p.mu.Unlock()

	go func() {
		defer close(done)
		ticker := time.NewTicker(interval)
		defer ticker.Stop()

		for {
			select {
			case <-stopCh:
				return
			case <-ticker.C:
				p.tick()
			}
		}
	}()
}

// StopAutoRefresh stops the background timer and waits for the loop to exit.
// An in-flight refresh is not interrupted.
func (p *Poller) StopAutoRefresh() {
	p.mu.Lock()
	stopCh, done := p.stopCh, p.done
	p.stopCh, p.done = nil, nil
	p.mu.Unlock()

	if stopCh == nil {
		return
	}
	close(stopCh)
	<-done
}

// tick runs one background refresh unless a refresh is already in flight.
func (p *Poller) tick() {
	p.mu.Lock()
	busy := p.inFlight > 0
	p.mu.Unlock()
	if busy {
		p.logger.Debug("background tick skipped, refresh in flight",
			zap.String("contract_id", p.contractID))
		return
	}

	if _, err := p.refresh(context.Background(), domain.RefreshBackground); err != nil {
		// Silent: no notification, previous data retained, retry next tick.
		p.logger.Debug("background refresh failed",
			zap.String("contract_id", p.contractID),
			zap.Error(err))
	}
}

// foregroundKind distinguishes the very first load from later refreshes.
func (p *Poller) foregroundKind() string {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.current == nil {
		return domain.RefreshInitial
	}
	return domain.RefreshForeground
}

// refresh performs one fetch and reconciles the result with the displayed
// state. A foreground refresh bumps the generation; a background result is
// discarded when the generation moved while it was in flight, so the
// foreground result always wins.
func (p *Poller) refresh(ctx context.Context, kind string) (*domain.ContractStats, error) {
	start := time.Now()

	p.mu.Lock()
	p.inFlight++
	var gen uint64
	if kind == domain.RefreshBackground {
		gen = p.generation
		p.state = StateRefreshingBackground
	} else {
		p.generation++
		gen = p.generation
		if p.current == nil {
			p.state = StateLoading
		} else {
			p.state = StateRefreshingForeground
		}
	}
	p.mu.Unlock()

	fetched, err := p.source.FetchStats(ctx, p.contractID)
	duration := time.Since(start)

	p.mu.Lock()
	p.inFlight--

	superseded := gen != p.generation
	if superseded {
		if p.inFlight == 0 && p.state == StateRefreshingBackground {
			p.state = p.settledStateLocked()
		}
		p.mu.Unlock()
		p.logger.Debug("refresh superseded by foreground, result discarded",
			zap.String("contract_id", p.contractID),
			zap.String("kind", kind))
		return p.currentSnapshot(), nil
	}

	if err != nil {
		if kind != domain.RefreshBackground {
			p.lastErr = err
		}
		p.state = p.settledStateLocked()
		p.mu.Unlock()

		observability.RecordRefresh(kind, "error", duration.Seconds())
		p.record(kind, nil, duration, err)
		return nil, err
	}

	p.current = fetched
	p.lastErr = nil
	p.state = StateDisplayed
	onUpdate := p.onUpdate
	p.mu.Unlock()

	observability.RecordRefresh(kind, "ok", duration.Seconds())
	p.record(kind, fetched, duration, nil)
	p.writeBack(ctx, fetched)

	if onUpdate != nil {
		onUpdate(fetched)
	}
	return fetched, nil
}

// settledStateLocked is the resting state after a refresh that applied no
// new data. Callers must hold p.mu.
func (p *Poller) settledStateLocked() State {
	if p.current == nil {
		return StateIdle
	}
	return StateDisplayed
}

func (p *Poller) currentSnapshot() *domain.ContractStats {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.current
}

// writeBack updates the registry row with the observed transaction count.
// The poller never creates rows, so a missing one is not an error.
func (p *Poller) writeBack(ctx context.Context, s *domain.ContractStats) {
	if p.contracts == nil {
		return
	}

	err := p.contracts.UpdateActivity(ctx, p.contractID, s.TotalTx, time.Now().UTC())
	if err != nil && !errors.Is(err, storage.ErrNotFound) {
		p.logger.Warn("registry write-back failed",
			zap.String("contract_id", p.contractID),
			zap.Error(err))
	}
}

// record appends the refresh outcome to the observability sink. This is the
// side-channel that distinguishes a degraded result from genuine inactivity.
func (p *Poller) record(kind string, s *domain.ContractStats, duration time.Duration, refreshErr error) {
	if p.refreshLog == nil {
		return
	}

	rec := &domain.RefreshRecord{
		ContractID:  p.contractID,
		Kind:        kind,
		DurationMs:  duration.Milliseconds(),
		RefreshedAt: time.Now().UTC(),
	}
	if s != nil {
		rec.TotalTx = s.TotalTx
		rec.TotalEvents = s.TotalEvents
		rec.AvgFee = s.AvgFee
		if s.LastActivity != nil {
			rec.LastActivity = *s.LastActivity
		}
	}
	if refreshErr != nil {
		rec.Err = refreshErr.Error()
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := p.refreshLog.Insert(ctx, rec); err != nil {
		p.logger.Warn("refresh log insert failed",
			zap.String("contract_id", p.contractID),
			zap.Error(err))
	}
}
