// Package scheduler drives periodic news collection runs over the tracked
// symbol list and exposes the control surface behind the scheduler API.
package scheduler

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/zeromicro/go-zero/core/logx"

	"marketnews-api/pkg/journal"
	"marketnews-api/pkg/news"
	"marketnews-api/pkg/quota"
)

// Fetcher produces the merged provider feed for one symbol.
type Fetcher interface {
	FetchAll(ctx context.Context, symbol string) []news.Item
}

// Ingester stores a symbol's batch and reports how many rows were written.
type Ingester interface {
	IngestBatch(ctx context.Context, symbol string, items []news.Item) (int, error)
}

// SymbolSource lists the symbols a run iterates over.
type SymbolSource interface {
	ListTrackedSymbols(ctx context.Context) ([]string, error)
}

// QuotaReporter exposes the per-provider block of the status payload.
type QuotaReporter interface {
	SourceStatus() map[string]quota.SourceStatus
	Clock() *quota.SessionClock
}

// Status is the scheduler half of the status endpoint payload.
type Status struct {
	Running               bool                          `json:"running"`
	IntervalMinutes       int                           `json:"interval_minutes"`
	LastRun               *time.Time                    `json:"last_run"`
	NextRun               *time.Time                    `json:"next_run"`
	JobCount              int                           `json:"job_count"`
	RunsCompleted         int                           `json:"runs_completed"`
	TradingSession        string                        `json:"trading_session"`
	IsTradingHours        bool                          `json:"is_trading_hours"`
	TradingHoursRemaining float64                       `json:"trading_hours_remaining"`
	Sources               map[string]quota.SourceStatus `json:"sources"`
}

// Scheduler runs collection on a fixed interval. Start and Stop are safe to
// call repeatedly; a run already in flight finishes before Stop returns.
type Scheduler struct {
	fetcher  Fetcher
	ingester Ingester
	symbols  SymbolSource
	quotas   QuotaReporter
	journal  *journal.Writer
	interval time.Duration
	now      func() time.Time

	mu       sync.Mutex
	running  bool
	cancel   context.CancelFunc
	done     chan struct{}
	lastRun  *time.Time
	runCount int
}

// Option customises a Scheduler.
type Option func(*Scheduler)

// WithNow overrides the time source, for tests.
func WithNow(now func() time.Time) Option {
	return func(s *Scheduler) {
		if now != nil {
			s.now = now
		}
	}
}

func New(fetcher Fetcher, ingester Ingester, symbols SymbolSource, quotas QuotaReporter, writer *journal.Writer, interval time.Duration, opts ...Option) *Scheduler {
	s := &Scheduler{
		fetcher:  fetcher,
		ingester: ingester,
		symbols:  symbols,
		quotas:   quotas,
		journal:  writer,
		interval: interval,
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// ErrAlreadyRunning is returned by Start when the loop is active.
var ErrAlreadyRunning = errors.New("scheduler: already running")

// ErrNotRunning is returned by Stop when the loop is idle.
var ErrNotRunning = errors.New("scheduler: not running")

// Start launches the collection loop. The first run fires immediately.
func (s *Scheduler) Start() error {
	s.mu.Lock()
	if s.running {
		s.mu.Unlock()
		return ErrAlreadyRunning
	}
	ctx, cancel := context.WithCancel(context.Background())
	s.running = true
	s.cancel = cancel
	s.done = make(chan struct{})
	done := s.done
	s.mu.Unlock()

	go s.loop(ctx, done)
	return nil
}

// Stop halts the loop and waits for an in-flight run to finish.
func (s *Scheduler) Stop() error {
	s.mu.Lock()
	if !s.running {
		s.mu.Unlock()
		return ErrNotRunning
	}
	cancel := s.cancel
	done := s.done
	s.running = false
	s.cancel = nil
	s.done = nil
	s.mu.Unlock()

	cancel()
	<-done
	return nil
}

func (s *Scheduler) loop(ctx context.Context, done chan struct{}) {
	defer close(done)

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	// Runs deliberately do not inherit the loop context: stopping the
	// scheduler only prevents the next run from starting, a run already in
	// flight completes and journals a full record.
	s.RunOnce(context.Background(), "startup")
	for {
		select {
		case <-ctx.Done():
			logx.Info("scheduler loop stopped")
			return
		case <-ticker.C:
			s.RunOnce(context.Background(), "interval")
		}
	}
}

// RunOnce executes a single collection pass over all tracked symbols. One
// symbol's failure is recorded and the pass continues with the next.
func (s *Scheduler) RunOnce(ctx context.Context, trigger string) *journal.RunRecord {
	logger := logx.WithContext(ctx)
	started := s.now()

	rec := &journal.RunRecord{
		StartedAt: started,
		Trigger:   trigger,
		Success:   true,
	}
	if s.quotas != nil {
		rec.Session = string(s.quotas.Clock().Current())
	}

	symbols, err := s.symbols.ListTrackedSymbols(ctx)
	switch {
	case err != nil:
		logger.Errorf("list tracked symbols: %v", err)
		rec.Success = false
		rec.ErrorMsg = err.Error()
	case len(symbols) == 0:
		logger.Info("no tracked symbols, skipping run")
	default:
		for _, symbol := range symbols {
			if ctx.Err() != nil {
				rec.Success = false
				rec.ErrorMsg = ctx.Err().Error()
				break
			}
			rec.Symbols = append(rec.Symbols, s.collectSymbol(ctx, symbol))
		}
	}

	for _, outcome := range rec.Symbols {
		rec.TotalStored += outcome.Stored
	}
	rec.FinishedAt = s.now()

	s.mu.Lock()
	finished := rec.FinishedAt
	s.lastRun = &finished
	s.runCount++
	s.mu.Unlock()

	if s.journal != nil {
		if _, err := s.journal.WriteRun(rec); err != nil {
			logger.Errorf("write run journal: %v", err)
		}
	}
	logger.Infof("collection run done: %d symbols, %d stored", len(rec.Symbols), rec.TotalStored)
	return rec
}

func (s *Scheduler) collectSymbol(ctx context.Context, symbol string) journal.SymbolOutcome {
	outcome := journal.SymbolOutcome{Symbol: symbol}

	items := s.fetcher.FetchAll(ctx, symbol)
	outcome.Fetched = len(items)
	if len(items) == 0 {
		return outcome
	}

	stored, err := s.ingester.IngestBatch(ctx, symbol, items)
	if err != nil {
		logx.WithContext(ctx).Errorf("ingest %s: %v", symbol, err)
		outcome.Error = err.Error()
		return outcome
	}
	outcome.Stored = stored
	return outcome
}

// Status reports the scheduler and quota state for the status endpoint.
func (s *Scheduler) Status(ctx context.Context) Status {
	s.mu.Lock()
	status := Status{
		Running:         s.running,
		IntervalMinutes: int(s.interval / time.Minute),
		LastRun:         s.lastRun,
		RunsCompleted:   s.runCount,
	}
	if s.running && s.lastRun != nil {
		next := s.lastRun.Add(s.interval)
		status.NextRun = &next
	}
	s.mu.Unlock()

	if s.quotas != nil {
		clock := s.quotas.Clock()
		status.TradingSession = string(clock.Current())
		status.IsTradingHours = clock.IsTradingHours()
		status.TradingHoursRemaining = clock.HoursRemaining()
		status.Sources = s.quotas.SourceStatus()
	}

	// Each tracked symbol is one job within a run.
	if symbols, err := s.symbols.ListTrackedSymbols(ctx); err == nil {
		status.JobCount = len(symbols)
	}
	return status
}
