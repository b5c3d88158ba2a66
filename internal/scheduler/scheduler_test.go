package scheduler

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"marketnews-api/pkg/journal"
	"marketnews-api/pkg/news"
	"marketnews-api/pkg/quota"
)

type fakeFetcher struct {
	items map[string][]news.Item
}

func (f *fakeFetcher) FetchAll(ctx context.Context, symbol string) []news.Item {
	return f.items[symbol]
}

type blockingFetcher struct {
	gate    chan struct{}
	started chan string
	items   map[string][]news.Item
}

func (f *blockingFetcher) FetchAll(ctx context.Context, symbol string) []news.Item {
	f.started <- symbol
	select {
	case <-f.gate:
		return f.items[symbol]
	case <-ctx.Done():
		return nil
	}
}

type fakeIngester struct {
	failFor map[string]error
	batches map[string]int
}

func (f *fakeIngester) IngestBatch(ctx context.Context, symbol string, items []news.Item) (int, error) {
	if err := f.failFor[symbol]; err != nil {
		return 0, err
	}
	if f.batches == nil {
		f.batches = map[string]int{}
	}
	f.batches[symbol] = len(items)
	return len(items), nil
}

type fakeSymbols struct {
	symbols []string
	err     error
}

func (f *fakeSymbols) ListTrackedSymbols(ctx context.Context) ([]string, error) {
	return f.symbols, f.err
}

type fakeQuotas struct {
	clock *quota.SessionClock
}

func (f *fakeQuotas) SourceStatus() map[string]quota.SourceStatus {
	return map[string]quota.SourceStatus{"finnhub": {Enabled: true, DailyLimit: 100}}
}

func (f *fakeQuotas) Clock() *quota.SessionClock {
	return f.clock
}

func middayClock(t *testing.T) *quota.SessionClock {
	t.Helper()
	clock, err := quota.NewSessionClock("05:30", "14:00", quota.WithClockNow(func() time.Time {
		return time.Date(2025, 6, 2, 10, 0, 0, 0, time.UTC)
	}))
	require.NoError(t, err)
	return clock
}

func item(title string) news.Item {
	return news.Item{Title: title, Link: "https://x/" + title, Source: "finnhub", PublishedAt: time.Date(2025, 6, 2, 9, 0, 0, 0, time.UTC)}
}

func TestRunOnceProcessesAllSymbols(t *testing.T) {
	fetcher := &fakeFetcher{items: map[string][]news.Item{
		"AAPL": {item("a1"), item("a2")},
		"TSLA": {item("t1")},
	}}
	ingester := &fakeIngester{}
	sched := New(fetcher, ingester, &fakeSymbols{symbols: []string{"AAPL", "TSLA"}}, &fakeQuotas{clock: middayClock(t)}, nil, time.Minute)

	rec := sched.RunOnce(context.Background(), "manual")
	require.True(t, rec.Success)
	require.Equal(t, "manual", rec.Trigger)
	require.Equal(t, "regular_trading", rec.Session)
	require.Len(t, rec.Symbols, 2)
	require.Equal(t, 3, rec.TotalStored)
	require.Equal(t, 2, ingester.batches["AAPL"])
}

func TestRunOnceContinuesPastFailingSymbol(t *testing.T) {
	fetcher := &fakeFetcher{items: map[string][]news.Item{
		"ABC": {item("bad")},
		"DEF": {item("good")},
	}}
	ingester := &fakeIngester{failFor: map[string]error{"ABC": errors.New("db down")}}
	sched := New(fetcher, ingester, &fakeSymbols{symbols: []string{"ABC", "DEF"}}, nil, nil, time.Minute)

	rec := sched.RunOnce(context.Background(), "manual")
	require.True(t, rec.Success)
	require.Len(t, rec.Symbols, 2)
	require.Equal(t, "db down", rec.Symbols[0].Error)
	require.Zero(t, rec.Symbols[0].Stored)
	require.Equal(t, 1, rec.Symbols[1].Stored)
	require.Equal(t, 1, rec.TotalStored)
}

func TestRunOnceWithNoSymbols(t *testing.T) {
	sched := New(&fakeFetcher{}, &fakeIngester{}, &fakeSymbols{}, nil, nil, time.Minute)

	rec := sched.RunOnce(context.Background(), "manual")
	require.True(t, rec.Success)
	require.Empty(t, rec.Symbols)
	require.Zero(t, rec.TotalStored)
}

func TestRunOnceSymbolListFailure(t *testing.T) {
	sched := New(&fakeFetcher{}, &fakeIngester{}, &fakeSymbols{err: errors.New("no db")}, nil, nil, time.Minute)

	rec := sched.RunOnce(context.Background(), "manual")
	require.False(t, rec.Success)
	require.Equal(t, "no db", rec.ErrorMsg)
}

func TestRunOnceWritesJournal(t *testing.T) {
	dir := t.TempDir()
	fetcher := &fakeFetcher{items: map[string][]news.Item{"AAPL": {item("a1")}}}
	sched := New(fetcher, &fakeIngester{}, &fakeSymbols{symbols: []string{"AAPL"}}, nil, journal.NewWriter(dir), time.Minute)

	sched.RunOnce(context.Background(), "manual")

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	require.Equal(t, ".json", filepath.Ext(entries[0].Name()))
}

func TestStartStop(t *testing.T) {
	fetcher := &fakeFetcher{items: map[string][]news.Item{"AAPL": {item("a1")}}}
	ingester := &fakeIngester{}
	sched := New(fetcher, ingester, &fakeSymbols{symbols: []string{"AAPL"}}, &fakeQuotas{clock: middayClock(t)}, nil, time.Hour)

	require.NoError(t, sched.Start())
	require.ErrorIs(t, sched.Start(), ErrAlreadyRunning)

	// The startup run fires immediately; wait for it to land.
	require.Eventually(t, func() bool {
		return sched.Status(context.Background()).RunsCompleted >= 1
	}, 2*time.Second, 10*time.Millisecond)

	status := sched.Status(context.Background())
	require.True(t, status.Running)
	require.Equal(t, 60, status.IntervalMinutes)
	require.NotNil(t, status.LastRun)
	require.NotNil(t, status.NextRun)
	require.Equal(t, 1, status.JobCount)
	require.Equal(t, "regular_trading", status.TradingSession)
	require.True(t, status.IsTradingHours)
	require.Contains(t, status.Sources, "finnhub")

	require.NoError(t, sched.Stop())
	require.ErrorIs(t, sched.Stop(), ErrNotRunning)
	require.False(t, sched.Status(context.Background()).Running)
}

func TestStopDoesNotAbortInFlightRun(t *testing.T) {
	gate := make(chan struct{})
	fetcher := &blockingFetcher{
		gate:    gate,
		started: make(chan string, 2),
		items: map[string][]news.Item{
			"AAA": {item("a1")},
			"BBB": {item("b1")},
		},
	}
	ingester := &fakeIngester{}
	sched := New(fetcher, ingester, &fakeSymbols{symbols: []string{"AAA", "BBB"}}, nil, nil, time.Hour)

	require.NoError(t, sched.Start())
	require.Equal(t, "AAA", <-fetcher.started)

	// Stop while the first symbol's fetch is still in flight.
	stopped := make(chan error, 1)
	go func() { stopped <- sched.Stop() }()
	require.Eventually(t, func() bool {
		return !sched.Status(context.Background()).Running
	}, 2*time.Second, 10*time.Millisecond)

	close(gate)
	require.Equal(t, "BBB", <-fetcher.started)
	require.NoError(t, <-stopped)

	require.Equal(t, 1, ingester.batches["AAA"])
	require.Equal(t, 1, ingester.batches["BBB"])
	require.Equal(t, 1, sched.Status(context.Background()).RunsCompleted)
}
