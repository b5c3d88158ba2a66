package engine

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/require"
	"github.com/zeromicro/go-zero/core/stores/sqlx"

	"marketnews-api/internal/model"
	"marketnews-api/pkg/news"
	"marketnews-api/pkg/sentiment"
)

type fakeConn struct {
	sqlx.SqlConn
	txErr error
}

func (c *fakeConn) TransactCtx(ctx context.Context, fn func(context.Context, sqlx.Session) error) error {
	if c.txErr != nil {
		return c.txErr
	}
	return fn(ctx, nil)
}

type fakeNewsModel struct {
	model.NewsModel
	knownLinks  map[string]bool
	knownTitles map[string]bool
	inserted    []*model.News
	insertErrAt int // 1-based index of the insert that fails, 0 = never
}

func (m *fakeNewsModel) FindOneByDedupKey(ctx context.Context, symbol, source, link string) (*model.News, error) {
	if m.knownLinks[link] {
		return &model.News{Symbol: symbol, Source: source}, nil
	}
	return nil, model.ErrNotFound
}

func (m *fakeNewsModel) FindOneByTitleSourcePublished(ctx context.Context, symbol, source, title string, publishedAt time.Time) (*model.News, error) {
	if m.knownTitles[title] {
		return &model.News{Symbol: symbol, Source: source}, nil
	}
	return nil, model.ErrNotFound
}

func (m *fakeNewsModel) Insert(ctx context.Context, session sqlx.Session, data *model.News) error {
	if m.insertErrAt > 0 && len(m.inserted)+1 == m.insertErrAt {
		return fmt.Errorf("insert %d failed", m.insertErrAt)
	}
	m.inserted = append(m.inserted, data)
	return nil
}

type fixedAnalyzer struct {
	result sentiment.Result
	calls  int
}

func (a *fixedAnalyzer) Analyze(ctx context.Context, text, title string) sentiment.Result {
	a.calls++
	return a.result
}

func newTestService(m *fakeNewsModel, a sentiment.Analyzer) *Service {
	return NewService(Config{SQLConn: &fakeConn{}, NewsModel: m, Analyzer: a})
}

func sampleItems() []news.Item {
	return []news.Item{
		{Title: "first", Link: "https://x/1", Source: "finnhub", Summary: "profits surge", PublishedAt: time.Date(2025, 6, 2, 9, 0, 0, 0, time.UTC)},
		{Title: "second", Link: "https://x/2", Source: "finnhub", PublishedAt: time.Date(2025, 6, 2, 10, 0, 0, 0, time.UTC)},
	}
}

func TestIngestBatchStoresNewItems(t *testing.T) {
	m := &fakeNewsModel{}
	analyzer := &fixedAnalyzer{result: sentiment.Result{Score: 80, Sentiment: sentiment.LabelVeryPositive, Confidence: 0.7, Method: "combined"}}
	svc := newTestService(m, analyzer)

	stored, err := svc.IngestBatch(context.Background(), "aapl", sampleItems())
	require.NoError(t, err)
	require.Equal(t, 2, stored)
	require.Equal(t, 2, analyzer.calls)

	row := m.inserted[0]
	require.Equal(t, "AAPL", row.Symbol)
	require.Equal(t, "first", row.Title)
	require.True(t, row.SentimentScore.Valid)
	require.Equal(t, 80.0, row.SentimentScore.Float64)
	require.Equal(t, string(sentiment.LabelVeryPositive), row.SentimentLabel.String)
	require.Equal(t, "combined", row.SentimentMethod.String)
	require.True(t, row.PublishedAt.Valid)
	require.True(t, row.RawPayload.Valid)
}

func TestIngestBatchIsIdempotent(t *testing.T) {
	m := &fakeNewsModel{knownLinks: map[string]bool{"https://x/1": true}}
	svc := newTestService(m, nil)

	stored, err := svc.IngestBatch(context.Background(), "AAPL", sampleItems())
	require.NoError(t, err)
	require.Equal(t, 1, stored)
	require.Equal(t, "second", m.inserted[0].Title)
}

func TestIngestBatchDedupesLinklessByTitle(t *testing.T) {
	m := &fakeNewsModel{knownTitles: map[string]bool{"linkless": true}}
	svc := newTestService(m, nil)

	items := []news.Item{{Title: "linkless", Source: "newsapi", PublishedAt: time.Date(2025, 6, 2, 9, 0, 0, 0, time.UTC)}}
	stored, err := svc.IngestBatch(context.Background(), "AAPL", items)
	require.NoError(t, err)
	require.Zero(t, stored)
	require.Empty(t, m.inserted)
}

func TestIngestBatchRollsBackOnInsertFailure(t *testing.T) {
	m := &fakeNewsModel{insertErrAt: 2}
	svc := newTestService(m, nil)

	stored, err := svc.IngestBatch(context.Background(), "AAPL", sampleItems())
	require.Error(t, err)
	require.Zero(t, stored)
}

func TestIngestBatchSwallowsDuplicateRace(t *testing.T) {
	m := &fakeNewsModel{}
	svc := NewService(Config{
		SQLConn:   &fakeConn{txErr: fmt.Errorf("exec: %w", &pgconn.PgError{Code: "23505"})},
		NewsModel: m,
	})

	stored, err := svc.IngestBatch(context.Background(), "AAPL", sampleItems())
	require.NoError(t, err)
	require.Zero(t, stored)
}

func TestIngestBatchEmptyInput(t *testing.T) {
	svc := newTestService(&fakeNewsModel{}, nil)

	stored, err := svc.IngestBatch(context.Background(), "AAPL", nil)
	require.NoError(t, err)
	require.Zero(t, stored)

	stored, err = svc.IngestBatch(context.Background(), "  ", sampleItems())
	require.NoError(t, err)
	require.Zero(t, stored)
}

func TestIngestBatchWithoutAnalyzerLeavesSentimentNull(t *testing.T) {
	m := &fakeNewsModel{}
	svc := newTestService(m, nil)

	stored, err := svc.IngestBatch(context.Background(), "AAPL", sampleItems()[:1])
	require.NoError(t, err)
	require.Equal(t, 1, stored)
	require.False(t, m.inserted[0].SentimentScore.Valid)
	require.False(t, m.inserted[0].SentimentLabel.Valid)
}
