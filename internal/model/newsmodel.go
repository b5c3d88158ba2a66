package model

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/zeromicro/go-zero/core/stores/sqlx"
)

var _ NewsModel = (*defaultNewsModel)(nil)

// News mirrors a row of the public.news table.
type News struct {
	Id                  int64           `db:"id"`
	Symbol              string          `db:"symbol"`
	Title               string          `db:"title"`
	Summary             sql.NullString  `db:"summary"`
	Link                sql.NullString  `db:"link"`
	Publisher           sql.NullString  `db:"publisher"`
	PublishedAt         sql.NullTime    `db:"published_at"`
	Source              string          `db:"source"`
	SentimentScore      sql.NullFloat64 `db:"sentiment_score"`
	SentimentLabel      sql.NullString  `db:"sentiment_label"`
	SentimentConfidence sql.NullFloat64 `db:"sentiment_confidence"`
	SentimentMethod     sql.NullString  `db:"sentiment_method"`
	RawPayload          sql.NullString  `db:"raw_payload"`
	CreatedAt           time.Time       `db:"created_at"`
}

// StatsSummary aggregates table-wide counters for the stats endpoint.
type StatsSummary struct {
	TotalNews       int64
	SymbolsWithNews int64
	LatestNewsDate  *time.Time
	Sources         []string
}

type (
	// NewsModel is the persistence surface for stored articles. Insert takes
	// an explicit session so callers can batch writes inside a transaction.
	NewsModel interface {
		Insert(ctx context.Context, session sqlx.Session, data *News) error
		FindOneByDedupKey(ctx context.Context, symbol, source, link string) (*News, error)
		FindOneByTitleSourcePublished(ctx context.Context, symbol, source, title string, publishedAt time.Time) (*News, error)
		RecentBySymbol(ctx context.Context, symbol string, limit int) ([]News, error)
		Stats(ctx context.Context) (*StatsSummary, error)
	}

	defaultNewsModel struct {
		conn sqlx.SqlConn
	}
)

// NewNewsModel returns a model for the news table.
func NewNewsModel(conn sqlx.SqlConn) NewsModel {
	return &defaultNewsModel{conn: conn}
}

const newsRowFields = `
    id,
    symbol,
    title,
    summary,
    link,
    publisher,
    published_at,
    source,
    sentiment_score,
    sentiment_label,
    sentiment_confidence,
    sentiment_method,
    raw_payload,
    created_at`

func (m *defaultNewsModel) Insert(ctx context.Context, session sqlx.Session, data *News) error {
	if session == nil {
		session = m.conn
	}
	const query = `
INSERT INTO public.news (
    symbol, title, summary, link, publisher, published_at, source,
    sentiment_score, sentiment_label, sentiment_confidence, sentiment_method,
    raw_payload
) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)`

	_, err := session.ExecCtx(ctx, query,
		data.Symbol,
		data.Title,
		data.Summary,
		data.Link,
		data.Publisher,
		data.PublishedAt,
		data.Source,
		data.SentimentScore,
		data.SentimentLabel,
		data.SentimentConfidence,
		data.SentimentMethod,
		data.RawPayload,
	)
	if err != nil {
		return fmt.Errorf("news.Insert: %w", err)
	}
	return nil
}

// FindOneByDedupKey locates an article by its identity triple. Link must be
// non-empty; rows without links use the title fallback lookup instead.
func (m *defaultNewsModel) FindOneByDedupKey(ctx context.Context, symbol, source, link string) (*News, error) {
	query := `SELECT` + newsRowFields + `
FROM public.news
WHERE symbol = $1 AND source = $2 AND link = $3
LIMIT 1`

	var row News
	err := m.conn.QueryRowCtx(ctx, &row, query, symbol, source, link)
	switch {
	case err == nil:
		return &row, nil
	case errors.Is(err, sqlx.ErrNotFound):
		return nil, ErrNotFound
	default:
		return nil, fmt.Errorf("news.FindOneByDedupKey: %w", err)
	}
}

func (m *defaultNewsModel) FindOneByTitleSourcePublished(ctx context.Context, symbol, source, title string, publishedAt time.Time) (*News, error) {
	query := `SELECT` + newsRowFields + `
FROM public.news
WHERE symbol = $1 AND source = $2 AND title = $3 AND published_at = $4
LIMIT 1`

	var row News
	err := m.conn.QueryRowCtx(ctx, &row, query, symbol, source, title, publishedAt)
	switch {
	case err == nil:
		return &row, nil
	case errors.Is(err, sqlx.ErrNotFound):
		return nil, ErrNotFound
	default:
		return nil, fmt.Errorf("news.FindOneByTitleSourcePublished: %w", err)
	}
}

// RecentBySymbol returns stored articles for a symbol, newest first. Limit
// defaults to 50 when non-positive.
func (m *defaultNewsModel) RecentBySymbol(ctx context.Context, symbol string, limit int) ([]News, error) {
	if limit <= 0 {
		limit = 50
	}
	query := `SELECT` + newsRowFields + `
FROM public.news
WHERE symbol = $1
ORDER BY published_at DESC NULLS LAST, id DESC
LIMIT $2`

	var rows []News
	if err := m.conn.QueryRowsCtx(ctx, &rows, query, symbol, limit); err != nil {
		return nil, fmt.Errorf("news.RecentBySymbol: %w", err)
	}
	return rows, nil
}

func (m *defaultNewsModel) Stats(ctx context.Context) (*StatsSummary, error) {
	type countsRow struct {
		TotalNews       int64        `db:"total_news"`
		SymbolsWithNews int64        `db:"symbols_with_news"`
		LatestNewsDate  sql.NullTime `db:"latest_news_date"`
	}

	const countsQuery = `
SELECT
    COUNT(*) AS total_news,
    COUNT(DISTINCT symbol) AS symbols_with_news,
    MAX(published_at) AS latest_news_date
FROM public.news`

	var counts countsRow
	if err := m.conn.QueryRowCtx(ctx, &counts, countsQuery); err != nil {
		return nil, fmt.Errorf("news.Stats counts: %w", err)
	}

	const sourcesQuery = `SELECT DISTINCT source FROM public.news ORDER BY source`
	var sources []string
	if err := m.conn.QueryRowsCtx(ctx, &sources, sourcesQuery); err != nil {
		return nil, fmt.Errorf("news.Stats sources: %w", err)
	}

	summary := &StatsSummary{
		TotalNews:       counts.TotalNews,
		SymbolsWithNews: counts.SymbolsWithNews,
		Sources:         sources,
	}
	if counts.LatestNewsDate.Valid {
		value := counts.LatestNewsDate.Time
		summary.LatestNewsDate = &value
	}
	return summary, nil
}
