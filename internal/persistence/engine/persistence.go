// Package engine persists aggregated news batches. Each symbol's batch is
// deduplicated against stored rows, annotated with sentiment, and committed
// in a single transaction so a mid-batch failure leaves nothing behind.
package engine

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"strings"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/zeromicro/go-zero/core/logx"
	gocache "github.com/zeromicro/go-zero/core/stores/cache"
	"github.com/zeromicro/go-zero/core/stores/sqlx"

	cachekeys "marketnews-api/internal/cache"
	"marketnews-api/internal/model"
	"marketnews-api/pkg/news"
	"marketnews-api/pkg/sentiment"
)

// Service wires the Postgres and Redis collaborators needed to store a batch.
type Service struct {
	sqlConn   sqlx.SqlConn
	newsModel model.NewsModel
	analyzer  sentiment.Analyzer
	cache     gocache.Cache
	ttl       cachekeys.TTLSet
}

// Config enumerates dependencies needed to persist news batches.
type Config struct {
	SQLConn   sqlx.SqlConn
	NewsModel model.NewsModel
	Analyzer  sentiment.Analyzer
	Cache     gocache.Cache
	TTL       cachekeys.TTLSet
}

// NewService returns a concrete ingestion service when mandatory dependencies
// are present.
func NewService(cfg Config) *Service {
	if cfg.SQLConn == nil || cfg.NewsModel == nil {
		return nil
	}
	return &Service{
		sqlConn:   cfg.SQLConn,
		newsModel: cfg.NewsModel,
		analyzer:  cfg.Analyzer,
		cache:     cfg.Cache,
		ttl:       cfg.TTL,
	}
}

// IngestBatch stores the not-yet-seen items of a symbol's batch and returns
// how many rows were written. Duplicates are filtered before the transaction
// opens; the unique index still backstops races, and a conflicting insert
// rolls the whole batch back.
func (s *Service) IngestBatch(ctx context.Context, symbol string, items []news.Item) (int, error) {
	if s == nil || len(items) == 0 {
		return 0, nil
	}
	symbol = strings.ToUpper(strings.TrimSpace(symbol))
	if symbol == "" {
		return 0, nil
	}

	logger := logx.WithContext(ctx)

	staged := make([]*model.News, 0, len(items))
	for i := range items {
		item := &items[i]
		known, err := s.alreadyStored(ctx, symbol, item)
		if err != nil {
			return 0, err
		}
		if known {
			continue
		}
		staged = append(staged, s.buildRow(ctx, symbol, item))
	}
	if len(staged) == 0 {
		return 0, nil
	}

	err := s.sqlConn.TransactCtx(ctx, func(ctx context.Context, session sqlx.Session) error {
		for _, row := range staged {
			if err := s.newsModel.Insert(ctx, session, row); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		if isUniqueViolation(err) {
			logger.Infof("news batch for %s raced a duplicate insert, dropped", symbol)
			return 0, nil
		}
		return 0, err
	}

	s.invalidateCaches(ctx, symbol)
	logger.Infof("stored %d/%d news items for %s", len(staged), len(items), symbol)
	return len(staged), nil
}

// alreadyStored checks the dedup identity of an item against existing rows.
func (s *Service) alreadyStored(ctx context.Context, symbol string, item *news.Item) (bool, error) {
	var err error
	if link := strings.TrimSpace(item.Link); link != "" {
		_, err = s.newsModel.FindOneByDedupKey(ctx, symbol, item.Source, link)
	} else {
		_, err = s.newsModel.FindOneByTitleSourcePublished(ctx, symbol, item.Source, item.Title, item.PublishedAt)
	}
	switch {
	case err == nil:
		return true, nil
	case errors.Is(err, model.ErrNotFound):
		return false, nil
	default:
		return false, err
	}
}

func (s *Service) buildRow(ctx context.Context, symbol string, item *news.Item) *model.News {
	row := &model.News{
		Symbol:      symbol,
		Title:       item.Title,
		Summary:     nullString(item.Summary),
		Link:        nullString(item.Link),
		Publisher:   nullString(item.Publisher),
		Source:      item.Source,
		RawPayload:  nullString(rawPayload(item)),
		PublishedAt: nullTime(item.PublishedAt),
	}

	if s.analyzer != nil {
		verdict := s.analyzer.Analyze(ctx, item.Summary, item.Title)
		row.SentimentScore = sql.NullFloat64{Float64: verdict.Score, Valid: true}
		row.SentimentLabel = nullString(string(verdict.Sentiment))
		row.SentimentConfidence = sql.NullFloat64{Float64: verdict.Confidence, Valid: true}
		row.SentimentMethod = nullString(verdict.Method)
	}
	return row
}

func (s *Service) invalidateCaches(ctx context.Context, symbol string) {
	if s.cache == nil {
		return
	}
	keys := []string{cachekeys.NewsStatsKey(), cachekeys.NewsRecentKey(symbol)}
	if err := s.cache.DelCtx(ctx, keys...); err != nil {
		logx.WithContext(ctx).Errorf("invalidate news caches: %v", err)
	}
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23505"
}

func nullString(value string) sql.NullString {
	value = strings.TrimSpace(value)
	if value == "" {
		return sql.NullString{}
	}
	return sql.NullString{String: value, Valid: true}
}

func nullTime(value time.Time) sql.NullTime {
	if value.IsZero() {
		return sql.NullTime{}
	}
	return sql.NullTime{Time: value, Valid: true}
}

// rawPayload re-encodes an item for the raw column when the provider did not
// hand us its original JSON.
func rawPayload(item *news.Item) string {
	if item.RawJSON != "" {
		return item.RawJSON
	}
	data, err := json.Marshal(item)
	if err != nil {
		return ""
	}
	return string(data)
}
