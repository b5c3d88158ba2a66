package repo

import (
	"context"
	"time"

	"github.com/zeromicro/go-zero/core/logx"
	gocache "github.com/zeromicro/go-zero/core/stores/cache"

	appcache "marketnews-api/internal/cache"
	"marketnews-api/internal/model"
)

// NewsStats is the aggregated statistics payload served by the API.
type NewsStats struct {
	TotalNews       int64      `json:"total_news"`
	SymbolsWithNews int64      `json:"symbols_with_news"`
	LatestNewsDate  *time.Time `json:"latest_news_date"`
	NewsSources     []string   `json:"news_sources"`
}

// Repo reads from Postgres through the models and caches responses via the
// go-zero cache layer. All readers tolerate a nil cache.
type Repo struct {
	news    model.NewsModel
	symbols model.TargetSymbolsModel
	cache   gocache.Cache
	ttl     appcache.TTLSet
}

func New(news model.NewsModel, symbols model.TargetSymbolsModel, cache gocache.Cache, ttl appcache.TTLSet) *Repo {
	return &Repo{news: news, symbols: symbols, cache: cache, ttl: ttl}
}

func (r *Repo) getCache(ctx context.Context, key string, v interface{}) (bool, error) {
	if r.cache == nil {
		return false, nil
	}
	if err := r.cache.GetCtx(ctx, key, v); err != nil {
		if r.cache.IsNotFound(err) {
			return false, nil
		}
		return false, err
	}
	return true, nil
}

func (r *Repo) setCache(ctx context.Context, key string, ttl time.Duration, v interface{}) {
	if r.cache == nil || ttl <= 0 {
		return
	}
	if err := r.cache.SetWithExpireCtx(ctx, key, v, ttl); err != nil {
		logx.WithContext(ctx).Errorf("set cache %s: %v", key, err)
	}
}

func (r *Repo) delCache(ctx context.Context, keys ...string) {
	if r.cache == nil {
		return
	}
	if err := r.cache.DelCtx(ctx, keys...); err != nil {
		logx.WithContext(ctx).Errorf("del cache %v: %v", keys, err)
	}
}

// LoadNewsStats returns aggregated article statistics, cached on the medium
// TTL bucket.
func (r *Repo) LoadNewsStats(ctx context.Context) (*NewsStats, error) {
	key := appcache.NewsStatsKey()
	var cached NewsStats
	if ok, _ := r.getCache(ctx, key, &cached); ok {
		return &cached, nil
	}

	summary, err := r.news.Stats(ctx)
	if err != nil {
		return nil, err
	}

	stats := &NewsStats{
		TotalNews:       summary.TotalNews,
		SymbolsWithNews: summary.SymbolsWithNews,
		LatestNewsDate:  summary.LatestNewsDate,
		NewsSources:     summary.Sources,
	}
	r.setCache(ctx, key, appcache.NewsStatsTTL(r.ttl), stats)
	return stats, nil
}

// InvalidateNewsStats drops the cached stats payload after new inserts.
func (r *Repo) InvalidateNewsStats(ctx context.Context) {
	r.delCache(ctx, appcache.NewsStatsKey())
}

// ListTrackedSymbols returns the active watchlist, cached on the long TTL
// bucket since the table changes rarely.
func (r *Repo) ListTrackedSymbols(ctx context.Context) ([]string, error) {
	key := appcache.TrackedSymbolsKey()
	var cached []string
	if ok, _ := r.getCache(ctx, key, &cached); ok {
		return cached, nil
	}

	rows, err := r.symbols.ListActive(ctx)
	if err != nil {
		return nil, err
	}
	symbols := make([]string, 0, len(rows))
	for _, row := range rows {
		symbols = append(symbols, row.Symbol)
	}
	r.setCache(ctx, key, appcache.TrackedSymbolsTTL(r.ttl), symbols)
	return symbols, nil
}

// RecentNews returns recent stored articles for a symbol, cached briefly.
func (r *Repo) RecentNews(ctx context.Context, symbol string, limit int) ([]model.News, error) {
	key := appcache.NewsRecentKey(symbol)
	if limit <= 0 {
		var cached []model.News
		if ok, _ := r.getCache(ctx, key, &cached); ok {
			return cached, nil
		}
	}

	rows, err := r.news.RecentBySymbol(ctx, symbol, limit)
	if err != nil {
		return nil, err
	}
	if limit <= 0 {
		r.setCache(ctx, key, appcache.NewsRecentTTL(r.ttl), rows)
	}
	return rows, nil
}
