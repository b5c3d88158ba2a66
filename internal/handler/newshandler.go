package handler

import (
	"net/http"
	"time"

	"github.com/zeromicro/go-zero/rest/httpx"

	"marketnews-api/internal/model"
	"marketnews-api/internal/svc"
)

type quotaResponse struct {
	TradingSession string                         `json:"trading_session"`
	IsTradingHours bool                           `json:"is_trading_hours"`
	Providers      map[string]quotaProviderStanza `json:"providers"`
}

type quotaProviderStanza struct {
	Used             int  `json:"used"`
	Limit            int  `json:"limit"`
	Remaining        int  `json:"remaining"`
	Enabled          bool `json:"enabled"`
	TradingHoursOnly bool `json:"trading_hours_only"`
}

// NewsQuotaHandler reports per-provider request budgets for the current day.
func NewsQuotaHandler(svcCtx *svc.ServiceContext) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		resp := quotaResponse{
			TradingSession: string(svcCtx.Clock.Current()),
			IsTradingHours: svcCtx.Clock.IsTradingHours(),
			Providers:      map[string]quotaProviderStanza{},
		}
		for name, q := range svcCtx.Tracker.Snapshot() {
			resp.Providers[name] = quotaProviderStanza{
				Used:             q.Used,
				Limit:            q.Limit,
				Remaining:        q.Remaining,
				Enabled:          q.Enabled,
				TradingHoursOnly: q.TradingHoursOnly,
			}
		}
		httpx.OkJsonCtx(r.Context(), w, resp)
	}
}

// NewsStatsHandler serves the aggregated article statistics.
func NewsStatsHandler(svcCtx *svc.ServiceContext) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svcCtx.Repo == nil {
			writeUnavailable(w, r, "database not configured")
			return
		}
		stats, err := svcCtx.Repo.LoadNewsStats(r.Context())
		if err != nil {
			httpx.ErrorCtx(r.Context(), w, err)
			return
		}
		httpx.OkJsonCtx(r.Context(), w, stats)
	}
}

type recentNewsRequest struct {
	Symbol string `path:"symbol"`
	Limit  int    `form:"limit,default=50"`
}

type recentNewsItem struct {
	Title       string   `json:"title"`
	Summary     string   `json:"summary,omitempty"`
	Link        string   `json:"link,omitempty"`
	Publisher   string   `json:"publisher,omitempty"`
	PublishedAt string   `json:"published_at,omitempty"`
	Source      string   `json:"source"`
	Sentiment   *float64 `json:"sentiment_score,omitempty"`
	Label       string   `json:"sentiment_label,omitempty"`
}

// NewsRecentHandler lists stored articles for one symbol, newest first.
func NewsRecentHandler(svcCtx *svc.ServiceContext) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svcCtx.Repo == nil {
			writeUnavailable(w, r, "database not configured")
			return
		}
		var req recentNewsRequest
		if err := httpx.Parse(r, &req); err != nil {
			httpx.ErrorCtx(r.Context(), w, err)
			return
		}

		rows, err := svcCtx.Repo.RecentNews(r.Context(), req.Symbol, req.Limit)
		if err != nil {
			httpx.ErrorCtx(r.Context(), w, err)
			return
		}

		items := make([]recentNewsItem, 0, len(rows))
		for i := range rows {
			items = append(items, buildRecentItem(&rows[i]))
		}
		httpx.OkJsonCtx(r.Context(), w, map[string]any{
			"symbol": req.Symbol,
			"count":  len(items),
			"items":  items,
		})
	}
}

func buildRecentItem(row *model.News) recentNewsItem {
	item := recentNewsItem{
		Title:     row.Title,
		Summary:   row.Summary.String,
		Link:      row.Link.String,
		Publisher: row.Publisher.String,
		Source:    row.Source,
		Label:     row.SentimentLabel.String,
	}
	if row.PublishedAt.Valid {
		item.PublishedAt = row.PublishedAt.Time.UTC().Format(time.RFC3339)
	}
	if row.SentimentScore.Valid {
		value := row.SentimentScore.Float64
		item.Sentiment = &value
	}
	return item
}
