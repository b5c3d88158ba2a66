package news

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"time"
)

const defaultFinnhubBaseURL = "https://finnhub.io"

func init() {
	RegisterProvider("finnhub", func(name string, cfg *ProviderConfig) (Provider, error) {
		return newFinnhubProvider(name, cfg), nil
	})
}

// finnhubFields maps each required item field to a prioritized list of
// source field names; the first present non-empty value wins. Finnhub has
// shipped both old and new payload shapes for company news, so the mapping
// is explicit rather than duck-typed.
var finnhubFields = map[string][]string{
	"headline": {"headline", "title"},
	"datetime": {"datetime", "time", "timestamp"},
	"summary":  {"summary", "description"},
}

// finnhubProvider talks to Finnhub's company-news endpoint over a trailing
// seven-day window.
type finnhubProvider struct {
	name       string
	apiKey     string
	baseURL    string
	httpClient *http.Client
	now        func() time.Time
}

func newFinnhubProvider(name string, cfg *ProviderConfig) *finnhubProvider {
	baseURL := cfg.BaseURL
	if baseURL == "" {
		baseURL = defaultFinnhubBaseURL
	}
	return &finnhubProvider{
		name:       name,
		apiKey:     cfg.APIKey,
		baseURL:    baseURL,
		httpClient: &http.Client{Timeout: cfg.Timeout},
		now:        time.Now,
	}
}

func (p *finnhubProvider) Name() string { return p.name }

func (p *finnhubProvider) Fetch(ctx context.Context, symbol string, maxArticles int) ([]Item, error) {
	end := p.now()
	start := end.AddDate(0, 0, -7)
	endpoint := fmt.Sprintf("%s/api/v1/company-news?symbol=%s&from=%s&to=%s&token=%s",
		p.baseURL, url.QueryEscape(symbol),
		start.Format("2006-01-02"), end.Format("2006-01-02"),
		url.QueryEscape(p.apiKey))

	var raw []map[string]any
	if err := getJSON(ctx, p.httpClient, endpoint, &raw); err != nil {
		return nil, fmt.Errorf("finnhub fetch %s: %w", symbol, err)
	}

	items := make([]Item, 0, len(raw))
	for _, entry := range raw {
		item, ok := p.mapEntry(entry)
		if !ok {
			continue
		}
		items = append(items, item)
		if len(items) >= maxArticles {
			break
		}
	}
	return items, nil
}

// mapEntry normalizes one raw article. An entry missing any required field
// is dropped alone; it never fails the batch.
func (p *finnhubProvider) mapEntry(entry map[string]any) (Item, bool) {
	headline, ok := firstString(entry, finnhubFields["headline"])
	if !ok {
		return Item{}, false
	}
	summary, ok := firstString(entry, finnhubFields["summary"])
	if !ok {
		return Item{}, false
	}
	publishedAt, ok := firstTimestamp(entry, finnhubFields["datetime"])
	if !ok {
		return Item{}, false
	}

	publisher, _ := firstString(entry, []string{"source"})
	if publisher == "" {
		publisher = "Finnhub"
	}
	link, _ := firstString(entry, []string{"url"})

	return Item{
		Title:       headline,
		Summary:     summary,
		Link:        link,
		Publisher:   publisher,
		PublishedAt: publishedAt,
		Source:      p.name,
		RawJSON:     rawJSON(entry),
	}, true
}

func firstString(entry map[string]any, candidates []string) (string, bool) {
	for _, field := range candidates {
		if value, ok := entry[field].(string); ok && value != "" {
			return value, true
		}
	}
	return "", false
}

func firstTimestamp(entry map[string]any, candidates []string) (time.Time, bool) {
	for _, field := range candidates {
		switch value := entry[field].(type) {
		case float64:
			if value > 0 {
				return time.Unix(int64(value), 0), true
			}
		case string:
			if parsed, err := time.Parse(time.RFC3339, value); err == nil {
				return parsed, true
			}
		}
	}
	return time.Time{}, false
}
