package news

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"time"
)

const (
	defaultFMPBaseURL    = "https://financialmodelingprep.com"
	fmpPublishedAtLayout = "2006-01-02 15:04:05"
)

func init() {
	RegisterProvider("fmp", func(name string, cfg *ProviderConfig) (Provider, error) {
		return newFMPProvider(name, cfg), nil
	})
}

// fmpProvider talks to Financial Modeling Prep's stock news endpoint.
type fmpProvider struct {
	name       string
	apiKey     string
	baseURL    string
	httpClient *http.Client
}

func newFMPProvider(name string, cfg *ProviderConfig) *fmpProvider {
	baseURL := cfg.BaseURL
	if baseURL == "" {
		baseURL = defaultFMPBaseURL
	}
	return &fmpProvider{
		name:       name,
		apiKey:     cfg.APIKey,
		baseURL:    baseURL,
		httpClient: &http.Client{Timeout: cfg.Timeout},
	}
}

func (p *fmpProvider) Name() string { return p.name }

func (p *fmpProvider) Fetch(ctx context.Context, symbol string, maxArticles int) ([]Item, error) {
	endpoint := fmt.Sprintf("%s/api/v3/stock_news?tickers=%s&limit=%d&apikey=%s",
		p.baseURL, url.QueryEscape(symbol), maxArticles, url.QueryEscape(p.apiKey))

	var raw []fmpArticle
	if err := getJSON(ctx, p.httpClient, endpoint, &raw); err != nil {
		return nil, fmt.Errorf("fmp fetch %s: %w", symbol, err)
	}

	items := make([]Item, 0, len(raw))
	for _, entry := range raw {
		if entry.Title == "" || entry.URL == "" {
			continue
		}
		publishedAt, err := time.Parse(fmpPublishedAtLayout, entry.PublishedDate)
		if err != nil {
			publishedAt = time.Time{}
		}
		items = append(items, Item{
			Title:       entry.Title,
			Summary:     entry.Text,
			Link:        entry.URL,
			Publisher:   entry.Site,
			PublishedAt: publishedAt,
			Source:      p.name,
			RawJSON:     rawJSON(entry),
		})
	}
	return items, nil
}

type fmpArticle struct {
	Symbol        string `json:"symbol"`
	PublishedDate string `json:"publishedDate"`
	Title         string `json:"title"`
	Site          string `json:"site"`
	Text          string `json:"text"`
	URL           string `json:"url"`
}
