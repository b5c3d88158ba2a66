package news

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"time"
)

const defaultNewsAPIBaseURL = "https://newsapi.org"

func init() {
	RegisterProvider("newsapi", func(name string, cfg *ProviderConfig) (Provider, error) {
		return newNewsAPIProvider(name, cfg), nil
	})
}

// newsAPIProvider talks to NewsAPI.org's everything endpoint.
type newsAPIProvider struct {
	name       string
	apiKey     string
	baseURL    string
	httpClient *http.Client
}

func newNewsAPIProvider(name string, cfg *ProviderConfig) *newsAPIProvider {
	baseURL := cfg.BaseURL
	if baseURL == "" {
		baseURL = defaultNewsAPIBaseURL
	}
	return &newsAPIProvider{
		name:       name,
		apiKey:     cfg.APIKey,
		baseURL:    baseURL,
		httpClient: &http.Client{Timeout: cfg.Timeout},
	}
}

func (p *newsAPIProvider) Name() string { return p.name }

func (p *newsAPIProvider) Fetch(ctx context.Context, symbol string, maxArticles int) ([]Item, error) {
	endpoint := fmt.Sprintf("%s/v2/everything?q=%s&sortBy=publishedAt&language=en&pageSize=%d&apiKey=%s",
		p.baseURL, url.QueryEscape(symbol), maxArticles, url.QueryEscape(p.apiKey))

	var raw newsAPIResponse
	if err := getJSON(ctx, p.httpClient, endpoint, &raw); err != nil {
		return nil, fmt.Errorf("newsapi fetch %s: %w", symbol, err)
	}
	if raw.Status != "ok" {
		return nil, fmt.Errorf("newsapi fetch %s: status %q: %s", symbol, raw.Status, raw.Message)
	}

	items := make([]Item, 0, len(raw.Articles))
	for _, article := range raw.Articles {
		if article.Title == "" || article.URL == "" {
			continue
		}
		publishedAt, err := time.Parse(time.RFC3339, article.PublishedAt)
		if err != nil {
			publishedAt = time.Time{}
		}
		items = append(items, Item{
			Title:       article.Title,
			Summary:     article.Description,
			Link:        article.URL,
			Publisher:   article.Source.Name,
			PublishedAt: publishedAt,
			Source:      p.name,
			RawJSON:     rawJSON(article),
		})
	}
	return items, nil
}

type newsAPIResponse struct {
	Status   string           `json:"status"`
	Message  string           `json:"message"`
	Articles []newsAPIArticle `json:"articles"`
}

type newsAPIArticle struct {
	Source      newsAPISource `json:"source"`
	Title       string        `json:"title"`
	Description string        `json:"description"`
	URL         string        `json:"url"`
	PublishedAt string        `json:"publishedAt"`
}

type newsAPISource struct {
	Name string `json:"name"`
}
