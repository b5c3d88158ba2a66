package news

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"time"
)

const defaultMarketauxBaseURL = "https://api.marketaux.com"

func init() {
	RegisterProvider("marketaux", func(name string, cfg *ProviderConfig) (Provider, error) {
		p := newMarketauxProvider(name, cfg)
		probeCtx, cancel := context.WithTimeout(context.Background(), cfg.Timeout)
		defer cancel()
		if err := p.probe(probeCtx); err != nil {
			return nil, err
		}
		return p, nil
	})
}

// marketauxProvider talks to the Marketaux news API. The free tier caps every
// call at a handful of articles and entitlement is checked once at startup:
// accounts without access to the news endpoint get 402/403 and the provider
// disables itself instead of failing on every fetch.
type marketauxProvider struct {
	name       string
	apiKey     string
	baseURL    string
	httpClient *http.Client
}

func newMarketauxProvider(name string, cfg *ProviderConfig) *marketauxProvider {
	baseURL := cfg.BaseURL
	if baseURL == "" {
		baseURL = defaultMarketauxBaseURL
	}
	return &marketauxProvider{
		name:       name,
		apiKey:     cfg.APIKey,
		baseURL:    baseURL,
		httpClient: &http.Client{Timeout: cfg.Timeout},
	}
}

func (p *marketauxProvider) Name() string { return p.name }

// probe performs the one-time reachability and entitlement check.
func (p *marketauxProvider) probe(ctx context.Context) error {
	endpoint := fmt.Sprintf("%s/v1/news/all?limit=1&api_token=%s", p.baseURL, url.QueryEscape(p.apiKey))
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return fmt.Errorf("marketaux probe: %w", err)
	}
	resp, err := p.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("%w: marketaux probe: %v", ErrUnavailable, err)
	}
	defer resp.Body.Close()
	switch resp.StatusCode {
	case http.StatusPaymentRequired, http.StatusForbidden, http.StatusUnauthorized:
		return fmt.Errorf("%w: marketaux entitlement check returned %d", ErrUnavailable, resp.StatusCode)
	}
	return nil
}

func (p *marketauxProvider) Fetch(ctx context.Context, symbol string, maxArticles int) ([]Item, error) {
	endpoint := fmt.Sprintf("%s/v1/news/all?symbols=%s&limit=%d&language=en&api_token=%s",
		p.baseURL, url.QueryEscape(symbol), maxArticles, url.QueryEscape(p.apiKey))

	var raw marketauxResponse
	if err := getJSON(ctx, p.httpClient, endpoint, &raw); err != nil {
		return nil, fmt.Errorf("marketaux fetch %s: %w", symbol, err)
	}

	items := make([]Item, 0, len(raw.Data))
	for _, entry := range raw.Data {
		if entry.Title == "" || entry.URL == "" {
			continue
		}
		publishedAt, err := time.Parse(time.RFC3339, entry.PublishedAt)
		if err != nil {
			publishedAt = time.Time{}
		}
		items = append(items, Item{
			Title:       entry.Title,
			Summary:     entry.Description,
			Link:        entry.URL,
			Publisher:   entry.Source,
			PublishedAt: publishedAt,
			Source:      p.name,
			RawJSON:     rawJSON(entry),
		})
	}
	return items, nil
}

type marketauxResponse struct {
	Data []marketauxArticle `json:"data"`
}

type marketauxArticle struct {
	Title       string `json:"title"`
	Description string `json:"description"`
	URL         string `json:"url"`
	Source      string `json:"source"`
	PublishedAt string `json:"published_at"`
}
