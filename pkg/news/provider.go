package news

import (
	"context"
	"errors"
)

// Provider exposes one external news source.
type Provider interface {
	// Fetch returns up to maxArticles normalized items for the symbol.
	// A transport or decode failure fails the whole call; a single
	// malformed article is dropped without failing the batch.
	Fetch(ctx context.Context, symbol string, maxArticles int) ([]Item, error)
	// Name returns the provider name as configured.
	Name() string
}

// ErrUnavailable marks a provider that cannot serve requests at all, e.g.
// a missing credential or a failed entitlement probe. BuildProviders treats
// it as "disable this provider", not as a fatal configuration error.
var ErrUnavailable = errors.New("news: provider unavailable")
