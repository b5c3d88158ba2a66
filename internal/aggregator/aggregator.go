// Package aggregator fans a symbol's news request out across the configured
// providers, enforcing per-provider quota before every call, then merges the
// results into a deduplicated, time-ordered list.
package aggregator

import (
	"context"
	"sort"
	"strings"

	"github.com/zeromicro/go-zero/core/logx"

	"marketnews-api/pkg/news"
	"marketnews-api/pkg/quota"
)

// Gate is the quota surface the aggregator consults. Check runs before a
// provider call, RecordCall after every attempted call whether or not it
// succeeded, and OptimalBatchSize sizes the request.
type Gate interface {
	Check(provider string) quota.Verdict
	RecordCall(provider string)
	OptimalBatchSize(provider string) int
}

// Aggregator queries every registered provider in a stable order.
type Aggregator struct {
	providers map[string]news.Provider
	order     []string
	gate      Gate
}

func New(providers map[string]news.Provider, gate Gate) *Aggregator {
	order := make([]string, 0, len(providers))
	for name := range providers {
		order = append(order, name)
	}
	sort.Strings(order)
	return &Aggregator{providers: providers, order: order, gate: gate}
}

// Providers returns the provider names in fan-out order.
func (a *Aggregator) Providers() []string {
	out := make([]string, len(a.order))
	copy(out, a.order)
	return out
}

// FetchAll collects news for a symbol from every provider the gate admits.
// Provider failures are logged and skipped so one bad source cannot sink the
// run; the merged result is deduplicated and sorted newest first.
func (a *Aggregator) FetchAll(ctx context.Context, symbol string) []news.Item {
	logger := logx.WithContext(ctx)
	var merged []news.Item

	for _, name := range a.order {
		verdict := a.gate.Check(name)
		if !verdict.Allowed {
			logger.Infof("provider %s skipped for %s: %s", name, symbol, verdict.Reason)
			continue
		}

		batch := a.gate.OptimalBatchSize(name)
		if batch <= 0 {
			logger.Infof("provider %s skipped for %s: zero batch size", name, symbol)
			continue
		}

		items, err := a.providers[name].Fetch(ctx, symbol, batch)
		a.gate.RecordCall(name)
		if err != nil {
			logger.Errorf("provider %s fetch %s failed: %v", name, symbol, err)
			continue
		}
		merged = append(merged, items...)
	}

	return SortNewestFirst(Dedupe(merged))
}

// Dedupe removes repeated articles, keeping the first occurrence so earlier
// providers win. Items with a link are keyed on it; link-less items fall back
// to title plus timestamp.
func Dedupe(items []news.Item) []news.Item {
	seen := make(map[string]struct{}, len(items))
	out := make([]news.Item, 0, len(items))
	for _, item := range items {
		key := dedupeKey(item)
		if _, dup := seen[key]; dup {
			continue
		}
		seen[key] = struct{}{}
		out = append(out, item)
	}
	return out
}

func dedupeKey(item news.Item) string {
	if link := strings.TrimSpace(item.Link); link != "" {
		return "l:" + link
	}
	return "t:" + strings.ToLower(strings.TrimSpace(item.Title)) + "|" + item.PublishedAt.UTC().Format("2006-01-02T15:04:05")
}

// SortNewestFirst orders items by publication time descending. Items without
// a usable timestamp sink to the end; the sort is stable so provider order is
// preserved among equals.
func SortNewestFirst(items []news.Item) []news.Item {
	sort.SliceStable(items, func(i, j int) bool {
		left, right := items[i], items[j]
		switch {
		case !left.HasTimestamp():
			return false
		case !right.HasTimestamp():
			return true
		default:
			return left.PublishedAt.After(right.PublishedAt)
		}
	})
	return items
}
