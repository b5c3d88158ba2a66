// Package news provides normalized access to external financial news APIs.
//
// Each provider adapter knows how to fetch and map one source's response
// shape into Item. Adapters never decide whether they are allowed to be
// called; quota and session gating live in pkg/quota and are applied by the
// caller before Fetch.
package news

import "time"

// Item is one normalized news article from any provider.
type Item struct {
	Title       string    `json:"title"`
	Summary     string    `json:"summary"`
	Link        string    `json:"link"`
	Publisher   string    `json:"publisher"`
	PublishedAt time.Time `json:"published_at"` // zero when the source timestamp was missing or unparseable
	Source      string    `json:"source"`       // provider name that produced the item
	RawJSON     string    `json:"raw_json,omitempty"`
}

// HasTimestamp reports whether the item carries a usable publication time.
func (i Item) HasTimestamp() bool {
	return !i.PublishedAt.IsZero()
}
