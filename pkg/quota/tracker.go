package quota

import (
	"sync"
	"time"
)

const (
	// Providers above this daily limit are considered high volume and are
	// additionally capped at one request per sliding minute.
	highVolumeThreshold = 1000
	rateWindow          = time.Minute

	// OptimalBatchSize never goes below this floor, except for providers
	// whose own per-request cap is smaller.
	minBatchSize = 10
)

// Limits is the immutable per-provider budget, loaded once at startup.
type Limits struct {
	Name               string
	DailyRequests      int
	ArticlesPerRequest int
	TradingHoursOnly   bool
	Enabled            bool
}

// DenialReason says why a call was not permitted. Denials are expected
// control flow, not errors; callers skip the provider and move on.
type DenialReason string

const (
	DenyUnknownProvider DenialReason = "unknown_provider"
	DenyDisabled        DenialReason = "provider_disabled"
	DenyOutsideSession  DenialReason = "outside_trading_hours"
	DenyDailyLimit      DenialReason = "daily_limit_reached"
	DenyRateLimited     DenialReason = "rate_limited"
)

// Verdict is the outcome of a permission check.
type Verdict struct {
	Allowed bool
	Reason  DenialReason // set when not allowed
}

var allowed = Verdict{Allowed: true}

func denied(reason DenialReason) Verdict {
	return Verdict{Reason: reason}
}

// SourceStatus is the externally observable per-provider block of the
// scheduler status payload.
type SourceStatus struct {
	Enabled                   bool `json:"enabled"`
	RequestsMade              int  `json:"requests_made"`
	DailyLimit                int  `json:"daily_limit"`
	RequestsRemaining         int  `json:"requests_remaining"`
	CanMakeRequest            bool `json:"can_make_request"`
	OptimalArticlesPerRequest int  `json:"optimal_articles_per_request"`
	TradingHoursOnly          bool `json:"trading_hours_only"`
}

// ProviderQuota is the compact quota snapshot served by the quota query.
type ProviderQuota struct {
	Used             int  `json:"used"`
	Limit            int  `json:"limit"`
	Remaining        int  `json:"remaining"`
	Enabled          bool `json:"enabled"`
	TradingHoursOnly bool `json:"trading_hours_only"`
}

// Tracker owns all quota state. It is the only shared mutable resource in
// the aggregation core: every check-then-act sequence on counters happens
// under one mutex, so concurrent callers can never both observe the last
// remaining request.
//
// Counters are keyed by (provider, calendar date) and created lazily; a
// missing entry means zero usage, so the date rollover needs no reset job.
// State is process-local and intentionally does not survive restarts.
type Tracker struct {
	mu     sync.Mutex
	clock  *SessionClock
	limits map[string]Limits
	counts map[string]map[string]int // date -> provider -> requests made
	window map[string][]time.Time    // provider -> call timestamps within rateWindow
	now    func() time.Time
}

// TrackerOption customises a Tracker.
type TrackerOption func(*Tracker)

// WithNow overrides the time source, for tests. The session clock shares the
// same source, so date buckets and session classification cannot diverge.
func WithNow(now func() time.Time) TrackerOption {
	return func(t *Tracker) {
		if now == nil {
			return
		}
		t.now = now
		if t.clock != nil {
			t.clock.now = now
		}
	}
}

// NewTracker builds a tracker for the given provider limits.
func NewTracker(clock *SessionClock, limits []Limits, opts ...TrackerOption) *Tracker {
	byName := make(map[string]Limits, len(limits))
	for _, l := range limits {
		byName[l.Name] = l
	}
	t := &Tracker{
		clock:  clock,
		limits: byName,
		counts: make(map[string]map[string]int),
		window: make(map[string][]time.Time),
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(t)
	}
	return t
}

func (t *Tracker) dayKey(at time.Time) string {
	return at.Format("2006-01-02")
}

// Check reports whether the provider may be called right now.
func (t *Tracker) Check(provider string) Verdict {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.checkLocked(provider, t.now())
}

func (t *Tracker) checkLocked(provider string, at time.Time) Verdict {
	limits, ok := t.limits[provider]
	if !ok {
		return denied(DenyUnknownProvider)
	}
	if !limits.Enabled {
		return denied(DenyDisabled)
	}
	if limits.TradingHoursOnly && !t.clock.IsTradingHours() {
		return denied(DenyOutsideSession)
	}
	if t.usedLocked(provider, at) >= limits.DailyRequests {
		return denied(DenyDailyLimit)
	}
	if limits.DailyRequests > highVolumeThreshold {
		t.evictWindowLocked(provider, at)
		if len(t.window[provider]) >= 1 {
			return denied(DenyRateLimited)
		}
	}
	return allowed
}

// RecordCall books one outbound call against today's budget. It must be
// called exactly once per actual provider call, success or failure, and
// never for a skipped call.
func (t *Tracker) RecordCall(provider string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.recordLocked(provider, t.now())
}

func (t *Tracker) recordLocked(provider string, at time.Time) {
	day := t.dayKey(at)
	if t.counts[day] == nil {
		t.counts[day] = make(map[string]int)
		// Drop stale day buckets so long-running processes stay bounded.
		for key := range t.counts {
			if key != day {
				delete(t.counts, key)
			}
		}
	}
	t.counts[day][provider]++

	t.evictWindowLocked(provider, at)
	t.window[provider] = append(t.window[provider], at)
}

// TryAcquire combines Check and RecordCall in one critical section for
// callers that fan providers out concurrently: two goroutines can never both
// observe the last remaining request. The sequential fetch loop uses the
// split Check/RecordCall pair instead, so a denied call is never booked.
func (t *Tracker) TryAcquire(provider string) bool {
	t.mu.Lock()
	defer t.mu.Unlock()

	at := t.now()
	if !t.checkLocked(provider, at).Allowed {
		return false
	}
	t.recordLocked(provider, at)
	return true
}

func (t *Tracker) usedLocked(provider string, at time.Time) int {
	return t.counts[t.dayKey(at)][provider]
}

func (t *Tracker) evictWindowLocked(provider string, at time.Time) {
	recent := t.window[provider][:0]
	for _, ts := range t.window[provider] {
		if at.Sub(ts) < rateWindow {
			recent = append(recent, ts)
		}
	}
	t.window[provider] = recent
}

// OptimalBatchSize returns how many articles to request from the provider
// right now. Zero means the provider has no remaining budget (or, for
// session-gated providers, the session is over). Providers whose per-call
// cap is already below the floor keep their cap unchanged. Session-gated
// providers scale the batch up as remaining hours and remaining requests
// shrink, so they are not starved late in the session; ungated providers
// scale down proportionally to the remaining daily budget.
func (t *Tracker) OptimalBatchSize(provider string) int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.optimalBatchSizeLocked(provider, t.now())
}

func (t *Tracker) optimalBatchSizeLocked(provider string, at time.Time) int {
	limits, ok := t.limits[provider]
	if !ok {
		return 0
	}
	remaining := limits.DailyRequests - t.usedLocked(provider, at)
	if remaining <= 0 {
		return 0
	}
	if limits.ArticlesPerRequest < minBatchSize {
		return limits.ArticlesPerRequest
	}

	var batch int
	if limits.TradingHoursOnly {
		hoursRemaining := t.clock.HoursRemaining()
		if hoursRemaining <= 0 {
			return 0
		}
		requestsPerHour := float64(remaining) / hoursRemaining
		if requestsPerHour < 1 {
			requestsPerHour = 1
		}
		batch = int(requestsPerHour * 10)
	} else {
		batch = remaining / 10
	}

	if batch < minBatchSize {
		batch = minBatchSize
	}
	if batch > limits.ArticlesPerRequest {
		batch = limits.ArticlesPerRequest
	}
	return batch
}

// Snapshot returns the per-provider quota map for the quota query.
func (t *Tracker) Snapshot() map[string]ProviderQuota {
	t.mu.Lock()
	defer t.mu.Unlock()

	at := t.now()
	result := make(map[string]ProviderQuota, len(t.limits))
	for name, limits := range t.limits {
		used := t.usedLocked(name, at)
		result[name] = ProviderQuota{
			Used:             used,
			Limit:            limits.DailyRequests,
			Remaining:        limits.DailyRequests - used,
			Enabled:          limits.Enabled,
			TradingHoursOnly: limits.TradingHoursOnly,
		}
	}
	return result
}

// SourceStatus returns the full per-provider block of the scheduler status
// payload, including the live permission and batch-size decision.
func (t *Tracker) SourceStatus() map[string]SourceStatus {
	t.mu.Lock()
	defer t.mu.Unlock()

	at := t.now()
	result := make(map[string]SourceStatus, len(t.limits))
	for name, limits := range t.limits {
		used := t.usedLocked(name, at)
		result[name] = SourceStatus{
			Enabled:                   limits.Enabled,
			RequestsMade:              used,
			DailyLimit:                limits.DailyRequests,
			RequestsRemaining:         limits.DailyRequests - used,
			CanMakeRequest:            t.checkLocked(name, at).Allowed,
			OptimalArticlesPerRequest: t.optimalBatchSizeLocked(name, at),
			TradingHoursOnly:          limits.TradingHoursOnly,
		}
	}
	return result
}

// Clock exposes the tracker's session clock.
func (t *Tracker) Clock() *SessionClock {
	return t.clock
}
