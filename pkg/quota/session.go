// Package quota gates news provider calls against per-provider daily request
// budgets, a trading-session window, and a per-minute rate limit for
// high-volume providers.
package quota

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// Session classifies wall-clock time against the configured trading window.
type Session string

const (
	SessionPreMarket      Session = "pre_market"
	SessionRegularTrading Session = "regular_trading"
	SessionAfterHours     Session = "after_hours"
)

const (
	defaultTradingStart = "05:30"
	defaultTradingEnd   = "14:00"
)

// SessionClock derives the current trading session from two wall-clock
// boundaries in the process-local zone. There is no holiday or exchange
// calendar awareness; weekends count as trading days too.
type SessionClock struct {
	start time.Duration // offset from midnight
	end   time.Duration
	now   func() time.Time
}

// ClockOption customises a SessionClock.
type ClockOption func(*SessionClock)

// WithClockNow overrides the time source, for tests.
func WithClockNow(now func() time.Time) ClockOption {
	return func(c *SessionClock) {
		if now != nil {
			c.now = now
		}
	}
}

// NewSessionClock parses "HH:MM" boundaries. Empty strings take the
// defaults (05:30 and 14:00, the original deployment's window).
func NewSessionClock(start, end string, opts ...ClockOption) (*SessionClock, error) {
	if start == "" {
		start = defaultTradingStart
	}
	if end == "" {
		end = defaultTradingEnd
	}
	startOffset, err := parseWallClock(start)
	if err != nil {
		return nil, fmt.Errorf("trading start: %w", err)
	}
	endOffset, err := parseWallClock(end)
	if err != nil {
		return nil, fmt.Errorf("trading end: %w", err)
	}
	if endOffset <= startOffset {
		return nil, fmt.Errorf("trading end %s must be after start %s", end, start)
	}
	clock := &SessionClock{start: startOffset, end: endOffset, now: time.Now}
	for _, opt := range opts {
		opt(clock)
	}
	return clock, nil
}

func parseWallClock(value string) (time.Duration, error) {
	parts := strings.SplitN(strings.TrimSpace(value), ":", 2)
	if len(parts) != 2 {
		return 0, fmt.Errorf("invalid wall-clock time %q, want HH:MM", value)
	}
	hour, err := strconv.Atoi(parts[0])
	if err != nil || hour < 0 || hour > 23 {
		return 0, fmt.Errorf("invalid hour in %q", value)
	}
	minute, err := strconv.Atoi(parts[1])
	if err != nil || minute < 0 || minute > 59 {
		return 0, fmt.Errorf("invalid minute in %q", value)
	}
	return time.Duration(hour)*time.Hour + time.Duration(minute)*time.Minute, nil
}

func (c *SessionClock) dayOffset(t time.Time) time.Duration {
	midnight := time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, t.Location())
	return t.Sub(midnight)
}

// Current returns the session for the current wall-clock time. The window is
// inclusive on both boundaries.
func (c *SessionClock) Current() Session {
	offset := c.dayOffset(c.now())
	switch {
	case offset >= c.start && offset <= c.end:
		return SessionRegularTrading
	case offset < c.start:
		return SessionPreMarket
	default:
		return SessionAfterHours
	}
}

// IsTradingHours reports whether the current session is regular trading.
func (c *SessionClock) IsTradingHours() bool {
	return c.Current() == SessionRegularTrading
}

// HoursRemaining returns the remaining regular-trading hours as a decimal:
// the full session length before the open, zero at or after the close, and
// the exact delta to the close in between.
func (c *SessionClock) HoursRemaining() float64 {
	offset := c.dayOffset(c.now())
	switch {
	case offset >= c.end:
		return 0
	case offset < c.start:
		return (c.end - c.start).Hours()
	default:
		return (c.end - offset).Hours()
	}
}
