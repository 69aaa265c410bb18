package security

import (
	"context"
	"log/slog"
	"time"

	"github.com/termsite/backend/internal/config"
)

// AttemptCounter is the slice of the submission log the rate limiter needs.
type AttemptCounter interface {
	// CountSince counts prior attempts (any outcome) since the given
	// instant whose client IP or email matches — a set union, so an
	// attacker rotating IPs while reusing an email (or vice versa) is
	// still counted against the same budget.
	CountSince(ctx context.Context, clientIP, email string, since time.Time) (int, error)
}

// RateLimitInfo carries per-window telemetry from a rate-limit check.
// When the check denies, BlockedWindow names the violated window and
// BlockedUntil is the earliest instant a retry could succeed.
type RateLimitInfo struct {
	Remaining     map[string]int       `json:"remaining"`
	ResetTimes    map[string]time.Time `json:"reset_times"`
	BlockedWindow string               `json:"blocked_window,omitempty"`
	BlockedUntil  time.Time            `json:"blocked_until,omitzero"`
}

// RateLimiter gates submissions against multiple sliding windows counted
// from the persistent submission log. It holds no per-client state itself.
type RateLimiter struct {
	counter AttemptCounter
	windows []config.RateWindow
	now     func() time.Time
}

// NewRateLimiter creates a RateLimiter over the given windows. Windows are
// checked in the order given; callers should order them shortest first so
// the cheapest violation short-circuits.
func NewRateLimiter(counter AttemptCounter, windows []config.RateWindow) *RateLimiter {
	return &RateLimiter{counter: counter, windows: windows, now: time.Now}
}

// Check evaluates every window for the identity. It returns false with the
// violated window's name and blocked-until instant on the first window
// whose count has already reached its max.
//
// If the underlying store fails, Check fails closed: the limiter is the
// primary defense against volumetric abuse, so a broken store must deny
// rather than admit unlimited submissions. The error is returned so the
// caller can report it.
func (l *RateLimiter) Check(ctx context.Context, clientIP, email string) (bool, RateLimitInfo, error) {
	now := l.now().UTC()
	info := RateLimitInfo{
		Remaining:  make(map[string]int, len(l.windows)),
		ResetTimes: make(map[string]time.Time, len(l.windows)),
	}

	for _, w := range l.windows {
		since := now.Add(-w.Length.Std())
		count, err := l.counter.CountSince(ctx, clientIP, email, since)
		if err != nil {
			info.BlockedWindow = w.Name
			return false, info, err
		}

		info.Remaining[w.Name] = max(0, w.Max-count)
		info.ResetTimes[w.Name] = now.Add(w.Length.Std())

		if count >= w.Max {
			info.BlockedWindow = w.Name
			info.BlockedUntil = now.Add(w.Length.Std())
			slog.Warn("rate limit exceeded",
				"client_ip", clientIP,
				"window", w.Name,
				"count", count,
			)
			return false, info, nil
		}
	}

	return true, info, nil
}
