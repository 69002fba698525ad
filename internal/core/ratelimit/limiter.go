package ratelimit

import (
	"context"
	"fmt"
	"net/http"
	"sync"
	"time"

	"meal2list/internal/pkg/common"

	"go.uber.org/zap"
)

// Entry per-domain request history
type Entry struct {
	LastRequest time.Time
	Count       int
	WindowReset time.Time
}

// Error carries the retry-after hint for a rejected admission
type Error struct {
	Domain     string
	RetryAfter time.Duration
}

func (e *Error) Error() string {
	return fmt.Sprintf("rate limit exceeded for %s, retry after %s", e.Domain, e.RetryAfter.Round(time.Second))
}

// AsCustomError converts the rejection to the shared error taxonomy
func (e *Error) AsCustomError() *common.CustomError {
	return common.NewError(common.ErrCodeRateLimit, e.Error(), http.StatusTooManyRequests, e)
}

// Limiter throttles outbound requests per source domain. State is
// in-memory for the process lifetime; nothing survives a restart.
type Limiter struct {
	mu          sync.Mutex
	entries     map[string]*Entry
	window      time.Duration
	maxRequests int
	minSpacing  time.Duration
	now         func() time.Time
	sleep       func(context.Context, time.Duration) error
}

// NewLimiter creates a per-domain limiter
func NewLimiter(window time.Duration, maxRequests int, minSpacing time.Duration) *Limiter {
	return &Limiter{
		entries:     make(map[string]*Entry),
		window:      window,
		maxRequests: maxRequests,
		minSpacing:  minSpacing,
		now:         time.Now,
		sleep:       sleepCtx,
	}
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

// Admit decides whether a request to domain may proceed. Window
// accounting runs first, then the per-request spacing delay: a fresh
// or elapsed window is opened with count 1; a full window rejects
// with a retry-after hint; otherwise the caller is delayed until at
// least the minimum spacing has passed since the previous admission.
func (l *Limiter) Admit(ctx context.Context, domain string) error {
	return l.AdmitWithSpacing(ctx, domain, l.minSpacing)
}

// AdmitWithSpacing is Admit with a per-call spacing requirement, used
// for domains with a registry override or a robots crawl-delay.
func (l *Limiter) AdmitWithSpacing(ctx context.Context, domain string, minSpacing time.Duration) error {
	if minSpacing < l.minSpacing {
		minSpacing = l.minSpacing
	}
	l.mu.Lock()
	now := l.now()

	entry, exists := l.entries[domain]
	if !exists || now.After(entry.WindowReset) {
		l.entries[domain] = &Entry{
			LastRequest: now,
			Count:       1,
			WindowReset: now.Add(l.window),
		}
		l.mu.Unlock()
		return nil
	}

	if entry.Count >= l.maxRequests {
		retryAfter := entry.WindowReset.Sub(now)
		l.mu.Unlock()
		common.LogWarn("domain request quota exhausted",
			zap.String("domain", domain),
			zap.Duration("retry_after", retryAfter),
		)
		return &Error{Domain: domain, RetryAfter: retryAfter}
	}

	var wait time.Duration
	if since := now.Sub(entry.LastRequest); since < minSpacing {
		wait = minSpacing - since
	}

	// reserve the slot before sleeping so concurrent callers queue up
	entry.Count++
	entry.LastRequest = now.Add(wait)
	l.mu.Unlock()

	if wait > 0 {
		common.LogDebug("spacing delay before admission",
			zap.String("domain", domain),
			zap.Duration("wait", wait),
		)
		if err := l.sleep(ctx, wait); err != nil {
			return err
		}
	}

	return nil
}

// Reset drops the recorded history for a domain
func (l *Limiter) Reset(domain string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	delete(l.entries, domain)
}

// Snapshot returns a copy of the entry for a domain, for inspection
func (l *Limiter) Snapshot(domain string) (Entry, bool) {
	l.mu.Lock()
	defer l.mu.Unlock()
	entry, ok := l.entries[domain]
	if !ok {
		return Entry{}, false
	}
	return *entry, true
}
