package robots

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"meal2list/internal/infrastructure/config"
	"meal2list/internal/pkg/common"

	"github.com/go-redis/redis/v8"
	"github.com/go-resty/resty/v2"
	"go.uber.org/zap"
)

// ReasonCheckFailed marks a fail-open decision after a fetch or
// parse failure of the robots resource itself.
const ReasonCheckFailed = "robots check failed"

// sentinel cached for hosts without a robots.txt
const missingMarker = "\x00missing"

// Checker fetches and evaluates robots.txt for target URLs. Rulesets
// are cached per host in redis when a client is configured; cache
// failures fall back to a live fetch.
type Checker struct {
	client    *resty.Client
	cache     *redis.Client
	cacheTTL  time.Duration
	userAgent string
}

// NewChecker creates a robots checker. cache may be nil.
func NewChecker(cfg *config.Config, cache *redis.Client) *Checker {
	client := resty.New().
		SetTimeout(cfg.Robots.Timeout).
		SetHeader("User-Agent", cfg.Robots.UserAgent)

	return &Checker{
		client:    client,
		cache:     cache,
		cacheTTL:  cfg.Robots.CacheTTL,
		userAgent: cfg.Robots.UserAgent,
	}
}

// Check evaluates robots.txt permission for rawURL. A missing
// robots.txt permits everything; a failure to fetch or read the
// robots resource fails open with ReasonCheckFailed.
func (c *Checker) Check(ctx context.Context, rawURL string) Decision {
	u, err := url.Parse(rawURL)
	if err != nil || u.Host == "" {
		return Decision{Allowed: true, Reason: ReasonCheckFailed}
	}

	body, err := c.fetchRuleset(ctx, u)
	if err != nil {
		common.LogWarn("robots fetch failed, allowing by default",
			zap.String("host", u.Host),
			zap.Error(err),
		)
		return Decision{Allowed: true, Reason: ReasonCheckFailed}
	}
	if body == missingMarker {
		return Decision{Allowed: true}
	}

	decision := ParseRuleset(body).Decide(c.userAgent, u.Path)
	if !decision.Allowed {
		common.LogInfo("url disallowed by robots.txt",
			zap.String("host", u.Host),
			zap.String("path", u.Path),
		)
	}
	return decision
}

// fetchRuleset returns the robots.txt body for the URL's host, going
// through the redis cache when available.
func (c *Checker) fetchRuleset(ctx context.Context, u *url.URL) (string, error) {
	key := "robots:txt:" + u.Host

	if c.cache != nil {
		if cached, err := c.cache.Get(ctx, key).Result(); err == nil {
			common.LogDebug("robots cache hit", zap.String("host", u.Host))
			return cached, nil
		}
	}

	robotsURL := fmt.Sprintf("%s://%s/robots.txt", u.Scheme, u.Host)
	resp, err := c.client.R().SetContext(ctx).Get(robotsURL)
	if err != nil {
		return "", fmt.Errorf("failed to fetch robots.txt: %w", err)
	}

	var body string
	switch {
	case resp.StatusCode() == http.StatusOK:
		body = resp.String()
	case resp.StatusCode() == http.StatusNotFound:
		body = missingMarker
	case resp.StatusCode() >= 500:
		return "", fmt.Errorf("robots.txt fetch returned status %d", resp.StatusCode())
	default:
		// 401/403 on the robots resource itself: treat as absent
		body = missingMarker
	}

	if c.cache != nil {
		if err := c.cache.Set(ctx, key, body, c.cacheTTL).Err(); err != nil {
			common.LogDebug("robots cache store failed", zap.Error(err))
		}
	}

	return body, nil
}
