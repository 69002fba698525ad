package acquire

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"meal2list/internal/core/ratelimit"
	"meal2list/internal/core/robots"
	"meal2list/internal/infrastructure/config"
	"meal2list/internal/pkg/common"

	"github.com/go-resty/resty/v2"
	"go.uber.org/zap"
)

// scrapeOptions merged per-domain options sent to the scrape service
type scrapeOptions struct {
	ContentSelector  string   `json:"content_selector,omitempty"`
	ExcludeSelectors []string `json:"exclude_selectors,omitempty"`
}

// scrapeRequest scrape service request body
type scrapeRequest struct {
	URL     string        `json:"url"`
	Options scrapeOptions `json:"options"`
}

// scrapeResponse scrape service response body
type scrapeResponse struct {
	Content  string            `json:"content"`
	Metadata map[string]string `json:"metadata"`
}

// optimizeRequest content-optimization service request body
type optimizeRequest struct {
	Content string        `json:"content"`
	Options scrapeOptions `json:"options"`
}

// optimizeResponse content-optimization service response body
type optimizeResponse struct {
	CleanedContent  string            `json:"cleaned_content"`
	Metadata        map[string]string `json:"metadata"`
	EstimatedTokens int               `json:"estimated_tokens"`
	TokenReduction  float64           `json:"token_reduction"`
}

// ScrapeAdapter acquires recipe text by scraping a URL through the
// external scrape and content-optimization services, gated by the
// per-domain rate limiter and a robots.txt check.
type ScrapeAdapter struct {
	config  *config.Config
	limiter *ratelimit.Limiter
	robots  *robots.Checker
	client  *resty.Client
	policy  common.RetryPolicy
}

// NewScrapeAdapter creates a scraping adapter
func NewScrapeAdapter(cfg *config.Config, limiter *ratelimit.Limiter, checker *robots.Checker) *ScrapeAdapter {
	client := resty.New().
		SetTimeout(cfg.Scraper.Timeout).
		SetHeader("Content-Type", "application/json")

	policy := common.DefaultRetryPolicy()
	if cfg.Scraper.MaxRetries > 0 {
		policy.MaxAttempts = cfg.Scraper.MaxRetries
	}
	// only transient failures are worth another attempt
	policy.Retryable = func(err error) bool {
		switch common.CodeOf(err) {
		case common.ErrCodeRequestTimeout, common.ErrCodeNetworkError:
			return true
		}
		return false
	}

	return &ScrapeAdapter{
		config:  cfg,
		limiter: limiter,
		robots:  checker,
		client:  client,
		policy:  policy,
	}
}

// Scrape runs the full acquisition pipeline for a URL and returns
// the assembled result. The pipeline is retried as a whole, with
// exponential backoff, for timeout and network failures only.
func (a *ScrapeAdapter) Scrape(ctx context.Context, rawURL string) (*ScrapeResult, error) {
	target, err := validateURL(rawURL)
	if err != nil {
		return nil, err
	}

	var result *ScrapeResult
	err = common.Retry(ctx, a.policy, "scrape "+target.Host, func() error {
		var attemptErr error
		result, attemptErr = a.runPipeline(ctx, target)
		return attemptErr
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

// ProduceRecipeText acquires recipe text from a URL
func (a *ScrapeAdapter) ProduceRecipeText(ctx context.Context, rawURL string) (string, error) {
	result, err := a.Scrape(ctx, rawURL)
	if err != nil {
		return "", err
	}
	return result.Content, nil
}

func (a *ScrapeAdapter) runPipeline(ctx context.Context, target *url.URL) (*ScrapeResult, error) {
	domainCfg := LookupDomainConfig(target.Host)

	decision := a.robots.Check(ctx, target.String())
	if !decision.Allowed {
		return nil, common.ErrBlocked.WithMessage(
			fmt.Sprintf("scraping %s is disallowed by robots.txt", target.Host))
	}

	spacing := domainCfg.RateLimitOverride
	if d := time.Duration(decision.CrawlDelay * float64(time.Second)); d > spacing {
		spacing = d
	}
	if err := a.limiter.AdmitWithSpacing(ctx, target.Host, spacing); err != nil {
		var rlErr *ratelimit.Error
		if errors.As(err, &rlErr) {
			return nil, rlErr.AsCustomError()
		}
		return nil, err
	}

	opts := scrapeOptions{
		ContentSelector:  domainCfg.ContentSelector,
		ExcludeSelectors: domainCfg.ExcludeSelectors,
	}

	scraped, err := a.callScrapeService(ctx, target.String(), opts)
	if err != nil {
		return nil, err
	}
	if strings.TrimSpace(scraped.Content) == "" {
		return nil, common.ErrParsing.WithMessage("scraped page contained no usable content")
	}

	optimized, err := a.callOptimizeService(ctx, scraped.Content, opts)
	if err != nil {
		return nil, err
	}

	metadata := scraped.Metadata
	if metadata == nil {
		metadata = map[string]string{}
	}
	for k, v := range optimized.Metadata {
		metadata[k] = v
	}

	result := &ScrapeResult{
		URL:        target.String(),
		Title:      metadata["title"],
		Content:    optimized.CleanedContent,
		Metadata:   metadata,
		TokenCount: optimized.EstimatedTokens,
		ScrapedAt:  time.Now().UTC(),
		Success:    true,
	}

	common.LogInfo("scraping pipeline completed",
		zap.String("host", target.Host),
		zap.Int("content_length", len(result.Content)),
		zap.Int("token_count", result.TokenCount),
		zap.Float64("token_reduction", optimized.TokenReduction),
	)

	return result, nil
}

func (a *ScrapeAdapter) callScrapeService(ctx context.Context, targetURL string, opts scrapeOptions) (*scrapeResponse, error) {
	var out scrapeResponse
	resp, err := a.client.R().
		SetContext(ctx).
		SetBody(scrapeRequest{URL: targetURL, Options: opts}).
		SetResult(&out).
		Post(a.config.Scraper.ScrapeURL)
	if err != nil {
		return nil, classifyScrapeError(err, 0)
	}
	if resp.StatusCode() != http.StatusOK {
		return nil, classifyScrapeError(fmt.Errorf("scrape service status %d: %s", resp.StatusCode(), common.TruncateString(resp.String(), 200)), resp.StatusCode())
	}
	return &out, nil
}

func (a *ScrapeAdapter) callOptimizeService(ctx context.Context, content string, opts scrapeOptions) (*optimizeResponse, error) {
	var out optimizeResponse
	resp, err := a.client.R().
		SetContext(ctx).
		SetBody(optimizeRequest{Content: content, Options: opts}).
		SetResult(&out).
		Post(a.config.Scraper.OptimizeURL)
	if err != nil {
		return nil, classifyScrapeError(err, 0)
	}
	if resp.StatusCode() != http.StatusOK {
		return nil, classifyScrapeError(fmt.Errorf("optimize service status %d: %s", resp.StatusCode(), common.TruncateString(resp.String(), 200)), resp.StatusCode())
	}
	if strings.TrimSpace(out.CleanedContent) == "" {
		return nil, common.ErrParsing.WithMessage("content optimization produced empty output")
	}
	return &out, nil
}

// validateURL checks syntax and scheme before any network traffic
func validateURL(rawURL string) (*url.URL, error) {
	u, err := url.Parse(strings.TrimSpace(rawURL))
	if err != nil {
		return nil, common.ErrParsing.WithMessage("invalid URL").WithCause(err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return nil, common.ErrParsing.WithMessage("URL scheme must be http or https")
	}
	if u.Host == "" {
		return nil, common.ErrParsing.WithMessage("URL has no host")
	}
	return u, nil
}

// classifyScrapeError maps an upstream failure onto the scraping
// error taxonomy by status code or error kind.
func classifyScrapeError(err error, status int) error {
	switch {
	case status == http.StatusTooManyRequests:
		return common.ErrRateLimit.WithCause(err)
	case status == http.StatusForbidden || status == http.StatusUnauthorized:
		return common.ErrBlocked.WithCause(err)
	case status == http.StatusRequestTimeout || status == http.StatusGatewayTimeout:
		return common.ErrRequestTimeout.WithCause(err)
	case status >= 500:
		return common.ErrNetworkError.WithCause(err)
	case status >= 400:
		return common.ErrParsing.WithCause(err)
	case errors.Is(err, context.DeadlineExceeded):
		return common.ErrRequestTimeout.WithCause(err)
	default:
		var netErr interface{ Timeout() bool }
		if errors.As(err, &netErr) && netErr.Timeout() {
			return common.ErrRequestTimeout.WithCause(err)
		}
		return common.ErrNetworkError.WithCause(err)
	}
}
