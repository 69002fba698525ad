package robots

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"meal2list/internal/infrastructure/config"
)

func testConfig() *config.Config {
	return &config.Config{
		Robots: config.RobotsConfig{
			UserAgent: "meal2list-bot",
			Timeout:   5 * time.Second,
			CacheTTL:  time.Hour,
		},
	}
}

func TestCheckDisallowed(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/robots.txt" {
			t.Errorf("unexpected fetch path %s", r.URL.Path)
		}
		w.Write([]byte("User-agent: *\nDisallow: /recipes/secret\n"))
	}))
	defer srv.Close()

	c := NewChecker(testConfig(), nil)

	d := c.Check(context.Background(), srv.URL+"/recipes/secret/cake")
	if d.Allowed {
		t.Error("disallowed path should be blocked")
	}

	d = c.Check(context.Background(), srv.URL+"/recipes/public")
	if !d.Allowed {
		t.Error("unlisted path should be allowed")
	}
}

func TestCheckMissingRobotsAllows(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.NotFound(w, r)
	}))
	defer srv.Close()

	c := NewChecker(testConfig(), nil)

	d := c.Check(context.Background(), srv.URL+"/anything")
	if !d.Allowed {
		t.Error("missing robots.txt should default to allowed")
	}
	if d.Reason != "" {
		t.Errorf("missing robots.txt is not a check failure, reason = %q", d.Reason)
	}
}

func TestCheckFetchFailureFailsOpen(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	c := NewChecker(testConfig(), nil)

	d := c.Check(context.Background(), srv.URL+"/anything")
	if !d.Allowed {
		t.Error("robots fetch failure must fail open")
	}
	if d.Reason != ReasonCheckFailed {
		t.Errorf("reason = %q, want %q", d.Reason, ReasonCheckFailed)
	}
}

func TestCheckUnreachableHostFailsOpen(t *testing.T) {
	cfg := testConfig()
	cfg.Robots.Timeout = 500 * time.Millisecond
	c := NewChecker(cfg, nil)

	d := c.Check(context.Background(), "http://127.0.0.1:1/recipes")
	if !d.Allowed {
		t.Error("unreachable robots host must fail open")
	}
	if d.Reason != ReasonCheckFailed {
		t.Errorf("reason = %q, want %q", d.Reason, ReasonCheckFailed)
	}
}

func TestCheckCrawlDelayPropagated(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("User-agent: *\nCrawl-delay: 3\nDisallow: /x\n"))
	}))
	defer srv.Close()

	c := NewChecker(testConfig(), nil)

	d := c.Check(context.Background(), srv.URL+"/recipes")
	if !d.Allowed {
		t.Fatal("expected allowed")
	}
	if d.CrawlDelay != 3 {
		t.Errorf("crawl delay = %v, want 3", d.CrawlDelay)
	}
}
