package acquire

import (
	"time"
)

// SourceType the three content acquisition methods
type SourceType string

const (
	SourceText     SourceType = "text"
	SourceScraping SourceType = "scraping"
	SourceImage    SourceType = "image"
)

// Valid reports whether t is a known source type
func (t SourceType) Valid() bool {
	switch t {
	case SourceText, SourceScraping, SourceImage:
		return true
	}
	return false
}

// ScrapeResult the assembled outcome of a scraping run
type ScrapeResult struct {
	URL        string            `json:"url"`
	Title      string            `json:"title"`
	Content    string            `json:"content"`
	Metadata   map[string]string `json:"metadata,omitempty"`
	TokenCount int               `json:"token_count"`
	ScrapedAt  time.Time         `json:"scraped_at"`
	Success    bool              `json:"success"`
}
