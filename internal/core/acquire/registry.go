package acquire

import (
	"strings"
	"time"
)

// DomainConfig scraping configuration for a known recipe site
type DomainConfig struct {
	HostPattern      string
	ContentSelector  string
	ExcludeSelectors []string
	// RateLimitOverride relaxes or tightens the per-domain spacing;
	// zero means the limiter default applies.
	RateLimitOverride time.Duration
}

// defaultDomainConfig applies to hosts without a registry entry
var defaultDomainConfig = DomainConfig{
	ContentSelector:  "main, article, [itemprop=recipeInstructions]",
	ExcludeSelectors: []string{"nav", "header", "footer", "aside", ".comments", ".ads"},
}

// domainRegistry known recipe sites, matched by hostname substring
var domainRegistry = []DomainConfig{
	{
		HostPattern:      "kwestiasmaku.com",
		ContentSelector:  ".przepis-tresc, .field-name-field-skladniki",
		ExcludeSelectors: []string{".region-sidebar", ".comments", ".social-media"},
	},
	{
		HostPattern:      "aniagotuje.pl",
		ContentSelector:  ".recipe-content, .recipe-ing-list",
		ExcludeSelectors: []string{".article-tags", ".comments-section"},
	},
	{
		HostPattern:      "przepisy.pl",
		ContentSelector:  ".recipe-page, .ingredients-list",
		ExcludeSelectors: []string{".footer", ".related-recipes"},
	},
	{
		HostPattern:       "kuchnialidla.pl",
		ContentSelector:   ".recipe, .skladniki",
		ExcludeSelectors:  []string{".header", ".sidebar"},
		RateLimitOverride: 2 * time.Second,
	},
	{
		HostPattern:      "allrecipes.com",
		ContentSelector:  ".recipe-content, [data-ingredient-name]",
		ExcludeSelectors: []string{".ad-block", ".comments"},
	},
}

// LookupDomainConfig resolves the scraping configuration for a host.
// The first registry entry whose pattern is a substring of the host
// wins; unknown hosts get the default configuration.
func LookupDomainConfig(host string) DomainConfig {
	h := strings.ToLower(host)
	for _, cfg := range domainRegistry {
		if strings.Contains(h, cfg.HostPattern) {
			return cfg
		}
	}
	return defaultDomainConfig
}
