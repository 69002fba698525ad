package robots

import (
	"strconv"
	"strings"
)

// Decision the outcome of a robots.txt check
type Decision struct {
	Allowed    bool    `json:"allowed"`
	Reason     string  `json:"reason,omitempty"`
	CrawlDelay float64 `json:"crawl_delay,omitempty"` // seconds
}

// rule a single Allow or Disallow directive
type rule struct {
	allow bool
	path  string
}

// group a User-agent section with its directives
type group struct {
	agents     []string
	rules      []rule
	crawlDelay float64
}

// Ruleset a parsed robots.txt document
type Ruleset struct {
	groups []group
}

// ParseRuleset parses robots.txt content. Unknown directives and
// malformed lines are skipped; an empty document permits everything.
func ParseRuleset(content string) *Ruleset {
	rs := &Ruleset{}
	var current *group
	// consecutive User-agent lines share one group until a directive appears
	agentRun := false

	for _, line := range strings.Split(content, "\n") {
		if idx := strings.Index(line, "#"); idx >= 0 {
			line = line[:idx]
		}
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}

		key, value, ok := strings.Cut(line, ":")
		if !ok {
			continue
		}
		key = strings.ToLower(strings.TrimSpace(key))
		value = strings.TrimSpace(value)

		switch key {
		case "user-agent":
			if !agentRun || current == nil {
				rs.groups = append(rs.groups, group{})
				current = &rs.groups[len(rs.groups)-1]
			}
			current.agents = append(current.agents, strings.ToLower(value))
			agentRun = true
		case "allow", "disallow":
			if current == nil {
				continue
			}
			agentRun = false
			if value == "" {
				// an empty path matches nothing
				continue
			}
			current.rules = append(current.rules, rule{allow: key == "allow", path: value})
		case "crawl-delay":
			if current == nil {
				continue
			}
			agentRun = false
			if d, err := strconv.ParseFloat(value, 64); err == nil && d >= 0 {
				current.crawlDelay = d
			}
		default:
			agentRun = false
		}
	}

	return rs
}

// Decide evaluates the ruleset for a user agent and path. An Allow
// match takes precedence over any Disallow match; no matching rule
// defaults to allowed.
func (rs *Ruleset) Decide(userAgent, path string) Decision {
	if path == "" {
		path = "/"
	}

	g := rs.groupFor(userAgent)
	if g == nil {
		return Decision{Allowed: true}
	}

	allowed := true
	matched := false
	for _, r := range g.rules {
		if !matchPath(r.path, path) {
			continue
		}
		if r.allow {
			return Decision{Allowed: true, CrawlDelay: g.crawlDelay}
		}
		matched = true
	}
	if matched {
		allowed = false
	}

	if !allowed {
		return Decision{Allowed: false, Reason: "disallowed by robots.txt", CrawlDelay: g.crawlDelay}
	}
	return Decision{Allowed: true, CrawlDelay: g.crawlDelay}
}

// groupFor picks the most specific matching User-agent section,
// falling back to the wildcard group.
func (rs *Ruleset) groupFor(userAgent string) *group {
	ua := strings.ToLower(userAgent)
	var wildcard *group
	var best *group
	bestLen := -1

	for i := range rs.groups {
		g := &rs.groups[i]
		for _, agent := range g.agents {
			if agent == "*" {
				if wildcard == nil {
					wildcard = g
				}
				continue
			}
			if strings.Contains(ua, agent) && len(agent) > bestLen {
				best = g
				bestLen = len(agent)
			}
		}
	}

	if best != nil {
		return best
	}
	return wildcard
}

// matchPath matches a robots path pattern against a request path.
// Supports '*' wildcards and the '$' end anchor; otherwise a pattern
// is a prefix match.
func matchPath(pattern, path string) bool {
	anchored := strings.HasSuffix(pattern, "$")
	if anchored {
		pattern = strings.TrimSuffix(pattern, "$")
	}

	parts := strings.Split(pattern, "*")
	pos := 0
	for i, part := range parts {
		if part == "" {
			continue
		}
		idx := strings.Index(path[pos:], part)
		if idx < 0 {
			return false
		}
		// the first segment must match at the start (prefix semantics)
		if i == 0 && idx != 0 {
			return false
		}
		pos += idx + len(part)
	}

	if anchored {
		// with a trailing wildcard anything left satisfies the anchor
		if parts[len(parts)-1] == "" {
			return true
		}
		return pos == len(path)
	}
	return true
}
