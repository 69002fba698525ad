package robots

import "testing"

const sampleRobots = `
# sample ruleset
User-agent: *
Disallow: /admin
Disallow: /private/
Allow: /private/recipes
Crawl-delay: 2

User-agent: meal2list-bot
Disallow: /no-bots
`

func TestDecideDisallowedPrefix(t *testing.T) {
	rs := ParseRuleset(sampleRobots)

	d := rs.Decide("some-crawler", "/admin/settings")
	if d.Allowed {
		t.Error("/admin/settings should be disallowed for the wildcard agent")
	}
	if d.Reason == "" {
		t.Error("disallowed decision should carry a reason")
	}
}

func TestDecideAllowTakesPrecedence(t *testing.T) {
	rs := ParseRuleset(sampleRobots)

	d := rs.Decide("some-crawler", "/private/recipes/pasta")
	if !d.Allowed {
		t.Error("Allow rule should take precedence over Disallow")
	}
}

func TestDecideNoMatchingRuleDefaultsToAllowed(t *testing.T) {
	rs := ParseRuleset(sampleRobots)

	d := rs.Decide("some-crawler", "/recipes/42")
	if !d.Allowed {
		t.Error("path with no matching rule should be allowed")
	}
}

func TestDecideSpecificAgentSection(t *testing.T) {
	rs := ParseRuleset(sampleRobots)

	// the named section replaces the wildcard section entirely
	if d := rs.Decide("meal2list-bot/1.0", "/no-bots"); d.Allowed {
		t.Error("/no-bots should be disallowed for meal2list-bot")
	}
	if d := rs.Decide("meal2list-bot/1.0", "/admin"); !d.Allowed {
		t.Error("/admin is only disallowed in the wildcard section")
	}
}

func TestDecideCrawlDelay(t *testing.T) {
	rs := ParseRuleset(sampleRobots)

	d := rs.Decide("some-crawler", "/recipes")
	if d.CrawlDelay != 2 {
		t.Errorf("crawl delay = %v, want 2", d.CrawlDelay)
	}
}

func TestDecideEmptyDocumentAllowsEverything(t *testing.T) {
	rs := ParseRuleset("")

	if d := rs.Decide("anything", "/any/path"); !d.Allowed {
		t.Error("empty robots.txt should allow everything")
	}
}

func TestDecideEmptyDisallowMatchesNothing(t *testing.T) {
	rs := ParseRuleset("User-agent: *\nDisallow:\n")

	if d := rs.Decide("bot", "/page"); !d.Allowed {
		t.Error("empty Disallow value should not block anything")
	}
}

func TestMatchPathWildcards(t *testing.T) {
	cases := []struct {
		pattern string
		path    string
		want    bool
	}{
		{"/admin", "/admin", true},
		{"/admin", "/admin/x", true},
		{"/admin", "/ad", false},
		{"/*.pdf", "/files/report.pdf", true},
		{"/*.pdf", "/files/report.txt", false},
		{"/recipes/*/print", "/recipes/42/print", true},
		{"/recipes/*/print", "/recipes/42/view", false},
		{"/exact$", "/exact", true},
		{"/exact$", "/exact/more", false},
		{"/dl/*$", "/dl/anything", true},
	}

	for _, tc := range cases {
		if got := matchPath(tc.pattern, tc.path); got != tc.want {
			t.Errorf("matchPath(%q, %q) = %v, want %v", tc.pattern, tc.path, got, tc.want)
		}
	}
}

func TestParseRulesetSharedAgentRun(t *testing.T) {
	rs := ParseRuleset(`
User-agent: bot-a
User-agent: bot-b
Disallow: /shared
`)

	if d := rs.Decide("bot-a", "/shared"); d.Allowed {
		t.Error("bot-a should be covered by the shared section")
	}
	if d := rs.Decide("bot-b", "/shared"); d.Allowed {
		t.Error("bot-b should be covered by the shared section")
	}
	if d := rs.Decide("bot-c", "/shared"); !d.Allowed {
		t.Error("bot-c has no section and no wildcard, should be allowed")
	}
}
