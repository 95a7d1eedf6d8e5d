package security

import (
	"net/url"
	"regexp"
	"strings"
)

// Category is an attack signature family.
type Category uint8

const (
	CategorySQLI Category = 1 << iota
	CategoryXSS
	CategoryPathTraversal
	CategoryCommandInjection
	CategorySuspiciousAgent
)

var categoryNames = []struct {
	c    Category
	name string
}{
	{CategorySQLI, "SQLI"},
	{CategoryXSS, "XSS"},
	{CategoryPathTraversal, "PATH_TRAVERSAL"},
	{CategoryCommandInjection, "COMMAND_INJECTION"},
	{CategorySuspiciousAgent, "SUSPICIOUS_AGENT"},
}

func (c Category) String() string {
	for _, n := range categoryNames {
		if n.c == c {
			return n.name
		}
	}
	return "UNKNOWN"
}

// CategorySet is a set of categories stored as a bitmask. The zero value is empty.
type CategorySet uint8

func (s CategorySet) Has(c Category) bool { return uint8(s)&uint8(c) != 0 }

func (s CategorySet) Empty() bool { return s == 0 }

func (s CategorySet) with(c Category) CategorySet { return CategorySet(uint8(s) | uint8(c)) }

// Categories lists the members in declaration order.
func (s CategorySet) Categories() []Category {
	var out []Category
	for _, n := range categoryNames {
		if s.Has(n.c) {
			out = append(out, n.c)
		}
	}
	return out
}

func (s CategorySet) String() string {
	cats := s.Categories()
	names := make([]string, len(cats))
	for i, c := range cats {
		names[i] = c.String()
	}
	return strings.Join(names, ",")
}

// Rule is a single named signature.
type Rule struct {
	Category Category
	Name     string
	Pattern  *regexp.Regexp
}

// Test reports whether input matches the rule.
func (r Rule) Test(input string) bool {
	return r.Pattern.MatchString(input)
}

// DefaultRules returns the built-in signature table. Matching is deliberately
// broad; a false positive costs one rejected request.
func DefaultRules() []Rule {
	return []Rule{
		// SQL injection
		{CategorySQLI, "sqli-quote-terminator", regexp.MustCompile(`(?i)('|%27)\s*(;|--|#|/\*)`)},
		{CategorySQLI, "sqli-tautology", regexp.MustCompile(`(?i)'\s*(or|and)\s+('?\w+'?\s*=\s*'?\w+|\d+\s*[<>=])`)},
		{CategorySQLI, "sqli-union-select", regexp.MustCompile(`(?i)\bunion(\s|/\*.*?\*/)+(all(\s|/\*.*?\*/)+)?select\b`)},
		{CategorySQLI, "sqli-stacked-ddl", regexp.MustCompile(`(?i);\s*(drop|truncate|alter|delete|insert|update|create|exec)\b`)},
		{CategorySQLI, "sqli-drop", regexp.MustCompile(`(?i)\b(drop|truncate)\s+(table|database|schema)\b`)},
		{CategorySQLI, "sqli-time-based", regexp.MustCompile(`(?i)\b(sleep\s*\(\s*\d+\s*\)|waitfor\s+delay|benchmark\s*\()`)},

		// Cross-site scripting
		{CategoryXSS, "xss-script-tag", regexp.MustCompile(`(?i)<\s*/?\s*script\b`)},
		{CategoryXSS, "xss-js-uri", regexp.MustCompile(`(?i)\b(javascript|vbscript)\s*:`)},
		{CategoryXSS, "xss-event-handler", regexp.MustCompile(`(?i)\bon(load|error|click|dblclick|mouse\w*|focus\w*|blur|key\w+|submit|change|input|abort|toggle|animation\w*|pointer\w*|begin|end)\s*=`)},
		{CategoryXSS, "xss-embed-tag", regexp.MustCompile(`(?i)<\s*(iframe|object|embed|applet|meta|base)\b`)},
		{CategoryXSS, "xss-data-html", regexp.MustCompile(`(?i)data\s*:\s*text/html`)},
		{CategoryXSS, "xss-css-expression", regexp.MustCompile(`(?i)expression\s*\(`)},

		// Path traversal
		{CategoryPathTraversal, "traversal-dotdot", regexp.MustCompile(`(^|[/\\])\.\.([/\\]|$)`)},
		{CategoryPathTraversal, "traversal-encoded", regexp.MustCompile(`(?i)(%2e|\.){2}(%2f|%5c|/|\\)|(%252e){2}|%c0%ae|%c1%9c`)},
		{CategoryPathTraversal, "traversal-sensitive-file", regexp.MustCompile(`(?i)(/etc/(passwd|shadow|hosts)|[a-z]:\\windows\\|/proc/self/)`)},
		{CategoryPathTraversal, "traversal-null-byte", regexp.MustCompile(`(?i)%00|\x00`)},

		// Command injection
		{CategoryCommandInjection, "cmd-backtick", regexp.MustCompile("`[^`]+`")},
		{CategoryCommandInjection, "cmd-subshell", regexp.MustCompile(`\$\([^)]*\)|\$\{IFS\}`)},
		{CategoryCommandInjection, "cmd-chained", regexp.MustCompile(`(?i)(;|&&|\|\|?)\s*(cat|ls|rm|wget|curl|nc|ncat|bash|sh|zsh|python\d?|perl|ruby|php|chmod|chown|whoami|id|uname|ping)\b`)},
		{CategoryCommandInjection, "cmd-pipe-shell", regexp.MustCompile(`(?i)\|\s*/?(usr/)?(bin/)?(ba|z|k)?sh\b`)},

		// Scanner user agents
		{CategorySuspiciousAgent, "agent-scanner", regexp.MustCompile(`(?i)(sqlmap|nikto|nmap|masscan|acunetix|nessus|openvas|w3af|dirbuster|gobuster|dirb/|wpscan|havij|zgrab|nuclei|burpsuite|hydra|metasploit|arachni|skipfish|zmeu)`)},
	}
}

// Detector classifies strings against a rule table. It holds no mutable state
// and is safe for concurrent use.
type Detector struct {
	content []Rule
	agent   []Rule
}

// NewDetector builds a detector from the default rules plus extra.
func NewDetector(extra ...Rule) *Detector {
	d := &Detector{}
	for _, r := range append(DefaultRules(), extra...) {
		if r.Category == CategorySuspiciousAgent {
			d.agent = append(d.agent, r)
		} else {
			d.content = append(d.content, r)
		}
	}
	return d
}

// Classify returns every content category input matches. The raw string, up
// to two URL-decoded forms and the canonical form of each are inspected.
func (d *Detector) Classify(input string) CategorySet {
	var set CategorySet
	if input == "" {
		return set
	}
	for _, form := range decodedForms(input) {
		for _, r := range d.content {
			if !set.Has(r.Category) && r.Test(form) {
				set = set.with(r.Category)
			}
		}
	}
	return set
}

// Match returns the first rule input matches, for event detail.
func (d *Detector) Match(input string) (Rule, bool) {
	for _, form := range decodedForms(input) {
		for _, r := range d.content {
			if r.Test(form) {
				return r, true
			}
		}
	}
	return Rule{}, false
}

// IsSuspiciousURL reports whether a request URI carries any content signature.
func (d *Detector) IsSuspiciousURL(rawURL string) bool {
	return !d.Classify(rawURL).Empty()
}

// IsSuspiciousUserAgent reports whether agent names a known scanner. An empty
// agent is not suspicious by itself.
func (d *Detector) IsSuspiciousUserAgent(agent string) bool {
	for _, r := range d.agent {
		if r.Test(agent) {
			return true
		}
	}
	return false
}

func decodedForms(input string) []string {
	forms := []string{input}
	cur := input
	for i := 0; i < 2; i++ {
		if !strings.ContainsAny(cur, "%+") {
			break
		}
		next, err := url.QueryUnescape(cur)
		if err != nil || next == cur {
			break
		}
		forms = append(forms, next)
		cur = next
	}
	for _, f := range forms {
		if c := Canonical(f); c != f {
			forms = append(forms, c)
		}
	}
	return forms
}
