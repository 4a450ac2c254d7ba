package edgelib

import (
	"fmt"
	"io"
	"net/url"
	"os"
	"path/filepath"
	"strings"

	"github.com/PuerkitoBio/goquery"
)

// Policy is a parsed Content-Security-Policy: directive name to source list.
type Policy map[string][]string

// ParsePolicy parses directives such as "img-src 'self' data:".
func ParsePolicy(directives []string) Policy {
	p := make(Policy, len(directives))
	for _, d := range directives {
		fields := strings.Fields(d)
		if len(fields) == 0 {
			continue
		}
		name := strings.ToLower(fields[0])
		if _, ok := p[name]; ok {
			// the first occurrence of a directive wins
			continue
		}
		p[name] = fields[1:]
	}
	return p
}

// Allows reports whether ref may be loaded under directive. Directives that
// are absent fall back to default-src when fallback is set; otherwise an absent
// directive allows everything.
func (p Policy) Allows(directive, ref string, fallback bool) bool {
	sources, ok := p[directive]
	if !ok && fallback {
		sources, ok = p["default-src"]
	}
	if !ok {
		return true
	}

	u, err := url.Parse(strings.TrimSpace(ref))
	if err != nil {
		return false
	}
	if u.Scheme == "" && u.Host != "" {
		u.Scheme = "https"
	}

	for _, src := range sources {
		if sourceMatches(strings.ToLower(src), u) {
			return true
		}
	}
	return false
}

func sourceMatches(src string, u *url.URL) bool {
	scheme := strings.ToLower(u.Scheme)
	switch {
	case src == "'self'":
		return scheme == "" && u.Host == ""
	case src == "*":
		return scheme == "" || scheme == "http" || scheme == "https"
	case strings.HasPrefix(src, "'"):
		return false
	case strings.HasSuffix(src, ":"):
		return scheme == strings.TrimSuffix(src, ":")
	}

	if u.Host == "" {
		return false
	}

	srcScheme := ""
	if i := strings.Index(src, "://"); i >= 0 {
		srcScheme, src = src[:i], src[i+3:]
	}
	switch srcScheme {
	case "":
		if scheme != "http" && scheme != "https" {
			return false
		}
	case "http":
		if scheme != "http" && scheme != "https" {
			return false
		}
	default:
		if scheme != srcScheme {
			return false
		}
	}

	srcPath := ""
	if i := strings.IndexByte(src, '/'); i >= 0 {
		src, srcPath = src[:i], src[i:]
	}
	if i := strings.LastIndexByte(src, ':'); i >= 0 {
		src = src[:i]
	}

	host := strings.ToLower(u.Hostname())
	if strings.HasPrefix(src, "*.") {
		if !strings.HasSuffix(host, src[1:]) {
			return false
		}
	} else if host != src {
		return false
	}

	if srcPath == "" || srcPath == "/" {
		return true
	}
	if strings.HasSuffix(srcPath, "/") {
		return strings.HasPrefix(u.Path, srcPath)
	}
	return u.Path == srcPath
}

// Violation is a resource referenced by the entry document that the policy blocks.
type Violation struct {
	Element   string
	URL       string
	Directive string
}

func (v Violation) String() string {
	return fmt.Sprintf("<%s> '%s' is blocked by %s", v.Element, v.URL, v.Directive)
}

var auditRules = []struct {
	selector  string
	attr      string
	directive string
	fallback  bool
}{
	{"script[src]", "src", "script-src", true},
	{"link[rel~='stylesheet'][href]", "href", "style-src", true},
	{"link[rel~='icon'][href]", "href", "img-src", true},
	{"img[src]", "src", "img-src", true},
	{"base[href]", "href", "base-uri", false},
	{"form[action]", "action", "form-action", false},
}

// AuditEntryDocument lists the resources of an HTML document that the policy
// would block in the browser.
func AuditEntryDocument(r io.Reader, p Policy) ([]Violation, error) {
	doc, err := goquery.NewDocumentFromReader(r)
	if err != nil {
		return nil, fmt.Errorf("error parsing entry document: %w", err)
	}

	var violations []Violation
	for _, rule := range auditRules {
		doc.Find(rule.selector).Each(func(_ int, s *goquery.Selection) {
			ref, _ := s.Attr(rule.attr)
			if ref == "" || p.Allows(rule.directive, ref, rule.fallback) {
				return
			}
			violations = append(violations, Violation{
				Element:   goquery.NodeName(s),
				URL:       ref,
				Directive: rule.directive,
			})
		})
	}
	return violations, nil
}

// Audit checks the configured entry document against the configured policy.
func (c *Config) Audit() ([]Violation, error) {
	f, err := os.Open(filepath.Join(c.StaticRoot, c.EntryDocument))
	if err != nil {
		return nil, err
	}
	defer f.Close()

	return AuditEntryDocument(f, ParsePolicy(c.CSP))
}
