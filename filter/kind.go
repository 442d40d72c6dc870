package filter

import (
	"errors"
	"fmt"
	"regexp"
	"strings"
	"sync"

	"github.com/miekg/dns"
)

// Kind distinguishes the matching strategy of a Pattern leaf.
type Kind string

const (
	KindContains Kind = "contains" // foo
	KindExact    Kind = "exact"    // "foo"
	KindWildcard Kind = "wildcard" // foo*bar, f?o
	KindRegex    Kind = "regex"    // /fo+/
	KindDomain   Kind = "domain"   // ||example.com^
)

// KindSpec describes how a leaf kind is recognized and compiled.
type KindSpec struct {
	Kind Kind
	// Detect reports whether text is written in this kind's syntax.
	Detect func(text string) bool
	// Compile builds the matcher for text. Errors are reported as ErrInvalidPattern.
	Compile func(text string) (Matcher, error)
}

var (
	kindsMu sync.RWMutex
	// Registered kinds, checked before the built-ins.
	custom []KindSpec
)

var builtins = []KindSpec{
	{Kind: KindRegex, Detect: isRegex, Compile: compileRegex},
	{Kind: KindDomain, Detect: isDomain, Compile: compileDomain},
	{Kind: KindExact, Detect: isExact, Compile: compileExact},
	{Kind: KindWildcard, Detect: isWildcard, Compile: compileWildcard},
	{Kind: KindContains, Detect: func(string) bool { return true }, Compile: compileContains},
}

// RegisterKind adds a leaf kind. Registered kinds are tried in registration
// order before the built-in ones, so they may claim syntax the built-ins
// would otherwise handle.
func RegisterKind(spec KindSpec) error {
	if spec.Kind == "" || spec.Detect == nil || spec.Compile == nil {
		return errors.New("kind spec needs a name, Detect and Compile")
	}

	kindsMu.Lock()
	defer kindsMu.Unlock()

	for _, s := range custom {
		if s.Kind == spec.Kind {
			return fmt.Errorf("kind %q already registered", spec.Kind)
		}
	}
	for _, s := range builtins {
		if s.Kind == spec.Kind {
			return fmt.Errorf("kind %q is built in", spec.Kind)
		}
	}
	custom = append(custom, spec)
	return nil
}

// Classify returns the kind NewPattern would pick for text.
func Classify(text string) Kind {
	return lookup(text).Kind
}

func lookup(text string) KindSpec {
	kindsMu.RLock()
	for _, s := range custom {
		if s.Detect(text) {
			kindsMu.RUnlock()
			return s
		}
	}
	kindsMu.RUnlock()

	for _, s := range builtins {
		if s.Detect(text) {
			return s
		}
	}
	// unreachable: contains accepts everything
	return builtins[len(builtins)-1]
}

func isRegex(text string) bool {
	return len(text) >= 2 && strings.HasPrefix(text, "/") && strings.HasSuffix(text, "/")
}

type regexMatcher struct {
	re *regexp.Regexp
}

func (r *regexMatcher) Match(value string) bool {
	return r.re.MatchString(value)
}

func compileRegex(text string) (Matcher, error) {
	return newRegexMatcher("(?i)" + text[1:len(text)-1])
}

func newRegexMatcher(expr string) (Matcher, error) {
	re, err := regexp.Compile(expr)
	if err != nil {
		return nil, err
	}
	return &regexMatcher{re: re}, nil
}

func isDomain(text string) bool {
	return strings.HasPrefix(text, "||")
}

// domainMatcher matches a domain and all of its subdomains.
type domainMatcher struct {
	fqdn string
}

func compileDomain(text string) (Matcher, error) {
	name := strings.TrimSuffix(strings.TrimPrefix(text, "||"), "^")
	name = strings.ToLower(name)
	if name == "" {
		return nil, errors.New("empty domain")
	}
	if _, ok := dns.IsDomainName(name); !ok {
		return nil, fmt.Errorf("%q is not a domain name", name)
	}
	return &domainMatcher{fqdn: dns.Fqdn(name)}, nil
}

func (d *domainMatcher) Match(value string) bool {
	value = strings.ToLower(strings.TrimSpace(value))
	if value == "" {
		return false
	}
	return dns.IsSubDomain(d.fqdn, dns.Fqdn(value))
}

func isExact(text string) bool {
	return strings.HasPrefix(text, `"`)
}

type exactMatcher struct {
	want string
}

func compileExact(text string) (Matcher, error) {
	end := strings.IndexByte(text[1:], '"') + 1
	if end == 0 {
		return nil, errors.New("unterminated quote")
	}
	if end != len(text)-1 {
		return nil, fmt.Errorf("text after closing quote: %q", text[end+1:])
	}
	return &exactMatcher{want: strings.ToLower(text[1 : len(text)-1])}, nil
}

func (e *exactMatcher) Match(value string) bool {
	return strings.ToLower(value) == e.want
}

func isWildcard(text string) bool {
	return strings.ContainsAny(text, "*?")
}

// compileWildcard converts a glob into an anchored regex: * is any run, ? one character.
func compileWildcard(text string) (Matcher, error) {
	escaped := regexp.QuoteMeta(text)
	// QuoteMeta escapes * and ?, so turn them back into their regex forms
	expr := strings.NewReplacer(`\*`, `.*`, `\?`, `.`).Replace(escaped)
	return newRegexMatcher("(?is)^" + expr + "$")
}

func compileContains(text string) (Matcher, error) {
	return NewContains(text), nil
}
