package filter

import (
	"fmt"
	"strings"
)

// Matcher is the capability a leaf kind compiles to.
type Matcher interface {
	Match(value string) bool
}

// Contains matches values holding the pattern as a substring.
// An empty pattern matches every value.
type Contains struct {
	pattern string
}

// NewContains stores the pattern lowercased.
func NewContains(pattern string) *Contains {
	return &Contains{pattern: strings.ToLower(pattern)}
}

func (c *Contains) Match(value string) bool {
	if c.pattern == "" {
		return true
	}
	return strings.Contains(strings.ToLower(value), c.pattern)
}

// Pattern returns the lowercased pattern.
func (c *Contains) Pattern() string {
	return c.pattern
}

func (c *Contains) String() string {
	return leafString(c.pattern, false)
}

// Pattern is a leaf whose matching strategy is picked from the pattern syntax
// (see Classify). Its result is inverted when negated is set.
type Pattern struct {
	text    string
	kind    Kind
	negated bool
	m       Matcher
}

// NewPattern classifies text, compiles it and captures the negation flag.
// Compile failures wrap ErrInvalidPattern.
func NewPattern(text string, negated bool) (*Pattern, error) {
	spec := lookup(text)
	m, err := spec.Compile(text)
	if err != nil {
		return nil, fmt.Errorf("%w: %s %q: %v", ErrInvalidPattern, spec.Kind, text, err)
	}
	if spec.Kind != KindRegex {
		text = strings.ToLower(text)
	}
	return &Pattern{text: text, kind: spec.Kind, negated: negated, m: m}, nil
}

// MustPattern is like NewPattern but panics on error.
func MustPattern(text string, negated bool) *Pattern {
	p, err := NewPattern(text, negated)
	if err != nil {
		panic(err)
	}
	return p
}

func (p *Pattern) Match(value string) bool {
	return p.m.Match(value) != p.negated
}

func (p *Pattern) Text() string  { return p.text }
func (p *Pattern) Kind() Kind    { return p.kind }
func (p *Pattern) Negated() bool { return p.negated }

func (p *Pattern) String() string {
	return leafString(p.text, p.negated)
}

func (p *Pattern) negate() *Pattern {
	n := *p
	n.negated = !p.negated
	return &n
}

func leafString(text string, negated bool) string {
	if text == "" {
		text = "()"
	}
	if negated {
		return "~" + text
	}
	return text
}
