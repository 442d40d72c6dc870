// Package parser turns filter rules such as `(foo AND ~bar) OR baz` into
// filter trees.
//
// Grammar, applied recursively to every sub-expression:
//
//   - AND and OR are recognized as whole words outside parentheses. The last
//     one seen decides the operator for the whole level, and only the first
//     two operands are kept: `a AND b OR c` parses as `a OR b`. Deeper
//     chains must be grouped, as in `a AND (b AND c)`.
//   - A leading ~ negates the primary that follows it, either a single
//     pattern or a parenthesized group.
//   - One layer of parentheses wrapping the whole expression is stripped.
//   - Anything else is a leaf pattern (see filter.Classify). An empty leaf
//     matches every value.
package parser

import (
	"errors"
	"strings"

	"rowfilter/filter"
)

// Mode selects how malformed rules are handled.
type Mode int

const (
	// ModeStrict reports malformed rules as *SyntaxError.
	ModeStrict Mode = iota
	// ModeLenient degrades a malformed rule to a single leaf built from its text.
	ModeLenient
)

func (m Mode) String() string {
	if m == ModeLenient {
		return "lenient"
	}
	return "strict"
}

// Parse parses rule in strict mode.
func Parse(rule string) (filter.Filter, error) {
	return ParseWithMode(rule, ModeStrict)
}

// MustParse is like Parse but panics on error.
func MustParse(rule string) filter.Filter {
	f, err := Parse(rule)
	if err != nil {
		panic(err)
	}
	return f
}

// ParseWithMode parses rule. Pattern compile failures are returned in both
// modes and wrap filter.ErrInvalidPattern.
func ParseWithMode(rule string, mode Mode) (filter.Filter, error) {
	p := &parser{rule: rule}
	f, err := p.expr(segment{text: rule}.trim())
	if err == nil || mode != ModeLenient || !errors.Is(err, ErrMalformedExpression) {
		return f, err
	}
	return degrade(rule)
}

type parser struct {
	rule string
}

func (p *parser) fail(e *scanError) error {
	return &SyntaxError{Rule: p.rule, Pos: e.pos, Msg: e.msg}
}

// expr parses one level: either a combinator over the first two depth-0
// operands or a single primary.
func (p *parser) expr(s segment) (filter.Filter, error) {
	sc, serr := scanTopLevel(s)
	if serr != nil {
		return nil, p.fail(serr)
	}
	if sc.op == 0 {
		return p.primary(s, false)
	}

	for _, operand := range sc.operands {
		if operand.trim().text == "" {
			return nil, p.fail(&scanError{pos: sc.opPos, msg: sc.op.String() + " needs two operands"})
		}
	}

	left, err := p.expr(sc.operands[0].trim())
	if err != nil {
		return nil, err
	}
	right, err := p.expr(sc.operands[1].trim())
	if err != nil {
		return nil, err
	}
	c, err := filter.NewCombinator(sc.op, left, right)
	if err != nil {
		return nil, err
	}
	return c, nil
}

// primary parses an expression with no depth-0 operator: an optionally
// negated group or leaf.
func (p *parser) primary(s segment, negated bool) (filter.Filter, error) {
	if rest, ok := stripNegation(s); ok {
		if rest.text == "" {
			return nil, p.fail(&scanError{pos: s.off, msg: "~ needs an operand"})
		}
		return p.primary(rest, !negated)
	}

	inner, wrapped, serr := stripOuterParens(s)
	if serr != nil {
		return nil, p.fail(serr)
	}
	if wrapped {
		f, err := p.expr(inner)
		if err != nil {
			return nil, err
		}
		if negated {
			return filter.Negate(f), nil
		}
		return f, nil
	}

	return leaf(s.text, negated)
}

func leaf(text string, negated bool) (filter.Filter, error) {
	f, err := filter.NewPattern(text, negated)
	if err != nil {
		return nil, err
	}
	return f, nil
}

// degrade builds the best-effort leaf used in lenient mode: one leading ~
// and one pair of enclosing parentheses are removed without further checks.
func degrade(rule string) (filter.Filter, error) {
	text := strings.TrimSpace(rule)
	negated := strings.HasPrefix(text, "~")
	if negated {
		text = strings.TrimSpace(text[1:])
	}
	if len(text) >= 2 && strings.HasPrefix(text, "(") && strings.HasSuffix(text, ")") {
		text = strings.TrimSpace(text[1 : len(text)-1])
	}
	return leaf(text, negated)
}
