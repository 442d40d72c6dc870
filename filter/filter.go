// Package filter holds the filter tree evaluated against candidate string
// values: leaf predicates that test a single value and combinators that join
// two sub-filters with AND or OR.
//
// A tree is immutable once built. Match never mutates it, so a single tree
// can be shared between goroutines without locking.
package filter

import (
	"errors"
	"fmt"
)

var (
	// ErrInvalidPattern is returned when a leaf pattern cannot be compiled.
	ErrInvalidPattern = errors.New("invalid pattern")
	// ErrUnsupportedOperator signals a combinator with an operator other than AND or OR.
	ErrUnsupportedOperator = errors.New("unsupported operator")
	// ErrMissingOperand is returned when a combinator is built with a nil child.
	ErrMissingOperand = errors.New("missing operand")
)

// Filter tests one value.
type Filter interface {
	Match(value string) bool
	String() string
}

// Op is the operator of a Combinator.
type Op int

const (
	OpAnd Op = iota + 1
	OpOr
)

func (o Op) String() string {
	switch o {
	case OpAnd:
		return "AND"
	case OpOr:
		return "OR"
	}
	return fmt.Sprintf("Op(%d)", int(o))
}

// Valid reports whether o is AND or OR.
func (o Op) Valid() bool {
	return o == OpAnd || o == OpOr
}

// Combinator joins exactly two filters.
type Combinator struct {
	op          Op
	left, right Filter
}

// NewCombinator builds an AND/OR node. Both children must be non-nil.
func NewCombinator(op Op, left, right Filter) (*Combinator, error) {
	if !op.Valid() {
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedOperator, op)
	}
	if left == nil || right == nil {
		return nil, fmt.Errorf("%w: %s needs two operands", ErrMissingOperand, op)
	}
	return &Combinator{op: op, left: left, right: right}, nil
}

// And is like NewCombinator(OpAnd, ...) but panics on a nil operand.
func And(left, right Filter) *Combinator {
	return mustCombinator(OpAnd, left, right)
}

// Or is like NewCombinator(OpOr, ...) but panics on a nil operand.
func Or(left, right Filter) *Combinator {
	return mustCombinator(OpOr, left, right)
}

func mustCombinator(op Op, left, right Filter) *Combinator {
	c, err := NewCombinator(op, left, right)
	if err != nil {
		panic(err)
	}
	return c
}

func (c *Combinator) Op() Op        { return c.op }
func (c *Combinator) Left() Filter  { return c.left }
func (c *Combinator) Right() Filter { return c.right }

func (c *Combinator) String() string {
	return "(" + c.left.String() + " " + c.op.String() + " " + c.right.String() + ")"
}

// Match evaluates both children with short-circuiting.
// It panics if the node carries an operator other than AND or OR.
func (c *Combinator) Match(value string) bool {
	switch c.op {
	case OpAnd:
		return c.left.Match(value) && c.right.Match(value)
	case OpOr:
		return c.left.Match(value) || c.right.Match(value)
	}
	panic(fmt.Errorf("%w: %s", ErrUnsupportedOperator, c.op))
}

// Negate returns the complement of f built from the same node types:
// leaves flip their negation flag and combinators follow De Morgan.
func Negate(f Filter) Filter {
	switch n := f.(type) {
	case *Pattern:
		return n.negate()
	case *Contains:
		return &Pattern{text: n.pattern, kind: KindContains, negated: true, m: n}
	case *Combinator:
		op := OpOr
		if n.op == OpOr {
			op = OpAnd
		}
		return &Combinator{op: op, left: Negate(n.left), right: Negate(n.right)}
	case nil:
		return nil
	}
	return not{f}
}

// not wraps filters from outside this package that Negate cannot rewrite.
type not struct{ Filter }

func (n not) Match(value string) bool { return !n.Filter.Match(value) }
func (n not) String() string          { return "~" + n.Filter.String() }

// MatchAll is the filter an empty rule produces.
func MatchAll() Filter {
	return NewContains("")
}
