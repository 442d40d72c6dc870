package parser

import (
	"errors"
	"fmt"
)

// ErrMalformedExpression is the sentinel every SyntaxError unwraps to.
var ErrMalformedExpression = errors.New("malformed expression")

// SyntaxError reports where a rule violates the grammar.
type SyntaxError struct {
	Rule string // the full rule passed to Parse
	Pos  int    // byte offset into Rule
	Msg  string
}

func (e *SyntaxError) Error() string {
	return fmt.Sprintf("malformed expression %q at offset %d: %s", e.Rule, e.Pos, e.Msg)
}

func (e *SyntaxError) Unwrap() error {
	return ErrMalformedExpression
}
