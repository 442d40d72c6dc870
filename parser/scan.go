package parser

import (
	"strings"
	"unicode"

	"rowfilter/filter"
)

// segment is a piece of the rule together with its offset in the full rule.
type segment struct {
	text string
	off  int
}

func (s segment) trim() segment {
	left := strings.TrimLeftFunc(s.text, unicode.IsSpace)
	return segment{
		text: strings.TrimRightFunc(left, unicode.IsSpace),
		off:  s.off + len(s.text) - len(left),
	}
}

// scan is the result of a depth-0 pass over one expression.
type scan struct {
	// op is the last AND/OR seen at depth 0, zero when there is none.
	op filter.Op
	// opPos is the offset of the last operator token.
	opPos int
	// operands are the depth-0 pieces between operator tokens, in order.
	operands []segment
}

type scanError struct {
	pos int
	msg string
}

// scanTopLevel walks s left to right tracking parenthesis depth. AND and OR
// are recognized as whole words at depth 0 only; double-quoted text is
// opaque. Later operators overwrite earlier ones.
func scanTopLevel(s segment) (scan, *scanError) {
	var (
		res      scan
		depth    int
		openPos  = -1
		quotePos = -1
		start    int
	)

	for i := 0; i < len(s.text); i++ {
		c := s.text[i]

		if quotePos >= 0 {
			if c == '"' {
				quotePos = -1
			}
			continue
		}

		switch c {
		case '"':
			quotePos = i
		case '(':
			if depth == 0 {
				openPos = i
			}
			depth++
		case ')':
			depth--
			if depth < 0 {
				return scan{}, &scanError{pos: s.off + i, msg: "unexpected )"}
			}
		default:
			if depth != 0 {
				continue
			}
			op, n := operatorAt(s.text, i)
			if n == 0 {
				continue
			}
			res.operands = append(res.operands, segment{text: s.text[start:i], off: s.off + start})
			res.op = op
			res.opPos = s.off + i
			start = i + n
			i += n - 1
		}
	}

	if quotePos >= 0 {
		return scan{}, &scanError{pos: s.off + quotePos, msg: "unterminated quote"}
	}
	if depth > 0 {
		return scan{}, &scanError{pos: s.off + openPos, msg: "unclosed ("}
	}

	res.operands = append(res.operands, segment{text: s.text[start:], off: s.off + start})
	return res, nil
}

// operatorAt reports the operator token starting at s[i] and its length.
func operatorAt(s string, i int) (filter.Op, int) {
	if i > 0 && !isSpace(s[i-1]) && s[i-1] != ')' {
		return 0, 0
	}
	for _, tok := range []struct {
		word string
		op   filter.Op
	}{{"AND", filter.OpAnd}, {"OR", filter.OpOr}} {
		if !strings.HasPrefix(s[i:], tok.word) {
			continue
		}
		end := i + len(tok.word)
		if end == len(s) || isSpace(s[end]) || s[end] == '(' || s[end] == '~' {
			return tok.op, len(tok.word)
		}
	}
	return 0, 0
}

func isSpace(c byte) bool {
	return c == ' ' || c == '\t' || c == '\n' || c == '\r'
}

// stripNegation removes one leading ~.
func stripNegation(s segment) (segment, bool) {
	if !strings.HasPrefix(s.text, "~") {
		return s, false
	}
	return segment{text: s.text[1:], off: s.off + 1}.trim(), true
}

// stripOuterParens removes one layer of parentheses when the leading ( is
// closed by the final ). Text that starts with ( and ends with ) without
// being a single group is reported as an error.
func stripOuterParens(s segment) (segment, bool, *scanError) {
	if !strings.HasPrefix(s.text, "(") || !strings.HasSuffix(s.text, ")") {
		return s, false, nil
	}

	depth := 0
	inQuote := false
	for i := 0; i < len(s.text); i++ {
		switch c := s.text[i]; {
		case c == '"':
			inQuote = !inQuote
		case inQuote:
		case c == '(':
			depth++
		case c == ')':
			depth--
			if depth == 0 && i != len(s.text)-1 {
				return s, false, &scanError{pos: s.off + i, msg: "parentheses do not wrap the whole expression"}
			}
		}
	}
	if depth != 0 {
		return s, false, &scanError{pos: s.off, msg: "unbalanced parentheses"}
	}

	return segment{text: s.text[1 : len(s.text)-1], off: s.off + 1}.trim(), true, nil
}
