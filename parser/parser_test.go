package parser

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"rowfilter/filter"
)

var sampleValues = []string{
	"", "a", "ab", "abc", "b", "c", "foo", "xfooy", "bar", "foobar", "baz", "qux", "FOOBAZ",
	"bar baz", "example.com", "ads.example.com",
}

func TestParseScenarios(t *testing.T) {
	tests := []struct {
		rule  string
		value string
		want  bool
	}{
		{"foo", "xfooy", true},
		{"foo", "bar", false},
		{"~foo", "xfooy", false},
		{"~foo", "bar", true},
		{"foo AND bar", "foobar", true},
		{"foo AND bar", "foo", false},
		{"foo OR bar", "bar", true},
		{"(foo AND bar) OR baz", "baz", true},
		{"(foo AND bar) OR baz", "foobar", true},
		{"(foo AND bar) OR baz", "qux", false},
		{"", "anything", true},
		{"", "", true},
	}

	for _, tt := range tests {
		t.Run(tt.rule+"/"+tt.value, func(t *testing.T) {
			f, err := Parse(tt.rule)
			require.NoError(t, err)
			assert.Equal(t, tt.want, f.Match(tt.value))
		})
	}
}

func TestParseTree(t *testing.T) {
	tests := []struct {
		rule string
		want string
	}{
		{"foo", "foo"},
		{"  Foo  ", "foo"},
		{"~foo", "~foo"},
		{"~~foo", "foo"},
		{"~ foo", "~foo"},
		{"()", "()"},
		{"", "()"},
		{"((foo))", "foo"},
		{"(~foo)", "~foo"},
		{"~(foo)", "~foo"},
		{"foo AND bar", "(foo AND bar)"},
		{"(foo AND bar)", "(foo AND bar)"},
		{"(foo AND ~bar) OR baz", "((foo AND ~bar) OR baz)"},
		{"~a AND b", "(~a AND b)"},
		{"~(a AND b)", "(~a OR ~b)"},
		{"~(a OR ~b)", "(~a AND b)"},
		{"(a) OR (b)", "(a OR b)"},
		{"(a)OR(b)", "(a OR b)"},
		{"a AND~b", "(a AND ~b)"},
		{"a AND (b OR (c AND d))", "(a AND (b OR (c AND d)))"},
		{"hello world AND x", "(hello world AND x)"},
		{"ORANGE", "orange"},
		{"BRAND AND ORBIT", "(brand AND orbit)"},
		{"and or", "and or"},
		{"foo(bar)", "foo(bar)"},
		{`"a AND b" OR c`, `("a and b" OR c)`},
		{"/a(b|c)/ AND ||example.com^", "(/a(b|c)/ AND ||example.com^)"},
	}

	for _, tt := range tests {
		t.Run(tt.rule, func(t *testing.T) {
			f, err := Parse(tt.rule)
			require.NoError(t, err)
			assert.Equal(t, tt.want, f.String())
		})
	}
}

// Only the last operator at a level counts and only the first two operands
// are kept.
func TestParseLastOperatorWins(t *testing.T) {
	f, err := Parse("a AND b OR c")
	require.NoError(t, err)
	assert.Equal(t, "(a OR b)", f.String())

	assert.True(t, f.Match("a"))
	assert.True(t, f.Match("b"))
	assert.False(t, f.Match("c"))

	f, err = Parse("a OR b AND c")
	require.NoError(t, err)
	assert.Equal(t, "(a AND b)", f.String())
	assert.True(t, f.Match("ab"))
	assert.False(t, f.Match("a"))
	assert.True(t, f.Match("abc"))

	f, err = Parse("(a) AND (b) AND (c)")
	require.NoError(t, err)
	assert.Equal(t, "(a AND b)", f.String())

	f, err = Parse("a AND (b AND c)")
	require.NoError(t, err)
	assert.False(t, f.Match("ab"))
	assert.True(t, f.Match("abc"))
}

func TestParseNestingEquivalence(t *testing.T) {
	pairs := [][2]string{
		{"(a AND b)", "a AND b"},
		{"((a OR b))", "a OR b"},
		{"(~a)", "~a"},
		{"((a) AND (b))", "a AND b"},
		{"(foo AND bar) OR baz", "((foo AND bar)) OR (baz)"},
	}

	for _, pair := range pairs {
		wrapped := MustParse(pair[0])
		plain := MustParse(pair[1])
		for _, v := range sampleValues {
			assert.Equal(t, plain.Match(v), wrapped.Match(v), "%q vs %q on %q", pair[0], pair[1], v)
		}
	}
}

func TestParseIdempotent(t *testing.T) {
	rules := []string{"foo", "~foo", "(foo AND ~bar) OR baz", "~(a OR b)", "a*", "/^b/", `"bar"`, ""}
	for _, rule := range rules {
		first := MustParse(rule)
		second := MustParse(rule)
		for _, v := range sampleValues {
			assert.Equal(t, first.Match(v), second.Match(v), "%q on %q", rule, v)
		}
	}
}

func TestParseNegationLaw(t *testing.T) {
	for _, rule := range []string{"foo", "a*", "/^b/", `"bar"`, "||example.com^", "", "(a AND b)", "a OR b"} {
		plain := MustParse(rule)
		negated := MustParse("~(" + rule + ")")
		for _, v := range sampleValues {
			assert.NotEqual(t, plain.Match(v), negated.Match(v), "%q on %q", rule, v)
		}
	}
}

func TestParseCaseInsensitive(t *testing.T) {
	f := MustParse("Foo AND BAZ")
	assert.True(t, f.Match("xfooBazy"))
	assert.True(t, f.Match("FOOBAZ"))
}

func TestParseLeafKinds(t *testing.T) {
	tests := []struct {
		rule string
		kind filter.Kind
	}{
		{"foo", filter.KindContains},
		{`"foo"`, filter.KindExact},
		{"fo*", filter.KindWildcard},
		{"/fo+/", filter.KindRegex},
		{"||example.com^", filter.KindDomain},
		{"~||example.com^", filter.KindDomain},
	}

	for _, tt := range tests {
		t.Run(tt.rule, func(t *testing.T) {
			f, err := Parse(tt.rule)
			require.NoError(t, err)
			p, ok := f.(*filter.Pattern)
			require.True(t, ok)
			assert.Equal(t, tt.kind, p.Kind())
		})
	}
}

func TestParseMalformed(t *testing.T) {
	tests := []struct {
		rule string
		pos  int
	}{
		{"(foo", 0},
		{"foo)", 3},
		{"(a AND b", 0},
		{"a) OR (b", 1},
		{"~", 0},
		{"a AND ~", 6},
		{"~()", -1},
		{"foo AND", 4},
		{"AND foo", 0},
		{"a AND AND b", 6},
		{"a AND b OR", 8},
		{"(a)(b)", 2},
		{`"foo AND bar`, 0},
		{"x AND (y OR)", 9},
	}

	for _, tt := range tests {
		t.Run(tt.rule, func(t *testing.T) {
			f, err := Parse(tt.rule)
			if tt.pos < 0 {
				// "~()" negates the match-all leaf and is well formed
				require.NoError(t, err)
				assert.False(t, f.Match("x"))
				return
			}
			require.Error(t, err)
			assert.Nil(t, f)
			assert.ErrorIs(t, err, ErrMalformedExpression)

			var se *SyntaxError
			require.True(t, errors.As(err, &se))
			assert.Equal(t, tt.rule, se.Rule)
			assert.Equal(t, tt.pos, se.Pos)
			assert.Contains(t, se.Error(), "malformed expression")
		})
	}
}

func TestParseInvalidPattern(t *testing.T) {
	for _, mode := range []Mode{ModeStrict, ModeLenient} {
		t.Run(mode.String(), func(t *testing.T) {
			_, err := ParseWithMode("foo OR /a[/", mode)
			assert.ErrorIs(t, err, filter.ErrInvalidPattern)
			assert.False(t, errors.Is(err, ErrMalformedExpression))
		})
	}
}

func TestParseLenient(t *testing.T) {
	tests := []struct {
		rule  string
		want  string
		value string
		match bool
	}{
		{"(foo", "(foo", "x(foox", true},
		{"foo AND", "foo and", "foo and bar", true},
		{"~", "~()", "anything", false},
		{"~(a)(b)", "~a)(b", "a)(b", false},
		{"(a)(b)", "a)(b", "a)(b", true},
		// well-formed rules are unaffected
		{"foo AND bar", "(foo AND bar)", "foobar", true},
	}

	for _, tt := range tests {
		t.Run(tt.rule, func(t *testing.T) {
			f, err := ParseWithMode(tt.rule, ModeLenient)
			require.NoError(t, err)
			assert.Equal(t, tt.want, f.String())
			assert.Equal(t, tt.match, f.Match(tt.value))
		})
	}
}

func TestMustParsePanics(t *testing.T) {
	assert.Panics(t, func() { MustParse("(") })
	assert.NotPanics(t, func() { MustParse("a OR b") })
}
