package search

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestTokenize_StripsFieldPrefixQuotesAndParens(t *testing.T) {
	t.Parallel()

	assert.Equal(t, []string{"bar", "baz", "qux"}, Tokenize(`foo:bar "baz" (qux)`))
}

func TestTokenize_EmptyInput(t *testing.T) {
	t.Parallel()

	assert.Empty(t, Tokenize(""))
	assert.Empty(t, Tokenize("   \t\n "))
}

func TestTokenize_CollapsesWhitespaceRuns(t *testing.T) {
	t.Parallel()

	assert.Equal(t, []string{"a", "b", "c"}, Tokenize("  a \t b\n\nc "))
}

func TestTokenize_OnlyFirstColonIsConsumed(t *testing.T) {
	t.Parallel()

	assert.Equal(t, []string{"b:c"}, Tokenize("a:b:c"))
}

func TestTokenize_DropsPiecesThatBecomeEmpty(t *testing.T) {
	t.Parallel()

	assert.Equal(t, []string{"x"}, Tokenize(`() "" artist: x`))
}

func TestTokenize_IsIdempotentOnItsOutput(t *testing.T) {
	t.Parallel()

	queries := []string{
		`foo:bar "baz" (qux)`,
		`title:"hello world" (a OR b)`,
		`plain words only`,
		`album:"x" year:(1999)`,
	}

	for _, q := range queries {
		first := Tokenize(q)
		second := Tokenize(strings.Join(first, " "))
		assert.Equal(t, first, second, "query %q", q)
	}
}

func TestTokenMatches_CountsSubstringHits(t *testing.T) {
	t.Parallel()

	assert.Equal(t, 1, TokenMatches([]string{"foo", "bar"}, "a foo b"))
	assert.Equal(t, 2, TokenMatches([]string{"foo", "bar"}, "foobar"))
	assert.Equal(t, 0, TokenMatches([]string{"zzz"}, "a foo b"))
}

func TestTokenMatches_IsCaseInsensitive(t *testing.T) {
	t.Parallel()

	assert.Equal(t, 1, TokenMatches([]string{"FOO"}, "foo"))
	assert.Equal(t, 1, TokenMatches([]string{"foo"}, "FOO"))
}

func TestTokenMatches_NoTokens(t *testing.T) {
	t.Parallel()

	assert.Equal(t, 0, TokenMatches(nil, "anything"))
}
