package lexer

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/oopisos/kernel/internal/shared/types"
)

func words(t *testing.T, line string) []string {
	t.Helper()
	tokens, err := Lex(line)
	require.NoError(t, err)
	var out []string
	for _, tok := range tokens {
		switch tok.Type {
		case TokenWord:
			out = append(out, tok.Word.Literal())
		case TokenOp:
			out = append(out, "<"+tok.Op+">")
		}
	}
	return out
}

func TestLexWordsAndOperators(t *testing.T) {
	assert.Equal(t,
		[]string{"ls", "-l", "<|>", "wc", "<&&>", "echo", "done", "<;>", "true", "<&>"},
		words(t, "ls -l | wc && echo done ; true &"))
}

func TestLexRedirections(t *testing.T) {
	assert.Equal(t,
		[]string{"cat", "<<>", "in", "<>>", "out", "<>>>", "log"},
		words(t, "cat < in > out >> log"))
	assert.Equal(t,
		[]string{"cmd", "<2>>", "err", "<&>>", "all"},
		words(t, "cmd 2> err &> all"))
}

func TestLexTwoIsAWordWhenNotRedirection(t *testing.T) {
	// "2" survives as an argument when not directly before '>'.
	assert.Equal(t, []string{"echo", "2", "x"}, words(t, "echo 2 x"))
	// Attached to other text it is part of the word.
	assert.Equal(t, []string{"echo", "a2", "<>>", "f"}, words(t, "echo a2 > f"))
}

func TestLexQuotes(t *testing.T) {
	tokens, err := Lex(`echo 'single $X' "double $X" bare`)
	require.NoError(t, err)
	require.Equal(t, TokenWord, tokens[1].Type)
	assert.Equal(t, QuoteSingle, tokens[1].Word.Segments[0].Quote)
	assert.Equal(t, "single $X", tokens[1].Word.Segments[0].Text)
	assert.Equal(t, QuoteDouble, tokens[2].Word.Segments[0].Quote)
	assert.True(t, tokens[3].Word.Bare())
}

func TestLexMixedQuoting(t *testing.T) {
	tokens, err := Lex(`echo pre"mid"'post'`)
	require.NoError(t, err)
	w := tokens[1].Word
	require.Len(t, w.Segments, 3)
	assert.Equal(t, "premidpost", w.Literal())
	assert.False(t, w.Bare())
}

func TestLexEscapes(t *testing.T) {
	tokens, err := Lex(`echo a\ b \$HOME`)
	require.NoError(t, err)
	// Escaped space joins the word.
	assert.Equal(t, "a b", tokens[1].Word.Literal())
	// Escaped dollar is literal.
	assert.Equal(t, "$HOME", tokens[2].Word.Literal())
	assert.Equal(t, QuoteSingle, tokens[2].Word.Segments[0].Quote)
}

func TestLexComment(t *testing.T) {
	assert.Equal(t, []string{"echo", "hi"}, words(t, "echo hi # the rest is ignored | & >"))
	// '#' inside a word is not a comment.
	assert.Equal(t, []string{"echo", "a#b"}, words(t, "echo a#b"))
}

func TestLexCommandSubstitutionStaysWhole(t *testing.T) {
	tokens, err := Lex(`echo $(ls -l /tmp)`)
	require.NoError(t, err)
	assert.Equal(t, "$(ls -l /tmp)", tokens[1].Word.Literal())

	// Nested parens.
	tokens, err = Lex(`echo $(echo $(pwd))`)
	require.NoError(t, err)
	assert.Equal(t, "$(echo $(pwd))", tokens[1].Word.Literal())
}

func TestLexErrors(t *testing.T) {
	for _, line := range []string{
		`echo 'unterminated`,
		`echo "unterminated`,
		`echo $(unclosed`,
		`echo trailing\`,
	} {
		_, err := Lex(line)
		require.Error(t, err, line)
		assert.Equal(t, types.KindParseError, types.KindOf(err), line)
	}
}

func TestLexEmpty(t *testing.T) {
	tokens, err := Lex("   ")
	require.NoError(t, err)
	require.Len(t, tokens, 1)
	assert.Equal(t, TokenEOF, tokens[0].Type)
}
