// Package lexer tokenizes a shell line into words and operators. Quoting is
// preserved per word segment so later expansion stages know which text is
// eligible for variable, brace and glob expansion.
package lexer

import (
	"strings"

	"github.com/oopisos/kernel/internal/shared/types"
)

// TokenType discriminates tokens.
type TokenType int

const (
	TokenWord TokenType = iota
	TokenOp
	TokenEOF
)

// QuoteKind records how a word segment was quoted.
type QuoteKind int

const (
	// QuoteNone is bare text: all expansions apply.
	QuoteNone QuoteKind = iota
	// QuoteSingle is literal text: no expansion at all. Escaped characters
	// are also recorded as single-quoted so they stay literal.
	QuoteSingle
	// QuoteDouble allows variable expansion only.
	QuoteDouble
)

// Segment is a run of characters sharing one quoting context.
type Segment struct {
	Text  string
	Quote QuoteKind
}

// Word is one shell word, possibly mixing quoting contexts
// (e.g. foo"bar"'baz').
type Word struct {
	Segments []Segment
}

// Literal concatenates the word's text ignoring quoting.
func (w Word) Literal() string {
	var b strings.Builder
	for _, s := range w.Segments {
		b.WriteString(s.Text)
	}
	return b.String()
}

// Bare reports whether the whole word is unquoted, which gates alias
// expansion of the first word.
func (w Word) Bare() bool {
	for _, s := range w.Segments {
		if s.Quote != QuoteNone {
			return false
		}
	}
	return true
}

// Token is one lexical unit.
type Token struct {
	Type TokenType
	Op   string
	Word Word
}

// Operators, longest first so two-character forms win.
var operators = []string{"&&", "||", ">>", "&>", "|", ">", "<", "&", ";"}

// Lex tokenizes a line. A '#' at the start of a word begins a comment
// running to end of line. Unterminated quotes are a parse error.
func Lex(line string) ([]Token, error) {
	var tokens []Token
	var segs []Segment
	var cur strings.Builder
	curQuote := QuoteNone

	flushSeg := func() {
		if cur.Len() > 0 {
			segs = append(segs, Segment{Text: cur.String(), Quote: curQuote})
			cur.Reset()
		}
	}
	flushWord := func() {
		flushSeg()
		if len(segs) > 0 {
			tokens = append(tokens, Token{Type: TokenWord, Word: Word{Segments: segs}})
			segs = nil
		}
	}
	wordEmpty := func() bool { return cur.Len() == 0 && len(segs) == 0 }

	i := 0
	for i < len(line) {
		ch := line[i]

		// Comment: only at a word boundary.
		if ch == '#' && wordEmpty() {
			break
		}

		switch ch {
		case ' ', '\t':
			flushWord()
			i++
			continue
		case '\'':
			end := strings.IndexByte(line[i+1:], '\'')
			if end < 0 {
				return nil, parseErr("unterminated single quote")
			}
			flushSeg()
			segs = append(segs, Segment{Text: line[i+1 : i+1+end], Quote: QuoteSingle})
			i += end + 2
			continue
		case '"':
			text, rest, err := lexDoubleQuoted(line[i+1:])
			if err != nil {
				return nil, err
			}
			flushSeg()
			segs = append(segs, Segment{Text: text, Quote: QuoteDouble})
			i = len(line) - len(rest)
			continue
		case '\\':
			if i+1 >= len(line) {
				return nil, parseErr("trailing backslash")
			}
			flushSeg()
			segs = append(segs, Segment{Text: string(line[i+1]), Quote: QuoteSingle})
			i += 2
			continue
		case '$':
			// Capture $(...) whole so spaces inside do not split the word.
			if i+1 < len(line) && line[i+1] == '(' {
				end, err := matchParen(line, i+1)
				if err != nil {
					return nil, err
				}
				cur.WriteString(line[i : end+1])
				i = end + 1
				continue
			}
		}

		// Operator handling at any boundary. "2>" only counts when the
		// pending word is exactly the digit 2.
		if isOpStart(ch) {
			if ch == '>' && cur.Len() == 1 && cur.String() == "2" && len(segs) == 0 {
				cur.Reset()
				flushWord()
				tokens = append(tokens, Token{Type: TokenOp, Op: "2>"})
				i++
				continue
			}
			flushWord()
			matched := false
			for _, op := range operators {
				if strings.HasPrefix(line[i:], op) {
					tokens = append(tokens, Token{Type: TokenOp, Op: op})
					i += len(op)
					matched = true
					break
				}
			}
			if matched {
				continue
			}
		}

		cur.WriteByte(ch)
		i++
	}
	flushWord()
	tokens = append(tokens, Token{Type: TokenEOF})
	return tokens, nil
}

func isOpStart(ch byte) bool {
	switch ch {
	case '|', '>', '<', '&', ';':
		return true
	}
	return false
}

// lexDoubleQuoted scans until the closing quote, handling backslash escapes
// of `"`, `$` and `\`. Returns the unescaped text and the remainder of the
// line after the closing quote.
func lexDoubleQuoted(s string) (string, string, error) {
	var b strings.Builder
	for i := 0; i < len(s); i++ {
		switch s[i] {
		case '"':
			return b.String(), s[i+1:], nil
		case '\\':
			if i+1 < len(s) && (s[i+1] == '"' || s[i+1] == '$' || s[i+1] == '\\') {
				i++
				b.WriteByte(s[i])
				continue
			}
			b.WriteByte(s[i])
		default:
			b.WriteByte(s[i])
		}
	}
	return "", "", parseErr("unterminated double quote")
}

// matchParen returns the index of the parenthesis matching s[open],
// skipping quoted runs.
func matchParen(s string, open int) (int, error) {
	depth := 0
	for i := open; i < len(s); i++ {
		switch s[i] {
		case '(':
			depth++
		case ')':
			depth--
			if depth == 0 {
				return i, nil
			}
		case '\'', '"':
			q := s[i]
			j := strings.IndexByte(s[i+1:], q)
			if j < 0 {
				return 0, parseErr("unterminated quote in substitution")
			}
			i += j + 1
		}
	}
	return 0, parseErr("unterminated command substitution")
}

func parseErr(msg string) error {
	return types.NewError(types.KindParseError, "syntax error: %s", msg)
}
