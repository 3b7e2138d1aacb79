// Package expand turns lexed words into final argument strings: tilde,
// variable and command substitution, brace products and globbing, honoring
// each segment's quoting.
package expand

import (
	"context"
	"strings"

	"github.com/oopisos/kernel/internal/shell/lexer"
)

// Config supplies the ambient lookups expansion needs. Callbacks keep the
// package free of executor and filesystem dependencies.
type Config struct {
	// Env resolves a variable; unset variables expand to "".
	Env func(name string) string
	// HomeOf resolves ~user; empty means unknown (the tilde stays literal).
	HomeOf func(user string) string
	// RunCommand executes a $(...) body and returns its captured output.
	RunCommand func(ctx context.Context, line string) (string, error)
	// Glob matches a pattern against the filesystem. A nil or empty match
	// list leaves the pattern literal.
	Glob func(pattern string) []string
}

// Words expands each word in order, producing the final argument vector.
// One word may yield several arguments (braces, globs) or exactly one when
// any part of it is quoted.
func Words(ctx context.Context, words []lexer.Word, cfg Config) ([]string, error) {
	var out []string
	for _, w := range words {
		args, err := one(ctx, w, cfg)
		if err != nil {
			return nil, err
		}
		out = append(out, args...)
	}
	return out, nil
}

// One expands a single word, used for redirection targets where multiple
// results collapse to the first.
func One(ctx context.Context, w lexer.Word, cfg Config) (string, error) {
	args, err := one(ctx, w, cfg)
	if err != nil {
		return "", err
	}
	if len(args) == 0 {
		return "", nil
	}
	return args[0], nil
}

func one(ctx context.Context, w lexer.Word, cfg Config) ([]string, error) {
	var b strings.Builder
	bare := true
	for _, seg := range w.Segments {
		switch seg.Quote {
		case lexer.QuoteSingle:
			b.WriteString(seg.Text)
			bare = false
		case lexer.QuoteDouble:
			text, err := substitute(ctx, seg.Text, cfg)
			if err != nil {
				return nil, err
			}
			b.WriteString(text)
			bare = false
		default:
			text, err := substitute(ctx, seg.Text, cfg)
			if err != nil {
				return nil, err
			}
			b.WriteString(text)
		}
	}
	text := b.String()
	if !bare {
		return []string{text}, nil
	}

	text = tilde(text, cfg)

	// Each brace product globs independently; products without a match
	// stay literal.
	var out []string
	for _, product := range Braces(text) {
		if cfg.Glob != nil && hasMeta(product) {
			if matches := cfg.Glob(product); len(matches) > 0 {
				out = append(out, matches...)
				continue
			}
		}
		out = append(out, product)
	}
	return out, nil
}

// substitute rewrites $NAME, ${NAME} and $(command) occurrences.
func substitute(ctx context.Context, s string, cfg Config) (string, error) {
	var b strings.Builder
	for i := 0; i < len(s); {
		ch := s[i]
		if ch != '$' || i+1 >= len(s) {
			b.WriteByte(ch)
			i++
			continue
		}
		switch {
		case s[i+1] == '(':
			end := matchParen(s, i+1)
			if end < 0 {
				b.WriteByte(ch)
				i++
				continue
			}
			if cfg.RunCommand == nil {
				b.WriteString(s[i : end+1])
				i = end + 1
				continue
			}
			output, err := cfg.RunCommand(ctx, s[i+2:end])
			if err != nil {
				return "", err
			}
			b.WriteString(strings.TrimRight(output, "\n"))
			i = end + 1
		case s[i+1] == '{':
			end := strings.IndexByte(s[i+2:], '}')
			if end < 0 {
				b.WriteByte(ch)
				i++
				continue
			}
			name := s[i+2 : i+2+end]
			if !validName(name) {
				b.WriteString(s[i : i+3+end])
			} else if cfg.Env != nil {
				b.WriteString(cfg.Env(name))
			}
			i += end + 3
		default:
			n := nameLen(s[i+1:])
			if n == 0 {
				b.WriteByte(ch)
				i++
				continue
			}
			if cfg.Env != nil {
				b.WriteString(cfg.Env(s[i+1 : i+1+n]))
			}
			i += n + 1
		}
	}
	return b.String(), nil
}

// tilde rewrites a leading ~ or ~user to the home directory. An unknown
// user leaves the word untouched.
func tilde(s string, cfg Config) string {
	if !strings.HasPrefix(s, "~") || cfg.HomeOf == nil {
		return s
	}
	rest := s[1:]
	name := rest
	if i := strings.IndexByte(rest, '/'); i >= 0 {
		name, rest = rest[:i], rest[i:]
	} else {
		rest = ""
	}
	home := cfg.HomeOf(name)
	if home == "" {
		return s
	}
	return home + rest
}

func validName(s string) bool {
	return nameLen(s) == len(s) && s != ""
}

func nameLen(s string) int {
	if s == "" || !isNameStart(s[0]) {
		return 0
	}
	i := 1
	for i < len(s) && isNameChar(s[i]) {
		i++
	}
	return i
}

func isNameStart(ch byte) bool {
	return ch == '_' || (ch >= 'a' && ch <= 'z') || (ch >= 'A' && ch <= 'Z')
}

func isNameChar(ch byte) bool {
	return isNameStart(ch) || (ch >= '0' && ch <= '9')
}

// matchParen returns the index of the ')' matching s[open], or -1.
func matchParen(s string, open int) int {
	depth := 0
	for i := open; i < len(s); i++ {
		switch s[i] {
		case '(':
			depth++
		case ')':
			depth--
			if depth == 0 {
				return i
			}
		}
	}
	return -1
}

func hasMeta(s string) bool {
	return strings.ContainsAny(s, "*?[")
}
