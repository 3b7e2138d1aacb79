package expand

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/oopisos/kernel/internal/shell/lexer"
)

func lexWords(t *testing.T, line string) []lexer.Word {
	t.Helper()
	tokens, err := lexer.Lex(line)
	require.NoError(t, err)
	var out []lexer.Word
	for _, tok := range tokens {
		if tok.Type == lexer.TokenWord {
			out = append(out, tok.Word)
		}
	}
	return out
}

func testConfig() Config {
	env := map[string]string{"HOME": "/home/Guest", "USER": "Guest", "COLOR": "green"}
	homes := map[string]string{"": "/home/Guest", "alice": "/home/alice"}
	return Config{
		Env:    func(name string) string { return env[name] },
		HomeOf: func(user string) string { return homes[user] },
		RunCommand: func(_ context.Context, line string) (string, error) {
			if line == "echo nested" {
				return "nested\n", nil
			}
			return "ran(" + line + ")\n", nil
		},
	}
}

func expandLine(t *testing.T, line string, cfg Config) []string {
	t.Helper()
	out, err := Words(context.Background(), lexWords(t, line), cfg)
	require.NoError(t, err)
	return out
}

func TestVariableExpansion(t *testing.T) {
	cfg := testConfig()
	assert.Equal(t, []string{"green", "green-ish", "/home/Guest"},
		expandLine(t, `$COLOR ${COLOR}-ish $HOME`, cfg))
	// Unset variables expand to empty.
	assert.Equal(t, []string{"x"}, expandLine(t, `x$MISSING`, cfg))
	// Single quotes suppress expansion; double quotes allow it.
	assert.Equal(t, []string{"$COLOR", "green"}, expandLine(t, `'$COLOR' "$COLOR"`, cfg))
}

func TestCommandSubstitution(t *testing.T) {
	cfg := testConfig()
	assert.Equal(t, []string{"nested"}, expandLine(t, `$(echo nested)`, cfg))
	// Trailing newlines are stripped; inner text is kept verbatim.
	assert.Equal(t, []string{"ran(date -u)"}, expandLine(t, `"$(date -u)"`, cfg))
}

func TestTildeExpansion(t *testing.T) {
	cfg := testConfig()
	assert.Equal(t, []string{"/home/Guest"}, expandLine(t, `~`, cfg))
	assert.Equal(t, []string{"/home/Guest/docs"}, expandLine(t, `~/docs`, cfg))
	assert.Equal(t, []string{"/home/alice/notes"}, expandLine(t, `~alice/notes`, cfg))
	// Unknown user stays literal; quoted tilde stays literal.
	assert.Equal(t, []string{"~bob/x"}, expandLine(t, `~bob/x`, cfg))
	assert.Equal(t, []string{"~"}, expandLine(t, `'~'`, cfg))
	// Mid-word tilde is not expanded.
	assert.Equal(t, []string{"a~b"}, expandLine(t, `a~b`, cfg))
}

func TestBraceExpansion(t *testing.T) {
	cfg := testConfig()
	assert.Equal(t, []string{"a.txt", "b.txt"}, expandLine(t, `{a,b}.txt`, cfg))
	assert.Equal(t, []string{"1", "2", "3"}, expandLine(t, `{1..3}`, cfg))
	assert.Equal(t, []string{"c", "b", "a"}, expandLine(t, `{c..a}`, cfg))
	assert.Equal(t, []string{"x-a-1", "x-a-2", "x-b-1", "x-b-2"},
		expandLine(t, `x-{a,b}-{1,2}`, cfg))
	// Malformed braces stay literal.
	assert.Equal(t, []string{"{abc}"}, expandLine(t, `{abc}`, cfg))
	assert.Equal(t, []string{"{a,b"}, expandLine(t, `{a,b`, cfg))
}

func TestGlobbing(t *testing.T) {
	tree := map[string][]string{
		"/home/Guest":      {"a.txt", "b.txt", "c.md", ".hidden", "sub"},
		"/home/Guest/sub":  {"d.txt"},
		"/":                {"home", "etc", "tmp"},
		"/etc":             {"sudoers", "oopis.conf"},
	}
	cfg := testConfig()
	cfg.Glob = NewGlobber("/home/Guest", func(dir string) []string { return tree[dir] })

	assert.Equal(t, []string{"a.txt", "b.txt"}, expandLine(t, `*.txt`, cfg))
	assert.Equal(t, []string{"a.txt", "b.txt", "c.md", "sub"}, expandLine(t, `*`, cfg))
	// Dotfiles need an explicit leading dot.
	assert.Equal(t, []string{".hidden"}, expandLine(t, `.h*`, cfg))
	// Multi-component and absolute patterns.
	assert.Equal(t, []string{"sub/d.txt"}, expandLine(t, `sub/*.txt`, cfg))
	assert.Equal(t, []string{"/etc/oopis.conf", "/etc/sudoers"}, expandLine(t, `/etc/*`, cfg))
	// No match leaves the pattern literal.
	assert.Equal(t, []string{"*.zip"}, expandLine(t, `*.zip`, cfg))
	// Quoted patterns never glob.
	assert.Equal(t, []string{"*.txt"}, expandLine(t, `"*.txt"`, cfg))
}

func TestBraceProductsGlobIndependently(t *testing.T) {
	tree := map[string][]string{"/home/Guest": {"a.txt", "b.md"}}
	cfg := testConfig()
	cfg.Glob = NewGlobber("/home/Guest", func(dir string) []string { return tree[dir] })

	// *.txt matches, *.zip stays literal.
	assert.Equal(t, []string{"a.txt", "*.zip"}, expandLine(t, `{*.txt,*.zip}`, cfg))
}

func TestOne(t *testing.T) {
	cfg := testConfig()
	w := lexWords(t, `$HOME/out`)
	target, err := One(context.Background(), w[0], cfg)
	require.NoError(t, err)
	assert.Equal(t, "/home/Guest/out", target)
}
