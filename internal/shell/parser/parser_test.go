package parser

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/oopisos/kernel/internal/shared/types"
)

func parse(t *testing.T, line string) *Line {
	t.Helper()
	l, err := ParseString(line)
	require.NoError(t, err)
	return l
}

func argv(c *Command) []string {
	var out []string
	for _, w := range c.Words {
		out = append(out, w.Literal())
	}
	return out
}

func TestParseSimpleCommand(t *testing.T) {
	l := parse(t, "ls -l /tmp")
	require.Len(t, l.Statements, 1)
	require.Len(t, l.Statements[0].Pipelines, 1)
	cmd := l.Statements[0].Pipelines[0].Commands[0]
	assert.Equal(t, []string{"ls", "-l", "/tmp"}, argv(cmd))
	assert.Empty(t, cmd.Redirs)
}

func TestParsePipeline(t *testing.T) {
	l := parse(t, "cat notes | grep x | wc -l")
	pipe := l.Statements[0].Pipelines[0]
	require.Len(t, pipe.Commands, 3)
	assert.Equal(t, []string{"cat", "notes"}, argv(pipe.Commands[0]))
	assert.Equal(t, []string{"wc", "-l"}, argv(pipe.Commands[2]))
}

func TestParseConnectors(t *testing.T) {
	l := parse(t, "mkdir d && cd d || echo failed")
	stmt := l.Statements[0]
	require.Len(t, stmt.Pipelines, 3)
	assert.Equal(t, []string{"&&", "||"}, stmt.Connectors)
	assert.False(t, stmt.Background)
}

func TestParseStatements(t *testing.T) {
	l := parse(t, "echo a; echo b && false && echo c; echo d")
	require.Len(t, l.Statements, 3)
	assert.Len(t, l.Statements[1].Pipelines, 3)
}

func TestParseBackground(t *testing.T) {
	l := parse(t, "sleep 5 &")
	assert.True(t, l.Statements[0].Background)

	l = parse(t, "sleep 5 & echo done")
	require.Len(t, l.Statements, 2)
	assert.True(t, l.Statements[0].Background)
	assert.False(t, l.Statements[1].Background)
}

func TestParseRedirections(t *testing.T) {
	l := parse(t, "sort < in > out 2> err")
	cmd := l.Statements[0].Pipelines[0].Commands[0]
	assert.Equal(t, []string{"sort"}, argv(cmd))
	require.Len(t, cmd.Redirs, 3)
	assert.Equal(t, "<", cmd.Redirs[0].Op)
	assert.Equal(t, "in", cmd.Redirs[0].Target.Literal())
	assert.Equal(t, ">", cmd.Redirs[1].Op)
	assert.Equal(t, "2>", cmd.Redirs[2].Op)
	assert.Equal(t, "err", cmd.Redirs[2].Target.Literal())
}

func TestParseRedirectionMidCommand(t *testing.T) {
	// Redirections may appear between words.
	l := parse(t, "echo > f hello")
	cmd := l.Statements[0].Pipelines[0].Commands[0]
	assert.Equal(t, []string{"echo", "hello"}, argv(cmd))
	require.Len(t, cmd.Redirs, 1)
}

func TestParseEmptyAndSeparators(t *testing.T) {
	l := parse(t, "")
	assert.True(t, l.Empty())

	l = parse(t, " ; ;; ")
	assert.True(t, l.Empty())

	l = parse(t, "; echo a ;")
	require.Len(t, l.Statements, 1)
}

func TestParseErrors(t *testing.T) {
	for _, line := range []string{
		"| wc",
		"ls |",
		"ls | | wc",
		"&& echo",
		"echo a > ",
		"echo a 2>",
		"cat < | wc",
		"echo & extra &&",
	} {
		_, err := ParseString(line)
		require.Error(t, err, line)
		assert.Equal(t, types.KindParseError, types.KindOf(err), line)
	}
}

func TestParseTrailingBackgroundThenStatement(t *testing.T) {
	// '&' ends the statement; a following command starts a new one.
	l := parse(t, "build & test")
	require.Len(t, l.Statements, 2)
	assert.True(t, l.Statements[0].Background)
}
