package executor

import (
	"context"

	"github.com/oopisos/kernel/internal/shared/types"
	"github.com/oopisos/kernel/internal/shell/expand"
	"github.com/oopisos/kernel/internal/shell/parser"
	"github.com/oopisos/kernel/internal/vfs"
)

// redirSet is a command's redirections with expanded targets. Later
// redirections of the same stream win.
type redirSet struct {
	in     string
	out    string
	append bool
	errOut string
	both   string
}

func (r redirSet) stdin() (string, bool) { return r.in, r.in != "" }

func (e *Executor) expandRedirs(ctx context.Context, st *runState, redirs []parser.Redir, cfg expand.Config) (redirSet, error) {
	var set redirSet
	for _, rd := range redirs {
		target, err := expand.One(ctx, rd.Target, cfg)
		if err != nil {
			return set, err
		}
		if target == "" {
			return set, types.NewError(types.KindParseError, "syntax error: empty redirection target")
		}
		switch rd.Op {
		case "<":
			set.in = target
		case ">":
			set.out, set.append = target, false
		case ">>":
			set.out, set.append = target, true
		case "2>":
			set.errOut = target
		case "&>":
			set.both = target
		}
	}
	return set, nil
}

// applyRedirs writes the stage's streams to their redirection targets.
// Redirected streams do not propagate further: stdout sent to a file is not
// piped, and stderr sent to a file is not rendered (the failure itself
// still terminates the pipeline).
func (e *Executor) applyRedirs(name string, st *runState, set redirSet, res types.Result) types.Result {
	if set.out == "" && set.errOut == "" && set.both == "" {
		return res
	}
	cred := e.identity.Credential(st.sess.User())
	cwd := st.sess.Cwd()

	write := func(target, content string, appendTo bool) error {
		opt := vfs.WriteOptions{Cwd: cwd, Append: appendTo}
		_, err := e.fs.CreateOrUpdate(target, []byte(content), cred, opt)
		return err
	}

	stdout := res.Output
	stderr := ""
	if res.Error != nil {
		stderr = res.Error.Message
		if res.Error.Suggestion != "" {
			stderr += "\n" + res.Error.Suggestion
		}
	}

	if set.both != "" {
		content := stdout
		if stderr != "" {
			content = appendLine(content, stderr)
		}
		if err := write(set.both, terminated(content), set.append); err != nil {
			return prefixFail(name, err)
		}
		res.Output = ""
		res.Error = nil
		res.StateModified = true
		return res
	}
	if set.out != "" {
		if err := write(set.out, terminated(stdout), set.append); err != nil {
			return prefixFail(name, err)
		}
		res.Output = ""
		res.StateModified = true
	}
	if set.errOut != "" {
		if err := write(set.errOut, terminated(stderr), false); err != nil {
			return prefixFail(name, err)
		}
		res.Error = nil
		res.StateModified = true
	}
	return res
}

// terminated ensures non-empty content ends with a newline, matching what
// a terminal write would have produced.
func terminated(s string) string {
	if s == "" || s[len(s)-1] == '\n' {
		return s
	}
	return s + "\n"
}
