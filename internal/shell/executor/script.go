package executor

import (
	"context"
	"strings"

	"github.com/oopisos/kernel/internal/shared/types"
	"github.com/oopisos/kernel/internal/vfs"
)

// Shebang recognized by the script runner.
const Shebang = "#!/bin/oopis_shell"

// isScript reports whether name refers to a file the caller may execute as
// a shell script: execute permission plus the shebang or a .sh suffix.
func (e *Executor) isScript(st *runState, name string) (bool, error) {
	cred := e.identity.Credential(st.sess.User())
	res, err := e.fs.Resolve(name, cred, vfs.ResolveOptions{Cwd: st.sess.Cwd()})
	if err != nil {
		if types.KindOf(err) == types.KindNoSuchEntry {
			return false, nil
		}
		return false, err
	}
	if res.Node.Type != vfs.TypeFile {
		return false, nil
	}
	if !vfs.Allowed(res.Node, cred, vfs.PermExecute) {
		return false, types.NewError(types.KindPermissionDenied, "%s: permission denied", res.Path)
	}
	if strings.HasSuffix(res.Path, ".sh") {
		return true, nil
	}
	first := string(res.Node.Content)
	if i := strings.IndexByte(first, '\n'); i >= 0 {
		first = first[:i]
	}
	return strings.TrimSpace(first) == Shebang, nil
}

// runScript executes a script line by line with isInteractive off. Comments
// and blanks are skipped; the first failing line stops the script. Depth
// and total step budgets bound runaway recursion.
func (e *Executor) runScript(ctx context.Context, st *runState, path string, args []string) types.Result {
	if st.depth+1 > e.cfg.Shell.MaxScriptDepth {
		return prefixFail(path, types.NewError(types.KindAborted,
			"script recursion depth limit (%d) exceeded", e.cfg.Shell.MaxScriptDepth))
	}
	cred := e.identity.Credential(st.sess.User())
	content, err := e.fs.ReadFile(path, cred, st.sess.Cwd())
	if err != nil {
		return prefixFail(path, err)
	}

	wasInteractive := st.sess.Interactive()
	st.sess.SetInteractive(false)
	defer st.sess.SetInteractive(wasInteractive)

	scriptState := &runState{
		sess:       st.sess,
		prompter:   st.prompter,
		depth:      st.depth + 1,
		steps:      st.steps,
		scriptArgs: append([]string{path}, args...),
	}

	var out Outcome
	out.Success = true
	for _, line := range strings.Split(string(content), "\n") {
		trimmed := strings.TrimSpace(line)
		if trimmed == "" || strings.HasPrefix(trimmed, "#") {
			continue
		}
		*st.steps++
		if *st.steps > e.cfg.Shell.MaxScriptSteps {
			return prefixFail(path, types.NewError(types.KindAborted,
				"script step limit (%d) exceeded", e.cfg.Shell.MaxScriptSteps))
		}
		if ctx.Err() != nil {
			return prefixFail(path, types.NewError(types.KindAborted, "aborted"))
		}
		lineOut := e.run(ctx, scriptState, line)
		out.Output = appendLine(out.Output, strings.TrimSuffix(lineOut.Output, "\n"))
		out.StateModified = out.StateModified || lineOut.StateModified
		if lineOut.Effect != types.EffectNone {
			out.Effect = lineOut.Effect
		}
		if !lineOut.Success {
			out.Success = false
			out.Errors = lineOut.Errors
			break
		}
	}
	return out.asResult()
}
