// Package executor drives the shell: it parses input lines, expands words,
// dispatches commands through the registry, wires pipelines and
// redirections, applies short-circuit operators and runs background jobs.
package executor

import (
	"context"
	"strconv"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/oopisos/kernel/internal/command"
	"github.com/oopisos/kernel/internal/identity"
	"github.com/oopisos/kernel/internal/infrastructure/config"
	"github.com/oopisos/kernel/internal/infrastructure/logging"
	"github.com/oopisos/kernel/internal/infrastructure/resilience"
	"github.com/oopisos/kernel/internal/session"
	"github.com/oopisos/kernel/internal/shared/types"
	"github.com/oopisos/kernel/internal/shell/expand"
	"github.com/oopisos/kernel/internal/shell/lexer"
	"github.com/oopisos/kernel/internal/shell/parser"
	"github.com/oopisos/kernel/internal/vfs"
)

// Observer receives execution telemetry. Implementations must be fast.
type Observer interface {
	CommandExecuted(name string, success bool, duration time.Duration)
	JobsChanged(active int)
}

// Outcome is the rendered result of one input line: separate stdout and
// stderr streams plus the final statement's disposition.
type Outcome struct {
	Output        string
	Errors        string
	Success       bool
	Effect        types.Effect
	StateModified bool
}

// Executor is shared by every session; per-session state lives in the
// session itself and in the per-session job table.
type Executor struct {
	reg      *command.Registry
	fs       *vfs.FS
	identity *identity.Manager
	sessions *session.Manager
	log      *logging.Logger
	cfg      *config.Config
	obs      Observer
	saves    *resilience.Breaker

	mu     sync.Mutex
	tables map[string]*jobTable
}

// New wires the executor.
func New(reg *command.Registry, fs *vfs.FS, idm *identity.Manager, sessions *session.Manager, log *logging.Logger, cfg *config.Config) *Executor {
	e := &Executor{
		reg:      reg,
		fs:       fs,
		identity: idm,
		sessions: sessions,
		log:      log,
		cfg:      cfg,
		tables:   make(map[string]*jobTable),
	}
	e.saves = resilience.New("auto-save", resilience.Settings{
		OnStateChange: func(name string, from, to resilience.State) {
			log.Warn("persistence breaker state changed",
				zap.String("breaker", name),
				zap.String("from", from.String()),
				zap.String("to", to.String()))
		},
	})
	return e
}

// SetObserver attaches execution telemetry.
func (e *Executor) SetObserver(obs Observer) { e.obs = obs }

// runState carries the per-invocation frame: the session, the recursion
// depth and step budget for scripts, positional script arguments, and the
// prompter of the attached terminal.
type runState struct {
	sess       *session.Session
	prompter   command.Prompter
	depth      int
	steps      *int
	scriptArgs []string
}

// Execute runs one interactive line: history, execution, and the auto-save
// policy for state-modifying results.
func (e *Executor) Execute(ctx context.Context, sess *session.Session, prompter command.Prompter, line string) Outcome {
	sess.History().Add(strings.TrimSpace(line))
	steps := 0
	st := &runState{sess: sess, prompter: prompter, steps: &steps}
	out := e.run(ctx, st, line)
	if out.StateModified {
		err := e.saves.Do(func() error {
			if err := e.fs.Save(ctx); err != nil {
				return err
			}
			return e.sessions.SaveAuto(ctx, sess)
		})
		switch {
		case err == resilience.ErrOpen:
			out.Errors = appendLine(out.Errors, "warning: auto-save suspended after repeated storage failures")
		case err != nil:
			out.Errors = appendLine(out.Errors, "warning: state save failed: "+err.Error())
			e.log.Warn("auto-save failed", zap.Error(err))
		}
	}
	return out
}

// run executes a full line within a run state.
func (e *Executor) run(ctx context.Context, st *runState, line string) Outcome {
	parsed, err := parser.ParseString(line)
	if err != nil {
		return failOutcome("oopis_shell", err)
	}
	var out Outcome
	out.Success = true
	for _, stmt := range parsed.Statements {
		if ctx.Err() != nil {
			out.Success = false
			out.Errors = appendLine(out.Errors, "oopis_shell: aborted")
			return out
		}
		if stmt.Background {
			id := e.startJob(ctx, st, stmt, line)
			out.Output = appendLine(out.Output, jobStartedLine(id))
			out.Success = true
			continue
		}
		res := e.runStatement(ctx, st, stmt)
		out.merge(res)
	}
	return out
}

// runStatement runs the && / || chain of one statement.
func (e *Executor) runStatement(ctx context.Context, st *runState, stmt *parser.Statement) types.Result {
	res := e.runPipeline(ctx, st, stmt.Pipelines[0])
	agg := res
	for i, conn := range stmt.Connectors {
		if (conn == "&&" && !res.Success) || (conn == "||" && res.Success) {
			continue
		}
		res = e.runPipeline(ctx, st, stmt.Pipelines[i+1])
		agg = mergeResults(agg, res)
	}
	agg.Success = res.Success
	return agg
}

// runPipeline runs stages left to right. Stage i+1 consumes the complete
// output of stage i. A failing stage reports to stderr and feeds empty
// input downstream; the last stage decides the pipeline's status, so
// `ls missing | wc -l` still counts zero lines.
func (e *Executor) runPipeline(ctx context.Context, st *runState, pl *parser.Pipeline) types.Result {
	input := ""
	hasInput := false
	stateModified := false
	var stderr []string

	for i, cmd := range pl.Commands {
		if ctx.Err() != nil {
			return types.FailErr(types.NewError(types.KindAborted, "aborted"))
		}
		res := e.runCommand(ctx, st, cmd, input, hasInput)
		stateModified = stateModified || res.StateModified
		if i == len(pl.Commands)-1 {
			res.StateModified = stateModified
			if len(stderr) > 0 {
				lines := strings.Join(stderr, "\n")
				if res.Error != nil {
					res.Error.Message = lines + "\n" + res.Error.Message
				} else {
					res.Error = &types.ErrorInfo{Message: lines}
				}
			}
			return res
		}
		if !res.Success {
			if res.Error != nil {
				stderr = append(stderr, res.Error.Message)
				if res.Error.Suggestion != "" {
					stderr = append(stderr, res.Error.Suggestion)
				}
			}
			input, hasInput = "", true
			continue
		}
		input, hasInput = res.Output, true
	}
	return types.Result{Success: true, StateModified: stateModified}
}

// runCommand runs one stage: alias resolution, expansion, redirections,
// dispatch, and output redirection application.
func (e *Executor) runCommand(ctx context.Context, st *runState, cmd *parser.Command, input string, hasInput bool) types.Result {
	words, err := e.resolveAliases(st, cmd.Words)
	if err != nil {
		return types.FailErr(err)
	}
	cfg := e.expandConfig(ctx, st)
	argv, err := expand.Words(ctx, words, cfg)
	if err != nil {
		return types.FailErr(err)
	}
	if len(argv) == 0 || argv[0] == "" {
		return types.FailErr(types.NewError(types.KindParseError, "syntax error: empty command"))
	}
	name := argv[0]

	redirs, err := e.expandRedirs(ctx, st, cmd.Redirs, cfg)
	if err != nil {
		return prefixFail(name, err)
	}
	cred := e.identity.Credential(st.sess.User())
	cwd := st.sess.Cwd()

	if in, ok := redirs.stdin(); ok {
		content, err := e.fs.ReadFile(in, cred, cwd)
		if err != nil {
			return prefixFail(name, err)
		}
		input = string(content)
		hasInput = true
	}

	res := e.dispatch(ctx, st, name, argv[1:], input, hasInput)
	return e.applyRedirs(name, st, redirs, res)
}

// dispatch resolves a name to a builtin or an executable script and runs it.
func (e *Executor) dispatch(ctx context.Context, st *runState, name string, args []string, input string, hasInput bool) types.Result {
	start := time.Now()
	res := e.dispatchInner(ctx, st, name, args, input, hasInput)
	if e.obs != nil {
		e.obs.CommandExecuted(name, res.Success, time.Since(start))
	}
	return res
}

func (e *Executor) dispatchInner(ctx context.Context, st *runState, name string, args []string, input string, hasInput bool) types.Result {
	if cmd, ok := e.reg.Get(name); ok {
		return e.runCore(ctx, st, cmd, args, input, hasInput)
	}
	if ok, err := e.isScript(st, name); err != nil {
		return prefixFail(name, err)
	} else if ok {
		return e.runScript(ctx, st, name, args)
	}
	return prefixFail(name, types.NewError(types.KindUnknownCommand, "command not found").
		WithSuggestion("run 'help' to list available commands"))
}

// runCore validates the contract, resolves declared paths and invokes the
// command core.
func (e *Executor) runCore(ctx context.Context, st *runState, cmd *command.Command, args []string, input string, hasInput bool) types.Result {
	flags, rest, err := cmd.Validate(args)
	if err != nil {
		return prefixFail(cmd.Name, err)
	}
	cred := e.identity.Credential(st.sess.User())
	cwd := st.sess.Cwd()

	var paths []*vfs.Resolution
	for _, spec := range cmd.Paths {
		opt := spec.Options
		opt.Cwd = cwd
		if spec.Index < 0 {
			for _, arg := range rest {
				res, err := e.fs.Resolve(arg, cred, opt)
				if err != nil {
					return prefixFail(cmd.Name, err)
				}
				paths = append(paths, res)
			}
			continue
		}
		if spec.Index >= len(rest) {
			continue
		}
		res, err := e.fs.Resolve(rest[spec.Index], cred, opt)
		if err != nil {
			return prefixFail(cmd.Name, err)
		}
		paths = append(paths, res)
	}

	ec := &command.ExecContext{
		Ctx:      ctx,
		Args:     rest,
		Flags:    flags,
		Input:    input,
		HasInput: hasInput,
		User:     st.sess.User(),
		Cred:     cred,
		Paths:    paths,
		FS:       e.fs,
		Identity: e.identity,
		Session:  st.sess,
		Sessions: e.sessions,
		Jobs:     &jobControl{e: e, sess: st.sess},
		Shell:    &stateRunner{e: e, st: st},
		Prompter: st.prompter,
		Log:      e.log,
	}
	res := cmd.Core(ec)
	if !res.Success && res.Error != nil && !strings.HasPrefix(res.Error.Message, cmd.Name+":") {
		res.Error.Message = cmd.Name + ": " + res.Error.Message
	}
	return res
}

// expandConfig binds the expansion callbacks to the run state's session.
func (e *Executor) expandConfig(ctx context.Context, st *runState) expand.Config {
	sess := st.sess
	cred := e.identity.Credential(sess.User())
	return expand.Config{
		Env: func(name string) string {
			if v, ok := scriptVar(st.scriptArgs, name); ok {
				return v
			}
			return sess.Env().Get(name)
		},
		HomeOf: func(user string) string {
			if user == "" {
				return sess.Env().Get("HOME")
			}
			if _, ok := e.identity.Lookup(user); !ok {
				return ""
			}
			return "/home/" + user
		},
		RunCommand: func(ctx context.Context, line string) (string, error) {
			sub := e.run(ctx, st, line)
			if !sub.Success {
				msg := strings.TrimSpace(sub.Errors)
				if msg == "" {
					msg = "command substitution failed"
				}
				return "", types.NewError(types.KindParseError, "%s", msg)
			}
			return sub.Output, nil
		},
		Glob: expand.NewGlobber(sess.Cwd(), func(dir string) []string {
			entries, err := e.fs.List(dir, cred, sess.Cwd())
			if err != nil {
				return nil
			}
			names := make([]string, 0, len(entries))
			for _, entry := range entries {
				names = append(names, entry.Name)
			}
			return names
		}),
	}
}

// resolveAliases rewrites the first word while it names an alias, guarding
// against cycles. Alias values must expand to plain words.
func (e *Executor) resolveAliases(st *runState, words []lexer.Word) ([]lexer.Word, error) {
	seen := map[string]bool{}
	for len(words) > 0 && words[0].Bare() {
		name := words[0].Literal()
		value, ok := st.sess.Aliases().Get(name)
		if !ok || seen[name] {
			break
		}
		seen[name] = true
		tokens, err := lexer.Lex(value)
		if err != nil {
			return nil, types.NewError(types.KindParseError, "alias %s: %v", name, err)
		}
		var repl []lexer.Word
		for _, tok := range tokens {
			switch tok.Type {
			case lexer.TokenWord:
				repl = append(repl, tok.Word)
			case lexer.TokenOp:
				return nil, types.NewError(types.KindParseError,
					"alias %s: operators are not allowed in alias values", name)
			}
		}
		words = append(repl, words[1:]...)
	}
	return words, nil
}

// scriptVar resolves positional parameters inside scripts: $1..$n, $#, $@.
func scriptVar(args []string, name string) (string, bool) {
	if len(args) == 0 {
		return "", false
	}
	switch name {
	case "#":
		return strconv.Itoa(len(args) - 1), true
	case "@", "*":
		return strings.Join(args[1:], " "), true
	}
	n := 0
	for _, ch := range name {
		if ch < '0' || ch > '9' {
			return "", false
		}
		n = n*10 + int(ch-'0')
	}
	if n < len(args) {
		return args[n], true
	}
	return "", true
}

// stateRunner adapts the executor to the command.Runner contract with the
// current run state bound.
type stateRunner struct {
	e  *Executor
	st *runState
}

func (r *stateRunner) Run(ctx context.Context, line string) types.Result {
	out := r.e.run(ctx, r.st, line)
	return out.asResult()
}

func (r *stateRunner) RunScript(ctx context.Context, path string, args []string) types.Result {
	return r.e.runScript(ctx, r.st, path, args)
}

func (o *Outcome) merge(res types.Result) {
	if res.Output != "" {
		o.Output = appendLine(o.Output, strings.TrimSuffix(res.Output, "\n"))
	}
	o.Success = res.Success
	o.StateModified = o.StateModified || res.StateModified
	if res.Effect != types.EffectNone {
		o.Effect = res.Effect
	}
	if res.Error != nil {
		o.Errors = appendLine(o.Errors, res.Error.Message)
		if res.Error.Suggestion != "" {
			o.Errors = appendLine(o.Errors, res.Error.Suggestion)
		}
	}
}

func (o Outcome) asResult() types.Result {
	res := types.Result{
		Success:       o.Success,
		Output:        o.Output,
		Effect:        o.Effect,
		StateModified: o.StateModified,
	}
	if !o.Success {
		res.Error = &types.ErrorInfo{Message: strings.TrimSpace(o.Errors)}
	}
	return res
}

func failOutcome(name string, err error) Outcome {
	res := prefixFail(name, err)
	var out Outcome
	out.merge(res)
	return out
}

// prefixFail renders an error as a failed result with the command name
// prefixed, the shell's stderr convention.
func prefixFail(name string, err error) types.Result {
	res := types.FailErr(err)
	if res.Error != nil && !strings.HasPrefix(res.Error.Message, name+":") {
		res.Error.Message = name + ": " + res.Error.Message
	}
	return res
}

func mergeResults(a, b types.Result) types.Result {
	out := b
	if a.Output != "" {
		out.Output = appendLine(a.Output, strings.TrimSuffix(b.Output, "\n"))
	}
	out.StateModified = a.StateModified || b.StateModified
	if out.Effect == types.EffectNone {
		out.Effect = a.Effect
	}
	if a.Error != nil {
		msg := a.Error.Message
		if a.Error.Suggestion != "" {
			msg += "\n" + a.Error.Suggestion
		}
		if out.Error != nil {
			out.Error = &types.ErrorInfo{Message: msg + "\n" + out.Error.Message, Suggestion: out.Error.Suggestion}
		} else {
			out.Error = &types.ErrorInfo{Message: msg}
		}
	}
	return out
}

func appendLine(buf, line string) string {
	if line == "" {
		return buf
	}
	if buf == "" {
		return line
	}
	if strings.HasSuffix(buf, "\n") {
		return buf + line
	}
	return buf + "\n" + line
}
