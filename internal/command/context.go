package command

import (
	"context"

	"github.com/oopisos/kernel/internal/identity"
	"github.com/oopisos/kernel/internal/infrastructure/logging"
	"github.com/oopisos/kernel/internal/session"
	"github.com/oopisos/kernel/internal/shared/types"
	"github.com/oopisos/kernel/internal/vfs"
)

// Runner runs a full command line within a session. Used for command
// substitution, scripts and sudo's re-dispatch.
type Runner interface {
	// Run executes one line and returns the aggregate result. Output is
	// captured, not written to the terminal.
	Run(ctx context.Context, line string) types.Result
	// RunScript executes a script file with positional arguments.
	RunScript(ctx context.Context, path string, args []string) types.Result
}

// Prompter collects input from the attached human. Implementations for
// non-interactive sessions fail with KindNotInteractive.
type Prompter interface {
	ReadLine(ctx context.Context, prompt string) (string, error)
	ReadSecret(ctx context.Context, prompt string) (string, error)
	Confirm(ctx context.Context, prompt string) (bool, error)
}

// JobInfo describes one background job.
type JobInfo struct {
	ID      int    `json:"id"`
	Line    string `json:"line"`
	Status  string `json:"status"` // running, stopped, done
	User    string `json:"user"`
	Started string `json:"started"`
}

// JobControl is what the job-management builtins need from the executor.
type JobControl interface {
	List() []JobInfo
	// Resume continues a stopped job, optionally waiting in the foreground.
	Resume(ctx context.Context, id int, foreground bool) (string, error)
	// Kill cancels a job.
	Kill(id int) error
	// Post queues a message for a job.
	Post(id int, message string) error
	// Messages drains the calling job's message queue. The context
	// identifies which job is asking; outside a job it drains nothing.
	Messages(ctx context.Context) []string
}

// ExecContext carries everything a command core may touch. The executor
// populates it after validation, so Args excludes flags and Paths holds the
// declared resolutions.
type ExecContext struct {
	Ctx context.Context

	Args  []string
	Flags Flags

	// Input is piped or redirected stdin content; HasInput distinguishes
	// an empty stream from no stream.
	Input    string
	HasInput bool

	User string
	Cred vfs.Cred

	// Paths holds resolutions for each PathSpec, in declaration order.
	// A spec with Index -1 contributes one resolution per argument.
	Paths []*vfs.Resolution

	FS       *vfs.FS
	Identity *identity.Manager
	Session  *session.Session
	Sessions *session.Manager
	Jobs     JobControl
	Shell    Runner
	Prompter Prompter
	Log      *logging.Logger
}

// Cwd returns the session working directory, or "/" without a session.
func (c *ExecContext) Cwd() string {
	if c.Session == nil {
		return "/"
	}
	return c.Session.Cwd()
}

// Interactive reports whether a human is attached.
func (c *ExecContext) Interactive() bool {
	return c.Session != nil && c.Session.Interactive() && c.Prompter != nil
}
