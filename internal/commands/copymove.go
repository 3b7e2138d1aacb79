package commands

import (
	"github.com/oopisos/kernel/internal/command"
	"github.com/oopisos/kernel/internal/shared/types"
	"github.com/oopisos/kernel/internal/vfs"
)

func cpCommand() *command.Command {
	return &command.Command{
		Name:        "cp",
		Description: "Copy files and directories.",
		HelpText: `cp [-r] [-f] <source...> <destination>
Copies each source to the destination. Directories require -r. Existing
destinations prompt before overwrite; -f overwrites without asking.`,
		Flags: []command.FlagDef{
			{Name: "recursive", Short: "-r", Long: "--recursive", Aliases: []string{"-R"}},
			{Name: "force", Short: "-f", Long: "--force"},
		},
		Args: command.MinArgs(2),
		Core: func(c *command.ExecContext) types.Result {
			return copyMove(c, vfs.PlanOptions{
				Cwd:       c.Cwd(),
				Recursive: c.Flags.Bool("recursive"),
			})
		},
	}
}

func mvCommand() *command.Command {
	return &command.Command{
		Name:        "mv",
		Description: "Move or rename files and directories.",
		HelpText: `mv [-f] <source...> <destination>
Moves each source to the destination. Existing destinations of the same type
prompt before overwrite; -f overwrites without asking. A destination of a
different type is refused.`,
		Flags: []command.FlagDef{
			{Name: "force", Short: "-f", Long: "--force"},
		},
		Args: command.MinArgs(2),
		Core: func(c *command.ExecContext) types.Result {
			return copyMove(c, vfs.PlanOptions{
				Cwd:  c.Cwd(),
				Move: true,
			})
		},
	}
}

// copyMove runs the two-phase plan: every source validates before anything
// mutates, then items apply one by one with per-item overwrite prompts.
func copyMove(c *command.ExecContext, opt vfs.PlanOptions) types.Result {
	sources := c.Args[:len(c.Args)-1]
	dest := c.Args[len(c.Args)-1]

	items, err := c.FS.PlanCopyMove(sources, dest, c.Cred, opt)
	if err != nil {
		return types.FailErr(err)
	}

	force := c.Flags.Bool("force")
	skip := func(item vfs.PlanItem) bool {
		if force || !c.Interactive() {
			return false
		}
		ok, err := c.Prompter.Confirm(c.Ctx, "overwrite '"+item.DestPath+"'?")
		return err != nil || !ok
	}
	if err := c.FS.Apply(items, c.Cred, opt, skip); err != nil {
		return types.Result{Success: false, StateModified: true, Error: failErrInfo(err)}
	}
	return types.OkModified("")
}
