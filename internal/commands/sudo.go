package commands

import (
	"github.com/oopisos/kernel/internal/command"
	"github.com/oopisos/kernel/internal/identity"
	"github.com/oopisos/kernel/internal/shared/types"
)

func sudoCommand() *command.Command {
	return &command.Command{
		Name:        "sudo",
		Description: "Run a command as root.",
		HelpText: `sudo [-k] <command> [args...]
Runs the command as root when /etc/sudoers permits it. A successful password
check is cached per session for the configured timeout; -k alone drops the
cached elevation.`,
		Flags: []command.FlagDef{
			{Name: "reset", Short: "-k", Long: "--reset-timestamp"},
		},
		Args:        command.AnyArgs(),
		PassThrough: true,
		Core: func(c *command.ExecContext) types.Result {
			if len(c.Args) == 0 {
				if c.Flags.Bool("reset") {
					c.Identity.DropElevation(c.User)
					return types.Result{Success: true}
				}
				return types.FailErr(types.NewError(types.KindBadArgCount, "missing command").
					WithSuggestion("usage: sudo <command> [args...]"))
			}

			target := c.Args[0]
			allowed, noPasswd, err := c.Identity.MayRunAs(c.User, target)
			if err != nil {
				return types.FailErr(err)
			}
			if !allowed && !c.Cred.IsRoot() {
				c.Identity.Audit(c.User, target, "denied")
				return types.FailErr(types.NewError(types.KindSudoNotPermitted,
					"%s is not allowed to run '%s' as root", c.User, target))
			}

			tty := c.Session.ID()
			if !noPasswd && !c.Cred.IsRoot() && !c.Identity.Elevated(c.User, tty) {
				if !c.Interactive() {
					c.Identity.Audit(c.User, target, "denied")
					return types.FailErr(types.NewError(types.KindNotInteractive,
						"a terminal is required to enter the password"))
				}
				secret, err := c.Prompter.ReadSecret(c.Ctx, "[sudo] password for "+c.User+": ")
				if err != nil {
					return types.FailErr(err)
				}
				if err := c.Identity.Authenticate(c.User, secret); err != nil {
					c.Identity.Audit(c.User, target, "auth_failed")
					return types.FailErr(err)
				}
				c.Identity.CacheElevation(c.User, tty)
			}

			if err := c.Session.Push("root", c.Sessions.HomeOf("root")); err != nil {
				return types.FailErr(err)
			}
			res := c.Shell.Run(c.Ctx, shellJoin(c.Args))
			if _, err := c.Session.Pop(); err != nil {
				return types.FailErr(err)
			}

			outcome := "success"
			if !res.Success {
				outcome = "failure"
			}
			c.Identity.Audit(c.User, target, outcome)
			res.StateModified = true // the audit log line alone dirties state
			return res
		},
	}
}

func visudoCommand() *command.Command {
	return &command.Command{
		Name:        "visudo",
		Description: "Validate sudoers syntax.",
		HelpText: `visudo [file]
Parses /etc/sudoers (or the given file) and reports the first syntax error,
without modifying anything.`,
		Args: command.RangeArgs(0, 1),
		Core: func(c *command.ExecContext) types.Result {
			path := "/etc/sudoers"
			if len(c.Args) > 0 {
				path = c.Args[0]
			}
			content, err := c.FS.ReadFile(path, c.Cred, c.Cwd())
			if err != nil {
				return types.FailErr(err)
			}
			check := identity.ParseSudoers(string(content))
			if !check.Valid {
				return types.FailErr(types.NewError(types.KindSudoersSyntax, "%s: %s", path, check.Error))
			}
			return types.Ok(path + ": parsed OK")
		},
	}
}
