package commands

import (
	"github.com/oopisos/kernel/internal/command"
	"github.com/oopisos/kernel/internal/shared/types"
)

// authenticate verifies the caller may become user, prompting for a password
// when one is set and none was supplied.
func authenticate(c *command.ExecContext, user, supplied string, havePassword bool) error {
	record, ok := c.Identity.Lookup(user)
	if !ok {
		return types.NewError(types.KindNoSuchUser, "no such user: %s", user)
	}
	if record.PasswordHash != "" && !havePassword {
		if !c.Interactive() {
			return types.NewError(types.KindNotInteractive, "a terminal is required to enter the password")
		}
		secret, err := c.Prompter.ReadSecret(c.Ctx, "Password: ")
		if err != nil {
			return err
		}
		supplied = secret
	}
	return c.Identity.Authenticate(user, supplied)
}

func loginCommand() *command.Command {
	return &command.Command{
		Name:        "login",
		Description: "Begin a fresh session as a user.",
		HelpText: `login <user> [password]
Authenticates and replaces the whole identity stack with a fresh session for
the user. The user's automatic snapshot is restored when one exists.`,
		Args: command.RangeArgs(1, 2),
		Core: func(c *command.ExecContext) types.Result {
			user := c.Args[0]
			supplied := ""
			if len(c.Args) > 1 {
				supplied = c.Args[1]
			}
			if err := authenticate(c, user, supplied, len(c.Args) > 1); err != nil {
				return types.FailErr(err)
			}

			c.Identity.DropElevation(c.User)
			c.Session.Reset(user, c.Sessions.HomeOf(user))
			if err := c.Sessions.RestoreAuto(c.Ctx, c.Session); err != nil &&
				types.KindOf(err) != types.KindNoSuchEntry {
				return types.FailErr(err)
			}
			return types.Result{
				Success:       true,
				Output:        "Logged in as " + user + ".",
				MessageType:   types.MessageSuccess,
				StateModified: true,
			}
		},
	}
}

func suCommand() *command.Command {
	return &command.Command{
		Name:        "su",
		Description: "Switch user, keeping the previous session on a stack.",
		HelpText: `su [user] [password]
Authenticates and pushes a new identity frame (root by default) with a fresh
environment; logout returns to the previous frame.`,
		Args: command.RangeArgs(0, 2),
		Core: func(c *command.ExecContext) types.Result {
			user := "root"
			if len(c.Args) > 0 {
				user = c.Args[0]
			}
			supplied := ""
			if len(c.Args) > 1 {
				supplied = c.Args[1]
			}
			if user == c.User {
				return types.FailErr(types.NewError(types.KindBadArgValue, "already %s", user))
			}
			if err := authenticate(c, user, supplied, len(c.Args) > 1); err != nil {
				return types.FailErr(err)
			}
			if err := c.Session.Push(user, c.Sessions.HomeOf(user)); err != nil {
				return types.FailErr(err)
			}
			return types.OkModified("")
		},
	}
}

func logoutCommand() *command.Command {
	return &command.Command{
		Name:        "logout",
		Description: "Return to the previous identity.",
		HelpText: `logout
Pops the identity stack, restoring the previous frame's environment and
working directory. The base frame cannot be popped.`,
		Args: command.NoArgs(),
		Core: func(c *command.ExecContext) types.Result {
			leaving, err := c.Session.Pop()
			if err != nil {
				return types.FailErr(err)
			}
			c.Identity.DropElevation(leaving)
			return types.OkModified("")
		},
	}
}
