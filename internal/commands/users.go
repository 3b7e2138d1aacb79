package commands

import (
	"github.com/oopisos/kernel/internal/command"
	"github.com/oopisos/kernel/internal/shared/types"
)

func useraddCommand() *command.Command {
	return &command.Command{
		Name:        "useradd",
		Description: "Create a user account.",
		HelpText: `useradd <name>
Creates a user with a same-named primary group and a home directory at
/home/<name>. An attached terminal is asked for a password; scripted calls
create a passwordless account.`,
		Args: command.ExactArgs(1),
		Core: func(c *command.ExecContext) types.Result {
			name := c.Args[0]
			password := ""
			if c.Interactive() {
				first, err := c.Prompter.ReadSecret(c.Ctx, "New password (empty for none): ")
				if err != nil {
					return types.FailErr(err)
				}
				if first != "" {
					second, err := c.Prompter.ReadSecret(c.Ctx, "Retype password: ")
					if err != nil {
						return types.FailErr(err)
					}
					if first != second {
						return types.FailErr(types.NewError(types.KindBadArgValue, "passwords do not match"))
					}
				}
				password = first
			}
			if err := c.Identity.Register(c.Ctx, name, password); err != nil {
				return types.FailErr(err)
			}
			return types.Result{
				Success:       true,
				Output:        "User '" + name + "' created.",
				MessageType:   types.MessageSuccess,
				StateModified: true,
			}
		},
	}
}

func removeuserCommand() *command.Command {
	return &command.Command{
		Name:        "removeuser",
		Description: "Delete a user account.",
		HelpText: `removeuser [-r] <name>
Deletes the account and its group memberships. -r also removes the home
directory. An attached terminal is asked to confirm.`,
		Flags: []command.FlagDef{
			{Name: "remove-home", Short: "-r", Long: "--remove-home"},
		},
		Args: command.ExactArgs(1),
		Core: func(c *command.ExecContext) types.Result {
			name := c.Args[0]
			if name == c.User {
				return types.FailErr(types.NewError(types.KindBadArgValue, "cannot remove the active user"))
			}
			if c.Interactive() {
				ok, err := c.Prompter.Confirm(c.Ctx, "Remove user '"+name+"'?")
				if err != nil {
					return types.FailErr(err)
				}
				if !ok {
					return types.Ok("Removal cancelled.")
				}
			}
			if err := c.Identity.Remove(c.Ctx, name, c.Flags.Bool("remove-home")); err != nil {
				return types.FailErr(err)
			}
			return types.OkModified("User '" + name + "' removed.")
		},
	}
}

func passwdCommand() *command.Command {
	return &command.Command{
		Name:        "passwd",
		Description: "Change a user's password.",
		HelpText: `passwd [user]
Changes the password of the named user (the active user by default).
Changing another account requires root; changing your own asks for the
current password first. Requires an attached terminal.`,
		Args: command.RangeArgs(0, 1),
		Core: func(c *command.ExecContext) types.Result {
			target := c.User
			if len(c.Args) > 0 {
				target = c.Args[0]
			}
			if target != c.User && !c.Cred.IsRoot() {
				return types.FailErr(types.NewError(types.KindPermissionDenied,
					"only root may change another user's password"))
			}
			if !c.Interactive() {
				return types.FailErr(types.NewError(types.KindNotInteractive,
					"a terminal is required to change passwords"))
			}

			user, ok := c.Identity.Lookup(target)
			if !ok {
				return types.FailErr(types.NewError(types.KindNoSuchUser, "no such user: %s", target))
			}
			if target == c.User && user.PasswordHash != "" {
				current, err := c.Prompter.ReadSecret(c.Ctx, "Current password: ")
				if err != nil {
					return types.FailErr(err)
				}
				if err := c.Identity.Authenticate(target, current); err != nil {
					return types.FailErr(err)
				}
			}

			first, err := c.Prompter.ReadSecret(c.Ctx, "New password: ")
			if err != nil {
				return types.FailErr(err)
			}
			second, err := c.Prompter.ReadSecret(c.Ctx, "Retype new password: ")
			if err != nil {
				return types.FailErr(err)
			}
			if first != second {
				return types.FailErr(types.NewError(types.KindBadArgValue, "passwords do not match"))
			}
			if err := c.Identity.SetPassword(c.Ctx, target, first); err != nil {
				return types.FailErr(err)
			}
			return types.Result{
				Success:       true,
				Output:        "Password updated for '" + target + "'.",
				MessageType:   types.MessageSuccess,
				StateModified: true,
			}
		},
	}
}

func groupaddCommand() *command.Command {
	return &command.Command{
		Name:        "groupadd",
		Description: "Create a group.",
		HelpText: `groupadd <name>
Creates an empty supplementary group.`,
		Args: command.ExactArgs(1),
		Core: func(c *command.ExecContext) types.Result {
			if err := c.Identity.AddGroup(c.Ctx, c.Args[0]); err != nil {
				return types.FailErr(err)
			}
			return types.OkModified("")
		},
	}
}

func groupdelCommand() *command.Command {
	return &command.Command{
		Name:        "groupdel",
		Description: "Delete a group.",
		HelpText: `groupdel <name>
Deletes a supplementary group. A group that is some user's primary group is
refused.`,
		Args: command.ExactArgs(1),
		Core: func(c *command.ExecContext) types.Result {
			if err := c.Identity.DeleteGroup(c.Ctx, c.Args[0]); err != nil {
				return types.FailErr(err)
			}
			return types.OkModified("")
		},
	}
}

func usermodCommand() *command.Command {
	return &command.Command{
		Name:        "usermod",
		Description: "Modify group memberships.",
		HelpText: `usermod -a -G <group> <user> | usermod -d -G <group> <user>
-a -G adds the user to a supplementary group; -d -G removes the membership.`,
		Flags: []command.FlagDef{
			{Name: "append", Short: "-a", Long: "--append"},
			{Name: "delete", Short: "-d", Long: "--delete"},
			{Name: "group", Short: "-G", Long: "--groups", TakesValue: true},
		},
		Args: command.ExactArgs(1),
		Core: func(c *command.ExecContext) types.Result {
			group, ok := c.Flags.Value("group")
			if !ok {
				return types.FailErr(types.NewError(types.KindBadArgValue, "missing -G <group>").
					WithSuggestion("usage: usermod -a -G <group> <user>"))
			}
			user := c.Args[0]
			switch {
			case c.Flags.Bool("append") == c.Flags.Bool("delete"):
				return types.FailErr(types.NewError(types.KindBadArgValue, "exactly one of -a or -d is required"))
			case c.Flags.Bool("append"):
				if err := c.Identity.AddToGroup(c.Ctx, user, group); err != nil {
					return types.FailErr(err)
				}
			default:
				if err := c.Identity.RemoveFromGroup(c.Ctx, user, group); err != nil {
					return types.FailErr(err)
				}
			}
			return types.OkModified("")
		},
	}
}
