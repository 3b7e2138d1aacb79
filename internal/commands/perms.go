package commands

import (
	"github.com/oopisos/kernel/internal/command"
	"github.com/oopisos/kernel/internal/shared/types"
)

func chmodCommand() *command.Command {
	return &command.Command{
		Name:        "chmod",
		Description: "Change file mode bits.",
		HelpText: `chmod <octal-mode> <path...>
Sets the permission bits of each path. Only the owner or root may change a
node's mode.`,
		Args: command.MinArgs(2),
		Core: func(c *command.ExecContext) types.Result {
			mode, err := parseMode(c.Args[0])
			if err != nil {
				return types.FailErr(err)
			}
			for _, arg := range c.Args[1:] {
				if err := c.FS.Chmod(arg, mode, c.Cred, c.Cwd()); err != nil {
					return types.FailErr(err)
				}
			}
			return types.OkModified("")
		},
	}
}

func chownCommand() *command.Command {
	return &command.Command{
		Name:        "chown",
		Description: "Change file owner.",
		HelpText: `chown <owner> <path...>
Sets the owner of each path. Root only; the owner must be a known user.`,
		Args: command.MinArgs(2),
		Core: func(c *command.ExecContext) types.Result {
			owner := c.Args[0]
			if _, ok := c.Identity.Lookup(owner); !ok {
				return types.FailErr(types.NewError(types.KindNoSuchUser, "no such user: %s", owner))
			}
			for _, arg := range c.Args[1:] {
				if err := c.FS.Chown(arg, owner, c.Cred, c.Cwd()); err != nil {
					return types.FailErr(err)
				}
			}
			return types.OkModified("")
		},
	}
}

func chgrpCommand() *command.Command {
	return &command.Command{
		Name:        "chgrp",
		Description: "Change file group.",
		HelpText: `chgrp <group> <path...>
Sets the group of each path. Owner or root; the group must exist.`,
		Args: command.MinArgs(2),
		Core: func(c *command.ExecContext) types.Result {
			group := c.Args[0]
			if !groupExists(c, group) {
				return types.FailErr(types.NewError(types.KindNoSuchEntry, "no such group: %s", group))
			}
			for _, arg := range c.Args[1:] {
				if err := c.FS.Chgrp(arg, group, c.Cred, c.Cwd()); err != nil {
					return types.FailErr(err)
				}
			}
			return types.OkModified("")
		},
	}
}

func groupExists(c *command.ExecContext, name string) bool {
	for _, g := range c.Identity.Groups() {
		if g == name {
			return true
		}
	}
	return false
}
