package commands

import (
	"github.com/oopisos/kernel/internal/command"
	"github.com/oopisos/kernel/internal/shared/types"
	"github.com/oopisos/kernel/internal/vfs"
)

func cdCommand() *command.Command {
	return &command.Command{
		Name:        "cd",
		Description: "Change the current working directory.",
		HelpText: `cd <directory>
Changes the working directory of the current session. The target must be a
directory the caller may traverse.`,
		Args: command.ExactArgs(1),
		Paths: []command.PathSpec{{
			Index: 0,
			Options: vfs.ResolveOptions{
				ExpectedType: vfs.TypeDirectory,
				Permissions:  []vfs.Perm{vfs.PermExecute},
			},
		}},
		Core: func(c *command.ExecContext) types.Result {
			c.Session.SetCwd(c.Paths[0].Path)
			return types.Result{Success: true, StateModified: true}
		},
	}
}

func pwdCommand() *command.Command {
	return &command.Command{
		Name:        "pwd",
		Description: "Print the current working directory.",
		HelpText: `pwd
Prints the absolute path of the session's working directory.`,
		Args: command.NoArgs(),
		Core: func(c *command.ExecContext) types.Result {
			return types.Ok(c.Cwd())
		},
	}
}
