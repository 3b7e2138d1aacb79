package commands

import (
	"fmt"
	"strings"

	"github.com/oopisos/kernel/internal/command"
	"github.com/oopisos/kernel/internal/shared/types"
)

func helpCommand(reg *command.Registry) *command.Command {
	return &command.Command{
		Name:        "help",
		Description: "List commands or show a command's usage.",
		HelpText: `help [command]
Without arguments lists every command with its description; with a name
prints that command's usage line.`,
		Args: command.RangeArgs(0, 1),
		Core: func(c *command.ExecContext) types.Result {
			if len(c.Args) == 0 {
				var rows []string
				for _, name := range reg.Names() {
					cmd, _ := reg.Get(name)
					rows = append(rows, fmt.Sprintf("  %-14s %s", name, cmd.Description))
				}
				out := "Available commands:\n" + strings.Join(rows, "\n") +
					"\n\nRun 'man <command>' for details."
				return types.Result{Success: true, Output: out, AsBlock: true}
			}
			cmd, ok := reg.Get(c.Args[0])
			if !ok {
				return types.FailErr(types.NewError(types.KindUnknownCommand, "no such command: %s", c.Args[0]))
			}
			return types.Ok("usage: " + cmd.Usage())
		},
	}
}

func manCommand(reg *command.Registry) *command.Command {
	return &command.Command{
		Name:        "man",
		Description: "Show a command's manual page.",
		HelpText: `man <command>
Prints the command's full help text.`,
		Args: command.ExactArgs(1),
		Core: func(c *command.ExecContext) types.Result {
			cmd, ok := reg.Get(c.Args[0])
			if !ok {
				return types.FailErr(types.NewError(types.KindNoSuchEntry, "no manual entry for %s", c.Args[0]))
			}
			out := fmt.Sprintf("NAME\n    %s - %s\n\nUSAGE\n    %s",
				cmd.Name, cmd.Description, strings.ReplaceAll(cmd.HelpText, "\n", "\n    "))
			return types.Result{Success: true, Output: out, AsBlock: true}
		},
	}
}
