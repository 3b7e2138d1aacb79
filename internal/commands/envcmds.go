package commands

import (
	"fmt"
	"sort"
	"strings"

	"github.com/oopisos/kernel/internal/command"
	"github.com/oopisos/kernel/internal/shared/types"
)

func aliasCommand() *command.Command {
	return &command.Command{
		Name:        "alias",
		Description: "Define or list command aliases.",
		HelpText: `alias [name[=value]]
Without arguments lists every alias. With name=value defines an alias; with
a bare name prints its definition.`,
		Args: command.AnyArgs(),
		Core: func(c *command.ExecContext) types.Result {
			aliases := c.Session.Aliases()
			if len(c.Args) == 0 {
				all := aliases.All()
				names := make([]string, 0, len(all))
				for name := range all {
					names = append(names, name)
				}
				sort.Strings(names)
				var rows []string
				for _, name := range names {
					rows = append(rows, fmt.Sprintf("alias %s='%s'", name, all[name]))
				}
				return types.Result{Success: true, Output: strings.Join(rows, "\n"), AsBlock: true}
			}

			modified := false
			var rows []string
			for _, arg := range c.Args {
				name, value, assigned := strings.Cut(arg, "=")
				if assigned {
					if name == "" {
						return types.FailErr(types.NewError(types.KindBadArgValue, "empty alias name"))
					}
					aliases.Set(name, value)
					modified = true
					continue
				}
				value, ok := aliases.Get(name)
				if !ok {
					return types.FailErr(types.NewError(types.KindNoSuchEntry, "no such alias: %s", name))
				}
				rows = append(rows, fmt.Sprintf("alias %s='%s'", name, value))
			}
			return types.Result{Success: true, Output: strings.Join(rows, "\n"), StateModified: modified}
		},
	}
}

func unaliasCommand() *command.Command {
	return &command.Command{
		Name:        "unalias",
		Description: "Remove command aliases.",
		HelpText: `unalias <name...>
Removes each alias; an unknown name is an error.`,
		Args: command.MinArgs(1),
		Core: func(c *command.ExecContext) types.Result {
			aliases := c.Session.Aliases()
			for _, name := range c.Args {
				if !aliases.Remove(name) {
					return types.FailErr(types.NewError(types.KindNoSuchEntry, "no such alias: %s", name))
				}
			}
			return types.OkModified("")
		},
	}
}

func setCommand() *command.Command {
	return &command.Command{
		Name:        "set",
		Description: "Set or list environment variables.",
		HelpText: `set [name=value | name value]
Without arguments lists the environment. Otherwise sets a variable; names
must start with a letter or underscore.`,
		Args: command.RangeArgs(0, 2),
		Core: func(c *command.ExecContext) types.Result {
			env := c.Session.Env()
			switch len(c.Args) {
			case 0:
				return types.Result{Success: true, Output: renderEnv(env.All()), AsBlock: true}
			case 1:
				name, value, assigned := strings.Cut(c.Args[0], "=")
				if !assigned {
					return types.FailErr(types.NewError(types.KindBadArgValue, "expected name=value").
						WithSuggestion("usage: set name=value"))
				}
				if err := env.Set(name, value); err != nil {
					return types.FailErr(err)
				}
			default:
				if err := env.Set(c.Args[0], c.Args[1]); err != nil {
					return types.FailErr(err)
				}
			}
			return types.OkModified("")
		},
	}
}

func unsetCommand() *command.Command {
	return &command.Command{
		Name:        "unset",
		Description: "Remove environment variables.",
		HelpText: `unset <name...>
Removes each variable; removing an absent variable is not an error.`,
		Args: command.MinArgs(1),
		Core: func(c *command.ExecContext) types.Result {
			for _, name := range c.Args {
				c.Session.Env().Unset(name)
			}
			return types.OkModified("")
		},
	}
}

func exportCommand() *command.Command {
	return &command.Command{
		Name:        "export",
		Description: "Set environment variables.",
		HelpText: `export <name=value...>
Sets each variable. All variables are visible to subcommands, so export is
an alias of assignment.`,
		Args: command.MinArgs(1),
		Core: func(c *command.ExecContext) types.Result {
			env := c.Session.Env()
			for _, arg := range c.Args {
				name, value, assigned := strings.Cut(arg, "=")
				if !assigned {
					if !env.Has(name) {
						return types.FailErr(types.NewError(types.KindBadArgValue, "%s: not set", name))
					}
					continue
				}
				if err := env.Set(name, value); err != nil {
					return types.FailErr(err)
				}
			}
			return types.OkModified("")
		},
	}
}

func envCommand() *command.Command {
	return &command.Command{
		Name:        "env",
		Description: "Print the environment.",
		HelpText: `env
Prints every environment variable of the active frame, sorted by name.`,
		Args: command.NoArgs(),
		Core: func(c *command.ExecContext) types.Result {
			return types.Result{Success: true, Output: renderEnv(c.Session.Env().All()), AsBlock: true}
		},
	}
}

func renderEnv(vars map[string]string) string {
	names := make([]string, 0, len(vars))
	for name := range vars {
		names = append(names, name)
	}
	sort.Strings(names)
	var rows []string
	for _, name := range names {
		rows = append(rows, name+"="+vars[name])
	}
	return strings.Join(rows, "\n")
}

func historyCommand() *command.Command {
	return &command.Command{
		Name:        "history",
		Description: "Show the command history.",
		HelpText: `history [-c]
Prints the session's numbered command history; -c clears it.`,
		Flags: []command.FlagDef{
			{Name: "clear", Short: "-c", Long: "--clear"},
		},
		Args: command.NoArgs(),
		Core: func(c *command.ExecContext) types.Result {
			history := c.Session.History()
			if c.Flags.Bool("clear") {
				history.Clear()
				return types.OkModified("")
			}
			var rows []string
			for i, line := range history.All() {
				rows = append(rows, fmt.Sprintf("%5d  %s", i+1, line))
			}
			return types.Result{Success: true, Output: strings.Join(rows, "\n"), AsBlock: true}
		},
	}
}
