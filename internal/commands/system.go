package commands

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/oopisos/kernel/internal/command"
	"github.com/oopisos/kernel/internal/shared/types"
)

func clearCommand() *command.Command {
	return &command.Command{
		Name:        "clear",
		Description: "Clear the terminal screen.",
		HelpText: `clear
Instructs the terminal to clear before the next prompt.`,
		Args: command.NoArgs(),
		Core: func(c *command.ExecContext) types.Result {
			return types.Result{Success: true, Effect: types.EffectClearScreen}
		},
	}
}

func dateCommand() *command.Command {
	return &command.Command{
		Name:        "date",
		Description: "Print the current date and time.",
		HelpText: `date
Prints the current UTC date and time.`,
		Args: command.NoArgs(),
		Core: func(c *command.ExecContext) types.Result {
			return types.Ok(time.Now().UTC().Format("Mon Jan _2 15:04:05 MST 2006"))
		},
	}
}

func sleepCommand() *command.Command {
	return &command.Command{
		Name:        "sleep",
		Description: "Pause for a number of seconds.",
		HelpText: `sleep <seconds>
Pauses the pipeline. Fractional seconds are accepted; cancellation (kill)
interrupts the pause.`,
		Args: command.ExactArgs(1),
		Core: func(c *command.ExecContext) types.Result {
			secs, err := strconv.ParseFloat(c.Args[0], 64)
			if err != nil || secs < 0 {
				return types.FailErr(types.NewError(types.KindBadArgValue, "invalid duration %q", c.Args[0]))
			}
			timer := time.NewTimer(time.Duration(secs * float64(time.Second)))
			defer timer.Stop()
			select {
			case <-timer.C:
				return types.Result{Success: true}
			case <-c.Ctx.Done():
				return types.FailErr(types.NewError(types.KindAborted, "interrupted"))
			}
		},
	}
}

func whoamiCommand() *command.Command {
	return &command.Command{
		Name:        "whoami",
		Description: "Print the active user name.",
		HelpText: `whoami
Prints the identity of the session's active frame.`,
		Args: command.NoArgs(),
		Core: func(c *command.ExecContext) types.Result {
			return types.Ok(c.User)
		},
	}
}

func groupsCommand() *command.Command {
	return &command.Command{
		Name:        "groups",
		Description: "Print group memberships.",
		HelpText: `groups [user]
Prints every group the user belongs to (the active user by default).`,
		Args: command.RangeArgs(0, 1),
		Core: func(c *command.ExecContext) types.Result {
			user := c.User
			if len(c.Args) > 0 {
				user = c.Args[0]
				if _, ok := c.Identity.Lookup(user); !ok {
					return types.FailErr(types.NewError(types.KindNoSuchUser, "no such user: %s", user))
				}
			}
			return types.Ok(strings.Join(c.Identity.GroupsOf(user), " "))
		},
	}
}

func psCommand() *command.Command {
	return &command.Command{
		Name:        "ps",
		Description: "Report background jobs.",
		HelpText: `ps
Prints the session's background jobs with their pid, state and command line.`,
		Args: command.NoArgs(),
		Core: func(c *command.ExecContext) types.Result {
			jobs := c.Jobs.List()
			rows := []string{"  PID STAT     STARTED   COMMAND"}
			for _, j := range jobs {
				rows = append(rows, fmt.Sprintf("%5d %-8s %-9s %s", j.ID, j.Status, j.Started, j.Line))
			}
			return types.Result{Success: true, Output: strings.Join(rows, "\n"), AsBlock: true}
		},
	}
}

func rebootCommand() *command.Command {
	return &command.Command{
		Name:        "reboot",
		Description: "Restart the system.",
		HelpText: `reboot
Persists the filesystem and instructs the terminal to reload.`,
		Args: command.NoArgs(),
		Core: func(c *command.ExecContext) types.Result {
			return types.Result{
				Success:       true,
				Output:        "Rebooting...",
				MessageType:   types.MessageInfo,
				StateModified: true,
				Effect:        types.EffectReboot,
			}
		},
	}
}
