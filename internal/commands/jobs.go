package commands

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/oopisos/kernel/internal/command"
	"github.com/oopisos/kernel/internal/shared/types"
)

func jobsCommand() *command.Command {
	return &command.Command{
		Name:        "jobs",
		Description: "List background jobs.",
		HelpText: `jobs
Lists the session's background jobs with their id, state and command line.`,
		Args: command.NoArgs(),
		Core: func(c *command.ExecContext) types.Result {
			var rows []string
			for _, j := range c.Jobs.List() {
				rows = append(rows, fmt.Sprintf("[%d] %-8s %s", j.ID, j.Status, j.Line))
			}
			return types.Result{Success: true, Output: strings.Join(rows, "\n"), AsBlock: true}
		},
	}
}

func parseJobID(arg string) (int, error) {
	id, err := strconv.Atoi(strings.TrimPrefix(arg, "%"))
	if err != nil || id <= 0 {
		return 0, types.NewError(types.KindBadArgValue, "invalid job id %q", arg)
	}
	return id, nil
}

func fgCommand() *command.Command {
	return &command.Command{
		Name:        "fg",
		Description: "Wait for a background job in the foreground.",
		HelpText: `fg <job-id>
Brings a background job to the foreground and waits for it to finish,
printing its output.`,
		Args: command.ExactArgs(1),
		Core: func(c *command.ExecContext) types.Result {
			id, err := parseJobID(c.Args[0])
			if err != nil {
				return types.FailErr(err)
			}
			output, err := c.Jobs.Resume(c.Ctx, id, true)
			if err != nil {
				return types.FailErr(err)
			}
			return types.Ok(output)
		},
	}
}

func bgCommand() *command.Command {
	return &command.Command{
		Name:        "bg",
		Description: "Continue a job in the background.",
		HelpText: `bg <job-id>
Signals a job to continue in the background and returns immediately.`,
		Args: command.ExactArgs(1),
		Core: func(c *command.ExecContext) types.Result {
			id, err := parseJobID(c.Args[0])
			if err != nil {
				return types.FailErr(err)
			}
			output, err := c.Jobs.Resume(c.Ctx, id, false)
			if err != nil {
				return types.FailErr(err)
			}
			return types.Ok(output)
		},
	}
}

func killCommand() *command.Command {
	return &command.Command{
		Name:        "kill",
		Description: "Terminate background jobs.",
		HelpText: `kill <job-id...>
Sends each job a termination signal; the job stops at its next cooperative
checkpoint.`,
		Args: command.MinArgs(1),
		Core: func(c *command.ExecContext) types.Result {
			for _, arg := range c.Args {
				id, err := parseJobID(arg)
				if err != nil {
					return types.FailErr(err)
				}
				if err := c.Jobs.Kill(id); err != nil {
					return types.FailErr(err)
				}
			}
			return types.Result{Success: true}
		},
	}
}

func postMessageCommand() *command.Command {
	return &command.Command{
		Name:        "post_message",
		Description: "Queue a message for a background job.",
		HelpText: `post_message <job-id> <message>
Appends a message to the job's queue; the job drains it with read_messages.`,
		Args: command.ExactArgs(2),
		Core: func(c *command.ExecContext) types.Result {
			id, err := parseJobID(c.Args[0])
			if err != nil {
				return types.FailErr(err)
			}
			if err := c.Jobs.Post(id, c.Args[1]); err != nil {
				return types.FailErr(err)
			}
			return types.Result{Success: true}
		},
	}
}

func readMessagesCommand() *command.Command {
	return &command.Command{
		Name:        "read_messages",
		Description: "Drain the calling job's message queue.",
		HelpText: `read_messages
Prints and removes every queued message, in insertion order. Outside a
background job the queue is always empty.`,
		Args: command.NoArgs(),
		Core: func(c *command.ExecContext) types.Result {
			return types.Ok(strings.Join(c.Jobs.Messages(c.Ctx), "\n"))
		},
	}
}
