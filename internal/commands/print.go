package commands

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/oopisos/kernel/internal/command"
	"github.com/oopisos/kernel/internal/shared/types"
)

func echoCommand() *command.Command {
	return &command.Command{
		Name:        "echo",
		Description: "Print arguments.",
		HelpText: `echo [-n] [-e] [text...]
Prints the arguments joined by spaces. -n suppresses the trailing newline,
-e interprets backslash escapes (\n, \t, \\).`,
		Flags: []command.FlagDef{
			{Name: "no-newline", Short: "-n"},
			{Name: "escapes", Short: "-e"},
		},
		Args: command.AnyArgs(),
		Core: func(c *command.ExecContext) types.Result {
			text := strings.Join(c.Args, " ")
			if c.Flags.Bool("escapes") {
				text = interpretEscapes(text)
			}
			return types.Result{
				Success:         true,
				Output:          text,
				SuppressNewline: c.Flags.Bool("no-newline"),
			}
		},
	}
}

func interpretEscapes(text string) string {
	var b strings.Builder
	for i := 0; i < len(text); i++ {
		if text[i] != '\\' || i+1 >= len(text) {
			b.WriteByte(text[i])
			continue
		}
		i++
		switch text[i] {
		case 'n':
			b.WriteByte('\n')
		case 't':
			b.WriteByte('\t')
		case 'r':
			b.WriteByte('\r')
		case '0':
			b.WriteByte(0)
		case '\\':
			b.WriteByte('\\')
		default:
			b.WriteByte('\\')
			b.WriteByte(text[i])
		}
	}
	return b.String()
}

func printfCommand() *command.Command {
	return &command.Command{
		Name:        "printf",
		Description: "Format and print data.",
		HelpText: `printf <format> [args...]
Formats arguments per the format string (%s, %d, %x, %o, %f, %%), repeating
the format until all arguments are consumed. Backslash escapes apply.`,
		Args: command.MinArgs(1),
		Core: func(c *command.ExecContext) types.Result {
			format := interpretEscapes(c.Args[0])
			args := c.Args[1:]
			var b strings.Builder
			for first := true; first || len(args) > 0; first = false {
				out, rest, err := formatOnce(format, args)
				if err != nil {
					return types.FailErr(err)
				}
				b.WriteString(out)
				if len(rest) == len(args) {
					break // format consumes nothing; avoid looping forever
				}
				args = rest
			}
			return types.Result{Success: true, Output: b.String(), SuppressNewline: true}
		},
	}
}

func formatOnce(format string, args []string) (string, []string, error) {
	var b strings.Builder
	for i := 0; i < len(format); i++ {
		if format[i] != '%' || i+1 >= len(format) {
			b.WriteByte(format[i])
			continue
		}
		i++
		verb := format[i]
		if verb == '%' {
			b.WriteByte('%')
			continue
		}
		arg := ""
		if len(args) > 0 {
			arg, args = args[0], args[1:]
		}
		switch verb {
		case 's':
			b.WriteString(arg)
		case 'd', 'x', 'o':
			n, err := strconv.ParseInt(arg, 10, 64)
			if err != nil && arg != "" {
				return "", nil, types.NewError(types.KindBadArgValue, "%q: expected a number", arg)
			}
			fmt.Fprintf(&b, "%"+string(verb), n)
		case 'f':
			f, err := strconv.ParseFloat(arg, 64)
			if err != nil && arg != "" {
				return "", nil, types.NewError(types.KindBadArgValue, "%q: expected a number", arg)
			}
			fmt.Fprintf(&b, "%f", f)
		default:
			return "", nil, types.NewError(types.KindBadArgValue, "unsupported verb %%%c", verb)
		}
	}
	return b.String(), args, nil
}
