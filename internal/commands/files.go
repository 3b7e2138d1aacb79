package commands

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/gabriel-vasile/mimetype"

	"github.com/oopisos/kernel/internal/command"
	"github.com/oopisos/kernel/internal/shared/types"
	"github.com/oopisos/kernel/internal/vfs"
)

func catCommand() *command.Command {
	return &command.Command{
		Name:        "cat",
		Description: "Concatenate and print files.",
		HelpText: `cat [-n] [file...]
Prints each file in order, or standard input when no files are given.
-n numbers the output lines.`,
		Flags: []command.FlagDef{
			{Name: "number", Short: "-n", Long: "--number"},
		},
		Args: command.AnyArgs(),
		Paths: []command.PathSpec{{
			Index: -1,
			Options: vfs.ResolveOptions{
				ExpectedType: vfs.TypeFile,
				Permissions:  []vfs.Perm{vfs.PermRead},
			},
		}},
		InputStream: true,
		Core: func(c *command.ExecContext) types.Result {
			text := streamInput(c)
			if !c.Flags.Bool("number") {
				return types.Result{Success: true, Output: text, SuppressNewline: !strings.HasSuffix(text, "\n")}
			}
			var b strings.Builder
			for i, line := range lines(text) {
				fmt.Fprintf(&b, "%6d\t%s\n", i+1, line)
			}
			return types.Ok(strings.TrimSuffix(b.String(), "\n"))
		},
	}
}

func touchCommand() *command.Command {
	return &command.Command{
		Name:        "touch",
		Description: "Update file timestamps, creating files when absent.",
		HelpText: `touch <file...>
Updates each file's modification time, creating an empty file when it does
not exist.`,
		Args: command.MinArgs(1),
		Core: func(c *command.ExecContext) types.Result {
			for _, arg := range c.Args {
				if err := c.FS.Touch(arg, c.Cred, c.Cwd()); err != nil {
					return types.FailErr(err)
				}
			}
			return types.OkModified("")
		},
	}
}

func mkdirCommand() *command.Command {
	return &command.Command{
		Name:        "mkdir",
		Description: "Create directories.",
		HelpText: `mkdir [-p] <directory...>
Creates each directory. -p creates missing parents and tolerates existing
directories.`,
		Flags: []command.FlagDef{
			{Name: "parents", Short: "-p", Long: "--parents"},
		},
		Args: command.MinArgs(1),
		Core: func(c *command.ExecContext) types.Result {
			parents := c.Flags.Bool("parents")
			for _, arg := range c.Args {
				if err := c.FS.Mkdir(arg, c.Cred, parents, c.Cwd()); err != nil {
					return types.FailErr(err)
				}
			}
			return types.OkModified("")
		},
	}
}

func rmCommand() *command.Command {
	return &command.Command{
		Name:        "rm",
		Description: "Remove files and directories.",
		HelpText: `rm [-r] [-f] <path...>
Removes each path. Directories require -r. -f ignores missing paths.`,
		Flags: []command.FlagDef{
			{Name: "recursive", Short: "-r", Long: "--recursive", Aliases: []string{"-R"}},
			{Name: "force", Short: "-f", Long: "--force"},
		},
		Args: command.MinArgs(1),
		Core: func(c *command.ExecContext) types.Result {
			recursive := c.Flags.Bool("recursive")
			force := c.Flags.Bool("force")
			removed := false
			for _, arg := range c.Args {
				err := c.FS.Remove(arg, c.Cred, vfs.RemoveOptions{Cwd: c.Cwd(), Recursive: recursive})
				if err != nil {
					if force && types.KindOf(err) == types.KindNoSuchEntry {
						continue
					}
					return types.Result{Success: false, StateModified: removed, Error: failErrInfo(err)}
				}
				removed = true
			}
			return types.Result{Success: true, StateModified: removed}
		},
	}
}

func rmdirCommand() *command.Command {
	return &command.Command{
		Name:        "rmdir",
		Description: "Remove empty directories.",
		HelpText: `rmdir <directory...>
Removes each directory; a non-empty directory is refused.`,
		Args: command.MinArgs(1),
		Core: func(c *command.ExecContext) types.Result {
			for _, arg := range c.Args {
				if err := c.FS.Remove(arg, c.Cred, vfs.RemoveOptions{Cwd: c.Cwd(), RequireEmpty: true}); err != nil {
					return types.FailErr(err)
				}
			}
			return types.OkModified("")
		},
	}
}

func lnCommand() *command.Command {
	return &command.Command{
		Name:        "ln",
		Description: "Create symbolic links.",
		HelpText: `ln -s <target> <link>
Creates a symbolic link at link pointing to target. Only symbolic links are
supported; the target is not required to exist.`,
		Flags: []command.FlagDef{
			{Name: "symbolic", Short: "-s", Long: "--symbolic"},
		},
		Args: command.ExactArgs(2),
		Core: func(c *command.ExecContext) types.Result {
			if !c.Flags.Bool("symbolic") {
				return types.FailHint("hard links are not supported", "use 'ln -s' to create a symbolic link")
			}
			if err := c.FS.Symlink(c.Args[0], c.Args[1], c.Cred, c.Cwd()); err != nil {
				return types.FailErr(err)
			}
			return types.OkModified("")
		},
	}
}

func readlinkCommand() *command.Command {
	return &command.Command{
		Name:        "readlink",
		Description: "Print a symbolic link's target.",
		HelpText: `readlink <link>
Prints the stored target of a symbolic link, without resolving it.`,
		Args: command.ExactArgs(1),
		Paths: []command.PathSpec{{
			Index:   0,
			Options: vfs.ResolveOptions{KeepLastSymlink: true},
		}},
		Core: func(c *command.ExecContext) types.Result {
			node := c.Paths[0].Node
			if node.Type != vfs.TypeSymlink {
				return types.Fail(c.Paths[0].Path + ": not a symbolic link")
			}
			return types.Ok(node.Target)
		},
	}
}

func statCommand() *command.Command {
	return &command.Command{
		Name:        "stat",
		Description: "Display file status.",
		HelpText: `stat <path...>
Prints type, size, mode, ownership and modification time for each path.
Symbolic links are reported, not followed.`,
		Args: command.MinArgs(1),
		Paths: []command.PathSpec{{
			Index:   -1,
			Options: vfs.ResolveOptions{KeepLastSymlink: true},
		}},
		Core: func(c *command.ExecContext) types.Result {
			var sections []string
			for _, res := range c.Paths {
				n := res.Node
				size := int64(len(n.Content))
				kind := string(n.Type)
				if n.Type == vfs.TypeSymlink {
					size = int64(len(n.Target))
					kind = "symbolic link to " + n.Target
				}
				sections = append(sections, fmt.Sprintf(
					"  File: %s\n  Size: %d\t%s\nAccess: (%04o/%s)  Uid: %s  Gid: %s\nModify: %s",
					res.Path, size, kind, n.Mode, n.ModeString(),
					n.Owner, n.Group, n.MTime.UTC().Format("2006-01-02 15:04:05 MST")))
			}
			return types.Result{Success: true, Output: strings.Join(sections, "\n"), AsBlock: true}
		},
	}
}

func duCommand() *command.Command {
	return &command.Command{
		Name:        "du",
		Description: "Estimate file space usage.",
		HelpText: `du [-s] [path...]
Prints the content bytes under each path (the working directory by default),
one row per directory. -s prints only the per-argument total.`,
		Flags: []command.FlagDef{
			{Name: "summary", Short: "-s", Long: "--summarize"},
		},
		Args: command.AnyArgs(),
		Core: func(c *command.ExecContext) types.Result {
			targets := c.Args
			if len(targets) == 0 {
				targets = []string{c.Cwd()}
			}
			summary := c.Flags.Bool("summary")
			var rows []string
			for _, target := range targets {
				totals := map[string]int64{}
				var order []string
				err := c.FS.Walk(target, c.Cred, c.Cwd(), func(path string, n *vfs.Node) error {
					if n.Type == vfs.TypeDirectory {
						totals[path] = 0
						order = append(order, path)
					}
					size := int64(len(n.Content)) + int64(len(n.Target))
					for dir := range totals {
						if path == dir || strings.HasPrefix(path, strings.TrimSuffix(dir, "/")+"/") {
							totals[dir] += size
						}
					}
					return nil
				})
				if err != nil {
					return types.FailErr(err)
				}
				if len(order) == 0 {
					// A file argument.
					res, err := c.FS.Resolve(target, c.Cred, vfs.ResolveOptions{Cwd: c.Cwd()})
					if err != nil {
						return types.FailErr(err)
					}
					rows = append(rows, fmt.Sprintf("%d\t%s", len(res.Node.Content), res.Path))
					continue
				}
				if summary {
					rows = append(rows, fmt.Sprintf("%d\t%s", totals[order[0]], order[0]))
					continue
				}
				// Deepest-first, the argument itself last.
				for i := len(order) - 1; i >= 0; i-- {
					rows = append(rows, fmt.Sprintf("%d\t%s", totals[order[i]], order[i]))
				}
			}
			return types.Result{Success: true, Output: strings.Join(rows, "\n"), AsBlock: true}
		},
	}
}

func fileCommand() *command.Command {
	return &command.Command{
		Name:        "file",
		Description: "Determine file type.",
		HelpText: `file <path...>
Reports each path's kind: directory, symbolic link, shell script, or the
detected content type.`,
		Args: command.MinArgs(1),
		Paths: []command.PathSpec{{
			Index:   -1,
			Options: vfs.ResolveOptions{KeepLastSymlink: true},
		}},
		Core: func(c *command.ExecContext) types.Result {
			var rows []string
			for _, res := range c.Paths {
				rows = append(rows, res.Path+": "+describeNode(res))
			}
			return types.Ok(strings.Join(rows, "\n"))
		},
	}
}

func describeNode(res *vfs.Resolution) string {
	n := res.Node
	switch n.Type {
	case vfs.TypeDirectory:
		return "directory"
	case vfs.TypeSymlink:
		return "symbolic link to " + n.Target
	}
	if len(n.Content) == 0 {
		return "empty"
	}
	if strings.HasPrefix(string(n.Content), "#!/bin/oopis_shell") || strings.HasSuffix(res.Name, ".sh") {
		return "oopis shell script"
	}
	return mimetype.Detect(n.Content).String()
}

func failErrInfo(err error) *types.ErrorInfo {
	r := types.FailErr(err)
	return r.Error
}

// parseMode reads an octal file mode argument.
func parseMode(arg string) (int, error) {
	mode, err := strconv.ParseInt(arg, 8, 32)
	if err != nil || mode < 0 || mode > 0o7777 {
		return 0, types.NewError(types.KindBadArgValue, "invalid mode %q", arg).
			WithSuggestion("modes are octal, e.g. 755 or 0644")
	}
	return int(mode), nil
}
