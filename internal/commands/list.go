package commands

import (
	"fmt"
	"strings"

	"github.com/oopisos/kernel/internal/command"
	"github.com/oopisos/kernel/internal/shared/types"
	"github.com/oopisos/kernel/internal/vfs"
)

func lsCommand() *command.Command {
	return &command.Command{
		Name:        "ls",
		Description: "List directory contents.",
		HelpText: `ls [-l] [-a] [path...]
Lists the entries of each directory argument (the working directory by
default). -l prints the long format, -a includes dotfiles.`,
		Flags: []command.FlagDef{
			{Name: "long", Short: "-l", Long: "--long"},
			{Name: "all", Short: "-a", Long: "--all"},
		},
		Args: command.AnyArgs(),
		Core: func(c *command.ExecContext) types.Result {
			long := c.Flags.Bool("long")
			all := c.Flags.Bool("all")

			operands := c.Args
			if len(operands) == 0 {
				operands = []string{c.Cwd()}
			}

			// Operands resolve one by one so a bad one is reported with
			// the name as typed and the rest still list.
			var sections, failures []string
			for _, operand := range operands {
				res, err := c.FS.Resolve(operand, c.Cred, vfs.ResolveOptions{Cwd: c.Cwd()})
				if err != nil {
					failures = append(failures, fmt.Sprintf("ls: cannot access '%s': %s", operand, accessReason(err)))
					continue
				}
				listing, err := renderListing(c, res, long, all)
				if err != nil {
					failures = append(failures, fmt.Sprintf("ls: cannot access '%s': %s", operand, accessReason(err)))
					continue
				}
				if len(operands) > 1 {
					listing = operand + ":\n" + listing
				}
				sections = append(sections, listing)
			}

			output := strings.Join(sections, "\n\n")
			if len(failures) > 0 {
				res := types.Fail(strings.Join(failures, "\n"))
				res.Output = output
				res.AsBlock = long
				return res
			}
			return types.Result{Success: true, Output: output, AsBlock: long}
		},
	}
}

// accessReason renders a resolve error the way ls words it, without the
// canonicalized path the resolver reports.
func accessReason(err error) string {
	switch types.KindOf(err) {
	case types.KindNoSuchEntry:
		return "no such file or directory"
	case types.KindPermissionDenied:
		return "permission denied"
	}
	return err.Error()
}

func renderListing(c *command.ExecContext, res *vfs.Resolution, long, all bool) (string, error) {
	if res.Node.Type != vfs.TypeDirectory {
		if long {
			return longEntry(res.Name, res.Node), nil
		}
		return res.Path, nil
	}
	entries, err := c.FS.List(res.Path, c.Cred, c.Cwd())
	if err != nil {
		return "", err
	}
	var rows []string
	for _, e := range entries {
		if !all && strings.HasPrefix(e.Name, ".") {
			continue
		}
		if long {
			rows = append(rows, longEntry(e.Name, e.Node))
		} else {
			rows = append(rows, e.Name)
		}
	}
	return strings.Join(rows, "\n"), nil
}

func longEntry(name string, n *vfs.Node) string {
	size := int64(len(n.Content))
	display := name
	if n.Type == vfs.TypeSymlink {
		size = int64(len(n.Target))
		display = name + " -> " + n.Target
	}
	return fmt.Sprintf("%s %-8s %-8s %8d %s %s",
		n.ModeString(), n.Owner, n.Group, size,
		n.MTime.Format("Jan _2 15:04"), display)
}

func treeCommand() *command.Command {
	return &command.Command{
		Name:        "tree",
		Description: "List directory contents as a tree.",
		HelpText: `tree [path]
Prints the directory hierarchy rooted at path (the working directory by
default), with a trailing count of directories and files.`,
		Args: command.RangeArgs(0, 1),
		Paths: []command.PathSpec{{
			Index: 0,
			Options: vfs.ResolveOptions{
				ExpectedType: vfs.TypeDirectory,
				Permissions:  []vfs.Perm{vfs.PermRead, vfs.PermExecute},
			},
		}},
		Core: func(c *command.ExecContext) types.Result {
			root := c.Cwd()
			if len(c.Paths) > 0 {
				root = c.Paths[0].Path
			}
			var b strings.Builder
			b.WriteString(root)
			dirs, files := 0, 0
			if err := renderTree(c, root, "", &b, &dirs, &files); err != nil {
				return types.FailErr(err)
			}
			fmt.Fprintf(&b, "\n\n%d directories, %d files", dirs, files)
			return types.Result{Success: true, Output: b.String(), AsBlock: true}
		},
	}
}

func renderTree(c *command.ExecContext, path, prefix string, b *strings.Builder, dirs, files *int) error {
	entries, err := c.FS.List(path, c.Cred, "/")
	if err != nil {
		// Unreadable branches are shown but not descended, like tree does.
		if types.KindOf(err) == types.KindPermissionDenied {
			return nil
		}
		return err
	}
	for i, e := range entries {
		connector, childPrefix := "├── ", prefix+"│   "
		if i == len(entries)-1 {
			connector, childPrefix = "└── ", prefix+"    "
		}
		display := e.Name
		if e.Node.Type == vfs.TypeSymlink {
			display += " -> " + e.Node.Target
		}
		b.WriteString("\n" + prefix + connector + display)
		switch e.Node.Type {
		case vfs.TypeDirectory:
			*dirs++
			child := strings.TrimSuffix(path, "/") + "/" + e.Name
			if err := renderTree(c, child, childPrefix, b, dirs, files); err != nil {
				return err
			}
		default:
			*files++
		}
	}
	return nil
}
