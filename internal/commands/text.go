package commands

import (
	"encoding/base64"
	"fmt"
	"regexp"
	"sort"
	"strconv"
	"strings"

	"github.com/bmatcuk/doublestar/v4"

	"github.com/oopisos/kernel/internal/command"
	"github.com/oopisos/kernel/internal/shared/types"
	"github.com/oopisos/kernel/internal/vfs"
)

func grepCommand() *command.Command {
	return &command.Command{
		Name:        "grep",
		Description: "Search text for a pattern.",
		HelpText: `grep [-i] [-v] [-n] [-c] <pattern> [file...]
Prints lines matching the regular expression. -i ignores case, -v inverts
the match, -n prefixes line numbers, -c prints only the match count.`,
		Flags: []command.FlagDef{
			{Name: "ignore-case", Short: "-i", Long: "--ignore-case"},
			{Name: "invert", Short: "-v", Long: "--invert-match"},
			{Name: "line-number", Short: "-n", Long: "--line-number"},
			{Name: "count", Short: "-c", Long: "--count"},
		},
		Args:        command.MinArgs(1),
		InputStream: true,
		Core: func(c *command.ExecContext) types.Result {
			pattern := c.Args[0]
			if c.Flags.Bool("ignore-case") {
				pattern = "(?i)" + pattern
			}
			re, err := regexp.Compile(pattern)
			if err != nil {
				return types.FailErr(types.NewError(types.KindBadArgValue, "invalid pattern: %v", err))
			}

			files := c.Args[1:]
			sources := make(map[string][]string)
			var order []string
			if len(files) == 0 {
				order = []string{""}
				sources[""] = lines(c.Input)
			} else {
				for _, f := range files {
					content, err := c.FS.ReadFile(f, c.Cred, c.Cwd())
					if err != nil {
						return types.FailErr(err)
					}
					order = append(order, f)
					sources[f] = lines(string(content))
				}
			}

			invert := c.Flags.Bool("invert")
			number := c.Flags.Bool("line-number")
			countOnly := c.Flags.Bool("count")
			prefix := len(order) > 1

			var rows []string
			total := 0
			for _, name := range order {
				count := 0
				for i, line := range sources[name] {
					if re.MatchString(line) == invert {
						continue
					}
					count++
					if countOnly {
						continue
					}
					row := line
					if number {
						row = strconv.Itoa(i+1) + ":" + row
					}
					if prefix {
						row = name + ":" + row
					}
					rows = append(rows, row)
				}
				total += count
				if countOnly {
					row := strconv.Itoa(count)
					if prefix {
						row = name + ":" + row
					}
					rows = append(rows, row)
				}
			}
			if total == 0 {
				// No match fails the pipeline, like grep's exit status,
				// without an error line.
				return types.Result{Success: false, Output: strings.Join(rows, "\n")}
			}
			return types.Ok(strings.Join(rows, "\n"))
		},
	}
}

func wcCommand() *command.Command {
	return &command.Command{
		Name:        "wc",
		Description: "Count lines, words and bytes.",
		HelpText: `wc [-l] [-w] [-c] [file...]
Prints line, word and byte counts for each file or standard input. Flags
select individual counts.`,
		Flags: []command.FlagDef{
			{Name: "lines", Short: "-l", Long: "--lines"},
			{Name: "words", Short: "-w", Long: "--words"},
			{Name: "bytes", Short: "-c", Long: "--bytes"},
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
			showLines := c.Flags.Bool("lines")
			showWords := c.Flags.Bool("words")
			showBytes := c.Flags.Bool("bytes")
			if !showLines && !showWords && !showBytes {
				showLines, showWords, showBytes = true, true, true
			}
			var cols []string
			if showLines {
				cols = append(cols, fmt.Sprintf("%7d", strings.Count(text, "\n")))
			}
			if showWords {
				cols = append(cols, fmt.Sprintf("%7d", len(strings.Fields(text))))
			}
			if showBytes {
				cols = append(cols, fmt.Sprintf("%7d", len(text)))
			}
			return types.Ok(strings.Join(cols, ""))
		},
	}
}

func headCommand() *command.Command { return headTail("head", false) }
func tailCommand() *command.Command { return headTail("tail", true) }

func headTail(name string, fromEnd bool) *command.Command {
	what := "first"
	if fromEnd {
		what = "last"
	}
	return &command.Command{
		Name:        name,
		Description: fmt.Sprintf("Print the %s lines of input.", what),
		HelpText: fmt.Sprintf(`%s [-n count] [file...]
Prints the %s count lines (10 by default) of each file or standard input.`, name, what),
		Flags: []command.FlagDef{
			{Name: "count", Short: "-n", Long: "--lines", TakesValue: true},
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
			count := 10
			if raw, ok := c.Flags.Value("count"); ok {
				n, err := strconv.Atoi(raw)
				if err != nil || n < 0 {
					return types.FailErr(types.NewError(types.KindBadArgValue, "invalid line count %q", raw))
				}
				count = n
			}
			all := lines(streamInput(c))
			if len(all) > count {
				if fromEnd {
					all = all[len(all)-count:]
				} else {
					all = all[:count]
				}
			}
			return types.Ok(strings.Join(all, "\n"))
		},
	}
}

func sortCommand() *command.Command {
	return &command.Command{
		Name:        "sort",
		Description: "Sort lines of text.",
		HelpText: `sort [-r] [-n] [-u] [file...]
Sorts the lines of each file or standard input. -r reverses, -n compares
numerically, -u drops duplicate lines.`,
		Flags: []command.FlagDef{
			{Name: "reverse", Short: "-r", Long: "--reverse"},
			{Name: "numeric", Short: "-n", Long: "--numeric-sort"},
			{Name: "unique", Short: "-u", Long: "--unique"},
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
			all := lines(streamInput(c))
			numeric := c.Flags.Bool("numeric")
			sort.SliceStable(all, func(i, j int) bool {
				if numeric {
					a, errA := strconv.ParseFloat(strings.TrimSpace(all[i]), 64)
					b, errB := strconv.ParseFloat(strings.TrimSpace(all[j]), 64)
					if errA == nil && errB == nil {
						return a < b
					}
				}
				return all[i] < all[j]
			})
			if c.Flags.Bool("reverse") {
				for i, j := 0, len(all)-1; i < j; i, j = i+1, j-1 {
					all[i], all[j] = all[j], all[i]
				}
			}
			if c.Flags.Bool("unique") {
				deduped := all[:0]
				for i, line := range all {
					if i == 0 || line != all[i-1] {
						deduped = append(deduped, line)
					}
				}
				all = deduped
			}
			return types.Ok(strings.Join(all, "\n"))
		},
	}
}

func uniqCommand() *command.Command {
	return &command.Command{
		Name:        "uniq",
		Description: "Filter adjacent repeated lines.",
		HelpText: `uniq [-c] [-d] [file...]
Collapses adjacent duplicate lines. -c prefixes each line with its repeat
count, -d prints only repeated lines.`,
		Flags: []command.FlagDef{
			{Name: "count", Short: "-c", Long: "--count"},
			{Name: "repeated", Short: "-d", Long: "--repeated"},
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
			all := lines(streamInput(c))
			showCount := c.Flags.Bool("count")
			repeatedOnly := c.Flags.Bool("repeated")
			var rows []string
			for i := 0; i < len(all); {
				j := i + 1
				for j < len(all) && all[j] == all[i] {
					j++
				}
				count := j - i
				if !repeatedOnly || count > 1 {
					if showCount {
						rows = append(rows, fmt.Sprintf("%7d %s", count, all[i]))
					} else {
						rows = append(rows, all[i])
					}
				}
				i = j
			}
			return types.Ok(strings.Join(rows, "\n"))
		},
	}
}

func diffCommand() *command.Command {
	return &command.Command{
		Name:        "diff",
		Description: "Compare two files line by line.",
		HelpText: `diff <file1> <file2>
Prints the differing lines in normal diff format. Succeeds with empty output
when the files match.`,
		Args: command.ExactArgs(2),
		Paths: []command.PathSpec{{
			Index: -1,
			Options: vfs.ResolveOptions{
				ExpectedType: vfs.TypeFile,
				Permissions:  []vfs.Perm{vfs.PermRead},
			},
		}},
		Core: func(c *command.ExecContext) types.Result {
			a := lines(string(c.Paths[0].Node.Content))
			b := lines(string(c.Paths[1].Node.Content))
			out := renderDiff(a, b)
			return types.Result{Success: out == "", Output: out, AsBlock: out != ""}
		},
	}
}

// renderDiff emits normal diff hunks (aXcY etc.) from an LCS alignment.
func renderDiff(a, b []string) string {
	lcs := make([][]int, len(a)+1)
	for i := range lcs {
		lcs[i] = make([]int, len(b)+1)
	}
	for i := len(a) - 1; i >= 0; i-- {
		for j := len(b) - 1; j >= 0; j-- {
			if a[i] == b[j] {
				lcs[i][j] = lcs[i+1][j+1] + 1
			} else if lcs[i+1][j] >= lcs[i][j+1] {
				lcs[i][j] = lcs[i+1][j]
			} else {
				lcs[i][j] = lcs[i][j+1]
			}
		}
	}

	var hunks []string
	i, j := 0, 0
	for i < len(a) || j < len(b) {
		if i < len(a) && j < len(b) && a[i] == b[j] {
			i, j = i+1, j+1
			continue
		}
		startA, startB := i, j
		for i < len(a) || j < len(b) {
			if i < len(a) && j < len(b) && a[i] == b[j] {
				break
			}
			if i < len(a) && (j >= len(b) || lcs[i+1][j] >= lcs[i][j+1]) {
				i++
			} else {
				j++
			}
		}
		var b1 strings.Builder
		b1.WriteString(hunkHeader(startA, i, startB, j))
		for _, line := range a[startA:i] {
			b1.WriteString("\n< " + line)
		}
		if startA != i && startB != j {
			b1.WriteString("\n---")
		}
		for _, line := range b[startB:j] {
			b1.WriteString("\n> " + line)
		}
		hunks = append(hunks, b1.String())
	}
	return strings.Join(hunks, "\n")
}

func hunkHeader(a1, a2, b1, b2 int) string {
	op := "c"
	if a1 == a2 {
		op = "a"
	} else if b1 == b2 {
		op = "d"
	}
	return rangeLabel(a1, a2, op == "a") + op + rangeLabel(b1, b2, op == "d")
}

func rangeLabel(start, end int, insertionPoint bool) string {
	if insertionPoint {
		return strconv.Itoa(start)
	}
	if end-start <= 1 {
		return strconv.Itoa(start + 1)
	}
	return fmt.Sprintf("%d,%d", start+1, end)
}

func base64Command() *command.Command {
	return &command.Command{
		Name:        "base64",
		Description: "Encode or decode base64.",
		HelpText: `base64 [-d] [file...]
Encodes each file or standard input as base64; -d decodes instead.`,
		Flags: []command.FlagDef{
			{Name: "decode", Short: "-d", Long: "--decode"},
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
			if c.Flags.Bool("decode") {
				raw, err := base64.StdEncoding.DecodeString(strings.TrimSpace(text))
				if err != nil {
					return types.FailErr(types.NewError(types.KindBadArgValue, "invalid base64 input"))
				}
				return types.Ok(string(raw))
			}
			return types.Ok(base64.StdEncoding.EncodeToString([]byte(text)))
		},
	}
}

func xargsCommand() *command.Command {
	return &command.Command{
		Name:        "xargs",
		Description: "Build a command line from standard input.",
		HelpText: `xargs <command> [args...]
Splits standard input on whitespace and appends the items to the command,
then runs it.`,
		Args:        command.MinArgs(1),
		PassThrough: true,
		InputStream: true,
		Core: func(c *command.ExecContext) types.Result {
			words := append([]string{}, c.Args...)
			words = append(words, strings.Fields(c.Input)...)
			return c.Shell.Run(c.Ctx, shellJoin(words))
		},
	}
}

func findCommand() *command.Command {
	return &command.Command{
		Name:        "find",
		Description: "Search the directory tree.",
		HelpText: `find [path] [-name pattern] [-type f|d|l]
Walks the tree under path (the working directory by default) and prints
entries matching the name glob and type filter. Unreadable branches are
skipped.`,
		Flags: []command.FlagDef{
			{Name: "name", Short: "-name", TakesValue: true},
			{Name: "type", Short: "-type", TakesValue: true},
		},
		Args: command.RangeArgs(0, 1),
		Core: func(c *command.ExecContext) types.Result {
			root := c.Cwd()
			if len(c.Args) > 0 {
				root = c.Args[0]
			}
			pattern, hasPattern := c.Flags.Value("name")
			if hasPattern && !doublestar.ValidatePattern(pattern) {
				return types.FailErr(types.NewError(types.KindBadArgValue, "invalid pattern %q", pattern))
			}
			var wantType vfs.NodeType
			if raw, ok := c.Flags.Value("type"); ok {
				switch raw {
				case "f":
					wantType = vfs.TypeFile
				case "d":
					wantType = vfs.TypeDirectory
				case "l":
					wantType = vfs.TypeSymlink
				default:
					return types.FailErr(types.NewError(types.KindBadArgValue, "invalid type %q", raw).
						WithSuggestion("use -type f, d or l"))
				}
			}

			var rows []string
			err := c.FS.Walk(root, c.Cred, c.Cwd(), func(path string, n *vfs.Node) error {
				if wantType != "" && n.Type != wantType {
					return nil
				}
				if hasPattern {
					name := path[strings.LastIndexByte(path, '/')+1:]
					if ok, _ := doublestar.Match(pattern, name); !ok {
						return nil
					}
				}
				rows = append(rows, path)
				return nil
			})
			if err != nil {
				return types.FailErr(err)
			}
			return types.Ok(strings.Join(rows, "\n"))
		},
	}
}
