// Package command defines the contract every builtin implements: a
// declarative definition (flags, argument counts, path requirements) plus a
// core function. The executor validates and resolves everything declared
// before the core runs, so cores stay small.
package command

import (
	"fmt"
	"strings"

	"github.com/oopisos/kernel/internal/shared/types"
	"github.com/oopisos/kernel/internal/vfs"
)

// FlagDef declares one flag a command accepts.
type FlagDef struct {
	// Name is the canonical key the core reads the flag under.
	Name string
	// Short is the single-dash form, e.g. "-r". Single-letter boolean
	// shorts may be combined ("-rf").
	Short string
	// Long is the double-dash form, e.g. "--recursive".
	Long string
	// Aliases are additional accepted spellings.
	Aliases []string
	// TakesValue marks a flag that consumes the following argument
	// (or an =value suffix on the long form).
	TakesValue bool
}

func (f FlagDef) matches(arg string) bool {
	if arg == f.Short || arg == f.Long {
		return true
	}
	for _, a := range f.Aliases {
		if arg == a {
			return true
		}
	}
	return false
}

// ArgSpec bounds the positional argument count after flag parsing.
// Max of -1 means unbounded.
type ArgSpec struct {
	Min int
	Max int
}

// NoArgs accepts zero arguments.
func NoArgs() ArgSpec { return ArgSpec{0, 0} }

// ExactArgs accepts exactly n arguments.
func ExactArgs(n int) ArgSpec { return ArgSpec{n, n} }

// MinArgs accepts n or more arguments.
func MinArgs(n int) ArgSpec { return ArgSpec{n, -1} }

// RangeArgs accepts between min and max arguments.
func RangeArgs(min, max int) ArgSpec { return ArgSpec{min, max} }

// AnyArgs accepts any argument count.
func AnyArgs() ArgSpec { return ArgSpec{0, -1} }

func (s ArgSpec) check(name string, n int) *types.KernelError {
	if n < s.Min || (s.Max >= 0 && n > s.Max) {
		switch {
		case s.Min == s.Max:
			return types.NewError(types.KindBadArgCount, "%s: expected %d argument(s), got %d", name, s.Min, n)
		case s.Max < 0:
			return types.NewError(types.KindBadArgCount, "%s: expected at least %d argument(s), got %d", name, s.Min, n)
		default:
			return types.NewError(types.KindBadArgCount, "%s: expected %d to %d arguments, got %d", name, s.Min, s.Max, n)
		}
	}
	return nil
}

// PathSpec asks the executor to resolve one or more positional arguments as
// filesystem paths before the core runs.
type PathSpec struct {
	// Index is the argument position, or -1 for every argument.
	Index int
	// Options controls the resolution (expected type, permissions,
	// whether a missing final entry is acceptable).
	Options vfs.ResolveOptions
}

// Command is one builtin.
type Command struct {
	Name        string
	Description string
	HelpText    string

	Flags []FlagDef
	Args  ArgSpec
	Paths []PathSpec

	// InputStream marks a command that consumes piped or redirected
	// input when its file arguments are absent.
	InputStream bool

	// PassThrough stops flag parsing at the first positional argument, so
	// a wrapped command line keeps its own flags (sudo, xargs).
	PassThrough bool

	Core func(ctx *ExecContext) types.Result
}

// Usage renders the one-line usage from the help text, falling back to the
// description.
func (c *Command) Usage() string {
	if c.HelpText != "" {
		first := c.HelpText
		if i := strings.IndexByte(first, '\n'); i >= 0 {
			first = first[:i]
		}
		return first
	}
	return fmt.Sprintf("%s - %s", c.Name, c.Description)
}

// Validate parses flags and checks the argument count. Returned positionals
// have flags removed.
func (c *Command) Validate(args []string) (Flags, []string, error) {
	flags, rest, err := parseFlags(c, args)
	if err != nil {
		return Flags{}, nil, err
	}
	if err := c.Args.check(c.Name, len(rest)); err != nil {
		return Flags{}, nil, err.WithSuggestion("usage: " + c.Usage())
	}
	return flags, rest, nil
}
