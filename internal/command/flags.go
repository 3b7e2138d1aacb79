package command

import (
	"strings"

	"github.com/oopisos/kernel/internal/shared/types"
)

// Flags is the parsed flag set handed to a command core.
type Flags struct {
	bools  map[string]bool
	values map[string]string
}

// Bool reports whether a boolean flag was present.
func (f Flags) Bool(name string) bool { return f.bools[name] }

// Value returns a value flag and whether it was present.
func (f Flags) Value(name string) (string, bool) {
	v, ok := f.values[name]
	return v, ok
}

// ValueOr returns a value flag or a default.
func (f Flags) ValueOr(name, def string) string {
	if v, ok := f.values[name]; ok {
		return v
	}
	return def
}

// parseFlags separates flags from positional arguments. "--" ends flag
// parsing; everything after it is positional. Single-letter boolean shorts
// combine ("-rf"). Long value flags accept "--name=value".
func parseFlags(c *Command, args []string) (Flags, []string, error) {
	flags := Flags{bools: map[string]bool{}, values: map[string]string{}}
	var rest []string
	terminated := false

	for i := 0; i < len(args); i++ {
		arg := args[i]
		switch {
		case terminated, arg == "-", !strings.HasPrefix(arg, "-"), isNumeric(arg[1:]):
			// Negative numbers are positional, not flags.
			rest = append(rest, arg)
			terminated = terminated || c.PassThrough
			continue
		case arg == "--":
			terminated = true
			continue
		}

		// --name=value splits before matching.
		if name, value, ok := strings.Cut(arg, "="); ok && strings.HasPrefix(arg, "--") {
			def := lookup(c, name)
			if def == nil || !def.TakesValue {
				return Flags{}, nil, invalidFlag(c, name)
			}
			flags.values[def.Name] = value
			continue
		}

		if def := lookup(c, arg); def != nil {
			if def.TakesValue {
				if i+1 >= len(args) {
					return Flags{}, nil, types.NewError(types.KindInvalidFlag,
						"%s: flag %s requires a value", c.Name, arg)
				}
				i++
				flags.values[def.Name] = args[i]
			} else {
				flags.bools[def.Name] = true
			}
			continue
		}

		// Combined boolean shorts: -rf == -r -f.
		if combined, ok := splitCombined(c, arg); ok {
			for _, name := range combined {
				flags.bools[name] = true
			}
			continue
		}

		return Flags{}, nil, invalidFlag(c, arg)
	}
	return flags, rest, nil
}

func lookup(c *Command, arg string) *FlagDef {
	for i := range c.Flags {
		if c.Flags[i].matches(arg) {
			return &c.Flags[i]
		}
	}
	return nil
}

func splitCombined(c *Command, arg string) ([]string, bool) {
	if len(arg) < 3 || strings.HasPrefix(arg, "--") {
		return nil, false
	}
	var names []string
	for _, ch := range arg[1:] {
		def := lookup(c, "-"+string(ch))
		if def == nil || def.TakesValue {
			return nil, false
		}
		names = append(names, def.Name)
	}
	return names, true
}

func isNumeric(s string) bool {
	if s == "" {
		return false
	}
	for _, ch := range s {
		if ch < '0' || ch > '9' {
			return false
		}
	}
	return true
}

func invalidFlag(c *Command, arg string) error {
	return types.NewError(types.KindInvalidFlag, "%s: unknown flag %s", c.Name, arg).
		WithSuggestion("run 'help " + c.Name + "' for accepted flags")
}
