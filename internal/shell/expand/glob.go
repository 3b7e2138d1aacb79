package expand

import (
	"sort"
	"strings"

	"github.com/bmatcuk/doublestar/v4"
)

// NewGlobber builds the Glob callback over a directory lister. The lister
// returns entry names for a directory the pattern walks through, or nil
// when the directory is missing or unreadable.
func NewGlobber(cwd string, list func(dir string) []string) func(pattern string) []string {
	return func(pattern string) []string {
		absolute := strings.HasPrefix(pattern, "/")
		comps := splitComps(pattern)
		if len(comps) == 0 {
			return nil
		}

		prefixes := []string{""}
		for _, comp := range comps {
			var next []string
			switch {
			case comp == "." || comp == "..":
				for _, p := range prefixes {
					next = append(next, joinComp(p, comp))
				}
			case !hasMeta(comp):
				// Literal components must exist for the path to match.
				for _, p := range prefixes {
					if contains(list(dirOf(absolute, cwd, p)), comp) {
						next = append(next, joinComp(p, comp))
					}
				}
			default:
				for _, p := range prefixes {
					for _, name := range list(dirOf(absolute, cwd, p)) {
						// Dotfiles only match patterns that ask for them.
						if strings.HasPrefix(name, ".") && !strings.HasPrefix(comp, ".") {
							continue
						}
						if ok, err := doublestar.Match(comp, name); err == nil && ok {
							next = append(next, joinComp(p, name))
						}
					}
				}
			}
			if len(next) == 0 {
				return nil
			}
			prefixes = next
		}

		results := make([]string, 0, len(prefixes))
		for _, p := range prefixes {
			if absolute {
				p = "/" + p
			}
			results = append(results, p)
		}
		sort.Strings(results)
		return results
	}
}

func splitComps(pattern string) []string {
	var comps []string
	for _, c := range strings.Split(pattern, "/") {
		if c != "" {
			comps = append(comps, c)
		}
	}
	return comps
}

func joinComp(prefix, comp string) string {
	if prefix == "" {
		return comp
	}
	return prefix + "/" + comp
}

// dirOf maps a result prefix back to the directory to list.
func dirOf(absolute bool, cwd, prefix string) string {
	if absolute {
		return "/" + prefix
	}
	if prefix == "" {
		return cwd
	}
	if strings.HasSuffix(cwd, "/") {
		return cwd + prefix
	}
	return cwd + "/" + prefix
}

func contains(names []string, want string) bool {
	for _, n := range names {
		if n == want {
			return true
		}
	}
	return false
}
