package expand

import (
	"fmt"
	"strconv"
	"strings"
)

// Braces expands the first well-formed {a,b} alternation or {N..M} range
// and recurses on the products. Malformed braces stay literal.
func Braces(s string) []string {
	open, close_ := findBraces(s)
	if open < 0 {
		return []string{s}
	}
	body := s[open+1 : close_]
	parts := braceParts(body)
	if parts == nil {
		// Not an alternation or range; leave these braces literal and
		// keep scanning to the right.
		var out []string
		for _, tail := range Braces(s[close_+1:]) {
			out = append(out, s[:close_+1]+tail)
		}
		return out
	}
	var out []string
	for _, part := range parts {
		for _, product := range Braces(s[:open] + part + s[close_+1:]) {
			out = append(out, product)
		}
	}
	return out
}

// findBraces locates the first balanced brace pair.
func findBraces(s string) (int, int) {
	open := -1
	depth := 0
	for i := 0; i < len(s); i++ {
		switch s[i] {
		case '{':
			if depth == 0 {
				open = i
			}
			depth++
		case '}':
			if depth > 0 {
				depth--
				if depth == 0 {
					return open, i
				}
			}
		}
	}
	return -1, -1
}

// braceParts interprets a brace body as a comma alternation or a range,
// returning nil when it is neither.
func braceParts(body string) []string {
	if parts := rangeParts(body); parts != nil {
		return parts
	}
	if !topLevelComma(body) {
		return nil
	}
	var parts []string
	depth := 0
	start := 0
	for i := 0; i < len(body); i++ {
		switch body[i] {
		case '{':
			depth++
		case '}':
			depth--
		case ',':
			if depth == 0 {
				parts = append(parts, body[start:i])
				start = i + 1
			}
		}
	}
	return append(parts, body[start:])
}

func topLevelComma(body string) bool {
	depth := 0
	for i := 0; i < len(body); i++ {
		switch body[i] {
		case '{':
			depth++
		case '}':
			depth--
		case ',':
			if depth == 0 {
				return true
			}
		}
	}
	return false
}

// rangeParts expands {N..M} numeric and {a..z} alpha ranges, ascending or
// descending.
func rangeParts(body string) []string {
	lo, hi, ok := strings.Cut(body, "..")
	if !ok || lo == "" || hi == "" || strings.Contains(hi, "..") {
		return nil
	}
	if a, errA := strconv.Atoi(lo); errA == nil {
		b, errB := strconv.Atoi(hi)
		if errB != nil {
			return nil
		}
		var parts []string
		step := 1
		if b < a {
			step = -1
		}
		for n := a; ; n += step {
			parts = append(parts, fmt.Sprintf("%d", n))
			if n == b {
				break
			}
		}
		return parts
	}
	if len(lo) == 1 && len(hi) == 1 && isAlpha(lo[0]) && isAlpha(hi[0]) {
		a, b := lo[0], hi[0]
		var parts []string
		if a <= b {
			for ch := a; ch <= b; ch++ {
				parts = append(parts, string(ch))
			}
		} else {
			for ch := a; ch >= b; ch-- {
				parts = append(parts, string(ch))
			}
		}
		return parts
	}
	return nil
}

func isAlpha(ch byte) bool {
	return (ch >= 'a' && ch <= 'z') || (ch >= 'A' && ch <= 'Z')
}
