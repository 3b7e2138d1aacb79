package identity

import (
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/oopisos/kernel/internal/shared/types"
	"github.com/oopisos/kernel/internal/vfs"
)

// SudoRule is one authorization clause of /etc/sudoers.
type SudoRule struct {
	// Principal is a username or "%group".
	Principal string
	// All permits any command; otherwise Commands lists the allowed names.
	All      bool
	Commands map[string]bool
	NoPasswd bool
}

// SudoersCheck is the outcome of validating sudoers content.
type SudoersCheck struct {
	Valid bool
	Error string
	Rules []SudoRule
}

// ParseSudoers parses sudoers text: one `principal commands [NOPASSWD]`
// rule per non-comment line, commands comma-separated or "ALL".
func ParseSudoers(content string) SudoersCheck {
	var rules []SudoRule
	for i, line := range strings.Split(content, "\n") {
		line = strings.TrimSpace(line)
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		fields := strings.Fields(line)
		if len(fields) < 2 {
			return SudoersCheck{Error: fmt.Sprintf("line %d: expected 'principal commands [NOPASSWD]'", i+1)}
		}
		rule := SudoRule{Principal: fields[0], Commands: map[string]bool{}}
		rest := fields[1:]
		if strings.EqualFold(rest[len(rest)-1], "NOPASSWD") {
			rule.NoPasswd = true
			rest = rest[:len(rest)-1]
		}
		if len(rest) != 1 {
			return SudoersCheck{Error: fmt.Sprintf("line %d: expected a single command list", i+1)}
		}
		for _, cmd := range strings.Split(rest[0], ",") {
			cmd = strings.TrimSpace(cmd)
			if cmd == "" {
				return SudoersCheck{Error: fmt.Sprintf("line %d: empty command in list", i+1)}
			}
			if cmd == "ALL" {
				rule.All = true
			} else {
				rule.Commands[cmd] = true
			}
		}
		rules = append(rules, rule)
	}
	return SudoersCheck{Valid: true, Rules: rules}
}

// loadSudoers reads and parses /etc/sudoers as root.
func (m *Manager) loadSudoers() ([]SudoRule, error) {
	content, err := m.fs.ReadFile("/etc/sudoers", vfs.Root, "/")
	if err != nil {
		return nil, err
	}
	check := ParseSudoers(string(content))
	if !check.Valid {
		return nil, types.NewError(types.KindSudoersSyntax, "sudoers: %s", check.Error)
	}
	return check.Rules, nil
}

// MayRunAs reports whether user may run command as root, and whether the
// matching rule waives the password prompt.
func (m *Manager) MayRunAs(user, command string) (allowed, noPasswd bool, err error) {
	rules, err := m.loadSudoers()
	if err != nil {
		return false, false, err
	}
	groups := m.GroupsOf(user)
	for _, rule := range rules {
		if !principalMatches(rule.Principal, user, groups) {
			continue
		}
		if rule.All || rule.Commands[command] {
			return true, rule.NoPasswd, nil
		}
	}
	return false, false, nil
}

func principalMatches(principal, user string, groups []string) bool {
	if strings.HasPrefix(principal, "%") {
		want := principal[1:]
		for _, g := range groups {
			if g == want {
				return true
			}
		}
		return false
	}
	return principal == user
}

// CacheElevation records a successful sudo password check for the
// (user, tty) pair.
func (m *Manager) CacheElevation(user, tty string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.cache[cacheKey{user, tty}] = m.now().Add(m.sudoTimeout)
}

// Elevated reports whether a prior password check is still fresh.
func (m *Manager) Elevated(user, tty string) bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	deadline, ok := m.cache[cacheKey{user, tty}]
	return ok && m.now().Before(deadline)
}

// DropElevation clears cached elevations for a user (sudo -k, logout).
func (m *Manager) DropElevation(user string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for key := range m.cache {
		if key.user == user {
			delete(m.cache, key)
		}
	}
}

// Audit appends a sudo invocation record to /var/log/sudo.log as root.
func (m *Manager) Audit(user, command, outcome string) {
	line := fmt.Sprintf("%s %s %s %s\n", m.now().UTC().Format(time.RFC3339), user, command, outcome)
	if err := m.fs.AppendFile("/var/log/sudo.log", []byte(line), vfs.Root, "/"); err != nil {
		m.log.Warn("sudo audit write failed", zap.Error(err))
	}
}
