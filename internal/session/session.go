// Package session owns the interactive state of the kernel: per-connection
// sessions with their identity stack, environment, working directory,
// command history, the shared alias table, and durable snapshots.
package session

import (
	"sync"

	"github.com/google/uuid"

	"github.com/oopisos/kernel/internal/shared/types"
)

// frame is one entry of the identity stack. Each login (su) gets its own
// environment and working directory; logout discards them.
type frame struct {
	user string
	env  *Environment
	cwd  string
}

// Session is one interactive terminal attached to the kernel.
type Session struct {
	id          string
	interactive bool

	mu         sync.RWMutex
	stack      []*frame
	stackLimit int

	history *History
	aliases *Aliases
}

// ID returns the session identifier, also used as the sudo credential
// cache's tty key.
func (s *Session) ID() string { return s.id }

// Interactive reports whether a human is attached, gating password prompts
// and confirmations.
func (s *Session) Interactive() bool { return s.interactive }

// SetInteractive marks the session as scripted or human-driven.
func (s *Session) SetInteractive(v bool) { s.interactive = v }

// User returns the active identity.
func (s *Session) User() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.top().user
}

// Cwd returns the active frame's working directory.
func (s *Session) Cwd() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.top().cwd
}

// SetCwd updates the active frame's working directory. The caller resolves
// and validates the path first.
func (s *Session) SetCwd(path string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.top().cwd = path
}

// Env returns the active frame's environment.
func (s *Session) Env() *Environment {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.top().env
}

// History returns the session's command history.
func (s *Session) History() *History { return s.history }

// Aliases returns the shared alias table.
func (s *Session) Aliases() *Aliases { return s.aliases }

// Depth returns the identity stack depth.
func (s *Session) Depth() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.stack)
}

// Push enters a new identity (su/login). The new frame gets a fresh
// environment seeded for the user and starts in the user's home directory.
func (s *Session) Push(user, home string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.stack) >= s.stackLimit {
		return types.NewError(types.KindBadArgValue,
			"session stack limit (%d) reached", s.stackLimit).
			WithSuggestion("logout before switching users again")
	}
	env := NewEnvironment(user)
	cwd := home
	if cwd == "" {
		cwd = "/"
	} else {
		env.Set("HOME", home)
	}
	s.stack = append(s.stack, &frame{user: user, env: env, cwd: cwd})
	return nil
}

// Pop leaves the current identity (logout), restoring the previous frame's
// environment and working directory. Popping the base frame fails.
func (s *Session) Pop() (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.stack) <= 1 {
		return "", types.NewError(types.KindBadArgValue, "logout: not in a nested session")
	}
	leaving := s.top().user
	s.stack = s.stack[:len(s.stack)-1]
	return leaving, nil
}

// Reset collapses the stack to a single frame for the given user, used by
// login and snapshot restore.
func (s *Session) Reset(user, home string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	env := NewEnvironment(user)
	cwd := home
	if cwd == "" {
		cwd = "/"
	} else {
		env.Set("HOME", home)
	}
	s.stack = []*frame{{user: user, env: env, cwd: cwd}}
}

func (s *Session) top() *frame { return s.stack[len(s.stack)-1] }

func newSession(user, home string, stackLimit, historyLimit int, aliases *Aliases) *Session {
	s := &Session{
		id:          uuid.NewString(),
		interactive: true,
		stackLimit:  stackLimit,
		history:     NewHistory(historyLimit),
		aliases:     aliases,
	}
	s.Reset(user, home)
	return s
}
