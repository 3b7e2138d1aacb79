package session

import (
	"sort"
	"sync"

	"github.com/oopisos/kernel/internal/shared/utils"
)

// Environment is one identity frame's variable set. Variables are plain
// strings; names are validated on Set.
type Environment struct {
	mu   sync.RWMutex
	vars map[string]string
}

// NewEnvironment returns an environment seeded for a user: HOME, USER and
// the default prompt.
func NewEnvironment(user string) *Environment {
	return &Environment{vars: map[string]string{
		"HOME": "/home/" + user,
		"USER": user,
		"PS1":  `\u@\h:\w\$ `,
	}}
}

// Get returns the variable's value, or "" when unset.
func (e *Environment) Get(name string) string {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.vars[name]
}

// Has reports whether the variable is set.
func (e *Environment) Has(name string) bool {
	e.mu.RLock()
	defer e.mu.RUnlock()
	_, ok := e.vars[name]
	return ok
}

// Set assigns a variable after validating the name.
func (e *Environment) Set(name, value string) error {
	if err := utils.ValidateEnvName(name); err != nil {
		return err
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	e.vars[name] = value
	return nil
}

// Unset removes a variable. Removing an absent variable is not an error.
func (e *Environment) Unset(name string) {
	e.mu.Lock()
	defer e.mu.Unlock()
	delete(e.vars, name)
}

// All returns a sorted-key copy of the variable set.
func (e *Environment) All() map[string]string {
	e.mu.RLock()
	defer e.mu.RUnlock()
	out := make(map[string]string, len(e.vars))
	for k, v := range e.vars {
		out[k] = v
	}
	return out
}

// Names returns the variable names in sorted order.
func (e *Environment) Names() []string {
	e.mu.RLock()
	defer e.mu.RUnlock()
	names := make([]string, 0, len(e.vars))
	for k := range e.vars {
		names = append(names, k)
	}
	sort.Strings(names)
	return names
}

// Replace swaps the whole variable set, used by snapshot restore.
func (e *Environment) Replace(vars map[string]string) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.vars = make(map[string]string, len(vars))
	for k, v := range vars {
		e.vars[k] = v
	}
}
