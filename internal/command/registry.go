package command

import (
	"sort"
	"sync"

	"github.com/bytedance/sonic"

	"github.com/oopisos/kernel/internal/shared/types"
)

// Registry holds the installed builtins. Registration happens once during
// boot; lookups are concurrent.
type Registry struct {
	mu       sync.RWMutex
	commands map[string]*Command
}

// NewRegistry returns an empty registry.
func NewRegistry() *Registry {
	return &Registry{commands: make(map[string]*Command)}
}

// Register installs a command. Re-registering a name panics: it is a wiring
// bug, not a runtime condition.
func (r *Registry) Register(cmd *Command) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.commands[cmd.Name]; ok {
		panic("command registered twice: " + cmd.Name)
	}
	r.commands[cmd.Name] = cmd
}

// Unregister removes a command, reporting whether it was installed.
func (r *Registry) Unregister(name string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	_, ok := r.commands[name]
	delete(r.commands, name)
	return ok
}

// Get returns a command by name.
func (r *Registry) Get(name string) (*Command, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	cmd, ok := r.commands[name]
	return cmd, ok
}

// Names returns all command names, sorted.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.commands))
	for name := range r.commands {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Manifest keys stay in name order so the file reads the same on every boot.
var manifestJSON = sonic.Config{SortMapKeys: true}.Froze()

// Manifest renders the installed command set as JSON, written to
// /etc/pkg_manifest.json at boot.
func (r *Registry) Manifest() ([]byte, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	entries := make(map[string]string, len(r.commands))
	for name, cmd := range r.commands {
		entries[name] = cmd.Description
	}
	data, err := manifestJSON.MarshalIndent(entries, "", "  ")
	if err != nil {
		return nil, types.NewError(types.KindStorageFailure, "serialize manifest: %v", err)
	}
	return append(data, '\n'), nil
}
