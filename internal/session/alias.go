package session

import (
	"context"
	"sort"
	"sync"

	"github.com/bytedance/sonic"

	"github.com/oopisos/kernel/internal/shared/types"
	"github.com/oopisos/kernel/internal/storage"
)

// Aliases maps command names to replacement text. The set is shared by every
// session and persisted under its own store key.
type Aliases struct {
	mu      sync.RWMutex
	entries map[string]string
}

// NewAliases returns an empty alias set.
func NewAliases() *Aliases {
	return &Aliases{entries: make(map[string]string)}
}

// Get returns the alias value and whether it exists.
func (a *Aliases) Get(name string) (string, bool) {
	a.mu.RLock()
	defer a.mu.RUnlock()
	v, ok := a.entries[name]
	return v, ok
}

// Set installs or replaces an alias.
func (a *Aliases) Set(name, value string) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.entries[name] = value
}

// Remove deletes an alias, reporting whether it existed.
func (a *Aliases) Remove(name string) bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	_, ok := a.entries[name]
	delete(a.entries, name)
	return ok
}

// All returns a copy of the alias map.
func (a *Aliases) All() map[string]string {
	a.mu.RLock()
	defer a.mu.RUnlock()
	out := make(map[string]string, len(a.entries))
	for k, v := range a.entries {
		out[k] = v
	}
	return out
}

// Names returns alias names in sorted order.
func (a *Aliases) Names() []string {
	a.mu.RLock()
	defer a.mu.RUnlock()
	names := make([]string, 0, len(a.entries))
	for k := range a.entries {
		names = append(names, k)
	}
	sort.Strings(names)
	return names
}

// Replace swaps the whole alias map, used by snapshot restore.
func (a *Aliases) Replace(entries map[string]string) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.entries = make(map[string]string, len(entries))
	for k, v := range entries {
		a.entries[k] = v
	}
}

// Save persists the alias set.
func (a *Aliases) Save(ctx context.Context, store storage.Store) error {
	data, err := sonic.Marshal(a.All())
	if err != nil {
		return types.NewError(types.KindStorageFailure, "serialize aliases: %v", err)
	}
	return store.Set(ctx, storage.KeyAliases, data)
}

// Load restores the alias set; a missing key leaves it empty.
func (a *Aliases) Load(ctx context.Context, store storage.Store) error {
	data, ok, err := store.Get(ctx, storage.KeyAliases)
	if err != nil || !ok {
		return err
	}
	var entries map[string]string
	if err := sonic.Unmarshal(data, &entries); err != nil {
		return types.NewError(types.KindStorageFailure, "parse aliases: %v", err)
	}
	a.Replace(entries)
	return nil
}
