// Package storage defines the durable key-blob store the kernel persists
// into. The interface is deliberately narrow: the virtual filesystem and
// session layers stringify their own state and treat values as opaque.
package storage

import (
	"context"

	"github.com/oopisos/kernel/internal/shared/types"
)

// Store is the hardware-abstraction boundary for durable state.
//
// Implementations must provide durability (values survive a restart) and
// atomic single-key replace: a Set either installs the full value under the
// key or leaves the prior value intact.
type Store interface {
	// Init prepares the store for use. Idempotent.
	Init(ctx context.Context) error
	// Get returns the value for key, or ok=false when the key is absent.
	Get(ctx context.Context, key string) (value []byte, ok bool, err error)
	// Set atomically replaces the value under key.
	Set(ctx context.Context, key string, value []byte) error
	// Remove deletes the key. Removing an absent key is not an error.
	Remove(ctx context.Context, key string) error
	// Clear removes every key.
	Clear(ctx context.Context) error
}

// Well-known store keys.
const (
	KeyVFS         = "vfs.tree"
	KeyCredentials = "credentials"
	KeyGroups      = "groups"
	KeyAliases     = "aliases"
)

// AutoSessionKey returns the per-user automatic snapshot key.
func AutoSessionKey(user string) string { return "session.auto." + user }

// ManualSessionKey returns the per-user manual snapshot key.
func ManualSessionKey(user string) string { return "session.manual." + user }

func storageErr(op string, err error) error {
	return types.NewError(types.KindStorageFailure, "storage %s failed: %v", op, err)
}
