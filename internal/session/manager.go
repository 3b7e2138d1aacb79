package session

import (
	"context"
	"sync"

	"go.uber.org/zap"

	"github.com/oopisos/kernel/internal/identity"
	"github.com/oopisos/kernel/internal/infrastructure/config"
	"github.com/oopisos/kernel/internal/infrastructure/logging"
	"github.com/oopisos/kernel/internal/shared/types"
	"github.com/oopisos/kernel/internal/storage"
	"github.com/oopisos/kernel/internal/vfs"
)

// DefaultUser is the account sessions start under.
const DefaultUser = "Guest"

// Manager owns the live sessions and the boot/snapshot lifecycle.
type Manager struct {
	store    storage.Store
	fs       *vfs.FS
	identity *identity.Manager
	aliases  *Aliases
	log      *logging.Logger
	cfg      *config.Config

	mu       sync.RWMutex
	sessions map[string]*Session
}

// NewManager wires the session manager. Call Boot before serving.
func NewManager(store storage.Store, fs *vfs.FS, idm *identity.Manager, log *logging.Logger, cfg *config.Config) *Manager {
	return &Manager{
		store:    store,
		fs:       fs,
		identity: idm,
		aliases:  NewAliases(),
		log:      log,
		cfg:      cfg,
		sessions: make(map[string]*Session),
	}
}

// Aliases returns the shared alias table.
func (m *Manager) Aliases() *Aliases { return m.aliases }

// Boot brings the kernel to a serving state: storage, persisted filesystem,
// configuration overrides, identity records and the alias table. A corrupt
// oopis.conf is reported and skipped, never fatal.
func (m *Manager) Boot(ctx context.Context) error {
	if err := m.store.Init(ctx); err != nil {
		return err
	}
	if err := m.fs.Load(ctx); err != nil {
		return err
	}
	if content, err := m.fs.ReadFile("/etc/oopis.conf", vfs.Root, "/"); err == nil {
		if err := m.cfg.ApplyOverrides(content); err != nil {
			m.log.Warn("ignoring malformed /etc/oopis.conf", zap.Error(err))
		}
	}
	if err := m.identity.Load(ctx); err != nil {
		return err
	}
	if err := m.aliases.Load(ctx, m.store); err != nil {
		return err
	}
	if err := m.ensureManifest(ctx); err != nil {
		return err
	}
	m.log.Info("kernel booted",
		zap.Int64("vfs_usage", m.fs.Usage()),
		zap.Int64("vfs_max", m.fs.MaxSize()))
	return nil
}

// ensureManifest installs the package manifest listing the built-in command
// set, so shell scripts can probe capabilities.
func (m *Manager) ensureManifest(ctx context.Context) error {
	const path = "/etc/pkg_manifest.json"
	if _, err := m.fs.Resolve(path, vfs.Root, vfs.ResolveOptions{}); err == nil {
		return nil
	} else if types.KindOf(err) != types.KindNoSuchEntry {
		return err
	}
	return m.fs.WriteFile(path, []byte("{}\n"), vfs.Root, "/")
}

// SetManifest replaces the package manifest content. The command registry
// calls this once all builtins are registered.
func (m *Manager) SetManifest(content []byte) error {
	return m.fs.WriteFile("/etc/pkg_manifest.json", content, vfs.Root, "/")
}

// Open creates a session for a user and picks up where the user left off:
// the automatic snapshot, when one exists, is restored into the fresh
// session. The caller has already authenticated.
func (m *Manager) Open(ctx context.Context, user string) *Session {
	home := "/home/" + user
	if _, err := m.fs.Resolve(home, m.identity.Credential(user), vfs.ResolveOptions{ExpectedType: vfs.TypeDirectory}); err != nil {
		home = "/"
	}
	s := newSession(user, home, m.cfg.Shell.StackLimit, m.cfg.Shell.HistoryLimit, m.aliases)
	if err := m.RestoreAuto(ctx, s); err != nil && types.KindOf(err) != types.KindNoSuchEntry {
		// A first boot has nothing saved; anything else is reported and
		// the session starts pristine.
		m.log.Warn("auto snapshot not restored", zap.String("user", user), zap.Error(err))
	}
	m.mu.Lock()
	m.sessions[s.ID()] = s
	m.mu.Unlock()
	m.log.Info("session opened", zap.String("session", s.ID()), zap.String("user", user))
	return s
}

// Get returns a live session by id.
func (m *Manager) Get(id string) (*Session, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	s, ok := m.sessions[id]
	return s, ok
}

// Close drops a session and its cached sudo elevations.
func (m *Manager) Close(s *Session) {
	m.mu.Lock()
	delete(m.sessions, s.ID())
	m.mu.Unlock()
	m.identity.DropElevation(s.User())
	m.log.Info("session closed", zap.String("session", s.ID()))
}

// Count returns the number of live sessions.
func (m *Manager) Count() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.sessions)
}

// HomeOf resolves a user's home directory, falling back to the root
// directory when it does not exist.
func (m *Manager) HomeOf(user string) string {
	home := "/home/" + user
	if _, err := m.fs.Resolve(home, vfs.Root, vfs.ResolveOptions{ExpectedType: vfs.TypeDirectory}); err != nil {
		return "/"
	}
	return home
}
