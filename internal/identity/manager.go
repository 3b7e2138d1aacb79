// Package identity implements users, groups, the sudoers policy and the
// privilege elevation cache.
package identity

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/bytedance/sonic"
	"go.uber.org/zap"

	"github.com/oopisos/kernel/internal/infrastructure/logging"
	"github.com/oopisos/kernel/internal/shared/types"
	"github.com/oopisos/kernel/internal/shared/utils"
	"github.com/oopisos/kernel/internal/storage"
	"github.com/oopisos/kernel/internal/vfs"
)

// User is one account. An empty PasswordHash means a passwordless account.
type User struct {
	Name         string `json:"name"`
	PasswordHash string `json:"hash,omitempty"`
	Salt         string `json:"salt,omitempty"`
	PrimaryGroup string `json:"primaryGroup"`
}

// Manager owns users, groups, the sudo credential cache and the audit log.
type Manager struct {
	mu     sync.RWMutex
	users  map[string]*User
	groups map[string]map[string]bool // group -> member set

	cache       map[cacheKey]time.Time
	sudoTimeout time.Duration

	store storage.Store
	fs    *vfs.FS
	log   *logging.Logger
	now   func() time.Time
}

type cacheKey struct {
	user string
	tty  string
}

// Options configures the identity manager.
type Options struct {
	SudoTimeout time.Duration
	Clock       func() time.Time
}

// NewManager creates an identity manager. Call Load during boot to pull
// persisted records; defaults (root, Guest) are installed when absent.
func NewManager(store storage.Store, fs *vfs.FS, log *logging.Logger, opts Options) *Manager {
	if opts.SudoTimeout <= 0 {
		opts.SudoTimeout = 15 * time.Minute
	}
	if opts.Clock == nil {
		opts.Clock = time.Now
	}
	return &Manager{
		users:       make(map[string]*User),
		groups:      make(map[string]map[string]bool),
		cache:       make(map[cacheKey]time.Time),
		sudoTimeout: opts.SudoTimeout,
		store:       store,
		fs:          fs,
		log:         log,
		now:         opts.Clock,
	}
}

// Load restores credential and group records, seeding the default accounts
// when their records are absent. Idempotent.
func (m *Manager) Load(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if data, ok, err := m.store.Get(ctx, storage.KeyCredentials); err != nil {
		return err
	} else if ok {
		if err := sonic.Unmarshal(data, &m.users); err != nil {
			return types.NewError(types.KindStorageFailure, "parse credentials: %v", err)
		}
	}
	if data, ok, err := m.store.Get(ctx, storage.KeyGroups); err != nil {
		return err
	} else if ok {
		if err := sonic.Unmarshal(data, &m.groups); err != nil {
			return types.NewError(types.KindStorageFailure, "parse groups: %v", err)
		}
	}

	for _, name := range []string{"root", "Guest"} {
		if _, ok := m.users[name]; !ok {
			m.users[name] = &User{Name: name, PrimaryGroup: name}
			m.ensureGroupLocked(name, name)
			m.log.Info("default user initialized", zap.String("user", name))
		}
	}
	return m.persistLocked(ctx)
}

// persistLocked writes the credential and group records.
func (m *Manager) persistLocked(ctx context.Context) error {
	creds, err := sonic.Marshal(m.users)
	if err != nil {
		return types.NewError(types.KindStorageFailure, "serialize credentials: %v", err)
	}
	if err := m.store.Set(ctx, storage.KeyCredentials, creds); err != nil {
		return err
	}
	groups, err := sonic.Marshal(m.groups)
	if err != nil {
		return types.NewError(types.KindStorageFailure, "serialize groups: %v", err)
	}
	return m.store.Set(ctx, storage.KeyGroups, groups)
}

func (m *Manager) ensureGroupLocked(group, member string) {
	if m.groups[group] == nil {
		m.groups[group] = make(map[string]bool)
	}
	if member != "" {
		m.groups[group][member] = true
	}
}

// Register creates a user. Password may be empty for a passwordless account.
// A same-named primary group is created and the home directory installed at
// /home/<name> with mode 0700.
func (m *Manager) Register(ctx context.Context, name, password string) error {
	if utils.ReservedUsernames[normalize(name)] {
		return types.NewError(types.KindReservedName, "useradd: %q is reserved", name)
	}
	if err := utils.ValidateUsername(name); err != nil {
		return types.NewError(types.KindBadArgValue, "useradd: %v", err)
	}
	if password != "" {
		if err := utils.ValidatePassword(password); err != nil {
			return types.NewError(types.KindWeakPassword, "useradd: %v", err)
		}
	}

	m.mu.Lock()
	if _, exists := m.users[name]; exists {
		m.mu.Unlock()
		return types.NewError(types.KindUserExists, "useradd: user %q already exists", name)
	}
	u := &User{Name: name, PrimaryGroup: name}
	if password != "" {
		u.Salt = utils.NewSalt()
		u.PasswordHash = utils.HashPassword(u.Salt, password)
	}
	m.users[name] = u
	m.ensureGroupLocked(name, name)
	err := m.persistLocked(ctx)
	m.mu.Unlock()
	if err != nil {
		return err
	}

	mode := vfs.HomeDirMode
	home := "/home/" + name
	if _, err := m.fs.CreateOrUpdate(home, nil, vfs.Root, vfs.WriteOptions{Directory: true, Parents: true, Mode: &mode}); err != nil {
		return err
	}
	if err := m.fs.Chown(home, name, vfs.Root, "/"); err != nil {
		return err
	}
	if err := m.fs.Chgrp(home, name, vfs.Root, "/"); err != nil {
		return err
	}
	m.log.Info("user registered", zap.String("user", name))
	return nil
}

// Remove deletes a user and its group memberships. The home directory is
// removed only when removeHome is set.
func (m *Manager) Remove(ctx context.Context, name string, removeHome bool) error {
	if name == "root" || name == "Guest" {
		return types.NewError(types.KindReservedName, "removeuser: cannot remove %q", name)
	}
	m.mu.Lock()
	if _, ok := m.users[name]; !ok {
		m.mu.Unlock()
		return noSuchUser(name)
	}
	delete(m.users, name)
	delete(m.groups, name)
	for _, members := range m.groups {
		delete(members, name)
	}
	for key := range m.cache {
		if key.user == name {
			delete(m.cache, key)
		}
	}
	err := m.persistLocked(ctx)
	m.mu.Unlock()
	if err != nil {
		return err
	}

	if removeHome {
		if err := m.fs.Remove("/home/"+name, vfs.Root, vfs.RemoveOptions{Recursive: true}); err != nil &&
			types.KindOf(err) != types.KindNoSuchEntry {
			return err
		}
	}
	m.log.Info("user removed", zap.String("user", name), zap.Bool("home_removed", removeHome))
	return nil
}

// Authenticate verifies a password against the stored credential. A
// passwordless account accepts any empty password.
func (m *Manager) Authenticate(name, password string) error {
	m.mu.RLock()
	u, ok := m.users[name]
	m.mu.RUnlock()
	if !ok {
		return noSuchUser(name)
	}
	if u.PasswordHash == "" {
		if password == "" {
			return nil
		}
		return authFailed()
	}
	if utils.HashPassword(u.Salt, password) != u.PasswordHash {
		return authFailed()
	}
	return nil
}

// SetPassword replaces a user's credential. An empty password clears it.
func (m *Manager) SetPassword(ctx context.Context, name, password string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	u, ok := m.users[name]
	if !ok {
		return noSuchUser(name)
	}
	if password == "" {
		u.Salt, u.PasswordHash = "", ""
	} else {
		if err := utils.ValidatePassword(password); err != nil {
			return types.NewError(types.KindWeakPassword, "passwd: %v", err)
		}
		u.Salt = utils.NewSalt()
		u.PasswordHash = utils.HashPassword(u.Salt, password)
	}
	return m.persistLocked(ctx)
}

// Lookup returns a user record.
func (m *Manager) Lookup(name string) (*User, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	u, ok := m.users[name]
	if !ok {
		return nil, false
	}
	dup := *u
	return &dup, true
}

// Users returns all usernames, sorted.
func (m *Manager) Users() []string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	names := make([]string, 0, len(m.users))
	for name := range m.users {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// GroupsOf returns every group the user belongs to: the primary group plus
// supplementary memberships, sorted.
func (m *Manager) GroupsOf(name string) []string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.groupsOfLocked(name)
}

func (m *Manager) groupsOfLocked(name string) []string {
	set := map[string]bool{}
	if u, ok := m.users[name]; ok {
		set[u.PrimaryGroup] = true
	}
	for group, members := range m.groups {
		if members[name] {
			set[group] = true
		}
	}
	groups := make([]string, 0, len(set))
	for g := range set {
		groups = append(groups, g)
	}
	sort.Strings(groups)
	return groups
}

// Credential builds the filesystem credential for a user. Unknown users get
// an empty credential that only passes "other" permission checks.
func (m *Manager) Credential(name string) vfs.Cred {
	m.mu.RLock()
	defer m.mu.RUnlock()
	u, ok := m.users[name]
	if !ok {
		return vfs.Cred{User: name}
	}
	return vfs.Cred{User: name, PrimaryGroup: u.PrimaryGroup, Groups: m.groupsOfLocked(name)}
}

// AddGroup creates a group.
func (m *Manager) AddGroup(ctx context.Context, name string) error {
	if !utils.GroupPattern.MatchString(name) {
		return types.NewError(types.KindBadArgValue, "groupadd: invalid group name %q", name)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.groups[name]; ok {
		return types.NewError(types.KindAlreadyExists, "groupadd: group %q already exists", name)
	}
	m.groups[name] = make(map[string]bool)
	return m.persistLocked(ctx)
}

// DeleteGroup removes a group. Primary groups cannot be deleted.
func (m *Manager) DeleteGroup(ctx context.Context, name string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.groups[name]; !ok {
		return types.NewError(types.KindNoSuchEntry, "groupdel: no such group %q", name)
	}
	for _, u := range m.users {
		if u.PrimaryGroup == name {
			return types.NewError(types.KindBadArgValue, "groupdel: %q is the primary group of %q", name, u.Name)
		}
	}
	delete(m.groups, name)
	return m.persistLocked(ctx)
}

// AddToGroup adds a user to a supplementary group.
func (m *Manager) AddToGroup(ctx context.Context, user, group string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.users[user]; !ok {
		return noSuchUser(user)
	}
	if _, ok := m.groups[group]; !ok {
		return types.NewError(types.KindNoSuchEntry, "usermod: no such group %q", group)
	}
	m.groups[group][user] = true
	return m.persistLocked(ctx)
}

// RemoveFromGroup removes a supplementary membership.
func (m *Manager) RemoveFromGroup(ctx context.Context, user, group string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	members, ok := m.groups[group]
	if !ok {
		return types.NewError(types.KindNoSuchEntry, "usermod: no such group %q", group)
	}
	delete(members, user)
	return m.persistLocked(ctx)
}

// Groups returns all group names, sorted.
func (m *Manager) Groups() []string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	names := make([]string, 0, len(m.groups))
	for name := range m.groups {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

func normalize(name string) string {
	b := []byte(name)
	for i := range b {
		if b[i] >= 'A' && b[i] <= 'Z' {
			b[i] += 'a' - 'A'
		}
	}
	return string(b)
}

func noSuchUser(name string) error {
	return types.NewError(types.KindNoSuchUser, "no such user: %s", name)
}

func authFailed() error {
	return types.NewError(types.KindAuthFailed, "authentication failed")
}
