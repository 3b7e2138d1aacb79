package session

import (
	"context"
	"encoding/json"

	"github.com/bytedance/sonic"
	"go.uber.org/zap"

	"github.com/oopisos/kernel/internal/shared/types"
	"github.com/oopisos/kernel/internal/storage"
)

// Snapshot is the persisted image of a session plus the filesystem it was
// looking at. Restores are all-or-nothing: the snapshot is fully validated
// before any live state changes.
type Snapshot struct {
	SchemaVersion int               `json:"schemaVersion"`
	CurrentUser   string            `json:"currentUser"`
	CurrentPath   string            `json:"currentPath"`
	History       []string          `json:"history"`
	Aliases       map[string]string `json:"aliases"`
	Environment   map[string]string `json:"environment"`
	FSData        json.RawMessage   `json:"fsData"`
}

// snapshot captures the current state for a session.
func (m *Manager) snapshot(s *Session) (*Snapshot, error) {
	fsData, err := m.fs.Serialize()
	if err != nil {
		return nil, err
	}
	return &Snapshot{
		SchemaVersion: m.cfg.Session.SchemaVersion,
		CurrentUser:   s.User(),
		CurrentPath:   s.Cwd(),
		History:       s.History().All(),
		Aliases:       s.Aliases().All(),
		Environment:   s.Env().All(),
		FSData:        fsData,
	}, nil
}

// SaveAuto writes the automatic per-user snapshot, taken after every
// state-modifying command.
func (m *Manager) SaveAuto(ctx context.Context, s *Session) error {
	return m.save(ctx, s, storage.AutoSessionKey(s.User()))
}

// SaveManual writes the explicit snapshot (savestate).
func (m *Manager) SaveManual(ctx context.Context, s *Session) error {
	return m.save(ctx, s, storage.ManualSessionKey(s.User()))
}

func (m *Manager) save(ctx context.Context, s *Session, key string) error {
	snap, err := m.snapshot(s)
	if err != nil {
		return err
	}
	data, err := sonic.Marshal(snap)
	if err != nil {
		return types.NewError(types.KindStorageFailure, "serialize snapshot: %v", err)
	}
	if err := m.store.Set(ctx, key, data); err != nil {
		return err
	}
	// The shared alias table also lives under its own key so boot can load
	// it before any snapshot is touched.
	if err := m.aliases.Save(ctx, m.store); err != nil {
		return err
	}
	m.log.Debug("snapshot saved", zap.String("key", key), zap.Int("bytes", len(data)))
	return nil
}

// RestoreAuto restores the automatic snapshot for the session's user.
func (m *Manager) RestoreAuto(ctx context.Context, s *Session) error {
	return m.restore(ctx, s, storage.AutoSessionKey(s.User()))
}

// RestoreManual restores the manual snapshot (loadstate).
func (m *Manager) RestoreManual(ctx context.Context, s *Session) error {
	return m.restore(ctx, s, storage.ManualSessionKey(s.User()))
}

func (m *Manager) restore(ctx context.Context, s *Session, key string) error {
	data, ok, err := m.store.Get(ctx, key)
	if err != nil {
		return err
	}
	if !ok {
		return types.NewError(types.KindNoSuchEntry, "no saved state for %s", s.User())
	}
	var snap Snapshot
	if err := sonic.Unmarshal(data, &snap); err != nil {
		return types.NewError(types.KindIncompatibleSnapshot, "corrupt snapshot under %s: %v", key, err)
	}
	if snap.SchemaVersion != m.cfg.Session.SchemaVersion {
		return types.NewError(types.KindIncompatibleSnapshot,
			"snapshot schema v%d does not match kernel schema v%d", snap.SchemaVersion, m.cfg.Session.SchemaVersion)
	}
	// The filesystem swap parses before it replaces, so a bad blob leaves
	// everything untouched.
	if err := m.fs.Restore(snap.FSData); err != nil {
		return err
	}
	s.Reset(snap.CurrentUser, snap.CurrentPath)
	s.Env().Replace(snap.Environment)
	s.History().Replace(snap.History)
	s.Aliases().Replace(snap.Aliases)
	m.log.Info("snapshot restored", zap.String("key", key), zap.String("user", snap.CurrentUser))
	return nil
}

// DropAuto discards the automatic snapshot, used by reboot to force a
// pristine next boot for the user.
func (m *Manager) DropAuto(ctx context.Context, user string) error {
	return m.store.Remove(ctx, storage.AutoSessionKey(user))
}
