package session

import (
	"context"
	"testing"

	"github.com/bytedance/sonic"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/oopisos/kernel/internal/identity"
	"github.com/oopisos/kernel/internal/infrastructure/config"
	"github.com/oopisos/kernel/internal/infrastructure/logging"
	"github.com/oopisos/kernel/internal/shared/types"
	"github.com/oopisos/kernel/internal/storage"
	"github.com/oopisos/kernel/internal/vfs"
)

func newTestManager(t *testing.T) (*Manager, *vfs.FS, storage.Store) {
	t.Helper()
	store := storage.NewMemory()
	log := logging.NewNop()
	fs := vfs.New(store, log, vfs.Options{})
	idm := identity.NewManager(store, fs, log, identity.Options{})
	m := NewManager(store, fs, idm, log, config.Default())
	require.NoError(t, m.Boot(context.Background()))
	return m, fs, store
}

func TestBoot(t *testing.T) {
	m, fs, _ := newTestManager(t)

	// Defaults exist and the package manifest is installed.
	_, err := fs.Resolve("/etc/pkg_manifest.json", vfs.Root, vfs.ResolveOptions{})
	assert.NoError(t, err)
	assert.NoError(t, m.identity.Authenticate("Guest", ""))
}

func TestBootAppliesConfOverrides(t *testing.T) {
	store := storage.NewMemory()
	log := logging.NewNop()
	fs := vfs.New(store, log, vfs.Options{})
	require.NoError(t, fs.WriteFile("/etc/oopis.conf", []byte("history_limit: 10\n"), vfs.Root, "/"))
	require.NoError(t, fs.Save(context.Background()))

	cfg := config.Default()
	idm := identity.NewManager(store, fs, log, identity.Options{})
	m := NewManager(store, fs, idm, log, cfg)
	require.NoError(t, m.Boot(context.Background()))
	assert.Equal(t, 10, cfg.Shell.HistoryLimit)
}

func TestBootSurvivesMalformedConf(t *testing.T) {
	store := storage.NewMemory()
	log := logging.NewNop()
	fs := vfs.New(store, log, vfs.Options{})
	require.NoError(t, fs.WriteFile("/etc/oopis.conf", []byte(":\n\t- broken"), vfs.Root, "/"))
	require.NoError(t, fs.Save(context.Background()))

	idm := identity.NewManager(store, fs, log, identity.Options{})
	m := NewManager(store, fs, idm, log, config.Default())
	assert.NoError(t, m.Boot(context.Background()))
}

func TestOpenSession(t *testing.T) {
	m, _, _ := newTestManager(t)
	s := m.Open(context.Background(), DefaultUser)
	assert.Equal(t, "Guest", s.User())
	assert.Equal(t, "/home/Guest", s.Cwd())
	assert.Equal(t, "/home/Guest", s.Env().Get("HOME"))
	assert.Equal(t, "Guest", s.Env().Get("USER"))
	assert.Equal(t, 1, m.Count())

	m.Close(s)
	assert.Equal(t, 0, m.Count())
}

func TestIdentityStack(t *testing.T) {
	m, _, _ := newTestManager(t)
	require.NoError(t, m.identity.Register(context.Background(), "alice", "pw123"))

	s := m.Open(context.Background(), DefaultUser)
	require.NoError(t, s.Env().Set("MARK", "guest-value"))

	require.NoError(t, s.Push("alice", "/home/alice"))
	assert.Equal(t, "alice", s.User())
	assert.Equal(t, "/home/alice", s.Cwd())
	// The new frame has a fresh environment.
	assert.Equal(t, "", s.Env().Get("MARK"))
	assert.Equal(t, "alice", s.Env().Get("USER"))

	left, err := s.Pop()
	require.NoError(t, err)
	assert.Equal(t, "alice", left)
	// The previous frame's environment is intact.
	assert.Equal(t, "guest-value", s.Env().Get("MARK"))
	assert.Equal(t, "Guest", s.User())

	_, err = s.Pop()
	assert.Equal(t, types.KindBadArgValue, types.KindOf(err))
}

func TestIdentityStackLimit(t *testing.T) {
	m, _, _ := newTestManager(t)
	s := m.Open(context.Background(), DefaultUser)
	for i := s.Depth(); i < m.cfg.Shell.StackLimit; i++ {
		require.NoError(t, s.Push("root", "/"))
	}
	err := s.Push("root", "/")
	assert.Equal(t, types.KindBadArgValue, types.KindOf(err))
}

func TestHistoryBounds(t *testing.T) {
	h := NewHistory(3)
	h.Add("a")
	h.Add("a") // consecutive duplicate skipped
	h.Add("b")
	h.Add("c")
	h.Add("d")
	assert.Equal(t, []string{"b", "c", "d"}, h.All())
	h.Clear()
	assert.Empty(t, h.All())
}

func TestSnapshotRoundTrip(t *testing.T) {
	ctx := context.Background()
	m, fs, _ := newTestManager(t)
	s := m.Open(context.Background(), DefaultUser)

	guest := m.identity.Credential("Guest")
	require.NoError(t, fs.WriteFile("/home/Guest/notes", []byte("draft"), guest, "/"))
	s.History().Add("echo draft > notes")
	s.Aliases().Set("ll", "ls -l")
	require.NoError(t, s.Env().Set("COLOR", "green"))
	require.NoError(t, m.SaveAuto(ctx, s))

	// Mutate everything, then restore.
	require.NoError(t, fs.Remove("/home/Guest/notes", guest, vfs.RemoveOptions{}))
	s.History().Clear()
	s.Aliases().Remove("ll")
	s.Env().Unset("COLOR")

	require.NoError(t, m.RestoreAuto(ctx, s))
	content, err := fs.ReadFile("/home/Guest/notes", guest, "/")
	require.NoError(t, err)
	assert.Equal(t, "draft", string(content))
	assert.Equal(t, []string{"echo draft > notes"}, s.History().All())
	_, ok := s.Aliases().Get("ll")
	assert.True(t, ok)
	assert.Equal(t, "green", s.Env().Get("COLOR"))
}

func TestOpenRestoresAutoSnapshot(t *testing.T) {
	ctx := context.Background()
	m, _, _ := newTestManager(t)

	s := m.Open(ctx, DefaultUser)
	s.SetCwd("/tmp")
	require.NoError(t, s.Env().Set("THEME", "dark"))
	s.History().Add("cd /tmp")
	require.NoError(t, m.SaveAuto(ctx, s))
	m.Close(s)

	// A later connection lands where the last one left off.
	s2 := m.Open(ctx, DefaultUser)
	assert.Equal(t, "/tmp", s2.Cwd())
	assert.Equal(t, "dark", s2.Env().Get("THEME"))
	assert.Equal(t, []string{"cd /tmp"}, s2.History().All())
}

func TestRestoreMissingSnapshot(t *testing.T) {
	m, _, _ := newTestManager(t)
	s := m.Open(context.Background(), DefaultUser)
	err := m.RestoreManual(context.Background(), s)
	assert.Equal(t, types.KindNoSuchEntry, types.KindOf(err))
}

func TestRestoreIncompatibleSchema(t *testing.T) {
	ctx := context.Background()
	m, _, store := newTestManager(t)
	s := m.Open(context.Background(), DefaultUser)
	require.NoError(t, m.SaveAuto(ctx, s))

	m.cfg.Session.SchemaVersion = 2
	err := m.RestoreAuto(ctx, s)
	assert.Equal(t, types.KindIncompatibleSnapshot, types.KindOf(err))

	// Garbage under the key is also refused.
	require.NoError(t, store.Set(ctx, storage.AutoSessionKey("Guest"), []byte("not json")))
	m.cfg.Session.SchemaVersion = 1
	err = m.RestoreAuto(ctx, s)
	assert.Equal(t, types.KindIncompatibleSnapshot, types.KindOf(err))
}

func TestBackupRoundTrip(t *testing.T) {
	ctx := context.Background()
	m, fs, _ := newTestManager(t)
	require.NoError(t, m.identity.Register(ctx, "alice", "pw123"))
	guest := m.identity.Credential("Guest")
	require.NoError(t, fs.WriteFile("/home/Guest/keep", []byte("me"), guest, "/"))
	m.aliases.Set("ll", "ls -l")

	data, err := m.Backup(ctx)
	require.NoError(t, err)

	// Wipe, then restore onto a fresh system.
	store2 := storage.NewMemory()
	log := logging.NewNop()
	fs2 := vfs.New(store2, log, vfs.Options{})
	idm2 := identity.NewManager(store2, fs2, log, identity.Options{})
	m2 := NewManager(store2, fs2, idm2, log, config.Default())
	require.NoError(t, m2.Boot(ctx))

	require.NoError(t, m2.RestoreBackup(ctx, data))
	content, err := fs2.ReadFile("/home/Guest/keep", idm2.Credential("Guest"), "/")
	require.NoError(t, err)
	assert.Equal(t, "me", string(content))
	assert.NoError(t, idm2.Authenticate("alice", "pw123"))
	_, ok := m2.Aliases().Get("ll")
	assert.True(t, ok)
}

func TestBackupChecksumStableAcrossRestore(t *testing.T) {
	ctx := context.Background()
	m, fs, _ := newTestManager(t)
	guest := m.identity.Credential("Guest")
	// Enough siblings that unstable key ordering would change the bytes.
	for _, name := range []string{"zeta", "alpha", "mid", "beta"} {
		require.NoError(t, fs.WriteFile("/home/Guest/"+name, []byte(name), guest, "/"))
	}

	first, err := m.Backup(ctx)
	require.NoError(t, err)

	store2 := storage.NewMemory()
	log := logging.NewNop()
	fs2 := vfs.New(store2, log, vfs.Options{})
	idm2 := identity.NewManager(store2, fs2, log, identity.Options{})
	m2 := NewManager(store2, fs2, idm2, log, config.Default())
	require.NoError(t, m2.Boot(ctx))
	require.NoError(t, m2.RestoreBackup(ctx, first))

	second, err := m2.Backup(ctx)
	require.NoError(t, err)

	var a, b BackupDocument
	require.NoError(t, sonic.Unmarshal(first, &a))
	require.NoError(t, sonic.Unmarshal(second, &b))
	assert.Equal(t, a.Checksum, b.Checksum)
}

func TestBackupChecksumMismatch(t *testing.T) {
	ctx := context.Background()
	m, _, _ := newTestManager(t)
	data, err := m.Backup(ctx)
	require.NoError(t, err)

	tampered := []byte(string(data))
	// Flip a byte inside the payload without breaking JSON.
	for i := range tampered {
		if tampered[i] == 'G' {
			tampered[i] = 'H'
			break
		}
	}
	err = m.RestoreBackup(ctx, tampered)
	assert.Equal(t, types.KindChecksumMismatch, types.KindOf(err))
}

func TestBackupWrongFormat(t *testing.T) {
	m, _, _ := newTestManager(t)
	err := m.RestoreBackup(context.Background(), []byte(`{"dataType":"something_else"}`))
	assert.Equal(t, types.KindIncompatibleSnapshot, types.KindOf(err))

	// A future format revision is refused, not misread.
	err = m.RestoreBackup(context.Background(), []byte(`{"dataType":"OopisOS_System_State_Backup/v9"}`))
	assert.Equal(t, types.KindIncompatibleSnapshot, types.KindOf(err))
}
