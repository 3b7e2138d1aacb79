package vfs

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/oopisos/kernel/internal/infrastructure/logging"
	"github.com/oopisos/kernel/internal/shared/types"
	"github.com/oopisos/kernel/internal/storage"
)

var (
	guest = Cred{User: "Guest", PrimaryGroup: "Guest", Groups: []string{"Guest"}}
	alice = Cred{User: "alice", PrimaryGroup: "alice", Groups: []string{"alice"}}
)

func newTestFS(t *testing.T) *FS {
	t.Helper()
	return New(storage.NewMemory(), logging.NewNop(), Options{})
}

func TestPristineTree(t *testing.T) {
	fs := newTestFS(t)
	for _, path := range []string{"/", "/home", "/home/Guest", "/etc", "/var/log", "/tmp", "/bin"} {
		res, err := fs.Resolve(path, Root, ResolveOptions{})
		require.NoError(t, err, path)
		assert.Equal(t, TypeDirectory, res.Node.Type, path)
	}
	res, err := fs.Resolve("/", Root, ResolveOptions{})
	require.NoError(t, err)
	assert.Equal(t, "root", res.Node.Owner)
	assert.Equal(t, "root", res.Node.Group)
	assert.Equal(t, 0o755, res.Node.Mode)

	_, err = fs.Resolve("/etc/sudoers", Root, ResolveOptions{ExpectedType: TypeFile})
	assert.NoError(t, err)
}

func TestResolveCanonicalPath(t *testing.T) {
	fs := newTestFS(t)
	cases := map[string]string{
		"/home/../home/./Guest": "/home/Guest",
		"//home//Guest/":        "/home/Guest",
		"/..":                   "/",
		"/.":                    "/",
	}
	for in, want := range cases {
		res, err := fs.Resolve(in, Root, ResolveOptions{})
		require.NoError(t, err, in)
		assert.Equal(t, want, res.Path, in)
	}

	// Relative paths anchor at cwd.
	res, err := fs.Resolve("Guest", Root, ResolveOptions{Cwd: "/home"})
	require.NoError(t, err)
	assert.Equal(t, "/home/Guest", res.Path)
}

func TestCreateAndReadFile(t *testing.T) {
	fs := newTestFS(t)
	before := time.Now()
	require.NoError(t, fs.WriteFile("/home/Guest/note.txt", []byte("hi\n"), guest, "/"))

	data, err := fs.ReadFile("/home/Guest/note.txt", guest, "/")
	require.NoError(t, err)
	assert.Equal(t, []byte("hi\n"), data)

	res, err := fs.Resolve("/home/Guest/note.txt", guest, ResolveOptions{})
	require.NoError(t, err)
	assert.Equal(t, "Guest", res.Node.Owner)
	assert.Equal(t, "Guest", res.Node.Group)
	assert.Equal(t, DefaultFileMode, res.Node.Mode)
	assert.False(t, res.Node.MTime.Before(before.Truncate(time.Second)))
}

func TestWritePermissionDenied(t *testing.T) {
	fs := newTestFS(t)
	// Guest cannot write under /etc (0755 root:root).
	err := fs.WriteFile("/etc/evil", []byte("x"), guest, "/")
	assert.Equal(t, types.KindPermissionDenied, types.KindOf(err))

	// Root always can.
	assert.NoError(t, fs.WriteFile("/etc/ok", []byte("x"), Root, "/"))
}

func TestTraversalRequiresExecute(t *testing.T) {
	fs := newTestFS(t)
	require.NoError(t, fs.Chmod("/etc", 0o700, Root, "/"))

	_, err := fs.ReadFile("/etc/sudoers", alice, "/")
	assert.Equal(t, types.KindPermissionDenied, types.KindOf(err))

	// Root is unaffected.
	_, err = fs.ReadFile("/etc/sudoers", Root, "/")
	assert.NoError(t, err)
}

func TestMkdirParentsIdempotent(t *testing.T) {
	fs := newTestFS(t)
	require.NoError(t, fs.Mkdir("/a/b/c", Root, true, "/"))
	require.NoError(t, fs.Mkdir("/a/b/c", Root, true, "/"))

	res, err := fs.Resolve("/a/b/c", Root, ResolveOptions{ExpectedType: TypeDirectory})
	require.NoError(t, err)
	assert.Equal(t, TypeDirectory, res.Node.Type)

	// Without -p an existing directory is an error.
	err = fs.Mkdir("/a/b/c", Root, false, "/")
	assert.Equal(t, types.KindAlreadyExists, types.KindOf(err))

	// Without -p missing ancestors are an error.
	err = fs.Mkdir("/x/y/z", Root, false, "/")
	assert.Equal(t, types.KindNoSuchEntry, types.KindOf(err))
}

func TestRemoveDirectorySemantics(t *testing.T) {
	fs := newTestFS(t)
	require.NoError(t, fs.Mkdir("/a/b", Root, true, "/"))
	require.NoError(t, fs.WriteFile("/a/b/f.txt", []byte("x"), Root, "/"))

	// rm without -r on a directory fails and leaves it intact.
	err := fs.Remove("/a", Root, RemoveOptions{})
	assert.Equal(t, types.KindWrongType, types.KindOf(err))
	_, err = fs.Resolve("/a/b/f.txt", Root, ResolveOptions{})
	assert.NoError(t, err)

	// rmdir refuses non-empty directories.
	err = fs.Remove("/a", Root, RemoveOptions{RequireEmpty: true})
	assert.Equal(t, types.KindNotEmpty, types.KindOf(err))

	// Recursive removal succeeds.
	require.NoError(t, fs.Remove("/a", Root, RemoveOptions{Recursive: true}))
	_, err = fs.Resolve("/a", Root, ResolveOptions{})
	assert.Equal(t, types.KindNoSuchEntry, types.KindOf(err))
}

func TestRemoveRootRefused(t *testing.T) {
	fs := newTestFS(t)
	err := fs.Remove("/", Root, RemoveOptions{Recursive: true})
	assert.Equal(t, types.KindInvalidPath, types.KindOf(err))
}

func TestSymlinkResolution(t *testing.T) {
	fs := newTestFS(t)
	require.NoError(t, fs.WriteFile("/home/Guest/real.txt", []byte("data"), Root, "/"))
	require.NoError(t, fs.Symlink("/home/Guest/real.txt", "/home/Guest/link", Root, "/"))

	// Following the link reads the target.
	data, err := fs.ReadFile("/home/Guest/link", Root, "/")
	require.NoError(t, err)
	assert.Equal(t, []byte("data"), data)

	// KeepLastSymlink returns the link node itself.
	res, err := fs.Resolve("/home/Guest/link", Root, ResolveOptions{KeepLastSymlink: true})
	require.NoError(t, err)
	assert.Equal(t, TypeSymlink, res.Node.Type)
	assert.Equal(t, "/home/Guest/real.txt", res.Node.Target)

	// Relative targets resolve against the link's directory.
	require.NoError(t, fs.Symlink("real.txt", "/home/Guest/rel", Root, "/"))
	data, err = fs.ReadFile("/home/Guest/rel", Root, "/")
	require.NoError(t, err)
	assert.Equal(t, []byte("data"), data)
}

func TestSymlinkLoop(t *testing.T) {
	fs := newTestFS(t)
	require.NoError(t, fs.Symlink("/tmp/b", "/tmp/a", Root, "/"))
	require.NoError(t, fs.Symlink("/tmp/a", "/tmp/b", Root, "/"))

	_, err := fs.ReadFile("/tmp/a", Root, "/")
	assert.Equal(t, types.KindLoop, types.KindOf(err))
}

func TestNoSpace(t *testing.T) {
	fs := New(storage.NewMemory(), logging.NewNop(), Options{MaxSize: 8 * 1024})
	big := make([]byte, 16*1024)

	err := fs.WriteFile("/tmp/big", big, Root, "/")
	assert.Equal(t, types.KindNoSpace, types.KindOf(err))

	// The failed write left no node behind.
	_, err = fs.Resolve("/tmp/big", Root, ResolveOptions{})
	assert.Equal(t, types.KindNoSuchEntry, types.KindOf(err))
}

func TestChmodRoundTrip(t *testing.T) {
	fs := newTestFS(t)
	require.NoError(t, fs.WriteFile("/tmp/f", nil, Root, "/"))
	for _, mode := range []int{0o000, 0o400, 0o644, 0o755, 0o777} {
		require.NoError(t, fs.Chmod("/tmp/f", mode, Root, "/"))
		res, err := fs.Resolve("/tmp/f", Root, ResolveOptions{})
		require.NoError(t, err)
		assert.Equal(t, mode, res.Node.Mode)
	}

	// Non-owner cannot chmod.
	err := fs.Chmod("/tmp/f", 0o600, alice, "/")
	assert.Equal(t, types.KindNotOwner, types.KindOf(err))
}

func TestDirectoryMTimePropagation(t *testing.T) {
	clock := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	fs := New(storage.NewMemory(), logging.NewNop(), Options{Clock: func() time.Time { return clock }})

	clock = clock.Add(time.Hour)
	require.NoError(t, fs.WriteFile("/tmp/f", nil, Root, "/"))
	res, _ := fs.Resolve("/tmp", Root, ResolveOptions{})
	assert.Equal(t, clock, res.Node.MTime)

	clock = clock.Add(time.Hour)
	require.NoError(t, fs.Remove("/tmp/f", Root, RemoveOptions{}))
	res, _ = fs.Resolve("/tmp", Root, ResolveOptions{})
	assert.Equal(t, clock, res.Node.MTime)
}

func TestSaveLoadRoundTrip(t *testing.T) {
	ctx := context.Background()
	store := storage.NewMemory()
	log := logging.NewNop()

	fs := New(store, log, Options{})
	require.NoError(t, fs.WriteFile("/home/Guest/a.txt", []byte("alpha"), guest, "/"))
	require.NoError(t, fs.Mkdir("/home/Guest/dir", guest, false, "/"))
	require.NoError(t, fs.Chmod("/home/Guest/a.txt", 0o600, guest, "/"))
	require.NoError(t, fs.Save(ctx))

	restored := New(store, log, Options{})
	require.NoError(t, restored.Load(ctx))

	want, err := fs.Serialize()
	require.NoError(t, err)
	got, err := restored.Serialize()
	require.NoError(t, err)
	assert.JSONEq(t, string(want), string(got))

	res, err := restored.Resolve("/home/Guest/a.txt", guest, ResolveOptions{})
	require.NoError(t, err)
	assert.Equal(t, 0o600, res.Node.Mode)
	assert.Equal(t, "Guest", res.Node.Owner)
	assert.Equal(t, []byte("alpha"), res.Node.Content)
}

func TestSerializeIsDeterministic(t *testing.T) {
	fs := newTestFS(t)
	// Several siblings so map ordering would show if it leaked through.
	for _, name := range []string{"zeta", "alpha", "mid", "beta", "omega"} {
		require.NoError(t, fs.WriteFile("/home/Guest/"+name, []byte(name), guest, "/"))
	}

	first, err := fs.Serialize()
	require.NoError(t, err)
	for i := 0; i < 5; i++ {
		again, err := fs.Serialize()
		require.NoError(t, err)
		assert.Equal(t, string(first), string(again))
	}

	// Byte stability survives a round trip through Restore.
	restored := newTestFS(t)
	require.NoError(t, restored.Restore(first))
	again, err := restored.Serialize()
	require.NoError(t, err)
	assert.Equal(t, string(first), string(again))
}

func TestPlanCopyMove(t *testing.T) {
	fs := newTestFS(t)
	require.NoError(t, fs.WriteFile("/tmp/src.txt", []byte("content"), Root, "/"))
	require.NoError(t, fs.Mkdir("/tmp/dest", Root, false, "/"))

	// Copy into a directory keeps the base name.
	items, err := fs.PlanCopyMove([]string{"/tmp/src.txt"}, "/tmp/dest", Root, PlanOptions{})
	require.NoError(t, err)
	require.Len(t, items, 1)
	assert.Equal(t, "/tmp/dest/src.txt", items[0].DestPath)
	assert.False(t, items[0].Overwrite)
	require.NoError(t, fs.Apply(items, Root, PlanOptions{}, nil))

	data, err := fs.ReadFile("/tmp/dest/src.txt", Root, "/")
	require.NoError(t, err)
	assert.Equal(t, []byte("content"), data)
	// The original survives a copy.
	_, err = fs.Resolve("/tmp/src.txt", Root, ResolveOptions{})
	assert.NoError(t, err)

	// Move removes the original.
	items, err = fs.PlanCopyMove([]string{"/tmp/src.txt"}, "/tmp/renamed.txt", Root, PlanOptions{Move: true})
	require.NoError(t, err)
	require.NoError(t, fs.Apply(items, Root, PlanOptions{Move: true}, nil))
	_, err = fs.Resolve("/tmp/src.txt", Root, ResolveOptions{})
	assert.Equal(t, types.KindNoSuchEntry, types.KindOf(err))
	_, err = fs.Resolve("/tmp/renamed.txt", Root, ResolveOptions{})
	assert.NoError(t, err)
}

func TestPlanRefusesTypeConflict(t *testing.T) {
	fs := newTestFS(t)
	require.NoError(t, fs.WriteFile("/tmp/f", []byte("x"), Root, "/"))
	require.NoError(t, fs.Mkdir("/tmp/d", Root, false, "/"))

	// Moving a file onto an existing directory name inside a directory
	// destination overwrites nothing of a different type.
	require.NoError(t, fs.Mkdir("/tmp/dest", Root, false, "/"))
	require.NoError(t, fs.Mkdir("/tmp/dest/f", Root, false, "/"))
	_, err := fs.PlanCopyMove([]string{"/tmp/f"}, "/tmp/dest", Root, PlanOptions{Move: true})
	assert.Equal(t, types.KindWrongType, types.KindOf(err))
}

func TestPlanRefusesMoveIntoSelf(t *testing.T) {
	fs := newTestFS(t)
	require.NoError(t, fs.Mkdir("/tmp/a/b", Root, true, "/"))
	_, err := fs.PlanCopyMove([]string{"/tmp/a"}, "/tmp/a/b", Root, PlanOptions{Move: true})
	assert.Equal(t, types.KindInvalidPath, types.KindOf(err))
}

func TestCopyRequiresRecursiveForDirs(t *testing.T) {
	fs := newTestFS(t)
	require.NoError(t, fs.Mkdir("/tmp/d", Root, false, "/"))
	_, err := fs.PlanCopyMove([]string{"/tmp/d"}, "/tmp/d2", Root, PlanOptions{})
	assert.Equal(t, types.KindWrongType, types.KindOf(err))

	items, err := fs.PlanCopyMove([]string{"/tmp/d"}, "/tmp/d2", Root, PlanOptions{Recursive: true})
	require.NoError(t, err)
	require.NoError(t, fs.Apply(items, Root, PlanOptions{Recursive: true}, nil))
	_, err = fs.Resolve("/tmp/d2", Root, ResolveOptions{ExpectedType: TypeDirectory})
	assert.NoError(t, err)
}

func TestModeString(t *testing.T) {
	n := &Node{Type: TypeDirectory, Mode: 0o755}
	assert.Equal(t, "drwxr-xr-x", n.ModeString())
	f := &Node{Type: TypeFile, Mode: 0o640}
	assert.Equal(t, "-rw-r-----", f.ModeString())
}
