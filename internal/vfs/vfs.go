package vfs

import (
	"strings"
	"sync"
	"time"

	"github.com/oopisos/kernel/internal/infrastructure/logging"
	"github.com/oopisos/kernel/internal/storage"
)

// FS is the virtual filesystem. All access goes through its methods; the
// internal mutex serializes mutation so readers observe the last committed
// write.
type FS struct {
	mu      sync.RWMutex
	root    *Node
	usage   int64
	maxSize int64
	hopMax  int

	store storage.Store
	log   *logging.Logger
	now   func() time.Time
}

// Options configures a filesystem instance.
type Options struct {
	MaxSize     int64
	MaxSymlinks int
	Clock       func() time.Time
}

// New creates a filesystem with a pristine tree. Load replaces it when a
// persisted blob exists.
func New(store storage.Store, log *logging.Logger, opts Options) *FS {
	if opts.MaxSize <= 0 {
		opts.MaxSize = 640 << 20
	}
	if opts.MaxSymlinks <= 0 {
		opts.MaxSymlinks = 40
	}
	if opts.Clock == nil {
		opts.Clock = time.Now
	}
	fs := &FS{
		maxSize: opts.MaxSize,
		hopMax:  opts.MaxSymlinks,
		store:   store,
		log:     log,
		now:     opts.Clock,
	}
	fs.root = pristineTree(fs.now())
	fs.usage = fs.root.size()
	return fs
}

// pristineTree synthesizes the default filesystem installed on first boot.
func pristineTree(now time.Time) *Node {
	root := NewDirectory("root", "root", 0o755, now)
	mkdir := func(parent *Node, name string, owner, group string, mode int) *Node {
		d := NewDirectory(owner, group, mode, now)
		parent.Children[name] = d
		return d
	}
	home := mkdir(root, "home", "root", "root", 0o755)
	mkdir(home, "Guest", "Guest", "Guest", HomeDirMode)
	etc := mkdir(root, "etc", "root", "root", 0o755)
	varDir := mkdir(root, "var", "root", "root", 0o755)
	mkdir(varDir, "log", "root", "root", 0o755)
	mkdir(root, "tmp", "root", "root", 0o777)
	mkdir(root, "bin", "root", "root", 0o755)

	etc.Children["sudoers"] = NewFile("root", "root", 0o440, []byte(defaultSudoers), now)
	etc.Children["oopis.conf"] = NewFile("root", "root", 0o644, []byte(defaultConf), now)
	return root
}

const defaultSudoers = `# /etc/sudoers
#
# principal   commands   [NOPASSWD]
root    ALL
%root   ALL
`

const defaultConf = `# OopisOS kernel configuration overrides.
# history_limit: 50
# sudo_timeout_minutes: 15
`

// MaxSize returns the filesystem cap in bytes.
func (fs *FS) MaxSize() int64 { return fs.maxSize }

// Usage returns the accounted size of the tree.
func (fs *FS) Usage() int64 {
	fs.mu.RLock()
	defer fs.mu.RUnlock()
	return fs.usage
}

// splitPath splits a slash path into components, dropping empties.
func splitPath(path string) []string {
	raw := strings.Split(path, "/")
	parts := make([]string, 0, len(raw))
	for _, p := range raw {
		if p != "" {
			parts = append(parts, p)
		}
	}
	return parts
}

// joinPath renders canonical components as an absolute path.
func joinPath(parts []string) string {
	if len(parts) == 0 {
		return "/"
	}
	return "/" + strings.Join(parts, "/")
}

// absolutize anchors path at cwd when it is relative.
func absolutize(path, cwd string) string {
	if strings.HasPrefix(path, "/") {
		return path
	}
	if cwd == "" {
		cwd = "/"
	}
	return strings.TrimSuffix(cwd, "/") + "/" + path
}
