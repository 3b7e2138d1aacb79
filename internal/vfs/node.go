// Package vfs implements the in-memory virtual filesystem: a tree of file,
// directory and symlink nodes with Unix-style ownership and permissions,
// persisted as a single blob through the storage layer.
package vfs

import (
	"time"
)

// NodeType discriminates the node variants.
type NodeType string

const (
	TypeFile      NodeType = "file"
	TypeDirectory NodeType = "directory"
	TypeSymlink   NodeType = "symlink"
)

// Default modes for newly created nodes.
const (
	DefaultFileMode = 0o644
	DefaultDirMode  = 0o755
	HomeDirMode     = 0o700
	ModeMask        = 0o7777 // stored bits; only the lower 9 are interpreted
)

// Perm is one permission bit class.
type Perm int

const (
	PermRead    Perm = 4
	PermWrite   Perm = 2
	PermExecute Perm = 1
)

func (p Perm) String() string {
	switch p {
	case PermRead:
		return "read"
	case PermWrite:
		return "write"
	case PermExecute:
		return "execute"
	}
	return "?"
}

// Node is one entry in the virtual filesystem tree. Exactly one of the
// variant fields is meaningful, selected by Type: Content for files,
// Children for directories, Target for symlinks.
type Node struct {
	Type     NodeType         `json:"type"`
	Owner    string           `json:"owner"`
	Group    string           `json:"group"`
	Mode     int              `json:"mode"`
	MTime    time.Time        `json:"mtime"`
	Content  []byte           `json:"content,omitempty"`
	Children map[string]*Node `json:"children,omitempty"`
	Target   string           `json:"target,omitempty"`
}

// NewFile creates a file node.
func NewFile(owner, group string, mode int, content []byte, now time.Time) *Node {
	return &Node{Type: TypeFile, Owner: owner, Group: group, Mode: mode & ModeMask, MTime: now, Content: content}
}

// NewDirectory creates an empty directory node.
func NewDirectory(owner, group string, mode int, now time.Time) *Node {
	return &Node{Type: TypeDirectory, Owner: owner, Group: group, Mode: mode & ModeMask, MTime: now, Children: map[string]*Node{}}
}

// NewSymlink creates a symlink node. The target is stored verbatim and
// resolved lazily.
func NewSymlink(owner, group, target string, now time.Time) *Node {
	return &Node{Type: TypeSymlink, Owner: owner, Group: group, Mode: 0o777, MTime: now, Target: target}
}

// Clone deep-copies the subtree rooted at n.
func (n *Node) Clone() *Node {
	c := &Node{Type: n.Type, Owner: n.Owner, Group: n.Group, Mode: n.Mode, MTime: n.MTime, Target: n.Target}
	if n.Content != nil {
		c.Content = append([]byte(nil), n.Content...)
	}
	if n.Children != nil {
		c.Children = make(map[string]*Node, len(n.Children))
		for name, child := range n.Children {
			c.Children[name] = child.Clone()
		}
	}
	return c
}

// nodeOverhead approximates the serialized cost of one node beyond its
// content, for size accounting against the filesystem cap.
const nodeOverhead = 256

// size returns the accounted size of the subtree rooted at n.
func (n *Node) size() int64 {
	total := int64(nodeOverhead) + int64(len(n.Content)) + int64(len(n.Target))
	for _, child := range n.Children {
		total += child.size()
	}
	return total
}

// ModeString renders the mode like ls: "drwxr-xr-x".
func (n *Node) ModeString() string {
	var b [10]byte
	switch n.Type {
	case TypeDirectory:
		b[0] = 'd'
	case TypeSymlink:
		b[0] = 'l'
	default:
		b[0] = '-'
	}
	classes := []int{n.Mode >> 6 & 7, n.Mode >> 3 & 7, n.Mode & 7}
	for i, bits := range classes {
		off := 1 + i*3
		b[off] = '-'
		b[off+1] = '-'
		b[off+2] = '-'
		if bits&4 != 0 {
			b[off] = 'r'
		}
		if bits&2 != 0 {
			b[off+1] = 'w'
		}
		if bits&1 != 0 {
			b[off+2] = 'x'
		}
	}
	return string(b[:])
}

// Cred identifies the caller for permission checks. Groups holds every
// group the user belongs to, primary included.
type Cred struct {
	User         string
	PrimaryGroup string
	Groups       []string
}

// Root is the superuser credential.
var Root = Cred{User: "root", PrimaryGroup: "root", Groups: []string{"root"}}

// IsRoot reports whether the credential bypasses permission checks.
func (c Cred) IsRoot() bool { return c.User == "root" }

func (c Cred) inGroup(group string) bool {
	for _, g := range c.Groups {
		if g == group {
			return true
		}
	}
	return false
}

// Allowed reports whether cred holds permission p on node n. Root is always
// granted; otherwise the owner, group or other bit class applies.
func Allowed(n *Node, cred Cred, p Perm) bool {
	if cred.IsRoot() {
		return true
	}
	var bits int
	switch {
	case cred.User == n.Owner:
		bits = n.Mode >> 6 & 7
	case cred.inGroup(n.Group):
		bits = n.Mode >> 3 & 7
	default:
		bits = n.Mode & 7
	}
	return bits&int(p) != 0
}
