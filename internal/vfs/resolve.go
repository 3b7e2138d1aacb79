package vfs

import (
	"github.com/oopisos/kernel/internal/shared/types"
)

// ResolveOptions controls path resolution.
type ResolveOptions struct {
	// Cwd anchors relative paths; defaults to "/".
	Cwd string
	// AllowMissing permits the final component to be absent; Resolution.Node
	// is nil in that case and Parent points at the existing directory.
	AllowMissing bool
	// ExpectedType, when set, requires the resolved node to have this type.
	ExpectedType NodeType
	// KeepLastSymlink returns the link node itself instead of its target.
	KeepLastSymlink bool
	// Permissions are required on the resolved node.
	Permissions []Perm
	// RequireOwnership requires the caller to own the node (or be root).
	RequireOwnership bool
}

// Resolution is the outcome of a successful path resolution.
type Resolution struct {
	// Node is the resolved node, or nil when missing under AllowMissing.
	Node *Node
	// Path is the canonical absolute path: no ".", "..", or duplicate
	// separators, always beginning with "/".
	Path string
	// Parent is the directory containing the node; nil for "/".
	Parent *Node
	// Name is the final path component; empty for "/".
	Name string
}

// Exists reports whether the resolution found a node.
func (r *Resolution) Exists() bool { return r.Node != nil }

// Resolve resolves a path against the tree under the caller's credential.
// It is a pure read: no state is mutated.
func (fs *FS) Resolve(path string, cred Cred, opt ResolveOptions) (*Resolution, error) {
	fs.mu.RLock()
	defer fs.mu.RUnlock()
	return fs.resolveLocked(path, cred, opt)
}

func (fs *FS) resolveLocked(path string, cred Cred, opt ResolveOptions) (*Resolution, error) {
	if path == "" {
		return nil, types.NewError(types.KindInvalidPath, "empty path")
	}
	hops := 0
	res, err := fs.walk(absolutize(path, opt.Cwd), cred, &hops, opt.KeepLastSymlink)
	if err != nil {
		return nil, err
	}
	if res.Node == nil {
		if !opt.AllowMissing {
			return nil, types.NewError(types.KindNoSuchEntry, "%s: no such file or directory", res.Path).
				WithSuggestion("Use 'ls' to check the directory's contents.")
		}
		return res, nil
	}
	if opt.ExpectedType != "" && res.Node.Type != opt.ExpectedType {
		return nil, wrongType(res.Path, res.Node.Type, opt.ExpectedType)
	}
	for _, p := range opt.Permissions {
		if !Allowed(res.Node, cred, p) {
			return nil, types.NewError(types.KindPermissionDenied, "%s: permission denied (%s)", res.Path, p)
		}
	}
	if opt.RequireOwnership && !cred.IsRoot() && cred.User != res.Node.Owner {
		return nil, types.NewError(types.KindNotOwner, "%s: operation not permitted", res.Path)
	}
	return res, nil
}

func wrongType(path string, got, want NodeType) error {
	if want == TypeDirectory {
		return types.NewError(types.KindWrongType, "%s: not a directory", path)
	}
	if got == TypeDirectory {
		return types.NewError(types.KindWrongType, "%s: is a directory", path)
	}
	return types.NewError(types.KindWrongType, "%s: unexpected %s", path, got)
}

// walk descends the tree component by component, splicing symlink targets
// into the remaining components. The shared hop counter bounds total link
// traversal so chains and cycles both fail with a loop error.
func (fs *FS) walk(abs string, cred Cred, hops *int, keepLast bool) (*Resolution, error) {
	comps := splitPath(abs)
	canon := make([]string, 0, len(comps))
	stack := make([]*Node, 0, len(comps))
	cur := fs.root

	nodeAt := func(i int) *Node {
		if i < 0 {
			return fs.root
		}
		return stack[i]
	}

	for len(comps) > 0 {
		c := comps[0]
		comps = comps[1:]
		last := len(comps) == 0

		switch c {
		case ".":
			continue
		case "..":
			if len(canon) > 0 {
				canon = canon[:len(canon)-1]
				stack = stack[:len(stack)-1]
				cur = nodeAt(len(stack) - 1)
			}
			continue
		}

		if cur.Type != TypeDirectory {
			return nil, wrongType(joinPath(canon), cur.Type, TypeDirectory)
		}
		if !Allowed(cur, cred, PermExecute) {
			return nil, types.NewError(types.KindPermissionDenied, "%s: permission denied", joinPath(canon))
		}

		child, ok := cur.Children[c]
		if !ok {
			if last {
				return &Resolution{Node: nil, Path: joinPath(append(canon, c)), Parent: cur, Name: c}, nil
			}
			return nil, types.NewError(types.KindNoSuchEntry, "%s: no such file or directory", joinPath(append(canon, c)))
		}

		if child.Type == TypeSymlink && (!last || !keepLast) {
			*hops++
			if *hops > fs.hopMax {
				return nil, types.NewError(types.KindLoop, "%s: too many levels of symbolic links", joinPath(append(canon, c)))
			}
			target := splitPath(child.Target)
			if len(child.Target) > 0 && child.Target[0] == '/' {
				canon = canon[:0]
				stack = stack[:0]
				cur = fs.root
			}
			comps = append(append([]string{}, target...), comps...)
			continue
		}

		canon = append(canon, c)
		stack = append(stack, child)
		cur = child
	}

	res := &Resolution{Node: cur, Path: joinPath(canon)}
	if len(canon) > 0 {
		res.Name = canon[len(canon)-1]
		res.Parent = nodeAt(len(stack) - 2)
	}
	return res, nil
}

// Canonical returns the canonical absolute form of path without requiring
// the node to exist.
func (fs *FS) Canonical(path, cwd string) string {
	comps := splitPath(absolutize(path, cwd))
	canon := make([]string, 0, len(comps))
	for _, c := range comps {
		switch c {
		case ".":
		case "..":
			if len(canon) > 0 {
				canon = canon[:len(canon)-1]
			}
		default:
			canon = append(canon, c)
		}
	}
	return joinPath(canon)
}
