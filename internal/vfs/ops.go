package vfs

import (
	"fmt"
	"sort"
	"strings"

	"github.com/oopisos/kernel/internal/shared/types"
)

// WriteOptions controls CreateOrUpdate.
type WriteOptions struct {
	Cwd       string
	Directory bool
	// Parents creates missing ancestor directories (mkdir -p). Also makes
	// directory creation idempotent.
	Parents bool
	// Mode overrides the type default for newly created nodes.
	Mode *int
	// Append extends existing file content instead of replacing it.
	Append bool
}

// CreateOrUpdate writes a file or creates a directory at path. New nodes are
// owned by the caller with the caller's primary group. The size cap is
// enforced before any mutation lands.
func (fs *FS) CreateOrUpdate(path string, content []byte, cred Cred, opt WriteOptions) (*Resolution, error) {
	fs.mu.Lock()
	defer fs.mu.Unlock()

	res, err := fs.resolveLocked(path, cred, ResolveOptions{Cwd: opt.Cwd, AllowMissing: true})
	if err != nil {
		if opt.Parents && types.KindOf(err) == types.KindNoSuchEntry {
			if res, err = fs.mkdirAllLocked(path, cred, opt); err != nil {
				return nil, err
			}
		} else {
			return nil, err
		}
	}

	if res.Node != nil {
		return fs.updateLocked(res, content, cred, opt)
	}
	return fs.createLocked(res, content, cred, opt)
}

func (fs *FS) createLocked(res *Resolution, content []byte, cred Cred, opt WriteOptions) (*Resolution, error) {
	parent := res.Parent
	if parent == nil {
		return nil, types.NewError(types.KindInvalidPath, "cannot create '/'")
	}
	if parent.Type != TypeDirectory {
		return nil, wrongType(res.Path, parent.Type, TypeDirectory)
	}
	if !Allowed(parent, cred, PermWrite) || !Allowed(parent, cred, PermExecute) {
		return nil, types.NewError(types.KindPermissionDenied, "%s: permission denied", res.Path)
	}

	now := fs.now()
	var node *Node
	if opt.Directory {
		mode := DefaultDirMode
		if opt.Mode != nil {
			mode = *opt.Mode
		}
		node = NewDirectory(cred.User, cred.PrimaryGroup, mode, now)
	} else {
		mode := DefaultFileMode
		if opt.Mode != nil {
			mode = *opt.Mode
		}
		node = NewFile(cred.User, cred.PrimaryGroup, mode, content, now)
	}

	if err := fs.reserve(node.size()); err != nil {
		return nil, err
	}
	parent.Children[res.Name] = node
	parent.MTime = now
	res.Node = node
	return res, nil
}

func (fs *FS) updateLocked(res *Resolution, content []byte, cred Cred, opt WriteOptions) (*Resolution, error) {
	node := res.Node
	if opt.Directory {
		if node.Type != TypeDirectory {
			return nil, wrongType(res.Path, node.Type, TypeDirectory)
		}
		if !opt.Parents {
			return nil, types.NewError(types.KindAlreadyExists, "%s: file exists", res.Path)
		}
		return res, nil // mkdir -p on an existing directory is a no-op
	}
	if node.Type == TypeDirectory {
		return nil, wrongType(res.Path, node.Type, TypeFile)
	}
	if !Allowed(node, cred, PermWrite) {
		return nil, types.NewError(types.KindPermissionDenied, "%s: permission denied", res.Path)
	}

	next := content
	if opt.Append {
		next = append(append([]byte(nil), node.Content...), content...)
	}
	if err := fs.reserve(int64(len(next)) - int64(len(node.Content))); err != nil {
		return nil, err
	}
	node.Content = next
	node.MTime = fs.now()
	return res, nil
}

// mkdirAllLocked creates every missing directory along path.
func (fs *FS) mkdirAllLocked(path string, cred Cred, opt WriteOptions) (*Resolution, error) {
	comps := splitPath(fs.Canonical(path, opt.Cwd))
	if len(comps) == 0 {
		return nil, types.NewError(types.KindInvalidPath, "cannot create '/'")
	}
	prefix := comps[:len(comps)-1]
	for i := range prefix {
		partial := joinPath(prefix[:i+1])
		res, err := fs.resolveLocked(partial, cred, ResolveOptions{AllowMissing: true})
		if err != nil {
			return nil, err
		}
		if res.Node == nil {
			if _, err := fs.createLocked(res, nil, cred, WriteOptions{Directory: true}); err != nil {
				return nil, err
			}
		} else if res.Node.Type != TypeDirectory {
			return nil, wrongType(res.Path, res.Node.Type, TypeDirectory)
		}
	}
	return fs.resolveLocked(joinPath(comps), cred, ResolveOptions{AllowMissing: true})
}

// reserve checks the size cap before committing delta bytes.
func (fs *FS) reserve(delta int64) error {
	if delta > 0 && fs.usage+delta > fs.maxSize {
		return types.NewError(types.KindNoSpace, "no space left on device").
			WithSuggestion("Remove files with 'rm' to free space.")
	}
	fs.usage += delta
	return nil
}

// Mkdir creates a directory.
func (fs *FS) Mkdir(path string, cred Cred, parents bool, cwd string) error {
	_, err := fs.CreateOrUpdate(path, nil, cred, WriteOptions{Cwd: cwd, Directory: true, Parents: parents})
	return err
}

// WriteFile replaces (or creates) file content.
func (fs *FS) WriteFile(path string, content []byte, cred Cred, cwd string) error {
	_, err := fs.CreateOrUpdate(path, content, cred, WriteOptions{Cwd: cwd})
	return err
}

// AppendFile appends to a file, creating it when absent.
func (fs *FS) AppendFile(path string, content []byte, cred Cred, cwd string) error {
	_, err := fs.CreateOrUpdate(path, content, cred, WriteOptions{Cwd: cwd, Append: true})
	return err
}

// ReadFile reads file content, resolving symlinks and requiring read
// permission.
func (fs *FS) ReadFile(path string, cred Cred, cwd string) ([]byte, error) {
	res, err := fs.Resolve(path, cred, ResolveOptions{Cwd: cwd, ExpectedType: TypeFile, Permissions: []Perm{PermRead}})
	if err != nil {
		return nil, err
	}
	return append([]byte(nil), res.Node.Content...), nil
}

// Symlink creates a link node at linkPath pointing at target. The target is
// not required to exist.
func (fs *FS) Symlink(target, linkPath string, cred Cred, cwd string) error {
	fs.mu.Lock()
	defer fs.mu.Unlock()

	res, err := fs.resolveLocked(linkPath, cred, ResolveOptions{Cwd: cwd, AllowMissing: true, KeepLastSymlink: true})
	if err != nil {
		return err
	}
	if res.Node != nil {
		return types.NewError(types.KindAlreadyExists, "%s: file exists", res.Path)
	}
	if res.Parent == nil || !Allowed(res.Parent, cred, PermWrite) || !Allowed(res.Parent, cred, PermExecute) {
		return types.NewError(types.KindPermissionDenied, "%s: permission denied", res.Path)
	}
	now := fs.now()
	link := NewSymlink(cred.User, cred.PrimaryGroup, target, now)
	if err := fs.reserve(link.size()); err != nil {
		return err
	}
	res.Parent.Children[res.Name] = link
	res.Parent.MTime = now
	return nil
}

// RemoveOptions controls Remove.
type RemoveOptions struct {
	Cwd       string
	Recursive bool
	// RequireEmpty is rmdir semantics: only an empty directory is removed.
	RequireEmpty bool
}

// Remove deletes the node at path. Directories require Recursive (rm -r) or
// RequireEmpty (rmdir). Recursive removal is post-order and best-effort:
// subtrees that fail permission checks stay in place and an aggregate error
// reports them, while already-deleted siblings are not resurrected.
func (fs *FS) Remove(path string, cred Cred, opt RemoveOptions) error {
	fs.mu.Lock()
	defer fs.mu.Unlock()

	res, err := fs.resolveLocked(path, cred, ResolveOptions{Cwd: opt.Cwd, KeepLastSymlink: true})
	if err != nil {
		return err
	}
	if res.Parent == nil {
		return types.NewError(types.KindInvalidPath, "cannot remove '/'")
	}
	if res.Node.Type == TypeDirectory {
		if opt.RequireEmpty {
			if len(res.Node.Children) > 0 {
				return types.NewError(types.KindNotEmpty, "%s: directory not empty", res.Path)
			}
		} else if !opt.Recursive {
			return types.NewError(types.KindWrongType, "%s: is a directory", res.Path).
				WithSuggestion("Use 'rm -r' to remove directories.")
		}
	}

	var failures []string
	if fs.removeSubtree(res.Parent, res.Name, res.Node, res.Path, cred, &failures) {
		res.Parent.MTime = fs.now()
	}
	if len(failures) > 0 {
		return types.NewError(types.KindPermissionDenied, "cannot remove: %s", strings.Join(failures, ", "))
	}
	return nil
}

// removeSubtree deletes name from parent, descending post-order first.
// Returns true when the node itself was removed.
func (fs *FS) removeSubtree(parent *Node, name string, node *Node, path string, cred Cred, failures *[]string) bool {
	if !Allowed(parent, cred, PermWrite) {
		*failures = append(*failures, fmt.Sprintf("%s: permission denied", path))
		return false
	}
	if node.Type == TypeDirectory {
		if !Allowed(node, cred, PermExecute) || !Allowed(node, cred, PermRead) {
			*failures = append(*failures, fmt.Sprintf("%s: permission denied", path))
			return false
		}
		removedAny := false
		for _, childName := range sortedNames(node.Children) {
			child := node.Children[childName]
			if fs.removeSubtree(node, childName, child, path+"/"+childName, cred, failures) {
				removedAny = true
			}
		}
		if removedAny {
			node.MTime = fs.now()
		}
		if len(node.Children) > 0 {
			// Some children survived; the directory stays.
			return false
		}
	}
	fs.usage -= int64(nodeOverhead) + int64(len(node.Content)) + int64(len(node.Target))
	delete(parent.Children, name)
	return true
}

// DirEntry is one listing row.
type DirEntry struct {
	Name string
	Node *Node
}

// List returns the sorted entries of a directory, requiring read permission.
func (fs *FS) List(path string, cred Cred, cwd string) ([]DirEntry, error) {
	res, err := fs.Resolve(path, cred, ResolveOptions{Cwd: cwd, ExpectedType: TypeDirectory, Permissions: []Perm{PermRead}})
	if err != nil {
		return nil, err
	}
	fs.mu.RLock()
	defer fs.mu.RUnlock()
	entries := make([]DirEntry, 0, len(res.Node.Children))
	for _, name := range sortedNames(res.Node.Children) {
		entries = append(entries, DirEntry{Name: name, Node: res.Node.Children[name]})
	}
	return entries, nil
}

// Chmod sets the node mode. Only the owner or root may change it; mtime
// updates on success.
func (fs *FS) Chmod(path string, mode int, cred Cred, cwd string) error {
	fs.mu.Lock()
	defer fs.mu.Unlock()
	res, err := fs.resolveLocked(path, cred, ResolveOptions{Cwd: cwd, RequireOwnership: true})
	if err != nil {
		return err
	}
	res.Node.Mode = mode & ModeMask
	res.Node.MTime = fs.now()
	return nil
}

// Chown sets the node owner. Root only.
func (fs *FS) Chown(path, owner string, cred Cred, cwd string) error {
	if !cred.IsRoot() {
		return types.NewError(types.KindNotOwner, "chown: operation not permitted")
	}
	fs.mu.Lock()
	defer fs.mu.Unlock()
	res, err := fs.resolveLocked(path, cred, ResolveOptions{Cwd: cwd})
	if err != nil {
		return err
	}
	res.Node.Owner = owner
	res.Node.MTime = fs.now()
	return nil
}

// Chgrp sets the node group. Owner or root.
func (fs *FS) Chgrp(path, group string, cred Cred, cwd string) error {
	fs.mu.Lock()
	defer fs.mu.Unlock()
	res, err := fs.resolveLocked(path, cred, ResolveOptions{Cwd: cwd, RequireOwnership: true})
	if err != nil {
		return err
	}
	res.Node.Group = group
	res.Node.MTime = fs.now()
	return nil
}

// Touch updates a node's mtime, creating an empty file when absent.
func (fs *FS) Touch(path string, cred Cred, cwd string) error {
	fs.mu.Lock()
	defer fs.mu.Unlock()
	res, err := fs.resolveLocked(path, cred, ResolveOptions{Cwd: cwd, AllowMissing: true})
	if err != nil {
		return err
	}
	if res.Node == nil {
		_, err = fs.createLocked(res, nil, cred, WriteOptions{})
		return err
	}
	if !Allowed(res.Node, cred, PermWrite) {
		return types.NewError(types.KindPermissionDenied, "%s: permission denied", res.Path)
	}
	res.Node.MTime = fs.now()
	return nil
}

// Walk visits the subtree under path in pre-order. Directories the caller
// cannot read or traverse are skipped silently, matching find's behavior.
func (fs *FS) Walk(path string, cred Cred, cwd string, fn func(path string, node *Node) error) error {
	res, err := fs.Resolve(path, cred, ResolveOptions{Cwd: cwd})
	if err != nil {
		return err
	}
	fs.mu.RLock()
	defer fs.mu.RUnlock()
	return fs.walkSubtree(res.Path, res.Node, cred, fn)
}

func (fs *FS) walkSubtree(path string, node *Node, cred Cred, fn func(string, *Node) error) error {
	if err := fn(path, node); err != nil {
		return err
	}
	if node.Type != TypeDirectory {
		return nil
	}
	if !Allowed(node, cred, PermRead) || !Allowed(node, cred, PermExecute) {
		return nil
	}
	base := path
	if base == "/" {
		base = ""
	}
	for _, name := range sortedNames(node.Children) {
		if err := fs.walkSubtree(base+"/"+name, node.Children[name], cred, fn); err != nil {
			return err
		}
	}
	return nil
}

func sortedNames(children map[string]*Node) []string {
	names := make([]string, 0, len(children))
	for name := range children {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
