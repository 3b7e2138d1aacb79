package vfs

import (
	"strings"

	"github.com/oopisos/kernel/internal/shared/types"
)

// PlanOptions configures a copy or move plan.
type PlanOptions struct {
	Cwd string
	// Move detaches source nodes instead of cloning them.
	Move bool
	// Recursive permits directory sources for copies. Moves are always
	// whole-subtree.
	Recursive bool
}

// PlanItem is one validated operation of a copy/move plan.
type PlanItem struct {
	SourcePath string
	DestPath   string
	// Overwrite marks an existing destination child of the same type that
	// Apply will replace. The operator may veto per item.
	Overwrite bool

	sourceParent *Node
	sourceName   string
	source       *Node
	destParent   *Node
	destName     string
}

// PlanCopyMove validates all sources against the destination and produces a
// concrete operation list. Validation errors surface here, before anything
// mutates; Apply then executes items individually. Conflicting destination
// entries of a different type are refused at plan time, never silently
// overwritten.
func (fs *FS) PlanCopyMove(sources []string, dest string, cred Cred, opt PlanOptions) ([]PlanItem, error) {
	fs.mu.RLock()
	defer fs.mu.RUnlock()

	if len(sources) == 0 {
		return nil, types.NewError(types.KindBadArgValue, "missing source operand")
	}

	destRes, err := fs.resolveLocked(dest, cred, ResolveOptions{Cwd: opt.Cwd, AllowMissing: true})
	if err != nil {
		return nil, err
	}
	destIsDir := destRes.Exists() && destRes.Node.Type == TypeDirectory
	if len(sources) > 1 && !destIsDir {
		return nil, types.NewError(types.KindWrongType, "%s: target must be an existing directory", destRes.Path)
	}

	items := make([]PlanItem, 0, len(sources))
	for _, src := range sources {
		srcRes, err := fs.resolveLocked(src, cred, ResolveOptions{Cwd: opt.Cwd, KeepLastSymlink: true})
		if err != nil {
			return nil, err
		}
		if srcRes.Parent == nil {
			return nil, types.NewError(types.KindInvalidPath, "cannot operate on '/'")
		}
		if srcRes.Node.Type == TypeDirectory && !opt.Move && !opt.Recursive {
			return nil, types.NewError(types.KindWrongType, "%s: omitting directory", srcRes.Path).
				WithSuggestion("Use '-r' to copy directories.")
		}
		if !Allowed(srcRes.Node, cred, PermRead) {
			return nil, types.NewError(types.KindPermissionDenied, "%s: permission denied", srcRes.Path)
		}
		if opt.Move && !Allowed(srcRes.Parent, cred, PermWrite) {
			return nil, types.NewError(types.KindPermissionDenied, "%s: permission denied", srcRes.Path)
		}

		var destParent *Node
		var destName, destPath string
		if destIsDir {
			destParent = destRes.Node
			destName = srcRes.Name
			destPath = strings.TrimSuffix(destRes.Path, "/") + "/" + destName
		} else {
			destParent = destRes.Parent
			destName = destRes.Name
			destPath = destRes.Path
		}
		if destParent == nil {
			return nil, types.NewError(types.KindNoSuchEntry, "%s: no such file or directory", dest)
		}
		if !Allowed(destParent, cred, PermWrite) || !Allowed(destParent, cred, PermExecute) {
			return nil, types.NewError(types.KindPermissionDenied, "%s: permission denied", destPath)
		}
		if srcRes.Node.Type == TypeDirectory && strings.HasPrefix(destPath+"/", srcRes.Path+"/") {
			return nil, types.NewError(types.KindInvalidPath, "cannot move %q into itself, %q", srcRes.Path, destPath)
		}

		overwrite := false
		if existing, ok := destParent.Children[destName]; ok {
			if existing == srcRes.Node {
				return nil, types.NewError(types.KindInvalidPath, "%q and %q are the same file", srcRes.Path, destPath)
			}
			if existing.Type != srcRes.Node.Type {
				return nil, wrongType(destPath, existing.Type, srcRes.Node.Type)
			}
			overwrite = true
		}

		items = append(items, PlanItem{
			SourcePath:   srcRes.Path,
			DestPath:     destPath,
			Overwrite:    overwrite,
			sourceParent: srcRes.Parent,
			sourceName:   srcRes.Name,
			source:       srcRes.Node,
			destParent:   destParent,
			destName:     destName,
		})
	}
	return items, nil
}

// Apply executes plan items. Copies clone the subtree under the caller's
// ownership; moves re-parent the original node. skip reports per-item
// overwrite vetoes (from the operator prompt); vetoed items are passed over.
func (fs *FS) Apply(items []PlanItem, cred Cred, opt PlanOptions, skip func(item PlanItem) bool) error {
	fs.mu.Lock()
	defer fs.mu.Unlock()

	now := fs.now()
	for _, item := range items {
		if item.Overwrite && skip != nil && skip(item) {
			continue
		}
		if item.Overwrite {
			old := item.destParent.Children[item.destName]
			fs.usage -= old.size()
		}
		if opt.Move {
			delete(item.sourceParent.Children, item.sourceName)
			item.sourceParent.MTime = now
			item.destParent.Children[item.destName] = item.source
		} else {
			clone := item.source.Clone()
			chownSubtree(clone, cred.User, cred.PrimaryGroup)
			clone.MTime = now
			if err := fs.reserve(clone.size()); err != nil {
				return err
			}
			item.destParent.Children[item.destName] = clone
		}
		item.destParent.MTime = now
	}
	return nil
}

func chownSubtree(n *Node, owner, group string) {
	n.Owner = owner
	n.Group = group
	for _, child := range n.Children {
		chownSubtree(child, owner, group)
	}
}
