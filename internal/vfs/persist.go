package vfs

import (
	"bytes"
	"context"
	"io"

	"github.com/bytedance/sonic"
	"github.com/klauspost/compress/gzip"
	"go.uber.org/zap"

	"github.com/oopisos/kernel/internal/shared/types"
	"github.com/oopisos/kernel/internal/storage"
)

// treeBlob is the persisted envelope for the filesystem tree.
type treeBlob struct {
	Version int   `json:"version"`
	Root    *Node `json:"root"`
}

const treeVersion = 1

// Sorted keys keep the serialized bytes stable across calls, so backup
// checksums computed over the embedded tree are reproducible.
var treeJSON = sonic.Config{SortMapKeys: true}.Froze()

// Save serializes the whole tree and stores it under a single key. The
// storage layer's per-key atomicity makes the save all-or-nothing.
func (fs *FS) Save(ctx context.Context) error {
	data, err := fs.Serialize()
	if err != nil {
		return err
	}
	compressed, err := compress(data)
	if err != nil {
		return types.NewError(types.KindStorageFailure, "compress filesystem: %v", err)
	}
	if err := fs.store.Set(ctx, storage.KeyVFS, compressed); err != nil {
		return err
	}
	fs.log.Debug("filesystem saved",
		zap.Int("raw_bytes", len(data)),
		zap.Int("stored_bytes", len(compressed)))
	return nil
}

// Load replaces the in-memory tree with the persisted blob. A missing key
// leaves the pristine tree in place.
func (fs *FS) Load(ctx context.Context) error {
	compressed, ok, err := fs.store.Get(ctx, storage.KeyVFS)
	if err != nil {
		return err
	}
	if !ok {
		fs.log.Info("no persisted filesystem, using pristine tree")
		return nil
	}
	data, err := decompress(compressed)
	if err != nil {
		return types.NewError(types.KindStorageFailure, "decompress filesystem: %v", err)
	}
	return fs.Restore(data)
}

// Serialize renders the tree as an uncompressed JSON blob. Used for
// persistence, session snapshots and backups.
func (fs *FS) Serialize() ([]byte, error) {
	fs.mu.RLock()
	defer fs.mu.RUnlock()
	data, err := treeJSON.Marshal(treeBlob{Version: treeVersion, Root: fs.root})
	if err != nil {
		return nil, types.NewError(types.KindStorageFailure, "serialize filesystem: %v", err)
	}
	return data, nil
}

// Restore replaces the in-memory tree wholesale from a Serialize blob.
func (fs *FS) Restore(data []byte) error {
	var blob treeBlob
	if err := sonic.Unmarshal(data, &blob); err != nil {
		return types.NewError(types.KindStorageFailure, "parse filesystem blob: %v", err)
	}
	if blob.Root == nil || blob.Root.Type != TypeDirectory {
		return types.NewError(types.KindStorageFailure, "filesystem blob has no root directory")
	}
	fs.mu.Lock()
	defer fs.mu.Unlock()
	fs.root = blob.Root
	fs.usage = fs.root.size()
	return nil
}

func compress(data []byte) ([]byte, error) {
	var buf bytes.Buffer
	w := gzip.NewWriter(&buf)
	if _, err := w.Write(data); err != nil {
		return nil, err
	}
	if err := w.Close(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func decompress(data []byte) ([]byte, error) {
	r, err := gzip.NewReader(bytes.NewReader(data))
	if err != nil {
		return nil, err
	}
	defer r.Close()
	return io.ReadAll(r)
}
