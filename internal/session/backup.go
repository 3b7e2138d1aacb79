package session

import (
	"context"
	"encoding/json"
	"strings"

	"github.com/bytedance/sonic"
	"go.uber.org/zap"

	"github.com/oopisos/kernel/internal/shared/types"
	"github.com/oopisos/kernel/internal/shared/utils"
	"github.com/oopisos/kernel/internal/storage"
)

// BackupDataType identifies a portable full-system backup document.
const BackupDataType = "OopisOS_System_State_Backup/v1"

// sortedJSON serializes with map keys sorted, so the checksum is stable
// across marshal runs.
var sortedJSON = sonic.Config{SortMapKeys: true}.Froze()

// BackupDocument is the exported system image. Checksum covers the
// stable-order serialization of every other field and is verified
// byte-exactly before a restore installs anything.
type BackupDocument struct {
	DataType               string                     `json:"dataType"`
	FSDataSnapshot         json.RawMessage            `json:"fsDataSnapshot"`
	UserCredentials        json.RawMessage            `json:"userCredentials"`
	GroupRecords           json.RawMessage            `json:"groupRecords,omitempty"`
	AutomaticSessionStates map[string]json.RawMessage `json:"automaticSessionStates"`
	ManualSaveStates       map[string]json.RawMessage `json:"manualSaveStates"`
	Aliases                map[string]string          `json:"aliases,omitempty"`
	EditorWordWrapEnabled  bool                       `json:"editorWordWrapEnabled"`
	Checksum               string                     `json:"checksum,omitempty"`
}

// Backup exports the full system state as a portable JSON document.
func (m *Manager) Backup(ctx context.Context) ([]byte, error) {
	fsData, err := m.fs.Serialize()
	if err != nil {
		return nil, err
	}
	creds, _, err := m.store.Get(ctx, storage.KeyCredentials)
	if err != nil {
		return nil, err
	}
	groups, _, err := m.store.Get(ctx, storage.KeyGroups)
	if err != nil {
		return nil, err
	}
	doc := BackupDocument{
		DataType:               BackupDataType,
		FSDataSnapshot:         fsData,
		UserCredentials:        creds,
		GroupRecords:           groups,
		AutomaticSessionStates: map[string]json.RawMessage{},
		ManualSaveStates:       map[string]json.RawMessage{},
		Aliases:                m.aliases.All(),
	}
	for _, user := range m.identity.Users() {
		if data, ok, err := m.store.Get(ctx, storage.AutoSessionKey(user)); err != nil {
			return nil, err
		} else if ok {
			doc.AutomaticSessionStates[user] = data
		}
		if data, ok, err := m.store.Get(ctx, storage.ManualSessionKey(user)); err != nil {
			return nil, err
		} else if ok {
			doc.ManualSaveStates[user] = data
		}
	}
	doc.Checksum, err = documentChecksum(doc)
	if err != nil {
		return nil, err
	}
	data, err := sonic.MarshalIndent(doc, "", "  ")
	if err != nil {
		return nil, types.NewError(types.KindStorageFailure, "serialize backup: %v", err)
	}
	m.log.Info("backup exported", zap.Int("bytes", len(data)))
	return data, nil
}

// RestoreBackup replaces the whole system state from a backup document.
// The document is validated and its checksum verified before anything
// changes; live sessions should be reset by the caller afterwards.
func (m *Manager) RestoreBackup(ctx context.Context, data []byte) error {
	var doc BackupDocument
	if err := sonic.Unmarshal(data, &doc); err != nil {
		return types.NewError(types.KindIncompatibleSnapshot, "unreadable backup: %v", err)
	}
	if doc.DataType != BackupDataType {
		if strings.HasPrefix(doc.DataType, "OopisOS_System_State_Backup/") {
			return types.NewError(types.KindIncompatibleSnapshot,
				"backup version %q not supported (kernel supports %q)", doc.DataType, BackupDataType)
		}
		return types.NewError(types.KindIncompatibleSnapshot, "not an OopisOS backup (dataType %q)", doc.DataType)
	}
	want := doc.Checksum
	doc.Checksum = ""
	sum, err := documentChecksum(doc)
	if err != nil {
		return err
	}
	if sum != want {
		return types.NewError(types.KindChecksumMismatch, "backup checksum mismatch").
			WithSuggestion("the backup file is corrupt or was edited; re-export it")
	}

	if err := m.fs.Restore(doc.FSDataSnapshot); err != nil {
		return err
	}
	if len(doc.UserCredentials) > 0 {
		if err := m.store.Set(ctx, storage.KeyCredentials, doc.UserCredentials); err != nil {
			return err
		}
	}
	if len(doc.GroupRecords) > 0 {
		if err := m.store.Set(ctx, storage.KeyGroups, doc.GroupRecords); err != nil {
			return err
		}
	}
	for user, state := range doc.AutomaticSessionStates {
		if err := m.store.Set(ctx, storage.AutoSessionKey(user), state); err != nil {
			return err
		}
	}
	for user, state := range doc.ManualSaveStates {
		if err := m.store.Set(ctx, storage.ManualSessionKey(user), state); err != nil {
			return err
		}
	}
	if err := m.identity.Load(ctx); err != nil {
		return err
	}
	m.aliases.Replace(doc.Aliases)
	if err := m.aliases.Save(ctx, m.store); err != nil {
		return err
	}
	if err := m.fs.Save(ctx); err != nil {
		return err
	}
	m.log.Info("backup restored")
	return nil
}

func documentChecksum(doc BackupDocument) (string, error) {
	doc.Checksum = ""
	data, err := sortedJSON.Marshal(doc)
	if err != nil {
		return "", types.NewError(types.KindStorageFailure, "checksum backup document: %v", err)
	}
	return utils.Checksum(data), nil
}
