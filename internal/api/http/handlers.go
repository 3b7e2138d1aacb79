// Package http holds the REST handlers of the kernel's wire surface.
package http

import (
	"io"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/oopisos/kernel/internal/infrastructure/monitoring"
	"github.com/oopisos/kernel/internal/session"
	"github.com/oopisos/kernel/internal/shared/types"
	"github.com/oopisos/kernel/internal/vfs"
)

const maxRestoreBytes = 64 << 20

// Handlers groups the REST endpoints and their dependencies.
type Handlers struct {
	sessions *session.Manager
	fs       *vfs.FS
	metrics  *monitoring.Metrics
	version  string
}

// NewHandlers creates the REST handler set.
func NewHandlers(sessions *session.Manager, fs *vfs.FS, metrics *monitoring.Metrics, version string) *Handlers {
	return &Handlers{sessions: sessions, fs: fs, metrics: metrics, version: version}
}

// Health reports kernel liveness and headline gauges.
func (h *Handlers) Health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":    "ok",
		"version":   h.version,
		"sessions":  h.sessions.Count(),
		"vfs_bytes": h.fs.Usage(),
		"vfs_max":   h.fs.MaxSize(),
	})
}

// Backup streams a full system backup document.
func (h *Handlers) Backup(c *gin.Context) {
	data, err := h.sessions.Backup(c.Request.Context())
	if err != nil {
		fail(c, http.StatusInternalServerError, err)
		return
	}
	c.Header("Content-Disposition", `attachment; filename="oopisos-backup.json"`)
	c.Data(http.StatusOK, "application/json", data)
}

// Restore installs an uploaded backup document, replacing filesystem,
// identities and saved session states.
func (h *Handlers) Restore(c *gin.Context) {
	data, err := io.ReadAll(io.LimitReader(c.Request.Body, maxRestoreBytes))
	if err != nil {
		fail(c, http.StatusBadRequest, err)
		return
	}
	if err := h.sessions.RestoreBackup(c.Request.Context(), data); err != nil {
		status := http.StatusBadRequest
		if ke, ok := err.(*types.KernelError); ok && ke.Kind == types.KindChecksumMismatch {
			status = http.StatusUnprocessableEntity
		}
		fail(c, status, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true})
}

type sessionRef struct {
	ID string `json:"id" binding:"required"`
}

// SaveSession writes a manual snapshot for an attached session.
func (h *Handlers) SaveSession(c *gin.Context) {
	var ref sessionRef
	if err := c.ShouldBindJSON(&ref); err != nil {
		fail(c, http.StatusBadRequest, err)
		return
	}
	sess, ok := h.sessions.Get(ref.ID)
	if !ok {
		c.JSON(http.StatusNotFound, gin.H{"success": false, "error": "session not found: " + ref.ID})
		return
	}
	if err := h.sessions.SaveManual(c.Request.Context(), sess); err != nil {
		fail(c, http.StatusInternalServerError, err)
		return
	}
	h.metrics.IncSnapshotsSaved()
	c.JSON(http.StatusOK, gin.H{"success": true, "user": sess.User()})
}

// RestoreSession reloads an attached session from its manual snapshot.
func (h *Handlers) RestoreSession(c *gin.Context) {
	var ref sessionRef
	if err := c.ShouldBindJSON(&ref); err != nil {
		fail(c, http.StatusBadRequest, err)
		return
	}
	sess, ok := h.sessions.Get(ref.ID)
	if !ok {
		c.JSON(http.StatusNotFound, gin.H{"success": false, "error": "session not found: " + ref.ID})
		return
	}
	if err := h.sessions.RestoreManual(c.Request.Context(), sess); err != nil {
		status := http.StatusInternalServerError
		if ke, ok := err.(*types.KernelError); ok {
			switch ke.Kind {
			case types.KindNoSuchEntry:
				status = http.StatusNotFound
			case types.KindIncompatibleSnapshot:
				status = http.StatusConflict
			}
		}
		fail(c, status, err)
		return
	}
	h.metrics.IncSnapshotsLoaded()
	c.JSON(http.StatusOK, gin.H{"success": true, "user": sess.User()})
}

func fail(c *gin.Context, status int, err error) {
	body := gin.H{"success": false, "error": err.Error()}
	if ke, ok := err.(*types.KernelError); ok && ke.Suggestion != "" {
		body["suggestion"] = ke.Suggestion
	}
	c.JSON(status, body)
}
