package api

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"net/http"
	"path"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.temporal.io/sdk/client"

	"github.com/yourorg/bulk-verify/internal/db"
	"github.com/yourorg/bulk-verify/internal/storage"
	"github.com/yourorg/bulk-verify/internal/tabular"
	"github.com/yourorg/bulk-verify/internal/types"
	"github.com/yourorg/bulk-verify/internal/workflow"
)

// UploadHandler accepts a table upload and enqueues a validation run.
type UploadHandler struct {
	store          storage.ObjectStore
	users          db.UserRepository
	files          db.FileRepository
	temporalClient client.Client
	// uploadPrefix is where raw uploads land, e.g. s3://bulk-verify/uploads
	// or file:///var/bulk-verify/uploads.
	uploadPrefix string
}

func NewUploadHandler(store storage.ObjectStore, users db.UserRepository, files db.FileRepository, tc client.Client, uploadPrefix string) *UploadHandler {
	return &UploadHandler{
		store:          store,
		users:          users,
		files:          files,
		temporalClient: tc,
		uploadPrefix:   strings.TrimSuffix(uploadPrefix, "/"),
	}
}

type validateRequest struct {
	Email       string `form:"email" binding:"required"`
	ColumnIndex int    `form:"column_index"`
}

// ValidateFile receives a multipart upload, pre-checks the address column
// and the user's balance so obvious mistakes fail before anything is
// queued, stores the blob, records the in_queue status, and starts the
// workflow.
func (h *UploadHandler) ValidateFile(c *gin.Context) {
	var req validateRequest
	if err := c.ShouldBind(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	file, header, err := c.Request.FormFile("file")
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "file upload error: " + err.Error()})
		return
	}
	defer file.Close()

	raw, err := io.ReadAll(file)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "read upload: " + err.Error()})
		return
	}
	filename := safeFilename(header.Filename)

	t, err := tabular.ParseNamed(filename, bytes.NewReader(raw))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "file parsing error: " + err.Error()})
		return
	}
	if _, err := tabular.LocateAddressColumn(t, req.ColumnIndex); err != nil {
		var cne *tabular.ColumnNotEmailError
		if errors.As(err, &cne) {
			c.JSON(http.StatusBadRequest, gin.H{
				"error":             err.Error(),
				"suggested_columns": cne.Candidates,
			})
			return
		}
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	total := len(t.Rows)

	u, err := h.users.GetByEmail(c.Request.Context(), req.Email)
	if err != nil {
		if errors.Is(err, db.ErrNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "user not found"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	if u.Credits < total {
		c.JSON(http.StatusPaymentRequired, gin.H{
			"error": fmt.Sprintf("insufficient credits: this file has %d emails but you have %d credits", total, u.Credits),
		})
		return
	}

	fileID := uuid.NewString()
	uri := fmt.Sprintf("%s/%s_%s", h.uploadPrefix, fileID, filename)
	if _, err := storage.PutWithRetry(c.Request.Context(), h.store, uri, raw, header.Header.Get("Content-Type"), 3, 0); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "store upload: " + err.Error()})
		return
	}

	if _, err := h.files.RecordStart(c.Request.Context(), fileID, u.ID, filename); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "record job: " + err.Error()})
		return
	}

	params := types.JobParams{
		FileID:      fileID,
		UserEmail:   req.Email,
		Filename:    uri,
		ColumnIndex: req.ColumnIndex,
		TotalEmails: total,
	}
	run, err := h.temporalClient.ExecuteWorkflow(c.Request.Context(), client.StartWorkflowOptions{
		ID:        "validate-" + fileID,
		TaskQueue: workflow.TaskQueue,
	}, "ValidationWorkflow", params)
	if err != nil {
		// the job record stays queryable; mark it failed so it doesn't look stuck
		_ = h.files.RecordFailure(c.Request.Context(), fileID, "failed to start workflow: "+err.Error())
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to start workflow: " + err.Error()})
		return
	}

	c.JSON(http.StatusAccepted, gin.H{
		"file_id":      fileID,
		"workflow_id":  run.GetID(),
		"run_id":       run.GetRunID(),
		"total_emails": total,
		"status":       db.StatusInQueue,
	})
}

// safeFilename strips any client-supplied path so the filename cannot
// change the object key layout under the upload prefix.
func safeFilename(name string) string {
	name = strings.ReplaceAll(name, "\\", "/")
	name = path.Base(name)
	if name == "" || name == "." || name == ".." || name == "/" {
		return "upload.csv"
	}
	return name
}
