package api

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/yourorg/bulk-verify/internal/db"
)

// Handler serves status and account queries.
type Handler struct {
	files db.FileRepository
	users db.UserRepository
}

func NewHandler(files db.FileRepository, users db.UserRepository) *Handler {
	return &Handler{files: files, users: users}
}

// GetFileStatus returns the lifecycle status, stats and coarse progress
// for one validation run.
func (h *Handler) GetFileStatus(c *gin.Context) {
	id := c.Param("id")
	f, err := h.files.Get(c.Request.Context(), id)
	if err != nil {
		if errors.Is(err, db.ErrNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "file not found"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	progress := 0
	switch {
	case f.Status == db.StatusCompleted:
		progress = 100
	case f.Stats.Total > 0:
		progress = f.Stats.Processed * 100 / f.Stats.Total
	}

	resp := gin.H{
		"file_id":  f.ID,
		"status":   f.Status,
		"stats":    f.Stats,
		"progress": progress,
	}
	if f.ErrorMessage != nil {
		resp["error"] = *f.ErrorMessage
	}
	c.JSON(http.StatusOK, resp)
}

// GetCredits returns the caller's remaining credit balance.
func (h *Handler) GetCredits(c *gin.Context) {
	email := c.Query("email")
	if email == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "email is required"})
		return
	}
	u, err := h.users.GetByEmail(c.Request.Context(), email)
	if err != nil {
		if errors.Is(err, db.ErrNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "user not found"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"email": u.Email, "credits": u.Credits})
}
