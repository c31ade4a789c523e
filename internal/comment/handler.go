package comment

import (
	"collaborative-canvas-backend/internal/errors"
	"net/http"

	"github.com/gin-gonic/gin"
)

type Handler struct {
	service Service
}

func NewHandler(service Service) *Handler {
	return &Handler{service: service}
}

type UpsertRequest struct {
	ID        string `json:"id" binding:"required,max=64"`
	Timestamp int64  `json:"timestamp" binding:"required"`
	Text      string `json:"text" binding:"required,max=4000"`
}

// Upsert creates a comment or, when the same client id is re-submitted,
// replaces its text.
func (h *Handler) Upsert(c *gin.Context) {
	canvasID := c.Param("id")

	var req UpsertRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.Error(errors.NewValidationError(err))
		return
	}

	userID, _ := c.Get("user_id")

	comment, err := h.service.Upsert(c.Request.Context(), canvasID, userID.(string), CommentInput{
		ID:        req.ID,
		Timestamp: req.Timestamp,
		Text:      req.Text,
	})
	if err != nil {
		c.Error(err)
		return
	}

	c.JSON(http.StatusCreated, comment)
}

func (h *Handler) ListByCanvas(c *gin.Context) {
	canvasID := c.Param("id")
	userID, _ := c.Get("user_id")

	comments, err := h.service.ListByCanvas(c.Request.Context(), canvasID, userID.(string))
	if err != nil {
		c.Error(err)
		return
	}

	c.JSON(http.StatusOK, comments)
}

func (h *Handler) Delete(c *gin.Context) {
	canvasID := c.Param("id")
	commentID := c.Param("commentId")
	userID, _ := c.Get("user_id")

	if err := h.service.Delete(c.Request.Context(), canvasID, userID.(string), commentID); err != nil {
		c.Error(err)
		return
	}

	c.Status(http.StatusNoContent)
}
