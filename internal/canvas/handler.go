package canvas

import (
	"collaborative-canvas-backend/internal/access"
	"collaborative-canvas-backend/internal/errors"
	"collaborative-canvas-backend/internal/utils"
	"collaborative-canvas-backend/redis"
	"encoding/json"
	"io"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
)

type Handler struct {
	service Service
	cache   *redis.Cache
}

func NewHandler(service Service, cache *redis.Cache) *Handler {
	return &Handler{service: service, cache: cache}
}

type CreateRequest struct {
	Title string `json:"title" binding:"max=255"`
}

func (h *Handler) Create(c *gin.Context) {
	var form CreateRequest
	if err := c.ShouldBindJSON(&form); err != nil {
		c.Error(errors.NewValidationError(err))
		return
	}

	userID, _ := c.Get("user_id")

	canvas, err := h.service.CreateBlank(c.Request.Context(), userID.(string), form.Title)
	if err != nil {
		c.Error(err)
		return
	}

	c.JSON(http.StatusCreated, canvas)
}

type SaveRequest struct {
	DesignData json.RawMessage `json:"design_data" binding:"required"`
	Title      string          `json:"title" binding:"max=255"`
	CreatedAt  *time.Time      `json:"created_at"`
}

func (h *Handler) Save(c *gin.Context) {
	canvasID := c.Param("id")

	var form SaveRequest
	if err := c.ShouldBindJSON(&form); err != nil {
		c.Error(errors.NewValidationError(err))
		return
	}

	userID, _ := c.Get("user_id")

	canvas, created, err := h.service.SaveOrCreate(
		c.Request.Context(),
		canvasID,
		userID.(string),
		form.DesignData,
		MetadataInput{Title: form.Title, CreatedAt: form.CreatedAt},
	)
	if err != nil {
		c.Error(err)
		return
	}

	status := http.StatusOK
	if created {
		status = http.StatusCreated
	}
	c.JSON(status, canvas)
}

func (h *Handler) ShowAccessible(c *gin.Context) {
	userID, _ := c.Get("user_id")

	page, pageSize := utils.GetPaginationParams(c)
	result, err := h.service.ListAccessible(c.Request.Context(), userID.(string), page, pageSize)
	if err != nil {
		c.Error(err)
		return
	}

	c.JSON(http.StatusOK, result)
}

func (h *Handler) Show(c *gin.Context) {
	canvasID := c.Param("id")
	userID, _ := c.Get("user_id")

	canvas, err := h.service.GetCanvas(c.Request.Context(), canvasID, userID.(string))
	if err != nil {
		c.Error(err)
		return
	}

	c.JSON(http.StatusOK, canvas)
}

func (h *Handler) Delete(c *gin.Context) {
	canvasID := c.Param("id")
	userID, _ := c.Get("user_id")

	if err := h.service.DeleteCanvas(c.Request.Context(), canvasID, userID.(string)); err != nil {
		c.Error(err)
		return
	}

	c.Status(http.StatusNoContent)
}

func (h *Handler) ListCollaborators(c *gin.Context) {
	canvasID := c.Param("id")
	userID, _ := c.Get("user_id")

	grants, err := h.service.ListCollaborators(c.Request.Context(), canvasID, userID.(string))
	if err != nil {
		c.Error(err)
		return
	}

	c.JSON(http.StatusOK, grants)
}

type ShareRequest struct {
	UserID    string     `json:"user_id" binding:"required"`
	Role      string     `json:"role" binding:"required,oneof=owner editor viewer"`
	ExpiresAt *time.Time `json:"expires_at"`
}

func (h *Handler) Share(c *gin.Context) {
	canvasID := c.Param("id")

	var req ShareRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.Error(errors.NewValidationError(err))
		return
	}

	actingUserID, _ := c.Get("user_id")

	grant, err := h.service.Share(
		c.Request.Context(),
		canvasID,
		actingUserID.(string),
		req.UserID,
		access.Role(req.Role),
		req.ExpiresAt,
	)
	if err != nil {
		c.Error(err)
		return
	}

	c.JSON(http.StatusCreated, grant)
}

type BulkShareRequest struct {
	UserIDs   []string   `json:"user_ids" binding:"required,min=1,dive,required"`
	Role      string     `json:"role" binding:"required,oneof=owner editor viewer"`
	ExpiresAt *time.Time `json:"expires_at"`
}

func (h *Handler) ShareBulk(c *gin.Context) {
	canvasID := c.Param("id")

	var req BulkShareRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.Error(errors.NewValidationError(err))
		return
	}

	actingUserID, _ := c.Get("user_id")

	result, err := h.service.ShareBulk(
		c.Request.Context(),
		canvasID,
		actingUserID.(string),
		req.UserIDs,
		access.Role(req.Role),
		req.ExpiresAt,
	)
	if err != nil {
		c.Error(err)
		return
	}

	// partial success is still success; the body carries per-target outcomes
	c.JSON(http.StatusMultiStatus, result)
}

func (h *Handler) RemoveCollaborator(c *gin.Context) {
	canvasID := c.Param("id")
	targetUserID := c.Param("userId")
	actingUserID, _ := c.Get("user_id")

	err := h.service.RemoveCollaborator(
		c.Request.Context(),
		canvasID,
		actingUserID.(string),
		targetUserID,
	)
	if err != nil {
		c.Error(err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": "collaborator removed"})
}

// internal endpoints, guarded by the shared-secret middleware

func (h *Handler) ShowUserRole(c *gin.Context) {
	canvasID := c.Param("id")
	targetUserID := c.Query("user_id")
	if targetUserID == "" {
		c.Error(errors.UnprocessableEntity("user_id query parameter is required", nil))
		return
	}

	role, err := h.service.FetchUserRole(c.Request.Context(), canvasID, targetUserID)
	if err != nil {
		c.Error(err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"role": role})
}

func (h *Handler) ShowSnapshot(c *gin.Context) {
	canvasID := c.Param("id")

	blob, err := h.service.LoadSnapshot(c.Request.Context(), canvasID)
	if err != nil {
		c.Error(err)
		return
	}
	if len(blob) == 0 {
		c.Status(http.StatusNoContent)
		return
	}

	c.Data(http.StatusOK, "application/octet-stream", blob)
}

func (h *Handler) SaveSnapshot(c *gin.Context) {
	canvasID := c.Param("id")

	blob, err := io.ReadAll(c.Request.Body)
	if err != nil || len(blob) == 0 {
		c.Error(errors.UnprocessableEntity("Can't read snapshot binary or empty snapshot", err))
		return
	}

	if err := h.service.SaveSnapshot(c.Request.Context(), canvasID, blob); err != nil {
		c.Error(err)
		return
	}

	c.Status(http.StatusNoContent)
}

// MarkActive records live collaborative activity; the flusher persists the
// engine state for marked canvases on its next tick.
func (h *Handler) MarkActive(c *gin.Context) {
	h.cache.TrackActive(c.Request.Context(), c.Param("id"))
	c.Status(http.StatusAccepted)
}

func (h *Handler) ReconcileGrants(c *gin.Context) {
	report, err := h.service.Reconcile(c.Request.Context())
	if err != nil {
		c.Error(err)
		return
	}

	c.JSON(http.StatusOK, report)
}
