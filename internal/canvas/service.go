package canvas

import (
	"collaborative-canvas-backend/internal/access"
	"collaborative-canvas-backend/internal/errors"
	"collaborative-canvas-backend/internal/sync"
	"collaborative-canvas-backend/internal/worker"
	"collaborative-canvas-backend/redis"
	"context"
	defError "errors"
	"fmt"
	"log"
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// CommentCascader removes the comment thread of a deleted canvas. Satisfied
// by the comment service; declared here so the canvas package stays
// independent of the comment package.
type CommentCascader interface {
	DeleteAllForCanvas(ctx context.Context, canvasID string) (int64, error)
}

type Service interface {
	CreateBlank(ctx context.Context, creatorID, title string) (*Canvas, error)
	SaveOrCreate(ctx context.Context, id, userID string, design []byte, meta MetadataInput) (*Canvas, bool, error)
	GetCanvas(ctx context.Context, id, userID string) (*Canvas, error)
	ListAccessible(ctx context.Context, userID string, page, pageSize int) (*PaginatedCanvases, error)
	DeleteCanvas(ctx context.Context, id, userID string) error
	Share(ctx context.Context, canvasID, actingUserID, targetUserID string, role access.Role, expiresAt *time.Time) (*access.Grant, error)
	ShareBulk(ctx context.Context, canvasID, actingUserID string, targetUserIDs []string, role access.Role, expiresAt *time.Time) (*BulkShareResult, error)
	ListCollaborators(ctx context.Context, canvasID, requesterID string) ([]access.Grant, error)
	RemoveCollaborator(ctx context.Context, canvasID, actingUserID, targetUserID string) error
	SaveSnapshot(ctx context.Context, canvasID string, blob []byte) error
	LoadSnapshot(ctx context.Context, canvasID string) ([]byte, error)
	FetchUserRole(ctx context.Context, canvasID, userID string) (string, error)
	Reconcile(ctx context.Context) (*ReconcileReport, error)
}

type MetadataInput struct {
	Title     string
	CreatedAt *time.Time
}

type ListMeta struct {
	Total       int64 `json:"total"`
	CurrentPage int   `json:"current_page"`
	PerPage     int   `json:"per_page"`
	TotalPage   int   `json:"total_page"`
}

type PaginatedCanvases struct {
	Data []Canvas `json:"data"`
	Meta ListMeta `json:"meta"`
}

type BulkShareFailure struct {
	UserID string `json:"user_id"`
	Error  string `json:"error"`
}

// BulkShareResult reports per-target outcomes; one bad target never aborts
// the rest of the batch.
type BulkShareResult struct {
	Granted []string           `json:"granted"`
	Failed  []BulkShareFailure `json:"failed"`
}

type DefaultService struct {
	repository Repository
	grants     access.Service
	reconciler *Reconciler
	comments   CommentCascader
	syncClient sync.Client
	cache      *redis.Cache
	pool       *worker.WorkerPool
}

func NewService(
	repository Repository,
	grants access.Service,
	reconciler *Reconciler,
	comments CommentCascader,
	syncClient sync.Client,
	cache *redis.Cache,
	pool *worker.WorkerPool,
) Service {
	return &DefaultService{
		repository: repository,
		grants:     grants,
		reconciler: reconciler,
		comments:   comments,
		syncClient: syncClient,
		cache:      cache,
		pool:       pool,
	}
}

// CreateBlank assigns a fresh id, persists an empty design payload and
// creates the creator's owner grant. The document write and the grant write
// are best-effort sequential, not transactional: a failed grant is a
// recoverable inconsistency that self-heal repairs on the next access check.
func (s *DefaultService) CreateBlank(ctx context.Context, creatorID, title string) (*Canvas, error) {
	if creatorID == "" {
		return nil, errors.NewValidationError(defError.New("creator id is required"))
	}

	canvas := &Canvas{
		ID:          uuid.NewString(),
		OwnerUserID: creatorID,
		Title:       title,
		DesignData:  DefaultDesignData,
	}
	if err := s.repository.Insert(ctx, canvas); err != nil {
		if defError.Is(err, gorm.ErrDuplicatedKey) {
			return nil, errors.Conflict("Canvas id already exists", err)
		}
		return nil, err
	}

	s.grantInitialOwner(ctx, canvas)
	s.bumpListVersion(ctx, creatorID)
	return canvas, nil
}

// SaveOrCreate upserts a canvas by caller-supplied id. Whether this is a
// create is decided by an existence read before the write; the narrow race
// between the two is closed by falling back to the update path when the
// insert reports a duplicate key.
func (s *DefaultService) SaveOrCreate(ctx context.Context, id, userID string, design []byte, meta MetadataInput) (*Canvas, bool, error) {
	if id == "" || userID == "" {
		return nil, false, errors.NewValidationError(defError.New("canvas id and user id are required"))
	}
	if err := ValidateDesignData(design); err != nil {
		return nil, false, err
	}

	_, err := s.repository.FindMetaByID(ctx, id)
	switch {
	case err == nil:
		return s.replaceExisting(ctx, id, userID, design, meta)
	case defError.Is(err, gorm.ErrRecordNotFound):
		// create path
	default:
		return nil, false, err
	}

	canvas := &Canvas{
		ID:          id,
		OwnerUserID: userID,
		Title:       meta.Title,
		DesignData:  datatypes.JSON(design),
	}
	if meta.CreatedAt != nil {
		canvas.CreatedAt = meta.CreatedAt.UTC()
	}
	if err := s.repository.Insert(ctx, canvas); err != nil {
		if defError.Is(err, gorm.ErrDuplicatedKey) {
			// lost the create race to a concurrent writer
			return s.replaceExisting(ctx, id, userID, design, meta)
		}
		return nil, false, err
	}

	s.grantInitialOwner(ctx, canvas)
	s.bumpListVersion(ctx, userID)
	return canvas, true, nil
}

func (s *DefaultService) replaceExisting(ctx context.Context, id, userID string, design []byte, meta MetadataInput) (*Canvas, bool, error) {
	if err := s.reconciler.Authorize(ctx, id, userID, access.RoleEditor); err != nil {
		return nil, false, err
	}
	if err := s.repository.ReplaceContent(ctx, id, datatypes.JSON(design), meta.Title, meta.CreatedAt); err != nil {
		if defError.Is(err, gorm.ErrRecordNotFound) {
			return nil, false, errors.NotFound("Canvas not found", err)
		}
		return nil, false, err
	}
	canvas, err := s.repository.FindByID(ctx, id)
	if err != nil {
		return nil, false, err
	}
	return canvas, false, nil
}

func (s *DefaultService) grantInitialOwner(ctx context.Context, canvas *Canvas) {
	if _, err := s.grants.Grant(ctx, canvas.ID, canvas.OwnerUserID, access.RoleOwner, canvas.OwnerUserID, nil); err != nil {
		// recoverable: self-heal restores this grant on the next access check
		log.Printf("owner grant for new canvas %s failed: %v", canvas.ID, err)
	}
}

func (s *DefaultService) GetCanvas(ctx context.Context, id, userID string) (*Canvas, error) {
	canvas, err := s.repository.FindByID(ctx, id)
	if err != nil {
		if defError.Is(err, gorm.ErrRecordNotFound) {
			return nil, errors.NotFound("Canvas not found", err)
		}
		return nil, err
	}
	if err := s.reconciler.Authorize(ctx, id, userID, access.RoleViewer); err != nil {
		return nil, err
	}
	return canvas, nil
}

// ListAccessible pages through every canvas the user owns or holds a grant
// on, cached behind a per-user version key.
func (s *DefaultService) ListAccessible(ctx context.Context, userID string, page, pageSize int) (*PaginatedCanvases, error) {
	versionKey := listVersionKey(userID)
	v := s.cache.GetVersion(ctx, versionKey)
	cacheKey := fmt.Sprintf("canvases:u:%s:v:%d:p:%d:ps:%d", userID, v, page, pageSize)

	var result PaginatedCanvases
	found, _ := s.cache.Get(ctx, cacheKey, &result)
	if found {
		return &result, nil
	}

	canvases, total, err := s.repository.ListAccessible(ctx, userID, page, pageSize)
	if err != nil {
		return nil, err
	}
	totalPages := int((total + int64(pageSize) - 1) / int64(pageSize))
	result = PaginatedCanvases{
		Data: canvases,
		Meta: ListMeta{
			Total:       total,
			CurrentPage: page,
			PerPage:     pageSize,
			TotalPage:   totalPages,
		},
	}
	go s.cache.Set(context.Background(), cacheKey, result, 24*time.Hour)

	return &result, nil
}

// DeleteCanvas removes the canvas and cascades its grants and comments.
// Cascade failures after the canvas row is gone leave unreachable rows, not
// broken invariants; the reconciliation sweep reaps them.
func (s *DefaultService) DeleteCanvas(ctx context.Context, id, userID string) error {
	if err := s.reconciler.Authorize(ctx, id, userID, access.RoleOwner); err != nil {
		return err
	}

	removed, err := s.repository.Delete(ctx, id)
	if err != nil {
		return err
	}
	if !removed {
		return errors.NotFound("Canvas not found", nil)
	}

	if _, err := s.grants.CascadeDeleteForCanvas(ctx, id); err != nil {
		log.Printf("grant cascade for canvas %s failed: %v", id, err)
	}
	if _, err := s.comments.DeleteAllForCanvas(ctx, id); err != nil {
		log.Printf("comment cascade for canvas %s failed: %v", id, err)
	}

	s.bumpListVersion(ctx, userID)
	s.notifySync(func(ctx context.Context) error {
		return s.syncClient.RemoveCanvas(ctx, id)
	})
	return nil
}

// Share grants a role on a canvas. Editors may share, not just owners.
func (s *DefaultService) Share(ctx context.Context, canvasID, actingUserID, targetUserID string, role access.Role, expiresAt *time.Time) (*access.Grant, error) {
	if err := s.reconciler.Authorize(ctx, canvasID, actingUserID, access.RoleEditor); err != nil {
		return nil, err
	}
	return s.shareAuthorized(ctx, canvasID, actingUserID, targetUserID, role, expiresAt)
}

func (s *DefaultService) shareAuthorized(ctx context.Context, canvasID, actingUserID, targetUserID string, role access.Role, expiresAt *time.Time) (*access.Grant, error) {
	if targetUserID == "" {
		return nil, errors.NewValidationError(defError.New("target user id is required"))
	}
	if targetUserID == actingUserID {
		return nil, errors.UnprocessableEntity("Can't share a canvas with yourself", nil)
	}

	grant, err := s.grants.Grant(ctx, canvasID, targetUserID, role, actingUserID, expiresAt)
	if err != nil {
		return nil, err
	}

	s.bumpListVersion(ctx, targetUserID)
	s.notifySync(func(ctx context.Context) error {
		return s.syncClient.UpdateUserPermission(ctx, canvasID, targetUserID, string(role))
	})
	return grant, nil
}

// ShareBulk applies Share to each target independently and reports each
// outcome.
func (s *DefaultService) ShareBulk(ctx context.Context, canvasID, actingUserID string, targetUserIDs []string, role access.Role, expiresAt *time.Time) (*BulkShareResult, error) {
	if err := s.reconciler.Authorize(ctx, canvasID, actingUserID, access.RoleEditor); err != nil {
		return nil, err
	}

	result := &BulkShareResult{Granted: []string{}, Failed: []BulkShareFailure{}}
	for _, targetUserID := range targetUserIDs {
		if _, err := s.shareAuthorized(ctx, canvasID, actingUserID, targetUserID, role, expiresAt); err != nil {
			result.Failed = append(result.Failed, BulkShareFailure{
				UserID: targetUserID,
				Error:  err.Error(),
			})
			continue
		}
		result.Granted = append(result.Granted, targetUserID)
	}
	return result, nil
}

func (s *DefaultService) ListCollaborators(ctx context.Context, canvasID, requesterID string) ([]access.Grant, error) {
	if err := s.reconciler.Authorize(ctx, canvasID, requesterID, access.RoleEditor); err != nil {
		return nil, err
	}
	return s.grants.ListGrantsForCanvas(ctx, canvasID)
}

// RemoveCollaborator revokes a grant. Revoking the last remaining owner
// grant is rejected: ownership moves by granting owner to someone else
// first, never by orphaning the canvas.
func (s *DefaultService) RemoveCollaborator(ctx context.Context, canvasID, actingUserID, targetUserID string) error {
	if err := s.reconciler.Authorize(ctx, canvasID, actingUserID, access.RoleOwner); err != nil {
		return err
	}

	target, err := s.targetGrant(ctx, canvasID, targetUserID)
	if err != nil {
		return err
	}
	if target.Role == access.RoleOwner {
		owners, err := s.grants.CountOwners(ctx, canvasID)
		if err != nil {
			return err
		}
		if owners <= 1 {
			return errors.UnprocessableEntity("Can't remove the last owner of a canvas", nil)
		}
	}

	removed, err := s.grants.Revoke(ctx, canvasID, targetUserID)
	if err != nil {
		return err
	}
	if !removed {
		return errors.NotFound("Collaborator not found", nil)
	}

	s.bumpListVersion(ctx, targetUserID)
	s.notifySync(func(ctx context.Context) error {
		return s.syncClient.UpdateUserPermission(ctx, canvasID, targetUserID, "none")
	})
	return nil
}

func (s *DefaultService) targetGrant(ctx context.Context, canvasID, targetUserID string) (*access.Grant, error) {
	grants, err := s.grants.ListGrantsForCanvas(ctx, canvasID)
	if err != nil {
		return nil, err
	}
	for i := range grants {
		if grants[i].UserID == targetUserID {
			return &grants[i], nil
		}
	}
	return nil, errors.NotFound("Collaborator not found", nil)
}

// SaveSnapshot overwrites the collaborative snapshot with the engine's
// latest binary state. Last-write-wins, no merge with the previous blob.
func (s *DefaultService) SaveSnapshot(ctx context.Context, canvasID string, blob []byte) error {
	if len(blob) == 0 {
		return errors.NewValidationError(defError.New("snapshot is empty"))
	}
	if err := s.repository.SaveSnapshot(ctx, canvasID, blob); err != nil {
		if defError.Is(err, gorm.ErrRecordNotFound) {
			return errors.NotFound("Canvas not found", err)
		}
		return err
	}
	return nil
}

// LoadSnapshot returns the last durable snapshot for session bootstrap; nil
// when the canvas exists but was never snapshotted.
func (s *DefaultService) LoadSnapshot(ctx context.Context, canvasID string) ([]byte, error) {
	blob, err := s.repository.LoadSnapshot(ctx, canvasID)
	if err != nil {
		if defError.Is(err, gorm.ErrRecordNotFound) {
			return nil, errors.NotFound("Canvas not found", err)
		}
		return nil, err
	}
	return blob, nil
}

// FetchUserRole resolves the effective role for the sync engine's session
// admission, "none" when the user has no access.
func (s *DefaultService) FetchUserRole(ctx context.Context, canvasID, userID string) (string, error) {
	role, err := s.reconciler.RoleFor(ctx, canvasID, userID)
	if err != nil {
		return "", err
	}
	if role == "" {
		return "none", nil
	}
	return string(role), nil
}

func (s *DefaultService) Reconcile(ctx context.Context) (*ReconcileReport, error) {
	return s.reconciler.ReconcileAll(ctx)
}

func (s *DefaultService) bumpListVersion(ctx context.Context, userID string) {
	s.cache.IncrementVersion(ctx, listVersionKey(userID))
}

func (s *DefaultService) notifySync(task worker.Task) {
	s.pool.Submit(func(ctx context.Context) error {
		ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
		defer cancel()
		return task(ctx)
	})
}

func listVersionKey(userID string) string {
	return fmt.Sprintf("user:%s:canvases:version", userID)
}
