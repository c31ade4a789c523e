package access

import (
	"collaborative-canvas-backend/internal/errors"
	"context"
	defError "errors"
	"time"

	"gorm.io/gorm"
)

// Service is the single source of truth for "who may do what to which
// canvas". It has no knowledge of canvas content.
type Service interface {
	Grant(ctx context.Context, canvasID, userID string, role Role, grantedBy string, expiresAt *time.Time) (*Grant, error)
	Revoke(ctx context.Context, canvasID, userID string) (bool, error)
	HasAccess(ctx context.Context, canvasID, userID string, required Role) (bool, error)
	ListGrantsForCanvas(ctx context.Context, canvasID string) ([]Grant, error)
	CountOwners(ctx context.Context, canvasID string) (int64, error)
	CascadeDeleteForCanvas(ctx context.Context, canvasID string) (int64, error)
	PurgeExpired(ctx context.Context) (int64, error)
	PurgeOrphaned(ctx context.Context) (int64, error)
}

type DefaultService struct {
	repository Repository
	now        func() time.Time
}

// NewService creates a new access service
func NewService(repository Repository) *DefaultService {
	return &DefaultService{
		repository: repository,
		now:        time.Now,
	}
}

// Grant upserts a role assignment keyed by (canvasID, userID). Granting a
// lower role over a higher one is a downgrade, not an error.
func (s *DefaultService) Grant(ctx context.Context, canvasID, userID string, role Role, grantedBy string, expiresAt *time.Time) (*Grant, error) {
	if canvasID == "" || userID == "" {
		return nil, errors.NewValidationError(defError.New("canvas id and user id are required"))
	}
	if !role.Valid() {
		return nil, errors.NewValidationError(defError.New("unknown role: " + string(role)))
	}

	grant := &Grant{
		CanvasID:    canvasID,
		UserID:      userID,
		Role:        role,
		GrantedByID: grantedBy,
		GrantedAt:   s.now().UTC(),
		ExpiresAt:   expiresAt,
	}
	if err := s.repository.Upsert(ctx, grant); err != nil {
		return nil, err
	}
	return grant, nil
}

// Revoke deletes the grant for the pair if present and reports whether
// anything was removed. Last-owner protection is the caller's concern.
func (s *DefaultService) Revoke(ctx context.Context, canvasID, userID string) (bool, error) {
	return s.repository.Delete(ctx, canvasID, userID)
}

// HasAccess is the only authorization primitive. An absent or expired grant
// means no access; a store failure propagates as an error and is never
// read as "no access".
func (s *DefaultService) HasAccess(ctx context.Context, canvasID, userID string, required Role) (bool, error) {
	grant, err := s.repository.Find(ctx, canvasID, userID)
	if err != nil {
		if defError.Is(err, gorm.ErrRecordNotFound) {
			return false, nil
		}
		return false, err
	}
	if grant.Expired(s.now()) {
		return false, nil
	}
	return grant.Role.AtLeast(required), nil
}

func (s *DefaultService) ListGrantsForCanvas(ctx context.Context, canvasID string) ([]Grant, error) {
	return s.repository.ListForCanvas(ctx, canvasID)
}

func (s *DefaultService) CountOwners(ctx context.Context, canvasID string) (int64, error) {
	return s.repository.CountByRole(ctx, canvasID, RoleOwner)
}

// CascadeDeleteForCanvas removes all grants for a canvas. Skipping it after
// a canvas delete leaves dangling rows in the per-user grant index.
func (s *DefaultService) CascadeDeleteForCanvas(ctx context.Context, canvasID string) (int64, error) {
	return s.repository.DeleteAllForCanvas(ctx, canvasID)
}

func (s *DefaultService) PurgeExpired(ctx context.Context) (int64, error) {
	return s.repository.DeleteExpired(ctx)
}

func (s *DefaultService) PurgeOrphaned(ctx context.Context) (int64, error) {
	return s.repository.DeleteOrphaned(ctx)
}
