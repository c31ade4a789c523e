package access

import (
	"context"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// Repository defines the interface for grant data access
type Repository interface {
	Upsert(ctx context.Context, grant *Grant) error
	Find(ctx context.Context, canvasID, userID string) (*Grant, error)
	Delete(ctx context.Context, canvasID, userID string) (bool, error)
	ListForCanvas(ctx context.Context, canvasID string) ([]Grant, error)
	CountByRole(ctx context.Context, canvasID string, role Role) (int64, error)
	DeleteAllForCanvas(ctx context.Context, canvasID string) (int64, error)
	DeleteExpired(ctx context.Context) (int64, error)
	DeleteOrphaned(ctx context.Context) (int64, error)
}

type RepositoryImpl struct {
	db *gorm.DB
}

// NewRepository creates a new grant repository
func NewRepository(db *gorm.DB) Repository {
	return &RepositoryImpl{db: db}
}

// Upsert writes the grant, replacing any existing grant for the same
// (canvas_id, user_id) pair. Replacement is last-write-wins; downgrades are
// not rejected here.
func (r *RepositoryImpl) Upsert(ctx context.Context, grant *Grant) error {
	return r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "canvas_id"}, {Name: "user_id"}},
		DoUpdates: clause.AssignmentColumns([]string{
			"role", "granted_by_id", "granted_at", "expires_at", "updated_at",
		}),
	}).Create(grant).Error
}

func (r *RepositoryImpl) Find(ctx context.Context, canvasID, userID string) (*Grant, error) {
	var grant Grant
	err := r.db.WithContext(ctx).
		Where("canvas_id = ? AND user_id = ?", canvasID, userID).
		First(&grant).Error
	if err != nil {
		return nil, err
	}
	return &grant, nil
}

func (r *RepositoryImpl) Delete(ctx context.Context, canvasID, userID string) (bool, error) {
	result := r.db.WithContext(ctx).
		Where("canvas_id = ? AND user_id = ?", canvasID, userID).
		Delete(&Grant{})
	return result.RowsAffected > 0, result.Error
}

func (r *RepositoryImpl) ListForCanvas(ctx context.Context, canvasID string) ([]Grant, error) {
	var grants []Grant
	err := r.db.WithContext(ctx).
		Where("canvas_id = ?", canvasID).
		Order("granted_at ASC").
		Find(&grants).Error
	return grants, err
}

func (r *RepositoryImpl) CountByRole(ctx context.Context, canvasID string, role Role) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).
		Model(&Grant{}).
		Where("canvas_id = ? AND role = ?", canvasID, role).
		Count(&count).Error
	return count, err
}

// DeleteAllForCanvas removes every grant for a canvas. Called exactly once
// as part of canvas deletion.
func (r *RepositoryImpl) DeleteAllForCanvas(ctx context.Context, canvasID string) (int64, error) {
	result := r.db.WithContext(ctx).
		Where("canvas_id = ?", canvasID).
		Delete(&Grant{})
	return result.RowsAffected, result.Error
}

// DeleteExpired purges grants whose expiry has passed. Part of the
// maintenance sweep.
func (r *RepositoryImpl) DeleteExpired(ctx context.Context) (int64, error) {
	result := r.db.WithContext(ctx).
		Where("expires_at IS NOT NULL AND expires_at < NOW()").
		Delete(&Grant{})
	return result.RowsAffected, result.Error
}

// DeleteOrphaned drops grants whose canvas was deleted but whose cascade
// never ran. References the canvases table by name to avoid importing the
// canvas domain.
func (r *RepositoryImpl) DeleteOrphaned(ctx context.Context) (int64, error) {
	result := r.db.WithContext(ctx).
		Exec("DELETE FROM access_grants WHERE canvas_id NOT IN (SELECT id FROM canvases)")
	return result.RowsAffected, result.Error
}
