package comment

import (
	"context"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// Repository defines the interface for comment data access
type Repository interface {
	Upsert(ctx context.Context, comment *Comment) error
	Find(ctx context.Context, canvasID, commentID string) (*Comment, error)
	ListByCanvas(ctx context.Context, canvasID string) ([]Comment, error)
	Delete(ctx context.Context, canvasID, commentID string) (bool, error)
	DeleteAllForCanvas(ctx context.Context, canvasID string) (int64, error)
}

type RepositoryImpl struct {
	db *gorm.DB
}

// NewRepository creates a new comment repository
func NewRepository(db *gorm.DB) Repository {
	return &RepositoryImpl{db: db}
}

// Upsert writes the comment keyed by (canvas_id, id). A re-submission
// overwrites text and timestamp but keeps created_at.
func (r *RepositoryImpl) Upsert(ctx context.Context, comment *Comment) error {
	return r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "canvas_id"}, {Name: "id"}},
		DoUpdates: clause.AssignmentColumns([]string{
			"text", "timestamp", "updated_at",
		}),
	}).Create(comment).Error
}

func (r *RepositoryImpl) Find(ctx context.Context, canvasID, commentID string) (*Comment, error) {
	var comment Comment
	err := r.db.WithContext(ctx).
		Where("canvas_id = ? AND id = ?", canvasID, commentID).
		First(&comment).Error
	if err != nil {
		return nil, err
	}
	return &comment, nil
}

// ListByCanvas returns the thread in client logical-time order.
func (r *RepositoryImpl) ListByCanvas(ctx context.Context, canvasID string) ([]Comment, error) {
	var comments []Comment
	err := r.db.WithContext(ctx).
		Where("canvas_id = ?", canvasID).
		Order("timestamp ASC").
		Find(&comments).Error
	return comments, err
}

func (r *RepositoryImpl) Delete(ctx context.Context, canvasID, commentID string) (bool, error) {
	result := r.db.WithContext(ctx).
		Where("canvas_id = ? AND id = ?", canvasID, commentID).
		Delete(&Comment{})
	return result.RowsAffected > 0, result.Error
}

// DeleteAllForCanvas removes the whole thread; called on canvas delete with
// the same cascade discipline as grants.
func (r *RepositoryImpl) DeleteAllForCanvas(ctx context.Context, canvasID string) (int64, error) {
	result := r.db.WithContext(ctx).
		Where("canvas_id = ?", canvasID).
		Delete(&Comment{})
	return result.RowsAffected, result.Error
}
