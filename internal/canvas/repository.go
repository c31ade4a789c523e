package canvas

import (
	"collaborative-canvas-backend/internal/access"
	"context"
	"time"

	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// Repository defines the interface for canvas data access
type Repository interface {
	Insert(ctx context.Context, canvas *Canvas) error
	ReplaceContent(ctx context.Context, id string, design datatypes.JSON, title string, createdAt *time.Time) error
	FindByID(ctx context.Context, id string) (*Canvas, error)
	FindMetaByID(ctx context.Context, id string) (*Canvas, error)
	ListAccessible(ctx context.Context, userID string, page, pageSize int) ([]Canvas, int64, error)
	ListAllMeta(ctx context.Context) ([]Canvas, error)
	Delete(ctx context.Context, id string) (bool, error)
	SaveSnapshot(ctx context.Context, id string, blob []byte) error
	LoadSnapshot(ctx context.Context, id string) ([]byte, error)
}

type RepositoryImpl struct {
	db *gorm.DB
}

// NewRepository creates a new canvas repository
func NewRepository(db *gorm.DB) Repository {
	return &RepositoryImpl{db: db}
}

// Insert creates the canvas record. A duplicate id surfaces as
// gorm.ErrDuplicatedKey, which callers use as the create-vs-update signal.
func (r *RepositoryImpl) Insert(ctx context.Context, canvas *Canvas) error {
	now := time.Now().UTC()
	if canvas.CreatedAt.IsZero() {
		canvas.CreatedAt = now
	}
	canvas.UpdatedAt = now
	return r.db.WithContext(ctx).Create(canvas).Error
}

// ReplaceContent overwrites the design payload of an existing canvas.
// created_at is only touched when the caller supplies one; updated_at is
// always refreshed.
func (r *RepositoryImpl) ReplaceContent(ctx context.Context, id string, design datatypes.JSON, title string, createdAt *time.Time) error {
	updates := map[string]interface{}{
		"design_data": design,
		"updated_at":  time.Now().UTC(),
	}
	if title != "" {
		updates["title"] = title
	}
	if createdAt != nil {
		updates["created_at"] = createdAt.UTC()
	}
	result := r.db.WithContext(ctx).Model(&Canvas{}).Where("id = ?", id).Updates(updates)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}

func (r *RepositoryImpl) FindByID(ctx context.Context, id string) (*Canvas, error) {
	var canvas Canvas
	err := r.db.WithContext(ctx).Where("id = ?", id).First(&canvas).Error
	if err != nil {
		return nil, err
	}
	return &canvas, nil
}

// FindMetaByID loads a canvas without its design payload and snapshot.
func (r *RepositoryImpl) FindMetaByID(ctx context.Context, id string) (*Canvas, error) {
	var canvas Canvas
	err := r.db.WithContext(ctx).
		Select(metadataColumns).
		Where("id = ?", id).
		First(&canvas).Error
	if err != nil {
		return nil, err
	}
	return &canvas, nil
}

// ListAccessible pages through the union of canvases the user owns and
// canvases the user holds any grant on. The union exists because grant rows
// can lag behind ownership; duplicates collapse because both branches match
// the same primary key.
func (r *RepositoryImpl) ListAccessible(ctx context.Context, userID string, page, pageSize int) ([]Canvas, int64, error) {
	var total int64
	if err := r.db.WithContext(ctx).Model(&Canvas{}).
		Where("owner_user_id = ? OR id IN (?)", userID, r.activeGrantIDs(userID)).
		Count(&total).Error; err != nil {
		return nil, 0, err
	}

	var canvases []Canvas
	offset := (page - 1) * pageSize
	err := r.db.WithContext(ctx).Model(&Canvas{}).
		Where("owner_user_id = ? OR id IN (?)", userID, r.activeGrantIDs(userID)).
		Select(metadataColumns).
		Order("updated_at DESC").
		Offset(offset).
		Limit(pageSize).
		Find(&canvases).Error
	return canvases, total, err
}

// activeGrantIDs selects the canvas ids of the user's unexpired grants. An
// expired grant is absent at read time everywhere, the listing included.
func (r *RepositoryImpl) activeGrantIDs(userID string) *gorm.DB {
	return r.db.Model(&access.Grant{}).
		Select("canvas_id").
		Where("user_id = ?", userID).
		Where("expires_at IS NULL OR expires_at > NOW()")
}

// ListAllMeta feeds the batch grant reconciliation.
func (r *RepositoryImpl) ListAllMeta(ctx context.Context) ([]Canvas, error) {
	var canvases []Canvas
	err := r.db.WithContext(ctx).
		Select(metadataColumns).
		Find(&canvases).Error
	return canvases, err
}

func (r *RepositoryImpl) Delete(ctx context.Context, id string) (bool, error) {
	result := r.db.WithContext(ctx).Where("id = ?", id).Delete(&Canvas{})
	return result.RowsAffected > 0, result.Error
}

// SaveSnapshot overwrites the collaborative snapshot, last-write-wins.
func (r *RepositoryImpl) SaveSnapshot(ctx context.Context, id string, blob []byte) error {
	now := time.Now().UTC()
	result := r.db.WithContext(ctx).Model(&Canvas{}).Where("id = ?", id).Updates(map[string]interface{}{
		"snapshot":         blob,
		"last_snapshot_at": now,
		"updated_at":       now,
	})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}

// LoadSnapshot returns the last durable snapshot, nil when the canvas has
// never been snapshotted.
func (r *RepositoryImpl) LoadSnapshot(ctx context.Context, id string) ([]byte, error) {
	var canvas Canvas
	err := r.db.WithContext(ctx).
		Select("id", "snapshot").
		Where("id = ?", id).
		First(&canvas).Error
	if err != nil {
		return nil, err
	}
	return canvas.Snapshot, nil
}
