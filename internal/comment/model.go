package comment

import (
	"time"
)

// Comment is one entry in a canvas's thread. The id is client-supplied and
// stable across edits, so re-submitting the same comment upserts instead of
// duplicating. Timestamp is the client's logical time and drives display
// order; CreatedAt/UpdatedAt are server-assigned.
type Comment struct {
	CanvasID  string    `gorm:"primaryKey" json:"canvas_id"`
	ID        string    `gorm:"primaryKey" json:"id"`
	AuthorID  string    `json:"author_id"`
	Timestamp int64     `gorm:"index" json:"timestamp"`
	Text      string    `json:"text"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}
