package canvas

import (
	"collaborative-canvas-backend/internal/errors"
	"encoding/json"
	defError "errors"
	"time"

	"gorm.io/datatypes"
)

// Canvas is a persisted design document. DesignData is the structured
// payload the editor renders; Snapshot is the opaque binary state of the
// external real-time sync engine, on its own lifecycle.
type Canvas struct {
	ID             string         `gorm:"primaryKey" json:"id"`
	OwnerUserID    string         `gorm:"index" json:"owner_user_id"`
	Title          string         `json:"title"`
	DesignData     datatypes.JSON `gorm:"type:jsonb" json:"design_data,omitempty"`
	Snapshot       []byte         `json:"-"`
	LastSnapshotAt *time.Time     `json:"last_snapshot_at,omitempty"`
	CreatedAt      time.Time      `json:"created_at"`
	UpdatedAt      time.Time      `json:"updated_at"`
}

// metadataColumns is the list projection: everything except the bulky
// design payload and the snapshot blob.
var metadataColumns = []string{
	"id", "owner_user_id", "title", "last_snapshot_at", "created_at", "updated_at",
}

// DefaultDesignData is the payload a blank canvas starts with.
var DefaultDesignData = datatypes.JSON(`{"version":"1.0","objects":[],"background":"#ffffff"}`)

type designProbe struct {
	Version json.RawMessage    `json:"version"`
	Objects *[]json.RawMessage `json:"objects"`
}

// ValidateDesignData checks the structural contract of a design payload:
// version must be present and objects must be a sequence. Object order is
// z-order, so the payload is stored as-is, never re-shaped.
func ValidateDesignData(data []byte) error {
	if len(data) == 0 {
		return errors.NewValidationError(defError.New("design data is required"))
	}
	var probe designProbe
	if err := json.Unmarshal(data, &probe); err != nil {
		return errors.NewValidationError(err)
	}
	if len(probe.Version) == 0 || string(probe.Version) == "null" {
		return errors.NewValidationError(defError.New("design data version is required"))
	}
	if probe.Objects == nil {
		return errors.NewValidationError(defError.New("design data objects must be a list"))
	}
	return nil
}
