package access

import (
	"time"
)

// Role is the permission level a grant carries. Roles are totally ordered:
// owner > editor > viewer.
type Role string

const (
	RoleOwner  Role = "owner"
	RoleEditor Role = "editor"
	RoleViewer Role = "viewer"
)

var roleRanks = map[Role]int{
	RoleViewer: 1,
	RoleEditor: 2,
	RoleOwner:  3,
}

// Rank returns the role's position in the total order, 0 for unknown roles.
func (r Role) Rank() int {
	return roleRanks[r]
}

// Valid reports whether r is one of the three known roles.
func (r Role) Valid() bool {
	return r.Rank() > 0
}

// AtLeast reports whether r satisfies a check requiring min.
func (r Role) AtLeast(min Role) bool {
	return r.Rank() >= min.Rank()
}

// Grant is a single role assignment for one user on one canvas. At most one
// grant exists per (canvas, user) pair; re-granting replaces the role.
type Grant struct {
	ID          uint64     `gorm:"primaryKey" json:"-"`
	CanvasID    string     `gorm:"uniqueIndex:idx_grant_canvas_user;index" json:"canvas_id"`
	UserID      string     `gorm:"uniqueIndex:idx_grant_canvas_user;index" json:"user_id"`
	Role        Role       `json:"role"`
	GrantedByID string     `json:"granted_by"`
	GrantedAt   time.Time  `json:"granted_at"`
	ExpiresAt   *time.Time `json:"expires_at,omitempty"`
	CreatedAt   time.Time  `json:"-"`
	UpdatedAt   time.Time  `json:"-"`
}

// TableName pins the table; the orphan purge references it by name in raw
// SQL, so it must not drift with gorm's default pluralization.
func (Grant) TableName() string {
	return "access_grants"
}

// Expired reports whether the grant has an expiry in the past. Expired
// grants are treated as absent by access checks and purged by the
// reconciliation sweep.
func (g *Grant) Expired(now time.Time) bool {
	return g.ExpiresAt != nil && g.ExpiresAt.Before(now)
}
