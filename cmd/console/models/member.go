package models

import (
	"time"

	"github.com/google/uuid"
)

// Role is a project member's trust level
type Role string

const (
	RoleViewer      Role = "viewer"
	RoleContributor Role = "contributor"
	RoleMaintainer  Role = "maintainer"
	RoleOwner       Role = "owner"
)

var roleRank = map[Role]int{
	RoleViewer:      0,
	RoleContributor: 1,
	RoleMaintainer:  2,
	RoleOwner:       3,
}

// AtLeast reports whether the role grants at least the given trust level
func (r Role) AtLeast(min Role) bool {
	return roleRank[r] >= roleRank[min]
}

// Member is one project membership.
// Maps to: project_members table
type Member struct {
	ProjectID uuid.UUID `db:"project_id" json:"project_id"`
	UserID    string    `db:"user_id" json:"user_id"`
	Role      Role      `db:"role" json:"role"`
	AddedAt   time.Time `db:"added_at" json:"added_at"`
}
