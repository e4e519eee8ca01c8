package model

import "github.com/google/uuid"

// UserRole is the authorization role of a directory user.
type UserRole string

const (
	RoleStudent     UserRole = "student"
	RoleCenterAdmin UserRole = "center_admin"
	RoleSuperAdmin  UserRole = "super_admin"
)

// IsAdmin reports whether the role may use the admin surface at all.
func (r UserRole) IsAdmin() bool {
	return r == RoleCenterAdmin || r == RoleSuperAdmin
}

// Actor is the authenticated caller of a service operation.
type Actor struct {
	UserID   uuid.UUID
	Role     UserRole
	CenterID string // empty unless Role is RoleCenterAdmin
}

// CanReview reports whether the actor may review requests and grade
// submissions belonging to centerID.
func (a Actor) CanReview(centerID string) bool {
	switch a.Role {
	case RoleSuperAdmin:
		return true
	case RoleCenterAdmin:
		return a.CenterID != "" && a.CenterID == centerID
	default:
		return false
	}
}
