package domain

import "time"

// Role enumerates the actor roles known to the system.
type Role string

const (
	RoleCitizen Role = "CITIZEN"
	RoleOfficer Role = "OFFICER"
	RoleAdmin   Role = "ADMIN"
)

// ValidRole reports whether r is a member of the role enumeration.
func ValidRole(r Role) bool {
	switch r {
	case RoleCitizen, RoleOfficer, RoleAdmin:
		return true
	}
	return false
}

// User is the domain model for every account: citizens who file complaints,
// officers who resolve them, and admins who supervise.
type User struct {
	ID           string
	Name         string
	Email        string
	PasswordHash string
	Role         Role
	Active       bool
	CreatedAt    time.Time
	UpdatedAt    time.Time
}
