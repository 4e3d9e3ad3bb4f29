package domain

import "github.com/google/uuid"

// Role is a custom type for the marketplace role ENUM.
type Role string

const (
	RoleWasher   Role = "washer"
	RoleCustomer Role = "customer"
	RoleAdmin    Role = "admin"
)

// IdentitySnapshot is the read-only view of a washer supplied by the
// identity/auth collaborator. Approval state is owned there; this core
// only consumes it.
type IdentitySnapshot struct {
	WasherID   uuid.UUID
	Role       Role
	IsApproved bool
}
