package ports

import (
	"WasherHub/internal/core/domain"
	"context"

	"github.com/google/uuid"
)

// IdentityPort queries the identity/auth collaborator for the read-only
// snapshot the access gate consumes. Returns (nil, nil) when no such
// authenticated washer exists.
type IdentityPort interface {
	GetIdentity(ctx context.Context, washerID uuid.UUID) (*domain.IdentitySnapshot, error)
}
