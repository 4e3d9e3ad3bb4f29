package ports

import (
	"WasherHub/internal/core/domain"
	"context"

	"github.com/google/uuid"
)

// VerificationRepository defines persistence for cached verification status.
// Only the sync service writes through this port.
type VerificationRepository interface {
	Create(ctx context.Context, status *domain.VerificationStatus) error

	// GetByWasherID finds the cached status for a washer.
	// Returns (nil, nil) when the washer never connected an account.
	GetByWasherID(ctx context.Context, washerID uuid.UUID) (*domain.VerificationStatus, error)

	// GetByAccountID finds the status owning an external account id; used to
	// route provider callbacks. Returns (nil, nil) when unknown.
	GetByAccountID(ctx context.Context, accountID string) (*domain.VerificationStatus, error)

	Update(ctx context.Context, status *domain.VerificationStatus) error
}
