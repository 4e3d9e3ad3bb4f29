package ports

import (
	"WasherHub/internal/core/domain"
	"context"

	"github.com/google/uuid"
)

// PayoutRepository defines persistence for payout requests. Operations that
// must be atomic across the payout and earnings tables live here so the
// storage adapter can run them in one transaction.
type PayoutRepository interface {
	// CreateWithAllocation persists the request and flips every allocated
	// earning available -> processing in the same transaction. If any
	// allocated earning is no longer available (claimed by a racing request)
	// the whole operation aborts with a concurrent_modification domain error
	// and nothing is changed.
	CreateWithAllocation(ctx context.Context, request *domain.PayoutRequest) error

	GetByID(ctx context.Context, id uuid.UUID) (*domain.PayoutRequest, error)

	// ListByWasher returns the washer's requests, newest first.
	ListByWasher(ctx context.Context, washerID uuid.UUID) ([]*domain.PayoutRequest, error)

	// Review transitions a pending request to approved, paid or rejected.
	// On paid the allocated earnings move processing -> paid; on rejected they
	// return processing -> available. Both happen in the same transaction as
	// the status flip. Returns an invalid_transition domain error when the
	// request is not in a reviewable state.
	Review(ctx context.Context, id uuid.UUID, decision domain.PayoutStatus, reviewedBy string, notes *string) (*domain.PayoutRequest, error)
}
