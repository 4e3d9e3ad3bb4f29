package ports

import (
	"WasherHub/internal/core/domain"
	"context"

	"github.com/google/uuid"
)

// ReviewNotifier publishes a pending payout request to the administrative
// review channel. It returns the channel's storage reference for the posted
// notification (the message id in the Telegram implementation).
type ReviewNotifier interface {
	PublishPayoutRequest(ctx context.Context, request *domain.PayoutRequest) (storageRef string, err error)
}

// PayoutReviewer is the surface the review channel drives. Implemented by the
// payout engine; kept as a port so the Telegram adapter does not import the
// service package.
type PayoutReviewer interface {
	Review(ctx context.Context, payoutID uuid.UUID, decision domain.PayoutStatus, reviewedBy string, notes *string) (*domain.PayoutRequest, error)
}
