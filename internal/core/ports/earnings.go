package ports

import (
	"WasherHub/internal/core/domain"
	"context"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// EarningsRepository defines persistence for the earnings ledger.
type EarningsRepository interface {
	// Create appends a new ledger entry. Returns a duplicate_booking domain
	// error when an entry already exists for (washer, booking).
	Create(ctx context.Context, earning *domain.Earning) error

	// GetByBooking finds the entry for a (washer, booking) pair.
	// Returns (nil, nil) when none exists.
	GetByBooking(ctx context.Context, washerID, bookingID uuid.UUID) (*domain.Earning, error)

	// ListAvailable returns the washer's available entries ordered ascending
	// by MadeAvailableAt. This ordering is what makes allocation FIFO.
	ListAvailable(ctx context.Context, washerID uuid.UUID) ([]*domain.Earning, error)

	// SumByStatus totals the washer's entries in the given status.
	SumByStatus(ctx context.Context, washerID uuid.UUID, status domain.EarningStatus) (decimal.Decimal, error)

	// MarkPaid transitions the given entries processing -> paid. Returns an
	// invalid_transition domain error if any entry is not processing; in that
	// case nothing is changed.
	MarkPaid(ctx context.Context, earningIDs []uuid.UUID) error
}
