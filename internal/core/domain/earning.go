package domain

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// EarningStatus is a custom type for the ledger entry status ENUM.
// Transitions are one-way: available -> processing -> paid.
type EarningStatus string

const (
	EarningAvailable  EarningStatus = "available"
	EarningProcessing EarningStatus = "processing"
	EarningPaid       EarningStatus = "paid"
)

// Earning is one append-only ledger entry: the washer's net share of a
// single completed, paid booking. At most one entry exists per
// (washer, booking) pair, and an entry belongs to at most one active
// payout request at a time.
type Earning struct {
	ID              uuid.UUID
	WasherID        uuid.UUID
	BookingID       uuid.UUID
	Amount          decimal.Decimal
	Status          EarningStatus
	MadeAvailableAt time.Time
	CreatedAt       time.Time
	UpdatedAt       time.Time
}

// NewEarning builds an available ledger entry for a completed booking.
func NewEarning(washerID, bookingID uuid.UUID, amount decimal.Decimal, now time.Time) *Earning {
	return &Earning{
		ID:              uuid.New(),
		WasherID:        washerID,
		BookingID:       bookingID,
		Amount:          amount,
		Status:          EarningAvailable,
		MadeAvailableAt: now,
		CreatedAt:       now,
		UpdatedAt:       now,
	}
}
