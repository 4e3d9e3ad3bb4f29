package domain

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// PayoutStatus is a custom type for the payout request status ENUM.
type PayoutStatus string

const (
	PayoutPending  PayoutStatus = "pending"
	PayoutApproved PayoutStatus = "approved"
	PayoutPaid     PayoutStatus = "paid"
	PayoutRejected PayoutStatus = "rejected"
)

// PayoutRequest is a washer-initiated withdrawal from available earnings.
// AllocatedEarningIDs is ordered oldest-first and the sum of the referenced
// earnings always covers RequestedAmount.
type PayoutRequest struct {
	ID                  uuid.UUID
	WasherID            uuid.UUID
	RequestedAmount     decimal.Decimal
	WithdrawalFee       decimal.Decimal
	NetAmount           decimal.Decimal
	AllocatedEarningIDs []uuid.UUID
	Status              PayoutStatus
	Notes               *string
	ReviewedBy          *string
	ReviewedAt          *time.Time
	CreatedAt           time.Time
	UpdatedAt           time.Time
}

// PayoutPolicy holds the fixed payout constants.
type PayoutPolicy struct {
	MinimumAmount decimal.Decimal
	WithdrawalFee decimal.Decimal
}
