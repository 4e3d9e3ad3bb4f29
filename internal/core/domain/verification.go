package domain

import (
	"time"

	"github.com/google/uuid"
)

// VerificationState is a custom type for the cached provider-account status ENUM.
type VerificationState string

const (
	VerificationNotConnected   VerificationState = "not_connected"
	VerificationIncomplete     VerificationState = "incomplete"
	VerificationPending        VerificationState = "pending"
	VerificationRequiresAction VerificationState = "requires_action"
	VerificationComplete       VerificationState = "complete"
	VerificationRejected       VerificationState = "rejected"
)

// Requirements holds the provider's outstanding requirement lists, in the
// order the provider reported them.
type Requirements struct {
	CurrentlyDue        []string
	EventuallyDue       []string
	PastDue             []string
	PendingVerification []string
}

// VerificationStatus is the durable, cached view of a washer's external
// payment-provider account. Only the sync service writes it.
type VerificationStatus struct {
	WasherID          uuid.UUID
	ExternalAccountID string
	State             VerificationState
	Requirements      Requirements
	DisabledReason    *string
	LastEventID       *string // id of the last provider callback applied
	LastSyncedAt      time.Time
	CreatedAt         time.Time
	UpdatedAt         time.Time
}

// AccountSnapshot is the live account data fetched from the provider.
type AccountSnapshot struct {
	DetailsSubmitted bool
	ChargesEnabled   bool
	PayoutsEnabled   bool
	Requirements     Requirements
	DisabledReason   string
}

// DerivationPolicy controls the boundary between requires_action, rejected
// and the happy-path states. The provider's exact signal set for "the washer
// must act" vs "the account is dead" is not pinned down by its docs, so the
// boundary is configuration rather than code.
type DerivationPolicy struct {
	// RejectedDisabledReasons are provider disabled_reason values that mean
	// the account was terminally refused.
	RejectedDisabledReasons []string
	// RequiresActionOnPastDue flags past-due requirements as user-actionable.
	RequiresActionOnPastDue bool
}

// DefaultDerivationPolicy matches the provider signals observed in production.
func DefaultDerivationPolicy() DerivationPolicy {
	return DerivationPolicy{
		RejectedDisabledReasons: []string{"rejected.fraud", "rejected.terms_of_service", "rejected.other"},
		RequiresActionOnPastDue: true,
	}
}

// DeriveState normalizes a live account snapshot into a VerificationState.
// This is the single place the derivation rule lives.
func DeriveState(snap AccountSnapshot, pol DerivationPolicy) VerificationState {
	for _, reason := range pol.RejectedDisabledReasons {
		if snap.DisabledReason == reason {
			return VerificationRejected
		}
	}

	if snap.DetailsSubmitted &&
		snap.ChargesEnabled &&
		snap.PayoutsEnabled &&
		len(snap.Requirements.CurrentlyDue) == 0 &&
		len(snap.Requirements.PastDue) == 0 {
		return VerificationComplete
	}

	// An explicit disabled reason, or past-due items the washer must clear,
	// both need user action before the formula above can ever pass.
	if snap.DisabledReason != "" {
		return VerificationRequiresAction
	}
	if pol.RequiresActionOnPastDue && len(snap.Requirements.PastDue) > 0 {
		return VerificationRequiresAction
	}

	if snap.DetailsSubmitted {
		return VerificationPending
	}
	return VerificationIncomplete
}

// CallbackEvent is the provider-agnostic envelope routed to the sync service
// from the webhook endpoint.
type CallbackEvent struct {
	EventID    string
	AccountID  string
	OccurredAt time.Time
}
