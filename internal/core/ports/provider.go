package ports

import (
	"WasherHub/internal/core/domain"
	"context"
)

// ProviderPort is the payment-provider account API. The core treats it as a
// black box beyond these three calls. Failures come back as domain errors of
// kind transient_provider_error or permanent_provider_error; only the former
// may be retried.
type ProviderPort interface {
	// CreateAccount provisions a new connected account for a washer.
	CreateAccount(ctx context.Context) (accountID string, err error)

	// GetAccount fetches the live account state.
	GetAccount(ctx context.Context, accountID string) (*domain.AccountSnapshot, error)

	// CreateOnboardingLink produces a hosted onboarding URL for the account.
	CreateOnboardingLink(ctx context.Context, accountID, refreshURL, returnURL string) (string, error)
}
