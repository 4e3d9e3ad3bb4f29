package verification

import (
	"WasherHub/internal/core/domain"
	"WasherHub/internal/core/ports"
	"context"
	"time"

	"github.com/cenkalti/backoff/v5"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"golang.org/x/sync/singleflight"
)

// UpdatedEvent is published on the bus after every persisted sync.
type UpdatedEvent struct {
	WasherID uuid.UUID
	State    domain.VerificationState
	Previous domain.VerificationState
}

// FailureRecorder receives provider failures for the analytics step log.
// Implemented by the onboarding tracker.
type FailureRecorder interface {
	RecordStepFailure(ctx context.Context, washerID uuid.UUID, step domain.Step, detail string)
}

// Service keeps the cached VerificationStatus consistent with the external
// provider's authoritative account state.
type Service struct {
	repo     ports.VerificationRepository
	provider ports.ProviderPort
	bus      ports.EventBus
	failures FailureRecorder
	policy   domain.DerivationPolicy
	log      zerolog.Logger

	retryInitialBackoff time.Duration
	retryMaxAttempts    int

	// Concurrent syncs for the same washer are coalesced: the second caller
	// waits for the in-flight sync instead of issuing its own provider call.
	group singleflight.Group

	refreshURL string
	returnURL  string
}

// NewService creates the verification sync service.
func NewService(
	repo ports.VerificationRepository,
	provider ports.ProviderPort,
	bus ports.EventBus,
	failures FailureRecorder,
	policy domain.DerivationPolicy,
	retryInitialBackoff time.Duration,
	retryMaxAttempts int,
	refreshURL, returnURL string,
	baseLogger *zerolog.Logger,
) *Service {
	return &Service{
		repo:                repo,
		provider:            provider,
		bus:                 bus,
		failures:            failures,
		policy:              policy,
		retryInitialBackoff: retryInitialBackoff,
		retryMaxAttempts:    retryMaxAttempts,
		refreshURL:          refreshURL,
		returnURL:           returnURL,
		log:                 baseLogger.With().Str("component", "verification_sync").Logger(),
	}
}

// Connect provisions an external account for the washer (first call) and
// returns a hosted onboarding link. Subsequent calls reuse the existing
// account and just mint a fresh link.
func (s *Service) Connect(ctx context.Context, washerID uuid.UUID) (string, error) {
	status, err := s.repo.GetByWasherID(ctx, washerID)
	if err != nil {
		return "", err
	}

	if status == nil {
		accountID, err := s.provider.CreateAccount(ctx)
		if err != nil {
			return "", err
		}
		now := time.Now().UTC()
		status = &domain.VerificationStatus{
			WasherID:          washerID,
			ExternalAccountID: accountID,
			State:             domain.VerificationIncomplete,
			CreatedAt:         now,
			UpdatedAt:         now,
		}
		if err := s.repo.Create(ctx, status); err != nil {
			return "", err
		}
		s.log.Info().
			Str("washer_id", washerID.String()).
			Str("account_id", accountID).
			Msg("External account created")
	}

	return s.provider.CreateOnboardingLink(ctx, status.ExternalAccountID, s.refreshURL, s.returnURL)
}

// SyncNow fetches the live account state, derives the normalized status and
// persists it. A sync already in flight for the same washer is awaited
// rather than duplicated.
func (s *Service) SyncNow(ctx context.Context, washerID uuid.UUID) (*domain.VerificationStatus, error) {
	v, err, _ := s.group.Do(washerID.String(), func() (interface{}, error) {
		status, err := s.repo.GetByWasherID(ctx, washerID)
		if err != nil {
			return nil, err
		}
		if status == nil {
			return nil, domain.NewError(domain.KindNotFound, "washer %s has no connected account", washerID)
		}
		return s.sync(ctx, status, nil)
	})
	if err != nil {
		return nil, err
	}
	return v.(*domain.VerificationStatus), nil
}

// HandleCallback applies a provider callback event. It is idempotent for a
// repeated event id, and resolves out-of-order delivery by timestamp: an
// event older than the last applied sync is a no-op. Last write wins by
// event time, never by arrival order.
func (s *Service) HandleCallback(ctx context.Context, event domain.CallbackEvent) (*domain.VerificationStatus, error) {
	status, err := s.repo.GetByAccountID(ctx, event.AccountID)
	if err != nil {
		return nil, err
	}
	if status == nil {
		return nil, domain.NewError(domain.KindNotFound, "no washer owns account %s", event.AccountID)
	}

	log := s.log.With().
		Str("washer_id", status.WasherID.String()).
		Str("event_id", event.EventID).
		Logger()

	if status.LastEventID != nil && *status.LastEventID == event.EventID {
		log.Debug().Msg("Callback already applied, no-op")
		return status, nil
	}
	if event.OccurredAt.Before(status.LastSyncedAt) {
		log.Info().
			Time("event_at", event.OccurredAt).
			Time("last_synced_at", status.LastSyncedAt).
			Msg("Stale callback ignored")
		return status, nil
	}

	v, err, _ := s.group.Do(status.WasherID.String(), func() (interface{}, error) {
		// Re-read inside the flight: a racing sync may have advanced the row.
		current, err := s.repo.GetByAccountID(ctx, event.AccountID)
		if err != nil {
			return nil, err
		}
		if current == nil {
			return nil, domain.NewError(domain.KindNotFound, "no washer owns account %s", event.AccountID)
		}
		if event.OccurredAt.Before(current.LastSyncedAt) {
			return current, nil
		}
		return s.sync(ctx, current, &event.EventID)
	})
	if err != nil {
		return nil, err
	}
	return v.(*domain.VerificationStatus), nil
}

// sync does the provider fetch (with the retry policy), derivation and write.
func (s *Service) sync(ctx context.Context, status *domain.VerificationStatus, eventID *string) (*domain.VerificationStatus, error) {
	snap, err := s.fetchAccount(ctx, status.ExternalAccountID)
	if err != nil {
		s.log.Error().Err(err).
			Str("washer_id", status.WasherID.String()).
			Msg("Provider fetch failed after retries")
		if s.failures != nil {
			s.failures.RecordStepFailure(ctx, status.WasherID, domain.StepVerification, err.Error())
		}
		return nil, err
	}

	previous := status.State
	now := time.Now().UTC()
	status.State = domain.DeriveState(*snap, s.policy)
	status.Requirements = snap.Requirements
	if snap.DisabledReason != "" {
		reason := snap.DisabledReason
		status.DisabledReason = &reason
	} else {
		status.DisabledReason = nil
	}
	if eventID != nil {
		status.LastEventID = eventID
	}
	status.LastSyncedAt = now
	status.UpdatedAt = now

	if err := s.repo.Update(ctx, status); err != nil {
		return nil, err
	}

	s.bus.Publish(ctx, ports.TopicVerificationUpdated, UpdatedEvent{
		WasherID: status.WasherID,
		State:    status.State,
		Previous: previous,
	})

	s.log.Info().
		Str("washer_id", status.WasherID.String()).
		Str("state", string(status.State)).
		Str("previous", string(previous)).
		Msg("Verification status synced")

	return status, nil
}

// fetchAccount calls the provider with exponential backoff on transient
// failures. Permanent provider errors surface immediately.
func (s *Service) fetchAccount(ctx context.Context, accountID string) (*domain.AccountSnapshot, error) {
	operation := func() (*domain.AccountSnapshot, error) {
		snap, err := s.provider.GetAccount(ctx, accountID)
		if err != nil {
			if domain.IsTransient(err) {
				return nil, err
			}
			return nil, backoff.Permanent(err)
		}
		return snap, nil
	}

	expo := backoff.NewExponentialBackOff()
	expo.InitialInterval = s.retryInitialBackoff
	expo.Multiplier = 2

	return backoff.Retry(ctx, operation,
		backoff.WithBackOff(expo),
		backoff.WithMaxTries(uint(s.retryMaxAttempts)),
	)
}
