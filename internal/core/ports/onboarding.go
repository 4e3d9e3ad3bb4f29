package ports

import (
	"WasherHub/internal/core/domain"
	"context"
	"time"

	"github.com/google/uuid"
)

// OnboardingRepository defines persistence for onboarding progress rows.
type OnboardingRepository interface {
	// Create saves a new progress record.
	Create(ctx context.Context, progress *domain.OnboardingProgress) error

	// GetByWasherID finds the progress for a washer.
	// Returns (nil, nil) when no record exists.
	GetByWasherID(ctx context.Context, washerID uuid.UUID) (*domain.OnboardingProgress, error)

	Update(ctx context.Context, progress *domain.OnboardingProgress) error

	// ListAll returns every progress record; used by the analytics job.
	ListAll(ctx context.Context) ([]*domain.OnboardingProgress, error)
}

// StepEventRepository is the append-only step event log.
type StepEventRepository interface {
	Append(ctx context.Context, event *domain.StepEvent) error

	// ListSince returns events with OccurredAt >= since, ascending.
	ListSince(ctx context.Context, since time.Time) ([]*domain.StepEvent, error)
}
