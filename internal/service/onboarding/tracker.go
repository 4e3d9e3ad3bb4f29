package onboarding

import (
	"WasherHub/internal/core/domain"
	"WasherHub/internal/core/ports"
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// StepCompletedEvent is published on the bus for every newly completed step.
type StepCompletedEvent struct {
	WasherID   uuid.UUID
	Step       domain.Step
	IsComplete bool
}

// Tracker records washer onboarding progress.
type Tracker struct {
	repo   ports.OnboardingRepository
	events ports.StepEventRepository
	bus    ports.EventBus
	log    zerolog.Logger

	// Step completion is a read-modify-write on one row; concurrent calls
	// for the same washer are serialized here. Different washers proceed
	// in parallel.
	mu      sync.Mutex
	washers map[uuid.UUID]*sync.Mutex
}

// NewTracker creates the onboarding progress tracker.
func NewTracker(
	repo ports.OnboardingRepository,
	events ports.StepEventRepository,
	bus ports.EventBus,
	baseLogger *zerolog.Logger,
) *Tracker {
	return &Tracker{
		repo:    repo,
		events:  events,
		bus:     bus,
		log:     baseLogger.With().Str("component", "onboarding_tracker").Logger(),
		washers: make(map[uuid.UUID]*sync.Mutex),
	}
}

func (t *Tracker) washerLock(washerID uuid.UUID) *sync.Mutex {
	t.mu.Lock()
	defer t.mu.Unlock()
	lock, ok := t.washers[washerID]
	if !ok {
		lock = &sync.Mutex{}
		t.washers[washerID] = lock
	}
	return lock
}

// RecordStepCompletion marks a step as done. Completing an already-completed
// step is a no-op that returns the current state unchanged; the original
// timestamp is never overwritten.
func (t *Tracker) RecordStepCompletion(ctx context.Context, washerID uuid.UUID, step domain.Step) (*domain.OnboardingProgress, error) {
	if !step.Valid() {
		return nil, domain.NewError(domain.KindInvalidStep, "step %d is outside 1..4", int(step))
	}

	lock := t.washerLock(washerID)
	lock.Lock()
	defer lock.Unlock()

	progress, err := t.repo.GetByWasherID(ctx, washerID)
	if err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	created := false
	if progress == nil {
		progress = domain.NewOnboardingProgress(washerID, now)
		created = true
	}

	if progress.HasStep(step) {
		t.log.Debug().
			Str("washer_id", washerID.String()).
			Int("step", int(step)).
			Msg("Step already completed, no-op")
		return progress, nil
	}

	progress.StepTimes[step] = now
	progress.UpdatedAt = now
	if progress.IsComplete() && progress.CompletedAt == nil {
		progress.CompletedAt = &now
	}

	if created {
		err = t.repo.Create(ctx, progress)
	} else {
		err = t.repo.Update(ctx, progress)
	}
	if err != nil {
		return nil, err
	}

	if err := t.events.Append(ctx, &domain.StepEvent{
		ID:         uuid.New(),
		WasherID:   washerID,
		Step:       step,
		Outcome:    domain.StepOutcomeCompleted,
		OccurredAt: now,
	}); err != nil {
		// The progress row is already saved; a lost log entry only skews
		// analytics, so it must not fail the washer's action.
		t.log.Error().Err(err).Str("washer_id", washerID.String()).Msg("Failed to append step event")
	}

	t.bus.Publish(ctx, ports.TopicStepCompleted, StepCompletedEvent{
		WasherID:   washerID,
		Step:       step,
		IsComplete: progress.IsComplete(),
	})

	t.log.Info().
		Str("washer_id", washerID.String()).
		Int("step", int(step)).
		Bool("complete", progress.IsComplete()).
		Msg("Onboarding step completed")

	return progress, nil
}

// GetStatus returns the washer's progress. A washer who never started gets a
// not_found domain error; callers treat that as "not started".
func (t *Tracker) GetStatus(ctx context.Context, washerID uuid.UUID) (*domain.OnboardingProgress, error) {
	progress, err := t.repo.GetByWasherID(ctx, washerID)
	if err != nil {
		return nil, err
	}
	if progress == nil {
		return nil, domain.NewError(domain.KindNotFound, "no onboarding progress for washer %s", washerID)
	}
	return progress, nil
}

// MissingSteps returns the steps the washer still has to complete, ascending.
// A washer with no record is missing everything.
func (t *Tracker) MissingSteps(ctx context.Context, washerID uuid.UUID) ([]domain.Step, error) {
	progress, err := t.repo.GetByWasherID(ctx, washerID)
	if err != nil {
		return nil, err
	}
	if progress == nil {
		steps := make([]domain.Step, len(domain.AllSteps))
		copy(steps, domain.AllSteps)
		return steps, nil
	}
	return progress.MissingSteps(), nil
}

// RecordStepFailure appends a failed step event for analytics without
// touching the progress row (used by the sync service for provider errors).
func (t *Tracker) RecordStepFailure(ctx context.Context, washerID uuid.UUID, step domain.Step, detail string) {
	if err := t.events.Append(ctx, &domain.StepEvent{
		ID:         uuid.New(),
		WasherID:   washerID,
		Step:       step,
		Outcome:    domain.StepOutcomeFailed,
		Detail:     &detail,
		OccurredAt: time.Now().UTC(),
	}); err != nil {
		t.log.Error().Err(err).Str("washer_id", washerID.String()).Msg("Failed to append step failure event")
	}
}
