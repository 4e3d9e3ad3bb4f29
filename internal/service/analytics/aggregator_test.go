package analytics

import (
	"WasherHub/internal/adapters/memory"
	"WasherHub/internal/core/domain"
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func seedProgress(t *testing.T, store *memory.OnboardingStore, startedAgo time.Duration, steps ...domain.Step) {
	t.Helper()
	now := time.Now().UTC()
	p := domain.NewOnboardingProgress(uuid.New(), now.Add(-startedAgo))
	for i, s := range steps {
		at := p.StartedAt.Add(time.Duration(i+1) * time.Hour)
		p.StepTimes[s] = at
		if p.IsComplete() {
			p.CompletedAt = &at
		}
	}
	p.UpdatedAt = now
	require.NoError(t, store.Create(context.Background(), p))
}

func TestRun_BuildsFunnelReport(t *testing.T) {
	nopLogger := zerolog.Nop()
	ctx := context.Background()
	progress := memory.NewOnboardingStore()
	events := memory.NewStepEventStore()

	// Four washers: one finished, one stalled after step 1, one after step 2,
	// one started but completed nothing yet.
	seedProgress(t, progress, 48*time.Hour, domain.AllSteps...)
	seedProgress(t, progress, 24*time.Hour, domain.StepProfileSetup)
	seedProgress(t, progress, 24*time.Hour, domain.StepProfileSetup, domain.StepVerification)
	seedProgress(t, progress, 2*time.Hour)

	detail := "provider timeout"
	require.NoError(t, events.Append(ctx, &domain.StepEvent{
		ID:         uuid.New(),
		WasherID:   uuid.New(),
		Step:       domain.StepVerification,
		Outcome:    domain.StepOutcomeFailed,
		Detail:     &detail,
		OccurredAt: time.Now().UTC().Add(-time.Hour),
	}))
	// Completed events never count as failures.
	require.NoError(t, events.Append(ctx, &domain.StepEvent{
		ID:         uuid.New(),
		WasherID:   uuid.New(),
		Step:       domain.StepProfileSetup,
		Outcome:    domain.StepOutcomeCompleted,
		OccurredAt: time.Now().UTC().Add(-time.Hour),
	}))

	aggregator := NewAggregator(progress, events, 7*24*time.Hour, &nopLogger)

	report, err := aggregator.Run(ctx)
	require.NoError(t, err)

	assert.Equal(t, 4, report.Started)
	assert.Equal(t, 1, report.Completed)
	assert.InDelta(t, 0.25, report.CompletionRate, 1e-9)

	assert.Equal(t, 3, report.StepCounts[domain.StepProfileSetup])
	assert.Equal(t, 2, report.StepCounts[domain.StepVerification])
	assert.Equal(t, 1, report.StepCounts[domain.StepBankAccount])
	assert.Equal(t, 1, report.StepCounts[domain.StepActivationFee])

	// 1 of 3 step-1 finishers never reached step 2; 1 of 2 step-2 finishers
	// never reached step 3.
	assert.InDelta(t, 1.0/3.0, report.DropOff[domain.StepProfileSetup], 1e-9)
	assert.InDelta(t, 0.5, report.DropOff[domain.StepVerification], 1e-9)
	assert.InDelta(t, 0.0, report.DropOff[domain.StepBankAccount], 1e-9)

	assert.Equal(t, 4*time.Hour, report.MedianTimeToComplete)

	assert.Equal(t, 1, report.FailureCounts[domain.StepVerification])
	assert.Zero(t, report.FailureCounts[domain.StepProfileSetup])

	assert.Same(t, report, aggregator.Latest())
}

func TestRun_FailureWindowExcludesOldEvents(t *testing.T) {
	nopLogger := zerolog.Nop()
	ctx := context.Background()
	progress := memory.NewOnboardingStore()
	events := memory.NewStepEventStore()

	require.NoError(t, events.Append(ctx, &domain.StepEvent{
		ID:         uuid.New(),
		WasherID:   uuid.New(),
		Step:       domain.StepVerification,
		Outcome:    domain.StepOutcomeFailed,
		OccurredAt: time.Now().UTC().Add(-48 * time.Hour),
	}))

	aggregator := NewAggregator(progress, events, 24*time.Hour, &nopLogger)

	report, err := aggregator.Run(ctx)
	require.NoError(t, err)
	assert.Empty(t, report.FailureCounts)
}

func TestLatest_NilBeforeFirstRun(t *testing.T) {
	nopLogger := zerolog.Nop()
	aggregator := NewAggregator(memory.NewOnboardingStore(), memory.NewStepEventStore(), time.Hour, &nopLogger)
	assert.Nil(t, aggregator.Latest())
}
