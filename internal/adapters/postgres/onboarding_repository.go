package postgres

import (
	"WasherHub/internal/core/domain"
	"WasherHub/internal/core/ports"
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/rs/zerolog"
)

type onboardingRepository struct {
	db  *DB
	log zerolog.Logger
}

var _ ports.OnboardingRepository = (*onboardingRepository)(nil) // Ensure compliance

// NewOnboardingRepository creates a new repository for onboarding progress rows.
func NewOnboardingRepository(db *DB, baseLogger *zerolog.Logger) ports.OnboardingRepository {
	return &onboardingRepository{
		db:  db,
		log: baseLogger.With().Str("component", "onboarding_repo").Logger(),
	}
}

const onboardingQueryCols = `
	washer_id, step1_completed_at, step2_completed_at, step3_completed_at,
	step4_completed_at, started_at, completed_at, updated_at
`

func (r *onboardingRepository) Create(ctx context.Context, progress *domain.OnboardingProgress) error {
	query := `
		INSERT INTO onboarding_progress (
			washer_id, step1_completed_at, step2_completed_at, step3_completed_at,
			step4_completed_at, started_at, completed_at, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`
	step1, step2, step3, step4 := stepColumns(progress)
	_, err := r.db.pool.Exec(ctx, query,
		progress.WasherID,
		step1, step2, step3, step4,
		progress.StartedAt,
		progress.CompletedAt,
		progress.UpdatedAt,
	)
	if err != nil {
		r.log.Error().Err(err).Str("washer_id", progress.WasherID.String()).Msg("Failed to insert onboarding progress")
	}
	return err
}

func (r *onboardingRepository) GetByWasherID(ctx context.Context, washerID uuid.UUID) (*domain.OnboardingProgress, error) {
	query := `SELECT ` + onboardingQueryCols + ` FROM onboarding_progress WHERE washer_id = $1`

	progress, err := r.scanProgress(r.db.pool.QueryRow(ctx, query, washerID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil // Return nil, nil for "not found"
		}
		return nil, err
	}
	return progress, nil
}

func (r *onboardingRepository) Update(ctx context.Context, progress *domain.OnboardingProgress) error {
	query := `
		UPDATE onboarding_progress SET
			step1_completed_at = $2, step2_completed_at = $3,
			step3_completed_at = $4, step4_completed_at = $5,
			completed_at = $6, updated_at = $7
		WHERE washer_id = $1
	`
	step1, step2, step3, step4 := stepColumns(progress)
	_, err := r.db.pool.Exec(ctx, query,
		progress.WasherID,
		step1, step2, step3, step4,
		progress.CompletedAt,
		progress.UpdatedAt,
	)
	if err != nil {
		r.log.Error().Err(err).Str("washer_id", progress.WasherID.String()).Msg("Failed to update onboarding progress")
	}
	return err
}

func (r *onboardingRepository) ListAll(ctx context.Context) ([]*domain.OnboardingProgress, error) {
	query := `SELECT ` + onboardingQueryCols + ` FROM onboarding_progress ORDER BY started_at`

	rows, err := r.db.pool.Query(ctx, query)
	if err != nil {
		r.log.Error().Err(err).Msg("Failed to query onboarding progress rows")
		return nil, err
	}
	defer rows.Close()

	var out []*domain.OnboardingProgress
	for rows.Next() {
		progress, err := r.scanProgress(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, progress)
	}
	return out, rows.Err()
}

// scanProgress is a helper to scan a row into an OnboardingProgress.
// The four step columns fold into the step map.
func (r *onboardingRepository) scanProgress(row pgx.Row) (*domain.OnboardingProgress, error) {
	var progress domain.OnboardingProgress
	var step1, step2, step3, step4 *time.Time

	err := row.Scan(
		&progress.WasherID,
		&step1, &step2, &step3, &step4,
		&progress.StartedAt,
		&progress.CompletedAt,
		&progress.UpdatedAt,
	)
	if err != nil {
		if !errors.Is(err, pgx.ErrNoRows) {
			r.log.Error().Err(err).Msg("Failed to scan onboarding progress row")
		}
		return nil, err
	}

	progress.StepTimes = make(map[domain.Step]time.Time, 4)
	for step, at := range map[domain.Step]*time.Time{
		domain.StepProfileSetup:  step1,
		domain.StepVerification:  step2,
		domain.StepBankAccount:   step3,
		domain.StepActivationFee: step4,
	} {
		if at != nil {
			progress.StepTimes[step] = *at
		}
	}
	return &progress, nil
}

func stepColumns(progress *domain.OnboardingProgress) (step1, step2, step3, step4 *time.Time) {
	pick := func(s domain.Step) *time.Time {
		if at, ok := progress.StepTimes[s]; ok {
			return &at
		}
		return nil
	}
	return pick(domain.StepProfileSetup), pick(domain.StepVerification),
		pick(domain.StepBankAccount), pick(domain.StepActivationFee)
}

type stepEventRepository struct {
	db  *DB
	log zerolog.Logger
}

var _ ports.StepEventRepository = (*stepEventRepository)(nil)

// NewStepEventRepository creates the append-only step event log repository.
func NewStepEventRepository(db *DB, baseLogger *zerolog.Logger) ports.StepEventRepository {
	return &stepEventRepository{
		db:  db,
		log: baseLogger.With().Str("component", "step_event_repo").Logger(),
	}
}

func (r *stepEventRepository) Append(ctx context.Context, event *domain.StepEvent) error {
	query := `
		INSERT INTO onboarding_step_events (id, washer_id, step, outcome, detail, occurred_at)
		VALUES ($1, $2, $3, $4, $5, $6)
	`
	_, err := r.db.pool.Exec(ctx, query,
		event.ID,
		event.WasherID,
		int(event.Step),
		event.Outcome,
		event.Detail,
		event.OccurredAt,
	)
	if err != nil {
		r.log.Error().Err(err).Str("washer_id", event.WasherID.String()).Msg("Failed to append step event")
	}
	return err
}

func (r *stepEventRepository) ListSince(ctx context.Context, since time.Time) ([]*domain.StepEvent, error) {
	query := `
		SELECT id, washer_id, step, outcome, detail, occurred_at
		FROM onboarding_step_events
		WHERE occurred_at >= $1
		ORDER BY occurred_at
	`
	rows, err := r.db.pool.Query(ctx, query, since)
	if err != nil {
		r.log.Error().Err(err).Msg("Failed to query step events")
		return nil, err
	}
	defer rows.Close()

	var out []*domain.StepEvent
	for rows.Next() {
		var event domain.StepEvent
		var step int
		if err := rows.Scan(&event.ID, &event.WasherID, &step, &event.Outcome, &event.Detail, &event.OccurredAt); err != nil {
			r.log.Error().Err(err).Msg("Failed to scan step event row")
			return nil, err
		}
		event.Step = domain.Step(step)
		out = append(out, &event)
	}
	return out, rows.Err()
}
