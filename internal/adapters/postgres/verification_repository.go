package postgres

import (
	"WasherHub/internal/core/domain"
	"WasherHub/internal/core/ports"
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/rs/zerolog"
)

type verificationRepository struct {
	db  *DB
	log zerolog.Logger
}

var _ ports.VerificationRepository = (*verificationRepository)(nil) // Ensure compliance

// NewVerificationRepository creates a new repository for cached verification
// status rows.
func NewVerificationRepository(db *DB, baseLogger *zerolog.Logger) ports.VerificationRepository {
	return &verificationRepository{
		db:  db,
		log: baseLogger.With().Str("component", "verification_repo").Logger(),
	}
}

const verificationQueryCols = `
	washer_id, external_account_id, state, currently_due, eventually_due,
	past_due, pending_verification, disabled_reason, last_event_id,
	last_synced_at, created_at, updated_at
`

func (r *verificationRepository) Create(ctx context.Context, status *domain.VerificationStatus) error {
	query := `
		INSERT INTO verification_statuses (
			washer_id, external_account_id, state, currently_due, eventually_due,
			past_due, pending_verification, disabled_reason, last_event_id,
			last_synced_at, created_at, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
	`
	_, err := r.db.pool.Exec(ctx, query,
		status.WasherID,
		status.ExternalAccountID,
		status.State,
		status.Requirements.CurrentlyDue,
		status.Requirements.EventuallyDue,
		status.Requirements.PastDue,
		status.Requirements.PendingVerification,
		status.DisabledReason,
		status.LastEventID,
		status.LastSyncedAt,
		status.CreatedAt,
		status.UpdatedAt,
	)
	if err != nil {
		r.log.Error().Err(err).Str("washer_id", status.WasherID.String()).Msg("Failed to insert verification status")
	}
	return err
}

func (r *verificationRepository) GetByWasherID(ctx context.Context, washerID uuid.UUID) (*domain.VerificationStatus, error) {
	query := `SELECT ` + verificationQueryCols + ` FROM verification_statuses WHERE washer_id = $1`
	return r.getOne(ctx, query, washerID)
}

func (r *verificationRepository) GetByAccountID(ctx context.Context, accountID string) (*domain.VerificationStatus, error) {
	query := `SELECT ` + verificationQueryCols + ` FROM verification_statuses WHERE external_account_id = $1`
	return r.getOne(ctx, query, accountID)
}

func (r *verificationRepository) getOne(ctx context.Context, query string, arg any) (*domain.VerificationStatus, error) {
	status, err := r.scanStatus(r.db.pool.QueryRow(ctx, query, arg))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil // Return nil, nil for "not found"
		}
		return nil, err
	}
	return status, nil
}

func (r *verificationRepository) Update(ctx context.Context, status *domain.VerificationStatus) error {
	query := `
		UPDATE verification_statuses SET
			state = $2, currently_due = $3, eventually_due = $4, past_due = $5,
			pending_verification = $6, disabled_reason = $7, last_event_id = $8,
			last_synced_at = $9, updated_at = $10
		WHERE washer_id = $1
	`
	_, err := r.db.pool.Exec(ctx, query,
		status.WasherID,
		status.State,
		status.Requirements.CurrentlyDue,
		status.Requirements.EventuallyDue,
		status.Requirements.PastDue,
		status.Requirements.PendingVerification,
		status.DisabledReason,
		status.LastEventID,
		status.LastSyncedAt,
		status.UpdatedAt,
	)
	if err != nil {
		r.log.Error().Err(err).Str("washer_id", status.WasherID.String()).Msg("Failed to update verification status")
	}
	return err
}

// scanStatus is a helper to scan a row into a VerificationStatus.
func (r *verificationRepository) scanStatus(row pgx.Row) (*domain.VerificationStatus, error) {
	var status domain.VerificationStatus
	err := row.Scan(
		&status.WasherID,
		&status.ExternalAccountID,
		&status.State,
		&status.Requirements.CurrentlyDue,
		&status.Requirements.EventuallyDue,
		&status.Requirements.PastDue,
		&status.Requirements.PendingVerification,
		&status.DisabledReason,
		&status.LastEventID,
		&status.LastSyncedAt,
		&status.CreatedAt,
		&status.UpdatedAt,
	)
	if err != nil {
		if !errors.Is(err, pgx.ErrNoRows) {
			r.log.Error().Err(err).Msg("Failed to scan verification status row")
		}
		return nil, err
	}
	return &status, nil
}
