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

type payoutRepository struct {
	db  *DB
	log zerolog.Logger
}

var _ ports.PayoutRepository = (*payoutRepository)(nil) // Ensure compliance

// NewPayoutRepository creates a new repository for payout requests.
func NewPayoutRepository(db *DB, baseLogger *zerolog.Logger) ports.PayoutRepository {
	return &payoutRepository{
		db:  db,
		log: baseLogger.With().Str("component", "payout_repo").Logger(),
	}
}

const payoutQueryCols = `
	id, washer_id, requested_amount, withdrawal_fee, net_amount,
	allocated_earning_ids, status, notes, reviewed_by, reviewed_at,
	created_at, updated_at
`

// CreateWithAllocation flips the allocated earnings available -> processing
// and inserts the request row in one transaction. The conditional UPDATE is
// the optimistic concurrency check: if a racing request already claimed any
// of the earnings the affected-row count comes up short and everything rolls
// back with concurrent_modification.
func (r *payoutRepository) CreateWithAllocation(ctx context.Context, request *domain.PayoutRequest) error {
	tx, err := r.db.pool.Begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	tag, err := tx.Exec(ctx,
		`UPDATE earnings SET status = 'processing', updated_at = now()
		 WHERE id = ANY($1::uuid[]) AND status = 'available'`,
		uuidStrings(request.AllocatedEarningIDs),
	)
	if err != nil {
		r.log.Error().Err(err).Str("payout_id", request.ID.String()).Msg("Failed to flip allocated earnings")
		return err
	}
	if tag.RowsAffected() != int64(len(request.AllocatedEarningIDs)) {
		return domain.NewError(domain.KindConcurrentModification,
			"%d of %d allocated earnings were already claimed",
			int64(len(request.AllocatedEarningIDs))-tag.RowsAffected(), len(request.AllocatedEarningIDs))
	}

	_, err = tx.Exec(ctx, `
		INSERT INTO payout_requests (
			id, washer_id, requested_amount, withdrawal_fee, net_amount,
			allocated_earning_ids, status, notes, created_at, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6::uuid[], $7, $8, $9, $10)
	`,
		request.ID,
		request.WasherID,
		request.RequestedAmount,
		request.WithdrawalFee,
		request.NetAmount,
		uuidStrings(request.AllocatedEarningIDs),
		request.Status,
		request.Notes,
		request.CreatedAt,
		request.UpdatedAt,
	)
	if err != nil {
		r.log.Error().Err(err).Str("payout_id", request.ID.String()).Msg("Failed to insert payout request")
		return err
	}

	return tx.Commit(ctx)
}

func (r *payoutRepository) GetByID(ctx context.Context, id uuid.UUID) (*domain.PayoutRequest, error) {
	query := `SELECT ` + payoutQueryCols + ` FROM payout_requests WHERE id = $1`

	request, err := r.scanPayout(r.db.pool.QueryRow(ctx, query, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil // Return nil, nil for "not found"
		}
		return nil, err
	}
	return request, nil
}

func (r *payoutRepository) ListByWasher(ctx context.Context, washerID uuid.UUID) ([]*domain.PayoutRequest, error) {
	query := `SELECT ` + payoutQueryCols + ` FROM payout_requests WHERE washer_id = $1 ORDER BY created_at DESC`

	rows, err := r.db.pool.Query(ctx, query, washerID)
	if err != nil {
		r.log.Error().Err(err).Str("washer_id", washerID.String()).Msg("Failed to query payout requests")
		return nil, err
	}
	defer rows.Close()

	var out []*domain.PayoutRequest
	for rows.Next() {
		request, err := r.scanPayout(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, request)
	}
	return out, rows.Err()
}

// Review applies an administrative decision. The status flip and the earnings
// movement (settle on paid, release on rejected) commit together.
func (r *payoutRepository) Review(ctx context.Context, id uuid.UUID, decision domain.PayoutStatus, reviewedBy string, notes *string) (*domain.PayoutRequest, error) {
	tx, err := r.db.pool.Begin(ctx)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback(ctx)

	// Lock the request row for the duration of the review.
	request, err := r.scanPayout(tx.QueryRow(ctx,
		`SELECT `+payoutQueryCols+` FROM payout_requests WHERE id = $1 FOR UPDATE`, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.NewError(domain.KindNotFound, "no payout request %s", id)
		}
		return nil, err
	}

	switch {
	case request.Status == domain.PayoutPending:
	case request.Status == domain.PayoutApproved && decision == domain.PayoutPaid:
	default:
		return nil, domain.NewError(domain.KindInvalidTransition,
			"payout request is %s, cannot become %s", request.Status, decision)
	}

	var flip string
	switch decision {
	case domain.PayoutPaid:
		flip = `UPDATE earnings SET status = 'paid', updated_at = now()
				WHERE id = ANY($1::uuid[]) AND status = 'processing'`
	case domain.PayoutRejected:
		flip = `UPDATE earnings SET status = 'available', updated_at = now()
				WHERE id = ANY($1::uuid[]) AND status = 'processing'`
	}
	if flip != "" {
		tag, err := tx.Exec(ctx, flip, uuidStrings(request.AllocatedEarningIDs))
		if err != nil {
			r.log.Error().Err(err).Str("payout_id", id.String()).Msg("Failed to move allocated earnings")
			return nil, err
		}
		if tag.RowsAffected() != int64(len(request.AllocatedEarningIDs)) {
			return nil, domain.NewError(domain.KindInvalidTransition,
				"allocated earnings are not all processing for payout %s", id)
		}
	}

	now := time.Now().UTC()
	request.Status = decision
	request.ReviewedBy = &reviewedBy
	request.ReviewedAt = &now
	if notes != nil {
		request.Notes = notes
	}
	request.UpdatedAt = now

	_, err = tx.Exec(ctx, `
		UPDATE payout_requests SET
			status = $2, notes = $3, reviewed_by = $4, reviewed_at = $5, updated_at = $6
		WHERE id = $1
	`, id, request.Status, request.Notes, request.ReviewedBy, request.ReviewedAt, request.UpdatedAt)
	if err != nil {
		r.log.Error().Err(err).Str("payout_id", id.String()).Msg("Failed to update payout request")
		return nil, err
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, err
	}
	return request, nil
}

// scanPayout is a helper to scan a row into a PayoutRequest.
func (r *payoutRepository) scanPayout(row pgx.Row) (*domain.PayoutRequest, error) {
	var request domain.PayoutRequest
	var allocated []string

	err := row.Scan(
		&request.ID,
		&request.WasherID,
		&request.RequestedAmount,
		&request.WithdrawalFee,
		&request.NetAmount,
		&allocated,
		&request.Status,
		&request.Notes,
		&request.ReviewedBy,
		&request.ReviewedAt,
		&request.CreatedAt,
		&request.UpdatedAt,
	)
	if err != nil {
		if !errors.Is(err, pgx.ErrNoRows) {
			r.log.Error().Err(err).Msg("Failed to scan payout request row")
		}
		return nil, err
	}

	request.AllocatedEarningIDs = make([]uuid.UUID, 0, len(allocated))
	for _, raw := range allocated {
		parsed, err := uuid.Parse(raw)
		if err != nil {
			r.log.Error().Err(err).Str("payout_id", request.ID.String()).Msg("Corrupt allocated earning id")
			return nil, err
		}
		request.AllocatedEarningIDs = append(request.AllocatedEarningIDs, parsed)
	}
	return &request, nil
}
