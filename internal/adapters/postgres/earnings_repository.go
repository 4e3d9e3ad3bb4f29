package postgres

import (
	"WasherHub/internal/core/domain"
	"WasherHub/internal/core/ports"
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
)

type earningsRepository struct {
	db  *DB
	log zerolog.Logger
}

var _ ports.EarningsRepository = (*earningsRepository)(nil) // Ensure compliance

// NewEarningsRepository creates a new repository for the earnings ledger.
func NewEarningsRepository(db *DB, baseLogger *zerolog.Logger) ports.EarningsRepository {
	return &earningsRepository{
		db:  db,
		log: baseLogger.With().Str("component", "earnings_repo").Logger(),
	}
}

const earningQueryCols = `
	id, washer_id, booking_id, amount, status, made_available_at, created_at, updated_at
`

func (r *earningsRepository) Create(ctx context.Context, earning *domain.Earning) error {
	query := `
		INSERT INTO earnings (
			id, washer_id, booking_id, amount, status, made_available_at, created_at, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`
	_, err := r.db.pool.Exec(ctx, query,
		earning.ID,
		earning.WasherID,
		earning.BookingID,
		earning.Amount,
		earning.Status,
		earning.MadeAvailableAt,
		earning.CreatedAt,
		earning.UpdatedAt,
	)
	if err != nil {
		// The unique (washer_id, booking_id) index turns redelivered
		// booking-completion calls into a typed duplicate error.
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return domain.NewError(domain.KindDuplicateBooking,
				"earning already recorded for booking %s", earning.BookingID)
		}
		r.log.Error().Err(err).Str("washer_id", earning.WasherID.String()).Msg("Failed to insert earning")
	}
	return err
}

func (r *earningsRepository) GetByBooking(ctx context.Context, washerID, bookingID uuid.UUID) (*domain.Earning, error) {
	query := `SELECT ` + earningQueryCols + ` FROM earnings WHERE washer_id = $1 AND booking_id = $2`

	earning, err := r.scanEarning(r.db.pool.QueryRow(ctx, query, washerID, bookingID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil // Return nil, nil for "not found"
		}
		return nil, err
	}
	return earning, nil
}

func (r *earningsRepository) ListAvailable(ctx context.Context, washerID uuid.UUID) ([]*domain.Earning, error) {
	// Ascending made_available_at is the FIFO allocation order.
	query := `
		SELECT ` + earningQueryCols + `
		FROM earnings
		WHERE washer_id = $1 AND status = 'available'
		ORDER BY made_available_at
	`
	rows, err := r.db.pool.Query(ctx, query, washerID)
	if err != nil {
		r.log.Error().Err(err).Str("washer_id", washerID.String()).Msg("Failed to query available earnings")
		return nil, err
	}
	defer rows.Close()

	var out []*domain.Earning
	for rows.Next() {
		earning, err := r.scanEarning(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, earning)
	}
	return out, rows.Err()
}

func (r *earningsRepository) SumByStatus(ctx context.Context, washerID uuid.UUID, status domain.EarningStatus) (decimal.Decimal, error) {
	query := `SELECT COALESCE(SUM(amount), 0) FROM earnings WHERE washer_id = $1 AND status = $2`

	var total decimal.Decimal
	if err := r.db.pool.QueryRow(ctx, query, washerID, status).Scan(&total); err != nil {
		r.log.Error().Err(err).Str("washer_id", washerID.String()).Msg("Failed to sum earnings")
		return decimal.Zero, err
	}
	return total, nil
}

func (r *earningsRepository) MarkPaid(ctx context.Context, earningIDs []uuid.UUID) error {
	// All-or-nothing: the row count tells us whether every target really was
	// processing; anything short rolls the whole update back.
	tx, err := r.db.pool.Begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	tag, err := tx.Exec(ctx,
		`UPDATE earnings SET status = 'paid', updated_at = now() WHERE id = ANY($1::uuid[]) AND status = 'processing'`,
		uuidStrings(earningIDs),
	)
	if err != nil {
		r.log.Error().Err(err).Msg("Failed to mark earnings paid")
		return err
	}
	if tag.RowsAffected() != int64(len(earningIDs)) {
		return domain.NewError(domain.KindInvalidTransition,
			"%d of %d earnings were not processing", int64(len(earningIDs))-tag.RowsAffected(), len(earningIDs))
	}
	return tx.Commit(ctx)
}

// scanEarning is a helper to scan a row into an Earning.
func (r *earningsRepository) scanEarning(row pgx.Row) (*domain.Earning, error) {
	var earning domain.Earning
	err := row.Scan(
		&earning.ID,
		&earning.WasherID,
		&earning.BookingID,
		&earning.Amount,
		&earning.Status,
		&earning.MadeAvailableAt,
		&earning.CreatedAt,
		&earning.UpdatedAt,
	)
	if err != nil {
		if !errors.Is(err, pgx.ErrNoRows) {
			r.log.Error().Err(err).Msg("Failed to scan earning row")
		}
		return nil, err
	}
	return &earning, nil
}

// uuidStrings renders ids for ANY($1::uuid[]) parameters.
func uuidStrings(ids []uuid.UUID) []string {
	out := make([]string, len(ids))
	for i, id := range ids {
		out[i] = id.String()
	}
	return out
}
