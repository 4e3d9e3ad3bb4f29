package ledger

import (
	"WasherHub/internal/core/domain"
	"WasherHub/internal/core/ports"
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
)

// EarningRecordedEvent is published on the bus for every new ledger entry.
type EarningRecordedEvent struct {
	WasherID  uuid.UUID
	BookingID uuid.UUID
	Amount    decimal.Decimal
}

// Service is the earnings ledger: append-only per-booking entries with
// one-way status transitions.
type Service struct {
	repo ports.EarningsRepository
	bus  ports.EventBus
	log  zerolog.Logger
}

// NewService creates the earnings ledger service.
func NewService(repo ports.EarningsRepository, bus ports.EventBus, baseLogger *zerolog.Logger) *Service {
	return &Service{
		repo: repo,
		bus:  bus,
		log:  baseLogger.With().Str("component", "earnings_ledger").Logger(),
	}
}

// RecordEarning appends the washer's net share of a completed, paid booking.
// The booking-completion collaborator calls this exactly once per booking;
// duplicate calls for the same booking are rejected, which makes the ledger
// safe against redelivery.
func (s *Service) RecordEarning(ctx context.Context, washerID, bookingID uuid.UUID, amount decimal.Decimal) (*domain.Earning, error) {
	if amount.Cmp(decimal.Zero) <= 0 {
		return nil, domain.NewError(domain.KindInvalidAmount, "earning amount %s must be positive", amount)
	}

	existing, err := s.repo.GetByBooking(ctx, washerID, bookingID)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		return nil, domain.NewError(domain.KindDuplicateBooking,
			"earning already recorded for booking %s", bookingID)
	}

	earning := domain.NewEarning(washerID, bookingID, amount, time.Now().UTC())
	// The unique (washer, booking) constraint backs up the pre-check; a race
	// between two deliveries still yields exactly one row.
	if err := s.repo.Create(ctx, earning); err != nil {
		return nil, err
	}

	s.bus.Publish(ctx, ports.TopicEarningRecorded, EarningRecordedEvent{
		WasherID:  washerID,
		BookingID: bookingID,
		Amount:    amount,
	})

	s.log.Info().
		Str("washer_id", washerID.String()).
		Str("booking_id", bookingID.String()).
		Str("amount", amount.String()).
		Msg("Earning recorded")

	return earning, nil
}

// AvailableBalance sums the washer's available entries.
func (s *Service) AvailableBalance(ctx context.Context, washerID uuid.UUID) (decimal.Decimal, error) {
	return s.repo.SumByStatus(ctx, washerID, domain.EarningAvailable)
}

// ProcessingBalance sums the washer's entries currently locked in payout
// requests.
func (s *Service) ProcessingBalance(ctx context.Context, washerID uuid.UUID) (decimal.Decimal, error) {
	return s.repo.SumByStatus(ctx, washerID, domain.EarningProcessing)
}

// MarkPaid settles earnings: processing -> paid. Any entry not currently
// processing fails the whole call with invalid_transition and nothing moves.
func (s *Service) MarkPaid(ctx context.Context, earningIDs []uuid.UUID) error {
	if len(earningIDs) == 0 {
		return nil
	}
	return s.repo.MarkPaid(ctx, earningIDs)
}
