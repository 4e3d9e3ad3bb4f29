package payout

import (
	"WasherHub/internal/core/domain"
	"WasherHub/internal/core/ports"
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
)

// RequestedEvent is published when a payout request is persisted; the review
// channel notifier subscribes to it.
type RequestedEvent struct {
	Request *domain.PayoutRequest
}

// ReviewedEvent is published after an administrative decision.
type ReviewedEvent struct {
	Request  *domain.PayoutRequest
	Decision domain.PayoutStatus
}

// Engine validates and creates payout requests against the earnings ledger
// using FIFO allocation, and applies administrative review decisions.
type Engine struct {
	verification ports.VerificationRepository
	earnings     ports.EarningsRepository
	payouts      ports.PayoutRepository
	policy       domain.PayoutPolicy
	bus          ports.EventBus
	log          zerolog.Logger
}

var _ ports.PayoutReviewer = (*Engine)(nil)

// NewEngine creates the payout request engine.
func NewEngine(
	verification ports.VerificationRepository,
	earnings ports.EarningsRepository,
	payouts ports.PayoutRepository,
	policy domain.PayoutPolicy,
	bus ports.EventBus,
	baseLogger *zerolog.Logger,
) *Engine {
	return &Engine{
		verification: verification,
		earnings:     earnings,
		payouts:      payouts,
		policy:       policy,
		bus:          bus,
		log:          baseLogger.With().Str("component", "payout_engine").Logger(),
	}
}

// RequestPayout validates the request and allocates available earnings to it
// oldest-first. Preconditions are checked in a fixed order; the first
// failure wins. On a storage-level allocation race the caller receives
// concurrent_modification and is expected to retry the whole request.
func (e *Engine) RequestPayout(ctx context.Context, washerID uuid.UUID, amount decimal.Decimal, notes *string) (*domain.PayoutRequest, error) {
	// 1. Payouts demand a fully verified external account.
	status, err := e.verification.GetByWasherID(ctx, washerID)
	if err != nil {
		return nil, err
	}
	if status == nil || status.State != domain.VerificationComplete {
		state := domain.VerificationNotConnected
		if status != nil {
			state = status.State
		}
		return nil, domain.NewError(domain.KindPayoutsNotEnabled,
			"verification status is %s, payouts require complete", state)
	}

	// 2. Policy minimum.
	if amount.Cmp(e.policy.MinimumAmount) < 0 {
		return nil, domain.NewError(domain.KindBelowMinimum,
			"requested %s is below the %s minimum", amount, e.policy.MinimumAmount)
	}

	// 3. Available balance covers the request.
	available, err := e.earnings.SumByStatus(ctx, washerID, domain.EarningAvailable)
	if err != nil {
		return nil, err
	}
	if amount.Cmp(available) > 0 {
		return nil, domain.NewError(domain.KindInsufficientBalance,
			"requested %s exceeds available balance %s", amount, available)
	}

	// 4. Something must remain after the fee.
	net := amount.Sub(e.policy.WithdrawalFee)
	if net.Cmp(decimal.Zero) <= 0 {
		return nil, domain.NewError(domain.KindFeeExceedsAmount,
			"net amount %s after the %s fee is not positive", net, e.policy.WithdrawalFee)
	}

	allocated, err := e.allocate(ctx, washerID, amount)
	if err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	request := &domain.PayoutRequest{
		ID:                  uuid.New(),
		WasherID:            washerID,
		RequestedAmount:     amount,
		WithdrawalFee:       e.policy.WithdrawalFee,
		NetAmount:           net,
		AllocatedEarningIDs: allocated,
		Status:              domain.PayoutPending,
		Notes:               notes,
		CreatedAt:           now,
		UpdatedAt:           now,
	}

	// Atomic: the earnings flip available -> processing and the request row
	// land together, or not at all. A racing request that already claimed
	// any of the earnings aborts this one with concurrent_modification.
	if err := e.payouts.CreateWithAllocation(ctx, request); err != nil {
		return nil, err
	}

	e.bus.Publish(ctx, ports.TopicPayoutRequested, RequestedEvent{Request: request})

	e.log.Info().
		Str("washer_id", washerID.String()).
		Str("payout_id", request.ID.String()).
		Str("amount", amount.String()).
		Str("net", net.String()).
		Int("allocated", len(allocated)).
		Msg("Payout request created")

	return request, nil
}

// allocate walks the washer's available earnings oldest-first, accumulating
// until the running total covers the requested amount.
func (e *Engine) allocate(ctx context.Context, washerID uuid.UUID, amount decimal.Decimal) ([]uuid.UUID, error) {
	earnings, err := e.earnings.ListAvailable(ctx, washerID)
	if err != nil {
		return nil, err
	}

	var ids []uuid.UUID
	total := decimal.Zero
	for _, earning := range earnings {
		ids = append(ids, earning.ID)
		total = total.Add(earning.Amount)
		if total.Cmp(amount) >= 0 {
			return ids, nil
		}
	}

	// The balance was checked a moment ago; reaching here means a racing
	// request claimed earnings in between.
	return nil, domain.NewError(domain.KindConcurrentModification,
		"available earnings no longer cover %s", amount)
}

// Review applies the administrative decision on a pending request.
// Approving keeps the earnings locked; paying settles them; rejecting
// returns them to available in the same transaction as the status flip.
func (e *Engine) Review(ctx context.Context, payoutID uuid.UUID, decision domain.PayoutStatus, reviewedBy string, notes *string) (*domain.PayoutRequest, error) {
	switch decision {
	case domain.PayoutApproved, domain.PayoutPaid, domain.PayoutRejected:
	default:
		return nil, domain.NewError(domain.KindInvalidTransition,
			"%s is not a review decision", decision)
	}

	request, err := e.payouts.Review(ctx, payoutID, decision, reviewedBy, notes)
	if err != nil {
		return nil, err
	}

	e.bus.Publish(ctx, ports.TopicPayoutReviewed, ReviewedEvent{
		Request:  request,
		Decision: decision,
	})

	e.log.Info().
		Str("payout_id", payoutID.String()).
		Str("decision", string(decision)).
		Str("reviewed_by", reviewedBy).
		Msg("Payout request reviewed")

	return request, nil
}

// Get returns a single payout request.
func (e *Engine) Get(ctx context.Context, payoutID uuid.UUID) (*domain.PayoutRequest, error) {
	request, err := e.payouts.GetByID(ctx, payoutID)
	if err != nil {
		return nil, err
	}
	if request == nil {
		return nil, domain.NewError(domain.KindNotFound, "no payout request %s", payoutID)
	}
	return request, nil
}

// ListForWasher returns the washer's payout requests, newest first.
func (e *Engine) ListForWasher(ctx context.Context, washerID uuid.UUID) ([]*domain.PayoutRequest, error) {
	return e.payouts.ListByWasher(ctx, washerID)
}
