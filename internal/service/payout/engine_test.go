package payout

import (
	"WasherHub/internal/adapters/eventbus"
	"WasherHub/internal/adapters/memory"
	"WasherHub/internal/core/domain"
	"WasherHub/internal/core/ports"
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func dec(s string) decimal.Decimal {
	d, err := decimal.NewFromString(s)
	if err != nil {
		panic(err)
	}
	return d
}

func defaultPolicy() domain.PayoutPolicy {
	return domain.PayoutPolicy{MinimumAmount: dec("10.00"), WithdrawalFee: dec("2.50")}
}

type fixture struct {
	engine       *Engine
	verification *memory.VerificationStore
	ledger       *memory.LedgerStore
	washerID     uuid.UUID
}

func newFixture(t *testing.T, policy domain.PayoutPolicy) *fixture {
	t.Helper()
	nopLogger := zerolog.Nop()
	verification := memory.NewVerificationStore()
	ledger := memory.NewLedgerStore()
	bus := eventbus.NewSynchronousEventBus(&nopLogger)
	return &fixture{
		engine:       NewEngine(verification, ledger, ledger, policy, bus, &nopLogger),
		verification: verification,
		ledger:       ledger,
		washerID:     uuid.New(),
	}
}

func (f *fixture) verify(t *testing.T, state domain.VerificationState) {
	t.Helper()
	now := time.Now().UTC()
	require.NoError(t, f.verification.Create(context.Background(), &domain.VerificationStatus{
		WasherID:          f.washerID,
		ExternalAccountID: "acct_" + f.washerID.String(),
		State:             state,
		LastSyncedAt:      now,
		CreatedAt:         now,
		UpdatedAt:         now,
	}))
}

// earn seeds available earnings with ascending made_available_at so the FIFO
// order matches the argument order.
func (f *fixture) earn(t *testing.T, amounts ...string) []uuid.UUID {
	t.Helper()
	base := time.Now().UTC().Add(-time.Hour)
	ids := make([]uuid.UUID, len(amounts))
	for i, amount := range amounts {
		earning := domain.NewEarning(f.washerID, uuid.New(), dec(amount), base.Add(time.Duration(i)*time.Minute))
		require.NoError(t, f.ledger.Create(context.Background(), earning))
		ids[i] = earning.ID
	}
	return ids
}

// assertBalanceConserved checks that allocation and review only ever move
// money between status buckets: available + processing + paid stays equal to
// everything recorded for the washer.
func (f *fixture) assertBalanceConserved(t *testing.T, total string) {
	t.Helper()
	ctx := context.Background()
	available, err := f.ledger.SumByStatus(ctx, f.washerID, domain.EarningAvailable)
	require.NoError(t, err)
	processing, err := f.ledger.SumByStatus(ctx, f.washerID, domain.EarningProcessing)
	require.NoError(t, err)
	paid, err := f.ledger.SumByStatus(ctx, f.washerID, domain.EarningPaid)
	require.NoError(t, err)
	assert.True(t, available.Add(processing).Add(paid).Equal(dec(total)),
		"available %s + processing %s + paid %s != recorded %s", available, processing, paid, total)
}

func TestRequestPayout_RequiresCompleteVerification(t *testing.T) {
	f := newFixture(t, defaultPolicy())
	ctx := context.Background()
	f.verify(t, domain.VerificationPending)
	f.earn(t, "50.00")

	// Verification is checked before any balance math: plenty of balance, but
	// a pending account still fails with payouts_not_enabled.
	_, err := f.engine.RequestPayout(ctx, f.washerID, dec("20.00"), nil)
	assert.True(t, domain.IsKind(err, domain.KindPayoutsNotEnabled))
}

func TestRequestPayout_NeverConnected(t *testing.T) {
	f := newFixture(t, defaultPolicy())

	_, err := f.engine.RequestPayout(context.Background(), f.washerID, dec("20.00"), nil)
	assert.True(t, domain.IsKind(err, domain.KindPayoutsNotEnabled))
}

func TestRequestPayout_BelowMinimum(t *testing.T) {
	f := newFixture(t, defaultPolicy())
	f.verify(t, domain.VerificationComplete)
	f.earn(t, "50.00")

	_, err := f.engine.RequestPayout(context.Background(), f.washerID, dec("9.99"), nil)
	assert.True(t, domain.IsKind(err, domain.KindBelowMinimum))
}

func TestRequestPayout_InsufficientBalance(t *testing.T) {
	f := newFixture(t, defaultPolicy())
	f.verify(t, domain.VerificationComplete)
	f.earn(t, "15.00")

	_, err := f.engine.RequestPayout(context.Background(), f.washerID, dec("20.00"), nil)
	assert.True(t, domain.IsKind(err, domain.KindInsufficientBalance))
}

func TestRequestPayout_FeeExceedsAmount(t *testing.T) {
	f := newFixture(t, domain.PayoutPolicy{MinimumAmount: dec("1.00"), WithdrawalFee: dec("5.00")})
	f.verify(t, domain.VerificationComplete)
	f.earn(t, "50.00")

	_, err := f.engine.RequestPayout(context.Background(), f.washerID, dec("3.00"), nil)
	assert.True(t, domain.IsKind(err, domain.KindFeeExceedsAmount))
}

func TestRequestPayout_AllocatesOldestFirst(t *testing.T) {
	f := newFixture(t, defaultPolicy())
	ctx := context.Background()
	f.verify(t, domain.VerificationComplete)
	ids := f.earn(t, "10.00", "15.00", "20.00")

	request, err := f.engine.RequestPayout(ctx, f.washerID, dec("20.00"), nil)
	require.NoError(t, err)

	// 10 alone is short, 10+15 covers 20; the newest earning stays untouched.
	assert.Equal(t, []uuid.UUID{ids[0], ids[1]}, request.AllocatedEarningIDs)
	assert.True(t, request.NetAmount.Equal(dec("17.50")))
	assert.Equal(t, domain.PayoutPending, request.Status)

	available, err := f.ledger.SumByStatus(ctx, f.washerID, domain.EarningAvailable)
	require.NoError(t, err)
	processing, err := f.ledger.SumByStatus(ctx, f.washerID, domain.EarningProcessing)
	require.NoError(t, err)
	assert.True(t, available.Equal(dec("20.00")))
	assert.True(t, processing.Equal(dec("25.00")))
	f.assertBalanceConserved(t, "45.00")
}

// staleEarnings serves every read from a snapshot taken at construction time,
// the way two racing requests both see the pre-allocation ledger. Writes go to
// the real store, whose optimistic check then catches the loser.
type staleEarnings struct {
	store *memory.LedgerStore
	list  []*domain.Earning
	sum   decimal.Decimal
}

var _ ports.EarningsRepository = (*staleEarnings)(nil)

func (s *staleEarnings) Create(ctx context.Context, earning *domain.Earning) error {
	return s.store.Create(ctx, earning)
}

func (s *staleEarnings) GetByBooking(ctx context.Context, washerID, bookingID uuid.UUID) (*domain.Earning, error) {
	return s.store.GetByBooking(ctx, washerID, bookingID)
}

func (s *staleEarnings) ListAvailable(ctx context.Context, washerID uuid.UUID) ([]*domain.Earning, error) {
	return s.list, nil
}

func (s *staleEarnings) SumByStatus(ctx context.Context, washerID uuid.UUID, status domain.EarningStatus) (decimal.Decimal, error) {
	return s.sum, nil
}

func (s *staleEarnings) MarkPaid(ctx context.Context, earningIDs []uuid.UUID) error {
	return s.store.MarkPaid(ctx, earningIDs)
}

func TestRequestPayout_ConcurrentAllocationLosesWithTypedError(t *testing.T) {
	nopLogger := zerolog.Nop()
	ctx := context.Background()

	f := newFixture(t, defaultPolicy())
	f.verify(t, domain.VerificationComplete)
	f.earn(t, "10.00", "15.00")

	snapshot, err := f.ledger.ListAvailable(ctx, f.washerID)
	require.NoError(t, err)
	stale := &staleEarnings{store: f.ledger, list: snapshot, sum: dec("25.00")}
	bus := eventbus.NewSynchronousEventBus(&nopLogger)
	engine := NewEngine(f.verification, stale, f.ledger, defaultPolicy(), bus, &nopLogger)

	// Both requests validated against the same snapshot; storage admits one.
	_, err = engine.RequestPayout(ctx, f.washerID, dec("20.00"), nil)
	require.NoError(t, err)

	_, err = engine.RequestPayout(ctx, f.washerID, dec("20.00"), nil)
	assert.True(t, domain.IsKind(err, domain.KindConcurrentModification))

	// The loser left no trace: no double-spend of the allocated earnings.
	processing, err := f.ledger.SumByStatus(ctx, f.washerID, domain.EarningProcessing)
	require.NoError(t, err)
	assert.True(t, processing.Equal(dec("25.00")))
	f.assertBalanceConserved(t, "25.00")
}

func TestReview_RejectionReturnsEarnings(t *testing.T) {
	f := newFixture(t, defaultPolicy())
	ctx := context.Background()
	f.verify(t, domain.VerificationComplete)
	f.earn(t, "10.00", "15.00")

	request, err := f.engine.RequestPayout(ctx, f.washerID, dec("20.00"), nil)
	require.NoError(t, err)
	f.assertBalanceConserved(t, "25.00")

	reviewed, err := f.engine.Review(ctx, request.ID, domain.PayoutRejected, "admin:1", nil)
	require.NoError(t, err)
	assert.Equal(t, domain.PayoutRejected, reviewed.Status)
	require.NotNil(t, reviewed.ReviewedBy)
	assert.Equal(t, "admin:1", *reviewed.ReviewedBy)

	// Every allocated earning is spendable again.
	available, err := f.ledger.SumByStatus(ctx, f.washerID, domain.EarningAvailable)
	require.NoError(t, err)
	assert.True(t, available.Equal(dec("25.00")))
	f.assertBalanceConserved(t, "25.00")
}

func TestReview_ApproveThenPaySettlesEarnings(t *testing.T) {
	f := newFixture(t, defaultPolicy())
	ctx := context.Background()
	f.verify(t, domain.VerificationComplete)
	f.earn(t, "25.00")

	request, err := f.engine.RequestPayout(ctx, f.washerID, dec("20.00"), nil)
	require.NoError(t, err)

	approved, err := f.engine.Review(ctx, request.ID, domain.PayoutApproved, "admin:1", nil)
	require.NoError(t, err)
	assert.Equal(t, domain.PayoutApproved, approved.Status)

	// Approval keeps the earnings locked.
	processing, err := f.ledger.SumByStatus(ctx, f.washerID, domain.EarningProcessing)
	require.NoError(t, err)
	assert.True(t, processing.Equal(dec("25.00")))
	f.assertBalanceConserved(t, "25.00")

	paid, err := f.engine.Review(ctx, request.ID, domain.PayoutPaid, "admin:1", nil)
	require.NoError(t, err)
	assert.Equal(t, domain.PayoutPaid, paid.Status)

	paidSum, err := f.ledger.SumByStatus(ctx, f.washerID, domain.EarningPaid)
	require.NoError(t, err)
	assert.True(t, paidSum.Equal(dec("25.00")))
	f.assertBalanceConserved(t, "25.00")
}

func TestReview_RejectedRequestIsFinal(t *testing.T) {
	f := newFixture(t, defaultPolicy())
	ctx := context.Background()
	f.verify(t, domain.VerificationComplete)
	f.earn(t, "25.00")

	request, err := f.engine.RequestPayout(ctx, f.washerID, dec("20.00"), nil)
	require.NoError(t, err)
	_, err = f.engine.Review(ctx, request.ID, domain.PayoutRejected, "admin:1", nil)
	require.NoError(t, err)

	_, err = f.engine.Review(ctx, request.ID, domain.PayoutPaid, "admin:1", nil)
	assert.True(t, domain.IsKind(err, domain.KindInvalidTransition))
}

func TestReview_InvalidDecision(t *testing.T) {
	f := newFixture(t, defaultPolicy())

	_, err := f.engine.Review(context.Background(), uuid.New(), domain.PayoutPending, "admin:1", nil)
	assert.True(t, domain.IsKind(err, domain.KindInvalidTransition))
}

func TestReview_UnknownRequest(t *testing.T) {
	f := newFixture(t, defaultPolicy())

	_, err := f.engine.Review(context.Background(), uuid.New(), domain.PayoutApproved, "admin:1", nil)
	assert.True(t, domain.IsKind(err, domain.KindNotFound))
}

func TestGet_And_ListForWasher(t *testing.T) {
	f := newFixture(t, defaultPolicy())
	ctx := context.Background()
	f.verify(t, domain.VerificationComplete)
	f.earn(t, "25.00", "30.00")

	first, err := f.engine.RequestPayout(ctx, f.washerID, dec("20.00"), nil)
	require.NoError(t, err)

	got, err := f.engine.Get(ctx, first.ID)
	require.NoError(t, err)
	assert.Equal(t, first.ID, got.ID)

	_, err = f.engine.Get(ctx, uuid.New())
	assert.True(t, domain.IsKind(err, domain.KindNotFound))

	list, err := f.engine.ListForWasher(ctx, f.washerID)
	require.NoError(t, err)
	assert.Len(t, list, 1)
}
