package memory

import (
	"WasherHub/internal/core/domain"
	"WasherHub/internal/core/ports"
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// LedgerStore holds earnings and payout requests behind one mutex so the
// allocation flip and the payout insert are atomic, mirroring the single
// database transaction the postgres adapter uses.
type LedgerStore struct {
	mu        sync.Mutex
	earnings  map[uuid.UUID]*domain.Earning
	byBooking map[bookingKey]uuid.UUID
	payouts   map[uuid.UUID]*domain.PayoutRequest
}

type bookingKey struct {
	washerID  uuid.UUID
	bookingID uuid.UUID
}

var (
	_ ports.EarningsRepository = (*LedgerStore)(nil)
	_ ports.PayoutRepository   = (*LedgerStore)(nil)
)

func NewLedgerStore() *LedgerStore {
	return &LedgerStore{
		earnings:  make(map[uuid.UUID]*domain.Earning),
		byBooking: make(map[bookingKey]uuid.UUID),
		payouts:   make(map[uuid.UUID]*domain.PayoutRequest),
	}
}

func (s *LedgerStore) Create(ctx context.Context, earning *domain.Earning) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	key := bookingKey{earning.WasherID, earning.BookingID}
	if _, exists := s.byBooking[key]; exists {
		return domain.NewError(domain.KindDuplicateBooking,
			"earning already recorded for booking %s", earning.BookingID)
	}
	s.earnings[earning.ID] = cloneEarning(earning)
	s.byBooking[key] = earning.ID
	return nil
}

func (s *LedgerStore) GetByBooking(ctx context.Context, washerID, bookingID uuid.UUID) (*domain.Earning, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	id, ok := s.byBooking[bookingKey{washerID, bookingID}]
	if !ok {
		return nil, nil
	}
	return cloneEarning(s.earnings[id]), nil
}

func (s *LedgerStore) ListAvailable(ctx context.Context, washerID uuid.UUID) ([]*domain.Earning, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []*domain.Earning
	for _, earning := range s.earnings {
		if earning.WasherID == washerID && earning.Status == domain.EarningAvailable {
			out = append(out, cloneEarning(earning))
		}
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].MadeAvailableAt.Before(out[j].MadeAvailableAt)
	})
	return out, nil
}

func (s *LedgerStore) SumByStatus(ctx context.Context, washerID uuid.UUID, status domain.EarningStatus) (decimal.Decimal, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	total := decimal.Zero
	for _, earning := range s.earnings {
		if earning.WasherID == washerID && earning.Status == status {
			total = total.Add(earning.Amount)
		}
	}
	return total, nil
}

func (s *LedgerStore) MarkPaid(ctx context.Context, earningIDs []uuid.UUID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.checkAll(earningIDs, domain.EarningProcessing); err != nil {
		return err
	}
	s.flipAll(earningIDs, domain.EarningPaid)
	return nil
}

func (s *LedgerStore) CreateWithAllocation(ctx context.Context, request *domain.PayoutRequest) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	// Optimistic re-check: every allocated earning must still be available.
	for _, id := range request.AllocatedEarningIDs {
		earning, ok := s.earnings[id]
		if !ok || earning.Status != domain.EarningAvailable {
			return domain.NewError(domain.KindConcurrentModification,
				"earning %s was claimed by another payout request", id)
		}
	}
	s.flipAll(request.AllocatedEarningIDs, domain.EarningProcessing)
	s.payouts[request.ID] = clonePayout(request)
	return nil
}

func (s *LedgerStore) GetByID(ctx context.Context, id uuid.UUID) (*domain.PayoutRequest, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	row, ok := s.payouts[id]
	if !ok {
		return nil, nil
	}
	return clonePayout(row), nil
}

func (s *LedgerStore) ListByWasher(ctx context.Context, washerID uuid.UUID) ([]*domain.PayoutRequest, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []*domain.PayoutRequest
	for _, row := range s.payouts {
		if row.WasherID == washerID {
			out = append(out, clonePayout(row))
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, nil
}

func (s *LedgerStore) Review(ctx context.Context, id uuid.UUID, decision domain.PayoutStatus, reviewedBy string, notes *string) (*domain.PayoutRequest, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	row, ok := s.payouts[id]
	if !ok {
		return nil, domain.NewError(domain.KindNotFound, "no payout request %s", id)
	}

	switch {
	case row.Status == domain.PayoutPending:
		// pending may go anywhere
	case row.Status == domain.PayoutApproved && decision == domain.PayoutPaid:
		// approved may settle
	default:
		return nil, domain.NewError(domain.KindInvalidTransition,
			"payout request is %s, cannot become %s", row.Status, decision)
	}

	switch decision {
	case domain.PayoutPaid:
		if err := s.checkAll(row.AllocatedEarningIDs, domain.EarningProcessing); err != nil {
			return nil, err
		}
		s.flipAll(row.AllocatedEarningIDs, domain.EarningPaid)
	case domain.PayoutRejected:
		if err := s.checkAll(row.AllocatedEarningIDs, domain.EarningProcessing); err != nil {
			return nil, err
		}
		s.flipAll(row.AllocatedEarningIDs, domain.EarningAvailable)
	}

	now := time.Now().UTC()
	row.Status = decision
	row.ReviewedBy = &reviewedBy
	row.ReviewedAt = &now
	if notes != nil {
		row.Notes = notes
	}
	row.UpdatedAt = now
	return clonePayout(row), nil
}

func (s *LedgerStore) checkAll(ids []uuid.UUID, want domain.EarningStatus) error {
	for _, id := range ids {
		earning, ok := s.earnings[id]
		if !ok || earning.Status != want {
			return domain.NewError(domain.KindInvalidTransition,
				"earning %s is not %s", id, want)
		}
	}
	return nil
}

func (s *LedgerStore) flipAll(ids []uuid.UUID, to domain.EarningStatus) {
	now := time.Now().UTC()
	for _, id := range ids {
		s.earnings[id].Status = to
		s.earnings[id].UpdatedAt = now
	}
}

func cloneEarning(e *domain.Earning) *domain.Earning {
	c := *e
	return &c
}

func clonePayout(p *domain.PayoutRequest) *domain.PayoutRequest {
	c := *p
	c.AllocatedEarningIDs = append([]uuid.UUID(nil), p.AllocatedEarningIDs...)
	if p.Notes != nil {
		n := *p.Notes
		c.Notes = &n
	}
	if p.ReviewedBy != nil {
		r := *p.ReviewedBy
		c.ReviewedBy = &r
	}
	if p.ReviewedAt != nil {
		at := *p.ReviewedAt
		c.ReviewedAt = &at
	}
	return &c
}
