package memory

import (
	"WasherHub/internal/core/domain"
	"WasherHub/internal/core/ports"
	"context"
	"sync"

	"github.com/google/uuid"
)

type VerificationStore struct {
	mu        sync.RWMutex
	rows      map[uuid.UUID]*domain.VerificationStatus
	byAccount map[string]uuid.UUID
}

var _ ports.VerificationRepository = (*VerificationStore)(nil)

func NewVerificationStore() *VerificationStore {
	return &VerificationStore{
		rows:      make(map[uuid.UUID]*domain.VerificationStatus),
		byAccount: make(map[string]uuid.UUID),
	}
}

func (s *VerificationStore) Create(ctx context.Context, status *domain.VerificationStatus) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.rows[status.WasherID] = cloneStatus(status)
	s.byAccount[status.ExternalAccountID] = status.WasherID
	return nil
}

func (s *VerificationStore) GetByWasherID(ctx context.Context, washerID uuid.UUID) (*domain.VerificationStatus, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	row, ok := s.rows[washerID]
	if !ok {
		return nil, nil
	}
	return cloneStatus(row), nil
}

func (s *VerificationStore) GetByAccountID(ctx context.Context, accountID string) (*domain.VerificationStatus, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	washerID, ok := s.byAccount[accountID]
	if !ok {
		return nil, nil
	}
	return cloneStatus(s.rows[washerID]), nil
}

func (s *VerificationStore) Update(ctx context.Context, status *domain.VerificationStatus) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.rows[status.WasherID] = cloneStatus(status)
	s.byAccount[status.ExternalAccountID] = status.WasherID
	return nil
}

func cloneStatus(v *domain.VerificationStatus) *domain.VerificationStatus {
	c := *v
	c.Requirements = domain.Requirements{
		CurrentlyDue:        append([]string(nil), v.Requirements.CurrentlyDue...),
		EventuallyDue:       append([]string(nil), v.Requirements.EventuallyDue...),
		PastDue:             append([]string(nil), v.Requirements.PastDue...),
		PendingVerification: append([]string(nil), v.Requirements.PendingVerification...),
	}
	if v.DisabledReason != nil {
		reason := *v.DisabledReason
		c.DisabledReason = &reason
	}
	if v.LastEventID != nil {
		id := *v.LastEventID
		c.LastEventID = &id
	}
	return &c
}
