// Package memory provides mutex-guarded in-memory implementations of the
// persistence ports. They back the unit tests and local development runs;
// production uses the postgres adapters.
package memory

import (
	"WasherHub/internal/core/domain"
	"WasherHub/internal/core/ports"
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
)

type OnboardingStore struct {
	mu   sync.RWMutex
	rows map[uuid.UUID]*domain.OnboardingProgress
}

var _ ports.OnboardingRepository = (*OnboardingStore)(nil)

func NewOnboardingStore() *OnboardingStore {
	return &OnboardingStore{rows: make(map[uuid.UUID]*domain.OnboardingProgress)}
}

func (s *OnboardingStore) Create(ctx context.Context, progress *domain.OnboardingProgress) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.rows[progress.WasherID] = cloneProgress(progress)
	return nil
}

func (s *OnboardingStore) GetByWasherID(ctx context.Context, washerID uuid.UUID) (*domain.OnboardingProgress, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	row, ok := s.rows[washerID]
	if !ok {
		return nil, nil
	}
	return cloneProgress(row), nil
}

func (s *OnboardingStore) Update(ctx context.Context, progress *domain.OnboardingProgress) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.rows[progress.WasherID] = cloneProgress(progress)
	return nil
}

func (s *OnboardingStore) ListAll(ctx context.Context) ([]*domain.OnboardingProgress, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	rows := make([]*domain.OnboardingProgress, 0, len(s.rows))
	for _, row := range s.rows {
		rows = append(rows, cloneProgress(row))
	}
	return rows, nil
}

// cloneProgress keeps callers from mutating stored state through aliases.
func cloneProgress(p *domain.OnboardingProgress) *domain.OnboardingProgress {
	c := *p
	c.StepTimes = make(map[domain.Step]time.Time, len(p.StepTimes))
	for step, at := range p.StepTimes {
		c.StepTimes[step] = at
	}
	if p.CompletedAt != nil {
		at := *p.CompletedAt
		c.CompletedAt = &at
	}
	return &c
}

type StepEventStore struct {
	mu     sync.RWMutex
	events []*domain.StepEvent
}

var _ ports.StepEventRepository = (*StepEventStore)(nil)

func NewStepEventStore() *StepEventStore {
	return &StepEventStore{}
}

func (s *StepEventStore) Append(ctx context.Context, event *domain.StepEvent) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	c := *event
	s.events = append(s.events, &c)
	return nil
}

func (s *StepEventStore) ListSince(ctx context.Context, since time.Time) ([]*domain.StepEvent, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []*domain.StepEvent
	for _, event := range s.events {
		if !event.OccurredAt.Before(since) {
			c := *event
			out = append(out, &c)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].OccurredAt.Before(out[j].OccurredAt) })
	return out, nil
}
