package verification

import (
	"WasherHub/internal/adapters/eventbus"
	"WasherHub/internal/adapters/memory"
	"WasherHub/internal/core/domain"
	"context"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeProvider scripts GetAccount responses and counts calls. A non-zero
// delay makes each fetch slow enough for concurrent callers to overlap.
type fakeProvider struct {
	mu        sync.Mutex
	accountID string
	linkURL   string
	delay     time.Duration
	// responses are consumed one per GetAccount call; the last one repeats.
	responses []fakeResponse
	getCalls  int
}

type fakeResponse struct {
	snap *domain.AccountSnapshot
	err  error
}

func (f *fakeProvider) CreateAccount(ctx context.Context) (string, error) {
	return f.accountID, nil
}

func (f *fakeProvider) GetAccount(ctx context.Context, accountID string) (*domain.AccountSnapshot, error) {
	if f.delay > 0 {
		time.Sleep(f.delay)
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.getCalls++
	idx := f.getCalls - 1
	if idx >= len(f.responses) {
		idx = len(f.responses) - 1
	}
	r := f.responses[idx]
	return r.snap, r.err
}

func (f *fakeProvider) CreateOnboardingLink(ctx context.Context, accountID, refreshURL, returnURL string) (string, error) {
	return f.linkURL, nil
}

func (f *fakeProvider) calls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.getCalls
}

type failureLog struct {
	mu    sync.Mutex
	steps []domain.Step
}

func (l *failureLog) RecordStepFailure(ctx context.Context, washerID uuid.UUID, step domain.Step, detail string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.steps = append(l.steps, step)
}

func completeSnapshot() *domain.AccountSnapshot {
	return &domain.AccountSnapshot{
		DetailsSubmitted: true,
		ChargesEnabled:   true,
		PayoutsEnabled:   true,
	}
}

func newTestService(provider *fakeProvider) (*Service, *memory.VerificationStore, *failureLog) {
	nopLogger := zerolog.Nop()
	store := memory.NewVerificationStore()
	bus := eventbus.NewSynchronousEventBus(&nopLogger)
	failures := &failureLog{}
	svc := NewService(
		store, provider, bus, failures,
		domain.DefaultDerivationPolicy(),
		time.Millisecond, 3,
		"https://example.test/refresh", "https://example.test/return",
		&nopLogger,
	)
	return svc, store, failures
}

func TestConnect_CreatesAccountOnceAndMintsLinks(t *testing.T) {
	provider := &fakeProvider{accountID: "acct_123", linkURL: "https://onboard.test/link"}
	svc, store, _ := newTestService(provider)
	ctx := context.Background()
	washerID := uuid.New()

	url, err := svc.Connect(ctx, washerID)
	require.NoError(t, err)
	assert.Equal(t, "https://onboard.test/link", url)

	status, err := store.GetByWasherID(ctx, washerID)
	require.NoError(t, err)
	require.NotNil(t, status)
	assert.Equal(t, "acct_123", status.ExternalAccountID)
	assert.Equal(t, domain.VerificationIncomplete, status.State)

	// Second call reuses the account, only the link is fresh.
	_, err = svc.Connect(ctx, washerID)
	require.NoError(t, err)
	again, err := store.GetByWasherID(ctx, washerID)
	require.NoError(t, err)
	assert.Equal(t, "acct_123", again.ExternalAccountID)
}

func TestSyncNow_UnconnectedWasher(t *testing.T) {
	provider := &fakeProvider{accountID: "acct_123"}
	svc, _, _ := newTestService(provider)

	_, err := svc.SyncNow(context.Background(), uuid.New())
	assert.True(t, domain.IsKind(err, domain.KindNotFound))
}

func TestSyncNow_DerivesAndPersists(t *testing.T) {
	provider := &fakeProvider{
		accountID: "acct_123",
		responses: []fakeResponse{{snap: completeSnapshot()}},
	}
	svc, store, _ := newTestService(provider)
	ctx := context.Background()
	washerID := uuid.New()

	_, err := svc.Connect(ctx, washerID)
	require.NoError(t, err)

	status, err := svc.SyncNow(ctx, washerID)
	require.NoError(t, err)
	assert.Equal(t, domain.VerificationComplete, status.State)
	assert.False(t, status.LastSyncedAt.IsZero())

	saved, err := store.GetByWasherID(ctx, washerID)
	require.NoError(t, err)
	assert.Equal(t, domain.VerificationComplete, saved.State)
}

func TestSyncNow_ConcurrentCallsAreCoalesced(t *testing.T) {
	provider := &fakeProvider{
		accountID: "acct_123",
		delay:     100 * time.Millisecond,
		responses: []fakeResponse{{snap: completeSnapshot()}},
	}
	svc, _, _ := newTestService(provider)
	ctx := context.Background()
	washerID := uuid.New()

	_, err := svc.Connect(ctx, washerID)
	require.NoError(t, err)

	// Eight simultaneous syncs for the same washer share one in-flight
	// provider fetch; the late arrivals wait for it instead of fanning out.
	const callers = 8
	var wg sync.WaitGroup
	results := make([]*domain.VerificationStatus, callers)
	errs := make([]error, callers)
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			results[i], errs[i] = svc.SyncNow(ctx, washerID)
		}(i)
	}
	wg.Wait()

	for i := 0; i < callers; i++ {
		require.NoError(t, errs[i])
		assert.Equal(t, domain.VerificationComplete, results[i].State)
	}
	assert.Equal(t, 1, provider.calls())
}

func TestSyncNow_RetriesTransientFailures(t *testing.T) {
	transient := domain.NewError(domain.KindTransientProviderError, "rate limited")
	provider := &fakeProvider{
		accountID: "acct_123",
		responses: []fakeResponse{
			{err: transient},
			{err: transient},
			{snap: completeSnapshot()},
		},
	}
	svc, _, failures := newTestService(provider)
	ctx := context.Background()
	washerID := uuid.New()

	_, err := svc.Connect(ctx, washerID)
	require.NoError(t, err)

	status, err := svc.SyncNow(ctx, washerID)
	require.NoError(t, err)
	assert.Equal(t, domain.VerificationComplete, status.State)
	assert.Equal(t, 3, provider.calls())
	assert.Empty(t, failures.steps)
}

func TestSyncNow_PermanentFailureIsNotRetried(t *testing.T) {
	provider := &fakeProvider{
		accountID: "acct_123",
		responses: []fakeResponse{
			{err: domain.NewError(domain.KindPermanentProviderError, "no such account")},
		},
	}
	svc, _, failures := newTestService(provider)
	ctx := context.Background()
	washerID := uuid.New()

	_, err := svc.Connect(ctx, washerID)
	require.NoError(t, err)

	_, err = svc.SyncNow(ctx, washerID)
	assert.True(t, domain.IsKind(err, domain.KindPermanentProviderError))
	assert.Equal(t, 1, provider.calls())

	// The failure lands in the step event log for the funnel report.
	require.Len(t, failures.steps, 1)
	assert.Equal(t, domain.StepVerification, failures.steps[0])
}

func TestHandleCallback_AppliesNewerEvent(t *testing.T) {
	provider := &fakeProvider{
		accountID: "acct_123",
		responses: []fakeResponse{{snap: completeSnapshot()}},
	}
	svc, store, _ := newTestService(provider)
	ctx := context.Background()
	washerID := uuid.New()

	_, err := svc.Connect(ctx, washerID)
	require.NoError(t, err)

	status, err := svc.HandleCallback(ctx, domain.CallbackEvent{
		EventID:    "evt_1",
		AccountID:  "acct_123",
		OccurredAt: time.Now().UTC(),
	})
	require.NoError(t, err)
	assert.Equal(t, domain.VerificationComplete, status.State)

	saved, err := store.GetByWasherID(ctx, washerID)
	require.NoError(t, err)
	require.NotNil(t, saved.LastEventID)
	assert.Equal(t, "evt_1", *saved.LastEventID)
}

func TestHandleCallback_RepeatedEventIDIsNoOp(t *testing.T) {
	provider := &fakeProvider{
		accountID: "acct_123",
		responses: []fakeResponse{{snap: completeSnapshot()}},
	}
	svc, _, _ := newTestService(provider)
	ctx := context.Background()
	washerID := uuid.New()

	_, err := svc.Connect(ctx, washerID)
	require.NoError(t, err)

	event := domain.CallbackEvent{
		EventID:    "evt_1",
		AccountID:  "acct_123",
		OccurredAt: time.Now().UTC(),
	}
	_, err = svc.HandleCallback(ctx, event)
	require.NoError(t, err)
	callsAfterFirst := provider.calls()

	_, err = svc.HandleCallback(ctx, event)
	require.NoError(t, err)
	assert.Equal(t, callsAfterFirst, provider.calls())
}

func TestHandleCallback_StaleEventIsIgnored(t *testing.T) {
	provider := &fakeProvider{
		accountID: "acct_123",
		responses: []fakeResponse{{snap: completeSnapshot()}},
	}
	svc, store, _ := newTestService(provider)
	ctx := context.Background()
	washerID := uuid.New()

	_, err := svc.Connect(ctx, washerID)
	require.NoError(t, err)

	// A sync lands first with the provider's current (complete) state.
	_, err = svc.SyncNow(ctx, washerID)
	require.NoError(t, err)
	synced, err := store.GetByWasherID(ctx, washerID)
	require.NoError(t, err)

	// Then a delayed callback from before that sync arrives. Last write wins
	// by event time, so the row is untouched.
	callsBefore := provider.calls()
	status, err := svc.HandleCallback(ctx, domain.CallbackEvent{
		EventID:    "evt_old",
		AccountID:  "acct_123",
		OccurredAt: synced.LastSyncedAt.Add(-time.Hour),
	})
	require.NoError(t, err)
	assert.Equal(t, domain.VerificationComplete, status.State)
	assert.Equal(t, callsBefore, provider.calls())

	saved, err := store.GetByWasherID(ctx, washerID)
	require.NoError(t, err)
	assert.Nil(t, saved.LastEventID)

	// A callback from after the sync does get applied.
	_, err = svc.HandleCallback(ctx, domain.CallbackEvent{
		EventID:    "evt_new",
		AccountID:  "acct_123",
		OccurredAt: synced.LastSyncedAt.Add(time.Hour),
	})
	require.NoError(t, err)
	saved, err = svc.SyncNow(ctx, washerID)
	require.NoError(t, err)
	require.NotNil(t, saved)
}

func TestHandleCallback_UnknownAccount(t *testing.T) {
	provider := &fakeProvider{accountID: "acct_123"}
	svc, _, _ := newTestService(provider)

	_, err := svc.HandleCallback(context.Background(), domain.CallbackEvent{
		EventID:    "evt_1",
		AccountID:  "acct_unknown",
		OccurredAt: time.Now().UTC(),
	})
	assert.True(t, domain.IsKind(err, domain.KindNotFound))
}
