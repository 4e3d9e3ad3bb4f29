package access

import (
	"WasherHub/internal/adapters/memory"
	"WasherHub/internal/core/domain"
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

// --- Mocks ---

// MockIdentityPort
type MockIdentityPort struct {
	mock.Mock
}

func (m *MockIdentityPort) GetIdentity(ctx context.Context, washerID uuid.UUID) (*domain.IdentitySnapshot, error) {
	args := m.Called(ctx, washerID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.IdentitySnapshot), args.Error(1)
}

func progressWith(steps ...domain.Step) *domain.OnboardingProgress {
	now := time.Now().UTC()
	p := domain.NewOnboardingProgress(uuid.New(), now)
	for _, s := range steps {
		p.StepTimes[s] = now
	}
	return p
}

func approvedWasher() *domain.IdentitySnapshot {
	return &domain.IdentitySnapshot{WasherID: uuid.New(), Role: domain.RoleWasher, IsApproved: true}
}

func TestDecide(t *testing.T) {
	testCases := []struct {
		name        string
		identity    *domain.IdentitySnapshot
		progress    *domain.OnboardingProgress
		policy      domain.AccessPolicy
		wantAccess  bool
		wantReason  domain.ErrorKind
		wantMissing []domain.Step
	}{
		{
			name:       "no identity",
			identity:   nil,
			policy:     domain.AlwaysAvailablePolicy(),
			wantReason: domain.KindAuthenticationRequired,
		},
		{
			name:       "customer role",
			identity:   &domain.IdentitySnapshot{Role: domain.RoleCustomer, IsApproved: true},
			policy:     domain.AlwaysAvailablePolicy(),
			wantReason: domain.KindNotWasher,
		},
		{
			name:       "unapproved washer",
			identity:   &domain.IdentitySnapshot{Role: domain.RoleWasher},
			policy:     domain.AlwaysAvailablePolicy(),
			wantReason: domain.KindWasherNotApproved,
		},
		{
			name:        "full feature with two steps done",
			identity:    approvedWasher(),
			progress:    progressWith(domain.StepProfileSetup, domain.StepVerification),
			policy:      domain.FullFeaturePolicy(),
			wantReason:  domain.KindOnboardingIncomplete,
			wantMissing: []domain.Step{domain.StepBankAccount, domain.StepActivationFee},
		},
		{
			name:        "full feature never started",
			identity:    approvedWasher(),
			progress:    nil,
			policy:      domain.FullFeaturePolicy(),
			wantReason:  domain.KindOnboardingIncomplete,
			wantMissing: domain.AllSteps,
		},
		{
			name:       "full feature all steps done",
			identity:   approvedWasher(),
			progress:   progressWith(domain.AllSteps...),
			policy:     domain.FullFeaturePolicy(),
			wantAccess: true,
		},
		{
			name:       "always available ignores onboarding",
			identity:   approvedWasher(),
			progress:   nil,
			policy:     domain.AlwaysAvailablePolicy(),
			wantAccess: true,
		},
		{
			name:       "any-of satisfied by one step",
			identity:   approvedWasher(),
			progress:   progressWith(domain.StepProfileSetup),
			policy:     domain.AnyOfPolicy("browse", domain.StepProfileSetup, domain.StepVerification),
			wantAccess: true,
		},
		{
			name:        "any-of with none of the listed steps",
			identity:    approvedWasher(),
			progress:    progressWith(domain.StepBankAccount),
			policy:      domain.AnyOfPolicy("browse", domain.StepProfileSetup, domain.StepVerification),
			wantReason:  domain.KindRequiredStepsIncomplete,
			wantMissing: []domain.Step{domain.StepProfileSetup, domain.StepVerification},
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			result := Decide(tc.identity, tc.progress, tc.policy)

			assert.Equal(t, tc.wantAccess, result.CanAccess)
			assert.Equal(t, tc.wantReason, result.Reason)
			assert.Equal(t, tc.wantMissing, result.MissingSteps)
		})
	}
}

func TestCheckAccess_FetchesIdentityAndProgress(t *testing.T) {
	nopLogger := zerolog.Nop()
	ctx := context.Background()
	washerID := uuid.New()

	store := memory.NewOnboardingStore()
	progress := progressWith(domain.StepProfileSetup, domain.StepVerification)
	progress.WasherID = washerID
	require.NoError(t, store.Create(ctx, progress))

	identity := new(MockIdentityPort)
	identity.On("GetIdentity", ctx, washerID).Return(
		&domain.IdentitySnapshot{WasherID: washerID, Role: domain.RoleWasher, IsApproved: true}, nil)

	gate := NewGate(identity, store, &nopLogger)

	result, err := gate.CheckAccess(ctx, washerID, domain.FullFeaturePolicy())
	require.NoError(t, err)
	assert.False(t, result.CanAccess)
	assert.Equal(t, domain.KindOnboardingIncomplete, result.Reason)
	assert.Equal(t, []domain.Step{domain.StepBankAccount, domain.StepActivationFee}, result.MissingSteps)
	identity.AssertExpectations(t)
}

func TestCheckAccess_UnknownIdentitySkipsProgressLookup(t *testing.T) {
	nopLogger := zerolog.Nop()
	ctx := context.Background()
	washerID := uuid.New()

	identity := new(MockIdentityPort)
	identity.On("GetIdentity", ctx, washerID).Return(nil, nil)

	gate := NewGate(identity, memory.NewOnboardingStore(), &nopLogger)

	result, err := gate.CheckAccess(ctx, washerID, domain.FullFeaturePolicy())
	require.NoError(t, err)
	assert.False(t, result.CanAccess)
	assert.Equal(t, domain.KindAuthenticationRequired, result.Reason)
}
