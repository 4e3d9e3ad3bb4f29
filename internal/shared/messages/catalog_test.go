package messages

import (
	"WasherHub/internal/core/domain"
	"testing"

	"github.com/stretchr/testify/assert"
)

// allKinds mirrors the full error taxonomy; extending the taxonomy without a
// catalog entry fails this test.
var allKinds = []domain.ErrorKind{
	domain.KindAuthenticationRequired,
	domain.KindNotWasher,
	domain.KindWasherNotApproved,
	domain.KindOnboardingIncomplete,
	domain.KindRequiredStepsIncomplete,
	domain.KindInvalidStep,
	domain.KindNotFound,
	domain.KindInvalidAmount,
	domain.KindDuplicateBooking,
	domain.KindInvalidTransition,
	domain.KindPayoutsNotEnabled,
	domain.KindBelowMinimum,
	domain.KindInsufficientBalance,
	domain.KindFeeExceedsAmount,
	domain.KindConcurrentModification,
	domain.KindTransientProviderError,
	domain.KindPermanentProviderError,
}

func TestCatalog_CoversEveryKind(t *testing.T) {
	for _, kind := range allKinds {
		assert.True(t, Known(kind), "no catalog entry for %s", kind)
		assert.NotEmpty(t, ForKind(kind).Text, "empty text for %s", kind)
	}
}

func TestForKind_UnknownKindFallsBack(t *testing.T) {
	m := ForKind("no_such_kind")
	assert.Equal(t, "Something went wrong.", m.Text)
}

func TestForError_AppendsMissingSteps(t *testing.T) {
	err := domain.NewError(domain.KindOnboardingIncomplete, "two steps left").
		WithMissingSteps([]domain.Step{domain.StepBankAccount, domain.StepActivationFee})

	m := ForError(err)
	assert.Equal(t, ForKind(domain.KindOnboardingIncomplete).Text, m.Text)
	assert.Equal(t, "Complete: bank_account, activation_fee.", m.NextAction)
}

func TestForError_NonDomainError(t *testing.T) {
	m := ForError(assert.AnError)
	assert.Equal(t, "Something went wrong.", m.Text)
}
