package domain

import (
	"time"

	"github.com/google/uuid"
)

// Step is one of the four required washer setup stages.
type Step int

const (
	StepProfileSetup   Step = 1 // service area, pricing, profile details
	StepVerification   Step = 2 // external KYC verification
	StepBankAccount    Step = 3 // bank account connection for payouts
	StepActivationFee  Step = 4 // one-time activation fee payment
	onboardingStepCount     = 4
)

// AllSteps lists every onboarding step in ascending order.
var AllSteps = []Step{StepProfileSetup, StepVerification, StepBankAccount, StepActivationFee}

// Valid reports whether s is a real onboarding step.
func (s Step) Valid() bool {
	return s >= StepProfileSetup && s <= StepActivationFee
}

func (s Step) String() string {
	switch s {
	case StepProfileSetup:
		return "profile_setup"
	case StepVerification:
		return "identity_verification"
	case StepBankAccount:
		return "bank_account"
	case StepActivationFee:
		return "activation_fee"
	default:
		return "unknown"
	}
}

// OnboardingProgress tracks which setup steps a washer has completed.
// One row per washer; created on the first onboarding action and never deleted.
type OnboardingProgress struct {
	WasherID    uuid.UUID
	StepTimes   map[Step]time.Time // completion timestamp per completed step
	StartedAt   time.Time
	CompletedAt *time.Time // set once, when the fourth step lands
	UpdatedAt   time.Time
}

// NewOnboardingProgress creates an empty progress record for a washer.
func NewOnboardingProgress(washerID uuid.UUID, now time.Time) *OnboardingProgress {
	return &OnboardingProgress{
		WasherID:  washerID,
		StepTimes: make(map[Step]time.Time),
		StartedAt: now,
		UpdatedAt: now,
	}
}

// HasStep reports whether the given step has been completed.
func (p *OnboardingProgress) HasStep(s Step) bool {
	_, ok := p.StepTimes[s]
	return ok
}

// IsComplete is true once all four steps are present. It never reverts:
// steps are only ever added, never removed.
func (p *OnboardingProgress) IsComplete() bool {
	return len(p.StepTimes) == onboardingStepCount
}

// CompletedSteps returns the completed step numbers in ascending order.
func (p *OnboardingProgress) CompletedSteps() []Step {
	var steps []Step
	for _, s := range AllSteps {
		if p.HasStep(s) {
			steps = append(steps, s)
		}
	}
	return steps
}

// MissingSteps returns the steps not yet completed, in ascending order.
func (p *OnboardingProgress) MissingSteps() []Step {
	var steps []Step
	for _, s := range AllSteps {
		if !p.HasStep(s) {
			steps = append(steps, s)
		}
	}
	return steps
}

// StepOutcome classifies a step event log entry.
type StepOutcome string

const (
	StepOutcomeCompleted StepOutcome = "completed"
	StepOutcomeFailed    StepOutcome = "failed"
)

// StepEvent is an append-only log entry recorded for every step completion
// and for failures encountered while working on a step (e.g. a verification
// sync that could not reach the provider). The analytics aggregator reads
// these to build funnel and error metrics.
type StepEvent struct {
	ID         uuid.UUID
	WasherID   uuid.UUID
	Step       Step
	Outcome    StepOutcome
	Detail     *string
	OccurredAt time.Time
}
