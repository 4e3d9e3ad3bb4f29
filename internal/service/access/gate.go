package access

import (
	"WasherHub/internal/core/domain"
	"WasherHub/internal/core/ports"
	"context"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// Decide is the pure access decision: given the identity snapshot, the
// washer's onboarding progress (nil means "not started") and the feature's
// policy, it evaluates the checks in order and short-circuits on the first
// failure.
func Decide(identity *domain.IdentitySnapshot, progress *domain.OnboardingProgress, policy domain.AccessPolicy) domain.AccessResult {
	if identity == nil {
		return domain.AccessResult{Reason: domain.KindAuthenticationRequired}
	}
	if identity.Role != domain.RoleWasher {
		return domain.AccessResult{Reason: domain.KindNotWasher}
	}
	if !identity.IsApproved {
		return domain.AccessResult{Reason: domain.KindWasherNotApproved}
	}

	if policy.RequireCompleteOnboarding {
		if progress == nil || !progress.IsComplete() {
			return domain.AccessResult{
				Reason:       domain.KindOnboardingIncomplete,
				MissingSteps: missingSteps(progress),
			}
		}
	} else if len(policy.AllowedSteps) > 0 {
		if !anyCompleted(progress, policy.AllowedSteps) {
			return domain.AccessResult{
				Reason:       domain.KindRequiredStepsIncomplete,
				MissingSteps: policy.AllowedSteps,
			}
		}
	}

	return domain.AccessResult{CanAccess: true}
}

func missingSteps(progress *domain.OnboardingProgress) []domain.Step {
	if progress == nil {
		steps := make([]domain.Step, len(domain.AllSteps))
		copy(steps, domain.AllSteps)
		return steps
	}
	return progress.MissingSteps()
}

func anyCompleted(progress *domain.OnboardingProgress, steps []domain.Step) bool {
	if progress == nil {
		return false
	}
	for _, s := range steps {
		if progress.HasStep(s) {
			return true
		}
	}
	return false
}

// Gate fetches the decision inputs and applies Decide. The decision itself
// is never cached; it is cheap and re-evaluated on every feature request.
type Gate struct {
	identity ports.IdentityPort
	repo     ports.OnboardingRepository
	log      zerolog.Logger
}

// NewGate creates the access control gate.
func NewGate(identity ports.IdentityPort, repo ports.OnboardingRepository, baseLogger *zerolog.Logger) *Gate {
	return &Gate{
		identity: identity,
		repo:     repo,
		log:      baseLogger.With().Str("component", "access_gate").Logger(),
	}
}

// CheckAccess evaluates whether the washer may use a feature guarded by the
// given policy.
func (g *Gate) CheckAccess(ctx context.Context, washerID uuid.UUID, policy domain.AccessPolicy) (domain.AccessResult, error) {
	identity, err := g.identity.GetIdentity(ctx, washerID)
	if err != nil {
		return domain.AccessResult{}, err
	}

	var progress *domain.OnboardingProgress
	if identity != nil {
		progress, err = g.repo.GetByWasherID(ctx, washerID)
		if err != nil {
			return domain.AccessResult{}, err
		}
	}

	result := Decide(identity, progress, policy)
	if !result.CanAccess {
		g.log.Debug().
			Str("washer_id", washerID.String()).
			Str("policy", policy.Name).
			Str("reason", string(result.Reason)).
			Msg("Access denied")
	}
	return result, nil
}
