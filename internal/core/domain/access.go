package domain

// AccessPolicy declares what a feature demands from a washer's onboarding
// progress before it becomes usable.
type AccessPolicy struct {
	Name string
	// RequireCompleteOnboarding demands all four steps.
	RequireCompleteOnboarding bool
	// AllowedSteps, when non-empty, grants access if at least one of the
	// listed steps has been completed.
	AllowedSteps []Step
}

// FullFeaturePolicy gates bookings and payouts: every step is required.
func FullFeaturePolicy() AccessPolicy {
	return AccessPolicy{Name: "full_feature", RequireCompleteOnboarding: true}
}

// AlwaysAvailablePolicy gates nothing beyond role and approval (settings).
func AlwaysAvailablePolicy() AccessPolicy {
	return AccessPolicy{Name: "always_available"}
}

// AnyOfPolicy grants access once any one of the given steps is done.
func AnyOfPolicy(name string, steps ...Step) AccessPolicy {
	return AccessPolicy{Name: name, AllowedSteps: steps}
}

// AccessResult is the outcome of an access check. Reason is empty when
// access is granted; MissingSteps is populated for onboarding failures.
type AccessResult struct {
	CanAccess    bool
	Reason       ErrorKind
	MissingSteps []Step
}
