package domain

import (
	"errors"
	"fmt"
)

// ErrorKind is the closed set of failure kinds the core can return.
// Callers branch on the kind, never on error strings.
type ErrorKind string

const (
	KindAuthenticationRequired   ErrorKind = "authentication_required"
	KindNotWasher                ErrorKind = "not_washer"
	KindWasherNotApproved        ErrorKind = "washer_not_approved"
	KindOnboardingIncomplete     ErrorKind = "onboarding_incomplete"
	KindRequiredStepsIncomplete  ErrorKind = "required_steps_incomplete"
	KindInvalidStep              ErrorKind = "invalid_step"
	KindNotFound                 ErrorKind = "not_found"
	KindInvalidAmount            ErrorKind = "invalid_amount"
	KindDuplicateBooking         ErrorKind = "duplicate_booking"
	KindInvalidTransition        ErrorKind = "invalid_transition"
	KindPayoutsNotEnabled        ErrorKind = "payouts_not_enabled"
	KindBelowMinimum             ErrorKind = "below_minimum"
	KindInsufficientBalance      ErrorKind = "insufficient_balance"
	KindFeeExceedsAmount         ErrorKind = "fee_exceeds_amount"
	KindConcurrentModification   ErrorKind = "concurrent_modification"
	KindTransientProviderError   ErrorKind = "transient_provider_error"
	KindPermanentProviderError   ErrorKind = "permanent_provider_error"
)

// Error is a typed domain failure. Validation and business-rule failures are
// returned as values of this type; they are never retried automatically.
type Error struct {
	Kind ErrorKind
	// MissingSteps is set for onboarding-related access failures.
	MissingSteps []Step
	msg          string
	cause        error
}

func (e *Error) Error() string {
	if e.cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.msg, e.cause)
	}
	if e.msg == "" {
		return string(e.Kind)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.msg)
}

func (e *Error) Unwrap() error { return e.cause }

// Is lets errors.Is match two domain errors by kind.
func (e *Error) Is(target error) bool {
	var t *Error
	if !errors.As(target, &t) {
		return false
	}
	return e.Kind == t.Kind
}

// NewError builds a domain error of the given kind.
func NewError(kind ErrorKind, format string, args ...any) *Error {
	return &Error{Kind: kind, msg: fmt.Sprintf(format, args...)}
}

// WrapError attaches a kind to an underlying error.
func WrapError(kind ErrorKind, cause error, format string, args ...any) *Error {
	return &Error{Kind: kind, msg: fmt.Sprintf(format, args...), cause: cause}
}

// WithMissingSteps annotates the error with the steps still needed.
func (e *Error) WithMissingSteps(steps []Step) *Error {
	e.MissingSteps = steps
	return e
}

// KindOf extracts the ErrorKind from err, or "" if err is not a domain error.
func KindOf(err error) ErrorKind {
	var de *Error
	if errors.As(err, &de) {
		return de.Kind
	}
	return ""
}

// IsKind reports whether err is a domain error of the given kind.
func IsKind(err error, kind ErrorKind) bool {
	return KindOf(err) == kind
}

// IsTransient reports whether err is a retryable provider failure.
func IsTransient(err error) bool {
	return IsKind(err, KindTransientProviderError)
}
