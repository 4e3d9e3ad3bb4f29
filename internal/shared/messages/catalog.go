package messages

import (
	"WasherHub/internal/core/domain"
	"errors"
	"fmt"
	"strings"
)

// Message is the stable user-facing text for one failure kind, plus the
// suggested next action where one exists. Pure lookup data, no logic.
type Message struct {
	Text       string
	NextAction string
}

var catalog = map[domain.ErrorKind]Message{
	domain.KindAuthenticationRequired: {
		Text:       "You need to be signed in to do that.",
		NextAction: "Sign in and try again.",
	},
	domain.KindNotWasher: {
		Text:       "This feature is only available to washers.",
		NextAction: "Apply to become a washer from your account page.",
	},
	domain.KindWasherNotApproved: {
		Text:       "Your washer application has not been approved yet.",
		NextAction: "We will email you as soon as a decision is made.",
	},
	domain.KindOnboardingIncomplete: {
		Text:       "Finish setting up your washer account to unlock this feature.",
		NextAction: "Complete the remaining onboarding steps.",
	},
	domain.KindRequiredStepsIncomplete: {
		Text:       "A setup step required for this feature is still missing.",
		NextAction: "Complete the required onboarding step.",
	},
	domain.KindInvalidStep: {
		Text: "That onboarding step does not exist.",
	},
	domain.KindNotFound: {
		Text: "We could not find what you were looking for.",
	},
	domain.KindInvalidAmount: {
		Text:       "The amount must be greater than zero.",
		NextAction: "Enter a positive amount.",
	},
	domain.KindDuplicateBooking: {
		Text: "Earnings for this booking have already been recorded.",
	},
	domain.KindInvalidTransition: {
		Text: "This record is not in a state that allows that change.",
	},
	domain.KindPayoutsNotEnabled: {
		Text:       "Payouts are not enabled on your account yet.",
		NextAction: "Finish verifying your payment account, then try again.",
	},
	domain.KindBelowMinimum: {
		Text:       "The requested amount is below the minimum payout.",
		NextAction: "Request at least the minimum payout amount.",
	},
	domain.KindInsufficientBalance: {
		Text:       "You do not have enough available earnings for that payout.",
		NextAction: "Check your available balance and request a smaller amount.",
	},
	domain.KindFeeExceedsAmount: {
		Text:       "After the withdrawal fee, nothing would be left to pay out.",
		NextAction: "Request an amount larger than the withdrawal fee.",
	},
	domain.KindConcurrentModification: {
		Text:       "Your earnings changed while we were processing the request.",
		NextAction: "Please try the payout again.",
	},
	domain.KindTransientProviderError: {
		Text:       "Our payment provider is temporarily unavailable.",
		NextAction: "Please try again in a few minutes.",
	},
	domain.KindPermanentProviderError: {
		Text: "Our payment provider rejected the request.",
	},
}

var unknown = Message{Text: "Something went wrong."}

// ForKind returns the catalog entry for a failure kind.
func ForKind(kind domain.ErrorKind) Message {
	if m, ok := catalog[kind]; ok {
		return m
	}
	return unknown
}

// ForError resolves err to its catalog entry, appending the concrete missing
// steps for onboarding failures ("complete identity_verification, bank_account").
func ForError(err error) Message {
	kind := domain.KindOf(err)
	m := ForKind(kind)

	var de *domain.Error
	if errors.As(err, &de) && len(de.MissingSteps) > 0 {
		names := make([]string, len(de.MissingSteps))
		for i, s := range de.MissingSteps {
			names[i] = s.String()
		}
		m.NextAction = fmt.Sprintf("Complete: %s.", strings.Join(names, ", "))
	}
	return m
}

// Known reports whether the catalog covers the kind; the catalog test uses
// this to keep the table in lockstep with the error taxonomy.
func Known(kind domain.ErrorKind) bool {
	_, ok := catalog[kind]
	return ok
}
