package types

import (
	"errors"
	"fmt"
)

var (
	ErrCaseNotFound            = errors.New("case not found")
	ErrAttachmentNotFound      = errors.New("attachment not found")
	ErrDonationRequestNotFound = errors.New("donation request not found")

	// ErrDonationRequestReviewed is returned when approving or rejecting a
	// request that is no longer pending.
	ErrDonationRequestReviewed = errors.New("donation request was already reviewed")

	// ErrTerminalCase is returned for any mutation requested against a
	// case that already reached a terminal status.
	ErrTerminalCase = errors.New("case is in a terminal status and cannot be modified")

	// ErrInvalidEvidenceState is returned when the reconciler finds a case
	// whose status and evidence disagree in a way a single rollback step
	// cannot repair. The case is left unchanged and flagged for review.
	ErrInvalidEvidenceState = errors.New("case evidence is inconsistent with its status")

	ErrUnknownTransition = errors.New("unknown transition")
	ErrValidation        = errors.New("validation failed")
)

// GuardViolation reports a transition whose precondition did not hold.
// Reason is written for end users.
type GuardViolation struct {
	Transition string
	Status     CaseStatus
	Reason     string
}

func (e *GuardViolation) Error() string {
	return fmt.Sprintf("transition %s rejected in status %s: %s", e.Transition, e.Status, e.Reason)
}

func IsGuardViolation(err error) bool {
	var gv *GuardViolation
	return errors.As(err, &gv)
}
