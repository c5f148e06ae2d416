package workflow

import (
	"context"
	"fmt"
	"strings"
	"time"

	"orbe/internal/utils"
	"orbe/pkg/types"
)

type TransitionName string

const (
	TransitionSubmit            TransitionName = "submit"
	TransitionApprove           TransitionName = "approve"
	TransitionReject            TransitionName = "reject"
	TransitionSubmitBankInfo    TransitionName = "submit_bank_info"
	TransitionConfirmTransfer   TransitionName = "confirm_transfer"
	TransitionSubmitMemberProof TransitionName = "submit_member_proof"
	TransitionComplete          TransitionName = "complete"
)

// TransitionPayload carries the caller supplied fields a transition may need.
type TransitionPayload struct {
	Reason string `form:"reason" json:"reason"`

	types.BankInfo
}

// TransitionResult is what AttemptTransition reports back to the caller.
type TransitionResult struct {
	Applied        bool             `json:"applied"`
	Status         types.CaseStatus `json:"status"`
	RejectedReason string           `json:"rejectedReason,omitempty"`
}

type transitionInput struct {
	actor   string
	payload TransitionPayload
	now     time.Time
}

// guardFunc returns a non-empty reason when the precondition is unmet.
type guardFunc func(ctx context.Context, s Store, c *types.Case, in transitionInput) (string, error)

type applyFunc func(c *types.Case, in transitionInput)

type transition struct {
	name  TransitionName
	from  []types.CaseStatus
	to    types.CaseStatus
	guard guardFunc
	apply applyFunc
}

var transitions = map[TransitionName]transition{
	TransitionSubmit: {
		name: TransitionSubmit,
		from: []types.CaseStatus{types.CaseStatusDraft},
		to:   types.CaseStatusPendingApproval,
		apply: func(c *types.Case, _ transitionInput) {
			c.ClearMilestones()
		},
	},
	TransitionApprove: {
		name: TransitionApprove,
		from: []types.CaseStatus{types.CaseStatusPendingApproval},
		to:   types.CaseStatusAwaitingBankInfo,
		apply: func(c *types.Case, in transitionInput) {
			c.ReviewedBy = utils.StringPtr(in.actor)
			c.ApprovedAt = utils.TimePtr(in.now)
			c.RejectionReason = nil
		},
	},
	TransitionReject: {
		name:  TransitionReject,
		from:  []types.CaseStatus{types.CaseStatusPendingApproval, types.CaseStatusPendingValidation},
		to:    types.CaseStatusRejected,
		guard: requireReason,
		apply: func(c *types.Case, in transitionInput) {
			c.ReviewedBy = utils.StringPtr(in.actor)
			c.RejectionReason = utils.StringPtr(strings.TrimSpace(in.payload.Reason))
			c.ApprovedAt = nil
		},
	},
	TransitionSubmitBankInfo: {
		name:  TransitionSubmitBankInfo,
		from:  []types.CaseStatus{types.CaseStatusAwaitingBankInfo},
		to:    types.CaseStatusAwaitingTransfer,
		guard: requireBankInfo,
		apply: func(c *types.Case, in transitionInput) {
			c.BankInfo = normalizeBankInfo(in.payload.BankInfo)
			c.BankInfoSubmittedAt = utils.TimePtr(in.now)
		},
	},
	TransitionConfirmTransfer: {
		name:  TransitionConfirmTransfer,
		from:  []types.CaseStatus{types.CaseStatusAwaitingTransfer},
		to:    types.CaseStatusAwaitingMemberProof,
		guard: requireEvidence(types.AttachmentTypePaymentProof),
		apply: func(c *types.Case, in transitionInput) {
			c.TransferConfirmedAt = utils.TimePtr(in.now)
		},
	},
	TransitionSubmitMemberProof: {
		name: TransitionSubmitMemberProof,
		from: []types.CaseStatus{types.CaseStatusAwaitingMemberProof},
		to:   types.CaseStatusPendingValidation,
		apply: func(c *types.Case, in transitionInput) {
			c.MemberProofSubmittedAt = utils.TimePtr(in.now)
		},
	},
	TransitionComplete: {
		name:  TransitionComplete,
		from:  []types.CaseStatus{types.CaseStatusPendingValidation},
		to:    types.CaseStatusCompleted,
		guard: requireEvidence(types.AttachmentTypePaymentProof, types.AttachmentTypePhotoEvidence),
		apply: func(c *types.Case, in transitionInput) {
			c.ReviewedBy = utils.StringPtr(in.actor)
			c.CompletedAt = utils.TimePtr(in.now)
		},
	},
}

// Transitions lists the transition names in workflow order.
func Transitions() []TransitionName {
	return []TransitionName{
		TransitionSubmit,
		TransitionApprove,
		TransitionReject,
		TransitionSubmitBankInfo,
		TransitionConfirmTransfer,
		TransitionSubmitMemberProof,
		TransitionComplete,
	}
}

func (t transition) allowedFrom(status types.CaseStatus) bool {
	for _, from := range t.from {
		if from == status {
			return true
		}
	}
	return false
}

func (t transition) fromLabel() string {
	labels := make([]string, len(t.from))
	for i, from := range t.from {
		labels[i] = from.Label()
	}
	return strings.Join(labels, " or ")
}

// check evaluates the status precondition and the transition guard without
// touching the case.
func (t transition) check(ctx context.Context, s Store, c *types.Case, in transitionInput) (*types.GuardViolation, error) {
	if !t.allowedFrom(c.Status) {
		return &types.GuardViolation{
			Transition: string(t.name),
			Status:     c.Status,
			Reason:     fmt.Sprintf("case is %s; %s requires %s", c.Status.Label(), t.name, t.fromLabel()),
		}, nil
	}

	if t.guard == nil {
		return nil, nil
	}

	reason, err := t.guard(ctx, s, c, in)
	if err != nil {
		return nil, err
	}

	if reason != "" {
		return &types.GuardViolation{Transition: string(t.name), Status: c.Status, Reason: reason}, nil
	}

	return nil, nil
}

// next returns a copy of c with the transition applied. c is not modified.
func (t transition) next(c *types.Case, in transitionInput) *types.Case {
	next := *c
	if t.apply != nil {
		t.apply(&next, in)
	}
	next.Status = t.to
	next.UpdatedAt = in.now
	return &next
}

func requireReason(_ context.Context, _ Store, _ *types.Case, in transitionInput) (string, error) {
	if strings.TrimSpace(in.payload.Reason) == "" {
		return "a rejection reason is required", nil
	}
	return "", nil
}

func requireBankInfo(_ context.Context, _ Store, _ *types.Case, in transitionInput) (string, error) {
	info := in.payload.BankInfo
	if info.HasFullBankDetails() || info.HasPixKey() {
		return "", nil
	}
	return "provide the beneficiary name, tax id, bank and account, or a PIX key", nil
}

func requireEvidence(required ...types.AttachmentType) guardFunc {
	return func(ctx context.Context, s Store, c *types.Case, _ transitionInput) (string, error) {
		missing := make([]string, 0, len(required))
		for _, attachmentType := range required {
			ok, err := s.HasAttachment(ctx, c.ID, attachmentType)
			if err != nil {
				return "", fmt.Errorf("failed to check %s evidence for case %s: %w", attachmentType, c.ID, err)
			}

			if !ok {
				missing = append(missing, string(attachmentType))
			}
		}

		if len(missing) > 0 {
			return fmt.Sprintf("missing required attachment: %s", strings.Join(missing, ", ")), nil
		}

		return "", nil
	}
}

func normalizeBankInfo(in types.BankInfo) types.BankInfo {
	return types.BankInfo{
		BeneficiaryName:    utils.NonEmptyStringPtr(utils.PtrString(in.BeneficiaryName)),
		BeneficiaryTaxID:   utils.NonEmptyStringPtr(utils.PtrString(in.BeneficiaryTaxID)),
		BeneficiaryBank:    utils.NonEmptyStringPtr(utils.PtrString(in.BeneficiaryBank)),
		BeneficiaryAccount: utils.NonEmptyStringPtr(utils.PtrString(in.BeneficiaryAccount)),
		BeneficiaryPixKey:  utils.NonEmptyStringPtr(utils.PtrString(in.BeneficiaryPixKey)),
	}
}
