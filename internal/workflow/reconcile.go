package workflow

import (
	"context"
	"fmt"
	"time"

	"orbe/internal/utils"
	"orbe/pkg/types"

	"github.com/sirupsen/logrus"
)

// DeletionResult reports what the reconciler did after an attachment was removed.
type DeletionResult struct {
	RolledBack       bool             `json:"rolledBack"`
	Status           types.CaseStatus `json:"status"`
	PreviousStatus   types.CaseStatus `json:"previousStatus,omitempty"`
	FlaggedForReview bool             `json:"flaggedForReview,omitempty"`
}

type evidence struct {
	paymentProof  bool
	photoEvidence bool
}

// descent is a single backward step together with the evidence type whose
// absence caused it.
type descent struct {
	to    types.CaseStatus
	cause types.AttachmentType
	clear []types.Milestone
}

// descentFor applies the per-status rollback rules. Only the current
// status's immediate precondition is reconsidered.
func descentFor(status types.CaseStatus, ev evidence) (descent, bool) {
	switch status {
	case types.CaseStatusPendingValidation:
		if !ev.paymentProof {
			return descent{
				to:    types.CaseStatusAwaitingTransfer,
				cause: types.AttachmentTypePaymentProof,
				clear: []types.Milestone{types.MilestoneTransferConfirmed, types.MilestoneMemberProof},
			}, true
		}
		if !ev.photoEvidence {
			return descent{
				to:    types.CaseStatusAwaitingMemberProof,
				cause: types.AttachmentTypePhotoEvidence,
				clear: []types.Milestone{types.MilestoneMemberProof},
			}, true
		}
	case types.CaseStatusAwaitingMemberProof:
		if !ev.paymentProof {
			return descent{
				to:    types.CaseStatusAwaitingTransfer,
				cause: types.AttachmentTypePaymentProof,
				clear: []types.Milestone{types.MilestoneTransferConfirmed},
			}, true
		}
	}

	return descent{}, false
}

func (d descent) apply(c *types.Case, now time.Time) *types.Case {
	next := *c
	for _, m := range d.clear {
		switch m {
		case types.MilestoneTransferConfirmed:
			next.TransferConfirmedAt = nil
		case types.MilestoneMemberProof:
			next.MemberProofSubmittedAt = nil
		}
	}
	next.Status = d.to
	next.UpdatedAt = now
	return &next
}

type reconciler struct {
	logger logrus.FieldLogger
	now    func() time.Time
	pruner *timelinePruner
}

// reconcile must run inside the atomic unit that committed the deletion.
func (r *reconciler) reconcile(ctx context.Context, s Store, caseID string) (DeletionResult, error) {
	c, err := s.Case(ctx, caseID)
	if err != nil {
		return DeletionResult{}, err
	}

	result := DeletionResult{Status: c.Status}

	// Completed cases are immutable regardless of evidence changes.
	if c.Status == types.CaseStatusCompleted {
		return result, nil
	}

	var ev evidence
	ev.paymentProof, err = s.HasAttachment(ctx, c.ID, types.AttachmentTypePaymentProof)
	if err != nil {
		return DeletionResult{}, fmt.Errorf("failed to check payment proof for case %s: %w", c.ID, err)
	}

	ev.photoEvidence, err = s.HasAttachment(ctx, c.ID, types.AttachmentTypePhotoEvidence)
	if err != nil {
		return DeletionResult{}, fmt.Errorf("failed to check photo evidence for case %s: %w", c.ID, err)
	}

	d, ok := descentFor(c.Status, ev)
	if !ok {
		return result, nil
	}

	if err := c.CheckMilestones(); err != nil {
		return r.flag(ctx, s, c, err)
	}

	next := d.apply(c, r.now())
	if err := next.CheckMilestones(); err != nil {
		return r.flag(ctx, s, c, err)
	}

	if err := s.UpdateCase(ctx, next); err != nil {
		return DeletionResult{}, fmt.Errorf("failed to persist rollback of case %s: %w", c.ID, err)
	}

	if err := r.pruner.prune(ctx, s, c.Status, next, d.cause); err != nil {
		return DeletionResult{}, err
	}

	r.logger.WithFields(logrus.Fields{
		"case_id":    c.ID,
		"old_status": c.Status,
		"new_status": next.Status,
		"cause":      d.cause,
	}).Info("case rolled back after evidence removal")

	return DeletionResult{RolledBack: true, Status: next.Status, PreviousStatus: c.Status}, nil
}

func (r *reconciler) flag(ctx context.Context, s Store, c *types.Case, cause error) (DeletionResult, error) {
	r.logger.WithError(cause).WithField("case_id", c.ID).Warn("evidence state cannot be repaired by a single rollback, flagging for review")

	err := s.FlagForReview(ctx, &types.ReviewFlag{
		ID:        utils.NanoID(),
		CaseID:    c.ID,
		Reason:    cause.Error(),
		CreatedAt: r.now(),
	})
	if err != nil {
		return DeletionResult{}, fmt.Errorf("failed to flag case %s for review: %w", c.ID, err)
	}

	return DeletionResult{Status: c.Status, FlaggedForReview: true}, nil
}
