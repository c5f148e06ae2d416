package workflow

import (
	"context"
	"fmt"
	"time"

	"orbe/internal/utils"
	"orbe/pkg/types"
)

type attribution int

const (
	attributeSystem attribution = iota
	attributeCreator
	attributeReviewer
	attributeActor
)

type statusPair struct {
	from types.CaseStatus
	to   types.CaseStatus
}

type eventTemplate struct {
	kind     types.EventKind
	describe func(c *types.Case) string
	actor    attribution
	metadata func(c *types.Case) map[string]any
}

func fixed(description string) func(*types.Case) string {
	return func(*types.Case) string { return description }
}

func reviewerName(c *types.Case) string {
	if c.ReviewedBy == nil {
		return "an administrator"
	}
	return *c.ReviewedBy
}

func rejectionMetadata(c *types.Case) map[string]any {
	return map[string]any{types.MetaRejectionReason: utils.PtrString(c.RejectionReason)}
}

// transitionEvents maps every forward status change to the event that
// records it. Pairs missing here are recorded as status_changed.
var transitionEvents = map[statusPair]eventTemplate{
	{types.CaseStatusDraft, types.CaseStatusPendingApproval}: {
		kind:     types.EventKindSubmitted,
		describe: fixed("Case submitted for approval"),
		actor:    attributeCreator,
	},
	{types.CaseStatusPendingApproval, types.CaseStatusAwaitingBankInfo}: {
		kind: types.EventKindApproved,
		describe: func(c *types.Case) string {
			return fmt.Sprintf("Case approved by %s", reviewerName(c))
		},
		actor: attributeReviewer,
	},
	{types.CaseStatusPendingApproval, types.CaseStatusRejected}: {
		kind: types.EventKindRejected,
		describe: func(c *types.Case) string {
			return fmt.Sprintf("Case rejected: %s", utils.PtrString(c.RejectionReason))
		},
		actor:    attributeReviewer,
		metadata: rejectionMetadata,
	},
	{types.CaseStatusAwaitingBankInfo, types.CaseStatusAwaitingTransfer}: {
		kind:     types.EventKindBankInfoSubmitted,
		describe: fixed("Beneficiary bank information submitted"),
		actor:    attributeCreator,
		metadata: func(c *types.Case) map[string]any {
			return map[string]any{
				types.MetaBeneficiaryName: utils.PtrString(c.BeneficiaryName),
				types.MetaBeneficiaryBank: utils.PtrString(c.BeneficiaryBank),
				types.MetaBeneficiaryPix:  utils.PtrString(c.BeneficiaryPixKey),
			}
		},
	},
	{types.CaseStatusAwaitingTransfer, types.CaseStatusAwaitingMemberProof}: {
		kind:     types.EventKindTransferConfirmed,
		describe: fixed("Transfer to the member confirmed"),
		actor:    attributeActor,
	},
	{types.CaseStatusAwaitingMemberProof, types.CaseStatusPendingValidation}: {
		kind:     types.EventKindMemberProofSubmitted,
		describe: fixed("Member submitted proof of delivery to the beneficiary"),
		actor:    attributeCreator,
	},
	{types.CaseStatusPendingValidation, types.CaseStatusCompleted}: {
		kind: types.EventKindCompleted,
		describe: func(c *types.Case) string {
			return fmt.Sprintf("Case validated and completed by %s", reviewerName(c))
		},
		actor: attributeReviewer,
	},
	{types.CaseStatusPendingValidation, types.CaseStatusRejected}: {
		kind: types.EventKindRejected,
		describe: func(c *types.Case) string {
			return fmt.Sprintf("Proof rejected: %s", utils.PtrString(c.RejectionReason))
		},
		actor:    attributeReviewer,
		metadata: rejectionMetadata,
	},
}

// timelineGenerator appends audit events. It never reads prior events.
type timelineGenerator struct {
	now func() time.Time
}

func (g *timelineGenerator) event(c *types.Case, kind types.EventKind, description string, actor *string, metadata map[string]any) *types.TimelineEvent {
	if metadata == nil {
		metadata = map[string]any{}
	}

	return &types.TimelineEvent{
		ID:          utils.NanoID(),
		CaseID:      c.ID,
		Kind:        kind,
		Description: description,
		ActorID:     actor,
		Metadata:    metadata,
		CreatedAt:   g.now(),
	}
}

func (g *timelineGenerator) append(ctx context.Context, s Store, event *types.TimelineEvent) error {
	if err := s.AppendEvent(ctx, event); err != nil {
		return fmt.Errorf("failed to append %s event for case %s: %w", event.Kind, event.CaseID, err)
	}
	return nil
}

// statusEvent builds the event for an old -> c.Status change.
func (g *timelineGenerator) statusEvent(old types.CaseStatus, c *types.Case, actor string) *types.TimelineEvent {
	tmpl, ok := transitionEvents[statusPair{old, c.Status}]
	if !ok {
		return g.event(c, types.EventKindStatusChanged,
			fmt.Sprintf("Status changed from %q to %q", old, c.Status),
			nil,
			map[string]any{
				types.MetaOldStatus: string(old),
				types.MetaNewStatus: string(c.Status),
			},
		)
	}

	var metadata map[string]any
	if tmpl.metadata != nil {
		metadata = tmpl.metadata(c)
	}

	return g.event(c, tmpl.kind, tmpl.describe(c), attribute(tmpl.actor, c, actor), metadata)
}

func attribute(a attribution, c *types.Case, actor string) *string {
	switch a {
	case attributeCreator:
		return utils.StringPtr(c.CreatedBy)
	case attributeReviewer:
		return c.ReviewedBy
	case attributeActor:
		return utils.NonEmptyStringPtr(actor)
	}
	return nil
}

func (g *timelineGenerator) statusChanged(ctx context.Context, s Store, old types.CaseStatus, c *types.Case, actor string) error {
	return g.append(ctx, s, g.statusEvent(old, c, actor))
}

func (g *timelineGenerator) caseCreated(ctx context.Context, s Store, c *types.Case) error {
	return g.append(ctx, s, g.event(c, types.EventKindCaseCreated,
		fmt.Sprintf("Case created: %s", c.Title),
		utils.StringPtr(c.CreatedBy),
		map[string]any{
			types.MetaStatus: string(c.Status),
			types.MetaAmount: c.Amount.StringFixed(2),
		},
	))
}

func (g *timelineGenerator) attachmentUploaded(ctx context.Context, s Store, c *types.Case, a *types.Attachment) error {
	return g.append(ctx, s, g.event(c, types.EventKindAttachmentUploaded,
		fmt.Sprintf("File attached: %s", a.FileName),
		utils.NonEmptyStringPtr(a.UploadedBy),
		map[string]any{
			types.MetaAttachmentType: string(a.Type),
			types.MetaFileName:       a.FileName,
			types.MetaFileSize:       a.FileSizeBytes,
			types.MetaMimeType:       a.MimeType,
		},
	))
}

func (g *timelineGenerator) rolledBack(ctx context.Context, s Store, old types.CaseStatus, c *types.Case, cause types.AttachmentType) error {
	return g.append(ctx, s, g.event(c, types.EventKindStatusRollback,
		fmt.Sprintf("Status reverted to %q after %s evidence was removed", c.Status.Label(), cause),
		nil,
		map[string]any{
			types.MetaRollbackReason: string(cause) + "_deleted",
			types.MetaOldStatus:      string(old),
			types.MetaNewStatus:      string(c.Status),
		},
	))
}
