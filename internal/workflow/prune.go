package workflow

import (
	"context"
	"fmt"

	"orbe/pkg/types"
)

// removalSets lists, per rollback target, the events that would misdescribe
// a case sitting in that status.
var removalSets = map[types.CaseStatus]types.EventFilter{
	types.CaseStatusAwaitingTransfer: {
		Kinds: []types.EventKind{
			types.EventKindTransferConfirmed,
			types.EventKindMemberProofSubmitted,
			types.EventKindAttachmentUploaded,
			types.EventKindStatusRollback,
			types.EventKindCompleted,
			types.EventKindRejected,
		},
	},
	types.CaseStatusAwaitingMemberProof: {
		Kinds: []types.EventKind{
			types.EventKindMemberProofSubmitted,
			types.EventKindStatusRollback,
			types.EventKindCompleted,
			types.EventKindRejected,
		},
		// payment proof uploads are still valid here
		UploadTypes: []types.AttachmentType{types.AttachmentTypePhotoEvidence},
	},
}

type timelinePruner struct {
	timeline *timelineGenerator
}

// prune deletes the events invalidated by an old -> c.Status rollback and
// appends a single status_rollback marker.
func (p *timelinePruner) prune(ctx context.Context, s Store, old types.CaseStatus, c *types.Case, cause types.AttachmentType) error {
	filter, ok := removalSets[c.Status]
	if !ok {
		return fmt.Errorf("no timeline removal set for rollback target %s", c.Status)
	}

	if _, err := s.DeleteEvents(ctx, c.ID, filter); err != nil {
		return fmt.Errorf("failed to prune timeline of case %s: %w", c.ID, err)
	}

	return p.timeline.rolledBack(ctx, s, old, c, cause)
}
