package types

import "time"

type EventKind string

const (
	EventKindCaseCreated          EventKind = "case_created"
	EventKindSubmitted            EventKind = "submitted_for_approval"
	EventKindApproved             EventKind = "approved"
	EventKindRejected             EventKind = "rejected"
	EventKindBankInfoSubmitted    EventKind = "bank_info_submitted"
	EventKindTransferConfirmed    EventKind = "transfer_confirmed"
	EventKindMemberProofSubmitted EventKind = "member_proof_submitted"
	EventKindCompleted            EventKind = "completed"
	EventKindAttachmentUploaded   EventKind = "attachment_uploaded"
	EventKindStatusRollback       EventKind = "status_rollback"
	EventKindStatusChanged        EventKind = "status_changed"
)

// Metadata keys shared between the generator, the pruner and the store.
const (
	MetaAttachmentType  = "attachment_type"
	MetaFileName        = "file_name"
	MetaFileSize        = "file_size"
	MetaMimeType        = "mime_type"
	MetaOldStatus       = "old_status"
	MetaNewStatus       = "new_status"
	MetaStatus          = "status"
	MetaAmount          = "amount"
	MetaRejectionReason = "rejection_reason"
	MetaRollbackReason  = "rollback_reason"
	MetaBeneficiaryName = "beneficiary_name"
	MetaBeneficiaryBank = "beneficiary_bank"
	MetaBeneficiaryPix  = "beneficiary_pix_key"
)

// TimelineEvent is one append-only entry in a case's audit history.
// A nil ActorID marks a system-originated event.
type TimelineEvent struct {
	ID          string         `db:"id" json:"id"`
	CaseID      string         `db:"case_id" json:"caseId"`
	Kind        EventKind      `db:"kind" json:"kind"`
	Description string         `db:"description" json:"description"`
	ActorID     *string        `db:"actor_id" json:"actorId,omitempty"`
	Metadata    map[string]any `db:"metadata" json:"metadata"`
	CreatedAt   time.Time      `db:"created_at" json:"createdAt"`
}

// EventFilter selects timeline events of a case for deletion. An event
// matches when its kind is in Kinds, or when it is an attachment upload
// tagged with one of UploadTypes.
type EventFilter struct {
	Kinds       []EventKind
	UploadTypes []AttachmentType
}

func (f EventFilter) Matches(e *TimelineEvent) bool {
	for _, k := range f.Kinds {
		if e.Kind == k {
			return true
		}
	}

	if e.Kind != EventKindAttachmentUploaded {
		return false
	}

	tagged, _ := e.Metadata[MetaAttachmentType].(string)
	for _, t := range f.UploadTypes {
		if tagged == string(t) {
			return true
		}
	}

	return false
}

// ReviewFlag marks a case for manual review.
type ReviewFlag struct {
	ID        string    `db:"id" json:"id"`
	CaseID    string    `db:"case_id" json:"caseId"`
	Reason    string    `db:"reason" json:"reason"`
	CreatedAt time.Time `db:"created_at" json:"createdAt"`
}
