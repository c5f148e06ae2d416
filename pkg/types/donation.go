package types

import (
	"time"

	"github.com/shopspring/decimal"
)

type DonationRequestStatus string

const (
	DonationRequestStatusPending  DonationRequestStatus = "pending_approval"
	DonationRequestStatusApproved DonationRequestStatus = "approved"
	DonationRequestStatusRejected DonationRequestStatus = "rejected"
)

type Urgency string

const (
	UrgencyLow      Urgency = "low"
	UrgencyMedium   Urgency = "medium"
	UrgencyHigh     Urgency = "high"
	UrgencyCritical Urgency = "critical"
)

func (u Urgency) IsValid() bool {
	switch u {
	case UrgencyLow, UrgencyMedium, UrgencyHigh, UrgencyCritical:
		return true
	}
	return false
}

// DonationRequest is a member's request for the organization to help
// someone. Approval turns it into a Case.
type DonationRequest struct {
	ID                   string                `db:"id" json:"id"`
	RequestedBy          string                `db:"requested_by" json:"requestedBy"`
	RecipientName        string                `db:"recipient_name" json:"recipientName"`
	RecipientDescription string                `db:"recipient_description" json:"recipientDescription"`
	Amount               decimal.Decimal       `db:"amount" json:"amount"`
	Reason               string                `db:"reason" json:"reason"`
	Urgency              Urgency               `db:"urgency" json:"urgency"`
	Status               DonationRequestStatus `db:"status" json:"status"`
	ReviewedBy           *string               `db:"reviewed_by" json:"reviewedBy,omitempty"`
	RejectionReason      *string               `db:"rejection_reason" json:"rejectionReason,omitempty"`
	ApprovedAt           *time.Time            `db:"approved_at" json:"approvedAt,omitempty"`
	CaseID               *string               `db:"case_id" json:"caseId,omitempty"`
	CreatedAt            time.Time             `db:"created_at" json:"createdAt"`
	UpdatedAt            time.Time             `db:"updated_at" json:"updatedAt"`
}
