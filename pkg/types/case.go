package types

import (
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

type CaseStatus string

const (
	CaseStatusDraft               CaseStatus = "draft"
	CaseStatusPendingApproval     CaseStatus = "pending_approval"
	CaseStatusAwaitingBankInfo    CaseStatus = "awaiting_bank_info"
	CaseStatusAwaitingTransfer    CaseStatus = "awaiting_transfer"
	CaseStatusAwaitingMemberProof CaseStatus = "awaiting_member_proof"
	CaseStatusPendingValidation   CaseStatus = "pending_validation"
	CaseStatusCompleted           CaseStatus = "completed"
	CaseStatusRejected            CaseStatus = "rejected"
)

var AllCaseStatuses = []CaseStatus{
	CaseStatusDraft,
	CaseStatusPendingApproval,
	CaseStatusAwaitingBankInfo,
	CaseStatusAwaitingTransfer,
	CaseStatusAwaitingMemberProof,
	CaseStatusPendingValidation,
	CaseStatusCompleted,
	CaseStatusRejected,
}

func (s CaseStatus) IsValid() bool {
	for _, status := range AllCaseStatuses {
		if s == status {
			return true
		}
	}
	return false
}

// IsTerminal reports whether no further transition may leave s.
func (s CaseStatus) IsTerminal() bool {
	return s == CaseStatusCompleted || s == CaseStatusRejected
}

// Label is the human readable name used in timeline descriptions.
func (s CaseStatus) Label() string {
	switch s {
	case CaseStatusDraft:
		return "Draft"
	case CaseStatusPendingApproval:
		return "Pending Approval"
	case CaseStatusAwaitingBankInfo:
		return "Awaiting Bank Info"
	case CaseStatusAwaitingTransfer:
		return "Awaiting Transfer"
	case CaseStatusAwaitingMemberProof:
		return "Awaiting Member Proof"
	case CaseStatusPendingValidation:
		return "Pending Validation"
	case CaseStatusCompleted:
		return "Completed"
	case CaseStatusRejected:
		return "Rejected"
	}
	return string(s)
}

// CaseFilter narrows a case listing. Empty fields match every case.
type CaseFilter struct {
	Status    CaseStatus
	CreatedBy string
}

func (f CaseFilter) Matches(c *Case) bool {
	if f.Status != "" && c.Status != f.Status {
		return false
	}
	if f.CreatedBy != "" && c.CreatedBy != f.CreatedBy {
		return false
	}
	return true
}

// BankInfo holds the beneficiary fields captured by the bank info step.
type BankInfo struct {
	BeneficiaryName    *string `db:"beneficiary_name" form:"beneficiary_name" json:"beneficiaryName,omitempty"`
	BeneficiaryTaxID   *string `db:"beneficiary_tax_id" form:"beneficiary_tax_id" json:"beneficiaryTaxId,omitempty"`
	BeneficiaryBank    *string `db:"beneficiary_bank" form:"beneficiary_bank" json:"beneficiaryBank,omitempty"`
	BeneficiaryAccount *string `db:"beneficiary_account" form:"beneficiary_account" json:"beneficiaryAccount,omitempty"`
	BeneficiaryPixKey  *string `db:"beneficiary_pix_key" form:"beneficiary_pix_key" json:"beneficiaryPixKey,omitempty"`
}

func present(s *string) bool {
	return s != nil && strings.TrimSpace(*s) != ""
}

// HasFullBankDetails reports whether name, tax id, bank and account are all set.
func (b BankInfo) HasFullBankDetails() bool {
	return present(b.BeneficiaryName) &&
		present(b.BeneficiaryTaxID) &&
		present(b.BeneficiaryBank) &&
		present(b.BeneficiaryAccount)
}

func (b BankInfo) HasPixKey() bool {
	return present(b.BeneficiaryPixKey)
}

// Case is a single assistance request tracked through its disbursement lifecycle.
type Case struct {
	ID                string          `db:"id" json:"id"`
	Title             string          `db:"title" json:"title"`
	Description       string          `db:"description" json:"description"`
	Amount            decimal.Decimal `db:"amount" json:"amount"`
	Status            CaseStatus      `db:"status" json:"status"`
	CreatedBy         string          `db:"created_by" json:"createdBy"`
	ReviewedBy        *string         `db:"reviewed_by" json:"reviewedBy,omitempty"`
	DonationRequestID *string         `db:"donation_request_id" json:"donationRequestId,omitempty"`

	BankInfo

	ApprovedAt             *time.Time `db:"approved_at" json:"approvedAt,omitempty"`
	BankInfoSubmittedAt    *time.Time `db:"bank_info_submitted_at" json:"bankInfoSubmittedAt,omitempty"`
	TransferConfirmedAt    *time.Time `db:"transfer_confirmed_at" json:"transferConfirmedAt,omitempty"`
	MemberProofSubmittedAt *time.Time `db:"member_proof_submitted_at" json:"memberProofSubmittedAt,omitempty"`
	CompletedAt            *time.Time `db:"completed_at" json:"completedAt,omitempty"`

	RejectionReason *string   `db:"rejection_reason" json:"rejectionReason,omitempty"`
	CreatedAt       time.Time `db:"created_at" json:"createdAt"`
	UpdatedAt       time.Time `db:"updated_at" json:"updatedAt"`
}

// Milestone names a case timestamp whose presence is governed by status.
type Milestone string

const (
	MilestoneApproved          Milestone = "approved_at"
	MilestoneBankInfoSubmitted Milestone = "bank_info_submitted_at"
	MilestoneTransferConfirmed Milestone = "transfer_confirmed_at"
	MilestoneMemberProof       Milestone = "member_proof_submitted_at"
	MilestoneCompleted         Milestone = "completed_at"
)

var allMilestones = []Milestone{
	MilestoneApproved,
	MilestoneBankInfoSubmitted,
	MilestoneTransferConfirmed,
	MilestoneMemberProof,
	MilestoneCompleted,
}

type milestoneRule struct {
	required []Milestone
	optional []Milestone
}

var milestoneRules = map[CaseStatus]milestoneRule{
	CaseStatusDraft:            {},
	CaseStatusPendingApproval:  {},
	CaseStatusAwaitingBankInfo: {required: []Milestone{MilestoneApproved}},
	CaseStatusAwaitingTransfer: {required: []Milestone{MilestoneApproved, MilestoneBankInfoSubmitted}},
	CaseStatusAwaitingMemberProof: {required: []Milestone{
		MilestoneApproved, MilestoneBankInfoSubmitted, MilestoneTransferConfirmed,
	}},
	CaseStatusPendingValidation: {required: []Milestone{
		MilestoneApproved, MilestoneBankInfoSubmitted, MilestoneTransferConfirmed, MilestoneMemberProof,
	}},
	CaseStatusCompleted: {required: allMilestones},
	// A case rejected at validation keeps its execution milestones.
	CaseStatusRejected: {optional: []Milestone{
		MilestoneBankInfoSubmitted, MilestoneTransferConfirmed, MilestoneMemberProof,
	}},
}

func (c *Case) milestone(m Milestone) *time.Time {
	switch m {
	case MilestoneApproved:
		return c.ApprovedAt
	case MilestoneBankInfoSubmitted:
		return c.BankInfoSubmittedAt
	case MilestoneTransferConfirmed:
		return c.TransferConfirmedAt
	case MilestoneMemberProof:
		return c.MemberProofSubmittedAt
	case MilestoneCompleted:
		return c.CompletedAt
	}
	return nil
}

// CheckMilestones verifies that the set milestone timestamps are exactly
// those the current status permits.
func (c *Case) CheckMilestones() error {
	rule, ok := milestoneRules[c.Status]
	if !ok {
		return fmt.Errorf("case %s has unknown status %q", c.ID, c.Status)
	}

	allowed := make(map[Milestone]bool, len(rule.required)+len(rule.optional))
	for _, m := range rule.required {
		allowed[m] = true
		if c.milestone(m) == nil {
			return fmt.Errorf("case %s in %s is missing %s", c.ID, c.Status, m)
		}
	}
	for _, m := range rule.optional {
		allowed[m] = true
	}

	for _, m := range allMilestones {
		if !allowed[m] && c.milestone(m) != nil {
			return fmt.Errorf("case %s in %s must not have %s set", c.ID, c.Status, m)
		}
	}

	return nil
}

// ClearMilestones resets every milestone timestamp.
func (c *Case) ClearMilestones() {
	c.ApprovedAt = nil
	c.BankInfoSubmittedAt = nil
	c.TransferConfirmedAt = nil
	c.MemberProofSubmittedAt = nil
	c.CompletedAt = nil
}
