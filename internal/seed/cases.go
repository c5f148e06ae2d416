package seed

import (
	"context"
	"fmt"
	"math/rand"
	"time"

	"orbe/internal/utils"
	"orbe/internal/workflow"
	"orbe/pkg/types"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"
)

// Workflow is the subset of the case workflow used to build demo data.
type Workflow interface {
	CreateCase(ctx context.Context, in workflow.CreateCaseInput) (*types.Case, error)
	AttemptTransition(ctx context.Context, caseID string, name workflow.TransitionName, actor string, payload workflow.TransitionPayload) (workflow.TransitionResult, error)
	RecordAttachmentCreated(ctx context.Context, attachment *types.Attachment) error
	CreateDonationRequest(ctx context.Context, in workflow.CreateDonationRequestInput) (*types.DonationRequest, error)
	ApproveDonationRequest(ctx context.Context, requestID, reviewer string) (*types.Case, error)
	RejectDonationRequest(ctx context.Context, requestID, reviewer, reason string) (*types.DonationRequest, error)
}

var fakeCaseDescriptions = []string{
	"Family needs help with two months of rent after a job loss.",
	"Medical exam and transport costs for an elderly member.",
	"Basic groceries for a household of five for the next month.",
	"Overdue electricity bill after a temporary income interruption.",
	"School supplies and uniforms for three children.",
	"Replacement tools so a member can keep working as an electrician.",
	"Emergency repairs to a roof damaged by heavy rain.",
	"Prescription medication not covered by the public health system.",
}

var fakeRecipients = []string{
	"Maria das Dores",
	"Joao Batista",
	"Antonia Ferreira",
	"Sebastiao Alves",
	"Francisca Lopes",
}

type weightedCaseStatus struct {
	Status types.CaseStatus
	Weight int
}

var weightedStatuses = []weightedCaseStatus{
	{Status: types.CaseStatusDraft, Weight: 10},
	{Status: types.CaseStatusPendingApproval, Weight: 15},
	{Status: types.CaseStatusAwaitingBankInfo, Weight: 15},
	{Status: types.CaseStatusAwaitingTransfer, Weight: 15},
	{Status: types.CaseStatusAwaitingMemberProof, Weight: 15},
	{Status: types.CaseStatusPendingValidation, Weight: 10},
	{Status: types.CaseStatusCompleted, Weight: 15},
	{Status: types.CaseStatusRejected, Weight: 5},
}

// happyPath lists each forward step and the status it reaches.
var happyPath = []struct {
	reached    types.CaseStatus
	transition workflow.TransitionName
	reviewer   bool
	evidence   types.AttachmentType
}{
	{reached: types.CaseStatusPendingApproval, transition: workflow.TransitionSubmit},
	{reached: types.CaseStatusAwaitingBankInfo, transition: workflow.TransitionApprove, reviewer: true},
	{reached: types.CaseStatusAwaitingTransfer, transition: workflow.TransitionSubmitBankInfo},
	{reached: types.CaseStatusAwaitingMemberProof, transition: workflow.TransitionConfirmTransfer, reviewer: true, evidence: types.AttachmentTypePaymentProof},
	{reached: types.CaseStatusPendingValidation, transition: workflow.TransitionSubmitMemberProof, evidence: types.AttachmentTypePhotoEvidence},
	{reached: types.CaseStatusCompleted, transition: workflow.TransitionComplete, reviewer: true},
}

// Seeder builds demo cases by driving them through the real workflow, so
// every seeded case has a consistent timeline.
type Seeder struct {
	workflow Workflow
	rng      *rand.Rand
}

func NewSeeder(wf Workflow, seed int64) *Seeder {
	if seed == 0 {
		seed = time.Now().UnixNano()
	}
	return &Seeder{workflow: wf, rng: rand.New(rand.NewSource(seed))}
}

func (s *Seeder) pick(values []string) string {
	return values[s.rng.Intn(len(values))]
}

// SeedCases creates count cases spread over every status.
func (s *Seeder) SeedCases(ctx context.Context, count int) ([]*types.Case, error) {
	if count <= 0 {
		fmt.Println("Skipping fake cases seed because count <= 0")
		return nil, nil
	}

	members := memberIDs(false)
	cases := make([]*types.Case, 0, count)

	for i := 0; i < count; i++ {
		target := pickWeightedStatus(s.rng)
		creator := s.pick(members)

		c, err := s.workflow.CreateCase(ctx, workflow.CreateCaseInput{
			Title:       fmt.Sprintf("[seed] Case %d", i+1),
			Description: s.pick(fakeCaseDescriptions),
			Amount:      decimal.New(int64(s.rng.Intn(4900)+100), 0),
			CreatedBy:   creator,
		})
		if err != nil {
			return nil, fmt.Errorf("failed to create fake case %d: %w", i+1, err)
		}

		if err := s.walk(ctx, c, creator, target); err != nil {
			return nil, fmt.Errorf("failed to advance fake case %s to %s: %w", c.ID, target, err)
		}

		cases = append(cases, c)
	}

	fmt.Printf("Fake cases seeded: %d created\n", len(cases))
	return cases, nil
}

// walk drives c forward until it reaches target. A rejected target is
// reached by rejecting at approval.
func (s *Seeder) walk(ctx context.Context, c *types.Case, creator string, target types.CaseStatus) error {
	if target == types.CaseStatusDraft {
		return nil
	}

	if target == types.CaseStatusRejected {
		if err := s.step(ctx, c.ID, workflow.TransitionSubmit, creator, workflow.TransitionPayload{}); err != nil {
			return err
		}
		return s.step(ctx, c.ID, workflow.TransitionReject, s.pick(memberIDs(true)), workflow.TransitionPayload{
			Reason: "Outside the assistance criteria for this quarter.",
		})
	}

	for _, step := range happyPath {
		actor := creator
		if step.reviewer {
			actor = s.pick(memberIDs(true))
		}

		if step.evidence != "" {
			if err := s.attach(ctx, c.ID, creator, step.evidence); err != nil {
				return err
			}
		}

		var payload workflow.TransitionPayload
		if step.transition == workflow.TransitionSubmitBankInfo {
			payload.BankInfo = types.BankInfo{
				BeneficiaryName:   utils.StringPtr(s.pick(fakeRecipients)),
				BeneficiaryPixKey: utils.StringPtr(fmt.Sprintf("seed-%s@pix.example", c.ID)),
			}
		}

		if err := s.step(ctx, c.ID, step.transition, actor, payload); err != nil {
			return err
		}

		if step.reached == target {
			return nil
		}
	}

	return fmt.Errorf("status %s is not reachable", target)
}

func (s *Seeder) step(ctx context.Context, caseID string, name workflow.TransitionName, actor string, payload workflow.TransitionPayload) error {
	result, err := s.workflow.AttemptTransition(ctx, caseID, name, actor, payload)
	if err != nil {
		return err
	}
	if !result.Applied {
		return fmt.Errorf("%s was not applied: %s", name, result.RejectedReason)
	}
	return nil
}

// attach records evidence metadata only. Seeded attachments have no object
// in the evidence bucket.
func (s *Seeder) attach(ctx context.Context, caseID, uploader string, attachmentType types.AttachmentType) error {
	return s.workflow.RecordAttachmentCreated(ctx, &types.Attachment{
		CaseID:        caseID,
		Type:          attachmentType,
		FileName:      fmt.Sprintf("%s.pdf", attachmentType),
		FileSizeBytes: int64(s.rng.Intn(400_000) + 20_000),
		MimeType:      "application/pdf",
		UploadedBy:    uploader,
	})
}

// SeedDonationRequests creates count requests. Roughly a third are approved
// and a sixth rejected.
func (s *Seeder) SeedDonationRequests(ctx context.Context, count int) error {
	if count <= 0 {
		fmt.Println("Skipping fake donation requests seed because count <= 0")
		return nil
	}

	urgencies := []types.Urgency{types.UrgencyLow, types.UrgencyMedium, types.UrgencyHigh, types.UrgencyCritical}
	approved, rejected := 0, 0

	for i := 0; i < count; i++ {
		request, err := s.workflow.CreateDonationRequest(ctx, workflow.CreateDonationRequestInput{
			RequestedBy:          s.pick(allMemberIDs()),
			RecipientName:        s.pick(fakeRecipients),
			RecipientDescription: s.pick(fakeCaseDescriptions),
			Amount:               decimal.New(int64(s.rng.Intn(2900)+100), 0),
			Reason:               "Referred by the neighbourhood outreach team.",
			Urgency:              urgencies[s.rng.Intn(len(urgencies))],
		})
		if err != nil {
			return fmt.Errorf("failed to create fake donation request %d: %w", i+1, err)
		}

		switch roll := s.rng.Intn(6); {
		case roll < 2:
			if _, err := s.workflow.ApproveDonationRequest(ctx, request.ID, s.pick(memberIDs(true))); err != nil {
				return fmt.Errorf("failed to approve fake donation request %s: %w", request.ID, err)
			}
			approved++
		case roll == 2:
			if _, err := s.workflow.RejectDonationRequest(ctx, request.ID, s.pick(memberIDs(true)), "Duplicate of an open case."); err != nil {
				return fmt.Errorf("failed to reject fake donation request %s: %w", request.ID, err)
			}
			rejected++
		}
	}

	fmt.Printf("Fake donation requests seeded: %d created, %d approved, %d rejected\n", count, approved, rejected)
	return nil
}

func pickWeightedStatus(rng *rand.Rand) types.CaseStatus {
	total := 0
	for _, item := range weightedStatuses {
		total += item.Weight
	}

	if total == 0 {
		return types.CaseStatusDraft
	}

	roll := rng.Intn(total)
	running := 0
	for _, item := range weightedStatuses {
		running += item.Weight
		if roll < running {
			return item.Status
		}
	}

	return types.CaseStatusDraft
}

// Reset removes every row created by seeded members.
func Reset(ctx context.Context, pool *pgxpool.Pool) error {
	ids := allMemberIDs()

	return pgx.BeginFunc(ctx, pool, func(tx pgx.Tx) error {
		statements := []string{
			`DELETE FROM orbe.case_review_flags WHERE case_id IN (SELECT id FROM orbe.cases WHERE created_by = ANY($1))`,
			`DELETE FROM orbe.case_timeline_events WHERE case_id IN (SELECT id FROM orbe.cases WHERE created_by = ANY($1))`,
			`DELETE FROM orbe.case_attachments WHERE case_id IN (SELECT id FROM orbe.cases WHERE created_by = ANY($1))`,
			`UPDATE orbe.donation_requests SET case_id = NULL WHERE requested_by = ANY($1)`,
			`DELETE FROM orbe.cases WHERE created_by = ANY($1)`,
			`DELETE FROM orbe.donation_requests WHERE requested_by = ANY($1)`,
		}

		for _, stmt := range statements {
			result, err := tx.Exec(ctx, stmt, ids)
			if err != nil {
				return fmt.Errorf("failed to reset seeded data: %w", err)
			}
			fmt.Printf("Reset: %d rows affected\n", result.RowsAffected())
		}

		return nil
	})
}
