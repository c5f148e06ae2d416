package workflow

import (
	"context"
	"errors"
	"testing"

	"orbe/internal/utils"
	"orbe/pkg/types"

	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
	logtest "github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	member    = "member-1"
	reviewer  = "council-1"
	treasurer = "treasurer-1"
)

type fixture struct {
	ctx   context.Context
	store *memStore
	svc   *Service
	logs  *logtest.Hook
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	logger, hook := logtest.NewNullLogger()
	logger.SetLevel(logrus.DebugLevel)

	store := newMemStore()
	clock := newStepClock()

	return &fixture{
		ctx:   context.Background(),
		store: store,
		svc:   New(store, logger, WithClock(clock.Now)),
		logs:  hook,
	}
}

func (f *fixture) createCase(t *testing.T) *types.Case {
	t.Helper()

	c, err := f.svc.CreateCase(f.ctx, CreateCaseInput{
		Title:       "Groceries for the Silva family",
		Description: "Monthly basket",
		Amount:      decimal.RequireFromString("350.00"),
		CreatedBy:   member,
	})
	require.NoError(t, err)
	return c
}

func (f *fixture) transition(t *testing.T, caseID string, name TransitionName, actor string, payload TransitionPayload) TransitionResult {
	t.Helper()

	result, err := f.svc.AttemptTransition(f.ctx, caseID, name, actor, payload)
	require.NoError(t, err)
	require.True(t, result.Applied)
	return result
}

func (f *fixture) attach(t *testing.T, caseID string, attachmentType types.AttachmentType) *types.Attachment {
	t.Helper()

	a := &types.Attachment{
		CaseID:        caseID,
		Type:          attachmentType,
		FileName:      string(attachmentType) + ".pdf",
		FileSizeBytes: 2048,
		MimeType:      "application/pdf",
		StorageKey:    "cases/" + caseID + "/" + string(attachmentType),
		UploadedBy:    treasurer,
	}
	require.NoError(t, f.svc.RecordAttachmentCreated(f.ctx, a))
	return a
}

func pixOnly() TransitionPayload {
	return TransitionPayload{BankInfo: types.BankInfo{BeneficiaryPixKey: utils.StringPtr("silva@example.com")}}
}

// advance walks a fresh case along the happy path until it reaches status.
func (f *fixture) advance(t *testing.T, status types.CaseStatus) *types.Case {
	t.Helper()

	c := f.createCase(t)

	steps := []struct {
		reached types.CaseStatus
		run     func()
	}{
		{types.CaseStatusPendingApproval, func() {
			f.transition(t, c.ID, TransitionSubmit, member, TransitionPayload{})
		}},
		{types.CaseStatusAwaitingBankInfo, func() {
			f.transition(t, c.ID, TransitionApprove, reviewer, TransitionPayload{})
		}},
		{types.CaseStatusAwaitingTransfer, func() {
			f.transition(t, c.ID, TransitionSubmitBankInfo, member, pixOnly())
		}},
		{types.CaseStatusAwaitingMemberProof, func() {
			f.attach(t, c.ID, types.AttachmentTypePaymentProof)
			f.transition(t, c.ID, TransitionConfirmTransfer, treasurer, TransitionPayload{})
		}},
		{types.CaseStatusPendingValidation, func() {
			f.attach(t, c.ID, types.AttachmentTypePhotoEvidence)
			f.transition(t, c.ID, TransitionSubmitMemberProof, member, TransitionPayload{})
		}},
		{types.CaseStatusCompleted, func() {
			f.transition(t, c.ID, TransitionComplete, reviewer, TransitionPayload{})
		}},
	}

	if status == types.CaseStatusDraft {
		return c
	}

	for _, step := range steps {
		step.run()
		if step.reached == status {
			return f.reload(t, c.ID)
		}
	}

	t.Fatalf("status %s is not on the happy path", status)
	return nil
}

func (f *fixture) reload(t *testing.T, caseID string) *types.Case {
	t.Helper()

	c, err := f.svc.Case(f.ctx, caseID)
	require.NoError(t, err)
	return c
}

func (f *fixture) timeline(t *testing.T, caseID string) []*types.TimelineEvent {
	t.Helper()

	events, err := f.svc.ListTimeline(f.ctx, caseID)
	require.NoError(t, err)
	return events
}

func kindsOf(events []*types.TimelineEvent) []types.EventKind {
	kinds := make([]types.EventKind, len(events))
	for i, e := range events {
		kinds[i] = e.Kind
	}
	return kinds
}

func TestCreateCase_TimelineStartsWithCaseCreated(t *testing.T) {
	f := newFixture(t)

	c := f.createCase(t)
	assert.Equal(t, types.CaseStatusDraft, c.Status)
	assert.Len(t, c.ID, 32)

	events := f.timeline(t, c.ID)
	require.Len(t, events, 1)
	assert.Equal(t, types.EventKindCaseCreated, events[0].Kind)
	assert.Equal(t, member, utils.PtrString(events[0].ActorID))
	assert.Equal(t, "350.00", events[0].Metadata[types.MetaAmount])
	assert.Equal(t, "draft", events[0].Metadata[types.MetaStatus])
}

func TestCreateCase_Validation(t *testing.T) {
	f := newFixture(t)

	tests := []struct {
		name string
		in   CreateCaseInput
	}{
		{"missing title", CreateCaseInput{Amount: decimal.NewFromInt(10), CreatedBy: member}},
		{"zero amount", CreateCaseInput{Title: "x", CreatedBy: member}},
		{"negative amount", CreateCaseInput{Title: "x", Amount: decimal.NewFromInt(-5), CreatedBy: member}},
		{"missing creator", CreateCaseInput{Title: "x", Amount: decimal.NewFromInt(10)}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := f.svc.CreateCase(f.ctx, tt.in)
			assert.ErrorIs(t, err, types.ErrValidation)
		})
	}

	assert.Empty(t, f.store.cases)
}

func TestExampleScenario(t *testing.T) {
	f := newFixture(t)
	c := f.createCase(t)

	// approve is not reachable from draft
	result, err := f.svc.AttemptTransition(f.ctx, c.ID, TransitionApprove, reviewer, TransitionPayload{})
	assert.True(t, types.IsGuardViolation(err))
	assert.False(t, result.Applied)
	assert.Equal(t, types.CaseStatusDraft, result.Status)
	assert.NotEmpty(t, result.RejectedReason)

	f.transition(t, c.ID, TransitionSubmit, member, TransitionPayload{})
	assert.Equal(t, types.CaseStatusPendingApproval, f.reload(t, c.ID).Status)

	f.transition(t, c.ID, TransitionApprove, reviewer, TransitionPayload{})
	c = f.reload(t, c.ID)
	assert.Equal(t, types.CaseStatusAwaitingBankInfo, c.Status)
	assert.NotNil(t, c.ApprovedAt)
	assert.Equal(t, reviewer, utils.PtrString(c.ReviewedBy))

	f.transition(t, c.ID, TransitionSubmitBankInfo, member, pixOnly())
	c = f.reload(t, c.ID)
	assert.Equal(t, types.CaseStatusAwaitingTransfer, c.Status)
	assert.Equal(t, "silva@example.com", utils.PtrString(c.BeneficiaryPixKey))

	result, err = f.svc.AttemptTransition(f.ctx, c.ID, TransitionConfirmTransfer, treasurer, TransitionPayload{})
	var gv *types.GuardViolation
	require.True(t, errors.As(err, &gv))
	assert.Contains(t, gv.Reason, "payment_proof")
	assert.False(t, result.Applied)

	proof := f.attach(t, c.ID, types.AttachmentTypePaymentProof)
	f.transition(t, c.ID, TransitionConfirmTransfer, treasurer, TransitionPayload{})
	c = f.reload(t, c.ID)
	assert.Equal(t, types.CaseStatusAwaitingMemberProof, c.Status)
	assert.NotNil(t, c.TransferConfirmedAt)

	deleted, deletion, err := f.svc.DeleteAttachment(f.ctx, proof.ID)
	require.NoError(t, err)
	assert.Equal(t, proof.ID, deleted.ID)
	assert.True(t, deletion.RolledBack)
	assert.Equal(t, types.CaseStatusAwaitingTransfer, deletion.Status)
	assert.Equal(t, types.CaseStatusAwaitingMemberProof, deletion.PreviousStatus)

	c = f.reload(t, c.ID)
	assert.Equal(t, types.CaseStatusAwaitingTransfer, c.Status)
	assert.Nil(t, c.TransferConfirmedAt)
	assert.NotNil(t, c.BankInfoSubmittedAt)
	require.NoError(t, c.CheckMilestones())

	assert.Equal(t, []types.EventKind{
		types.EventKindCaseCreated,
		types.EventKindSubmitted,
		types.EventKindApproved,
		types.EventKindBankInfoSubmitted,
		types.EventKindStatusRollback,
	}, kindsOf(f.timeline(t, c.ID)))
}

func TestAttemptTransition_GuardIsIdempotent(t *testing.T) {
	f := newFixture(t)
	c := f.advance(t, types.CaseStatusAwaitingTransfer)
	before := f.timeline(t, c.ID)

	for i := 0; i < 2; i++ {
		result, err := f.svc.AttemptTransition(f.ctx, c.ID, TransitionConfirmTransfer, treasurer, TransitionPayload{})
		assert.True(t, types.IsGuardViolation(err))
		assert.False(t, result.Applied)
		assert.Equal(t, types.CaseStatusAwaitingTransfer, result.Status)
	}

	assert.Equal(t, before, f.timeline(t, c.ID))
	assert.Equal(t, types.CaseStatusAwaitingTransfer, f.reload(t, c.ID).Status)
}

func TestAttemptTransition_TerminalCases(t *testing.T) {
	f := newFixture(t)

	completed := f.advance(t, types.CaseStatusCompleted)
	rejected := f.advance(t, types.CaseStatusPendingApproval)
	f.transition(t, rejected.ID, TransitionReject, reviewer, TransitionPayload{Reason: "duplicate request"})

	for _, caseID := range []string{completed.ID, rejected.ID} {
		before := f.timeline(t, caseID)

		for _, name := range Transitions() {
			result, err := f.svc.AttemptTransition(f.ctx, caseID, name, reviewer, TransitionPayload{Reason: "again"})
			assert.ErrorIs(t, err, types.ErrTerminalCase, name)
			assert.False(t, result.Applied)
			assert.NotEmpty(t, result.RejectedReason)
		}

		assert.Equal(t, before, f.timeline(t, caseID))
	}
}

func TestAttemptTransition_UnknownAndMissing(t *testing.T) {
	f := newFixture(t)
	c := f.createCase(t)

	_, err := f.svc.AttemptTransition(f.ctx, c.ID, TransitionName("archive"), member, TransitionPayload{})
	assert.ErrorIs(t, err, types.ErrUnknownTransition)

	_, err = f.svc.AttemptTransition(f.ctx, "missing", TransitionSubmit, member, TransitionPayload{})
	assert.ErrorIs(t, err, types.ErrCaseNotFound)

	_, err = f.svc.AttemptTransition(f.ctx, c.ID, TransitionSubmit, " ", TransitionPayload{})
	assert.ErrorIs(t, err, types.ErrValidation)
}

func TestAttemptTransition_FailedAppendAbortsTransition(t *testing.T) {
	f := newFixture(t)
	c := f.createCase(t)

	f.store.failAppend = errors.New("disk full")

	result, err := f.svc.AttemptTransition(f.ctx, c.ID, TransitionSubmit, member, TransitionPayload{})
	require.Error(t, err)
	assert.False(t, types.IsGuardViolation(err))
	assert.False(t, result.Applied)

	f.store.failAppend = nil
	assert.Equal(t, types.CaseStatusDraft, f.reload(t, c.ID).Status)
	assert.Len(t, f.timeline(t, c.ID), 1)
}

func TestRecordAttachmentCreated(t *testing.T) {
	f := newFixture(t)
	c := f.advance(t, types.CaseStatusAwaitingTransfer)

	a := f.attach(t, c.ID, types.AttachmentTypePaymentProof)
	assert.NotEmpty(t, a.ID)
	assert.False(t, a.UploadedAt.IsZero())

	events := f.timeline(t, c.ID)
	last := events[len(events)-1]
	assert.Equal(t, types.EventKindAttachmentUploaded, last.Kind)
	assert.Equal(t, treasurer, utils.PtrString(last.ActorID))
	assert.Equal(t, "payment_proof", last.Metadata[types.MetaAttachmentType])
	assert.Equal(t, "payment_proof.pdf", last.Metadata[types.MetaFileName])

	err := f.svc.RecordAttachmentCreated(f.ctx, &types.Attachment{CaseID: c.ID, Type: "selfie", FileName: "x.png"})
	assert.ErrorIs(t, err, types.ErrValidation)

	err = f.svc.RecordAttachmentCreated(f.ctx, &types.Attachment{CaseID: "missing", Type: types.AttachmentTypeOther, FileName: "x.png"})
	assert.ErrorIs(t, err, types.ErrCaseNotFound)
}

func TestRecordAttachmentCreated_RejectedOnCompletedCase(t *testing.T) {
	f := newFixture(t)
	c := f.advance(t, types.CaseStatusCompleted)
	before := f.timeline(t, c.ID)

	err := f.svc.RecordAttachmentCreated(f.ctx, &types.Attachment{
		CaseID:   c.ID,
		Type:     types.AttachmentTypeOther,
		FileName: "late.pdf",
	})
	assert.ErrorIs(t, err, types.ErrTerminalCase)
	assert.Equal(t, before, f.timeline(t, c.ID))

	attachments, err := f.svc.Attachments(f.ctx, c.ID)
	require.NoError(t, err)
	assert.Len(t, attachments, 2)
}

func TestListTimeline_UnknownCase(t *testing.T) {
	f := newFixture(t)

	_, err := f.svc.ListTimeline(f.ctx, "missing")
	assert.ErrorIs(t, err, types.ErrCaseNotFound)
}

func TestCases(t *testing.T) {
	f := newFixture(t)

	pending := f.advance(t, types.CaseStatusPendingApproval)
	draft := f.advance(t, types.CaseStatusDraft)
	foreign, err := f.svc.CreateCase(f.ctx, CreateCaseInput{
		Title:     "Rent",
		Amount:    decimal.NewFromInt(800),
		CreatedBy: "member-9",
	})
	require.NoError(t, err)
	_, err = f.svc.AttemptTransition(f.ctx, foreign.ID, TransitionSubmit, "member-9", TransitionPayload{})
	require.NoError(t, err)

	ids := func(cases []*types.Case) []string {
		out := make([]string, len(cases))
		for i, c := range cases {
			out[i] = c.ID
		}
		return out
	}

	t.Run("pending queue", func(t *testing.T) {
		cases, err := f.svc.Cases(f.ctx, types.CaseFilter{Status: types.CaseStatusPendingApproval})
		require.NoError(t, err)
		assert.Equal(t, []string{pending.ID, foreign.ID}, ids(cases))
	})

	t.Run("created by", func(t *testing.T) {
		cases, err := f.svc.Cases(f.ctx, types.CaseFilter{CreatedBy: member})
		require.NoError(t, err)
		assert.Equal(t, []string{pending.ID, draft.ID}, ids(cases))
	})

	t.Run("status and creator", func(t *testing.T) {
		cases, err := f.svc.Cases(f.ctx, types.CaseFilter{Status: types.CaseStatusDraft, CreatedBy: member})
		require.NoError(t, err)
		assert.Equal(t, []string{draft.ID}, ids(cases))
	})

	t.Run("unknown status", func(t *testing.T) {
		_, err := f.svc.Cases(f.ctx, types.CaseFilter{Status: "archived"})
		assert.ErrorIs(t, err, types.ErrValidation)
	})
}

func TestMilestonesHoldAlongHappyPath(t *testing.T) {
	statuses := []types.CaseStatus{
		types.CaseStatusDraft,
		types.CaseStatusPendingApproval,
		types.CaseStatusAwaitingBankInfo,
		types.CaseStatusAwaitingTransfer,
		types.CaseStatusAwaitingMemberProof,
		types.CaseStatusPendingValidation,
		types.CaseStatusCompleted,
	}

	for _, status := range statuses {
		t.Run(string(status), func(t *testing.T) {
			f := newFixture(t)
			c := f.advance(t, status)
			assert.Equal(t, status, c.Status)
			assert.NoError(t, c.CheckMilestones())
		})
	}
}
