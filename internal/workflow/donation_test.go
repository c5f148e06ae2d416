package workflow

import (
	"testing"

	"orbe/internal/utils"
	"orbe/pkg/types"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func (f *fixture) createDonationRequest(t *testing.T) *types.DonationRequest {
	t.Helper()

	request, err := f.svc.CreateDonationRequest(f.ctx, CreateDonationRequestInput{
		RequestedBy:          member,
		RecipientName:        "Joana Pereira",
		RecipientDescription: "Lost her home in the flood",
		Amount:               decimal.RequireFromString("1200.50"),
		Reason:               "Rebuilding essentials",
	})
	require.NoError(t, err)
	return request
}

func TestCreateDonationRequest(t *testing.T) {
	f := newFixture(t)

	request := f.createDonationRequest(t)
	assert.Equal(t, types.DonationRequestStatusPending, request.Status)
	assert.Equal(t, types.UrgencyMedium, request.Urgency)
	assert.Nil(t, request.CaseID)

	_, err := f.svc.CreateDonationRequest(f.ctx, CreateDonationRequestInput{
		RequestedBy:   member,
		RecipientName: "x",
		Amount:        decimal.NewFromInt(10),
		Reason:        "y",
		Urgency:       "whenever",
	})
	assert.ErrorIs(t, err, types.ErrValidation)
}

func TestApproveDonationRequest_CreatesCase(t *testing.T) {
	f := newFixture(t)
	request := f.createDonationRequest(t)

	c, err := f.svc.ApproveDonationRequest(f.ctx, request.ID, reviewer)
	require.NoError(t, err)

	assert.Equal(t, types.CaseStatusAwaitingBankInfo, c.Status)
	assert.Equal(t, member, c.CreatedBy)
	assert.Equal(t, reviewer, utils.PtrString(c.ReviewedBy))
	assert.Equal(t, request.ID, utils.PtrString(c.DonationRequestID))
	assert.True(t, c.Amount.Equal(request.Amount))
	assert.NotNil(t, c.ApprovedAt)
	assert.NoError(t, c.CheckMilestones())

	events := f.timeline(t, c.ID)
	require.Len(t, events, 1)
	assert.Equal(t, types.EventKindCaseCreated, events[0].Kind)
	assert.Equal(t, "awaiting_bank_info", events[0].Metadata[types.MetaStatus])
	assert.Equal(t, "1200.50", events[0].Metadata[types.MetaAmount])

	approved, err := f.svc.DonationRequest(f.ctx, request.ID)
	require.NoError(t, err)
	assert.Equal(t, types.DonationRequestStatusApproved, approved.Status)
	assert.Equal(t, c.ID, utils.PtrString(approved.CaseID))

	// the approved case continues on the normal workflow
	f.transition(t, c.ID, TransitionSubmitBankInfo, member, pixOnly())
}

func TestApproveDonationRequest_OnlyOnce(t *testing.T) {
	f := newFixture(t)
	request := f.createDonationRequest(t)

	_, err := f.svc.ApproveDonationRequest(f.ctx, request.ID, reviewer)
	require.NoError(t, err)

	_, err = f.svc.ApproveDonationRequest(f.ctx, request.ID, reviewer)
	assert.ErrorIs(t, err, types.ErrDonationRequestReviewed)
	assert.Len(t, f.store.cases, 1)

	_, err = f.svc.RejectDonationRequest(f.ctx, request.ID, reviewer, "changed my mind")
	assert.ErrorIs(t, err, types.ErrDonationRequestReviewed)
}

func TestRejectDonationRequest(t *testing.T) {
	f := newFixture(t)
	request := f.createDonationRequest(t)

	_, err := f.svc.RejectDonationRequest(f.ctx, request.ID, reviewer, "")
	assert.ErrorIs(t, err, types.ErrValidation)

	rejected, err := f.svc.RejectDonationRequest(f.ctx, request.ID, reviewer, "outside our region")
	require.NoError(t, err)
	assert.Equal(t, types.DonationRequestStatusRejected, rejected.Status)
	assert.Equal(t, "outside our region", utils.PtrString(rejected.RejectionReason))
	assert.Nil(t, rejected.CaseID)
	assert.Empty(t, f.store.cases)

	_, err = f.svc.ApproveDonationRequest(f.ctx, request.ID, reviewer)
	assert.ErrorIs(t, err, types.ErrDonationRequestReviewed)

	_, err = f.svc.ApproveDonationRequest(f.ctx, "missing", reviewer)
	assert.ErrorIs(t, err, types.ErrDonationRequestNotFound)
}
