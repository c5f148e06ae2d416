package workflow

import (
	"context"
	"fmt"
	"strings"

	"orbe/internal/utils"
	"orbe/pkg/types"

	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
)

type CreateDonationRequestInput struct {
	RequestedBy          string          `form:"-" json:"-"`
	RecipientName        string          `form:"recipient_name" json:"recipientName"`
	RecipientDescription string          `form:"recipient_description" json:"recipientDescription"`
	Amount               decimal.Decimal `form:"amount" json:"amount"`
	Reason               string          `form:"reason" json:"reason"`
	Urgency              types.Urgency   `form:"urgency" json:"urgency"`
}

func (in CreateDonationRequestInput) validate() error {
	if strings.TrimSpace(in.RequestedBy) == "" {
		return fmt.Errorf("%w: requester is required", types.ErrValidation)
	}
	if strings.TrimSpace(in.RecipientName) == "" {
		return fmt.Errorf("%w: recipient name is required", types.ErrValidation)
	}
	if !in.Amount.IsPositive() {
		return fmt.Errorf("%w: amount must be greater than zero", types.ErrValidation)
	}
	if strings.TrimSpace(in.Reason) == "" {
		return fmt.Errorf("%w: reason is required", types.ErrValidation)
	}
	if in.Urgency != "" && !in.Urgency.IsValid() {
		return fmt.Errorf("%w: unknown urgency %q", types.ErrValidation, in.Urgency)
	}
	return nil
}

func (s *Service) CreateDonationRequest(ctx context.Context, in CreateDonationRequestInput) (*types.DonationRequest, error) {
	if err := in.validate(); err != nil {
		return nil, err
	}

	urgency := in.Urgency
	if urgency == "" {
		urgency = types.UrgencyMedium
	}

	now := s.now()
	request := &types.DonationRequest{
		ID:                   utils.NanoID(),
		RequestedBy:          in.RequestedBy,
		RecipientName:        strings.TrimSpace(in.RecipientName),
		RecipientDescription: strings.TrimSpace(in.RecipientDescription),
		Amount:               in.Amount,
		Reason:               strings.TrimSpace(in.Reason),
		Urgency:              urgency,
		Status:               types.DonationRequestStatusPending,
		CreatedAt:            now,
		UpdatedAt:            now,
	}

	err := s.tx.Atomic(ctx, func(ctx context.Context, st Store) error {
		return st.CreateDonationRequest(ctx, request)
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create donation request: %w", err)
	}

	return request, nil
}

// ApproveDonationRequest approves a pending request and opens its case
// directly in awaiting_bank_info.
func (s *Service) ApproveDonationRequest(ctx context.Context, requestID, reviewer string) (*types.Case, error) {
	if strings.TrimSpace(reviewer) == "" {
		return nil, fmt.Errorf("%w: reviewer is required", types.ErrValidation)
	}

	var c *types.Case
	err := s.tx.LockedDonationRequest(ctx, requestID, func(ctx context.Context, st Store) error {
		request, err := st.DonationRequest(ctx, requestID)
		if err != nil {
			return err
		}

		if request.Status != types.DonationRequestStatusPending {
			return fmt.Errorf("%w: request %s is %s", types.ErrDonationRequestReviewed, request.ID, request.Status)
		}

		now := s.now()
		c = &types.Case{
			ID:                utils.NanoID(),
			Title:             fmt.Sprintf("Donation for %s", request.RecipientName),
			Description:       request.RecipientDescription,
			Amount:            request.Amount,
			Status:            types.CaseStatusAwaitingBankInfo,
			CreatedBy:         request.RequestedBy,
			ReviewedBy:        utils.StringPtr(reviewer),
			DonationRequestID: utils.StringPtr(request.ID),
			ApprovedAt:        utils.TimePtr(now),
			CreatedAt:         now,
			UpdatedAt:         now,
		}

		if err := c.CheckMilestones(); err != nil {
			return err
		}

		if err := st.CreateCase(ctx, c); err != nil {
			return fmt.Errorf("failed to create case for donation request %s: %w", request.ID, err)
		}

		request.Status = types.DonationRequestStatusApproved
		request.ReviewedBy = utils.StringPtr(reviewer)
		request.ApprovedAt = utils.TimePtr(now)
		request.CaseID = utils.StringPtr(c.ID)
		request.UpdatedAt = now

		if err := st.UpdateDonationRequest(ctx, request); err != nil {
			return fmt.Errorf("failed to update donation request %s: %w", request.ID, err)
		}

		return s.timeline.caseCreated(ctx, st, c)
	})
	if err != nil {
		return nil, err
	}

	s.logger.WithFields(logrus.Fields{
		"donation_request_id": requestID,
		"case_id":             c.ID,
		"reviewer":            reviewer,
	}).Info("donation request approved")

	return c, nil
}

func (s *Service) RejectDonationRequest(ctx context.Context, requestID, reviewer, reason string) (*types.DonationRequest, error) {
	if strings.TrimSpace(reviewer) == "" {
		return nil, fmt.Errorf("%w: reviewer is required", types.ErrValidation)
	}
	if strings.TrimSpace(reason) == "" {
		return nil, fmt.Errorf("%w: a rejection reason is required", types.ErrValidation)
	}

	var request *types.DonationRequest
	err := s.tx.LockedDonationRequest(ctx, requestID, func(ctx context.Context, st Store) error {
		var err error
		request, err = st.DonationRequest(ctx, requestID)
		if err != nil {
			return err
		}

		if request.Status != types.DonationRequestStatusPending {
			return fmt.Errorf("%w: request %s is %s", types.ErrDonationRequestReviewed, request.ID, request.Status)
		}

		request.Status = types.DonationRequestStatusRejected
		request.ReviewedBy = utils.StringPtr(reviewer)
		request.RejectionReason = utils.StringPtr(strings.TrimSpace(reason))
		request.UpdatedAt = s.now()

		return st.UpdateDonationRequest(ctx, request)
	})
	if err != nil {
		return nil, err
	}

	s.logger.WithFields(logrus.Fields{
		"donation_request_id": requestID,
		"reviewer":            reviewer,
	}).Info("donation request rejected")

	return request, nil
}

func (s *Service) DonationRequest(ctx context.Context, requestID string) (*types.DonationRequest, error) {
	var request *types.DonationRequest
	err := s.tx.Atomic(ctx, func(ctx context.Context, st Store) error {
		var err error
		request, err = st.DonationRequest(ctx, requestID)
		return err
	})
	return request, err
}
