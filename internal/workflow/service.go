// Package workflow owns the assistance case lifecycle: the guarded status
// transitions, the audit timeline written for each of them, and the rollback
// applied when supporting evidence disappears.
//
// Every operation runs inside one atomic unit obtained from a Transactor, so
// a reader never observes a status without the timeline entry describing it.
package workflow

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"orbe/internal/utils"
	"orbe/pkg/types"

	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
)

type Service struct {
	logger logrus.FieldLogger
	tx     Transactor
	now    func() time.Time

	timeline   *timelineGenerator
	reconciler *reconciler
}

type Option func(*Service)

// WithClock overrides the time source used for milestones and events.
func WithClock(now func() time.Time) Option {
	return func(s *Service) {
		s.now = now
	}
}

func New(tx Transactor, logger logrus.FieldLogger, opts ...Option) *Service {
	s := &Service{
		logger: logger,
		tx:     tx,
		now:    time.Now,
	}

	for _, opt := range opts {
		opt(s)
	}

	s.timeline = &timelineGenerator{now: s.now}
	s.reconciler = &reconciler{
		logger: logger,
		now:    s.now,
		pruner: &timelinePruner{timeline: s.timeline},
	}

	return s
}

type CreateCaseInput struct {
	Title       string          `form:"title" json:"title"`
	Description string          `form:"description" json:"description"`
	Amount      decimal.Decimal `form:"amount" json:"amount"`
	CreatedBy   string          `form:"-" json:"-"`
}

func (in CreateCaseInput) validate() error {
	if strings.TrimSpace(in.Title) == "" {
		return fmt.Errorf("%w: title is required", types.ErrValidation)
	}
	if !in.Amount.IsPositive() {
		return fmt.Errorf("%w: amount must be greater than zero", types.ErrValidation)
	}
	if strings.TrimSpace(in.CreatedBy) == "" {
		return fmt.Errorf("%w: creator is required", types.ErrValidation)
	}
	return nil
}

// CreateCase opens a draft case and records its case_created event.
func (s *Service) CreateCase(ctx context.Context, in CreateCaseInput) (*types.Case, error) {
	if err := in.validate(); err != nil {
		return nil, err
	}

	now := s.now()
	c := &types.Case{
		ID:          utils.NanoID(),
		Title:       strings.TrimSpace(in.Title),
		Description: strings.TrimSpace(in.Description),
		Amount:      in.Amount,
		Status:      types.CaseStatusDraft,
		CreatedBy:   in.CreatedBy,
		CreatedAt:   now,
		UpdatedAt:   now,
	}

	err := s.tx.Atomic(ctx, func(ctx context.Context, st Store) error {
		if err := st.CreateCase(ctx, c); err != nil {
			return fmt.Errorf("failed to create case: %w", err)
		}
		return s.timeline.caseCreated(ctx, st, c)
	})
	if err != nil {
		return nil, err
	}

	s.logger.WithFields(logrus.Fields{"case_id": c.ID, "created_by": c.CreatedBy}).Info("case created")

	return c, nil
}

// AttemptTransition applies the named transition to the case if its guard
// holds. A failed guard yields a *types.GuardViolation together with a
// result whose RejectedReason explains it; nothing is written in that case.
func (s *Service) AttemptTransition(ctx context.Context, caseID string, name TransitionName, actor string, payload TransitionPayload) (TransitionResult, error) {
	t, ok := transitions[name]
	if !ok {
		return TransitionResult{}, fmt.Errorf("%w: %s", types.ErrUnknownTransition, name)
	}

	if strings.TrimSpace(actor) == "" {
		return TransitionResult{}, fmt.Errorf("%w: actor is required", types.ErrValidation)
	}

	var result TransitionResult
	err := s.tx.Locked(ctx, caseID, func(ctx context.Context, st Store) error {
		c, err := st.Case(ctx, caseID)
		if err != nil {
			return err
		}

		if c.Status.IsTerminal() {
			result = TransitionResult{
				Status:         c.Status,
				RejectedReason: fmt.Sprintf("case is %s and can no longer change", c.Status.Label()),
			}
			return fmt.Errorf("%w: %s on case %s", types.ErrTerminalCase, name, c.ID)
		}

		in := transitionInput{actor: actor, payload: payload, now: s.now()}

		violation, err := t.check(ctx, st, c, in)
		if err != nil {
			return err
		}

		if violation != nil {
			result = TransitionResult{Status: c.Status, RejectedReason: violation.Reason}
			return violation
		}

		next := t.next(c, in)
		if err := next.CheckMilestones(); err != nil {
			return fmt.Errorf("transition %s would leave case inconsistent: %w", name, err)
		}

		if err := st.UpdateCase(ctx, next); err != nil {
			return fmt.Errorf("failed to persist case %s: %w", c.ID, err)
		}

		if err := s.timeline.statusChanged(ctx, st, c.Status, next, actor); err != nil {
			return err
		}

		result = TransitionResult{Applied: true, Status: next.Status}
		return nil
	})
	if err != nil {
		if types.IsGuardViolation(err) || errors.Is(err, types.ErrTerminalCase) {
			s.logger.WithError(err).WithFields(logrus.Fields{
				"case_id":    caseID,
				"transition": name,
				"actor":      actor,
			}).Info("transition rejected")
			return result, err
		}
		return TransitionResult{}, err
	}

	s.logger.WithFields(logrus.Fields{
		"case_id":    caseID,
		"transition": name,
		"status":     result.Status,
	}).Info("transition applied")

	return result, nil
}

// RecordAttachmentCreated stores the attachment row and its upload event.
func (s *Service) RecordAttachmentCreated(ctx context.Context, attachment *types.Attachment) error {
	if !attachment.Type.IsValid() {
		return fmt.Errorf("%w: unknown attachment type %q", types.ErrValidation, attachment.Type)
	}
	if strings.TrimSpace(attachment.FileName) == "" {
		return fmt.Errorf("%w: file name is required", types.ErrValidation)
	}

	return s.tx.Locked(ctx, attachment.CaseID, func(ctx context.Context, st Store) error {
		c, err := st.Case(ctx, attachment.CaseID)
		if err != nil {
			return err
		}

		if c.Status.IsTerminal() {
			return fmt.Errorf("%w: cannot attach files to case %s", types.ErrTerminalCase, c.ID)
		}

		if attachment.ID == "" {
			attachment.ID = utils.NanoID()
		}
		if attachment.UploadedAt.IsZero() {
			attachment.UploadedAt = s.now()
		}

		if err := st.CreateAttachment(ctx, attachment); err != nil {
			return fmt.Errorf("failed to create attachment for case %s: %w", c.ID, err)
		}

		return s.timeline.attachmentUploaded(ctx, st, c, attachment)
	})
}

// OnAttachmentDeleted re-evaluates the case after an attachment deletion
// committed by a collaborator. It must be called once per deleted
// attachment, in deletion order.
func (s *Service) OnAttachmentDeleted(ctx context.Context, caseID string, attachmentType types.AttachmentType) (DeletionResult, error) {
	var result DeletionResult
	err := s.tx.Locked(ctx, caseID, func(ctx context.Context, st Store) error {
		var err error
		result, err = s.reconciler.reconcile(ctx, st, caseID)
		return err
	})
	if err != nil {
		return DeletionResult{}, err
	}

	s.logger.WithFields(logrus.Fields{
		"case_id":         caseID,
		"attachment_type": attachmentType,
		"rolled_back":     result.RolledBack,
	}).Debug("attachment deletion reconciled")

	if result.FlaggedForReview {
		return result, fmt.Errorf("%w: case %s", types.ErrInvalidEvidenceState, caseID)
	}

	return result, nil
}

// DeleteAttachment removes an attachment and reconciles its case in the
// same atomic unit. Evidence of terminal cases is permanent.
func (s *Service) DeleteAttachment(ctx context.Context, attachmentID string) (*types.Attachment, DeletionResult, error) {
	var found *types.Attachment
	err := s.tx.Atomic(ctx, func(ctx context.Context, st Store) error {
		var err error
		found, err = st.Attachment(ctx, attachmentID)
		return err
	})
	if err != nil {
		return nil, DeletionResult{}, err
	}

	var (
		deleted *types.Attachment
		result  DeletionResult
	)
	err = s.tx.Locked(ctx, found.CaseID, func(ctx context.Context, st Store) error {
		c, err := st.Case(ctx, found.CaseID)
		if err != nil {
			return err
		}

		if c.Status.IsTerminal() {
			return fmt.Errorf("%w: cannot remove evidence from case %s", types.ErrTerminalCase, c.ID)
		}

		// re-read under the lock; a concurrent delete may have won
		deleted, err = st.Attachment(ctx, attachmentID)
		if err != nil {
			return err
		}

		if err := st.DeleteAttachment(ctx, attachmentID); err != nil {
			return fmt.Errorf("failed to delete attachment %s: %w", attachmentID, err)
		}

		result, err = s.reconciler.reconcile(ctx, st, c.ID)
		return err
	})
	if err != nil {
		return nil, DeletionResult{}, err
	}

	if result.FlaggedForReview {
		return deleted, result, fmt.Errorf("%w: case %s", types.ErrInvalidEvidenceState, deleted.CaseID)
	}

	return deleted, result, nil
}

// ListTimeline returns the case's events in chronological order.
func (s *Service) ListTimeline(ctx context.Context, caseID string) ([]*types.TimelineEvent, error) {
	var events []*types.TimelineEvent
	err := s.tx.Atomic(ctx, func(ctx context.Context, st Store) error {
		if _, err := st.Case(ctx, caseID); err != nil {
			return err
		}

		var err error
		events, err = st.EventsByCase(ctx, caseID)
		return err
	})
	return events, err
}

func (s *Service) Case(ctx context.Context, caseID string) (*types.Case, error) {
	var c *types.Case
	err := s.tx.Atomic(ctx, func(ctx context.Context, st Store) error {
		var err error
		c, err = st.Case(ctx, caseID)
		return err
	})
	return c, err
}

// Cases lists the cases matching filter, oldest first.
func (s *Service) Cases(ctx context.Context, filter types.CaseFilter) ([]*types.Case, error) {
	if filter.Status != "" && !filter.Status.IsValid() {
		return nil, fmt.Errorf("%w: unknown case status %q", types.ErrValidation, filter.Status)
	}

	var cases []*types.Case
	err := s.tx.Atomic(ctx, func(ctx context.Context, st Store) error {
		var err error
		cases, err = st.Cases(ctx, filter)
		return err
	})
	return cases, err
}

func (s *Service) Attachments(ctx context.Context, caseID string) ([]*types.Attachment, error) {
	var attachments []*types.Attachment
	err := s.tx.Atomic(ctx, func(ctx context.Context, st Store) error {
		var err error
		attachments, err = st.AttachmentsByCase(ctx, caseID)
		return err
	})
	return attachments, err
}

func (s *Service) Attachment(ctx context.Context, attachmentID string) (*types.Attachment, error) {
	var attachment *types.Attachment
	err := s.tx.Atomic(ctx, func(ctx context.Context, st Store) error {
		var err error
		attachment, err = st.Attachment(ctx, attachmentID)
		return err
	})
	return attachment, err
}
