package workflow

import (
	"context"

	"orbe/pkg/types"
)

// Store is the unit-of-work view of persistence handed to workflow
// operations. Every call made through one Store shares a transaction.
type Store interface {
	Case(ctx context.Context, caseID string) (*types.Case, error)
	Cases(ctx context.Context, filter types.CaseFilter) ([]*types.Case, error)
	CreateCase(ctx context.Context, c *types.Case) error
	UpdateCase(ctx context.Context, c *types.Case) error

	Attachment(ctx context.Context, attachmentID string) (*types.Attachment, error)
	AttachmentsByCase(ctx context.Context, caseID string) ([]*types.Attachment, error)
	HasAttachment(ctx context.Context, caseID string, attachmentType types.AttachmentType) (bool, error)
	CreateAttachment(ctx context.Context, attachment *types.Attachment) error
	DeleteAttachment(ctx context.Context, attachmentID string) error

	AppendEvent(ctx context.Context, event *types.TimelineEvent) error
	DeleteEvents(ctx context.Context, caseID string, filter types.EventFilter) (int64, error)
	EventsByCase(ctx context.Context, caseID string) ([]*types.TimelineEvent, error)

	FlagForReview(ctx context.Context, flag *types.ReviewFlag) error

	DonationRequest(ctx context.Context, requestID string) (*types.DonationRequest, error)
	CreateDonationRequest(ctx context.Context, request *types.DonationRequest) error
	UpdateDonationRequest(ctx context.Context, request *types.DonationRequest) error
}

// Transactor opens atomic units of work.
type Transactor interface {
	// Locked runs fn in one transaction holding the write lock on the case
	// row. Concurrent calls for the same case are serialized. It returns
	// types.ErrCaseNotFound when the case does not exist.
	Locked(ctx context.Context, caseID string, fn func(ctx context.Context, s Store) error) error

	// LockedDonationRequest is Locked for a donation request row.
	LockedDonationRequest(ctx context.Context, requestID string, fn func(ctx context.Context, s Store) error) error

	// Atomic runs fn in one transaction without taking a row lock.
	Atomic(ctx context.Context, fn func(ctx context.Context, s Store) error) error
}
