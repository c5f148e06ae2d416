package store

import (
	"context"
	"fmt"

	"orbe/internal/utils"
	"orbe/pkg/types"

	sq "github.com/Masterminds/squirrel"
	"github.com/georgysavva/scany/v2/pgxscan"
	"github.com/jackc/pgx/v5/pgxpool"
)

var attachmentColumns = utils.StructTagValues(types.Attachment{})

type AttachmentRepository struct {
	db querier
}

func NewAttachmentRepository(pool *pgxpool.Pool) *AttachmentRepository {
	return &AttachmentRepository{db: pool}
}

func (r *AttachmentRepository) Attachment(ctx context.Context, attachmentID string) (*types.Attachment, error) {
	query, args, err := psql().
		Select(attachmentColumns...).
		From(attachmentTableName).
		Where(sq.Eq{"id": attachmentID}).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("failed to generate attachment query: %w", err)
	}

	var attachment = new(types.Attachment)
	err = pgxscan.Get(ctx, r.db, attachment, query, args...)
	if pgxscan.NotFound(err) {
		return nil, types.ErrAttachmentNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get attachment %s: %w", attachmentID, err)
	}

	return attachment, nil
}

// AttachmentsByCase returns a case's attachments, newest first.
func (r *AttachmentRepository) AttachmentsByCase(ctx context.Context, caseID string) ([]*types.Attachment, error) {
	query, args, err := psql().
		Select(attachmentColumns...).
		From(attachmentTableName).
		Where(sq.Eq{"case_id": caseID}).
		OrderBy("uploaded_at DESC").
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("failed to generate attachments query: %w", err)
	}

	var attachments = make([]*types.Attachment, 0)
	err = pgxscan.Select(ctx, r.db, &attachments, query, args...)
	return attachments, utils.ErrorWrapOrNil(err, "failed to list attachments")
}

func hasAttachmentQuery(caseID string, attachmentType types.AttachmentType) (string, []any, error) {
	inner := psql().
		Select("1").
		From(attachmentTableName).
		Where(sq.Eq{"case_id": caseID, "attachment_type": string(attachmentType)})

	return psql().Select().Column(sq.Expr("EXISTS(?)", inner)).ToSql()
}

// HasAttachment reports whether at least one attachment of the type exists.
func (r *AttachmentRepository) HasAttachment(ctx context.Context, caseID string, attachmentType types.AttachmentType) (bool, error) {
	query, args, err := hasAttachmentQuery(caseID, attachmentType)
	if err != nil {
		return false, fmt.Errorf("failed to generate attachment exists query: %w", err)
	}

	var exists bool
	err = r.db.QueryRow(ctx, query, args...).Scan(&exists)
	return exists, utils.ErrorWrapOrNil(err, "failed to check attachment existence")
}

func (r *AttachmentRepository) CreateAttachment(ctx context.Context, attachment *types.Attachment) error {
	query, args, err := psql().
		Insert(attachmentTableName).
		SetMap(utils.StructToMap(attachment)).
		ToSql()
	if err != nil {
		return fmt.Errorf("failed to generate insert attachment query: %w", err)
	}

	_, err = r.db.Exec(ctx, query, args...)
	return utils.ErrorWrapOrNil(err, "failed to insert attachment")
}

func (r *AttachmentRepository) DeleteAttachment(ctx context.Context, attachmentID string) error {
	query, args, err := psql().
		Delete(attachmentTableName).
		Where(sq.Eq{"id": attachmentID}).
		ToSql()
	if err != nil {
		return fmt.Errorf("failed to generate delete attachment query: %w", err)
	}

	tag, err := r.db.Exec(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("failed to delete attachment: %w", err)
	}

	if tag.RowsAffected() == 0 {
		return types.ErrAttachmentNotFound
	}

	return nil
}
