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

var timelineColumns = utils.StructTagValues(types.TimelineEvent{})

// TimelineRepository is the append-only event log of each case. Rows are
// only ever removed through DeleteEvents during rollback.
type TimelineRepository struct {
	db querier
}

func NewTimelineRepository(pool *pgxpool.Pool) *TimelineRepository {
	return &TimelineRepository{db: pool}
}

func (r *TimelineRepository) AppendEvent(ctx context.Context, event *types.TimelineEvent) error {
	query, args, err := psql().
		Insert(timelineTableName).
		SetMap(utils.StructToMap(event)).
		ToSql()
	if err != nil {
		return fmt.Errorf("failed to generate insert timeline event query: %w", err)
	}

	_, err = r.db.Exec(ctx, query, args...)
	return utils.ErrorWrapOrNil(err, "failed to insert timeline event")
}

// EventsByCase returns all events for a case, ordered chronologically
func (r *TimelineRepository) EventsByCase(ctx context.Context, caseID string) ([]*types.TimelineEvent, error) {
	query, args, err := psql().
		Select(timelineColumns...).
		From(timelineTableName).
		Where(sq.Eq{"case_id": caseID}).
		OrderBy("created_at ASC", "seq ASC").
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("failed to generate timeline query: %w", err)
	}

	var events = make([]*types.TimelineEvent, 0)
	err = pgxscan.Select(ctx, r.db, &events, query, args...)
	return events, utils.ErrorWrapOrNil(err, "failed to get timeline events")
}

func deleteEventsQuery(caseID string, filter types.EventFilter) (string, []any, error) {
	matches := sq.Or{sq.Eq{"kind": stringSlice(filter.Kinds)}}
	if len(filter.UploadTypes) > 0 {
		matches = append(matches, sq.And{
			sq.Eq{"kind": string(types.EventKindAttachmentUploaded)},
			sq.Eq{fmt.Sprintf("metadata->>'%s'", types.MetaAttachmentType): stringSlice(filter.UploadTypes)},
		})
	}

	return psql().
		Delete(timelineTableName).
		Where(sq.And{sq.Eq{"case_id": caseID}, matches}).
		ToSql()
}

func (r *TimelineRepository) DeleteEvents(ctx context.Context, caseID string, filter types.EventFilter) (int64, error) {
	query, args, err := deleteEventsQuery(caseID, filter)
	if err != nil {
		return 0, fmt.Errorf("failed to generate delete timeline events query: %w", err)
	}

	tag, err := r.db.Exec(ctx, query, args...)
	if err != nil {
		return 0, fmt.Errorf("failed to delete timeline events: %w", err)
	}

	return tag.RowsAffected(), nil
}
