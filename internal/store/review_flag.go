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

var reviewFlagColumns = utils.StructTagValues(types.ReviewFlag{})

type ReviewFlagRepository struct {
	db querier
}

func NewReviewFlagRepository(pool *pgxpool.Pool) *ReviewFlagRepository {
	return &ReviewFlagRepository{db: pool}
}

func (r *ReviewFlagRepository) FlagForReview(ctx context.Context, flag *types.ReviewFlag) error {
	query, args, err := psql().
		Insert(reviewFlagTableName).
		SetMap(utils.StructToMap(flag)).
		ToSql()
	if err != nil {
		return fmt.Errorf("failed to generate insert review flag query: %w", err)
	}

	_, err = r.db.Exec(ctx, query, args...)
	return utils.ErrorWrapOrNil(err, "failed to insert review flag")
}

func (r *ReviewFlagRepository) FlagsByCase(ctx context.Context, caseID string) ([]*types.ReviewFlag, error) {
	query, args, err := psql().
		Select(reviewFlagColumns...).
		From(reviewFlagTableName).
		Where(sq.Eq{"case_id": caseID}).
		OrderBy("created_at ASC").
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("failed to generate review flags query: %w", err)
	}

	var flags = make([]*types.ReviewFlag, 0)
	err = pgxscan.Select(ctx, r.db, &flags, query, args...)
	return flags, utils.ErrorWrapOrNil(err, "failed to list review flags")
}
