package store

import (
	"context"
	"errors"
	"fmt"

	"orbe/internal/utils"
	"orbe/pkg/types"

	sq "github.com/Masterminds/squirrel"
	"github.com/georgysavva/scany/v2/pgxscan"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

var caseColumns = utils.StructTagValues(types.Case{})

type CaseRepository struct {
	db querier
}

func NewCaseRepository(pool *pgxpool.Pool) *CaseRepository {
	return &CaseRepository{db: pool}
}

func (r *CaseRepository) Case(ctx context.Context, caseID string) (*types.Case, error) {
	query, args, err := psql().
		Select(caseColumns...).
		From(caseTableName).
		Where(sq.Eq{"id": caseID}).
		Limit(1).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("failed to generate case query: %w", err)
	}

	var c = new(types.Case)
	err = pgxscan.Get(ctx, r.db, c, query, args...)
	if pgxscan.NotFound(err) {
		return nil, types.ErrCaseNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get case %s: %w", caseID, err)
	}

	return c, nil
}

// Cases lists the cases matching filter, oldest first.
func (r *CaseRepository) Cases(ctx context.Context, filter types.CaseFilter) ([]*types.Case, error) {
	query, args, err := casesQuery(filter)
	if err != nil {
		return nil, fmt.Errorf("failed to generate cases query: %w", err)
	}

	var cases = make([]*types.Case, 0)
	err = pgxscan.Select(ctx, r.db, &cases, query, args...)
	return cases, utils.ErrorWrapOrNil(err, "failed to list cases")
}

func casesQuery(filter types.CaseFilter) (string, []any, error) {
	builder := psql().
		Select(caseColumns...).
		From(caseTableName)

	if filter.Status != "" {
		builder = builder.Where(sq.Eq{"status": string(filter.Status)})
	}
	if filter.CreatedBy != "" {
		builder = builder.Where(sq.Eq{"created_by": filter.CreatedBy})
	}

	return builder.OrderBy("created_at ASC", "id ASC").ToSql()
}

func (r *CaseRepository) CreateCase(ctx context.Context, c *types.Case) error {
	query, args, err := psql().
		Insert(caseTableName).
		SetMap(utils.StructToMap(c)).
		ToSql()
	if err != nil {
		return fmt.Errorf("failed to generate insert case query: %w", err)
	}

	_, err = r.db.Exec(ctx, query, args...)
	return utils.ErrorWrapOrNil(err, "failed to insert case")
}

func (r *CaseRepository) UpdateCase(ctx context.Context, c *types.Case) error {
	query, args, err := updateCaseQuery(c)
	if err != nil {
		return fmt.Errorf("failed to generate update case query: %w", err)
	}

	tag, err := r.db.Exec(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("failed to update case: %w", err)
	}

	if tag.RowsAffected() == 0 {
		return types.ErrCaseNotFound
	}

	return nil
}

func updateCaseQuery(c *types.Case) (string, []any, error) {
	values := utils.StructToMap(c)
	delete(values, "id")
	delete(values, "created_at")
	delete(values, "created_by")

	return psql().
		Update(caseTableName).
		SetMap(values).
		Where(sq.Eq{"id": c.ID}).
		ToSql()
}

func lockCaseQuery(caseID string) (string, []any, error) {
	return psql().
		Select("id").
		From(caseTableName).
		Where(sq.Eq{"id": caseID}).
		Suffix("FOR UPDATE").
		ToSql()
}

// lockCase takes the row lock serializing every mutation of one case.
func lockCase(ctx context.Context, tx pgx.Tx, caseID string) error {
	query, args, err := lockCaseQuery(caseID)
	if err != nil {
		return fmt.Errorf("failed to generate case lock query: %w", err)
	}

	var id string
	err = tx.QueryRow(ctx, query, args...).Scan(&id)
	if errors.Is(err, pgx.ErrNoRows) {
		return types.ErrCaseNotFound
	}

	return utils.ErrorWrapOrNil(err, "failed to lock case")
}
