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

var donationRequestColumns = utils.StructTagValues(types.DonationRequest{})

type DonationRequestRepository struct {
	db querier
}

func NewDonationRequestRepository(pool *pgxpool.Pool) *DonationRequestRepository {
	return &DonationRequestRepository{db: pool}
}

func (r *DonationRequestRepository) DonationRequest(ctx context.Context, requestID string) (*types.DonationRequest, error) {
	query, args, err := psql().
		Select(donationRequestColumns...).
		From(donationRequestTableName).
		Where(sq.Eq{"id": requestID}).
		Limit(1).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("failed to generate donation request query: %w", err)
	}

	var request = new(types.DonationRequest)
	err = pgxscan.Get(ctx, r.db, request, query, args...)
	if pgxscan.NotFound(err) {
		return nil, types.ErrDonationRequestNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get donation request %s: %w", requestID, err)
	}

	return request, nil
}

func (r *DonationRequestRepository) CreateDonationRequest(ctx context.Context, request *types.DonationRequest) error {
	query, args, err := psql().
		Insert(donationRequestTableName).
		SetMap(utils.StructToMap(request)).
		ToSql()
	if err != nil {
		return fmt.Errorf("failed to generate insert donation request query: %w", err)
	}

	_, err = r.db.Exec(ctx, query, args...)
	return utils.ErrorWrapOrNil(err, "failed to insert donation request")
}

func (r *DonationRequestRepository) UpdateDonationRequest(ctx context.Context, request *types.DonationRequest) error {
	values := utils.StructToMap(request)
	delete(values, "id")
	delete(values, "created_at")

	query, args, err := psql().
		Update(donationRequestTableName).
		SetMap(values).
		Where(sq.Eq{"id": request.ID}).
		ToSql()
	if err != nil {
		return fmt.Errorf("failed to generate update donation request query: %w", err)
	}

	tag, err := r.db.Exec(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("failed to update donation request: %w", err)
	}

	if tag.RowsAffected() == 0 {
		return types.ErrDonationRequestNotFound
	}

	return nil
}

func lockDonationRequest(ctx context.Context, tx pgx.Tx, requestID string) error {
	query, args, err := psql().
		Select("id").
		From(donationRequestTableName).
		Where(sq.Eq{"id": requestID}).
		Suffix("FOR UPDATE").
		ToSql()
	if err != nil {
		return fmt.Errorf("failed to generate donation request lock query: %w", err)
	}

	var id string
	err = tx.QueryRow(ctx, query, args...).Scan(&id)
	if errors.Is(err, pgx.ErrNoRows) {
		return types.ErrDonationRequestNotFound
	}

	return utils.ErrorWrapOrNil(err, "failed to lock donation request")
}
