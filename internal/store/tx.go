package store

import (
	"context"
	"fmt"

	"orbe/internal/utils"
	"orbe/internal/workflow"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// txStore binds every repository to one transaction.
type txStore struct {
	*CaseRepository
	*AttachmentRepository
	*TimelineRepository
	*ReviewFlagRepository
	*DonationRequestRepository
}

var _ workflow.Store = (*txStore)(nil)

func newTxStore(db querier) *txStore {
	return &txStore{
		CaseRepository:            &CaseRepository{db: db},
		AttachmentRepository:      &AttachmentRepository{db: db},
		TimelineRepository:        &TimelineRepository{db: db},
		ReviewFlagRepository:      &ReviewFlagRepository{db: db},
		DonationRequestRepository: &DonationRequestRepository{db: db},
	}
}

// Transactor runs workflow units of work in Postgres transactions.
type Transactor struct {
	pool *pgxpool.Pool
}

var _ workflow.Transactor = (*Transactor)(nil)

func NewTransactor(pool *pgxpool.Pool) *Transactor {
	return &Transactor{pool: pool}
}

func (t *Transactor) Locked(ctx context.Context, caseID string, fn func(ctx context.Context, s workflow.Store) error) error {
	return t.within(ctx, func(ctx context.Context, tx pgx.Tx) error {
		return lockCase(ctx, tx, caseID)
	}, fn)
}

func (t *Transactor) LockedDonationRequest(ctx context.Context, requestID string, fn func(ctx context.Context, s workflow.Store) error) error {
	return t.within(ctx, func(ctx context.Context, tx pgx.Tx) error {
		return lockDonationRequest(ctx, tx, requestID)
	}, fn)
}

func (t *Transactor) Atomic(ctx context.Context, fn func(ctx context.Context, s workflow.Store) error) error {
	return t.within(ctx, nil, fn)
}

func (t *Transactor) within(ctx context.Context, lock func(ctx context.Context, tx pgx.Tx) error, fn func(ctx context.Context, s workflow.Store) error) error {
	tx, err := t.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	if lock != nil {
		if err := lock(ctx, tx); err != nil {
			return err
		}
	}

	if err := fn(ctx, newTxStore(tx)); err != nil {
		return err
	}

	return utils.ErrorWrapOrNil(tx.Commit(ctx), "failed to commit transaction")
}
