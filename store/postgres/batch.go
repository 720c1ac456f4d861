package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"github.com/roboclear/ledger"
	"github.com/roboclear/ledger/types"
)

const batchColumns = `id, items, stop_on_error, status, success_count,
	failed_count, total_amount, initiated_by, created_at, completed_at`

func (s *Store) CreateBatch(ctx context.Context, b *types.BatchTransfer) error {
	items, err := jsonSlice(b.Items)
	if err != nil {
		return fmt.Errorf("CreateBatch: %w", err)
	}

	_, err = s.db.ExecContext(ctx,
		`INSERT INTO ledger_batches (
			id, items, stop_on_error, status, success_count,
			failed_count, total_amount, initiated_by, created_at, completed_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`,
		b.ID, items, b.StopOnError, b.Status, b.SuccessCount,
		b.FailedCount, b.TotalAmount, b.InitiatedBy, b.CreatedAt, b.CompletedAt,
	)
	if err != nil {
		if uniqueConstraint(err) != "" {
			return fmt.Errorf("CreateBatch: %s: %w", b.ID, ledger.ErrConflict)
		}
		return fmt.Errorf("CreateBatch: %w", err)
	}
	return nil
}

func (s *Store) UpdateBatch(ctx context.Context, b *types.BatchTransfer) error {
	items, err := jsonSlice(b.Items)
	if err != nil {
		return fmt.Errorf("UpdateBatch: %w", err)
	}

	res, err := s.db.ExecContext(ctx,
		`UPDATE ledger_batches SET
			items = $2, status = $3, success_count = $4,
			failed_count = $5, completed_at = $6
		WHERE id = $1`,
		b.ID, items, b.Status, b.SuccessCount, b.FailedCount, b.CompletedAt,
	)
	if err != nil {
		return fmt.Errorf("UpdateBatch: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("UpdateBatch: rows affected: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("UpdateBatch: %s: %w", b.ID, ledger.ErrBatchNotFound)
	}
	return nil
}

func (s *Store) GetBatch(ctx context.Context, id uuid.UUID) (*types.BatchTransfer, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+batchColumns+` FROM ledger_batches WHERE id = $1`, id,
	)
	b, err := scanBatch(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("GetBatch: %s: %w", id, ledger.ErrBatchNotFound)
		}
		return nil, fmt.Errorf("GetBatch: %w", err)
	}
	return b, nil
}

func scanBatch(s scanner) (*types.BatchTransfer, error) {
	var b types.BatchTransfer
	var items []byte

	err := s.Scan(
		&b.ID, &items, &b.StopOnError, &b.Status, &b.SuccessCount,
		&b.FailedCount, &b.TotalAmount, &b.InitiatedBy, &b.CreatedAt, &b.CompletedAt,
	)
	if err != nil {
		return nil, err
	}

	if err := fromJSON(items, &b.Items); err != nil {
		return nil, err
	}

	b.CreatedAt = b.CreatedAt.UTC()
	if b.CompletedAt != nil {
		u := b.CompletedAt.UTC()
		b.CompletedAt = &u
	}
	return &b, nil
}
