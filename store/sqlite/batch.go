package sqlite

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
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		b.ID, items, b.StopOnError, b.Status, b.SuccessCount,
		b.FailedCount, b.TotalAmount, b.InitiatedBy,
		toMillis(b.CreatedAt), toNullMillis(b.CompletedAt),
	)
	if err != nil {
		if uniqueViolation(err) != "" {
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
			items = ?, status = ?, success_count = ?,
			failed_count = ?, completed_at = ?
		WHERE id = ?`,
		items, b.Status, b.SuccessCount, b.FailedCount,
		toNullMillis(b.CompletedAt), b.ID,
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
		`SELECT `+batchColumns+` FROM ledger_batches WHERE id = ?`, id,
	)

	var b types.BatchTransfer
	var items sql.NullString
	var createdAt int64
	var completedAt sql.NullInt64

	err := row.Scan(
		&b.ID, &items, &b.StopOnError, &b.Status, &b.SuccessCount,
		&b.FailedCount, &b.TotalAmount, &b.InitiatedBy, &createdAt, &completedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("GetBatch: %s: %w", id, ledger.ErrBatchNotFound)
		}
		return nil, fmt.Errorf("GetBatch: %w", err)
	}

	if err := fromJSON(items, &b.Items); err != nil {
		return nil, fmt.Errorf("GetBatch: %w", err)
	}
	b.CreatedAt = fromMillis(createdAt)
	b.CompletedAt = fromNullMillis(completedAt)
	return &b, nil
}
