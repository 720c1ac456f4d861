package sqlite

import (
	"context"
	"fmt"
	"strings"

	"github.com/roboclear/ledger/store"
	"github.com/roboclear/ledger/types"
)

const operationColumns = `id, account_id, direction, amount, balance_after,
	reason, initiated_by, created_at`

func (s *Store) ListOperations(ctx context.Context, f store.OperationFilter) ([]*types.BalanceOperation, error) {
	var where []string
	var args []any

	if f.AccountID != "" {
		where = append(where, "account_id = ?")
		args = append(args, f.AccountID)
	}
	if f.Direction != "" {
		where = append(where, "direction = ?")
		args = append(args, f.Direction)
	}

	query := `SELECT ` + operationColumns + ` FROM ledger_operations`
	if len(where) > 0 {
		query += " WHERE " + strings.Join(where, " AND ")
	}
	query += " ORDER BY created_at DESC, id DESC"
	if f.Limit > 0 {
		query += " LIMIT ?"
		args = append(args, f.Limit)
	}
	if f.Offset > 0 {
		if f.Limit <= 0 {
			query += " LIMIT -1"
		}
		query += " OFFSET ?"
		args = append(args, f.Offset)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("ListOperations: %w", err)
	}
	defer rows.Close()

	var ops []*types.BalanceOperation
	for rows.Next() {
		op, err := scanOperation(rows)
		if err != nil {
			return nil, fmt.Errorf("ListOperations: scan: %w", err)
		}
		ops = append(ops, op)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("ListOperations: rows: %w", err)
	}
	return ops, nil
}

func insertOperation(ctx context.Context, q dbtx, op *types.BalanceOperation) error {
	_, err := q.ExecContext(ctx,
		`INSERT INTO ledger_operations (
			id, account_id, direction, amount, balance_after,
			reason, initiated_by, created_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		op.ID, op.AccountID, op.Direction, op.Amount, op.BalanceAfter,
		op.Reason, op.InitiatedBy, toMillis(op.CreatedAt),
	)
	if err != nil {
		return err
	}
	return nil
}

func scanOperation(s scanner) (*types.BalanceOperation, error) {
	var op types.BalanceOperation
	var createdAt int64
	err := s.Scan(
		&op.ID, &op.AccountID, &op.Direction, &op.Amount, &op.BalanceAfter,
		&op.Reason, &op.InitiatedBy, &createdAt,
	)
	if err != nil {
		return nil, err
	}
	op.CreatedAt = fromMillis(createdAt)
	return &op, nil
}
