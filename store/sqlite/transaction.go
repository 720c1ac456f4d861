package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"

	"github.com/roboclear/ledger"
	"github.com/roboclear/ledger/store"
	"github.com/roboclear/ledger/types"
)

const transactionColumns = `id, from_account, to_account, amount, fee, type,
	status, meta, idempotency_key, initiated_by, created_at, completed_at`

func (s *Store) CreateTransaction(ctx context.Context, t *types.Transaction) error {
	if err := insertTransaction(ctx, s.db, t); err != nil {
		return fmt.Errorf("CreateTransaction: %w", err)
	}
	return nil
}

func (s *Store) UpdateTransaction(ctx context.Context, t *types.Transaction) error {
	if err := updateTransaction(ctx, s.db, t); err != nil {
		return fmt.Errorf("UpdateTransaction: %w", err)
	}
	return nil
}

func (s *Store) GetTransaction(ctx context.Context, id uuid.UUID) (*types.Transaction, error) {
	t, err := getTransaction(ctx, s.db, id)
	if err != nil {
		return nil, fmt.Errorf("GetTransaction: %w", err)
	}
	return t, nil
}

func (s *Store) GetTransactionByIdempotencyKey(ctx context.Context, key string) (*types.Transaction, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+transactionColumns+` FROM ledger_transactions WHERE idempotency_key = ?`, key,
	)
	t, err := scanTransaction(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("GetTransactionByIdempotencyKey: %q: %w", key, ledger.ErrTransactionNotFound)
		}
		return nil, fmt.Errorf("GetTransactionByIdempotencyKey: %w", err)
	}
	return t, nil
}

func (s *Store) ListTransactions(ctx context.Context, f store.TransactionFilter) ([]*types.Transaction, error) {
	var where []string
	var args []any

	if f.AccountID != "" {
		where = append(where, "(from_account = ? OR to_account = ?)")
		args = append(args, f.AccountID, f.AccountID)
	}
	if f.Type != "" {
		where = append(where, "type = ?")
		args = append(args, f.Type)
	}
	if f.Status != "" {
		where = append(where, "status = ?")
		args = append(args, f.Status)
	}
	if !f.Since.IsZero() {
		where = append(where, "created_at >= ?")
		args = append(args, toMillis(f.Since))
	}
	if !f.Until.IsZero() {
		where = append(where, "created_at < ?")
		args = append(args, toMillis(f.Until))
	}

	query := `SELECT ` + transactionColumns + ` FROM ledger_transactions`
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
		return nil, fmt.Errorf("ListTransactions: %w", err)
	}
	defer rows.Close()

	var txns []*types.Transaction
	for rows.Next() {
		t, err := scanTransaction(rows)
		if err != nil {
			return nil, fmt.Errorf("ListTransactions: scan: %w", err)
		}
		txns = append(txns, t)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("ListTransactions: rows: %w", err)
	}
	return txns, nil
}

func insertTransaction(ctx context.Context, q dbtx, t *types.Transaction) error {
	meta, err := jsonMap(t.Meta)
	if err != nil {
		return err
	}
	key := t.IdempotencyKey
	if key != nil && *key == "" {
		key = nil
	}

	_, err = q.ExecContext(ctx,
		`INSERT INTO ledger_transactions (
			id, from_account, to_account, amount, fee, type, status, meta,
			idempotency_key, initiated_by, created_at, completed_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		t.ID, t.From, t.To, t.Amount, t.Fee, t.Type, t.Status, meta,
		key, t.InitiatedBy, toMillis(t.CreatedAt), toNullMillis(t.CompletedAt),
	)
	if err != nil {
		if msg := uniqueViolation(err); msg != "" {
			if strings.Contains(msg, "idempotency_key") {
				return fmt.Errorf("%w", ledger.ErrDuplicateIdempotencyKey)
			}
			return fmt.Errorf("%s: %w", t.ID, ledger.ErrConflict)
		}
		return err
	}
	return nil
}

func getTransaction(ctx context.Context, q dbtx, id uuid.UUID) (*types.Transaction, error) {
	row := q.QueryRowContext(ctx,
		`SELECT `+transactionColumns+` FROM ledger_transactions WHERE id = ?`, id,
	)
	t, err := scanTransaction(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("%s: %w", id, ledger.ErrTransactionNotFound)
		}
		return nil, err
	}
	return t, nil
}

func updateTransaction(ctx context.Context, q dbtx, t *types.Transaction) error {
	meta, err := jsonMap(t.Meta)
	if err != nil {
		return err
	}

	res, err := q.ExecContext(ctx,
		`UPDATE ledger_transactions SET status = ?, meta = ?, completed_at = ?
		WHERE id = ?`,
		t.Status, meta, toNullMillis(t.CompletedAt), t.ID,
	)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("%s: %w", t.ID, ledger.ErrTransactionNotFound)
	}
	return nil
}

func scanTransaction(s scanner) (*types.Transaction, error) {
	var t types.Transaction
	var meta sql.NullString
	var createdAt int64
	var completedAt sql.NullInt64

	err := s.Scan(
		&t.ID, &t.From, &t.To, &t.Amount, &t.Fee, &t.Type,
		&t.Status, &meta, &t.IdempotencyKey, &t.InitiatedBy,
		&createdAt, &completedAt,
	)
	if err != nil {
		return nil, err
	}

	if err := fromJSON(meta, &t.Meta); err != nil {
		return nil, err
	}

	t.CreatedAt = fromMillis(createdAt)
	t.CompletedAt = fromNullMillis(completedAt)
	return &t, nil
}
