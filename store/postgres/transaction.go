package postgres

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
		`SELECT `+transactionColumns+` FROM ledger_transactions WHERE idempotency_key = $1`, key,
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
		args = append(args, f.AccountID)
		where = append(where, fmt.Sprintf("(from_account = $%d OR to_account = $%d)", len(args), len(args)))
	}
	if f.Type != "" {
		args = append(args, f.Type)
		where = append(where, fmt.Sprintf("type = $%d", len(args)))
	}
	if f.Status != "" {
		args = append(args, f.Status)
		where = append(where, fmt.Sprintf("status = $%d", len(args)))
	}
	if !f.Since.IsZero() {
		args = append(args, f.Since)
		where = append(where, fmt.Sprintf("created_at >= $%d", len(args)))
	}
	if !f.Until.IsZero() {
		args = append(args, f.Until)
		where = append(where, fmt.Sprintf("created_at < $%d", len(args)))
	}

	query := `SELECT ` + transactionColumns + ` FROM ledger_transactions`
	if len(where) > 0 {
		query += " WHERE " + strings.Join(where, " AND ")
	}
	query += " ORDER BY created_at DESC, id DESC"
	if f.Limit > 0 {
		args = append(args, f.Limit)
		query += fmt.Sprintf(" LIMIT $%d", len(args))
	}
	if f.Offset > 0 {
		args = append(args, f.Offset)
		query += fmt.Sprintf(" OFFSET $%d", len(args))
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
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)`,
		t.ID, t.From, t.To, t.Amount, t.Fee, t.Type, t.Status, meta,
		key, t.InitiatedBy, t.CreatedAt, t.CompletedAt,
	)
	if err != nil {
		switch uniqueConstraint(err) {
		case "idx_ledger_transactions_idempotency_key":
			return fmt.Errorf("%w", ledger.ErrDuplicateIdempotencyKey)
		case "":
			return err
		default:
			return fmt.Errorf("%s: %w", t.ID, ledger.ErrConflict)
		}
	}
	return nil
}

func getTransaction(ctx context.Context, q dbtx, id uuid.UUID) (*types.Transaction, error) {
	row := q.QueryRowContext(ctx,
		`SELECT `+transactionColumns+` FROM ledger_transactions WHERE id = $1`, id,
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
		`UPDATE ledger_transactions SET status = $2, meta = $3, completed_at = $4
		WHERE id = $1`,
		t.ID, t.Status, meta, t.CompletedAt,
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
	var meta []byte

	err := s.Scan(
		&t.ID, &t.From, &t.To, &t.Amount, &t.Fee, &t.Type,
		&t.Status, &meta, &t.IdempotencyKey, &t.InitiatedBy,
		&t.CreatedAt, &t.CompletedAt,
	)
	if err != nil {
		return nil, err
	}

	if err := fromJSON(meta, &t.Meta); err != nil {
		return nil, err
	}

	t.CreatedAt = t.CreatedAt.UTC()
	if t.CompletedAt != nil {
		u := t.CompletedAt.UTC()
		t.CompletedAt = &u
	}
	return &t, nil
}
