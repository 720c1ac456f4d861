package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/roboclear/ledger"
	"github.com/roboclear/ledger/store"
	"github.com/roboclear/ledger/types"
)

const escrowColumns = `id, from_account, to_account, amount, status,
	condition, expires_at, created_at, released_at, transaction_id`

func (s *Store) GetEscrow(ctx context.Context, id uuid.UUID) (*types.Escrow, error) {
	e, err := getEscrow(ctx, s.db, id)
	if err != nil {
		return nil, fmt.Errorf("GetEscrow: %w", err)
	}
	return e, nil
}

func (s *Store) ListEscrows(ctx context.Context, f store.EscrowFilter) ([]*types.Escrow, error) {
	var where []string
	var args []any

	if f.AccountID != "" {
		where = append(where, "(from_account = ? OR to_account = ?)")
		args = append(args, f.AccountID, f.AccountID)
	}
	if f.Status != "" {
		where = append(where, "status = ?")
		args = append(args, f.Status)
	}
	if !f.ExpiredBefore.IsZero() {
		where = append(where, "expires_at IS NOT NULL AND expires_at < ?")
		args = append(args, toMillis(f.ExpiredBefore))
	}

	query := `SELECT ` + escrowColumns + ` FROM ledger_escrows`
	if len(where) > 0 {
		query += " WHERE " + strings.Join(where, " AND ")
	}
	query += " ORDER BY created_at DESC, id DESC"
	if f.Limit > 0 {
		query += " LIMIT ?"
		args = append(args, f.Limit)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("ListEscrows: %w", err)
	}
	defer rows.Close()

	var escrows []*types.Escrow
	for rows.Next() {
		e, err := scanEscrow(rows)
		if err != nil {
			return nil, fmt.Errorf("ListEscrows: scan: %w", err)
		}
		escrows = append(escrows, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("ListEscrows: rows: %w", err)
	}
	return escrows, nil
}

func getEscrow(ctx context.Context, q dbtx, id uuid.UUID) (*types.Escrow, error) {
	row := q.QueryRowContext(ctx,
		`SELECT `+escrowColumns+` FROM ledger_escrows WHERE id = ?`, id,
	)
	e, err := scanEscrow(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("%s: %w", id, ledger.ErrEscrowNotFound)
		}
		return nil, err
	}
	return e, nil
}

func insertEscrow(ctx context.Context, q dbtx, e *types.Escrow) error {
	var txID uuid.NullUUID
	if e.TransactionID != nil {
		txID = uuid.NullUUID{UUID: *e.TransactionID, Valid: true}
	}

	_, err := q.ExecContext(ctx,
		`INSERT INTO ledger_escrows (
			id, from_account, to_account, amount, status,
			condition, expires_at, created_at, released_at, transaction_id
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		e.ID, e.From, e.To, e.Amount, e.Status,
		e.Condition, toNullMillis(e.ExpiresAt), toMillis(e.CreatedAt),
		toNullMillis(e.ReleasedAt), txID,
	)
	if err != nil {
		if uniqueViolation(err) != "" {
			return fmt.Errorf("%s: %w", e.ID, ledger.ErrConflict)
		}
		return err
	}
	return nil
}

// updateEscrowStatus is the PENDING-only compare-and-swap out of escrow's
// initial state.
func updateEscrowStatus(ctx context.Context, q dbtx, id uuid.UUID, to types.EscrowStatus, releasedAt time.Time, txID *uuid.UUID) error {
	var tid uuid.NullUUID
	if txID != nil {
		tid = uuid.NullUUID{UUID: *txID, Valid: true}
	}

	res, err := q.ExecContext(ctx,
		`UPDATE ledger_escrows SET status = ?, released_at = ?, transaction_id = ?
		WHERE id = ? AND status = ?`,
		to, toMillis(releasedAt), tid, id, types.EscrowStatusPending,
	)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if n == 0 {
		cur, err := getEscrow(ctx, q, id)
		if err != nil {
			return err
		}
		return fmt.Errorf("%s is %s: %w", id, cur.Status, ledger.ErrEscrowNotPending)
	}
	return nil
}

func scanEscrow(s scanner) (*types.Escrow, error) {
	var e types.Escrow
	var txID uuid.NullUUID
	var expiresAt, releasedAt sql.NullInt64
	var createdAt int64

	err := s.Scan(
		&e.ID, &e.From, &e.To, &e.Amount, &e.Status,
		&e.Condition, &expiresAt, &createdAt, &releasedAt, &txID,
	)
	if err != nil {
		return nil, err
	}

	if txID.Valid {
		e.TransactionID = &txID.UUID
	}
	e.ExpiresAt = fromNullMillis(expiresAt)
	e.CreatedAt = fromMillis(createdAt)
	e.ReleasedAt = fromNullMillis(releasedAt)
	return &e, nil
}
