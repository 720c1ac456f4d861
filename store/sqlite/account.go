package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/roboclear/ledger"
	"github.com/roboclear/ledger/store"
	"github.com/roboclear/ledger/types"
)

const accountColumns = `id, name, balance, frozen_balance, roles, status,
	limits, metadata, tags, created_at, updated_at`

func (s *Store) CreateAccount(ctx context.Context, a *types.Account) error {
	if err := insertAccount(ctx, s.db, a); err != nil {
		return fmt.Errorf("CreateAccount: %w", err)
	}
	return nil
}

func (s *Store) GetAccount(ctx context.Context, id string) (*types.Account, error) {
	a, err := getAccount(ctx, s.db, id)
	if err != nil {
		return nil, fmt.Errorf("GetAccount: %w", err)
	}
	return a, nil
}

func (s *Store) UpdateAccount(ctx context.Context, a *types.Account) error {
	if err := updateAccount(ctx, s.db, a); err != nil {
		return fmt.Errorf("UpdateAccount: %w", err)
	}
	return nil
}

func (s *Store) DeleteAccount(ctx context.Context, id string) error {
	if err := deleteAccount(ctx, s.db, id); err != nil {
		return fmt.Errorf("DeleteAccount: %w", err)
	}
	return nil
}

func (s *Store) ListAccounts(ctx context.Context, f store.AccountFilter) ([]*types.Account, error) {
	var where []string
	var args []any

	if f.Status != "" {
		where = append(where, "status = ?")
		args = append(args, f.Status)
	}
	if f.Role != "" {
		where = append(where, "EXISTS (SELECT 1 FROM json_each(ledger_accounts.roles) WHERE json_each.value = ?)")
		args = append(args, string(f.Role))
	}
	if f.Tag != "" {
		where = append(where, "EXISTS (SELECT 1 FROM json_each(ledger_accounts.tags) WHERE json_each.value = ?)")
		args = append(args, f.Tag)
	}

	query := `SELECT ` + accountColumns + ` FROM ledger_accounts`
	if len(where) > 0 {
		query += " WHERE " + strings.Join(where, " AND ")
	}
	query += " ORDER BY created_at ASC, id ASC"
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
		return nil, fmt.Errorf("ListAccounts: %w", err)
	}
	defer rows.Close()

	var accounts []*types.Account
	for rows.Next() {
		a, err := scanAccount(rows)
		if err != nil {
			return nil, fmt.Errorf("ListAccounts: scan: %w", err)
		}
		accounts = append(accounts, a)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("ListAccounts: rows: %w", err)
	}
	return accounts, nil
}

func insertAccount(ctx context.Context, q dbtx, a *types.Account) error {
	roles := a.Roles
	if roles == nil {
		roles = types.RoleSet{}
	}
	rolesJSON, err := jsonSlice(roles)
	if err != nil {
		return err
	}
	limits, err := jsonPtr(a.Limits)
	if err != nil {
		return err
	}
	metadata, err := jsonMap(a.Metadata)
	if err != nil {
		return err
	}
	tags, err := jsonSlice(a.Tags)
	if err != nil {
		return err
	}

	_, err = q.ExecContext(ctx,
		`INSERT INTO ledger_accounts (
			id, name, balance, frozen_balance, roles, status,
			limits, metadata, tags, created_at, updated_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		a.ID, a.Name, a.Balance, a.FrozenBalance, rolesJSON, a.Status,
		limits, metadata, tags, toMillis(a.CreatedAt), toMillis(a.UpdatedAt),
	)
	if err != nil {
		if uniqueViolation(err) != "" {
			return fmt.Errorf("%s: %w", a.ID, ledger.ErrAccountExists)
		}
		return err
	}
	return nil
}

func getAccount(ctx context.Context, q dbtx, id string) (*types.Account, error) {
	row := q.QueryRowContext(ctx,
		`SELECT `+accountColumns+` FROM ledger_accounts WHERE id = ?`, id,
	)
	a, err := scanAccount(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("%s: %w", id, ledger.ErrAccountNotFound)
		}
		return nil, err
	}
	return a, nil
}

// updateAccount persists the non-balance fields. Balances only move through
// UpdateBalance, FreezeBalance, and UnfreezeBalance.
func updateAccount(ctx context.Context, q dbtx, a *types.Account) error {
	roles := a.Roles
	if roles == nil {
		roles = types.RoleSet{}
	}
	rolesJSON, err := jsonSlice(roles)
	if err != nil {
		return err
	}
	limits, err := jsonPtr(a.Limits)
	if err != nil {
		return err
	}
	metadata, err := jsonMap(a.Metadata)
	if err != nil {
		return err
	}
	tags, err := jsonSlice(a.Tags)
	if err != nil {
		return err
	}

	res, err := q.ExecContext(ctx,
		`UPDATE ledger_accounts SET
			name = ?, roles = ?, status = ?, limits = ?,
			metadata = ?, tags = ?, updated_at = ?
		WHERE id = ?`,
		a.Name, rolesJSON, a.Status, limits, metadata, tags, toMillis(a.UpdatedAt), a.ID,
	)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("%s: %w", a.ID, ledger.ErrAccountNotFound)
	}
	return nil
}

func deleteAccount(ctx context.Context, q dbtx, id string) error {
	res, err := q.ExecContext(ctx,
		`DELETE FROM ledger_accounts WHERE id = ?`, id,
	)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("%s: %w", id, ledger.ErrAccountNotFound)
	}
	return nil
}

func scanAccount(s scanner) (*types.Account, error) {
	var a types.Account
	var roles string
	var limits, metadata, tags sql.NullString
	var createdAt, updatedAt int64

	err := s.Scan(
		&a.ID, &a.Name, &a.Balance, &a.FrozenBalance, &roles, &a.Status,
		&limits, &metadata, &tags, &createdAt, &updatedAt,
	)
	if err != nil {
		return nil, err
	}

	if err := fromJSON(sql.NullString{String: roles, Valid: true}, &a.Roles); err != nil {
		return nil, err
	}
	if limits.Valid {
		var l types.Limits
		if err := fromJSON(limits, &l); err != nil {
			return nil, err
		}
		a.Limits = &l
	}
	if err := fromJSON(metadata, &a.Metadata); err != nil {
		return nil, err
	}
	if err := fromJSON(tags, &a.Tags); err != nil {
		return nil, err
	}

	a.CreatedAt = fromMillis(createdAt)
	a.UpdatedAt = fromMillis(updatedAt)
	return &a, nil
}
