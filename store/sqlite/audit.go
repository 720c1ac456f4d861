package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/roboclear/ledger/store"
	"github.com/roboclear/ledger/types"
)

func (s *Store) AppendAudit(ctx context.Context, e *types.AuditEntry) error {
	if err := insertAudit(ctx, s.db, e); err != nil {
		return fmt.Errorf("AppendAudit: %w", err)
	}
	return nil
}

func (s *Store) ListAudit(ctx context.Context, f store.AuditFilter) ([]*types.AuditEntry, error) {
	var where []string
	var args []any

	if f.EntityID != "" {
		where = append(where, "entity_id = ?")
		args = append(args, f.EntityID)
	}
	if f.Action != "" {
		where = append(where, "action = ?")
		args = append(args, f.Action)
	}

	query := `SELECT id, action, entity_type, entity_id, actor_id, before, after, created_at
		FROM ledger_audit_log`
	if len(where) > 0 {
		query += " WHERE " + strings.Join(where, " AND ")
	}
	query += " ORDER BY seq ASC"
	if f.Limit > 0 {
		query += " LIMIT ?"
		args = append(args, f.Limit)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("ListAudit: %w", err)
	}
	defer rows.Close()

	var entries []*types.AuditEntry
	for rows.Next() {
		var e types.AuditEntry
		var before, after sql.NullString
		var createdAt int64
		err := rows.Scan(
			&e.ID, &e.Action, &e.EntityType, &e.EntityID, &e.ActorID,
			&before, &after, &createdAt,
		)
		if err != nil {
			return nil, fmt.Errorf("ListAudit: scan: %w", err)
		}
		if err := fromJSON(before, &e.Before); err != nil {
			return nil, fmt.Errorf("ListAudit: %w", err)
		}
		if err := fromJSON(after, &e.After); err != nil {
			return nil, fmt.Errorf("ListAudit: %w", err)
		}
		e.CreatedAt = fromMillis(createdAt)
		entries = append(entries, &e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("ListAudit: rows: %w", err)
	}
	return entries, nil
}

func insertAudit(ctx context.Context, q dbtx, e *types.AuditEntry) error {
	before, err := jsonMap(e.Before)
	if err != nil {
		return err
	}
	after, err := jsonMap(e.After)
	if err != nil {
		return err
	}

	_, err = q.ExecContext(ctx,
		`INSERT INTO ledger_audit_log (
			id, action, entity_type, entity_id, actor_id, before, after, created_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		e.ID, e.Action, e.EntityType, e.EntityID, e.ActorID, before, after, toMillis(e.CreatedAt),
	)
	if err != nil {
		return err
	}
	return nil
}

func (s *Store) Statistics(ctx context.Context) (*types.Statistics, error) {
	var st types.Statistics
	err := s.db.QueryRowContext(ctx, `
		SELECT
			(SELECT COUNT(*) FROM ledger_accounts),
			(SELECT COALESCE(SUM(balance), 0) FROM ledger_accounts),
			(SELECT COALESCE(SUM(frozen_balance), 0) FROM ledger_accounts),
			(SELECT COUNT(*) FROM ledger_transactions),
			(SELECT COALESCE(SUM(amount), 0) FROM ledger_transactions WHERE status IN (?, ?)),
			(SELECT COALESCE(SUM(fee), 0) FROM ledger_transactions WHERE status IN (?, ?)),
			(SELECT COUNT(*) FROM ledger_escrows WHERE status = ?)`,
		types.TransactionStatusCompleted, types.TransactionStatusRefunded,
		types.TransactionStatusCompleted, types.TransactionStatusRefunded,
		types.EscrowStatusPending,
	).Scan(
		&st.AccountCount, &st.TotalAvailable, &st.TotalFrozen,
		&st.TransactionCount, &st.TransferVolume, &st.FeesBurned,
		&st.PendingEscrowCount,
	)
	if err != nil {
		return nil, fmt.Errorf("Statistics: %w", err)
	}
	return &st, nil
}
