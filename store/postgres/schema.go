package postgres

import (
	"context"
	"database/sql"
	"fmt"
)

// Table prefix keeps the ledger installable into a database shared with the
// host application.
const schema = `
CREATE TABLE IF NOT EXISTS ledger_accounts (
    id             TEXT PRIMARY KEY,
    name           TEXT NOT NULL DEFAULT '',
    balance        BIGINT NOT NULL DEFAULT 0 CHECK (balance >= 0),
    frozen_balance BIGINT NOT NULL DEFAULT 0 CHECK (frozen_balance >= 0),
    roles          JSONB NOT NULL DEFAULT '[]',
    status         TEXT NOT NULL DEFAULT 'ACTIVE',
    limits         JSONB,
    metadata       JSONB,
    tags           JSONB,
    created_at     TIMESTAMPTZ NOT NULL,
    updated_at     TIMESTAMPTZ NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_ledger_accounts_status ON ledger_accounts (status);

CREATE TABLE IF NOT EXISTS ledger_transactions (
    id              UUID PRIMARY KEY,
    from_account    TEXT NOT NULL,
    to_account      TEXT NOT NULL,
    amount          BIGINT NOT NULL,
    fee             BIGINT NOT NULL DEFAULT 0,
    type            TEXT NOT NULL,
    status          TEXT NOT NULL,
    meta            JSONB,
    idempotency_key TEXT,
    initiated_by    TEXT NOT NULL DEFAULT '',
    created_at      TIMESTAMPTZ NOT NULL,
    completed_at    TIMESTAMPTZ
);

CREATE UNIQUE INDEX IF NOT EXISTS idx_ledger_transactions_idempotency_key
    ON ledger_transactions (idempotency_key) WHERE idempotency_key IS NOT NULL;
CREATE INDEX IF NOT EXISTS idx_ledger_transactions_from ON ledger_transactions (from_account, created_at DESC);
CREATE INDEX IF NOT EXISTS idx_ledger_transactions_to ON ledger_transactions (to_account, created_at DESC);

CREATE TABLE IF NOT EXISTS ledger_operations (
    id            UUID PRIMARY KEY,
    account_id    TEXT NOT NULL,
    direction     TEXT NOT NULL,
    amount        BIGINT NOT NULL,
    balance_after BIGINT NOT NULL,
    reason        TEXT NOT NULL DEFAULT '',
    initiated_by  TEXT NOT NULL DEFAULT '',
    created_at    TIMESTAMPTZ NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_ledger_operations_account ON ledger_operations (account_id, created_at DESC);

CREATE TABLE IF NOT EXISTS ledger_escrows (
    id             UUID PRIMARY KEY,
    from_account   TEXT NOT NULL,
    to_account     TEXT NOT NULL,
    amount         BIGINT NOT NULL,
    status         TEXT NOT NULL,
    condition      TEXT NOT NULL DEFAULT '',
    expires_at     TIMESTAMPTZ,
    created_at     TIMESTAMPTZ NOT NULL,
    released_at    TIMESTAMPTZ,
    transaction_id UUID
);

CREATE INDEX IF NOT EXISTS idx_ledger_escrows_status ON ledger_escrows (status, expires_at);
CREATE INDEX IF NOT EXISTS idx_ledger_escrows_from ON ledger_escrows (from_account);
CREATE INDEX IF NOT EXISTS idx_ledger_escrows_to ON ledger_escrows (to_account);

CREATE TABLE IF NOT EXISTS ledger_batches (
    id            UUID PRIMARY KEY,
    items         JSONB NOT NULL DEFAULT '[]',
    stop_on_error BOOLEAN NOT NULL DEFAULT FALSE,
    status        TEXT NOT NULL,
    success_count INT NOT NULL DEFAULT 0,
    failed_count  INT NOT NULL DEFAULT 0,
    total_amount  BIGINT NOT NULL DEFAULT 0,
    initiated_by  TEXT NOT NULL DEFAULT '',
    created_at    TIMESTAMPTZ NOT NULL,
    completed_at  TIMESTAMPTZ
);

CREATE TABLE IF NOT EXISTS ledger_audit_log (
    seq         BIGSERIAL PRIMARY KEY,
    id          UUID NOT NULL,
    action      TEXT NOT NULL,
    entity_type TEXT NOT NULL,
    entity_id   TEXT NOT NULL,
    actor_id    TEXT NOT NULL DEFAULT '',
    before      JSONB,
    after       JSONB,
    created_at  TIMESTAMPTZ NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_ledger_audit_entity ON ledger_audit_log (entity_id, seq);
`

func migrate(ctx context.Context, db *sql.DB) error {
	if _, err := db.ExecContext(ctx, schema); err != nil {
		return fmt.Errorf("migrate: %w", err)
	}
	return nil
}
