package sqlite

// Timestamps are stored as Unix milliseconds; JSON-shaped fields as TEXT.
const schema = `
CREATE TABLE IF NOT EXISTS ledger_accounts (
    id             TEXT PRIMARY KEY,
    name           TEXT NOT NULL DEFAULT '',
    balance        INTEGER NOT NULL DEFAULT 0 CHECK (balance >= 0),
    frozen_balance INTEGER NOT NULL DEFAULT 0 CHECK (frozen_balance >= 0),
    roles          TEXT NOT NULL DEFAULT '[]',
    status         TEXT NOT NULL DEFAULT 'ACTIVE',
    limits         TEXT,
    metadata       TEXT,
    tags           TEXT,
    created_at     INTEGER NOT NULL,
    updated_at     INTEGER NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_ledger_accounts_status ON ledger_accounts (status);

CREATE TABLE IF NOT EXISTS ledger_transactions (
    id              TEXT PRIMARY KEY,
    from_account    TEXT NOT NULL,
    to_account      TEXT NOT NULL,
    amount          INTEGER NOT NULL,
    fee             INTEGER NOT NULL DEFAULT 0,
    type            TEXT NOT NULL,
    status          TEXT NOT NULL,
    meta            TEXT,
    idempotency_key TEXT,
    initiated_by    TEXT NOT NULL DEFAULT '',
    created_at      INTEGER NOT NULL,
    completed_at    INTEGER
);

CREATE UNIQUE INDEX IF NOT EXISTS idx_ledger_transactions_idempotency_key
    ON ledger_transactions (idempotency_key) WHERE idempotency_key IS NOT NULL;
CREATE INDEX IF NOT EXISTS idx_ledger_transactions_from ON ledger_transactions (from_account, created_at DESC);
CREATE INDEX IF NOT EXISTS idx_ledger_transactions_to ON ledger_transactions (to_account, created_at DESC);

CREATE TABLE IF NOT EXISTS ledger_operations (
    id            TEXT PRIMARY KEY,
    account_id    TEXT NOT NULL,
    direction     TEXT NOT NULL,
    amount        INTEGER NOT NULL,
    balance_after INTEGER NOT NULL,
    reason        TEXT NOT NULL DEFAULT '',
    initiated_by  TEXT NOT NULL DEFAULT '',
    created_at    INTEGER NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_ledger_operations_account ON ledger_operations (account_id, created_at DESC);

CREATE TABLE IF NOT EXISTS ledger_escrows (
    id             TEXT PRIMARY KEY,
    from_account   TEXT NOT NULL,
    to_account     TEXT NOT NULL,
    amount         INTEGER NOT NULL,
    status         TEXT NOT NULL,
    condition      TEXT NOT NULL DEFAULT '',
    expires_at     INTEGER,
    created_at     INTEGER NOT NULL,
    released_at    INTEGER,
    transaction_id TEXT
);

CREATE INDEX IF NOT EXISTS idx_ledger_escrows_status ON ledger_escrows (status, expires_at);
CREATE INDEX IF NOT EXISTS idx_ledger_escrows_from ON ledger_escrows (from_account);
CREATE INDEX IF NOT EXISTS idx_ledger_escrows_to ON ledger_escrows (to_account);

CREATE TABLE IF NOT EXISTS ledger_batches (
    id            TEXT PRIMARY KEY,
    items         TEXT NOT NULL DEFAULT '[]',
    stop_on_error INTEGER NOT NULL DEFAULT 0,
    status        TEXT NOT NULL,
    success_count INTEGER NOT NULL DEFAULT 0,
    failed_count  INTEGER NOT NULL DEFAULT 0,
    total_amount  INTEGER NOT NULL DEFAULT 0,
    initiated_by  TEXT NOT NULL DEFAULT '',
    created_at    INTEGER NOT NULL,
    completed_at  INTEGER
);

CREATE TABLE IF NOT EXISTS ledger_audit_log (
    seq         INTEGER PRIMARY KEY AUTOINCREMENT,
    id          TEXT NOT NULL,
    action      TEXT NOT NULL,
    entity_type TEXT NOT NULL,
    entity_id   TEXT NOT NULL,
    actor_id    TEXT NOT NULL DEFAULT '',
    before      TEXT,
    after       TEXT,
    created_at  INTEGER NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_ledger_audit_entity ON ledger_audit_log (entity_id, seq);
`
