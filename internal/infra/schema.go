package infra

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
)

// schema is applied idempotently at startup. Monetary columns use unconstrained
// NUMERIC so fees such as amount * 0.0001 are stored without rounding.
var schema = []string{
	`CREATE TABLE IF NOT EXISTS users (
        id            UUID PRIMARY KEY,
        first_name    TEXT NOT NULL,
        last_name     TEXT NOT NULL,
        username      TEXT NOT NULL,
        email         TEXT NOT NULL,
        password_hash BYTEA NOT NULL,
        date_of_birth DATE,
        account_type  TEXT NOT NULL,
        status        TEXT NOT NULL,
        token_version INTEGER NOT NULL DEFAULT 0,
        verified      BOOLEAN NOT NULL DEFAULT FALSE,
        deleted       BOOLEAN NOT NULL DEFAULT FALSE,
        created_at    TIMESTAMPTZ NOT NULL
    )`,
	`ALTER TABLE users ADD COLUMN IF NOT EXISTS date_of_birth DATE`,
	`CREATE UNIQUE INDEX IF NOT EXISTS users_username_live ON users (username) WHERE NOT deleted`,
	`CREATE UNIQUE INDEX IF NOT EXISTS users_email_live ON users (email) WHERE NOT deleted`,
	`CREATE TABLE IF NOT EXISTS accounts (
        id         UUID PRIMARY KEY,
        balance    NUMERIC NOT NULL DEFAULT 0 CHECK (balance >= 0),
        status     TEXT NOT NULL,
        created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
    )`,
	`CREATE TABLE IF NOT EXISTS transactions (
        seq            BIGSERIAL UNIQUE,
        id             UUID PRIMARY KEY,
        sender_id      UUID NOT NULL REFERENCES accounts (id),
        receiver_id    UUID NOT NULL REFERENCES accounts (id),
        amount         NUMERIC NOT NULL CHECK (amount > 0),
        fee            NUMERIC NOT NULL CHECK (fee >= 0),
        balance_before NUMERIC NOT NULL,
        balance_after  NUMERIC NOT NULL,
        description    TEXT NOT NULL DEFAULT '',
        type           TEXT NOT NULL,
        status         TEXT NOT NULL,
        created_at     TIMESTAMPTZ NOT NULL
    )`,
	`CREATE INDEX IF NOT EXISTS transactions_sender_created ON transactions (sender_id, created_at DESC)`,
	`CREATE INDEX IF NOT EXISTS transactions_receiver_created ON transactions (receiver_id, created_at DESC)`,
	`CREATE TABLE IF NOT EXISTS scheduled_transactions (
        id             UUID PRIMARY KEY,
        sender_id      UUID NOT NULL REFERENCES accounts (id),
        receiver_id    UUID NOT NULL REFERENCES accounts (id),
        amount         NUMERIC NOT NULL CHECK (amount > 0),
        fee            NUMERIC NOT NULL DEFAULT 0,
        balance_before NUMERIC NOT NULL DEFAULT 0,
        balance_after  NUMERIC NOT NULL DEFAULT 0,
        description    TEXT NOT NULL DEFAULT '',
        type           TEXT NOT NULL,
        status         TEXT NOT NULL,
        send_at        TIMESTAMPTZ NOT NULL,
        transaction_id UUID REFERENCES transactions (id),
        failure_reason TEXT NOT NULL DEFAULT '',
        created_at     TIMESTAMPTZ NOT NULL
    )`,
	`CREATE INDEX IF NOT EXISTS scheduled_due ON scheduled_transactions (status, send_at)`,
}

// Migrate creates the tables used by the ledger and identity repositories.
func Migrate(ctx context.Context, db *pgxpool.Pool) error {
	for i, stmt := range schema {
		if _, err := db.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("apply schema statement %d: %w", i+1, err)
		}
	}
	return nil
}
