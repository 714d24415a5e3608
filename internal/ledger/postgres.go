package ledger

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"
)

const maxUnitAttempts = 3

const transactionColumns = `id, sender_id, receiver_id, amount, fee, balance_before, balance_after,
        description, type, status, created_at`

const scheduledColumns = `id, sender_id, receiver_id, amount, fee, balance_before, balance_after,
        description, type, status, send_at, transaction_id, failure_reason, created_at`

// PostgresStore persists balances and ledger entries in PostgreSQL. Account
// rows are locked with SELECT ... FOR UPDATE for the life of an atomic unit.
type PostgresStore struct {
	db *pgxpool.Pool
}

// NewPostgresStore constructs a Postgres-backed ledger store.
func NewPostgresStore(db *pgxpool.Pool) *PostgresStore {
	return &PostgresStore{db: db}
}

// EnsureAccount guarantees an active zero-balance account exists for the id.
func (s *PostgresStore) EnsureAccount(ctx context.Context, id string) error {
	accountID, err := uuid.Parse(id)
	if err != nil {
		return ErrAccountNotFound
	}
	_, err = s.db.Exec(ctx, `INSERT INTO accounts (id, balance, status, created_at) VALUES ($1, 0, $2, $3)
        ON CONFLICT (id) DO NOTHING`, accountID, AccountActive, time.Now().UTC())
	return err
}

// CloseAccount marks the account closed so it can no longer send or receive.
func (s *PostgresStore) CloseAccount(ctx context.Context, id string) error {
	accountID, err := uuid.Parse(id)
	if err != nil {
		return ErrAccountNotFound
	}
	cmd, err := s.db.Exec(ctx, `UPDATE accounts SET status = $1 WHERE id = $2`, AccountClosed, accountID)
	if err != nil {
		return err
	}
	if cmd.RowsAffected() == 0 {
		return ErrAccountNotFound
	}
	return nil
}

// Account returns the current committed state of an account.
func (s *PostgresStore) Account(ctx context.Context, id string) (Account, error) {
	accountID, err := uuid.Parse(id)
	if err != nil {
		return Account{}, ErrAccountNotFound
	}
	row := s.db.QueryRow(ctx, `SELECT id, balance, status, created_at FROM accounts WHERE id = $1`, accountID)
	return scanAccount(row)
}

// Atomically runs fn inside a database transaction, retrying the whole unit
// when Postgres reports a serialization failure or deadlock.
func (s *PostgresStore) Atomically(ctx context.Context, fn func(tx Tx) error) error {
	var err error
	for attempt := 1; attempt <= maxUnitAttempts; attempt++ {
		err = s.runUnit(ctx, fn)
		if !retryable(err) || ctx.Err() != nil {
			return err
		}
	}
	return fmt.Errorf("atomic unit gave up after %d attempts: %w", maxUnitAttempts, err)
}

func (s *PostgresStore) runUnit(ctx context.Context, fn func(tx Tx) error) error {
	tx, err := s.db.BeginTx(ctx, pgx.TxOptions{IsoLevel: pgx.ReadCommitted})
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx) // nolint:errcheck

	if err := fn(&pgTx{tx: tx}); err != nil {
		return err
	}
	return tx.Commit(ctx)
}

func retryable(err error) bool {
	var pgErr *pgconn.PgError
	if !errors.As(err, &pgErr) {
		return false
	}
	switch pgErr.Code {
	case "40001", "40P01":
		return true
	default:
		return false
	}
}

// Transactions lists entries sent or received by the account, newest first.
func (s *PostgresStore) Transactions(ctx context.Context, accountID string, offset, limit int) ([]Transaction, error) {
	id, err := uuid.Parse(accountID)
	if err != nil {
		return []Transaction{}, nil
	}
	rows, err := s.db.Query(ctx, `SELECT `+transactionColumns+`
        FROM transactions
        WHERE sender_id = $1 OR receiver_id = $1
        ORDER BY created_at DESC, seq DESC
        OFFSET $2 LIMIT $3`, id, offset, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make([]Transaction, 0, limit)
	for rows.Next() {
		t, err := scanTransaction(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, t)
	}
	return out, rows.Err()
}

// Transaction fetches a single ledger entry.
func (s *PostgresStore) Transaction(ctx context.Context, id string) (Transaction, error) {
	txID, err := uuid.Parse(id)
	if err != nil {
		return Transaction{}, ErrTransactionNotFound
	}
	row := s.db.QueryRow(ctx, `SELECT `+transactionColumns+` FROM transactions WHERE id = $1`, txID)
	t, err := scanTransaction(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return Transaction{}, ErrTransactionNotFound
	}
	return t, err
}

// ScheduleTransaction stores a pending deferred transfer.
func (s *PostgresStore) ScheduleTransaction(ctx context.Context, st ScheduledTransaction) error {
	id, err := uuid.Parse(st.ID)
	if err != nil {
		return err
	}
	senderID, err := uuid.Parse(st.SenderID)
	if err != nil {
		return ErrAccountNotFound
	}
	receiverID, err := uuid.Parse(st.ReceiverID)
	if err != nil {
		return ErrAccountNotFound
	}
	_, err = s.db.Exec(ctx, `INSERT INTO scheduled_transactions
        (id, sender_id, receiver_id, amount, fee, balance_before, balance_after, description, type, status, send_at, failure_reason, created_at)
        VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, '', $12)`,
		id, senderID, receiverID, st.Amount, st.Fee, st.BalanceBefore, st.BalanceAfter,
		st.Description, st.Type, st.Status, st.SendAt.UTC(), st.CreatedAt.UTC())
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == "23503" {
		return ErrAccountNotFound
	}
	return err
}

// ScheduledTransactions lists deferred transfers created by the sender, earliest first.
func (s *PostgresStore) ScheduledTransactions(ctx context.Context, senderID string, offset, limit int) ([]ScheduledTransaction, error) {
	id, err := uuid.Parse(senderID)
	if err != nil {
		return []ScheduledTransaction{}, nil
	}
	return s.queryScheduled(ctx, `SELECT `+scheduledColumns+`
        FROM scheduled_transactions
        WHERE sender_id = $1
        ORDER BY send_at ASC, created_at ASC
        OFFSET $2 LIMIT $3`, id, offset, limit)
}

// DueScheduled returns pending transfers whose send time has passed.
func (s *PostgresStore) DueScheduled(ctx context.Context, now time.Time, limit int) ([]ScheduledTransaction, error) {
	return s.queryScheduled(ctx, `SELECT `+scheduledColumns+`
        FROM scheduled_transactions
        WHERE status = $1 AND send_at <= $2
        ORDER BY send_at ASC
        LIMIT $3`, StatusPending, now.UTC(), limit)
}

// FailScheduled moves a pending scheduled transfer to FAILED.
func (s *PostgresStore) FailScheduled(ctx context.Context, id, reason string) error {
	schedID, err := uuid.Parse(id)
	if err != nil {
		return ErrTransactionNotFound
	}
	cmd, err := s.db.Exec(ctx, `UPDATE scheduled_transactions SET status = $1, failure_reason = $2
        WHERE id = $3 AND status = $4`, StatusFailed, reason, schedID, StatusPending)
	if err != nil {
		return err
	}
	if cmd.RowsAffected() == 0 {
		return ErrScheduledNotPending
	}
	return nil
}

func (s *PostgresStore) queryScheduled(ctx context.Context, query string, args ...any) ([]ScheduledTransaction, error) {
	rows, err := s.db.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make([]ScheduledTransaction, 0)
	for rows.Next() {
		var (
			st                       ScheduledTransaction
			id, senderID, receiverID uuid.UUID
			txID                     *uuid.UUID
			sendAt, createdAt        time.Time
		)
		if err := rows.Scan(&id, &senderID, &receiverID, &st.Amount, &st.Fee, &st.BalanceBefore, &st.BalanceAfter,
			&st.Description, &st.Type, &st.Status, &sendAt, &txID, &st.FailureReason, &createdAt); err != nil {
			return nil, err
		}
		st.ID = id.String()
		st.SenderID = senderID.String()
		st.ReceiverID = receiverID.String()
		if txID != nil {
			st.TransactionID = txID.String()
		}
		st.SendAt = sendAt.UTC()
		st.CreatedAt = createdAt.UTC()
		out = append(out, st)
	}
	return out, rows.Err()
}

type pgTx struct {
	tx pgx.Tx
}

func (t *pgTx) LockAccount(ctx context.Context, id string) (Account, error) {
	accountID, err := uuid.Parse(id)
	if err != nil {
		return Account{}, ErrAccountNotFound
	}
	row := t.tx.QueryRow(ctx, `SELECT id, balance, status, created_at FROM accounts WHERE id = $1 FOR UPDATE`, accountID)
	return scanAccount(row)
}

func (t *pgTx) SetBalance(ctx context.Context, id string, balance decimal.Decimal) error {
	accountID, err := uuid.Parse(id)
	if err != nil {
		return ErrAccountNotFound
	}
	cmd, err := t.tx.Exec(ctx, `UPDATE accounts SET balance = $1 WHERE id = $2`, balance, accountID)
	if err != nil {
		return err
	}
	if cmd.RowsAffected() == 0 {
		return ErrAccountNotFound
	}
	return nil
}

func (t *pgTx) InsertTransaction(ctx context.Context, tx Transaction) error {
	id, err := uuid.Parse(tx.ID)
	if err != nil {
		return err
	}
	senderID, err := uuid.Parse(tx.SenderID)
	if err != nil {
		return ErrAccountNotFound
	}
	receiverID, err := uuid.Parse(tx.ReceiverID)
	if err != nil {
		return ErrAccountNotFound
	}
	_, err = t.tx.Exec(ctx, `INSERT INTO transactions (`+transactionColumns+`)
        VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)`,
		id, senderID, receiverID, tx.Amount, tx.Fee, tx.BalanceBefore, tx.BalanceAfter,
		tx.Description, tx.Type, tx.Status, tx.CreatedAt.UTC())
	return err
}

func (t *pgTx) CompleteScheduled(ctx context.Context, id string, tx Transaction) error {
	schedID, err := uuid.Parse(id)
	if err != nil {
		return ErrTransactionNotFound
	}
	txID, err := uuid.Parse(tx.ID)
	if err != nil {
		return err
	}
	cmd, err := t.tx.Exec(ctx, `UPDATE scheduled_transactions
        SET status = $1, transaction_id = $2, fee = $3, balance_before = $4, balance_after = $5
        WHERE id = $6 AND status = $7`,
		StatusCompleted, txID, tx.Fee, tx.BalanceBefore, tx.BalanceAfter, schedID, StatusPending)
	if err != nil {
		return err
	}
	if cmd.RowsAffected() == 0 {
		return ErrScheduledNotPending
	}
	return nil
}

func scanAccount(row pgx.Row) (Account, error) {
	var (
		acct      Account
		id        uuid.UUID
		createdAt time.Time
	)
	if err := row.Scan(&id, &acct.Balance, &acct.Status, &createdAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Account{}, ErrAccountNotFound
		}
		return Account{}, err
	}
	acct.ID = id.String()
	acct.CreatedAt = createdAt.UTC()
	return acct, nil
}

func scanTransaction(row pgx.Row) (Transaction, error) {
	var (
		t                        Transaction
		id, senderID, receiverID uuid.UUID
		createdAt                time.Time
	)
	if err := row.Scan(&id, &senderID, &receiverID, &t.Amount, &t.Fee, &t.BalanceBefore, &t.BalanceAfter,
		&t.Description, &t.Type, &t.Status, &createdAt); err != nil {
		return Transaction{}, err
	}
	t.ID = id.String()
	t.SenderID = senderID.String()
	t.ReceiverID = receiverID.String()
	t.CreatedAt = createdAt.UTC()
	return t, nil
}
