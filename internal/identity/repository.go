package identity

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

var (
	// ErrUserNotFound is returned when no user matches.
	ErrUserNotFound = errors.New("user not found")
	// ErrUserExists is returned when a live user already holds the username or email.
	ErrUserExists = errors.New("user already exists with this username or email")
)

// Repository persists users.
type Repository interface {
	Create(ctx context.Context, user User) error
	FindByID(ctx context.Context, id string) (User, error)
	// FindByEmail only matches users that have not been deleted.
	FindByEmail(ctx context.Context, email string) (User, error)
	// FindLive returns a non-deleted user holding either the username or the email.
	FindLive(ctx context.Context, username, email string) (User, error)
	Update(ctx context.Context, user User) error
}

// PostgresRepository implements Repository using PostgreSQL.
type PostgresRepository struct {
	db *pgxpool.Pool
}

// NewPostgresRepository builds a Postgres-backed identity repository.
func NewPostgresRepository(db *pgxpool.Pool) *PostgresRepository {
	return &PostgresRepository{db: db}
}

const userColumns = `id, first_name, last_name, username, email, password_hash, date_of_birth, account_type, status, token_version, created_at`

// Create inserts a new user.
func (r *PostgresRepository) Create(ctx context.Context, user User) error {
	userID, err := uuid.Parse(user.ID)
	if err != nil {
		return err
	}
	_, err = r.db.Exec(ctx, `INSERT INTO users (`+userColumns+`, verified, deleted)
        VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)`,
		userID, user.FirstName, user.LastName, user.Username, user.Email, user.PasswordHash,
		user.DateOfBirth, string(user.AccountType), string(user.Status), user.TokenVersion, user.CreatedAt.UTC(),
		user.Verified(), user.Deleted())
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == "23505" {
		return ErrUserExists
	}
	return err
}

// FindByID fetches a user, deleted or not.
func (r *PostgresRepository) FindByID(ctx context.Context, id string) (User, error) {
	userID, err := uuid.Parse(id)
	if err != nil {
		return User{}, ErrUserNotFound
	}
	return scanUser(r.db.QueryRow(ctx, `SELECT `+userColumns+` FROM users WHERE id = $1`, userID))
}

// FindByEmail fetches a live user by email.
func (r *PostgresRepository) FindByEmail(ctx context.Context, email string) (User, error) {
	return scanUser(r.db.QueryRow(ctx, `SELECT `+userColumns+` FROM users WHERE email = $1 AND NOT deleted`, email))
}

// FindLive fetches a live user by username or email.
func (r *PostgresRepository) FindLive(ctx context.Context, username, email string) (User, error) {
	return scanUser(r.db.QueryRow(ctx, `SELECT `+userColumns+` FROM users
        WHERE (username = $1 OR email = $2) AND NOT deleted
        ORDER BY created_at LIMIT 1`, username, email))
}

// Update stores the mutable fields of user.
func (r *PostgresRepository) Update(ctx context.Context, user User) error {
	userID, err := uuid.Parse(user.ID)
	if err != nil {
		return ErrUserNotFound
	}
	cmd, err := r.db.Exec(ctx, `UPDATE users
        SET first_name = $2, last_name = $3, password_hash = $4, date_of_birth = $5,
            status = $6, token_version = $7, verified = $8, deleted = $9
        WHERE id = $1`,
		userID, user.FirstName, user.LastName, user.PasswordHash, user.DateOfBirth,
		string(user.Status), user.TokenVersion, user.Verified(), user.Deleted())
	if err != nil {
		return err
	}
	if cmd.RowsAffected() == 0 {
		return ErrUserNotFound
	}
	return nil
}

func scanUser(row pgx.Row) (User, error) {
	var (
		id          uuid.UUID
		createdAt   time.Time
		accountType string
		status      string
		user        User
	)
	err := row.Scan(&id, &user.FirstName, &user.LastName, &user.Username, &user.Email,
		&user.PasswordHash, &user.DateOfBirth, &accountType, &status, &user.TokenVersion, &createdAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return User{}, ErrUserNotFound
	}
	if err != nil {
		return User{}, err
	}
	user.ID = id.String()
	user.AccountType = AccountType(accountType)
	user.Status = Status(status)
	user.CreatedAt = createdAt.UTC()
	return user, nil
}
