package postgres

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

var (
	ErrUserNotFound  = errors.New("user not found")
	ErrUsernameTaken = errors.New("username already taken")
)

type UserRepo struct {
	pool *pgxpool.Pool
}

type UserRecord struct {
	ID           int64
	Username     string
	PasswordHash string
	Role         string
	CreatedAt    time.Time
}

func NewUserRepo(pool *pgxpool.Pool) *UserRepo {
	return &UserRepo{pool: pool}
}

func (r *UserRepo) Create(ctx context.Context, tx pgx.Tx, username, passwordHash, role string) (UserRecord, error) {
	username = strings.ToLower(strings.TrimSpace(username))
	if username == "" || passwordHash == "" || role == "" {
		return UserRecord{}, fmt.Errorf("invalid user create payload")
	}
	if tx == nil {
		return UserRecord{}, fmt.Errorf("transaction is required")
	}

	var rec UserRecord
	err := tx.QueryRow(ctx, `
INSERT INTO users (username, password_hash, role, created_at)
VALUES ($1, $2, $3, NOW())
RETURNING id, username, password_hash, role, created_at
`, username, passwordHash, role).
		Scan(&rec.ID, &rec.Username, &rec.PasswordHash, &rec.Role, &rec.CreatedAt)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return UserRecord{}, ErrUsernameTaken
		}
		return UserRecord{}, fmt.Errorf("create user: %w", err)
	}

	return rec, nil
}

func (r *UserRepo) FindByUsername(ctx context.Context, username string) (UserRecord, error) {
	username = strings.ToLower(strings.TrimSpace(username))
	if username == "" {
		return UserRecord{}, fmt.Errorf("invalid username")
	}
	if r.pool == nil {
		return UserRecord{}, fmt.Errorf("postgres pool is nil")
	}

	var rec UserRecord
	err := r.pool.QueryRow(ctx, `
SELECT id, username, password_hash, role, created_at
FROM users
WHERE username = $1
`, username).Scan(&rec.ID, &rec.Username, &rec.PasswordHash, &rec.Role, &rec.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return UserRecord{}, ErrUserNotFound
		}
		return UserRecord{}, fmt.Errorf("find user by username: %w", err)
	}

	return rec, nil
}

func (r *UserRepo) FindByID(ctx context.Context, userID int64) (UserRecord, error) {
	if userID <= 0 {
		return UserRecord{}, fmt.Errorf("invalid user id")
	}
	if r.pool == nil {
		return UserRecord{}, fmt.Errorf("postgres pool is nil")
	}

	var rec UserRecord
	err := r.pool.QueryRow(ctx, `
SELECT id, username, password_hash, role, created_at
FROM users
WHERE id = $1
`, userID).Scan(&rec.ID, &rec.Username, &rec.PasswordHash, &rec.Role, &rec.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return UserRecord{}, ErrUserNotFound
		}
		return UserRecord{}, fmt.Errorf("find user by id: %w", err)
	}

	return rec, nil
}
