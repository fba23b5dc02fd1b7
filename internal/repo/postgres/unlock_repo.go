package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

var (
	ErrUnlockNotFound = errors.New("chapter unlock not found")
	ErrUnlockExists   = errors.New("chapter unlock already exists")
)

type UnlockRepo struct {
	pool *pgxpool.Pool
}

type UnlockRecord struct {
	UserID    int64
	ChapterID int64
	Kind      string
	ExpiresAt *time.Time
	CreatedAt time.Time
}

func NewUnlockRepo(pool *pgxpool.Pool) *UnlockRepo {
	return &UnlockRepo{pool: pool}
}

func (r *UnlockRepo) Get(ctx context.Context, userID, chapterID int64) (UnlockRecord, error) {
	if userID <= 0 || chapterID <= 0 {
		return UnlockRecord{}, fmt.Errorf("invalid unlock lookup payload")
	}
	if r.pool == nil {
		return UnlockRecord{}, fmt.Errorf("postgres pool is nil")
	}

	rec, err := scanUnlockRow(r.pool.QueryRow(ctx, `
SELECT user_id, chapter_id, kind, expires_at, created_at
FROM chapter_unlocks
WHERE user_id = $1 AND chapter_id = $2
`, userID, chapterID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return UnlockRecord{}, ErrUnlockNotFound
		}
		return UnlockRecord{}, fmt.Errorf("get chapter unlock: %w", err)
	}

	return rec, nil
}

// GetForUpdate re-reads the unlock inside the grant transaction. Combined
// with the wallet row lock it makes the "already owned" check race-free: a
// second grant blocked on the wallet lock sees the first grant's row here.
func (r *UnlockRepo) GetForUpdate(ctx context.Context, tx pgx.Tx, userID, chapterID int64) (UnlockRecord, error) {
	if userID <= 0 || chapterID <= 0 {
		return UnlockRecord{}, fmt.Errorf("invalid unlock lookup payload")
	}
	if tx == nil {
		return UnlockRecord{}, fmt.Errorf("transaction is required")
	}

	rec, err := scanUnlockRow(tx.QueryRow(ctx, `
SELECT user_id, chapter_id, kind, expires_at, created_at
FROM chapter_unlocks
WHERE user_id = $1 AND chapter_id = $2
FOR UPDATE
`, userID, chapterID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return UnlockRecord{}, ErrUnlockNotFound
		}
		return UnlockRecord{}, fmt.Errorf("lock chapter unlock: %w", err)
	}

	return rec, nil
}

func (r *UnlockRepo) Insert(ctx context.Context, tx pgx.Tx, userID, chapterID int64, kind string, expiresAt *time.Time) (UnlockRecord, error) {
	if userID <= 0 || chapterID <= 0 || kind == "" {
		return UnlockRecord{}, fmt.Errorf("invalid unlock insert payload")
	}
	if tx == nil {
		return UnlockRecord{}, fmt.Errorf("transaction is required")
	}

	rec, err := scanUnlockRow(tx.QueryRow(ctx, `
INSERT INTO chapter_unlocks (user_id, chapter_id, kind, expires_at, created_at)
VALUES ($1, $2, $3, $4, NOW())
RETURNING user_id, chapter_id, kind, expires_at, created_at
`, userID, chapterID, kind, expiresAt))
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return UnlockRecord{}, ErrUnlockExists
		}
		return UnlockRecord{}, fmt.Errorf("insert chapter unlock: %w", err)
	}

	return rec, nil
}

// Delete removes an expired rental row so a fresh grant can replace it.
// Permanent unlocks are never deleted by the engine.
func (r *UnlockRepo) Delete(ctx context.Context, tx pgx.Tx, userID, chapterID int64) error {
	if userID <= 0 || chapterID <= 0 {
		return fmt.Errorf("invalid unlock delete payload")
	}
	if tx == nil {
		return fmt.Errorf("transaction is required")
	}

	if _, err := tx.Exec(ctx, `
DELETE FROM chapter_unlocks
WHERE user_id = $1 AND chapter_id = $2
`, userID, chapterID); err != nil {
		return fmt.Errorf("delete chapter unlock: %w", err)
	}

	return nil
}

func (r *UnlockRepo) ListByUser(ctx context.Context, userID int64, limit int) ([]UnlockRecord, error) {
	if userID <= 0 {
		return nil, fmt.Errorf("invalid user id")
	}
	if limit <= 0 || limit > 200 {
		limit = 200
	}
	if r.pool == nil {
		return nil, fmt.Errorf("postgres pool is nil")
	}

	rows, err := r.pool.Query(ctx, `
SELECT user_id, chapter_id, kind, expires_at, created_at
FROM chapter_unlocks
WHERE user_id = $1
ORDER BY created_at DESC
LIMIT $2
`, userID, limit)
	if err != nil {
		return nil, fmt.Errorf("list chapter unlocks: %w", err)
	}
	defer rows.Close()

	var out []UnlockRecord
	for rows.Next() {
		rec, err := scanUnlockRow(rows)
		if err != nil {
			return nil, fmt.Errorf("scan chapter unlock: %w", err)
		}
		out = append(out, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate chapter unlocks: %w", err)
	}

	return out, nil
}

// DeleteExpiredBefore prunes rental rows that expired before the cutoff.
// Used only by the cleanup job; logically-expired rentals are already
// treated as absent by access checks.
func (r *UnlockRepo) DeleteExpiredBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	if r.pool == nil {
		return 0, fmt.Errorf("postgres pool is nil")
	}

	result, err := r.pool.Exec(ctx, `
DELETE FROM chapter_unlocks
WHERE expires_at IS NOT NULL AND expires_at < $1
`, cutoff.UTC())
	if err != nil {
		return 0, fmt.Errorf("delete expired unlocks: %w", err)
	}

	return result.RowsAffected(), nil
}

type unlockRowScanner interface {
	Scan(dest ...any) error
}

func scanUnlockRow(row unlockRowScanner) (UnlockRecord, error) {
	var rec UnlockRecord
	if err := row.Scan(&rec.UserID, &rec.ChapterID, &rec.Kind, &rec.ExpiresAt, &rec.CreatedAt); err != nil {
		return UnlockRecord{}, err
	}
	return rec, nil
}
