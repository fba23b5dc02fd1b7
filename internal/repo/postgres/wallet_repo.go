package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

var (
	ErrWalletNotFound       = errors.New("wallet not found")
	ErrInsufficientPatinhas = errors.New("insufficient patinhas")
	ErrInsufficientLite     = errors.New("insufficient lite patinhas")
)

type WalletRepo struct {
	pool *pgxpool.Pool
}

type WalletRecord struct {
	UserID       int64
	Patinhas     int64
	LitePatinhas int64
	DailyAdCount int
	LastAdAt     *time.Time
}

func NewWalletRepo(pool *pgxpool.Pool) *WalletRepo {
	return &WalletRepo{pool: pool}
}

func (r *WalletRepo) Get(ctx context.Context, userID int64) (WalletRecord, error) {
	if userID <= 0 {
		return WalletRecord{}, fmt.Errorf("invalid user id")
	}
	if r.pool == nil {
		return WalletRecord{}, fmt.Errorf("postgres pool is nil")
	}

	var rec WalletRecord
	err := r.pool.QueryRow(ctx, `
SELECT user_id, patinhas, lite_patinhas, daily_ad_count, last_ad_at
FROM wallets
WHERE user_id = $1
`, userID).Scan(&rec.UserID, &rec.Patinhas, &rec.LitePatinhas, &rec.DailyAdCount, &rec.LastAdAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return WalletRecord{}, ErrWalletNotFound
		}
		return WalletRecord{}, fmt.Errorf("get wallet: %w", err)
	}

	return rec, nil
}

// GetForUpdate locks the wallet row for the rest of the transaction. Every
// balance-mutating operation takes this lock first, which serializes
// concurrent spends for the same user across server processes.
func (r *WalletRepo) GetForUpdate(ctx context.Context, tx pgx.Tx, userID int64) (WalletRecord, error) {
	if userID <= 0 {
		return WalletRecord{}, fmt.Errorf("invalid user id")
	}
	if tx == nil {
		return WalletRecord{}, fmt.Errorf("transaction is required")
	}

	var rec WalletRecord
	err := tx.QueryRow(ctx, `
SELECT user_id, patinhas, lite_patinhas, daily_ad_count, last_ad_at
FROM wallets
WHERE user_id = $1
FOR UPDATE
`, userID).Scan(&rec.UserID, &rec.Patinhas, &rec.LitePatinhas, &rec.DailyAdCount, &rec.LastAdAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return WalletRecord{}, ErrWalletNotFound
		}
		return WalletRecord{}, fmt.Errorf("lock wallet: %w", err)
	}

	return rec, nil
}

func (r *WalletRepo) Create(ctx context.Context, tx pgx.Tx, userID, signupBonus int64) (WalletRecord, error) {
	if userID <= 0 || signupBonus < 0 {
		return WalletRecord{}, fmt.Errorf("invalid wallet create payload")
	}
	if tx == nil {
		return WalletRecord{}, fmt.Errorf("transaction is required")
	}

	var rec WalletRecord
	err := tx.QueryRow(ctx, `
INSERT INTO wallets (user_id, patinhas, lite_patinhas, daily_ad_count, updated_at)
VALUES ($1, $2, 0, 0, NOW())
RETURNING user_id, patinhas, lite_patinhas, daily_ad_count, last_ad_at
`, userID, signupBonus).Scan(&rec.UserID, &rec.Patinhas, &rec.LitePatinhas, &rec.DailyAdCount, &rec.LastAdAt)
	if err != nil {
		return WalletRecord{}, fmt.Errorf("create wallet: %w", err)
	}

	return rec, nil
}

// DebitPatinhas subtracts amount from the permanent balance, guarded so the
// balance can never go negative. Returns the new balance.
func (r *WalletRepo) DebitPatinhas(ctx context.Context, tx pgx.Tx, userID, amount int64) (int64, error) {
	if userID <= 0 || amount <= 0 {
		return 0, fmt.Errorf("invalid patinhas debit payload")
	}
	if tx == nil {
		return 0, fmt.Errorf("transaction is required")
	}

	var balance int64
	err := tx.QueryRow(ctx, `
UPDATE wallets
SET patinhas = patinhas - $2, updated_at = NOW()
WHERE user_id = $1 AND patinhas >= $2
RETURNING patinhas
`, userID, amount).Scan(&balance)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return 0, ErrInsufficientPatinhas
		}
		return 0, fmt.Errorf("debit patinhas: %w", err)
	}

	return balance, nil
}

func (r *WalletRepo) DebitLite(ctx context.Context, tx pgx.Tx, userID, amount int64) (int64, error) {
	if userID <= 0 || amount <= 0 {
		return 0, fmt.Errorf("invalid lite debit payload")
	}
	if tx == nil {
		return 0, fmt.Errorf("transaction is required")
	}

	var balance int64
	err := tx.QueryRow(ctx, `
UPDATE wallets
SET lite_patinhas = lite_patinhas - $2, updated_at = NOW()
WHERE user_id = $1 AND lite_patinhas >= $2
RETURNING lite_patinhas
`, userID, amount).Scan(&balance)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return 0, ErrInsufficientLite
		}
		return 0, fmt.Errorf("debit lite patinhas: %w", err)
	}

	return balance, nil
}

func (r *WalletRepo) CreditPatinhas(ctx context.Context, tx pgx.Tx, userID, amount int64) (int64, error) {
	if userID <= 0 || amount <= 0 {
		return 0, fmt.Errorf("invalid patinhas credit payload")
	}
	if tx == nil {
		return 0, fmt.Errorf("transaction is required")
	}

	var balance int64
	err := tx.QueryRow(ctx, `
UPDATE wallets
SET patinhas = patinhas + $2, updated_at = NOW()
WHERE user_id = $1
RETURNING patinhas
`, userID, amount).Scan(&balance)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return 0, ErrWalletNotFound
		}
		return 0, fmt.Errorf("credit patinhas: %w", err)
	}

	return balance, nil
}

func (r *WalletRepo) SetPatinhas(ctx context.Context, tx pgx.Tx, userID, newBalance int64) error {
	if userID <= 0 || newBalance < 0 {
		return fmt.Errorf("invalid patinhas set payload")
	}
	if tx == nil {
		return fmt.Errorf("transaction is required")
	}

	result, err := tx.Exec(ctx, `
UPDATE wallets
SET patinhas = $2, updated_at = NOW()
WHERE user_id = $1
`, userID, newBalance)
	if err != nil {
		return fmt.Errorf("set patinhas: %w", err)
	}
	if result.RowsAffected() == 0 {
		return ErrWalletNotFound
	}

	return nil
}

// ApplyAdReward credits the lite balance and records the new daily counter
// and claim instant in one statement.
func (r *WalletRepo) ApplyAdReward(ctx context.Context, tx pgx.Tx, userID, reward int64, newCount int, claimedAt time.Time) (int64, error) {
	if userID <= 0 || reward <= 0 || newCount <= 0 {
		return 0, fmt.Errorf("invalid ad reward payload")
	}
	if tx == nil {
		return 0, fmt.Errorf("transaction is required")
	}

	var balance int64
	err := tx.QueryRow(ctx, `
UPDATE wallets
SET
	lite_patinhas = lite_patinhas + $2,
	daily_ad_count = $3,
	last_ad_at = $4,
	updated_at = NOW()
WHERE user_id = $1
RETURNING lite_patinhas
`, userID, reward, newCount, claimedAt.UTC()).Scan(&balance)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return 0, ErrWalletNotFound
		}
		return 0, fmt.Errorf("apply ad reward: %w", err)
	}

	return balance, nil
}
