package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// LedgerRepo is append-only. Entries are never updated or deleted; the sum
// of all entries per (user, currency) must always equal the wallet balance
// for that currency.
type LedgerRepo struct {
	pool *pgxpool.Pool
}

type LedgerEntryRecord struct {
	ID          int64
	UserID      int64
	Kind        string
	Currency    string
	Amount      int64
	Description string
	ReferenceID *string
	CreatedAt   time.Time
}

func NewLedgerRepo(pool *pgxpool.Pool) *LedgerRepo {
	return &LedgerRepo{pool: pool}
}

func (r *LedgerRepo) Append(ctx context.Context, tx pgx.Tx, entry LedgerEntryRecord) (LedgerEntryRecord, error) {
	if entry.UserID <= 0 || entry.Kind == "" || entry.Currency == "" || entry.Amount == 0 {
		return LedgerEntryRecord{}, fmt.Errorf("invalid ledger entry payload")
	}
	if tx == nil {
		return LedgerEntryRecord{}, fmt.Errorf("transaction is required")
	}

	err := tx.QueryRow(ctx, `
INSERT INTO ledger_entries (user_id, kind, currency, amount, description, reference_id, created_at)
VALUES ($1, $2, $3, $4, $5, $6, NOW())
RETURNING id, created_at
`, entry.UserID, entry.Kind, entry.Currency, entry.Amount, entry.Description, entry.ReferenceID).
		Scan(&entry.ID, &entry.CreatedAt)
	if err != nil {
		return LedgerEntryRecord{}, fmt.Errorf("append ledger entry: %w", err)
	}

	return entry, nil
}

func (r *LedgerRepo) ListByUser(ctx context.Context, userID int64, limit, offset int) ([]LedgerEntryRecord, error) {
	if userID <= 0 {
		return nil, fmt.Errorf("invalid user id")
	}
	if limit <= 0 || limit > 100 {
		limit = 50
	}
	if offset < 0 {
		offset = 0
	}
	if r.pool == nil {
		return nil, fmt.Errorf("postgres pool is nil")
	}

	rows, err := r.pool.Query(ctx, `
SELECT id, user_id, kind, currency, amount, description, reference_id, created_at
FROM ledger_entries
WHERE user_id = $1
ORDER BY id DESC
LIMIT $2 OFFSET $3
`, userID, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("list ledger entries: %w", err)
	}
	defer rows.Close()

	var out []LedgerEntryRecord
	for rows.Next() {
		var rec LedgerEntryRecord
		if err := rows.Scan(
			&rec.ID,
			&rec.UserID,
			&rec.Kind,
			&rec.Currency,
			&rec.Amount,
			&rec.Description,
			&rec.ReferenceID,
			&rec.CreatedAt,
		); err != nil {
			return nil, fmt.Errorf("scan ledger entry: %w", err)
		}
		out = append(out, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate ledger entries: %w", err)
	}

	return out, nil
}

// SumByUserAndCurrency is the reconciliation query. Not on any hot path.
func (r *LedgerRepo) SumByUserAndCurrency(ctx context.Context, userID int64, currency string) (int64, error) {
	if userID <= 0 || currency == "" {
		return 0, fmt.Errorf("invalid ledger sum payload")
	}
	if r.pool == nil {
		return 0, fmt.Errorf("postgres pool is nil")
	}

	var sum int64
	err := r.pool.QueryRow(ctx, `
SELECT COALESCE(SUM(amount), 0)
FROM ledger_entries
WHERE user_id = $1 AND currency = $2
`, userID, currency).Scan(&sum)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return 0, nil
		}
		return 0, fmt.Errorf("sum ledger entries: %w", err)
	}

	return sum, nil
}
