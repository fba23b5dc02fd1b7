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
	ErrPurchaseNotFound   = errors.New("pack purchase not found")
	ErrProviderTxConflict = errors.New("provider tx id already bound")
)

const (
	PurchaseStatusPending   = "pending"
	PurchaseStatusConfirmed = "confirmed"
)

type PurchaseRepo struct {
	pool *pgxpool.Pool
}

type PackPurchaseRecord struct {
	ID             int64
	UserID         int64
	SKU            string
	Provider       string
	ProviderTxID   *string
	AmountPatinhas int64
	Status         string
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

func NewPurchaseRepo(pool *pgxpool.Pool) *PurchaseRepo {
	return &PurchaseRepo{pool: pool}
}

func (r *PurchaseRepo) CreatePending(ctx context.Context, userID int64, sku, provider string, amountPatinhas int64) (PackPurchaseRecord, error) {
	if userID <= 0 || strings.TrimSpace(sku) == "" || strings.TrimSpace(provider) == "" || amountPatinhas <= 0 {
		return PackPurchaseRecord{}, fmt.Errorf("invalid pack purchase payload")
	}
	if r.pool == nil {
		return PackPurchaseRecord{}, fmt.Errorf("postgres pool is nil")
	}

	rec, err := scanPackPurchaseRow(r.pool.QueryRow(ctx, `
INSERT INTO pack_purchases (user_id, sku, provider, amount_patinhas, status, created_at, updated_at)
VALUES ($1, $2, $3, $4, $5, NOW(), NOW())
RETURNING id, user_id, sku, provider, provider_tx_id, amount_patinhas, status, created_at, updated_at
`, userID, sku, provider, amountPatinhas, PurchaseStatusPending))
	if err != nil {
		return PackPurchaseRecord{}, fmt.Errorf("create pending pack purchase: %w", err)
	}

	return rec, nil
}

func (r *PurchaseRepo) FindByProviderTx(ctx context.Context, provider, providerTxID string) (PackPurchaseRecord, error) {
	if strings.TrimSpace(provider) == "" || strings.TrimSpace(providerTxID) == "" {
		return PackPurchaseRecord{}, fmt.Errorf("invalid provider tx lookup payload")
	}
	if r.pool == nil {
		return PackPurchaseRecord{}, fmt.Errorf("postgres pool is nil")
	}

	rec, err := scanPackPurchaseRow(r.pool.QueryRow(ctx, `
SELECT id, user_id, sku, provider, provider_tx_id, amount_patinhas, status, created_at, updated_at
FROM pack_purchases
WHERE provider = $1 AND provider_tx_id = $2
`, provider, providerTxID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return PackPurchaseRecord{}, ErrPurchaseNotFound
		}
		return PackPurchaseRecord{}, fmt.Errorf("find pack purchase by provider tx: %w", err)
	}

	return rec, nil
}

func (r *PurchaseRepo) LockByID(ctx context.Context, tx pgx.Tx, purchaseID int64) (PackPurchaseRecord, error) {
	if purchaseID <= 0 {
		return PackPurchaseRecord{}, fmt.Errorf("invalid purchase id")
	}
	if tx == nil {
		return PackPurchaseRecord{}, fmt.Errorf("transaction is required")
	}

	rec, err := scanPackPurchaseRow(tx.QueryRow(ctx, `
SELECT id, user_id, sku, provider, provider_tx_id, amount_patinhas, status, created_at, updated_at
FROM pack_purchases
WHERE id = $1
FOR UPDATE
`, purchaseID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return PackPurchaseRecord{}, ErrPurchaseNotFound
		}
		return PackPurchaseRecord{}, fmt.Errorf("lock pack purchase: %w", err)
	}

	return rec, nil
}

// MarkConfirmed transitions pending -> confirmed and binds the provider tx
// id. Returns false when the row was already confirmed, which is the
// idempotent webhook-replay path.
func (r *PurchaseRepo) MarkConfirmed(ctx context.Context, tx pgx.Tx, purchaseID int64, providerTxID string) (bool, error) {
	if purchaseID <= 0 || strings.TrimSpace(providerTxID) == "" {
		return false, fmt.Errorf("invalid purchase confirm payload")
	}
	if tx == nil {
		return false, fmt.Errorf("transaction is required")
	}

	result, err := tx.Exec(ctx, `
UPDATE pack_purchases
SET status = $2, provider_tx_id = $3, updated_at = NOW()
WHERE id = $1 AND status = $4
`, purchaseID, PurchaseStatusConfirmed, providerTxID, PurchaseStatusPending)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return false, ErrProviderTxConflict
		}
		return false, fmt.Errorf("confirm pack purchase: %w", err)
	}

	return result.RowsAffected() > 0, nil
}

type packPurchaseRowScanner interface {
	Scan(dest ...any) error
}

func scanPackPurchaseRow(row packPurchaseRowScanner) (PackPurchaseRecord, error) {
	var rec PackPurchaseRecord
	err := row.Scan(
		&rec.ID,
		&rec.UserID,
		&rec.SKU,
		&rec.Provider,
		&rec.ProviderTxID,
		&rec.AmountPatinhas,
		&rec.Status,
		&rec.CreatedAt,
		&rec.UpdatedAt,
	)
	if err != nil {
		return PackPurchaseRecord{}, err
	}
	return rec, nil
}
