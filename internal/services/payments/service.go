package payments

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"

	"github.com/4kciclone/gato-comics-sub000/internal/domain/enums"
	pgrepo "github.com/4kciclone/gato-comics-sub000/internal/repo/postgres"
)

var (
	ErrValidation          = errors.New("validation error")
	ErrUnsupportedSKU      = errors.New("unsupported pack sku")
	ErrUnsupportedProvider = errors.New("unsupported payment provider")
	ErrPurchaseNotFound    = errors.New("purchase not found")
)

var supportedProviders = map[string]struct{}{
	"stripe": {},
	"pix":    {},
}

type PurchaseStore interface {
	CreatePending(ctx context.Context, userID int64, sku, provider string, amountPatinhas int64) (pgrepo.PackPurchaseRecord, error)
	FindByProviderTx(ctx context.Context, provider, providerTxID string) (pgrepo.PackPurchaseRecord, error)
	LockByID(ctx context.Context, tx pgx.Tx, purchaseID int64) (pgrepo.PackPurchaseRecord, error)
	MarkConfirmed(ctx context.Context, tx pgx.Tx, purchaseID int64, providerTxID string) (bool, error)
}

type WalletStore interface {
	CreditPatinhas(ctx context.Context, tx pgx.Tx, userID, amount int64) (int64, error)
}

type LedgerStore interface {
	Append(ctx context.Context, tx pgx.Tx, entry pgrepo.LedgerEntryRecord) (pgrepo.LedgerEntryRecord, error)
}

type Service struct {
	purchases PurchaseStore
	wallets   WalletStore
	ledger    LedgerStore
	runTx     pgrepo.TxRunner
}

type CreateResult struct {
	PurchaseID     int64
	SKU            enums.PackSKU
	Provider       string
	AmountPatinhas int64
	Status         string
}

type WebhookInput struct {
	PurchaseID   int64
	Provider     string
	ProviderTxID string
}

type WebhookResult struct {
	PurchaseID       int64
	UserID           int64
	AmountPatinhas   int64
	NewPatinhas      int64
	AlreadyProcessed bool
}

func NewService(run pgrepo.TxRunner, purchases PurchaseStore, wallets WalletStore, ledger LedgerStore) *Service {
	return &Service{
		purchases: purchases,
		wallets:   wallets,
		ledger:    ledger,
		runTx:     run,
	}
}

// Create records a pending purchase. Nothing is credited until the provider
// webhook confirms payment.
func (s *Service) Create(ctx context.Context, userID int64, sku enums.PackSKU, provider string) (CreateResult, error) {
	if userID <= 0 {
		return CreateResult{}, ErrValidation
	}
	if !sku.Valid() {
		return CreateResult{}, ErrUnsupportedSKU
	}
	provider = strings.ToLower(strings.TrimSpace(provider))
	if _, ok := supportedProviders[provider]; !ok {
		return CreateResult{}, ErrUnsupportedProvider
	}
	if s.purchases == nil {
		return CreateResult{}, fmt.Errorf("purchase store is nil")
	}

	record, err := s.purchases.CreatePending(ctx, userID, string(sku), provider, sku.Patinhas())
	if err != nil {
		return CreateResult{}, err
	}

	return CreateResult{
		PurchaseID:     record.ID,
		SKU:            sku,
		Provider:       record.Provider,
		AmountPatinhas: record.AmountPatinhas,
		Status:         record.Status,
	}, nil
}

// ConfirmWebhook credits a confirmed purchase exactly once. Provider
// retries are expected, so a transaction id that was already recorded, or a
// purchase already marked confirmed, returns success without a second
// credit.
func (s *Service) ConfirmWebhook(ctx context.Context, in WebhookInput) (WebhookResult, error) {
	in.Provider = strings.ToLower(strings.TrimSpace(in.Provider))
	in.ProviderTxID = strings.TrimSpace(in.ProviderTxID)
	if in.PurchaseID <= 0 || in.ProviderTxID == "" {
		return WebhookResult{}, ErrValidation
	}
	if _, ok := supportedProviders[in.Provider]; !ok {
		return WebhookResult{}, ErrUnsupportedProvider
	}
	if s.purchases == nil || s.wallets == nil || s.ledger == nil {
		return WebhookResult{}, fmt.Errorf("payment dependencies are not configured")
	}

	if existing, err := s.purchases.FindByProviderTx(ctx, in.Provider, in.ProviderTxID); err == nil {
		return WebhookResult{
			PurchaseID:       existing.ID,
			UserID:           existing.UserID,
			AmountPatinhas:   existing.AmountPatinhas,
			AlreadyProcessed: true,
		}, nil
	} else if !errors.Is(err, pgrepo.ErrPurchaseNotFound) {
		return WebhookResult{}, err
	}

	var result WebhookResult
	err := s.runTx(ctx, func(txCtx context.Context, tx pgx.Tx) error {
		purchase, err := s.purchases.LockByID(txCtx, tx, in.PurchaseID)
		if err != nil {
			if errors.Is(err, pgrepo.ErrPurchaseNotFound) {
				return ErrPurchaseNotFound
			}
			return err
		}
		if purchase.Provider != in.Provider {
			return ErrValidation
		}
		if purchase.Status == pgrepo.PurchaseStatusConfirmed {
			result = WebhookResult{
				PurchaseID:       purchase.ID,
				UserID:           purchase.UserID,
				AmountPatinhas:   purchase.AmountPatinhas,
				AlreadyProcessed: true,
			}
			return nil
		}

		changed, err := s.purchases.MarkConfirmed(txCtx, tx, purchase.ID, in.ProviderTxID)
		if err != nil {
			if errors.Is(err, pgrepo.ErrProviderTxConflict) {
				result = WebhookResult{
					PurchaseID:       purchase.ID,
					UserID:           purchase.UserID,
					AmountPatinhas:   purchase.AmountPatinhas,
					AlreadyProcessed: true,
				}
				return nil
			}
			return err
		}
		if !changed {
			result = WebhookResult{
				PurchaseID:       purchase.ID,
				UserID:           purchase.UserID,
				AmountPatinhas:   purchase.AmountPatinhas,
				AlreadyProcessed: true,
			}
			return nil
		}

		newBalance, err := s.wallets.CreditPatinhas(txCtx, tx, purchase.UserID, purchase.AmountPatinhas)
		if err != nil {
			return err
		}

		ref := in.Provider + ":" + in.ProviderTxID
		if _, err := s.ledger.Append(txCtx, tx, pgrepo.LedgerEntryRecord{
			UserID:      purchase.UserID,
			Kind:        string(enums.LedgerKindPurchasePack),
			Currency:    string(enums.CurrencyPatinhas),
			Amount:      purchase.AmountPatinhas,
			Description: "pack purchase " + purchase.SKU,
			ReferenceID: &ref,
		}); err != nil {
			return err
		}

		result = WebhookResult{
			PurchaseID:     purchase.ID,
			UserID:         purchase.UserID,
			AmountPatinhas: purchase.AmountPatinhas,
			NewPatinhas:    newBalance,
		}
		return nil
	})
	if err != nil {
		return WebhookResult{}, err
	}

	return result, nil
}
