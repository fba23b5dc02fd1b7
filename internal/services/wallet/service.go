package wallet

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"

	"github.com/4kciclone/gato-comics-sub000/internal/domain/enums"
	"github.com/4kciclone/gato-comics-sub000/internal/domain/model"
	pgrepo "github.com/4kciclone/gato-comics-sub000/internal/repo/postgres"
)

var (
	ErrValidation      = errors.New("validation error")
	ErrAccountNotFound = errors.New("account not found")
)

type WalletStore interface {
	Get(ctx context.Context, userID int64) (pgrepo.WalletRecord, error)
	GetForUpdate(ctx context.Context, tx pgx.Tx, userID int64) (pgrepo.WalletRecord, error)
	SetPatinhas(ctx context.Context, tx pgx.Tx, userID, balance int64) error
}

type LedgerStore interface {
	Append(ctx context.Context, tx pgx.Tx, entry pgrepo.LedgerEntryRecord) (pgrepo.LedgerEntryRecord, error)
	ListByUser(ctx context.Context, userID int64, limit, offset int) ([]pgrepo.LedgerEntryRecord, error)
	SumByUserAndCurrency(ctx context.Context, userID int64, currency string) (int64, error)
}

type Service struct {
	wallets WalletStore
	ledger  LedgerStore
	runTx   pgrepo.TxRunner
}

type AdjustRequest struct {
	UserID      int64
	NewPatinhas int64
	Actor       string
	Reason      string
}

// ReconcileReport compares the wallet columns against the signed sum of the
// ledger, per currency. A mismatch means an invariant was broken somewhere.
type ReconcileReport struct {
	UserID         int64
	Patinhas       int64
	LedgerPatinhas int64
	LitePatinhas   int64
	LedgerLite     int64
	Balanced       bool
}

func NewService(run pgrepo.TxRunner, wallets WalletStore, ledger LedgerStore) *Service {
	return &Service{
		wallets: wallets,
		ledger:  ledger,
		runTx:   run,
	}
}

func (s *Service) Balances(ctx context.Context, userID int64) (model.Wallet, error) {
	if userID <= 0 {
		return model.Wallet{}, ErrValidation
	}
	if s.wallets == nil {
		return model.Wallet{}, fmt.Errorf("wallet store is nil")
	}

	wallet, err := s.wallets.Get(ctx, userID)
	if err != nil {
		if errors.Is(err, pgrepo.ErrWalletNotFound) {
			return model.Wallet{}, ErrAccountNotFound
		}
		return model.Wallet{}, err
	}

	return snapshotOf(wallet), nil
}

// Adjust sets the permanent balance to an absolute value and records the
// signed delta in the ledger with the acting admin's name. An adjustment
// without a ledger entry would silently break reconciliation, so the two
// writes share one transaction.
func (s *Service) Adjust(ctx context.Context, req AdjustRequest) (model.Wallet, error) {
	req.Actor = strings.TrimSpace(req.Actor)
	if req.UserID <= 0 || req.NewPatinhas < 0 || req.Actor == "" {
		return model.Wallet{}, ErrValidation
	}
	if s.wallets == nil || s.ledger == nil {
		return model.Wallet{}, fmt.Errorf("wallet dependencies are not configured")
	}

	var result model.Wallet
	err := s.runTx(ctx, func(txCtx context.Context, tx pgx.Tx) error {
		wallet, err := s.wallets.GetForUpdate(txCtx, tx, req.UserID)
		if err != nil {
			if errors.Is(err, pgrepo.ErrWalletNotFound) {
				return ErrAccountNotFound
			}
			return err
		}

		delta := req.NewPatinhas - wallet.Patinhas
		if delta == 0 {
			result = snapshotOf(wallet)
			return nil
		}

		if err := s.wallets.SetPatinhas(txCtx, tx, req.UserID, req.NewPatinhas); err != nil {
			return err
		}

		description := "admin adjustment by " + req.Actor
		if reason := strings.TrimSpace(req.Reason); reason != "" {
			description += ": " + reason
		}
		if _, err := s.ledger.Append(txCtx, tx, pgrepo.LedgerEntryRecord{
			UserID:      req.UserID,
			Kind:        string(enums.LedgerKindAdminAdjustment),
			Currency:    string(enums.CurrencyPatinhas),
			Amount:      delta,
			Description: description,
		}); err != nil {
			return err
		}

		wallet.Patinhas = req.NewPatinhas
		result = snapshotOf(wallet)
		return nil
	})
	if err != nil {
		return model.Wallet{}, err
	}

	return result, nil
}

func (s *Service) Ledger(ctx context.Context, userID int64, limit, offset int) ([]model.LedgerEntry, error) {
	if userID <= 0 {
		return nil, ErrValidation
	}
	if s.ledger == nil {
		return nil, fmt.Errorf("ledger store is nil")
	}

	records, err := s.ledger.ListByUser(ctx, userID, limit, offset)
	if err != nil {
		return nil, err
	}

	entries := make([]model.LedgerEntry, 0, len(records))
	for _, r := range records {
		entries = append(entries, model.LedgerEntry{
			ID:          r.ID,
			UserID:      r.UserID,
			Kind:        enums.LedgerKind(r.Kind),
			Currency:    enums.Currency(r.Currency),
			Amount:      r.Amount,
			Description: r.Description,
			ReferenceID: r.ReferenceID,
			CreatedAt:   r.CreatedAt,
		})
	}
	return entries, nil
}

func (s *Service) Reconcile(ctx context.Context, userID int64) (ReconcileReport, error) {
	if userID <= 0 {
		return ReconcileReport{}, ErrValidation
	}
	if s.wallets == nil || s.ledger == nil {
		return ReconcileReport{}, fmt.Errorf("wallet dependencies are not configured")
	}

	wallet, err := s.wallets.Get(ctx, userID)
	if err != nil {
		if errors.Is(err, pgrepo.ErrWalletNotFound) {
			return ReconcileReport{}, ErrAccountNotFound
		}
		return ReconcileReport{}, err
	}

	sumPatinhas, err := s.ledger.SumByUserAndCurrency(ctx, userID, string(enums.CurrencyPatinhas))
	if err != nil {
		return ReconcileReport{}, err
	}
	sumLite, err := s.ledger.SumByUserAndCurrency(ctx, userID, string(enums.CurrencyLitePatinhas))
	if err != nil {
		return ReconcileReport{}, err
	}

	return ReconcileReport{
		UserID:         userID,
		Patinhas:       wallet.Patinhas,
		LedgerPatinhas: sumPatinhas,
		LitePatinhas:   wallet.LitePatinhas,
		LedgerLite:     sumLite,
		Balanced:       wallet.Patinhas == sumPatinhas && wallet.LitePatinhas == sumLite,
	}, nil
}

// Raw returns the underlying wallet record, for callers that need the ad
// counter fields alongside the balances.
func (s *Service) Raw(ctx context.Context, userID int64) (pgrepo.WalletRecord, error) {
	if userID <= 0 {
		return pgrepo.WalletRecord{}, ErrValidation
	}
	wallet, err := s.wallets.Get(ctx, userID)
	if err != nil {
		if errors.Is(err, pgrepo.ErrWalletNotFound) {
			return pgrepo.WalletRecord{}, ErrAccountNotFound
		}
		return pgrepo.WalletRecord{}, err
	}
	return wallet, nil
}

func snapshotOf(w pgrepo.WalletRecord) model.Wallet {
	return model.Wallet{
		UserID:       w.UserID,
		Patinhas:     w.Patinhas,
		LitePatinhas: w.LitePatinhas,
		DailyAdCount: w.DailyAdCount,
		LastAdAt:     w.LastAdAt,
	}
}
