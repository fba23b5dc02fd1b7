package entitlements

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/4kciclone/gato-comics-sub000/internal/domain/enums"
	"github.com/4kciclone/gato-comics-sub000/internal/domain/model"
	"github.com/4kciclone/gato-comics-sub000/internal/domain/rules"
	pgrepo "github.com/4kciclone/gato-comics-sub000/internal/repo/postgres"
)

var (
	ErrValidation      = errors.New("validation error")
	ErrAccountNotFound = errors.New("account not found")
	ErrChapterNotFound = errors.New("chapter not found")
)

// InsufficientFundsError reports which balance was short and by how much.
type InsufficientFundsError struct {
	Currency enums.Currency
	Required int64
	Balance  int64
}

func (e InsufficientFundsError) Error() string {
	return fmt.Sprintf("insufficient %s: need %d, have %d", e.Currency, e.Required, e.Balance)
}

func IsInsufficientFunds(err error) (*InsufficientFundsError, bool) {
	var ife InsufficientFundsError
	if errors.As(err, &ife) {
		return &ife, true
	}
	return nil, false
}

type ChapterStore interface {
	FindByID(ctx context.Context, chapterID int64) (pgrepo.ChapterRecord, error)
}

type WalletStore interface {
	GetForUpdate(ctx context.Context, tx pgx.Tx, userID int64) (pgrepo.WalletRecord, error)
	DebitPatinhas(ctx context.Context, tx pgx.Tx, userID, amount int64) (int64, error)
	DebitLite(ctx context.Context, tx pgx.Tx, userID, amount int64) (int64, error)
}

type UnlockStore interface {
	Get(ctx context.Context, userID, chapterID int64) (pgrepo.UnlockRecord, error)
	GetForUpdate(ctx context.Context, tx pgx.Tx, userID, chapterID int64) (pgrepo.UnlockRecord, error)
	Insert(ctx context.Context, tx pgx.Tx, userID, chapterID int64, kind string, expiresAt *time.Time) (pgrepo.UnlockRecord, error)
	Delete(ctx context.Context, tx pgx.Tx, userID, chapterID int64) error
}

type LedgerStore interface {
	Append(ctx context.Context, tx pgx.Tx, entry pgrepo.LedgerEntryRecord) (pgrepo.LedgerEntryRecord, error)
}

type Config struct {
	RentalCostLite int64
	RentalDuration time.Duration
}

type Service struct {
	chapters ChapterStore
	wallets  WalletStore
	unlocks  UnlockStore
	ledger   LedgerStore
	cfg      Config
	runTx    pgrepo.TxRunner
}

// Access is the outcome of a read-side check. Price is set when access is
// denied so the client can render the paywall without a second round trip.
type Access struct {
	Allowed   bool
	Price     int64
	Kind      enums.UnlockKind
	ExpiresAt *time.Time
}

// UnlockResult carries the authoritative post-transaction balances. Callers
// must not re-derive balances locally.
type UnlockResult struct {
	Patinhas     int64
	LitePatinhas int64
	Kind         enums.UnlockKind
	ExpiresAt    *time.Time
	AlreadyOwned bool
}

func NewService(run pgrepo.TxRunner, chapters ChapterStore, wallets WalletStore, unlocks UnlockStore, ledger LedgerStore, cfg Config) *Service {
	if cfg.RentalCostLite <= 0 {
		cfg.RentalCostLite = rules.RentalCostLite
	}
	if cfg.RentalDuration <= 0 {
		cfg.RentalDuration = rules.RentalDuration
	}

	return &Service{
		chapters: chapters,
		wallets:  wallets,
		unlocks:  unlocks,
		ledger:   ledger,
		cfg:      cfg,
		runTx:    run,
	}
}

// CheckAccess decides whether a (possibly anonymous) user may read a
// chapter. Pure read, safe at arbitrary concurrency. A rental whose expiry
// has passed is treated as absent even though its row may still exist.
func (s *Service) CheckAccess(ctx context.Context, userID *int64, chapterID int64, now time.Time) (Access, error) {
	if chapterID <= 0 {
		return Access{}, ErrValidation
	}
	if s.chapters == nil || s.unlocks == nil {
		return Access{}, fmt.Errorf("entitlement dependencies are not configured")
	}
	if now.IsZero() {
		now = time.Now()
	}

	chapter, err := s.chapters.FindByID(ctx, chapterID)
	if err != nil {
		if errors.Is(err, pgrepo.ErrChapterNotFound) {
			return Access{}, ErrChapterNotFound
		}
		return Access{}, err
	}

	price := effectivePrice(chapter)
	if price == 0 {
		return Access{Allowed: true}, nil
	}

	if userID == nil || *userID <= 0 {
		return Access{Allowed: false, Price: price}, nil
	}

	unlock, err := s.unlocks.Get(ctx, *userID, chapterID)
	if err != nil {
		if errors.Is(err, pgrepo.ErrUnlockNotFound) {
			return Access{Allowed: false, Price: price}, nil
		}
		return Access{}, err
	}

	held := unlockOf(unlock)
	if !held.Active(now) {
		return Access{Allowed: false, Price: price}, nil
	}
	return Access{Allowed: true, Kind: held.Kind, ExpiresAt: held.ExpiresAt}, nil
}

// Unlock charges the user and grants access in a single transaction. The
// wallet row lock taken first serializes concurrent unlocks for the same
// user, so the losing racer re-reads the winner's unlock row and takes the
// idempotent already-owned path instead of debiting a second time.
func (s *Service) Unlock(ctx context.Context, userID, chapterID int64, method enums.UnlockMethod, now time.Time) (UnlockResult, error) {
	if userID <= 0 || chapterID <= 0 || !method.Valid() {
		return UnlockResult{}, ErrValidation
	}
	if s.chapters == nil || s.wallets == nil || s.unlocks == nil || s.ledger == nil {
		return UnlockResult{}, fmt.Errorf("entitlement dependencies are not configured")
	}
	if now.IsZero() {
		now = time.Now()
	}
	now = now.UTC()

	chapter, err := s.chapters.FindByID(ctx, chapterID)
	if err != nil {
		if errors.Is(err, pgrepo.ErrChapterNotFound) {
			return UnlockResult{}, ErrChapterNotFound
		}
		return UnlockResult{}, err
	}
	// The price is quoted once, before the grant transaction, and charged as
	// quoted. A pricing update committing concurrently applies to later
	// unlocks only, so the buyer pays what the paywall showed them.
	price := effectivePrice(chapter)

	var result UnlockResult
	err = s.runTx(ctx, func(txCtx context.Context, tx pgx.Tx) error {
		wallet, err := s.wallets.GetForUpdate(txCtx, tx, userID)
		if err != nil {
			if errors.Is(err, pgrepo.ErrWalletNotFound) {
				return ErrAccountNotFound
			}
			return err
		}

		// Free chapters need no unlock row. Nothing is charged and nothing
		// is owned, so this is a plain no-op success.
		if price == 0 {
			result = UnlockResult{
				Patinhas:     wallet.Patinhas,
				LitePatinhas: wallet.LitePatinhas,
			}
			return nil
		}

		existing, err := s.unlocks.GetForUpdate(txCtx, tx, userID, chapterID)
		switch {
		case err == nil:
			if unlockOf(existing).Active(now) {
				result = UnlockResult{
					Patinhas:     wallet.Patinhas,
					LitePatinhas: wallet.LitePatinhas,
					Kind:         enums.UnlockKind(existing.Kind),
					ExpiresAt:    existing.ExpiresAt,
					AlreadyOwned: true,
				}
				return nil
			}
			// Expired rental: replace the row, never extend it.
			if err := s.unlocks.Delete(txCtx, tx, userID, chapterID); err != nil {
				return err
			}
		case errors.Is(err, pgrepo.ErrUnlockNotFound):
			// fresh grant
		default:
			return err
		}

		switch method {
		case enums.UnlockMethodPermanent:
			return s.grantPermanent(txCtx, tx, userID, chapterID, price, wallet, &result)
		case enums.UnlockMethodRental:
			return s.grantRental(txCtx, tx, userID, chapterID, now, wallet, &result)
		default:
			return ErrValidation
		}
	})
	if err != nil {
		if errors.Is(err, pgrepo.ErrUnlockExists) {
			// Lost an insert race despite the wallet lock. The debit was
			// rolled back with the transaction, so report the winner's grant.
			return s.alreadyOwned(ctx, userID, chapterID)
		}
		return UnlockResult{}, err
	}

	return result, nil
}

func (s *Service) alreadyOwned(ctx context.Context, userID, chapterID int64) (UnlockResult, error) {
	var result UnlockResult
	err := s.runTx(ctx, func(txCtx context.Context, tx pgx.Tx) error {
		wallet, err := s.wallets.GetForUpdate(txCtx, tx, userID)
		if err != nil {
			if errors.Is(err, pgrepo.ErrWalletNotFound) {
				return ErrAccountNotFound
			}
			return err
		}

		unlock, err := s.unlocks.GetForUpdate(txCtx, tx, userID, chapterID)
		if err != nil {
			return err
		}

		result = UnlockResult{
			Patinhas:     wallet.Patinhas,
			LitePatinhas: wallet.LitePatinhas,
			Kind:         enums.UnlockKind(unlock.Kind),
			ExpiresAt:    unlock.ExpiresAt,
			AlreadyOwned: true,
		}
		return nil
	})
	if err != nil {
		return UnlockResult{}, err
	}

	return result, nil
}

func (s *Service) grantPermanent(ctx context.Context, tx pgx.Tx, userID, chapterID, price int64, wallet pgrepo.WalletRecord, result *UnlockResult) error {
	newBalance, err := s.wallets.DebitPatinhas(ctx, tx, userID, price)
	if err != nil {
		if errors.Is(err, pgrepo.ErrInsufficientPatinhas) {
			return InsufficientFundsError{
				Currency: enums.CurrencyPatinhas,
				Required: price,
				Balance:  wallet.Patinhas,
			}
		}
		return err
	}

	unlock, err := s.unlocks.Insert(ctx, tx, userID, chapterID, string(enums.UnlockKindPermanent), nil)
	if err != nil {
		return err
	}

	ref := chapterRef(chapterID)
	if _, err := s.ledger.Append(ctx, tx, pgrepo.LedgerEntryRecord{
		UserID:      userID,
		Kind:        string(enums.LedgerKindSpentChapter),
		Currency:    string(enums.CurrencyPatinhas),
		Amount:      -price,
		Description: "chapter unlock",
		ReferenceID: &ref,
	}); err != nil {
		return err
	}

	*result = UnlockResult{
		Patinhas:     newBalance,
		LitePatinhas: wallet.LitePatinhas,
		Kind:         enums.UnlockKind(unlock.Kind),
	}
	return nil
}

func (s *Service) grantRental(ctx context.Context, tx pgx.Tx, userID, chapterID int64, now time.Time, wallet pgrepo.WalletRecord, result *UnlockResult) error {
	cost := s.cfg.RentalCostLite
	newBalance, err := s.wallets.DebitLite(ctx, tx, userID, cost)
	if err != nil {
		if errors.Is(err, pgrepo.ErrInsufficientLite) {
			return InsufficientFundsError{
				Currency: enums.CurrencyLitePatinhas,
				Required: cost,
				Balance:  wallet.LitePatinhas,
			}
		}
		return err
	}

	expiresAt := now.Add(s.cfg.RentalDuration)
	unlock, err := s.unlocks.Insert(ctx, tx, userID, chapterID, string(enums.UnlockKindRental), &expiresAt)
	if err != nil {
		return err
	}

	ref := chapterRef(chapterID)
	if _, err := s.ledger.Append(ctx, tx, pgrepo.LedgerEntryRecord{
		UserID:      userID,
		Kind:        string(enums.LedgerKindRentalSpend),
		Currency:    string(enums.CurrencyLitePatinhas),
		Amount:      -cost,
		Description: "chapter rental",
		ReferenceID: &ref,
	}); err != nil {
		return err
	}

	*result = UnlockResult{
		Patinhas:     wallet.Patinhas,
		LitePatinhas: newBalance,
		Kind:         enums.UnlockKind(unlock.Kind),
		ExpiresAt:    unlock.ExpiresAt,
	}
	return nil
}

func unlockOf(rec pgrepo.UnlockRecord) model.ChapterUnlock {
	return model.ChapterUnlock{
		UserID:    rec.UserID,
		ChapterID: rec.ChapterID,
		Kind:      enums.UnlockKind(rec.Kind),
		ExpiresAt: rec.ExpiresAt,
		CreatedAt: rec.CreatedAt,
	}
}

func effectivePrice(chapter pgrepo.ChapterRecord) int64 {
	if chapter.IsFree {
		return 0
	}
	return chapter.Price
}

func chapterRef(chapterID int64) string {
	return "chapter:" + strconv.FormatInt(chapterID, 10)
}
