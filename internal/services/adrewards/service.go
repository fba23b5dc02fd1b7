package adrewards

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/4kciclone/gato-comics-sub000/internal/domain/enums"
	"github.com/4kciclone/gato-comics-sub000/internal/domain/rules"
	pgrepo "github.com/4kciclone/gato-comics-sub000/internal/repo/postgres"
)

var (
	ErrValidation        = errors.New("validation error")
	ErrAccountNotFound   = errors.New("account not found")
	ErrDailyLimitReached = errors.New("daily ad reward limit reached")
	ErrTooManyRequests   = errors.New("too many ad reward requests")
)

type WalletStore interface {
	GetForUpdate(ctx context.Context, tx pgx.Tx, userID int64) (pgrepo.WalletRecord, error)
	ApplyAdReward(ctx context.Context, tx pgx.Tx, userID, reward int64, newCount int, claimedAt time.Time) (int64, error)
}

type LedgerStore interface {
	Append(ctx context.Context, tx pgx.Tx, entry pgrepo.LedgerEntryRecord) (pgrepo.LedgerEntryRecord, error)
}

// FloodGuard is an advisory short-window rate limit in front of the claim
// transaction. The postgres daily counter stays authoritative; losing the
// guard (redis down) only removes the cheap early rejection.
type FloodGuard interface {
	IncrementWindow(ctx context.Context, key string, window time.Duration) (int64, time.Duration, error)
}

type Config struct {
	RewardLite  int64
	DailyCap    int
	Location    *time.Location
	FloodWindow time.Duration
	FloodMax    int64
}

type Service struct {
	wallets WalletStore
	ledger  LedgerStore
	guard   FloodGuard
	cfg     Config
	runTx   pgrepo.TxRunner
}

type ClaimResult struct {
	LitePatinhas int64
	DailyAdCount int
	NextResetAt  time.Time
}

func NewService(run pgrepo.TxRunner, wallets WalletStore, ledger LedgerStore, guard FloodGuard, cfg Config) *Service {
	if cfg.RewardLite <= 0 {
		cfg.RewardLite = rules.AdRewardLite
	}
	if cfg.DailyCap <= 0 {
		cfg.DailyCap = rules.AdDailyCap
	}
	if cfg.Location == nil {
		cfg.Location = time.UTC
	}
	if cfg.FloodWindow <= 0 {
		cfg.FloodWindow = 30 * time.Second
	}
	if cfg.FloodMax <= 0 {
		cfg.FloodMax = 3
	}

	return &Service{
		wallets: wallets,
		ledger:  ledger,
		guard:   guard,
		cfg:     cfg,
		runTx:   run,
	}
}

// Claim credits one ad reward if the user is under the daily cap. The
// counter lives on the wallet row and is interpreted lazily: a last_ad_at
// from a previous calendar day means the stored count no longer applies,
// so no scheduled reset job is needed.
func (s *Service) Claim(ctx context.Context, userID int64, now time.Time) (ClaimResult, error) {
	if userID <= 0 {
		return ClaimResult{}, ErrValidation
	}
	if s.wallets == nil || s.ledger == nil {
		return ClaimResult{}, fmt.Errorf("ad reward dependencies are not configured")
	}
	if now.IsZero() {
		now = time.Now()
	}

	if s.guard != nil {
		key := "ads:claim:" + strconv.FormatInt(userID, 10)
		count, _, err := s.guard.IncrementWindow(ctx, key, s.cfg.FloodWindow)
		if err == nil && count > s.cfg.FloodMax {
			return ClaimResult{}, ErrTooManyRequests
		}
	}

	var result ClaimResult
	err := s.runTx(ctx, func(txCtx context.Context, tx pgx.Tx) error {
		wallet, err := s.wallets.GetForUpdate(txCtx, tx, userID)
		if err != nil {
			if errors.Is(err, pgrepo.ErrWalletNotFound) {
				return ErrAccountNotFound
			}
			return err
		}

		count := 0
		if wallet.LastAdAt != nil && rules.SameDay(*wallet.LastAdAt, now, s.cfg.Location) {
			count = wallet.DailyAdCount
		}
		if count >= s.cfg.DailyCap {
			return ErrDailyLimitReached
		}

		newLite, err := s.wallets.ApplyAdReward(txCtx, tx, userID, s.cfg.RewardLite, count+1, now.UTC())
		if err != nil {
			return err
		}

		if _, err := s.ledger.Append(txCtx, tx, pgrepo.LedgerEntryRecord{
			UserID:      userID,
			Kind:        string(enums.LedgerKindAdReward),
			Currency:    string(enums.CurrencyLitePatinhas),
			Amount:      s.cfg.RewardLite,
			Description: "rewarded ad",
		}); err != nil {
			return err
		}

		result = ClaimResult{
			LitePatinhas: newLite,
			DailyAdCount: count + 1,
			NextResetAt:  rules.NextResetAt(now, s.cfg.Location),
		}
		return nil
	})
	if err != nil {
		return ClaimResult{}, err
	}

	return result, nil
}

// Status reports the remaining claims for today without mutating anything.
func (s *Service) Status(wallet pgrepo.WalletRecord, now time.Time) ClaimResult {
	if now.IsZero() {
		now = time.Now()
	}
	count := 0
	if wallet.LastAdAt != nil && rules.SameDay(*wallet.LastAdAt, now, s.cfg.Location) {
		count = wallet.DailyAdCount
	}
	return ClaimResult{
		LitePatinhas: wallet.LitePatinhas,
		DailyAdCount: count,
		NextResetAt:  rules.NextResetAt(now, s.cfg.Location),
	}
}

func (s *Service) DailyCap() int { return s.cfg.DailyCap }
