package adrewards

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/4kciclone/gato-comics-sub000/internal/domain/enums"
	pgrepo "github.com/4kciclone/gato-comics-sub000/internal/repo/postgres"
)

type walletStoreStub struct {
	wallet pgrepo.WalletRecord
	exists bool
}

func (s *walletStoreStub) GetForUpdate(_ context.Context, _ pgx.Tx, _ int64) (pgrepo.WalletRecord, error) {
	if !s.exists {
		return pgrepo.WalletRecord{}, pgrepo.ErrWalletNotFound
	}
	return s.wallet, nil
}

func (s *walletStoreStub) ApplyAdReward(_ context.Context, _ pgx.Tx, _ int64, reward int64, newCount int, claimedAt time.Time) (int64, error) {
	s.wallet.LitePatinhas += reward
	s.wallet.DailyAdCount = newCount
	s.wallet.LastAdAt = &claimedAt
	return s.wallet.LitePatinhas, nil
}

type ledgerStoreStub struct {
	entries []pgrepo.LedgerEntryRecord
}

func (s *ledgerStoreStub) Append(_ context.Context, _ pgx.Tx, entry pgrepo.LedgerEntryRecord) (pgrepo.LedgerEntryRecord, error) {
	s.entries = append(s.entries, entry)
	return entry, nil
}

type floodGuardStub struct {
	count int64
	err   error
}

func (s *floodGuardStub) IncrementWindow(_ context.Context, _ string, _ time.Duration) (int64, time.Duration, error) {
	if s.err != nil {
		return 0, 0, s.err
	}
	s.count++
	return s.count, 30 * time.Second, nil
}

func passTx(ctx context.Context, fn func(context.Context, pgx.Tx) error) error {
	return fn(ctx, nil)
}

func newTestService(wallets *walletStoreStub, ledger *ledgerStoreStub, guard FloodGuard) *Service {
	return &Service{
		wallets: wallets,
		ledger:  ledger,
		guard:   guard,
		cfg: Config{
			RewardLite:  1,
			DailyCap:    4,
			Location:    time.UTC,
			FloodWindow: 30 * time.Second,
			FloodMax:    3,
		},
		runTx: passTx,
	}
}

func TestClaimCreditsOneLiteAndLogsIt(t *testing.T) {
	wallets := &walletStoreStub{wallet: pgrepo.WalletRecord{UserID: 7}, exists: true}
	ledger := &ledgerStoreStub{}
	svc := newTestService(wallets, ledger, nil)

	now := time.Date(2026, 5, 10, 15, 0, 0, 0, time.UTC)
	result, err := svc.Claim(context.Background(), 7, now)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result.LitePatinhas != 1 {
		t.Fatalf("expected lite balance 1, got %d", result.LitePatinhas)
	}
	if result.DailyAdCount != 1 {
		t.Fatalf("expected daily count 1, got %d", result.DailyAdCount)
	}
	want := time.Date(2026, 5, 11, 0, 0, 0, 0, time.UTC)
	if !result.NextResetAt.Equal(want) {
		t.Fatalf("expected reset at %v, got %v", want, result.NextResetAt)
	}
	if len(ledger.entries) != 1 {
		t.Fatalf("expected one ledger entry, got %d", len(ledger.entries))
	}
	entry := ledger.entries[0]
	if entry.Kind != string(enums.LedgerKindAdReward) || entry.Amount != 1 {
		t.Fatalf("unexpected ledger entry: kind=%q amount=%d", entry.Kind, entry.Amount)
	}
	if entry.Currency != string(enums.CurrencyLitePatinhas) {
		t.Fatalf("unexpected ledger currency %q", entry.Currency)
	}
}

func TestClaimStopsAtDailyCap(t *testing.T) {
	now := time.Date(2026, 5, 10, 15, 0, 0, 0, time.UTC)
	earlier := now.Add(-time.Hour)
	wallets := &walletStoreStub{
		wallet: pgrepo.WalletRecord{UserID: 7, LitePatinhas: 4, DailyAdCount: 4, LastAdAt: &earlier},
		exists: true,
	}
	ledger := &ledgerStoreStub{}
	svc := newTestService(wallets, ledger, nil)

	_, err := svc.Claim(context.Background(), 7, now)
	if !errors.Is(err, ErrDailyLimitReached) {
		t.Fatalf("expected ErrDailyLimitReached, got %v", err)
	}
	if wallets.wallet.LitePatinhas != 4 {
		t.Fatalf("capped claim must not credit, balance %d", wallets.wallet.LitePatinhas)
	}
	if len(ledger.entries) != 0 {
		t.Fatalf("capped claim must not write to the ledger")
	}
}

func TestClaimResetsCountOnNewCalendarDay(t *testing.T) {
	yesterday := time.Date(2026, 5, 9, 23, 50, 0, 0, time.UTC)
	wallets := &walletStoreStub{
		wallet: pgrepo.WalletRecord{UserID: 7, LitePatinhas: 4, DailyAdCount: 4, LastAdAt: &yesterday},
		exists: true,
	}
	svc := newTestService(wallets, &ledgerStoreStub{}, nil)

	now := time.Date(2026, 5, 10, 0, 10, 0, 0, time.UTC)
	result, err := svc.Claim(context.Background(), 7, now)
	if err != nil {
		t.Fatalf("expected fresh day to allow a claim, got %v", err)
	}
	if result.DailyAdCount != 1 {
		t.Fatalf("expected count to restart at 1, got %d", result.DailyAdCount)
	}
	if result.LitePatinhas != 5 {
		t.Fatalf("expected lite balance 5, got %d", result.LitePatinhas)
	}
}

func TestClaimRespectsConfiguredTimezone(t *testing.T) {
	sp, err := time.LoadLocation("America/Sao_Paulo")
	if err != nil {
		t.Skipf("timezone database unavailable: %v", err)
	}

	// 02:00 UTC is still the previous evening in Sao Paulo, so the stored
	// count from that evening still applies.
	lastAt := time.Date(2026, 5, 10, 1, 0, 0, 0, time.UTC)
	wallets := &walletStoreStub{
		wallet: pgrepo.WalletRecord{UserID: 7, DailyAdCount: 4, LastAdAt: &lastAt},
		exists: true,
	}
	svc := newTestService(wallets, &ledgerStoreStub{}, nil)
	svc.cfg.Location = sp

	now := time.Date(2026, 5, 10, 2, 0, 0, 0, time.UTC)
	if _, err := svc.Claim(context.Background(), 7, now); !errors.Is(err, ErrDailyLimitReached) {
		t.Fatalf("expected cap to hold across the UTC midnight, got %v", err)
	}
}

func TestClaimFloodGuardRejectsBursts(t *testing.T) {
	wallets := &walletStoreStub{wallet: pgrepo.WalletRecord{UserID: 7}, exists: true}
	guard := &floodGuardStub{}
	svc := newTestService(wallets, &ledgerStoreStub{}, guard)

	now := time.Date(2026, 5, 10, 15, 0, 0, 0, time.UTC)
	for i := 0; i < 3; i++ {
		if _, err := svc.Claim(context.Background(), 7, now); err != nil {
			t.Fatalf("claim %d within the window failed: %v", i+1, err)
		}
	}
	if _, err := svc.Claim(context.Background(), 7, now); !errors.Is(err, ErrTooManyRequests) {
		t.Fatalf("expected ErrTooManyRequests on the fourth burst claim, got %v", err)
	}
}

func TestClaimIgnoresGuardFailure(t *testing.T) {
	wallets := &walletStoreStub{wallet: pgrepo.WalletRecord{UserID: 7}, exists: true}
	guard := &floodGuardStub{err: errors.New("redis down")}
	svc := newTestService(wallets, &ledgerStoreStub{}, guard)

	now := time.Date(2026, 5, 10, 15, 0, 0, 0, time.UTC)
	if _, err := svc.Claim(context.Background(), 7, now); err != nil {
		t.Fatalf("guard outage must not block claims, got %v", err)
	}
}

func TestClaimUnknownAccount(t *testing.T) {
	svc := newTestService(&walletStoreStub{}, &ledgerStoreStub{}, nil)

	now := time.Date(2026, 5, 10, 15, 0, 0, 0, time.UTC)
	if _, err := svc.Claim(context.Background(), 99, now); !errors.Is(err, ErrAccountNotFound) {
		t.Fatalf("expected ErrAccountNotFound, got %v", err)
	}
}

func TestStatusReportsRemainingClaims(t *testing.T) {
	now := time.Date(2026, 5, 10, 15, 0, 0, 0, time.UTC)
	earlier := now.Add(-2 * time.Hour)
	svc := newTestService(&walletStoreStub{}, &ledgerStoreStub{}, nil)

	status := svc.Status(pgrepo.WalletRecord{UserID: 7, LitePatinhas: 3, DailyAdCount: 2, LastAdAt: &earlier}, now)
	if status.DailyAdCount != 2 {
		t.Fatalf("expected count 2, got %d", status.DailyAdCount)
	}

	stale := now.Add(-48 * time.Hour)
	status = svc.Status(pgrepo.WalletRecord{UserID: 7, DailyAdCount: 4, LastAdAt: &stale}, now)
	if status.DailyAdCount != 0 {
		t.Fatalf("expected stale count to read as 0, got %d", status.DailyAdCount)
	}
}
