package entitlements

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/4kciclone/gato-comics-sub000/internal/domain/enums"
	pgrepo "github.com/4kciclone/gato-comics-sub000/internal/repo/postgres"
)

type chapterStoreStub struct {
	chapters map[int64]pgrepo.ChapterRecord
}

func (s *chapterStoreStub) FindByID(_ context.Context, chapterID int64) (pgrepo.ChapterRecord, error) {
	rec, ok := s.chapters[chapterID]
	if !ok {
		return pgrepo.ChapterRecord{}, pgrepo.ErrChapterNotFound
	}
	return rec, nil
}

type walletStoreStub struct {
	wallets map[int64]*pgrepo.WalletRecord
}

func (s *walletStoreStub) GetForUpdate(_ context.Context, _ pgx.Tx, userID int64) (pgrepo.WalletRecord, error) {
	w, ok := s.wallets[userID]
	if !ok {
		return pgrepo.WalletRecord{}, pgrepo.ErrWalletNotFound
	}
	return *w, nil
}

func (s *walletStoreStub) DebitPatinhas(_ context.Context, _ pgx.Tx, userID, amount int64) (int64, error) {
	w, ok := s.wallets[userID]
	if !ok || w.Patinhas < amount {
		return 0, pgrepo.ErrInsufficientPatinhas
	}
	w.Patinhas -= amount
	return w.Patinhas, nil
}

func (s *walletStoreStub) DebitLite(_ context.Context, _ pgx.Tx, userID, amount int64) (int64, error) {
	w, ok := s.wallets[userID]
	if !ok || w.LitePatinhas < amount {
		return 0, pgrepo.ErrInsufficientLite
	}
	w.LitePatinhas -= amount
	return w.LitePatinhas, nil
}

type unlockKey struct {
	userID    int64
	chapterID int64
}

type unlockStoreStub struct {
	unlocks map[unlockKey]pgrepo.UnlockRecord
	inserts int
	deletes int
}

func newUnlockStoreStub() *unlockStoreStub {
	return &unlockStoreStub{unlocks: make(map[unlockKey]pgrepo.UnlockRecord)}
}

func (s *unlockStoreStub) Get(_ context.Context, userID, chapterID int64) (pgrepo.UnlockRecord, error) {
	rec, ok := s.unlocks[unlockKey{userID, chapterID}]
	if !ok {
		return pgrepo.UnlockRecord{}, pgrepo.ErrUnlockNotFound
	}
	return rec, nil
}

func (s *unlockStoreStub) GetForUpdate(ctx context.Context, _ pgx.Tx, userID, chapterID int64) (pgrepo.UnlockRecord, error) {
	return s.Get(ctx, userID, chapterID)
}

func (s *unlockStoreStub) Insert(_ context.Context, _ pgx.Tx, userID, chapterID int64, kind string, expiresAt *time.Time) (pgrepo.UnlockRecord, error) {
	key := unlockKey{userID, chapterID}
	if _, exists := s.unlocks[key]; exists {
		return pgrepo.UnlockRecord{}, pgrepo.ErrUnlockExists
	}
	rec := pgrepo.UnlockRecord{
		UserID:    userID,
		ChapterID: chapterID,
		Kind:      kind,
		ExpiresAt: expiresAt,
		CreatedAt: time.Now(),
	}
	s.unlocks[key] = rec
	s.inserts++
	return rec, nil
}

func (s *unlockStoreStub) Delete(_ context.Context, _ pgx.Tx, userID, chapterID int64) error {
	delete(s.unlocks, unlockKey{userID, chapterID})
	s.deletes++
	return nil
}

type ledgerStoreStub struct {
	entries []pgrepo.LedgerEntryRecord
}

func (s *ledgerStoreStub) Append(_ context.Context, _ pgx.Tx, entry pgrepo.LedgerEntryRecord) (pgrepo.LedgerEntryRecord, error) {
	entry.ID = int64(len(s.entries) + 1)
	entry.CreatedAt = time.Now()
	s.entries = append(s.entries, entry)
	return entry, nil
}

// serialTx mimics the serialization the wallet row lock provides in
// postgres: one mutating transaction at a time per test service.
func serialTx(mu *sync.Mutex) func(context.Context, func(context.Context, pgx.Tx) error) error {
	return func(ctx context.Context, fn func(context.Context, pgx.Tx) error) error {
		mu.Lock()
		defer mu.Unlock()
		return fn(ctx, nil)
	}
}

func newTestService(chapters *chapterStoreStub, wallets *walletStoreStub, unlocks *unlockStoreStub, ledger *ledgerStoreStub) (*Service, *sync.Mutex) {
	mu := &sync.Mutex{}
	return &Service{
		chapters: chapters,
		wallets:  wallets,
		unlocks:  unlocks,
		ledger:   ledger,
		cfg: Config{
			RentalCostLite: 2,
			RentalDuration: 72 * time.Hour,
		},
		runTx: serialTx(mu),
	}, mu
}

func fixedNow() time.Time {
	return time.Date(2026, 5, 10, 12, 0, 0, 0, time.UTC)
}

func TestCheckAccessFreeChapterAllowsAnonymous(t *testing.T) {
	chapters := &chapterStoreStub{chapters: map[int64]pgrepo.ChapterRecord{
		1: {ID: 1, WorkID: 1, Seq: 1, IsFree: true, Price: 5},
	}}
	svc, _ := newTestService(chapters, &walletStoreStub{}, newUnlockStoreStub(), &ledgerStoreStub{})

	access, err := svc.CheckAccess(context.Background(), nil, 1, fixedNow())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !access.Allowed {
		t.Fatalf("expected free chapter to be readable anonymously")
	}
}

func TestCheckAccessPaidChapterDeniesAnonymousWithPrice(t *testing.T) {
	chapters := &chapterStoreStub{chapters: map[int64]pgrepo.ChapterRecord{
		2: {ID: 2, WorkID: 1, Seq: 2, Price: 3},
	}}
	svc, _ := newTestService(chapters, &walletStoreStub{}, newUnlockStoreStub(), &ledgerStoreStub{})

	access, err := svc.CheckAccess(context.Background(), nil, 2, fixedNow())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if access.Allowed {
		t.Fatalf("expected paid chapter to be denied for anonymous visitor")
	}
	if access.Price != 3 {
		t.Fatalf("expected price 3 in denial, got %d", access.Price)
	}
}

func TestCheckAccessExpiredRentalDenied(t *testing.T) {
	chapters := &chapterStoreStub{chapters: map[int64]pgrepo.ChapterRecord{
		2: {ID: 2, WorkID: 1, Seq: 2, Price: 3},
	}}
	unlocks := newUnlockStoreStub()
	expired := fixedNow().Add(-time.Hour)
	unlocks.unlocks[unlockKey{7, 2}] = pgrepo.UnlockRecord{
		UserID: 7, ChapterID: 2, Kind: string(enums.UnlockKindRental), ExpiresAt: &expired,
	}
	svc, _ := newTestService(chapters, &walletStoreStub{}, unlocks, &ledgerStoreStub{})

	userID := int64(7)
	access, err := svc.CheckAccess(context.Background(), &userID, 2, fixedNow())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if access.Allowed {
		t.Fatalf("expected expired rental to deny access")
	}
}

func TestUnlockPermanentDebitsAndWritesLedger(t *testing.T) {
	chapters := &chapterStoreStub{chapters: map[int64]pgrepo.ChapterRecord{
		2: {ID: 2, WorkID: 1, Seq: 2, Price: 3},
	}}
	wallets := &walletStoreStub{wallets: map[int64]*pgrepo.WalletRecord{
		7: {UserID: 7, Patinhas: 5, LitePatinhas: 1},
	}}
	unlocks := newUnlockStoreStub()
	ledger := &ledgerStoreStub{}
	svc, _ := newTestService(chapters, wallets, unlocks, ledger)

	result, err := svc.Unlock(context.Background(), 7, 2, enums.UnlockMethodPermanent, fixedNow())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result.Patinhas != 2 {
		t.Fatalf("expected balance 2 after debit, got %d", result.Patinhas)
	}
	if result.Kind != enums.UnlockKindPermanent {
		t.Fatalf("expected permanent unlock, got %q", result.Kind)
	}
	if result.AlreadyOwned {
		t.Fatalf("fresh grant must not report already owned")
	}
	if len(ledger.entries) != 1 {
		t.Fatalf("expected one ledger entry, got %d", len(ledger.entries))
	}
	entry := ledger.entries[0]
	if entry.Kind != string(enums.LedgerKindSpentChapter) || entry.Amount != -3 {
		t.Fatalf("unexpected ledger entry: kind=%q amount=%d", entry.Kind, entry.Amount)
	}
	if entry.Currency != string(enums.CurrencyPatinhas) {
		t.Fatalf("unexpected ledger currency %q", entry.Currency)
	}
}

func TestUnlockIsIdempotentForOwnedChapter(t *testing.T) {
	chapters := &chapterStoreStub{chapters: map[int64]pgrepo.ChapterRecord{
		2: {ID: 2, WorkID: 1, Seq: 2, Price: 3},
	}}
	wallets := &walletStoreStub{wallets: map[int64]*pgrepo.WalletRecord{
		7: {UserID: 7, Patinhas: 5},
	}}
	unlocks := newUnlockStoreStub()
	ledger := &ledgerStoreStub{}
	svc, _ := newTestService(chapters, wallets, unlocks, ledger)

	if _, err := svc.Unlock(context.Background(), 7, 2, enums.UnlockMethodPermanent, fixedNow()); err != nil {
		t.Fatalf("first unlock failed: %v", err)
	}

	result, err := svc.Unlock(context.Background(), 7, 2, enums.UnlockMethodPermanent, fixedNow())
	if err != nil {
		t.Fatalf("second unlock failed: %v", err)
	}
	if !result.AlreadyOwned {
		t.Fatalf("expected already-owned result")
	}
	if result.Patinhas != 2 {
		t.Fatalf("expected balance unchanged at 2, got %d", result.Patinhas)
	}
	if len(ledger.entries) != 1 {
		t.Fatalf("re-grant must not append a ledger entry, got %d entries", len(ledger.entries))
	}
}

func TestUnlockInsufficientPatinhas(t *testing.T) {
	chapters := &chapterStoreStub{chapters: map[int64]pgrepo.ChapterRecord{
		2: {ID: 2, WorkID: 1, Seq: 2, Price: 9},
	}}
	wallets := &walletStoreStub{wallets: map[int64]*pgrepo.WalletRecord{
		7: {UserID: 7, Patinhas: 2},
	}}
	unlocks := newUnlockStoreStub()
	ledger := &ledgerStoreStub{}
	svc, _ := newTestService(chapters, wallets, unlocks, ledger)

	_, err := svc.Unlock(context.Background(), 7, 2, enums.UnlockMethodPermanent, fixedNow())
	ife, ok := IsInsufficientFunds(err)
	if !ok {
		t.Fatalf("expected insufficient funds error, got %v", err)
	}
	if ife.Currency != enums.CurrencyPatinhas || ife.Required != 9 || ife.Balance != 2 {
		t.Fatalf("unexpected error detail: %+v", ife)
	}
	if len(ledger.entries) != 0 {
		t.Fatalf("failed unlock must not write to the ledger")
	}
	if unlocks.inserts != 0 {
		t.Fatalf("failed unlock must not insert an entitlement")
	}
}

func TestUnlockRentalDebitsLiteAndSetsExpiry(t *testing.T) {
	chapters := &chapterStoreStub{chapters: map[int64]pgrepo.ChapterRecord{
		2: {ID: 2, WorkID: 1, Seq: 2, Price: 3},
	}}
	wallets := &walletStoreStub{wallets: map[int64]*pgrepo.WalletRecord{
		7: {UserID: 7, Patinhas: 5, LitePatinhas: 3},
	}}
	unlocks := newUnlockStoreStub()
	ledger := &ledgerStoreStub{}
	svc, _ := newTestService(chapters, wallets, unlocks, ledger)

	now := fixedNow()
	result, err := svc.Unlock(context.Background(), 7, 2, enums.UnlockMethodRental, now)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result.LitePatinhas != 1 {
		t.Fatalf("expected lite balance 1 after rental, got %d", result.LitePatinhas)
	}
	if result.Patinhas != 5 {
		t.Fatalf("rental must not touch the permanent balance, got %d", result.Patinhas)
	}
	if result.ExpiresAt == nil || !result.ExpiresAt.Equal(now.Add(72*time.Hour)) {
		t.Fatalf("unexpected rental expiry: %v", result.ExpiresAt)
	}
	if len(ledger.entries) != 1 || ledger.entries[0].Kind != string(enums.LedgerKindRentalSpend) {
		t.Fatalf("expected one rental spend ledger entry, got %+v", ledger.entries)
	}
	if ledger.entries[0].Amount != -2 || ledger.entries[0].Currency != string(enums.CurrencyLitePatinhas) {
		t.Fatalf("unexpected rental ledger entry: %+v", ledger.entries[0])
	}
}

func TestUnlockReplacesExpiredRentalAndChargesAgain(t *testing.T) {
	chapters := &chapterStoreStub{chapters: map[int64]pgrepo.ChapterRecord{
		2: {ID: 2, WorkID: 1, Seq: 2, Price: 3},
	}}
	wallets := &walletStoreStub{wallets: map[int64]*pgrepo.WalletRecord{
		7: {UserID: 7, LitePatinhas: 4},
	}}
	unlocks := newUnlockStoreStub()
	expired := fixedNow().Add(-time.Minute)
	unlocks.unlocks[unlockKey{7, 2}] = pgrepo.UnlockRecord{
		UserID: 7, ChapterID: 2, Kind: string(enums.UnlockKindRental), ExpiresAt: &expired,
	}
	ledger := &ledgerStoreStub{}
	svc, _ := newTestService(chapters, wallets, unlocks, ledger)

	now := fixedNow()
	result, err := svc.Unlock(context.Background(), 7, 2, enums.UnlockMethodRental, now)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result.AlreadyOwned {
		t.Fatalf("expired rental must be replaced, not reported as owned")
	}
	if unlocks.deletes != 1 {
		t.Fatalf("expected the stale rental row to be deleted once, got %d", unlocks.deletes)
	}
	if result.ExpiresAt == nil || !result.ExpiresAt.Equal(now.Add(72*time.Hour)) {
		t.Fatalf("replacement rental must start a fresh window, got %v", result.ExpiresAt)
	}
	if result.LitePatinhas != 2 {
		t.Fatalf("expected second rental charge, lite balance %d", result.LitePatinhas)
	}
}

func TestUnlockUnknownChapter(t *testing.T) {
	svc, _ := newTestService(&chapterStoreStub{}, &walletStoreStub{}, newUnlockStoreStub(), &ledgerStoreStub{})

	_, err := svc.Unlock(context.Background(), 7, 99, enums.UnlockMethodPermanent, fixedNow())
	if !errors.Is(err, ErrChapterNotFound) {
		t.Fatalf("expected ErrChapterNotFound, got %v", err)
	}
}

func TestConcurrentUnlocksChargeOnce(t *testing.T) {
	chapters := &chapterStoreStub{chapters: map[int64]pgrepo.ChapterRecord{
		2: {ID: 2, WorkID: 1, Seq: 2, Price: 3},
	}}
	wallets := &walletStoreStub{wallets: map[int64]*pgrepo.WalletRecord{
		7: {UserID: 7, Patinhas: 5},
	}}
	unlocks := newUnlockStoreStub()
	ledger := &ledgerStoreStub{}
	svc, _ := newTestService(chapters, wallets, unlocks, ledger)

	const workers = 8
	var wg sync.WaitGroup
	errs := make([]error, workers)
	results := make([]UnlockResult, workers)
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			results[i], errs[i] = svc.Unlock(context.Background(), 7, 2, enums.UnlockMethodPermanent, fixedNow())
		}(i)
	}
	wg.Wait()

	owned := 0
	for i := 0; i < workers; i++ {
		if errs[i] != nil {
			t.Fatalf("worker %d failed: %v", i, errs[i])
		}
		if results[i].AlreadyOwned {
			owned++
		}
	}
	if owned != workers-1 {
		t.Fatalf("expected exactly one fresh grant, got %d already-owned of %d", owned, workers)
	}
	if wallets.wallets[7].Patinhas != 2 {
		t.Fatalf("expected a single debit leaving 2, got %d", wallets.wallets[7].Patinhas)
	}
	if len(ledger.entries) != 1 {
		t.Fatalf("expected one ledger entry, got %d", len(ledger.entries))
	}
	if unlocks.inserts != 1 {
		t.Fatalf("expected one entitlement insert, got %d", unlocks.inserts)
	}
}

func TestUnlockFreeChapterChargesAndGrantsNothing(t *testing.T) {
	chapters := &chapterStoreStub{chapters: map[int64]pgrepo.ChapterRecord{
		1: {ID: 1, WorkID: 1, Seq: 1, IsFree: true, Price: 5},
	}}
	wallets := &walletStoreStub{wallets: map[int64]*pgrepo.WalletRecord{
		7: {UserID: 7, Patinhas: 5, LitePatinhas: 2},
	}}
	unlocks := newUnlockStoreStub()
	ledger := &ledgerStoreStub{}
	svc, _ := newTestService(chapters, wallets, unlocks, ledger)

	result, err := svc.Unlock(context.Background(), 7, 1, enums.UnlockMethodPermanent, fixedNow())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result.AlreadyOwned {
		t.Fatalf("a never-purchased free chapter must not be reported as owned")
	}
	if result.Patinhas != 5 || result.LitePatinhas != 2 {
		t.Fatalf("free chapter must leave balances untouched: %+v", result)
	}
	if unlocks.inserts != 0 || len(ledger.entries) != 0 {
		t.Fatalf("free chapter must not write unlock or ledger rows")
	}
}

func TestUnlockChargesQuotedPriceDespiteRepricing(t *testing.T) {
	chapters := &chapterStoreStub{chapters: map[int64]pgrepo.ChapterRecord{
		2: {ID: 2, WorkID: 1, Seq: 2, Price: 3},
	}}
	wallets := &walletStoreStub{wallets: map[int64]*pgrepo.WalletRecord{
		7: {UserID: 7, Patinhas: 5},
	}}
	unlocks := newUnlockStoreStub()
	ledger := &ledgerStoreStub{}
	svc := &Service{
		chapters: chapters,
		wallets:  wallets,
		unlocks:  unlocks,
		ledger:   ledger,
		cfg:      Config{RentalCostLite: 2, RentalDuration: 72 * time.Hour},
		// A pricing update lands after the quote was read but before the
		// grant transaction runs.
		runTx: func(ctx context.Context, fn func(context.Context, pgx.Tx) error) error {
			rec := chapters.chapters[2]
			rec.Price = 9
			chapters.chapters[2] = rec
			return fn(ctx, nil)
		},
	}

	result, err := svc.Unlock(context.Background(), 7, 2, enums.UnlockMethodPermanent, fixedNow())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result.Patinhas != 2 {
		t.Fatalf("expected the quoted price of 3 to be charged, balance %d", result.Patinhas)
	}
	if len(ledger.entries) != 1 || ledger.entries[0].Amount != -3 {
		t.Fatalf("ledger must record the quoted price: %+v", ledger.entries)
	}
}

// Mirrors the canonical reader journey: signup bonus of 5, buy a chapter
// for 3, retry for free, then fail to afford a second chapter.
func TestReaderPurchaseJourney(t *testing.T) {
	chapters := &chapterStoreStub{chapters: map[int64]pgrepo.ChapterRecord{
		10: {ID: 10, WorkID: 1, Seq: 1, Price: 3},
		11: {ID: 11, WorkID: 1, Seq: 2, Price: 3},
	}}
	wallets := &walletStoreStub{wallets: map[int64]*pgrepo.WalletRecord{
		7: {UserID: 7, Patinhas: 5},
	}}
	unlocks := newUnlockStoreStub()
	ledger := &ledgerStoreStub{}
	svc, _ := newTestService(chapters, wallets, unlocks, ledger)

	first, err := svc.Unlock(context.Background(), 7, 10, enums.UnlockMethodPermanent, fixedNow())
	if err != nil {
		t.Fatalf("first purchase failed: %v", err)
	}
	if first.Patinhas != 2 {
		t.Fatalf("expected balance 2 after first purchase, got %d", first.Patinhas)
	}

	retry, err := svc.Unlock(context.Background(), 7, 10, enums.UnlockMethodPermanent, fixedNow())
	if err != nil {
		t.Fatalf("retry failed: %v", err)
	}
	if !retry.AlreadyOwned || retry.Patinhas != 2 {
		t.Fatalf("retry must be free: %+v", retry)
	}

	_, err = svc.Unlock(context.Background(), 7, 11, enums.UnlockMethodPermanent, fixedNow())
	if _, ok := IsInsufficientFunds(err); !ok {
		t.Fatalf("expected insufficient funds for second chapter, got %v", err)
	}

	userID := int64(7)
	access, err := svc.CheckAccess(context.Background(), &userID, 10, fixedNow())
	if err != nil || !access.Allowed {
		t.Fatalf("owned chapter must stay readable: allowed=%v err=%v", access.Allowed, err)
	}
}
