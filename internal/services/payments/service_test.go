package payments

import (
	"context"
	"errors"
	"testing"

	"github.com/jackc/pgx/v5"

	"github.com/4kciclone/gato-comics-sub000/internal/domain/enums"
	pgrepo "github.com/4kciclone/gato-comics-sub000/internal/repo/postgres"
)

type purchaseStoreStub struct {
	records map[int64]*pgrepo.PackPurchaseRecord
	nextID  int64
}

func newPurchaseStoreStub() *purchaseStoreStub {
	return &purchaseStoreStub{records: make(map[int64]*pgrepo.PackPurchaseRecord), nextID: 1}
}

func (s *purchaseStoreStub) CreatePending(_ context.Context, userID int64, sku, provider string, amountPatinhas int64) (pgrepo.PackPurchaseRecord, error) {
	rec := &pgrepo.PackPurchaseRecord{
		ID:             s.nextID,
		UserID:         userID,
		SKU:            sku,
		Provider:       provider,
		AmountPatinhas: amountPatinhas,
		Status:         pgrepo.PurchaseStatusPending,
	}
	s.records[rec.ID] = rec
	s.nextID++
	return *rec, nil
}

func (s *purchaseStoreStub) FindByProviderTx(_ context.Context, provider, providerTxID string) (pgrepo.PackPurchaseRecord, error) {
	for _, rec := range s.records {
		if rec.Provider == provider && rec.ProviderTxID != nil && *rec.ProviderTxID == providerTxID {
			return *rec, nil
		}
	}
	return pgrepo.PackPurchaseRecord{}, pgrepo.ErrPurchaseNotFound
}

func (s *purchaseStoreStub) LockByID(_ context.Context, _ pgx.Tx, purchaseID int64) (pgrepo.PackPurchaseRecord, error) {
	rec, ok := s.records[purchaseID]
	if !ok {
		return pgrepo.PackPurchaseRecord{}, pgrepo.ErrPurchaseNotFound
	}
	return *rec, nil
}

func (s *purchaseStoreStub) MarkConfirmed(_ context.Context, _ pgx.Tx, purchaseID int64, providerTxID string) (bool, error) {
	for _, rec := range s.records {
		if rec.ID != purchaseID && rec.ProviderTxID != nil && *rec.ProviderTxID == providerTxID {
			return false, pgrepo.ErrProviderTxConflict
		}
	}
	rec, ok := s.records[purchaseID]
	if !ok || rec.Status == pgrepo.PurchaseStatusConfirmed {
		return false, nil
	}
	rec.Status = pgrepo.PurchaseStatusConfirmed
	rec.ProviderTxID = &providerTxID
	return true, nil
}

type walletStoreStub struct {
	patinhas int64
	credits  int
}

func (s *walletStoreStub) CreditPatinhas(_ context.Context, _ pgx.Tx, _ int64, amount int64) (int64, error) {
	s.patinhas += amount
	s.credits++
	return s.patinhas, nil
}

type ledgerStoreStub struct {
	entries []pgrepo.LedgerEntryRecord
}

func (s *ledgerStoreStub) Append(_ context.Context, _ pgx.Tx, entry pgrepo.LedgerEntryRecord) (pgrepo.LedgerEntryRecord, error) {
	s.entries = append(s.entries, entry)
	return entry, nil
}

func passTx(ctx context.Context, fn func(context.Context, pgx.Tx) error) error {
	return fn(ctx, nil)
}

func newTestService(purchases *purchaseStoreStub, wallets *walletStoreStub, ledger *ledgerStoreStub) *Service {
	return &Service{purchases: purchases, wallets: wallets, ledger: ledger, runTx: passTx}
}

func TestCreateRejectsUnknownSKUAndProvider(t *testing.T) {
	svc := newTestService(newPurchaseStoreStub(), &walletStoreStub{}, &ledgerStoreStub{})

	if _, err := svc.Create(context.Background(), 7, enums.PackSKU("pack_999"), "stripe"); !errors.Is(err, ErrUnsupportedSKU) {
		t.Fatalf("expected ErrUnsupportedSKU, got %v", err)
	}
	if _, err := svc.Create(context.Background(), 7, enums.PackSKU80, "paypal"); !errors.Is(err, ErrUnsupportedProvider) {
		t.Fatalf("expected ErrUnsupportedProvider, got %v", err)
	}
}

func TestCreatePendingPurchase(t *testing.T) {
	purchases := newPurchaseStoreStub()
	svc := newTestService(purchases, &walletStoreStub{}, &ledgerStoreStub{})

	result, err := svc.Create(context.Background(), 7, enums.PackSKU80, "Stripe")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result.AmountPatinhas != 80 {
		t.Fatalf("expected pack_80 to credit 80, got %d", result.AmountPatinhas)
	}
	if result.Status != pgrepo.PurchaseStatusPending {
		t.Fatalf("expected pending status, got %q", result.Status)
	}
	if result.Provider != "stripe" {
		t.Fatalf("provider must be normalized, got %q", result.Provider)
	}
}

func TestConfirmWebhookCreditsOnce(t *testing.T) {
	purchases := newPurchaseStoreStub()
	wallets := &walletStoreStub{}
	ledger := &ledgerStoreStub{}
	svc := newTestService(purchases, wallets, ledger)

	created, err := svc.Create(context.Background(), 7, enums.PackSKU30, "stripe")
	if err != nil {
		t.Fatalf("create failed: %v", err)
	}

	in := WebhookInput{PurchaseID: created.PurchaseID, Provider: "stripe", ProviderTxID: "tx-abc"}
	first, err := svc.ConfirmWebhook(context.Background(), in)
	if err != nil {
		t.Fatalf("first webhook failed: %v", err)
	}
	if first.AlreadyProcessed {
		t.Fatalf("first delivery must not report already processed")
	}
	if first.NewPatinhas != 30 {
		t.Fatalf("expected balance 30 after credit, got %d", first.NewPatinhas)
	}
	if len(ledger.entries) != 1 {
		t.Fatalf("expected one ledger entry, got %d", len(ledger.entries))
	}
	entry := ledger.entries[0]
	if entry.Kind != string(enums.LedgerKindPurchasePack) || entry.Amount != 30 {
		t.Fatalf("unexpected ledger entry: kind=%q amount=%d", entry.Kind, entry.Amount)
	}
	if entry.ReferenceID == nil || *entry.ReferenceID != "stripe:tx-abc" {
		t.Fatalf("expected provider tx reference, got %v", entry.ReferenceID)
	}

	replay, err := svc.ConfirmWebhook(context.Background(), in)
	if err != nil {
		t.Fatalf("replay failed: %v", err)
	}
	if !replay.AlreadyProcessed {
		t.Fatalf("replay must report already processed")
	}
	if replay.AmountPatinhas != 30 {
		t.Fatalf("replay must echo the original amount, got %d", replay.AmountPatinhas)
	}
	if wallets.credits != 1 {
		t.Fatalf("expected exactly one credit, got %d", wallets.credits)
	}
	if len(ledger.entries) != 1 {
		t.Fatalf("replay must not append a second ledger entry")
	}
}

func TestConfirmWebhookProviderMismatch(t *testing.T) {
	purchases := newPurchaseStoreStub()
	svc := newTestService(purchases, &walletStoreStub{}, &ledgerStoreStub{})

	created, err := svc.Create(context.Background(), 7, enums.PackSKU30, "pix")
	if err != nil {
		t.Fatalf("create failed: %v", err)
	}

	_, err = svc.ConfirmWebhook(context.Background(), WebhookInput{
		PurchaseID: created.PurchaseID, Provider: "stripe", ProviderTxID: "tx-1",
	})
	if !errors.Is(err, ErrValidation) {
		t.Fatalf("expected ErrValidation on provider mismatch, got %v", err)
	}
}

func TestConfirmWebhookUnknownPurchase(t *testing.T) {
	svc := newTestService(newPurchaseStoreStub(), &walletStoreStub{}, &ledgerStoreStub{})

	_, err := svc.ConfirmWebhook(context.Background(), WebhookInput{
		PurchaseID: 42, Provider: "stripe", ProviderTxID: "tx-1",
	})
	if !errors.Is(err, ErrPurchaseNotFound) {
		t.Fatalf("expected ErrPurchaseNotFound, got %v", err)
	}
}

func TestConfirmWebhookTxIDConflict(t *testing.T) {
	purchases := newPurchaseStoreStub()
	wallets := &walletStoreStub{}
	svc := newTestService(purchases, wallets, &ledgerStoreStub{})

	first, err := svc.Create(context.Background(), 7, enums.PackSKU30, "stripe")
	if err != nil {
		t.Fatalf("create failed: %v", err)
	}
	second, err := svc.Create(context.Background(), 7, enums.PackSKU80, "stripe")
	if err != nil {
		t.Fatalf("create failed: %v", err)
	}

	if _, err := svc.ConfirmWebhook(context.Background(), WebhookInput{
		PurchaseID: first.PurchaseID, Provider: "stripe", ProviderTxID: "tx-dup",
	}); err != nil {
		t.Fatalf("first confirmation failed: %v", err)
	}

	// Same tx id aimed at a different purchase must still resolve to the
	// original confirmation instead of crediting twice.
	result, err := svc.ConfirmWebhook(context.Background(), WebhookInput{
		PurchaseID: second.PurchaseID, Provider: "stripe", ProviderTxID: "tx-dup",
	})
	if err != nil {
		t.Fatalf("conflicting delivery must not error, got %v", err)
	}
	if !result.AlreadyProcessed {
		t.Fatalf("conflicting tx id must resolve as already processed")
	}
	if wallets.credits != 1 {
		t.Fatalf("expected one credit total, got %d", wallets.credits)
	}
}
