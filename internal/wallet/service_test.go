package wallet

import (
	"context"
	"errors"
	"testing"

	"github.com/tutorconnect/coin_ledger/internal/ledger"
	"github.com/tutorconnect/coin_ledger/internal/logging"
)

func TestWalletListsRecentEntriesNewestFirst(t *testing.T) {
	ctx := context.Background()
	led := ledger.NewInMemory()
	if err := led.EnsureAccount(ctx, "acc-1", "student"); err != nil {
		t.Fatalf("ensure account: %v", err)
	}
	ledger.SeedBalance(led, "acc-1", 300)
	if _, err := led.Append(ctx, ledger.AppendInput{
		AccountID: "acc-1", Delta: -100, Kind: ledger.KindSpend,
		Purpose: ledger.PurposeContactTutor, TargetID: "tutor-1",
	}); err != nil {
		t.Fatalf("spend: %v", err)
	}
	if _, err := led.Append(ctx, ledger.AppendInput{
		AccountID: "acc-1", Delta: 50, Kind: ledger.KindPurchase, Purpose: ledger.PurposePurchase,
	}); err != nil {
		t.Fatalf("pending purchase: %v", err)
	}

	svc := NewService(led, logging.Discard())
	w, err := svc.Wallet(ctx, "acc-1")
	if err != nil {
		t.Fatalf("wallet: %v", err)
	}
	if w.Coins != 200 {
		t.Fatalf("expected 200 coins, got %d", w.Coins)
	}
	if len(w.Transactions) != 3 {
		t.Fatalf("expected 3 transactions, got %d", len(w.Transactions))
	}
	if w.Transactions[0].Type != "purchase_pending" {
		t.Fatalf("expected newest entry to be the pending purchase, got %s", w.Transactions[0].Type)
	}
	if w.Transactions[0].CompletedAt != nil {
		t.Fatalf("pending entry should not carry a completion time")
	}
}

func TestWalletUnknownAccount(t *testing.T) {
	svc := NewService(ledger.NewInMemory(), logging.Discard())
	if _, err := svc.Wallet(context.Background(), "ghost"); !errors.Is(err, ledger.ErrAccountNotFound) {
		t.Fatalf("expected ErrAccountNotFound, got %v", err)
	}
}

func TestWalletHistoryIsCapped(t *testing.T) {
	ctx := context.Background()
	led := ledger.NewInMemory()
	led.EnsureAccount(ctx, "acc-1", "student")
	for i := 0; i < HistoryLimit+10; i++ {
		ledger.SeedBalance(led, "acc-1", 1)
	}
	w, err := NewService(led, logging.Discard()).Wallet(ctx, "acc-1")
	if err != nil {
		t.Fatalf("wallet: %v", err)
	}
	if len(w.Transactions) != HistoryLimit {
		t.Fatalf("expected %d transactions, got %d", HistoryLimit, len(w.Transactions))
	}
	if w.Coins != int64(HistoryLimit+10) {
		t.Fatalf("expected balance %d, got %d", HistoryLimit+10, w.Coins)
	}
}

func TestReconcileMatchesReplay(t *testing.T) {
	ctx := context.Background()
	led := ledger.NewInMemory()
	led.EnsureAccount(ctx, "acc-1", "student")
	ledger.SeedBalance(led, "acc-1", 250)
	pending, err := led.Append(ctx, ledger.AppendInput{
		AccountID: "acc-1", Delta: 100, Kind: ledger.KindPurchase, Purpose: ledger.PurposePurchase,
	})
	if err != nil {
		t.Fatalf("append: %v", err)
	}
	if _, err := led.Fail(ctx, pending.ID, "declined"); err != nil {
		t.Fatalf("fail: %v", err)
	}
	if _, err := led.Append(ctx, ledger.AppendInput{
		AccountID: "acc-1", Delta: -200, Kind: ledger.KindSpend,
		Purpose: ledger.PurposeViewRequirement, TargetID: "job-1",
	}); err != nil {
		t.Fatalf("spend: %v", err)
	}

	rec, err := NewService(led, logging.Discard()).Reconcile(ctx, "acc-1")
	if err != nil {
		t.Fatalf("reconcile: %v", err)
	}
	if rec.Materialized != 50 || rec.Replayed != 50 || rec.Entries != 3 {
		t.Fatalf("unexpected reconciliation %+v", rec)
	}
}
