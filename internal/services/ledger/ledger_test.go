package ledger

import (
	"context"
	"errors"
	"testing"

	"github.com/profilehub/mypts/internal/infra/pgtestutil"
	"github.com/profilehub/mypts/internal/repos/accounts"
	"github.com/profilehub/mypts/internal/repos/transactions"
)

type recordingNotifier struct {
	crossed []string
}

func (n *recordingNotifier) ThresholdCrossed(profileID string) {
	n.crossed = append(n.crossed, profileID)
}

func TestLedger_CreditDebitRoundTrip(t *testing.T) {
	t.Parallel()

	db, cleanup := pgtestutil.NewTestDB(t)
	defer cleanup()

	svc := New(db)
	ctx := context.Background()

	credit, err := svc.Credit(ctx, "p-1", 500, transactions.TypeEarn, "signup bonus", "")
	if err != nil {
		t.Fatalf("credit: %v", err)
	}
	if credit.Amount != 500 || credit.BalanceAfter != 500 {
		t.Fatalf("credit record mismatch: %+v", credit)
	}

	debit, err := svc.Debit(ctx, "p-1", 200, transactions.TypeSell, "cash out")
	if err != nil {
		t.Fatalf("debit: %v", err)
	}
	if debit.Amount != -200 || debit.BalanceAfter != 300 {
		t.Fatalf("debit record mismatch: %+v", debit)
	}

	acc, err := svc.Account(ctx, "p-1")
	if err != nil {
		t.Fatalf("get account: %v", err)
	}
	if acc.Balance != 300 || acc.LifetimeEarned != 500 || acc.LifetimeSpent != 200 {
		t.Fatalf("account state mismatch: %+v", acc)
	}
	if acc.LastTransactionAt == nil {
		t.Fatalf("expected last_transaction_at to be set")
	}

	history, err := svc.History(ctx, "p-1", 10, 0)
	if err != nil {
		t.Fatalf("history: %v", err)
	}
	if len(history) != 2 {
		t.Fatalf("history length: want 2, got %d", len(history))
	}
	if history[0].ID != debit.ID || history[1].ID != credit.ID {
		t.Fatalf("expected newest-first history: %+v", history)
	}

	// The balance is always the sum of the signed log.
	var sum int64
	for _, txn := range history {
		sum += txn.Amount
	}
	if sum != acc.Balance {
		t.Fatalf("log sum %d != balance %d", sum, acc.Balance)
	}
}

func TestLedger_DebitInsufficientLeavesStateUntouched(t *testing.T) {
	t.Parallel()

	db, cleanup := pgtestutil.NewTestDB(t)
	defer cleanup()

	svc := New(db)
	ctx := context.Background()

	_, err := svc.Credit(ctx, "p-1", 100, transactions.TypeEarn, "", "")
	if err != nil {
		t.Fatalf("credit: %v", err)
	}

	_, err = svc.Debit(ctx, "p-1", 200, transactions.TypeSell, "")
	if !errors.Is(err, accounts.ErrInsufficientBalance) {
		t.Fatalf("expected ErrInsufficientBalance, got: %v", err)
	}

	acc, err := svc.Account(ctx, "p-1")
	if err != nil {
		t.Fatalf("get account: %v", err)
	}
	if acc.Balance != 100 || acc.LifetimeSpent != 0 {
		t.Fatalf("failed debit mutated account: %+v", acc)
	}

	history, err := svc.History(ctx, "p-1", 10, 0)
	if err != nil {
		t.Fatalf("history: %v", err)
	}
	if len(history) != 1 {
		t.Fatalf("failed debit left a log record: %+v", history)
	}
}

func TestLedger_DebitUnknownAccount(t *testing.T) {
	t.Parallel()

	db, cleanup := pgtestutil.NewTestDB(t)
	defer cleanup()

	svc := New(db)

	_, err := svc.Debit(context.Background(), "ghost", 10, transactions.TypeSell, "")
	if !errors.Is(err, accounts.ErrAccountNotFound) {
		t.Fatalf("expected ErrAccountNotFound, got: %v", err)
	}
}

func TestLedger_InvalidAmounts(t *testing.T) {
	t.Parallel()

	db, cleanup := pgtestutil.NewTestDB(t)
	defer cleanup()

	svc := New(db)
	ctx := context.Background()

	for _, amount := range []int64{0, -10} {
		_, err := svc.Credit(ctx, "p-1", amount, transactions.TypeEarn, "", "")
		if !errors.Is(err, ErrInvalidAmount) {
			t.Fatalf("credit %d: expected ErrInvalidAmount, got: %v", amount, err)
		}

		_, err = svc.Debit(ctx, "p-1", amount, transactions.TypeSell, "")
		if !errors.Is(err, ErrInvalidAmount) {
			t.Fatalf("debit %d: expected ErrInvalidAmount, got: %v", amount, err)
		}
	}
}

func TestLedger_ThresholdNotification(t *testing.T) {
	t.Parallel()

	db, cleanup := pgtestutil.NewTestDB(t)
	defer cleanup()

	svc := New(db)
	notifier := &recordingNotifier{}
	svc.SetThresholdNotifier(notifier)

	ctx := context.Background()

	_, err := svc.Credit(ctx, "p-1", 600, transactions.TypeEarn, "", "")
	if err != nil {
		t.Fatalf("credit: %v", err)
	}
	if len(notifier.crossed) != 0 {
		t.Fatalf("notified below threshold: %v", notifier.crossed)
	}

	// 600 -> 1100 crosses the threshold exactly once.
	_, err = svc.Credit(ctx, "p-1", 500, transactions.TypeEarn, "", "")
	if err != nil {
		t.Fatalf("credit: %v", err)
	}
	if len(notifier.crossed) != 1 || notifier.crossed[0] != "p-1" {
		t.Fatalf("expected one crossing for p-1, got: %v", notifier.crossed)
	}

	// Already above threshold; no further event.
	_, err = svc.Credit(ctx, "p-1", 100, transactions.TypeEarn, "", "")
	if err != nil {
		t.Fatalf("credit: %v", err)
	}
	if len(notifier.crossed) != 1 {
		t.Fatalf("expected no repeat crossing, got: %v", notifier.crossed)
	}
}
