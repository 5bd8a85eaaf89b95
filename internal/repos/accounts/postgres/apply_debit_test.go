package accounts

import (
	"context"
	"database/sql"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/profilehub/mypts/internal/infra/pgtestutil"
	"github.com/profilehub/mypts/internal/repos/accounts"
)

func seedAccount(db *sql.DB, t *testing.T, profileID string, balance int64) {
	t.Helper()

	_, err := db.Exec(`
		INSERT INTO accounts (profile_id, balance) VALUES ($1, $2)
		ON CONFLICT (profile_id) DO UPDATE SET balance = EXCLUDED.balance
	`, profileID, balance)
	if err != nil {
		t.Fatalf("seed account(%s): %v", profileID, err)
	}
}

func getBalance(db *sql.DB, t *testing.T, profileID string) int64 {
	t.Helper()

	var balance int64

	err := db.QueryRow(`SELECT balance FROM accounts WHERE profile_id = $1`, profileID).Scan(&balance)
	if err != nil {
		t.Fatalf("get balance(%s): %v", profileID, err)
	}

	return balance
}

func TestAccounts_ApplyDebit_Table(t *testing.T) {
	t.Parallel()

	type tc struct {
		name          string
		seed          func(db *sql.DB, t *testing.T)
		profileID     string
		amount        int64
		wantBalance   int64
		wantErr       bool // true -> expect accounts.ErrInsufficientBalance
		checkFinalBal bool
	}

	tests := []tc{
		{
			name:          "sufficient_balance",
			seed:          func(db *sql.DB, t *testing.T) { seedAccount(db, t, "p-201", 1_000) },
			profileID:     "p-201",
			amount:        250,
			wantBalance:   750,
			checkFinalBal: true,
		},
		{
			name:          "exact_to_zero",
			seed:          func(db *sql.DB, t *testing.T) { seedAccount(db, t, "p-202", 300) },
			profileID:     "p-202",
			amount:        300,
			wantBalance:   0,
			checkFinalBal: true,
		},
		{
			name:          "insufficient_balance_unchanged",
			seed:          func(db *sql.DB, t *testing.T) { seedAccount(db, t, "p-203", 200) },
			profileID:     "p-203",
			amount:        300,
			wantBalance:   200,
			wantErr:       true,
			checkFinalBal: true,
		},
		{
			name:      "account_missing_treated_as_insufficient",
			seed:      func(_ *sql.DB, _ *testing.T) {},
			profileID: "p-missing",
			amount:    100,
			wantErr:   true,
		},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			db, cleanup := pgtestutil.NewTestDB(t)
			defer cleanup()

			if tt.seed != nil {
				tt.seed(db, t)
			}

			repo := New(db)

			ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()

			tx, err := db.BeginTx(ctx, nil)
			if err != nil {
				t.Fatalf("begin tx: %v", err)
			}
			defer func() { _ = tx.Rollback() }()

			err = repo.ApplyDebit(tx, tt.profileID, tt.amount, time.Now().UTC())

			if tt.wantErr {
				if !errors.Is(err, accounts.ErrInsufficientBalance) {
					t.Fatalf("expected ErrInsufficientBalance, got: %v", err)
				}
			} else {
				if err != nil {
					t.Fatalf("apply debit: %v", err)
				}
				err = tx.Commit()
				if err != nil {
					t.Fatalf("commit: %v", err)
				}
			}

			if tt.checkFinalBal {
				got := getBalance(db, t, tt.profileID)
				if got != tt.wantBalance {
					t.Fatalf("final balance mismatch: want %d, got %d", tt.wantBalance, got)
				}
			}
		})
	}
}

func TestAccounts_ApplyDebit_ConcurrentGuard(t *testing.T) {
	t.Parallel()

	db, cleanup := pgtestutil.NewTestDB(t)
	defer cleanup()

	repo := New(db)

	seedAccount(db, t, "p-1", 1000)

	var wg sync.WaitGroup
	var mu sync.Mutex
	success, insufficient := 0, 0

	worker := func(name string) {
		defer wg.Done()

		ctx := context.Background()
		tx, err := db.BeginTx(ctx, nil)
		if err != nil {
			t.Errorf("[%s] begin tx: %v", name, err)
			return
		}
		defer tx.Rollback()

		// Lock row first (this will serialize)
		_, err = repo.LockForUpdate(tx, "p-1")
		if err != nil {
			t.Errorf("[%s] lock account: %v", name, err)
			return
		}

		// Try to debit the full balance
		err = repo.ApplyDebit(tx, "p-1", 1000, time.Now().UTC())
		if err == nil {
			mu.Lock()
			success++
			mu.Unlock()
			if err := tx.Commit(); err != nil {
				t.Errorf("[%s] commit: %v", name, err)
			}
			return
		}

		if errors.Is(err, accounts.ErrInsufficientBalance) {
			mu.Lock()
			insufficient++
			mu.Unlock()
			_ = tx.Rollback()
			return
		}

		t.Errorf("[%s] unexpected error: %v", name, err)
	}

	wg.Add(2)
	go worker("A")
	go worker("B")
	wg.Wait()

	if success != 1 || insufficient != 1 {
		t.Fatalf("want 1 success and 1 insufficient, got success=%d insufficient=%d", success, insufficient)
	}
}
