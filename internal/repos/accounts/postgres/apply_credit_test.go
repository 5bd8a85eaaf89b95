package accounts

import (
	"context"
	"database/sql"
	"errors"
	"testing"
	"time"

	"github.com/profilehub/mypts/internal/infra/pgtestutil"
	"github.com/profilehub/mypts/internal/repos/accounts"
)

func TestAccounts_ApplyCredit_Basic(t *testing.T) {
	t.Parallel()

	type tc struct {
		name         string
		seed         func(db *sql.DB, t *testing.T)
		profileID    string
		amount       int64
		wantBalance  int64
		wantLifetime int64
	}

	tests := []tc{
		{
			name:         "credit_from_zero",
			seed:         func(db *sql.DB, t *testing.T) { seedAccount(db, t, "p-101", 0) },
			profileID:    "p-101",
			amount:       250,
			wantBalance:  250,
			wantLifetime: 250,
		},
		{
			name:         "credit_from_positive",
			seed:         func(db *sql.DB, t *testing.T) { seedAccount(db, t, "p-102", 1_000) },
			profileID:    "p-102",
			amount:       500,
			wantBalance:  1_500,
			wantLifetime: 500,
		},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			db, cleanup := pgtestutil.NewTestDB(t)
			defer cleanup()

			tt.seed(db, t)

			repo := New(db)

			ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()

			tx, err := db.BeginTx(ctx, nil)
			if err != nil {
				t.Fatalf("begin tx: %v", err)
			}
			defer func() { _ = tx.Rollback() }()

			now := time.Now().UTC()

			err = repo.ApplyCredit(tx, tt.profileID, tt.amount, now)
			if err != nil {
				t.Fatalf("apply credit: %v", err)
			}

			err = tx.Commit()
			if err != nil {
				t.Fatalf("commit: %v", err)
			}

			acc, err := repo.Get(ctx, tt.profileID)
			if err != nil {
				t.Fatalf("get account: %v", err)
			}

			if acc.Balance != tt.wantBalance {
				t.Fatalf("balance mismatch: want %d, got %d", tt.wantBalance, acc.Balance)
			}
			if acc.LifetimeEarned != tt.wantLifetime {
				t.Fatalf("lifetime earned mismatch: want %d, got %d", tt.wantLifetime, acc.LifetimeEarned)
			}
			if acc.LastTransactionAt == nil {
				t.Fatalf("last transaction time not set")
			}
		})
	}
}

func TestAccounts_Ensure_FindOrCreate(t *testing.T) {
	t.Parallel()

	db, cleanup := pgtestutil.NewTestDB(t)
	defer cleanup()

	repo := New(db)

	ctx := context.Background()

	_, err := repo.Get(ctx, "p-new")
	if !errors.Is(err, accounts.ErrAccountNotFound) {
		t.Fatalf("expected ErrAccountNotFound before ensure, got: %v", err)
	}

	// Ensure twice: second call must be a no-op, not a conflict.
	for i := 0; i < 2; i++ {
		tx, err := db.BeginTx(ctx, nil)
		if err != nil {
			t.Fatalf("begin tx: %v", err)
		}

		err = repo.Ensure(tx, "p-new")
		if err != nil {
			t.Fatalf("ensure: %v", err)
		}

		err = tx.Commit()
		if err != nil {
			t.Fatalf("commit: %v", err)
		}
	}

	acc, err := repo.Get(ctx, "p-new")
	if err != nil {
		t.Fatalf("get after ensure: %v", err)
	}

	if acc.Balance != 0 {
		t.Fatalf("new account balance: want 0, got %d", acc.Balance)
	}
}
