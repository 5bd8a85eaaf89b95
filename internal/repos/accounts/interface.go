package accounts

import (
	"context"
	"database/sql"
	"errors"
	"time"
)

var ErrInsufficientBalance = errors.New("insufficient balance")
var ErrAccountNotFound = errors.New("account not found")

// Account is one profile's spendable MyPts balance plus lifetime counters.
type Account struct {
	ProfileID         string
	Balance           int64
	LifetimeEarned    int64
	LifetimeSpent     int64
	LastTransactionAt *time.Time
}

type Accounts interface {
	// Ensure creates the account row with a zero balance if it does not exist yet.
	Ensure(tx *sql.Tx, profileID string) error
	Exists(tx *sql.Tx, profileID string) error
	Get(ctx context.Context, profileID string) (Account, error)
	// LockForUpdate takes a row lock and returns the current state.
	LockForUpdate(tx *sql.Tx, profileID string) (Account, error)
	ApplyCredit(tx *sql.Tx, profileID string, amount int64, at time.Time) error
	ApplyDebit(tx *sql.Tx, profileID string, amount int64, at time.Time) error
}
