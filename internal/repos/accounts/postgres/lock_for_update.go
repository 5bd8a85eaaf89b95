package accounts

import (
	"database/sql"
	"errors"
	"fmt"

	"github.com/profilehub/mypts/internal/repos/accounts"
)

func (r *accountsRepo) LockForUpdate(tx *sql.Tx, profileID string) (accounts.Account, error) {
	var acc accounts.Account

	err := tx.QueryRow(`
		SELECT profile_id, balance, lifetime_earned, lifetime_spent, last_transaction_at
		FROM accounts
		WHERE profile_id = $1
		FOR UPDATE
	`, profileID).Scan(
		&acc.ProfileID, &acc.Balance, &acc.LifetimeEarned, &acc.LifetimeSpent, &acc.LastTransactionAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return accounts.Account{}, accounts.ErrAccountNotFound
		}

		return accounts.Account{}, fmt.Errorf("lock/get account: %w", err)
	}

	return acc, nil
}
