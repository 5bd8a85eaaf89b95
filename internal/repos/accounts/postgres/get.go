package accounts

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/profilehub/mypts/internal/repos/accounts"
)

func (r *accountsRepo) Get(ctx context.Context, profileID string) (accounts.Account, error) {
	var acc accounts.Account

	err := r.db.QueryRowContext(ctx, `
		SELECT profile_id, balance, lifetime_earned, lifetime_spent, last_transaction_at
		FROM accounts
		WHERE profile_id = $1
	`, profileID).Scan(
		&acc.ProfileID, &acc.Balance, &acc.LifetimeEarned, &acc.LifetimeSpent, &acc.LastTransactionAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return accounts.Account{}, accounts.ErrAccountNotFound
		}

		return accounts.Account{}, fmt.Errorf("get account: %w", err)
	}

	return acc, nil
}
