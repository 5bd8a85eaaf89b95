package accounts

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/profilehub/mypts/internal/repos/accounts"
)

func (r *accountsRepo) ApplyDebit(tx *sql.Tx, profileID string, amount int64, at time.Time) error {
	res, err := tx.Exec(`
		UPDATE accounts
		SET balance = balance - $2,
		    lifetime_spent = lifetime_spent + $2,
		    last_transaction_at = $3
		WHERE profile_id = $1
		  AND balance >= $2
	`, profileID, amount, at)
	if err != nil {
		return fmt.Errorf("apply debit: %w", err)
	}

	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}

	if affected == 0 {
		return accounts.ErrInsufficientBalance
	}

	return nil
}
