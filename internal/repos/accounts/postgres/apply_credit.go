package accounts

import (
	"database/sql"
	"fmt"
	"time"
)

func (r *accountsRepo) ApplyCredit(tx *sql.Tx, profileID string, amount int64, at time.Time) error {
	_, err := tx.Exec(`
		UPDATE accounts
		SET balance = balance + $2,
		    lifetime_earned = lifetime_earned + $2,
		    last_transaction_at = $3
		WHERE profile_id = $1
	`, profileID, amount, at)
	if err != nil {
		return fmt.Errorf("apply credit: %w", err)
	}

	return nil
}
