package accounts

import (
	"database/sql"
	"fmt"

	"github.com/profilehub/mypts/internal/repos/accounts"
)

func (r *accountsRepo) Ensure(tx *sql.Tx, profileID string) error {
	_, err := tx.Exec(`
		INSERT INTO accounts (profile_id)
		VALUES ($1)
		ON CONFLICT (profile_id) DO NOTHING
	`, profileID)
	if err != nil {
		return fmt.Errorf("ensure account: %w", err)
	}

	return nil
}

func (r *accountsRepo) Exists(tx *sql.Tx, profileID string) error {
	var exists bool

	err := tx.QueryRow(`
		SELECT EXISTS(SELECT 1 FROM accounts WHERE profile_id = $1)
	`, profileID).Scan(&exists)
	if err != nil {
		return fmt.Errorf("check exists: %w", err)
	}

	if !exists {
		return accounts.ErrAccountNotFound
	}

	return nil
}
