package transactions

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5/pgconn"

	"github.com/profilehub/mypts/internal/repos/transactions"
)

var _ transactions.Transactions = (*transactionsRepo)(nil)

type transactionsRepo struct{ db *sql.DB }

func New(db *sql.DB) *transactionsRepo {
	return &transactionsRepo{db: db}
}

const columns = `id, profile_id, type, amount, balance_after, status, description,
	reference_id, related_transaction_id, created_at`

func (r *transactionsRepo) Insert(tx *sql.Tx, txn transactions.Transaction) error {
	var refID sql.NullString
	if txn.ReferenceID != "" {
		refID = sql.NullString{String: txn.ReferenceID, Valid: true}
	}

	_, err := tx.Exec(`
		INSERT INTO transactions
			(id, profile_id, type, amount, balance_after, status, description,
			 reference_id, related_transaction_id, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
	`, txn.ID, txn.ProfileID, txn.Type, txn.Amount, txn.BalanceAfter, txn.Status,
		txn.Description, refID, txn.RelatedTransactionID, txn.CreatedAt)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) {
			if pgErr.Code == "23505" { // unique_violation
				return transactions.ErrDuplicateReference
			}
		}

		return fmt.Errorf("insert transaction: %w", err)
	}

	return nil
}

func (r *transactionsRepo) ByReference(ctx context.Context, referenceID string) (transactions.Transaction, bool, error) {
	row := r.db.QueryRowContext(ctx, `
		SELECT `+columns+`
		FROM transactions
		WHERE reference_id = $1
	`, referenceID)

	txn, err := scanTransaction(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return transactions.Transaction{}, false, nil
		}

		return transactions.Transaction{}, false, fmt.Errorf("by reference: %w", err)
	}

	return txn, true, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanTransaction(row rowScanner) (transactions.Transaction, error) {
	var (
		txn   transactions.Transaction
		refID sql.NullString
	)

	err := row.Scan(
		&txn.ID, &txn.ProfileID, &txn.Type, &txn.Amount, &txn.BalanceAfter,
		&txn.Status, &txn.Description, &refID, &txn.RelatedTransactionID, &txn.CreatedAt,
	)
	if err != nil {
		return transactions.Transaction{}, err
	}

	txn.ReferenceID = refID.String

	return txn, nil
}
