package transactions

import (
	"context"
	"fmt"

	"github.com/profilehub/mypts/internal/repos/transactions"
)

func (r *transactionsRepo) History(ctx context.Context, profileID string, limit, offset int) ([]transactions.Transaction, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT `+columns+`
		FROM transactions
		WHERE profile_id = $1
		ORDER BY created_at DESC, id DESC
		LIMIT $2 OFFSET $3
	`, profileID, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("query history: %w", err)
	}
	defer rows.Close()

	return collect(rows)
}

func (r *transactionsRepo) HistoryByType(ctx context.Context, profileID string, txType transactions.Type, limit, offset int) ([]transactions.Transaction, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT `+columns+`
		FROM transactions
		WHERE profile_id = $1
		  AND type = $2
		ORDER BY created_at DESC, id DESC
		LIMIT $3 OFFSET $4
	`, profileID, txType, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("query history by type: %w", err)
	}
	defer rows.Close()

	return collect(rows)
}

type sqlRows interface {
	rowScanner
	Next() bool
	Err() error
}

func collect(rows sqlRows) ([]transactions.Transaction, error) {
	var out []transactions.Transaction

	for rows.Next() {
		txn, err := scanTransaction(rows)
		if err != nil {
			return nil, fmt.Errorf("scan transaction: %w", err)
		}

		out = append(out, txn)
	}

	err := rows.Err()
	if err != nil {
		return nil, fmt.Errorf("iterate transactions: %w", err)
	}

	return out, nil
}
