package referrals

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5/pgconn"

	"github.com/profilehub/mypts/internal/repos/referrals"
)

func (r *referralsRepo) AssignCode(ctx context.Context, profileID, code string) (bool, error) {
	res, err := r.db.ExecContext(ctx, `
		UPDATE referral_nodes
		SET referral_code = $2
		WHERE profile_id = $1
		  AND referral_code IS NULL
	`, profileID, code)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) {
			if pgErr.Code == "23505" { // unique_violation
				return false, referrals.ErrDuplicateCode
			}
		}

		return false, fmt.Errorf("assign code: %w", err)
	}

	affected, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("rows affected: %w", err)
	}

	// 0 rows: either the node is missing or another call already assigned.
	return affected == 1, nil
}

func (r *referralsRepo) ByCode(ctx context.Context, code string) (string, bool, error) {
	var profileID string

	err := r.db.QueryRowContext(ctx, `
		SELECT profile_id
		FROM referral_nodes
		WHERE referral_code = $1
	`, code).Scan(&profileID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return "", false, nil
		}

		return "", false, fmt.Errorf("lookup code: %w", err)
	}

	return profileID, true, nil
}
