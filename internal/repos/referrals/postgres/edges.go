package referrals

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/profilehub/mypts/internal/repos/referrals"
)

func (r *referralsRepo) SetReferrer(tx *sql.Tx, referredID, referrerID string) (bool, error) {
	res, err := tx.Exec(`
		UPDATE referral_nodes
		SET referred_by = $2
		WHERE profile_id = $1
		  AND referred_by IS NULL
	`, referredID, referrerID)
	if err != nil {
		return false, fmt.Errorf("set referrer: %w", err)
	}

	affected, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("rows affected: %w", err)
	}

	return affected == 1, nil
}

func (r *referralsRepo) InsertEdge(tx *sql.Tx, referrerID, referredID string, at time.Time) (bool, error) {
	res, err := tx.Exec(`
		INSERT INTO referral_edges (referrer_id, referred_id, joined_at)
		VALUES ($1, $2, $3)
		ON CONFLICT (referrer_id, referred_id) DO NOTHING
	`, referrerID, referredID, at)
	if err != nil {
		return false, fmt.Errorf("insert edge: %w", err)
	}

	affected, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("rows affected: %w", err)
	}

	return affected == 1, nil
}

func (r *referralsRepo) IncrementTotal(tx *sql.Tx, referrerID string) error {
	_, err := tx.Exec(`
		UPDATE referral_nodes
		SET total_referrals = total_referrals + 1
		WHERE profile_id = $1
	`, referrerID)
	if err != nil {
		return fmt.Errorf("increment total referrals: %w", err)
	}

	return nil
}

func (r *referralsRepo) MarkEdgeReached(tx *sql.Tx, referrerID, referredID string, at time.Time) (bool, error) {
	res, err := tx.Exec(`
		UPDATE referral_edges
		SET reached_threshold = TRUE,
		    threshold_reached_at = $3
		WHERE referrer_id = $1
		  AND referred_id = $2
		  AND NOT reached_threshold
	`, referrerID, referredID, at)
	if err != nil {
		return false, fmt.Errorf("mark edge reached: %w", err)
	}

	affected, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("rows affected: %w", err)
	}

	return affected == 1, nil
}

func (r *referralsRepo) IncrementSuccessful(tx *sql.Tx, referrerID string) error {
	_, err := tx.Exec(`
		UPDATE referral_nodes
		SET successful_referrals = successful_referrals + 1
		WHERE profile_id = $1
	`, referrerID)
	if err != nil {
		return fmt.Errorf("increment successful referrals: %w", err)
	}

	return nil
}

const edgeColumns = `referrer_id, referred_id, joined_at, reached_threshold, threshold_reached_at`

func (r *referralsRepo) SuccessfulEdges(tx *sql.Tx, referrerID string) ([]referrals.Edge, error) {
	rows, err := tx.Query(`
		SELECT `+edgeColumns+`
		FROM referral_edges
		WHERE referrer_id = $1
		  AND reached_threshold
		ORDER BY threshold_reached_at ASC
	`, referrerID)
	if err != nil {
		return nil, fmt.Errorf("query successful edges: %w", err)
	}
	defer rows.Close()

	return collectEdges(rows)
}

func (r *referralsRepo) Edges(ctx context.Context, referrerID string) ([]referrals.Edge, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT `+edgeColumns+`
		FROM referral_edges
		WHERE referrer_id = $1
		ORDER BY joined_at ASC
	`, referrerID)
	if err != nil {
		return nil, fmt.Errorf("query edges: %w", err)
	}
	defer rows.Close()

	return collectEdges(rows)
}

func collectEdges(rows *sql.Rows) ([]referrals.Edge, error) {
	var out []referrals.Edge

	for rows.Next() {
		var e referrals.Edge

		err := rows.Scan(&e.ReferrerID, &e.ReferredID, &e.JoinedAt, &e.ReachedThreshold, &e.ThresholdReachedAt)
		if err != nil {
			return nil, fmt.Errorf("scan edge: %w", err)
		}

		out = append(out, e)
	}

	err := rows.Err()
	if err != nil {
		return nil, fmt.Errorf("iterate edges: %w", err)
	}

	return out, nil
}
