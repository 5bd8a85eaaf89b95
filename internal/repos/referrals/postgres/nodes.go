package referrals

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/profilehub/mypts/internal/repos/referrals"
)

var _ referrals.Referrals = (*referralsRepo)(nil)

type referralsRepo struct{ db *sql.DB }

func New(db *sql.DB) *referralsRepo {
	return &referralsRepo{db: db}
}

const nodeColumns = `profile_id, COALESCE(referral_code, ''), COALESCE(referred_by, ''),
	total_referrals, successful_referrals, milestone_level, earned_points, pending_points, created_at`

func (r *referralsRepo) EnsureNode(tx *sql.Tx, profileID string) error {
	_, err := tx.Exec(`
		INSERT INTO referral_nodes (profile_id)
		VALUES ($1)
		ON CONFLICT (profile_id) DO NOTHING
	`, profileID)
	if err != nil {
		return fmt.Errorf("ensure node: %w", err)
	}

	return nil
}

func (r *referralsRepo) GetNode(tx *sql.Tx, profileID string) (referrals.Node, error) {
	row := tx.QueryRow(`
		SELECT `+nodeColumns+`
		FROM referral_nodes
		WHERE profile_id = $1
	`, profileID)

	return scanNode(row)
}

func (r *referralsRepo) LockNode(tx *sql.Tx, profileID string) (referrals.Node, error) {
	row := tx.QueryRow(`
		SELECT `+nodeColumns+`
		FROM referral_nodes
		WHERE profile_id = $1
		FOR UPDATE
	`, profileID)

	return scanNode(row)
}

func (r *referralsRepo) Node(ctx context.Context, profileID string) (referrals.Node, error) {
	row := r.db.QueryRowContext(ctx, `
		SELECT `+nodeColumns+`
		FROM referral_nodes
		WHERE profile_id = $1
	`, profileID)

	return scanNode(row)
}

func scanNode(row *sql.Row) (referrals.Node, error) {
	var n referrals.Node

	err := row.Scan(
		&n.ProfileID, &n.ReferralCode, &n.ReferredBy,
		&n.TotalReferrals, &n.SuccessfulReferrals, &n.MilestoneLevel,
		&n.EarnedPoints, &n.PendingPoints, &n.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return referrals.Node{}, referrals.ErrNodeNotFound
		}

		return referrals.Node{}, fmt.Errorf("scan node: %w", err)
	}

	return n, nil
}
