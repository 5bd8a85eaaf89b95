package referrals

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/google/uuid"

	"github.com/profilehub/mypts/internal/repos/referrals"
)

func (r *referralsRepo) SetMilestoneLevel(tx *sql.Tx, profileID string, level int) error {
	// The level guard keeps the milestone monotonic even under a racing
	// evaluator that lost the row lock.
	_, err := tx.Exec(`
		UPDATE referral_nodes
		SET milestone_level = $2
		WHERE profile_id = $1
		  AND milestone_level < $2
	`, profileID, level)
	if err != nil {
		return fmt.Errorf("set milestone level: %w", err)
	}

	return nil
}

func (r *referralsRepo) InsertReward(tx *sql.Tx, reward referrals.Reward) error {
	_, err := tx.Exec(`
		INSERT INTO referral_rewards (id, profile_id, kind, amount, status, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)
	`, reward.ID, reward.ProfileID, reward.Kind, reward.Amount, reward.Status, reward.CreatedAt)
	if err != nil {
		return fmt.Errorf("insert reward: %w", err)
	}

	return nil
}

func (r *referralsRepo) UpdateRewardStatus(ctx context.Context, id uuid.UUID, status referrals.RewardStatus) error {
	_, err := r.db.ExecContext(ctx, `
		UPDATE referral_rewards
		SET status = $2
		WHERE id = $1
	`, id, status)
	if err != nil {
		return fmt.Errorf("update reward status: %w", err)
	}

	return nil
}

func (r *referralsRepo) AddEarnedPoints(ctx context.Context, profileID string, amount int64) error {
	_, err := r.db.ExecContext(ctx, `
		UPDATE referral_nodes
		SET earned_points = earned_points + $2
		WHERE profile_id = $1
	`, profileID, amount)
	if err != nil {
		return fmt.Errorf("add earned points: %w", err)
	}

	return nil
}

func (r *referralsRepo) AddPendingPoints(ctx context.Context, profileID string, amount int64) error {
	_, err := r.db.ExecContext(ctx, `
		UPDATE referral_nodes
		SET pending_points = pending_points + $2
		WHERE profile_id = $1
	`, profileID, amount)
	if err != nil {
		return fmt.Errorf("add pending points: %w", err)
	}

	return nil
}

func (r *referralsRepo) Rewards(ctx context.Context, profileID string) ([]referrals.Reward, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, profile_id, kind, amount, status, created_at
		FROM referral_rewards
		WHERE profile_id = $1
		ORDER BY created_at ASC
	`, profileID)
	if err != nil {
		return nil, fmt.Errorf("query rewards: %w", err)
	}
	defer rows.Close()

	var out []referrals.Reward

	for rows.Next() {
		var rw referrals.Reward

		err = rows.Scan(&rw.ID, &rw.ProfileID, &rw.Kind, &rw.Amount, &rw.Status, &rw.CreatedAt)
		if err != nil {
			return nil, fmt.Errorf("scan reward: %w", err)
		}

		out = append(out, rw)
	}

	err = rows.Err()
	if err != nil {
		return nil, fmt.Errorf("iterate rewards: %w", err)
	}

	return out, nil
}
