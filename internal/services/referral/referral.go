// Package referral maintains the referral forest and runs the milestone
// evaluator that turns referral growth into ledger credits.
package referral

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/profilehub/mypts/internal/infra/metrics"
	"github.com/profilehub/mypts/internal/infra/pgutils"
	"github.com/profilehub/mypts/internal/repos/referrals"
	pgreferrals "github.com/profilehub/mypts/internal/repos/referrals/postgres"
	"github.com/profilehub/mypts/internal/repos/transactions"
)

var ErrCodeGenerationExhausted = errors.New("referral code generation exhausted")

// RewardCrediter issues milestone rewards into the ledger. Implemented by the
// ledger service; depending on the interface instead of the service keeps the
// ledger->referral->ledger loop out of the package graph.
type RewardCrediter interface {
	Credit(ctx context.Context, profileID string, amount int64, txType transactions.Type, description, referenceID string) (transactions.Transaction, error)
}

type Service struct {
	db         *sql.DB
	repo       referrals.Referrals
	crediter   RewardCrediter
	milestones []Milestone
}

// New builds the referral service. A nil table selects DefaultMilestones.
func New(dbx *sql.DB, crediter RewardCrediter, table []Milestone) *Service {
	if table == nil {
		table = DefaultMilestones
	}

	return &Service{
		db:         dbx,
		repo:       pgreferrals.New(dbx),
		crediter:   crediter,
		milestones: table,
	}
}

// InitializeCode find-or-creates the profile's referral node and returns its
// code, generating one on first touch. Generation retries a bounded number of
// times on code collision.
func (s *Service) InitializeCode(ctx context.Context, profileID string) (string, error) {
	err := pgutils.WithTx(ctx, s.db, func(tx *sql.Tx) error {
		return s.repo.EnsureNode(tx, profileID)
	})
	if err != nil {
		return "", fmt.Errorf("ensure node: %w", err)
	}

	node, err := s.repo.Node(ctx, profileID)
	if err != nil {
		return "", fmt.Errorf("get node: %w", err)
	}

	if node.ReferralCode != "" {
		return node.ReferralCode, nil
	}

	for attempt := 1; attempt <= maxCodeAttempts; attempt++ {
		code, err := generateCode()
		if err != nil {
			return "", fmt.Errorf("generate code: %w", err)
		}

		assigned, err := s.repo.AssignCode(ctx, profileID, code)
		if err != nil {
			if errors.Is(err, referrals.ErrDuplicateCode) {
				continue
			}

			return "", fmt.Errorf("assign code: %w", err)
		}

		if !assigned {
			// Lost a race against a concurrent initialization; the winner's
			// code is the node's code.
			node, err := s.repo.Node(ctx, profileID)
			if err != nil {
				return "", fmt.Errorf("reload node: %w", err)
			}

			return node.ReferralCode, nil
		}

		return code, nil
	}

	return "", ErrCodeGenerationExhausted
}

// ValidateCode resolves a referral code to its owner. A miss is not an
// error; ok is false and callers decide how to react.
func (s *Service) ValidateCode(ctx context.Context, code string) (string, bool, error) {
	profileID, ok, err := s.repo.ByCode(ctx, code)
	if err != nil {
		return "", false, fmt.Errorf("validate code: %w", err)
	}

	return profileID, ok, nil
}

// ProcessReferral links a newly joined profile to its referrer.
// Self-referrals are dropped silently. The first referrer wins: once
// referred_by is set it is never overwritten, and a competing referrer gets
// no edge. Replays of the same pair are idempotent.
func (s *Service) ProcessReferral(ctx context.Context, referredID, referrerID string) error {
	if referredID == referrerID {
		slog.Debug("self-referral ignored", "profile_id", referredID)

		return nil
	}

	err := pgutils.WithTx(ctx, s.db, func(tx *sql.Tx) error {
		err := s.repo.EnsureNode(tx, referrerID)
		if err != nil {
			return fmt.Errorf("ensure referrer node: %w", err)
		}

		err = s.repo.EnsureNode(tx, referredID)
		if err != nil {
			return fmt.Errorf("ensure referred node: %w", err)
		}

		set, err := s.repo.SetReferrer(tx, referredID, referrerID)
		if err != nil {
			return fmt.Errorf("set referrer: %w", err)
		}

		if !set {
			node, err := s.repo.GetNode(tx, referredID)
			if err != nil {
				return fmt.Errorf("get referred node: %w", err)
			}

			if node.ReferredBy != referrerID {
				slog.Info("referral already claimed",
					"referred", referredID, "claimed_by", node.ReferredBy, "rejected", referrerID)

				return nil
			}
		}

		created, err := s.repo.InsertEdge(tx, referrerID, referredID, time.Now().UTC())
		if err != nil {
			return fmt.Errorf("insert edge: %w", err)
		}

		if created {
			err = s.repo.IncrementTotal(tx, referrerID)
			if err != nil {
				return fmt.Errorf("increment total: %w", err)
			}
		}

		return nil
	})
	if err != nil {
		return fmt.Errorf("process referral: %w", err)
	}

	return nil
}

// OnThresholdCrossed handles a referred profile's balance first crossing the
// success threshold: the referrer's edge is marked (once), the successful
// count raised, and the milestone ladder re-evaluated. Reward settlement
// happens after the graph commit and never fails the event.
func (s *Service) OnThresholdCrossed(ctx context.Context, profileID string) error {
	node, err := s.repo.Node(ctx, profileID)
	if err != nil {
		if errors.Is(err, referrals.ErrNodeNotFound) {
			return nil // profile was never referred
		}

		return fmt.Errorf("get node: %w", err)
	}

	if node.ReferredBy == "" {
		return nil
	}

	referrerID := node.ReferredBy

	var pending []pendingReward

	err = pgutils.WithTx(ctx, s.db, func(tx *sql.Tx) error {
		_, err := s.repo.LockNode(tx, referrerID)
		if err != nil {
			return fmt.Errorf("lock referrer node: %w", err)
		}

		updated, err := s.repo.MarkEdgeReached(tx, referrerID, profileID, time.Now().UTC())
		if err != nil {
			return fmt.Errorf("mark edge: %w", err)
		}

		if !updated {
			return nil // already counted; reached_threshold is monotonic
		}

		err = s.repo.IncrementSuccessful(tx, referrerID)
		if err != nil {
			return fmt.Errorf("increment successful: %w", err)
		}

		pending, err = s.advanceMilestones(tx, referrerID)
		if err != nil {
			return fmt.Errorf("advance milestones: %w", err)
		}

		return nil
	})
	if err != nil {
		return fmt.Errorf("threshold crossed: %w", err)
	}

	s.settleRewards(ctx, referrerID, pending)

	return nil
}

// EvaluateMilestones re-runs the evaluator for a referrer without a new
// threshold event. With no new successful referrals it is a no-op, since the
// milestone level only moves forward.
func (s *Service) EvaluateMilestones(ctx context.Context, referrerID string) error {
	var pending []pendingReward

	err := pgutils.WithTx(ctx, s.db, func(tx *sql.Tx) error {
		_, err := s.repo.LockNode(tx, referrerID)
		if err != nil {
			return fmt.Errorf("lock referrer node: %w", err)
		}

		pending, err = s.advanceMilestones(tx, referrerID)
		if err != nil {
			return fmt.Errorf("advance milestones: %w", err)
		}

		return nil
	})
	if err != nil {
		return fmt.Errorf("evaluate milestones: %w", err)
	}

	s.settleRewards(ctx, referrerID, pending)

	return nil
}

// Node returns the profile's referral state for read-only consumers.
func (s *Service) Node(ctx context.Context, profileID string) (referrals.Node, error) {
	node, err := s.repo.Node(ctx, profileID)
	if err != nil {
		return referrals.Node{}, fmt.Errorf("get node: %w", err)
	}

	return node, nil
}

func (s *Service) Rewards(ctx context.Context, profileID string) ([]referrals.Reward, error) {
	rewards, err := s.repo.Rewards(ctx, profileID)
	if err != nil {
		return nil, fmt.Errorf("get rewards: %w", err)
	}

	return rewards, nil
}

type pendingReward struct {
	reward referrals.Reward
	level  int
}

// advanceMilestones walks the ladder for the locked referrer, raises the
// level for each newly reached milestone and records a pending reward row.
// The qualification flags are one-hop lookups into each successful child's
// own node, bounded by the referrer's fan-out.
func (s *Service) advanceMilestones(tx *sql.Tx, referrerID string) ([]pendingReward, error) {
	node, err := s.repo.GetNode(tx, referrerID)
	if err != nil {
		return nil, fmt.Errorf("reload referrer: %w", err)
	}

	edges, err := s.repo.SuccessfulEdges(tx, referrerID)
	if err != nil {
		return nil, fmt.Errorf("successful edges: %w", err)
	}

	qualifying := make([]bool, len(edges))

	for i, edge := range edges {
		child, err := s.repo.GetNode(tx, edge.ReferredID)
		if err != nil {
			if errors.Is(err, referrals.ErrNodeNotFound) {
				continue
			}

			return nil, fmt.Errorf("child node %s: %w", edge.ReferredID, err)
		}

		qualifying[i] = child.SuccessfulReferrals >= QualifyThreshold
	}

	reached := Advance(s.milestones, node.MilestoneLevel, node.SuccessfulReferrals, qualifying)

	var pending []pendingReward

	for _, m := range reached {
		reward := referrals.Reward{
			ID:        uuid.New(),
			ProfileID: referrerID,
			Kind:      fmt.Sprintf("milestone_%d", m.Level),
			Amount:    m.Reward,
			Status:    referrals.RewardPending,
			CreatedAt: time.Now().UTC(),
		}

		err = s.repo.InsertReward(tx, reward)
		if err != nil {
			return nil, fmt.Errorf("insert reward: %w", err)
		}

		err = s.repo.SetMilestoneLevel(tx, referrerID, m.Level)
		if err != nil {
			return nil, fmt.Errorf("set milestone level: %w", err)
		}

		pending = append(pending, pendingReward{reward: reward, level: m.Level})
	}

	return pending, nil
}

// settleRewards issues the ledger credit for each pending reward recorded by
// the committed evaluation. A failed credit leaves the reward row failed and
// the amount in pending_points; it is logged, never propagated, so reward
// bookkeeping cannot fail the monetary operation that triggered it.
func (s *Service) settleRewards(ctx context.Context, referrerID string, pending []pendingReward) {
	for _, p := range pending {
		description := fmt.Sprintf("milestone %d", p.level)

		_, err := s.crediter.Credit(ctx, referrerID, p.reward.Amount, transactions.TypeEarn, description, "")
		if err != nil {
			slog.Error("milestone reward credit failed",
				"profile_id", referrerID, "level", p.level, "amount", p.reward.Amount, "error", err)
			metrics.RewardsIssuedTotal.WithLabelValues("failed").Inc()

			serr := s.repo.UpdateRewardStatus(ctx, p.reward.ID, referrals.RewardFailed)
			if serr != nil {
				slog.Error("mark reward failed", "reward_id", p.reward.ID, "error", serr)
			}

			serr = s.repo.AddPendingPoints(ctx, referrerID, p.reward.Amount)
			if serr != nil {
				slog.Error("accrue pending points", "profile_id", referrerID, "error", serr)
			}

			continue
		}

		metrics.RewardsIssuedTotal.WithLabelValues("completed").Inc()

		serr := s.repo.UpdateRewardStatus(ctx, p.reward.ID, referrals.RewardCompleted)
		if serr != nil {
			slog.Error("mark reward completed", "reward_id", p.reward.ID, "error", serr)
		}

		serr = s.repo.AddEarnedPoints(ctx, referrerID, p.reward.Amount)
		if serr != nil {
			slog.Error("accrue earned points", "profile_id", referrerID, "error", serr)
		}
	}
}
