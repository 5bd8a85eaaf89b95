package referrals

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/google/uuid"
)

var ErrDuplicateCode = errors.New("duplicate referral code")
var ErrNodeNotFound = errors.New("referral node not found")

// Node is one profile's position in the referral forest.
// ReferredBy is empty for roots; MilestoneLevel only ever increases.
type Node struct {
	ProfileID           string
	ReferralCode        string
	ReferredBy          string
	TotalReferrals      int
	SuccessfulReferrals int
	MilestoneLevel      int
	EarnedPoints        int64
	PendingPoints       int64
	CreatedAt           time.Time
}

// Edge is a "referred" link from referrer to referred profile.
// ReachedThreshold is monotonic: set once when the referred profile's balance
// first crosses the success threshold, never cleared.
type Edge struct {
	ReferrerID         string
	ReferredID         string
	JoinedAt           time.Time
	ReachedThreshold   bool
	ThresholdReachedAt *time.Time
}

type RewardStatus string

const (
	RewardPending   RewardStatus = "pending"
	RewardCompleted RewardStatus = "completed"
	RewardFailed    RewardStatus = "failed"
)

type Reward struct {
	ID        uuid.UUID
	ProfileID string
	Kind      string
	Amount    int64
	Status    RewardStatus
	CreatedAt time.Time
}

type Referrals interface {
	EnsureNode(tx *sql.Tx, profileID string) error
	GetNode(tx *sql.Tx, profileID string) (Node, error)
	// LockNode takes a row lock; every graph mutation goes through it.
	LockNode(tx *sql.Tx, profileID string) (Node, error)
	Node(ctx context.Context, profileID string) (Node, error)

	// AssignCode sets the code if none is assigned yet; assigned reports
	// whether this call won. A collision with another node's code returns
	// ErrDuplicateCode.
	AssignCode(ctx context.Context, profileID, code string) (assigned bool, err error)
	ByCode(ctx context.Context, code string) (profileID string, ok bool, err error)

	// SetReferrer records the referrer only when none is set (first wins).
	SetReferrer(tx *sql.Tx, referredID, referrerID string) (set bool, err error)
	InsertEdge(tx *sql.Tx, referrerID, referredID string, at time.Time) (created bool, err error)
	IncrementTotal(tx *sql.Tx, referrerID string) error
	// MarkEdgeReached flips reached_threshold once; updated is false when the
	// edge was already marked or does not exist.
	MarkEdgeReached(tx *sql.Tx, referrerID, referredID string, at time.Time) (updated bool, err error)
	IncrementSuccessful(tx *sql.Tx, referrerID string) error
	// SuccessfulEdges returns threshold-reached edges ordered by the moment
	// they became successful.
	SuccessfulEdges(tx *sql.Tx, referrerID string) ([]Edge, error)
	Edges(ctx context.Context, referrerID string) ([]Edge, error)

	SetMilestoneLevel(tx *sql.Tx, profileID string, level int) error
	InsertReward(tx *sql.Tx, reward Reward) error
	UpdateRewardStatus(ctx context.Context, id uuid.UUID, status RewardStatus) error
	AddEarnedPoints(ctx context.Context, profileID string, amount int64) error
	AddPendingPoints(ctx context.Context, profileID string, amount int64) error
	Rewards(ctx context.Context, profileID string) ([]Reward, error)
}
