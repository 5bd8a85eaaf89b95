package referral

import (
	"context"
	"fmt"
	"strings"
	"testing"

	"github.com/profilehub/mypts/internal/infra/pgtestutil"
	"github.com/profilehub/mypts/internal/repos/referrals"
	"github.com/profilehub/mypts/internal/repos/transactions"
	"github.com/profilehub/mypts/internal/services/ledger"
)

func newService(t *testing.T) (*Service, *ledger.Service, func()) {
	t.Helper()

	db, cleanup := pgtestutil.NewTestDB(t)

	ledgerSvc := ledger.New(db)
	svc := New(db, ledgerSvc, nil)

	return svc, ledgerSvc, cleanup
}

func TestReferral_InitializeCode(t *testing.T) {
	t.Parallel()

	svc, _, cleanup := newService(t)
	defer cleanup()

	ctx := context.Background()

	code, err := svc.InitializeCode(ctx, "p-1")
	if err != nil {
		t.Fatalf("initialize code: %v", err)
	}
	if len(code) != codeLength {
		t.Fatalf("code length: want %d, got %q", codeLength, code)
	}
	for _, r := range code {
		if !strings.ContainsRune(codeAlphabet, r) {
			t.Fatalf("code %q contains %q outside the alphabet", code, r)
		}
	}

	// Re-initialization returns the already-assigned code.
	again, err := svc.InitializeCode(ctx, "p-1")
	if err != nil {
		t.Fatalf("re-initialize code: %v", err)
	}
	if again != code {
		t.Fatalf("code changed on re-init: %q vs %q", again, code)
	}

	profileID, ok, err := svc.ValidateCode(ctx, code)
	if err != nil {
		t.Fatalf("validate code: %v", err)
	}
	if !ok || profileID != "p-1" {
		t.Fatalf("code resolution mismatch: ok=%v profile=%q", ok, profileID)
	}

	_, ok, err = svc.ValidateCode(ctx, "AAAA2222")
	if err != nil {
		t.Fatalf("validate unknown code: %v", err)
	}
	if ok {
		t.Fatalf("unknown code resolved")
	}
}

func TestReferral_ProcessReferral(t *testing.T) {
	t.Parallel()

	svc, _, cleanup := newService(t)
	defer cleanup()

	ctx := context.Background()

	// Self-referral is silently dropped, leaving no node behind.
	err := svc.ProcessReferral(ctx, "selfie", "selfie")
	if err != nil {
		t.Fatalf("self-referral: %v", err)
	}

	_, err = svc.Node(ctx, "selfie")
	if err == nil {
		t.Fatalf("self-referral created a node")
	}

	err = svc.ProcessReferral(ctx, "referred", "first")
	if err != nil {
		t.Fatalf("process referral: %v", err)
	}

	// The first referrer keeps the claim; the second gets nothing.
	err = svc.ProcessReferral(ctx, "referred", "second")
	if err != nil {
		t.Fatalf("competing referral: %v", err)
	}

	node, err := svc.Node(ctx, "referred")
	if err != nil {
		t.Fatalf("referred node: %v", err)
	}
	if node.ReferredBy != "first" {
		t.Fatalf("referrer overwritten: %q", node.ReferredBy)
	}

	loser, err := svc.Node(ctx, "second")
	if err != nil {
		t.Fatalf("losing referrer node: %v", err)
	}
	if loser.TotalReferrals != 0 {
		t.Fatalf("losing referrer counted the referral: %+v", loser)
	}

	// Replaying the winning pair changes nothing.
	err = svc.ProcessReferral(ctx, "referred", "first")
	if err != nil {
		t.Fatalf("replayed referral: %v", err)
	}

	winner, err := svc.Node(ctx, "first")
	if err != nil {
		t.Fatalf("winning referrer node: %v", err)
	}
	if winner.TotalReferrals != 1 {
		t.Fatalf("replay double-counted: %+v", winner)
	}
}

func TestReferral_FirstMilestone(t *testing.T) {
	t.Parallel()

	svc, ledgerSvc, cleanup := newService(t)
	defer cleanup()

	ctx := context.Background()

	for _, referred := range []string{"y", "z", "w"} {
		err := svc.ProcessReferral(ctx, referred, "x")
		if err != nil {
			t.Fatalf("process referral %s: %v", referred, err)
		}
	}

	// Two successful referrals are not enough.
	for _, referred := range []string{"y", "z"} {
		err := svc.OnThresholdCrossed(ctx, referred)
		if err != nil {
			t.Fatalf("threshold %s: %v", referred, err)
		}
	}

	node, err := svc.Node(ctx, "x")
	if err != nil {
		t.Fatalf("referrer node: %v", err)
	}
	if node.SuccessfulReferrals != 2 || node.MilestoneLevel != 0 {
		t.Fatalf("premature milestone: %+v", node)
	}

	// The third crossing completes level 1.
	err = svc.OnThresholdCrossed(ctx, "w")
	if err != nil {
		t.Fatalf("threshold w: %v", err)
	}

	node, err = svc.Node(ctx, "x")
	if err != nil {
		t.Fatalf("referrer node: %v", err)
	}
	if node.SuccessfulReferrals != 3 || node.MilestoneLevel != 1 {
		t.Fatalf("milestone not reached: %+v", node)
	}
	if node.EarnedPoints != 100 || node.PendingPoints != 0 {
		t.Fatalf("reward points mismatch: %+v", node)
	}

	rewards, err := svc.Rewards(ctx, "x")
	if err != nil {
		t.Fatalf("rewards: %v", err)
	}
	if len(rewards) != 1 || rewards[0].Status != referrals.RewardCompleted || rewards[0].Amount != 100 {
		t.Fatalf("reward rows mismatch: %+v", rewards)
	}

	// The reward landed in the ledger as an earn credit.
	earned, err := ledgerSvc.HistoryByType(ctx, "x", transactions.TypeEarn, 10, 0)
	if err != nil {
		t.Fatalf("ledger history: %v", err)
	}
	if len(earned) != 1 || earned[0].Amount != 100 {
		t.Fatalf("ledger credit mismatch: %+v", earned)
	}

	// A replayed crossing for an already-counted referral is a no-op.
	err = svc.OnThresholdCrossed(ctx, "y")
	if err != nil {
		t.Fatalf("replayed threshold: %v", err)
	}

	node, err = svc.Node(ctx, "x")
	if err != nil {
		t.Fatalf("referrer node: %v", err)
	}
	if node.SuccessfulReferrals != 3 || node.EarnedPoints != 100 {
		t.Fatalf("replay mutated referrer: %+v", node)
	}
}

func TestReferral_SecondMilestoneNeedsQualifyingChild(t *testing.T) {
	t.Parallel()

	svc, _, cleanup := newService(t)
	defer cleanup()

	ctx := context.Background()

	// x refers y, z, w; all three cross the threshold, reaching level 1.
	for _, referred := range []string{"y", "z", "w"} {
		err := svc.ProcessReferral(ctx, referred, "x")
		if err != nil {
			t.Fatalf("process referral %s: %v", referred, err)
		}

		err = svc.OnThresholdCrossed(ctx, referred)
		if err != nil {
			t.Fatalf("threshold %s: %v", referred, err)
		}
	}

	// Nothing new: re-evaluation must not move the ladder.
	err := svc.EvaluateMilestones(ctx, "x")
	if err != nil {
		t.Fatalf("evaluate milestones: %v", err)
	}

	node, err := svc.Node(ctx, "x")
	if err != nil {
		t.Fatalf("referrer node: %v", err)
	}
	if node.MilestoneLevel != 1 || node.EarnedPoints != 100 {
		t.Fatalf("idle re-evaluation moved the ladder: %+v", node)
	}

	// y builds its own successful subtree and becomes qualifying.
	for i := 0; i < 3; i++ {
		child := fmt.Sprintf("y-%d", i)

		err := svc.ProcessReferral(ctx, child, "y")
		if err != nil {
			t.Fatalf("process referral %s: %v", child, err)
		}

		err = svc.OnThresholdCrossed(ctx, child)
		if err != nil {
			t.Fatalf("threshold %s: %v", child, err)
		}
	}

	// y earned its own level 1 along the way.
	child, err := svc.Node(ctx, "y")
	if err != nil {
		t.Fatalf("child node: %v", err)
	}
	if child.MilestoneLevel != 1 || child.SuccessfulReferrals != 3 {
		t.Fatalf("child ladder mismatch: %+v", child)
	}

	// With one qualifying child, x now clears level 2.
	err = svc.EvaluateMilestones(ctx, "x")
	if err != nil {
		t.Fatalf("evaluate milestones: %v", err)
	}

	node, err = svc.Node(ctx, "x")
	if err != nil {
		t.Fatalf("referrer node: %v", err)
	}
	if node.MilestoneLevel != 2 {
		t.Fatalf("level 2 not reached: %+v", node)
	}
	if node.EarnedPoints != 250 { // 100 + 150
		t.Fatalf("reward total mismatch: %+v", node)
	}
}

func TestReferral_ThresholdForUnreferredProfile(t *testing.T) {
	t.Parallel()

	svc, _, cleanup := newService(t)
	defer cleanup()

	ctx := context.Background()

	// Unknown profile: never referred, nothing to do.
	err := svc.OnThresholdCrossed(ctx, "loner")
	if err != nil {
		t.Fatalf("unknown profile: %v", err)
	}

	// Known root node without a referrer behaves the same.
	_, err = svc.InitializeCode(ctx, "root")
	if err != nil {
		t.Fatalf("initialize code: %v", err)
	}

	err = svc.OnThresholdCrossed(ctx, "root")
	if err != nil {
		t.Fatalf("root profile: %v", err)
	}
}
