package workflow

import (
	"errors"
	"testing"

	"github.com/finchley/pocketmoney/internal/core"
	"github.com/finchley/pocketmoney/internal/database"
	"github.com/finchley/pocketmoney/internal/ledger"
	"github.com/finchley/pocketmoney/internal/model"
	"github.com/finchley/pocketmoney/internal/store"
)

func setupRewardTest(t *testing.T) (*RewardService, *store.RewardStore, *store.KidStore, *ledger.Ledger) {
	t.Helper()
	db, err := database.Open(":memory:")
	if err != nil {
		t.Fatalf("open test db: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	rewards := store.NewRewardStore(db)
	kids := store.NewKidStore(db)
	l := ledger.New(db)
	return NewRewardService(rewards, kids, l), rewards, kids, l
}

func seedKidWithPoints(t *testing.T, kids *store.KidStore, l *ledger.Ledger, points int) *model.Kid {
	t.Helper()
	kid, err := kids.Create("Maya", "#3B82F6", "")
	if err != nil {
		t.Fatalf("create kid: %v", err)
	}
	if points > 0 {
		if _, err := l.Adjust(kid.ID, points, "seed"); err != nil {
			t.Fatalf("seed points: %v", err)
		}
	}
	return kid
}

func TestRedeemInstant(t *testing.T) {
	svc, rewards, kids, l := setupRewardTest(t)

	kid := seedKidWithPoints(t, kids, l, 200)
	reward, err := rewards.Create(store.RewardParams{Title: "Screen time", Cost: 50, Active: true})
	if err != nil {
		t.Fatalf("create reward: %v", err)
	}

	redemption, err := svc.Redeem(reward.ID, kid.ID)
	if err != nil {
		t.Fatalf("redeem: %v", err)
	}
	if redemption.Status != model.RedemptionApproved {
		t.Errorf("status = %q, want approved", redemption.Status)
	}
	if redemption.DecidedBy == nil || *redemption.DecidedBy != "auto" {
		t.Errorf("decided_by = %v, want auto", redemption.DecidedBy)
	}

	balance, err := l.Balance(kid.ID)
	if err != nil {
		t.Fatalf("balance: %v", err)
	}
	if balance != 150 {
		t.Errorf("balance = %d, want 150", balance)
	}
}

func TestRedeemPendingThenApprove(t *testing.T) {
	svc, rewards, kids, l := setupRewardTest(t)

	kid := seedKidWithPoints(t, kids, l, 100)
	reward, err := rewards.Create(store.RewardParams{Title: "Movie night", Cost: 80, RequiresApproval: true, Active: true})
	if err != nil {
		t.Fatalf("create reward: %v", err)
	}

	redemption, err := svc.Redeem(reward.ID, kid.ID)
	if err != nil {
		t.Fatalf("redeem: %v", err)
	}
	if redemption.Status != model.RedemptionPending {
		t.Errorf("status = %q, want pending", redemption.Status)
	}

	// Nothing deducted while pending.
	balance, _ := l.Balance(kid.ID)
	if balance != 100 {
		t.Errorf("balance while pending = %d, want 100", balance)
	}

	approved, err := svc.Approve(redemption.ID, "mom")
	if err != nil {
		t.Fatalf("approve: %v", err)
	}
	if approved.Status != model.RedemptionApproved {
		t.Errorf("status = %q, want approved", approved.Status)
	}

	balance, _ = l.Balance(kid.ID)
	if balance != 20 {
		t.Errorf("balance after approve = %d, want 20", balance)
	}
}

func TestApproveRechecksBalance(t *testing.T) {
	svc, rewards, kids, l := setupRewardTest(t)

	kid := seedKidWithPoints(t, kids, l, 100)
	reward, err := rewards.Create(store.RewardParams{Title: "Movie night", Cost: 80, RequiresApproval: true, Active: true})
	if err != nil {
		t.Fatalf("create reward: %v", err)
	}

	redemption, err := svc.Redeem(reward.ID, kid.ID)
	if err != nil {
		t.Fatalf("redeem: %v", err)
	}

	// The balance dropped between request and decision.
	if _, err := l.Adjust(kid.ID, -50, "spent elsewhere"); err != nil {
		t.Fatalf("adjust: %v", err)
	}

	if _, err := svc.Approve(redemption.ID, "mom"); !errors.Is(err, core.ErrInsufficientPoints) {
		t.Errorf("err = %v, want ErrInsufficientPoints", err)
	}

	// The redemption is still pending; a later approval can succeed.
	got, err := rewards.GetRedemptionByID(redemption.ID)
	if err != nil {
		t.Fatalf("get redemption: %v", err)
	}
	if got.Status != model.RedemptionPending {
		t.Errorf("status = %q, want pending", got.Status)
	}
}

func TestRedeemInsufficientPoints(t *testing.T) {
	svc, rewards, kids, l := setupRewardTest(t)

	kid := seedKidWithPoints(t, kids, l, 30)
	reward, err := rewards.Create(store.RewardParams{Title: "Big prize", Cost: 500, Active: true})
	if err != nil {
		t.Fatalf("create reward: %v", err)
	}

	if _, err := svc.Redeem(reward.ID, kid.ID); !errors.Is(err, core.ErrInsufficientPoints) {
		t.Errorf("err = %v, want ErrInsufficientPoints", err)
	}
}

func TestRedeemInactiveReward(t *testing.T) {
	svc, rewards, kids, l := setupRewardTest(t)

	kid := seedKidWithPoints(t, kids, l, 100)
	reward, err := rewards.Create(store.RewardParams{Title: "Retired", Cost: 10, Active: false})
	if err != nil {
		t.Fatalf("create reward: %v", err)
	}

	if _, err := svc.Redeem(reward.ID, kid.ID); !errors.Is(err, core.ErrInvalidState) {
		t.Errorf("err = %v, want ErrInvalidState", err)
	}
}

func TestRedeemNotEligible(t *testing.T) {
	svc, rewards, kids, l := setupRewardTest(t)

	maya := seedKidWithPoints(t, kids, l, 100)
	theo, err := kids.Create("Theo", "#10B981", "")
	if err != nil {
		t.Fatalf("create kid: %v", err)
	}
	reward, err := rewards.Create(store.RewardParams{Title: "Maya only", Cost: 10, Active: true, EligibleKids: []int64{maya.ID}})
	if err != nil {
		t.Fatalf("create reward: %v", err)
	}

	if _, err := svc.Redeem(reward.ID, theo.ID); !errors.Is(err, core.ErrNotEligible) {
		t.Errorf("err = %v, want ErrNotEligible", err)
	}
}

func TestRejectHasNoLedgerEffect(t *testing.T) {
	svc, rewards, kids, l := setupRewardTest(t)

	kid := seedKidWithPoints(t, kids, l, 100)
	reward, err := rewards.Create(store.RewardParams{Title: "Movie night", Cost: 80, RequiresApproval: true, Active: true})
	if err != nil {
		t.Fatalf("create reward: %v", err)
	}

	redemption, err := svc.Redeem(reward.ID, kid.ID)
	if err != nil {
		t.Fatalf("redeem: %v", err)
	}

	rejected, err := svc.Reject(redemption.ID, "dad")
	if err != nil {
		t.Fatalf("reject: %v", err)
	}
	if rejected.Status != model.RedemptionRejected {
		t.Errorf("status = %q, want rejected", rejected.Status)
	}

	balance, _ := l.Balance(kid.ID)
	if balance != 100 {
		t.Errorf("balance = %d, want 100", balance)
	}

	// Terminal: cannot approve after a rejection.
	if _, err := svc.Approve(redemption.ID, "mom"); !errors.Is(err, core.ErrInvalidState) {
		t.Errorf("approve after reject err = %v, want ErrInvalidState", err)
	}
}

func TestRewardDeleteRejectsPendingRedemptions(t *testing.T) {
	svc, rewards, kids, l := setupRewardTest(t)

	kid := seedKidWithPoints(t, kids, l, 100)
	reward, err := rewards.Create(store.RewardParams{Title: "Movie night", Cost: 80, RequiresApproval: true, Active: true})
	if err != nil {
		t.Fatalf("create reward: %v", err)
	}
	redemption, err := svc.Redeem(reward.ID, kid.ID)
	if err != nil {
		t.Fatalf("redeem: %v", err)
	}

	if err := rewards.Delete(reward.ID); err != nil {
		t.Fatalf("delete reward: %v", err)
	}

	got, err := rewards.GetRedemptionByID(redemption.ID)
	if err != nil {
		t.Fatalf("get redemption: %v", err)
	}
	if got == nil {
		t.Fatal("redemption should survive reward deletion")
	}
	if got.Status != model.RedemptionRejected {
		t.Errorf("status = %q, want rejected", got.Status)
	}
	if got.RewardTitle != "Movie night" {
		t.Errorf("reward_title = %q, want snapshot preserved", got.RewardTitle)
	}

	balance, _ := l.Balance(kid.ID)
	if balance != 100 {
		t.Errorf("balance = %d, want 100", balance)
	}
}
